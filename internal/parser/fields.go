package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
)

// Field patterns are tried in declared order and the first match wins.
// Order encodes specificity: labeled fields and tight captures come
// before loose ones.

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$([0-9][0-9,]*\.?[0-9]*)`),
	regexp.MustCompile(`(?i)([0-9][0-9,]*\.?[0-9]*)\s*USD\b`),
	regexp.MustCompile(`(?i)\bamount:?\s*\$?([0-9][0-9,]*\.?[0-9]*)`),
	regexp.MustCompile(`(?i)\btotal:?\s*\$?([0-9][0-9,]*\.?[0-9]*)`),
}

var paidByPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z][A-Za-z.'\-]*(?:[ \t]+[A-Z][A-Za-z.'\-]*)*)\s+sent you`),
	regexp.MustCompile(`(?i)\bsent by\s+([A-Z][A-Za-z.'\-]*(?:[ \t]+[A-Z][A-Za-z.'\-]*)*)`),
	regexp.MustCompile(`(?i)\bfrom\s+([A-Z][A-Za-z.'\-]*(?:[ \t]+[A-Z][A-Za-z.'\-]*)*)`),
	regexp.MustCompile(`(?i)\bsender:\s*([^\r\n]+)`),
	regexp.MustCompile(`(?i)\bpaid by:\s*([^\r\n]+)`),
}

var paidToPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsent\s+\$[0-9.,]+\s+to\s+([A-Z][A-Za-z.'\-]*(?:[ \t]+[A-Z][A-Za-z.'\-]*)*)`),
	regexp.MustCompile(`(?i)\bsent to\s+([A-Z][A-Za-z.'\-]*(?:[ \t]+[A-Z][A-Za-z.'\-]*)*)`),
	regexp.MustCompile(`(?i)\bto\s+([A-Z][A-Za-z.'\-]*(?:[ \t]+[A-Z][A-Za-z.'\-]*)*)`),
	regexp.MustCompile(`(?i)\brecipient:\s*([^\r\n]+)`),
	regexp.MustCompile(`(?i)\bpaid to:\s*([^\r\n]+)`),
}

var refPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(#[A-Za-z0-9][A-Za-z0-9\-]*)`),
	regexp.MustCompile(`(?i)\btransaction\s+(?:number|id):\s*(\S+)`),
	regexp.MustCompile(`(?i)\breference(?:\s+(?:number|id))?:\s*(\S+)`),
	regexp.MustCompile(`(?i)\bconfirmation(?:\s+(?:number|id))?:\s*(\S+)`),
}

var descriptionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:note|memo|description):\s*([^\r\n]+)`),
	regexp.MustCompile(`(?i)\bfor\s+"([^"]+)"`),
}

// extractAmount returns the first positive amount found in text.
func extractAmount(text string) (float64, bool) {
	for _, p := range amountPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			continue
		}
		return v, true
	}
	return 0, false
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func extractPaidBy(text string) string {
	return firstMatch(paidByPatterns, text)
}

func extractPaidTo(text string) string {
	return firstMatch(paidToPatterns, text)
}

func extractDescription(text string) string {
	return firstMatch(descriptionPatterns, text)
}

// extractReference returns the provider reference found in text, or
// falls back to a reference derived from the message body so that the
// same email always maps to the same reference. References are
// normalized to carry the "#" prefix so "Transaction ID: VEN-123456"
// and an inline "#VEN-123456" dedup against each other.
func extractReference(text, body string) string {
	if ref := firstMatch(refPatterns, text); ref != "" {
		if !strings.HasPrefix(ref, "#") {
			ref = "#" + ref
		}
		return ref
	}
	return deriveReference(body)
}

// deriveReference hashes the whitespace-normalized, lower-cased body
// and takes the first 16 hex characters, upper-cased, with a leading
// "#". Deterministic across runs, distinct across distinct bodies.
func deriveReference(body string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(body)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return "#" + strings.ToUpper(hex.EncodeToString(sum[:]))[:16]
}

// extractDirection classifies the money flow. Earlier phrases win:
// "you sent" must be checked before "sent you" since both substrings
// can appear in one message.
func extractDirection(text string) model.Direction {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "you sent"):
		return model.DirectionSent
	case strings.Contains(lower, "sent you"):
		return model.DirectionReceived
	case strings.Contains(lower, "payment request"):
		return model.DirectionRequest
	case strings.Contains(lower, "refund"):
		return model.DirectionRefund
	default:
		return model.DirectionTransfer
	}
}

// extractStatus reports the settlement state mentioned in the text,
// defaulting to completed since providers notify after the fact.
func extractStatus(text string) model.TxStatus {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "pending"):
		return model.TxStatusPending
	case strings.Contains(lower, "failed") || strings.Contains(lower, "declined"):
		return model.TxStatusFailed
	default:
		return model.TxStatusCompleted
	}
}

// providerTag derives the transaction's provider from the sender
// address: the first label of the sender's domain, lower-cased.
// "cash@square.com" tags as "square".
func providerTag(sender string) string {
	addr := strings.ToLower(strings.TrimSpace(sender))
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		addr = strings.TrimSuffix(addr[i+1:], ">")
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return "unknown"
	}
	domain := addr[at+1:]
	if dot := strings.Index(domain, "."); dot > 0 {
		return domain[:dot]
	}
	return domain
}
