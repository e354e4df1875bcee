package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
)

// cashAppSenders are the notification addresses Cash App sends from.
var cashAppSenders = []string{
	"cash@square.com",
	"noreply@cash.app",
}

// promotionalKeywords mark marketing mail from the same senders.
// Promotional messages carry no transaction and must not be claimed.
var promotionalKeywords = []string{
	"referral",
	"bonus",
	"reward",
	"invite friends",
	"free money",
	"boost",
}

var (
	cashAppRefPattern = regexp.MustCompile(`(#[A-Z0-9][A-Z0-9\-]{4,})`)
	// Receipts frame the reference between pipes in the footer line.
	cashAppPipedRefPattern = regexp.MustCompile(`\|\s*(#?[A-Z0-9][A-Z0-9\-]{4,})\s*\|`)
	// "Payment between Alice and Bob" appears in some receipt layouts.
	cashAppBetweenPattern = regexp.MustCompile(`(?i)payment between\s+([A-Z][A-Za-z.'\-]*(?:[ \t]+[A-Z][A-Za-z.'\-]*)*)\s+and\s+([A-Z][A-Za-z.'\-]*(?:[ \t]+[A-Z][A-Za-z.'\-]*)*)`)
)

// CashApp extracts transactions from Cash App notification emails.
type CashApp struct{}

// NewCashApp creates the Cash App extractor.
func NewCashApp() *CashApp {
	return &CashApp{}
}

func (c *CashApp) Name() string { return "cashapp" }

// CanParse claims messages from Cash App senders unless they are
// promotional.
func (c *CashApp) CanParse(msg model.RawMessage) bool {
	if !isCashAppSender(msg.Sender) {
		return false
	}
	return !isPromotional(msg.Subject + " " + msg.Body)
}

// Parse extracts a Cash App transaction. Amount and a reference are
// required; Cash App receipts carry both, so their absence means the
// message is not a receipt after all.
func (c *CashApp) Parse(msg model.RawMessage) (*model.Transaction, error) {
	text := msg.Subject + "\n" + msg.Body

	amount, ok := extractAmount(text)
	if !ok {
		return nil, &ParseError{Extractor: c.Name(), Field: "amount"}
	}

	paidBy := extractPaidBy(text)
	paidTo := extractPaidTo(text)
	if m := cashAppBetweenPattern.FindStringSubmatch(text); m != nil {
		if paidBy == "" {
			paidBy = strings.TrimSpace(m[1])
		}
		if paidTo == "" {
			paidTo = strings.TrimSpace(m[2])
		}
	}

	occurred := msg.Date
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	return &model.Transaction{
		Amount:      amount,
		Currency:    "USD",
		PaidBy:      paidBy,
		PaidTo:      paidTo,
		Status:      extractStatus(text),
		ExternalRef: c.extractRef(text, msg.Body),
		OccurredAt:  occurred,
		Direction:   extractDirection(text),
		Provider:    providerTag(msg.Sender),
		Description: extractDescription(text),
	}, nil
}

// extractRef prefers the Cash App receipt formats before the shared
// reference families.
func (c *CashApp) extractRef(text, body string) string {
	if m := cashAppPipedRefPattern.FindStringSubmatch(text); m != nil {
		ref := m[1]
		if !strings.HasPrefix(ref, "#") {
			ref = "#" + ref
		}
		return ref
	}
	if m := cashAppRefPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return extractReference(text, body)
}

// isCashAppSender reports whether the address is one Cash App sends
// receipts from, including any address at the cash.app domain.
func isCashAppSender(sender string) bool {
	addr := strings.ToLower(sender)
	for _, s := range cashAppSenders {
		if strings.Contains(addr, s) {
			return true
		}
	}
	return strings.Contains(addr, "@cash.app") || strings.HasSuffix(addr, "cash.app>")
}

func isPromotional(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range promotionalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
