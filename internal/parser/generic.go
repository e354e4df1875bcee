package parser

import (
	"strings"
	"time"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
)

// paymentKeywords is the fixed vocabulary the generic extractor scores
// against. A message must contain at least two distinct keywords across
// subject and body to be claimed; one is not enough to distinguish a
// payment notification from a newsletter that mentions money.
var paymentKeywords = []string{
	"payment",
	"paid",
	"sent you",
	"you sent",
	"received",
	"transaction",
	"money",
	"transfer",
	"deposit",
	"$",
	"usd",
	"amount",
	"total",
}

const keywordThreshold = 2

// Generic extracts transactions from payment emails of providers that
// have no dedicated extractor. It never claims messages from senders a
// dedicated extractor owns.
type Generic struct{}

// NewGeneric creates the generic keyword-driven extractor.
func NewGeneric() *Generic {
	return &Generic{}
}

func (g *Generic) Name() string { return "generic" }

// CanParse claims a message when at least two distinct payment
// keywords appear in the subject and body combined.
func (g *Generic) CanParse(msg model.RawMessage) bool {
	if isCashAppSender(msg.Sender) {
		return false
	}
	return keywordCount(msg.Subject+" "+msg.Body) >= keywordThreshold
}

// Parse extracts the transaction fields. Amount is the only hard
// requirement; every other field degrades to a default or derived
// value. Only the first transaction in a message is extracted.
func (g *Generic) Parse(msg model.RawMessage) (*model.Transaction, error) {
	text := msg.Subject + "\n" + msg.Body

	amount, ok := extractAmount(text)
	if !ok {
		return nil, &ParseError{Extractor: g.Name(), Field: "amount"}
	}

	occurred := msg.Date
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	return &model.Transaction{
		Amount:      amount,
		Currency:    "USD",
		PaidBy:      extractPaidBy(text),
		PaidTo:      extractPaidTo(text),
		Status:      extractStatus(text),
		ExternalRef: extractReference(text, msg.Body),
		OccurredAt:  occurred,
		Direction:   extractDirection(text),
		Provider:    providerTag(msg.Sender),
		Description: extractDescription(text),
	}, nil
}

// keywordCount counts how many distinct payment keywords occur in text.
func keywordCount(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range paymentKeywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
