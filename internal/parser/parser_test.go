package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
)

var msgDate = time.Date(2026, 8, 28, 10, 15, 0, 0, time.FixedZone("EDT", -4*3600))

func cashAppReceipt() model.RawMessage {
	return model.RawMessage{
		Sender:  "Cash App <cash@square.com>",
		Subject: "Barbara Amador sent you $450.00",
		Body: "Barbara Amador sent you $450.00 for rent\n" +
			"Payment between Barbara Amador and You\n" +
			"#D-QQENK44E\n",
		Date: msgDate,
	}
}

func TestRegistry_CashAppReceiptGoesToCashApp(t *testing.T) {
	reg := DefaultRegistry()
	msg := cashAppReceipt()

	e := reg.Select(msg)
	require.NotNil(t, e)
	assert.Equal(t, "cashapp", e.Name())

	tx, err := e.Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, 450.00, tx.Amount)
	assert.Equal(t, "Barbara Amador", tx.PaidBy)
	assert.Equal(t, "#D-QQENK44E", tx.ExternalRef)
	assert.Equal(t, "square", tx.Provider)
	assert.Equal(t, model.DirectionReceived, tx.Direction)
	assert.Equal(t, model.TxStatusCompleted, tx.Status)
	assert.True(t, tx.OccurredAt.Equal(msgDate))
}

func TestRegistry_GenericClaimsOtherProviders(t *testing.T) {
	reg := DefaultRegistry()
	msg := model.RawMessage{
		Sender:  "Venmo <venmo@venmo.com>",
		Subject: "You paid John Doe $25.00",
		Body:    "You sent $25.00 to John Doe\nTransaction ID: VEN-123456\n",
		Date:    msgDate,
	}

	e := reg.Select(msg)
	require.NotNil(t, e)
	assert.Equal(t, "generic", e.Name())

	tx, err := e.Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, 25.00, tx.Amount)
	assert.Equal(t, "John Doe", tx.PaidTo)
	assert.Equal(t, "#VEN-123456", tx.ExternalRef)
	assert.Equal(t, "venmo", tx.Provider)
	assert.Equal(t, model.DirectionSent, tx.Direction)
}

func TestRegistry_NewsletterClaimedByNobody(t *testing.T) {
	reg := DefaultRegistry()
	msg := model.RawMessage{
		Sender:  "news@example.com",
		Subject: "Your weekly digest",
		Body:    "Here are this week's top articles about gardening.",
		Date:    msgDate,
	}

	assert.Nil(t, reg.Select(msg))
}

func TestGeneric_SingleKeywordIsNotClaimed(t *testing.T) {
	g := NewGeneric()

	one := model.RawMessage{
		Sender:  "news@example.com",
		Subject: "Big savings",
		Body:    "Our subscription now costs less money.",
	}
	assert.False(t, g.CanParse(one), "one keyword must not be enough")

	two := model.RawMessage{
		Sender:  "billing@example.com",
		Subject: "Payment received",
		Body:    "We received your payment of $10.",
	}
	assert.True(t, g.CanParse(two))
}

func TestGeneric_NeverClaimsCashAppSenders(t *testing.T) {
	g := NewGeneric()
	assert.False(t, g.CanParse(cashAppReceipt()))
}

func TestGeneric_MissingAmountIsParseError(t *testing.T) {
	g := NewGeneric()
	msg := model.RawMessage{
		Sender:  "billing@example.com",
		Subject: "Payment transaction update",
		Body:    "Your payment transaction completed.",
	}
	require.True(t, g.CanParse(msg))

	_, err := g.Parse(msg)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "amount", pe.Field)
}

func TestCashApp_RejectsPromotionalMail(t *testing.T) {
	c := NewCashApp()
	msg := model.RawMessage{
		Sender:  "cash@square.com",
		Subject: "Invite friends, get a $15 referral bonus",
		Body:    "Share your invite code and earn a bonus reward.",
	}
	assert.False(t, c.CanParse(msg))
}

func TestCashApp_PipedReferenceWins(t *testing.T) {
	c := NewCashApp()
	msg := model.RawMessage{
		Sender:  "noreply@cash.app",
		Subject: "You sent $12.50",
		Body:    "You sent $12.50 to Sam Field\n| D-ABCDE123 |\n",
		Date:    msgDate,
	}
	require.True(t, c.CanParse(msg))

	tx, err := c.Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "#D-ABCDE123", tx.ExternalRef)
	assert.Equal(t, model.DirectionSent, tx.Direction)
	assert.Equal(t, "cash", tx.Provider)
}

func TestDeriveReference_Deterministic(t *testing.T) {
	a := deriveReference("You received $10 from   Alice\n")
	b := deriveReference("you received $10 FROM Alice")
	c := deriveReference("you received $11 from alice")

	assert.Equal(t, a, b, "case and whitespace must not change the derived reference")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 17)
	assert.Equal(t, byte('#'), a[0])
}

func TestExtractReference_LabeledTokensGetHashPrefix(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Transaction ID: VEN-123456", "#VEN-123456"},
		{"Transaction ID: #VEN-123456", "#VEN-123456"},
		{"Reference number: ABC999", "#ABC999"},
		{"Confirmation: XYZ-1", "#XYZ-1"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractReference(tc.text, tc.text), "text: %s", tc.text)
	}
}

func TestExtractReference_FallsBackToDerived(t *testing.T) {
	body := "We received your payment of $10. Thank you."
	ref := extractReference(body, body)
	assert.Equal(t, deriveReference(body), ref)
}

func TestExtractDirection_Priority(t *testing.T) {
	cases := []struct {
		text string
		want model.Direction
	}{
		{"You sent $5.00 to Bob", model.DirectionSent},
		{"Alice sent you $5.00", model.DirectionReceived},
		{"You sent $5 after Bob sent you a request", model.DirectionSent},
		{"payment request from Alice", model.DirectionRequest},
		{"Your refund of $5.00 is on its way", model.DirectionRefund},
		{"Deposit of $100 arrived", model.DirectionTransfer},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractDirection(tc.text), "text: %s", tc.text)
	}
}

func TestExtractAmount_Families(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"You sent $1,234.56 today", 1234.56, true},
		{"Charged 99.95 USD", 99.95, true},
		{"Amount: $42", 42, true},
		{"Total: 7.00", 7, true},
		{"no numbers here", 0, false},
		{"Amount: $0", 0, false},
	}
	for _, tc := range cases {
		got, ok := extractAmount(tc.text)
		assert.Equal(t, tc.ok, ok, "text: %s", tc.text)
		if tc.ok {
			assert.Equal(t, tc.want, got, "text: %s", tc.text)
		}
	}
}

func TestProviderTag(t *testing.T) {
	cases := []struct {
		sender string
		want   string
	}{
		{"cash@square.com", "square"},
		{"Cash App <cash@square.com>", "square"},
		{"venmo@venmo.com", "venmo"},
		{"alerts@notifications.paypal.com", "notifications"},
		{"not-an-address", "unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, providerTag(tc.sender), "sender: %s", tc.sender)
	}
}

func TestHTMLToText(t *testing.T) {
	body := `<html><body><p>Barbara Amador sent you <b>$450.00</b></p>` +
		`<div>#D-QQENK44E</div><p>Thanks &amp; enjoy</p></body></html>`

	text := HTMLToText(body)
	assert.Contains(t, text, "Barbara Amador sent you $450.00")
	assert.Contains(t, text, "#D-QQENK44E")
	assert.Contains(t, text, "Thanks & enjoy")
	assert.NotContains(t, text, "<")
}
