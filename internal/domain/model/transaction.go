package model

import "time"

// Transaction is one payment record extracted from a single email.
// ExternalRef is never empty: when the message carries no provider
// reference the extractor derives one from the message body, so the
// same email always produces the same reference. OccurredAt always
// carries an explicit UTC offset.
type Transaction struct {
	ID          int64
	OwnerID     string
	AccountID   string
	Amount      float64
	Currency    string
	PaidBy      string
	PaidTo      string
	Status      TxStatus
	ExternalRef string
	OccurredAt  time.Time
	Direction   Direction
	Provider    string
	Description string
	CreatedAt   time.Time
}
