package model

import "time"

// AccountOutcome reports what one sync run did for one account. Errors
// collects every failure hit while processing the account; a non-empty
// slice never prevents the counters from being meaningful.
type AccountOutcome struct {
	AccountID  string
	Address    string
	Seen       int
	Parsed     int
	Inserted   int
	Duplicates int
	Failures   int
	Errors     []string
}

// Failed reports whether the account produced no usable results at all.
func (o *AccountOutcome) Failed() bool {
	return o.Seen == 0 && len(o.Errors) > 0
}

// BatchOutcome aggregates a full sync run across every attempted
// account. One AccountOutcome per account, always, even when an
// account fails outright.
type BatchOutcome struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Accounts   []AccountOutcome
}

// Totals sums the per-account counters.
func (b *BatchOutcome) Totals() (seen, parsed, inserted, duplicates, failures int) {
	for i := range b.Accounts {
		a := &b.Accounts[i]
		seen += a.Seen
		parsed += a.Parsed
		inserted += a.Inserted
		duplicates += a.Duplicates
		failures += a.Failures
	}
	return seen, parsed, inserted, duplicates, failures
}
