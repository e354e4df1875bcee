package model

import "time"

// RawMessage is a retrieved email reduced to the fields the extractors
// read. Body is plain text; HTML parts are flattened before this point.
// RawMessage values are transient and never persisted.
type RawMessage struct {
	Sender  string
	Subject string
	Body    string
	Date    time.Time
}
