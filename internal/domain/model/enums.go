package model

// AuthKind distinguishes how a mailbox is authenticated.
type AuthKind string

const (
	AuthKindOAuth    AuthKind = "oauth"
	AuthKindPassword AuthKind = "password"
)

// Direction classifies the money flow of a transaction relative to the
// account owner.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
	DirectionRequest  Direction = "request"
	DirectionRefund   Direction = "refund"
	DirectionTransfer Direction = "transfer"
)

// TxStatus is the settlement state reported by the provider email.
type TxStatus string

const (
	TxStatusCompleted TxStatus = "completed"
	TxStatusPending   TxStatus = "pending"
	TxStatusFailed    TxStatus = "failed"
)
