// Package parser turns payment-notification emails into structured
// transactions. Provider-specific extractors claim messages first; a
// generic keyword-driven extractor catches anything that looks like a
// payment but has no dedicated extractor.
package parser

import (
	"fmt"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
)

// Extractor parses one provider family of payment emails.
type Extractor interface {
	// Name identifies the extractor for registry listings.
	Name() string

	// CanParse reports whether this extractor claims the message.
	CanParse(msg model.RawMessage) bool

	// Parse extracts a transaction from a claimed message. A claimed
	// message that is missing a required field returns a *ParseError.
	Parse(msg model.RawMessage) (*model.Transaction, error)
}

// ParseError reports a claimed message whose required field could not
// be extracted. Parse failures are counted and skipped by callers, not
// escalated.
type ParseError struct {
	Extractor string
	Field     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: required field %q not found", e.Extractor, e.Field)
}

// Registry holds extractors in priority order. Provider-specific
// extractors come first; the generic extractor is always last so a
// dedicated extractor wins whenever both would claim a message.
type Registry struct {
	extractors []Extractor
}

// NewRegistry builds a registry with the given extractors in order.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// DefaultRegistry returns the standard registry: Cash App first, then
// the generic fallback.
func DefaultRegistry() *Registry {
	return NewRegistry(NewCashApp(), NewGeneric())
}

// Select returns the first extractor that claims the message, or nil
// when no extractor does. Messages nobody claims are not payment
// notifications and are silently skipped.
func (r *Registry) Select(msg model.RawMessage) Extractor {
	for _, e := range r.extractors {
		if e.CanParse(msg) {
			return e
		}
	}
	return nil
}

// Names lists the registered extractor names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.extractors))
	for i, e := range r.extractors {
		names[i] = e.Name()
	}
	return names
}
