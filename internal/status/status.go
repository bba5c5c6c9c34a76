// Package status answers whether an identity currently holds a usable token.
package status

import (
	"time"

	"outlookmcp/internal/tokenstore"
)

// Status is the result of a probe.
type Status int

const (
	// NotConfigured means no identity is configured.
	NotConfigured Status = iota
	// NoRecord means the identity has no readable token record, or one
	// without an access token.
	NoRecord
	// Expired means the record holds an access token past expires_at.
	Expired
	// Valid means the record can be used now.
	Valid
)

func (s Status) String() string {
	switch s {
	case NotConfigured:
		return "NotConfigured"
	case NoRecord:
		return "NoRecord"
	case Expired:
		return "Expired"
	case Valid:
		return "Valid"
	default:
		return "Unknown"
	}
}

// RecordLoader reads token records.
type RecordLoader interface {
	Load(identity string) (*tokenstore.TokenRecord, bool)
}

// Report is a probe result with the record it was based on.
type Report struct {
	Status Status
	Record *tokenstore.TokenRecord
}

// Probe inspects stored records. It never contacts the provider or writes.
type Probe struct {
	store RecordLoader
	now   func() time.Time
}

// NewProbe returns a Probe reading from store. A nil now means time.Now.
func NewProbe(store RecordLoader, now func() time.Time) *Probe {
	if now == nil {
		now = time.Now
	}
	return &Probe{store: store, now: now}
}

// Check returns the status of identity.
func (p *Probe) Check(identity string) Status {
	return p.Inspect(identity).Status
}

// Inspect returns the status of identity and the record, if any.
func (p *Probe) Inspect(identity string) Report {
	if identity == "" {
		return Report{Status: NotConfigured}
	}

	record, ok := p.store.Load(identity)
	if !ok || record.AccessToken == "" {
		return Report{Status: NoRecord}
	}
	if !record.IsValid(p.now()) {
		return Report{Status: Expired, Record: record}
	}
	return Report{Status: Valid, Record: record}
}
