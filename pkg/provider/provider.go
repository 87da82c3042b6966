// Package provider defines the DNS provider contract consumed by the
// reconciler, along with the error taxonomy shared by implementations.
package provider

import "context"

// RecordType is a DNS record type managed by ipweaver.
type RecordType string

const (
	// RecordTypeA is an IPv4 address record.
	RecordTypeA RecordType = "A"
	// RecordTypeAAAA is an IPv6 address record.
	RecordTypeAAAA RecordType = "AAAA"
)

// Record is the payload sent on create and update operations.
//
// Name carries the subdomain label only; the provider qualifies it against
// the zone. Proxied is always false for ipweaver-managed records.
type Record struct {
	Type    RecordType
	Name    string
	Content string
	TTL     int
	Proxied bool
}

// Provider is the surface the reconciler needs from a DNS provider.
//
// All methods absorb transport faults into returned errors; none panic.
// Implementations map provider rejections onto the sentinel errors in this
// package so callers can branch with errors.Is.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Ping verifies API reachability and credentials.
	Ping(ctx context.Context) error

	// ZoneID resolves a domain name to the provider's opaque zone ID.
	// Returns ErrNotFound when the account has no zone with that exact name.
	ZoneID(ctx context.Context, domain string) (string, error)

	// FindRecord resolves a (fqdn, type) pair to a record ID within a zone.
	// Returns ErrNotFound when no such record exists.
	FindRecord(ctx context.Context, zoneID, fqdn string, recordType RecordType) (string, error)

	// CreateRecord creates a record and returns its new ID.
	CreateRecord(ctx context.Context, zoneID string, record Record) (string, error)

	// UpdateRecord rewrites an existing record in place and returns its
	// (unchanged) ID, confirming the ID is still valid.
	UpdateRecord(ctx context.Context, zoneID, recordID string, record Record) (string, error)
}
