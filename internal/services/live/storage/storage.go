// Package storage defines persistence contracts for livegate state. None of
// it is consulted when deciding whether a wallet may join.
package storage

import (
	"context"
	"time"
)

// Outcome classifies one authorization attempt.
type Outcome string

const (
	OutcomeIssued Outcome = "issued"
	OutcomeDenied Outcome = "denied"
	OutcomeError  Outcome = "error"
)

// AuthorizationEvent is one append-only audit record.
type AuthorizationEvent struct {
	ID           string
	OwnerAddress string
	LockAddress  string
	Chain        string
	Outcome      Outcome
	Manager      bool
	Detail       string
	CreatedAt    time.Time
}

// AuditLog appends authorization events.
type AuditLog interface {
	AppendAuthorizationEvent(ctx context.Context, event AuthorizationEvent) error
}

// RevocationStore records holder-revoked token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	PruneRevocations(ctx context.Context, now time.Time) (int64, error)
}
