// Package store defines the narrow key/value contract the engine expects from
// its persistence layer: string-valued get/set under `<entity>:<scopeID>`
// keys, plus a compare-and-set claim primitive used to shrink the window of
// the duplicate-case race. No transactions, no listing.
package store

import (
	"context"
	"time"
)

type Store interface {
	// Get returns the value for key, or empty string if absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, val string) error
	// SetNX sets key only if absent, returning whether the claim was won.
	// The TTL bounds how long a stale claim can linger.
	SetNX(ctx context.Context, key string, val string, ttl time.Duration) (bool, error)
}

// Key scheme helpers. Every entity lives under its own prefix per scope.

func PolicyKey(scopeID string) string           { return "policy:" + scopeID }
func CasesKey(scopeID string) string            { return "cases:" + scopeID }
func ActionsKey(scopeID string) string          { return "actions:" + scopeID }
func EligibilityKey(scopeID string) string      { return "eligibility:" + scopeID }
func EligibilityAuditKey(scopeID string) string { return "eligibility-audit:" + scopeID }
func CharterKey(scopeID string) string          { return "charter:" + scopeID }
func ObserverKey(scopeID string) string         { return "reasoning-quality:" + scopeID }

// ClaimKey is the short-lived per-content claim taken by the autonomous
// executor before creating a case.
func ClaimKey(scopeID, contentID string) string {
	return "claim:" + scopeID + ":" + contentID
}
