package services

import (
	"errors"
	"fmt"
)

// ErrKeyFrozen is returned when the reconciliation sweep found a ledger
// mismatch for a (user, creator) key. Writes for that key stay blocked until
// an operator resolves the discrepancy; this must never be retried blindly.
var ErrKeyFrozen = errors.New("writes frozen for key pending reconciliation")

// storeError wraps durable-store failures. Callers may retry the whole
// operation: every write path is idempotent per calendar day or per badge.
func storeError(op string, err error) error {
	return fmt.Errorf("engagement store %s: %w", op, err)
}
