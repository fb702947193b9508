/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The recon service and the store wrap these with additional context.

ERROR CATEGORIES:
  1. NotFound - referenced record missing or outside the caller's org
  2. Validation - business rule violations, rejected before storage is touched
  3. Conflict - concurrent-write race detected during an allocation write
  4. Dependency - underlying storage failure, safe to retry the whole operation

USAGE:
  if ledger.IsNotFound(err) { ... }

  var verr *ledger.ValidationError
  if errors.As(err, &verr) {
      log.Println(verr.Code)
  }

SEE ALSO:
  - matcher.go: Returns ValidationError for plan violations
  - recon/service.go: Translates these for callers
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced obligation, settlement or
	// allocation does not resolve within the caller's org scope.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when an allocation write races another writer:
	// the precondition held on the caller's snapshot but no longer holds
	// inside the store transaction.
	ErrConflict = errors.New("concurrent allocation write detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Validation codes. Kept as stable strings so API clients can branch on them.
const (
	CodeAmountNotPositive  = "amount_not_positive"
	CodeOverAllocated      = "over_allocated"
	CodeOverUsed           = "over_used"
	CodeVendorMismatch     = "vendor_mismatch"
	CodeCustomerMismatch   = "customer_mismatch"
	CodeDirectPaidConflict = "direct_paid_conflict"
	CodeAlreadyLinked      = "already_linked"
	CodePartyImmutable     = "party_immutable"
	CodeAmountBelowLinked  = "amount_below_linked"
	CodeKindMismatch       = "kind_mismatch"
)

// ValidationError reports a business rule violation. Matcher operations return
// it before touching storage.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Validationf(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// DependencyError wraps a storage-level failure. Every write in this engine
// is transactional, so the whole logical operation is safe to retry.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true if the error indicates a lost allocation race.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsValidation returns true if the error is a business rule violation.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsRetryable returns true if retrying the whole operation might succeed.
func IsRetryable(err error) bool {
	var derr *DependencyError
	return errors.Is(err, ErrConflict) || errors.As(err, &derr)
}
