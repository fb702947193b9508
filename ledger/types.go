/*
Package ledger provides the core payment-obligation reconciliation engine.

PURPOSE:
  This package contains the entity shapes and pure algorithms for linking
  settlements (vendor payments, customer receipts) to obligations (bills,
  invoices) while maintaining running balances and settlement status under
  partial and out-of-order payments.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: An integer amount of paise (minor currency units)
  - Obligation: An amount owed (a vendor bill or a customer invoice)
  - Settlement: A recorded money movement (vendor payment or income receipt)
  - Allocation: A directed amount-link between one Settlement and one Obligation
  - Note: An append-only free-text log entry on a record

DESIGN PRINCIPLES:
  1. Exact arithmetic: Money is int64 paise, so "fully paid" is an exact
     comparison, never a float tolerance.
  2. Derived status: Paid/Partial/Unpaid is always computed from Allocation
     rows, never stored.
  3. Explicit tenancy: Every record carries its OrgID; nothing is ambient.
  4. Tombstones: Obligations and Settlements are soft-deleted so historical
     statements stay reconstructable.

USAGE:
  bill := ledger.Obligation{
      Kind:     ledger.ObligationBill,
      VendorID: "vend-1",
      Total:    ledger.RupeesInt(10000),
  }
  status := ledger.ObligationStatus(&bill)

SEE ALSO:
  - balance.go: Derived amounts and statuses
  - matcher.go: Greedy allocation planning
  - statement.go: Vendor running-balance statements
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Integer paise (minor currency units)
// =============================================================================

// Money is an amount in paise. 1 rupee = 100 paise.
// The source system this engine replaces used float rupees with a 0.1 tolerance;
// integer minor units make every threshold exact.
type Money int64

var hundred = decimal.NewFromInt(100)

// MoneyFromRupees converts a decimal rupee amount to paise, rounding to the
// nearest paisa. Used at the API boundary; internal arithmetic is pure int64.
func MoneyFromRupees(d decimal.Decimal) Money {
	return Money(d.Mul(hundred).Round(0).IntPart())
}

// RupeesInt builds a Money from a whole-rupee amount.
func RupeesInt(r int64) Money {
	return Money(r * 100)
}

// Rupees returns the amount as a decimal rupee value.
func (m Money) Rupees() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(hundred)
}

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsPositive() bool { return m > 0 }
func (m Money) IsNegative() bool { return m < 0 }

func (m Money) Add(b Money) Money { return m + b }
func (m Money) Sub(b Money) Money { return m - b }
func (m Money) Neg() Money        { return -m }

func (m Money) Min(b Money) Money {
	if m < b {
		return m
	}
	return b
}

func (m Money) Max(b Money) Money {
	if m > b {
		return m
	}
	return b
}

// String renders the amount in rupees, e.g. "1500.50".
func (m Money) String() string { return m.Rupees().StringFixed(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrgID string
type ObligationID string
type SettlementID string
type AllocationID string
type VendorID string
type CustomerID string
type ProjectID string
type BankAccountID string

// =============================================================================
// OBLIGATION - An amount owed (bill or invoice)
// =============================================================================

// ObligationKind distinguishes the two obligation shapes that share the
// allocation contract.
type ObligationKind string

const (
	// ObligationBill is owed TO a vendor. Settled via the allocation table.
	ObligationBill ObligationKind = "bill"

	// ObligationInvoice is owed BY a customer. Settled via the legacy
	// direct invoice_id backlink on Income records, not the allocation table.
	ObligationInvoice ObligationKind = "invoice"
)

type Obligation struct {
	ID          ObligationID
	OrgID       OrgID
	Kind        ObligationKind
	Number      string // display reference, e.g. "EXP-0042" / "INV-0007"
	Date        time.Time
	Description string
	Total       Money

	// Bill fields.
	VendorID VendorID

	// Invoice fields. CustomerID may be empty when the customer is reached
	// through the project.
	CustomerID CustomerID

	ProjectID ProjectID

	// DirectBankAccountID marks a bill paid in full at creation, bypassing
	// the allocation table. Mutually exclusive with Allocations.
	DirectBankAccountID BankAccountID

	Notes []Note

	// Version is bumped on every allocation write against this obligation.
	// Concurrent writers racing past a stale pending-amount check are caught
	// by re-validation inside the store transaction.
	Version int64

	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	// Allocations is the eagerly-loaded allocation set, each with its
	// counter-party Settlement attached.
	Allocations []Allocation
}

// IsDeleted reports whether the obligation carries a tombstone.
func (o *Obligation) IsDeleted() bool { return o.DeletedAt != nil }

// IsDirectPaid reports whether the bill was settled directly at creation.
func (o *Obligation) IsDirectPaid() bool { return o.DirectBankAccountID != "" }

// =============================================================================
// SETTLEMENT - A recorded money movement (payment or income)
// =============================================================================

// SettlementKind distinguishes outgoing vendor payments from incoming
// customer receipts.
type SettlementKind string

const (
	SettlementPayment SettlementKind = "payment" // outgoing, vendor-directed
	SettlementIncome  SettlementKind = "income"  // incoming, customer-directed
)

type Settlement struct {
	ID     SettlementID
	OrgID  OrgID
	Kind   SettlementKind
	Number string
	Date   time.Time
	Amount Money

	// Payment fields.
	VendorID    VendorID
	PaymentMode string

	// Income fields. InvoiceID is the legacy direct-link path: an income
	// pointing at an invoice is consumed by it in full, with no allocation row.
	CustomerID   CustomerID
	InvoiceID    ObligationID
	ReceivedFrom string

	ProjectID     ProjectID
	BankAccountID BankAccountID

	Notes []Note

	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	// Allocations is the eagerly-loaded allocation set, each with its
	// counter-party Obligation attached.
	Allocations []Allocation
}

// IsDeleted reports whether the settlement carries a tombstone.
func (s *Settlement) IsDeleted() bool { return s.DeletedAt != nil }

// =============================================================================
// ALLOCATION - Directed amount-link between a Settlement and an Obligation
// =============================================================================

// Allocation links part of a Settlement's amount to an Obligation. Ownership
// is shared: either side may list it, and a user may delete it independently
// ("unlink"), returning the amount to both sides' unallocated pools.
type Allocation struct {
	ID           AllocationID
	OrgID        OrgID
	SettlementID SettlementID
	ObligationID ObligationID
	Amount       Money
	CreatedAt    time.Time

	// Counter-party records, populated on eager loads. Settlement is set when
	// the allocation was loaded from the obligation side and vice versa.
	Settlement *Settlement
	Obligation *Obligation
}

// =============================================================================
// NOTE - Append-only log entry
// =============================================================================

type Note struct {
	Content   string    `json:"content"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}
