/*
store.go - Persistence interfaces for the reconciliation engine

PURPOSE:
  Defines the contract between the domain logic and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  ObligationStore: Bills and invoices with eagerly-loaded allocations
  SettlementStore: Payments and income, settlement-side allocation loads
  AllocationStore: Allocation writes, including the transactional replace
  MasterStore:     Vendors, customers, projects, bank accounts (read-mostly)

TENANCY:
  Every method takes an explicit OrgID. A lookup that resolves outside the
  caller's org returns ledger.ErrNotFound, indistinguishable from a missing
  row.

WRITE GUARANTEES:
  - CreateSettlement inserts the settlement and its initial allocation batch
    in one database transaction; a failed batch rolls back the settlement.
  - ReplaceAllocations is delete-then-insert inside one transaction, with the
    obligation caps re-validated in-tx. A writer racing past a stale snapshot
    check gets ledger.ErrConflict and the transaction rolls back.
  - Soft deletes stamp DeletedAt and never cascade to allocation rows.

SEE ALSO:
  - store/sqlite/sqlite.go: Production implementation
  - recon/service.go: The only consumer
*/
package ledger

import (
	"context"
	"time"
)

// ObligationFilter narrows obligation list queries. Zero values mean "any".
type ObligationFilter struct {
	Kind           ObligationKind
	VendorID       VendorID
	CustomerID     CustomerID
	ProjectID      ProjectID
	IncludeDeleted bool
}

// SettlementFilter narrows settlement list queries. Zero values mean "any".
type SettlementFilter struct {
	Kind           SettlementKind
	VendorID       VendorID
	CustomerID     CustomerID
	InvoiceID      ObligationID
	UnlinkedOnly   bool // income with no invoice backlink
	IncludeDeleted bool
}

// ObligationStore persists bills and invoices.
type ObligationStore interface {
	// CreateObligation inserts a new obligation.
	CreateObligation(ctx context.Context, o *Obligation) error

	// GetObligation returns an obligation with its allocation set, each
	// allocation carrying its counter-party settlement.
	GetObligation(ctx context.Context, orgID OrgID, id ObligationID) (*Obligation, error)

	// ListObligations returns obligations matching the filter with
	// allocations loaded, newest first.
	ListObligations(ctx context.Context, orgID OrgID, f ObligationFilter) ([]*Obligation, error)

	// UpdateObligation rewrites the mutable fields (date, description,
	// total, project, notes) of an existing obligation.
	UpdateObligation(ctx context.Context, o *Obligation) error

	// SoftDeleteObligation stamps the tombstone. Allocations stay in place.
	SoftDeleteObligation(ctx context.Context, orgID OrgID, id ObligationID, at time.Time) error
}

// SettlementStore persists payments and income.
type SettlementStore interface {
	// CreateSettlement inserts the settlement and, if given, its initial
	// allocation batch in the same database transaction.
	CreateSettlement(ctx context.Context, s *Settlement, initial []PlanEntry) error

	// GetSettlement returns a settlement with its allocation set, each
	// allocation carrying its counter-party obligation.
	GetSettlement(ctx context.Context, orgID OrgID, id SettlementID) (*Settlement, error)

	// ListSettlements returns settlements matching the filter with
	// allocations loaded, newest first.
	ListSettlements(ctx context.Context, orgID OrgID, f SettlementFilter) ([]*Settlement, error)

	// UpdateSettlement rewrites the mutable fields of an existing settlement.
	UpdateSettlement(ctx context.Context, s *Settlement) error

	// SetIncomeInvoice sets or clears (empty invoiceID) the legacy direct
	// invoice backlink on an income record.
	SetIncomeInvoice(ctx context.Context, orgID OrgID, incomeID SettlementID, invoiceID ObligationID) error

	// SoftDeleteSettlement stamps the tombstone. Allocations stay in place.
	SoftDeleteSettlement(ctx context.Context, orgID OrgID, id SettlementID, at time.Time) error
}

// AllocationStore persists allocation links.
type AllocationStore interface {
	// ReplaceAllocations atomically replaces a settlement's full allocation
	// set with the given plan. Caps on the settlement and every touched
	// obligation are re-validated inside the transaction; a violation that
	// appears only in-tx (the caller's snapshot was stale) returns
	// ErrConflict. Obligation versions are bumped on every touched row.
	ReplaceAllocations(ctx context.Context, orgID OrgID, settlementID SettlementID, plan []PlanEntry) error

	// DeleteAllocation removes one allocation row ("unlink").
	DeleteAllocation(ctx context.Context, orgID OrgID, id AllocationID) error
}

// Store is the full persistence surface the recon service depends on.
type Store interface {
	ObligationStore
	SettlementStore
	AllocationStore
	MasterStore
}

// =============================================================================
// MASTER DATA - boundary contract, read-mostly
// =============================================================================

// Vendor is a payee the org buys from.
type Vendor struct {
	ID        VendorID
	OrgID     OrgID
	Name      string
	Category  string
	GSTNumber string
	Notes     []Note
	DeletedAt *time.Time
	CreatedAt time.Time
}

// Customer is a payer the org sells to.
type Customer struct {
	ID        CustomerID
	OrgID     OrgID
	Name      string
	Email     string
	Phone     string
	GSTNumber string
	Notes     []Note
	DeletedAt *time.Time
	CreatedAt time.Time
}

// Project ties obligations and settlements to a customer installation.
type Project struct {
	ID         ProjectID
	OrgID      OrgID
	CustomerID CustomerID
	Code       string
	DealValue  Money
	Status     string
	DeletedAt  *time.Time
	CreatedAt  time.Time
}

// BankAccount is referenced by settlements and direct-paid bills. Its running
// balance is maintained by the master-data store's own triggers, not by this
// engine; UpdatedAt doubles as the cache-invalidation signal after settlement
// writes.
type BankAccount struct {
	ID            BankAccountID
	OrgID         OrgID
	AccountName   string
	BankName      string
	AccountNumber string
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MasterStore persists the master-data records the engine reads identity and
// display names from.
type MasterStore interface {
	SaveVendor(ctx context.Context, v *Vendor) error
	GetVendor(ctx context.Context, orgID OrgID, id VendorID) (*Vendor, error)
	ListVendors(ctx context.Context, orgID OrgID) ([]*Vendor, error)

	SaveCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, orgID OrgID, id CustomerID) (*Customer, error)
	ListCustomers(ctx context.Context, orgID OrgID) ([]*Customer, error)

	SaveProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, orgID OrgID, id ProjectID) (*Project, error)
	ListProjects(ctx context.Context, orgID OrgID) ([]*Project, error)

	SaveBankAccount(ctx context.Context, b *BankAccount) error
	GetBankAccount(ctx context.Context, orgID OrgID, id BankAccountID) (*BankAccount, error)
	ListBankAccounts(ctx context.Context, orgID OrgID) ([]*BankAccount, error)

	// TouchBankAccount bumps UpdatedAt so cached balance views downstream
	// know to refresh after a settlement or direct-paid bill write.
	TouchBankAccount(ctx context.Context, orgID OrgID, id BankAccountID, at time.Time) error
}
