/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Implements the full persistence surface of the reconciliation engine
  (obligations, settlements, allocations, master data) using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  obligations:   Bills and invoices, with a version column for race detection
  settlements:   Payments and income, including the legacy invoice_id backlink
  allocations:   Amount-links between settlements and obligations
  vendors, customers, projects, bank_accounts: Master data

ALLOCATION WRITE PATH:
  ReplaceAllocations and CreateSettlement run delete-then-insert inside a
  single database transaction. Every obligation touched by the plan is
  re-validated against its in-transaction pending amount; a cap that held on
  the caller's snapshot but fails here means another writer got in between,
  and the whole transaction rolls back with ledger.ErrConflict. Touched
  obligations get their version bumped so snapshot-based callers can detect
  staleness.

TENANCY:
  Every statement carries "org_id = ?" in its WHERE clause. A row outside the
  caller's org scans as sql.ErrNoRows and surfaces as ledger.ErrNotFound.

MONEY:
  Stored as INTEGER paise. No floats anywhere in the schema.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/recon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := recon.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - recon/service.go: The consumer
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/solarbooks/recon-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer anyway, and a pooled
	// ":memory:" database is per-connection with this driver.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Obligations: bills owed to vendors and invoices owed by customers.
	CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		number TEXT NOT NULL,
		date TEXT NOT NULL,
		description TEXT,
		total INTEGER NOT NULL,
		vendor_id TEXT,
		customer_id TEXT,
		project_id TEXT,
		direct_bank_account_id TEXT,
		notes_json TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		deleted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Candidate lookup for the allocation editor (hot path)
	CREATE INDEX IF NOT EXISTS idx_obligations_org_vendor
		ON obligations(org_id, vendor_id) WHERE vendor_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_obligations_org_kind
		ON obligations(org_id, kind);
	CREATE INDEX IF NOT EXISTS idx_obligations_org_project
		ON obligations(org_id, project_id) WHERE project_id IS NOT NULL;

	-- Settlements: vendor payments and customer income.
	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		number TEXT NOT NULL,
		date TEXT NOT NULL,
		amount INTEGER NOT NULL,
		vendor_id TEXT,
		payment_mode TEXT,
		customer_id TEXT,
		invoice_id TEXT,
		received_from TEXT,
		project_id TEXT,
		bank_account_id TEXT,
		notes_json TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_org_vendor
		ON settlements(org_id, vendor_id) WHERE vendor_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_settlements_org_kind
		ON settlements(org_id, kind);
	-- Legacy direct backlink: income consumed whole by one invoice
	CREATE INDEX IF NOT EXISTS idx_settlements_invoice
		ON settlements(org_id, invoice_id) WHERE invoice_id IS NOT NULL;

	-- Allocations: settlement-to-obligation amount links.
	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		settlement_id TEXT NOT NULL,
		obligation_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(settlement_id, obligation_id)
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_settlement
		ON allocations(settlement_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_obligation
		ON allocations(obligation_id);

	-- Master data.
	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT,
		gst_number TEXT,
		notes_json TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		gst_number TEXT,
		notes_json TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		customer_id TEXT,
		code TEXT NOT NULL,
		deal_value INTEGER NOT NULL DEFAULT 0,
		status TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bank_accounts (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		account_name TEXT NOT NULL,
		bank_name TEXT,
		account_number TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// OBLIGATION STORE
// =============================================================================

const obligationCols = `id, org_id, kind, number, date, description, total,
	vendor_id, customer_id, project_id, direct_bank_account_id,
	notes_json, version, deleted_at, created_at, updated_at`

// CreateObligation inserts a new obligation.
func (s *Store) CreateObligation(ctx context.Context, o *ledger.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Version == 0 {
		o.Version = 1
	}

	query := `
		INSERT INTO obligations
		(` + obligationCols + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.OrgID, o.Kind, o.Number,
		o.Date.Format(time.RFC3339),
		o.Description,
		int64(o.Total),
		nullString(string(o.VendorID)),
		nullString(string(o.CustomerID)),
		nullString(string(o.ProjectID)),
		nullString(string(o.DirectBankAccountID)),
		notesJSON(o.Notes),
		o.Version,
		nullTime(o.DeletedAt),
		o.CreatedAt.Format(time.RFC3339),
		o.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert obligation: %w", err)
	}
	return nil
}

// GetObligation returns an obligation with its allocation set, each allocation
// carrying its counter-party settlement.
func (s *Store) GetObligation(ctx context.Context, orgID ledger.OrgID, id ledger.ObligationID) (*ledger.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getObligation(ctx, s.db, orgID, id)
}

func (s *Store) getObligation(ctx context.Context, db querier, orgID ledger.OrgID, id ledger.ObligationID) (*ledger.Obligation, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+obligationCols+` FROM obligations WHERE org_id = ? AND id = ?`,
		orgID, id)

	o, err := scanObligation(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	o.Allocations, err = s.loadObligationAllocations(ctx, db, orgID, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListObligations returns obligations matching the filter with allocations
// loaded, newest first.
func (s *Store) ListObligations(ctx context.Context, orgID ledger.OrgID, f ledger.ObligationFilter) ([]*ledger.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + obligationCols + ` FROM obligations WHERE org_id = ?`
	args := []any{orgID}

	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if f.VendorID != "" {
		query += ` AND vendor_id = ?`
		args = append(args, f.VendorID)
	}
	if f.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, f.CustomerID)
	}
	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if !f.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY date DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query obligations: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, o := range out {
		o.Allocations, err = s.loadObligationAllocations(ctx, s.db, orgID, o.ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateObligation rewrites the mutable fields of an existing obligation.
// Kind, org and the direct-paid marker are fixed at creation.
func (s *Store) UpdateObligation(ctx context.Context, o *ledger.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE obligations SET
			number = ?, date = ?, description = ?, total = ?,
			vendor_id = ?, customer_id = ?, project_id = ?,
			notes_json = ?, updated_at = ?
		WHERE org_id = ? AND id = ? AND deleted_at IS NULL
	`

	res, err := s.db.ExecContext(ctx, query,
		o.Number,
		o.Date.Format(time.RFC3339),
		o.Description,
		int64(o.Total),
		nullString(string(o.VendorID)),
		nullString(string(o.CustomerID)),
		nullString(string(o.ProjectID)),
		notesJSON(o.Notes),
		o.UpdatedAt.Format(time.RFC3339),
		o.OrgID, o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update obligation: %w", err)
	}
	return requireRow(res)
}

// SoftDeleteObligation stamps the tombstone. Allocations stay in place.
func (s *Store) SoftDeleteObligation(ctx context.Context, orgID ledger.OrgID, id ledger.ObligationID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE obligations SET deleted_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND deleted_at IS NULL`,
		at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339), orgID, id)
	if err != nil {
		return fmt.Errorf("failed to delete obligation: %w", err)
	}
	return requireRow(res)
}

func scanObligation(row interface{ Scan(dest ...any) error }) (*ledger.Obligation, error) {
	var (
		o                           ledger.Obligation
		date, createdAt, updatedAt  string
		description                 sql.NullString
		vendorID, customerID        sql.NullString
		projectID, directBank       sql.NullString
		notes, deletedAt            sql.NullString
		total                       int64
	)

	err := row.Scan(
		&o.ID, &o.OrgID, &o.Kind, &o.Number, &date, &description, &total,
		&vendorID, &customerID, &projectID, &directBank,
		&notes, &o.Version, &deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Date, _ = time.Parse(time.RFC3339, date)
	o.Description = description.String
	o.Total = ledger.Money(total)
	o.VendorID = ledger.VendorID(vendorID.String)
	o.CustomerID = ledger.CustomerID(customerID.String)
	o.ProjectID = ledger.ProjectID(projectID.String)
	o.DirectBankAccountID = ledger.BankAccountID(directBank.String)
	o.Notes = parseNotes(notes)
	o.DeletedAt = parseNullTime(deletedAt)
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	o.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &o, nil
}

// loadObligationAllocations loads the obligation-side allocation set with each
// counter-party settlement attached.
func (s *Store) loadObligationAllocations(ctx context.Context, db querier, orgID ledger.OrgID, id ledger.ObligationID) ([]ledger.Allocation, error) {
	query := `
		SELECT a.id, a.org_id, a.settlement_id, a.obligation_id, a.amount, a.created_at,
		       s.kind, s.number, s.date, s.amount, s.vendor_id, s.payment_mode, s.deleted_at
		FROM allocations a
		JOIN settlements s ON s.id = a.settlement_id
		WHERE a.org_id = ? AND a.obligation_id = ?
		ORDER BY a.created_at ASC, a.id ASC
	`

	rows, err := db.QueryContext(ctx, query, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocs []ledger.Allocation
	for rows.Next() {
		var (
			a                      ledger.Allocation
			createdAt, sDate       string
			amount, sAmount        int64
			st                     ledger.Settlement
			sVendor, sMode, sDel   sql.NullString
		)
		if err := rows.Scan(
			&a.ID, &a.OrgID, &a.SettlementID, &a.ObligationID, &amount, &createdAt,
			&st.Kind, &st.Number, &sDate, &sAmount, &sVendor, &sMode, &sDel,
		); err != nil {
			return nil, err
		}
		a.Amount = ledger.Money(amount)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		st.ID = a.SettlementID
		st.OrgID = a.OrgID
		st.Date, _ = time.Parse(time.RFC3339, sDate)
		st.Amount = ledger.Money(sAmount)
		st.VendorID = ledger.VendorID(sVendor.String)
		st.PaymentMode = sMode.String
		st.DeletedAt = parseNullTime(sDel)
		a.Settlement = &st

		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// =============================================================================
// SETTLEMENT STORE
// =============================================================================

const settlementCols = `id, org_id, kind, number, date, amount,
	vendor_id, payment_mode, customer_id, invoice_id, received_from,
	project_id, bank_account_id, notes_json, deleted_at, created_at, updated_at`

// CreateSettlement inserts the settlement and, if given, its initial
// allocation batch in the same database transaction.
func (s *Store) CreateSettlement(ctx context.Context, st *ledger.Settlement, initial []ledger.PlanEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO settlements
		(` + settlementCols + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlTx.ExecContext(ctx, query,
		st.ID, st.OrgID, st.Kind, st.Number,
		st.Date.Format(time.RFC3339),
		int64(st.Amount),
		nullString(string(st.VendorID)),
		nullString(st.PaymentMode),
		nullString(string(st.CustomerID)),
		nullString(string(st.InvoiceID)),
		nullString(st.ReceivedFrom),
		nullString(string(st.ProjectID)),
		nullString(string(st.BankAccountID)),
		notesJSON(st.Notes),
		nullTime(st.DeletedAt),
		st.CreatedAt.Format(time.RFC3339),
		st.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	if len(initial) > 0 {
		if err := s.insertPlan(ctx, sqlTx, st.OrgID, st.ID, st.VendorID, st.Amount, initial); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// GetSettlement returns a settlement with its allocation set, each allocation
// carrying its counter-party obligation.
func (s *Store) GetSettlement(ctx context.Context, orgID ledger.OrgID, id ledger.SettlementID) (*ledger.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getSettlement(ctx, s.db, orgID, id)
}

func (s *Store) getSettlement(ctx context.Context, db querier, orgID ledger.OrgID, id ledger.SettlementID) (*ledger.Settlement, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+settlementCols+` FROM settlements WHERE org_id = ? AND id = ?`,
		orgID, id)

	st, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	st.Allocations, err = s.loadSettlementAllocations(ctx, db, orgID, st.ID)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ListSettlements returns settlements matching the filter with allocations
// loaded, newest first.
func (s *Store) ListSettlements(ctx context.Context, orgID ledger.OrgID, f ledger.SettlementFilter) ([]*ledger.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + settlementCols + ` FROM settlements WHERE org_id = ?`
	args := []any{orgID}

	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if f.VendorID != "" {
		query += ` AND vendor_id = ?`
		args = append(args, f.VendorID)
	}
	if f.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, f.CustomerID)
	}
	if f.InvoiceID != "" {
		query += ` AND invoice_id = ?`
		args = append(args, f.InvoiceID)
	}
	if f.UnlinkedOnly {
		query += ` AND invoice_id IS NULL`
	}
	if !f.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY date DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Settlement
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, st := range out {
		st.Allocations, err = s.loadSettlementAllocations(ctx, s.db, orgID, st.ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateSettlement rewrites the mutable fields of an existing settlement.
// Kind and org are fixed; party fields are written as given (the service
// enforces party immutability once allocations exist).
func (s *Store) UpdateSettlement(ctx context.Context, st *ledger.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE settlements SET
			number = ?, date = ?, amount = ?,
			vendor_id = ?, payment_mode = ?,
			customer_id = ?, received_from = ?,
			project_id = ?, bank_account_id = ?,
			notes_json = ?, updated_at = ?
		WHERE org_id = ? AND id = ? AND deleted_at IS NULL
	`

	res, err := s.db.ExecContext(ctx, query,
		st.Number,
		st.Date.Format(time.RFC3339),
		int64(st.Amount),
		nullString(string(st.VendorID)),
		nullString(st.PaymentMode),
		nullString(string(st.CustomerID)),
		nullString(st.ReceivedFrom),
		nullString(string(st.ProjectID)),
		nullString(string(st.BankAccountID)),
		notesJSON(st.Notes),
		st.UpdatedAt.Format(time.RFC3339),
		st.OrgID, st.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	return requireRow(res)
}

// SetIncomeInvoice sets or clears (empty invoiceID) the legacy direct invoice
// backlink on an income record.
func (s *Store) SetIncomeInvoice(ctx context.Context, orgID ledger.OrgID, incomeID ledger.SettlementID, invoiceID ledger.ObligationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET invoice_id = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND kind = ? AND deleted_at IS NULL`,
		nullString(string(invoiceID)),
		time.Now().UTC().Format(time.RFC3339),
		orgID, incomeID, ledger.SettlementIncome)
	if err != nil {
		return fmt.Errorf("failed to set income backlink: %w", err)
	}
	return requireRow(res)
}

// SoftDeleteSettlement stamps the tombstone. Allocations stay in place.
func (s *Store) SoftDeleteSettlement(ctx context.Context, orgID ledger.OrgID, id ledger.SettlementID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET deleted_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND deleted_at IS NULL`,
		at.UTC().Format(time.RFC3339), at.UTC().Format(time.RFC3339), orgID, id)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	return requireRow(res)
}

func scanSettlement(row interface{ Scan(dest ...any) error }) (*ledger.Settlement, error) {
	var (
		st                          ledger.Settlement
		date, createdAt, updatedAt  string
		amount                      int64
		vendorID, paymentMode       sql.NullString
		customerID, invoiceID       sql.NullString
		receivedFrom, projectID     sql.NullString
		bankAccountID, notes        sql.NullString
		deletedAt                   sql.NullString
	)

	err := row.Scan(
		&st.ID, &st.OrgID, &st.Kind, &st.Number, &date, &amount,
		&vendorID, &paymentMode, &customerID, &invoiceID, &receivedFrom,
		&projectID, &bankAccountID, &notes, &deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	st.Date, _ = time.Parse(time.RFC3339, date)
	st.Amount = ledger.Money(amount)
	st.VendorID = ledger.VendorID(vendorID.String)
	st.PaymentMode = paymentMode.String
	st.CustomerID = ledger.CustomerID(customerID.String)
	st.InvoiceID = ledger.ObligationID(invoiceID.String)
	st.ReceivedFrom = receivedFrom.String
	st.ProjectID = ledger.ProjectID(projectID.String)
	st.BankAccountID = ledger.BankAccountID(bankAccountID.String)
	st.Notes = parseNotes(notes)
	st.DeletedAt = parseNullTime(deletedAt)
	st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	st.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &st, nil
}

// loadSettlementAllocations loads the settlement-side allocation set with each
// counter-party obligation attached.
func (s *Store) loadSettlementAllocations(ctx context.Context, db querier, orgID ledger.OrgID, id ledger.SettlementID) ([]ledger.Allocation, error) {
	query := `
		SELECT a.id, a.org_id, a.settlement_id, a.obligation_id, a.amount, a.created_at,
		       o.kind, o.number, o.date, o.total, o.vendor_id, o.direct_bank_account_id,
		       o.version, o.deleted_at
		FROM allocations a
		JOIN obligations o ON o.id = a.obligation_id
		WHERE a.org_id = ? AND a.settlement_id = ?
		ORDER BY a.created_at ASC, a.id ASC
	`

	rows, err := db.QueryContext(ctx, query, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocs []ledger.Allocation
	for rows.Next() {
		var (
			a                     ledger.Allocation
			createdAt, oDate      string
			amount, total         int64
			ob                    ledger.Obligation
			oVendor, oBank, oDel  sql.NullString
		)
		if err := rows.Scan(
			&a.ID, &a.OrgID, &a.SettlementID, &a.ObligationID, &amount, &createdAt,
			&ob.Kind, &ob.Number, &oDate, &total, &oVendor, &oBank, &ob.Version, &oDel,
		); err != nil {
			return nil, err
		}
		a.Amount = ledger.Money(amount)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		ob.ID = a.ObligationID
		ob.OrgID = a.OrgID
		ob.Date, _ = time.Parse(time.RFC3339, oDate)
		ob.Total = ledger.Money(total)
		ob.VendorID = ledger.VendorID(oVendor.String)
		ob.DirectBankAccountID = ledger.BankAccountID(oBank.String)
		ob.DeletedAt = parseNullTime(oDel)
		a.Obligation = &ob

		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// =============================================================================
// ALLOCATION STORE - transactional writes
// =============================================================================

// ReplaceAllocations atomically replaces a settlement's full allocation set.
func (s *Store) ReplaceAllocations(ctx context.Context, orgID ledger.OrgID, settlementID ledger.SettlementID, plan []ledger.PlanEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var (
		amount    int64
		vendorID  sql.NullString
		deletedAt sql.NullString
	)
	err = sqlTx.QueryRowContext(ctx,
		`SELECT amount, vendor_id, deleted_at FROM settlements WHERE org_id = ? AND id = ?`,
		orgID, settlementID,
	).Scan(&amount, &vendorID, &deletedAt)
	if err == sql.ErrNoRows {
		return ledger.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load settlement: %w", err)
	}
	if deletedAt.Valid {
		return ledger.ErrNotFound
	}

	// Delete-then-insert. The old rows vanish first so the in-tx cap checks
	// see only other settlements' allocations.
	if _, err := sqlTx.ExecContext(ctx,
		`DELETE FROM allocations WHERE org_id = ? AND settlement_id = ?`,
		orgID, settlementID); err != nil {
		return fmt.Errorf("failed to clear allocations: %w", err)
	}

	if err := s.insertPlan(ctx, sqlTx, orgID, settlementID,
		ledger.VendorID(vendorID.String), ledger.Money(amount), plan); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// insertPlan inserts a validated plan's allocation rows, re-checking every cap
// against the in-transaction state. The caller validated against a snapshot;
// a check that fails here means a concurrent writer won the race, so the
// failure surfaces as ErrConflict rather than ValidationError.
func (s *Store) insertPlan(ctx context.Context, sqlTx *sql.Tx, orgID ledger.OrgID, settlementID ledger.SettlementID, vendorID ledger.VendorID, settlementAmount ledger.Money, plan []ledger.PlanEntry) error {
	var total ledger.Money
	now := time.Now().UTC()

	for _, e := range plan {
		if e.Amount <= 0 {
			return ledger.Validationf(ledger.CodeAmountNotPositive,
				"allocation amount must be positive, got %s", e.Amount)
		}

		var (
			obTotal    int64
			obVendor   sql.NullString
			directBank sql.NullString
			obDeleted  sql.NullString
		)
		err := sqlTx.QueryRowContext(ctx,
			`SELECT total, vendor_id, direct_bank_account_id, deleted_at
			 FROM obligations WHERE org_id = ? AND id = ?`,
			orgID, e.ObligationID,
		).Scan(&obTotal, &obVendor, &directBank, &obDeleted)
		if err == sql.ErrNoRows {
			return ledger.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load obligation: %w", err)
		}
		if obDeleted.Valid || (directBank.Valid && directBank.String != "") {
			// Valid on the caller's snapshot, not anymore.
			return ledger.ErrConflict
		}
		if obVendor.String != string(vendorID) {
			// Vendor edited between snapshot validation and this write.
			return ledger.ErrConflict
		}

		// Tombstoned settlements release their allocations' space.
		var paidByOthers int64
		err = sqlTx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(a.amount), 0)
			 FROM allocations a
			 JOIN settlements s ON s.id = a.settlement_id
			 WHERE a.org_id = ? AND a.obligation_id = ? AND a.settlement_id != ?
			   AND s.deleted_at IS NULL`,
			orgID, e.ObligationID, settlementID,
		).Scan(&paidByOthers)
		if err != nil {
			return fmt.Errorf("failed to sum allocations: %w", err)
		}

		if e.Amount > ledger.Money(obTotal-paidByOthers) {
			return ledger.ErrConflict
		}

		_, err = sqlTx.ExecContext(ctx,
			`INSERT INTO allocations (id, org_id, settlement_id, obligation_id, amount, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), orgID, settlementID, e.ObligationID,
			int64(e.Amount), now.Format(time.RFC3339))
		if err != nil {
			if isUniqueConstraintError(err) {
				return ledger.ErrConflict
			}
			return fmt.Errorf("failed to insert allocation: %w", err)
		}

		// Bump the version so snapshot-holders notice the write.
		if _, err := sqlTx.ExecContext(ctx,
			`UPDATE obligations SET version = version + 1, updated_at = ?
			 WHERE org_id = ? AND id = ?`,
			now.Format(time.RFC3339), orgID, e.ObligationID); err != nil {
			return fmt.Errorf("failed to bump obligation version: %w", err)
		}

		total = total.Add(e.Amount)
	}

	if total > settlementAmount {
		return ledger.ErrConflict
	}
	return nil
}

// DeleteAllocation removes one allocation row ("unlink") and bumps the
// obligation's version.
func (s *Store) DeleteAllocation(ctx context.Context, orgID ledger.OrgID, id ledger.AllocationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var obligationID string
	err = sqlTx.QueryRowContext(ctx,
		`SELECT obligation_id FROM allocations WHERE org_id = ? AND id = ?`,
		orgID, id,
	).Scan(&obligationID)
	if err == sql.ErrNoRows {
		return ledger.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load allocation: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx,
		`DELETE FROM allocations WHERE org_id = ? AND id = ?`,
		orgID, id); err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx,
		`UPDATE obligations SET version = version + 1, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		time.Now().UTC().Format(time.RFC3339), orgID, obligationID); err != nil {
		return fmt.Errorf("failed to bump obligation version: %w", err)
	}

	return sqlTx.Commit()
}

// =============================================================================
// MASTER DATA STORE
// =============================================================================

// SaveVendor inserts or updates a vendor.
func (s *Store) SaveVendor(ctx context.Context, v *ledger.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO vendors (id, org_id, name, category, gst_number, notes_json, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			gst_number = excluded.gst_number,
			notes_json = excluded.notes_json,
			deleted_at = excluded.deleted_at
	`

	_, err := s.db.ExecContext(ctx, query,
		v.ID, v.OrgID, v.Name,
		nullString(v.Category), nullString(v.GSTNumber),
		notesJSON(v.Notes), nullTime(v.DeletedAt),
		v.CreatedAt.Format(time.RFC3339))
	return err
}

// GetVendor retrieves a vendor by ID.
func (s *Store) GetVendor(ctx context.Context, orgID ledger.OrgID, id ledger.VendorID) (*ledger.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		v                   ledger.Vendor
		category, gst       sql.NullString
		notes, deletedAt    sql.NullString
		createdAt           string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, name, category, gst_number, notes_json, deleted_at, created_at
		 FROM vendors WHERE org_id = ? AND id = ?`,
		orgID, id,
	).Scan(&v.ID, &v.OrgID, &v.Name, &category, &gst, &notes, &deletedAt, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	v.Category = category.String
	v.GSTNumber = gst.String
	v.Notes = parseNotes(notes)
	v.DeletedAt = parseNullTime(deletedAt)
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &v, nil
}

// ListVendors returns all non-deleted vendors, alphabetical.
func (s *Store) ListVendors(ctx context.Context, orgID ledger.OrgID) ([]*ledger.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, name, category, gst_number, notes_json, deleted_at, created_at
		 FROM vendors WHERE org_id = ? AND deleted_at IS NULL ORDER BY name`,
		orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Vendor
	for rows.Next() {
		var (
			v                ledger.Vendor
			category, gst    sql.NullString
			notes, deletedAt sql.NullString
			createdAt        string
		)
		if err := rows.Scan(&v.ID, &v.OrgID, &v.Name, &category, &gst, &notes, &deletedAt, &createdAt); err != nil {
			return nil, err
		}
		v.Category = category.String
		v.GSTNumber = gst.String
		v.Notes = parseNotes(notes)
		v.DeletedAt = parseNullTime(deletedAt)
		v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &v)
	}
	return out, rows.Err()
}

// SaveCustomer inserts or updates a customer.
func (s *Store) SaveCustomer(ctx context.Context, c *ledger.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO customers (id, org_id, name, email, phone, gst_number, notes_json, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			gst_number = excluded.gst_number,
			notes_json = excluded.notes_json,
			deleted_at = excluded.deleted_at
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.OrgID, c.Name,
		nullString(c.Email), nullString(c.Phone), nullString(c.GSTNumber),
		notesJSON(c.Notes), nullTime(c.DeletedAt),
		c.CreatedAt.Format(time.RFC3339))
	return err
}

// GetCustomer retrieves a customer by ID.
func (s *Store) GetCustomer(ctx context.Context, orgID ledger.OrgID, id ledger.CustomerID) (*ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c                    ledger.Customer
		email, phone, gst    sql.NullString
		notes, deletedAt     sql.NullString
		createdAt            string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, name, email, phone, gst_number, notes_json, deleted_at, created_at
		 FROM customers WHERE org_id = ? AND id = ?`,
		orgID, id,
	).Scan(&c.ID, &c.OrgID, &c.Name, &email, &phone, &gst, &notes, &deletedAt, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Email = email.String
	c.Phone = phone.String
	c.GSTNumber = gst.String
	c.Notes = parseNotes(notes)
	c.DeletedAt = parseNullTime(deletedAt)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// ListCustomers returns all non-deleted customers, alphabetical.
func (s *Store) ListCustomers(ctx context.Context, orgID ledger.OrgID) ([]*ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, name, email, phone, gst_number, notes_json, deleted_at, created_at
		 FROM customers WHERE org_id = ? AND deleted_at IS NULL ORDER BY name`,
		orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Customer
	for rows.Next() {
		var (
			c                 ledger.Customer
			email, phone, gst sql.NullString
			notes, deletedAt  sql.NullString
			createdAt         string
		)
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &email, &phone, &gst, &notes, &deletedAt, &createdAt); err != nil {
			return nil, err
		}
		c.Email = email.String
		c.Phone = phone.String
		c.GSTNumber = gst.String
		c.Notes = parseNotes(notes)
		c.DeletedAt = parseNullTime(deletedAt)
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// SaveProject inserts or updates a project.
func (s *Store) SaveProject(ctx context.Context, p *ledger.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO projects (id, org_id, customer_id, code, deal_value, status, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			code = excluded.code,
			deal_value = excluded.deal_value,
			status = excluded.status,
			deleted_at = excluded.deleted_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.OrgID, nullString(string(p.CustomerID)), p.Code,
		int64(p.DealValue), nullString(p.Status),
		nullTime(p.DeletedAt), p.CreatedAt.Format(time.RFC3339))
	return err
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, orgID ledger.OrgID, id ledger.ProjectID) (*ledger.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                    ledger.Project
		customerID, status   sql.NullString
		deletedAt            sql.NullString
		dealValue            int64
		createdAt            string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, customer_id, code, deal_value, status, deleted_at, created_at
		 FROM projects WHERE org_id = ? AND id = ?`,
		orgID, id,
	).Scan(&p.ID, &p.OrgID, &customerID, &p.Code, &dealValue, &status, &deletedAt, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.CustomerID = ledger.CustomerID(customerID.String)
	p.DealValue = ledger.Money(dealValue)
	p.Status = status.String
	p.DeletedAt = parseNullTime(deletedAt)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// ListProjects returns all non-deleted projects, newest first.
func (s *Store) ListProjects(ctx context.Context, orgID ledger.OrgID) ([]*ledger.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, customer_id, code, deal_value, status, deleted_at, created_at
		 FROM projects WHERE org_id = ? AND deleted_at IS NULL ORDER BY created_at DESC`,
		orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Project
	for rows.Next() {
		var (
			p                  ledger.Project
			customerID, status sql.NullString
			deletedAt          sql.NullString
			dealValue          int64
			createdAt          string
		)
		if err := rows.Scan(&p.ID, &p.OrgID, &customerID, &p.Code, &dealValue, &status, &deletedAt, &createdAt); err != nil {
			return nil, err
		}
		p.CustomerID = ledger.CustomerID(customerID.String)
		p.DealValue = ledger.Money(dealValue)
		p.Status = status.String
		p.DeletedAt = parseNullTime(deletedAt)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SaveBankAccount inserts or updates a bank account.
func (s *Store) SaveBankAccount(ctx context.Context, b *ledger.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	query := `
		INSERT INTO bank_accounts (id, org_id, account_name, bank_name, account_number, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_name = excluded.account_name,
			bank_name = excluded.bank_name,
			account_number = excluded.account_number,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.OrgID, b.AccountName,
		nullString(b.BankName), nullString(b.AccountNumber),
		nullTime(b.DeletedAt),
		b.CreatedAt.Format(time.RFC3339), b.UpdatedAt.Format(time.RFC3339))
	return err
}

// GetBankAccount retrieves a bank account by ID.
func (s *Store) GetBankAccount(ctx context.Context, orgID ledger.OrgID, id ledger.BankAccountID) (*ledger.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		b                     ledger.BankAccount
		bankName, accountNum  sql.NullString
		deletedAt             sql.NullString
		createdAt, updatedAt  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, account_name, bank_name, account_number, deleted_at, created_at, updated_at
		 FROM bank_accounts WHERE org_id = ? AND id = ?`,
		orgID, id,
	).Scan(&b.ID, &b.OrgID, &b.AccountName, &bankName, &accountNum, &deletedAt, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	b.BankName = bankName.String
	b.AccountNumber = accountNum.String
	b.DeletedAt = parseNullTime(deletedAt)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

// ListBankAccounts returns all non-deleted bank accounts, alphabetical.
func (s *Store) ListBankAccounts(ctx context.Context, orgID ledger.OrgID) ([]*ledger.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, account_name, bank_name, account_number, deleted_at, created_at, updated_at
		 FROM bank_accounts WHERE org_id = ? AND deleted_at IS NULL ORDER BY account_name`,
		orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.BankAccount
	for rows.Next() {
		var (
			b                    ledger.BankAccount
			bankName, accountNum sql.NullString
			deletedAt            sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&b.ID, &b.OrgID, &b.AccountName, &bankName, &accountNum, &deletedAt, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		b.BankName = bankName.String
		b.AccountNumber = accountNum.String
		b.DeletedAt = parseNullTime(deletedAt)
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, &b)
	}
	return out, rows.Err()
}

// TouchBankAccount bumps UpdatedAt for downstream balance-cache invalidation.
func (s *Store) TouchBankAccount(ctx context.Context, orgID ledger.OrgID, id ledger.BankAccountID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_accounts SET updated_at = ? WHERE org_id = ? AND id = ?`,
		at.UTC().Format(time.RFC3339), orgID, id)
	if err != nil {
		return fmt.Errorf("failed to touch bank account: %w", err)
	}
	return requireRow(res)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"allocations", "settlements", "obligations",
		"vendors", "customers", "projects", "bank_accounts"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func notesJSON(notes []ledger.Note) sql.NullString {
	if len(notes) == 0 {
		return sql.NullString{}
	}
	b, _ := json.Marshal(notes)
	return sql.NullString{String: string(b), Valid: true}
}

func parseNotes(s sql.NullString) []ledger.Note {
	if !s.Valid || s.String == "" {
		return nil
	}
	var notes []ledger.Note
	json.Unmarshal([]byte(s.String), &notes)
	return notes
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
