/*
Package recon implements the reconciliation service: the transactional
operations that link settlements to obligations.

PURPOSE:
  The Service sits between the HTTP layer and storage. It validates every
  operation against a fresh snapshot using the pure ledger functions, then
  hands the write to the store, which re-validates inside its transaction.
  A precondition that fails on the snapshot is a ValidationError; one that
  fails only in-tx (another writer got in between) is a Conflict.

OPERATIONS (service.go):
  RecordObligation / UpdateObligation / SoftDeleteObligation
  RecordSettlement / UpdateSettlement / SoftDeleteSettlement
  ReplaceAllocations / AutoAllocate / DeleteAllocation
  LinkIncomeToInvoice / UnlinkIncomeFromInvoice
  AppendNote

DERIVED QUERIES (queries.go):
  Obligation and settlement views with computed balances, eligible bill
  lists, unlinked income, vendor statements.

SEE ALSO:
  - ledger: Pure planning and balance functions
  - store/sqlite: The transactional store
  - api: HTTP translation
*/
package recon

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solarbooks/recon-engine/ledger"
)

// Service carries out reconciliation operations against a store.
type Service struct {
	store    ledger.Store
	ordering ledger.CandidateOrdering
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithOrdering overrides the auto-allocation candidate ordering.
func WithOrdering(o ledger.CandidateOrdering) Option {
	return func(s *Service) { s.ordering = o }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a reconciliation service.
func NewService(store ledger.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		ordering: ledger.DisplayOrder{},
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// wrap converts unexpected storage errors into DependencyError. Domain errors
// (NotFound, Conflict, Validation) pass through untouched.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if ledger.IsNotFound(err) || ledger.IsConflict(err) || ledger.IsValidation(err) {
		return err
	}
	return &ledger.DependencyError{Op: op, Err: err}
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

// RecordObligation creates a bill or invoice. A bill may carry a direct bank
// reference, marking it paid in full outside the allocation table.
func (s *Service) RecordObligation(ctx context.Context, orgID ledger.OrgID, o *ledger.Obligation) (*ledger.Obligation, error) {
	if o.Total <= 0 {
		return nil, ledger.Validationf(ledger.CodeAmountNotPositive,
			"obligation total must be positive, got %s", o.Total)
	}

	switch o.Kind {
	case ledger.ObligationBill:
		if o.VendorID == "" {
			return nil, ledger.Validationf(ledger.CodeVendorMismatch,
				"a bill requires a vendor")
		}
		if _, err := s.store.GetVendor(ctx, orgID, o.VendorID); err != nil {
			return nil, wrap("record obligation", err)
		}
	case ledger.ObligationInvoice:
		if o.CustomerID == "" && o.ProjectID == "" {
			return nil, ledger.Validationf(ledger.CodeCustomerMismatch,
				"an invoice requires a customer or project")
		}
		if o.DirectBankAccountID != "" {
			return nil, ledger.Validationf(ledger.CodeDirectPaidConflict,
				"direct payment applies to bills only")
		}
	default:
		return nil, ledger.Validationf(ledger.CodeKindMismatch,
			"unknown obligation kind %q", o.Kind)
	}

	if o.ID == "" {
		o.ID = ledger.ObligationID(uuid.NewString())
	}
	o.OrgID = orgID
	if o.Date.IsZero() {
		o.Date = s.now()
	}

	if err := s.store.CreateObligation(ctx, o); err != nil {
		return nil, wrap("record obligation", err)
	}

	// Direct-paid bills move money immediately; signal the account cache.
	if o.DirectBankAccountID != "" {
		if err := s.store.TouchBankAccount(ctx, orgID, o.DirectBankAccountID, s.now()); err != nil {
			s.log.Warn("bank account touch failed",
				"account", o.DirectBankAccountID, "err", err)
		}
	}

	s.log.Info("obligation recorded",
		"org", orgID, "id", o.ID, "kind", o.Kind, "total", o.Total)
	return o, nil
}

// UpdateObligationInput carries the editable fields of an obligation.
type UpdateObligationInput struct {
	Number      string
	Date        time.Time
	Description string
	Total       ledger.Money
	VendorID    ledger.VendorID
	CustomerID  ledger.CustomerID
	ProjectID   ledger.ProjectID
}

// UpdateObligation edits an obligation. The owning party cannot change once
// allocations exist, and the total cannot drop below the allocated sum.
func (s *Service) UpdateObligation(ctx context.Context, orgID ledger.OrgID, id ledger.ObligationID, in UpdateObligationInput) (*ledger.Obligation, error) {
	o, err := s.store.GetObligation(ctx, orgID, id)
	if err != nil {
		return nil, wrap("update obligation", err)
	}
	if o.IsDeleted() {
		return nil, ledger.ErrNotFound
	}
	if in.Total <= 0 {
		return nil, ledger.Validationf(ledger.CodeAmountNotPositive,
			"obligation total must be positive, got %s", in.Total)
	}

	hasLinks := len(o.Allocations) > 0 || o.IsDirectPaid()
	if hasLinks && (in.VendorID != o.VendorID || in.CustomerID != o.CustomerID) {
		return nil, ledger.Validationf(ledger.CodePartyImmutable,
			"cannot change the owning party while links exist")
	}

	var allocated ledger.Money
	for _, a := range o.Allocations {
		allocated = allocated.Add(a.Amount)
	}
	if in.Total < allocated {
		return nil, ledger.Validationf(ledger.CodeAmountBelowLinked,
			"total %s is below the allocated sum %s", in.Total, allocated)
	}

	o.Number = in.Number
	o.Date = in.Date
	o.Description = in.Description
	o.Total = in.Total
	o.VendorID = in.VendorID
	o.CustomerID = in.CustomerID
	o.ProjectID = in.ProjectID

	if err := s.store.UpdateObligation(ctx, o); err != nil {
		return nil, wrap("update obligation", err)
	}
	return o, nil
}

// SoftDeleteObligation tombstones an obligation. Its allocations stay, so
// historical settlement views remain intact.
func (s *Service) SoftDeleteObligation(ctx context.Context, orgID ledger.OrgID, id ledger.ObligationID) error {
	o, err := s.store.GetObligation(ctx, orgID, id)
	if err != nil {
		return wrap("delete obligation", err)
	}
	if err := s.store.SoftDeleteObligation(ctx, orgID, id, s.now()); err != nil {
		return wrap("delete obligation", err)
	}
	if o.DirectBankAccountID != "" {
		if err := s.store.TouchBankAccount(ctx, orgID, o.DirectBankAccountID, s.now()); err != nil {
			s.log.Warn("bank account touch failed",
				"account", o.DirectBankAccountID, "err", err)
		}
	}
	s.log.Info("obligation deleted", "org", orgID, "id", id)
	return nil
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

// RecordSettlement creates a payment or income record, optionally with an
// initial allocation plan applied in the same database transaction.
func (s *Service) RecordSettlement(ctx context.Context, orgID ledger.OrgID, st *ledger.Settlement, initial []ledger.PlanEntry) (*ledger.Settlement, error) {
	if st.Amount <= 0 {
		return nil, ledger.Validationf(ledger.CodeAmountNotPositive,
			"settlement amount must be positive, got %s", st.Amount)
	}

	if st.ID == "" {
		st.ID = ledger.SettlementID(uuid.NewString())
	}
	st.OrgID = orgID
	if st.Date.IsZero() {
		st.Date = s.now()
	}

	var plan []ledger.PlanEntry
	switch st.Kind {
	case ledger.SettlementPayment:
		if st.VendorID == "" {
			return nil, ledger.Validationf(ledger.CodeVendorMismatch,
				"a payment requires a vendor")
		}
		if _, err := s.store.GetVendor(ctx, orgID, st.VendorID); err != nil {
			return nil, wrap("record settlement", err)
		}
		if st.InvoiceID != "" {
			return nil, ledger.Validationf(ledger.CodeKindMismatch,
				"an invoice backlink applies to income only")
		}
		if len(initial) > 0 {
			var err error
			plan, err = s.validatedPlan(ctx, orgID, st, initial)
			if err != nil {
				return nil, err
			}
		}
	case ledger.SettlementIncome:
		if len(initial) > 0 {
			return nil, ledger.Validationf(ledger.CodeKindMismatch,
				"income settles invoices via the direct link, not allocations")
		}
		if st.InvoiceID != "" {
			// Linked at creation: same preconditions as a later link, minus
			// the already-linked check.
			if err := s.checkIncomeLink(ctx, orgID, st, st.InvoiceID); err != nil {
				return nil, err
			}
		}
	default:
		return nil, ledger.Validationf(ledger.CodeKindMismatch,
			"unknown settlement kind %q", st.Kind)
	}

	if err := s.store.CreateSettlement(ctx, st, plan); err != nil {
		return nil, wrap("record settlement", err)
	}

	if st.BankAccountID != "" {
		if err := s.store.TouchBankAccount(ctx, orgID, st.BankAccountID, s.now()); err != nil {
			s.log.Warn("bank account touch failed",
				"account", st.BankAccountID, "err", err)
		}
	}

	s.log.Info("settlement recorded",
		"org", orgID, "id", st.ID, "kind", st.Kind,
		"amount", st.Amount, "allocations", len(plan))
	return s.getSettlement(ctx, orgID, st.ID)
}

// UpdateSettlementInput carries the editable fields of a settlement.
type UpdateSettlementInput struct {
	Number        string
	Date          time.Time
	Amount        ledger.Money
	VendorID      ledger.VendorID
	PaymentMode   string
	CustomerID    ledger.CustomerID
	ReceivedFrom  string
	ProjectID     ledger.ProjectID
	BankAccountID ledger.BankAccountID
}

// UpdateSettlement edits a settlement. The owning party cannot change once
// allocations (or an invoice link) exist, and the amount cannot drop below
// the allocated sum.
func (s *Service) UpdateSettlement(ctx context.Context, orgID ledger.OrgID, id ledger.SettlementID, in UpdateSettlementInput) (*ledger.Settlement, error) {
	st, err := s.getSettlement(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, ledger.Validationf(ledger.CodeAmountNotPositive,
			"settlement amount must be positive, got %s", in.Amount)
	}

	hasLinks := len(st.Allocations) > 0 || st.InvoiceID != ""
	if hasLinks && (in.VendorID != st.VendorID || in.CustomerID != st.CustomerID) {
		return nil, ledger.Validationf(ledger.CodePartyImmutable,
			"cannot change the owning party while links exist")
	}

	if allocated := ledger.AllocatedOf(st); in.Amount < allocated {
		return nil, ledger.Validationf(ledger.CodeAmountBelowLinked,
			"amount %s is below the allocated sum %s", in.Amount, allocated)
	}

	oldBank := st.BankAccountID

	st.Number = in.Number
	st.Date = in.Date
	st.Amount = in.Amount
	st.VendorID = in.VendorID
	st.PaymentMode = in.PaymentMode
	st.CustomerID = in.CustomerID
	st.ReceivedFrom = in.ReceivedFrom
	st.ProjectID = in.ProjectID
	st.BankAccountID = in.BankAccountID

	if err := s.store.UpdateSettlement(ctx, st); err != nil {
		return nil, wrap("update settlement", err)
	}

	for _, bank := range []ledger.BankAccountID{oldBank, in.BankAccountID} {
		if bank == "" {
			continue
		}
		if err := s.store.TouchBankAccount(ctx, orgID, bank, s.now()); err != nil {
			s.log.Warn("bank account touch failed", "account", bank, "err", err)
		}
	}
	return st, nil
}

// SoftDeleteSettlement tombstones a settlement. Its allocation rows stay in
// place; balance readers skip them because the settlement reads as deleted.
func (s *Service) SoftDeleteSettlement(ctx context.Context, orgID ledger.OrgID, id ledger.SettlementID) error {
	st, err := s.getSettlement(ctx, orgID, id)
	if err != nil {
		return err
	}
	if err := s.store.SoftDeleteSettlement(ctx, orgID, id, s.now()); err != nil {
		return wrap("delete settlement", err)
	}
	if st.BankAccountID != "" {
		if err := s.store.TouchBankAccount(ctx, orgID, st.BankAccountID, s.now()); err != nil {
			s.log.Warn("bank account touch failed",
				"account", st.BankAccountID, "err", err)
		}
	}
	s.log.Info("settlement deleted", "org", orgID, "id", id)
	return nil
}

// getSettlement loads a settlement, treating tombstones as missing.
func (s *Service) getSettlement(ctx context.Context, orgID ledger.OrgID, id ledger.SettlementID) (*ledger.Settlement, error) {
	st, err := s.store.GetSettlement(ctx, orgID, id)
	if err != nil {
		return nil, wrap("get settlement", err)
	}
	if st.IsDeleted() {
		return nil, ledger.ErrNotFound
	}
	return st, nil
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// ReplaceAllocations atomically replaces a payment's full allocation set with
// the given (bill, amount) pairs. An empty list unlinks everything.
func (s *Service) ReplaceAllocations(ctx context.Context, orgID ledger.OrgID, paymentID ledger.SettlementID, entries []ledger.PlanEntry) (*ledger.Settlement, error) {
	payment, err := s.getPayment(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}

	plan, err := s.validatedPlan(ctx, orgID, payment, entries)
	if err != nil {
		return nil, err
	}

	if err := s.store.ReplaceAllocations(ctx, orgID, paymentID, plan); err != nil {
		return nil, wrap("replace allocations", err)
	}

	s.log.Info("allocations replaced",
		"org", orgID, "payment", paymentID, "links", len(plan))
	return s.getSettlement(ctx, orgID, paymentID)
}

// AutoAllocate spreads a payment's unallocated budget across its eligible
// bills, first-fit, on top of its existing allocations, and applies the
// result as a replace.
func (s *Service) AutoAllocate(ctx context.Context, orgID ledger.OrgID, paymentID ledger.SettlementID) (*ledger.Settlement, error) {
	payment, err := s.getPayment(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}

	bills, err := s.store.ListObligations(ctx, orgID, ledger.ObligationFilter{
		Kind:     ledger.ObligationBill,
		VendorID: payment.VendorID,
	})
	if err != nil {
		return nil, wrap("auto allocate", err)
	}
	candidates := ledger.EligibleBills(payment, bills)

	// Existing links act as the session plan; auto fills the remainder.
	session := make([]ledger.PlanEntry, 0, len(payment.Allocations))
	planned := make(map[ledger.ObligationID]ledger.Money, len(payment.Allocations))
	for _, a := range payment.Allocations {
		session = append(session, ledger.PlanEntry{ObligationID: a.ObligationID, Amount: a.Amount})
		planned[a.ObligationID] = planned[a.ObligationID].Add(a.Amount)
	}

	auto := ledger.AutoAllocate(payment, candidates, s.ordering, planned)
	if len(auto) == 0 {
		return payment, nil
	}
	merged := ledger.MergePlans(session, auto)

	if err := s.store.ReplaceAllocations(ctx, orgID, paymentID, merged); err != nil {
		return nil, wrap("auto allocate", err)
	}

	s.log.Info("auto-allocated",
		"org", orgID, "payment", paymentID,
		"new_links", len(auto), "total_links", len(merged))
	return s.getSettlement(ctx, orgID, paymentID)
}

// DeleteAllocation removes one allocation row, returning the amount to both
// sides' unallocated pools.
func (s *Service) DeleteAllocation(ctx context.Context, orgID ledger.OrgID, id ledger.AllocationID) error {
	if err := s.store.DeleteAllocation(ctx, orgID, id); err != nil {
		return wrap("delete allocation", err)
	}
	s.log.Info("allocation deleted", "org", orgID, "id", id)
	return nil
}

// getPayment loads a settlement and requires it to be a live payment.
func (s *Service) getPayment(ctx context.Context, orgID ledger.OrgID, id ledger.SettlementID) (*ledger.Settlement, error) {
	st, err := s.getSettlement(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if st.Kind != ledger.SettlementPayment {
		return nil, ledger.Validationf(ledger.CodeKindMismatch,
			"settlement %s is not a payment", id)
	}
	return st, nil
}

// validatedPlan loads the bills a plan references and validates it against a
// fresh snapshot. The store re-validates in-tx; a check that passes here but
// fails there surfaces as Conflict.
func (s *Service) validatedPlan(ctx context.Context, orgID ledger.OrgID, payment *ledger.Settlement, entries []ledger.PlanEntry) ([]ledger.PlanEntry, error) {
	bills := make(map[ledger.ObligationID]*ledger.Obligation, len(entries))
	for _, e := range entries {
		if e.Amount <= 0 {
			continue
		}
		if _, ok := bills[e.ObligationID]; ok {
			continue
		}
		bill, err := s.store.GetObligation(ctx, orgID, e.ObligationID)
		if err != nil {
			return nil, wrap("validate plan", err)
		}
		bills[e.ObligationID] = bill
	}
	return ledger.ValidatePlan(payment, entries, bills)
}

// =============================================================================
// INCOME-INVOICE DIRECT LINK (legacy path)
// =============================================================================

// LinkIncomeToInvoice sets the direct backlink consuming an income record
// against an invoice. Preconditions: the income is not already linked, both
// records are live, and they resolve to the same customer.
func (s *Service) LinkIncomeToInvoice(ctx context.Context, orgID ledger.OrgID, incomeID ledger.SettlementID, invoiceID ledger.ObligationID) error {
	income, err := s.getSettlement(ctx, orgID, incomeID)
	if err != nil {
		return err
	}
	if income.Kind != ledger.SettlementIncome {
		return ledger.Validationf(ledger.CodeKindMismatch,
			"settlement %s is not income", incomeID)
	}
	if income.InvoiceID != "" {
		return ledger.Validationf(ledger.CodeAlreadyLinked,
			"income %s is already linked to invoice %s", incomeID, income.InvoiceID)
	}

	if err := s.checkIncomeLink(ctx, orgID, income, invoiceID); err != nil {
		return err
	}

	if err := s.store.SetIncomeInvoice(ctx, orgID, incomeID, invoiceID); err != nil {
		return wrap("link income", err)
	}
	s.log.Info("income linked", "org", orgID, "income", incomeID, "invoice", invoiceID)
	return nil
}

// UnlinkIncomeFromInvoice clears the direct backlink. Unlinking income that
// carries no link is a no-op.
func (s *Service) UnlinkIncomeFromInvoice(ctx context.Context, orgID ledger.OrgID, incomeID ledger.SettlementID) error {
	income, err := s.getSettlement(ctx, orgID, incomeID)
	if err != nil {
		return err
	}
	if income.Kind != ledger.SettlementIncome {
		return ledger.Validationf(ledger.CodeKindMismatch,
			"settlement %s is not income", incomeID)
	}
	if income.InvoiceID == "" {
		return nil
	}

	if err := s.store.SetIncomeInvoice(ctx, orgID, incomeID, ""); err != nil {
		return wrap("unlink income", err)
	}
	s.log.Info("income unlinked", "org", orgID, "income", incomeID)
	return nil
}

// checkIncomeLink validates the invoice side of a direct link: live invoice,
// matching customer, not already fully collected.
func (s *Service) checkIncomeLink(ctx context.Context, orgID ledger.OrgID, income *ledger.Settlement, invoiceID ledger.ObligationID) error {
	invoice, err := s.store.GetObligation(ctx, orgID, invoiceID)
	if err != nil {
		return wrap("link income", err)
	}
	if invoice.IsDeleted() {
		return ledger.ErrNotFound
	}
	if invoice.Kind != ledger.ObligationInvoice {
		return ledger.Validationf(ledger.CodeKindMismatch,
			"obligation %s is not an invoice", invoiceID)
	}

	invoiceCustomer := invoice.CustomerID
	if invoiceCustomer == "" && invoice.ProjectID != "" {
		project, err := s.store.GetProject(ctx, orgID, invoice.ProjectID)
		if err != nil {
			return wrap("link income", err)
		}
		invoiceCustomer = project.CustomerID
	}
	if income.CustomerID != "" && invoiceCustomer != "" && income.CustomerID != invoiceCustomer {
		return ledger.Validationf(ledger.CodeCustomerMismatch,
			"income belongs to customer %s, invoice to %s",
			income.CustomerID, invoiceCustomer)
	}

	linked, err := s.store.ListSettlements(ctx, orgID, ledger.SettlementFilter{
		Kind:      ledger.SettlementIncome,
		InvoiceID: invoiceID,
	})
	if err != nil {
		return wrap("link income", err)
	}
	linkedVals := make([]ledger.Settlement, 0, len(linked))
	for _, l := range linked {
		linkedVals = append(linkedVals, *l)
	}
	if ledger.InvoicePending(invoice.Total, linkedVals) <= 0 {
		return ledger.Validationf(ledger.CodeOverAllocated,
			"invoice %s is already fully collected", invoiceID)
	}
	return nil
}

// =============================================================================
// NOTES
// =============================================================================

// NoteTarget names the record family a note attaches to.
type NoteTarget string

const (
	NoteOnObligation NoteTarget = "obligation"
	NoteOnSettlement NoteTarget = "settlement"
)

// AppendNote appends to a record's note log. Notes are append-only; there is
// no edit or delete.
func (s *Service) AppendNote(ctx context.Context, orgID ledger.OrgID, target NoteTarget, id string, note ledger.Note) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = s.now()
	}

	switch target {
	case NoteOnObligation:
		o, err := s.store.GetObligation(ctx, orgID, ledger.ObligationID(id))
		if err != nil {
			return wrap("append note", err)
		}
		if o.IsDeleted() {
			return ledger.ErrNotFound
		}
		o.Notes = append(o.Notes, note)
		return wrap("append note", s.store.UpdateObligation(ctx, o))
	case NoteOnSettlement:
		st, err := s.getSettlement(ctx, orgID, ledger.SettlementID(id))
		if err != nil {
			return err
		}
		st.Notes = append(st.Notes, note)
		return wrap("append note", s.store.UpdateSettlement(ctx, st))
	default:
		return ledger.Validationf(ledger.CodeKindMismatch,
			"unknown note target %q", target)
	}
}
