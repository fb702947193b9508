/*
queries.go - Derived read models over the ledger

PURPOSE:
  Read-side operations: records decorated with computed balances and statuses,
  candidate lists for the allocation editor, and vendor statements. All values
  are computed on read from allocation rows; nothing here is materialized.
*/
package recon

import (
	"context"

	"github.com/solarbooks/recon-engine/ledger"
)

// ObligationView is an obligation with its derived balances.
type ObligationView struct {
	*ledger.Obligation
	Status    ledger.PaymentStatus
	Allocated ledger.Money
	Pending   ledger.Money
}

// SettlementView is a settlement with its derived usage.
type SettlementView struct {
	*ledger.Settlement
	Usage       ledger.UsageStatus
	Allocated   ledger.Money
	Unallocated ledger.Money
}

// InvoiceView is an invoice with its legacy-path collection state.
type InvoiceView struct {
	*ledger.Obligation
	Status       ledger.PaymentStatus
	Collected    ledger.Money
	Pending      ledger.Money
	LinkedIncome []*ledger.Settlement
}

func obligationView(o *ledger.Obligation) ObligationView {
	return ObligationView{
		Obligation: o,
		Status:     ledger.ObligationStatus(o),
		Allocated:  ledger.AllocatedAmount(o),
		Pending:    ledger.PendingAmount(o),
	}
}

func settlementView(s *ledger.Settlement) SettlementView {
	usage, unused := ledger.SettlementUsage(s)
	return SettlementView{
		Settlement:  s,
		Usage:       usage,
		Allocated:   ledger.AllocatedOf(s),
		Unallocated: unused,
	}
}

// GetObligationView returns one obligation with derived balances. Tombstoned
// records read as missing.
func (s *Service) GetObligationView(ctx context.Context, orgID ledger.OrgID, id ledger.ObligationID) (*ObligationView, error) {
	o, err := s.store.GetObligation(ctx, orgID, id)
	if err != nil {
		return nil, wrap("get obligation", err)
	}
	if o.IsDeleted() {
		return nil, ledger.ErrNotFound
	}
	v := obligationView(o)
	return &v, nil
}

// ListObligationViews returns obligations matching the filter with balances.
func (s *Service) ListObligationViews(ctx context.Context, orgID ledger.OrgID, f ledger.ObligationFilter) ([]ObligationView, error) {
	obs, err := s.store.ListObligations(ctx, orgID, f)
	if err != nil {
		return nil, wrap("list obligations", err)
	}
	out := make([]ObligationView, 0, len(obs))
	for _, o := range obs {
		out = append(out, obligationView(o))
	}
	return out, nil
}

// GetSettlementView returns one settlement with derived usage.
func (s *Service) GetSettlementView(ctx context.Context, orgID ledger.OrgID, id ledger.SettlementID) (*SettlementView, error) {
	st, err := s.getSettlement(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	v := settlementView(st)
	return &v, nil
}

// ListSettlementViews returns settlements matching the filter with usage.
func (s *Service) ListSettlementViews(ctx context.Context, orgID ledger.OrgID, f ledger.SettlementFilter) ([]SettlementView, error) {
	sts, err := s.store.ListSettlements(ctx, orgID, f)
	if err != nil {
		return nil, wrap("list settlements", err)
	}
	out := make([]SettlementView, 0, len(sts))
	for _, st := range sts {
		out = append(out, settlementView(st))
	}
	return out, nil
}

// ListUnpaidBills returns a vendor's bills that still have pending balance,
// oldest first so the allocation editor settles in chronological order.
func (s *Service) ListUnpaidBills(ctx context.Context, orgID ledger.OrgID, vendorID ledger.VendorID) ([]ObligationView, error) {
	bills, err := s.store.ListObligations(ctx, orgID, ledger.ObligationFilter{
		Kind:     ledger.ObligationBill,
		VendorID: vendorID,
	})
	if err != nil {
		return nil, wrap("list unpaid bills", err)
	}

	var out []ObligationView
	for i := len(bills) - 1; i >= 0; i-- { // store lists newest first
		b := bills[i]
		if b.IsDirectPaid() {
			continue
		}
		if ledger.PendingAmount(b) <= 0 {
			continue
		}
		out = append(out, obligationView(b))
	}
	return out, nil
}

// ListEligibleBills returns the allocation candidates for a payment: same
// vendor, live, not direct-paid, with pending balance once the payment's own
// links are excluded. Feeds the bulk allocation editor.
func (s *Service) ListEligibleBills(ctx context.Context, orgID ledger.OrgID, paymentID ledger.SettlementID) ([]ObligationView, error) {
	payment, err := s.getPayment(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}
	bills, err := s.store.ListObligations(ctx, orgID, ledger.ObligationFilter{
		Kind:     ledger.ObligationBill,
		VendorID: payment.VendorID,
	})
	if err != nil {
		return nil, wrap("list eligible bills", err)
	}

	eligible := ledger.EligibleBills(payment, bills)
	out := make([]ObligationView, 0, len(eligible))
	for _, b := range eligible {
		out = append(out, obligationView(b))
	}
	return out, nil
}

// ListUnlinkedIncome returns a customer's income records that carry no invoice
// backlink yet. Feeds the quick-link picker.
func (s *Service) ListUnlinkedIncome(ctx context.Context, orgID ledger.OrgID, customerID ledger.CustomerID) ([]SettlementView, error) {
	return s.ListSettlementViews(ctx, orgID, ledger.SettlementFilter{
		Kind:         ledger.SettlementIncome,
		CustomerID:   customerID,
		UnlinkedOnly: true,
	})
}

// GetInvoiceView returns an invoice with its collection state from the linked
// income records.
func (s *Service) GetInvoiceView(ctx context.Context, orgID ledger.OrgID, id ledger.ObligationID) (*InvoiceView, error) {
	invoice, err := s.store.GetObligation(ctx, orgID, id)
	if err != nil {
		return nil, wrap("get invoice", err)
	}
	if invoice.IsDeleted() {
		return nil, ledger.ErrNotFound
	}
	if invoice.Kind != ledger.ObligationInvoice {
		return nil, ledger.Validationf(ledger.CodeKindMismatch,
			"obligation %s is not an invoice", id)
	}

	linked, err := s.store.ListSettlements(ctx, orgID, ledger.SettlementFilter{
		Kind:      ledger.SettlementIncome,
		InvoiceID: id,
	})
	if err != nil {
		return nil, wrap("get invoice", err)
	}

	linkedVals := make([]ledger.Settlement, 0, len(linked))
	for _, l := range linked {
		linkedVals = append(linkedVals, *l)
	}
	return &InvoiceView{
		Obligation:   invoice,
		Status:       ledger.InvoiceStatus(invoice.Total, linkedVals),
		Collected:    ledger.CollectedAmount(linkedVals),
		Pending:      ledger.InvoicePending(invoice.Total, linkedVals),
		LinkedIncome: linked,
	}, nil
}

// VendorStatement builds the running-balance statement for a vendor from its
// live bills and payments.
func (s *Service) VendorStatement(ctx context.Context, orgID ledger.OrgID, vendorID ledger.VendorID) (*ledger.VendorStatement, error) {
	if _, err := s.store.GetVendor(ctx, orgID, vendorID); err != nil {
		return nil, wrap("vendor statement", err)
	}

	bills, err := s.store.ListObligations(ctx, orgID, ledger.ObligationFilter{
		Kind:     ledger.ObligationBill,
		VendorID: vendorID,
	})
	if err != nil {
		return nil, wrap("vendor statement", err)
	}
	payments, err := s.store.ListSettlements(ctx, orgID, ledger.SettlementFilter{
		Kind:     ledger.SettlementPayment,
		VendorID: vendorID,
	})
	if err != nil {
		return nil, wrap("vendor statement", err)
	}

	return ledger.BuildVendorStatement(vendorID, bills, payments), nil
}
