/*
statement.go - Vendor running-balance statement builder

PURPOSE:
  Merges a vendor's bills and payments into a single chronologically-ordered
  statement with a running balance on every row. Bills debit the vendor
  account, payments credit it; a positive final balance means the vendor is
  owed money, a negative one means the vendor holds an advance.

CHRONOLOGY CONTRACT:
  The running balance is computed in ascending-date order regardless of how
  rows arrive from storage. This is not a display sort: computing balances in
  any other order produces wrong intermediate values. After the walk, rows are
  reversed (newest first) for presentation, with the balances already fixed.

SEE ALSO:
  - balance.go: Per-record derived amounts
  - recon/service.go: Fetches the vendor's records and calls Build
*/
package ledger

import (
	"sort"
	"time"
)

// =============================================================================
// STATEMENT TYPES
// =============================================================================

// StatementRowType identifies which side of the ledger a row came from.
type StatementRowType string

const (
	RowBill    StatementRowType = "bill"
	RowPayment StatementRowType = "payment"
)

// StatementRow is one line of a vendor statement.
type StatementRow struct {
	ID          string
	Type        StatementRowType
	Date        time.Time
	Number      string
	Description string
	ProjectID   ProjectID
	Debit       Money // bill amount owed
	Credit      Money // payment amount settled
	Balance     Money // running debit-minus-credit after this row
}

// VendorStatement is the full running-balance statement for one vendor.
type VendorStatement struct {
	VendorID    VendorID
	Rows        []StatementRow // newest first; balances fixed chronologically
	TotalBilled Money
	TotalPaid   Money
	Balance     Money // positive = vendor owed, negative = advance held
}

// =============================================================================
// BUILDER
// =============================================================================

// BuildVendorStatement merges non-deleted bills and payments for a vendor into
// a statement. Tombstoned records must be filtered by the caller's query; the
// builder additionally skips any that slip through.
func BuildVendorStatement(vendorID VendorID, bills []*Obligation, payments []*Settlement) *VendorStatement {
	rows := make([]StatementRow, 0, len(bills)+len(payments))

	for _, b := range bills {
		if b.IsDeleted() {
			continue
		}
		rows = append(rows, StatementRow{
			ID:          string(b.ID),
			Type:        RowBill,
			Date:        b.Date,
			Number:      b.Number,
			Description: b.Description,
			ProjectID:   b.ProjectID,
			Debit:       b.Total,
		})
	}
	for _, p := range payments {
		if p.IsDeleted() {
			continue
		}
		desc := p.PaymentMode
		if len(p.Notes) > 0 {
			desc = p.Notes[0].Content
		}
		rows = append(rows, StatementRow{
			ID:          string(p.ID),
			Type:        RowPayment,
			Date:        p.Date,
			Number:      p.Number,
			Description: desc,
			ProjectID:   p.ProjectID,
			Credit:      p.Amount,
		})
	}

	// Chronological walk. Stable tie-break on number then ID keeps the
	// balance sequence reproducible across fetch orders.
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		if rows[i].Number != rows[j].Number {
			return rows[i].Number < rows[j].Number
		}
		return rows[i].ID < rows[j].ID
	})

	st := &VendorStatement{VendorID: vendorID}
	var running Money
	for i := range rows {
		running = running.Add(rows[i].Debit).Sub(rows[i].Credit)
		rows[i].Balance = running
		st.TotalBilled = st.TotalBilled.Add(rows[i].Debit)
		st.TotalPaid = st.TotalPaid.Add(rows[i].Credit)
	}
	st.Balance = running

	// Newest first for presentation. Balances stay as computed above.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	st.Rows = rows
	return st
}
