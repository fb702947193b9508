/*
balance.go - Derived amounts and statuses for obligations and settlements

PURPOSE:
  Pure functions computing allocated/unallocated amounts and payment status
  from a record and its eagerly-loaded allocation set. Status is always
  derived, never stored, so it can never drift from the allocation rows.

TWO ACCOUNTING PATHS:
  Bills are settled through the allocation table. Invoices are settled through
  the legacy invoice_id backlink on Income records. The two paths must never be
  mixed for one obligation kind: CollectedAmount/InvoiceStatus read linked
  income, AllocatedAmount/ObligationStatus read allocations. Reporting picks
  exactly one path per kind.

EXACT ARITHMETIC:
  All comparisons are exact paise comparisons. The float tolerance of the
  source system has no equivalent here.

SEE ALSO:
  - types.go: Entity shapes
  - matcher.go: Uses PendingAmountExcluding for re-edit support
*/
package ledger

// =============================================================================
// OBLIGATION BALANCES (allocation path - bills)
// =============================================================================

// PaymentStatus is the derived settlement state of an obligation.
type PaymentStatus string

const (
	StatusUnpaid       PaymentStatus = "unpaid"
	StatusPartial      PaymentStatus = "partial"
	StatusPaid         PaymentStatus = "paid"
	StatusDirectlyPaid PaymentStatus = "paid_direct"
)

// AllocatedAmount returns the total settled against an obligation.
// A direct-paid bill is fully consumed by definition, with no allocation rows.
// Allocations whose settlement is tombstoned do not count: soft-deleting a
// payment restores the pending balance on every bill it settled.
func AllocatedAmount(o *Obligation) Money {
	if o.IsDirectPaid() {
		return o.Total
	}
	var sum Money
	for _, a := range o.Allocations {
		if a.Settlement != nil && a.Settlement.IsDeleted() {
			continue
		}
		sum = sum.Add(a.Amount)
	}
	return sum
}

// ObligationStatus derives the four-way payment status.
func ObligationStatus(o *Obligation) PaymentStatus {
	if o.IsDirectPaid() {
		return StatusDirectlyPaid
	}
	allocated := AllocatedAmount(o)
	switch {
	case allocated >= o.Total && o.Total > 0:
		return StatusPaid
	case allocated > 0:
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// PendingAmount returns the unsettled remainder, floored at zero.
func PendingAmount(o *Obligation) Money {
	pending := o.Total.Sub(AllocatedAmount(o))
	return pending.Max(0)
}

// PendingAmountExcluding returns the pending amount as if the named
// settlement's own allocations did not exist. Used when re-editing a
// settlement's allocation set: its prior links must not count against the
// space available to it.
func PendingAmountExcluding(o *Obligation, exclude SettlementID) Money {
	if o.IsDirectPaid() {
		return 0
	}
	var paidByOthers Money
	for _, a := range o.Allocations {
		if a.SettlementID == exclude {
			continue
		}
		if a.Settlement != nil && a.Settlement.IsDeleted() {
			continue
		}
		paidByOthers = paidByOthers.Add(a.Amount)
	}
	return o.Total.Sub(paidByOthers).Max(0)
}

// =============================================================================
// SETTLEMENT BALANCES
// =============================================================================

// UsageStatus is the derived consumption state of a settlement.
type UsageStatus string

const (
	UsageFullyUsed     UsageStatus = "fully_used"
	UsagePartiallyUsed UsageStatus = "partially_used"
)

// AllocatedOf returns the sum of a settlement's allocation amounts.
func AllocatedOf(s *Settlement) Money {
	var sum Money
	for _, a := range s.Allocations {
		sum = sum.Add(a.Amount)
	}
	return sum
}

// UnallocatedAmount returns the settlement amount not yet linked to any
// obligation. Never negative under the write-time invariants.
func UnallocatedAmount(s *Settlement) Money {
	return s.Amount.Sub(AllocatedOf(s))
}

// SettlementUsage derives the usage status and the unused remainder.
func SettlementUsage(s *Settlement) (UsageStatus, Money) {
	unused := UnallocatedAmount(s)
	if unused <= 0 {
		return UsageFullyUsed, 0
	}
	return UsagePartiallyUsed, unused
}

// =============================================================================
// INVOICE BALANCES (legacy backlink path)
// =============================================================================

// CollectedAmount sums the live income records directly linked to an invoice.
// This is the invoice-side accounting path; it never reads allocation rows.
func CollectedAmount(linkedIncome []Settlement) Money {
	var sum Money
	for i := range linkedIncome {
		if linkedIncome[i].IsDeleted() {
			continue
		}
		sum = sum.Add(linkedIncome[i].Amount)
	}
	return sum
}

// InvoiceStatus derives the collection status of an invoice from its linked
// income records.
func InvoiceStatus(invoiceTotal Money, linkedIncome []Settlement) PaymentStatus {
	collected := CollectedAmount(linkedIncome)
	switch {
	case collected >= invoiceTotal && invoiceTotal > 0:
		return StatusPaid
	case collected > 0:
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// InvoicePending returns the uncollected remainder of an invoice.
func InvoicePending(invoiceTotal Money, linkedIncome []Settlement) Money {
	return invoiceTotal.Sub(CollectedAmount(linkedIncome)).Max(0)
}
