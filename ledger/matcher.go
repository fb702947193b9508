/*
matcher.go - Allocation planning between settlements and obligations

PURPOSE:
  Builds and validates allocation plans: which bills a payment settles and by
  how much. Planning is pure (no storage access); the recon service applies a
  validated plan transactionally.

OPERATIONS:
  EligibleBills:  Filters a vendor's bills down to allocation candidates
  ValidatePlan:   Checks a user-chosen (bill, amount) list against both caps
  AutoAllocate:   First-fit greedy fill of candidates in order

GREEDY, NOT OPTIMAL:
  AutoAllocate walks candidates once in the order the strategy yields them,
  fills each bill's remaining space, and stops when the budget runs out. It
  never revisits an earlier candidate to top it up after allocating to a later
  one. The ordering is injectable so a future optimal-matching strategy can
  slot in without changing the contract.

RE-EDIT SEMANTICS:
  All space computations exclude the editing payment's own prior allocations
  (PendingAmountExcluding), because a replace discards those rows.

SEE ALSO:
  - balance.go: Space computations
  - recon/service.go: Applies plans via the transactional store
*/
package ledger

// =============================================================================
// PLAN TYPES
// =============================================================================

// PlanEntry is one line of an allocation plan: settle Amount of ObligationID.
type PlanEntry struct {
	ObligationID ObligationID
	Amount       Money
}

// CandidateOrdering decides the iteration order for automatic allocation.
// The default preserves the caller-given (display) order, matching the
// first-fit behavior users see in the bulk editor.
type CandidateOrdering interface {
	Order(bills []*Obligation) []*Obligation
}

// DisplayOrder is the default ordering: candidates as given.
type DisplayOrder struct{}

func (DisplayOrder) Order(bills []*Obligation) []*Obligation { return bills }

// =============================================================================
// CANDIDATE SELECTION
// =============================================================================

// EligibleBills filters bills down to allocation candidates for a payment:
// same vendor, not tombstoned, not direct-paid, and with positive pending
// balance once the payment's own prior allocations are excluded.
func EligibleBills(payment *Settlement, bills []*Obligation) []*Obligation {
	var out []*Obligation
	for _, b := range bills {
		if b.Kind != ObligationBill || b.IsDeleted() {
			continue
		}
		if b.VendorID != payment.VendorID {
			continue
		}
		if b.IsDirectPaid() {
			continue
		}
		if PendingAmountExcluding(b, payment.ID) <= 0 {
			continue
		}
		out = append(out, b)
	}
	return out
}

// =============================================================================
// MANUAL PLAN VALIDATION
// =============================================================================

// ValidatePlan checks a user-chosen plan against a payment and the bills it
// targets. Entries with amount <= 0 are dropped, duplicate bills within the
// plan are merged, and the result is the normalized plan that will replace
// the payment's full allocation set. An empty plan is valid (full unlink).
//
// bills must contain every obligation the plan references, loaded with
// allocations, keyed by ID.
func ValidatePlan(payment *Settlement, entries []PlanEntry, bills map[ObligationID]*Obligation) ([]PlanEntry, error) {
	merged := make(map[ObligationID]Money, len(entries))
	var order []ObligationID
	for _, e := range entries {
		if e.Amount <= 0 {
			continue
		}
		if _, seen := merged[e.ObligationID]; !seen {
			order = append(order, e.ObligationID)
		}
		merged[e.ObligationID] = merged[e.ObligationID].Add(e.Amount)
	}

	var total Money
	plan := make([]PlanEntry, 0, len(order))
	for _, id := range order {
		amount := merged[id]
		bill, ok := bills[id]
		if !ok {
			return nil, ErrNotFound
		}
		if bill.Kind != ObligationBill {
			return nil, Validationf(CodeKindMismatch,
				"obligation %s is not a bill", id)
		}
		if bill.IsDeleted() {
			return nil, ErrNotFound
		}
		if bill.VendorID != payment.VendorID {
			return nil, Validationf(CodeVendorMismatch,
				"bill %s belongs to vendor %s, payment is for vendor %s",
				id, bill.VendorID, payment.VendorID)
		}
		if bill.IsDirectPaid() {
			return nil, Validationf(CodeDirectPaidConflict,
				"bill %s is already paid directly", id)
		}
		if space := PendingAmountExcluding(bill, payment.ID); amount > space {
			return nil, Validationf(CodeOverAllocated,
				"bill %s has %s pending, cannot allocate %s",
				id, space, amount)
		}
		total = total.Add(amount)
		plan = append(plan, PlanEntry{ObligationID: id, Amount: amount})
	}

	if total > payment.Amount {
		return nil, Validationf(CodeOverUsed,
			"plan total %s exceeds payment amount %s", total, payment.Amount)
	}
	return plan, nil
}

// =============================================================================
// AUTOMATIC GREEDY ALLOCATION
// =============================================================================

// AutoAllocate builds a first-fit plan spreading the payment's unallocated
// budget across eligible bills. Deterministic: a fixed candidate order and a
// fixed budget always yield the same plan.
//
// The returned plan contains only the NEW amounts assigned in this pass; the
// caller merges it with any amounts already chosen in the editing session.
func AutoAllocate(payment *Settlement, candidates []*Obligation, ordering CandidateOrdering, alreadyPlanned map[ObligationID]Money) []PlanEntry {
	if ordering == nil {
		ordering = DisplayOrder{}
	}

	var planned Money
	for _, amt := range alreadyPlanned {
		planned = planned.Add(amt)
	}
	budget := payment.Amount.Sub(planned)
	if budget <= 0 {
		return nil
	}

	var plan []PlanEntry
	for _, bill := range ordering.Order(candidates) {
		if budget <= 0 {
			break
		}
		space := PendingAmountExcluding(bill, payment.ID).Sub(alreadyPlanned[bill.ID])
		if space <= 0 {
			continue
		}
		take := budget.Min(space)
		plan = append(plan, PlanEntry{ObligationID: bill.ID, Amount: take})
		budget = budget.Sub(take)
	}
	return plan
}

// MergePlans combines session amounts with an auto-allocation pass, keeping
// the session's entry order and appending newly touched bills at the end.
func MergePlans(session []PlanEntry, auto []PlanEntry) []PlanEntry {
	index := make(map[ObligationID]int, len(session))
	out := make([]PlanEntry, len(session))
	copy(out, session)
	for i, e := range out {
		index[e.ObligationID] = i
	}
	for _, e := range auto {
		if i, ok := index[e.ObligationID]; ok {
			out[i].Amount = out[i].Amount.Add(e.Amount)
			continue
		}
		index[e.ObligationID] = len(out)
		out = append(out, e)
	}
	return out
}
