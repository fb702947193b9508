package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarbooks/recon-engine/api"
	"github.com/solarbooks/recon-engine/recon"
	"github.com/solarbooks/recon-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return api.NewRouter(api.NewHandler(recon.NewService(store)))
}

// do issues a JSON request with the tenant header and decodes the response
// body into out when it is non-nil.
func do(t *testing.T, router http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-ID", "org-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
	}
	return rec
}

func createVendor(t *testing.T, router http.Handler, name string) string {
	t.Helper()
	var v api.VendorDTO
	rec := do(t, router, http.MethodPost, "/api/vendors",
		api.SaveVendorRequest{Name: name}, &v)
	require.Equal(t, http.StatusCreated, rec.Code)
	return v.ID
}

func createBill(t *testing.T, router http.Handler, vendorID, number, total string) api.ObligationDTO {
	t.Helper()
	var b api.ObligationDTO
	rec := do(t, router, http.MethodPost, "/api/bills", api.CreateObligationRequest{
		Number:   number,
		Date:     "2025-05-01",
		Total:    total,
		VendorID: vendorID,
	}, &b)
	require.Equal(t, http.StatusCreated, rec.Code)
	return b
}

func createPayment(t *testing.T, router http.Handler, vendorID, number, amount string) api.SettlementDTO {
	t.Helper()
	var p api.SettlementDTO
	rec := do(t, router, http.MethodPost, "/api/payments", api.CreateSettlementRequest{
		Number:   number,
		Date:     "2025-05-05",
		Amount:   amount,
		VendorID: vendorID,
	}, &p)
	require.Equal(t, http.StatusCreated, rec.Code)
	return p
}

// =============================================================================
// TENANCY
// =============================================================================

func TestMissingOrgHeaderRejected(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/bills", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Error, "X-Org-ID")
}

func TestCrossOrgReadIs404(t *testing.T) {
	router := newTestRouter(t)
	vendor := createVendor(t, router, "Acme Supplies")
	b := createBill(t, router, vendor, "EXP-1", "500.00")

	req := httptest.NewRequest(http.MethodGet, "/api/bills/"+b.ID, nil)
	req.Header.Set("X-Org-ID", "org-other")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// BILL AND PAYMENT FLOW
// =============================================================================

func TestBillPaymentAllocationFlow(t *testing.T) {
	// GIVEN: A bill of 10,000 and a payment of 6,000
	// WHEN: The full set is replaced with one 6,000 link
	// THEN: The bill reads Partial with 4,000 pending over the wire

	router := newTestRouter(t)
	vendor := createVendor(t, router, "Acme Supplies")

	b := createBill(t, router, vendor, "EXP-1", "10000.00")
	assert.Equal(t, "unpaid", b.Status)
	assert.Equal(t, "10000.00", b.Pending)

	p := createPayment(t, router, vendor, "PAY-1", "6000.00")

	var updated api.SettlementDTO
	rec := do(t, router, http.MethodPut, "/api/payments/"+p.ID+"/allocations",
		api.ReplaceAllocationsRequest{
			Allocations: []api.AllocationEntryRequest{
				{ObligationID: b.ID, Amount: "6000.00"},
			},
		}, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fully_used", updated.Usage)
	assert.Equal(t, "0.00", updated.Unallocated)
	require.Len(t, updated.Allocations, 1)
	assert.Equal(t, "EXP-1", updated.Allocations[0].CounterpartyNumber)

	var bill api.ObligationDTO
	rec = do(t, router, http.MethodGet, "/api/bills/"+b.ID, nil, &bill)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", bill.Status)
	assert.Equal(t, "4000.00", bill.Pending)
	assert.Equal(t, "6000.00", bill.Allocated)
}

func TestCreatePaymentWithInitialPlan(t *testing.T) {
	router := newTestRouter(t)
	vendor := createVendor(t, router, "Acme Supplies")
	b := createBill(t, router, vendor, "EXP-1", "500.00")

	var p api.SettlementDTO
	rec := do(t, router, http.MethodPost, "/api/payments", api.CreateSettlementRequest{
		Number:   "PAY-1",
		Date:     "2025-05-05",
		Amount:   "500.00",
		VendorID: vendor,
		Allocations: []api.AllocationEntryRequest{
			{ObligationID: b.ID, Amount: "500.00"},
		},
	}, &p)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "fully_used", p.Usage)
	require.Len(t, p.Allocations, 1)
}

func TestAutoAllocateEndpoint(t *testing.T) {
	router := newTestRouter(t)
	vendor := createVendor(t, router, "Acme Supplies")
	createBill(t, router, vendor, "EXP-1", "600.00")
	createBill(t, router, vendor, "EXP-2", "900.00")
	p := createPayment(t, router, vendor, "PAY-1", "1000.00")

	var updated api.SettlementDTO
	rec := do(t, router, http.MethodPost, "/api/payments/"+p.ID+"/auto-allocate", nil, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fully_used", updated.Usage)
	require.Len(t, updated.Allocations, 2)
}

func TestDeleteAllocationEndpoint(t *testing.T) {
	router := newTestRouter(t)
	vendor := createVendor(t, router, "Acme Supplies")
	b := createBill(t, router, vendor, "EXP-1", "500.00")
	p := createPayment(t, router, vendor, "PAY-1", "500.00")

	var updated api.SettlementDTO
	do(t, router, http.MethodPut, "/api/payments/"+p.ID+"/allocations",
		api.ReplaceAllocationsRequest{
			Allocations: []api.AllocationEntryRequest{
				{ObligationID: b.ID, Amount: "500.00"},
			},
		}, &updated)
	require.Len(t, updated.Allocations, 1)

	rec := do(t, router, http.MethodDelete,
		"/api/allocations/"+updated.Allocations[0].ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var bill api.ObligationDTO
	do(t, router, http.MethodGet, "/api/bills/"+b.ID, nil, &bill)
	assert.Equal(t, "unpaid", bill.Status)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestValidationErrorBodyCarriesCode(t *testing.T) {
	// Over-allocating a bill maps to 400 with the stable code in the body.

	router := newTestRouter(t)
	vendor := createVendor(t, router, "Acme Supplies")
	b := createBill(t, router, vendor, "EXP-1", "500.00")
	p := createPayment(t, router, vendor, "PAY-1", "1000.00")

	rec := do(t, router, http.MethodPut, "/api/payments/"+p.ID+"/allocations",
		api.ReplaceAllocationsRequest{
			Allocations: []api.AllocationEntryRequest{
				{ObligationID: b.ID, Amount: "600.00"},
			},
		}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "over_allocated", resp.Code)
}

func TestUnknownBillIs404(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/api/bills/does-not-exist", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBadAmountIs400(t *testing.T) {
	router := newTestRouter(t)
	vendor := createVendor(t, router, "Acme Supplies")

	rec := do(t, router, http.MethodPost, "/api/bills", api.CreateObligationRequest{
		Number:   "EXP-1",
		Total:    "not-a-number",
		VendorID: vendor,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// INCOME AND INVOICES
// =============================================================================

func TestIncomeLinkFlow(t *testing.T) {
	router := newTestRouter(t)

	var cust api.CustomerDTO
	rec := do(t, router, http.MethodPost, "/api/customers",
		api.SaveCustomerRequest{Name: "Globex"}, &cust)
	require.Equal(t, http.StatusCreated, rec.Code)

	var inv api.ObligationDTO
	rec = do(t, router, http.MethodPost, "/api/invoices", api.CreateObligationRequest{
		Number:     "INV-1",
		Date:       "2025-05-01",
		Total:      "20000.00",
		CustomerID: cust.ID,
	}, &inv)
	require.Equal(t, http.StatusCreated, rec.Code)

	var inc api.SettlementDTO
	rec = do(t, router, http.MethodPost, "/api/income", api.CreateSettlementRequest{
		Number:     "REC-1",
		Date:       "2025-05-10",
		Amount:     "8000.00",
		CustomerID: cust.ID,
	}, &inc)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Unlinked income shows up in the customer's picker.
	var unlinked []api.SettlementDTO
	rec = do(t, router, http.MethodGet,
		"/api/customers/"+cust.ID+"/unlinked-income", nil, &unlinked)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, unlinked, 1)

	rec = do(t, router, http.MethodPost, "/api/income/"+inc.ID+"/link",
		api.LinkIncomeRequest{InvoiceID: inv.ID}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var view api.InvoiceDTO
	rec = do(t, router, http.MethodGet, "/api/invoices/"+inv.ID, nil, &view)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", view.Status)
	assert.Equal(t, "8000.00", view.Collected)
	assert.Equal(t, "12000.00", view.Pending)
	require.Len(t, view.LinkedIncome, 1)

	rec = do(t, router, http.MethodDelete, "/api/income/"+inc.ID+"/link", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/invoices/"+inv.ID, nil, &view)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unpaid", view.Status)
}

// =============================================================================
// STATEMENT
// =============================================================================

func TestVendorStatementEndpoint(t *testing.T) {
	router := newTestRouter(t)
	vendor := createVendor(t, router, "Acme Supplies")
	createBill(t, router, vendor, "EXP-1", "5000.00")
	createPayment(t, router, vendor, "PAY-1", "2000.00")

	var st api.StatementDTO
	rec := do(t, router, http.MethodGet, "/api/vendors/"+vendor+"/statement", nil, &st)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, st.Rows, 2)
	assert.Equal(t, "5000.00", st.TotalBilled)
	assert.Equal(t, "2000.00", st.TotalPaid)
	assert.Equal(t, "3000.00", st.Balance)
}
