/*
handlers.go - HTTP API handlers for the reconciliation engine

PURPOSE:
  Exposes the reconciliation service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Master data:
    GET/POST   /api/vendors, /api/customers, /api/projects, /api/bank-accounts
    GET        /api/vendors/{id}/statement      Running-balance statement
    GET        /api/customers/{id}/unlinked-income

  Obligations:
    GET/POST   /api/bills, /api/invoices
    GET/PUT/DELETE /api/bills/{id}, /api/invoices/{id}
    POST       /api/bills/{id}/notes, /api/invoices/{id}/notes

  Settlements:
    GET/POST   /api/payments, /api/income
    GET/PUT/DELETE /api/payments/{id}, /api/income/{id}
    GET/PUT    /api/payments/{id}/allocations   List / replace the full set
    POST       /api/payments/{id}/auto-allocate
    GET        /api/payments/{id}/eligible-bills
    DELETE     /api/allocations/{id}            Single unlink
    POST       /api/income/{id}/link            Direct invoice link
    DELETE     /api/income/{id}/link

TENANCY:
  The org is taken from the X-Org-ID header on every request. Requests
  without it are rejected with 400; there is no ambient default org.

ERROR HANDLING:
  Domain errors map to HTTP status through one translator:
  - ValidationError -> 400 (with the stable code in the body)
  - ErrNotFound     -> 404
  - ErrConflict     -> 409
  - DependencyError -> 500

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - recon/service.go: The domain logic these delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/solarbooks/recon-engine/ledger"
	"github.com/solarbooks/recon-engine/recon"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *recon.Service
}

// NewHandler creates a new handler around the reconciliation service.
func NewHandler(svc *recon.Service) *Handler {
	return &Handler{Service: svc}
}

// orgID extracts the tenant from the request. Empty means the request is
// rejected before any handler logic runs.
func orgID(r *http.Request) ledger.OrgID {
	return ledger.OrgID(r.Header.Get("X-Org-ID"))
}

func requireOrg(w http.ResponseWriter, r *http.Request) (ledger.OrgID, bool) {
	org := orgID(r)
	if org == "" {
		writeError(w, http.StatusBadRequest, "X-Org-ID header is required", nil)
		return "", false
	}
	return org, true
}

// =============================================================================
// MASTER DATA HANDLERS
// =============================================================================

// ListVendors returns the org's vendors.
func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	vendors, err := h.Service.ListVendors(r.Context(), org)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]VendorDTO, len(vendors))
	for i, v := range vendors {
		dtos[i] = toVendorDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveVendor creates or updates a vendor.
func (h *Handler) SaveVendor(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req SaveVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	v, err := h.Service.SaveVendor(r.Context(), org, &ledger.Vendor{
		ID:        ledger.VendorID(req.ID),
		Name:      req.Name,
		Category:  req.Category,
		GSTNumber: req.GSTNumber,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVendorDTO(v))
}

// GetVendor returns a single vendor.
func (h *Handler) GetVendor(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	v, err := h.Service.GetVendor(r.Context(), org, ledger.VendorID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVendorDTO(v))
}

// GetVendorStatement returns the running-balance statement.
func (h *Handler) GetVendorStatement(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	st, err := h.Service.VendorStatement(r.Context(), org, ledger.VendorID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// ListCustomers returns the org's customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	customers, err := h.Service.ListCustomers(r.Context(), org)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveCustomer creates or updates a customer.
func (h *Handler) SaveCustomer(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req SaveCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, err := h.Service.SaveCustomer(r.Context(), org, &ledger.Customer{
		ID:        ledger.CustomerID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		GSTNumber: req.GSTNumber,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

// ListUnlinkedIncome returns a customer's income with no invoice backlink.
func (h *Handler) ListUnlinkedIncome(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	views, err := h.Service.ListUnlinkedIncome(r.Context(), org,
		ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementDTOs(views))
}

// ListProjects returns the org's projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	projects, err := h.Service.ListProjects(r.Context(), org)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveProject creates or updates a project.
func (h *Handler) SaveProject(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req SaveProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	dealValue, err := parseRupees(req.DealValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid deal_value", err)
		return
	}
	p, err := h.Service.SaveProject(r.Context(), org, &ledger.Project{
		ID:         ledger.ProjectID(req.ID),
		CustomerID: ledger.CustomerID(req.CustomerID),
		Code:       req.Code,
		DealValue:  dealValue,
		Status:     req.Status,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

// ListBankAccounts returns the org's bank accounts.
func (h *Handler) ListBankAccounts(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	accounts, err := h.Service.ListBankAccounts(r.Context(), org)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]BankAccountDTO, len(accounts))
	for i, b := range accounts {
		dtos[i] = toBankAccountDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveBankAccount creates or updates a bank account.
func (h *Handler) SaveBankAccount(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req SaveBankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	b, err := h.Service.SaveBankAccount(r.Context(), org, &ledger.BankAccount{
		ID:            ledger.BankAccountID(req.ID),
		AccountName:   req.AccountName,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBankAccountDTO(b))
}

// =============================================================================
// OBLIGATION HANDLERS (bills and invoices)
// =============================================================================

// ListObligations returns bills or invoices, filtered by query params.
func (h *Handler) ListObligations(kind ledger.ObligationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		org, ok := requireOrg(w, r)
		if !ok {
			return
		}
		views, err := h.Service.ListObligationViews(r.Context(), org, ledger.ObligationFilter{
			Kind:       kind,
			VendorID:   ledger.VendorID(r.URL.Query().Get("vendor_id")),
			CustomerID: ledger.CustomerID(r.URL.Query().Get("customer_id")),
			ProjectID:  ledger.ProjectID(r.URL.Query().Get("project_id")),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		dtos := make([]ObligationDTO, len(views))
		for i, v := range views {
			dtos[i] = toObligationDTO(v)
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

// CreateObligation records a bill or invoice.
func (h *Handler) CreateObligation(kind ledger.ObligationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		org, ok := requireOrg(w, r)
		if !ok {
			return
		}
		var req CreateObligationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		total, err := parseRupees(req.Total)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid total", err)
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}

		o, err := h.Service.RecordObligation(r.Context(), org, &ledger.Obligation{
			Kind:                kind,
			Number:              req.Number,
			Date:                date,
			Description:         req.Description,
			Total:               total,
			VendorID:            ledger.VendorID(req.VendorID),
			CustomerID:          ledger.CustomerID(req.CustomerID),
			ProjectID:           ledger.ProjectID(req.ProjectID),
			DirectBankAccountID: ledger.BankAccountID(req.DirectBankAccountID),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		view, err := h.Service.GetObligationView(r.Context(), org, o.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toObligationDTO(*view))
	}
}

// GetObligation returns a single bill with balances.
func (h *Handler) GetObligation(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	view, err := h.Service.GetObligationView(r.Context(), org,
		ledger.ObligationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTO(*view))
}

// GetInvoice returns an invoice with its collection state.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	view, err := h.Service.GetInvoiceView(r.Context(), org,
		ledger.ObligationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := InvoiceDTO{
		ObligationDTO: ObligationDTO{
			ID:          string(view.ID),
			Kind:        string(view.Kind),
			Number:      view.Number,
			Date:        view.Date.Format("2006-01-02"),
			Description: view.Description,
			Total:       rupees(view.Total),
			CustomerID:  string(view.CustomerID),
			ProjectID:   string(view.ProjectID),
			Status:      string(view.Status),
			Pending:     rupees(view.Pending),
			Allocated:   rupees(view.Collected),
			Notes:       toNoteDTOs(view.Notes),
			Version:     view.Version,
			CreatedAt:   view.CreatedAt.Format(time.RFC3339),
		},
		Collected: rupees(view.Collected),
	}
	for _, inc := range view.LinkedIncome {
		dto.LinkedIncome = append(dto.LinkedIncome, SettlementDTO{
			ID:           string(inc.ID),
			Kind:         string(inc.Kind),
			Number:       inc.Number,
			Date:         inc.Date.Format("2006-01-02"),
			Amount:       rupees(inc.Amount),
			CustomerID:   string(inc.CustomerID),
			InvoiceID:    string(inc.InvoiceID),
			ReceivedFrom: inc.ReceivedFrom,
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// UpdateObligation edits a bill or invoice.
func (h *Handler) UpdateObligation(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req UpdateObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	total, err := parseRupees(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	o, err := h.Service.UpdateObligation(r.Context(), org,
		ledger.ObligationID(chi.URLParam(r, "id")),
		recon.UpdateObligationInput{
			Number:      req.Number,
			Date:        date,
			Description: req.Description,
			Total:       total,
			VendorID:    ledger.VendorID(req.VendorID),
			CustomerID:  ledger.CustomerID(req.CustomerID),
			ProjectID:   ledger.ProjectID(req.ProjectID),
		})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view, err := h.Service.GetObligationView(r.Context(), org, o.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTO(*view))
}

// DeleteObligation tombstones a bill or invoice.
func (h *Handler) DeleteObligation(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	err := h.Service.SoftDeleteObligation(r.Context(), org,
		ledger.ObligationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AppendObligationNote appends to an obligation's note log.
func (h *Handler) AppendObligationNote(w http.ResponseWriter, r *http.Request) {
	h.appendNote(w, r, recon.NoteOnObligation)
}

// =============================================================================
// SETTLEMENT HANDLERS (payments and income)
// =============================================================================

// ListSettlements returns payments or income, filtered by query params.
func (h *Handler) ListSettlements(kind ledger.SettlementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		org, ok := requireOrg(w, r)
		if !ok {
			return
		}
		views, err := h.Service.ListSettlementViews(r.Context(), org, ledger.SettlementFilter{
			Kind:       kind,
			VendorID:   ledger.VendorID(r.URL.Query().Get("vendor_id")),
			CustomerID: ledger.CustomerID(r.URL.Query().Get("customer_id")),
			InvoiceID:  ledger.ObligationID(r.URL.Query().Get("invoice_id")),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settlementDTOs(views))
	}
}

// CreateSettlement records a payment or income, optionally with an initial
// allocation plan.
func (h *Handler) CreateSettlement(kind ledger.SettlementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		org, ok := requireOrg(w, r)
		if !ok {
			return
		}
		var req CreateSettlementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		amount, err := parseRupees(req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		plan, err := toPlanEntries(req.Allocations)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid allocation amount", err)
			return
		}

		st, err := h.Service.RecordSettlement(r.Context(), org, &ledger.Settlement{
			Kind:          kind,
			Number:        req.Number,
			Date:          date,
			Amount:        amount,
			VendorID:      ledger.VendorID(req.VendorID),
			PaymentMode:   req.PaymentMode,
			CustomerID:    ledger.CustomerID(req.CustomerID),
			InvoiceID:     ledger.ObligationID(req.InvoiceID),
			ReceivedFrom:  req.ReceivedFrom,
			ProjectID:     ledger.ProjectID(req.ProjectID),
			BankAccountID: ledger.BankAccountID(req.BankAccountID),
		}, plan)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		view, err := h.Service.GetSettlementView(r.Context(), org, st.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSettlementDTO(*view))
	}
}

// GetSettlement returns a single payment or income record with usage.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	view, err := h.Service.GetSettlementView(r.Context(), org,
		ledger.SettlementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(*view))
}

// UpdateSettlement edits a payment or income record.
func (h *Handler) UpdateSettlement(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req UpdateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseRupees(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	st, err := h.Service.UpdateSettlement(r.Context(), org,
		ledger.SettlementID(chi.URLParam(r, "id")),
		recon.UpdateSettlementInput{
			Number:        req.Number,
			Date:          date,
			Amount:        amount,
			VendorID:      ledger.VendorID(req.VendorID),
			PaymentMode:   req.PaymentMode,
			CustomerID:    ledger.CustomerID(req.CustomerID),
			ReceivedFrom:  req.ReceivedFrom,
			ProjectID:     ledger.ProjectID(req.ProjectID),
			BankAccountID: ledger.BankAccountID(req.BankAccountID),
		})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view, err := h.Service.GetSettlementView(r.Context(), org, st.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(*view))
}

// DeleteSettlement tombstones a payment or income record.
func (h *Handler) DeleteSettlement(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	err := h.Service.SoftDeleteSettlement(r.Context(), org,
		ledger.SettlementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AppendSettlementNote appends to a settlement's note log.
func (h *Handler) AppendSettlementNote(w http.ResponseWriter, r *http.Request) {
	h.appendNote(w, r, recon.NoteOnSettlement)
}

func (h *Handler) appendNote(w http.ResponseWriter, r *http.Request, target recon.NoteTarget) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req AppendNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "Note content is required", nil)
		return
	}
	err := h.Service.AppendNote(r.Context(), org, target, chi.URLParam(r, "id"), ledger.Note{
		Content:  req.Content,
		UserID:   req.UserID,
		UserName: req.UserName,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// ListAllocations returns a payment's current allocation set.
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	view, err := h.Service.GetSettlementView(r.Context(), org,
		ledger.SettlementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := toAllocationDTOs(view.Allocations)
	if dtos == nil {
		dtos = []AllocationDTO{}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReplaceAllocations swaps a payment's full allocation set for the request
// body's plan. An empty plan unlinks every bill.
func (h *Handler) ReplaceAllocations(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req ReplaceAllocationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	plan, err := toPlanEntries(req.Allocations)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid allocation amount", err)
		return
	}

	st, err := h.Service.ReplaceAllocations(r.Context(), org,
		ledger.SettlementID(chi.URLParam(r, "id")), plan)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view, err := h.Service.GetSettlementView(r.Context(), org, st.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(*view))
}

// AutoAllocate fills the payment's unallocated budget across eligible bills.
func (h *Handler) AutoAllocate(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	st, err := h.Service.AutoAllocate(r.Context(), org,
		ledger.SettlementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view, err := h.Service.GetSettlementView(r.Context(), org, st.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(*view))
}

// ListEligibleBills returns a payment's allocation candidates.
func (h *Handler) ListEligibleBills(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	views, err := h.Service.ListEligibleBills(r.Context(), org,
		ledger.SettlementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ObligationDTO, len(views))
	for i, v := range views {
		dtos[i] = toObligationDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteAllocation removes a single allocation ("unlink").
func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	err := h.Service.DeleteAllocation(r.Context(), org,
		ledger.AllocationID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkIncome sets the direct invoice backlink on an income record.
func (h *Handler) LinkIncome(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req LinkIncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.InvoiceID == "" {
		writeError(w, http.StatusBadRequest, "invoice_id is required", nil)
		return
	}
	err := h.Service.LinkIncomeToInvoice(r.Context(), org,
		ledger.SettlementID(chi.URLParam(r, "id")),
		ledger.ObligationID(req.InvoiceID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlinkIncome clears the direct invoice backlink.
func (h *Handler) UnlinkIncome(w http.ResponseWriter, r *http.Request) {
	org, ok := requireOrg(w, r)
	if !ok {
		return
	}
	err := h.Service.UnlinkIncomeFromInvoice(r.Context(), org,
		ledger.SettlementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func toVendorDTO(v *ledger.Vendor) VendorDTO {
	return VendorDTO{
		ID:        string(v.ID),
		Name:      v.Name,
		Category:  v.Category,
		GSTNumber: v.GSTNumber,
		Notes:     toNoteDTOs(v.Notes),
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
	}
}

func toCustomerDTO(c *ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		GSTNumber: c.GSTNumber,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func toProjectDTO(p *ledger.Project) ProjectDTO {
	return ProjectDTO{
		ID:         string(p.ID),
		CustomerID: string(p.CustomerID),
		Code:       p.Code,
		DealValue:  rupees(p.DealValue),
		Status:     p.Status,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

func toBankAccountDTO(b *ledger.BankAccount) BankAccountDTO {
	return BankAccountDTO{
		ID:            string(b.ID),
		AccountName:   b.AccountName,
		BankName:      b.BankName,
		AccountNumber: b.AccountNumber,
		UpdatedAt:     b.UpdatedAt.Format(time.RFC3339),
	}
}

func settlementDTOs(views []recon.SettlementView) []SettlementDTO {
	dtos := make([]SettlementDTO, len(views))
	for i, v := range views {
		dtos[i] = toSettlementDTO(v)
	}
	return dtos
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError is the single translator from the domain error taxonomy to
// HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: verr.Message,
			Code:  verr.Code,
		})
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Record not found", nil)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, "Concurrent update detected, reload and retry", nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
