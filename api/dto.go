/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

AMOUNTS:
  All amounts cross the wire as rupee decimal strings ("1500.50") and are
  converted to and from integer paise at this boundary. Clients never see
  paise and the engine never sees floats.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: The internal shapes these project
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solarbooks/recon-engine/ledger"
	"github.com/solarbooks/recon-engine/recon"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MASTER DATA
// =============================================================================

// VendorDTO represents a vendor in API responses.
type VendorDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	GSTNumber string    `json:"gst_number,omitempty"`
	Notes     []NoteDTO `json:"notes,omitempty"`
	CreatedAt string    `json:"created_at,omitempty"`
}

// SaveVendorRequest creates or updates a vendor.
type SaveVendorRequest struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	GSTNumber string `json:"gst_number,omitempty"`
}

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	GSTNumber string `json:"gst_number,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SaveCustomerRequest creates or updates a customer.
type SaveCustomerRequest struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	GSTNumber string `json:"gst_number,omitempty"`
}

// ProjectDTO represents a project in API responses.
type ProjectDTO struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id,omitempty"`
	Code       string `json:"code"`
	DealValue  string `json:"deal_value"`
	Status     string `json:"status,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// SaveProjectRequest creates or updates a project.
type SaveProjectRequest struct {
	ID         string `json:"id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Code       string `json:"code"`
	DealValue  string `json:"deal_value,omitempty"`
	Status     string `json:"status,omitempty"`
}

// BankAccountDTO represents a bank account in API responses.
type BankAccountDTO struct {
	ID            string `json:"id"`
	AccountName   string `json:"account_name"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// SaveBankAccountRequest creates or updates a bank account.
type SaveBankAccountRequest struct {
	ID            string `json:"id,omitempty"`
	AccountName   string `json:"account_name"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
}

// =============================================================================
// OBLIGATIONS AND SETTLEMENTS
// =============================================================================

// NoteDTO is one entry of a record's note log.
type NoteDTO struct {
	Content   string `json:"content"`
	UserID    string `json:"user_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	CreatedAt string `json:"created_at"`
}

// AllocationDTO is one settlement-to-obligation link. Counterparty fields are
// filled from whichever side the allocation was loaded on.
type AllocationDTO struct {
	ID           string `json:"id"`
	SettlementID string `json:"settlement_id"`
	ObligationID string `json:"obligation_id"`
	Amount       string `json:"amount"`
	CreatedAt    string `json:"created_at"`

	CounterpartyNumber string `json:"counterparty_number,omitempty"`
	CounterpartyDate   string `json:"counterparty_date,omitempty"`
}

// ObligationDTO represents a bill or invoice with derived balances.
type ObligationDTO struct {
	ID                  string          `json:"id"`
	Kind                string          `json:"kind"`
	Number              string          `json:"number"`
	Date                string          `json:"date"`
	Description         string          `json:"description,omitempty"`
	Total               string          `json:"total"`
	VendorID            string          `json:"vendor_id,omitempty"`
	CustomerID          string          `json:"customer_id,omitempty"`
	ProjectID           string          `json:"project_id,omitempty"`
	DirectBankAccountID string          `json:"direct_bank_account_id,omitempty"`
	Status              string          `json:"status"`
	Allocated           string          `json:"allocated"`
	Pending             string          `json:"pending"`
	Notes               []NoteDTO       `json:"notes,omitempty"`
	Allocations         []AllocationDTO `json:"allocations,omitempty"`
	Version             int64           `json:"version"`
	CreatedAt           string          `json:"created_at,omitempty"`
}

// InvoiceDTO represents an invoice with its legacy-path collection state.
type InvoiceDTO struct {
	ObligationDTO
	Collected    string          `json:"collected"`
	LinkedIncome []SettlementDTO `json:"linked_income,omitempty"`
}

// CreateObligationRequest creates a bill or invoice.
type CreateObligationRequest struct {
	Kind                string `json:"kind"`
	Number              string `json:"number"`
	Date                string `json:"date"`
	Description         string `json:"description,omitempty"`
	Total               string `json:"total"`
	VendorID            string `json:"vendor_id,omitempty"`
	CustomerID          string `json:"customer_id,omitempty"`
	ProjectID           string `json:"project_id,omitempty"`
	DirectBankAccountID string `json:"direct_bank_account_id,omitempty"`
}

// UpdateObligationRequest edits an obligation.
type UpdateObligationRequest struct {
	Number      string `json:"number"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Total       string `json:"total"`
	VendorID    string `json:"vendor_id,omitempty"`
	CustomerID  string `json:"customer_id,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
}

// SettlementDTO represents a payment or income record with derived usage.
type SettlementDTO struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Number        string          `json:"number"`
	Date          string          `json:"date"`
	Amount        string          `json:"amount"`
	VendorID      string          `json:"vendor_id,omitempty"`
	PaymentMode   string          `json:"payment_mode,omitempty"`
	CustomerID    string          `json:"customer_id,omitempty"`
	InvoiceID     string          `json:"invoice_id,omitempty"`
	ReceivedFrom  string          `json:"received_from,omitempty"`
	ProjectID     string          `json:"project_id,omitempty"`
	BankAccountID string          `json:"bank_account_id,omitempty"`
	Usage         string          `json:"usage"`
	Allocated     string          `json:"allocated"`
	Unallocated   string          `json:"unallocated"`
	Notes         []NoteDTO       `json:"notes,omitempty"`
	Allocations   []AllocationDTO `json:"allocations,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
}

// AllocationEntryRequest is one (obligation, amount) pair of a plan.
type AllocationEntryRequest struct {
	ObligationID string `json:"obligation_id"`
	Amount       string `json:"amount"`
}

// CreateSettlementRequest creates a payment or income record, optionally with
// an initial allocation plan (payments only).
type CreateSettlementRequest struct {
	Kind          string                   `json:"kind"`
	Number        string                   `json:"number"`
	Date          string                   `json:"date"`
	Amount        string                   `json:"amount"`
	VendorID      string                   `json:"vendor_id,omitempty"`
	PaymentMode   string                   `json:"payment_mode,omitempty"`
	CustomerID    string                   `json:"customer_id,omitempty"`
	InvoiceID     string                   `json:"invoice_id,omitempty"`
	ReceivedFrom  string                   `json:"received_from,omitempty"`
	ProjectID     string                   `json:"project_id,omitempty"`
	BankAccountID string                   `json:"bank_account_id,omitempty"`
	Allocations   []AllocationEntryRequest `json:"allocations,omitempty"`
}

// UpdateSettlementRequest edits a settlement.
type UpdateSettlementRequest struct {
	Number        string `json:"number"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	VendorID      string `json:"vendor_id,omitempty"`
	PaymentMode   string `json:"payment_mode,omitempty"`
	CustomerID    string `json:"customer_id,omitempty"`
	ReceivedFrom  string `json:"received_from,omitempty"`
	ProjectID     string `json:"project_id,omitempty"`
	BankAccountID string `json:"bank_account_id,omitempty"`
}

// ReplaceAllocationsRequest is the full new allocation set for a payment.
// An empty list unlinks everything.
type ReplaceAllocationsRequest struct {
	Allocations []AllocationEntryRequest `json:"allocations"`
}

// LinkIncomeRequest links an income record to an invoice.
type LinkIncomeRequest struct {
	InvoiceID string `json:"invoice_id"`
}

// AppendNoteRequest appends one note to a record's log.
type AppendNoteRequest struct {
	Content  string `json:"content"`
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// =============================================================================
// STATEMENT
// =============================================================================

// StatementRowDTO is one line of a vendor statement.
type StatementRowDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	Number      string `json:"number"`
	Description string `json:"description,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Balance     string `json:"balance"`
}

// StatementDTO is the full vendor running-balance statement.
type StatementDTO struct {
	VendorID    string            `json:"vendor_id"`
	Rows        []StatementRowDTO `json:"rows"`
	TotalBilled string            `json:"total_billed"`
	TotalPaid   string            `json:"total_paid"`
	Balance     string            `json:"balance"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func rupees(m ledger.Money) string { return m.Rupees().StringFixed(2) }

// parseRupees converts a wire amount ("1500.50") to paise. Empty strings
// parse to zero; the service layer rejects non-positive amounts where they
// are not allowed.
func parseRupees(s string) (ledger.Money, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return ledger.MoneyFromRupees(d), nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func toNoteDTOs(notes []ledger.Note) []NoteDTO {
	if len(notes) == 0 {
		return nil
	}
	out := make([]NoteDTO, len(notes))
	for i, n := range notes {
		out[i] = NoteDTO{
			Content:   n.Content,
			UserID:    n.UserID,
			UserName:  n.UserName,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		}
	}
	return out
}

func toAllocationDTOs(allocs []ledger.Allocation) []AllocationDTO {
	if len(allocs) == 0 {
		return nil
	}
	out := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		dto := AllocationDTO{
			ID:           string(a.ID),
			SettlementID: string(a.SettlementID),
			ObligationID: string(a.ObligationID),
			Amount:       rupees(a.Amount),
			CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		}
		if a.Settlement != nil {
			dto.CounterpartyNumber = a.Settlement.Number
			dto.CounterpartyDate = a.Settlement.Date.Format("2006-01-02")
		}
		if a.Obligation != nil {
			dto.CounterpartyNumber = a.Obligation.Number
			dto.CounterpartyDate = a.Obligation.Date.Format("2006-01-02")
		}
		out[i] = dto
	}
	return out
}

func toObligationDTO(v recon.ObligationView) ObligationDTO {
	return ObligationDTO{
		ID:                  string(v.ID),
		Kind:                string(v.Kind),
		Number:              v.Number,
		Date:                v.Date.Format("2006-01-02"),
		Description:         v.Description,
		Total:               rupees(v.Total),
		VendorID:            string(v.VendorID),
		CustomerID:          string(v.CustomerID),
		ProjectID:           string(v.ProjectID),
		DirectBankAccountID: string(v.DirectBankAccountID),
		Status:              string(v.Status),
		Allocated:           rupees(v.Allocated),
		Pending:             rupees(v.Pending),
		Notes:               toNoteDTOs(v.Notes),
		Allocations:         toAllocationDTOs(v.Allocations),
		Version:             v.Version,
		CreatedAt:           v.CreatedAt.Format(time.RFC3339),
	}
}

func toSettlementDTO(v recon.SettlementView) SettlementDTO {
	return SettlementDTO{
		ID:            string(v.ID),
		Kind:          string(v.Kind),
		Number:        v.Number,
		Date:          v.Date.Format("2006-01-02"),
		Amount:        rupees(v.Amount),
		VendorID:      string(v.VendorID),
		PaymentMode:   v.PaymentMode,
		CustomerID:    string(v.CustomerID),
		InvoiceID:     string(v.InvoiceID),
		ReceivedFrom:  v.ReceivedFrom,
		ProjectID:     string(v.ProjectID),
		BankAccountID: string(v.BankAccountID),
		Usage:         string(v.Usage),
		Allocated:     rupees(v.Allocated),
		Unallocated:   rupees(v.Unallocated),
		Notes:         toNoteDTOs(v.Notes),
		Allocations:   toAllocationDTOs(v.Allocations),
		CreatedAt:     v.CreatedAt.Format(time.RFC3339),
	}
}

func toStatementDTO(st *ledger.VendorStatement) StatementDTO {
	rows := make([]StatementRowDTO, len(st.Rows))
	for i, r := range st.Rows {
		rows[i] = StatementRowDTO{
			ID:          r.ID,
			Type:        string(r.Type),
			Date:        r.Date.Format("2006-01-02"),
			Number:      r.Number,
			Description: r.Description,
			ProjectID:   string(r.ProjectID),
			Debit:       rupees(r.Debit),
			Credit:      rupees(r.Credit),
			Balance:     rupees(r.Balance),
		}
	}
	return StatementDTO{
		VendorID:    string(st.VendorID),
		Rows:        rows,
		TotalBilled: rupees(st.TotalBilled),
		TotalPaid:   rupees(st.TotalPaid),
		Balance:     rupees(st.Balance),
	}
}

func toPlanEntries(entries []AllocationEntryRequest) ([]ledger.PlanEntry, error) {
	out := make([]ledger.PlanEntry, 0, len(entries))
	for _, e := range entries {
		amount, err := parseRupees(e.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, ledger.PlanEntry{
			ObligationID: ledger.ObligationID(e.ObligationID),
			Amount:       amount,
		})
	}
	return out, nil
}
