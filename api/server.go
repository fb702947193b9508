/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/vendors/*        Vendors + running-balance statements
  /api/customers/*      Customers + unlinked income
  /api/projects/*       Projects
  /api/bank-accounts/*  Bank accounts
  /api/bills/*          Vendor bills (obligations, allocation path)
  /api/invoices/*       Customer invoices (obligations, backlink path)
  /api/payments/*       Vendor payments + allocation editing
  /api/income/*         Customer income + invoice linking
  /api/allocations/*    Single-row unlink

SECURITY NOTE:
  No authentication middleware currently. Tenancy is the X-Org-ID header,
  trusted as-is; a gateway in front is expected to set it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/solarbooks/recon-engine/ledger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Org-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Master data
		r.Route("/vendors", func(r chi.Router) {
			r.Get("/", h.ListVendors)
			r.Post("/", h.SaveVendor)
			r.Get("/{id}", h.GetVendor)
			r.Get("/{id}/statement", h.GetVendorStatement)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.SaveCustomer)
			r.Get("/{id}/unlinked-income", h.ListUnlinkedIncome)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.SaveProject)
		})

		r.Route("/bank-accounts", func(r chi.Router) {
			r.Get("/", h.ListBankAccounts)
			r.Post("/", h.SaveBankAccount)
		})

		// Obligations
		r.Route("/bills", func(r chi.Router) {
			r.Get("/", h.ListObligations(ledger.ObligationBill))
			r.Post("/", h.CreateObligation(ledger.ObligationBill))
			r.Get("/{id}", h.GetObligation)
			r.Put("/{id}", h.UpdateObligation)
			r.Delete("/{id}", h.DeleteObligation)
			r.Post("/{id}/notes", h.AppendObligationNote)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListObligations(ledger.ObligationInvoice))
			r.Post("/", h.CreateObligation(ledger.ObligationInvoice))
			r.Get("/{id}", h.GetInvoice)
			r.Put("/{id}", h.UpdateObligation)
			r.Delete("/{id}", h.DeleteObligation)
			r.Post("/{id}/notes", h.AppendObligationNote)
		})

		// Settlements
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListSettlements(ledger.SettlementPayment))
			r.Post("/", h.CreateSettlement(ledger.SettlementPayment))
			r.Get("/{id}", h.GetSettlement)
			r.Put("/{id}", h.UpdateSettlement)
			r.Delete("/{id}", h.DeleteSettlement)
			r.Post("/{id}/notes", h.AppendSettlementNote)
			r.Get("/{id}/allocations", h.ListAllocations)
			r.Put("/{id}/allocations", h.ReplaceAllocations)
			r.Post("/{id}/auto-allocate", h.AutoAllocate)
			r.Get("/{id}/eligible-bills", h.ListEligibleBills)
		})

		r.Route("/income", func(r chi.Router) {
			r.Get("/", h.ListSettlements(ledger.SettlementIncome))
			r.Post("/", h.CreateSettlement(ledger.SettlementIncome))
			r.Get("/{id}", h.GetSettlement)
			r.Put("/{id}", h.UpdateSettlement)
			r.Delete("/{id}", h.DeleteSettlement)
			r.Post("/{id}/notes", h.AppendSettlementNote)
			r.Post("/{id}/link", h.LinkIncome)
			r.Delete("/{id}/link", h.UnlinkIncome)
		})

		r.Route("/allocations", func(r chi.Router) {
			r.Delete("/{id}", h.DeleteAllocation)
		})
	})

	return r
}
