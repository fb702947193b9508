/*
master.go - Master data pass-through operations

PURPOSE:
  CRUD-lite for vendors, customers, projects and bank accounts. The engine
  mostly reads these for identity and display names; writes exist so the HTTP
  surface is self-sufficient. No balance logic lives here.
*/
package recon

import (
	"context"

	"github.com/google/uuid"

	"github.com/solarbooks/recon-engine/ledger"
)

// SaveVendor creates or updates a vendor.
func (s *Service) SaveVendor(ctx context.Context, orgID ledger.OrgID, v *ledger.Vendor) (*ledger.Vendor, error) {
	if v.Name == "" {
		return nil, ledger.Validationf(ledger.CodeVendorMismatch, "vendor name is required")
	}
	if v.ID == "" {
		v.ID = ledger.VendorID(uuid.NewString())
	}
	v.OrgID = orgID
	if err := s.store.SaveVendor(ctx, v); err != nil {
		return nil, wrap("save vendor", err)
	}
	return v, nil
}

// GetVendor returns one vendor.
func (s *Service) GetVendor(ctx context.Context, orgID ledger.OrgID, id ledger.VendorID) (*ledger.Vendor, error) {
	v, err := s.store.GetVendor(ctx, orgID, id)
	return v, wrap("get vendor", err)
}

// ListVendors returns the org's vendors.
func (s *Service) ListVendors(ctx context.Context, orgID ledger.OrgID) ([]*ledger.Vendor, error) {
	vs, err := s.store.ListVendors(ctx, orgID)
	return vs, wrap("list vendors", err)
}

// SaveCustomer creates or updates a customer.
func (s *Service) SaveCustomer(ctx context.Context, orgID ledger.OrgID, c *ledger.Customer) (*ledger.Customer, error) {
	if c.Name == "" {
		return nil, ledger.Validationf(ledger.CodeCustomerMismatch, "customer name is required")
	}
	if c.ID == "" {
		c.ID = ledger.CustomerID(uuid.NewString())
	}
	c.OrgID = orgID
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		return nil, wrap("save customer", err)
	}
	return c, nil
}

// GetCustomer returns one customer.
func (s *Service) GetCustomer(ctx context.Context, orgID ledger.OrgID, id ledger.CustomerID) (*ledger.Customer, error) {
	c, err := s.store.GetCustomer(ctx, orgID, id)
	return c, wrap("get customer", err)
}

// ListCustomers returns the org's customers.
func (s *Service) ListCustomers(ctx context.Context, orgID ledger.OrgID) ([]*ledger.Customer, error) {
	cs, err := s.store.ListCustomers(ctx, orgID)
	return cs, wrap("list customers", err)
}

// SaveProject creates or updates a project.
func (s *Service) SaveProject(ctx context.Context, orgID ledger.OrgID, p *ledger.Project) (*ledger.Project, error) {
	if p.ID == "" {
		p.ID = ledger.ProjectID(uuid.NewString())
	}
	p.OrgID = orgID
	if err := s.store.SaveProject(ctx, p); err != nil {
		return nil, wrap("save project", err)
	}
	return p, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, orgID ledger.OrgID, id ledger.ProjectID) (*ledger.Project, error) {
	p, err := s.store.GetProject(ctx, orgID, id)
	return p, wrap("get project", err)
}

// ListProjects returns the org's projects.
func (s *Service) ListProjects(ctx context.Context, orgID ledger.OrgID) ([]*ledger.Project, error) {
	ps, err := s.store.ListProjects(ctx, orgID)
	return ps, wrap("list projects", err)
}

// SaveBankAccount creates or updates a bank account.
func (s *Service) SaveBankAccount(ctx context.Context, orgID ledger.OrgID, b *ledger.BankAccount) (*ledger.BankAccount, error) {
	if b.ID == "" {
		b.ID = ledger.BankAccountID(uuid.NewString())
	}
	b.OrgID = orgID
	if err := s.store.SaveBankAccount(ctx, b); err != nil {
		return nil, wrap("save bank account", err)
	}
	return b, nil
}

// GetBankAccount returns one bank account.
func (s *Service) GetBankAccount(ctx context.Context, orgID ledger.OrgID, id ledger.BankAccountID) (*ledger.BankAccount, error) {
	b, err := s.store.GetBankAccount(ctx, orgID, id)
	return b, wrap("get bank account", err)
}

// ListBankAccounts returns the org's bank accounts.
func (s *Service) ListBankAccounts(ctx context.Context, orgID ledger.OrgID) ([]*ledger.BankAccount, error) {
	bs, err := s.store.ListBankAccounts(ctx, orgID)
	return bs, wrap("list bank accounts", err)
}
