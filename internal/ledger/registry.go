package ledger

import (
	"context"
	"fmt"

	"insurelane/pkg/domain"
)

// RegisterCompany onboards an insurer. Admin only. The supplied addr becomes
// the company's controlling identity for every subsequent plan and
// negotiation call.
func (l *Ledger) RegisterCompany(ctx context.Context, caller domain.Identity, name string, rate uint32, addr domain.Identity) (domain.Company, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.roleOf(caller).Kind != domain.RoleAdmin {
		return domain.Company{}, fmt.Errorf("%w: only admin may register companies", domain.ErrUnauthorized)
	}
	if err := domain.ValidateCompanyInput(name, addr); err != nil {
		return domain.Company{}, err
	}
	if _, exists := l.companiesByName[name]; exists {
		return domain.Company{}, fmt.Errorf("%w: company %q already registered", domain.ErrDuplicateName, name)
	}
	if addr == l.admin {
		return domain.Company{}, fmt.Errorf("%w: admin identity cannot control a company", domain.ErrInvalidArgument)
	}
	if other, exists := l.companiesByAddr[addr]; exists {
		return domain.Company{}, fmt.Errorf("%w: addr already controls company %d", domain.ErrInvalidArgument, other)
	}

	c := domain.Company{
		ID:        uint64(len(l.companies)) + 1,
		Name:      name,
		Rate:      rate,
		Addr:      addr,
		CreatedAt: l.now().UTC(),
	}
	l.companies = append(l.companies, c)
	l.companiesByName[c.Name] = c.ID
	l.companiesByAddr[c.Addr] = c.ID

	l.emit(ctx, EventCompanyRegistered, "company", c.ID, caller, map[string]any{
		"name": c.Name,
		"rate": c.Rate,
		"addr": c.Addr,
	})
	return c, nil
}

// Company is a public read of one company record.
func (l *Ledger) Company(id uint64) (domain.Company, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.companyLocked(id)
}

func (l *Ledger) companyLocked(id uint64) (domain.Company, error) {
	if id == 0 || id > uint64(len(l.companies)) {
		return domain.Company{}, fmt.Errorf("%w: company %d", domain.ErrNotFound, id)
	}
	return l.companies[id-1], nil
}

// CompanyByAddr resolves the company the caller controls, for company
// self-lookup. NotFound if the caller controls none.
func (l *Ledger) CompanyByAddr(caller domain.Identity) (domain.Company, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.companiesByAddr[caller]
	if !ok {
		return domain.Company{}, fmt.Errorf("%w: no company for caller", domain.ErrNotFound)
	}
	return l.companies[id-1], nil
}

// CompanyCount is monotonically non-decreasing.
func (l *Ledger) CompanyCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.companies))
}
