package ledger

import (
	"context"
	"fmt"

	"insurelane/pkg/domain"
)

// CreatePlan publishes an insurance product under the caller's company.
// Only a registered company controller may call it; a failed validation
// consumes no plan id.
func (l *Ledger) CreatePlan(ctx context.Context, caller domain.Identity, name, description string, premium, coverageAmount domain.Amount, durationDays uint32) (domain.Plan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	role := l.roleOf(caller)
	if role.Kind != domain.RoleCompany {
		return domain.Plan{}, fmt.Errorf("%w: caller does not control a registered company", domain.ErrUnauthorized)
	}

	p := domain.Plan{
		ID:             uint64(len(l.plans)) + 1,
		CompanyID:      role.CompanyID,
		Name:           name,
		Description:    description,
		Premium:        premium,
		CoverageAmount: coverageAmount,
		DurationDays:   durationDays,
		CreatedAt:      l.now().UTC(),
	}
	if err := p.Validate(); err != nil {
		return domain.Plan{}, err
	}
	l.plans = append(l.plans, p)

	l.emit(ctx, EventPlanCreated, "plan", p.ID, caller, map[string]any{
		"company_id":      p.CompanyID,
		"name":            p.Name,
		"premium":         p.Premium,
		"coverage_amount": p.CoverageAmount,
		"duration_days":   p.DurationDays,
	})
	return p, nil
}

// Plans returns every plan across all companies in ascending id order.
// Public read.
func (l *Ledger) Plans() []domain.Plan {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Plan, len(l.plans))
	copy(out, l.plans)
	return out
}

// PlansByCompany returns one company's plans in ascending id order.
func (l *Ledger) PlansByCompany(companyID uint64) ([]domain.Plan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.companyLocked(companyID); err != nil {
		return nil, err
	}
	var out []domain.Plan
	for _, p := range l.plans {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *Ledger) planLocked(id uint64) (domain.Plan, error) {
	if id == 0 || id > uint64(len(l.plans)) {
		return domain.Plan{}, fmt.Errorf("%w: plan %d", domain.ErrNotFound, id)
	}
	return l.plans[id-1], nil
}
