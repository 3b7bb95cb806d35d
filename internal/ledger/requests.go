package ledger

import (
	"context"
	"fmt"

	"insurelane/pkg/domain"
)

// SubmitRequest opens a coverage request against a plan and funds its escrow
// in the same atomic step. The payment must equal the plan's premium exactly;
// on any failure neither the request nor the fund movement happens.
func (l *Ledger) SubmitRequest(ctx context.Context, caller domain.Identity, planID uint64, payment domain.Amount) (domain.Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.roleOf(caller).Kind == domain.RoleAdmin {
		return domain.Request{}, fmt.Errorf("%w: admin cannot submit coverage requests", domain.ErrUnauthorized)
	}
	plan, err := l.planLocked(planID)
	if err != nil {
		return domain.Request{}, err
	}

	// Resubmission against a plan is legal only once the previous request
	// has reached a terminal state, so stale pending ones expire first.
	for i := range l.requests {
		r := &l.requests[i]
		if r.Customer != caller || r.PlanID != planID {
			continue
		}
		l.expireLocked(ctx, r)
		if !r.Status.Terminal() {
			return domain.Request{}, fmt.Errorf("%w: request %d against plan %d is still open", domain.ErrDuplicateRequest, r.ID, planID)
		}
	}

	if payment != plan.Premium {
		return domain.Request{}, fmt.Errorf("%w: payment %d does not match premium %d", domain.ErrInsufficientFunds, payment, plan.Premium)
	}

	id := uint64(len(l.requests)) + 1
	if err := l.holdEscrow(id, caller, payment); err != nil {
		return domain.Request{}, err
	}
	req := domain.Request{
		ID:        id,
		PlanID:    planID,
		Customer:  caller,
		Status:    domain.StatusPending,
		CreatedAt: l.now().UTC(),
	}
	l.requests = append(l.requests, req)

	l.emit(ctx, EventRequestSubmitted, "request", req.ID, caller, map[string]any{
		"plan_id":    planID,
		"company_id": plan.CompanyID,
		"premium":    payment,
	})
	return req, nil
}

// ViewRequests returns every request, terminal included, whose plan belongs
// to the caller's company, in ascending id order.
func (l *Ledger) ViewRequests(ctx context.Context, caller domain.Identity) ([]domain.Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	role := l.roleOf(caller)
	if role.Kind != domain.RoleCompany {
		return nil, fmt.Errorf("%w: caller does not control a registered company", domain.ErrUnauthorized)
	}
	var out []domain.Request
	for i := range l.requests {
		r := &l.requests[i]
		plan, err := l.planLocked(r.PlanID)
		if err != nil {
			return nil, err
		}
		if plan.CompanyID != role.CompanyID {
			continue
		}
		l.expireLocked(ctx, r)
		out = append(out, *r)
	}
	return out, nil
}

// ViewRequest returns one request to its customer or the owning company.
// Anyone else gets NotFound, indistinguishable from an unknown id.
func (l *Ledger) ViewRequest(ctx context.Context, caller domain.Identity, id uint64) (domain.Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, plan, err := l.requestLocked(id)
	if err != nil {
		return domain.Request{}, err
	}
	role := l.roleOf(caller)
	owner := role.Kind == domain.RoleCompany && role.CompanyID == plan.CompanyID
	if caller != r.Customer && !owner {
		return domain.Request{}, fmt.Errorf("%w: request %d", domain.ErrNotFound, id)
	}
	l.expireLocked(ctx, r)
	return *r, nil
}

func (l *Ledger) requestLocked(id uint64) (*domain.Request, domain.Plan, error) {
	if id == 0 || id > uint64(len(l.requests)) {
		return nil, domain.Plan{}, fmt.Errorf("%w: request %d", domain.ErrNotFound, id)
	}
	r := &l.requests[id-1]
	plan, err := l.planLocked(r.PlanID)
	if err != nil {
		return nil, domain.Plan{}, err
	}
	return r, plan, nil
}
