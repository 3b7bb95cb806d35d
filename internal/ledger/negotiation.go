package ledger

import (
	"context"
	"fmt"

	"insurelane/pkg/domain"
)

// Negotiate is the company's single move on a freshly submitted request:
// approve the plan's terms as-is (counterAmount zero), counter with an
// adjusted amount, or deny with an immediate refund. Whether the company's
// declared rate justifies the choice is a company-side underwriting decision;
// the engine only enforces who may move and from which state.
func (l *Ledger) Negotiate(ctx context.Context, caller domain.Identity, requestID uint64, approve bool, counterAmount domain.Amount) (domain.Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, plan, err := l.requestLocked(requestID)
	if err != nil {
		return domain.Request{}, err
	}
	role := l.roleOf(caller)
	if role.Kind != domain.RoleCompany || role.CompanyID != plan.CompanyID {
		return domain.Request{}, fmt.Errorf("%w: caller does not control the plan's company", domain.ErrUnauthorized)
	}
	l.expireLocked(ctx, r)
	if !r.Status.CanNegotiate() {
		return domain.Request{}, fmt.Errorf("%w: request %d is %s, company may only act on %s", domain.ErrInvalidState, r.ID, r.Status, domain.StatusPending)
	}

	switch {
	case approve && counterAmount == 0:
		r.Status = domain.StatusApproved
		l.emit(ctx, EventRequestNegotiated, "request", r.ID, caller, map[string]any{
			"outcome": string(domain.StatusApproved),
		})
	case approve:
		r.Status = domain.StatusCounterOffered
		r.OfferAmount = counterAmount
		l.emit(ctx, EventRequestNegotiated, "request", r.ID, caller, map[string]any{
			"outcome":      string(domain.StatusCounterOffered),
			"offer_amount": counterAmount,
		})
	default:
		refunded, err := l.refundEscrow(r.ID)
		if err != nil {
			return domain.Request{}, err
		}
		r.Status = domain.StatusDenied
		l.emit(ctx, EventRequestDenied, "request", r.ID, caller, map[string]any{
			"refunded": refunded,
			"to":       r.Customer,
		})
	}
	return *r, nil
}

// RespondToOffer is the customer's answer to the company's decision. Accepting
// settles: the escrowed premium moves to the company and the coverage
// obligation is recorded as an active policy, atomically. Rejecting refunds.
func (l *Ledger) RespondToOffer(ctx context.Context, caller domain.Identity, requestID uint64, accept bool) (domain.Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, plan, err := l.requestLocked(requestID)
	if err != nil {
		return domain.Request{}, err
	}
	if caller != r.Customer {
		return domain.Request{}, fmt.Errorf("%w: caller is not the request's customer", domain.ErrUnauthorized)
	}
	l.expireLocked(ctx, r)
	if !r.Status.CanRespond() {
		return domain.Request{}, fmt.Errorf("%w: request %d is %s, customer may only respond to %s or %s", domain.ErrInvalidState, r.ID, r.Status, domain.StatusApproved, domain.StatusCounterOffered)
	}

	company, err := l.companyLocked(plan.CompanyID)
	if err != nil {
		return domain.Request{}, err
	}

	if !accept {
		refunded, err := l.refundEscrow(r.ID)
		if err != nil {
			return domain.Request{}, err
		}
		r.Status = domain.StatusDenied
		l.emit(ctx, EventRequestDenied, "request", r.ID, caller, map[string]any{
			"refunded": refunded,
			"to":       r.Customer,
		})
		return *r, nil
	}

	premium, err := l.releaseEscrow(r.ID, company.Addr)
	if err != nil {
		return domain.Request{}, err
	}
	r.Status = domain.StatusSettled
	activated := l.now().UTC()
	pol := domain.Policy{
		RequestID:      r.ID,
		PlanID:         plan.ID,
		CompanyID:      company.ID,
		Customer:       r.Customer,
		CoverageAmount: plan.CoverageAmount,
		PremiumPaid:    premium,
		ActivatedAt:    activated,
		ExpiresAt:      activated.Add(plan.Term()),
	}
	l.policies = append(l.policies, pol)

	l.emit(ctx, EventRequestSettled, "request", r.ID, caller, map[string]any{
		"company_id":      company.ID,
		"premium":         premium,
		"offer_amount":    r.OfferAmount,
		"coverage_amount": plan.CoverageAmount,
		"expires_at":      pol.ExpiresAt,
	})
	return *r, nil
}

// expireLocked lazily ages out a Pending request past the TTL, refunding its
// escrow. The engine has no background clock: expiry only ever happens on the
// next read or write touching the request.
func (l *Ledger) expireLocked(ctx context.Context, r *domain.Request) {
	if l.requestTTL <= 0 || r.Status != domain.StatusPending {
		return
	}
	if l.now().Sub(r.CreatedAt) < l.requestTTL {
		return
	}
	refunded, err := l.refundEscrow(r.ID)
	if err != nil {
		return
	}
	r.Status = domain.StatusExpired
	l.emit(ctx, EventRequestExpired, "request", r.ID, r.Customer, map[string]any{
		"refunded": refunded,
		"to":       r.Customer,
	})
}

// ViewPolicies returns active policies visible to the caller: a company sees
// policies written against its plans, anyone else sees their own.
func (l *Ledger) ViewPolicies(caller domain.Identity) []domain.Policy {
	l.mu.Lock()
	defer l.mu.Unlock()

	role := l.roleOf(caller)
	var out []domain.Policy
	for _, p := range l.policies {
		if role.Kind == domain.RoleCompany && p.CompanyID == role.CompanyID {
			out = append(out, p)
		} else if role.Kind != domain.RoleCompany && p.Customer == caller {
			out = append(out, p)
		}
	}
	return out
}
