package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"insurelane/pkg/domain"
)

// submitPremiumRequest funds the customer and opens a request against
// company 2's premium plan (id 2, premium 2).
func submitPremiumRequest(t *testing.T, l *Ledger) domain.Request {
	t.Helper()
	ctx := context.Background()
	l.Deposit(ctx, customerID, 10)
	req, err := l.SubmitRequest(ctx, customerID, 2, 2)
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	return req
}

func TestNegotiate_ApproveThenAccept_Settles(t *testing.T) {
	l, _, sink := newTestLedger(t, 0)
	seedMarket(t, l)
	req := submitPremiumRequest(t, l)
	ctx := context.Background()

	out, err := l.Negotiate(ctx, company2ID, req.ID, true, 0)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if out.Status != domain.StatusApproved {
		t.Fatalf("expected %s, got %s", domain.StatusApproved, out.Status)
	}

	out, err = l.RespondToOffer(ctx, customerID, req.ID, true)
	if err != nil {
		t.Fatalf("RespondToOffer: %v", err)
	}
	if out.Status != domain.StatusSettled {
		t.Fatalf("expected %s, got %s", domain.StatusSettled, out.Status)
	}
	if got := l.Balance(company2ID); got != 2 {
		t.Fatalf("expected premium released to company, got %d", got)
	}
	if got := l.Balance(customerID); got != 8 {
		t.Fatalf("expected customer balance 8, got %d", got)
	}
	if len(l.escrow) != 0 {
		t.Fatal("expected escrow cell cleared after settlement")
	}
	if sink.countByType(EventRequestSettled, req.ID) != 1 {
		t.Fatal("expected one settled event")
	}
}

func TestNegotiate_CounterThenAccept_Settles(t *testing.T) {
	l, _, _ := newTestLedger(t, 0)
	seedMarket(t, l)
	req := submitPremiumRequest(t, l)
	ctx := context.Background()

	out, err := l.Negotiate(ctx, company2ID, req.ID, true, 2000)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if out.Status != domain.StatusCounterOffered || out.OfferAmount != 2000 {
		t.Fatalf("expected counter-offer of 2000, got %+v", out)
	}

	out, err = l.RespondToOffer(ctx, customerID, req.ID, true)
	if err != nil {
		t.Fatalf("RespondToOffer: %v", err)
	}
	if out.Status != domain.StatusSettled {
		t.Fatalf("expected %s, got %s", domain.StatusSettled, out.Status)
	}
	if got := l.Balance(company2ID); got != 2 {
		t.Fatalf("expected escrowed premium released to company, got %d", got)
	}

	policies := l.ViewPolicies(customerID)
	if len(policies) != 1 {
		t.Fatalf("expected one active policy, got %d", len(policies))
	}
	pol := policies[0]
	if pol.RequestID != req.ID || pol.CoverageAmount != 200 || pol.PremiumPaid != 2 {
		t.Fatalf("unexpected policy: %+v", pol)
	}
	if want := pol.ActivatedAt.Add(365 * 24 * time.Hour); !pol.ExpiresAt.Equal(want) {
		t.Fatalf("expected policy to run for the plan term, got %v", pol.ExpiresAt)
	}
}

func TestNegotiate_CounterThenReject_RefundsOnce(t *testing.T) {
	l, _, sink := newTestLedger(t, 0)
	seedMarket(t, l)
	req := submitPremiumRequest(t, l)
	ctx := context.Background()

	if _, err := l.Negotiate(ctx, company2ID, req.ID, true, 2000); err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	out, err := l.RespondToOffer(ctx, customerID, req.ID, false)
	if err != nil {
		t.Fatalf("RespondToOffer: %v", err)
	}
	if out.Status != domain.StatusDenied {
		t.Fatalf("expected %s, got %s", domain.StatusDenied, out.Status)
	}
	if got := l.Balance(customerID); got != 10 {
		t.Fatalf("expected full refund, balance 10, got %d", got)
	}
	if got := l.Balance(company2ID); got != 0 {
		t.Fatalf("expected company balance 0, got %d", got)
	}

	// Terminal: neither side can act again, and no second refund happens.
	if _, err := l.RespondToOffer(ctx, customerID, req.ID, false); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if got := l.Balance(customerID); got != 10 {
		t.Fatalf("expected balance unchanged after rejected retry, got %d", got)
	}
	if n := sink.countByType(EventRequestDenied, req.ID); n != 1 {
		t.Fatalf("expected exactly one denied event, got %d", n)
	}
}

func TestNegotiate_Deny_RefundsAndCloses(t *testing.T) {
	l, _, _ := newTestLedger(t, 0)
	seedMarket(t, l)
	req := submitPremiumRequest(t, l)
	ctx := context.Background()

	out, err := l.Negotiate(ctx, company2ID, req.ID, false, 0)
	if err != nil {
		t.Fatalf("Negotiate deny: %v", err)
	}
	if out.Status != domain.StatusDenied {
		t.Fatalf("expected %s, got %s", domain.StatusDenied, out.Status)
	}
	if got := l.Balance(customerID); got != 10 {
		t.Fatalf("expected refund, balance 10, got %d", got)
	}

	if _, err := l.Negotiate(ctx, company2ID, req.ID, true, 0); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("negotiate after denial: expected ErrInvalidState, got %v", err)
	}
	if _, err := l.RespondToOffer(ctx, customerID, req.ID, true); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("respond after denial: expected ErrInvalidState, got %v", err)
	}
}

func TestNegotiate_SecondActRejectedIdempotently(t *testing.T) {
	l, _, _ := newTestLedger(t, 0)
	seedMarket(t, l)
	req := submitPremiumRequest(t, l)
	ctx := context.Background()

	if _, err := l.Negotiate(ctx, company2ID, req.ID, true, 0); err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	companyBefore, customerBefore := l.Balance(company2ID), l.Balance(customerID)

	_, err := l.Negotiate(ctx, company2ID, req.ID, true, 500)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	got, err := l.ViewRequest(ctx, customerID, req.ID)
	if err != nil {
		t.Fatalf("ViewRequest: %v", err)
	}
	if got.Status != domain.StatusApproved || got.OfferAmount != 0 {
		t.Fatalf("expected state unchanged by rejected call, got %+v", got)
	}
	if l.Balance(company2ID) != companyBefore || l.Balance(customerID) != customerBefore {
		t.Fatal("expected balances unchanged by rejected call")
	}
}

func TestNegotiate_Authorization(t *testing.T) {
	l, _, _ := newTestLedger(t, 0)
	seedMarket(t, l)
	req := submitPremiumRequest(t, l)
	ctx := context.Background()

	if _, err := l.Negotiate(ctx, company1ID, req.ID, true, 0); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("other company: expected ErrUnauthorized, got %v", err)
	}
	if _, err := l.Negotiate(ctx, customerID, req.ID, true, 0); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("customer: expected ErrUnauthorized, got %v", err)
	}
	if _, err := l.Negotiate(ctx, company2ID, 42, true, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
	}
}

func TestRespondToOffer_Authorization(t *testing.T) {
	l, _, _ := newTestLedger(t, 0)
	seedMarket(t, l)
	req := submitPremiumRequest(t, l)
	ctx := context.Background()

	// Pending: the customer cannot respond before the company acts.
	if _, err := l.RespondToOffer(ctx, customerID, req.ID, true); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("pending: expected ErrInvalidState, got %v", err)
	}

	if _, err := l.Negotiate(ctx, company2ID, req.ID, true, 0); err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if _, err := l.RespondToOffer(ctx, company2ID, req.ID, true); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("company: expected ErrUnauthorized, got %v", err)
	}
	if _, err := l.RespondToOffer(ctx, strangerID, req.ID, true); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger: expected ErrUnauthorized, got %v", err)
	}
}

func TestPendingRequest_ExpiresLazily(t *testing.T) {
	l, clock, sink := newTestLedger(t, 24*time.Hour)
	seedMarket(t, l)
	req := submitPremiumRequest(t, l)
	ctx := context.Background()

	// Inside the window nothing expires.
	clock.Advance(23 * time.Hour)
	got, err := l.ViewRequest(ctx, customerID, req.ID)
	if err != nil {
		t.Fatalf("ViewRequest: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("expected still pending, got %s", got.Status)
	}

	// Past the window the next touch expires and refunds.
	clock.Advance(2 * time.Hour)
	got, err = l.ViewRequest(ctx, customerID, req.ID)
	if err != nil {
		t.Fatalf("ViewRequest: %v", err)
	}
	if got.Status != domain.StatusExpired {
		t.Fatalf("expected %s, got %s", domain.StatusExpired, got.Status)
	}
	if got := l.Balance(customerID); got != 10 {
		t.Fatalf("expected refund on expiry, balance 10, got %d", got)
	}
	if n := sink.countByType(EventRequestExpired, req.ID); n != 1 {
		t.Fatalf("expected one expired event, got %d", n)
	}

	// The company arriving late finds a closed request, and no double refund.
	if _, err := l.Negotiate(ctx, company2ID, req.ID, true, 0); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if got := l.Balance(customerID); got != 10 {
		t.Fatalf("expected balance unchanged, got %d", got)
	}
}

func TestExpiry_DoesNotTouchNegotiatedRequests(t *testing.T) {
	l, clock, _ := newTestLedger(t, 24*time.Hour)
	seedMarket(t, l)
	req := submitPremiumRequest(t, l)
	ctx := context.Background()

	if _, err := l.Negotiate(ctx, company2ID, req.ID, true, 2000); err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	clock.Advance(48 * time.Hour)

	got, err := l.ViewRequest(ctx, customerID, req.ID)
	if err != nil {
		t.Fatalf("ViewRequest: %v", err)
	}
	if got.Status != domain.StatusCounterOffered {
		t.Fatalf("expected counter-offer to survive the TTL, got %s", got.Status)
	}
	if _, err := l.RespondToOffer(ctx, customerID, req.ID, true); err != nil {
		t.Fatalf("RespondToOffer: %v", err)
	}
}

// Every reachable lifecycle ends with exactly one release or refund.
func TestEscrow_ExactlyOnceAcrossLifecycles(t *testing.T) {
	paths := []struct {
		name    string
		run     func(t *testing.T, l *Ledger, id uint64)
		settled bool
	}{
		{"approve accept", func(t *testing.T, l *Ledger, id uint64) {
			mustNegotiate(t, l, company2ID, id, true, 0)
			mustRespond(t, l, customerID, id, true)
		}, true},
		{"approve reject", func(t *testing.T, l *Ledger, id uint64) {
			mustNegotiate(t, l, company2ID, id, true, 0)
			mustRespond(t, l, customerID, id, false)
		}, false},
		{"counter accept", func(t *testing.T, l *Ledger, id uint64) {
			mustNegotiate(t, l, company2ID, id, true, 1500)
			mustRespond(t, l, customerID, id, true)
		}, true},
		{"counter reject", func(t *testing.T, l *Ledger, id uint64) {
			mustNegotiate(t, l, company2ID, id, true, 1500)
			mustRespond(t, l, customerID, id, false)
		}, false},
		{"deny", func(t *testing.T, l *Ledger, id uint64) {
			mustNegotiate(t, l, company2ID, id, false, 0)
		}, false},
	}
	for _, path := range paths {
		t.Run(path.name, func(t *testing.T) {
			l, _, _ := newTestLedger(t, 0)
			seedMarket(t, l)
			req := submitPremiumRequest(t, l)
			path.run(t, l, req.ID)

			if len(l.escrow) != 0 {
				t.Fatal("expected escrow cleared once terminal")
			}
			company, customer := l.Balance(company2ID), l.Balance(customerID)
			if path.settled && (company != 2 || customer != 8) {
				t.Fatalf("settled: expected company 2 / customer 8, got %d / %d", company, customer)
			}
			if !path.settled && (company != 0 || customer != 10) {
				t.Fatalf("refunded: expected company 0 / customer 10, got %d / %d", company, customer)
			}
		})
	}
}

func mustNegotiate(t *testing.T, l *Ledger, caller domain.Identity, id uint64, approve bool, counter domain.Amount) {
	t.Helper()
	if _, err := l.Negotiate(context.Background(), caller, id, approve, counter); err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
}

func mustRespond(t *testing.T, l *Ledger, caller domain.Identity, id uint64, accept bool) {
	t.Helper()
	if _, err := l.RespondToOffer(context.Background(), caller, id, accept); err != nil {
		t.Fatalf("RespondToOffer: %v", err)
	}
}

func TestViewPolicies_Scoping(t *testing.T) {
	l, _, _ := newTestLedger(t, 0)
	seedMarket(t, l)
	req := submitPremiumRequest(t, l)

	mustNegotiate(t, l, company2ID, req.ID, true, 0)
	mustRespond(t, l, customerID, req.ID, true)

	if got := l.ViewPolicies(company2ID); len(got) != 1 || got[0].CompanyID != 2 {
		t.Fatalf("expected writing company to see the policy, got %+v", got)
	}
	if got := l.ViewPolicies(customerID); len(got) != 1 || got[0].Customer != customerID {
		t.Fatalf("expected customer to see their policy, got %+v", got)
	}
	if got := l.ViewPolicies(company1ID); len(got) != 0 {
		t.Fatalf("expected other company to see nothing, got %+v", got)
	}
	if got := l.ViewPolicies(strangerID); len(got) != 0 {
		t.Fatalf("expected stranger to see nothing, got %+v", got)
	}
}
