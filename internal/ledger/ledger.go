// Package ledger implements the insurance marketplace as a single serialized
// state container: company registry, plan catalog, request ledger, the
// negotiation engine and premium escrow. Every operation validates all of its
// preconditions first and then applies state and fund movement together under
// one lock hold, so a failed call leaves no trace.
package ledger

import (
	"context"
	"sync"
	"time"

	"insurelane/pkg/domain"
)

type Config struct {
	// Admin is the single identity allowed to register companies.
	Admin domain.Identity
	// RequestTTL bounds how long a request may sit in Pending before it
	// expires with a refund. Zero disables expiry.
	RequestTTL time.Duration
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

type Ledger struct {
	mu sync.Mutex

	admin      domain.Identity
	requestTTL time.Duration
	now        func() time.Time

	companies       []domain.Company
	companiesByName map[string]uint64
	companiesByAddr map[domain.Identity]uint64
	plans           []domain.Plan
	requests        []domain.Request
	policies        []domain.Policy

	bank   *bank
	escrow map[uint64]escrowCell

	sinks []Sink
}

func New(cfg Config, sinks ...Sink) *Ledger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		admin:           cfg.Admin,
		requestTTL:      cfg.RequestTTL,
		now:             now,
		companiesByName: make(map[string]uint64),
		companiesByAddr: make(map[domain.Identity]uint64),
		bank:            newBank(),
		escrow:          make(map[uint64]escrowCell),
		sinks:           sinks,
	}
}

// IsAdmin reports whether the identity is the ledger's admin.
func (l *Ledger) IsAdmin(caller domain.Identity) bool {
	return caller == l.admin
}

// roleOf resolves the caller's capability for this call. Callers are admin,
// a company controller, or a customer; there is no overlap because company
// addresses are rejected at registration if they collide with the admin.
func (l *Ledger) roleOf(caller domain.Identity) domain.Role {
	if caller == l.admin {
		return domain.Role{Kind: domain.RoleAdmin}
	}
	if id, ok := l.companiesByAddr[caller]; ok {
		return domain.Role{Kind: domain.RoleCompany, CompanyID: id}
	}
	return domain.Role{Kind: domain.RoleCustomer}
}

// Deposit credits an account. Funding is an external collaborator concern;
// this is the entry point it uses (and the dev faucet behind it).
func (l *Ledger) Deposit(ctx context.Context, to domain.Identity, amount domain.Amount) domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bank.deposit(to, amount)
	return l.bank.balance(to)
}

// Balance returns the identity's spendable balance, excluding escrowed funds.
func (l *Ledger) Balance(id domain.Identity) domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bank.balance(id)
}
