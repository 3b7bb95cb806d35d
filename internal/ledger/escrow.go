package ledger

import (
	"fmt"

	"insurelane/pkg/domain"
)

// bank owns every balance on the ledger, including the per-request escrow
// accounts. All fund movement goes through transfer; balances never go
// negative.
type bank struct {
	balances map[domain.Identity]domain.Amount
}

func newBank() *bank {
	return &bank{balances: make(map[domain.Identity]domain.Amount)}
}

func (b *bank) balance(id domain.Identity) domain.Amount {
	return b.balances[id]
}

func (b *bank) deposit(to domain.Identity, amount domain.Amount) {
	b.balances[to] += amount
}

func (b *bank) transfer(from, to domain.Identity, amount domain.Amount) error {
	if b.balances[from] < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", domain.ErrInsufficientFunds, from, b.balances[from], amount)
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

// escrowCell holds one request's premium in transit. A cell exists exactly
// while the request is non-terminal and funded; release and refund both clear
// it, so funds can move out at most once.
type escrowCell struct {
	from   domain.Identity
	amount domain.Amount
}

func escrowAccount(requestID uint64) domain.Identity {
	return domain.Identity(fmt.Sprintf("escrow_%d", requestID))
}

func (l *Ledger) holdEscrow(requestID uint64, from domain.Identity, amount domain.Amount) error {
	if _, exists := l.escrow[requestID]; exists {
		return fmt.Errorf("%w: escrow cell for request %d already funded", domain.ErrInvalidState, requestID)
	}
	if err := l.bank.transfer(from, escrowAccount(requestID), amount); err != nil {
		return err
	}
	l.escrow[requestID] = escrowCell{from: from, amount: amount}
	return nil
}

func (l *Ledger) releaseEscrow(requestID uint64, to domain.Identity) (domain.Amount, error) {
	cell, ok := l.escrow[requestID]
	if !ok {
		return 0, fmt.Errorf("%w: no escrow for request %d", domain.ErrNotFound, requestID)
	}
	if err := l.bank.transfer(escrowAccount(requestID), to, cell.amount); err != nil {
		return 0, err
	}
	delete(l.escrow, requestID)
	return cell.amount, nil
}

func (l *Ledger) refundEscrow(requestID uint64) (domain.Amount, error) {
	cell, ok := l.escrow[requestID]
	if !ok {
		return 0, fmt.Errorf("%w: no escrow for request %d", domain.ErrNotFound, requestID)
	}
	return l.releaseEscrow(requestID, cell.from)
}
