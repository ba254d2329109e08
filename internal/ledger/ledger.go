// Package ledger tracks the player's money and resource quantities.
// Every spend is check-then-act: a failed spend leaves the ledger untouched,
// so balances never go negative.
package ledger

import (
	"maps"
	"math"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
)

// Ledger is not safe for concurrent use; the game aggregate owns it.
type Ledger struct {
	Money      float64
	quantities map[catalog.ResourceID]float64
}

// New creates a ledger holding money and a zero balance for every id.
func New(money float64, ids ...catalog.ResourceID) *Ledger {
	l := &Ledger{Money: money, quantities: make(map[catalog.ResourceID]float64, len(ids))}
	for _, id := range ids {
		l.quantities[id] = 0
	}
	return l
}

func valid(amount float64) bool {
	return amount >= 0 && !math.IsNaN(amount) && !math.IsInf(amount, 0)
}

// Quantity returns the held amount of id (0 if never seen).
func (l *Ledger) Quantity(id catalog.ResourceID) float64 {
	return l.quantities[id]
}

// Has reports whether at least amount of id is held.
func (l *Ledger) Has(id catalog.ResourceID, amount float64) bool {
	return valid(amount) && l.quantities[id] >= amount
}

// CanAfford reports whether at least amount of money is held.
func (l *Ledger) CanAfford(amount float64) bool {
	return valid(amount) && l.Money >= amount
}

// Credit adds amount of id. Invalid amounts are ignored and reported false.
func (l *Ledger) Credit(id catalog.ResourceID, amount float64) bool {
	if !valid(amount) {
		return false
	}
	l.quantities[id] += amount
	return true
}

// Debit removes amount of id if enough is held.
func (l *Ledger) Debit(id catalog.ResourceID, amount float64) bool {
	if !l.Has(id, amount) {
		return false
	}
	l.quantities[id] -= amount
	return true
}

// CreditMoney adds amount to the money balance.
func (l *Ledger) CreditMoney(amount float64) bool {
	if !valid(amount) {
		return false
	}
	l.Money += amount
	return true
}

// SpendMoney removes amount from the money balance if enough is held.
func (l *Ledger) SpendMoney(amount float64) bool {
	if !l.CanAfford(amount) {
		return false
	}
	l.Money -= amount
	return true
}

// Sell debits amount of id and credits amount*price. It returns the revenue,
// or 0 with no mutation when the sale is impossible.
func (l *Ledger) Sell(id catalog.ResourceID, amount, price float64) float64 {
	if amount <= 0 || !valid(price) || !l.Has(id, amount) {
		return 0
	}
	revenue := amount * price
	l.quantities[id] -= amount
	l.Money += revenue
	return revenue
}

// Snapshot returns a copy of all quantities.
func (l *Ledger) Snapshot() map[catalog.ResourceID]float64 {
	return maps.Clone(l.quantities)
}

// Zero sets every known quantity to 0 and money to the given amount.
func (l *Ledger) Zero(money float64) {
	for id := range l.quantities {
		l.quantities[id] = 0
	}
	l.Money = money
}

// Restore replaces the ledger contents. Negative or non-finite entries are clamped to 0.
func (l *Ledger) Restore(money float64, quantities map[catalog.ResourceID]float64) {
	if !valid(money) {
		money = 0
	}
	l.Money = money
	for id := range l.quantities {
		l.quantities[id] = 0
	}
	for id, q := range quantities {
		if !valid(q) {
			q = 0
		}
		l.quantities[id] = q
	}
}
