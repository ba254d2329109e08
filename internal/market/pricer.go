// Package market keeps the current sell price of every resource. Prices
// drift around their base value at most once per price interval and always
// stay inside the resource's [min, max] band.
package market

import (
	"maps"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
)

// Pricer is not safe for concurrent use; the game aggregate owns it.
type Pricer struct {
	reg        *catalog.Registry
	prices     map[catalog.ResourceID]float64
	lastUpdate time.Duration
	rng        *rand.Rand
}

// NewPricer creates a pricer with every price at its base value.
func NewPricer(reg *catalog.Registry, seed int64) *Pricer {
	p := &Pricer{
		reg:    reg,
		prices: make(map[catalog.ResourceID]float64, len(reg.Resources())),
		rng:    rand.New(rand.NewSource(seed + 400)),
	}
	p.Reset()
	return p
}

// Tick re-rolls all prices when at least one price interval has passed since
// the last update. It reports whether prices changed.
func (p *Pricer) Tick(now time.Duration) bool {
	if now-p.lastUpdate < p.reg.Economy.PriceInterval {
		return false
	}
	variance := p.reg.Economy.PriceVariance
	// Catalog order keeps the RNG draws reproducible.
	for _, res := range p.reg.Resources() {
		delta := (p.rng.Float64() - 0.5) * 2 * variance
		p.prices[res.ID] = cents(clamp(res.BasePrice+delta, res.Min, res.Max))
	}
	p.lastUpdate = now
	return true
}

// Price returns the current price of id, 0 if unknown.
func (p *Pricer) Price(id catalog.ResourceID) float64 {
	return p.prices[id]
}

// Prices returns a copy of every current price.
func (p *Pricer) Prices() map[catalog.ResourceID]float64 {
	return maps.Clone(p.prices)
}

// LastUpdate is the game time of the most recent re-roll.
func (p *Pricer) LastUpdate() time.Duration {
	return p.lastUpdate
}

// Reset puts every price back to base and the throttle clock to zero.
func (p *Pricer) Reset() {
	for _, res := range p.reg.Resources() {
		p.prices[res.ID] = res.BasePrice
	}
	p.lastUpdate = 0
}

// ResetClock zeroes the throttle clock and keeps the current prices.
func (p *Pricer) ResetClock() {
	p.lastUpdate = 0
}

// Restore loads saved prices. Unknown ids are dropped, missing ones get the
// base price and every value is clamped into its band.
func (p *Pricer) Restore(prices map[catalog.ResourceID]float64, lastUpdate time.Duration) {
	for _, res := range p.reg.Resources() {
		v, ok := prices[res.ID]
		if !ok {
			v = res.BasePrice
		}
		p.prices[res.ID] = clamp(v, res.Min, res.Max)
	}
	if lastUpdate < 0 {
		lastUpdate = 0
	}
	p.lastUpdate = lastUpdate
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

func cents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
