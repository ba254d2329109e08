package engine

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/khalecl/supply-chain-idle/internal/buildings"
	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/geology"
)

// Every command checks all preconditions before touching state, so an
// error return always means nothing changed.

// ── Farms ──────────────────────────────────────────────────────────────

// BuyFarm places a farm awaiting crop selection. Only one farm may await
// selection at a time.
func (g *Game) BuyFarm(pos buildings.Position) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, pending := g.buildings.PendingFarmID(); pending {
		return 0, ErrFarmPending
	}
	if !g.ledger.SpendMoney(g.cat.Economy.FarmCost) {
		return 0, ErrInsufficientFunds
	}
	f := g.buildings.AddFarm(pos)
	g.emit(buildingEvent(EventBuildingCreated, f.ID, catalog.KindFarm))
	return f.ID, nil
}

// SelectCrop assigns a crop to the pending farm and starts it growing.
func (g *Game) SelectCrop(farmID uint64, crop catalog.ResourceID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.cat.Crop(crop); !ok {
		return ErrUnknownCrop
	}
	if _, ok := g.buildings.Farm(farmID); !ok {
		return ErrUnknownBuilding
	}
	if !g.buildings.AssignCrop(farmID, crop) {
		return ErrNoPendingFarm
	}
	e := buildingEvent(EventCropSelected, farmID, catalog.KindFarm)
	e.Resource = crop
	g.emit(e)
	return nil
}

// CancelFarmPlacement removes the pending farm and refunds its price.
func (g *Game) CancelFarmPlacement() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	f, ok := g.buildings.RemovePendingFarm()
	if !ok {
		return ErrNoPendingFarm
	}
	g.ledger.CreditMoney(g.cat.Economy.FarmCost)
	g.emit(buildingEvent(EventBuildingRemoved, f.ID, catalog.KindFarm))
	return nil
}

// HarvestFarm collects one unit of a ready farm's crop for its harvest cost.
func (g *Game) HarvestFarm(id uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	f, ok := g.buildings.Farm(id)
	if !ok {
		return ErrUnknownBuilding
	}
	if !f.IsReady || f.Crop == nil {
		return ErrNotReady
	}
	crop, ok := g.cat.Crop(*f.Crop)
	if !ok {
		return ErrUnknownCrop
	}
	if !g.ledger.SpendMoney(crop.HarvestCost) {
		return ErrInsufficientFunds
	}
	g.ledger.Credit(crop.ID, 1)
	buildings.Restart(f)

	e := buildingEvent(EventHarvested, id, catalog.KindFarm)
	e.Resource, e.Amount = crop.ID, 1
	g.emit(e)
	return nil
}

// ── Processors ─────────────────────────────────────────────────────────

// BuyProcessor places an empty processor of the given type.
func (g *Game) BuyProcessor(t catalog.ProcessorType, pos buildings.Position) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	def, ok := g.cat.Processor(t)
	if !ok {
		return 0, ErrUnknownProcessor
	}
	if !g.ledger.SpendMoney(def.Cost) {
		return 0, ErrInsufficientFunds
	}
	p := g.buildings.AddProcessor(t, pos)
	g.emit(buildingEvent(EventBuildingCreated, p.ID, catalog.KindProcessor))
	return p.ID, nil
}

// LoadProcessor moves amount of the recipe input into the processor's
// storage for one operation cost. Loading restarts the timer.
func (g *Game) LoadProcessor(id uint64, amount float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !(amount > 0) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	p, ok := g.buildings.Processor(id)
	if !ok {
		return ErrUnknownBuilding
	}
	def, ok := g.cat.Processor(p.Type)
	if !ok {
		return ErrUnknownProcessor
	}
	if !g.ledger.Has(def.Input, amount) {
		return ErrInsufficientResource
	}
	if !g.ledger.CanAfford(def.OpCost) {
		return ErrInsufficientFunds
	}
	g.ledger.Debit(def.Input, amount)
	g.ledger.SpendMoney(def.OpCost)
	p.Storage += amount
	p.Elapsed = 0

	e := buildingEvent(EventLoaded, id, catalog.KindProcessor)
	e.Resource, e.Amount = def.Input, amount
	g.emit(e)
	return nil
}

// HarvestProcessor converts one batch of stored input into output.
func (g *Game) HarvestProcessor(id uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.buildings.Processor(id)
	if !ok {
		return ErrUnknownBuilding
	}
	def, ok := g.cat.Processor(p.Type)
	if !ok {
		return ErrUnknownProcessor
	}
	if !p.IsReady {
		return ErrNotReady
	}
	if p.Storage < def.InputAmount {
		return ErrInsufficientResource
	}
	if !g.ledger.SpendMoney(def.OpCost) {
		return ErrInsufficientFunds
	}
	p.Storage -= def.InputAmount
	g.ledger.Credit(def.Output, def.OutputAmount)
	buildings.Restart(p)

	e := buildingEvent(EventHarvested, id, catalog.KindProcessor)
	e.Resource, e.Amount = def.Output, def.OutputAmount
	g.emit(e)
	return nil
}

// ── Survey rigs and mines ──────────────────────────────────────────────

// BuySurveyRig places a rig that scans its surroundings once.
func (g *Game) BuySurveyRig(pos buildings.Position) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.ledger.SpendMoney(g.cat.SurveyRig.Cost) {
		return 0, ErrInsufficientFunds
	}
	s := g.buildings.AddSurveyRig(pos)
	g.emit(buildingEvent(EventBuildingCreated, s.ID, catalog.KindSurveyRig))
	return s.ID, nil
}

// CompleteSurvey records the deposits within the rig's reveal radius once
// its scan has finished. An empty result is final.
func (g *Game) CompleteSurvey(id uint64) ([]geology.Discovery, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.buildings.SurveyRig(id)
	if !ok {
		return nil, ErrUnknownBuilding
	}
	if s.Completed {
		return nil, ErrSurveyCompleted
	}
	if !s.IsReady {
		return nil, ErrNotReady
	}
	g.completeSurvey(s)
	return slices.Clone(s.Results), nil
}

// CompleteReadySurveys completes every rig whose scan has finished and
// returns how many were completed.
func (g *Game) CompleteReadySurveys() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, s := range g.buildings.SurveyRigs() {
		if s.IsReady && !s.Completed {
			g.completeSurvey(s)
			n++
		}
	}
	return n
}

func (g *Game) completeSurvey(s *buildings.SurveyRig) {
	var results []geology.Discovery
	if g.geo != nil {
		spec := g.cat.SurveyRig
		results = g.geo.SurveyArea(s.Position.X, s.Position.Z, spec.RevealRadius, spec.SampleStep)
	}
	s.Results = results
	s.Completed = true
	s.IsReady = false

	e := buildingEvent(EventSurveyCompleted, s.ID, catalog.KindSurveyRig)
	e.Amount = float64(len(results))
	g.emit(e)
	slog.Debug("survey completed", "rig", s.ID, "discoveries", len(results))
}

// BuyMine places a mine over a deposit the caller already located. A nil
// resource places an inert mine that never produces.
func (g *Game) BuyMine(pos buildings.Position, found *catalog.ResourceID) (uint64, error) {
	var d *geology.Discovery
	if found != nil {
		if _, ok := g.cat.Mineral(*found); !ok {
			return 0, ErrUnknownResource
		}
		d = &geology.Discovery{X: pos.X, Z: pos.Z, Resource: *found}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buyMine(pos, d)
}

// BuyMineAt places a mine and asks the game's geology what lies beneath.
// The exact spot is checked first, then the nearest deposit within the
// mine's probe radius.
func (g *Game) BuyMineAt(pos buildings.Position) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.ledger.CanAfford(g.cat.Mine.Cost) {
		return 0, ErrInsufficientFunds
	}
	return g.buyMine(pos, g.probe(pos))
}

func (g *Game) probe(pos buildings.Position) *geology.Discovery {
	if g.geo == nil {
		return nil
	}
	if d, ok := g.geo.ResourceAt(pos.X, pos.Z); ok {
		return &d
	}
	var best *geology.Discovery
	bestDist := math.Inf(1)
	for _, d := range g.geo.SurveyArea(pos.X, pos.Z, g.cat.Mine.ProbeRadius, g.cat.SurveyRig.SampleStep) {
		dist := math.Hypot(d.X-pos.X, d.Z-pos.Z)
		if dist < bestDist {
			best, bestDist = &d, dist
		}
	}
	return best
}

func (g *Game) buyMine(pos buildings.Position, found *geology.Discovery) (uint64, error) {
	if !g.ledger.SpendMoney(g.cat.Mine.Cost) {
		return 0, ErrInsufficientFunds
	}
	m := g.buildings.AddMine(pos, found)
	e := buildingEvent(EventBuildingCreated, m.ID, catalog.KindMine)
	if m.Resource != nil {
		e.Resource = *m.Resource
	}
	g.emit(e)
	return m.ID, nil
}

// HarvestMine extracts one unit from a ready mine for its extraction cost.
func (g *Game) HarvestMine(id uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.buildings.Mine(id)
	if !ok {
		return ErrUnknownBuilding
	}
	if m.Inert() {
		return ErrInertMine
	}
	if !m.IsReady {
		return ErrNotReady
	}
	if !g.ledger.SpendMoney(m.ExtractCost) {
		return ErrInsufficientFunds
	}
	g.ledger.Credit(*m.Resource, 1)
	buildings.Restart(m)

	e := buildingEvent(EventHarvested, id, catalog.KindMine)
	e.Resource, e.Amount = *m.Resource, 1
	g.emit(e)
	return nil
}

// ── Market ─────────────────────────────────────────────────────────────

// SellResource sells amount of a resource at the current price and returns
// the revenue. The price is read under the same lock as the debit.
func (g *Game) SellResource(id catalog.ResourceID, amount float64) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !(amount > 0) || math.IsInf(amount, 0) {
		return 0, ErrInvalidAmount
	}
	if _, ok := g.cat.Resource(id); !ok {
		return 0, ErrUnknownResource
	}
	if !g.ledger.Has(id, amount) {
		return 0, ErrInsufficientResource
	}
	revenue := g.ledger.Sell(id, amount, g.market.Price(id))

	g.emit(Event{Type: EventSold, Resource: id, Amount: amount})
	return revenue, nil
}

// ── Clock ──────────────────────────────────────────────────────────────

// Tick advances simulated time by dt: building timers move under the
// prestige multiplier, then the market may re-roll prices. Non-positive dt
// is ignored.
func (g *Game) Tick(dt time.Duration) {
	if dt <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gameTime += dt
	for _, b := range g.buildings.Advance(dt, g.cat.SpeedMultiplier(g.prestige)) {
		g.emit(buildingEvent(EventBuildingReady, b.Base().ID, b.Kind()))
	}
	if g.market.Tick(g.gameTime) {
		g.emit(Event{Type: EventPricesUpdated})
	}
}

// ── Prestige ───────────────────────────────────────────────────────────

// Prestige trades all flow state for a permanent production speed bonus.
// Resources go to zero, money to the starting stake and the clock restarts;
// buildings, crops, loaded storage, discoveries and survey results stay.
func (g *Game) Prestige() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ledger.Zero(g.cat.Economy.StartingMoney)
	g.prestige++
	g.gameTime = 0
	g.market.ResetClock()
	g.buildings.ResetFlow()

	g.emit(Event{Type: EventPrestige, Amount: float64(g.prestige)})
	slog.Info("prestige", "level", g.prestige, "multiplier", g.cat.SpeedMultiplier(g.prestige))
	return g.prestige
}

// Reset wipes the run: no buildings, base prices, prestige 0.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ledger.Zero(g.cat.Economy.StartingMoney)
	g.buildings.Clear()
	g.market.Reset()
	g.prestige = 0
	g.gameTime = 0

	g.emit(Event{Type: EventReset})
	slog.Info("game reset")
}
