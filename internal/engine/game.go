// Package engine owns the authoritative game aggregate and the real-time
// loop that advances it. Every command, tick and query on a Game is
// serialized behind one mutex; readers only ever see deep-copied snapshots.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/khalecl/supply-chain-idle/internal/buildings"
	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/geology"
	"github.com/khalecl/supply-chain-idle/internal/ledger"
	"github.com/khalecl/supply-chain-idle/internal/market"
)

// Geology answers deposit queries at mine purchase and survey completion.
// *geology.Map satisfies it.
type Geology interface {
	ResourceAt(x, z float64) (geology.Discovery, bool)
	SurveyArea(cx, cz, radius, step float64) []geology.Discovery
}

// Options configures a new Game.
type Options struct {
	Seed    int64
	Catalog *catalog.Registry // nil selects catalog.Default()
	Geology Geology           // nil means nothing is ever found
}

// Game is the simulation aggregate: ledger, buildings, market and prestige.
type Game struct {
	mu sync.Mutex

	cat  *catalog.Registry
	geo  Geology
	seed int64

	ledger    *ledger.Ledger
	buildings *buildings.Registry
	market    *market.Pricer

	prestige int
	gameTime time.Duration

	subs     map[int]chan Event
	nextSub  int
	eventSeq uint64
	recent   []Event
}

// NewGame creates a fresh run with the starting money and base prices.
func NewGame(opts Options) *Game {
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	return &Game{
		cat:       cat,
		geo:       opts.Geology,
		seed:      opts.Seed,
		ledger:    ledger.New(cat.Economy.StartingMoney, cat.ResourceIDs()...),
		buildings: buildings.NewRegistry(cat),
		market:    market.NewPricer(cat, opts.Seed),
		subs:      make(map[int]chan Event),
	}
}

// Catalog returns the registry the game was built with.
func (g *Game) Catalog() *catalog.Registry { return g.cat }

// Seed returns the world seed.
func (g *Game) Seed() int64 { return g.seed }

// ── Snapshot ───────────────────────────────────────────────────────────

// Snapshot is a deep copy of the full game state.
type Snapshot struct {
	Seed            int64                          `json:"seed"`
	Money           float64                        `json:"money"`
	Resources       map[catalog.ResourceID]float64 `json:"resources"`
	Prices          map[catalog.ResourceID]float64 `json:"prices"`
	LastPriceUpdate time.Duration                  `json:"lastPriceUpdate"`
	PrestigeLevel   int                            `json:"prestigeLevel"`
	SpeedMultiplier float64                        `json:"speedMultiplier"`
	GameTime        time.Duration                  `json:"gameTime"`
	buildings.State
}

// Snapshot returns a deep copy of the current state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

func (g *Game) snapshot() Snapshot {
	return Snapshot{
		Seed:            g.seed,
		Money:           g.ledger.Money,
		Resources:       g.ledger.Snapshot(),
		Prices:          g.market.Prices(),
		LastPriceUpdate: g.market.LastUpdate(),
		PrestigeLevel:   g.prestige,
		SpeedMultiplier: g.cat.SpeedMultiplier(g.prestige),
		GameTime:        g.gameTime,
		State:           g.buildings.State(),
	}
}

// PendingFarmID returns the id of the farm awaiting crop selection.
func (g *Game) PendingFarmID() (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buildings.PendingFarmID()
}

// Money returns the current money balance.
func (g *Game) Money() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.Money
}

// Quantity returns the held amount of a resource.
func (g *Game) Quantity(id catalog.ResourceID) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.Quantity(id)
}

// Price returns the current market price of a resource.
func (g *Game) Price(id catalog.ResourceID) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.market.Price(id)
}

// GameTime returns the simulated time since the run (or prestige) started.
func (g *Game) GameTime() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gameTime
}

// Restore replaces the whole state with s. The snapshot is validated first;
// on error the game is left untouched.
func (g *Game) Restore(s Snapshot) error {
	if err := g.validate(s); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.seed = s.Seed
	g.ledger.Restore(s.Money, s.Resources)
	g.market.Restore(s.Prices, s.LastPriceUpdate)
	g.prestige = s.PrestigeLevel
	g.gameTime = s.GameTime
	g.buildings.Restore(s.State)

	slog.Info("game restored",
		"game_time", g.gameTime,
		"prestige", g.prestige,
		"buildings", len(g.buildings.All()),
	)
	return nil
}

func (g *Game) validate(s Snapshot) error {
	if s.Money < 0 || math.IsNaN(s.Money) || math.IsInf(s.Money, 0) {
		return fmt.Errorf("money %v out of range", s.Money)
	}
	if s.PrestigeLevel < 0 {
		return fmt.Errorf("prestige level %d negative", s.PrestigeLevel)
	}
	if s.GameTime < 0 {
		return fmt.Errorf("game time %v negative", s.GameTime)
	}
	for id, q := range s.Resources {
		if _, ok := g.cat.Resource(id); !ok {
			return fmt.Errorf("%w %q", ErrUnknownResource, id)
		}
		if q < 0 || math.IsNaN(q) {
			return fmt.Errorf("resource %q quantity %v negative", id, q)
		}
	}

	seen := make(map[uint64]bool)
	unique := func(id uint64) error {
		if seen[id] {
			return fmt.Errorf("duplicate building id %d", id)
		}
		seen[id] = true
		return nil
	}
	pending := 0
	for _, f := range s.Farms {
		if err := unique(f.ID); err != nil {
			return err
		}
		if f.Crop == nil {
			pending++
			continue
		}
		if _, ok := g.cat.Crop(*f.Crop); !ok {
			return fmt.Errorf("farm %d: %w %q", f.ID, ErrUnknownCrop, *f.Crop)
		}
	}
	if pending > 1 {
		return fmt.Errorf("%d farms awaiting crop selection", pending)
	}
	for _, p := range s.Processors {
		if err := unique(p.ID); err != nil {
			return err
		}
		if _, ok := g.cat.Processor(p.Type); !ok {
			return fmt.Errorf("processor %d: %w %q", p.ID, ErrUnknownProcessor, p.Type)
		}
		if p.Storage < 0 {
			return fmt.Errorf("processor %d: negative storage", p.ID)
		}
	}
	for _, m := range s.Mines {
		if err := unique(m.ID); err != nil {
			return err
		}
		if m.Resource != nil {
			if _, ok := g.cat.Mineral(*m.Resource); !ok {
				return fmt.Errorf("mine %d: %w %q", m.ID, ErrUnknownResource, *m.Resource)
			}
			if m.ExtractTime <= 0 {
				return fmt.Errorf("mine %d: extract time %v not positive", m.ID, m.ExtractTime)
			}
			if m.ExtractCost < 0 {
				return fmt.Errorf("mine %d: negative extract cost %v", m.ID, m.ExtractCost)
			}
		}
	}
	for _, r := range s.SurveyRigs {
		if err := unique(r.ID); err != nil {
			return err
		}
	}
	return nil
}
