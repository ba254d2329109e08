package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khalecl/supply-chain-idle/internal/buildings"
	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/geology"
)

// stubGeology returns a configured deposit at every point and fixed survey results.
type stubGeology struct {
	at      *geology.Discovery
	results []geology.Discovery
	calls   int
}

func (s *stubGeology) ResourceAt(x, z float64) (geology.Discovery, bool) {
	if s.at == nil {
		return geology.Discovery{}, false
	}
	d := *s.at
	d.X, d.Z = x, z
	return d, true
}

func (s *stubGeology) SurveyArea(cx, cz, radius, step float64) []geology.Discovery {
	s.calls++
	return s.results
}

func newGame(t *testing.T) *Game {
	t.Helper()
	return NewGame(Options{Seed: 1})
}

func withMoney(t *testing.T, g *Game, money float64) {
	t.Helper()
	snap := g.Snapshot()
	snap.Money = money
	require.NoError(t, g.Restore(snap))
}

func withResource(t *testing.T, g *Game, id catalog.ResourceID, qty float64) {
	t.Helper()
	snap := g.Snapshot()
	snap.Resources[id] = qty
	require.NoError(t, g.Restore(snap))
}

func TestNewGame_StartingState(t *testing.T) {
	g := newGame(t)
	snap := g.Snapshot()

	assert.Equal(t, 100.0, snap.Money)
	assert.Equal(t, 1.0, snap.SpeedMultiplier)
	assert.Zero(t, snap.PrestigeLevel)
	assert.Nil(t, snap.PendingFarmID)
	assert.Len(t, snap.Resources, 30)
	for id, q := range snap.Resources {
		assert.Zero(t, q, id)
	}
}

func TestBuyFarm_InsufficientFunds(t *testing.T) {
	g := newGame(t)
	withMoney(t, g, 49.99)

	_, err := g.BuyFarm(buildings.Position{})

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 49.99, g.Money())
	assert.Empty(t, g.Snapshot().Farms)
}

func TestSelectCrop_Errors(t *testing.T) {
	g := newGame(t)
	id, err := g.BuyFarm(buildings.Position{})
	require.NoError(t, err)

	assert.ErrorIs(t, g.SelectCrop(id, "iron"), ErrUnknownCrop)
	assert.ErrorIs(t, g.SelectCrop(id+10, "cotton"), ErrUnknownBuilding)
	require.NoError(t, g.SelectCrop(id, "cotton"))
	assert.ErrorIs(t, g.SelectCrop(id, "wheat"), ErrNoPendingFarm)
	assert.ErrorIs(t, g.CancelFarmPlacement(), ErrNoPendingFarm)
}

func TestCancelFarmPlacement_IDNotReused(t *testing.T) {
	g := newGame(t)
	first, err := g.BuyFarm(buildings.Position{})
	require.NoError(t, err)
	require.NoError(t, g.CancelFarmPlacement())

	second, err := g.BuyFarm(buildings.Position{})
	require.NoError(t, err)

	assert.Greater(t, second, first)
	assert.Equal(t, 50.0, g.Money())
}

func TestHarvestFarm_NotReadyAndFunds(t *testing.T) {
	g := newGame(t)
	id, _ := g.BuyFarm(buildings.Position{})
	require.NoError(t, g.SelectCrop(id, "coffee"))

	assert.ErrorIs(t, g.HarvestFarm(id), ErrNotReady)

	g.Tick(10 * time.Second)
	withMoney(t, g, 2)
	assert.ErrorIs(t, g.HarvestFarm(id), ErrInsufficientFunds)
	assert.Zero(t, g.Quantity("coffee"))

	withMoney(t, g, 3)
	require.NoError(t, g.HarvestFarm(id))
	assert.Equal(t, 1.0, g.Quantity("coffee"))
	assert.Zero(t, g.Money())
}

func TestProcessorChain(t *testing.T) {
	// Arrange
	g := newGame(t)
	withMoney(t, g, 1000)
	withResource(t, g, "cotton", 3)
	id, err := g.BuyProcessor("warehouse", buildings.Position{X: 3})
	require.NoError(t, err)

	// Act
	require.NoError(t, g.LoadProcessor(id, 2))
	g.Tick(8 * time.Second)
	require.NoError(t, g.HarvestProcessor(id))

	// Assert
	assert.InDelta(t, 0.8, g.Quantity("cloth"), 1e-9)
	assert.Equal(t, 1.0, g.Quantity("cotton"))
	assert.Equal(t, 1000.0-100-2-2, g.Money())
	proc := g.Snapshot().Processors[0]
	assert.Equal(t, 1.0, proc.Storage)
	assert.False(t, proc.IsReady)
}

func TestLoadProcessor_Errors(t *testing.T) {
	g := newGame(t)
	id, err := g.BuyProcessor("warehouse", buildings.Position{})
	require.NoError(t, err)

	assert.ErrorIs(t, g.LoadProcessor(id, 0), ErrInvalidAmount)
	assert.ErrorIs(t, g.LoadProcessor(id, -1), ErrInvalidAmount)
	assert.ErrorIs(t, g.LoadProcessor(id+5, 1), ErrUnknownBuilding)
	assert.ErrorIs(t, g.LoadProcessor(id, 1), ErrInsufficientResource)

	withResource(t, g, "cotton", 1)
	withMoney(t, g, 1)
	assert.ErrorIs(t, g.LoadProcessor(id, 1), ErrInsufficientFunds)
	assert.Equal(t, 1.0, g.Quantity("cotton"), "failed load must not consume input")

	_, err = g.BuyProcessor("teleporter", buildings.Position{})
	assert.ErrorIs(t, err, ErrUnknownProcessor)
}

func TestLoadProcessor_RestartsTimer(t *testing.T) {
	g := newGame(t)
	withMoney(t, g, 1000)
	withResource(t, g, "cloth", 10)
	id, _ := g.BuyProcessor("factory", buildings.Position{})

	require.NoError(t, g.LoadProcessor(id, 2))
	g.Tick(9 * time.Second)
	require.NoError(t, g.LoadProcessor(id, 2))
	g.Tick(9 * time.Second)

	assert.False(t, g.Snapshot().Processors[0].IsReady)
	g.Tick(time.Second)
	assert.True(t, g.Snapshot().Processors[0].IsReady)
}

func TestHarvestProcessor_YieldIndependentOfHistory(t *testing.T) {
	for _, loads := range [][]float64{{3}, {1, 1, 1}, {2.5, 0.5}} {
		g := newGame(t)
		withMoney(t, g, 1000)
		withResource(t, g, "flour", 3)
		id, _ := g.BuyProcessor("bakery", buildings.Position{})
		for _, amt := range loads {
			require.NoError(t, g.LoadProcessor(id, amt))
		}
		g.Tick(12 * time.Second)

		require.NoError(t, g.HarvestProcessor(id))
		assert.Equal(t, 1.0, g.Quantity("bread"), "loads %v", loads)
		assert.InDelta(t, 0, g.Snapshot().Processors[0].Storage, 1e-9)
	}
}

func TestSurvey_CompletesOnce(t *testing.T) {
	geo := &stubGeology{results: []geology.Discovery{{X: 5, Z: 5, Resource: "coal"}}}
	g := NewGame(Options{Seed: 1, Geology: geo})
	id, err := g.BuySurveyRig(buildings.Position{})
	require.NoError(t, err)
	assert.Equal(t, 70.0, g.Money())

	_, err = g.CompleteSurvey(id)
	assert.ErrorIs(t, err, ErrNotReady)

	g.Tick(5 * time.Second)
	results, err := g.CompleteSurvey(id)
	require.NoError(t, err)
	assert.Equal(t, geo.results, results)

	_, err = g.CompleteSurvey(id)
	assert.ErrorIs(t, err, ErrSurveyCompleted)
	assert.Equal(t, 1, geo.calls)
	assert.True(t, g.Snapshot().SurveyRigs[0].Completed)
}

func TestSurvey_NoGeologyIsEmptyAndFinal(t *testing.T) {
	g := newGame(t)
	id, _ := g.BuySurveyRig(buildings.Position{})
	g.Tick(5 * time.Second)

	assert.Equal(t, 1, g.CompleteReadySurveys())
	assert.Zero(t, g.CompleteReadySurveys())

	rig := g.Snapshot().SurveyRigs[0]
	assert.True(t, rig.Completed)
	assert.Empty(t, rig.Results)
	_, err := g.CompleteSurvey(id)
	assert.ErrorIs(t, err, ErrSurveyCompleted)
}

func TestBuyMine_CallerDiscovery(t *testing.T) {
	g := newGame(t)
	withMoney(t, g, 500)
	iron := catalog.ResourceID("iron")

	id, err := g.BuyMine(buildings.Position{X: 4}, &iron)
	require.NoError(t, err)
	assert.ErrorIs(t, g.HarvestMine(id), ErrNotReady)

	g.Tick(8 * time.Second)
	require.NoError(t, g.HarvestMine(id))
	assert.Equal(t, 1.0, g.Quantity("iron"))
	assert.Equal(t, 500.0-150-3, g.Money())

	cotton := catalog.ResourceID("cotton")
	_, err = g.BuyMine(buildings.Position{}, &cotton)
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestBuyMineAt_UsesGeology(t *testing.T) {
	geo := &stubGeology{at: &geology.Discovery{Resource: "gold"}}
	g := NewGame(Options{Seed: 1, Geology: geo})
	withMoney(t, g, 200)

	id, err := g.BuyMineAt(buildings.Position{X: 1, Z: 2})
	require.NoError(t, err)

	mine := g.Snapshot().Mines[0]
	assert.Equal(t, id, mine.ID)
	require.NotNil(t, mine.Resource)
	assert.Equal(t, catalog.ResourceID("gold"), *mine.Resource)
	assert.Equal(t, 14*time.Second, mine.ExtractTime)
}

func TestBuyMineAt_ProbesNearest(t *testing.T) {
	geo := &stubGeology{results: []geology.Discovery{
		{X: 5, Z: 0, Resource: "coal"},
		{X: 1, Z: 1, Resource: "copper"},
	}}
	g := NewGame(Options{Seed: 1, Geology: geo})
	withMoney(t, g, 200)

	_, err := g.BuyMineAt(buildings.Position{})
	require.NoError(t, err)
	assert.Equal(t, catalog.ResourceID("copper"), *g.Snapshot().Mines[0].Resource)
}

func TestBuyMineAt_NoGeologyIsInert(t *testing.T) {
	g := newGame(t)
	withMoney(t, g, 200)

	id, err := g.BuyMineAt(buildings.Position{})
	require.NoError(t, err)
	g.Tick(time.Hour)
	assert.ErrorIs(t, g.HarvestMine(id), ErrInertMine)
}

func TestSellResource_Errors(t *testing.T) {
	g := newGame(t)

	_, err := g.SellResource("cotton", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = g.SellResource("plutonium", 1)
	assert.ErrorIs(t, err, ErrUnknownResource)
	revenue, err := g.SellResource("cotton", 1)
	assert.ErrorIs(t, err, ErrInsufficientResource)
	assert.Zero(t, revenue)
	assert.Equal(t, 100.0, g.Money())
}

func TestTick_IgnoresNonPositive(t *testing.T) {
	g := newGame(t)
	g.Tick(0)
	g.Tick(-time.Second)
	assert.Zero(t, g.GameTime())
}

func TestPrestige_ResetsFlowKeepsStructure(t *testing.T) {
	g := newGame(t)
	withMoney(t, g, 2000)
	farm, _ := g.BuyFarm(buildings.Position{})
	require.NoError(t, g.SelectCrop(farm, "cotton"))
	proc, _ := g.BuyProcessor("warehouse", buildings.Position{})
	withResource(t, g, "cotton", 5)
	require.NoError(t, g.LoadProcessor(proc, 1))
	iron := catalog.ResourceID("iron")
	_, err := g.BuyMine(buildings.Position{}, &iron)
	require.NoError(t, err)
	_, err = g.BuySurveyRig(buildings.Position{})
	require.NoError(t, err)
	g.Tick(12 * time.Second)
	before := g.Snapshot()

	level := g.Prestige()

	after := g.Snapshot()
	assert.Equal(t, 1, level)
	assert.Equal(t, 100.0, after.Money)
	assert.Zero(t, after.GameTime)
	assert.Zero(t, after.LastPriceUpdate)
	assert.InDelta(t, 1.05, after.SpeedMultiplier, 1e-9)
	for id, q := range after.Resources {
		assert.Zero(t, q, id)
	}
	assert.Len(t, after.Farms, len(before.Farms))
	assert.Len(t, after.Processors, len(before.Processors))
	assert.Len(t, after.Mines, len(before.Mines))
	assert.Len(t, after.SurveyRigs, len(before.SurveyRigs))
	assert.Equal(t, catalog.ResourceID("cotton"), *after.Farms[0].Crop)
	assert.Equal(t, catalog.ResourceID("iron"), *after.Mines[0].Resource)
	assert.False(t, after.Farms[0].IsReady)
	assert.Equal(t, 1.0, after.Processors[0].Storage)
	assert.Zero(t, after.Processors[0].Elapsed)
	assert.Equal(t, before.NextID, after.NextID)
}

func TestPrestige_SpeedsUpProduction(t *testing.T) {
	g := newGame(t)
	farm, _ := g.BuyFarm(buildings.Position{})
	require.NoError(t, g.SelectCrop(farm, "cotton"))
	for i := 0; i < 4; i++ {
		g.Prestige()
	}

	// 5000ms / 1.2
	g.Tick(4166 * time.Millisecond)
	assert.False(t, g.Snapshot().Farms[0].IsReady)
	g.Tick(time.Millisecond)
	assert.True(t, g.Snapshot().Farms[0].IsReady)
}

func TestReset_WipesEverything(t *testing.T) {
	g := newGame(t)
	g.BuyFarm(buildings.Position{})
	g.Prestige()
	g.Tick(time.Minute)

	g.Reset()

	snap := g.Snapshot()
	assert.Equal(t, 100.0, snap.Money)
	assert.Zero(t, snap.PrestigeLevel)
	assert.Zero(t, snap.NextID)
	assert.Empty(t, snap.Farms)
	assert.Nil(t, snap.PendingFarmID)
	assert.Equal(t, 2.5, snap.Prices["cotton"])
}

func TestRestore_RejectsInvalid(t *testing.T) {
	g := newGame(t)
	good := g.Snapshot()

	bad := g.Snapshot()
	bad.Money = -1
	assert.Error(t, g.Restore(bad))

	bad = g.Snapshot()
	bad.Resources["unobtainium"] = 1
	assert.ErrorIs(t, g.Restore(bad), ErrUnknownResource)

	bad = g.Snapshot()
	bad.Farms = []buildings.Farm{{Header: buildings.Header{ID: 1}}, {Header: buildings.Header{ID: 2}}}
	assert.Error(t, g.Restore(bad), "two pending farms")

	bad = g.Snapshot()
	bad.Processors = []buildings.Processor{{Header: buildings.Header{ID: 1}, Type: "mill"}}
	bad.SurveyRigs = []buildings.SurveyRig{{Header: buildings.Header{ID: 1}}}
	assert.Error(t, g.Restore(bad), "duplicate ids")

	// A mine without an extraction time would finish a cycle on every tick.
	iron := catalog.ResourceID("iron")
	bad = g.Snapshot()
	bad.Mines = []buildings.Mine{{Header: buildings.Header{ID: 1}, Resource: &iron, ExtractCost: 1}}
	assert.Error(t, g.Restore(bad), "zero extract time")

	bad = g.Snapshot()
	bad.Mines = []buildings.Mine{{Header: buildings.Header{ID: 1}, Resource: &iron, ExtractTime: -time.Second}}
	assert.Error(t, g.Restore(bad), "negative extract time")

	bad = g.Snapshot()
	bad.Mines = []buildings.Mine{{Header: buildings.Header{ID: 1}, Resource: &iron, ExtractTime: time.Second, ExtractCost: -1}}
	assert.Error(t, g.Restore(bad), "negative extract cost")

	assert.Equal(t, good, g.Snapshot())

	// Inert mines carry no timing.
	inert := newGame(t)
	snap := inert.Snapshot()
	snap.Mines = []buildings.Mine{{Header: buildings.Header{ID: 1}}}
	require.NoError(t, inert.Restore(snap))
	assert.Len(t, inert.Snapshot().Mines, 1)
}

// Random command sequences must never drive money or stock negative, and
// never leave more than one farm awaiting a crop.
func TestConservation_RandomCommands(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := NewGame(Options{Seed: 7, Geology: geology.New(7, catalog.Default())})
	reg := g.Catalog()
	crops := reg.Crops()
	procs := reg.Processors()
	res := reg.Resources()

	for step := 0; step < 5000; step++ {
		snap := g.Snapshot()
		pos := buildings.Position{X: rng.Float64() * 100, Z: rng.Float64() * 100}
		switch rng.Intn(12) {
		case 0:
			g.BuyFarm(pos)
		case 1:
			if id, ok := g.PendingFarmID(); ok {
				g.SelectCrop(id, crops[rng.Intn(len(crops))].ID)
			}
		case 2:
			g.CancelFarmPlacement()
		case 3:
			if len(snap.Farms) > 0 {
				g.HarvestFarm(snap.Farms[rng.Intn(len(snap.Farms))].ID)
			}
		case 4:
			g.BuyProcessor(procs[rng.Intn(len(procs))].ID, pos)
		case 5:
			if len(snap.Processors) > 0 {
				g.LoadProcessor(snap.Processors[rng.Intn(len(snap.Processors))].ID, rng.Float64()*3)
			}
		case 6:
			if len(snap.Processors) > 0 {
				g.HarvestProcessor(snap.Processors[rng.Intn(len(snap.Processors))].ID)
			}
		case 7:
			if rng.Intn(2) == 0 {
				g.BuyMineAt(pos)
			} else {
				g.BuySurveyRig(pos)
			}
		case 8:
			if len(snap.Mines) > 0 {
				g.HarvestMine(snap.Mines[rng.Intn(len(snap.Mines))].ID)
			}
		case 9:
			r := res[rng.Intn(len(res))].ID
			g.SellResource(r, rng.Float64()*2)
		case 10:
			if rng.Intn(50) == 0 {
				g.Prestige()
			}
		default:
			g.Tick(time.Duration(rng.Intn(3000)) * time.Millisecond)
			g.CompleteReadySurveys()
		}

		after := g.Snapshot()
		require.GreaterOrEqual(t, after.Money, 0.0, "step %d", step)
		for id, q := range after.Resources {
			require.GreaterOrEqual(t, q, 0.0, "step %d %s", step, id)
		}
		pending := 0
		for _, f := range after.Farms {
			if f.Crop == nil {
				pending++
			}
		}
		require.LessOrEqual(t, pending, 1, "step %d", step)
		for _, r := range res {
			p := after.Prices[r.ID]
			require.True(t, p >= r.Min && p <= r.Max, "step %d %s=%v", step, r.ID, p)
		}
	}
}

func TestTimerMonotonicity(t *testing.T) {
	g := newGame(t)
	id, _ := g.BuyFarm(buildings.Position{})
	require.NoError(t, g.SelectCrop(id, "tobacco"))

	var last time.Duration
	for i := 0; i < 200; i++ {
		g.Tick(100 * time.Millisecond)
		f := g.Snapshot().Farms[0]
		if f.IsReady {
			assert.Zero(t, f.Elapsed)
			assert.Equal(t, 12*time.Second, g.GameTime())
			return
		}
		assert.Greater(t, f.Elapsed, last)
		last = f.Elapsed
	}
	t.Fatal("farm never became ready")
}
