package catalog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Contents(t *testing.T) {
	reg := Default()

	assert.Len(t, reg.Resources(), 30)
	assert.Len(t, reg.Crops(), 6)
	assert.Len(t, reg.Processors(), 17)
	assert.Len(t, reg.Minerals(), 7)

	assert.Equal(t, 100.0, reg.Economy.StartingMoney)
	assert.Equal(t, 50.0, reg.Economy.FarmCost)
	assert.Equal(t, 10*time.Second, reg.Economy.PriceInterval)
	assert.Equal(t, 30.0, reg.SurveyRig.Cost)
	assert.Equal(t, 5*time.Second, reg.SurveyRig.ScanTime)
	assert.Equal(t, 150.0, reg.Mine.Cost)
}

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestCrop_CopiesPriceBand(t *testing.T) {
	reg := Default()

	cotton, ok := reg.Crop("cotton")
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, cotton.GrowTime)
	assert.Equal(t, 1.0, cotton.HarvestCost)
	assert.Equal(t, 2.5, cotton.BasePrice)
	assert.Equal(t, 1.0, cotton.Min)
	assert.Equal(t, 4.0, cotton.Max)

	_, ok = reg.Crop("iron")
	assert.False(t, ok, "minerals are not crops")
}

func TestProcessor_Recipes(t *testing.T) {
	reg := Default()

	tests := []struct {
		id     ProcessorType
		input  ResourceID
		inAmt  float64
		output ResourceID
		outAmt float64
	}{
		{"warehouse", "cotton", 1, "cloth", 0.8},
		{"factory", "cloth", 2, "textiles", 1},
		{"bakery", "flour", 3, "bread", 1},
		{"smelterGold", "gold", 1, "goldBars", 0.7},
		{"foundryGold", "goldBars", 1, "jewelry", 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			p, ok := reg.Processor(tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.input, p.Input)
			assert.Equal(t, tt.inAmt, p.InputAmount)
			assert.Equal(t, tt.output, p.Output)
			assert.Equal(t, tt.outAmt, p.OutputAmount)
		})
	}
}

func TestProcessor_InputsAndOutputsAreResources(t *testing.T) {
	reg := Default()
	for _, p := range reg.Processors() {
		_, ok := reg.Resource(p.Input)
		assert.True(t, ok, "%s input", p.ID)
		_, ok = reg.Resource(p.Output)
		assert.True(t, ok, "%s output", p.ID)
	}
}

func TestMinerals_PriorityOrder(t *testing.T) {
	var ids []ResourceID
	for _, m := range Default().Minerals() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []ResourceID{"diamonds", "gold", "copper", "iron", "coal", "oil", "gas"}, ids)

	gas, ok := Default().Mineral("gas")
	require.True(t, ok)
	assert.Equal(t, ResourceID("oil"), gas.SubsetOf)
	assert.Equal(t, "oil", gas.Layer)
}

func TestResources_BasePriceWithinBand(t *testing.T) {
	for _, r := range Default().Resources() {
		assert.GreaterOrEqual(t, r.BasePrice, r.Min, r.ID)
		assert.LessOrEqual(t, r.BasePrice, r.Max, r.ID)
	}
}

func TestMustResource_PanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { Default().MustResource("unobtainium") })
	assert.NotPanics(t, func() { Default().MustResource("cotton") })
}

func TestBuildingCost(t *testing.T) {
	reg := Default()

	cost, ok := reg.BuildingCost(KindFarm, "")
	require.True(t, ok)
	assert.Equal(t, 50.0, cost)

	cost, ok = reg.BuildingCost(KindProcessor, "bakery")
	require.True(t, ok)
	assert.Equal(t, 250.0, cost)

	_, ok = reg.BuildingCost(KindProcessor, "teleporter")
	assert.False(t, ok)

	cost, ok = reg.BuildingCost(KindSurveyRig, "")
	require.True(t, ok)
	assert.Equal(t, 30.0, cost)
}

func TestSpeedMultiplier(t *testing.T) {
	reg := Default()
	assert.Equal(t, 1.0, reg.SpeedMultiplier(0))
	assert.InDelta(t, 1.1, reg.SpeedMultiplier(2), 1e-9)
}

const minimal = `
economy: { starting_money: 10, farm_cost: 5, prestige_bonus: 0.1, price_interval_ms: 1000, price_variance: 0.1 }
survey_rig: { cost: 1, reveal_radius: 4, scan_time_ms: 100, sample_step: 2 }
mine: { cost: 2, probe_radius: 1 }
resources:
  - { id: a, name: A, category: raw, base_price: 1, min: 0.5, max: 2 }
  - { id: b, name: B, category: finished, base_price: 3, min: 1, max: 4 }
crops:
  - { id: a, name: A, grow_time_ms: 10, harvest_cost: 0, chain: x }
processors:
  - { id: p, name: P, cost: 1, op_cost: 0, process_time_ms: 10, input: a, input_amount: 1, output: %s, output_amount: 1, chain: x }
`

func TestLoad_Minimal(t *testing.T) {
	reg, err := Load(strings.NewReader(strings.Replace(minimal, "%s", "b", 1)))
	require.NoError(t, err)
	assert.Len(t, reg.Resources(), 2)
	assert.Empty(t, reg.Minerals())
}

func TestLoad_RejectsUnknownOutput(t *testing.T) {
	_, err := Load(strings.NewReader(strings.Replace(minimal, "%s", "zzz", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output")
}

func TestLoad_RejectsInvalidBand(t *testing.T) {
	bad := strings.Replace(minimal, "min: 0.5, max: 2", "min: 3, max: 2", 1)
	_, err := Load(strings.NewReader(strings.Replace(bad, "%s", "b", 1)))
	require.Error(t, err)
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	bad := strings.Replace(minimal, "mine: { cost: 2", "mine: { colour: red, cost: 2", 1)
	_, err := Load(strings.NewReader(strings.Replace(bad, "%s", "b", 1)))
	require.Error(t, err)
}
