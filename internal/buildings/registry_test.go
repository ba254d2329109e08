package buildings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/geology"
)

func newRegistry() *Registry {
	return NewRegistry(catalog.Default())
}

func TestIDs_SharedAndNeverReused(t *testing.T) {
	r := newRegistry()

	f := r.AddFarm(Position{})
	p := r.AddProcessor("warehouse", Position{X: 5})
	_, ok := r.RemovePendingFarm()
	require.True(t, ok)
	rig := r.AddSurveyRig(Position{Z: 2})
	m := r.AddMine(Position{}, nil)

	assert.Equal(t, uint64(0), f.ID)
	assert.Equal(t, uint64(1), p.ID)
	assert.Equal(t, uint64(2), rig.ID)
	assert.Equal(t, uint64(3), m.ID)
	assert.Equal(t, uint64(4), r.NextID())
}

func TestPendingFarm_Lifecycle(t *testing.T) {
	r := newRegistry()
	f := r.AddFarm(Position{})

	id, ok := r.PendingFarmID()
	require.True(t, ok)
	assert.Equal(t, f.ID, id)
	assert.True(t, f.Pending())

	assert.False(t, r.AssignCrop(f.ID+1, "cotton"), "only the pending farm accepts a crop")
	require.True(t, r.AssignCrop(f.ID, "cotton"))
	assert.False(t, f.Pending())
	assert.Equal(t, catalog.ResourceID("cotton"), *f.Crop)

	_, ok = r.PendingFarmID()
	assert.False(t, ok)
	assert.False(t, r.AssignCrop(f.ID, "wheat"), "crop is fixed once chosen")
}

func TestAdvance_FarmCycle(t *testing.T) {
	r := newRegistry()
	f := r.AddFarm(Position{})

	assert.Empty(t, r.Advance(time.Hour, 1), "pending farms do not grow")
	assert.Zero(t, f.Elapsed)

	r.AssignCrop(f.ID, "cotton")

	var last time.Duration
	for i := 0; i < 4; i++ {
		assert.Empty(t, r.Advance(time.Second, 1))
		assert.Greater(t, f.Elapsed, last)
		last = f.Elapsed
	}
	ready := r.Advance(time.Second, 1)
	require.Len(t, ready, 1)
	assert.True(t, f.IsReady)
	assert.Zero(t, f.Elapsed)

	assert.Empty(t, r.Advance(time.Second, 1), "ready farms hold")
	assert.Zero(t, f.Elapsed)
}

func TestAdvance_PrestigeMultiplier(t *testing.T) {
	r := newRegistry()
	f := r.AddFarm(Position{})
	r.AssignCrop(f.ID, "cotton")

	// 5000ms / 1.25 = 4000ms
	r.Advance(3999*time.Millisecond, 1.25)
	assert.False(t, f.IsReady)
	r.Advance(time.Millisecond, 1.25)
	assert.True(t, f.IsReady)
}

func TestAdvance_ProcessorNeedsFullBatch(t *testing.T) {
	r := newRegistry()
	p := r.AddProcessor("factory", Position{})

	p.Storage = 1
	r.Advance(time.Minute, 1)
	assert.Zero(t, p.Elapsed)
	assert.False(t, p.IsReady)

	p.Storage = 2
	r.Advance(10*time.Second, 1)
	assert.True(t, p.IsReady)
}

func TestAdvance_InertMineNeverReady(t *testing.T) {
	r := newRegistry()
	m := r.AddMine(Position{}, nil)
	assert.True(t, m.Inert())

	r.Advance(24*time.Hour, 10)
	assert.False(t, m.IsReady)
}

func TestAddMine_CopiesMineral(t *testing.T) {
	r := newRegistry()
	m := r.AddMine(Position{X: 1}, &geology.Discovery{Resource: "oil", HasGas: true})

	require.NotNil(t, m.Resource)
	assert.Equal(t, catalog.ResourceID("oil"), *m.Resource)
	assert.True(t, m.HasGas)
	assert.Equal(t, 12*time.Second, m.ExtractTime)
	assert.Equal(t, 5.0, m.ExtractCost)

	r.Advance(12*time.Second, 1)
	assert.True(t, m.IsReady)
}

func TestAdvance_SurveyRigIgnoresMultiplier(t *testing.T) {
	r := newRegistry()
	s := r.AddSurveyRig(Position{})

	r.Advance(4*time.Second, 3)
	assert.False(t, s.IsReady)
	r.Advance(time.Second, 3)
	assert.True(t, s.IsReady)

	s.Completed = true
	Restart(s)
	r.Advance(time.Minute, 1)
	assert.False(t, s.IsReady, "completed rigs stop scanning")
}

func TestResetFlow_KeepsStructure(t *testing.T) {
	r := newRegistry()
	f := r.AddFarm(Position{})
	r.AssignCrop(f.ID, "wheat")
	p := r.AddProcessor("mill", Position{})
	p.Storage = 3
	r.Advance(6*time.Second, 1)
	require.True(t, f.IsReady)
	pending := r.AddFarm(Position{X: 9})

	r.ResetFlow()

	assert.False(t, f.IsReady)
	assert.Equal(t, catalog.ResourceID("wheat"), *f.Crop)
	assert.Equal(t, 3.0, p.Storage, "loaded input survives")
	assert.Zero(t, p.Elapsed)
	id, ok := r.PendingFarmID()
	assert.True(t, ok)
	assert.Equal(t, pending.ID, id)
	assert.Equal(t, map[catalog.BuildingKind]int{
		catalog.KindFarm: 2, catalog.KindProcessor: 1, catalog.KindMine: 0, catalog.KindSurveyRig: 0,
	}, r.Counts())
}

func TestStateRestore_DeepCopy(t *testing.T) {
	r := newRegistry()
	f := r.AddFarm(Position{X: 1, Z: 2})
	r.AssignCrop(f.ID, "corn")
	rig := r.AddSurveyRig(Position{})
	rig.Results = []geology.Discovery{{X: 1, Resource: "coal"}}
	r.AddFarm(Position{})

	state := r.State()
	*state.Farms[0].Crop = "tobacco"
	state.SurveyRigs[0].Results[0].Resource = "gold"
	assert.Equal(t, catalog.ResourceID("corn"), *f.Crop)
	assert.Equal(t, catalog.ResourceID("coal"), rig.Results[0].Resource)

	restored := newRegistry()
	restored.Restore(r.State())
	assert.Equal(t, r.State(), restored.State())
	assert.Equal(t, r.NextID(), restored.NextID())

	next := restored.AddProcessor("warehouse", Position{})
	assert.Equal(t, uint64(3), next.ID)
}

func TestRestore_RaisesCounter(t *testing.T) {
	r := newRegistry()
	r.Restore(State{NextID: 0, Processors: []Processor{{Header: Header{ID: 7}, Type: "mill"}}})
	assert.Equal(t, uint64(8), r.NextID())
}
