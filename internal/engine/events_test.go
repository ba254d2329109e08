package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khalecl/supply-chain-idle/internal/buildings"
	"github.com/khalecl/supply-chain-idle/internal/catalog"
)

func TestSubscribe_ReceivesEvents(t *testing.T) {
	g := newGame(t)
	id, ch := g.Subscribe(8)
	defer g.Unsubscribe(id)

	farm, err := g.BuyFarm(buildings.Position{})
	require.NoError(t, err)
	require.NoError(t, g.SelectCrop(farm, "corn"))
	g.Tick(4 * time.Second)

	want := []EventType{EventBuildingCreated, EventCropSelected, EventBuildingReady}
	for i, typ := range want {
		e := <-ch
		assert.Equal(t, typ, e.Type)
		assert.Equal(t, uint64(i+1), e.Seq)
		require.NotNil(t, e.BuildingID)
		assert.Equal(t, farm, *e.BuildingID)
		assert.Equal(t, catalog.KindFarm, e.Kind)
	}
}

func TestSubscribe_SlowSubscriberDrops(t *testing.T) {
	g := newGame(t)
	_, ch := g.Subscribe(1)

	g.Prestige()
	g.Prestige()
	g.Prestige()

	e := <-ch
	assert.Equal(t, EventPrestige, e.Type)
	assert.Equal(t, 1.0, e.Amount)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected buffered event %v", extra)
	default:
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	g := newGame(t)
	id, ch := g.Subscribe(0)

	g.Unsubscribe(id)
	g.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)
	g.Reset()
}

func TestRecentEvents(t *testing.T) {
	g := newGame(t)
	for i := 0; i < recentEventsCap+10; i++ {
		g.Reset()
	}

	all := g.RecentEvents(0)
	assert.Len(t, all, recentEventsCap)
	assert.Equal(t, uint64(recentEventsCap+10), all[len(all)-1].Seq)

	last := g.RecentEvents(3)
	assert.Len(t, last, 3)
	assert.Equal(t, all[len(all)-3:], last)
}
