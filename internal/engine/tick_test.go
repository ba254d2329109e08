package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khalecl/supply-chain-idle/internal/buildings"
)

func TestEngine_StepScalesBySpeed(t *testing.T) {
	g := newGame(t)
	e := NewEngine(g)

	e.Step(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, g.GameTime())

	e.SetSpeed(4)
	e.Step(100 * time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, g.GameTime())

	e.SetSpeed(0)
	e.Step(time.Second)
	assert.Equal(t, 500*time.Millisecond, g.GameTime(), "paused")

	e.SetSpeed(-3)
	assert.Zero(t, e.Speed())
}

func TestEngine_StepCompletesSurveys(t *testing.T) {
	g := newGame(t)
	_, err := g.BuySurveyRig(buildings.Position{})
	require.NoError(t, err)
	e := NewEngine(g)

	var ticks int
	e.OnTick = func(time.Duration) { ticks++ }
	e.Step(5 * time.Second)

	assert.True(t, g.Snapshot().SurveyRigs[0].Completed)
	assert.Equal(t, 1, ticks)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	g := newGame(t)
	e := NewEngine(g)
	e.Interval = time.Millisecond
	e.AutosaveInterval = 5 * time.Millisecond
	var saves atomic.Int32
	e.OnAutosave = func(context.Context) { saves.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return saves.Load() > 0 && g.GameTime() > 0 }, 2*time.Second, time.Millisecond)
	assert.True(t, e.Running())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.False(t, e.Running())
}

func TestEngine_Stop(t *testing.T) {
	e := NewEngine(newGame(t))
	e.Interval = time.Millisecond
	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, e.Running, time.Second, time.Millisecond)
	e.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}
