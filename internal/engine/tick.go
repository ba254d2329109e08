package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the wall-clock period between ticks (about 60 per second).
const DefaultInterval = 16 * time.Millisecond

// Engine drives a Game forward in real time.
type Engine struct {
	Game     *Game
	Interval time.Duration // Wall-clock tick period

	// Autosave fires every AutosaveInterval of wall time while running.
	// Zero disables it.
	AutosaveInterval time.Duration
	OnAutosave       func(ctx context.Context)

	// OnTick runs after every tick with the new game time.
	OnTick func(gameTime time.Duration)

	mu      sync.Mutex
	speed   float64 // 1.0 = real-time, 0 = paused
	running bool
	cancel  context.CancelFunc
}

// NewEngine creates an engine for g with default settings.
func NewEngine(g *Game) *Engine {
	return &Engine{
		Game:     g,
		Interval: DefaultInterval,
		speed:    1.0,
	}
}

// Speed returns the current speed factor.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed factor. Zero pauses; negative values clamp to zero.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = max(speed, 0)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. Blocks until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	interval := e.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var autosave <-chan time.Time
	if e.AutosaveInterval > 0 && e.OnAutosave != nil {
		t := time.NewTicker(e.AutosaveInterval)
		defer t.Stop()
		autosave = t.C
	}

	slog.Info("simulation engine started", "interval", interval, "speed", e.Speed())

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.running = false
			e.cancel = nil
			e.mu.Unlock()
			slog.Info("simulation engine stopped", "game_time", e.Game.GameTime())
			return
		case <-ticker.C:
			e.Step(interval)
		case <-autosave:
			e.OnAutosave(ctx)
		}
	}
}

// Stop halts a running loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Step advances the game by one wall-clock period scaled by the speed
// factor, then completes any finished surveys. Paused engines do nothing.
func (e *Engine) Step(wall time.Duration) {
	speed := e.Speed()
	if speed <= 0 {
		return
	}
	e.Game.Tick(time.Duration(float64(wall) * speed))
	e.Game.CompleteReadySurveys()

	if e.OnTick != nil {
		e.OnTick(e.Game.GameTime())
	}
}
