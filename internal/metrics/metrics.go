// Package metrics exposes game state and command activity to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/engine"
)

const namespace = "scidle"

// SnapshotSource is anything that can report the current game state.
type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

// ── Game state ────────────────────────────────────────────────────────

// GameCollector reads a fresh snapshot on every scrape.
type GameCollector struct {
	src SnapshotSource

	money      *prometheus.Desc
	gameTime   *prometheus.Desc
	prestige   *prometheus.Desc
	multiplier *prometheus.Desc
	resource   *prometheus.Desc
	price      *prometheus.Desc
	buildings  *prometheus.Desc
	ready      *prometheus.Desc
	pending    *prometheus.Desc
}

// NewGameCollector creates a collector over src.
func NewGameCollector(src SnapshotSource) *GameCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "game", name), help, labels, nil)
	}
	return &GameCollector{
		src:        src,
		money:      desc("money", "Current money balance."),
		gameTime:   desc("time_seconds", "Simulated time since the run started."),
		prestige:   desc("prestige_level", "Number of prestige resets."),
		multiplier: desc("speed_multiplier", "Production speed multiplier from prestige."),
		resource:   desc("resource_quantity", "Quantity held per resource.", "resource"),
		price:      desc("resource_price", "Current market price per resource.", "resource"),
		buildings:  desc("buildings", "Buildings placed per kind.", "kind"),
		ready:      desc("buildings_ready", "Buildings waiting to be harvested per kind.", "kind"),
		pending:    desc("farm_pending", "1 while a farm awaits crop selection."),
	}
}

// Describe implements prometheus.Collector.
func (c *GameCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.money, c.gameTime, c.prestige, c.multiplier,
		c.resource, c.price, c.buildings, c.ready, c.pending,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *GameCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Snapshot()
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	gauge(c.money, s.Money)
	gauge(c.gameTime, s.GameTime.Seconds())
	gauge(c.prestige, float64(s.PrestigeLevel))
	gauge(c.multiplier, s.SpeedMultiplier)
	for id, q := range s.Resources {
		gauge(c.resource, q, string(id))
	}
	for id, p := range s.Prices {
		gauge(c.price, p, string(id))
	}

	pending := 0.0
	if s.PendingFarmID != nil {
		pending = 1
	}
	gauge(c.pending, pending)

	type tally struct{ total, ready int }
	counts := map[catalog.BuildingKind]*tally{
		catalog.KindFarm:      {},
		catalog.KindProcessor: {},
		catalog.KindMine:      {},
		catalog.KindSurveyRig: {},
	}
	add := func(kind catalog.BuildingKind, ready bool) {
		counts[kind].total++
		if ready {
			counts[kind].ready++
		}
	}
	for _, f := range s.Farms {
		add(catalog.KindFarm, f.IsReady)
	}
	for _, p := range s.Processors {
		add(catalog.KindProcessor, p.IsReady)
	}
	for _, m := range s.Mines {
		add(catalog.KindMine, m.IsReady)
	}
	for _, r := range s.SurveyRigs {
		add(catalog.KindSurveyRig, r.IsReady)
	}
	for kind, t := range counts {
		gauge(c.buildings, float64(t.total), string(kind))
		gauge(c.ready, float64(t.ready), string(kind))
	}
}

// ── Commands and events ───────────────────────────────────────────────

// CommandMetrics counts player commands and game events.
type CommandMetrics struct {
	commandDuration *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec
	eventsTotal     *prometheus.CounterVec
	soldTotal       *prometheus.CounterVec
}

// NewCommandMetrics creates unregistered command metrics.
func NewCommandMetrics() *CommandMetrics {
	return &CommandMetrics{
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "command_duration_seconds",
				Help:      "Command handling duration distribution",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"command", "status"},
		),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "commands_total",
				Help:      "Total number of commands handled by type and status",
			},
			[]string{"command", "status"},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "game",
				Name:      "events_total",
				Help:      "Game events emitted by type",
			},
			[]string{"type"},
		),
		soldTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "game",
				Name:      "sold_units_total",
				Help:      "Units sold to the market by resource",
			},
			[]string{"resource"},
		),
	}
}

// Register adds every command metric to reg.
func (c *CommandMetrics) Register(reg prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{c.commandDuration, c.commandsTotal, c.eventsTotal, c.soldTotal} {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// RecordCommand records one handled command. Game-rule failures are
// counted as rejected, anything else as error.
func (c *CommandMetrics) RecordCommand(command string, d time.Duration, err error) {
	status := Status(err)
	c.commandDuration.WithLabelValues(command, status).Observe(d.Seconds())
	c.commandsTotal.WithLabelValues(command, status).Inc()
}

// RecordEvent counts one game event.
func (c *CommandMetrics) RecordEvent(e engine.Event) {
	c.eventsTotal.WithLabelValues(string(e.Type)).Inc()
	if e.Type == engine.EventSold {
		c.soldTotal.WithLabelValues(string(e.Resource)).Add(e.Amount)
	}
}

// Status classifies a command result for the status label.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case engine.IsRuleError(err):
		return "rejected"
	default:
		return "error"
	}
}

// ── Registry ──────────────────────────────────────────────────────────

// NewRegistry builds a registry with the game collector, command metrics
// and the Go runtime collectors.
func NewRegistry(src SnapshotSource) (*prometheus.Registry, *CommandMetrics, error) {
	reg := prometheus.NewRegistry()
	cmds := NewCommandMetrics()
	err := errors.Join(
		reg.Register(NewGameCollector(src)),
		reg.Register(collectors.NewGoCollector()),
		reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
		cmds.Register(reg),
	)
	if err != nil {
		return nil, nil, err
	}
	return reg, cmds, nil
}
