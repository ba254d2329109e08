// Package buildings holds the production building instances and their
// timer state machines. Every kind embeds a common Header; ids come from one
// counter shared by all kinds.
package buildings

import (
	"time"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/geology"
)

// Position is a point on the ground plane.
type Position struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Header is the state shared by every building kind.
type Header struct {
	ID       uint64        `json:"id"`
	Position Position      `json:"position"`
	Elapsed  time.Duration `json:"elapsed"`
	IsReady  bool          `json:"isReady"`
}

// Base returns the header itself so embedding types satisfy Building.
func (h *Header) Base() *Header { return h }

// advance adds dt to the timer unless the building is already ready. The
// cycle completes when elapsed reaches base/mult; elapsed then wraps to 0.
// It reports whether the building became ready on this call.
func (h *Header) advance(dt, base time.Duration, mult float64) bool {
	if h.IsReady || dt <= 0 {
		return false
	}
	h.Elapsed += dt
	if h.Elapsed >= scaled(base, mult) {
		h.IsReady = true
		h.Elapsed = 0
		return true
	}
	return false
}

// restart clears the ready flag and the timer.
func (h *Header) restart() {
	h.IsReady = false
	h.Elapsed = 0
}

func scaled(base time.Duration, mult float64) time.Duration {
	if mult <= 0 {
		mult = 1
	}
	return time.Duration(float64(base) / mult)
}

// Building is implemented by *Farm, *Processor, *Mine and *SurveyRig.
type Building interface {
	Kind() catalog.BuildingKind
	Base() *Header
}

// Farm grows one unit of its crop per cycle. Crop is nil while the farm
// awaits crop selection.
type Farm struct {
	Header
	Crop *catalog.ResourceID `json:"crop"`
}

func (*Farm) Kind() catalog.BuildingKind { return catalog.KindFarm }

// Pending reports whether the farm still awaits a crop.
func (f *Farm) Pending() bool { return f.Crop == nil }

// Processor converts buffered input into output once Storage holds a full batch.
type Processor struct {
	Header
	Type    catalog.ProcessorType `json:"type"`
	Storage float64               `json:"storage"`
}

func (*Processor) Kind() catalog.BuildingKind { return catalog.KindProcessor }

// Mine extracts one unit of its resource per cycle. A nil Resource marks an
// inert mine placed over empty ground.
type Mine struct {
	Header
	Resource    *catalog.ResourceID `json:"resource"`
	HasGas      bool                `json:"hasGas,omitempty"`
	ExtractTime time.Duration       `json:"extractTime"`
	ExtractCost float64             `json:"extractCost"`
}

func (*Mine) Kind() catalog.BuildingKind { return catalog.KindMine }

// Inert reports whether the mine can never produce.
func (m *Mine) Inert() bool { return m.Resource == nil }

// SurveyRig runs a single scan and keeps its results.
type SurveyRig struct {
	Header
	Completed bool                `json:"completed"`
	Results   []geology.Discovery `json:"results"`
}

func (*SurveyRig) Kind() catalog.BuildingKind { return catalog.KindSurveyRig }
