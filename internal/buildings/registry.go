package buildings

import (
	"slices"
	"time"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/geology"
)

// Registry owns every building of a run. It performs no money checks; the
// game aggregate validates commands before mutating the registry. Not safe
// for concurrent use.
type Registry struct {
	cat *catalog.Registry

	nextID     uint64
	pendingID  uint64
	hasPending bool

	farms      []*Farm
	processors []*Processor
	mines      []*Mine
	rigs       []*SurveyRig
}

// NewRegistry creates an empty registry. Ids start at 0.
func NewRegistry(cat *catalog.Registry) *Registry {
	return &Registry{cat: cat}
}

func (r *Registry) header(pos Position) Header {
	h := Header{ID: r.nextID, Position: pos}
	r.nextID++
	return h
}

// NextID is the id the next building will receive.
func (r *Registry) NextID() uint64 { return r.nextID }

// ── Creation ───────────────────────────────────────────────────────────

// AddFarm creates a farm awaiting crop selection and marks it pending.
func (r *Registry) AddFarm(pos Position) *Farm {
	f := &Farm{Header: r.header(pos)}
	r.farms = append(r.farms, f)
	r.pendingID, r.hasPending = f.ID, true
	return f
}

// AddProcessor creates an empty processor of type t.
func (r *Registry) AddProcessor(t catalog.ProcessorType, pos Position) *Processor {
	p := &Processor{Header: r.header(pos), Type: t}
	r.processors = append(r.processors, p)
	return p
}

// AddMine creates a mine over found. A nil discovery gives an inert mine;
// otherwise extraction timing is copied from the mineral definition.
func (r *Registry) AddMine(pos Position, found *geology.Discovery) *Mine {
	m := &Mine{Header: r.header(pos)}
	if found != nil {
		if def, ok := r.cat.Mineral(found.Resource); ok {
			id := def.ID
			m.Resource = &id
			m.HasGas = found.HasGas
			m.ExtractTime = def.ExtractTime
			m.ExtractCost = def.ExtractCost
		}
	}
	r.mines = append(r.mines, m)
	return m
}

// AddSurveyRig creates a rig with its scan timer at zero.
func (r *Registry) AddSurveyRig(pos Position) *SurveyRig {
	s := &SurveyRig{Header: r.header(pos)}
	r.rigs = append(r.rigs, s)
	return s
}

// ── Pending farm ───────────────────────────────────────────────────────

// PendingFarm returns the farm awaiting crop selection, if any.
func (r *Registry) PendingFarm() (*Farm, bool) {
	if !r.hasPending {
		return nil, false
	}
	return r.Farm(r.pendingID)
}

// PendingFarmID returns the id of the pending farm, if any.
func (r *Registry) PendingFarmID() (uint64, bool) {
	return r.pendingID, r.hasPending
}

// AssignCrop gives the pending farm its crop and starts its timer. It
// reports false when id is not the pending farm.
func (r *Registry) AssignCrop(id uint64, crop catalog.ResourceID) bool {
	f, ok := r.PendingFarm()
	if !ok || f.ID != id {
		return false
	}
	c := crop
	f.Crop = &c
	f.restart()
	r.pendingID, r.hasPending = 0, false
	return true
}

// RemovePendingFarm deletes the pending farm. The id is not reused.
func (r *Registry) RemovePendingFarm() (*Farm, bool) {
	f, ok := r.PendingFarm()
	if !ok {
		return nil, false
	}
	r.farms = slices.DeleteFunc(r.farms, func(x *Farm) bool { return x.ID == f.ID })
	r.pendingID, r.hasPending = 0, false
	return f, true
}

// ── Lookup ─────────────────────────────────────────────────────────────

// Farm returns the farm with the given id.
func (r *Registry) Farm(id uint64) (*Farm, bool) { return find(r.farms, id) }

// Processor returns the processor with the given id.
func (r *Registry) Processor(id uint64) (*Processor, bool) { return find(r.processors, id) }

// Mine returns the mine with the given id.
func (r *Registry) Mine(id uint64) (*Mine, bool) { return find(r.mines, id) }

// SurveyRig returns the survey rig with the given id.
func (r *Registry) SurveyRig(id uint64) (*SurveyRig, bool) { return find(r.rigs, id) }

func find[T Building](list []T, id uint64) (T, bool) {
	for _, b := range list {
		if b.Base().ID == id {
			return b, true
		}
	}
	var zero T
	return zero, false
}

// Lookup returns any building by id.
func (r *Registry) Lookup(id uint64) (Building, bool) {
	for _, b := range r.All() {
		if b.Base().ID == id {
			return b, true
		}
	}
	return nil, false
}

func (r *Registry) Farms() []*Farm           { return r.farms }
func (r *Registry) Processors() []*Processor { return r.processors }
func (r *Registry) Mines() []*Mine           { return r.mines }
func (r *Registry) SurveyRigs() []*SurveyRig { return r.rigs }

// All returns every building ordered by kind, then creation.
func (r *Registry) All() []Building {
	out := make([]Building, 0, len(r.farms)+len(r.processors)+len(r.mines)+len(r.rigs))
	for _, f := range r.farms {
		out = append(out, f)
	}
	for _, p := range r.processors {
		out = append(out, p)
	}
	for _, m := range r.mines {
		out = append(out, m)
	}
	for _, s := range r.rigs {
		out = append(out, s)
	}
	return out
}

// Counts returns the number of buildings per kind.
func (r *Registry) Counts() map[catalog.BuildingKind]int {
	return map[catalog.BuildingKind]int{
		catalog.KindFarm:      len(r.farms),
		catalog.KindProcessor: len(r.processors),
		catalog.KindMine:      len(r.mines),
		catalog.KindSurveyRig: len(r.rigs),
	}
}

// ── Timers ─────────────────────────────────────────────────────────────

// Advance moves every running timer forward by dt. Production timers are
// divided by mult; survey scans are not. Farms run once a crop is assigned,
// processors while storage holds a full batch, mines when not inert, rigs
// until their scan is completed. It returns the buildings that became ready.
func (r *Registry) Advance(dt time.Duration, mult float64) []Building {
	var ready []Building
	for _, f := range r.farms {
		if f.Crop == nil {
			continue
		}
		crop, ok := r.cat.Crop(*f.Crop)
		if ok && f.advance(dt, crop.GrowTime, mult) {
			ready = append(ready, f)
		}
	}
	for _, p := range r.processors {
		def, ok := r.cat.Processor(p.Type)
		if !ok || p.Storage < def.InputAmount {
			continue
		}
		if p.advance(dt, def.ProcessTime, mult) {
			ready = append(ready, p)
		}
	}
	for _, m := range r.mines {
		if m.Inert() {
			continue
		}
		if m.advance(dt, m.ExtractTime, mult) {
			ready = append(ready, m)
		}
	}
	for _, s := range r.rigs {
		if s.Completed {
			continue
		}
		if s.advance(dt, r.cat.SurveyRig.ScanTime, 1) {
			ready = append(ready, s)
		}
	}
	return ready
}

// Restart clears the ready flag and timer of b.
func Restart(b Building) { b.Base().restart() }

// ResetFlow clears every timer and ready flag. Structure, crops, loaded
// processor storage, mine discoveries and survey results are kept. A rig
// whose scan finished but was never completed scans again.
func (r *Registry) ResetFlow() {
	for _, b := range r.All() {
		b.Base().restart()
	}
}

// Clear removes every building and restarts the id counter.
func (r *Registry) Clear() {
	*r = Registry{cat: r.cat}
}

// ── Copy / restore ─────────────────────────────────────────────────────

// State is a deep copy of the registry contents.
type State struct {
	NextID        uint64      `json:"nextId"`
	PendingFarmID *uint64     `json:"pendingFarmId"`
	Farms         []Farm      `json:"farms"`
	Processors    []Processor `json:"processors"`
	Mines         []Mine      `json:"mines"`
	SurveyRigs    []SurveyRig `json:"surveyRigs"`
}

// State returns a deep copy of the registry.
func (r *Registry) State() State {
	s := State{
		NextID:     r.nextID,
		Farms:      make([]Farm, len(r.farms)),
		Processors: make([]Processor, len(r.processors)),
		Mines:      make([]Mine, len(r.mines)),
		SurveyRigs: make([]SurveyRig, len(r.rigs)),
	}
	if r.hasPending {
		id := r.pendingID
		s.PendingFarmID = &id
	}
	for i, f := range r.farms {
		s.Farms[i] = *f
		if f.Crop != nil {
			c := *f.Crop
			s.Farms[i].Crop = &c
		}
	}
	for i, p := range r.processors {
		s.Processors[i] = *p
	}
	for i, m := range r.mines {
		s.Mines[i] = *m
		if m.Resource != nil {
			res := *m.Resource
			s.Mines[i].Resource = &res
		}
	}
	for i, rig := range r.rigs {
		s.SurveyRigs[i] = *rig
		s.SurveyRigs[i].Results = slices.Clone(rig.Results)
	}
	return s
}

// Restore replaces the registry contents with a copy of s. The id counter
// is raised above every restored id so ids stay unique.
func (r *Registry) Restore(s State) {
	r.Clear()
	r.nextID = s.NextID
	bump := func(id uint64) {
		if id >= r.nextID {
			r.nextID = id + 1
		}
	}
	for _, f := range s.Farms {
		if f.Crop != nil {
			c := *f.Crop
			f.Crop = &c
		}
		r.farms = append(r.farms, &f)
		bump(f.ID)
	}
	for _, p := range s.Processors {
		r.processors = append(r.processors, &p)
		bump(p.ID)
	}
	for _, m := range s.Mines {
		if m.Resource != nil {
			res := *m.Resource
			m.Resource = &res
		}
		r.mines = append(r.mines, &m)
		bump(m.ID)
	}
	for _, rig := range s.SurveyRigs {
		rig.Results = slices.Clone(rig.Results)
		r.rigs = append(r.rigs, &rig)
		bump(rig.ID)
	}
	if s.PendingFarmID != nil {
		if f, ok := r.Farm(*s.PendingFarmID); ok && f.Pending() {
			r.pendingID, r.hasPending = f.ID, true
			return
		}
	}
	// A crop-less farm without a marker is still awaiting selection.
	for _, f := range r.farms {
		if f.Pending() {
			r.pendingID, r.hasPending = f.ID, true
			return
		}
	}
}
