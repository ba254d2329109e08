// Package geology generates the hidden underground resource layer. Each
// mineral samples its own seeded simplex noise layer; a point holds a
// deposit when the layer value passes the mineral's threshold.
package geology

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
)

// Discovery is a deposit found at a world position.
type Discovery struct {
	X        float64            `json:"x"`
	Z        float64            `json:"z"`
	Resource catalog.ResourceID `json:"resource"`
	HasGas   bool               `json:"hasGas,omitempty"`
}

// HeatPoint is the strongest near-threshold deposit signal at a grid point.
type HeatPoint struct {
	X        float64            `json:"x"`
	Z        float64            `json:"z"`
	Resource catalog.ResourceID `json:"resource"`
	Value    float64            `json:"value"`
}

// heatmapSlack widens thresholds so the heatmap shows deposit fringes.
const heatmapSlack = 0.8

// Map answers deposit queries for one seed. It is immutable and safe for
// concurrent use.
type Map struct {
	seed     int64
	minerals []catalog.Mineral
	layers   map[string]opensimplex.Noise
}

// New builds the noise layers for every mineral in reg.
func New(seed int64, reg *catalog.Registry) *Map {
	m := &Map{
		seed:     seed,
		minerals: reg.Minerals(),
		layers:   make(map[string]opensimplex.Noise),
	}
	for _, def := range m.minerals {
		if _, ok := m.layers[def.Layer]; ok {
			continue
		}
		m.layers[def.Layer] = opensimplex.NewNormalized(seed + def.LayerSeed)
	}
	return m
}

// Seed returns the seed the map was generated from.
func (m *Map) Seed() int64 { return m.seed }

// Sample returns the [0, 1] layer value for a mineral at (x, z), or 0 for
// ids without a layer.
func (m *Map) Sample(id catalog.ResourceID, x, z float64) float64 {
	for _, def := range m.minerals {
		if def.ID == id {
			return m.sample(def, x, z)
		}
	}
	return 0
}

func (m *Map) sample(def catalog.Mineral, x, z float64) float64 {
	return m.layers[def.Layer].Eval2(x*def.NoiseFreq, z*def.NoiseFreq)
}

// ResourceAt returns the deposit at (x, z). Minerals are checked in
// catalog priority order; a subset mineral (gas) is never returned on its
// own but flags its parent deposit instead.
func (m *Map) ResourceAt(x, z float64) (Discovery, bool) {
	for _, def := range m.minerals {
		if def.SubsetOf != "" {
			continue
		}
		if m.sample(def, x, z) <= def.Threshold {
			continue
		}
		d := Discovery{X: x, Z: z, Resource: def.ID}
		for _, sub := range m.minerals {
			if sub.SubsetOf == def.ID && m.sample(sub, x, z) > sub.Threshold {
				d.HasGas = true
			}
		}
		return d, true
	}
	return Discovery{}, false
}

// SurveyArea samples a square grid of the given step around (cx, cz),
// keeping points inside radius, and returns the first hit of each distinct
// resource in scan order.
func (m *Map) SurveyArea(cx, cz, radius, step float64) []Discovery {
	n, ok := gridSteps(2*radius, step)
	if !ok {
		return nil
	}
	var out []Discovery
	seen := make(map[catalog.ResourceID]bool)
	for i := 0; i <= n; i++ {
		dx := -radius + float64(i)*step
		for j := 0; j <= n; j++ {
			dz := -radius + float64(j)*step
			if math.Hypot(dx, dz) > radius {
				continue
			}
			d, ok := m.ResourceAt(cx+dx, cz+dz)
			if !ok || seen[d.Resource] {
				continue
			}
			seen[d.Resource] = true
			out = append(out, d)
		}
	}
	return out
}

// Heatmap scans a size×size square centred on (cx, cz) every resolution
// units and reports, per point, the strongest layer within reach of its
// threshold.
func (m *Map) Heatmap(cx, cz, size, resolution float64) []HeatPoint {
	n, ok := gridSteps(size, resolution)
	if !ok {
		return nil
	}
	var out []HeatPoint
	half := size / 2
	for i := 0; i <= n; i++ {
		x := cx - half + float64(i)*resolution
		for j := 0; j <= n; j++ {
			z := cz - half + float64(j)*resolution
			best := HeatPoint{Value: -1}
			for _, def := range m.minerals {
				if def.SubsetOf != "" {
					continue
				}
				v := m.sample(def, x, z)
				if v > def.Threshold*heatmapSlack && v > best.Value {
					best = HeatPoint{X: x, Z: z, Resource: def.ID, Value: v}
				}
			}
			if best.Value >= 0 {
				out = append(out, best)
			}
		}
	}
	return out
}

// gridSteps returns how many whole steps fit in span. Grid loops count
// steps so that huge coordinates cannot stall them.
func gridSteps(span, step float64) (int, bool) {
	if !(step > 0) || !(span >= 0) {
		return 0, false
	}
	n := span / step
	if math.IsInf(n, 0) || math.IsNaN(n) || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}
