// Package catalog holds the static game data: resources, crops, processor
// recipes, minerals and building constants. The data ships as embedded YAML
// and is read once into an immutable Registry.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ResourceID identifies any tradable item (crop, intermediate, finished good, mineral).
type ResourceID string

// ProcessorType identifies a processor recipe.
type ProcessorType string

// Category groups resources for display and pricing.
type Category string

const (
	CategoryRaw       Category = "raw"
	CategoryProcessed Category = "processed"
	CategoryFinished  Category = "finished"
	CategoryMineral   Category = "mineral"
	CategoryEnergy    Category = "energy"
)

// BuildingKind is the tag of the building union.
type BuildingKind string

const (
	KindFarm      BuildingKind = "farm"
	KindProcessor BuildingKind = "processor"
	KindMine      BuildingKind = "mine"
	KindSurveyRig BuildingKind = "survey_rig"
)

// Resource is a tradable item with its price band.
type Resource struct {
	ID        ResourceID `yaml:"id" json:"id" validate:"required"`
	Name      string     `yaml:"name" json:"name" validate:"required"`
	Category  Category   `yaml:"category" json:"category" validate:"oneof=raw processed finished mineral energy"`
	BasePrice float64    `yaml:"base_price" json:"basePrice" validate:"gt=0"`
	Min       float64    `yaml:"min" json:"min" validate:"gt=0"`
	Max       float64    `yaml:"max" json:"max" validate:"gtfield=Min"`
}

// Crop is a plantable resource. Price fields are copied from its resource.
type Crop struct {
	ID          ResourceID    `json:"id"`
	Name        string        `json:"name"`
	GrowTime    time.Duration `json:"growTime"`
	HarvestCost float64       `json:"harvestCost"`
	BasePrice   float64       `json:"basePrice"`
	Min         float64       `json:"min"`
	Max         float64       `json:"max"`
	Chain       string        `json:"chain"`
}

// Processor is a recipe turning InputAmount of Input into OutputAmount of Output.
type Processor struct {
	ID           ProcessorType `json:"id"`
	Name         string        `json:"name"`
	Cost         float64       `json:"cost"`
	OpCost       float64       `json:"opCost"`
	ProcessTime  time.Duration `json:"processTime"`
	Input        ResourceID    `json:"input"`
	InputAmount  float64       `json:"inputAmount"`
	Output       ResourceID    `json:"output"`
	OutputAmount float64       `json:"outputAmount"`
	Chain        string        `json:"chain"`
}

// Mineral is an extractable deposit. Several minerals may share a noise
// Layer; SubsetOf names the deposit a rarer mineral is found inside.
type Mineral struct {
	ID          ResourceID    `json:"id"`
	Name        string        `json:"name"`
	Layer       string        `json:"layer"`
	LayerSeed   int64         `json:"layerSeed"`
	NoiseFreq   float64       `json:"noiseFreq"`
	Threshold   float64       `json:"threshold"`
	ExtractTime time.Duration `json:"extractTime"`
	ExtractCost float64       `json:"extractCost"`
	SubsetOf    ResourceID    `json:"subsetOf,omitempty"`
	BasePrice   float64       `json:"basePrice"`
	Min         float64       `json:"min"`
	Max         float64       `json:"max"`
}

// Economy holds the global money constants.
type Economy struct {
	StartingMoney float64       `json:"startingMoney"`
	FarmCost      float64       `json:"farmCost"`
	PrestigeBonus float64       `json:"prestigeBonus"`
	PriceInterval time.Duration `json:"priceInterval"`
	PriceVariance float64       `json:"priceVariance"`
}

// SurveyRigSpec describes the survey rig building.
type SurveyRigSpec struct {
	Cost         float64       `json:"cost"`
	RevealRadius float64       `json:"revealRadius"`
	ScanTime     time.Duration `json:"scanTime"`
	SampleStep   float64       `json:"sampleStep"`
}

// MineSpec describes the mine building.
type MineSpec struct {
	Cost        float64 `json:"cost"`
	ProbeRadius float64 `json:"probeRadius"`
}

// ── Raw YAML shape ─────────────────────────────────────────────────────

type fileEconomy struct {
	StartingMoney   float64 `yaml:"starting_money" validate:"gt=0"`
	FarmCost        float64 `yaml:"farm_cost" validate:"gt=0"`
	PrestigeBonus   float64 `yaml:"prestige_bonus" validate:"gte=0"`
	PriceIntervalMS int64   `yaml:"price_interval_ms" validate:"gt=0"`
	PriceVariance   float64 `yaml:"price_variance" validate:"gte=0"`
}

type fileSurveyRig struct {
	Cost         float64 `yaml:"cost" validate:"gt=0"`
	RevealRadius float64 `yaml:"reveal_radius" validate:"gt=0"`
	ScanTimeMS   int64   `yaml:"scan_time_ms" validate:"gt=0"`
	SampleStep   float64 `yaml:"sample_step" validate:"gt=0"`
}

type fileMine struct {
	Cost        float64 `yaml:"cost" validate:"gt=0"`
	ProbeRadius float64 `yaml:"probe_radius" validate:"gte=0"`
}

type fileCrop struct {
	ID          ResourceID `yaml:"id" validate:"required"`
	Name        string     `yaml:"name" validate:"required"`
	GrowTimeMS  int64      `yaml:"grow_time_ms" validate:"gt=0"`
	HarvestCost float64    `yaml:"harvest_cost" validate:"gte=0"`
	Chain       string     `yaml:"chain" validate:"required"`
}

type fileProcessor struct {
	ID            ProcessorType `yaml:"id" validate:"required"`
	Name          string        `yaml:"name" validate:"required"`
	Cost          float64       `yaml:"cost" validate:"gt=0"`
	OpCost        float64       `yaml:"op_cost" validate:"gte=0"`
	ProcessTimeMS int64         `yaml:"process_time_ms" validate:"gt=0"`
	Input         ResourceID    `yaml:"input" validate:"required"`
	InputAmount   float64       `yaml:"input_amount" validate:"gt=0"`
	Output        ResourceID    `yaml:"output" validate:"required"`
	OutputAmount  float64       `yaml:"output_amount" validate:"gt=0"`
	Chain         string        `yaml:"chain" validate:"required"`
}

type fileMineral struct {
	ID            ResourceID `yaml:"id" validate:"required"`
	Name          string     `yaml:"name" validate:"required"`
	Layer         string     `yaml:"layer" validate:"required"`
	LayerSeed     int64      `yaml:"layer_seed"`
	NoiseFreq     float64    `yaml:"noise_freq" validate:"gt=0"`
	Threshold     float64    `yaml:"threshold" validate:"gt=0,lte=1"`
	ExtractTimeMS int64      `yaml:"extract_time_ms" validate:"gt=0"`
	ExtractCost   float64    `yaml:"extract_cost" validate:"gte=0"`
	SubsetOf      ResourceID `yaml:"subset_of"`
}

type file struct {
	Economy    fileEconomy     `yaml:"economy"`
	SurveyRig  fileSurveyRig   `yaml:"survey_rig"`
	Mine       fileMine        `yaml:"mine"`
	Resources  []Resource      `yaml:"resources" validate:"required,dive"`
	Crops      []fileCrop      `yaml:"crops" validate:"required,dive"`
	Processors []fileProcessor `yaml:"processors" validate:"required,dive"`
	Minerals   []fileMineral   `yaml:"minerals" validate:"dive"`
}

// ── Registry ───────────────────────────────────────────────────────────

// Registry is the read-only lookup over the loaded catalog. Slices keep the
// file order, which callers rely on for deterministic iteration.
type Registry struct {
	Economy   Economy
	SurveyRig SurveyRigSpec
	Mine      MineSpec

	resources  []Resource
	crops      []Crop
	processors []Processor
	minerals   []Mineral

	resourceIdx  map[ResourceID]int
	cropIdx      map[ResourceID]int
	processorIdx map[ProcessorType]int
	mineralIdx   map[ResourceID]int
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry built from the embedded catalog.
// It panics if the embedded data is invalid.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load(bytes.NewReader(defaultCatalog))
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded data invalid: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// LoadFile reads a catalog from a YAML file on disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a YAML catalog.
func Load(r io.Reader) (*Registry, error) {
	var raw file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := validator.New().Struct(&raw); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return build(&raw)
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

func build(raw *file) (*Registry, error) {
	reg := &Registry{
		Economy: Economy{
			StartingMoney: raw.Economy.StartingMoney,
			FarmCost:      raw.Economy.FarmCost,
			PrestigeBonus: raw.Economy.PrestigeBonus,
			PriceInterval: ms(raw.Economy.PriceIntervalMS),
			PriceVariance: raw.Economy.PriceVariance,
		},
		SurveyRig: SurveyRigSpec{
			Cost:         raw.SurveyRig.Cost,
			RevealRadius: raw.SurveyRig.RevealRadius,
			ScanTime:     ms(raw.SurveyRig.ScanTimeMS),
			SampleStep:   raw.SurveyRig.SampleStep,
		},
		Mine: MineSpec{
			Cost:        raw.Mine.Cost,
			ProbeRadius: raw.Mine.ProbeRadius,
		},
		resourceIdx:  make(map[ResourceID]int, len(raw.Resources)),
		cropIdx:      make(map[ResourceID]int, len(raw.Crops)),
		processorIdx: make(map[ProcessorType]int, len(raw.Processors)),
		mineralIdx:   make(map[ResourceID]int, len(raw.Minerals)),
	}

	for _, r := range raw.Resources {
		if _, dup := reg.resourceIdx[r.ID]; dup {
			return nil, fmt.Errorf("duplicate resource %q", r.ID)
		}
		if r.BasePrice < r.Min || r.BasePrice > r.Max {
			return nil, fmt.Errorf("resource %q: base price %.2f outside [%.2f, %.2f]", r.ID, r.BasePrice, r.Min, r.Max)
		}
		reg.resourceIdx[r.ID] = len(reg.resources)
		reg.resources = append(reg.resources, r)
	}

	for _, c := range raw.Crops {
		res, ok := reg.Resource(c.ID)
		if !ok {
			return nil, fmt.Errorf("crop %q has no resource entry", c.ID)
		}
		if _, dup := reg.cropIdx[c.ID]; dup {
			return nil, fmt.Errorf("duplicate crop %q", c.ID)
		}
		reg.cropIdx[c.ID] = len(reg.crops)
		reg.crops = append(reg.crops, Crop{
			ID:          c.ID,
			Name:        c.Name,
			GrowTime:    ms(c.GrowTimeMS),
			HarvestCost: c.HarvestCost,
			BasePrice:   res.BasePrice,
			Min:         res.Min,
			Max:         res.Max,
			Chain:       c.Chain,
		})
	}

	for _, p := range raw.Processors {
		if _, ok := reg.Resource(p.Input); !ok {
			return nil, fmt.Errorf("processor %q: unknown input %q", p.ID, p.Input)
		}
		if _, ok := reg.Resource(p.Output); !ok {
			return nil, fmt.Errorf("processor %q: unknown output %q", p.ID, p.Output)
		}
		if _, dup := reg.processorIdx[p.ID]; dup {
			return nil, fmt.Errorf("duplicate processor %q", p.ID)
		}
		reg.processorIdx[p.ID] = len(reg.processors)
		reg.processors = append(reg.processors, Processor{
			ID:           p.ID,
			Name:         p.Name,
			Cost:         p.Cost,
			OpCost:       p.OpCost,
			ProcessTime:  ms(p.ProcessTimeMS),
			Input:        p.Input,
			InputAmount:  p.InputAmount,
			Output:       p.Output,
			OutputAmount: p.OutputAmount,
			Chain:        p.Chain,
		})
	}

	for _, m := range raw.Minerals {
		res, ok := reg.Resource(m.ID)
		if !ok {
			return nil, fmt.Errorf("mineral %q has no resource entry", m.ID)
		}
		if _, dup := reg.mineralIdx[m.ID]; dup {
			return nil, fmt.Errorf("duplicate mineral %q", m.ID)
		}
		if m.SubsetOf != "" {
			parent, ok := reg.Mineral(m.SubsetOf)
			if !ok {
				return nil, fmt.Errorf("mineral %q: subset_of %q must be listed earlier", m.ID, m.SubsetOf)
			}
			if parent.Layer != m.Layer {
				return nil, fmt.Errorf("mineral %q: must share layer %q with %q", m.ID, parent.Layer, parent.ID)
			}
		}
		reg.mineralIdx[m.ID] = len(reg.minerals)
		reg.minerals = append(reg.minerals, Mineral{
			ID:          m.ID,
			Name:        m.Name,
			Layer:       m.Layer,
			LayerSeed:   m.LayerSeed,
			NoiseFreq:   m.NoiseFreq,
			Threshold:   m.Threshold,
			ExtractTime: ms(m.ExtractTimeMS),
			ExtractCost: m.ExtractCost,
			SubsetOf:    m.SubsetOf,
			BasePrice:   res.BasePrice,
			Min:         res.Min,
			Max:         res.Max,
		})
	}

	return reg, nil
}

// ── Lookups ────────────────────────────────────────────────────────────

// Resource returns the resource with the given id.
func (r *Registry) Resource(id ResourceID) (Resource, bool) {
	i, ok := r.resourceIdx[id]
	if !ok {
		return Resource{}, false
	}
	return r.resources[i], true
}

// MustResource is Resource for ids the caller knows are valid. It panics otherwise.
func (r *Registry) MustResource(id ResourceID) Resource {
	res, ok := r.Resource(id)
	if !ok {
		panic(fmt.Sprintf("catalog: unknown resource %q", id))
	}
	return res
}

// Resources returns all resources in catalog order.
func (r *Registry) Resources() []Resource {
	out := make([]Resource, len(r.resources))
	copy(out, r.resources)
	return out
}

// ResourceIDs returns all resource ids in catalog order.
func (r *Registry) ResourceIDs() []ResourceID {
	out := make([]ResourceID, len(r.resources))
	for i, res := range r.resources {
		out[i] = res.ID
	}
	return out
}

// Crop returns the crop with the given id.
func (r *Registry) Crop(id ResourceID) (Crop, bool) {
	i, ok := r.cropIdx[id]
	if !ok {
		return Crop{}, false
	}
	return r.crops[i], true
}

// Crops returns all crops in catalog order.
func (r *Registry) Crops() []Crop {
	out := make([]Crop, len(r.crops))
	copy(out, r.crops)
	return out
}

// Processor returns the processor recipe for the given type.
func (r *Registry) Processor(id ProcessorType) (Processor, bool) {
	i, ok := r.processorIdx[id]
	if !ok {
		return Processor{}, false
	}
	return r.processors[i], true
}

// Processors returns all processor recipes in catalog order.
func (r *Registry) Processors() []Processor {
	out := make([]Processor, len(r.processors))
	copy(out, r.processors)
	return out
}

// Mineral returns the mineral with the given id.
func (r *Registry) Mineral(id ResourceID) (Mineral, bool) {
	i, ok := r.mineralIdx[id]
	if !ok {
		return Mineral{}, false
	}
	return r.minerals[i], true
}

// Minerals returns all minerals in discovery priority order.
func (r *Registry) Minerals() []Mineral {
	out := make([]Mineral, len(r.minerals))
	copy(out, r.minerals)
	return out
}

// BuildingCost returns the purchase price of a building. proc is only
// consulted for processors.
func (r *Registry) BuildingCost(kind BuildingKind, proc ProcessorType) (float64, bool) {
	switch kind {
	case KindFarm:
		return r.Economy.FarmCost, true
	case KindSurveyRig:
		return r.SurveyRig.Cost, true
	case KindMine:
		return r.Mine.Cost, true
	case KindProcessor:
		p, ok := r.Processor(proc)
		if !ok {
			return 0, false
		}
		return p.Cost, true
	}
	return 0, false
}

// SpeedMultiplier is the production speed factor for a prestige level.
func (r *Registry) SpeedMultiplier(level int) float64 {
	return 1 + float64(level)*r.Economy.PrestigeBonus
}
