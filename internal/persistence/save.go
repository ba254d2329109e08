package persistence

import (
	"math"
	"time"

	"github.com/khalecl/supply-chain-idle/internal/buildings"
	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/engine"
	"github.com/khalecl/supply-chain-idle/internal/geology"
)

// StoreKey is the slot the game is saved under.
const StoreKey = "supply-chain-game-store"

// CurrentVersion is the save format written by Encode.
const CurrentVersion = 3

// envelope wraps every persisted state with its format version.
type envelope[T any] struct {
	State   T   `json:"state"`
	Version int `json:"version"`
}

// ── v3: generic resource map and typed buildings ──────────────────────

type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y,omitempty"`
	Z float64 `json:"z"`
}

type headerV3 struct {
	ID        uint64   `json:"id"`
	Position  position `json:"position"`
	ElapsedMS float64  `json:"elapsedMs"`
	IsReady   bool     `json:"isReady"`
}

type farmV3 struct {
	headerV3
	Crop *string `json:"crop"`
}

type processorV3 struct {
	headerV3
	Type    string  `json:"type"`
	Storage float64 `json:"storage"`
}

type mineV3 struct {
	headerV3
	Resource      *string `json:"resource"`
	HasGas        bool    `json:"hasGas,omitempty"`
	ExtractTimeMS float64 `json:"extractTimeMs"`
	ExtractCost   float64 `json:"extractCost"`
}

type discoveryV3 struct {
	X        float64 `json:"x"`
	Z        float64 `json:"z"`
	Resource string  `json:"resource"`
	HasGas   bool    `json:"hasGas,omitempty"`
}

type surveyRigV3 struct {
	headerV3
	Completed bool          `json:"completed"`
	Results   []discoveryV3 `json:"results"`
}

type saveV3 struct {
	Seed              int64              `json:"seed"`
	Money             float64            `json:"money"`
	Resources         map[string]float64 `json:"resources"`
	MarketPrices      map[string]float64 `json:"marketPrices"`
	LastPriceUpdateMS float64            `json:"lastPriceUpdateMs"`
	PrestigeLevel     int                `json:"prestigeLevel"`
	GameTimeMS        float64            `json:"gameTimeMs"`
	BuildingIDCounter uint64             `json:"buildingIdCounter"`
	PendingFarmID     *uint64            `json:"pendingFarmId"`
	Farms             []farmV3           `json:"farms"`
	Processors        []processorV3      `json:"processors"`
	Mines             []mineV3           `json:"mines"`
	SurveyRigs        []surveyRigV3      `json:"surveyRigs"`
}

// ── v1: textile chain with flat fields ────────────────────────────────

type legacyBuilding struct {
	ID                uint64   `json:"id"`
	Position          position `json:"position"`
	ProductionTime    float64  `json:"productionTime"`
	CurrentProduction float64  `json:"currentProduction"`
	IsReady           bool     `json:"isReady"`
	StorageAmount     float64  `json:"storageAmount,omitempty"`
	ClothInput        float64  `json:"clothInput,omitempty"`
	FlourInput        float64  `json:"flourInput,omitempty"`
}

type saveV1 struct {
	Cotton            float64            `json:"cotton"`
	Cloth             float64            `json:"cloth"`
	Textiles          float64            `json:"textiles"`
	Money             float64            `json:"money"`
	Farms             []legacyBuilding   `json:"farms"`
	Warehouses        []legacyBuilding   `json:"warehouses"`
	Factories         []legacyBuilding   `json:"factories"`
	BuildingIDCounter uint64             `json:"buildingIdCounter"`
	MarketPrices      map[string]float64 `json:"marketPrices"`
	LastPriceUpdate   float64            `json:"lastPriceUpdate"` // seconds
	PrestigeLevel     int                `json:"prestigeLevel"`
	GameTime          float64            `json:"gameTime"` // seconds
}

// ── v2: v1 plus the food chain ─────────────────────────────────────────

type saveV2 struct {
	saveV1
	Wheat      float64          `json:"wheat"`
	Flour      float64          `json:"flour"`
	Bread      float64          `json:"bread"`
	GrainFarms []legacyBuilding `json:"grainFarms"`
	Mills      []legacyBuilding `json:"mills"`
	Bakeries   []legacyBuilding `json:"bakeries"`
}

// ── Conversion between v3 and the engine snapshot ─────────────────────

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func fromMS(v float64) time.Duration { return time.Duration(math.Round(v * float64(time.Millisecond))) }

func toHeaderV3(h buildings.Header) headerV3 {
	return headerV3{
		ID:        h.ID,
		Position:  position{X: h.Position.X, Z: h.Position.Z},
		ElapsedMS: ms(h.Elapsed),
		IsReady:   h.IsReady,
	}
}

func (h headerV3) header() buildings.Header {
	return buildings.Header{
		ID:       h.ID,
		Position: buildings.Position{X: h.Position.X, Z: h.Position.Z},
		Elapsed:  fromMS(h.ElapsedMS),
		IsReady:  h.IsReady,
	}
}

func strPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func idPtr(v *string) *catalog.ResourceID {
	if v == nil {
		return nil
	}
	id := catalog.ResourceID(*v)
	return &id
}

func fromSnapshot(s engine.Snapshot) saveV3 {
	out := saveV3{
		Seed:              s.Seed,
		Money:             s.Money,
		Resources:         make(map[string]float64, len(s.Resources)),
		MarketPrices:      make(map[string]float64, len(s.Prices)),
		LastPriceUpdateMS: ms(s.LastPriceUpdate),
		PrestigeLevel:     s.PrestigeLevel,
		GameTimeMS:        ms(s.GameTime),
		BuildingIDCounter: s.NextID,
		PendingFarmID:     s.PendingFarmID,
		Farms:             make([]farmV3, 0, len(s.Farms)),
		Processors:        make([]processorV3, 0, len(s.Processors)),
		Mines:             make([]mineV3, 0, len(s.Mines)),
		SurveyRigs:        make([]surveyRigV3, 0, len(s.SurveyRigs)),
	}
	for id, q := range s.Resources {
		out.Resources[string(id)] = q
	}
	for id, p := range s.Prices {
		out.MarketPrices[string(id)] = p
	}
	for _, f := range s.Farms {
		out.Farms = append(out.Farms, farmV3{headerV3: toHeaderV3(f.Header), Crop: strPtr(f.Crop)})
	}
	for _, p := range s.Processors {
		out.Processors = append(out.Processors, processorV3{
			headerV3: toHeaderV3(p.Header),
			Type:     string(p.Type),
			Storage:  p.Storage,
		})
	}
	for _, m := range s.Mines {
		out.Mines = append(out.Mines, mineV3{
			headerV3:      toHeaderV3(m.Header),
			Resource:      strPtr(m.Resource),
			HasGas:        m.HasGas,
			ExtractTimeMS: ms(m.ExtractTime),
			ExtractCost:   m.ExtractCost,
		})
	}
	for _, r := range s.SurveyRigs {
		rig := surveyRigV3{
			headerV3:  toHeaderV3(r.Header),
			Completed: r.Completed,
			Results:   make([]discoveryV3, 0, len(r.Results)),
		}
		for _, d := range r.Results {
			rig.Results = append(rig.Results, discoveryV3{X: d.X, Z: d.Z, Resource: string(d.Resource), HasGas: d.HasGas})
		}
		out.SurveyRigs = append(out.SurveyRigs, rig)
	}
	return out
}

func (v saveV3) snapshot() engine.Snapshot {
	s := engine.Snapshot{
		Seed:            v.Seed,
		Money:           v.Money,
		Resources:       make(map[catalog.ResourceID]float64, len(v.Resources)),
		Prices:          make(map[catalog.ResourceID]float64, len(v.MarketPrices)),
		LastPriceUpdate: fromMS(v.LastPriceUpdateMS),
		PrestigeLevel:   v.PrestigeLevel,
		GameTime:        fromMS(v.GameTimeMS),
	}
	s.NextID = v.BuildingIDCounter
	s.PendingFarmID = v.PendingFarmID
	for id, q := range v.Resources {
		s.Resources[catalog.ResourceID(id)] = q
	}
	for id, p := range v.MarketPrices {
		s.Prices[catalog.ResourceID(id)] = p
	}
	for _, f := range v.Farms {
		s.Farms = append(s.Farms, buildings.Farm{Header: f.header(), Crop: idPtr(f.Crop)})
	}
	for _, p := range v.Processors {
		s.Processors = append(s.Processors, buildings.Processor{
			Header:  p.header(),
			Type:    catalog.ProcessorType(p.Type),
			Storage: p.Storage,
		})
	}
	for _, m := range v.Mines {
		s.Mines = append(s.Mines, buildings.Mine{
			Header:      m.header(),
			Resource:    idPtr(m.Resource),
			HasGas:      m.HasGas,
			ExtractTime: fromMS(m.ExtractTimeMS),
			ExtractCost: m.ExtractCost,
		})
	}
	for _, r := range v.SurveyRigs {
		rig := buildings.SurveyRig{Header: r.header(), Completed: r.Completed}
		for _, d := range r.Results {
			rig.Results = append(rig.Results, geology.Discovery{
				X: d.X, Z: d.Z, Resource: catalog.ResourceID(d.Resource), HasGas: d.HasGas,
			})
		}
		s.SurveyRigs = append(s.SurveyRigs, rig)
	}
	return s
}
