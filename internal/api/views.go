package api

import (
	"time"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/engine"
	"github.com/khalecl/supply-chain-idle/internal/geology"
)

// buildingView flattens every building kind into one renderer-friendly shape.
type buildingView struct {
	ID         uint64               `json:"id"`
	Kind       catalog.BuildingKind `json:"kind"`
	X          float64              `json:"x"`
	Z          float64              `json:"z"`
	ElapsedMS  float64              `json:"elapsedMs"`
	DurationMS float64              `json:"durationMs"`
	Progress   float64              `json:"progress"`
	IsReady    bool                 `json:"isReady"`

	Crop      *catalog.ResourceID   `json:"crop,omitempty"`
	Type      catalog.ProcessorType `json:"type,omitempty"`
	Storage   float64               `json:"storage,omitempty"`
	Resource  *catalog.ResourceID   `json:"resource,omitempty"`
	HasGas    bool                  `json:"hasGas,omitempty"`
	Completed bool                  `json:"completed,omitempty"`
	Results   []geology.Discovery   `json:"results,omitempty"`
}

type stateView struct {
	Seed              int64                          `json:"seed"`
	Money             float64                        `json:"money"`
	Resources         map[catalog.ResourceID]float64 `json:"resources"`
	Prices            map[catalog.ResourceID]float64 `json:"prices"`
	PrestigeLevel     int                            `json:"prestigeLevel"`
	SpeedMultiplier   float64                        `json:"speedMultiplier"`
	GameTimeMS        float64                        `json:"gameTimeMs"`
	LastPriceUpdateMS float64                        `json:"lastPriceUpdateMs"`
	NextID            uint64                         `json:"buildingIdCounter"`
	PendingFarmID     *uint64                        `json:"pendingFarmId"`
	Buildings         []buildingView                 `json:"buildings"`
	Speed             float64                        `json:"speed"`
	Running           bool                           `json:"running"`
}

func millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return min(float64(elapsed)/float64(total), 1)
}

func cycle(base time.Duration, mult float64) time.Duration {
	return time.Duration(float64(base) / mult)
}

func newStateView(cat *catalog.Registry, s engine.Snapshot) stateView {
	v := stateView{
		Seed:              s.Seed,
		Money:             s.Money,
		Resources:         s.Resources,
		Prices:            s.Prices,
		PrestigeLevel:     s.PrestigeLevel,
		SpeedMultiplier:   s.SpeedMultiplier,
		GameTimeMS:        millis(s.GameTime),
		LastPriceUpdateMS: millis(s.LastPriceUpdate),
		NextID:            s.NextID,
		PendingFarmID:     s.PendingFarmID,
		Buildings:         make([]buildingView, 0, len(s.Farms)+len(s.Processors)+len(s.Mines)+len(s.SurveyRigs)),
	}
	mult := s.SpeedMultiplier
	if mult <= 0 {
		mult = 1
	}

	for _, f := range s.Farms {
		b := buildingView{ID: f.ID, Kind: catalog.KindFarm, X: f.Position.X, Z: f.Position.Z,
			ElapsedMS: millis(f.Elapsed), IsReady: f.IsReady, Crop: f.Crop}
		if f.Crop != nil {
			if crop, ok := cat.Crop(*f.Crop); ok {
				d := cycle(crop.GrowTime, mult)
				b.DurationMS, b.Progress = millis(d), progress(f.Elapsed, d)
			}
		}
		v.Buildings = append(v.Buildings, b)
	}
	for _, p := range s.Processors {
		b := buildingView{ID: p.ID, Kind: catalog.KindProcessor, X: p.Position.X, Z: p.Position.Z,
			ElapsedMS: millis(p.Elapsed), IsReady: p.IsReady, Type: p.Type, Storage: p.Storage}
		if def, ok := cat.Processor(p.Type); ok {
			d := cycle(def.ProcessTime, mult)
			b.DurationMS, b.Progress = millis(d), progress(p.Elapsed, d)
		}
		v.Buildings = append(v.Buildings, b)
	}
	for _, m := range s.Mines {
		d := cycle(m.ExtractTime, mult)
		v.Buildings = append(v.Buildings, buildingView{ID: m.ID, Kind: catalog.KindMine, X: m.Position.X, Z: m.Position.Z,
			ElapsedMS: millis(m.Elapsed), DurationMS: millis(d), Progress: progress(m.Elapsed, d),
			IsReady: m.IsReady, Resource: m.Resource, HasGas: m.HasGas})
	}
	for _, r := range s.SurveyRigs {
		d := cat.SurveyRig.ScanTime
		v.Buildings = append(v.Buildings, buildingView{ID: r.ID, Kind: catalog.KindSurveyRig, X: r.Position.X, Z: r.Position.Z,
			ElapsedMS: millis(r.Elapsed), DurationMS: millis(d), Progress: progress(r.Elapsed, d),
			IsReady: r.IsReady, Completed: r.Completed, Results: r.Results})
	}
	return v
}

type catalogView struct {
	Economy    catalog.Economy       `json:"economy"`
	SurveyRig  catalog.SurveyRigSpec `json:"surveyRig"`
	Mine       catalog.MineSpec      `json:"mine"`
	Resources  []catalog.Resource    `json:"resources"`
	Crops      []catalog.Crop        `json:"crops"`
	Processors []catalog.Processor   `json:"processors"`
	Minerals   []catalog.Mineral     `json:"minerals"`
}

func newCatalogView(cat *catalog.Registry) catalogView {
	return catalogView{
		Economy:    cat.Economy,
		SurveyRig:  cat.SurveyRig,
		Mine:       cat.Mine,
		Resources:  cat.Resources(),
		Crops:      cat.Crops(),
		Processors: cat.Processors(),
		Minerals:   cat.Minerals(),
	}
}

type marketEntry struct {
	Resource  catalog.ResourceID `json:"resource"`
	Name      string             `json:"name"`
	Category  catalog.Category   `json:"category"`
	Price     float64            `json:"price"`
	BasePrice float64            `json:"basePrice"`
	Min       float64            `json:"min"`
	Max       float64            `json:"max"`
	Held      float64            `json:"held"`
}

func newMarketView(cat *catalog.Registry, s engine.Snapshot) []marketEntry {
	out := make([]marketEntry, 0, len(s.Prices))
	for _, res := range cat.Resources() {
		out = append(out, marketEntry{
			Resource:  res.ID,
			Name:      res.Name,
			Category:  res.Category,
			Price:     s.Prices[res.ID],
			BasePrice: res.BasePrice,
			Min:       res.Min,
			Max:       res.Max,
			Held:      s.Resources[res.ID],
		})
	}
	return out
}
