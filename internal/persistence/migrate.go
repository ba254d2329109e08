package persistence

import (
	"math"
)

// migrateV1toV2 adds the food chain with empty balances and no buildings.
func migrateV1toV2(v1 saveV1) saveV2 {
	v2 := saveV2{saveV1: v1}
	if v2.MarketPrices == nil {
		v2.MarketPrices = make(map[string]float64)
	}
	return v2
}

// migrateV2toV3 moves the flat per-resource fields into the resource map
// and turns the per-chain building lists into crop farms and typed
// processors. Legacy farms grew cotton, grain farms wheat.
func migrateV2toV3(v2 saveV2) saveV3 {
	v3 := saveV3{
		Money: v2.Money,
		Resources: map[string]float64{
			"cotton":   v2.Cotton,
			"cloth":    v2.Cloth,
			"textiles": v2.Textiles,
			"wheat":    v2.Wheat,
			"flour":    v2.Flour,
			"bread":    v2.Bread,
		},
		MarketPrices:      make(map[string]float64, len(v2.MarketPrices)),
		LastPriceUpdateMS: v2.LastPriceUpdate * 1000,
		PrestigeLevel:     v2.PrestigeLevel,
		GameTimeMS:        v2.GameTime * 1000,
		BuildingIDCounter: v2.BuildingIDCounter,
		Farms:             []farmV3{},
		Processors:        []processorV3{},
		Mines:             []mineV3{},
		SurveyRigs:        []surveyRigV3{},
	}
	for id, p := range v2.MarketPrices {
		v3.MarketPrices[id] = p
	}

	farms := func(list []legacyBuilding, crop string) {
		for _, b := range list {
			c := crop
			v3.Farms = append(v3.Farms, farmV3{headerV3: legacyHeader(b), Crop: &c})
		}
	}
	procs := func(list []legacyBuilding, typ string, storage func(legacyBuilding) float64) {
		for _, b := range list {
			v3.Processors = append(v3.Processors, processorV3{
				headerV3: legacyHeader(b),
				Type:     typ,
				Storage:  storage(b),
			})
		}
	}
	stored := func(b legacyBuilding) float64 { return b.StorageAmount }
	cloth := func(b legacyBuilding) float64 { return b.ClothInput }
	flour := func(b legacyBuilding) float64 { return b.FlourInput }

	farms(v2.Farms, "cotton")
	farms(v2.GrainFarms, "wheat")
	procs(v2.Warehouses, "warehouse", stored)
	procs(v2.Factories, "factory", cloth)
	procs(v2.Mills, "mill", stored)
	procs(v2.Bakeries, "bakery", flour)

	// Ids are assigned in purchase order; keep the counter ahead of them.
	for _, id := range v3.buildingIDs() {
		if id >= v3.BuildingIDCounter {
			v3.BuildingIDCounter = id + 1
		}
	}
	return v3
}

func legacyHeader(b legacyBuilding) headerV3 {
	return headerV3{
		ID:        b.ID,
		Position:  b.Position,
		ElapsedMS: math.Max(b.CurrentProduction, 0),
		IsReady:   b.IsReady,
	}
}

func (v saveV3) buildingIDs() []uint64 {
	var ids []uint64
	for _, f := range v.Farms {
		ids = append(ids, f.ID)
	}
	for _, p := range v.Processors {
		ids = append(ids, p.ID)
	}
	for _, m := range v.Mines {
		ids = append(ids, m.ID)
	}
	for _, r := range v.SurveyRigs {
		ids = append(ids, r.ID)
	}
	return ids
}
