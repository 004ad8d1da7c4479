package model

import "time"

// MetricPoint holds one day of on-chain asset metrics.
type MetricPoint struct {
	Date              time.Time
	CirculatingSupply float64
	Issuance          float64
	MarketCapUSD      float64
	PriceUSD          float64
	MeanDifficulty    float64
}

func (p MetricPoint) Day() time.Time { return p.Date }

func (p MetricPoint) Values() []float64 {
	return []float64{p.CirculatingSupply, p.Issuance, p.MarketCapUSD, p.PriceUSD, p.MeanDifficulty}
}

// MetricSchema describes the on-disk columns of an on-chain metric series.
var MetricSchema = Schema[MetricPoint]{
	Name:    "metrics",
	Columns: []string{"CirculatingSupply", "Issuance", "MarketCapUSD", "PriceUSD", "MeanDifficulty"},
	Build: func(day time.Time, v []float64) MetricPoint {
		return MetricPoint{
			Date:              day,
			CirculatingSupply: v[0],
			Issuance:          v[1],
			MarketCapUSD:      v[2],
			PriceUSD:          v[3],
			MeanDifficulty:    v[4],
		}
	},
}
