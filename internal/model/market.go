package model

import "time"

// PricePoint represents a single daily candlestick bar for a symbol/currency pair.
type PricePoint struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

func (p PricePoint) Day() time.Time { return p.Date }

func (p PricePoint) Values() []float64 {
	return []float64{p.Open, p.High, p.Low, p.Close, p.Volume}
}

// PriceSchema describes the on-disk columns of a price series.
var PriceSchema = Schema[PricePoint]{
	Name:    "price",
	Columns: []string{"Open", "High", "Low", "Close", "Volume"},
	Build: func(day time.Time, v []float64) PricePoint {
		return PricePoint{Date: day, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]}
	},
}
