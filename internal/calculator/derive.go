package calculator

import (
	"math"

	"TradeVision/internal/model"
)

// Bar holds the validated scalar fields of one row before derivation.
type Bar struct {
	Date       string
	Timestamp  int64
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Direction  model.Direction
	Support    []float64
	Resistance []float64
}

// Derive computes the chart-ready fields of a validated bar. It never fails:
// an empty support sequence falls back to Low, an empty resistance sequence to High.
func Derive(b Bar) model.StockDataPoint {
	support := nonNil(b.Support)
	resistance := nonNil(b.Resistance)

	supMin, supMax := bounds(support, b.Low)
	resMin, resMax := bounds(resistance, b.High)

	return model.StockDataPoint{
		Date:          b.Date,
		Timestamp:     b.Timestamp,
		Open:          b.Open,
		High:          b.High,
		Low:           b.Low,
		Close:         b.Close,
		Volume:        b.Volume,
		Direction:     b.Direction,
		Support:       support,
		SupportMin:    supMin,
		SupportMax:    supMax,
		Resistance:    resistance,
		ResistanceMin: resMin,
		ResistanceMax: resMax,
		OHLC:          [4]float64{b.Open, b.High, b.Low, b.Close},
		CandleBody:    [2]float64{math.Min(b.Open, b.Close), math.Max(b.Open, b.Close)},
		CandleWick:    [2]float64{b.Low, b.High},
	}
}

func bounds(levels []float64, fallback float64) (lo, hi float64) {
	if len(levels) == 0 {
		return fallback, fallback
	}
	lo, hi = levels[0], levels[0]
	for _, v := range levels[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
