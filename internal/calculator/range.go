package calculator

import (
	"errors"
	"math"

	"TradeVision/internal/model"
)

// RecentBars is the window used for the recent high/low range.
const RecentBars = 52

var errNoPoints = errors.New("no data points provided")

// RecentRange scans the most recent n points and returns the highest high and lowest low.
func RecentRange(points []model.StockDataPoint, n int) (high, low float64, err error) {
	if len(points) == 0 {
		return 0, 0, errNoPoints
	}
	start := len(points) - n
	if n <= 0 || start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, p := range points[start:] {
		high = math.Max(high, p.High)
		low = math.Min(low, p.Low)
	}
	return high, low, nil
}

// PriceExtent returns the lowest and highest price the chart must show,
// including the support and resistance bands.
func PriceExtent(points []model.StockDataPoint) (minY, maxY float64, err error) {
	if len(points) == 0 {
		return 0, 0, errNoPoints
	}
	minY = math.Inf(1)
	maxY = math.Inf(-1)
	for _, p := range points {
		for _, v := range [...]float64{p.Low, p.High, p.SupportMin, p.SupportMax, p.ResistanceMin, p.ResistanceMax} {
			minY = math.Min(minY, v)
			maxY = math.Max(maxY, v)
		}
	}
	return minY, maxY, nil
}

// RangePosition returns where current sits within [low, high] (0.0~1.0).
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	return math.Max(0, math.Min(1, pos)), nil
}
