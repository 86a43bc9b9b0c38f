package calculator

import (
	"math"

	"TradeVision/internal/model"
)

// Summarize computes deterministic statistics over the points in time order.
func Summarize(symbol string, points []model.StockDataPoint) model.Summary {
	s := model.Summary{Symbol: symbol, Points: len(points)}
	if len(points) == 0 {
		return s
	}

	points = sortedByTime(points)
	s.HighestHigh = math.Inf(-1)
	s.LowestLow = math.Inf(1)
	first, last := points[0], points[len(points)-1]
	var volume float64
	for _, p := range points {
		if p.High > s.HighestHigh {
			s.HighestHigh, s.HighestDate = p.High, p.Date
		}
		if p.Low < s.LowestLow {
			s.LowestLow, s.LowestDate = p.Low, p.Date
		}
		if move := math.Abs(p.Close - p.Open); move > s.MaxMove || s.MaxMoveDate == "" {
			s.MaxMove, s.MaxMoveDate = move, p.Date
		}
		volume += p.Volume
		switch p.Direction {
		case model.DirectionLong:
			s.LongCount++
		case model.DirectionShort:
			s.ShortCount++
		case model.DirectionNone:
			s.NoneCount++
		default:
			s.UnknownCount++
		}
	}
	s.Start, s.End = first.Time(), last.Time()
	s.LastClose = last.Close
	s.AvgVolume = volume / float64(len(points))

	if sma, err := CalculateCloseSMA(points, 20); err == nil {
		s.SMA20 = sma
	} else {
		s.SMA20 = s.LastClose
	}
	if rsi, err := CalculateRSI(points, 14); err == nil {
		s.RSI14 = rsi
	}
	if h, l, err := RecentRange(points, RecentBars); err == nil {
		s.RecentHigh, s.RecentLow = h, l
		if pos, err := RangePosition(s.LastClose, h, l); err == nil {
			s.Position = pos
		}
	}
	return s
}
