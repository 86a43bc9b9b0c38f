package calculator

import (
	"sort"

	"TradeVision/internal/model"
)

const (
	// DomainMargin pads the y-axis on both sides.
	DomainMargin = 0.15
	// MarkerOffset places direction arrows this fraction of the price range away from the bar.
	MarkerOffset = 0.03
)

// ChartPoint is a StockDataPoint plus its band and candle colouring.
// A band is nil when its bounds coincide.
type ChartPoint struct {
	model.StockDataPoint
	SupportBand    *[2]float64 `json:"supportBand"`
	ResistanceBand *[2]float64 `json:"resistanceBand"`
	Bullish        bool        `json:"bullish"`
}

// Marker is a direction annotation positioned on the price axis.
type Marker struct {
	Timestamp int64           `json:"Timestamp"`
	Direction model.Direction `json:"direction"`
	Y         float64         `json:"yPos"`
}

// ChartView is everything the candlestick chart needs.
type ChartView struct {
	Points      []ChartPoint `json:"points"`
	DomainMin   float64      `json:"yDomainMin"`
	DomainMax   float64      `json:"yDomainMax"`
	LatestClose float64      `json:"latestClose"`
	Long        []Marker     `json:"longMarkers"`
	Short       []Marker     `json:"shortMarkers"`
	Neutral     []Marker     `json:"noneMarkers"`
}

// BuildChart sorts points by timestamp and prepares bands, domain and markers.
func BuildChart(points []model.StockDataPoint) ChartView {
	view := ChartView{
		Points:  []ChartPoint{},
		Long:    []Marker{},
		Short:   []Marker{},
		Neutral: []Marker{},
	}
	minY, maxY, err := PriceExtent(points)
	if err != nil {
		return view
	}

	sorted := sortedByTime(points)

	view.DomainMin = minY * (1 - DomainMargin)
	view.DomainMax = maxY * (1 + DomainMargin)
	view.LatestClose = sorted[len(sorted)-1].Close
	offset := (maxY - minY) * MarkerOffset

	for _, p := range sorted {
		view.Points = append(view.Points, ChartPoint{
			StockDataPoint: p,
			SupportBand:    band(p.SupportMin, p.SupportMax),
			ResistanceBand: band(p.ResistanceMin, p.ResistanceMax),
			Bullish:        p.Close > p.Open,
		})
		switch p.Direction {
		case model.DirectionLong:
			view.Long = append(view.Long, Marker{p.Timestamp, p.Direction, p.Low - offset})
		case model.DirectionShort:
			view.Short = append(view.Short, Marker{p.Timestamp, p.Direction, p.High + offset})
		case model.DirectionNone:
			view.Neutral = append(view.Neutral, Marker{p.Timestamp, p.Direction, (p.High + p.Low) / 2})
		}
	}
	return view
}

func band(lo, hi float64) *[2]float64 {
	if lo == hi {
		return nil
	}
	return &[2]float64{lo, hi}
}

func sortedByTime(points []model.StockDataPoint) []model.StockDataPoint {
	sorted := make([]model.StockDataPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	return sorted
}
