package model

import (
	"strconv"
	"strings"
	"time"
)

// Answer is the analyst Q&A output.
type Answer struct {
	Answer string `json:"answer"`
}

// TrendForecast is the trend prediction output.
type TrendForecast struct {
	TrendPrediction string `json:"trendPrediction"`
	ConfidenceLevel string `json:"confidenceLevel"` // human readable, e.g. "72%"
}

// ConfidenceValue parses ConfidenceLevel into a percentage in [0, 100].
// Unparseable levels yield 0.
func (f TrendForecast) ConfidenceValue() float64 {
	s := strings.TrimSpace(strings.Replace(f.ConfidenceLevel, "%", "", 1))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != v {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Summary holds deterministic statistics over a dataset.
type Summary struct {
	Symbol       string    `json:"symbol"`
	Points       int       `json:"points"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	LastClose    float64   `json:"lastClose"`
	HighestHigh  float64   `json:"highestHigh"`
	HighestDate  string    `json:"highestDate"`
	LowestLow    float64   `json:"lowestLow"`
	LowestDate   string    `json:"lowestDate"`
	AvgVolume    float64   `json:"avgVolume"`
	MaxMove      float64   `json:"maxMove"` // largest |close-open| in one bar
	MaxMoveDate  string    `json:"maxMoveDate"`
	SMA20        float64   `json:"sma20"`
	RSI14        float64   `json:"rsi14"`
	RecentHigh   float64   `json:"recentHigh"` // last 52 bars
	RecentLow    float64   `json:"recentLow"`
	Position     float64   `json:"position"` // last close within the recent range, 0.0 ~ 1.0
	LongCount    int       `json:"longCount"`
	ShortCount   int       `json:"shortCount"`
	NoneCount    int       `json:"noneCount"`
	UnknownCount int       `json:"unknownCount"`
}
