package model

import (
	"encoding/json"
	"time"
)

// Direction is the categorical annotation attached to a bar.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNone    Direction = "None"
	DirectionUnknown Direction = ""
)

// ParseDirection accepts only the exact spellings LONG, SHORT and None.
// Everything else, including "long", is unknown.
func ParseDirection(s string) Direction {
	switch Direction(s) {
	case DirectionLong, DirectionShort, DirectionNone:
		return Direction(s)
	default:
		return DirectionUnknown
	}
}

// MarshalJSON encodes an unknown direction as null.
func (d Direction) MarshalJSON() ([]byte, error) {
	if d == DirectionUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

// UnmarshalJSON decodes null or any unrecognized value as unknown.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*d = DirectionUnknown
		return nil
	}
	*d = ParseDirection(*s)
	return nil
}

// StockDataPoint is one validated CSV row with its chart-ready derived fields.
// JSON names follow the dashboard contract.
type StockDataPoint struct {
	Date      string    `json:"Date"`
	Timestamp int64     `json:"Timestamp"` // epoch milliseconds
	Open      float64   `json:"Open"`
	High      float64   `json:"High"`
	Low       float64   `json:"Low"`
	Close     float64   `json:"Close"`
	Volume    float64   `json:"Volume"`
	Direction Direction `json:"direction"`

	Support       []float64 `json:"Support"`
	SupportMin    float64   `json:"supportMin"`
	SupportMax    float64   `json:"supportMax"`
	Resistance    []float64 `json:"Resistance"`
	ResistanceMin float64   `json:"resistanceMin"`
	ResistanceMax float64   `json:"resistanceMax"`

	OHLC       [4]float64 `json:"ohlc"`       // open, high, low, close
	CandleBody [2]float64 `json:"candleBody"` // min(open,close), max(open,close)
	CandleWick [2]float64 `json:"candleWick"` // low, high
}

// Time returns the bar instant in UTC.
func (p StockDataPoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

// DropReason names why a CSV record did not become a StockDataPoint.
type DropReason string

const (
	DropEmptyTimestamp  DropReason = "empty_timestamp"
	DropBadTimestamp    DropReason = "bad_timestamp"
	DropNonFinite       DropReason = "non_finite"
	DropInvalidNumber   DropReason = "invalid_number"
	DropMalformedRecord DropReason = "malformed_record"
)

// LoadStats summarizes one ingestion run.
type LoadStats struct {
	RowsRead int                `json:"rowsRead"`
	RowsKept int                `json:"rowsKept"`
	Dropped  map[DropReason]int `json:"dropped"`
	// LevelWarnings counts Support/Resistance fields that could not be parsed.
	LevelWarnings int `json:"levelWarnings"`
}

// DroppedTotal returns the number of records excluded for any reason.
func (s LoadStats) DroppedTotal() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// Dataset pairs the structured points with the verbatim CSV text they came from.
// A Dataset is built once per load and never mutated after publication.
type Dataset struct {
	Symbol   string           `json:"symbol"`
	Source   string           `json:"source"`
	Points   []StockDataPoint `json:"points"`
	Raw      string           `json:"-"`
	LoadedAt time.Time        `json:"loadedAt"`
	Stats    LoadStats        `json:"stats"`
	Error    string           `json:"error,omitempty"` // set when the source could not be read
}

// EmptyDataset is what a failed load publishes.
func EmptyDataset(symbol, source string) *Dataset {
	return &Dataset{
		Symbol:   symbol,
		Source:   source,
		Points:   []StockDataPoint{},
		LoadedAt: time.Now(),
		Stats:    LoadStats{Dropped: map[DropReason]int{}},
	}
}

// Empty reports whether the dataset carries no usable points.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Points) == 0
}

// HasRaw reports whether raw CSV text is available for the analyst.
func (d *Dataset) HasRaw() bool {
	return d != nil && d.Raw != ""
}
