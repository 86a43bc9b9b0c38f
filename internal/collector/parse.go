package collector

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"TradeVision/internal/calculator"
	"TradeVision/internal/model"
)

// Column names recognized in the header row, matched case-sensitively after trimming.
const (
	ColTimestamp  = "timestamp"
	ColOpen       = "open"
	ColHigh       = "high"
	ColLow        = "low"
	ColClose      = "close"
	ColVolume     = "volume"
	ColDirection  = "direction"
	ColSupport    = "Support"
	ColResistance = "Resistance"
)

// NumericPolicy decides what happens to a price or volume field that is present
// but does not parse as a number.
type NumericPolicy string

const (
	// CoerceToZero replaces the field with 0 and keeps the row.
	CoerceToZero NumericPolicy = "coerce_zero"
	// DropInvalid excludes the row.
	DropInvalid NumericPolicy = "drop_invalid"
)

// ParsePolicy returns the policy named s, defaulting to CoerceToZero.
func ParsePolicy(s string) (NumericPolicy, error) {
	switch NumericPolicy(strings.TrimSpace(s)) {
	case "", CoerceToZero:
		return CoerceToZero, nil
	case DropInvalid:
		return DropInvalid, nil
	default:
		return "", errors.New("unknown numeric policy: " + s)
	}
}

// ParseOptions controls row validation.
type ParseOptions struct {
	Policy   NumericPolicy
	Location *time.Location // zone for timestamps without an offset; UTC when nil
	Logger   *zap.Logger
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
}

// ParseTimestamp parses s with the accepted layouts and returns epoch milliseconds.
func ParseTimestamp(s string, loc *time.Location) (int64, bool) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

type numState int

const (
	numOK numState = iota
	numMissing
	numInvalid
	numNonFinite
)

func parseNumber(s string) (float64, numState) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, numMissing
	}
	f, err := strconv.ParseFloat(t, 64)
	switch {
	case err == nil && (math.IsNaN(f) || math.IsInf(f, 0)):
		return 0, numNonFinite
	case err == nil:
		return f, numOK
	case errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0):
		return 0, numNonFinite
	case errors.Is(err, strconv.ErrRange):
		return f, numOK
	default:
		return 0, numInvalid
	}
}

type header map[string]int

func newHeader(rec []string) header {
	h := make(header, len(rec))
	for i, name := range rec {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	return h
}

func (h header) field(rec []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// Parse converts a CSV document into validated points. It never fails: rows that
// cannot be materialized are dropped and counted in the returned stats.
func Parse(raw string, opts ParseOptions) ([]model.StockDataPoint, model.LoadStats) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	stats := model.LoadStats{Dropped: map[model.DropReason]int{}}
	points := []model.StockDataPoint{}

	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	first, err := r.Read()
	if err != nil {
		if err != io.EOF {
			logger.Warn("unreadable csv header", zap.Error(err))
		}
		return points, stats
	}
	h := newHeader(first)

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				logger.Warn("csv read aborted", zap.Error(err))
				break
			}
			stats.RowsRead++
			stats.Dropped[model.DropMalformedRecord]++
			logger.Debug("malformed csv record", zap.Int("line", perr.Line), zap.Error(err))
			continue
		}
		stats.RowsRead++

		line, _ := r.FieldPos(0)
		bar, reason, ok := parseRow(h, rec, opts)
		if !ok {
			stats.Dropped[reason]++
			continue
		}

		var supOK, resOK bool
		bar.Support, supOK = calculator.ParseLevels(h.field(rec, ColSupport))
		bar.Resistance, resOK = calculator.ParseLevels(h.field(rec, ColResistance))
		if !supOK {
			stats.LevelWarnings++
			logger.Warn("unparseable level field",
				zap.String("column", ColSupport), zap.Int("line", line),
				zap.String("value", h.field(rec, ColSupport)))
		}
		if !resOK {
			stats.LevelWarnings++
			logger.Warn("unparseable level field",
				zap.String("column", ColResistance), zap.Int("line", line),
				zap.String("value", h.field(rec, ColResistance)))
		}

		points = append(points, calculator.Derive(bar))
	}

	stats.RowsKept = len(points)
	return points, stats
}

func parseRow(h header, rec []string, opts ParseOptions) (calculator.Bar, model.DropReason, bool) {
	date := h.field(rec, ColTimestamp)
	if date == "" {
		return calculator.Bar{}, model.DropEmptyTimestamp, false
	}
	ts, ok := ParseTimestamp(date, opts.Location)
	if !ok {
		return calculator.Bar{}, model.DropBadTimestamp, false
	}

	var vals [5]float64
	for i, col := range [...]string{ColOpen, ColHigh, ColLow, ColClose, ColVolume} {
		v, state := parseNumber(h.field(rec, col))
		switch state {
		case numNonFinite:
			return calculator.Bar{}, model.DropNonFinite, false
		case numInvalid:
			if opts.Policy == DropInvalid {
				return calculator.Bar{}, model.DropInvalidNumber, false
			}
			v = 0
		}
		vals[i] = v
	}

	return calculator.Bar{
		Date:      date,
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		Direction: model.ParseDirection(h.field(rec, ColDirection)),
	}, "", true
}
