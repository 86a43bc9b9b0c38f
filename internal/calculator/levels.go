package calculator

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var errTrailingData = errors.New("trailing data after object")

var (
	bareKeyRe      = regexp.MustCompile(`(\w+):`)
	leadingFloatRe = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)
)

// ParseLevels turns a loosely formatted Support/Resistance field into a sequence
// of finite numbers. Stages run in order and the first one that accepts the input wins:
//
//  1. a native collection: every element is coerced, failures discarded
//  2. a JSON-ish string: single quotes become double quotes, bare keys are quoted,
//     then the text is parsed strictly; lists yield their elements and objects
//     their values in document order
//  3. a bracketed list: split on commas and parse each piece's leading float
//
// ok is false only when a non-empty input was rejected by every stage.
func ParseLevels(v any) (levels []float64, ok bool) {
	if isAbsent(v) {
		return []float64{}, true
	}
	if s, isStr := v.(string); isStr {
		corrected := repairJSON(s)
		if out, accepted := parseStructured(corrected); accepted {
			return out, true
		}
		if out, accepted := parseBracketList(corrected); accepted {
			return out, true
		}
		return []float64{}, false
	}
	if out, accepted := parseCollection(v); accepted {
		return out, true
	}
	return []float64{}, false
}

func isAbsent(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}

func repairJSON(s string) string {
	s = strings.ReplaceAll(s, "'", `"`)
	return bareKeyRe.ReplaceAllString(s, `"$1":`)
}

// parseCollection handles values that are already structured.
func parseCollection(v any) ([]float64, bool) {
	out := []float64{}
	switch x := v.(type) {
	case []float64:
		for _, f := range x {
			if isFinite(f) {
				out = append(out, f)
			}
		}
	case []string:
		for _, s := range x {
			if f, ok := coerceNumber(s); ok {
				out = append(out, f)
			}
		}
	case []any:
		for _, e := range x {
			if f, ok := coerceNumber(e); ok {
				out = append(out, f)
			}
		}
	case map[string]any:
		// Go maps carry no order, so keys are visited sorted.
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if f, ok := coerceNumber(x[k]); ok {
				out = append(out, f)
			}
		}
	default:
		return nil, false
	}
	return out, true
}

// parseStructured strictly decodes s as a JSON list or object.
func parseStructured(s string) ([]float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, false
	}
	var elems []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal([]byte(trimmed), &elems); err != nil {
			return nil, false
		}
	case '{':
		vals, err := objectValues([]byte(trimmed))
		if err != nil {
			return nil, false
		}
		elems = vals
	default:
		return nil, false
	}

	out := []float64{}
	for _, raw := range elems {
		var e any
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		if f, ok := coerceNumber(e); ok {
			out = append(out, f)
		}
	}
	return out, true
}

// objectValues returns the member values of a single JSON object in document order.
func objectValues(data []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var vals []json.RawMessage
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		vals = append(vals, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return vals, nil
}

// parseBracketList is the last resort for "[1, 2, x]" shaped text.
func parseBracketList(s string) ([]float64, bool) {
	if len(s) < 2 || !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, false
	}
	out := []float64{}
	for _, piece := range strings.Split(s[1:len(s)-1], ",") {
		if f, ok := leadingFloat(strings.TrimSpace(piece)); ok {
			out = append(out, f)
		}
	}
	return out, true
}

// leadingFloat parses the longest numeric prefix of s.
func leadingFloat(s string) (float64, bool) {
	m := leadingFloatRe.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(m, "Infinity", "Inf", 1), 64)
	if err != nil || !isFinite(f) {
		return 0, false
	}
	return f, true
}

// coerceNumber converts a scalar to a finite float64.
// Nested collections, booleans, null and blank strings are rejected.
func coerceNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, isFinite(x)
	case float32:
		f := float64(x)
		return f, isFinite(f)
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil && isFinite(f)
	case string:
		t := strings.TrimSpace(x)
		if t == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil && isFinite(f)
	default:
		return 0, false
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
