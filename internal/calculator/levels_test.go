package calculator

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLevels(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   []float64
		wantOK bool
	}{
		{"nil", nil, []float64{}, true},
		{"empty string", "", []float64{}, true},
		{"json list", "[105.2, 104.9]", []float64{105.2, 104.9}, true},
		{"round trip", "[10.5, 11, 9.75]", []float64{10.5, 11, 9.75}, true},
		{"empty list", "[]", []float64{}, true},
		{"malformed object", "{support: 10.5, other: 11}", []float64{10.5, 11}, true},
		{"malformed object non numeric", "{support: 10.5, note: 'x'}", []float64{10.5}, true},
		{"single quotes", "['101.5', '99']", []float64{101.5, 99}, true},
		{"object with bare keys", "{s1: 101, s2: 99.5}", []float64{101, 99.5}, true},
		{"object keeps document order", `{"b": 2, "a": 1}`, []float64{2, 1}, true},
		{"non numeric elements dropped", `[1, "x", null, true, [2], 3]`, []float64{1, 3}, true},
		{"bracket fallback", "[101.5abc, 99, foo]", []float64{101.5, 99}, true},
		{"bracket fallback exponent", "[1e2x, -2.5e-1y]", []float64{100, -0.25}, true},
		{"non finite pieces dropped", "[NaN, Infinity, 4]", []float64{4}, true},
		{"scalar json", "42", []float64{}, false},
		{"garbage", "not a list", []float64{}, false},
		{"unclosed", "[1, 2", []float64{}, false},
		{"native floats", []float64{3, math.NaN(), 1}, []float64{3, 1}, true},
		{"native any", []any{1.5, "2", true, nil}, []float64{1.5, 2}, true},
		{"native strings", []string{"7", "", "x"}, []float64{7}, true},
		{"native map sorted by key", map[string]any{"z": 1.0, "a": 2.0}, []float64{2, 1}, true},
		{"unsupported type", 12.5, []float64{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLevels(tt.in)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseLevels(%#v) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParseLevels_OnlyFinite(t *testing.T) {
	inputs := []any{"[1e400, 2]", "[-Infinity, 3]", []any{math.Inf(1), 5.0}}
	for _, in := range inputs {
		got, _ := ParseLevels(in)
		for _, v := range got {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("ParseLevels(%v) returned non-finite %v", in, v)
			}
		}
	}
}
