package metrics

import (
	"math"
	"testing"
)

func TestFormulas(t *testing.T) {
	tests := []struct {
		name   string
		code   int64
		values []float64
		want   float64
		wantOK bool
	}{
		{"ratio", FormulaRatio, []float64{10, 2}, 5, true},
		{"ratio zero denominator", FormulaRatio, []float64{5, 0}, 0, false},
		{"ratio single value", FormulaRatio, []float64{5}, 0, false},
		{"ratio uses first two", FormulaRatio, []float64{9, 3, 100}, 3, true},
		{"ratio order matters", FormulaRatio, []float64{2, 10}, 0.2, true},
		{"sum single", FormulaSum, []float64{4}, 4, true},
		{"sum many", FormulaSum, []float64{1, 2, 3.5}, 6.5, true},
		{"sum empty", FormulaSum, nil, 0, true},
		{"mean", FormulaMean, []float64{1, 2, 3, 4}, 2.5, true},
		{"mean empty", FormulaMean, []float64{}, 0, true},
		{"product", FormulaProduct, []float64{2, 3, 4}, 24, true},
		{"product empty", FormulaProduct, []float64{}, 0, true},
		{"product with zero", FormulaProduct, []float64{2, 0}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := LookupFormula(tt.code)
			if !ok {
				t.Fatalf("formula %d not registered", tt.code)
			}
			got, gotOK := f(tt.values)
			if gotOK != tt.wantOK {
				t.Fatalf("ok = %v, want %v", gotOK, tt.wantOK)
			}
			if gotOK && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("result = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLookupFormula_Unknown(t *testing.T) {
	for _, code := range []int64{0, 5, -1} {
		if _, ok := LookupFormula(code); ok {
			t.Errorf("LookupFormula(%d) should not be registered", code)
		}
	}
}

func TestFinite(t *testing.T) {
	if !finite(1.5) {
		t.Error("1.5 should be finite")
	}
	if finite(math.Inf(1)) || finite(math.NaN()) {
		t.Error("Inf and NaN should not be finite")
	}
}
