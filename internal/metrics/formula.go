package metrics

import (
	"math"
)

// Formula codes as stored in metric.id_formula.
const (
	FormulaRatio   int64 = 1
	FormulaSum     int64 = 2
	FormulaMean    int64 = 3
	FormulaProduct int64 = 4
)

// Reducer folds an ordered list of component values into one value. ok is
// false when the result is undefined.
type Reducer func(values []float64) (result float64, ok bool)

var formulas = map[int64]Reducer{
	FormulaRatio:   ratio,
	FormulaSum:     sum,
	FormulaMean:    mean,
	FormulaProduct: product,
}

// LookupFormula returns the reducer registered for code.
func LookupFormula(code int64) (Reducer, bool) {
	f, ok := formulas[code]
	return f, ok
}

// ratio divides the first value by the second.
func ratio(values []float64) (float64, bool) {
	if len(values) < 2 || values[1] == 0 {
		return 0, false
	}
	return values[0] / values[1], true
}

func sum(values []float64) (float64, bool) {
	var total float64
	for _, v := range values {
		total += v
	}
	return total, true
}

// mean of no values is 0.
func mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, true
	}
	total, _ := sum(values)
	return total / float64(len(values)), true
}

// product of no values is 0, not the multiplicative identity.
func product(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, true
	}
	total := 1.0
	for _, v := range values {
		total *= v
	}
	return total, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
