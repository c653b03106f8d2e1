package validation

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/hyperengineering/pitchside/internal/store"
)

// MaxTextLength bounds free-text columns.
const MaxTextLength = 4000

// Record checks a decoded JSON object against the table's writable columns
// and returns the values converted for storage. When partial is true
// (updates), required columns may be omitted but not nulled.
func Record(t store.Table, body map[string]any, partial bool) (map[string]any, []ValidationError) {
	var c Collector
	out := make(map[string]any, len(body))

	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		col, ok := t.Column(name)
		if !ok {
			c.Add(&ValidationError{Field: name, Message: "is not a writable field"})
			continue
		}
		v, err := convert(col, body[name])
		if err != nil {
			c.Add(err)
			continue
		}
		out[name] = v
	}

	if !partial {
		for _, col := range t.Columns {
			if _, present := body[col.Name]; col.Required && !present {
				c.Add(&ValidationError{Field: col.Name, Message: "is required"})
			}
		}
	}

	if c.HasErrors() {
		return nil, c.Errors()
	}
	return out, nil
}

func convert(col store.Column, raw any) (any, *ValidationError) {
	if raw == nil {
		if col.Required {
			return nil, &ValidationError{Field: col.Name, Message: "must not be null"}
		}
		return nil, nil
	}

	switch col.Kind {
	case store.KindInt:
		n, ok := asInt(raw)
		if !ok {
			return nil, typeError(col)
		}
		return n, nil
	case store.KindFloat:
		f, ok := asFloat(raw)
		if !ok {
			return nil, typeError(col)
		}
		return f, nil
	case store.KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, typeError(col)
		}
		return b, nil
	}

	s, ok := raw.(string)
	if !ok {
		return nil, typeError(col)
	}
	var c Collector
	switch col.Kind {
	case store.KindDate:
		c.Add(ValidateDate(col.Name, s))
	case store.KindClock:
		c.Add(ValidateClock(col.Name, s))
	default:
		if col.Required {
			c.Add(ValidateRequired(col.Name, s))
		}
		c.Add(ValidateUTF8(col.Name, s))
		c.Add(ValidateNoNullBytes(col.Name, s))
		c.Add(ValidateMaxLength(col.Name, s, MaxTextLength))
	}
	if c.HasErrors() {
		first := c.Errors()[0]
		return nil, &first
	}
	return s, nil
}

func typeError(col store.Column) *ValidationError {
	return &ValidationError{Field: col.Name, Message: "must be a " + col.Kind.String()}
}

func asInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.Abs(v) > 1<<53 {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
