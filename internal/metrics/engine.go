// Package metrics computes per-athlete metric values, including metrics
// derived from other metrics through a formula.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyperengineering/pitchside/internal/types"
)

// Source supplies the raw metric rows assigned to an athlete.
type Source interface {
	AthleteMetricRows(ctx context.Context, athleteID int64) ([]types.AthleteMetricRow, error)
}

// Engine computes athlete metrics from a Source.
type Engine struct {
	source Source
	tracer trace.Tracer
}

// NewEngine creates an Engine reading from source.
func NewEngine(source Source) *Engine {
	return &Engine{
		source: source,
		tracer: otel.Tracer("github.com/hyperengineering/pitchside/internal/metrics"),
	}
}

// Compute returns every metric assigned to the athlete with its current
// value. A derived metric whose value cannot be determined is returned with
// a nil value; only a failure to read the rows fails the call.
func (e *Engine) Compute(ctx context.Context, athleteID int64) ([]types.MetricWithValue, error) {
	ctx, span := e.tracer.Start(ctx, "metrics.Compute",
		trace.WithAttributes(attribute.Int64("athlete.id", athleteID)))
	defer span.End()

	rows, err := e.source.AthleteMetricRows(ctx, athleteID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load athlete metrics")
		return nil, fmt.Errorf("load athlete metrics: %w", err)
	}

	out := Evaluate(rows)
	span.SetAttributes(
		attribute.Int("metrics.rows", len(rows)),
		attribute.Int("metrics.count", len(out)),
	)
	return out, nil
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	resolved
)

type node struct {
	metric types.Metric
	rows   int
	sum    float64
	value  *float64
	state  visitState
}

type evaluator struct {
	nodes map[int64]*node
}

// Evaluate builds one result per distinct metric in rows. Leaf metrics take
// the sum of their rows, null values counting as 0. Aggregated metrics are
// resolved in dependency order among the same rows; cycles, unresolvable
// components and undefined formula results yield a nil value. Results are
// ordered by metric id.
func Evaluate(rows []types.AthleteMetricRow) []types.MetricWithValue {
	ev := &evaluator{nodes: make(map[int64]*node, len(rows))}
	for _, row := range rows {
		n, ok := ev.nodes[row.Metric.ID]
		if !ok {
			n = &node{metric: row.Metric}
			ev.nodes[row.Metric.ID] = n
		}
		n.rows++
		if row.Value != nil {
			n.sum += *row.Value
		}
	}

	ids := make([]int64, 0, len(ev.nodes))
	for id := range ev.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]types.MetricWithValue, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.MetricWithValue{
			Metric: ev.nodes[id].metric,
			Value:  ev.resolve(id),
		})
	}
	return out
}

func (ev *evaluator) resolve(id int64) *float64 {
	n := ev.nodes[id]
	switch n.state {
	case resolved:
		return n.value
	case visiting:
		// Cycle back to a metric still being resolved.
		return nil
	}

	n.state = visiting
	if n.metric.Aggregated {
		v, reason := ev.aggregate(n)
		if reason != "" {
			slog.Debug("aggregated metric undefined",
				"component", "metrics",
				"metric_id", n.metric.ID,
				"reason", reason,
			)
		}
		n.value = v
	} else if n.rows > 0 {
		v := n.sum
		n.value = &v
	}
	n.state = resolved
	return n.value
}

// aggregate applies the metric's formula to its components. A non-empty
// reason explains a nil result.
func (ev *evaluator) aggregate(n *node) (*float64, string) {
	if n.metric.IDFormula == nil {
		return nil, "no formula"
	}
	reduce, ok := LookupFormula(*n.metric.IDFormula)
	if !ok {
		return nil, fmt.Sprintf("unknown formula %d", *n.metric.IDFormula)
	}
	if n.metric.IDsMetrics == nil {
		return nil, "no components"
	}
	componentIDs, err := ParseComponents(*n.metric.IDsMetrics)
	if err != nil {
		return nil, err.Error()
	}

	values := make([]float64, 0, len(componentIDs))
	for _, cid := range componentIDs {
		if _, ok := ev.nodes[cid]; !ok {
			return nil, fmt.Sprintf("component %d not assigned", cid)
		}
		v := ev.resolve(cid)
		if v == nil {
			return nil, fmt.Sprintf("component %d has no value", cid)
		}
		values = append(values, *v)
	}

	result, ok := safeReduce(reduce, values)
	if !ok || !finite(result) {
		return nil, "formula result undefined"
	}
	rounded := Round2(result)
	return &rounded, ""
}

// safeReduce contains a panicking reducer to the one metric.
func safeReduce(reduce Reducer, values []float64) (result float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			result, ok = 0, false
		}
	}()
	return reduce(values)
}

// ParseComponents splits a comma separated list of metric ids, preserving
// order and duplicates.
func ParseComponents(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed component id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
