package cluster

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/datawhisker/boxstat/internal/backend"
	"github.com/datawhisker/boxstat/internal/plan"
)

// partial is a shard's per-group state after the first pass.
type partial struct {
	count    int
	min, max float64
}

// groupState is the merged coordinator state for one group.
type groupState struct {
	key      []string
	count    int
	min, max float64
	hist     []int
}

// Execute runs a plan as one logical job across all shards. Two coordination
// passes happen per job: pass one merges per-group {count, min, max} partials
// from every shard, pass two has every shard bin its values into a shared
// fixed-width histogram per group. Quantiles are then read off the merged
// histogram. Each job carries a token that failure messages reference.
func (e *Engine) Execute(_ context.Context, p *plan.Plan) (*backend.Result, error) {
	job := uuid.Must(uuid.NewV7()).String()

	if p.Source != e.table {
		return nil, e.fail(job, backend.ErrCodeBadPlan,
			fmt.Sprintf("unknown source %q, cluster holds %q", p.Source, e.table))
	}
	if p.Summary.Windowed {
		return nil, e.fail(job, backend.ErrCodeBadPlan,
			"cluster has no row-level window form; use the approximate aggregate strategy")
	}

	measure, err := e.measureColumn(job, p)
	if err != nil {
		return nil, err
	}

	// Pass 1: merge shard partials.
	groups, err := e.mergePartials(job, p.GroupBy, measure)
	if err != nil {
		return nil, err
	}

	// Pass 2: merged histogram per group over the group's [min, max].
	for _, g := range groups {
		g.hist = make([]int, e.bins)
	}
	for _, s := range e.shards {
		s.binValues(p.GroupBy, measure, groups, e.bins)
	}

	// Read the summary fields off the merged state.
	summaries := make([]map[string]float64, 0, len(groups))
	for _, g := range groups {
		row := make(map[string]float64, len(p.Summary.Fields))
		for _, f := range p.Summary.Fields {
			agg, ok := f.Expr.(plan.Agg)
			if !ok {
				return nil, e.fail(job, backend.ErrCodeBadPlan,
					fmt.Sprintf("summary field %q is not an aggregate call", f.Name))
			}
			switch agg.Fn {
			case plan.AggCount:
				row[f.Name] = float64(g.count)
			case plan.AggMin:
				row[f.Name] = g.min
			case plan.AggMax:
				row[f.Name] = g.max
			case plan.AggApproxQuantile:
				row[f.Name] = g.quantile(agg.P, e.bins)
			case plan.AggQuantile:
				return nil, e.fail(job, backend.ErrCodeBadPlan,
					"exact quantiles are not available on the cluster dialect")
			default:
				return nil, e.fail(job, backend.ErrCodeBadPlan,
					fmt.Sprintf("unsupported summary function %q", agg.Fn))
			}
		}
		if err := backend.EvalDerived(p.Derived, row); err != nil {
			return nil, e.fail(job, backend.ErrCodeBadPlan, err.Error())
		}
		summaries = append(summaries, row)
	}

	cols := p.OutputColumns()
	result := &backend.Result{Columns: cols, Rows: make([][]any, 0, len(groups))}
	for i, g := range groups {
		out := make([]any, 0, len(cols))
		for _, key := range g.key {
			out = append(out, key)
		}
		for _, col := range cols[len(p.GroupBy):] {
			out = append(out, summaries[i][col])
		}
		result.Rows = append(result.Rows, out)
	}
	return result, nil
}

// measureColumn resolves the single measure column the summary aggregates.
func (e *Engine) measureColumn(job string, p *plan.Plan) (string, error) {
	for _, f := range p.Summary.Fields {
		agg, ok := f.Expr.(plan.Agg)
		if !ok {
			continue
		}
		col, ok := agg.Arg.(plan.Col)
		if !ok {
			return "", e.fail(job, backend.ErrCodeBadPlan,
				fmt.Sprintf("summary argument must be a column reference, got %T", agg.Arg))
		}
		switch e.schema[col.Name] {
		case backend.Number:
			return col.Name, nil
		default:
			if _, known := e.schema[col.Name]; !known {
				return "", e.fail(job, backend.ErrCodeBadPlan,
					fmt.Sprintf("unknown measure column %q", col.Name))
			}
			return "", e.fail(job, backend.ErrCodeTypeMismatch,
				fmt.Sprintf("measure column %q is not numeric", col.Name))
		}
	}
	return "", e.fail(job, backend.ErrCodeBadPlan, "plan has no aggregate summary fields")
}

// mergePartials runs pass one: every shard reports per-group partials, the
// coordinator merges them preserving first-seen group order across shards.
func (e *Engine) mergePartials(job string, groupBy []string, measure string) ([]*groupState, error) {
	index := make(map[string]*groupState)
	var order []*groupState

	for _, s := range e.shards {
		shardPartials, keys, err := s.partials(groupBy, measure)
		if err != nil {
			return nil, e.fail(job, backend.ErrCodeBadPlan, err.Error())
		}
		for compound, part := range shardPartials {
			g, ok := index[compound]
			if !ok {
				g = &groupState{
					key: keys[compound],
					min: math.Inf(1),
					max: math.Inf(-1),
				}
				index[compound] = g
				order = append(order, g)
			}
			g.count += part.count
			if part.min < g.min {
				g.min = part.min
			}
			if part.max > g.max {
				g.max = part.max
			}
		}
	}
	return order, nil
}

// partials computes one shard's per-group {count, min, max}. A shard that
// received no rows during partitioning contributes nothing.
func (s *shard) partials(groupBy []string, measure string) (map[string]partial, map[string][]string, error) {
	if s.n == 0 {
		return nil, nil, nil
	}
	values, ok := s.numbers[measure]
	if !ok {
		return nil, nil, fmt.Errorf("shard is missing measure column %q", measure)
	}

	out := make(map[string]partial)
	keys := make(map[string][]string)
	for i := 0; i < s.n; i++ {
		key := s.groupKey(groupBy, i)
		compound := strings.Join(key, "\x1f")
		part, seen := out[compound]
		if !seen {
			part = partial{min: math.Inf(1), max: math.Inf(-1)}
			keys[compound] = key
		}
		part.count++
		if values[i] < part.min {
			part.min = values[i]
		}
		if values[i] > part.max {
			part.max = values[i]
		}
		out[compound] = part
	}
	return out, keys, nil
}

// binValues runs pass two on one shard: fill the merged per-group histograms
// using the coordinator's group ranges.
func (s *shard) binValues(groupBy []string, measure string, groups []*groupState, bins int) {
	index := make(map[string]*groupState, len(groups))
	for _, g := range groups {
		index[strings.Join(g.key, "\x1f")] = g
	}
	values := s.numbers[measure]
	for i := 0; i < s.n; i++ {
		g := index[strings.Join(s.groupKey(groupBy, i), "\x1f")]
		if g == nil {
			continue
		}
		g.hist[binIndex(values[i], g.min, g.max, bins)]++
	}
}

func (s *shard) groupKey(groupBy []string, i int) []string {
	key := make([]string, len(groupBy))
	for j, col := range groupBy {
		if vs, ok := s.labels[col]; ok {
			key[j] = vs[i]
		} else if vs, ok := s.numbers[col]; ok {
			key[j] = strconv.FormatFloat(vs[i], 'g', -1, 64)
		}
	}
	return key
}

func binIndex(v, min, max float64, bins int) int {
	if max <= min {
		return 0
	}
	idx := int(float64(bins) * (v - min) / (max - min))
	if idx >= bins {
		idx = bins - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// quantile estimates the p-quantile from the merged histogram: find the bin
// where the cumulative count crosses the target rank and interpolate within
// it. Degenerate groups (no spread) report the shared value exactly.
func (g *groupState) quantile(p float64, bins int) float64 {
	if g.count == 0 {
		return math.NaN()
	}
	if g.max <= g.min {
		return g.min
	}

	target := p * float64(g.count)
	if target < 1 {
		target = 1
	}

	binWidth := (g.max - g.min) / float64(bins)
	cum := 0
	for i, c := range g.hist {
		if c == 0 {
			continue
		}
		if float64(cum+c) >= target {
			frac := (target - float64(cum)) / float64(c)
			return g.min + (float64(i)+frac)*binWidth
		}
		cum += c
	}
	return g.max
}

func (e *Engine) fail(job string, code backend.ErrorCode, msg string) *backend.Error {
	return &backend.Error{
		Code:    code,
		Message: fmt.Sprintf("job %s: %s", job, msg),
		Engine:  EngineName,
	}
}
