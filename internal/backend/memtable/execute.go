package memtable

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/datawhisker/boxstat/internal/backend"
	"github.com/datawhisker/boxstat/internal/plan"
)

// group is one partition of row indices sharing a grouping-key tuple.
type group struct {
	key  []string
	rows []int
}

// Execute runs a plan against the table. Both summary shapes are supported:
// the aggregate shape collapses each group directly, the windowed shape
// attaches partition-level values row-wise and then keeps one distinct row
// per group. Results are identical; the windowed path exists so the
// restricted-dialect rewrite can be exercised against exact local data.
func (t *Table) Execute(_ context.Context, p *plan.Plan) (*backend.Result, error) {
	if p.Source != t.name {
		return nil, &backend.Error{
			Code:    backend.ErrCodeBadPlan,
			Message: fmt.Sprintf("unknown source %q, backend holds %q", p.Source, t.name),
			Engine:  EngineName,
		}
	}
	for _, col := range p.GroupBy {
		if _, ok := t.types[col]; !ok {
			return nil, &backend.Error{
				Code:    backend.ErrCodeBadPlan,
				Message: fmt.Sprintf("unknown grouping column %q", col),
				Engine:  EngineName,
			}
		}
	}

	groups := t.partition(p.GroupBy)

	var summaries []map[string]float64
	var keys [][]string
	var err error
	if p.Summary.Windowed {
		keys, summaries, err = t.windowedSummaries(p, groups)
	} else {
		keys, summaries, err = t.aggregateSummaries(p, groups)
	}
	if err != nil {
		return nil, err
	}

	for _, row := range summaries {
		if err := backend.EvalDerived(p.Derived, row); err != nil {
			return nil, &backend.Error{
				Code:    backend.ErrCodeBadPlan,
				Message: err.Error(),
				Engine:  EngineName,
			}
		}
	}

	cols := p.OutputColumns()
	result := &backend.Result{Columns: cols, Rows: make([][]any, 0, len(summaries))}
	for i, row := range summaries {
		out := make([]any, 0, len(cols))
		for _, key := range keys[i] {
			out = append(out, key)
		}
		for _, col := range cols[len(p.GroupBy):] {
			out = append(out, row[col])
		}
		result.Rows = append(result.Rows, out)
	}
	return result, nil
}

// partition splits row indices by grouping-key tuple, preserving first-seen
// group order. An empty grouping yields a single group over all rows; a table
// with no rows yields no groups at all, so the summary comes back empty.
func (t *Table) partition(groupBy []string) []group {
	if t.n == 0 {
		return nil
	}
	if len(groupBy) == 0 {
		all := make([]int, t.n)
		for i := range all {
			all[i] = i
		}
		return []group{{rows: all}}
	}

	index := make(map[string]int)
	var groups []group
	for i := 0; i < t.n; i++ {
		key := make([]string, len(groupBy))
		for j, col := range groupBy {
			key[j] = t.cell(col, i)
		}
		compound := strings.Join(key, "\x1f")
		gi, ok := index[compound]
		if !ok {
			gi = len(groups)
			index[compound] = gi
			groups = append(groups, group{key: key})
		}
		groups[gi].rows = append(groups[gi].rows, i)
	}
	return groups
}

// aggregateSummaries collapses each group with aggregate calls.
func (t *Table) aggregateSummaries(p *plan.Plan, groups []group) ([][]string, []map[string]float64, error) {
	keys := make([][]string, 0, len(groups))
	summaries := make([]map[string]float64, 0, len(groups))
	for _, g := range groups {
		row := make(map[string]float64, len(p.Summary.Fields))
		for _, f := range p.Summary.Fields {
			agg, ok := f.Expr.(plan.Agg)
			if !ok {
				return nil, nil, t.badExpr(f)
			}
			v, err := t.applyFn(agg.Fn, agg.Arg, agg.P, g.rows)
			if err != nil {
				return nil, nil, err
			}
			row[f.Name] = v
		}
		keys = append(keys, g.key)
		summaries = append(summaries, row)
	}
	return keys, summaries, nil
}

// windowedSummaries is the two-phase rewrite executed natively. Phase one
// attaches each partition's summary values to every row of the partition;
// phase two keeps one distinct (key, values) row per partition. The
// duplication is deliberate: it mirrors what a window function does on a SQL
// engine, rather than collapsing to a single aggregate call.
func (t *Table) windowedSummaries(p *plan.Plan, groups []group) ([][]string, []map[string]float64, error) {
	type rowOut struct {
		key []string
		row map[string]float64
	}

	// Phase 1: row-level window values, one output row per source row.
	perRow := make([]rowOut, 0, t.n)
	for _, g := range groups {
		window := make(map[string]float64, len(p.Summary.Fields))
		for _, f := range p.Summary.Fields {
			w, ok := f.Expr.(plan.Window)
			if !ok {
				return nil, nil, t.badExpr(f)
			}
			v, err := t.applyFn(w.Fn, w.Arg, w.P, g.rows)
			if err != nil {
				return nil, nil, err
			}
			window[f.Name] = v
		}
		for range g.rows {
			perRow = append(perRow, rowOut{key: g.key, row: window})
		}
	}

	// Phase 2: distinct over (key, summary values).
	seen := make(map[string]bool)
	keys := make([][]string, 0, len(groups))
	summaries := make([]map[string]float64, 0, len(groups))
	for _, r := range perRow {
		parts := make([]string, 0, len(r.key)+len(p.Summary.Fields))
		parts = append(parts, r.key...)
		for _, f := range p.Summary.Fields {
			parts = append(parts, fmt.Sprintf("%x", math.Float64bits(r.row[f.Name])))
		}
		compound := strings.Join(parts, "\x1f")
		if seen[compound] {
			continue
		}
		seen[compound] = true
		keys = append(keys, r.key)
		summaries = append(summaries, r.row)
	}
	return keys, summaries, nil
}

// applyFn evaluates one summary function over the rows of a partition.
func (t *Table) applyFn(fn plan.AggFn, arg plan.Expr, p float64, rows []int) (float64, error) {
	if fn == plan.AggCount {
		return float64(len(rows)), nil
	}

	col, ok := arg.(plan.Col)
	if !ok {
		return 0, &backend.Error{
			Code:    backend.ErrCodeBadPlan,
			Message: fmt.Sprintf("summary argument must be a column reference, got %T", arg),
			Engine:  EngineName,
		}
	}
	values, ok := t.numbers[col.Name]
	if !ok {
		if _, isLabel := t.labels[col.Name]; isLabel {
			return 0, &backend.Error{
				Code:    backend.ErrCodeTypeMismatch,
				Message: fmt.Sprintf("measure column %q is not numeric", col.Name),
				Engine:  EngineName,
			}
		}
		return 0, &backend.Error{
			Code:    backend.ErrCodeBadPlan,
			Message: fmt.Sprintf("unknown measure column %q", col.Name),
			Engine:  EngineName,
		}
	}

	switch fn {
	case plan.AggMin:
		m := math.Inf(1)
		for _, i := range rows {
			if values[i] < m {
				m = values[i]
			}
		}
		return m, nil
	case plan.AggMax:
		m := math.Inf(-1)
		for _, i := range rows {
			if values[i] > m {
				m = values[i]
			}
		}
		return m, nil
	case plan.AggQuantile:
		sorted := make([]float64, 0, len(rows))
		for _, i := range rows {
			sorted = append(sorted, values[i])
		}
		sort.Float64s(sorted)
		return quantileLinear(sorted, p), nil
	case plan.AggApproxQuantile:
		return 0, &backend.Error{
			Code:    backend.ErrCodeBadPlan,
			Message: "memtable computes exact quantiles only",
			Engine:  EngineName,
		}
	default:
		return 0, &backend.Error{
			Code:    backend.ErrCodeBadPlan,
			Message: fmt.Sprintf("unsupported summary function %q", fn),
			Engine:  EngineName,
		}
	}
}

func (t *Table) badExpr(f plan.Field) error {
	return &backend.Error{
		Code:    backend.ErrCodeBadPlan,
		Message: fmt.Sprintf("summary field %q does not match plan shape", f.Name),
		Engine:  EngineName,
	}
}
