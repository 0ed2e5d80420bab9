package backend

import (
	"context"
	"fmt"
	"math"

	"github.com/datawhisker/boxstat/internal/plan"
	"github.com/datawhisker/boxstat/internal/strategy"
)

// Derived field names appended by the fence post-processor, shared with the
// renderer contract.
const (
	FieldIQR    = "iqr"
	FieldMinIQR = "min_iqr"
	FieldMaxIQR = "max_iqr"
	FieldYMax   = "ymax"
	FieldYMin   = "ymin"
)

// Pipeline accumulates plan steps against a handle without executing any of
// them. Step methods return the pipeline for chaining and record the first
// error; Materialize is the only method that reaches the backend.
type Pipeline struct {
	handle  *Handle
	groupBy []string
	measure string
	strat   strategy.Strategy
	summed  bool
	derived []plan.Field
	err     error
}

// From starts a pipeline on a handle. The handle's pre-existing grouping
// columns seed the pipeline grouping.
func From(h *Handle) *Pipeline {
	pl := &Pipeline{handle: h}
	if h == nil {
		pl.err = fmt.Errorf("nil handle")
		return pl
	}
	pl.groupBy = mergeGroups(h.GroupedBy, nil)
	return pl
}

// GroupBy merges the requested columns into the pipeline grouping: union with
// the handle's columns, duplicates dropped, first-seen order preserved.
func (pl *Pipeline) GroupBy(cols ...string) *Pipeline {
	if pl.err != nil {
		return pl
	}
	pl.groupBy = mergeGroups(pl.groupBy, cols)
	return pl
}

// Summarize records the six summary fields for the measure column using the
// given dialect strategy. The measure's numeric-ness is not checked here: a
// non-numeric measure surfaces as a type mismatch from the backend.
func (pl *Pipeline) Summarize(measure string, s strategy.Strategy) *Pipeline {
	if pl.err != nil {
		return pl
	}
	if measure == "" {
		pl.err = fmt.Errorf("empty measure column")
		return pl
	}
	pl.measure = measure
	pl.strat = s
	pl.summed = true
	return pl
}

// Fences appends the outlier-bound fields derived from the quartiles:
//
//	iqr     = (upper - lower) * coef
//	min_iqr = lower - iqr
//	max_iqr = upper + iqr
//	ymax    = max_raw clamped down to max_iqr
//	ymin    = min_raw clamped up to min_iqr
//
// The coefficient is validated here, before any backend call. Everything else
// is arithmetic and two conditional clamps, valid on every backend.
func (pl *Pipeline) Fences(coef float64) *Pipeline {
	if pl.err != nil {
		return pl
	}
	if coef < 0 || math.IsNaN(coef) || math.IsInf(coef, 0) {
		pl.err = NewInvalidCoefError(coef)
		return pl
	}

	lower := plan.Col{Name: strategy.FieldLower}
	upper := plan.Col{Name: strategy.FieldUpper}
	iqr := plan.Col{Name: FieldIQR}

	pl.derived = []plan.Field{
		{Name: FieldIQR, Expr: plan.Binary{
			Op:    plan.OpMul,
			Left:  plan.Binary{Op: plan.OpSub, Left: upper, Right: lower},
			Right: plan.Lit{Value: coef},
		}},
		{Name: FieldMinIQR, Expr: plan.Binary{Op: plan.OpSub, Left: lower, Right: iqr}},
		{Name: FieldMaxIQR, Expr: plan.Binary{Op: plan.OpAdd, Left: upper, Right: iqr}},
		{Name: FieldYMax, Expr: plan.Clamp{
			Dir:   plan.ClampAbove,
			Probe: plan.Col{Name: strategy.FieldMaxRaw},
			Limit: plan.Col{Name: FieldMaxIQR},
		}},
		{Name: FieldYMin, Expr: plan.Clamp{
			Dir:   plan.ClampBelow,
			Probe: plan.Col{Name: strategy.FieldMinRaw},
			Limit: plan.Col{Name: FieldMinIQR},
		}},
	}
	return pl
}

// Plan assembles and validates the accumulated plan without executing it.
func (pl *Pipeline) Plan() (*plan.Plan, error) {
	if pl.err != nil {
		return nil, pl.err
	}
	if !pl.summed {
		return nil, fmt.Errorf("pipeline has no summary step")
	}
	p := &plan.Plan{
		Source:  pl.handle.Table,
		GroupBy: pl.groupBy,
		Summary: plan.Summary{
			Fields:   pl.strat.SummaryFields(pl.measure, pl.groupBy),
			Windowed: pl.strat.Windowed,
		},
		Derived: pl.derived,
	}
	if err := plan.Validate(p); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return p, nil
}

// Materialize forces evaluation: it sends the accumulated plan to the backend
// in a single execution request and returns the per-group summary, with
// grouping flattened. Backend failures propagate unmodified inside the
// returned error; this layer adds no retry logic.
func (pl *Pipeline) Materialize(ctx context.Context) (*Result, error) {
	p, err := pl.Plan()
	if err != nil {
		return nil, err
	}
	return pl.handle.Backend.Execute(ctx, p)
}
