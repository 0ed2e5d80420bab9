// Package strategy is the quantile strategy table: it maps each dialect to
// the concrete expression set that produces the six summary fields
// {n, lower, middle, upper, max_raw, min_raw}.
//
// Every strategy emits the same six logical fields, so nothing downstream of
// the summary ever branches on dialect again. The dialects differ only in how
// the quantiles are obtained:
//
//   - Generic: exact aggregate quantile calls
//   - DistributedCompute: approximate aggregate quantile calls
//   - RestrictedSQL: row-level window calls followed by a distinct collapse
package strategy

import (
	"github.com/datawhisker/boxstat/internal/dialect"
	"github.com/datawhisker/boxstat/internal/plan"
)

// Summary field names, shared with the renderer contract.
const (
	FieldN      = "n"
	FieldLower  = "lower"
	FieldMiddle = "middle"
	FieldUpper  = "upper"
	FieldMaxRaw = "max_raw"
	FieldMinRaw = "min_raw"
)

// Strategy supplies the summary expression set for one dialect.
type Strategy struct {
	Dialect dialect.Dialect

	// Windowed reports whether the summary needs the two-phase
	// window-then-distinct execution.
	Windowed bool

	// Approximate reports whether quantiles are approximate on this
	// dialect. Documented semantic difference, not an error.
	Approximate bool
}

// For returns the strategy for a dialect. The strategy table is exhaustive
// over the closed dialect set; anything else falls back to Generic, matching
// the detector's fallback.
func For(d dialect.Dialect) Strategy {
	switch d {
	case dialect.DistributedCompute:
		return Strategy{Dialect: d, Approximate: true}
	case dialect.RestrictedSQL:
		return Strategy{Dialect: d, Windowed: true}
	default:
		return Strategy{Dialect: dialect.Generic}
	}
}

// SummaryFields returns the six summary fields for a measure column, grouped
// by the given columns. The groupBy is needed only for the windowed shape,
// where each call partitions by the full grouping.
func (s Strategy) SummaryFields(measure string, groupBy []string) []plan.Field {
	quantile := plan.AggQuantile
	if s.Approximate {
		quantile = plan.AggApproxQuantile
	}

	specs := []struct {
		name string
		fn   plan.AggFn
		p    float64
	}{
		{FieldN, plan.AggCount, 0},
		{FieldLower, quantile, 0.25},
		{FieldMiddle, quantile, 0.50},
		{FieldUpper, quantile, 0.75},
		{FieldMaxRaw, plan.AggMax, 0},
		{FieldMinRaw, plan.AggMin, 0},
	}

	arg := plan.Col{Name: measure}
	fields := make([]plan.Field, 0, len(specs))
	for _, spec := range specs {
		if s.Windowed {
			fields = append(fields, plan.Field{
				Name: spec.name,
				Expr: plan.Window{Fn: spec.fn, Arg: arg, P: spec.p, Partition: groupBy},
			})
		} else {
			fields = append(fields, plan.Field{
				Name: spec.name,
				Expr: plan.Agg{Fn: spec.fn, Arg: arg, P: spec.p},
			})
		}
	}
	return fields
}
