// Package boxstat computes boxplot summary statistics for grouped data by
// delegating the aggregation to the backend that holds the data. Only the
// per-group summary table - bounded by the number of groups, not the number
// of rows - is ever pulled into memory.
//
// The entry point is Compute: it detects the backend's dialect, picks the
// matching quantile strategy, builds a lazy aggregation pipeline (quartiles,
// then fence arithmetic), and materializes it with a single execution
// request. Rendering is someone else's job; the result is a tidy summary
// table with the column contract renderers expect.
//
// Dialects differ in quantile semantics. The distributed-compute dialect uses
// approximate quantiles; results can differ slightly from exact values. That
// difference is documented per backend via QuantileMethod, never hidden.
package boxstat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/datawhisker/boxstat/internal/backend"
	"github.com/datawhisker/boxstat/internal/dialect"
	"github.com/datawhisker/boxstat/internal/strategy"
)

// DefaultCoef is the whisker coefficient used when none is given: fences sit
// at quartile ± 1.5 × IQR.
const DefaultCoef = 1.5

// Row is one group's boxplot summary. Field names follow the renderer
// contract: lower/middle/upper are the quartiles, min_iqr/max_iqr the fences,
// ymin/ymax the whisker extents clipped to the fences.
type Row struct {
	// X holds the group label values in grouping-column order. Empty when
	// the computation was ungrouped.
	X []string

	N      int64
	Lower  float64
	Middle float64
	Upper  float64
	MaxRaw float64
	MinRaw float64
	IQR    float64
	MinIQR float64
	MaxIQR float64
	YMax   float64
	YMin   float64
}

// Label joins the group values for display.
func (r Row) Label() string {
	return strings.Join(r.X, " / ")
}

type options struct {
	coef     float64
	profiles dialect.Profiles
}

// Option configures Compute.
type Option func(*options)

// WithCoef sets the whisker coefficient. Must be a non-negative finite
// number; zero collapses the whiskers onto the quartiles.
func WithCoef(coef float64) Option {
	return func(o *options) { o.coef = coef }
}

// WithProfiles overrides the engine-to-dialect detection table.
func WithProfiles(p dialect.Profiles) Option {
	return func(o *options) { o.profiles = p }
}

// Compute summarizes the measure column of the handle's table, one Row per
// distinct combination of grouping values. The requested grouping columns are
// merged with any grouping already attached to the handle (union, duplicates
// dropped, order preserved). Row order is backend-defined; callers that need
// a stable order sort the result themselves.
//
// The coefficient is validated before any backend work. Everything else that
// can fail - non-numeric measure, unsupported syntax on the actual engine,
// connectivity - surfaces from the backend unmodified.
func Compute(ctx context.Context, h *backend.Handle, groupBy []string, measure string, opts ...Option) ([]Row, error) {
	o := options{coef: DefaultCoef}
	for _, opt := range opts {
		opt(&o)
	}
	if o.profiles == nil {
		o.profiles = dialect.DefaultProfiles()
	}
	if h == nil || h.Backend == nil {
		return nil, fmt.Errorf("nil data handle")
	}

	d := o.profiles.Detect(h.Backend.Engine())
	strat := strategy.For(d)

	result, err := backend.From(h).
		GroupBy(groupBy...).
		Summarize(measure, strat).
		Fences(o.coef).
		Materialize(ctx)
	if err != nil {
		return nil, err
	}

	return assemble(result)
}

// summaryColumns are the non-grouping result columns, in contract order.
var summaryColumns = []string{
	strategy.FieldN,
	strategy.FieldLower,
	strategy.FieldMiddle,
	strategy.FieldUpper,
	strategy.FieldMaxRaw,
	strategy.FieldMinRaw,
	backend.FieldIQR,
	backend.FieldMinIQR,
	backend.FieldMaxIQR,
	backend.FieldYMax,
	backend.FieldYMin,
}

// assemble maps a materialized result onto Rows. Grouping columns are
// whatever result columns precede the summary fields.
func assemble(result *backend.Result) ([]Row, error) {
	idx := make(map[string]int, len(summaryColumns))
	for _, col := range summaryColumns {
		i := result.ColumnIndex(col)
		if i < 0 {
			return nil, fmt.Errorf("result is missing column %q", col)
		}
		idx[col] = i
	}
	groupCount := len(result.Columns) - len(summaryColumns)
	if groupCount < 0 {
		return nil, fmt.Errorf("result has %d columns, expected at least %d", len(result.Columns), len(summaryColumns))
	}

	rows := make([]Row, 0, len(result.Rows))
	for _, cells := range result.Rows {
		row := Row{}
		for i := 0; i < groupCount; i++ {
			row.X = append(row.X, asLabel(cells[i]))
		}

		numbers := make(map[string]float64, len(summaryColumns))
		for col, i := range idx {
			v, err := asNumber(cells[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
			numbers[col] = v
		}

		row.N = int64(numbers[strategy.FieldN])
		row.Lower = numbers[strategy.FieldLower]
		row.Middle = numbers[strategy.FieldMiddle]
		row.Upper = numbers[strategy.FieldUpper]
		row.MaxRaw = numbers[strategy.FieldMaxRaw]
		row.MinRaw = numbers[strategy.FieldMinRaw]
		row.IQR = numbers[backend.FieldIQR]
		row.MinIQR = numbers[backend.FieldMinIQR]
		row.MaxIQR = numbers[backend.FieldMaxIQR]
		row.YMax = numbers[backend.FieldYMax]
		row.YMin = numbers[backend.FieldYMin]
		rows = append(rows, row)
	}
	return rows, nil
}

func asLabel(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asNumber(cell any) (float64, error) {
	switch v := cell.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cell %v (%T) is not numeric", cell, cell)
	}
}
