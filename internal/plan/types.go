package plan

// Expr represents a scalar or aggregate expression in a plan.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
//
// Expression types:
//   - Col: reference to a source or summary column
//   - Lit: numeric literal
//   - Binary: arithmetic on two sub-expressions
//   - Clamp: conditional clamp (the whisker clipping primitive)
//   - Agg: aggregate call collapsing a group to one value
//   - Window: row-level call scoped to a partition, rows not collapsed
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Col references a column by name. In Summary fields the name refers to a
// source column; in Derived fields it refers to a summary or earlier derived
// field name.
type Col struct {
	Name string
}

func (Col) exprNode() {}

// Lit is a numeric literal, such as the IQR coefficient.
type Lit struct {
	Value float64
}

func (Lit) exprNode() {}

// BinaryOp enumerates the arithmetic operators derived fields may use.
type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
)

// Binary applies an arithmetic operator to two sub-expressions.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (Binary) exprNode() {}

// ClampDir selects which comparison triggers the clamp.
type ClampDir string

const (
	// ClampAbove yields Limit when Probe > Limit, else Probe.
	ClampAbove ClampDir = "above"
	// ClampBelow yields Limit when Probe < Limit, else Probe.
	ClampBelow ClampDir = "below"
)

// Clamp is the conditional expression used to clip whisker extents to the
// fences. It is the only conditional the plan language has, so every backend
// can express it (CASE WHEN in SQL, a branch in native evaluators).
type Clamp struct {
	Dir   ClampDir
	Probe Expr
	Limit Expr
}

func (Clamp) exprNode() {}

// AggFn enumerates the aggregate functions a summary field may use.
type AggFn string

const (
	AggCount AggFn = "count"
	AggMin   AggFn = "min"
	AggMax   AggFn = "max"
	// AggQuantile is an exact quantile with linear interpolation between
	// the two nearest order statistics.
	AggQuantile AggFn = "quantile"
	// AggApproxQuantile is an approximate quantile. Backends that implement
	// it document their approximation; results may differ from the exact
	// value within the backend's stated tolerance.
	AggApproxQuantile AggFn = "approx_quantile"
)

// Agg collapses all rows of a group to a single value.
// P is the quantile fraction in [0, 1]; it is ignored for count/min/max.
type Agg struct {
	Fn  AggFn
	Arg Expr
	P   float64
}

func (Agg) exprNode() {}

// Window computes the same functions as Agg but row-wise within a partition:
// every row of the partition carries the partition-level value. A distinct
// step collapses the duplicated rows afterwards. This is the rewrite for
// dialects that lack aggregate-level quantile functions.
type Window struct {
	Fn        AggFn
	Arg       Expr
	P         float64
	Partition []string
}

func (Window) exprNode() {}

// Field names an expression in the plan output.
type Field struct {
	Name string
	Expr Expr
}

// Summary holds the six summary fields and how they collapse groups.
//
// When Windowed is false the fields are aggregate calls and the backend runs
// a single grouped aggregation. When Windowed is true the fields are window
// calls; the backend first attaches them row-wise (phase one) and then keeps
// one distinct row per group (phase two). Both shapes yield the same logical
// fields, so nothing downstream branches on the shape again.
type Summary struct {
	Fields   []Field
	Windowed bool
}

// Plan is one complete backend-resident boxplot computation.
type Plan struct {
	Source  string
	GroupBy []string
	Summary Summary

	// Derived holds the post-processor fields (iqr, fences, whisker
	// extents). Derived expressions may reference summary field names and
	// derived fields defined earlier in the slice.
	Derived []Field
}

// OutputColumns returns the column names of the materialized result, in
// order: grouping columns, summary fields, derived fields.
func (p *Plan) OutputColumns() []string {
	cols := make([]string, 0, len(p.GroupBy)+len(p.Summary.Fields)+len(p.Derived))
	cols = append(cols, p.GroupBy...)
	for _, f := range p.Summary.Fields {
		cols = append(cols, f.Name)
	}
	for _, f := range p.Derived {
		cols = append(cols, f.Name)
	}
	return cols
}
