package plan

import "fmt"

// Validate checks that a plan is structurally sound before any backend sees
// it. Backends may still reject a valid plan whose operations their dialect
// cannot express; that failure surfaces at execution time.
func Validate(p *Plan) error {
	if p == nil {
		return fmt.Errorf("plan is nil")
	}
	if p.Source == "" {
		return fmt.Errorf("plan has no source")
	}
	if len(p.Summary.Fields) == 0 {
		return fmt.Errorf("plan has no summary fields")
	}

	seen := make(map[string]bool, len(p.GroupBy))
	for _, g := range p.GroupBy {
		if g == "" {
			return fmt.Errorf("empty grouping column")
		}
		if seen[g] {
			return fmt.Errorf("duplicate grouping column %q", g)
		}
		seen[g] = true
	}

	// Field names must be unique across summary and derived fields so that
	// derived references and result columns are unambiguous.
	names := make(map[string]bool)
	for _, f := range p.Summary.Fields {
		if err := validateField(f, names); err != nil {
			return fmt.Errorf("summary field %q: %w", f.Name, err)
		}
		if err := validateSummaryExpr(f.Expr, p); err != nil {
			return fmt.Errorf("summary field %q: %w", f.Name, err)
		}
		names[f.Name] = true
	}
	for _, f := range p.Derived {
		if err := validateField(f, names); err != nil {
			return fmt.Errorf("derived field %q: %w", f.Name, err)
		}
		if err := validateDerivedExpr(f.Expr, names); err != nil {
			return fmt.Errorf("derived field %q: %w", f.Name, err)
		}
		names[f.Name] = true
	}

	return nil
}

func validateField(f Field, names map[string]bool) error {
	if f.Name == "" {
		return fmt.Errorf("field has no name")
	}
	if f.Expr == nil {
		return fmt.Errorf("field has no expression")
	}
	if names[f.Name] {
		return fmt.Errorf("duplicate field name")
	}
	return nil
}

// validateSummaryExpr checks a summary field expression. Summary fields must
// be Agg or Window calls matching the plan's Windowed shape, and window
// partitions must equal the plan grouping.
func validateSummaryExpr(e Expr, p *Plan) error {
	switch expr := e.(type) {
	case Agg:
		if p.Summary.Windowed {
			return fmt.Errorf("aggregate call in windowed summary")
		}
		return validateFn(expr.Fn, expr.P)
	case Window:
		if !p.Summary.Windowed {
			return fmt.Errorf("window call in aggregate summary")
		}
		if err := validateFn(expr.Fn, expr.P); err != nil {
			return err
		}
		if len(expr.Partition) != len(p.GroupBy) {
			return fmt.Errorf("window partition does not match plan grouping")
		}
		for i, col := range expr.Partition {
			if col != p.GroupBy[i] {
				return fmt.Errorf("window partition does not match plan grouping")
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported summary expression type: %T", e)
	}
}

func validateFn(fn AggFn, p float64) error {
	switch fn {
	case AggCount, AggMin, AggMax:
		return nil
	case AggQuantile, AggApproxQuantile:
		if p < 0 || p > 1 {
			return fmt.Errorf("quantile fraction %v outside [0, 1]", p)
		}
		return nil
	default:
		return fmt.Errorf("unsupported function %q", fn)
	}
}

// validateDerivedExpr checks that a derived expression uses only arithmetic,
// clamps, literals, and references to already-defined summary/derived fields.
func validateDerivedExpr(e Expr, defined map[string]bool) error {
	switch expr := e.(type) {
	case Col:
		if !defined[expr.Name] {
			return fmt.Errorf("reference to undefined field %q", expr.Name)
		}
		return nil
	case Lit:
		return nil
	case Binary:
		if expr.Op != OpAdd && expr.Op != OpSub && expr.Op != OpMul {
			return fmt.Errorf("unsupported operator %q", expr.Op)
		}
		if err := validateDerivedExpr(expr.Left, defined); err != nil {
			return err
		}
		return validateDerivedExpr(expr.Right, defined)
	case Clamp:
		if expr.Dir != ClampAbove && expr.Dir != ClampBelow {
			return fmt.Errorf("unsupported clamp direction %q", expr.Dir)
		}
		if err := validateDerivedExpr(expr.Probe, defined); err != nil {
			return err
		}
		return validateDerivedExpr(expr.Limit, defined)
	case Agg, Window:
		return fmt.Errorf("aggregate call in derived field")
	default:
		return fmt.Errorf("unsupported expression type: %T", e)
	}
}
