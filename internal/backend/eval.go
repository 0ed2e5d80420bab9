package backend

import (
	"fmt"

	"github.com/datawhisker/boxstat/internal/plan"
)

// EvalDerived evaluates the plan's derived fields over one summary row and
// writes the results back into the row map in field order, so later fields
// can reference earlier ones. Used by the in-process backends; SQL backends
// compile the same expressions to text instead.
func EvalDerived(fields []plan.Field, row map[string]float64) error {
	for _, f := range fields {
		v, err := evalExpr(f.Expr, row)
		if err != nil {
			return fmt.Errorf("derived field %q: %w", f.Name, err)
		}
		row[f.Name] = v
	}
	return nil
}

func evalExpr(e plan.Expr, row map[string]float64) (float64, error) {
	switch expr := e.(type) {
	case plan.Col:
		v, ok := row[expr.Name]
		if !ok {
			return 0, fmt.Errorf("unknown field %q", expr.Name)
		}
		return v, nil
	case plan.Lit:
		return expr.Value, nil
	case plan.Binary:
		left, err := evalExpr(expr.Left, row)
		if err != nil {
			return 0, err
		}
		right, err := evalExpr(expr.Right, row)
		if err != nil {
			return 0, err
		}
		switch expr.Op {
		case plan.OpAdd:
			return left + right, nil
		case plan.OpSub:
			return left - right, nil
		case plan.OpMul:
			return left * right, nil
		default:
			return 0, fmt.Errorf("unsupported operator %q", expr.Op)
		}
	case plan.Clamp:
		probe, err := evalExpr(expr.Probe, row)
		if err != nil {
			return 0, err
		}
		limit, err := evalExpr(expr.Limit, row)
		if err != nil {
			return 0, err
		}
		switch expr.Dir {
		case plan.ClampAbove:
			if probe > limit {
				return limit, nil
			}
			return probe, nil
		case plan.ClampBelow:
			if probe < limit {
				return limit, nil
			}
			return probe, nil
		default:
			return 0, fmt.Errorf("unsupported clamp direction %q", expr.Dir)
		}
	default:
		return 0, fmt.Errorf("unsupported expression type: %T", e)
	}
}
