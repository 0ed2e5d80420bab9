// Package sqlstore executes boxplot plans on SQL engines over database/sql.
//
// Two compilation shapes exist. Generic engines get a single statement: a
// grouped aggregation with PERCENTILE_CONT inside, wrapped by an outer select
// that adds the fence arithmetic. Restricted engines (no aggregate-level
// quantiles) get the two-phase rewrite: phase one creates a temporary view
// attaching quantile columns row-wise via window functions, phase two
// SELECT DISTINCTs the summary and fence columns out of it. The phases are
// genuinely dependent statements; they are never collapsed into one call.
package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/datawhisker/boxstat/internal/plan"
)

// Compile converts an aggregate-shaped plan to a single SQL statement.
func Compile(p *plan.Plan) (string, error) {
	if p.Summary.Windowed {
		return "", fmt.Errorf("windowed plan needs CompileRestricted")
	}

	var inner []string
	for _, col := range p.GroupBy {
		inner = append(inner, quoteIdent(col))
	}
	for _, f := range p.Summary.Fields {
		agg, ok := f.Expr.(plan.Agg)
		if !ok {
			return "", fmt.Errorf("summary field %q is not an aggregate call", f.Name)
		}
		sql, err := aggSQL(agg)
		if err != nil {
			return "", fmt.Errorf("summary field %q: %w", f.Name, err)
		}
		inner = append(inner, sql+" AS "+quoteIdent(f.Name))
	}

	stmt := "SELECT " + strings.Join(inner, ", ") + " FROM " + quoteIdent(p.Source)
	if len(p.GroupBy) > 0 {
		groups := make([]string, len(p.GroupBy))
		for i, col := range p.GroupBy {
			groups[i] = quoteIdent(col)
		}
		stmt += " GROUP BY " + strings.Join(groups, ", ")
	}

	if len(p.Derived) == 0 {
		return stmt, nil
	}

	derived, err := derivedSQL(p)
	if err != nil {
		return "", err
	}
	return "SELECT s.*, " + strings.Join(derived, ", ") + " FROM (" + stmt + ") AS s", nil
}

// CompileRestricted converts a windowed plan to the two dependent phases plus
// the cleanup statement for the temporary view.
func CompileRestricted(p *plan.Plan, view string) (phase1, phase2, cleanup string, err error) {
	if !p.Summary.Windowed {
		return "", "", "", fmt.Errorf("aggregate plan needs Compile")
	}

	// Phase 1: attach partition-level values to every row. Only the
	// grouping and summary columns enter the view so the later distinct
	// collapses to one row per group.
	var fields []string
	for _, col := range p.GroupBy {
		fields = append(fields, quoteIdent(col))
	}
	for _, f := range p.Summary.Fields {
		w, ok := f.Expr.(plan.Window)
		if !ok {
			return "", "", "", fmt.Errorf("summary field %q is not a window call", f.Name)
		}
		sql, werr := windowSQL(w)
		if werr != nil {
			return "", "", "", fmt.Errorf("summary field %q: %w", f.Name, werr)
		}
		fields = append(fields, sql+" AS "+quoteIdent(f.Name))
	}
	phase1 = "CREATE TEMPORARY VIEW " + quoteIdent(view) + " AS SELECT " +
		strings.Join(fields, ", ") + " FROM " + quoteIdent(p.Source)

	// Phase 2: collapse the duplicated rows and add the fence columns.
	var out []string
	for _, col := range p.GroupBy {
		out = append(out, quoteIdent(col))
	}
	for _, f := range p.Summary.Fields {
		out = append(out, quoteIdent(f.Name))
	}
	derived, derr := derivedSQL(p)
	if derr != nil {
		return "", "", "", derr
	}
	out = append(out, derived...)
	phase2 = "SELECT DISTINCT " + strings.Join(out, ", ") + " FROM " + quoteIdent(view)

	cleanup = "DROP VIEW " + quoteIdent(view)
	return phase1, phase2, cleanup, nil
}

// derivedSQL compiles the fence fields. Derived fields may reference earlier
// derived fields by name; those references are expanded inline because SQL
// cannot reference a sibling alias in the same select list.
func derivedSQL(p *plan.Plan) ([]string, error) {
	inline := make(map[string]string, len(p.Derived))
	out := make([]string, 0, len(p.Derived))
	for _, f := range p.Derived {
		sql, err := scalarSQL(f.Expr, inline)
		if err != nil {
			return nil, fmt.Errorf("derived field %q: %w", f.Name, err)
		}
		inline[f.Name] = "(" + sql + ")"
		out = append(out, sql+" AS "+quoteIdent(f.Name))
	}
	return out, nil
}

// scalarSQL compiles an arithmetic/clamp expression. Column references are
// looked up in the inline map first so fence fields can build on each other.
func scalarSQL(e plan.Expr, inline map[string]string) (string, error) {
	switch expr := e.(type) {
	case plan.Col:
		if sql, ok := inline[expr.Name]; ok {
			return sql, nil
		}
		return quoteIdent(expr.Name), nil
	case plan.Lit:
		return formatNumber(expr.Value), nil
	case plan.Binary:
		left, err := scalarSQL(expr.Left, inline)
		if err != nil {
			return "", err
		}
		right, err := scalarSQL(expr.Right, inline)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + string(expr.Op) + " " + right + ")", nil
	case plan.Clamp:
		probe, err := scalarSQL(expr.Probe, inline)
		if err != nil {
			return "", err
		}
		limit, err := scalarSQL(expr.Limit, inline)
		if err != nil {
			return "", err
		}
		op := ">"
		if expr.Dir == plan.ClampBelow {
			op = "<"
		}
		return "CASE WHEN " + probe + " " + op + " " + limit +
			" THEN " + limit + " ELSE " + probe + " END", nil
	default:
		return "", fmt.Errorf("unsupported scalar expression type: %T", e)
	}
}

// aggSQL compiles one aggregate call.
func aggSQL(a plan.Agg) (string, error) {
	arg, err := argSQL(a.Arg)
	if err != nil {
		return "", err
	}
	switch a.Fn {
	case plan.AggCount:
		return "COUNT(" + arg + ")", nil
	case plan.AggMin:
		return "MIN(" + arg + ")", nil
	case plan.AggMax:
		return "MAX(" + arg + ")", nil
	case plan.AggQuantile:
		return "PERCENTILE_CONT(" + formatNumber(a.P) + ") WITHIN GROUP (ORDER BY " + arg + ")", nil
	case plan.AggApproxQuantile:
		return "APPROX_PERCENTILE(" + arg + ", " + formatNumber(a.P) + ")", nil
	default:
		return "", fmt.Errorf("unsupported aggregate %q", a.Fn)
	}
}

// windowSQL compiles one row-level window call partitioned by the grouping.
func windowSQL(w plan.Window) (string, error) {
	arg, err := argSQL(w.Arg)
	if err != nil {
		return "", err
	}
	partition := make([]string, len(w.Partition))
	for i, col := range w.Partition {
		partition[i] = quoteIdent(col)
	}
	over := " OVER (PARTITION BY " + strings.Join(partition, ", ") + ")"
	if len(w.Partition) == 0 {
		over = " OVER ()"
	}

	switch w.Fn {
	case plan.AggCount:
		return "COUNT(" + arg + ")" + over, nil
	case plan.AggMin:
		return "MIN(" + arg + ")" + over, nil
	case plan.AggMax:
		return "MAX(" + arg + ")" + over, nil
	case plan.AggQuantile:
		return "PERCENTILE_CONT(" + formatNumber(w.P) + ") WITHIN GROUP (ORDER BY " + arg + ")" + over, nil
	case plan.AggApproxQuantile:
		return "", fmt.Errorf("approximate quantile has no window form")
	default:
		return "", fmt.Errorf("unsupported window function %q", w.Fn)
	}
}

func argSQL(e plan.Expr) (string, error) {
	col, ok := e.(plan.Col)
	if !ok {
		return "", fmt.Errorf("argument must be a column reference, got %T", e)
	}
	return quoteIdent(col.Name), nil
}

// quoteIdent quotes an identifier with standard double quotes, doubling any
// embedded quote.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// formatNumber renders a validated finite number as a SQL literal. Values
// reaching here come from the plan builder, never raw caller strings.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
