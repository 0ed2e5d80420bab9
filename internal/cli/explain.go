package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/datawhisker/boxstat"
	"github.com/datawhisker/boxstat/internal/backend"
	"github.com/datawhisker/boxstat/internal/backend/sqlstore"
	"github.com/datawhisker/boxstat/internal/dialect"
	"github.com/datawhisker/boxstat/internal/plan"
	"github.com/datawhisker/boxstat/internal/strategy"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Dialect string
	Table   string
	Group   []string
	Measure string
	Coef    float64
}

// explainResult is the JSON shape of an explain.
type explainResult struct {
	Dialect    string   `json:"dialect"`
	Windowed   bool     `json:"windowed"`
	Statements []string `json:"statements"`
}

// NewExplainCommand creates the explain command, which prints the SQL a
// dialect would execute without touching any backend.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show the statements a dialect would execute",
		Long: `Compile the boxplot plan for a dialect and print the resulting SQL.

The restricted dialect shows its two dependent phases (windowed view, then
distinct collapse) plus the cleanup statement. Nothing is executed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", "generic", "dialect (generic|distributed_compute|restricted_sql)")
	cmd.Flags().StringVar(&opts.Table, "table", "data", "table name")
	cmd.Flags().StringSliceVarP(&opts.Group, "group", "g", nil, "grouping column (repeatable)")
	cmd.Flags().StringVarP(&opts.Measure, "measure", "m", "", "numeric column to summarize")
	cmd.Flags().Float64Var(&opts.Coef, "coef", boxstat.DefaultCoef, "whisker coefficient")
	_ = cmd.MarkFlagRequired("measure")

	return cmd
}

func runExplain(opts *ExplainOptions, out io.Writer) error {
	d, err := dialect.Parse(opts.Dialect)
	if err != nil {
		return fail(out, opts.Format, err)
	}

	stmts, windowed, err := explainStatements(d, opts.Table, opts.Group, opts.Measure, opts.Coef)
	if err != nil {
		return fail(out, opts.Format, err)
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(explainResult{Dialect: d.String(), Windowed: windowed, Statements: stmts})
	}

	fmt.Fprintf(out, "dialect: %s\n", d)
	for i, stmt := range stmts {
		fmt.Fprintf(out, "-- statement %d\n%s\n", i+1, stmt)
	}
	return nil
}

// explainStatements builds the plan the way Compute does and compiles it for
// the SQL surface of the dialect.
func explainStatements(d dialect.Dialect, table string, group []string, measure string, coef float64) ([]string, bool, error) {
	h := backend.NewHandle(explainBackend{}, table, nil)
	p, err := backend.From(h).
		GroupBy(group...).
		Summarize(measure, strategy.For(d)).
		Fences(coef).
		Plan()
	if err != nil {
		return nil, false, err
	}

	if p.Summary.Windowed {
		phase1, phase2, cleanup, err := sqlstore.CompileRestricted(p, "boxstat_w")
		if err != nil {
			return nil, true, err
		}
		return []string{phase1, phase2, cleanup}, true, nil
	}

	stmt, err := sqlstore.Compile(p)
	if err != nil {
		return nil, false, err
	}
	return []string{stmt}, false, nil
}

// explainBackend satisfies the handle contract for plan building only; it is
// never executed.
type explainBackend struct{}

func (explainBackend) Engine() string         { return "explain" }
func (explainBackend) QuantileMethod() string { return "not executed" }
func (explainBackend) Execute(ctx context.Context, p *plan.Plan) (*backend.Result, error) {
	return nil, fmt.Errorf("explain never executes")
}
