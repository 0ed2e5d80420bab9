package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/datawhisker/boxstat"
	"github.com/datawhisker/boxstat/internal/backend"
	"github.com/datawhisker/boxstat/internal/backend/cluster"
	"github.com/datawhisker/boxstat/internal/backend/memtable"
	"github.com/datawhisker/boxstat/internal/backend/sqlstore"
	"github.com/datawhisker/boxstat/internal/dialect"
)

// ComputeOptions holds flags for the compute command.
type ComputeOptions struct {
	*RootOptions
	Input    string
	Driver   string
	DSN      string
	Engine   string
	Table    string
	Group    []string
	Measure  string
	Coef     float64
	Profiles string
	Shards   int
}

// NewComputeCommand creates the compute command.
func NewComputeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ComputeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute grouped boxplot statistics",
		Long: `Compute per-group boxplot statistics from a local file or a SQL backend.

With --input the file (CSV or Parquet) is loaded into the in-memory backend;
--shards > 1 additionally partitions it across the in-process cluster backend,
which uses approximate quantiles. With --dsn the computation is pushed to the
SQL engine and only the per-group summary comes back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "CSV or Parquet file to summarize")
	cmd.Flags().StringVar(&opts.Driver, "driver", "sqlite3", "database/sql driver for --dsn")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "connection string for a SQL backend")
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "engine identifier for dialect detection (with --dsn)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table name (defaults to the input file base name)")
	cmd.Flags().StringSliceVarP(&opts.Group, "group", "g", nil, "grouping column (repeatable)")
	cmd.Flags().StringVarP(&opts.Measure, "measure", "m", "", "numeric column to summarize")
	cmd.Flags().Float64Var(&opts.Coef, "coef", boxstat.DefaultCoef, "whisker coefficient")
	cmd.Flags().StringVar(&opts.Profiles, "profiles", "", "YAML dialect profile file")
	cmd.Flags().IntVar(&opts.Shards, "shards", 1, "partition a local file across N cluster shards")
	_ = cmd.MarkFlagRequired("measure")

	return cmd
}

func runCompute(opts *ComputeOptions, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	profiles, err := loadProfiles(opts.Profiles)
	if err != nil {
		return fail(out, opts.Format, err)
	}

	handle, cleanup, err := openHandle(opts, profiles)
	if err != nil {
		return fail(out, opts.Format, err)
	}
	defer cleanup()

	rows, err := boxstat.Compute(cmd.Context(), handle, opts.Group, opts.Measure,
		boxstat.WithCoef(opts.Coef), boxstat.WithProfiles(profiles))
	if err != nil {
		return fail(out, opts.Format, err)
	}

	return writeRows(out, opts.Format, rows)
}

func loadProfiles(path string) (dialect.Profiles, error) {
	if path == "" {
		return dialect.DefaultProfiles(), nil
	}
	return dialect.LoadProfiles(path)
}

// openHandle resolves the flags to a backend handle and a cleanup func.
func openHandle(opts *ComputeOptions, profiles dialect.Profiles) (*backend.Handle, func(), error) {
	noop := func() {}

	switch {
	case opts.DSN != "":
		engine := opts.Engine
		if engine == "" {
			engine = opts.Driver
		}
		if opts.Table == "" {
			return nil, noop, fmt.Errorf("--table is required with --dsn")
		}
		store, err := sqlstore.Open(opts.Driver, opts.DSN, engine, profiles)
		if err != nil {
			return nil, noop, err
		}
		return store.Handle(opts.Table, nil), func() { store.Close() }, nil

	case opts.Input != "":
		table, err := loadFile(opts.Input, opts.Table)
		if err != nil {
			return nil, noop, err
		}
		if opts.Shards > 1 {
			engine := cluster.Partition(table, opts.Shards, cluster.DefaultBins)
			return engine.Handle(), noop, nil
		}
		return table.Handle(), noop, nil

	default:
		return nil, noop, fmt.Errorf("either --input or --dsn is required")
	}
}

func loadFile(path, name string) (*memtable.Table, error) {
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return memtable.LoadCSV(name, path)
	case ".parquet":
		return memtable.LoadParquet(name, path)
	default:
		return nil, fmt.Errorf("unsupported input type %q (want .csv or .parquet)", filepath.Ext(path))
	}
}
