package cluster

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawhisker/boxstat/internal/backend"
	"github.com/datawhisker/boxstat/internal/backend/memtable"
	"github.com/datawhisker/boxstat/internal/dialect"
	"github.com/datawhisker/boxstat/internal/strategy"
)

// uniformTable spreads 1..600 across two groups plus a degenerate group.
func uniformTable(t *testing.T) *memtable.Table {
	t.Helper()
	table := memtable.New("metrics")
	labels := make([]string, 0, 606)
	values := make([]float64, 0, 606)
	for i := 1; i <= 600; i++ {
		if i%2 == 0 {
			labels = append(labels, "even")
		} else {
			labels = append(labels, "odd")
		}
		values = append(values, float64(i))
	}
	for i := 0; i < 6; i++ {
		labels = append(labels, "flat")
		values = append(values, 42)
	}
	require.NoError(t, table.AddLabels("grp", labels))
	require.NoError(t, table.AddNumbers("lat", values))
	return table
}

func run(t *testing.T, h *backend.Handle, strat strategy.Strategy) *backend.Result {
	t.Helper()
	res, err := backend.From(h).
		GroupBy("grp").
		Summarize("lat", strat).
		Fences(1.5).
		Materialize(context.Background())
	require.NoError(t, err)
	return res
}

func rowsByLabel(res *backend.Result) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, cells := range res.Rows {
		row := make(map[string]float64)
		for i := 1; i < len(res.Columns); i++ {
			row[res.Columns[i]] = cells[i].(float64)
		}
		out[cells[0].(string)] = row
	}
	return out
}

// The histogram estimate must land within one bin width of the exact
// quantile, for any shard count. The sample sits on an integer grid with
// spacing 2, so the tolerance allows that spacing on top of the bin width.
func TestExecute_ApproxWithinOneBinWidth(t *testing.T) {
	table := uniformTable(t)
	exact := rowsByLabel(run(t, table.Handle(), strategy.For(dialect.Generic)))

	for _, shards := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("shards=%d", shards), func(t *testing.T) {
			engine := Partition(table, shards, DefaultBins)
			approx := rowsByLabel(run(t, engine.Handle(), strategy.For(dialect.DistributedCompute)))
			require.Len(t, approx, len(exact))

			for label, want := range exact {
				got := approx[label]
				binWidth := (want["max_raw"] - want["min_raw"]) / float64(DefaultBins)
				for _, col := range []string{"lower", "middle", "upper"} {
					assert.InDelta(t, want[col], got[col], binWidth+2, "%s %s", label, col)
				}
				// Counts and extremes merge exactly, sharding or not.
				assert.Equal(t, want["n"], got["n"], label)
				assert.Equal(t, want["min_raw"], got["min_raw"], label)
				assert.Equal(t, want["max_raw"], got["max_raw"], label)
			}
		})
	}
}

func TestExecute_DegenerateGroupIsExact(t *testing.T) {
	engine := Partition(uniformTable(t), 4, DefaultBins)
	rows := rowsByLabel(run(t, engine.Handle(), strategy.For(dialect.DistributedCompute)))

	flat := rows["flat"]
	require.NotNil(t, flat)
	assert.Equal(t, 6.0, flat["n"])
	for _, col := range []string{"lower", "middle", "upper", "min_raw", "max_raw", "ymin", "ymax"} {
		assert.Equal(t, 42.0, flat[col], col)
	}
	assert.Equal(t, 0.0, flat["iqr"])
}

func TestExecute_RejectsExactQuantilePlan(t *testing.T) {
	engine := Partition(uniformTable(t), 2, DefaultBins)
	_, err := backend.From(engine.Handle()).
		GroupBy("grp").
		Summarize("lat", strategy.For(dialect.Generic)).
		Fences(1.5).
		Materialize(context.Background())

	require.Error(t, err)
	var be *backend.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, backend.ErrCodeBadPlan, be.Code)
	assert.Contains(t, be.Message, "exact quantiles are not available")
}

func TestExecute_RejectsWindowedPlan(t *testing.T) {
	engine := Partition(uniformTable(t), 2, DefaultBins)
	_, err := backend.From(engine.Handle()).
		GroupBy("grp").
		Summarize("lat", strategy.For(dialect.RestrictedSQL)).
		Fences(1.5).
		Materialize(context.Background())

	require.Error(t, err)
	var be *backend.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, backend.ErrCodeBadPlan, be.Code)
	assert.Contains(t, be.Message, "no row-level window form")
}

// A table smaller than the shard count leaves some shards empty; those
// shards contribute nothing rather than failing the job.
func TestExecute_MoreShardsThanRows(t *testing.T) {
	table := memtable.New("tiny")
	require.NoError(t, table.AddLabels("grp", []string{"A", "A", "B"}))
	require.NoError(t, table.AddNumbers("lat", []float64{1, 3, 7}))

	engine := Partition(table, 8, DefaultBins)
	require.Equal(t, 8, engine.Shards())

	rows := rowsByLabel(run(t, engine.Handle(), strategy.For(dialect.DistributedCompute)))
	require.Len(t, rows, 2)
	assert.Equal(t, 2.0, rows["A"]["n"])
	assert.Equal(t, 1.0, rows["A"]["min_raw"])
	assert.Equal(t, 3.0, rows["A"]["max_raw"])
	assert.Equal(t, 1.0, rows["B"]["n"])
	assert.Equal(t, 7.0, rows["B"]["middle"], "single-row group stays exact")
}

func TestExecute_EmptyTable(t *testing.T) {
	table := memtable.New("empty")
	require.NoError(t, table.AddLabels("grp", nil))
	require.NoError(t, table.AddNumbers("lat", nil))

	engine := Partition(table, 4, DefaultBins)
	res, err := backend.From(engine.Handle()).
		GroupBy("grp").
		Summarize("lat", strategy.For(dialect.DistributedCompute)).
		Fences(1.5).
		Materialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestExecute_NonNumericMeasure(t *testing.T) {
	engine := Partition(uniformTable(t), 2, DefaultBins)
	_, err := backend.From(engine.Handle()).
		GroupBy("grp").
		Summarize("grp", strategy.For(dialect.DistributedCompute)).
		Fences(1.5).
		Materialize(context.Background())

	require.Error(t, err)
	assert.True(t, backend.IsTypeMismatch(err))
}

func TestPartition_RoundRobin(t *testing.T) {
	engine := Partition(uniformTable(t), 4, 0)
	assert.Equal(t, 4, engine.Shards())
	assert.Equal(t, EngineName, engine.Engine())
	assert.Equal(t, DefaultBins, engine.bins)

	// Shard counts below one collapse to a single shard.
	assert.Equal(t, 1, Partition(uniformTable(t), 0, DefaultBins).Shards())
}
