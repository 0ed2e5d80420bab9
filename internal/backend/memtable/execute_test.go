package memtable

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawhisker/boxstat/internal/backend"
	"github.com/datawhisker/boxstat/internal/dialect"
	"github.com/datawhisker/boxstat/internal/strategy"
)

// outlierTable holds group A with a clear outlier and group B with no spread.
func outlierTable(t *testing.T) *Table {
	t.Helper()
	table := New("samples")
	require.NoError(t, table.AddLabels("grp", []string{"A", "A", "A", "A", "A", "A", "B", "B", "B"}))
	require.NoError(t, table.AddNumbers("val", []float64{1, 2, 3, 4, 5, 100, 10, 10, 10}))
	return table
}

func materialize(t *testing.T, table *Table, strat strategy.Strategy, coef float64, groupBy ...string) *backend.Result {
	t.Helper()
	res, err := backend.From(table.Handle()).
		GroupBy(groupBy...).
		Summarize("val", strat).
		Fences(coef).
		Materialize(context.Background())
	require.NoError(t, err)
	return res
}

// byGroup indexes result rows by their joined group labels.
func byGroup(t *testing.T, res *backend.Result, groupCount int) map[string]map[string]float64 {
	t.Helper()
	out := make(map[string]map[string]float64)
	for _, cells := range res.Rows {
		labels := make([]string, groupCount)
		for i := 0; i < groupCount; i++ {
			labels[i] = cells[i].(string)
		}
		row := make(map[string]float64)
		for i := groupCount; i < len(res.Columns); i++ {
			row[res.Columns[i]] = cells[i].(float64)
		}
		out[strings.Join(labels, "/")] = row
	}
	return out
}

func TestExecute_OutlierScenario(t *testing.T) {
	res := materialize(t, outlierTable(t), strategy.For(dialect.Generic), 1.5, "grp")
	groups := byGroup(t, res, 1)
	require.Len(t, groups, 2)

	a := groups["A"]
	assert.Equal(t, 6.0, a["n"])
	assert.InDelta(t, 2.25, a["lower"], 1e-12)
	assert.InDelta(t, 3.5, a["middle"], 1e-12)
	assert.InDelta(t, 4.75, a["upper"], 1e-12)
	assert.Equal(t, 100.0, a["max_raw"])
	assert.Equal(t, 1.0, a["min_raw"])
	assert.InDelta(t, 3.75, a["iqr"], 1e-12)
	assert.InDelta(t, 8.5, a["ymax"], 1e-12, "outlier clipped to upper fence")
	assert.InDelta(t, 1.0, a["ymin"], 1e-12)

	// Group B is degenerate: no spread, everything collapses onto 10.
	b := groups["B"]
	assert.Equal(t, 3.0, b["n"])
	for _, col := range []string{"lower", "middle", "upper", "max_raw", "min_raw", "min_iqr", "max_iqr", "ymax", "ymin"} {
		assert.Equal(t, 10.0, b[col], col)
	}
	assert.Equal(t, 0.0, b["iqr"])
}

func TestExecute_OrderingInvariant(t *testing.T) {
	table := New("mix")
	labels := make([]string, 0, 60)
	values := make([]float64, 0, 60)
	for i := 0; i < 60; i++ {
		labels = append(labels, string(rune('a'+i%3)))
		values = append(values, float64((i*37)%23)-float64(i%7))
	}
	require.NoError(t, table.AddLabels("g", labels))
	require.NoError(t, table.AddNumbers("val", values))

	res := materialize(t, table, strategy.For(dialect.Generic), 1.5, "g")
	for label, row := range byGroup(t, res, 1) {
		assert.LessOrEqual(t, row["ymin"], row["lower"], label)
		assert.LessOrEqual(t, row["lower"], row["middle"], label)
		assert.LessOrEqual(t, row["middle"], row["upper"], label)
		assert.LessOrEqual(t, row["upper"], row["ymax"], label)
	}
}

func TestExecute_FenceMonotonicityInCoef(t *testing.T) {
	table := outlierTable(t)
	narrow := byGroup(t, materialize(t, table, strategy.For(dialect.Generic), 1.0, "grp"), 1)
	wide := byGroup(t, materialize(t, table, strategy.For(dialect.Generic), 2.5, "grp"), 1)

	for label, n := range narrow {
		w := wide[label]
		assert.GreaterOrEqual(t, w["max_iqr"], n["max_iqr"], label)
		assert.LessOrEqual(t, w["min_iqr"], n["min_iqr"], label)
	}
}

func TestExecute_ZeroCoefCollapsesWhiskers(t *testing.T) {
	res := materialize(t, outlierTable(t), strategy.For(dialect.Generic), 0, "grp")
	for label, row := range byGroup(t, res, 1) {
		assert.Equal(t, row["lower"], row["ymin"], label)
		assert.Equal(t, row["upper"], row["ymax"], label)
	}
}

// The windowed rewrite must produce byte-identical summaries to the aggregate
// path on the same data: both use exact linear-interpolation quantiles.
func TestExecute_WindowedMatchesAggregate(t *testing.T) {
	table := outlierTable(t)
	aggregate := byGroup(t, materialize(t, table, strategy.For(dialect.Generic), 1.5, "grp"), 1)
	windowed := byGroup(t, materialize(t, table, strategy.For(dialect.RestrictedSQL), 1.5, "grp"), 1)

	assert.Equal(t, aggregate, windowed)
}

func TestExecute_UngroupedYieldsOneRow(t *testing.T) {
	res := materialize(t, outlierTable(t), strategy.For(dialect.Generic), 1.5)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "n", res.Columns[0])
	assert.Equal(t, 9.0, res.Rows[0][0])
}

// No rows means no group values, so the summary must be empty rather than a
// single degenerate row of NaN quartiles and infinite extremes.
func TestExecute_EmptyTable(t *testing.T) {
	table := New("empty")
	require.NoError(t, table.AddLabels("grp", nil))
	require.NoError(t, table.AddNumbers("val", nil))

	for _, strat := range []strategy.Strategy{
		strategy.For(dialect.Generic),
		strategy.For(dialect.RestrictedSQL),
	} {
		for _, groupBy := range [][]string{nil, {"grp"}} {
			res, err := backend.From(table.Handle()).
				GroupBy(groupBy...).
				Summarize("val", strat).
				Fences(1.5).
				Materialize(context.Background())
			require.NoError(t, err)
			assert.Empty(t, res.Rows)
		}
	}
}

func TestExecute_GroupingUnionEqualsExplicitGrouping(t *testing.T) {
	table := New("sales")
	require.NoError(t, table.AddLabels("region", []string{"east", "east", "west", "west", "east"}))
	require.NoError(t, table.AddLabels("tier", []string{"gold", "silver", "gold", "gold", "gold"}))
	require.NoError(t, table.AddNumbers("amount", []float64{5, 7, 11, 13, 17}))

	strat := strategy.For(dialect.Generic)

	// Handle already grouped by region, plus requested tier.
	preGrouped, err := backend.From(table.Handle().GroupBy("region")).
		GroupBy("tier").
		Summarize("amount", strat).
		Fences(1.5).
		Materialize(context.Background())
	require.NoError(t, err)

	// Fresh handle, both columns requested explicitly.
	explicit, err := backend.From(table.Handle()).
		GroupBy("region", "tier").
		Summarize("amount", strat).
		Fences(1.5).
		Materialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, byGroup(t, explicit, 2), byGroup(t, preGrouped, 2))
	require.Len(t, preGrouped.Rows, 3)
}

func TestExecute_NonNumericMeasure(t *testing.T) {
	table := outlierTable(t)
	_, err := backend.From(table.Handle()).
		GroupBy("grp").
		Summarize("grp", strategy.For(dialect.Generic)).
		Fences(1.5).
		Materialize(context.Background())

	require.Error(t, err)
	assert.True(t, backend.IsTypeMismatch(err))
}

func TestExecute_UnknownColumns(t *testing.T) {
	table := outlierTable(t)

	_, err := backend.From(table.Handle()).
		GroupBy("nope").
		Summarize("val", strategy.For(dialect.Generic)).
		Fences(1.5).
		Materialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grouping column")

	_, err = backend.From(table.Handle()).
		GroupBy("grp").
		Summarize("nope", strategy.For(dialect.Generic)).
		Fences(1.5).
		Materialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "measure column")
}

func TestExecute_WrongSource(t *testing.T) {
	table := outlierTable(t)
	h := backend.NewHandle(table, "elsewhere", table.Schema())

	_, err := backend.From(h).
		Summarize("val", strategy.For(dialect.Generic)).
		Fences(1.5).
		Materialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}
