package memtable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	data := "grp,val\nA,1\nA,2\nB,10\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	table, err := LoadCSV("samples", path)
	require.NoError(t, err)

	assert.Equal(t, "samples", table.Name())
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"grp", "val"}, table.Columns())

	labels, ok := table.LabelColumn("grp")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "A", "B"}, labels)

	numbers, ok := table.NumberColumn("val")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 10}, numbers)
}

func TestLoadCSV_MixedColumnBecomesText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.csv")
	data := "id,note\n1,ok\n2,7\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	table, err := LoadCSV("mixed", path)
	require.NoError(t, err)

	// "ok" poisons the column, "7" stays a label with it.
	labels, ok := table.LabelColumn("note")
	require.True(t, ok)
	assert.Equal(t, []string{"ok", "7"}, labels)
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV("nope", filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open csv")
}

func TestLoadParquet(t *testing.T) {
	type sample struct {
		Grp string  `parquet:"grp"`
		Val float64 `parquet:"val"`
		Seq int64   `parquet:"seq"`
	}

	path := filepath.Join(t.TempDir(), "samples.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[sample](f)
	_, err = w.Write([]sample{
		{Grp: "A", Val: 1.5, Seq: 1},
		{Grp: "A", Val: 2.5, Seq: 2},
		{Grp: "B", Val: 10, Seq: 3},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	table, err := LoadParquet("samples", path)
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"grp", "val", "seq"}, table.Columns())

	labels, ok := table.LabelColumn("grp")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "A", "B"}, labels)

	vals, ok := table.NumberColumn("val")
	require.True(t, ok)
	assert.Equal(t, []float64{1.5, 2.5, 10}, vals)

	// Integer columns load as numbers too.
	seqs, ok := table.NumberColumn("seq")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3}, seqs)
}

func TestQuantileLinear(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 100}

	assert.InDelta(t, 2.25, quantileLinear(sorted, 0.25), 1e-12)
	assert.InDelta(t, 3.5, quantileLinear(sorted, 0.5), 1e-12)
	assert.InDelta(t, 4.75, quantileLinear(sorted, 0.75), 1e-12)
	assert.Equal(t, 1.0, quantileLinear(sorted, 0))
	assert.Equal(t, 100.0, quantileLinear(sorted, 1))
	assert.Equal(t, 7.0, quantileLinear([]float64{7}, 0.5))
}
