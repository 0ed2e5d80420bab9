// Package memtable provides the in-memory table backend. It speaks the
// Generic dialect: exact quantiles via linear interpolation between order
// statistics (R type 7). It can also execute the windowed summary shape
// natively, which lets the two dialect strategies be compared on identical
// data.
package memtable

import (
	"fmt"
	"strconv"

	"github.com/datawhisker/boxstat/internal/backend"
)

// EngineName is the identity memtable reports for dialect detection.
const EngineName = "memtable"

// Table is an in-memory column store holding one relation. It implements
// backend.Backend for plans whose source is this table.
type Table struct {
	name    string
	cols    []string
	types   backend.Schema
	numbers map[string][]float64
	labels  map[string][]string
	n       int
}

// New creates an empty table with the given relation name.
func New(name string) *Table {
	return &Table{
		name:    name,
		types:   backend.Schema{},
		numbers: map[string][]float64{},
		labels:  map[string][]string{},
	}
}

// AddNumbers adds a numeric column. All columns of a table must have the
// same length; the first column added fixes it.
func (t *Table) AddNumbers(name string, values []float64) error {
	if err := t.addColumn(name, len(values)); err != nil {
		return err
	}
	t.types[name] = backend.Number
	t.numbers[name] = values
	return nil
}

// AddLabels adds a text column.
func (t *Table) AddLabels(name string, values []string) error {
	if err := t.addColumn(name, len(values)); err != nil {
		return err
	}
	t.types[name] = backend.Text
	t.labels[name] = values
	return nil
}

func (t *Table) addColumn(name string, n int) error {
	if name == "" {
		return fmt.Errorf("empty column name")
	}
	if _, exists := t.types[name]; exists {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(t.cols) > 0 && n != t.n {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, n, t.n)
	}
	t.cols = append(t.cols, name)
	t.n = n
	return nil
}

// Name returns the relation name.
func (t *Table) Name() string { return t.name }

// Len returns the number of rows.
func (t *Table) Len() int { return t.n }

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string { return t.cols }

// Schema returns the table schema.
func (t *Table) Schema() backend.Schema { return t.types }

// NumberColumn returns a numeric column and whether it exists as numeric.
func (t *Table) NumberColumn(name string) ([]float64, bool) {
	vs, ok := t.numbers[name]
	return vs, ok
}

// LabelColumn returns a text column and whether it exists as text.
func (t *Table) LabelColumn(name string) ([]string, bool) {
	vs, ok := t.labels[name]
	return vs, ok
}

// Handle returns a backend handle for this table.
func (t *Table) Handle() *backend.Handle {
	return backend.NewHandle(t, t.name, t.types)
}

// Engine implements backend.Backend.
func (t *Table) Engine() string { return EngineName }

// QuantileMethod implements backend.Backend.
func (t *Table) QuantileMethod() string {
	return "exact, linear interpolation between order statistics (type 7)"
}

// cell returns the display value of a column at a row index. Numeric cells
// are formatted with the shortest round-trip representation.
func (t *Table) cell(col string, i int) string {
	if vs, ok := t.labels[col]; ok {
		return vs[i]
	}
	if vs, ok := t.numbers[col]; ok {
		return strconv.FormatFloat(vs[i], 'g', -1, 64)
	}
	return ""
}
