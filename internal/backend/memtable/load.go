package memtable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/segmentio/parquet-go"
)

// LoadCSV reads a headered CSV file into a table. Column types are inferred:
// a column where every non-empty cell parses as a number becomes numeric,
// anything else becomes text. Empty numeric cells are not allowed; the loader
// has no notion of missing values.
func LoadCSV(name, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cells := make([][]string, len(header))
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		for i := range header {
			cells[i] = append(cells[i], record[i])
		}
	}

	t := New(name)
	for i, col := range header {
		if numbers, ok := parseNumbers(cells[i]); ok {
			if err := t.AddNumbers(col, numbers); err != nil {
				return nil, err
			}
			continue
		}
		if err := t.AddLabels(col, cells[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parseNumbers(cells []string) ([]float64, bool) {
	numbers := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		numbers[i] = v
	}
	return numbers, len(cells) > 0
}

// LoadParquet reads a parquet file into a table. Rows are decoded as maps;
// integer and floating columns become numeric, everything else becomes text.
func LoadParquet(name, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	var rows []map[string]any
	for {
		row := make(map[string]any)
		if err := reader.Read(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read parquet row: %w", err)
		}
		rows = append(rows, row)
	}

	return fromRowMaps(name, pf.Schema(), rows)
}

// fromRowMaps builds a table from decoded row maps, with column order taken
// from the parquet schema.
func fromRowMaps(name string, schema *parquet.Schema, rows []map[string]any) (*Table, error) {
	t := New(name)
	for _, field := range schema.Fields() {
		col := field.Name()
		numeric := true
		numbers := make([]float64, len(rows))
		labels := make([]string, len(rows))
		for i, row := range rows {
			v, n, ok := cellValue(row[col])
			labels[i] = v
			if !ok {
				numeric = false
			} else {
				numbers[i] = n
			}
		}
		var err error
		if numeric && len(rows) > 0 {
			err = t.AddNumbers(col, numbers)
		} else {
			err = t.AddLabels(col, labels)
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// cellValue normalizes a decoded parquet value to (label, number, isNumber).
func cellValue(v any) (string, float64, bool) {
	switch val := v.(type) {
	case int:
		return strconv.Itoa(val), float64(val), true
	case int32:
		return strconv.FormatInt(int64(val), 10), float64(val), true
	case int64:
		return strconv.FormatInt(val, 10), float64(val), true
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), float64(val), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), val, true
	case string:
		return val, 0, false
	case bool:
		return strconv.FormatBool(val), 0, false
	case nil:
		return "", 0, false
	default:
		return fmt.Sprintf("%v", val), 0, false
	}
}
