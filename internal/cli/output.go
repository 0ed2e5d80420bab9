package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/datawhisker/boxstat"
)

// resultColumns is the renderer column contract, in display order.
var resultColumns = []string{
	"x", "n", "lower", "middle", "upper", "max_raw", "min_raw",
	"iqr", "min_iqr", "max_iqr", "ymax", "ymin",
}

// jsonRow is the JSON shape of one summary row, using the contract names.
type jsonRow struct {
	X      string  `json:"x"`
	N      int64   `json:"n"`
	Lower  float64 `json:"lower"`
	Middle float64 `json:"middle"`
	Upper  float64 `json:"upper"`
	MaxRaw float64 `json:"max_raw"`
	MinRaw float64 `json:"min_raw"`
	IQR    float64 `json:"iqr"`
	MinIQR float64 `json:"min_iqr"`
	MaxIQR float64 `json:"max_iqr"`
	YMax   float64 `json:"ymax"`
	YMin   float64 `json:"ymin"`
}

// writeRows prints the summary in the configured format. Library row order is
// backend-defined, so the CLI sorts by collated group label for stable
// display.
func writeRows(w io.Writer, format string, rows []boxstat.Row) error {
	sorted := make([]boxstat.Row, len(rows))
	copy(sorted, rows)
	coll := collate.New(language.Und)
	sort.SliceStable(sorted, func(i, j int) bool {
		return coll.CompareString(sorted[i].Label(), sorted[j].Label()) < 0
	})

	if format == "json" {
		out := make([]jsonRow, 0, len(sorted))
		for _, r := range sorted {
			out = append(out, jsonRow{
				X: r.Label(), N: r.N,
				Lower: r.Lower, Middle: r.Middle, Upper: r.Upper,
				MaxRaw: r.MaxRaw, MinRaw: r.MinRaw,
				IQR: r.IQR, MinIQR: r.MinIQR, MaxIQR: r.MaxIQR,
				YMax: r.YMax, YMin: r.YMin,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(resultColumns)
	for _, r := range sorted {
		table.Append([]string{
			r.Label(),
			strconv.FormatInt(r.N, 10),
			cell(r.Lower), cell(r.Middle), cell(r.Upper),
			cell(r.MaxRaw), cell(r.MinRaw),
			cell(r.IQR), cell(r.MinIQR), cell(r.MaxIQR),
			cell(r.YMax), cell(r.YMin),
		})
	}
	table.Render()
	return nil
}

func cell(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// fail reports an error in the configured format and returns it so the
// caller exits non-zero.
func fail(w io.Writer, format string, err error) error {
	if format == "json" {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return err
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return err
}
