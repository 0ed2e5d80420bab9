package backend

import (
	"context"

	"github.com/datawhisker/boxstat/internal/plan"
)

// ColType is the semantic type of a column.
type ColType int

const (
	Number ColType = iota
	Text
	Bool
	Time
)

// Schema maps column names to semantic types.
type Schema map[string]ColType

// Backend executes plans against a concrete store.
//
// Implementations block synchronously on an already-valid connection;
// pooling, retries, and transactions belong to the store, not here.
type Backend interface {
	// Engine returns the backend identity used for dialect detection.
	Engine() string

	// QuantileMethod documents how this backend computes quantiles
	// (interpolation method, or the approximation it uses).
	QuantileMethod() string

	// Execute runs one plan to completion and returns the materialized
	// per-group summary. Execution errors propagate verbatim.
	Execute(ctx context.Context, p *plan.Plan) (*Result, error)
}

// Handle is an abstract reference to backend-resident tabular data. The data
// may be fully local or remote; the handle itself is cheap and immutable.
type Handle struct {
	Backend Backend

	// Table names the source relation within the backend.
	Table string

	// Schema maps column names to semantic types.
	Schema Schema

	// GroupedBy holds grouping columns already attached to the handle.
	// A later pipeline GroupBy merges with these rather than replacing them.
	GroupedBy []string
}

// NewHandle creates a handle for a table on a backend.
func NewHandle(b Backend, table string, schema Schema) *Handle {
	return &Handle{Backend: b, Table: table, Schema: schema}
}

// GroupBy returns a copy of the handle with the given columns merged into its
// grouping set. The original handle is not modified.
func (h *Handle) GroupBy(cols ...string) *Handle {
	grouped := *h
	grouped.GroupedBy = mergeGroups(h.GroupedBy, cols)
	return &grouped
}

// Result is a materialized per-group summary. It is small (bounded by the
// number of distinct groups) regardless of source size, and owned by the
// caller. Row ordering is backend-defined.
type Result struct {
	Columns []string
	Rows    [][]any
}

// ColumnIndex returns the position of a named column, or -1.
func (r *Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// mergeGroups unions two grouping column lists, dropping duplicates and
// preserving first-seen relative order.
func mergeGroups(existing, requested []string) []string {
	merged := make([]string, 0, len(existing)+len(requested))
	seen := make(map[string]bool, len(existing)+len(requested))
	for _, col := range existing {
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		merged = append(merged, col)
	}
	for _, col := range requested {
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		merged = append(merged, col)
	}
	return merged
}
