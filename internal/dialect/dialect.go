// Package dialect identifies which aggregation dialect a backend speaks and
// therefore which quantile strategy applies to it.
//
// Detection is total: every engine identifier maps to exactly one dialect,
// and identifiers with no profile fall back to Generic. The fallback is a
// documented limitation, not a guarantee - an engine that does not actually
// support the generic quantile syntax will reject it at execution time, and
// that rejection is surfaced unmodified.
package dialect

import "fmt"

// Dialect is the closed set of aggregation dialects.
type Dialect int

const (
	// Generic assumes an exact aggregate-level quantile function is
	// available. True for the in-memory backend and most SQL engines with
	// native percentile support.
	Generic Dialect = iota

	// DistributedCompute engines trade exactness for scale: quantiles are
	// approximate, which is acceptable for visualization but not for exact
	// statistical reporting.
	DistributedCompute

	// RestrictedSQL engines lack aggregate-level quantile functions and
	// need the two-phase rewrite: quantiles attached row-wise via window
	// functions, then collapsed to one row per group by a distinct step.
	RestrictedSQL
)

// String returns the profile-file spelling of the dialect.
func (d Dialect) String() string {
	switch d {
	case Generic:
		return "generic"
	case DistributedCompute:
		return "distributed_compute"
	case RestrictedSQL:
		return "restricted_sql"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// Parse converts a profile-file spelling back to a Dialect.
func Parse(s string) (Dialect, error) {
	switch s {
	case "generic":
		return Generic, nil
	case "distributed_compute":
		return DistributedCompute, nil
	case "restricted_sql":
		return RestrictedSQL, nil
	default:
		return Generic, fmt.Errorf("unknown dialect %q", s)
	}
}

// Profiles maps engine identifiers to dialects.
type Profiles map[string]Dialect

// DefaultProfiles returns the built-in engine mappings. Engines not listed
// here detect as Generic.
func DefaultProfiles() Profiles {
	return Profiles{
		"memtable":  Generic,
		"postgres":  Generic,
		"duckdb":    Generic,
		"cluster":   DistributedCompute,
		"spark":     DistributedCompute,
		"mssql":     RestrictedSQL,
		"sqlserver": RestrictedSQL,
	}
}

// Detect returns the dialect for an engine identifier. Detection is total:
// unknown engines fall back to Generic.
func (p Profiles) Detect(engine string) Dialect {
	if d, ok := p[engine]; ok {
		return d
	}
	return Generic
}
