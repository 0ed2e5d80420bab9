// Package backend defines the contracts between the boxplot dispatcher and
// the stores that execute its plans, plus the lazy pipeline builder that
// accumulates the plan and triggers exactly one execution.
//
// A Handle is an abstract reference to backend-resident tabular data: it
// carries the engine identity (for dialect detection), a schema, and any
// grouping columns already attached. A Backend executes a plan and returns a
// materialized Result. Nothing in this package talks to a concrete store;
// the sibling packages memtable, sqlstore, and cluster do.
//
// Building pipeline steps never executes anything. Materialize is the single
// point where a backend request happens; everything before it is plan
// construction.
package backend
