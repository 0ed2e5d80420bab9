// Package cluster models a distributed-compute backend in process: rows are
// partitioned across shards, each shard computes partial per-group states,
// and a coordinator merges them. Quantiles come from a merged fixed-bin
// histogram, so they are approximate - the estimate is off from the exact
// quantile by at most one bin width of the group's value range. That trade
// is the point of the dialect: acceptable for visualization, not for exact
// statistical reporting.
package cluster

import (
	"github.com/datawhisker/boxstat/internal/backend"
	"github.com/datawhisker/boxstat/internal/backend/memtable"
)

// EngineName is the identity the cluster reports for dialect detection.
const EngineName = "cluster"

// DefaultBins is the histogram resolution used unless the caller overrides it.
const DefaultBins = 128

// shard holds one partition of the source rows in column form.
type shard struct {
	labels  map[string][]string
	numbers map[string][]float64
	n       int
}

// Engine is the coordinator over a set of shards holding one relation.
type Engine struct {
	table  string
	schema backend.Schema
	cols   []string
	shards []*shard
	bins   int
}

// Partition distributes a local table round-robin across the given number of
// shards. It exists so tests and the CLI can stand up a cluster from the same
// fixtures the other backends use.
func Partition(t *memtable.Table, shardCount, bins int) *Engine {
	if shardCount < 1 {
		shardCount = 1
	}
	if bins < 1 {
		bins = DefaultBins
	}

	schema := t.Schema()
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{
			labels:  map[string][]string{},
			numbers: map[string][]float64{},
		}
	}

	for i := 0; i < t.Len(); i++ {
		s := shards[i%shardCount]
		for _, col := range t.Columns() {
			if vs, ok := t.NumberColumn(col); ok {
				s.numbers[col] = append(s.numbers[col], vs[i])
			} else if vs, ok := t.LabelColumn(col); ok {
				s.labels[col] = append(s.labels[col], vs[i])
			}
		}
		s.n++
	}

	return &Engine{
		table:  t.Name(),
		schema: schema,
		cols:   t.Columns(),
		shards: shards,
		bins:   bins,
	}
}

// Handle returns a backend handle for the sharded relation.
func (e *Engine) Handle() *backend.Handle {
	return backend.NewHandle(e, e.table, e.schema)
}

// Engine implements backend.Backend.
func (e *Engine) Engine() string { return EngineName }

// QuantileMethod implements backend.Backend.
func (e *Engine) QuantileMethod() string {
	return "approximate, merged fixed-bin histogram (error within one bin width)"
}

// Shards returns the number of partitions.
func (e *Engine) Shards() int { return len(e.shards) }
