// Package plan defines the backend-neutral aggregation plan that the
// dispatcher builds and every backend interprets.
//
// A Plan describes one grouped boxplot summary as declarative data:
//   - Source: the table the backend resolves rows from
//   - GroupBy: the final grouping columns (caller grouping already merged in)
//   - Summary: the six summary fields (n, lower, middle, upper, max_raw,
//     min_raw), either as aggregate calls or as row-level window calls that a
//     later distinct step collapses
//   - Derived: fence arithmetic appended by the post-processor, expressed with
//     operators every backend supports (binary arithmetic and a conditional
//     clamp)
//
// Plans carry no behavior. Each backend compiles or evaluates the plan in its
// own dialect; plan types are sealed so backend type switches stay exhaustive.
package plan
