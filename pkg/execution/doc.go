// Package execution is the root of parajoin's query execution engine.
//
// Queries run as a small tree of operators over in-memory columnar
// relations. Unlike a volcano pipeline, every operator materializes its
// whole output: Run executes the children first, then the operator's own
// algorithm, and leaves the result as a set of uint64 columns of equal
// length.
//
// Columns are requested top-down before anything runs. A parent calls
// Require on its children for every column it will need; each operator
// keeps only those columns, so a column that is scanned but never selected
// or joined on is never copied.
//
// # Sub-packages
//
//   - [parajoin/pkg/execution/scanner]     – Scan and FilterScan leaves.
//   - [parajoin/pkg/execution/join]        – parallel equality hash Join and
//     SelfJoin.
//   - [parajoin/pkg/execution/aggregation] – Checksum, the parallel column
//     sum at the root of every query.
//
// # Parallelism
//
// Per-row work is split into blocks with an [parajoin/pkg/engine.Pool]. Each block
// writes only into storage it owns (a private buffer or a precomputed
// output range), and block results are combined in block order after the
// barrier, so output order only depends on the partition.
package execution
