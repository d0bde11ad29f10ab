// Package engine is the data-parallel execution primitive shared by every
// operator of every query.
//
// A Pool owns a fixed number of worker goroutines. Operators split a row
// range into contiguous blocks with NewBlockInfo and hand one task per
// block to ParallelFor, which returns only after every block finished.
// Blocks are numbered by rank, so callers keep per-block results in a slice
// indexed by rank and merge them in rank order after the barrier.
//
// Tasks must not submit to the pool and wait on the result themselves:
// with a fixed worker count that can deadlock. Callers that want nested
// parallelism (several columns, each reduced in parallel) start plain
// goroutines that submit and wait, as aggregation.Checksum does.
package engine
