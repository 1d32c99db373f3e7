// Package pipeline implements the pipelining engine of spec.md §4.I: N
// pre-bound requests are split into groups of K (or one group of N); each
// group is written back-to-back ending in one Sync, and its responses are
// read and demultiplexed into request order before the next group is
// written. Requests of different groups never share a write.
//
// Grounded on lib/pq's batch statement helpers
// (other_examples/aa285d74_lib-pq__copy_test.go.go shows the sibling COPY
// batching idiom) and on spec.md §4.I directly for the pipelining
// protocol itself, since the retrieval pack carries no standalone
// pipelining engine; the demultiplexing loop follows the same
// read-until-ReadyForQuery shape as pgconn's query execution.
package pipeline

import (
	"context"

	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/pgconn"
)

// Request is one pipelined operation: a statement (raw SQL or *ir.Command)
// plus its bound parameters.
type Request struct {
	Stmt   any
	Params []ir.Value
}

// Result is one request's outcome, carried alongside its original index
// so the caller can correlate it back to Requests[i] even though results
// are already delivered in request order.
type Result struct {
	Index int
	Rows  *pgconn.Rows
	Err   error
}

// Run executes requests on conn pipelined with a Sync every syncEvery
// requests (syncEvery<=0 means a single trailing Sync), per spec.md
// §4.I. On the first ErrorResponse it returns the results of the requests
// that completed before it, followed by the failing request's Result
// (whose Err is set), plus that error. Later requests of the same group
// are skipped by the server and later groups are never sent; neither
// appears in the returned slice.
func Run(ctx context.Context, conn *pgconn.Connection, requests []Request, syncEvery int) ([]Result, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	if syncEvery <= 0 {
		syncEvery = len(requests)
	}

	results := make([]Result, 0, len(requests))
	for start := 0; start < len(requests); start += syncEvery {
		end := start + syncEvery
		if end > len(requests) {
			end = len(requests)
		}
		batch := requests[start:end]
		batchResults, err := conn.PipelineBatch(ctx, toPgconnRequests(batch))
		for i, r := range batchResults {
			results = append(results, Result{Index: start + i, Rows: r.Rows, Err: r.Err})
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func toPgconnRequests(reqs []Request) []pgconn.PipelineRequest {
	out := make([]pgconn.PipelineRequest, len(reqs))
	for i, r := range reqs {
		out[i] = pgconn.PipelineRequest{Stmt: r.Stmt, Params: r.Params}
	}
	return out
}

// CollectErr reduces a Result slice to the first error encountered, or
// nil if every request succeeded.
func CollectErr(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
