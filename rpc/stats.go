// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"time"

	"github.com/squall-rpc/squall/cmn/atomic"
)

// Stats are monotonic counters updated on the serving path and aggregated at
// export time (see stats.Collector).
type Stats struct {
	ActiveConnections atomic.Int64
	TotalConnections  atomic.Int64
	InBytes           atomic.Int64
	OutBytes          atomic.Int64
	BadRequests       atomic.Int64
	NoRouteRequests   atomic.Int64
	CompletedRequests atomic.Int64
	TooLargeRequests  atomic.Int64
}

// Recorder is the borrowed histogram handle: the core only ever records
// durations through it.
type Recorder interface {
	Record(d time.Duration)
}
