// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/squall-rpc/squall/cmn"
)

// Limits is the per-connection admission-control state: an inflight-byte
// semaphore whose permits are bytes, the reservation arithmetic, and the
// payload-read timeout.
type Limits struct {
	sem         *semaphore.Weighted
	memAvail    int64
	basicReq    int64
	maxPayload  int64
	bloatMult   float64
	recvTimeout time.Duration
}

func NewLimits(basicReq int64, bloatMult float64, memAvail, maxPayload int64, recvTimeout time.Duration) *Limits {
	return &Limits{
		sem:         semaphore.NewWeighted(memAvail),
		memAvail:    memAvail,
		basicReq:    basicReq,
		maxPayload:  maxPayload,
		bloatMult:   bloatMult,
		recvTimeout: recvTimeout,
	}
}

func serverLimits(args *cmn.ServerArgs) *Limits {
	return NewLimits(args.BasicReqSize, args.BloatMult, args.MemoryAvail, args.MaxPayloadSize, args.RecvTimeout.D())
}

func clientLimits(args *cmn.ClientArgs) *Limits {
	return NewLimits(args.BasicReqSize, args.BloatMult, args.MemoryAvail, args.MaxPayloadSize, args.RecvTimeout.D())
}

// EstimateRequestSize accounts for allocator fragmentation and framing costs:
// max(n, basicReq) * bloatMult.
func (l *Limits) EstimateRequestSize(n int64) int64 {
	if n < l.basicReq {
		n = l.basicReq
	}
	return int64(float64(n) * l.bloatMult)
}

// Reserve acquires n byte-permits, capped at the total budget so that a
// single legal-but-huge request can still be admitted. Returns the amount
// actually reserved; pass it to Release.
func (l *Limits) Reserve(ctx context.Context, n int64) (int64, error) {
	if n > l.memAvail {
		n = l.memAvail
	}
	if err := l.sem.Acquire(ctx, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (l *Limits) Release(n int64) { l.sem.Release(n) }

func (l *Limits) MaxPayload() int64        { return l.maxPayload }
func (l *Limits) RecvTimeout() time.Duration { return l.recvTimeout }
