// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"context"
	"net"
	"sync"

	"github.com/squall-rpc/squall/cmn"
	"github.com/squall-rpc/squall/cmn/atomic"
	"github.com/squall-rpc/squall/cmn/debug"
	"github.com/squall-rpc/squall/cmn/mono"
	"github.com/squall-rpc/squall/cmn/nlog"
)

const maxInflight = 1<<16 - 1 // session id is uint16 on the wire

type (
	// Client issues requests over a single connection, correlating responses
	// by session id. Safe for concurrent Send calls; the reader loop is one
	// goroutine started by Connect.
	Client struct {
		args       cmn.ClientArgs
		limits     *Limits
		conn       *Conn
		rec        Recorder // optional RTT histogram handle
		inFilters  []RecvFilter
		outFilters []SendFilter

		mu         sync.Mutex
		slots      map[uint16]*slot
		oneways    map[uint16]struct{} // replies to drop, not protocol errors
		readerDone bool

		sessionIdx atomic.Uint64 // truncated to uint16 when stamped
		wg         sync.WaitGroup
	}

	// pending-request slot: inserted on send, removed when the matching
	// response arrives or on connection teardown
	slot struct {
		ch      chan slotResult
		session uint16
	}
	slotResult struct {
		ctx *RecvContext
		err error
	}
)

func NewClient(args cmn.ClientArgs) (*Client, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		args:    args,
		limits:  clientLimits(&args),
		slots:   make(map[uint16]*slot, 8),
		oneways: make(map[uint16]struct{}, 8),
	}, nil
}

// AppendRecvFilter and AppendSendFilter register pipeline stages; call
// before Connect - the pipelines are immutable afterwards.
func (c *Client) AppendRecvFilter(f RecvFilter) { c.inFilters = append(c.inFilters, f) }
func (c *Client) AppendSendFilter(f SendFilter) { c.outFilters = append(c.outFilters, f) }

// EnableHistogram attaches an RTT recorder (borrowed, not owned).
func (c *Client) EnableHistogram(rec Recorder) { c.rec = rec }

func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return ErrAlreadyConnected
	}
	var d net.Dialer
	sock, err := d.DialContext(ctx, "tcp", c.args.ServerAddr)
	if err != nil {
		return err
	}
	c.conn = newConn(sock, 0, c.limits)
	c.wg.Add(1)
	go c.doReads()
	return nil
}

// Send frames the envelope onto the wire and waits for the correlated
// response. Oneway envelopes return (nil, nil) as soon as the write is
// dispatched. Concurrent senders pipeline on the single connection; the
// write mutex and the byte budget order them.
func (c *Client) Send(ctx context.Context, e *Envelope) (*RecvContext, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if c.conn.HasError() {
		return nil, ErrErrorState
	}
	var started int64
	if c.rec != nil {
		started = mono.NanoTime()
	}
	oneway := e.Hdr.IsOneway()
	sess, sl, err := c.allocSession(oneway)
	if err != nil {
		return nil, err
	}
	e.Hdr.Session = sess

	if err := applySendFilters(c.outFilters, e); err != nil {
		c.eraseSession(sess)
		return nil, err
	}
	if err := c.dispatchWrite(ctx, e); err != nil {
		c.eraseSession(sess)
		return nil, err
	}
	if oneway {
		return nil, nil
	}

	select {
	case res := <-sl.ch:
		if res.err != nil {
			return nil, res.err
		}
		if c.rec != nil {
			c.rec.Record(mono.Since(started))
		}
		return res.ctx, nil
	case <-ctx.Done():
		c.abandonWait(sess)
		return nil, ctx.Err()
	}
}

// abandonWait converts an awaiting slot into a drop-on-arrival record so
// that the late reply is not mistaken for a session violation.
func (c *Client) abandonWait(sess uint16) {
	c.mu.Lock()
	if _, ok := c.slots[sess]; ok {
		delete(c.slots, sess)
		c.oneways[sess] = struct{}{}
	}
	c.mu.Unlock()
}

// Stop shuts down the read half; in-flight futures either complete (if the
// response was already parsed) or are abandoned with the connection error.
func (c *Client) Stop() {
	if c.conn == nil {
		return
	}
	c.conn.Disable()
	c.conn.CloseRead()
	c.wg.Wait()
	c.conn.Close()
}

// allocSession assigns the next free session id from the monotonic counter.
// Reuse is permitted only after wraparound; no two in-flight requests may
// share an id.
func (c *Client) allocSession(oneway bool) (uint16, *slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readerDone {
		return 0, nil, ErrErrorState
	}
	if len(c.slots)+len(c.oneways) >= maxInflight {
		return 0, nil, ErrTooManyInflight
	}
	var sess uint16
	for {
		sess = uint16(c.sessionIdx.Inc())
		if _, busy := c.slots[sess]; busy {
			continue
		}
		if _, busy := c.oneways[sess]; busy {
			continue
		}
		break
	}
	if oneway {
		c.oneways[sess] = struct{}{}
		return sess, nil, nil
	}
	sl := &slot{session: sess, ch: make(chan slotResult, 1)}
	c.slots[sess] = sl
	return sess, sl, nil
}

func (c *Client) eraseSession(sess uint16) {
	c.mu.Lock()
	delete(c.slots, sess)
	delete(c.oneways, sess)
	c.mu.Unlock()
}

// dispatchWrite serializes the frame under the single-writer mutex and the
// inflight-byte budget. Stream errors latch the connection, they do not
// panic the caller.
func (c *Client) dispatchWrite(ctx context.Context, e *Envelope) error {
	reserve := c.limits.EstimateRequestSize(int64(len(e.Payload)))
	c.conn.wmu.Lock()
	defer c.conn.wmu.Unlock()
	got, err := c.limits.Reserve(ctx, reserve)
	if err != nil {
		return err
	}
	defer c.limits.Release(got)
	err = serialize(c.conn.wr, e)
	if err == nil {
		err = c.conn.wr.Flush()
	}
	if err != nil {
		nlog.Errorf("error sending data: %v", err)
		c.conn.SetError("error sending data")
		return ErrErrorState
	}
	return nil
}

func (c *Client) doReads() {
	defer c.wg.Done()
	conn := c.conn
	for conn.IsValid() {
		hdr, ok := parseHeader(conn)
		if !ok {
			break
		}
		if int64(hdr.Size) > c.limits.MaxPayload() {
			conn.SetError("oversize")
			break
		}
		reserved, err := c.limits.Reserve(context.Background(), int64(hdr.Size))
		if err != nil {
			break
		}
		ctx, ok := parsePayload(conn, hdr)
		c.limits.Release(reserved)
		if !ok {
			break
		}
		if err := applyRecvFilters(c.inFilters, ctx); err != nil {
			conn.SetError("ingress filter: " + err.Error())
			break
		}
		if !c.resolve(ctx) {
			break
		}
	}
	c.failPending()
}

// resolve completes the pending slot for ctx.Session. A response with no
// slot and no oneway record means the server broke the session contract.
func (c *Client) resolve(ctx *RecvContext) bool {
	sess := ctx.Session()
	c.mu.Lock()
	if sl, ok := c.slots[sess]; ok {
		delete(c.slots, sess)
		c.mu.Unlock()
		debug.Assert(sl.session == sess)
		sl.ch <- slotResult{ctx: ctx}
		return true
	}
	if _, ok := c.oneways[sess]; ok {
		delete(c.oneways, sess)
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()
	c.conn.SetError("unknown session")
	return false
}

func (c *Client) failPending() {
	errMsg := c.conn.Err()
	if errMsg == "" {
		errMsg = "connection closed"
	}
	c.mu.Lock()
	c.readerDone = true
	n := len(c.slots)
	for sess, sl := range c.slots {
		delete(c.slots, sess)
		sl.ch <- slotResult{err: &ErrConnection{What: errMsg}}
	}
	for sess := range c.oneways {
		delete(c.oneways, sess)
	}
	c.mu.Unlock()
	if n > 0 {
		nlog.Errorf("failing %d enqueued reads: %s", n, errMsg)
	}
}
