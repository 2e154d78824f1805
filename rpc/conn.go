// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"bufio"
	"net"
	"sync"

	"github.com/squall-rpc/squall/cmn/atomic"
	"github.com/squall-rpc/squall/cmn/nlog"
)

// Conn owns a socket's two halves plus the per-connection limits, the
// set-once error latch, and the enabled flag. The write mutex serializes
// outbound framing; the reader side is single-goroutine by construction.
type Conn struct {
	sock   net.Conn
	rd     *bufio.Reader
	wr     *bufio.Writer
	limits *Limits

	wmu sync.Mutex // single-writer: at most one outbound frame at a time

	pending sync.WaitGroup // dispatches still holding this connection

	emu    sync.Mutex
	errMsg string

	id      int64
	remote  string
	enabled atomic.Bool
	eof     atomic.Bool
}

func newConn(sock net.Conn, id int64, limits *Limits) *Conn {
	c := &Conn{
		sock:   sock,
		rd:     bufio.NewReader(sock),
		wr:     bufio.NewWriter(sock),
		limits: limits,
		id:     id,
		remote: sock.RemoteAddr().String(),
	}
	c.enabled.Store(true)
	return c
}

func (c *Conn) IsValid() bool {
	return !c.eof.Load() && !c.HasError() && c.enabled.Load()
}

func (c *Conn) Disable()      { c.enabled.Store(false) }
func (c *Conn) Remote() string { return c.remote }
func (c *Conn) ID() int64     { return c.id }

// SetError latches the connection error; the first call wins.
func (c *Conn) SetError(msg string) {
	c.emu.Lock()
	if c.errMsg == "" {
		c.errMsg = msg
		nlog.Errorf("conn %d (%s): %s", c.id, c.remote, msg)
	}
	c.emu.Unlock()
}

func (c *Conn) HasError() bool {
	c.emu.Lock()
	defer c.emu.Unlock()
	return c.errMsg != ""
}

func (c *Conn) Err() string {
	c.emu.Lock()
	defer c.emu.Unlock()
	return c.errMsg
}

// CloseRead shuts down the read half so the reader loop exits naturally.
func (c *Conn) CloseRead() {
	type rcloser interface{ CloseRead() error }
	if tc, ok := c.sock.(rcloser); ok {
		tc.CloseRead()
	} else {
		c.sock.Close()
	}
}

// CloseWrite shuts down the output stream (handler-error path).
func (c *Conn) CloseWrite() {
	type wcloser interface{ CloseWrite() error }
	c.wmu.Lock()
	c.wr.Flush()
	if tc, ok := c.sock.(wcloser); ok {
		tc.CloseWrite()
	}
	c.wmu.Unlock()
}

func (c *Conn) Close() error { return c.sock.Close() }
