// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"errors"
	"io"
	"net"
	"time"
)

// RecvContext is a parsed {header, payload} plus a borrowed reference to the
// owning connection (filters use it to observe peer identity).
type RecvContext struct {
	conn    *Conn
	Payload []byte
	Hdr     Header
}

func (ctx *RecvContext) Session() uint16   { return ctx.Hdr.Session }
func (ctx *RecvContext) RequestID() uint32 { return ctx.Hdr.Meta }
func (ctx *RecvContext) Conn() *Conn       { return ctx.conn }

// parseHeader reads exactly HdrSize bytes. A clean EOF at the frame boundary
// or a closed socket marks the connection eof without latching an error; any
// other read failure, and a zero size or checksum, latches.
func parseHeader(c *Conn) (h Header, ok bool) {
	var b [HdrSize]byte
	if _, err := io.ReadFull(c.rd, b[:]); err != nil {
		c.eof.Store(true)
		if !errors.Is(err, io.EOF) && !isClosedConn(err) {
			c.SetError("error parsing header: " + err.Error())
		}
		return h, false
	}
	h = UnpackHeader(b[:])
	if h.Size == 0 || h.Checksum == 0 {
		c.SetError("invalid header")
		return h, false
	}
	return h, true
}

// parsePayload reads exactly hdr.Size bytes under the recv timeout, verifies
// the checksum, and uncompresses if the header says so. The caller must have
// reserved hdr.Size bytes on the connection's limits beforehand.
func parsePayload(c *Conn, hdr Header) (*RecvContext, bool) {
	if t := c.limits.RecvTimeout(); t > 0 {
		c.sock.SetReadDeadline(time.Now().Add(t))
		defer c.sock.SetReadDeadline(time.Time{})
	}
	payload := make([]byte, hdr.Size)
	if _, err := io.ReadFull(c.rd, payload); err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			c.SetError("recv timeout")
		} else {
			c.eof.Store(true)
			c.SetError("error reading payload: " + err.Error())
		}
		return nil, false
	}
	if PayloadChecksum(payload) != hdr.Checksum {
		c.SetError("invalid payload")
		return nil, false
	}
	if hdr.Compression != CompressNone {
		codec, err := NewCodec(hdr.Compression)
		if err != nil {
			c.SetError("invalid payload: " + err.Error())
			return nil, false
		}
		if payload, err = codec.Uncompress(payload); err != nil {
			c.SetError("invalid payload: " + err.Error())
			return nil, false
		}
		hdr.Compression = CompressNone
		hdr.Size = uint32(len(payload))
	}
	return &RecvContext{conn: c, Payload: payload, Hdr: hdr}, true
}

func isClosedConn(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
