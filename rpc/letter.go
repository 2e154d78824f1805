// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"bufio"

	"github.com/squall-rpc/squall/cmn/debug"
)

type (
	// Letter is a {header, payload} pair prior to or after wire serialization.
	Letter struct {
		Payload []byte
		Hdr     Header
	}

	// Envelope is the send-side unit: a letter plus routing metadata.
	Envelope struct {
		Letter
		RequestID uint32
	}
)

func NewEnvelope(requestID uint32, payload []byte) *Envelope {
	e := &Envelope{RequestID: requestID}
	e.Payload = payload
	return e
}

// Reply builds the envelope a handler returns; the server stamps the session.
func Reply(payload []byte) *Envelope {
	return &Envelope{Letter: Letter{Payload: payload}}
}

func (e *Envelope) SetOneway() { e.Hdr.Bitflags |= FlagOneway }

// finalize transitions the letter structured -> binary: checksum and size are
// computed over the payload exactly as it will appear on the wire.
func (e *Envelope) finalize() {
	debug.Assert(len(e.Payload) > 0)
	e.Hdr.Size = uint32(len(e.Payload))
	e.Hdr.Checksum = PayloadChecksum(e.Payload)
	e.Hdr.Meta = e.RequestID
}

// serialize frames the letter onto w; flushing is left to the caller.
func serialize(w *bufio.Writer, e *Envelope) error {
	e.finalize()
	var b [HdrSize]byte
	e.Hdr.Pack(b[:])
	if _, err := w.Write(b[:]); err != nil {
		return err
	}
	_, err := w.Write(e.Payload)
	return err
}
