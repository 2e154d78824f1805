// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

// Filters are uniform capabilities composed sequentially: filter i+1 sees
// the output of filter i, and the first failure aborts the chain. Both the
// client and the server hold one ingress and one egress pipeline, registered
// before start and immutable thereafter. Filters may mutate headers
// (including the compression flag) and payload bytes freely.
type (
	RecvFilter func(*RecvContext) error
	SendFilter func(*Envelope) error
)

func applyRecvFilters(filters []RecvFilter, ctx *RecvContext) error {
	for _, f := range filters {
		if err := f(ctx); err != nil {
			return err
		}
	}
	return nil
}

func applySendFilters(filters []SendFilter, e *Envelope) error {
	for _, f := range filters {
		if err := f(e); err != nil {
			return err
		}
	}
	return nil
}

// CompressFilter compresses outgoing payloads of at least minSize bytes and
// stamps the header; the wire decoder on the peer undoes it after checksum
// verification.
func CompressFilter(ctyp uint8, minSize int) SendFilter {
	codec, err := NewCodec(ctyp)
	return func(e *Envelope) error {
		if err != nil {
			return err
		}
		if len(e.Payload) < minSize || e.Hdr.Compression != CompressNone {
			return nil
		}
		compressed, cerr := codec.Compress(e.Payload)
		if cerr != nil {
			return cerr
		}
		e.Payload = compressed
		e.Hdr.Compression = ctyp
		return nil
	}
}
