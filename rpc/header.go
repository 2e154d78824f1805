// Package rpc implements the squall request/response transport: a length-prefixed,
// checksum-validated, filter-pipelined client/server engine over TCP.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/OneOfOne/xxhash"
)

// wire header, little-endian, packed:
//
//	| compression(1) | bitflags(1) | session(2) | size(4) | checksum(4) | meta(4) |
//
// `size` and `checksum` cover the payload only. `meta` carries the request id
// on requests; replies echo whatever the egress path stamped (zero by default).
const HdrSize = 16

// Header.Bitflags
const (
	FlagOneway uint8 = 1 << iota
)

type Header struct {
	Compression uint8
	Bitflags    uint8
	Session     uint16
	Size        uint32
	Checksum    uint32
	Meta        uint32
}

// Pack writes the header into b (len(b) >= HdrSize), little-endian, packed.
func (h *Header) Pack(b []byte) {
	_ = b[HdrSize-1]
	b[0] = h.Compression
	b[1] = h.Bitflags
	binary.LittleEndian.PutUint16(b[2:], h.Session)
	binary.LittleEndian.PutUint32(b[4:], h.Size)
	binary.LittleEndian.PutUint32(b[8:], h.Checksum)
	binary.LittleEndian.PutUint32(b[12:], h.Meta)
}

func UnpackHeader(b []byte) (h Header) {
	_ = b[HdrSize-1]
	h.Compression = b[0]
	h.Bitflags = b[1]
	h.Session = binary.LittleEndian.Uint16(b[2:])
	h.Size = binary.LittleEndian.Uint32(b[4:])
	h.Checksum = binary.LittleEndian.Uint32(b[8:])
	h.Meta = binary.LittleEndian.Uint32(b[12:])
	return
}

func (h *Header) IsOneway() bool { return h.Bitflags&FlagOneway != 0 }

// PayloadChecksum is the one checksum used on the wire and in the WAL.
func PayloadChecksum(payload []byte) uint32 { return xxhash.Checksum32(payload) }

// RequestID identifies a (service, method) pair: both halves are CRC-32 of
// the respective name strings.
func RequestID(service, method string) uint32 {
	return crc32.ChecksumIEEE([]byte(service)) ^ crc32.ChecksumIEEE([]byte(method))
}
