// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v3"
)

// Header.Compression
const (
	CompressNone uint8 = iota
	CompressLZ4
	CompressZstd
)

// Codec compresses and uncompresses payload bytes. Compression happens
// before checksumming on encode; decompression after checksum verification
// on decode.
type Codec interface {
	Type() uint8
	Compress(b []byte) ([]byte, error)
	Uncompress(b []byte) ([]byte, error)
}

func NewCodec(typ uint8) (Codec, error) {
	switch typ {
	case CompressLZ4:
		return lz4Codec{}, nil
	case CompressZstd:
		return zstdCodec{}, nil
	}
	return nil, fmt.Errorf("unknown compression codec %d", typ)
}

//
// lz4 (frame format)
//

type lz4Codec struct{}

func (lz4Codec) Type() uint8 { return CompressLZ4 }

func (lz4Codec) Compress(b []byte) ([]byte, error) {
	var bb bytes.Buffer
	zw := lz4.NewWriter(&bb)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return bb.Bytes(), nil
}

func (lz4Codec) Uncompress(b []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(b))
	return io.ReadAll(zr)
}

//
// zstd
//

type zstdCodec struct{}

var (
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdOnce sync.Once
)

func zstdInit() {
	zstdOnce.Do(func() {
		zstdEnc, _ = zstd.NewWriter(nil)
		zstdDec, _ = zstd.NewReader(nil)
	})
}

func (zstdCodec) Type() uint8 { return CompressZstd }

func (zstdCodec) Compress(b []byte) ([]byte, error) {
	zstdInit()
	return zstdEnc.EncodeAll(b, nil), nil
}

func (zstdCodec) Uncompress(b []byte) ([]byte, error) {
	zstdInit()
	return zstdDec.DecodeAll(b, nil)
}
