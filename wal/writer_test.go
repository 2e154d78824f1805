// Package wal implements a page-cached, direct-I/O write-ahead log.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package wal

import (
	"bytes"
	"os"
	"testing"

	"github.com/squall-rpc/squall/rpc"
	"github.com/squall-rpc/squall/tools/tassert"
)

func openCacheFor(t *testing.T, path string) *PageCache {
	t.Helper()
	f, err := os.Open(path)
	tassert.CheckFatal(t, err)
	t.Cleanup(func() { f.Close() })
	fi, err := f.Stat()
	tassert.CheckFatal(t, err)
	return NewPageCache(f, fi.Size(), 0, 4096)
}

func TestWriteReadRoundTrip(t *testing.T) {
	var (
		dir      = t.TempDir()
		payloads = [][]byte{
			[]byte("alpha"),
			bytes.Repeat([]byte("bravo-"), 100),
			[]byte("charlie"),
		}
	)
	wn, err := NewWriterNode(dir, "run", 0, 0, nil)
	tassert.CheckFatal(t, err)
	for _, p := range payloads {
		_, err := wn.Append(p)
		tassert.CheckFatal(t, err)
	}
	tassert.CheckFatal(t, wn.Close())
	tassert.Errorf(t, wn.Stats().TotalWrites.Load() == 3, "total writes")

	pc := openCacheFor(t, FileName(dir, "run", 0))
	reply, err := pc.Read(ReadRequest{Offset: 0, MaxSize: 1 << 20})
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, len(reply.Gets) == 3, "records %d", len(reply.Gets))
	for i, rec := range reply.Gets {
		tassert.Errorf(t, bytes.Equal(rec.Payload, payloads[i]), "record %d differs", i)
		tassert.Errorf(t, rec.Hdr.Checksum == rpc.PayloadChecksum(rec.Payload), "record %d checksum", i)
	}
}

func TestReadStopsAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	wn, err := NewWriterNode(dir, "run", 0, 0, nil)
	tassert.CheckFatal(t, err)
	for i := 0; i < 4; i++ {
		_, err := wn.Append([]byte("0123456789"))
		tassert.CheckFatal(t, err)
	}
	tassert.CheckFatal(t, wn.Close())

	pc := openCacheFor(t, FileName(dir, "run", 0))
	reply, err := pc.Read(ReadRequest{Offset: 0, MaxSize: rpc.HdrSize + 10})
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, len(reply.Gets) == 1, "records %d", len(reply.Gets))
}

func TestWriterRotation(t *testing.T) {
	var (
		dir    = t.TempDir()
		epochs []uint64
	)
	// each record needs 16+40 = 56 bytes; two cannot share a 64-byte segment
	wn, err := NewWriterNode(dir, "run", 0, 64, func(e uint64) { epochs = append(epochs, e) })
	tassert.CheckFatal(t, err)
	payload := bytes.Repeat([]byte("x"), 40)
	for i := 0; i < 3; i++ {
		_, err := wn.Append(payload)
		tassert.CheckFatal(t, err)
	}
	tassert.CheckFatal(t, wn.Close())
	tassert.Errorf(t, wn.Stats().TotalRolls.Load() == 3, "rolls %d", wn.Stats().TotalRolls.Load())
	tassert.Fatalf(t, len(epochs) == 3, "epoch callbacks %d", len(epochs))
	tassert.Errorf(t, epochs[0] == 0 && epochs[1] == 56 && epochs[2] == 112, "epochs %v", epochs)

	for _, epoch := range epochs {
		name := FileName(dir, "run", epoch)
		if _, err := os.Stat(name); err != nil {
			t.Errorf("segment %q missing: %v", name, err)
		}
		got, err := ExtractEpoch(name)
		tassert.CheckError(t, err)
		tassert.Errorf(t, got == epoch, "extracted %d, want %d", got, epoch)
	}
}

func TestWriterRejectsBadArgs(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewWriterNode(dir, "run", 0, 8 /*< min entry*/, nil); err == nil {
		t.Error("tiny segment size accepted")
	}
	wn, err := NewWriterNode(dir, "run", 0, 0, nil)
	tassert.CheckFatal(t, err)
	defer wn.Close()
	if _, err := wn.Append(nil); err == nil {
		t.Error("empty payload accepted")
	}
}
