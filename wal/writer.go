// Package wal implements a page-cached, direct-I/O write-ahead log.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package wal

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/squall-rpc/squall/cmn/atomic"
	"github.com/squall-rpc/squall/cmn/cos"
	"github.com/squall-rpc/squall/cmn/nlog"
	"github.com/squall-rpc/squall/rpc"
)

// DfltSegmentSize is 64 MiB, a multiple of every sane DMA alignment.
const DfltSegmentSize = 64 * cos.MiB

const minEntrySize = rpc.HdrSize + 1

type (
	WriterStats struct {
		TotalWrites atomic.Int64
		TotalBytes  atomic.Int64
		TotalRolls  atomic.Int64
	}

	// WriterNode appends framed [header || payload] records to the current
	// segment, rolling to a new epoch file when the segment fills. Appends
	// are serialized; Close cannot interleave with an in-progress write.
	// The active segment carries a locked name until it is cleanly closed;
	// MendDirectory recovers segments a crash left locked.
	WriterNode struct {
		f           *os.File
		w           *bufio.Writer
		onRoll      func(epoch uint64)
		dir         string
		runID       string
		lockedName  string
		epoch       uint64
		segmentSize int64
		currentSize int64
		mu          sync.Mutex
		wstats      WriterStats
	}
)

func NewWriterNode(dir, runID string, epoch uint64, segmentSize int64, onRoll func(uint64)) (*WriterNode, error) {
	if segmentSize == 0 {
		segmentSize = DfltSegmentSize
	}
	if segmentSize < minEntrySize {
		return nil, errors.Errorf("segment size %d smaller than min entry size %d", segmentSize, minEntrySize)
	}
	wn := &WriterNode{
		dir:         dir,
		runID:       runID,
		epoch:       epoch,
		segmentSize: segmentSize,
		onRoll:      onRoll,
	}
	if err := wn.open(); err != nil {
		return nil, err
	}
	return wn, nil
}

func (wn *WriterNode) Stats() *WriterStats { return &wn.wstats }
func (wn *WriterNode) Epoch() uint64       { wn.mu.Lock(); defer wn.mu.Unlock(); return wn.epoch }

func (wn *WriterNode) open() error {
	name := FileName(wn.dir, wn.runID, wn.epoch)
	wn.lockedName = filepath.Join(filepath.Dir(name), lockedPrefix+filepath.Base(name))
	f, err := os.OpenFile(wn.lockedName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open segment %q", wn.lockedName)
	}
	wn.f = f
	wn.w = bufio.NewWriter(f)
	wn.wstats.TotalRolls.Inc()
	if wn.onRoll != nil {
		wn.onRoll(wn.epoch)
	}
	return nil
}

// Append frames one record. Returns the number of bytes written.
func (wn *WriterNode) Append(payload []byte) (int64, error) {
	if len(payload) == 0 {
		return 0, errors.New("empty payload")
	}
	wn.mu.Lock()
	defer wn.mu.Unlock()
	need := int64(rpc.HdrSize + len(payload))
	if wn.currentSize > 0 && wn.currentSize+need > wn.segmentSize {
		if err := wn.rotate(); err != nil {
			return 0, err
		}
	}
	hdr := rpc.Header{
		Size:     uint32(len(payload)),
		Checksum: rpc.PayloadChecksum(payload),
	}
	var b [rpc.HdrSize]byte
	hdr.Pack(b[:])
	if _, err := wn.w.Write(b[:]); err != nil {
		return 0, err
	}
	if _, err := wn.w.Write(payload); err != nil {
		return 0, err
	}
	wn.currentSize += need
	wn.wstats.TotalWrites.Inc()
	wn.wstats.TotalBytes.Add(need)
	return need, nil
}

func (wn *WriterNode) Flush() error {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	return wn.flush()
}

func (wn *WriterNode) flush() error {
	if err := wn.w.Flush(); err != nil {
		return err
	}
	return wn.f.Sync()
}

// rotate seals the current segment and opens the next epoch; the epoch
// advances by the bytes written, so segment names double as offsets.
func (wn *WriterNode) rotate() error {
	nlog.Infof("rotating wal segment %s at epoch %d", wn.runID, wn.epoch)
	if err := wn.seal(); err != nil {
		return err
	}
	wn.epoch += uint64(wn.currentSize)
	wn.currentSize = 0
	return wn.open()
}

// seal flushes, closes, and unlocks the active segment.
func (wn *WriterNode) seal() error {
	if err := wn.flush(); err != nil {
		return err
	}
	if err := wn.f.Close(); err != nil {
		return err
	}
	return os.Rename(wn.lockedName, NameWithoutLock(wn.lockedName))
}

func (wn *WriterNode) Close() error {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	return wn.seal()
}
