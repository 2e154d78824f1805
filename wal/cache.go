// Package wal implements a page-cached, direct-I/O write-ahead log.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package wal

import (
	"errors"
	"io"
	"os"
	"sync"
	"unsafe"

	"github.com/squall-rpc/squall/cmn/atomic"
	"github.com/squall-rpc/squall/cmn/cos"
	"github.com/squall-rpc/squall/cmn/debug"
	"github.com/squall-rpc/squall/rpc"
)

// DfltDMAAlignment is the typical block size at which a file supports
// direct I/O.
const DfltDMAAlignment = 4096

var (
	ErrOutOfRange  = errors.New("request past the end of the log")
	ErrBadHeader   = errors.New("could not read record header")
	ErrBadChecksum = errors.New("record checksum mismatch")
)

type (
	// ReadRequest asks for framed records starting at Offset until the
	// accumulated reply reaches MaxSize bytes.
	ReadRequest struct {
		Offset  int64
		MaxSize int64
	}
	Record struct {
		Payload []byte
		Hdr     rpc.Header
	}
	ReadReply struct {
		Gets []Record
	}

	CacheStats struct {
		Hits     atomic.Int64
		Misses   atomic.Int64
		DMAReads atomic.Int64
	}

	// PageCache reads a log file through a CLOCK-Pro cache of DMA-aligned
	// pages. Page p maps to file offset p*alignment; a miss issues exactly
	// one aligned read of one page.
	PageCache struct {
		f         *os.File
		cache     *clockPro
		mu        sync.Mutex
		fileSize  int64
		alignment int64
		numPages  uint32
		cstats    CacheStats
	}
)

func (r *ReadReply) size() (n int64) {
	for i := range r.Gets {
		n += rpc.HdrSize + int64(len(r.Gets[i].Payload))
	}
	return
}

func numPages(fileSize, alignment int64) uint32 {
	return uint32(cos.DivCeil(fileSize, alignment))
}

// NewPageCache wraps an open file. initialSize comes from the caller's stat;
// maxPages bounds residency (clamped to the number of pages in the file).
func NewPageCache(f *os.File, initialSize int64, maxPages int, alignment int64) *PageCache {
	if alignment <= 0 {
		alignment = DfltDMAAlignment
	}
	pages := numPages(initialSize, alignment)
	if maxPages <= 0 || maxPages > int(pages) {
		maxPages = int(pages)
	}
	return &PageCache{
		f:         f,
		cache:     newClockPro(maxPages),
		fileSize:  initialSize,
		alignment: alignment,
		numPages:  pages,
	}
}

// UpdateFileSizeBy recomputes the page count after the writer appended;
// avoids a stat per read.
func (pc *PageCache) UpdateFileSizeBy(delta int64) {
	pc.mu.Lock()
	pc.fileSize += delta
	pc.numPages = numPages(pc.fileSize, pc.alignment)
	pc.mu.Unlock()
}

func (pc *PageCache) FileSize() int64     { pc.mu.Lock(); defer pc.mu.Unlock(); return pc.fileSize }
func (pc *PageCache) NumPages() uint32    { pc.mu.Lock(); defer pc.mu.Unlock(); return pc.numPages }
func (pc *PageCache) Alignment() int64    { return pc.alignment }
func (pc *PageCache) Stats() *CacheStats  { return &pc.cstats }

func (pc *PageCache) Close() error { return pc.f.Close() }

// getPage runs the cache protocol: hit, pre-fill admission while there is
// residency headroom, or the two hands followed by admission.
func (pc *PageCache) getPage(page uint32) (*chunk, error) {
	if ck := pc.cache.get(page); ck != nil {
		pc.cstats.Hits.Inc()
		return ck, nil
	}
	pc.cstats.Misses.Inc()
	// fill up before the eviction algorithm kicks in; letting the hands run
	// during warmup thrashes between the first couple of pages
	if pc.cache.resident() >= pc.cache.maxResident {
		if !pc.cache.runColdHand() {
			pc.cache.runHotHand()
			pc.cache.runColdHand()
		} else {
			pc.cache.runHotHand()
		}
		pc.cache.fixHands()
	}
	ck, err := pc.fetchPage(page)
	if err != nil {
		return nil, err
	}
	pc.cache.set(ck)
	return ck, nil
}

// fetchPage issues one aligned read of exactly one page.
func (pc *PageCache) fetchPage(page uint32) (*chunk, error) {
	var (
		off = int64(page) * pc.alignment
		buf = alignedAlloc(pc.alignment)
	)
	n, err := pc.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n == 0 {
		return nil, ErrOutOfRange
	}
	pc.cstats.DMAReads.Inc()
	debug.Assert(int64(n) <= pc.alignment)
	return &chunk{page: page, buf: buf, size: uint32(n)}, nil
}

// ReadExactly copies size bytes starting at offset into a single buffer,
// fetching every straddled page through the cache. The first page copy
// starts at offset mod alignment; subsequent pages copy up to
// min(alignment, bytes remaining).
func (pc *PageCache) ReadExactly(offset, size int64) ([]byte, error) {
	if offset < 0 || size <= 0 {
		return nil, ErrOutOfRange
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if cos.DivCeil(size, pc.alignment) > int64(pc.numPages) {
		return nil, ErrOutOfRange
	}
	var (
		out    = make([]byte, size)
		filled = int64(0)
	)
	for filled < size {
		page := uint32(offset / pc.alignment)
		if page >= pc.numPages {
			return nil, ErrOutOfRange
		}
		ck, err := pc.getPage(page)
		if err != nil {
			return nil, err
		}
		bufOff := offset % pc.alignment
		if bufOff >= int64(ck.size) {
			return nil, ErrOutOfRange
		}
		step := int64(ck.size) - bufOff
		if rem := size - filled; step > rem {
			step = rem
		}
		copy(out[filled:], ck.buf[bufOff:bufOff+step])
		filled += step
		offset += step
	}
	return out, nil
}

// Read iterates framed [header || payload] records until the reply reaches
// r.MaxSize. Records are validated the same way the wire decoder validates
// frames: nonzero size and checksum, size bounded by the file, xxhash-32
// agreement.
func (pc *PageCache) Read(r ReadRequest) (*ReadReply, error) {
	if r.Offset > pc.FileSize() {
		return nil, ErrOutOfRange
	}
	var (
		reply = &ReadReply{}
		next  = r.Offset
	)
	for reply.size() < r.MaxSize {
		hdrBuf, err := pc.ReadExactly(next, rpc.HdrSize)
		if err != nil {
			if len(reply.Gets) == 0 {
				return nil, err
			}
			break
		}
		hdr := rpc.UnpackHeader(hdrBuf)
		if hdr.Checksum == 0 || hdr.Size == 0 {
			if len(reply.Gets) == 0 {
				return nil, ErrBadHeader
			}
			break
		}
		if int64(hdr.Size) > pc.FileSize() {
			return nil, ErrBadHeader
		}
		payload, err := pc.ReadExactly(next+rpc.HdrSize, int64(hdr.Size))
		if err != nil {
			return nil, err
		}
		if rpc.PayloadChecksum(payload) != hdr.Checksum {
			return nil, ErrBadChecksum
		}
		reply.Gets = append(reply.Gets, Record{Hdr: hdr, Payload: payload})
		next += rpc.HdrSize + int64(hdr.Size)
	}
	return reply, nil
}

// alignedAlloc returns a buffer of the given size whose base address is
// aligned to it (O_DIRECT requirement).
func alignedAlloc(align int64) []byte {
	raw := make([]byte, 2*align)
	off := int64(0)
	if rem := uintptr(unsafe.Pointer(&raw[0])) % uintptr(align); rem != 0 {
		off = align - int64(rem)
	}
	return raw[off : off+align : off+align]
}
