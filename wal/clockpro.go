// Package wal implements a page-cached, direct-I/O write-ahead log: a
// CLOCK-Pro cache over DMA-aligned file pages, a framed-record reader, and
// an epoch-rotating writer.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package wal

import (
	"container/list"

	"github.com/squall-rpc/squall/cmn/debug"
)

type pageState uint8

const (
	stateCold pageState = iota // cold-resident
	stateHot
	stateTest // non-resident, history only
)

// chunk is one cached page: while resident the cache owns the buffer
// exclusively; a test chunk keeps the page index and drops the buffer.
type chunk struct {
	elem  *list.Element
	buf   []byte
	page  uint32
	size  uint32 // valid bytes (the tail page may be short)
	state pageState
	ref   bool
}

// clockPro holds up to maxResident pages split into hot and cold-resident
// lists plus a bounded test list of recently evicted page indices. The two
// hands advance over the list fronts; fixHands keeps the test set legal.
type clockPro struct {
	pages       map[uint32]*chunk
	cold        *list.List
	hot         *list.List
	test        *list.List
	maxResident int
}

func newClockPro(maxResident int) *clockPro {
	if maxResident < 1 {
		maxResident = 1
	}
	return &clockPro{
		pages:       make(map[uint32]*chunk, maxResident),
		cold:        list.New(),
		hot:         list.New(),
		test:        list.New(),
		maxResident: maxResident,
	}
}

func (c *clockPro) resident() int { return c.cold.Len() + c.hot.Len() }

// get returns the resident chunk and marks it referenced; nil on miss.
func (c *clockPro) get(page uint32) *chunk {
	ck, ok := c.pages[page]
	if !ok || ck.state == stateTest {
		return nil
	}
	ck.ref = true
	return ck
}

// set admits a freshly fetched page. A page with a live test entry was
// evicted recently and re-fetched - it earned hot residency; everything else
// enters cold. The caller runs the hands first when there is no headroom.
func (c *clockPro) set(ck *chunk) {
	debug.Assert(c.resident() < c.maxResident)
	if old, ok := c.pages[ck.page]; ok && old.state == stateTest {
		c.test.Remove(old.elem)
		ck.state = stateHot
		ck.elem = c.hot.PushBack(ck)
	} else {
		ck.state = stateCold
		ck.elem = c.cold.PushBack(ck)
	}
	c.pages[ck.page] = ck
}

// runColdHand advances the cold hand until a victim is produced: a
// referenced cold page is promoted to hot, an unreferenced one is evicted
// into the test set. Reports whether an eviction happened.
func (c *clockPro) runColdHand() bool {
	for c.cold.Len() > 0 {
		e := c.cold.Front()
		ck := e.Value.(*chunk)
		if ck.ref {
			ck.ref = false
			c.cold.Remove(e)
			ck.state = stateHot
			ck.elem = c.hot.PushBack(ck)
			continue
		}
		c.cold.Remove(e)
		ck.buf = nil
		ck.size = 0
		ck.state = stateTest
		ck.elem = c.test.PushBack(ck)
		return true
	}
	return false
}

// runHotHand advances the hot hand until a demotion is produced: clear the
// reference of a recently used page and keep going; demote the first page
// that was not referenced. Bounded by two sweeps.
func (c *clockPro) runHotHand() bool {
	for i := 2*c.hot.Len() + 1; i > 0 && c.hot.Len() > 0; i-- {
		e := c.hot.Front()
		ck := e.Value.(*chunk)
		if ck.ref {
			ck.ref = false
			c.hot.MoveToBack(e)
			continue
		}
		c.hot.Remove(e)
		ck.state = stateCold
		ck.elem = c.cold.PushBack(ck)
		return true
	}
	return false
}

// fixHands restores the invariant that the test set never exceeds the
// residency bound, forgetting the oldest history first.
func (c *clockPro) fixHands() {
	for c.test.Len() > c.maxResident {
		e := c.test.Front()
		ck := e.Value.(*chunk)
		c.test.Remove(e)
		delete(c.pages, ck.page)
	}
}
