//go:build !mono

// Package mono provides low-level monotonic time
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package mono

import (
	"time"
)

var started = time.Now()

func NanoTime() int64 { return int64(time.Since(started)) }

func Since(start int64) time.Duration { return time.Duration(NanoTime() - start) }
