// Package cos provides common low-level types and utilities for all squall packages
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package cos

import (
	"fmt"
	"os"

	"github.com/squall-rpc/squall/cmn/nlog"
)

const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

func NonZero[T int | int64 | uint32 | int32](a, b T) T {
	if a != 0 {
		return a
	}
	return b
}

func DivCeil(a, b int64) int64 { return (a + b - 1) / b }

// ExitLogf flushes the log and exits the process - config/startup errors only.
func ExitLogf(format string, a ...any) {
	nlog.Errorf(format, a...)
	nlog.Flush(true)
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
