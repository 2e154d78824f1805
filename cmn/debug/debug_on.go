//go:build debug

// Package debug provides debug utilities
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package debug

import (
	"fmt"
	"os"

	"github.com/squall-rpc/squall/cmn/nlog"
)

func ON() bool { return true }

func Infof(format string, a ...any) {
	nlog.InfoDepth(1, fmt.Sprintf(format, a...))
}

func Assert(cond bool, a ...any) {
	if !cond {
		msg := "assertion failed"
		if len(a) > 0 {
			msg += ": " + fmt.Sprint(a...)
		}
		fatal(msg)
	}
}

func Assertf(cond bool, format string, a ...any) {
	if !cond {
		fatal("assertion failed: " + fmt.Sprintf(format, a...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		fatal("assertion failed: " + err.Error())
	}
}

func AssertFunc(f func() bool, a ...any) { Assert(f(), a...) }

func fatal(msg string) {
	nlog.ErrorDepth(2, msg)
	nlog.Flush(true)
	os.Exit(1)
}
