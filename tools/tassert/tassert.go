// Package tassert provides tiny assertion helpers for tests
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package tassert

import (
	"fmt"
	"testing"
)

func CheckFatal(tb testing.TB, err error) {
	if err != nil {
		tb.Helper()
		tb.Fatalf("unexpected error: %v", err)
	}
}

func CheckError(tb testing.TB, err error) {
	if err != nil {
		tb.Helper()
		tb.Errorf("unexpected error: %v", err)
	}
}

func Errorf(tb testing.TB, cond bool, format string, args ...any) {
	if !cond {
		tb.Helper()
		tb.Errorf(format, args...)
	}
}

func Fatalf(tb testing.TB, cond bool, format string, args ...any) {
	if !cond {
		tb.Helper()
		tb.Fatalf(format, args...)
	}
}

func Error(tb testing.TB, cond bool, args ...any) {
	if !cond {
		tb.Helper()
		tb.Error(fmt.Sprint(args...))
	}
}
