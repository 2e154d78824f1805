//go:build !linux

// Package wal implements a page-cached, direct-I/O write-ahead log.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package wal

import (
	"os"
)

// DirectOpen: no O_DIRECT outside linux; aligned reads still apply.
func DirectOpen(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}
