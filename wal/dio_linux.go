//go:build linux

// Package wal implements a page-cached, direct-I/O write-ahead log.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package wal

import (
	"os"

	"golang.org/x/sys/unix"
)

// DirectOpen opens a file with OS caching disabled; reads must then be
// aligned to the file's DMA alignment.
func DirectOpen(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, unix.O_DIRECT|flag, perm)
}
