// Package wal implements a page-cached, direct-I/O write-ahead log.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package wal

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/squall-rpc/squall/cmn/nlog"
)

const (
	walSuffix    = ".wal"
	lockedPrefix = "locked-"
)

// FileName returns `<dir>/<runID>_<epoch>.wal`.
func FileName(dir, runID string, epoch uint64) string {
	return filepath.Join(dir, runID+"_"+strconv.FormatUint(epoch, 10)+walSuffix)
}

func IsNameLocked(name string) bool {
	return strings.HasPrefix(filepath.Base(name), lockedPrefix)
}

func NameWithoutLock(name string) string {
	base := filepath.Base(name)
	return filepath.Join(filepath.Dir(name), strings.TrimPrefix(base, lockedPrefix))
}

// ExtractEpoch parses the epoch out of a (possibly locked) segment name.
func ExtractEpoch(name string) (uint64, error) {
	base := strings.TrimSuffix(filepath.Base(NameWithoutLock(name)), walSuffix)
	i := strings.LastIndexByte(base, '_')
	if i < 0 {
		return 0, errors.Errorf("not a wal segment name: %q", name)
	}
	return strconv.ParseUint(base[i+1:], 10, 64)
}

// MendDirectory renames segments a crashed writer left behind under their
// locked names, making them visible to readers again.
func MendDirectory(dir string) error {
	return godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(pathname string, de *godirwalk.Dirent) error {
			if de.IsDir() || !IsNameLocked(pathname) {
				return nil
			}
			mended := NameWithoutLock(pathname)
			if err := os.Rename(pathname, mended); err != nil {
				nlog.Errorf("failed to recover segment %q -> %q: %v", pathname, mended, err)
			}
			return nil
		},
	})
}
