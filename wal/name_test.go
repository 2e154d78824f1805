// Package wal implements a page-cached, direct-I/O write-ahead log.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/squall-rpc/squall/tools/tassert"
)

func TestNames(t *testing.T) {
	name := FileName("/var/wal", "abc-123", 4096)
	tassert.Errorf(t, name == "/var/wal/abc-123_4096.wal", "got %q", name)

	epoch, err := ExtractEpoch(name)
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, epoch == 4096, "epoch %d", epoch)

	locked := filepath.Join("/var/wal", lockedPrefix+"abc-123_4096.wal")
	tassert.Errorf(t, IsNameLocked(locked), "locked name not recognized")
	tassert.Errorf(t, !IsNameLocked(name), "plain name recognized as locked")
	tassert.Errorf(t, NameWithoutLock(locked) == name, "unlock: got %q", NameWithoutLock(locked))

	epoch, err = ExtractEpoch(locked)
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, epoch == 4096, "locked epoch %d", epoch)

	if _, err := ExtractEpoch("/var/wal/garbage.wal"); err == nil {
		t.Error("garbage name parsed")
	}
}

func TestMendDirectory(t *testing.T) {
	dir := t.TempDir()
	var (
		locked = filepath.Join(dir, lockedPrefix+"run_0.wal")
		plain  = filepath.Join(dir, "run_64.wal")
	)
	tassert.CheckFatal(t, os.WriteFile(locked, []byte("leftover"), 0o644))
	tassert.CheckFatal(t, os.WriteFile(plain, []byte("sealed"), 0o644))

	tassert.CheckFatal(t, MendDirectory(dir))

	if _, err := os.Stat(locked); !os.IsNotExist(err) {
		t.Error("locked segment still present")
	}
	b, err := os.ReadFile(filepath.Join(dir, "run_0.wal"))
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, string(b) == "leftover", "mended content %q", b)
	if _, err := os.Stat(plain); err != nil {
		t.Errorf("sealed segment disturbed: %v", err)
	}
}
