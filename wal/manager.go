// Package wal implements a page-cached, direct-I/O write-ahead log.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package wal

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"

	"github.com/squall-rpc/squall/cmn"
	"github.com/squall-rpc/squall/cmn/cos"
	"github.com/squall-rpc/squall/cmn/nlog"
)

const manifestName = "manifest.db"

type (
	// Manager owns one writer per (topic, partition) and the manifest that
	// remembers each partition's epoch across restarts.
	Manager struct {
		db      *buntdb.DB
		writers map[string]*WriterNode
		args    cmn.WALArgs
		mu      sync.Mutex
	}
)

func partKey(topic string, partition uint32) string {
	return "partition:" + topic + "/" + strconv.FormatUint(uint64(partition), 10)
}

// OpenManager mends the directory (crash recovery) and opens the manifest.
func OpenManager(args cmn.WALArgs) (*Manager, error) {
	if args.Directory == "" {
		return nil, errors.New("missing wal directory")
	}
	if err := os.MkdirAll(args.Directory, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create wal directory")
	}
	if err := MendDirectory(args.Directory); err != nil {
		return nil, errors.Wrap(err, "failed to mend wal directory")
	}
	db, err := buntdb.Open(filepath.Join(args.Directory, manifestName))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open wal manifest")
	}
	return &Manager{
		db:      db,
		writers: make(map[string]*WriterNode, 4),
		args:    args,
	}, nil
}

// Writer returns the partition's writer node, creating it at the manifest's
// recorded epoch on first use.
func (m *Manager) Writer(topic string, partition uint32) (*WriterNode, error) {
	key := partKey(topic, partition)
	m.mu.Lock()
	defer m.mu.Unlock()
	if wn, ok := m.writers[key]; ok {
		return wn, nil
	}
	epoch := m.loadEpoch(key)
	wn, err := NewWriterNode(m.args.Directory, cos.GenUUID(), epoch, m.args.SegmentSize,
		func(e uint64) { m.storeEpoch(key, e) })
	if err != nil {
		return nil, err
	}
	m.writers[key] = wn
	return wn, nil
}

// OpenCache opens a sealed segment for page-cached reading.
func (m *Manager) OpenCache(path string) (*PageCache, error) {
	var (
		f   *os.File
		err error
	)
	if m.args.NoDirectIO {
		f, err = os.Open(path)
	} else {
		f, err = DirectOpen(path, os.O_RDONLY, 0)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open segment %q", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return NewPageCache(f, fi.Size(), m.args.CacheMaxPages, m.args.Alignment), nil
}

func (m *Manager) loadEpoch(key string) (epoch uint64) {
	err := m.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		epoch, err = strconv.ParseUint(v, 10, 64)
		return err
	})
	if err != nil && err != buntdb.ErrNotFound {
		nlog.Warningf("wal manifest: %s: %v", key, err)
	}
	return
}

func (m *Manager) storeEpoch(key string, epoch uint64) {
	err := m.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, strconv.FormatUint(epoch, 10), nil)
		return err
	})
	if err != nil {
		nlog.Errorf("wal manifest: failed to persist %s: %v", key, err)
	}
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs cos.Errs
	for _, wn := range m.writers {
		errs.Add(wn.Close())
	}
	errs.Add(m.db.Close())
	_, err := errs.JoinErr()
	return err
}
