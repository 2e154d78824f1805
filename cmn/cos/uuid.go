// Package cos provides common low-level types and utilities for all squall packages
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package cos

import (
	"sync"

	"github.com/teris-io/shortid"
)

// alphabet: the 64 characters of shortid.DEFAULT_ABC in a different order
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sid     *shortid.Shortid
	sidOnce sync.Once
)

func InitShortID(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, seed)
}

// GenUUID returns a short unique identifier (WAL run ids, connection tags)
func GenUUID() string {
	sidOnce.Do(func() {
		if sid == nil {
			InitShortID(2024)
		}
	})
	return sid.MustGenerate()
}
