// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"errors"
)

var (
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client already connected")
	ErrErrorState       = errors.New("connection is in error state")
	ErrTooManyInflight  = errors.New("too many in-flight requests")
)

// ErrConnection carries a connection's latched error string into the
// futures it abandons.
type ErrConnection struct {
	What string
}

func (e *ErrConnection) Error() string { return "connection error: " + e.What }
