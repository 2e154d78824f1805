// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"github.com/pkg/errors"
)

type (
	// Handler consumes a receive context and produces a reply envelope.
	Handler func(*RecvContext) (*Envelope, error)

	Method struct {
		Handler Handler
		Name    string
	}

	// Service hosts methods; its routes are keyed by
	// RequestID(service, method).
	Service interface {
		Name() string
		Methods() []Method
	}

	// HandleRouter maps request ids to handlers. Populated once at startup,
	// read-only thereafter.
	HandleRouter struct {
		dispatch map[uint32]Handler
	}
)

func NewHandleRouter() *HandleRouter {
	return &HandleRouter{dispatch: make(map[uint32]Handler, 8)}
}

func (r *HandleRouter) RegisterService(svc Service) error {
	for _, m := range svc.Methods() {
		id := RequestID(svc.Name(), m.Name)
		if _, ok := r.dispatch[id]; ok {
			return errors.Errorf("duplicate request id %x (%s.%s)", id, svc.Name(), m.Name)
		}
		r.dispatch[id] = m.Handler
	}
	return nil
}

func (r *HandleRouter) handle(requestID uint32) (Handler, bool) {
	h, ok := r.dispatch[requestID]
	return h, ok
}
