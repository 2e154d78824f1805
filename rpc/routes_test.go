// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"testing"

	"github.com/squall-rpc/squall/tools/tassert"
)

type fakeService struct {
	name    string
	methods []Method
}

func (s *fakeService) Name() string      { return s.name }
func (s *fakeService) Methods() []Method { return s.methods }

func TestRegisterService(t *testing.T) {
	var (
		r    = NewHandleRouter()
		noop = func(*RecvContext) (*Envelope, error) { return Reply([]byte("ok")), nil }
		svc  = &fakeService{name: "svc", methods: []Method{{Name: "A", Handler: noop}, {Name: "B", Handler: noop}}}
	)
	tassert.CheckFatal(t, r.RegisterService(svc))

	for _, m := range []string{"A", "B"} {
		_, ok := r.handle(RequestID("svc", m))
		tassert.Errorf(t, ok, "method %s not routed", m)
	}
	_, ok := r.handle(RequestID("svc", "C"))
	tassert.Errorf(t, !ok, "unregistered method routed")

	// duplicate request id is a startup-time error
	if err := r.RegisterService(svc); err == nil {
		t.Fatal("duplicate registration accepted")
	}
}
