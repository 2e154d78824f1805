// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc_test

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/squall-rpc/squall/cmn"
	"github.com/squall-rpc/squall/rpc"
	"github.com/squall-rpc/squall/tools/tassert"
)

type testService struct {
	entered  chan struct{}
	release  chan struct{}
	failWith error
}

func (*testService) Name() string { return "test" }

func (s *testService) Methods() []rpc.Method {
	return []rpc.Method{
		{Name: "Ping", Handler: func(*rpc.RecvContext) (*rpc.Envelope, error) {
			return rpc.Reply([]byte("pong")), nil
		}},
		{Name: "Echo", Handler: func(ctx *rpc.RecvContext) (*rpc.Envelope, error) {
			return rpc.Reply(append([]byte(nil), ctx.Payload...)), nil
		}},
		{Name: "Slow", Handler: func(*rpc.RecvContext) (*rpc.Envelope, error) {
			s.entered <- struct{}{}
			<-s.release
			return rpc.Reply([]byte("done")), nil
		}},
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	tassert.CheckFatal(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func startServer(t *testing.T, svc rpc.Service, mutate func(*cmn.ServerArgs)) (*rpc.Server, string) {
	t.Helper()
	args := cmn.ServerArgs{IP: "127.0.0.1", RPCPort: freePort(t)}
	if mutate != nil {
		mutate(&args)
	}
	server, err := rpc.NewServer(args)
	tassert.CheckFatal(t, err)
	if svc != nil {
		server.RegisterService(svc)
	}
	tassert.CheckFatal(t, server.Start())
	return server, net.JoinHostPort("127.0.0.1", strconv.Itoa(args.RPCPort))
}

func startClient(t *testing.T, addr string, mutate func(*cmn.ClientArgs)) *rpc.Client {
	t.Helper()
	args := cmn.ClientArgs{ServerAddr: addr}
	if mutate != nil {
		mutate(&args)
	}
	client, err := rpc.NewClient(args)
	tassert.CheckFatal(t, err)
	tassert.CheckFatal(t, client.Connect(context.Background()))
	return client
}

func pollCounter(t *testing.T, what string, load func() int64, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if load() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("%s = %d, want %d", what, load(), want)
}

func TestHappyRoundTrip(t *testing.T) {
	svc := &testService{}
	server, addr := startServer(t, svc, nil)
	defer server.Stop()
	client := startClient(t, addr, nil)
	defer client.Stop()

	e := rpc.NewEnvelope(rpc.RequestID("test", "Ping"), []byte("ping"))
	ctx, err := client.Send(context.Background(), e)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, ctx != nil, "nil context")
	tassert.Errorf(t, bytes.Equal(ctx.Payload, []byte("pong")), "payload %q", ctx.Payload)
	tassert.Errorf(t, ctx.Session() == e.Hdr.Session, "session %d != %d", ctx.Session(), e.Hdr.Session)

	pollCounter(t, "completed_requests", server.Stats().CompletedRequests.Load, 1)
	tassert.Errorf(t, server.Stats().TotalConnections.Load() == 1, "total connections")
}

func TestConcurrentSends(t *testing.T) {
	svc := &testService{}
	server, addr := startServer(t, svc, nil)
	defer server.Stop()
	client := startClient(t, addr, nil)
	defer client.Stop()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte("payload-" + strconv.Itoa(i))
			ctx, err := client.Send(context.Background(),
				rpc.NewEnvelope(rpc.RequestID("test", "Echo"), payload))
			tassert.CheckError(t, err)
			if ctx != nil {
				tassert.Errorf(t, bytes.Equal(ctx.Payload, payload), "echo mismatch: %q", ctx.Payload)
			}
		}(i)
	}
	wg.Wait()
	pollCounter(t, "completed_requests", server.Stats().CompletedRequests.Load, n)
}

func TestOneway(t *testing.T) {
	svc := &testService{}
	server, addr := startServer(t, svc, nil)
	defer server.Stop()
	client := startClient(t, addr, nil)
	defer client.Stop()

	e := rpc.NewEnvelope(rpc.RequestID("test", "Ping"), []byte("ping"))
	e.SetOneway()
	ctx, err := client.Send(context.Background(), e)
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, ctx == nil, "oneway resolved with a context")

	// the connection survives the dropped oneway reply
	pollCounter(t, "completed_requests", server.Stats().CompletedRequests.Load, 1)
	ctx, err = client.Send(context.Background(), rpc.NewEnvelope(rpc.RequestID("test", "Ping"), []byte("ping")))
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, string(ctx.Payload) == "pong", "payload %q", ctx.Payload)
}

func TestCompressedRoundTrip(t *testing.T) {
	svc := &testService{}
	server, addr := startServer(t, svc, nil)
	defer server.Stop()

	args := cmn.ClientArgs{ServerAddr: addr}
	client, err := rpc.NewClient(args)
	tassert.CheckFatal(t, err)
	client.AppendSendFilter(rpc.CompressFilter(rpc.CompressLZ4, 64))
	tassert.CheckFatal(t, client.Connect(context.Background()))
	defer client.Stop()

	payload := bytes.Repeat([]byte("squall "), 1024)
	ctx, err := client.Send(context.Background(),
		rpc.NewEnvelope(rpc.RequestID("test", "Echo"), append([]byte(nil), payload...)))
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, bytes.Equal(ctx.Payload, payload), "echoed payload differs")
}

func TestClientBoundaries(t *testing.T) {
	svc := &testService{}
	server, addr := startServer(t, svc, nil)
	defer server.Stop()

	client, err := rpc.NewClient(cmn.ClientArgs{ServerAddr: addr})
	tassert.CheckFatal(t, err)

	_, err = client.Send(context.Background(), rpc.NewEnvelope(1, []byte("x")))
	tassert.Errorf(t, err == rpc.ErrNotConnected, "got %v", err)

	tassert.CheckFatal(t, client.Connect(context.Background()))
	defer client.Stop()
	err = client.Connect(context.Background())
	tassert.Errorf(t, err == rpc.ErrAlreadyConnected, "got %v", err)
}

func TestNoRoute(t *testing.T) {
	svc := &testService{}
	server, addr := startServer(t, svc, nil)
	defer server.Stop()
	client := startClient(t, addr, nil)
	defer client.Stop()

	_, err := client.Send(context.Background(), rpc.NewEnvelope(0xffffffff, []byte("x")))
	tassert.Errorf(t, err != nil, "unroutable request succeeded")
	pollCounter(t, "no_route_requests", server.Stats().NoRouteRequests.Load, 1)

	// the latched connection refuses further sends
	_, err = client.Send(context.Background(), rpc.NewEnvelope(1, []byte("x")))
	tassert.Errorf(t, err == rpc.ErrErrorState || err != nil, "send on dead connection succeeded")
}

func TestBadChecksum(t *testing.T) {
	svc := &testService{}
	server, addr := startServer(t, svc, nil)
	defer server.Stop()

	sock, err := net.Dial("tcp", addr)
	tassert.CheckFatal(t, err)
	defer sock.Close()

	payload := []byte("ping")
	hdr := rpc.Header{
		Session:  1,
		Size:     uint32(len(payload)),
		Checksum: 0xdeadbeef, // deliberately wrong
		Meta:     rpc.RequestID("test", "Ping"),
	}
	var b [rpc.HdrSize]byte
	hdr.Pack(b[:])
	_, err = sock.Write(append(b[:], payload...))
	tassert.CheckFatal(t, err)

	pollCounter(t, "bad_requests", server.Stats().BadRequests.Load, 1)
	pollCounter(t, "active_connections", server.Stats().ActiveConnections.Load, 0)
}

func TestRecvTimeout(t *testing.T) {
	svc := &testService{}
	server, addr := startServer(t, svc, func(args *cmn.ServerArgs) {
		args.RecvTimeout = cmn.Duration(20 * time.Millisecond)
	})
	defer server.Stop()

	sock, err := net.Dial("tcp", addr)
	tassert.CheckFatal(t, err)
	defer sock.Close()

	// header declares 300 payload bytes that never arrive
	hdr := rpc.Header{Session: 1, Size: 300, Checksum: 1, Meta: 1}
	var b [rpc.HdrSize]byte
	hdr.Pack(b[:])
	_, err = sock.Write(b[:])
	tassert.CheckFatal(t, err)

	pollCounter(t, "bad_requests", server.Stats().BadRequests.Load, 1)
}

func TestOversize(t *testing.T) {
	const ceiling = 64
	svc := &testService{}
	server, addr := startServer(t, svc, func(args *cmn.ServerArgs) {
		args.MaxPayloadSize = ceiling
	})
	defer server.Stop()

	// exactly at the ceiling: accepted
	client := startClient(t, addr, nil)
	ctx, err := client.Send(context.Background(),
		rpc.NewEnvelope(rpc.RequestID("test", "Echo"), bytes.Repeat([]byte("a"), ceiling)))
	tassert.CheckFatal(t, err)
	tassert.Errorf(t, len(ctx.Payload) == ceiling, "echoed %d bytes", len(ctx.Payload))
	client.Stop()

	// one past the ceiling: rejected, connection dropped
	client2 := startClient(t, addr, nil)
	defer client2.Stop()
	_, err = client2.Send(context.Background(),
		rpc.NewEnvelope(rpc.RequestID("test", "Echo"), bytes.Repeat([]byte("a"), ceiling+1)))
	tassert.Errorf(t, err != nil, "oversize payload accepted")
	pollCounter(t, "too_large_requests", server.Stats().TooLargeRequests.Load, 1)
}

func TestGracefulShutdown(t *testing.T) {
	svc := &testService{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	server, addr := startServer(t, svc, nil)
	client := startClient(t, addr, nil)
	defer client.Stop()

	sendDone := make(chan error, 1)
	var reply []byte
	go func() {
		ctx, err := client.Send(context.Background(),
			rpc.NewEnvelope(rpc.RequestID("test", "Slow"), []byte("req")))
		if ctx != nil {
			reply = ctx.Payload
		}
		sendDone <- err
	}()
	<-svc.entered // the handler is in flight

	stopDone := make(chan struct{})
	go func() { server.Stop(); close(stopDone) }()

	select {
	case <-stopDone:
		t.Fatal("Stop resolved with a handler still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(svc.release)
	<-stopDone
	tassert.CheckFatal(t, <-sendDone)
	tassert.Errorf(t, string(reply) == "done", "reply %q", reply)
	tassert.Errorf(t, server.Stats().CompletedRequests.Load() == 1, "completed_requests")
}
