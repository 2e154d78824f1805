// Package rpc implements the squall request/response transport.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package rpc

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/squall-rpc/squall/cmn"
	"github.com/squall-rpc/squall/cmn/atomic"
	"github.com/squall-rpc/squall/cmn/cos"
	"github.com/squall-rpc/squall/cmn/mono"
	"github.com/squall-rpc/squall/cmn/nlog"
)

// Server accepts connections, parses requests, routes them to handlers, and
// serializes replies. Requests on one connection are read sequentially and
// dispatched in parallel; replies are correlated by session id and may go
// out in any order.
type Server struct {
	args       cmn.ServerArgs
	routes     *HandleRouter
	stats      *Stats
	gate       *cos.Gate // reply gate: Stop waits for every in-flight handler
	listener   net.Listener
	admin      *http.Server
	rec        Recorder // optional dispatch-latency histogram handle
	inFilters  []RecvFilter
	outFilters []SendFilter

	mu    sync.Mutex
	conns map[int64]*Conn

	connIdx atomic.Int64
	wg      sync.WaitGroup
}

func NewServer(args cmn.ServerArgs) (*Server, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		args:   args,
		routes: NewHandleRouter(),
		stats:  &Stats{},
		gate:   cos.NewGate(),
		conns:  make(map[int64]*Conn, 16),
	}, nil
}

func (s *Server) Stats() *Stats { return s.stats }

// RegisterService extends the routes table; a duplicate request id is a
// startup-time fatal error. The table is finalized before Start.
func (s *Server) RegisterService(svc Service) {
	if err := s.routes.RegisterService(svc); err != nil {
		cos.ExitLogf("failed to register service %q: %v", svc.Name(), err)
	}
}

func (s *Server) AppendRecvFilter(f RecvFilter) { s.inFilters = append(s.inFilters, f) }
func (s *Server) AppendSendFilter(f SendFilter) { s.outFilters = append(s.outFilters, f) }

func (s *Server) EnableHistogram(rec Recorder) { s.rec = rec }

// SetAdminHandler installs the admin/metrics mux served on HTTPPort
// (disabled by FlagDisableHTTPServer or HTTPPort == 0).
func (s *Server) SetAdminHandler(h http.Handler) {
	if s.args.HTTPPort == 0 || s.args.Flags&cmn.FlagDisableHTTPServer != 0 {
		return
	}
	s.admin = &http.Server{
		Addr:    net.JoinHostPort(s.args.IP, strconv.Itoa(s.args.HTTPPort)),
		Handler: h,
	}
}

func (s *Server) Start() error {
	lc := net.ListenConfig{Control: reuseAddr}
	addr := net.JoinHostPort(s.args.IP, strconv.Itoa(s.args.RPCPort))
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	nlog.Infof("rpc server listening on %s", addr)

	if s.admin != nil {
		go func() {
			nlog.Infof("admin server listening on %s", s.admin.Addr)
			if err := s.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				nlog.Errorf("admin server: %v", err)
			}
		}()
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func reuseAddr(_, _ string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		sock, err := s.listener.Accept()
		if err != nil {
			// Stop() aborted the listener; subsequent accepts fail immediately
			nlog.Warningf("server stopped accepting connections: %v", err)
			return
		}
		id := s.connIdx.Inc()
		conn := newConn(sock, id, serverLimits(&s.args))
		s.mu.Lock()
		s.conns[id] = conn
		s.mu.Unlock()
		s.stats.TotalConnections.Inc()
		s.stats.ActiveConnections.Inc()
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn is the per-connection reader: parse header, reserve bytes,
// parse payload, hand off to a background dispatch. The reader never blocks
// on handler completion - that is what pipelines requests on a connection.
func (s *Server) handleConn(c *Conn) {
	defer s.wg.Done()
	for c.IsValid() {
		hdr, ok := parseHeader(c)
		if !ok {
			break
		}
		if int64(hdr.Size) > c.limits.MaxPayload() {
			s.stats.TooLargeRequests.Inc()
			c.SetError("oversize")
			break
		}
		reserved, err := c.limits.Reserve(context.Background(), int64(hdr.Size))
		if err != nil {
			break
		}
		ctx, ok := parsePayload(c, hdr)
		if !ok {
			c.limits.Release(reserved)
			break
		}
		if err := s.gate.Enter(); err != nil {
			c.limits.Release(reserved)
			c.Disable()
			break
		}
		c.pending.Add(1)
		go func() {
			defer c.pending.Done()
			defer s.gate.Leave()
			defer c.limits.Release(reserved)
			s.dispatch(c, ctx)
			if c.HasError() {
				c.CloseRead() // drop the connection: the reader loop exits and tears down
			}
		}()
	}
	s.teardown(c)
}

func (s *Server) teardown(c *Conn) {
	c.pending.Wait() // no handler is interrupted mid-reply
	s.mu.Lock()
	delete(s.conns, c.ID())
	s.mu.Unlock()
	s.stats.ActiveConnections.Dec()
	if c.HasError() {
		s.stats.BadRequests.Inc()
		nlog.Infoln("closing connection for client:", c.Remote())
	}
	c.Close()
}

// dispatch: [ingress filters] -> handler -> [egress filters] -> framed reply.
// Filters have full mutable access; a filter or handler failure takes the
// connection down - no per-request error response is synthesized.
func (s *Server) dispatch(c *Conn, ctx *RecvContext) {
	var started int64
	if s.rec != nil {
		started = mono.NanoTime()
	}
	requestID := ctx.RequestID()
	if requestID == 0 {
		c.SetError("missing request id")
		return
	}
	handler, ok := s.routes.handle(requestID)
	if !ok {
		s.stats.NoRouteRequests.Inc()
		c.SetError("no route for request")
		return
	}
	s.stats.InBytes.Add(HdrSize + int64(len(ctx.Payload)))

	if err := applyRecvFilters(s.inFilters, ctx); err != nil {
		c.SetError("ingress filter: " + err.Error())
		return
	}
	reply, err := handler(ctx)
	if err != nil {
		nlog.Errorf("handler %x: %v", requestID, err)
		c.Disable()
		c.CloseWrite()
		return
	}
	if err := applySendFilters(s.outFilters, reply); err != nil {
		c.SetError("egress filter: " + err.Error())
		return
	}
	reply.Hdr.Session = ctx.Session()
	reply.Hdr.Bitflags = ctx.Hdr.Bitflags
	if !s.sendReply(c, reply) {
		return
	}
	s.stats.OutBytes.Add(HdrSize + int64(len(reply.Payload)))
	s.stats.CompletedRequests.Inc()
	if s.rec != nil {
		s.rec.Record(mono.Since(started))
	}
}

func (s *Server) sendReply(c *Conn, reply *Envelope) bool {
	reserve := c.limits.EstimateRequestSize(int64(len(reply.Payload)))
	c.wmu.Lock()
	defer c.wmu.Unlock()
	got, err := c.limits.Reserve(context.Background(), reserve)
	if err != nil {
		return false
	}
	defer c.limits.Release(got)
	err = serialize(c.wr, reply)
	if err == nil {
		err = c.wr.Flush()
	}
	if err != nil {
		c.SetError("error sending reply: " + err.Error())
		return false
	}
	return true
}

// Stop aborts the accept listener, closes the read half of every open
// connection, and waits on the reply gate until every in-flight handler has
// emitted its reply.
func (s *Server) Stop() {
	nlog.Warningln("stopping rpc server: aborting future accept calls")
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	for _, c := range s.conns {
		c.CloseRead()
	}
	s.mu.Unlock()
	s.gate.Close()
	if s.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.admin.Shutdown(ctx); err != nil {
			nlog.Warningf("error (ignoring) shutting down admin server: %v", err)
		}
		cancel()
	}
	s.wg.Wait()
}
