// Package wcftest provides an in-process peer that speaks the WCF wire
// protocol, for tests.
//
// The server listens on a loopback port pair: RPC on port N and push on
// port N+1, like the real automation service. Requests are answered by
// per-function handlers and recorded for later assertions. Pushed messages
// are queued until a subscriber connects.
//
//	Accept RPC conn → handshake → for each frame: decode → record → handler → encode
//	Accept push conn → handshake → flush backlog → Publish writes directly
package wcftest

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"wcf-rpc-sdk/address"
	"wcf-rpc-sdk/codec"
	"wcf-rpc-sdk/message"
	"wcf-rpc-sdk/protocol"
)

// HandlerFunc answers one request. Returning nil sends no response at all,
// which lets tests provoke client timeouts.
type HandlerFunc func(req *message.Request) *message.Response

// Server is a fake automation service.
type Server struct {
	logger *zap.Logger

	mu       sync.Mutex
	handlers map[message.Function]HandlerFunc
	requests []*message.Request
	conns    map[net.Conn]struct{}

	pushMu     sync.Mutex
	subscriber net.Conn
	backlog    [][]byte
	subscribed chan struct{} // Closed and replaced on every new subscriber

	rpcLn    net.Listener
	pushLn   net.Listener
	ep       address.Endpoint
	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// NewServer creates a server with no handlers. A nil logger means no logging.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger:     logger,
		handlers:   make(map[message.Function]HandlerFunc),
		conns:      make(map[net.Conn]struct{}),
		subscribed: make(chan struct{}),
	}
}

// Handle registers h for fn, replacing any previous handler.
func (s *Server) Handle(fn message.Function, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[fn] = h
}

// HandleStatus answers fn with a fixed status code.
func (s *Server) HandleStatus(fn message.Function, status int32) {
	s.Handle(fn, func(*message.Request) *message.Response {
		return &message.Response{Msg: message.Status(status)}
	})
}

// Start listens on a free loopback port pair and starts serving.
func (s *Server) Start() (address.Endpoint, error) {
	rpcLn, pushLn, err := listenPair("127.0.0.1")
	if err != nil {
		return address.Endpoint{}, err
	}
	s.rpcLn, s.pushLn = rpcLn, pushLn
	s.ep = address.Endpoint{
		Scheme: address.Scheme,
		Host:   "127.0.0.1",
		Port:   rpcLn.Addr().(*net.TCPAddr).Port,
	}

	s.wg.Add(2)
	go s.acceptLoop(rpcLn, s.serveRPC)
	go s.acceptLoop(pushLn, s.servePush)

	s.logger.Debug("wcftest server started", zap.Stringer("endpoint", s.ep))
	return s.ep, nil
}

// Endpoint returns the RPC endpoint. Valid after Start.
func (s *Server) Endpoint() address.Endpoint {
	return s.ep
}

// Requests returns a copy of every request received so far, in order.
func (s *Server) Requests() []*message.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*message.Request(nil), s.requests...)
}

// Count returns how many requests for fn were received.
func (s *Server) Count(fn message.Function) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Func == fn {
			n++
		}
	}
	return n
}

// Publish pushes msg to the subscriber, or queues it until one connects.
func (s *Server) Publish(msg *message.WxMsg) error {
	return s.Push(&message.Response{Msg: msg})
}

// Push pushes an arbitrary response frame on the push socket.
func (s *Server) Push(rsp *message.Response) error {
	body, err := codec.MarshalResponse(rsp)
	if err != nil {
		return err
	}
	s.PushRaw(body)
	return nil
}

// PushRaw pushes body without encoding it, e.g. to send garbage.
func (s *Server) PushRaw(body []byte) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	if s.subscriber != nil {
		if err := protocol.Encode(s.subscriber, &protocol.Header{Hops: 1}, body); err == nil {
			return
		}
		s.subscriber.Close()
		s.subscriber = nil
	}
	s.backlog = append(s.backlog, body)
}

// WaitSubscriber blocks until a push subscriber is connected or timeout passes.
func (s *Server) WaitSubscriber(timeout time.Duration) bool {
	s.pushMu.Lock()
	if s.subscriber != nil {
		s.pushMu.Unlock()
		return true
	}
	ch := s.subscribed
	s.pushMu.Unlock()

	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// HasSubscriber reports whether a push subscriber is currently connected.
func (s *Server) HasSubscriber() bool {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	return s.subscriber != nil
}

// Shutdown stops accepting, closes every connection and waits for the serving
// goroutines, up to timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.shutdown.Store(true)
	err := multierr.Combine(s.rpcLn.Close(), s.pushLn.Close())

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-time.After(timeout):
		return multierr.Append(err, errors.New("timeout waiting for connections to finish"))
	}
}

func (s *Server) acceptLoop(ln net.Listener, serve func(net.Conn)) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.shutdown.Load() {
				s.logger.Warn("accept failed", zap.Error(err))
			}
			return
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			serve(conn)
		}()
	}
}

func (s *Server) serveRPC(conn net.Conn) {
	if err := protocol.Handshake(conn, protocol.ProtoPair1); err != nil {
		s.logger.Warn("rpc handshake failed", zap.Error(err))
		return
	}
	for {
		_, body, err := protocol.Decode(conn)
		if err != nil {
			return
		}
		req, err := codec.UnmarshalRequest(body)
		if err != nil {
			s.logger.Warn("bad request frame", zap.Error(err))
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		h := s.handlers[req.Func]
		s.mu.Unlock()

		var rsp *message.Response
		if h == nil {
			s.logger.Debug("no handler", zap.Stringer("func", req.Func))
			rsp = &message.Response{Msg: message.Status(-1)}
		} else if rsp = h(req); rsp == nil {
			continue
		}
		if rsp.Func == message.FuncReserved {
			rsp.Func = req.Func
		}

		out, err := codec.MarshalResponse(rsp)
		if err != nil {
			s.logger.Error("encode response", zap.Error(err))
			return
		}
		if err := protocol.Encode(conn, &protocol.Header{Hops: 1}, out); err != nil {
			return
		}
	}
}

func (s *Server) servePush(conn net.Conn) {
	if err := protocol.Handshake(conn, protocol.ProtoPair1); err != nil {
		s.logger.Warn("push handshake failed", zap.Error(err))
		return
	}

	s.pushMu.Lock()
	if s.subscriber != nil {
		s.subscriber.Close()
	}
	s.subscriber = conn
	for len(s.backlog) > 0 {
		if err := protocol.Encode(conn, &protocol.Header{Hops: 1}, s.backlog[0]); err != nil {
			break
		}
		s.backlog = s.backlog[1:]
	}
	close(s.subscribed)
	s.subscribed = make(chan struct{})
	s.pushMu.Unlock()

	// The client never sends on this socket; reading only detects hang-up.
	io.Copy(io.Discard, conn)

	s.pushMu.Lock()
	if s.subscriber == conn {
		s.subscriber = nil
	}
	s.pushMu.Unlock()
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// listenPair finds two adjacent free ports on host.
func listenPair(host string) (net.Listener, net.Listener, error) {
	for i := 0; i < 32; i++ {
		rpcLn, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
		if err != nil {
			return nil, nil, err
		}
		port := rpcLn.Addr().(*net.TCPAddr).Port
		if port >= 65535 {
			rpcLn.Close()
			continue
		}
		pushLn, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port+1)))
		if err != nil {
			rpcLn.Close()
			continue
		}
		return rpcLn, pushLn, nil
	}
	return nil, nil, fmt.Errorf("wcftest: no free port pair on %s", host)
}
