// Package server implements the serving side of the TCP bus: an accept loop,
// per-name subscribers, parallel request processing and graceful shutdown.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → MessageCodec.Decode → subscriber lookup → transport.Handler → MessageCodec.Encode → write reply
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"contract-rpc/codec"
	"contract-rpc/message"
	"contract-rpc/protocol"
	"contract-rpc/transport"

	"go.uber.org/zap"
)

var ErrServerClosed = errors.New("server: closed")

// Server is a transport.Subscriber reachable over TCP.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]transport.Handler
	logger   *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup // in-flight requests
	shutdown atomic.Bool    // set before the listener closes so Accept errors read as intentional
	ctx      context.Context
	cancel   context.CancelFunc

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func NewServer(opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		handlers: make(map[string]transport.Handler),
		logger:   zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers h under name. Subscriptions may be added while serving.
func (s *Server) Subscribe(name string, h transport.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[name]; ok {
		return fmt.Errorf("%w: %s", transport.ErrAlreadySubscribed, name)
	}
	s.handlers[name] = h
	return nil
}

// ListenAndServe listens on address and calls Serve.
func (s *Server) ListenAndServe(network, address string) error {
	l, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.connMu.Lock()
	if s.shutdown.Load() {
		s.connMu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.connMu.Unlock()

	s.logger.Info("serving", zap.String("addr", l.Addr().String()))
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.handleConn(conn)
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) track(conn net.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

// begin counts one in-flight request. It fails once Shutdown has started, so
// no Add can race with Shutdown's Wait.
func (s *Server) begin() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}

// handleConn reads frames sequentially and processes each request on its own
// goroutine. writeMu is shared by every request on this connection so reply
// frames never interleave.
func (s *Server) handleConn(conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			return
		}
		if header.MsgType != protocol.MsgTypeRequest {
			continue // heartbeats only keep the connection alive
		}
		if !s.begin() {
			continue // shutting down; late frames are dropped
		}
		go s.handleRequest(header, body, conn, writeMu)
	}
}

func (s *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer s.wg.Done()

	c, err := codec.GetCodec(codec.CodecType(header.CodecType))
	if err != nil {
		s.logger.Warn("unsupported codec", zap.Uint8("codec", header.CodecType))
		return
	}

	var req message.RPCMessage
	reply := s.process(c, body, &req)

	out, err := c.Encode(reply)
	if err != nil {
		s.logger.Error("encode reply failed", zap.String("call", req.Name), zap.Error(err))
		return
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	// same seq as the request; this is how the client matches replies
	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq,
	}
	if err := protocol.Encode(conn, &replyHeader, out); err != nil {
		s.logger.Debug("write reply failed",
			zap.String("call", req.Name),
			zap.Uint32("seq", header.Seq),
			zap.Error(err))
	}
}

func (s *Server) process(c codec.MessageCodec, body []byte, req *message.RPCMessage) *message.RPCMessage {
	if err := c.Decode(body, req); err != nil {
		return &message.RPCMessage{Status: message.StatusFailed, Error: fmt.Sprintf("bad request: %v", err)}
	}

	s.mu.RLock()
	h, ok := s.handlers[req.Name]
	s.mu.RUnlock()
	if !ok {
		return &message.RPCMessage{Name: req.Name, Status: message.StatusNotFound}
	}

	out, err := h(s.ctx, req.Payload)
	if err != nil {
		return &message.RPCMessage{Name: req.Name, Status: message.StatusFailed, Error: err.Error()}
	}
	return &message.RPCMessage{Name: req.Name, Status: message.StatusOK, Payload: out}
}

// Shutdown performs graceful shutdown:
//  1. set the shutdown flag so the Accept error is recognized as intentional
//  2. close the listener (stop accepting new connections)
//  3. wait for in-flight requests, up to timeout
//  4. cancel handler contexts and close the remaining connections
func (s *Server) Shutdown(timeout time.Duration) error {
	s.connMu.Lock()
	s.shutdown.Store(true)
	l := s.listener
	s.connMu.Unlock()
	if l != nil {
		l.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("timeout waiting for ongoing requests to finish")
	}

	s.cancel()
	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()
	return err
}
