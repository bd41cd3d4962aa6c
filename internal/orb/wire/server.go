package wire

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/observability"
	"github.com/danmuck/rtmctl/internal/orb"
)

// DefaultIdleTimeout closes connections that send nothing for this long.
const DefaultIdleTimeout = 5 * time.Minute

// Server exposes the objects registered in a Broker over line-delimited JSON.
type Server struct {
	broker    *orb.Broker
	advertise string
	peers     *Client

	// IdleTimeout bounds the wait for the next request on a connection.
	IdleTimeout time.Duration

	clientCount atomic.Int64
	mu          sync.Mutex
	conns       map[net.Conn]struct{}
}

// NewServer serves broker. advertise is the address written into references
// handed out by this server. peers resolves references hosted by other
// servers; with nil peers such references are rejected.
func NewServer(broker *orb.Broker, advertise string, peers *Client) *Server {
	return &Server{
		broker:      broker,
		advertise:   strings.TrimSpace(advertise),
		peers:       peers,
		IdleTimeout: DefaultIdleTimeout,
		conns:       make(map[net.Conn]struct{}),
	}
}

func (s *Server) Broker() *orb.Broker {
	return s.broker
}

func (s *Server) Addr() string {
	return s.advertise
}

// ObjectToString registers obj and returns a reference string other
// processes can pass to Client.StringToObject.
func (s *Server) ObjectToString(obj orb.Object) (string, error) {
	ref, err := s.encodeRef(obj)
	if err != nil {
		return "", err
	}
	if ref == nil {
		return "", fmt.Errorf("%w: nil object", orb.ErrInvalidObjectRef)
	}
	return FormatIOR(*ref), nil
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return err
	}
	if s.advertise == "" {
		s.advertise = ln.Addr().String()
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes ln and
// every open connection.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	logging.Infof("wire.server listening addr=%q advertise=%q", ln.Addr().String(), s.advertise)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.closeConns()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.track(conn, true)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// handleConn decodes one request per line and writes one response per line.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		s.track(conn, false)
		_ = conn.Close()
	}()
	remote := conn.RemoteAddr().String()
	active := s.clientCount.Add(1)
	logging.Debugf("wire.server client connected remote=%q active_clients=%d", remote, active)
	defer func() {
		remaining := s.clientCount.Add(-1)
		logging.Debugf("wire.server client disconnected remote=%q active_clients=%d", remote, remaining)
	}()

	reader := bufio.NewReader(conn)
	for {
		if s.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
		}
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				logging.Warnf("wire.server read remote=%q err=%v", remote, err)
			}
			return
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = writeLine(conn, response{OK: false, Code: "bad_request", Error: err.Error()})
			continue
		}
		resp := s.handleRequest(ctx, req)
		if err := writeLine(conn, resp); err != nil {
			logging.Warnf("wire.server write remote=%q err=%v", remote, err)
			return
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req request) response {
	data, err := s.dispatch(ctx, req)
	if err != nil {
		code := errorCode(err)
		observability.RecordServedCall(req.Method, code)
		logging.Debugf("wire.server call object=%q method=%q code=%s err=%v", req.Object, req.Method, code, err)
		return response{ID: req.ID, OK: false, Code: code, Error: err.Error()}
	}
	observability.RecordServedCall(req.Method, "ok")
	if data == nil {
		return response{ID: req.ID, OK: true}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return response{ID: req.ID, OK: false, Code: "remote", Error: err.Error()}
	}
	return response{ID: req.ID, OK: true, Data: payload}
}

func (s *Server) encodeRef(obj orb.Object) (*ObjectRef, error) {
	if obj == nil {
		return nil, nil
	}
	if stub, ok := obj.(*Stub); ok {
		ref := stub.ref
		return &ref, nil
	}
	if _, err := s.broker.Register(obj); err != nil {
		return nil, err
	}
	return &ObjectRef{ID: obj.ObjectID(), Addr: s.advertise, Caps: orb.CapabilitiesOf(obj)}, nil
}

func (s *Server) decodeRef(ref *ObjectRef) (orb.Object, error) {
	if ref == nil {
		return nil, nil
	}
	if ref.Addr == "" || ref.Addr == s.advertise {
		obj, ok := s.broker.Lookup(ref.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", orb.ErrObjectNotExist, ref.ID)
		}
		return obj, nil
	}
	if s.peers == nil {
		return nil, fmt.Errorf("%w: %s is hosted at %s", orb.ErrObjectNotExist, ref.ID, ref.Addr)
	}
	return s.peers.decodeRef(ref)
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode args: %v", errBadRequest, err)
	}
	return nil
}

var errBadRequest = errors.New("wire: bad request")
