package wire

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/rtmctl/internal/observability"
	"github.com/danmuck/rtmctl/internal/orb"
)

const (
	DefaultDialTimeout = 3 * time.Second
	DefaultCallTimeout = 10 * time.Second
)

// Client is the ORB used by control-plane processes. It keeps one connection
// per server address and issues one call at a time on each.
type Client struct {
	endpoint    string
	dialTimeout time.Duration
	callTimeout time.Duration

	seq   atomic.Uint64
	mu    sync.Mutex
	conns map[string]*clientConn
}

var _ orb.ORB = (*Client)(nil)

type clientConn struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// Option adjusts a Client.
type Option func(*Client)

func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithCallTimeout bounds every call that has no earlier context deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// NewClient targets endpoint for bootstrap references and for reference
// strings that carry no address. Connections are dialed lazily.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:    strings.TrimSpace(endpoint),
		dialTimeout: DefaultDialTimeout,
		callTimeout: DefaultCallTimeout,
		conns:       make(map[string]*clientConn),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close drops every open connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for addr, cc := range c.conns {
		if err := cc.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.conns, addr)
	}
	return errors.Join(errs...)
}

func (c *Client) ResolveInitialReferences(ctx context.Context, name string) (orb.Object, error) {
	var ref *ObjectRef
	if err := c.call(ctx, c.endpoint, "", "orb", methodInitial, nameArgs{Name: name}, &ref); err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: initial reference %q", orb.ErrInvalidName, name)
	}
	return c.decodeRef(ref)
}

// StringToObject parses ior and asks the hosting server to describe it, so
// the returned stub knows its roles.
func (c *Client) StringToObject(ctx context.Context, ior string) (orb.Object, error) {
	ref, err := ParseIOR(ior)
	if err != nil {
		return nil, err
	}
	if ref.Addr == "" {
		ref.Addr = c.endpoint
	}
	var described *ObjectRef
	if err := c.call(ctx, ref.Addr, ref.ID, "orb", methodDescribe, nil, &described); err != nil {
		return nil, err
	}
	if described == nil {
		return nil, fmt.Errorf("%w: %s", orb.ErrObjectNotExist, ior)
	}
	return c.decodeRef(described)
}

func (c *Client) ObjectToString(obj orb.Object) (string, error) {
	ref, err := c.encodeRef(obj)
	if err != nil {
		return "", err
	}
	if ref == nil {
		return "", fmt.Errorf("%w: nil object", orb.ErrInvalidObjectRef)
	}
	return FormatIOR(*ref), nil
}

func (c *Client) encodeRef(obj orb.Object) (*ObjectRef, error) {
	if obj == nil {
		return nil, nil
	}
	stub, ok := obj.(*Stub)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a remote reference", orb.ErrInvalidObjectRef, obj.ObjectID())
	}
	ref := stub.ref
	return &ref, nil
}

func (c *Client) decodeRef(ref *ObjectRef) (orb.Object, error) {
	if ref == nil {
		return nil, nil
	}
	out := *ref
	if out.Addr == "" {
		out.Addr = c.endpoint
	}
	return &Stub{client: c, ref: out}, nil
}

// call performs one request/response round trip. IO failures drop the
// connection and wrap orb.ErrTransport; there is no retry.
func (c *Client) call(ctx context.Context, addr, object string, role orb.Capability, method string, args, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = errorCode(err)
		}
		observability.RecordRemoteCall(string(role), method, outcome, time.Since(start))
	}()

	req := request{ID: c.seq.Add(1), Object: object, Method: method}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return err
		}
		req.Args = raw
	}

	cc, err := c.conn(ctx, addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", orb.ErrTransport, addr, err)
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()

	deadline := time.Now().Add(c.callTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = cc.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = cc.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := writeLine(cc.conn, req); err != nil {
		c.drop(addr, cc)
		return fmt.Errorf("%w: %s %s: %v", orb.ErrTransport, method, addr, err)
	}
	line, err := cc.reader.ReadBytes('\n')
	if err != nil {
		c.drop(addr, cc)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s %s: %w", orb.ErrTransport, method, addr, ctxErr)
		}
		return fmt.Errorf("%w: %s %s: %v", orb.ErrTransport, method, addr, err)
	}
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		c.drop(addr, cc)
		return fmt.Errorf("%w: %s %s: decode response: %v", orb.ErrTransport, method, addr, err)
	}
	if resp.ID != req.ID {
		c.drop(addr, cc)
		return fmt.Errorf("%w: %s %s: response id %d for request %d", orb.ErrTransport, method, addr, resp.ID, req.ID)
	}
	if !resp.OK {
		return decodeError(resp)
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("wire: %s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) conn(ctx context.Context, addr string) (*clientConn, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("wire: server address required")
	}
	c.mu.Lock()
	cc, ok := c.conns[addr]
	c.mu.Unlock()
	if ok {
		return cc, nil
	}

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	cc = &clientConn{conn: conn, reader: bufio.NewReader(conn)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.conns[addr]; ok {
		_ = conn.Close()
		return existing, nil
	}
	c.conns[addr] = cc
	return cc, nil
}

func (c *Client) drop(addr string, cc *clientConn) {
	_ = cc.conn.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conns[addr] == cc {
		delete(c.conns, addr)
	}
}
