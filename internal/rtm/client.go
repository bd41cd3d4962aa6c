package rtm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/naming"
	"github.com/danmuck/rtmctl/internal/orb"
)

// Client discovers managers and components through one naming client.
type Client struct {
	naming *naming.Client
	orb    orb.ORB
}

func NewClient(nc *naming.Client, o orb.ORB) *Client {
	return &Client{naming: nc, orb: o}
}

// Dial connects a discovery client to the naming service exposed by o.
func Dial(ctx context.Context, o orb.ORB) (*Client, error) {
	nc, err := naming.Connect(ctx, o)
	if err != nil {
		return nil, err
	}
	return NewClient(nc, o), nil
}

func (c *Client) Naming() *naming.Client {
	return c.naming
}

func (c *Client) ORB() orb.ORB {
	return c.orb
}

// DefaultHostName returns the local host name, or "localhost" when it is unknown.
func DefaultHostName() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		return "localhost"
	}
	return host
}

// FindObject resolves a single (name, kind) entry at the naming root.
func (c *Client) FindObject(ctx context.Context, name, kind string) (orb.Object, error) {
	return c.naming.Resolve(ctx, naming.Path(name, kind))
}

// FindObjectIn resolves (name, kind) inside the context bound as (ctxName, ctxKind).
func (c *Client) FindObjectIn(ctx context.Context, ctxName, ctxKind, name, kind string) (orb.Object, error) {
	parent, err := c.naming.ResolveContext(ctx, naming.Path(ctxName, ctxKind))
	if err != nil {
		return nil, err
	}
	return c.naming.ResolveIn(ctx, parent, naming.Path(name, kind))
}

// FindManager resolves host.host_cxt, then manager.mgr inside it. An empty
// host means the local host.
func (c *Client) FindManager(ctx context.Context, host string) (*Manager, error) {
	if host == "" {
		host = DefaultHostName()
	}
	obj, err := c.FindObjectIn(ctx, host, naming.KindHostContext, naming.ManagerName, naming.KindManager)
	if err != nil {
		return nil, fmt.Errorf("rtm: find manager on %s: %w", host, err)
	}
	return c.WrapManager(obj)
}

// FindComponent resolves name.rtc at the naming root.
func (c *Client) FindComponent(ctx context.Context, name string) (*Component, error) {
	obj, err := c.FindObject(ctx, name, naming.KindComponent)
	if err != nil {
		return nil, fmt.Errorf("rtm: find component %s: %w", name, err)
	}
	return c.WrapComponent(ctx, obj)
}

// FindComponentOnHost resolves name.rtc inside host.host_cxt.
func (c *Client) FindComponentOnHost(ctx context.Context, host, name string) (*Component, error) {
	if host == "" {
		host = DefaultHostName()
	}
	obj, err := c.FindObjectIn(ctx, host, naming.KindHostContext, name, naming.KindComponent)
	if err != nil {
		return nil, fmt.Errorf("rtm: find component %s on %s: %w", name, host, err)
	}
	return c.WrapComponent(ctx, obj)
}

// UnbindObject removes (name, kind) from the naming root. The object itself is untouched.
func (c *Client) UnbindObject(ctx context.Context, name, kind string) error {
	if err := c.naming.Unbind(ctx, naming.Path(name, kind)); err != nil {
		return err
	}
	logging.Infof("rtm.unbind name=%q kind=%q", name, kind)
	return nil
}

// WrapComponent narrows obj and wraps it in a handle.
func (c *Client) WrapComponent(ctx context.Context, obj orb.Object) (*Component, error) {
	ref, err := orb.NarrowComponent(obj)
	if err != nil {
		return nil, err
	}
	return NewComponent(ctx, c.orb, ref)
}

// WrapManager narrows obj and wraps it in a handle.
func (c *Client) WrapManager(obj orb.Object) (*Manager, error) {
	ref, err := orb.NarrowManager(obj)
	if err != nil {
		return nil, err
	}
	return NewManager(c.orb, ref), nil
}
