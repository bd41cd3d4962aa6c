package naming

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/rtmctl/internal/orb"
)

// InitialReference is the bootstrap name of the root naming context.
const InitialReference = "NameService"

// Re-exported so callers only need this package for resolution errors.
var (
	ErrNameNotFound = orb.ErrNameNotFound
	ErrTransport    = orb.ErrTransport
)

// Resolve looks path up in root. Misses fail with ErrNameNotFound; no retry is attempted.
func Resolve(ctx context.Context, root orb.NamingContext, path ObjectPath) (orb.Object, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("naming: resolve %s: %w", path, errNoRoot)
	}
	obj, err := root.Resolve(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("naming: resolve %s: %w", path, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("naming: resolve %s: %w", path, orb.ErrNameNotFound)
	}
	return obj, nil
}

// Unbind removes the binding for path from root.
func Unbind(ctx context.Context, root orb.NamingContext, path ObjectPath) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if root == nil {
		return fmt.Errorf("naming: unbind %s: %w", path, errNoRoot)
	}
	if err := root.Unbind(ctx, path); err != nil {
		return fmt.Errorf("naming: unbind %s: %w", path, err)
	}
	return nil
}

var errNoRoot = errors.New("naming: no root context")

// Client holds the root naming context for one process. It is built once at
// startup and passed to whatever needs resolution.
type Client struct {
	root orb.NamingContext
}

// NewClient wraps an already narrowed root context.
func NewClient(root orb.NamingContext) *Client {
	return &Client{root: root}
}

// Connect obtains the root context from the ORB's "NameService" initial reference.
func Connect(ctx context.Context, o orb.ORB) (*Client, error) {
	obj, err := o.ResolveInitialReferences(ctx, InitialReference)
	if err != nil {
		return nil, fmt.Errorf("naming: resolve initial reference: %w", err)
	}
	root, err := orb.NarrowNamingContext(obj)
	if err != nil {
		return nil, fmt.Errorf("naming: %w", err)
	}
	return NewClient(root), nil
}

func (c *Client) Root() orb.NamingContext {
	return c.root
}

func (c *Client) Resolve(ctx context.Context, path ObjectPath) (orb.Object, error) {
	return Resolve(ctx, c.root, path)
}

// ResolveIn resolves path against nc instead of the root; this is how two-step
// lookups (host context, then manager) are chained.
func (c *Client) ResolveIn(ctx context.Context, nc orb.NamingContext, path ObjectPath) (orb.Object, error) {
	return Resolve(ctx, nc, path)
}

// ResolveContext resolves path and narrows the result to a naming context.
func (c *Client) ResolveContext(ctx context.Context, path ObjectPath) (orb.NamingContext, error) {
	obj, err := c.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	nc, err := orb.NarrowNamingContext(obj)
	if err != nil {
		return nil, fmt.Errorf("naming: %s: %w", path, err)
	}
	return nc, nil
}

func (c *Client) Bind(ctx context.Context, path ObjectPath, obj orb.Object) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if err := c.root.Bind(ctx, path, obj); err != nil {
		return fmt.Errorf("naming: bind %s: %w", path, err)
	}
	return nil
}

func (c *Client) Rebind(ctx context.Context, path ObjectPath, obj orb.Object) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if err := c.root.Rebind(ctx, path, obj); err != nil {
		return fmt.Errorf("naming: rebind %s: %w", path, err)
	}
	return nil
}

func (c *Client) Unbind(ctx context.Context, path ObjectPath) error {
	return Unbind(ctx, c.root, path)
}

// BindContext returns the naming context bound at path, creating it when absent.
func (c *Client) BindContext(ctx context.Context, path ObjectPath) (orb.NamingContext, error) {
	nc, err := c.ResolveContext(ctx, path)
	if err == nil {
		return nc, nil
	}
	if !errors.Is(err, orb.ErrNameNotFound) {
		return nil, err
	}
	nc, err = c.root.BindNewContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("naming: bind new context %s: %w", path, err)
	}
	return nc, nil
}
