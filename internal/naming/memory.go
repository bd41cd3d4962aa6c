package naming

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/rtmctl/internal/orb"
)

// MemoryContext is an in-process naming context. Nested contexts may be other
// MemoryContexts or any remote orb.NamingContext bound into the tree.
type MemoryContext struct {
	id string

	mu       sync.RWMutex
	bindings map[orb.NameComponent]orb.Object
}

var _ orb.NamingContext = (*MemoryContext)(nil)

func NewMemoryContext() *MemoryContext {
	return &MemoryContext{
		id:       orb.NewObjectID("naming"),
		bindings: make(map[orb.NameComponent]orb.Object),
	}
}

func (m *MemoryContext) ObjectID() string {
	return m.id
}

func (m *MemoryContext) Resolve(ctx context.Context, path []orb.NameComponent) (orb.Object, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", orb.ErrInvalidName)
	}
	obj, ok := m.lookup(path[0])
	if !ok {
		return nil, fmt.Errorf("%w: %s", orb.ErrNameNotFound, path[0])
	}
	if len(path) == 1 {
		return obj, nil
	}
	next, err := m.child(path[0], obj)
	if err != nil {
		return nil, err
	}
	return next.Resolve(ctx, path[1:])
}

func (m *MemoryContext) Bind(ctx context.Context, path []orb.NameComponent, obj orb.Object) error {
	return m.bind(ctx, path, obj, false)
}

func (m *MemoryContext) Rebind(ctx context.Context, path []orb.NameComponent, obj orb.Object) error {
	return m.bind(ctx, path, obj, true)
}

func (m *MemoryContext) BindNewContext(ctx context.Context, path []orb.NameComponent) (orb.NamingContext, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", orb.ErrInvalidName)
	}
	if len(path) > 1 {
		parent, err := m.parent(ctx, path)
		if err != nil {
			return nil, err
		}
		return parent.BindNewContext(ctx, path[len(path)-1:])
	}
	nc := NewMemoryContext()
	if err := m.bind(ctx, path, nc, false); err != nil {
		return nil, err
	}
	return nc, nil
}

func (m *MemoryContext) Unbind(ctx context.Context, path []orb.NameComponent) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", orb.ErrInvalidName)
	}
	if len(path) > 1 {
		parent, err := m.parent(ctx, path)
		if err != nil {
			return err
		}
		return parent.Unbind(ctx, path[len(path)-1:])
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bindings[path[0]]; !ok {
		return fmt.Errorf("%w: %s", orb.ErrNameNotFound, path[0])
	}
	delete(m.bindings, path[0])
	return nil
}

func (m *MemoryContext) List(_ context.Context) ([]orb.Binding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]orb.Binding, 0, len(m.bindings))
	for name, obj := range m.bindings {
		_, isCtx := obj.(orb.NamingContext)
		out = append(out, orb.Binding{Name: name, IsContext: isCtx})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name.ID != out[j].Name.ID {
			return out[i].Name.ID < out[j].Name.ID
		}
		return out[i].Name.Kind < out[j].Name.Kind
	})
	return out, nil
}

func (m *MemoryContext) bind(ctx context.Context, path []orb.NameComponent, obj orb.Object, replace bool) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", orb.ErrInvalidName)
	}
	if obj == nil {
		return fmt.Errorf("%w: nil object for %s", orb.ErrInvalidObjectRef, path[len(path)-1])
	}
	if len(path) > 1 {
		parent, err := m.parent(ctx, path)
		if err != nil {
			return err
		}
		last := path[len(path)-1:]
		if replace {
			return parent.Rebind(ctx, last, obj)
		}
		return parent.Bind(ctx, last, obj)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bindings[path[0]]; ok && !replace {
		return fmt.Errorf("%w: %s", orb.ErrAlreadyBound, path[0])
	}
	m.bindings[path[0]] = obj
	return nil
}

// parent resolves every segment but the last to a naming context.
func (m *MemoryContext) parent(ctx context.Context, path []orb.NameComponent) (orb.NamingContext, error) {
	obj, err := m.Resolve(ctx, path[:len(path)-1])
	if err != nil {
		return nil, err
	}
	nc, err := orb.NarrowNamingContext(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orb.ErrNotContext, err)
	}
	return nc, nil
}

func (m *MemoryContext) lookup(name orb.NameComponent) (orb.Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.bindings[name]
	return obj, ok
}

func (m *MemoryContext) child(name orb.NameComponent, obj orb.Object) (orb.NamingContext, error) {
	nc, err := orb.NarrowNamingContext(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", orb.ErrNotContext, name)
	}
	return nc, nil
}
