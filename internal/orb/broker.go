package orb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IORPrefix marks a stringified reference.
const IORPrefix = "IOR:"

// NewObjectID returns a fresh object identity under a lowercase role prefix.
func NewObjectID(prefix string) string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "obj"
	}
	return prefix + "." + uuid.NewString()
}

// Broker is an in-process ORB: a table of locally served objects keyed by id.
type Broker struct {
	mu      sync.RWMutex
	objects map[string]Object
	initial map[string]Object
}

var _ ORB = (*Broker)(nil)

// NewBroker creates an empty object table.
func NewBroker() *Broker {
	return &Broker{
		objects: make(map[string]Object),
		initial: make(map[string]Object),
	}
}

// Register makes obj reachable by its id. Registering the same object twice is allowed.
func (b *Broker) Register(obj Object) (string, error) {
	if obj == nil {
		return "", fmt.Errorf("%w: nil object", ErrInvalidObjectRef)
	}
	id := obj.ObjectID()
	if !isValidID(id) {
		return "", fmt.Errorf("%w: invalid object id %q", ErrInvalidObjectRef, id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.objects[id]; ok && prev != obj {
		return "", fmt.Errorf("%w: object id %q already registered", ErrInvalidObjectRef, id)
	}
	b.objects[id] = obj
	return IORPrefix + id, nil
}

// Unregister drops id from the table. Outstanding string references stop resolving.
func (b *Broker) Unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, id)
}

// Lookup returns the local object registered under id.
func (b *Broker) Lookup(id string) (Object, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[id]
	return obj, ok
}

// SetInitialReference binds a bootstrap name such as "NameService".
func (b *Broker) SetInitialReference(name string, obj Object) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty initial reference name", ErrInvalidName)
	}
	if _, err := b.Register(obj); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initial[name] = obj
	return nil
}

func (b *Broker) ResolveInitialReferences(_ context.Context, name string) (Object, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.initial[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: initial reference %q", ErrInvalidName, name)
	}
	return obj, nil
}

func (b *Broker) StringToObject(_ context.Context, ior string) (Object, error) {
	id, err := ParseIOR(ior)
	if err != nil {
		return nil, err
	}
	obj, ok := b.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotExist, id)
	}
	return obj, nil
}

// ObjectToString registers obj if needed and returns its stringified reference.
func (b *Broker) ObjectToString(obj Object) (string, error) {
	return b.Register(obj)
}

// IDs returns registered object ids in deterministic order.
func (b *Broker) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.objects))
	for id := range b.objects {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ParseIOR extracts the object id from a stringified reference.
func ParseIOR(ior string) (string, error) {
	ior = strings.TrimSpace(ior)
	if !strings.HasPrefix(ior, IORPrefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidObjectRef, ior)
	}
	id := strings.TrimPrefix(ior, IORPrefix)
	if !isValidID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidObjectRef, ior)
	}
	return id, nil
}

func isValidID(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_' || c == ':' || c == '/'
		if !(isAlpha || isDigit || isSep) {
			return false
		}
		if (i == 0 || i == len(id)-1) && isSep {
			return false
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
