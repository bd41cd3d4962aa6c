package naming

import (
	"fmt"
	"strings"

	"github.com/danmuck/rtmctl/internal/orb"
)

// Well-known kinds used by the runtime's naming layout.
const (
	KindHostContext = "host_cxt"
	KindManager     = "mgr"
	KindComponent   = "rtc"

	ManagerName = "manager"
)

// ObjectPath is an ordered (name, kind) sequence resolved against a naming context.
type ObjectPath []orb.NameComponent

// Path builds the single-segment path used by most lookups.
func Path(name, kind string) ObjectPath {
	return ObjectPath{{ID: name, Kind: kind}}
}

// Validate enforces a non-empty path with non-empty segment names.
func (p ObjectPath) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty path", orb.ErrInvalidName)
	}
	for i, seg := range p {
		if strings.TrimSpace(seg.ID) == "" {
			return fmt.Errorf("%w: segment %d has empty name", orb.ErrInvalidName, i)
		}
	}
	return nil
}

// String renders the stringified-name form, e.g. "host.host_cxt/manager.mgr".
func (p ObjectPath) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = escape(seg.ID)
		if seg.Kind != "" {
			parts[i] += "." + escape(seg.Kind)
		}
	}
	return strings.Join(parts, "/")
}

// ParsePath parses the stringified-name form. A backslash escapes '.', '/' and '\'.
// The last unescaped '.' in a segment separates name from kind.
func ParsePath(raw string) (ObjectPath, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty path", orb.ErrInvalidName)
	}
	var (
		out     ObjectPath
		cur     []rune
		lastDot = -1
		escaped bool
	)
	flush := func() error {
		seg := orb.NameComponent{ID: string(cur)}
		if lastDot >= 0 {
			seg = orb.NameComponent{ID: string(cur[:lastDot]), Kind: string(cur[lastDot+1:])}
		}
		if seg.ID == "" {
			return fmt.Errorf("%w: empty segment in %q", orb.ErrInvalidName, raw)
		}
		out = append(out, seg)
		cur = cur[:0]
		lastDot = -1
		return nil
	}
	for _, r := range raw {
		switch {
		case escaped:
			cur = append(cur, r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '/':
			if err := flush(); err != nil {
				return nil, err
			}
		case r == '.':
			lastDot = len(cur)
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	if escaped {
		return nil, fmt.Errorf("%w: trailing escape in %q", orb.ErrInvalidName, raw)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `.`, `\.`, `/`, `\/`)
	return r.Replace(s)
}
