package system

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/rtmctl/internal/rtm"
	"gopkg.in/yaml.v3"
)

var ErrInvalidPlan = errors.New("system: invalid plan")

// Plan describes one deployment: modules to load on a host's manager, the
// components to find or create, their properties, data connections,
// execution order and which components to activate.
type Plan struct {
	Host        string           `yaml:"host"`
	Modules     []string         `yaml:"modules"`
	Components  []ComponentSpec  `yaml:"components"`
	Connections []ConnectionSpec `yaml:"connections"`
	Serialize   []string         `yaml:"serialize"`
	Activate    []string         `yaml:"activate"`
}

// ComponentSpec names a component. Without a factory the component must
// already be registered under the host context.
type ComponentSpec struct {
	Name       string            `yaml:"name"`
	Factory    string            `yaml:"factory,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// ConnectionSpec links "component.port" selectors, output to input.
type ConnectionSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Load reads and validates the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	plan, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// Parse decodes a YAML plan. Unknown keys are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var plan Plan
	if err := dec.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPlan)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Marshal renders the plan as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks names and references without contacting anything.
func (p *Plan) Validate() error {
	var errs []error
	known := make(map[string]bool, len(p.Components))
	for i, c := range p.Components {
		name := c.Name
		switch {
		case strings.TrimSpace(name) == "":
			errs = append(errs, fmt.Errorf("components[%d]: name required", i))
		case strings.TrimSpace(name) != name:
			errs = append(errs, fmt.Errorf("components[%d]: name %q has surrounding whitespace", i, name))
		case strings.Contains(name, "."):
			errs = append(errs, fmt.Errorf("components[%d]: name %q must not contain '.'", i, name))
		case known[name]:
			errs = append(errs, fmt.Errorf("components[%d]: duplicate name %q", i, name))
		}
		known[name] = true
	}
	for i, m := range p.Modules {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, fmt.Errorf("modules[%d]: empty module name", i))
		}
	}
	for i, conn := range p.Connections {
		for _, sel := range []string{conn.From, conn.To} {
			comp, _, err := rtm.SplitPortSelector(sel)
			if err != nil {
				errs = append(errs, fmt.Errorf("connections[%d]: %w", i, err))
				continue
			}
			if !known[comp] {
				errs = append(errs, fmt.Errorf("connections[%d]: unknown component %q", i, comp))
			}
		}
	}
	for _, list := range []struct {
		field string
		names []string
	}{{"serialize", p.Serialize}, {"activate", p.Activate}} {
		for i, name := range list.names {
			if !known[name] {
				errs = append(errs, fmt.Errorf("%s[%d]: unknown component %q", list.field, i, name))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidPlan, errors.Join(errs...))
}
