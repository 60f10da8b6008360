package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/apkbridge/apkbridge/internal/protocol"
)

// Registry is the static table of tools. Registration happens once at
// startup; afterward the table is read-only, so lookups need no lock.
type Registry struct {
	tools map[string]*Descriptor
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Descriptor)}
}

// Register adds a descriptor. A second registration under the same name
// fails with DuplicateTool; malformed descriptors fail loudly at startup
// rather than at call time.
func (r *Registry) Register(d *Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool descriptor has no name")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q has no handler", d.Name)
	}
	if d.WorkspaceScoped {
		if d.PathArg == "" {
			return fmt.Errorf("workspace-scoped tool %q names no path argument", d.Name)
		}
		if spec := d.arg(d.PathArg); spec == nil || !spec.Required || spec.Type != TypeString {
			return fmt.Errorf("tool %q path argument %q must be a required string", d.Name, d.PathArg)
		}
	}
	if _, exists := r.tools[d.Name]; exists {
		return protocol.NewError(protocol.KindDuplicateTool,
			"tool %q is already registered", d.Name)
	}

	r.tools[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Resolve returns the descriptor for name.
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	d, ok := r.tools[name]
	if !ok {
		return nil, protocol.NewError(protocol.KindToolNotFound,
			"unknown tool %q", name).
			WithDetail("available", r.Names())
	}
	return d, nil
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns every descriptor in registration order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Validate checks raw arguments against the descriptor's schema and returns
// the typed Args. Every offending field is reported in one pass so a client
// can correct all of them in a single round trip.
func Validate(d *Descriptor, raw map[string]any) (Args, error) {
	problems := make(map[string]string)

	for _, spec := range d.Args {
		value, present := raw[spec.Name]
		if !present {
			if spec.Required {
				problems[spec.Name] = "required argument is missing"
			}
			continue
		}
		if msg := checkType(spec, value); msg != "" {
			problems[spec.Name] = msg
		}
	}

	known := make(map[string]bool, len(d.Args))
	for _, spec := range d.Args {
		known[spec.Name] = true
	}
	for name := range raw {
		if !known[name] {
			problems[name] = "unknown argument"
		}
	}

	if len(problems) > 0 {
		fields := make([]string, 0, len(problems))
		for name := range problems {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		return nil, protocol.NewError(protocol.KindInvalidArguments,
			"invalid arguments for %s: %s", d.Name, strings.Join(fields, ", ")).
			WithDetail("fields", problems)
	}

	args := make(Args, len(raw))
	for k, v := range raw {
		args[k] = v
	}
	return args, nil
}

func checkType(spec ArgSpec, value any) string {
	switch spec.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		if spec.Required && strings.TrimSpace(s) == "" {
			return "must be a non-empty string"
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return "must be a boolean"
		}
	case TypeInt:
		switch n := value.(type) {
		case int, int64:
		case float64:
			if n != float64(int64(n)) {
				return "must be an integer"
			}
		case json.Number:
			if _, err := n.Int64(); err != nil {
				return "must be an integer"
			}
		default:
			return "must be an integer"
		}
	case TypeEnum:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		for _, allowed := range spec.Enum {
			if s == allowed {
				return ""
			}
		}
		return fmt.Sprintf("must be one of: %s", strings.Join(spec.Enum, ", "))
	default:
		return fmt.Sprintf("unsupported argument type %q", spec.Type)
	}
	return ""
}

func (d *Descriptor) arg(name string) *ArgSpec {
	for i := range d.Args {
		if d.Args[i].Name == name {
			return &d.Args[i]
		}
	}
	return nil
}
