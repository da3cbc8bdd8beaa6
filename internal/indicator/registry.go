package indicator

import (
	"log/slog"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// Option configures a Registry or an Engine.
type Option func(*settings)

type settings struct {
	lib Library
	log *slog.Logger
	obs Observer
}

func newSettings(opts []Option) settings {
	s := settings{lib: DefaultLibrary(), log: slog.Default(), obs: nopObserver{}}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// WithLibrary sets the external library used by library providers.
func WithLibrary(lib Library) Option { return func(s *settings) { s.lib = lib } }

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver sets the hook notified after every spec computation.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.obs = o
		}
	}
}

// Registry is the ordered list of specs declared for one strategy run.
// Every spec is validated when registered; nothing is computed.
type Registry struct {
	lib   Library
	specs []Spec
	keys  map[string]bool
}

// NewRegistry creates an empty registry. Only WithLibrary is relevant here:
// library specs are checked against its signatures.
func NewRegistry(opts ...Option) *Registry {
	s := newSettings(opts)
	return &Registry{lib: s.lib, keys: make(map[string]bool)}
}

// Register appends spec after validating it against the specs registered
// so far. On error the registry is unchanged.
func (r *Registry) Register(spec Spec) error {
	if err := validateSpec(spec, r.keys, r.lib); err != nil {
		return err
	}
	spec.Options = spec.Options.Clone()
	r.specs = append(r.specs, spec)
	for _, k := range spec.outputKeys() {
		r.keys[k] = true
	}
	return nil
}

// Add registers a builtin indicator. deps optionally names the key whose
// series is used as input.
func (r *Registry) Add(key, name string, opts Options, deps ...string) error {
	spec := Spec{Key: key, Provider: Builtin(name), Options: opts}
	if len(deps) > 0 {
		spec.DependsOn = deps[0]
	}
	return r.Register(spec)
}

// All returns the registered specs in declaration order.
func (r *Registry) All() []Spec {
	out := make([]Spec, len(r.specs))
	for i, s := range r.specs {
		s.Options = s.Options.Clone()
		out[i] = s
	}
	return out
}

// Len returns the number of registered specs.
func (r *Registry) Len() int { return len(r.specs) }

// Validate checks a complete spec list the way Register checks each spec.
func Validate(specs []Spec, lib Library) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if err := validateSpec(s, seen, lib); err != nil {
			return err
		}
		for _, k := range s.outputKeys() {
			seen[k] = true
		}
	}
	return nil
}

// validateSpec checks s against the keys declared before it.
func validateSpec(s Spec, seen map[string]bool, lib Library) error {
	if s.Key == "" {
		return configErr(s.Key, "empty key")
	}
	if s.WindowSize < 0 {
		return configErr(s.Key, "negative window size %d", s.WindowSize)
	}
	outs := s.outputKeys()
	local := make(map[string]bool, len(outs))
	for _, k := range outs {
		if k == "" {
			return configErr(s.Key, "empty output name")
		}
		if seen[k] || local[k] {
			return configErr(s.Key, "duplicate key %q", k)
		}
		local[k] = true
	}
	if s.DependsOn != "" && !seen[s.DependsOn] {
		return configErr(s.Key, "depends on %q which is not declared earlier", s.DependsOn)
	}
	opts := s.options()
	if src := opts.String("source", model.FieldClose); !model.IsField(src) {
		return configErr(s.Key, "unknown source field %q", src)
	}

	switch s.Provider.kind {
	case ProviderBuiltin:
		def, ok := builtins[s.Provider.name]
		if !ok {
			return configErr(s.Key, "unknown builtin indicator %q", s.Provider.name)
		}
		if _, err := def.build(opts.Merge(def.defaults)); err != nil {
			return configErr(s.Key, "%s: %v", s.Provider.name, err)
		}
	case ProviderCustom:
		if s.Provider.fn == nil {
			return configErr(s.Key, "custom provider without function")
		}
	case ProviderLibrary:
		sources, _, err := librarySignature(lib, s.Provider)
		if err != nil {
			return configErr(s.Key, "%v", err)
		}
		if s.DependsOn != "" && len(sources) != 1 {
			return configErr(s.Key, "library indicator %q takes %d sources and cannot read a dependency", s.Provider.name, len(sources))
		}
	default:
		return configErr(s.Key, "missing provider")
	}
	return nil
}
