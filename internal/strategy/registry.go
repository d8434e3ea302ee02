package strategy

// Registry maps strategy names to instances. It is built once at startup and
// read-only afterwards, which makes concurrent lookups safe without locking.
type Registry struct {
	strategies map[string]Strategy
	order      []string
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.register(NewBreakout())
	r.register(NewSupportResistance())
	return r
}

// NewTestRegistry builds a registry from explicit instances. Intended for
// tests that need doubles instead of the built-ins.
func NewTestRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	for _, s := range strategies {
		r.register(s)
	}
	return r
}

func (r *Registry) register(s Strategy) {
	if _, dup := r.strategies[s.Name()]; !dup {
		r.order = append(r.order, s.Name())
	}
	r.strategies[s.Name()] = s
}

// Get resolves a strategy by name. An unknown name is a configuration
// error, surfaced before any candle is processed.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, configErrf("strategy", "unknown strategy %q", name)
	}
	return s, nil
}

// Info describes one registered strategy for API consumers.
type Info struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  []ParameterDef `json:"parameters"`
}

// List returns metadata for every registered strategy in registration order.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		s := r.strategies[name]
		out = append(out, Info{
			Name:        s.Name(),
			Description: s.Description(),
			Parameters:  s.Parameters(),
		})
	}
	return out
}
