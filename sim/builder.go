package sim

import (
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/sarchlab/csim/mem/cache"
)

// Builder can be used to build a Simulator.
type Builder struct {
	name         string
	geometry     cache.Geometry
	victimFinder cache.VictimFinder
	logger       *zap.Logger
}

// MakeBuilder creates a new builder with LRU replacement and no logging.
func MakeBuilder() Builder {
	return Builder{
		logger: zap.NewNop(),
	}
}

// WithName sets the name of the simulator. Unnamed simulators get a unique
// generated name.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// WithGeometry sets the shape of the simulated cache.
func (b Builder) WithGeometry(g cache.Geometry) Builder {
	b.geometry = g
	return b
}

// WithVictimFinder replaces the LRU victim finder.
func (b Builder) WithVictimFinder(victimFinder cache.VictimFinder) Builder {
	b.victimFinder = victimFinder
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// Build validates the geometry and creates a simulator with a cold cache.
func (b Builder) Build() (*Simulator, error) {
	if err := b.geometry.Validate(); err != nil {
		return nil, &ConfigurationError{Field: "geometry", Err: err}
	}

	name := b.name
	if name == "" {
		name = "csim_" + xid.New().String()
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Simulator{
		HookableBase: NewHookableBase(),
		name:         name,
		geometry:     b.geometry,
		tags:         cache.NewTagArray(b.geometry),
		engine:       cache.NewReplacementEngine(b.victimFinder),
		logger:       logger,
	}

	return s, nil
}
