package engine

import (
	"fmt"
	"sort"

	"github.com/san-kum/dyncouple/internal/dynamo"
	"github.com/san-kum/dyncouple/internal/physics"
)

// Factory creates a fresh, uninitialized engine. enginePath is the optional
// library/data location from the configuration.
type Factory func(enginePath string) (dynamo.Engine, error)

type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register("spring_mass", func(string) (dynamo.Engine, error) {
		return physics.NewODEEngine(physics.NewSpringMass()), nil
	})
	r.Register("pendulum", func(string) (dynamo.Engine, error) {
		return physics.NewODEEngine(physics.NewPendulum()), nil
	})
	r.Register("lorenz", func(string) (dynamo.Engine, error) {
		return physics.NewODEEngine(physics.NewLorenz()), nil
	})
	r.Register("relaxation", func(string) (dynamo.Engine, error) {
		return physics.NewODEEngine(physics.NewRelaxation()), nil
	})
	r.Register("vanderpol", func(string) (dynamo.Engine, error) {
		return physics.NewODEEngine(physics.NewVanDerPol()), nil
	})
	r.Register("duffing", func(string) (dynamo.Engine, error) {
		return physics.NewODEEngine(physics.NewDuffing()), nil
	})
	r.Register("rossler", func(string) (dynamo.Engine, error) {
		return physics.NewODEEngine(physics.NewRossler()), nil
	})
	r.Register("forcing", func(string) (dynamo.Engine, error) {
		return physics.NewForcing(), nil
	})

	return r
}

// Register adds or replaces the factory for reference.
func (r *Registry) Register(reference string, f Factory) {
	r.factories[reference] = f
}

func (r *Registry) Has(reference string) bool {
	_, ok := r.factories[reference]
	return ok
}

func (r *Registry) Create(reference, enginePath string) (dynamo.Engine, error) {
	fn, ok := r.factories[reference]
	if !ok {
		return nil, fmt.Errorf("unknown engine: %s", reference)
	}
	return fn(enginePath)
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
