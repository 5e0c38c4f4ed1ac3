package service

import "fmt"

// RegisterAll registers every built-in service with the registry.
func RegisterAll(registry *Registry) error {
	services := map[string]Constructor{
		ServiceSimulation: NewSimulationService,
	}

	for name, constructor := range services {
		if err := registry.Register(name, constructor); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}
