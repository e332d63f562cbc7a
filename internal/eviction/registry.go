package eviction

import (
	"fmt"
	"slices"
	"sync"
)

// DefaultStrategy is used when no strategy is configured.
const DefaultStrategy = "newest"

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Strategy)
)

// Register makes a candidate selection strategy available by name.
func Register(name string, factory func() Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// GetStrategy returns a new instance of the strategy with the given name.
func GetStrategy(name string) (Strategy, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown eviction strategy %q (available: %v)", name, strategyNames())
	}
	return factory(), nil
}

// Strategies lists the registered strategy names in sorted order.
func Strategies() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return strategyNames()
}

func strategyNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
