package canvas

import (
	"strings"
	"sync"
)

// StateBackendFactory builds a backend from a full DSN.
type StateBackendFactory func(dsn string) (StateBackend, error)

var (
	backendRegistryMu sync.RWMutex
	backendRegistry   = map[string]StateBackendFactory{}
)

// RegisterBackendFactory binds a DSN scheme to a factory. Later
// registrations for the same scheme win, so embedders can override.
func RegisterBackendFactory(scheme string, factory StateBackendFactory) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" || factory == nil {
		return
	}
	backendRegistryMu.Lock()
	defer backendRegistryMu.Unlock()
	backendRegistry[scheme] = factory
}

// LookupBackendFactory returns the factory registered for a scheme.
func LookupBackendFactory(scheme string) (StateBackendFactory, bool) {
	backendRegistryMu.RLock()
	defer backendRegistryMu.RUnlock()
	factory, ok := backendRegistry[strings.ToLower(scheme)]
	return factory, ok
}
