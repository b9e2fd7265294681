// Package plugins holds the global plugin factory registry (name ->
// constructor pair) that the concrete plugin packages register into
// from their init functions.
package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/packetloom/tracecore/internal/core"
	"github.com/packetloom/tracecore/internal/pluginapi"
)

var (
	mu            sync.RWMutex
	startRegistry = make(map[string]pluginapi.StartFunc)
	mergeRegistry = make(map[string]pluginapi.StartMergingFunc)
)

// Register adds a plugin's Start and StartMerging constructors under
// name. Panics if name is already registered; duplicate registration
// is a programming error, and Register is only called from package
// init functions.
func Register(name string, start pluginapi.StartFunc, startMerging pluginapi.StartMergingFunc) {
	mu.Lock()
	defer mu.Unlock()
	if name == "" {
		panic("plugins: name cannot be empty")
	}
	if start == nil || startMerging == nil {
		panic(fmt.Sprintf("plugins: %q registered with a nil factory", name))
	}
	if _, exists := startRegistry[name]; exists {
		panic(fmt.Sprintf("plugins: %q already registered", name))
	}
	startRegistry[name] = start
	mergeRegistry[name] = startMerging
}

// Start looks up the named plugin's per-worker constructor.
func Start(name string) (pluginapi.StartFunc, error) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := startRegistry[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", name, core.ErrPluginNotFound)
	}
	return fn, nil
}

// StartMerging looks up the named plugin's merge-side constructor.
func StartMerging(name string) (pluginapi.StartMergingFunc, error) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := mergeRegistry[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", name, core.ErrPluginNotFound)
	}
	return fn, nil
}

// List returns the sorted names of every registered plugin.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(startRegistry))
	for name := range startRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
