// Package logging provides the process-wide structured logger. Components
// that log (e.g. merkletree, memo) take a child of this package-level
// default through Named rather than receiving a logger by injection.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once Sync
	root *zap.Logger
)

// Sync guards lazy initialisation of the default logger.
type Sync struct {
	mu   sync.Mutex
	done bool
}

// Default returns the process-wide logger, building it on first use.
// Callers that want a custom configuration should build their own
// *zap.Logger and pass it explicitly instead of relying on this default.
func Default() *zap.Logger {
	once.mu.Lock()
	defer once.mu.Unlock()
	if !once.done {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		root = l
		once.done = true
	}
	return root
}

// Named returns a child logger scoped to a component, e.g. "merkletree".
func Named(component string) *zap.Logger {
	return Default().Named(component)
}
