package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sainte-ai/emotion-engine/pkg/provider/scorer"
	"github.com/sainte-ai/emotion-engine/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stt    map[string]func(ProviderEntry) (stt.Transcriber, error)
	scorer map[string]func(ProviderEntry) (scorer.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:    make(map[string]func(ProviderEntry) (stt.Transcriber, error)),
		scorer: make(map[string]func(ProviderEntry) (scorer.Provider, error)),
	}
}

// RegisterSTT registers an STT transcriber factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterScorer registers an emotion scorer factory under name.
func (r *Registry) RegisterScorer(name string, factory func(ProviderEntry) (scorer.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scorer[name] = factory
}

// CreateSTT instantiates a transcriber using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateScorer instantiates a scorer using the factory registered under
// entry.Name.
func (r *Registry) CreateScorer(entry ProviderEntry) (scorer.Provider, error) {
	r.mu.RLock()
	factory, ok := r.scorer[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: scorer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
