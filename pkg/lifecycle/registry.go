// Package lifecycle drives generations through install and activation and
// connects the precache loader, the router and the reaper to the host.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Sternrassler/offline-cache/pkg/store"
)

// ErrInvalidTransition is returned for a lifecycle step taken out of order.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// State is the lifecycle state of the current generation.
type State string

const (
	// StateNone means no install has succeeded yet.
	StateNone State = "none"

	// StatePending means the install is running.
	StatePending State = "pending"

	// StateInstalled means the store is populated and waiting for activation.
	StateInstalled State = "installed"

	// StateActive means the generation serves requests.
	StateActive State = "active"
)

var allStates = []State{StateNone, StatePending, StateInstalled, StateActive}

// Registry knows the current generation id and its lifecycle state.
// The id is fixed for the lifetime of the registry.
type Registry struct {
	id string

	mu    sync.RWMutex
	state State
}

// NewRegistry creates a registry for generation id.
func NewRegistry(id string) (*Registry, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("generation id is required")
	}
	r := &Registry{id: id, state: StateNone}
	r.publish()
	return r, nil
}

// CurrentID returns the current generation id.
func (r *Registry) CurrentID() string {
	return r.id
}

// IsCurrent reports whether a store name belongs to the current generation.
func (r *Registry) IsCurrent(name string) bool {
	return name == r.id
}

// State returns the lifecycle state.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// BeginInstall moves none -> pending.
func (r *Registry) BeginInstall() error {
	return r.transition(StateNone, StatePending)
}

// CompleteInstall moves pending -> installed.
func (r *Registry) CompleteInstall() error {
	return r.transition(StatePending, StateInstalled)
}

// FailInstall moves pending -> none so the install can be retried.
func (r *Registry) FailInstall() error {
	return r.transition(StatePending, StateNone)
}

// Activate moves installed -> active.
func (r *Registry) Activate() error {
	return r.transition(StateInstalled, StateActive)
}

func (r *Registry) transition(from, to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != from {
		return fmt.Errorf("%w: %s -> %s (state is %s)", ErrInvalidTransition, from, to, r.state)
	}
	r.state = to
	r.publishLocked()
	return nil
}

// Stale lists existing store names other than the current generation.
func (r *Registry) Stale(ctx context.Context, backend store.Backend) ([]string, error) {
	names, err := backend.Names(ctx)
	if err != nil {
		return nil, err
	}

	stale := make([]string, 0, len(names))
	for _, name := range names {
		if !r.IsCurrent(name) {
			stale = append(stale, name)
		}
	}
	return stale, nil
}

func (r *Registry) publish() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.publishLocked()
}

func (r *Registry) publishLocked() {
	for _, s := range allStates {
		v := 0.0
		if s == r.state {
			v = 1
		}
		generationState.WithLabelValues(r.id, string(s)).Set(v)
	}
}
