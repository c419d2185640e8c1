// Package listener keeps the operator's saved listener profiles and checks
// them against the port configuration before they reach the backend.
package listener

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/naveenspark/mulic2/internal/storage"
	"github.com/naveenspark/mulic2/pkg/domain"
)

var (
	// ErrNotFound is returned for an unknown profile ID.
	ErrNotFound = errors.New("listener profile not found")
	// ErrPortConflict marks a profile whose port collides with the backend API.
	ErrPortConflict = errors.New("port conflicts with the backend API port")
)

// PortConflictError carries the alternative ports to offer the operator.
type PortConflictError struct {
	Port        int
	Suggestions []int
}

func (e *PortConflictError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("port %d conflicts with the backend API port", e.Port)
	}
	parts := make([]string, len(e.Suggestions))
	for i, p := range e.Suggestions {
		parts[i] = fmt.Sprint(p)
	}
	return fmt.Sprintf("port %d conflicts with the backend API port, try %s", e.Port, strings.Join(parts, ", "))
}

func (e *PortConflictError) Is(target error) bool { return target == ErrPortConflict }

// Ports is the slice of the config loader the registry needs.
type Ports interface {
	IsPortConflicting(port int) (bool, error)
	PortSuggestions() ([]int, error)
}

// Registry stores listener profiles as a JSON list under one storage key.
type Registry struct {
	store storage.Store
	ports Ports

	mu sync.Mutex
}

// NewRegistry creates a registry over store.
func NewRegistry(store storage.Store, ports Ports) *Registry {
	return &Registry{store: store, ports: ports}
}

// List returns the saved profiles in creation order.
func (r *Registry) List() ([]domain.ListenerProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Get returns the profile with the given ID.
func (r *Registry) Get(id string) (domain.ListenerProfile, error) {
	profiles, err := r.List()
	if err != nil {
		return domain.ListenerProfile{}, err
	}
	i := slices.IndexFunc(profiles, func(p domain.ListenerProfile) bool { return p.ID == id })
	if i < 0 {
		return domain.ListenerProfile{}, fmt.Errorf("listener.Get %s: %w", id, ErrNotFound)
	}
	return profiles[i], nil
}

// Save validates p and inserts or replaces it. A profile without an ID gets
// a new UUID.
func (r *Registry) Save(p domain.ListenerProfile) (domain.ListenerProfile, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Host = strings.TrimSpace(p.Host)
	if err := p.Validate(); err != nil {
		return domain.ListenerProfile{}, fmt.Errorf("listener.Save: %w", err)
	}
	conflict, err := r.ports.IsPortConflicting(p.Port)
	if err != nil {
		return domain.ListenerProfile{}, fmt.Errorf("listener.Save: %w", err)
	}
	if conflict {
		suggestions, _ := r.ports.PortSuggestions() //nolint:errcheck // loader is initialised, see IsPortConflicting
		return domain.ListenerProfile{}, fmt.Errorf("listener.Save: %w", &PortConflictError{Port: p.Port, Suggestions: suggestions})
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	profiles, err := r.load()
	if err != nil {
		return domain.ListenerProfile{}, err
	}
	if i := slices.IndexFunc(profiles, func(q domain.ListenerProfile) bool { return q.ID == p.ID }); i >= 0 {
		profiles[i] = p
	} else {
		profiles = append(profiles, p)
	}
	if err := r.save(profiles); err != nil {
		return domain.ListenerProfile{}, err
	}
	return p, nil
}

// Delete removes the profile with the given ID.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	profiles, err := r.load()
	if err != nil {
		return err
	}
	i := slices.IndexFunc(profiles, func(p domain.ListenerProfile) bool { return p.ID == id })
	if i < 0 {
		return fmt.Errorf("listener.Delete %s: %w", id, ErrNotFound)
	}
	return r.save(slices.Delete(profiles, i, i+1))
}

func (r *Registry) load() ([]domain.ListenerProfile, error) {
	raw, ok, err := r.store.Get(storage.KeyListenerProfiles)
	if err != nil {
		return nil, fmt.Errorf("listener: read profiles: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var profiles []domain.ListenerProfile
	if err := json.Unmarshal([]byte(raw), &profiles); err != nil {
		return nil, fmt.Errorf("listener: decode profiles: %w", err)
	}
	return profiles, nil
}

func (r *Registry) save(profiles []domain.ListenerProfile) error {
	data, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("listener: encode profiles: %w", err)
	}
	if err := r.store.Set(storage.KeyListenerProfiles, string(data)); err != nil {
		return fmt.Errorf("listener: write profiles: %w", err)
	}
	return nil
}
