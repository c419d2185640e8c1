// Package config loads the console's port configuration and environment settings.
//
// Ports come from config.json and are fail-fast: a missing file or a missing
// backend port stops the console from starting. No default port is ever
// substituted.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/naveenspark/mulic2/pkg/domain"
)

// State is the loader's initialisation state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrNotInitialized is returned by accessors before Initialize succeeds.
	ErrNotInitialized = errors.New("ports not initialized: call Initialize first")
	// ErrInvalidConfig marks a config.json that loaded but lacks required ports.
	ErrInvalidConfig = errors.New("invalid port configuration: api_port and c2_default_port must be specified")
)

// fileConfig mirrors the config.json layout.
type fileConfig struct {
	Backend struct {
		APIPort       int `json:"api_port"`
		C2DefaultPort int `json:"c2_default_port"`
	} `json:"backend"`
	Frontend struct {
		Port int `json:"port"`
	} `json:"frontend"`
}

// Loader loads config.json once per process.
type Loader struct {
	source Source
	group  singleflight.Group

	mu    sync.RWMutex
	state State
	ports domain.PortConfig
}

// NewLoader creates a loader reading from source.
func NewLoader(source Source) *Loader {
	return &Loader{source: source}
}

// Initialize fetches and validates config.json. Concurrent callers share one
// fetch and one outcome. Once ready, further calls return nil immediately.
// On failure the loader returns to uninitialized so a later call retries.
func (l *Loader) Initialize(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StateReady {
		l.mu.Unlock()
		return nil
	}
	l.state = StateInitializing
	l.mu.Unlock()

	_, err, _ := l.group.Do("ports", func() (any, error) {
		ports, err := l.load(ctx)
		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.state = StateFailed
			return nil, err
		}
		l.ports = ports
		l.state = StateReady
		return nil, nil
	})
	if err != nil {
		slog.Error("Port configuration failed to load", "source", l.source.String(), "error", err)
		return fmt.Errorf("config.Initialize: %w", err)
	}
	return nil
}

func (l *Loader) load(ctx context.Context) (domain.PortConfig, error) {
	data, err := l.source.Fetch(ctx)
	if err != nil {
		return domain.PortConfig{}, fmt.Errorf("port configuration file (config.json) could not be loaded: %w", err)
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return domain.PortConfig{}, fmt.Errorf("parse config.json: %w", err)
	}
	if fc.Backend.APIPort == 0 || fc.Backend.C2DefaultPort == 0 {
		return domain.PortConfig{}, ErrInvalidConfig
	}
	ports := domain.PortConfig{
		BackendAPI: fc.Backend.APIPort,
		C2Default:  fc.Backend.C2DefaultPort,
		Frontend:   fc.Frontend.Port,
	}
	slog.Info("Port configuration loaded", "api", ports.BackendAPI, "c2", ports.C2Default, "frontend", ports.Frontend)
	return ports, nil
}

// State reports the current initialisation state. After a failure it reads
// StateFailed until the next Initialize call; Get treats it as uninitialized.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Get returns the loaded ports.
func (l *Loader) Get() (domain.PortConfig, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state != StateReady {
		return domain.PortConfig{}, ErrNotInitialized
	}
	return l.ports, nil
}

// IsPortConflicting reports whether port collides with the backend API port.
func (l *Loader) IsPortConflicting(port int) (bool, error) {
	ports, err := l.Get()
	if err != nil {
		return false, err
	}
	return port == ports.BackendAPI, nil
}

// PortSuggestions returns up to five listener ports starting at the C2
// default, skipping the backend API port. For display only.
func (l *Loader) PortSuggestions() ([]int, error) {
	ports, err := l.Get()
	if err != nil {
		return nil, err
	}
	suggestions := make([]int, 0, 5)
	port := ports.C2Default
	for i := 0; i < 5; i++ {
		if port != ports.BackendAPI {
			suggestions = append(suggestions, port)
		}
		port++
	}
	return suggestions, nil
}
