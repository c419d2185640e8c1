package domain

import (
	"errors"
	"strings"
)

// ListenerProfile is a named listener configuration. The console passes it
// to the backend verbatim.
type ListenerProfile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProjectName string `json:"projectName"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Description string `json:"description"`
}

// ListenerStatus is the backend's view of the running listener.
type ListenerStatus struct {
	Active  bool             `json:"active"`
	Profile *ListenerProfile `json:"profile,omitempty"`
	Address string           `json:"address,omitempty"`
}

// Validate checks the fields the backend rejects with 400.
func (p ListenerProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(p.Host) == "" {
		return errors.New("host is required")
	}
	if p.Port < 1 || p.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}
