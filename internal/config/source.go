package config

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Source fetches the raw config.json document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads config.json from disk.
type FileSource string

// Fetch reads the file.
func (f FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", string(f), err)
	}
	return data, nil
}

func (f FileSource) String() string { return string(f) }

// HTTPSource fetches config.json from the web console's root.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch GETs the URL; any non-200 status is an error.
func (s HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	hc := s.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.URL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", s.URL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.URL, err)
	}
	return data, nil
}

func (s HTTPSource) String() string { return s.URL }

// SourceFor returns an HTTPSource for http(s) locations and a FileSource otherwise.
func SourceFor(location string) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return HTTPSource{URL: location}
	}
	return FileSource(location)
}
