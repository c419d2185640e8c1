package config

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `{"backend":{"api_port":8080,"c2_default_port":8081},"frontend":{"port":5173}}`

// countingSource returns body after an optional gate and counts fetches.
type countingSource struct {
	body  string
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (s *countingSource) Fetch(_ context.Context) ([]byte, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.body), nil
}

func (s *countingSource) String() string { return "test" }

func TestLoader_GetBeforeInitialize(t *testing.T) {
	l := NewLoader(&countingSource{body: validConfig})

	_, err := l.Get()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, StateUninitialized, l.State())

	_, err = l.PortSuggestions()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = l.IsPortConflicting(8080)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestLoader_InitializeLoadsPorts(t *testing.T) {
	l := NewLoader(&countingSource{body: validConfig})

	require.NoError(t, l.Initialize(context.Background()))
	ports, err := l.Get()
	require.NoError(t, err)
	assert.Equal(t, 8080, ports.BackendAPI)
	assert.Equal(t, 8081, ports.C2Default)
	assert.Equal(t, 5173, ports.Frontend)
	assert.Equal(t, StateReady, l.State())
}

func TestLoader_ConcurrentInitializeFetchesOnce(t *testing.T) {
	src := &countingSource{body: validConfig, gate: make(chan struct{})}
	l := NewLoader(src)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.Initialize(context.Background())
		}(i)
	}

	// Let both callers reach the singleflight before releasing the fetch.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestLoader_ReadyIsNoop(t *testing.T) {
	src := &countingSource{body: validConfig}
	l := NewLoader(src)

	require.NoError(t, l.Initialize(context.Background()))
	require.NoError(t, l.Initialize(context.Background()))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestLoader_MissingRequiredPorts(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing api_port", `{"backend":{"c2_default_port":8081},"frontend":{"port":5173}}`},
		{"missing c2_default_port", `{"backend":{"api_port":8080},"frontend":{"port":5173}}`},
		{"zero ports", `{"backend":{"api_port":0,"c2_default_port":0}}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(&countingSource{body: tt.body})
			err := l.Initialize(context.Background())
			assert.ErrorIs(t, err, ErrInvalidConfig)
			_, err = l.Get()
			assert.ErrorIs(t, err, ErrNotInitialized)
		})
	}
}

func TestLoader_FailureAllowsRetry(t *testing.T) {
	src := &countingSource{err: errors.New("connection refused")}
	l := NewLoader(src)

	require.Error(t, l.Initialize(context.Background()))
	assert.Equal(t, StateFailed, l.State())

	src.err = nil
	src.body = validConfig
	require.NoError(t, l.Initialize(context.Background()))
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, StateReady, l.State())
}

func TestLoader_MalformedJSON(t *testing.T) {
	l := NewLoader(&countingSource{body: `{"backend":`})
	require.Error(t, l.Initialize(context.Background()))
	_, err := l.Get()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestLoader_PortHelpers(t *testing.T) {
	l := NewLoader(&countingSource{body: `{"backend":{"api_port":8083,"c2_default_port":8081}}`})
	require.NoError(t, l.Initialize(context.Background()))

	suggestions, err := l.PortSuggestions()
	require.NoError(t, err)
	assert.Equal(t, []int{8081, 8082, 8084, 8085}, suggestions)

	conflict, err := l.IsPortConflicting(8083)
	require.NoError(t, err)
	assert.True(t, conflict)
	conflict, err = l.IsPortConflicting(8081)
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o600))

	l := NewLoader(SourceFor(path))
	require.NoError(t, l.Initialize(context.Background()))

	missing := NewLoader(SourceFor(filepath.Join(dir, "nope.json")))
	err := missing.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(validConfig)) //nolint:errcheck
	}))
	defer srv.Close()

	src := SourceFor(srv.URL + "/config.json")
	_, ok := src.(HTTPSource)
	require.True(t, ok, "expected HTTPSource for http URL")

	l := NewLoader(src)
	require.NoError(t, l.Initialize(context.Background()))

	l404 := NewLoader(SourceFor(srv.URL + "/missing.json"))
	assert.Error(t, l404.Initialize(context.Background()))
}
