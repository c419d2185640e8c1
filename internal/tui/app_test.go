package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"

	"github.com/naveenspark/mulic2/internal/app"
	"github.com/naveenspark/mulic2/internal/config"
	"github.com/naveenspark/mulic2/internal/router"
	"github.com/naveenspark/mulic2/internal/session"
	"github.com/naveenspark/mulic2/internal/storage"
	"github.com/naveenspark/mulic2/pkg/domain"
)

func newTestBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds domain.Credentials
		json.NewDecoder(r.Body).Decode(&creds) //nolint:errcheck
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(domain.AuthResponse{ //nolint:errcheck
			Token: "tok",
			User:  domain.User{ID: 1, Username: creds.Username, Role: "admin", IsActive: true, CreatedAt: "2024-01-01"},
		})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/profile/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.ListenerStatus{Active: false}) //nolint:errcheck
	})
	mux.HandleFunc("POST /api/profile/start", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"success": true}) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T) App {
	t.Helper()
	srv := newTestBackend(t)

	cfg := filepath.Join(t.TempDir(), "config.json")
	body := `{"backend":{"api_port":8083,"c2_default_port":8081},"frontend":{"port":5173}}`
	if err := os.WriteFile(cfg, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	settings := &config.Settings{
		ConfigLocation: cfg,
		BackendHost:    "127.0.0.1",
		APIURL:         srv.URL,
		Home:           t.TempDir(),
	}
	ac, err := app.New(context.Background(), settings,
		app.WithClock(clockwork.NewFakeClock()),
		app.WithStore(storage.NewMemoryStore()),
		app.WithSessionOptions(session.DefaultOptions()))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(ac.Close)

	a := NewApp(ac, "test")
	a.width = 100
	a.height = 40
	return a
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, a App, keys ...string) (App, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var model tea.Model
		model, cmd = a.Update(key(k))
		a = model.(App)
	}
	return a, cmd
}

func typeText(t *testing.T, a App, text string) App {
	t.Helper()
	for _, r := range text {
		a, _ = press(t, a, string(r))
	}
	return a
}

// loggedIn drives the login form end to end.
func loggedIn(t *testing.T) App {
	t.Helper()
	a := newTestApp(t)
	a = typeText(t, a, "op")
	a, _ = press(t, a, "tab")
	a = typeText(t, a, "secret")
	a, cmd := press(t, a, "enter")
	if cmd == nil {
		t.Fatal("expected a login command on enter")
	}
	model, _ := a.Update(cmd())
	a = model.(App)
	if a.view != viewDashboard {
		t.Fatalf("expected dashboard after login, got view %d (err %q)", a.view, a.login.err)
	}
	return a
}

func TestAppStartsOnLogin(t *testing.T) {
	a := newTestApp(t)
	if a.view != viewLogin {
		t.Fatalf("expected viewLogin, got %d", a.view)
	}
	if !a.isEditing() {
		t.Error("login view should capture keystrokes")
	}
	if !strings.Contains(a.View(), "Sign in") {
		t.Error("login view should render the sign-in form")
	}
}

func TestAppDigitsTypeIntoLoginForm(t *testing.T) {
	a := newTestApp(t)
	a, _ = press(t, a, "2")
	if a.view != viewLogin {
		t.Fatalf("expected to stay on login, got %d", a.view)
	}
	if a.login.fields[fieldUsername] != "2" {
		t.Errorf("username = %q, want %q", a.login.fields[fieldUsername], "2")
	}
}

func TestAppGuardBlocksProtectedRoutes(t *testing.T) {
	a := newTestApp(t)
	a, _ = a.navigate(router.Payloads)
	if a.view != viewLogin {
		t.Errorf("expected guard to keep viewLogin, got %d", a.view)
	}
	if a.ac.Router.Current().Name != router.Login {
		t.Errorf("router moved to %q", a.ac.Router.Current().Name)
	}
	if !strings.Contains(a.flash, "log in") {
		t.Errorf("expected an explanation, got %q", a.flash)
	}
}

func TestAppLoginFailureShowsServerMessage(t *testing.T) {
	a := newTestApp(t)
	a = typeText(t, a, "op")
	a, _ = press(t, a, "tab")
	a = typeText(t, a, "wrong")
	a, cmd := press(t, a, "enter")
	model, _ := a.Update(cmd())
	a = model.(App)

	if a.view != viewLogin {
		t.Fatalf("expected viewLogin, got %d", a.view)
	}
	if a.login.err != "Invalid credentials" {
		t.Errorf("err = %q, want server message", a.login.err)
	}
}

func TestAppLoginRequiresBothFields(t *testing.T) {
	a := newTestApp(t)
	a, _ = press(t, a, "tab")
	a, cmd := press(t, a, "enter")
	if cmd != nil {
		t.Error("expected no command for an empty form")
	}
	if a.login.err == "" {
		t.Error("expected a validation error")
	}
}

func TestAppLoginNavigatesAndRenders(t *testing.T) {
	a := loggedIn(t)
	out := a.View()
	for _, want := range []string{"op", "[ADMIN]", "backend online", "Dashboard", "Payloads"} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard view missing %q", want)
		}
	}
}

func TestAppTabSwitching(t *testing.T) {
	tests := []struct {
		key      string
		wantView view
	}{
		{"2", viewPayloads},
		{"p", viewProfiles},
		{"1", viewDashboard},
	}

	a := loggedIn(t)
	for _, tc := range tests {
		a, _ = press(t, a, "esc")
		a, _ = a.navigate(router.Dashboard)
		a, _ = press(t, a, tc.key)
		if a.view != tc.wantView {
			t.Errorf("after key %q: expected view=%d, got %d", tc.key, tc.wantView, a.view)
		}
	}
}

func TestAppSessionClearedReturnsToLogin(t *testing.T) {
	a := loggedIn(t)
	a, _ = press(t, a, "2")

	a.ac.Session.Clear()
	model, cmd := a.Update(sessionChangedMsg{})
	a = model.(App)

	if a.view != viewLogin {
		t.Errorf("expected viewLogin after clear, got %d", a.view)
	}
	if a.ac.Router.Current().Name != router.Login {
		t.Errorf("router on %q, want login", a.ac.Router.Current().Name)
	}
	if cmd == nil {
		t.Error("expected the shell to keep listening for events")
	}
}

func TestAppSessionEventsAreDelivered(t *testing.T) {
	a := newTestApp(t)
	a.ac.Session.Clear()
	msg := a.events.take()
	if _, ok := msg.(sessionChangedMsg); !ok {
		t.Fatalf("got %T, want sessionChangedMsg", msg)
	}
}

func TestEventBusKeepsLatestSessionUnderBurst(t *testing.T) {
	b := newEventBus()
	for i := 0; i < 100; i++ {
		b.postHealth(i%2 == 0)
		b.postSession(session.Session{Token: fmt.Sprintf("tok-%d", i)})
	}
	b.postSession(session.Session{})

	first := b.wait()
	got, ok := first.(sessionChangedMsg)
	if !ok {
		t.Fatalf("first event %T, want sessionChangedMsg", first)
	}
	if got.session.Token != "" {
		t.Errorf("session token = %q, want the final cleared state", got.session.Token)
	}

	second := b.wait()
	h, ok := second.(healthStatusMsg)
	if !ok {
		t.Fatalf("second event %T, want healthStatusMsg", second)
	}
	if h.available {
		t.Error("health = available, want the last posted value (offline)")
	}
	if msg := b.take(); msg != nil {
		t.Errorf("unexpected extra event %T", msg)
	}
}

func TestAppHealthStatusUpdatesBadge(t *testing.T) {
	a := newTestApp(t)
	model, _ := a.Update(healthStatusMsg{available: false})
	a = model.(App)
	if !strings.Contains(a.View(), "backend offline") {
		t.Error("expected offline badge")
	}
}

func TestAppLogout(t *testing.T) {
	a := loggedIn(t)
	a, cmd := press(t, a, "L")
	if cmd == nil {
		t.Fatal("expected logout command")
	}
	model, _ := a.Update(cmd())
	a = model.(App)
	if a.view != viewLogin {
		t.Errorf("expected viewLogin after logout, got %d", a.view)
	}
	if a.ac.Session.IsAuthenticated() {
		t.Error("session should be cleared")
	}
}

func TestAppHelpOverlay(t *testing.T) {
	a := loggedIn(t)
	a, _ = press(t, a, "h")
	if !a.helpOpen {
		t.Fatal("expected help overlay")
	}
	if !strings.Contains(a.View(), "mulic2 payload") {
		t.Error("help overlay should list commands")
	}
	a, _ = press(t, a, "esc")
	if a.helpOpen {
		t.Error("esc should close help")
	}
}

func TestAppOpenWebConsole(t *testing.T) {
	var opened string
	orig := openBrowser
	openBrowser = func(url string) error { opened = url; return nil }
	t.Cleanup(func() { openBrowser = orig })

	a := loggedIn(t)
	_, _ = press(t, a, "w")
	if opened != "http://127.0.0.1:5173" {
		t.Errorf("opened %q", opened)
	}
}

func TestAppQuit(t *testing.T) {
	a := loggedIn(t)
	if _, cmd := press(t, a, "q"); cmd == nil {
		t.Error("expected quit command on 'q'")
	}
	// ctrl+c quits even while typing.
	a = newTestApp(t)
	if _, cmd := press(t, a, "ctrl+c"); cmd == nil {
		t.Error("expected quit command on ctrl+c")
	}
}

func TestAppRegisterToggle(t *testing.T) {
	a := newTestApp(t)
	a, _ = press(t, a, "ctrl+r")
	if !a.login.register {
		t.Fatal("ctrl+r should switch to registration")
	}
	if !strings.Contains(a.View(), "Create account") {
		t.Error("expected registration title")
	}
}

func TestAppShimmerFrameIncrements(t *testing.T) {
	a := newTestApp(t)
	model, cmd := a.Update(shimmerTickMsg{})
	a = model.(App)
	if a.frame != 1 {
		t.Errorf("frame = %d, want 1", a.frame)
	}
	if cmd == nil {
		t.Error("expected next tick")
	}
}

func TestAppLayoutFitsTerminal(t *testing.T) {
	a := loggedIn(t)
	a.height = 12
	lines := strings.Count(a.View(), "\n") + 1
	if lines > a.height {
		t.Errorf("view has %d lines, terminal has %d", lines, a.height)
	}
}
