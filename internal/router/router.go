// Package router holds the console's route table and the navigation guard
// that keeps unauthenticated operators on public routes.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Route names.
const (
	Login            = "login"
	Dashboard        = "dashboard"
	ProfileSelection = "profile-selection"
	Payloads         = "payloads"
)

// ErrAuthRequired is returned when a protected route is requested without a session.
var ErrAuthRequired = errors.New("authentication required")

// ErrUnknownRoute is returned for names not in the table.
var ErrUnknownRoute = errors.New("unknown route")

// Route is one entry in the table.
type Route struct {
	Name         string
	Path         string
	Title        string
	RequiresAuth bool
	Hidden       bool // reachable but not listed in the menu
}

// Routes is the console's route table in menu order.
var Routes = []Route{
	{Name: Login, Path: "/login", Title: "Login"},
	{Name: Dashboard, Path: "/", Title: "Dashboard", RequiresAuth: true},
	{Name: ProfileSelection, Path: "/profile-selection", Title: "Listener Profiles", RequiresAuth: true, Hidden: true},
	{Name: Payloads, Path: "/payloads", Title: "Payloads", RequiresAuth: true},
}

// Lookup finds a route by name.
func Lookup(name string) (Route, bool) {
	for _, r := range Routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// Guard decides whether target may be entered.
func Guard(target Route, authenticated bool) error {
	if target.RequiresAuth && !authenticated {
		return ErrAuthRequired
	}
	return nil
}

// Auth is the slice of the session manager the router needs.
type Auth interface {
	IsAuthenticated() bool
}

// Router tracks the current route and applies Guard to every transition.
// A blocked navigation leaves the current route unchanged.
type Router struct {
	auth Auth

	mu      sync.Mutex
	current Route
}

// New returns a router positioned on the login route.
func New(auth Auth) *Router {
	login, _ := Lookup(Login)
	return &Router{auth: auth, current: login}
}

// Current returns the route the operator is on.
func (r *Router) Current() Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Navigate moves to the named route if the guard allows it.
func (r *Router) Navigate(name string) (Route, error) {
	target, ok := Lookup(name)
	if !ok {
		return r.Current(), fmt.Errorf("router.Navigate %q: %w", name, ErrUnknownRoute)
	}
	if err := Guard(target, r.auth.IsAuthenticated()); err != nil {
		slog.Debug("Navigation blocked", "route", name)
		return r.Current(), fmt.Errorf("router.Navigate %q: %w", name, err)
	}

	r.mu.Lock()
	r.current = target
	r.mu.Unlock()
	return target, nil
}

// Reset returns to the login route without consulting the guard. The shell
// calls it when the session is cleared from under a protected view.
func (r *Router) Reset() Route {
	login, _ := Lookup(Login)
	r.mu.Lock()
	r.current = login
	r.mu.Unlock()
	return login
}

// Menu lists the routes the operator can pick from right now.
func (r *Router) Menu() []Route {
	authed := r.auth.IsAuthenticated()
	var out []Route
	for _, rt := range Routes {
		if rt.Hidden {
			continue
		}
		if authed && rt.Name == Login {
			continue
		}
		if Guard(rt, authed) != nil {
			continue
		}
		out = append(out, rt)
	}
	return out
}
