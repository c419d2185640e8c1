package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/mulic2/internal/app"
	"github.com/naveenspark/mulic2/internal/browser"
	"github.com/naveenspark/mulic2/internal/router"
	"github.com/naveenspark/mulic2/internal/session"
)

type view int

const (
	viewLogin view = iota
	viewDashboard
	viewProfiles
	viewPayloads
)

var routeViews = map[string]view{
	router.Login:            viewLogin,
	router.Dashboard:        viewDashboard,
	router.ProfileSelection: viewProfiles,
	router.Payloads:         viewPayloads,
}

// tabKeys maps menu routes to their shortcut.
var tabKeys = map[string]string{
	router.Dashboard: "1",
	router.Payloads:  "2",
}

// sessionChangedMsg is delivered after every session install or clear.
type sessionChangedMsg struct {
	session session.Session
}

// healthStatusMsg is delivered after every health probe.
type healthStatusMsg struct {
	available bool
}

type logoutDoneMsg struct{}

// openBrowser is swapped out in tests.
var openBrowser = browser.Open

// App is the root Bubbletea model.
type App struct {
	ac         *app.Context
	version    string
	events     *eventBus
	view       view
	login      loginModel
	dashboard  dashboardModel
	profiles   profilesModel
	payloads   payloadsModel
	helpOpen   bool
	helpCursor int
	available  bool
	flash      string
	width      int
	height     int
	frame      int // logo shimmer animation frame
}

// NewApp creates the console shell. It subscribes to session and health
// changes so the shell can follow invalidations made outside the UI.
func NewApp(ac *app.Context, version string) App {
	events := newEventBus()
	ac.Session.OnChange(events.postSession)
	ac.Health.OnStatus(events.postHealth)

	return App{
		ac:        ac,
		version:   version,
		events:    events,
		view:      routeViews[ac.Router.Current().Name],
		login:     newLoginModel(ac),
		dashboard: newDashboardModel(ac),
		profiles:  newProfilesModel(ac),
		payloads:  newPayloadsModel(ac),
		available: ac.Health.Available(),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(shimmerTickCmd(), waitEvent(a.events))
}

// navigate moves to the named route. The guard may refuse, in which case the
// shell stays where it is and explains why.
func (a App) navigate(name string) (App, tea.Cmd) {
	rt, err := a.ac.Router.Navigate(name)
	if err != nil {
		if errors.Is(err, router.ErrAuthRequired) {
			a.flash = "log in to open " + name
		} else {
			a.flash = err.Error()
		}
		return a, nil
	}
	a.flash = ""
	next := routeViews[rt.Name]
	if next == a.view {
		return a, nil
	}
	a.view = next
	switch next {
	case viewDashboard:
		return a, a.dashboard.Init()
	case viewProfiles:
		return a, a.profiles.Init()
	}
	return a, nil
}

// toLogin drops back to the login screen after the session ended.
func (a App) toLogin(reason string) App {
	a.ac.Router.Reset()
	if a.view != viewLogin {
		a.flash = reason
	}
	a.view = viewLogin
	a.helpOpen = false
	a.profiles.editing = false
	a.payloads.result = nil
	return a
}

func (a App) logout() tea.Cmd {
	mgr := a.ac.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		mgr.Logout(ctx)
		return logoutDoneMsg{}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case sessionChangedMsg:
		if msg.session.Token == "" && a.view != viewLogin {
			a = a.toLogin("session ended, log in again")
		}
		return a, waitEvent(a.events)

	case healthStatusMsg:
		a.available = msg.available
		return a, waitEvent(a.events)

	case logoutDoneMsg:
		a = a.toLogin("")
		a.flash = "logged out"
		return a, nil

	case loginResultMsg:
		var cmd tea.Cmd
		a.login, cmd = a.login.Update(msg)
		if msg.err != nil {
			return a, cmd
		}
		var navCmd tea.Cmd
		a, navCmd = a.navigate(router.Dashboard)
		return a, tea.Batch(cmd, navCmd)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

		// Help overlay captures all keys when open
		if a.helpOpen {
			items := helpItems(a.ac.ConsoleURL())
			switch msg.String() {
			case "h", "esc":
				a.helpOpen = false
			case "q":
				return a, tea.Quit
			case "j", "down":
				if a.helpCursor < len(items)-1 {
					a.helpCursor++
				}
			case "k", "up":
				if a.helpCursor > 0 {
					a.helpCursor--
				}
			case "enter":
				if a.helpCursor < len(items) {
					openBrowser(items[a.helpCursor].url) //nolint:errcheck // best-effort browser open
				}
			}
			return a, nil
		}

		if !a.isEditing() {
			a.flash = ""
			switch msg.String() {
			case "h":
				a.helpOpen = true
				a.helpCursor = 0
				return a, nil
			case "q":
				return a, tea.Quit
			case "1":
				return a.navigate(router.Dashboard)
			case "2":
				return a.navigate(router.Payloads)
			case "p":
				return a.navigate(router.ProfileSelection)
			case "w":
				url := a.ac.ConsoleURL()
				if url == "" {
					a.flash = "no web console port configured"
					return a, nil
				}
				if err := openBrowser(url); err != nil {
					a.flash = "could not open browser, visit " + url
				}
				return a, nil
			case "L":
				if a.ac.Session.IsAuthenticated() {
					return a, a.logout()
				}
			case "esc":
				if a.view == viewProfiles {
					return a.navigate(router.Dashboard)
				}
			}
		} else if msg.String() == "esc" && a.view == viewPayloads && a.payloads.result == nil {
			return a.navigate(router.Dashboard)
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case viewLogin:
		a.login, cmd = a.login.Update(msg)
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.Update(msg)
	case viewProfiles:
		a.profiles, cmd = a.profiles.Update(msg)
	case viewPayloads:
		a.payloads, cmd = a.payloads.Update(msg)
	}
	return a, cmd
}

func (a App) isEditing() bool {
	switch a.view {
	case viewLogin:
		return true
	case viewProfiles:
		return a.profiles.editing
	case viewPayloads:
		return a.payloads.editing()
	}
	return false
}

func (a App) View() string {
	// Header: centered shimmer logo
	logo := renderShimmerLogo(a.frame)

	parts := []string{statusBadge(a.available)}
	if u := a.ac.Session.CurrentUser(); u != nil {
		parts = append([]string{selectedStyle.Render(u.Username) + " " + roleBadge(u.Role)}, parts...)
	}
	statsLine := strings.Join(parts, metaStyle.Render(" . "))

	header := center(logo, a.width) + "\n" + center(statsLine, a.width)

	// Tab bar from the routes the guard currently allows
	menu := a.ac.Router.Menu()
	var tabBar strings.Builder
	if len(menu) > 0 {
		colWidth := a.width / len(menu)
		for _, rt := range menu {
			key := tabKeys[rt.Name]
			var label string
			if routeViews[rt.Name] == a.view {
				label = selectedStyle.Underline(true).Render(rt.Title)
				if key != "" {
					label = accentStyle.Render(key) + " " + label
				}
			} else {
				label = dimStyle.Render(rt.Title)
				if key != "" {
					label = metaStyle.Render(key) + " " + label
				}
			}
			labelWidth := lipgloss.Width(label)
			leftPad := max((colWidth-labelWidth)/2, 0)
			rightPad := max(colWidth-labelWidth-leftPad, 0)
			tabBar.WriteString(strings.Repeat(" ", leftPad) + label + strings.Repeat(" ", rightPad))
		}
	}

	var body, help string
	switch a.view {
	case viewLogin:
		body = a.login.View()
		help = " " + a.login.helpKeys()
	case viewDashboard:
		body = a.dashboard.View()
		help = " " + helpEntry("1/2/p", "views") + "  " + a.dashboard.helpKeys() + "  " + helpEntry("w", "web") + "  " + helpEntry("L", "logout") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
	case viewProfiles:
		body = a.profiles.View()
		help = " " + a.profiles.helpKeys()
	case viewPayloads:
		body = a.payloads.View()
		help = " " + a.payloads.helpKeys()
	}

	if a.helpOpen {
		body = helpView(helpItems(a.ac.ConsoleURL()), a.helpCursor, a.version)
		help = " " + helpEntry("j/k", "nav") + "  " + helpEntry("enter", "open") + "  " + helpEntry("esc", "close")
	}

	flash := ""
	if a.flash != "" {
		flash = " " + flashStyle.Render(a.flash)
	}

	// Chrome budget: header(2) + tabs(1) + flash(1) + help(1) = 5 lines + body
	chrome := 5
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", header, tabBar.String(), body, flash, help)
}

func center(s string, width int) string {
	pad := max((width-lipgloss.Width(s))/2, 0)
	return strings.Repeat(" ", pad) + s
}
