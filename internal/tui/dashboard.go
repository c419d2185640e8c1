package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/mulic2/internal/app"
	"github.com/naveenspark/mulic2/pkg/client"
	"github.com/naveenspark/mulic2/pkg/domain"
)

// requestTimeout bounds one-shot backend calls made from the views.
const requestTimeout = 10 * time.Second

type listenerStatusMsg struct {
	status *domain.ListenerStatus
	err    error
}

type profileReloadedMsg struct {
	err error
}

type tokenRefreshedMsg struct {
	ok bool
}

type dashboardModel struct {
	ac      *app.Context
	status  *domain.ListenerStatus
	loading bool
	err     string
	flash   string
}

func newDashboardModel(ac *app.Context) dashboardModel {
	return dashboardModel{ac: ac}
}

func (m dashboardModel) Init() tea.Cmd {
	return m.loadStatus()
}

func (m dashboardModel) loadStatus() tea.Cmd {
	api := m.ac.Session.API()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		st, err := api.ListenerStatus(ctx)
		return listenerStatusMsg{status: st, err: err}
	}
}

func (m dashboardModel) reloadProfile() tea.Cmd {
	mgr := m.ac.Session
	return func() tea.Msg {
		return profileReloadedMsg{err: mgr.LoadProfile(context.Background())}
	}
}

func (m dashboardModel) refreshToken() tea.Cmd {
	mgr := m.ac.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return tokenRefreshedMsg{ok: mgr.Refresh(ctx)}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case listenerStatusMsg:
		m.loading = false
		if msg.err != nil {
			m.err = client.Message(msg.err)
			return m, nil
		}
		m.err = ""
		m.status = msg.status
		return m, nil

	case profileReloadedMsg:
		if msg.err != nil {
			m.err = client.Message(msg.err)
		}
		return m, nil

	case tokenRefreshedMsg:
		if msg.ok {
			m.flash = "session token refreshed"
		} else {
			m.flash = "token refresh failed, session unchanged"
		}
		return m, nil

	case tea.KeyMsg:
		m.flash = ""
		switch msg.String() {
		case "r":
			m.loading = true
			return m, tea.Batch(m.loadStatus(), m.reloadProfile())
		case "t":
			return m, m.refreshToken()
		}
	}
	return m, nil
}

func (m dashboardModel) View() string {
	var b strings.Builder

	user := m.ac.Session.CurrentUser()
	b.WriteString("\n  " + sectionHeaderStyle.Render("OPERATOR") + "\n")
	if user == nil {
		b.WriteString("  " + dimStyle.Render("loading profile...") + "\n")
	} else {
		b.WriteString(row("User", selectedStyle.Render(user.Username)+" "+roleBadge(user.Role)))
		if user.Email != "" {
			b.WriteString(row("Email", normalStyle.Render(user.Email)))
		}
		b.WriteString(row("Created", normalStyle.Render(formatBackendTime(user.CreatedAt))))
		last := ""
		if user.LastLogin != nil {
			last = *user.LastLogin
		}
		b.WriteString(row("Last login", normalStyle.Render(formatBackendTime(last))))
	}

	ports := m.ac.Ports
	b.WriteString("\n  " + sectionHeaderStyle.Render("BACKEND") + "\n")
	b.WriteString(row("Status", statusBadge(m.ac.Health.Available())))
	b.WriteString(row("API", normalStyle.Render(m.ac.API.BaseURL())))
	b.WriteString(row("C2 default", normalStyle.Render(strconv.Itoa(ports.C2Default))))
	if url := m.ac.ConsoleURL(); url != "" {
		b.WriteString(row("Web console", normalStyle.Render(url)))
	}

	b.WriteString("\n  " + sectionHeaderStyle.Render("LISTENER") + "\n")
	switch {
	case m.loading:
		b.WriteString("  " + dimStyle.Render("checking...") + "\n")
	case m.status == nil:
		b.WriteString("  " + dimStyle.Render("status unknown") + "\n")
	case m.status.Active:
		state := onlineStyle.Render("● active")
		if m.status.Address != "" {
			state += " " + normalStyle.Render(m.status.Address)
		}
		b.WriteString(row("State", state))
		if m.status.Profile != nil {
			b.WriteString(row("Profile", normalStyle.Render(m.status.Profile.Name)))
		}
	default:
		b.WriteString(row("State", dimStyle.Render("○ stopped")))
	}
	if id := m.ac.Session.ActiveProfile(); id != "" {
		b.WriteString(row("Selected", dimStyle.Render(truncStr(id, 8))))
	}

	if m.err != "" {
		b.WriteString("\n  " + errorStyle.Render(m.err) + "\n")
	}
	if m.flash != "" {
		b.WriteString("\n  " + flashStyle.Render(m.flash) + "\n")
	}
	return b.String()
}

func (m dashboardModel) helpKeys() string {
	return helpEntry("r", "reload") + "  " + helpEntry("t", "refresh token")
}

func row(label, value string) string {
	return fmt.Sprintf("  %s%s\n", labelStyle.Render(label), value)
}
