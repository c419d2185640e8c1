package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/mulic2/internal/app"
	"github.com/naveenspark/mulic2/internal/session"
	"github.com/naveenspark/mulic2/pkg/client"
	"github.com/naveenspark/mulic2/pkg/domain"
)

// authTimeout bounds a login or registration round trip.
const authTimeout = 30 * time.Second

type loginField int

const (
	fieldUsername loginField = iota
	fieldPassword
	numLoginFields
)

type loginModel struct {
	ac        *app.Context
	fields    [numLoginFields]string
	focus     loginField
	register  bool
	submitted bool
	err       string
	statusMsg string
}

type loginResultMsg struct {
	err error
}

type registerResultMsg struct {
	username string
	err      error
}

func newLoginModel(ac *app.Context) loginModel {
	return loginModel{ac: ac}
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case loginResultMsg:
		m.submitted = false
		if msg.err != nil {
			m.err = authErrorText(msg.err)
			return m, nil
		}
		m.fields = [numLoginFields]string{}
		m.focus = fieldUsername
		m.err = ""
		return m, nil

	case registerResultMsg:
		m.submitted = false
		if msg.err != nil {
			m.err = authErrorText(msg.err)
			return m, nil
		}
		m.register = false
		m.fields[fieldPassword] = ""
		m.focus = fieldPassword
		m.statusMsg = fmt.Sprintf("account %s created, log in to continue", msg.username)
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m loginModel) updateKeys(msg tea.KeyMsg) (loginModel, tea.Cmd) {
	if m.submitted {
		return m, nil
	}
	m.err = ""
	m.statusMsg = ""

	switch msg.String() {
	case "tab", "down", "shift+tab", "up":
		m.focus = (m.focus + 1) % numLoginFields
	case "ctrl+r":
		m.register = !m.register
	case "enter":
		if m.focus == fieldUsername {
			m.focus = fieldPassword
			return m, nil
		}
		return m.submit()
	default:
		f := &m.fields[m.focus]
		*f = editRune(*f, msg.String())
	}
	return m, nil
}

func (m loginModel) submit() (loginModel, tea.Cmd) {
	username := strings.TrimSpace(m.fields[fieldUsername])
	password := m.fields[fieldPassword]
	if username == "" || password == "" {
		m.err = "username and password are required"
		return m, nil
	}
	m.submitted = true

	mgr := m.ac.Session
	if m.register {
		req := domain.RegisterRequest{Username: username, Password: password}
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
			defer cancel()
			return registerResultMsg{username: username, err: mgr.Register(ctx, req)}
		}
	}
	creds := domain.Credentials{Username: username, Password: password}
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()
		return loginResultMsg{err: mgr.Login(ctx, creds)}
	}
}

// authErrorText turns a login or registration failure into operator text.
func authErrorText(err error) string {
	if errors.Is(err, session.ErrBackendUnavailable) {
		return session.ErrBackendUnavailable.Error()
	}
	if client.IsTransport(err) {
		return "could not reach the backend: " + err.Error()
	}
	return client.Message(err)
}

func (m loginModel) View() string {
	var b strings.Builder

	title := "Sign in"
	if m.register {
		title = "Create account"
	}
	b.WriteString("\n  " + selectedStyle.Render(title) + "\n\n")
	b.WriteString(renderField("Username", m.fields[fieldUsername], m.focus == fieldUsername, false) + "\n")
	b.WriteString(renderField("Password", m.fields[fieldPassword], m.focus == fieldPassword, true) + "\n\n")

	switch {
	case m.submitted && m.register:
		b.WriteString("  " + dimStyle.Render("registering...") + "\n")
	case m.submitted:
		b.WriteString("  " + dimStyle.Render("authenticating...") + "\n")
	case m.err != "":
		b.WriteString("  " + errorStyle.Render(m.err) + "\n")
	case m.statusMsg != "":
		b.WriteString("  " + flashStyle.Render(m.statusMsg) + "\n")
	}
	return b.String()
}

func (m loginModel) helpKeys() string {
	mode := "register"
	if m.register {
		mode = "sign in"
	}
	return helpEntry("tab", "field") + "  " + helpEntry("enter", "submit") + "  " + helpEntry("ctrl+r", mode) + "  " + helpEntry("ctrl+c", "quit")
}
