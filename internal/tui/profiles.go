package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/mulic2/internal/app"
	"github.com/naveenspark/mulic2/pkg/client"
	"github.com/naveenspark/mulic2/pkg/domain"
)

type profileField int

const (
	pfName profileField = iota
	pfProject
	pfHost
	pfPort
	pfDescription
	numProfileFields
)

var profileFieldLabels = [numProfileFields]string{"Name", "Project", "Host", "Port", "Description"}

type profilesLoadedMsg struct {
	profiles []domain.ListenerProfile
	err      error
}

type listenerActionMsg struct {
	action string
	name   string
	ok     bool
	err    error
}

type profilesModel struct {
	ac       *app.Context
	profiles []domain.ListenerProfile
	cursor   int
	err      string
	flash    string
	busy     bool

	editing bool
	editID  string
	fields  [numProfileFields]string
	focus   profileField
}

func newProfilesModel(ac *app.Context) profilesModel {
	return profilesModel{ac: ac}
}

func (m profilesModel) Init() tea.Cmd {
	reg := m.ac.Profiles
	return func() tea.Msg {
		profiles, err := reg.List()
		return profilesLoadedMsg{profiles: profiles, err: err}
	}
}

func (m profilesModel) Update(msg tea.Msg) (profilesModel, tea.Cmd) {
	switch msg := msg.(type) {
	case profilesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.profiles = msg.profiles
		if m.cursor >= len(m.profiles) {
			m.cursor = max(len(m.profiles)-1, 0)
		}
		return m, nil

	case listenerActionMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.err = fmt.Sprintf("%s %s: %s", msg.action, msg.name, client.Message(msg.err))
		case !msg.ok:
			m.err = fmt.Sprintf("%s %s: backend reported failure", msg.action, msg.name)
		default:
			m.flash = fmt.Sprintf("listener %s %s", msg.name, pastTense(msg.action))
		}
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateForm(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func pastTense(action string) string {
	switch action {
	case "start":
		return "started"
	case "stop":
		return "stopped"
	}
	return action
}

func (m profilesModel) selected() (domain.ListenerProfile, bool) {
	if m.cursor < 0 || m.cursor >= len(m.profiles) {
		return domain.ListenerProfile{}, false
	}
	return m.profiles[m.cursor], true
}

func (m profilesModel) updateList(msg tea.KeyMsg) (profilesModel, tea.Cmd) {
	m.err = ""
	m.flash = ""

	switch msg.String() {
	case "j", "down":
		if m.cursor < len(m.profiles)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "n":
		m.startForm(domain.ListenerProfile{
			Host: m.ac.Settings.BackendHost,
			Port: m.ac.Ports.C2Default,
		})
	case "e":
		if p, ok := m.selected(); ok {
			m.startForm(p)
		}
	case "d":
		if p, ok := m.selected(); ok {
			if err := m.ac.Profiles.Delete(p.ID); err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.flash = "deleted " + p.Name
			return m, m.Init()
		}
	case "enter":
		if p, ok := m.selected(); ok {
			if err := m.ac.Session.SetActiveProfile(p.ID); err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.flash = "selected " + p.Name
		}
	case "s":
		if p, ok := m.selected(); ok && !m.busy {
			m.busy = true
			api := m.ac.Session.API()
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
				defer cancel()
				ok, err := api.StartListener(ctx, p)
				return listenerActionMsg{action: "start", name: p.Name, ok: ok, err: err}
			}
		}
	case "x":
		if p, ok := m.selected(); ok && !m.busy {
			m.busy = true
			api := m.ac.Session.API()
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
				defer cancel()
				ok, err := api.StopListener(ctx, p.ID)
				return listenerActionMsg{action: "stop", name: p.Name, ok: ok, err: err}
			}
		}
	}
	return m, nil
}

func (m *profilesModel) startForm(p domain.ListenerProfile) {
	m.editing = true
	m.editID = p.ID
	m.focus = pfName
	m.fields = [numProfileFields]string{p.Name, p.ProjectName, p.Host, "", p.Description}
	if p.Port != 0 {
		m.fields[pfPort] = strconv.Itoa(p.Port)
	}
}

func (m profilesModel) updateForm(msg tea.KeyMsg) (profilesModel, tea.Cmd) {
	m.err = ""

	switch msg.String() {
	case "esc":
		m.editing = false
	case "tab", "down", "enter":
		if msg.String() == "enter" && m.focus == numProfileFields-1 {
			return m.saveForm()
		}
		m.focus = (m.focus + 1) % numProfileFields
	case "shift+tab", "up":
		m.focus = (m.focus - 1 + numProfileFields) % numProfileFields
	case "ctrl+s":
		return m.saveForm()
	default:
		f := &m.fields[m.focus]
		*f = editRune(*f, msg.String())
	}
	return m, nil
}

func (m profilesModel) saveForm() (profilesModel, tea.Cmd) {
	port, err := strconv.Atoi(strings.TrimSpace(m.fields[pfPort]))
	if err != nil {
		m.err = "port must be a number"
		return m, nil
	}
	p, err := m.ac.Profiles.Save(domain.ListenerProfile{
		ID:          m.editID,
		Name:        m.fields[pfName],
		ProjectName: strings.TrimSpace(m.fields[pfProject]),
		Host:        m.fields[pfHost],
		Port:        port,
		Description: strings.TrimSpace(m.fields[pfDescription]),
	})
	if err != nil {
		m.err = strings.TrimPrefix(err.Error(), "listener.Save: ")
		return m, nil
	}
	m.editing = false
	m.flash = "saved " + p.Name
	return m, m.Init()
}

func (m profilesModel) View() string {
	var b strings.Builder

	if m.editing {
		title := "New listener profile"
		if m.editID != "" {
			title = "Edit listener profile"
		}
		b.WriteString("\n  " + selectedStyle.Render(title) + "\n\n")
		for f := profileField(0); f < numProfileFields; f++ {
			b.WriteString(renderField(profileFieldLabels[f], m.fields[f], m.focus == f, false) + "\n")
		}
		if m.err != "" {
			b.WriteString("\n  " + errorStyle.Render(m.err) + "\n")
		}
		return b.String()
	}

	b.WriteString("\n  " + sectionHeaderStyle.Render("LISTENER PROFILES") + "\n\n")
	if len(m.profiles) == 0 {
		b.WriteString("  " + dimStyle.Render("no profiles yet, press n to create one") + "\n")
	}
	active := m.ac.Session.ActiveProfile()
	for i, p := range m.profiles {
		marker := "  "
		if p.ID == active {
			marker = accentStyle.Render("★ ")
		}
		line := fmt.Sprintf("%-20s %s", truncStr(p.Name, 20), dimStyle.Render(fmt.Sprintf("%s:%d", p.Host, p.Port)))
		if p.ProjectName != "" {
			line += "  " + metaStyle.Render(truncStr(p.ProjectName, 24))
		}
		if i == m.cursor {
			b.WriteString(" " + marker + selectedRowBg.Render(selectedStyle.Render(line)) + "\n")
		} else {
			b.WriteString(" " + marker + normalStyle.Render(line) + "\n")
		}
	}

	if m.busy {
		b.WriteString("\n  " + dimStyle.Render("waiting for backend...") + "\n")
	}
	if m.err != "" {
		b.WriteString("\n  " + errorStyle.Render(m.err) + "\n")
	}
	if m.flash != "" {
		b.WriteString("\n  " + flashStyle.Render(m.flash) + "\n")
	}
	return b.String()
}

func (m profilesModel) helpKeys() string {
	if m.editing {
		return helpEntry("tab", "next") + "  " + helpEntry("ctrl+s", "save") + "  " + helpEntry("esc", "cancel")
	}
	return helpEntry("j/k", "nav") + "  " + helpEntry("enter", "select") + "  " + helpEntry("s", "start") + "  " +
		helpEntry("x", "stop") + "  " + helpEntry("n", "new") + "  " + helpEntry("e", "edit") + "  " + helpEntry("d", "delete")
}
