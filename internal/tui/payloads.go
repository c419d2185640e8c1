package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/mulic2/internal/app"
	"github.com/naveenspark/mulic2/internal/payload"
)

type payloadField int

const (
	plHost payloadField = iota
	plPort
	plKind
	plOptions
	numPayloadFields
)

// clipboardWrite is swapped out in tests; there is no clipboard in CI.
var clipboardWrite = clipboard.WriteAll

type payloadsModel struct {
	ac        *app.Context
	host      string
	port      string
	kind      int
	options   map[string]bool
	optCursor int
	focus     payloadField

	result  *payload.Result
	err     string
	flash   string
	saveDir string
	now     func() time.Time
}

func newPayloadsModel(ac *app.Context) payloadsModel {
	return payloadsModel{
		ac:      ac,
		host:    ac.Settings.BackendHost,
		port:    strconv.Itoa(ac.Ports.C2Default),
		options: map[string]bool{},
		saveDir: filepath.Join(ac.Settings.Home, "payloads"),
		now:     time.Now,
	}
}

// editing reports whether the form owns the keyboard.
func (m payloadsModel) editing() bool {
	return m.result == nil
}

func (m payloadsModel) Update(msg tea.Msg) (payloadsModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	m.err = ""
	m.flash = ""
	if m.result != nil {
		return m.updateResult(key)
	}
	return m.updateForm(key)
}

func (m payloadsModel) updateForm(msg tea.KeyMsg) (payloadsModel, tea.Cmd) {
	kinds := payload.Kinds()
	opts := payload.Options()

	switch msg.String() {
	case "tab", "down":
		m.focus = (m.focus + 1) % numPayloadFields
		return m, nil
	case "shift+tab", "up":
		m.focus = (m.focus - 1 + numPayloadFields) % numPayloadFields
		return m, nil
	case "ctrl+s", "enter":
		return m.generate(), nil
	}

	switch m.focus {
	case plHost:
		m.host = editRune(m.host, msg.String())
	case plPort:
		m.port = editRune(m.port, msg.String())
	case plKind:
		switch msg.String() {
		case "l", "right":
			m.kind = (m.kind + 1) % len(kinds)
		case "h", "left":
			m.kind = (m.kind - 1 + len(kinds)) % len(kinds)
		}
	case plOptions:
		switch msg.String() {
		case "l", "right":
			m.optCursor = (m.optCursor + 1) % len(opts)
		case "h", "left":
			m.optCursor = (m.optCursor - 1 + len(opts)) % len(opts)
		case " ", "space":
			name := opts[m.optCursor]
			m.options[name] = !m.options[name]
		}
	}
	return m, nil
}

// selectedOptions returns the enabled flags in canonical order.
func (m payloadsModel) selectedOptions() []string {
	var out []string
	for _, o := range payload.Options() {
		if m.options[o] {
			out = append(out, o)
		}
	}
	return out
}

func (m payloadsModel) generate() payloadsModel {
	res, err := payload.Generate(payload.Request{
		Host:    m.host,
		Port:    m.port,
		Kind:    string(payload.Kinds()[m.kind]),
		Options: m.selectedOptions(),
	}, m.now())
	if err != nil {
		m.err = "enter a valid host and a port between 1 and 65535"
		return m
	}
	m.result = &res
	return m
}

func (m payloadsModel) updateResult(msg tea.KeyMsg) (payloadsModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.result = nil
	case "c":
		if err := clipboardWrite(m.result.Code); err != nil {
			m.err = "clipboard unavailable: " + err.Error()
		} else {
			m.flash = "copied to clipboard"
		}
	case "s":
		path, err := m.save()
		if err != nil {
			m.err = err.Error()
		} else {
			m.flash = "saved " + path
		}
	}
	return m, nil
}

func (m payloadsModel) save() (string, error) {
	if err := os.MkdirAll(m.saveDir, 0o700); err != nil {
		return "", fmt.Errorf("create payload dir: %w", err)
	}
	path := filepath.Join(m.saveDir, m.result.Filename)
	if err := os.WriteFile(path, []byte(m.result.Code), 0o600); err != nil {
		return "", fmt.Errorf("save payload: %w", err)
	}
	return path, nil
}

func (m payloadsModel) View() string {
	var b strings.Builder

	if m.result != nil {
		md := m.result.Metadata
		b.WriteString("\n  " + selectedStyle.Render(m.result.Filename) + "\n")
		opts := "none"
		if len(md.Options) > 0 {
			opts = strings.Join(md.Options, ", ")
		}
		b.WriteString("  " + dimStyle.Render(fmt.Sprintf("%s  →  %s  ·  options: %s  ·  %s", md.Kind, md.Target, opts, md.Timestamp)) + "\n\n")
		b.WriteString(codeStyle.Render(strings.TrimRight(m.result.Code, "\n")) + "\n")
	} else {
		b.WriteString("\n  " + selectedStyle.Render("Payload generator") + "\n\n")
		b.WriteString(renderField("Host", m.host, m.focus == plHost, false) + "\n")
		b.WriteString(renderField("Port", m.port, m.focus == plPort, false) + "\n")
		b.WriteString(m.renderChoice("Kind", kindLabels(), []int{m.kind}, m.kind, m.focus == plKind) + "\n")

		var on []int
		for i, o := range payload.Options() {
			if m.options[o] {
				on = append(on, i)
			}
		}
		b.WriteString(m.renderChoice("Options", payload.Options(), on, m.optCursor, m.focus == plOptions) + "\n")
	}

	if m.err != "" {
		b.WriteString("\n  " + errorStyle.Render(m.err) + "\n")
	}
	if m.flash != "" {
		b.WriteString("\n  " + flashStyle.Render(m.flash) + "\n")
	}
	return b.String()
}

func kindLabels() []string {
	var out []string
	for _, k := range payload.Kinds() {
		out = append(out, string(k))
	}
	return out
}

func (m payloadsModel) renderChoice(label string, choices []string, on []int, cursor int, focused bool) string {
	prefix := "  "
	if focused {
		prefix = inputPromptStyle.Render("> ")
	}
	var parts []string
	for i, c := range choices {
		var text string
		if slices.Contains(on, i) {
			text = accentStyle.Render("[" + c + "]")
		} else {
			text = dimStyle.Render(" " + c + " ")
		}
		if focused && i == cursor {
			text = selectedRowBg.Render(text)
		}
		parts = append(parts, text)
	}
	return prefix + labelStyle.Render(label) + strings.Join(parts, " ")
}

func (m payloadsModel) helpKeys() string {
	if m.result != nil {
		return helpEntry("c", "copy") + "  " + helpEntry("s", "save") + "  " + helpEntry("esc", "back")
	}
	return helpEntry("tab", "next") + "  " + helpEntry("h/l", "choose") + "  " + helpEntry("space", "toggle") + "  " + helpEntry("enter", "generate") + "  " + helpEntry("esc", "dashboard")
}
