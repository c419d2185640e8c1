package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/mulic2/internal/config"
)

const exampleConfig = `{
  "backend": {
    "api_port": 8083,
    "c2_default_port": 8081
  },
  "frontend": {
    "port": 5173
  }
}`

func printHelp(w io.Writer) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f87171")).
		Bold(true).
		Render("M U L I C 2")

	sub := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render("operator console")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	commands := []struct{ cmd, desc string }{
		{"mulic2", "Operator console (interactive TUI)"},
		{"mulic2 health", "Probe the backend once"},
		{"mulic2 payload", "Render a payload: -host -port -kind -opt -o"},
		{"mulic2 web", "Open the web console in a browser"},
		{"mulic2 --version", "Show version"},
		{"mulic2 help", "You are here"},
	}
	env := []struct{ name, desc string }{
		{"MULIC2_CONFIG", "config.json path or URL (default config.json)"},
		{"MULIC2_BACKEND_HOST", "backend host (default 127.0.0.1)"},
		{"MULIC2_API_URL", "override the backend API URL"},
		{"MULIC2_HOME", "state and log directory (default ~/.mulic2)"},
		{"LOG_LEVEL", "debug, info, warn, error"},
	}

	fmt.Fprintf(w, "\n  %s\n  %s\n\n  Commands:\n", title, sub)
	for _, c := range commands {
		fmt.Fprintf(w, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", c.cmd)), descStyle.Render(c.desc))
	}
	fmt.Fprintf(w, "\n  Environment:\n")
	for _, e := range env {
		fmt.Fprintf(w, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", e.name)), descStyle.Render(e.desc))
	}
	fmt.Fprintln(w)
}

// printConfigError renders the fatal configuration screen. The console
// refuses to start without both backend ports; nothing is defaulted.
func printConfigError(w io.Writer, location string, err error) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#e06060")).
		Bold(true).
		Render("Configuration error")

	reason := "The port configuration could not be loaded."
	if errors.Is(err, config.ErrInvalidConfig) {
		reason = "config.json must set backend.api_port and backend.c2_default_port."
	}

	body := lipgloss.NewStyle().Foreground(lipgloss.Color("#c0c4d0"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	code := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#c0c4d0")).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#1e1e2a")).
		Padding(0, 1).
		Render(exampleConfig)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", title)
	fmt.Fprintf(&b, "%s\n", body.Render(reason))
	fmt.Fprintf(&b, "%s\n\n", dim.Render(err.Error()))
	fmt.Fprintf(&b, "%s\n", body.Render("Create "+location+" with your ports, for example:"))
	fmt.Fprintf(&b, "%s\n\n", code)
	fmt.Fprintf(&b, "%s", dim.Render("Set MULIC2_CONFIG to load it from elsewhere, then restart the console."))

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#b45555")).
		Padding(1, 2).
		Render(b.String())
	fmt.Fprintf(w, "\n%s\n\n", box)
}
