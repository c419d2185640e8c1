package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Shimmer animation for the MULIC2 logo.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders "M U L I C 2" as a slow wave of red light.
// Deep ember (#3a1a1a) -> bright signal red (#f87171).
func renderShimmerLogo(frame int) string {
	const text = "MULIC2"
	n := len(text)

	var out string

	t := float64(frame)

	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)

		phase := t*0.1 - x*3.0
		phase += math.Sin(t*0.023) * 2.0

		b := math.Sin(phase)*0.5 + 0.5
		b = math.Pow(b, 1.3)

		// Slow breathing tide
		tide := math.Sin(t*0.035) * 0.12
		b = b*0.75 + tide + 0.18

		if b > 1.0 {
			b = 1.0
		} else if b < 0.05 {
			b = 0.05
		}

		// Deep:   (58, 26, 26)    #3a1a1a
		// Bright: (248, 113, 113) #f87171
		r := clampByte(58 + b*(248-58))
		g := clampByte(26 + b*(113-26))
		bl := clampByte(26 + b*(113-26))

		color := fmt.Sprintf("#%02X%02X%02X", r, g, bl)

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(color))
		out += s.Render(string(text[i]))

		if i < n-1 {
			out += "  "
		}
	}

	return out
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Help bar
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f87171"))

	// Backend / listener status
	onlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474")).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#b45555")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06060"))

	flashStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a844"))

	adminBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f0944a")).
			Bold(true)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#606878"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#606878")).
			Width(14)

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#f87171")).
				Bold(true)

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#343c4a"))

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	borderColor = lipgloss.Color("#1e1e2a")

	// Selected row background
	selectedRowBg = lipgloss.NewStyle().Background(lipgloss.Color("#1e1e2a"))
)

// statusBadge renders the backend availability indicator.
func statusBadge(available bool) string {
	if available {
		return onlineStyle.Render("●") + " " + dimStyle.Render("backend online")
	}
	return offlineStyle.Render("●") + " " + offlineStyle.Render("backend offline")
}

// roleBadge renders a role label, highlighting admins.
func roleBadge(role string) string {
	if role == "admin" {
		return adminBadgeStyle.Render("[ADMIN]")
	}
	if role == "" {
		return ""
	}
	return dimStyle.Render("[" + strings.ToUpper(role) + "]")
}

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}

// helpItem is a selectable link in the help overlay.
type helpItem struct {
	label string
	desc  string
	url   string
}

// helpItems builds the overlay's links. The web console entry is omitted
// when no frontend port is configured.
func helpItems(consoleURL string) []helpItem {
	if consoleURL == "" {
		return nil
	}
	return []helpItem{{"Web console", strings.TrimPrefix(consoleURL, "http://"), consoleURL}}
}

// helpView renders the interactive help overlay with a cursor.
func helpView(items []helpItem, cursor int, version string) string {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f87171")).
		Bold(true).
		Render("M U L I C 2")

	sub := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render("operator console " + version)

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	selectedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f87171"))
	linkDescStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)

	keys := []struct{ key, desc string }{
		{"1", "Dashboard"},
		{"2", "Payload generator"},
		{"p", "Listener profiles"},
		{"r", "Reload profile and listener status"},
		{"t", "Refresh session token"},
		{"w", "Open the web console"},
		{"L", "Log out"},
		{"q", "Quit"},
	}
	commands := []struct{ cmd, desc string }{
		{"mulic2", "Operator console (interactive TUI)"},
		{"mulic2 health", "Probe the backend once"},
		{"mulic2 payload", "Render a payload to stdout"},
		{"mulic2 web", "Open the web console"},
		{"mulic2 --version", "Show version"},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s\n  %s\n\n", title, sub)

	fmt.Fprintf(&b, "  %s\n", sectionStyle.Render("Keys"))
	for _, k := range keys {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", k.key)), descStyle.Render(k.desc))
	}

	fmt.Fprintf(&b, "\n  %s\n", sectionStyle.Render("Commands"))
	for _, c := range commands {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", c.cmd)), descStyle.Render(c.desc))
	}

	if len(items) > 0 {
		fmt.Fprintf(&b, "\n  %s\n", sectionStyle.Render("Links (enter to open)"))
		for i, item := range items {
			label := cmdStyle.Render(fmt.Sprintf("%-20s", item.label))
			prefix := "    "
			if i == cursor {
				label = selectedStyle.Render(fmt.Sprintf("%-20s", item.label))
				prefix = "  > "
			}
			fmt.Fprintf(&b, "%s%s  %s\n", prefix, label, linkDescStyle.Render(item.desc))
		}
	}
	return b.String()
}

// renderField renders a labelled form input with a cursor when focused.
func renderField(label, value string, focused, secret bool) string {
	shown := value
	if secret {
		shown = strings.Repeat("•", len([]rune(value)))
	}
	prefix := "  "
	if focused {
		prefix = inputPromptStyle.Render("> ")
		shown = selectedStyle.Render(shown) + accentStyle.Render("█")
	} else if shown == "" {
		shown = inputPlaceholderStyle.Render("—")
	} else {
		shown = normalStyle.Render(shown)
	}
	return prefix + labelStyle.Render(label) + shown
}
