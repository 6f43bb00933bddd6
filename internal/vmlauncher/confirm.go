package vmlauncher

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const confirmCardWidth = 56

// confirmTheme holds the accent/muted palette of the launch confirmation
// card.
type confirmTheme struct {
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	help  lipgloss.Style
	yes   lipgloss.Style
	no    lipgloss.Style
}

func newConfirmTheme() confirmTheme {
	accent := lipgloss.Color("#58d4ff")
	muted := lipgloss.Color("#9fb3c8")
	return confirmTheme{
		title: lipgloss.NewStyle().Foreground(accent).Bold(true),
		label: lipgloss.NewStyle().Foreground(muted),
		value: lipgloss.NewStyle().Foreground(accent).Bold(true),
		help:  lipgloss.NewStyle().Faint(true),
		yes:   lipgloss.NewStyle().Bold(true),
		no:    lipgloss.NewStyle().Faint(true),
	}
}

type confirmModel struct {
	theme   confirmTheme
	o       options
	cursor  int // 0 = yes, 1 = no
	done    bool
	confirm bool
}

func newConfirmModel(o options) *confirmModel {
	return &confirmModel{theme: newConfirmTheme(), o: o, cursor: 0}
}

func (m *confirmModel) Init() tea.Cmd { return nil }

func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(keyMsg.String()) {
	case "left", "h", "right", "l", "tab":
		m.cursor = 1 - m.cursor
	case "y":
		m.confirm = true
		m.done = true
		return m, tea.Quit
	case "n", "esc", "ctrl+c":
		m.confirm = false
		m.done = true
		return m, tea.Quit
	case "enter":
		m.confirm = m.cursor == 0
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *confirmModel) View() string {
	lines := []string{
		m.theme.title.Render("Launch guest VM?"),
		"",
		m.row("runner", m.o.runner),
		m.row("disk", m.o.disk),
		m.row("cpus", fmt.Sprintf("%d", m.o.cpus)),
		m.row("memory (MB)", fmt.Sprintf("%d", m.o.memoryMB)),
		m.row("vsock port", fmt.Sprintf("%d", m.o.vsockPort)),
		"",
		m.renderChoice(),
		m.theme.help.Render("←/→ to choose, enter to confirm, n to cancel"),
	}
	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return "\n" + lipgloss.NewStyle().
		Width(confirmCardWidth).
		Border(lipgloss.RoundedBorder()).
		Padding(0, 2).
		Render(body) + "\n"
}

func (m *confirmModel) row(label, value string) string {
	return fmt.Sprintf("%s %s", m.theme.label.Render(label+":"), m.theme.value.Render(value))
}

func (m *confirmModel) renderChoice() string {
	yes, no := "Yes", "No"
	if m.cursor == 0 {
		yes = m.theme.yes.Render("[" + yes + "]")
		no = m.theme.no.Render(no)
	} else {
		yes = m.theme.no.Render(yes)
		no = m.theme.yes.Render("[" + no + "]")
	}
	return yes + "   " + no
}

// confirmLaunch runs an interactive yes/no prompt describing the resolved
// boot parameters and reports whether the operator approved the launch.
func confirmLaunch(in io.Reader, out io.Writer, o options) (bool, error) {
	model := newConfirmModel(o)
	prog := tea.NewProgram(model, tea.WithInput(in), tea.WithOutput(out))
	final, err := prog.Run()
	if err != nil {
		return false, fmt.Errorf("running confirmation prompt: %w", err)
	}
	m, ok := final.(*confirmModel)
	if !ok {
		return false, fmt.Errorf("unexpected prompt result type %T", final)
	}
	return m.confirm, nil
}
