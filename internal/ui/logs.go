package ui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/posttree/internal/logging"
)

var (
	logTimeRe  = regexp.MustCompile(`^time=(\S+ \S+|\S+)`)
	logLevelRe = regexp.MustCompile(`\blevel=(\w+)`)
)

// tailLogCmd reads the end of the log file off the update loop.
func tailLogCmd(path string) tea.Cmd {
	return func() tea.Msg {
		if path == "" {
			return logTailMsg{}
		}
		lines, err := logging.Tail(path, LogTailLines)
		if err != nil {
			return logTailMsg{lines: []string{"failed to read log: " + err.Error()}}
		}
		return logTailMsg{lines: lines}
	}
}

// updateLogViewport sizes the viewport and reloads its content, following
// the end of the file unless the user scrolled up.
func (m *Model) updateLogViewport() {
	if m.width == 0 || m.height == 0 {
		return
	}
	width := max(m.width-4, 1)
	height := max(m.height-4, 1) // header, cmdbar and box borders
	if m.logViewport.Width == 0 {
		m.logViewport = viewport.New(width, height)
	}
	follow := m.logViewport.AtBottom() || m.logViewport.TotalLineCount() == 0
	m.logViewport.Width = width
	m.logViewport.Height = height
	m.logViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.logViewport.SetContent(m.renderLogContent())
	if follow {
		m.logViewport.GotoBottom()
	}
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	title := "Log"
	if m.logPath != "" {
		title = "Log · " + truncateMiddle(m.logPath, max(m.width/2, 10))
	}
	return m.renderTitledBox(title, m.logViewport.View(), m.width, m.height-2, true)
}

// renderLogContent colors the level of each logfmt line.
func (m Model) renderLogContent() string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	if len(m.logLines) == 0 {
		if m.logPath == "" {
			return styles.MutedText.Render("Logging is disabled")
		}
		return styles.MutedText.Render("No log entries yet")
	}
	out := make([]string, 0, len(m.logLines))
	for _, line := range m.logLines {
		out = append(out, m.colorizeLogLine(line, styles))
	}
	return strings.Join(out, "\n")
}

func (m Model) colorizeLogLine(line string, styles Styles) string {
	if strings.TrimSpace(line) == "" {
		return line
	}
	rest := line
	var b strings.Builder
	if loc := logTimeRe.FindStringIndex(rest); loc != nil {
		b.WriteString(styles.FaintText.Render(rest[loc[0]:loc[1]]))
		rest = rest[loc[1]:]
	}
	if loc := logLevelRe.FindStringSubmatchIndex(rest); loc != nil {
		b.WriteString(styles.Text.Render(rest[:loc[2]]))
		level := rest[loc[2]:loc[3]]
		b.WriteString(levelStyle(level, styles).Bold(true).Render(level))
		rest = rest[loc[3]:]
	}
	b.WriteString(styles.Text.Render(rest))
	return b.String()
}

// levelStyle returns the style for a log level.
func levelStyle(level string, styles Styles) lipgloss.Style {
	switch strings.ToLower(level) {
	case "info":
		return styles.SuccessText
	case "warn":
		return styles.WarningText
	case "error", "fatal":
		return styles.DangerText
	case "debug":
		return styles.InfoText
	default:
		return styles.Text
	}
}

// handleLogsKey handles scrolling in the log view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.currentView = ViewPosts
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.logViewport.ScrollDown(1)
	case key.Matches(msg, m.keys.Up):
		m.logViewport.ScrollUp(1)
	case key.Matches(msg, m.keys.PageDown):
		m.logViewport.HalfPageDown()
	case key.Matches(msg, m.keys.PageUp):
		m.logViewport.HalfPageUp()
	case key.Matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
	case key.Matches(msg, m.keys.Refresh):
		return m, tailLogCmd(m.logPath)
	}
	return m, nil
}
