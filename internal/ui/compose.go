package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/posttree/internal/posts"
)

const (
	inputValue = iota
	inputOperation
)

// initComposeInputs builds the value and operation fields.
func (m *Model) initComposeInputs() {
	value := textinput.New()
	value.Placeholder = "e.g. 42 or 3.5"
	value.CharLimit = 32
	value.Width = 24

	op := textinput.New()
	op.Placeholder = "+ - * /"
	op.CharLimit = 1
	op.Width = 24
	op.Validate = func(s string) error {
		if s == "" || posts.Operation(s).Valid() {
			return nil
		}
		return errors.New("operation must be one of + - * /")
	}

	m.inputs[inputValue] = value
	m.inputs[inputOperation] = op
}

// openCompose shows the form. On the root list only the value field is used.
func (m *Model) openCompose() {
	m.composing = true
	m.composeErr = ""
	m.composeRoot = m.snapshot.Focus == nil
	m.inputs[inputValue].SetValue("")
	m.inputs[inputOperation].SetValue("")
	m.focusIdx = inputValue
	m.inputs[inputValue].Focus()
	m.inputs[inputOperation].Blur()
}

func (m *Model) closeCompose() {
	m.composing = false
	m.composeErr = ""
	m.inputs[inputValue].Blur()
	m.inputs[inputOperation].Blur()
}

// handleComposeKey handles keyboard input for the compose form.
func (m Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		m.closeCompose()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		return m.submitCompose()

	case key.Matches(msg, m.keys.Tab), key.Matches(msg, m.keys.ShiftTab),
		msg.Type == tea.KeyUp, msg.Type == tea.KeyDown:
		if m.composeRoot {
			return m, nil
		}
		m.inputs[m.focusIdx].Blur()
		m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
		return m, m.inputs[m.focusIdx].Focus()
	}

	var cmd tea.Cmd
	m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
	return m, cmd
}

// submitCompose validates locally, then sends the post in the background.
func (m Model) submitCompose() (tea.Model, tea.Cmd) {
	if m.busy || m.session == nil {
		return m, nil
	}
	valueText := m.inputs[inputValue].Value()
	opText := ""
	parentID := ""
	if !m.composeRoot {
		opText = m.inputs[inputOperation].Value()
		if m.snapshot.Focus != nil {
			parentID = m.snapshot.Focus.ID
		}
	}
	if _, err := posts.ParseDraft(valueText, opText, parentID, m.session.Author()); err != nil {
		m.composeErr = err.Error()
		return m, nil
	}

	m.busy = true
	m.composeErr = ""
	session := m.session
	ctx := m.ctx
	return m, func() tea.Msg {
		post, err := session.Submit(ctx, valueText, opText)
		return createdMsg{post: post, err: err}
	}
}

// composeTarget describes what the form will create.
func (m Model) composeTarget() string {
	if m.composeRoot || m.snapshot.Focus == nil {
		return "New thread"
	}
	focus := m.snapshot.Focus
	return "Reply to " + focus.Label() + " (= " + posts.FormatNumber(focus.Result) + ")"
}

// previewResult shows the result the reply would produce, or "" when the
// input is incomplete.
func (m Model) previewResult() string {
	value := m.inputs[inputValue].Value()
	if m.composeRoot || m.snapshot.Focus == nil {
		draft, err := posts.ParseDraft(value, "", "", "preview")
		if err != nil {
			return ""
		}
		return posts.FormatNumber(draft.Value)
	}
	draft, err := posts.ParseDraft(value, m.inputs[inputOperation].Value(), m.snapshot.Focus.ID, "preview")
	if err != nil {
		return ""
	}
	result, err := posts.ApplyOp(m.snapshot.Focus.Result, draft.Value, draft.Operation)
	if err != nil {
		return ""
	}
	return posts.FormatNumber(result)
}

// renderCompose renders the compose modal.
func (m Model) renderCompose() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(m.composeTarget()))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 40)))
	b.WriteString("\n\n")

	label := func(idx int, text string) string {
		if m.focusIdx == idx {
			return styles.AccentText.Render(text)
		}
		return styles.MutedText.Render(text)
	}

	b.WriteString(label(inputValue, "Value:     "))
	b.WriteString(m.inputs[inputValue].View())
	b.WriteString("\n\n")

	if !m.composeRoot {
		b.WriteString(label(inputOperation, "Operation: "))
		b.WriteString(m.inputs[inputOperation].View())
		b.WriteString("\n\n")
	}

	if preview := m.previewResult(); preview != "" {
		b.WriteString(styles.MutedText.Render("Result:    "))
		b.WriteString(styles.SuccessText.Render(preview))
		b.WriteString("\n\n")
	}

	if m.composeErr != "" {
		b.WriteString(styles.DangerText.Render(m.composeErr))
		b.WriteString("\n\n")
	} else if m.busy {
		b.WriteString(styles.InfoText.Render("Posting..."))
		b.WriteString("\n\n")
	}

	hint := "Enter: Post  •  Esc: Cancel"
	if !m.composeRoot {
		hint = "Enter: Post  •  Tab: Next field  •  Esc: Cancel"
	}
	b.WriteString(styles.FaintText.Render(hint))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(54)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
