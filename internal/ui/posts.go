package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/posttree/internal/posts"
)

// renderPosts renders the post list, with the focused post beside it on wide
// terminals.
func (m Model) renderPosts() string {
	styles := m.theme.Styles()
	contentHeight := m.height - 2 // Account for header + cmdbar

	if m.snapshot.NotFound {
		msg := styles.DangerText.Render("Post not found") + "\n" +
			styles.MutedText.Render("esc to go back to the root list")
		return m.placeCenter(msg, contentHeight)
	}

	focus := m.snapshot.Focus
	if focus == nil || m.width < LayoutWideWidth {
		return m.renderTitledBox(m.listTitle(), m.renderPostList(m.width-2, m.theme.FocusBg, contentHeight-2),
			m.width, contentHeight, true)
	}

	focusWidth := m.width * 35 / 100
	listWidth := m.width - focusWidth
	focusPane := m.renderTitledBox("Post", m.renderFocus(*focus, focusWidth-4, m.theme.SurfaceAlt),
		focusWidth, contentHeight, false)
	listPane := m.renderTitledBox(m.listTitle(), m.renderPostList(listWidth-2, m.theme.FocusBg, contentHeight-2),
		listWidth, contentHeight, true)
	return lipgloss.JoinHorizontal(lipgloss.Top, focusPane, listPane)
}

func (m Model) listTitle() string {
	if focus := m.snapshot.Focus; focus != nil {
		return "Replies to " + focus.Label() + " · " + pluralize(focus.ChildCount, "reply", "replies")
	}
	return "Posts"
}

// renderPostList renders the visible window of rows plus the pagination line.
func (m Model) renderPostList(width int, bgColor string, height int) string {
	styles := m.theme.Styles().WithBackground(bgColor)
	items := m.snapshot.Posts
	if len(items) == 0 {
		switch {
		case m.snapshot.Loading:
			return styles.MutedText.Render("Loading...")
		case m.snapshot.Focus != nil:
			return styles.MutedText.Render("No replies yet. Press c to reply.")
		default:
			return styles.MutedText.Render("No posts yet. Press c to start a thread.")
		}
	}

	rows := max(height-1, 1) // leave room for the pagination line
	start := 0
	if m.selectedRow >= rows {
		start = m.selectedRow - rows + 1
	}
	end := min(start+rows, len(items))

	now := time.Now()
	lines := make([]string, 0, end-start+1)
	for i := start; i < end; i++ {
		rowBg := bgColor
		if i == m.selectedRow {
			rowBg = m.theme.SelectionBg
		}
		content := m.formatPostRow(items[i], width, rowBg, i == m.selectedRow, now)
		lines = append(lines, NewBgStyle(rowBg).FillLine(content, width))
	}

	switch {
	case m.snapshot.FetchingNext:
		lines = append(lines, styles.WarningText.Render("Loading more..."))
	case m.snapshot.HasMore:
		lines = append(lines, styles.FaintText.Render("n: load more"))
	}
	return strings.Join(lines, "\n")
}

// formatPostRow formats one post: operation badge, "label = result", author,
// reply count and age.
// When selected is true, uses SelectionText color for all text to ensure contrast.
func (m Model) formatPostRow(post posts.Post, width int, bgColor string, selected bool, now time.Time) string {
	bg := NewBgStyle(bgColor)
	styles := m.theme.Styles()

	opText := string(post.Operation)
	if post.IsRoot() {
		opText = "#"
	}
	badge := styles.OperationStyle(string(post.Operation)).Render(opText)

	calc := post.Label() + " = " + posts.FormatNumber(post.Result)

	var meta []string
	if width >= LayoutCompactWidth {
		meta = append(meta, post.Author.DisplayName())
	}
	if post.ChildCount > 0 {
		meta = append(meta, pluralize(post.ChildCount, "reply", "replies"))
	}
	if width >= LayoutCompactWidth {
		if age := formatAge(post.CreatedAt, now); age != "" {
			meta = append(meta, age)
		}
	}
	metaStr := strings.Join(meta, " · ")

	calcWidth := max(width-lipgloss.Width(badge)-len([]rune(metaStr))-4, 8)

	var calcStyle, metaStyle lipgloss.Style
	if selected {
		selText := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
		calcStyle = selText.Bold(true)
		metaStyle = selText
	} else {
		calcStyle = styles.Text
		metaStyle = styles.MutedText
	}

	row := badge + bg.Space() + bg.Render(padRight(truncate(calc, calcWidth), calcWidth), calcStyle)
	if metaStr != "" {
		row += bg.Spaces(2) + bg.Render(metaStr, metaStyle)
	}
	return row
}

// renderFocus renders the focused post with its ancestor chain.
func (m Model) renderFocus(focus posts.Post, width int, bgColor string) string {
	styles := m.theme.Styles().WithBackground(bgColor)
	bg := NewBgStyle(bgColor)

	var lines []string
	for depth, a := range m.snapshot.Ancestors {
		line := bg.Spaces(depth*2) + bg.Render(truncate(a.Label()+" = "+posts.FormatNumber(a.Result), width-depth*2), styles.MutedText)
		lines = append(lines, line)
	}
	indent := len(m.snapshot.Ancestors) * 2
	lines = append(lines, bg.Spaces(indent)+bg.Render(truncate(focus.Label(), width-indent), styles.AccentText.Bold(true)))
	lines = append(lines, "")

	field := func(label, value string) string {
		return bg.Render(padRight(label, 9), styles.FaintText) + bg.Render(truncate(value, width-9), styles.Text)
	}
	lines = append(lines,
		field("Result", posts.FormatNumber(focus.Result)),
		field("Value", posts.FormatNumber(focus.Value)),
	)
	if !focus.IsRoot() {
		lines = append(lines, field("Op", string(focus.Operation)))
	}
	lines = append(lines,
		field("Author", focus.Author.DisplayName()),
		field("Replies", pluralize(focus.ChildCount, "reply", "replies")),
	)
	if !focus.CreatedAt.IsZero() {
		lines = append(lines, field("Posted", focus.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	return strings.Join(lines, "\n")
}

// renderTitledBox renders content in a box with the title embedded in the top border.
// When focused is true, uses BorderFocus color and FocusBg background.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	var borderColorStr, bgColorStr string
	if focused {
		borderColorStr = m.theme.BorderFocus
		bgColorStr = m.theme.FocusBg
	} else {
		borderColorStr = m.theme.Border
		bgColorStr = m.theme.SurfaceAlt
	}
	bg := NewBgStyle(bgColorStr)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorStr))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := max(width-2, 0)
	title = truncate(title, max(innerWidth-4, 0))
	titleLen := len([]rune(title))
	leftPad := max((innerWidth-titleLen-2)/2, 0)
	rightPad := max(innerWidth-titleLen-2-leftPad, 0)

	topBorder := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)

	bottomBorder := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", innerWidth), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(innerWidth).Background(lipgloss.Color(bgColorStr))
	contentLines := strings.Split(content, "\n")
	boxHeight := height - 2

	paddedLines := make([]string, 0, max(boxHeight, 0))
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		paddedLines = append(paddedLines,
			bg.Render("│", borderStyle)+
				contentStyle.Render(line)+
				bg.Render("│", borderStyle))
	}

	return topBorder + "\n" + strings.Join(paddedLines, "\n") + "\n" + bottomBorder
}
