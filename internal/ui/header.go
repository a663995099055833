package ui

import (
	"strings"

	"github.com/five82/posttree/internal/posts"
)

// renderHeader renders the title line: breadcrumb and load status.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	sep := bg.Spaces(2)

	parts := []string{bg.Render("posttree", styles.Logo)}
	crumbWidth := max(m.width/2, 20)
	parts = append(parts, bg.Render(truncate(m.breadcrumb(), crumbWidth), styles.Text))
	parts = append(parts, m.statusParts(styles, bg)...)

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

// breadcrumb renders the path from the root list to the focused post.
func (m Model) breadcrumb() string {
	snap := m.snapshot
	if snap.NotFound {
		return "Root › ?"
	}
	crumbs := []string{"Root"}
	for _, a := range snap.Ancestors {
		crumbs = append(crumbs, a.Label())
	}
	if snap.Focus != nil {
		crumbs = append(crumbs, snap.Focus.Label()+" = "+posts.FormatNumber(snap.Focus.Result))
	}
	return strings.Join(crumbs, " › ")
}

// statusParts lists the status badges for the header.
func (m Model) statusParts(styles Styles, bg BgStyle) []string {
	snap := m.snapshot
	var parts []string

	switch {
	case snap.NotFound:
		parts = append(parts, bg.Render("Post not found", styles.DangerText))
	case snap.Loading && len(snap.Posts) == 0:
		parts = append(parts, bg.Render("Loading...", styles.WarningText.Bold(true)))
	case snap.Loading:
		parts = append(parts, bg.Render("Updating", styles.WarningText))
	case snap.FetchingNext:
		parts = append(parts, bg.Render("Loading more...", styles.WarningText))
	}
	if snap.FromCache && !snap.NotFound {
		parts = append(parts, bg.Render("cached", styles.FaintText))
	}
	if snap.NewData {
		parts = append(parts, bg.Render("New posts available", styles.SuccessText)+bg.Space()+
			bg.Render("(r)", styles.MutedText))
	}

	if snap.IsOffline() {
		parts = append(parts, bg.Render("OFFLINE", styles.DangerText))
	}
	if snap.LastError != nil {
		parts = append(parts, bg.Render(truncate(snap.LastError.Error(), 60), styles.DangerText))
	}

	if m.busy {
		parts = append(parts, bg.Render("working...", styles.InfoText))
	}
	if m.flash != "" {
		style := styles.MutedText
		if m.flashErr {
			style = styles.DangerText
		}
		parts = append(parts, bg.Render(truncate(m.flash, 50), style))
	}
	return parts
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewLogs:
		commands = []cmd{
			{"j/k", "Scroll"},
			{"g/G", "Top/Bottom"},
			{"l", "Posts"},
			{"?", "More"},
		}
	default:
		commands = []cmd{
			{"j/k", "Navigate"},
			{"enter", "Open"},
		}
		if m.snapshot.Focus != nil || m.snapshot.NotFound {
			commands = append(commands, cmd{"esc", "Back"})
		}
		if m.snapshot.HasMore {
			commands = append(commands, cmd{"n", "More"})
		}
		if m.snapshot.Focus != nil {
			commands = append(commands, cmd{"c", "Reply"})
		} else if !m.snapshot.NotFound {
			commands = append(commands, cmd{"c", "Post"})
		}
		commands = append(commands,
			cmd{"r", "Refresh"},
			cmd{"l", "Logs"},
			cmd{"?", "More"},
		)
	}

	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments, bg.KeyHint(c.key, c.desc, styles.AccentText, styles.MutedText))
	}
	segments = append(segments, bg.KeyHint("T", m.theme.Name, styles.AccentText, styles.FaintText))

	return styles.Header.Width(m.width).Render(bg.Join(segments, "  "))
}
