// Package ui provides the terminal interface for posttree.
//
// The UI is a Bubble Tea program. It never talks to the API directly: key
// presses become calls on a Controller (the session), and every tick the
// model reads the latest state.Snapshot and renders it. Long-running calls
// run as tea.Cmds so the update loop never blocks on the network.
//
// # Views
//
//   - Posts: the root list or the replies of the focused post, with the
//     ancestor chain in the header breadcrumb and, on wide terminals, a
//     focus pane beside the list.
//   - Logs: the tail of the log file in a scrollable viewport.
//
// The compose form (c) and the help overlay (?) are modal and take all keys
// until dismissed.
//
// # Status
//
// The header shows first-page loading, whether rows come from the post store
// while a query is loading, the "new posts" notice raised by the staleness
// poller, and the last load error.
//
// # Themes
//
// Themes are defined in theme.go; T cycles them and the choice is saved to
// the prefs file.
package ui
