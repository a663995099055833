// Package logging configures the structured logger and reads the log back for
// the log pane.
//
// The terminal belongs to the UI, so logs go to a file. Entries are logfmt
// lines with a timestamp, level, component prefix and key/value fields:
//
//	time="2024-01-01 12:00:00" level=info prefix=poller msg="new posts available" scope=root
//
// Tail reads the last N lines with a ring buffer in a single pass, so memory
// stays bounded by N regardless of file size.
package logging
