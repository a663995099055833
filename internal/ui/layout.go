package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which author and age columns
	// are hidden.
	LayoutCompactWidth = 80

	// LayoutWideWidth is the minimum width to show the focus pane beside the
	// reply list.
	LayoutWideWidth = 120
)

// Log display limits.
const (
	// LogTailLines is the number of log file lines shown in the log view.
	LogTailLines = 500
)

// Timing constants.
const (
	// DefaultUIInterval is the default UI refresh interval.
	DefaultUIInterval = time.Second
)
