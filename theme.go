package chatstream

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values. A negative
// index means no color.
type Theme struct {
	UserMsg int // User prompt marker
	BotMsg  int // Bot response marker
	Status  int // Pipeline phase in the status line
	Error   int // Error banner
	Success int // Completion summary
	Muted   int // Status bar, placeholders, history timestamps
	Accent  int // Headings, links
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		UserMsg: 4,
		BotMsg:  6,
		Status:  3,
		Error:   1,
		Success: 2,
		Muted:   8,
		Accent:  5,
	}
}
