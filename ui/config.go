package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Word-wrap width, 0 follows the terminal
	Width uint

	EnableMouse bool

	// Start speaking as soon as the program starts
	AutoSpeak bool

	// Quit once a session completes
	QuitOnComplete bool

	// Where the selection came from, shown in the status bar
	Source string

	HighlightForeground string `env:"READALOUD_HIGHLIGHT_FG" envDefault:"0"`
	HighlightBackground string `env:"READALOUD_HIGHLIGHT_BG" envDefault:"226"`

	// For debugging the UI
	AltScreen bool `env:"READALOUD_ALT_SCREEN" envDefault:"true"`
}
