package tui

import "github.com/charmbracelet/lipgloss"

// Theme holds all colours for the dashboard (Catppuccin Mocha).
type Theme struct {
	Surface       lipgloss.Color
	SurfaceHover  lipgloss.Color
	Border        lipgloss.Color
	BorderFocused lipgloss.Color

	Text        lipgloss.Color
	TextMuted   lipgloss.Color
	TextSubtle  lipgloss.Color
	TextInverse lipgloss.Color

	Primary lipgloss.Color
	Accent  lipgloss.Color

	Success  lipgloss.Color
	Warning  lipgloss.Color
	Error    lipgloss.Color
	Info     lipgloss.Color
	Conflict lipgloss.Color

	CommitHash lipgloss.Color
	BranchHead lipgloss.Color
}

// DarkTheme returns the default dark theme.
func DarkTheme() Theme {
	return Theme{
		Surface:       lipgloss.Color("#282840"),
		SurfaceHover:  lipgloss.Color("#313152"),
		Border:        lipgloss.Color("#3b3b5c"),
		BorderFocused: lipgloss.Color("#7c7cf0"),

		Text:        lipgloss.Color("#cdd6f4"),
		TextMuted:   lipgloss.Color("#9399b2"),
		TextSubtle:  lipgloss.Color("#6c7086"),
		TextInverse: lipgloss.Color("#1e1e2e"),

		Primary: lipgloss.Color("#89b4fa"),
		Accent:  lipgloss.Color("#f5c2e7"),

		Success:  lipgloss.Color("#a6e3a1"),
		Warning:  lipgloss.Color("#f9e2af"),
		Error:    lipgloss.Color("#f38ba8"),
		Info:     lipgloss.Color("#89b4fa"),
		Conflict: lipgloss.Color("#fab387"),

		CommitHash: lipgloss.Color("#f9e2af"),
		BranchHead: lipgloss.Color("#89b4fa"),
	}
}

// Styles holds pre-computed lipgloss styles derived from a Theme.
type Styles struct {
	Theme Theme

	TabBar    lipgloss.Style
	TabActive lipgloss.Style
	TabItem   lipgloss.Style
	StatusBar lipgloss.Style

	Panel      lipgloss.Style
	PanelTitle lipgloss.Style

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	KeyBind  lipgloss.Style
	KeyDesc  lipgloss.Style
	Label    lipgloss.Style

	CommitHash lipgloss.Style
	BranchName lipgloss.Style
	Conflict   lipgloss.Style
	Error      lipgloss.Style
	Badge      lipgloss.Style

	Spinner lipgloss.Style
}

// NewStyles builds all styles from the given theme.
func NewStyles(t Theme) Styles {
	s := Styles{Theme: t}

	s.TabBar = lipgloss.NewStyle().Padding(0, 1).Background(t.Surface)
	s.TabActive = lipgloss.NewStyle().Foreground(t.Primary).Bold(true).Padding(0, 2).
		BorderBottom(true).BorderStyle(lipgloss.ThickBorder()).BorderBottomForeground(t.Primary)
	s.TabItem = lipgloss.NewStyle().Foreground(t.TextMuted).Padding(0, 2)
	s.StatusBar = lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Padding(0, 1)

	s.Panel = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border).Padding(0, 1)
	s.PanelTitle = lipgloss.NewStyle().Foreground(t.Primary).Bold(true)

	s.Title = lipgloss.NewStyle().Foreground(t.Text).Bold(true)
	s.Subtitle = lipgloss.NewStyle().Foreground(t.TextMuted).Bold(true)
	s.Body = lipgloss.NewStyle().Foreground(t.Text)
	s.Muted = lipgloss.NewStyle().Foreground(t.TextMuted)
	s.KeyBind = lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	s.KeyDesc = lipgloss.NewStyle().Foreground(t.TextMuted)
	s.Label = lipgloss.NewStyle().Foreground(t.TextMuted).Width(16)

	s.CommitHash = lipgloss.NewStyle().Foreground(t.CommitHash)
	s.BranchName = lipgloss.NewStyle().Foreground(t.BranchHead).Bold(true)
	s.Conflict = lipgloss.NewStyle().Foreground(t.Conflict).Bold(true)
	s.Error = lipgloss.NewStyle().Foreground(t.Error)
	s.Badge = lipgloss.NewStyle().Foreground(t.TextInverse).Background(t.Warning).Bold(true).Padding(0, 1)

	s.Spinner = lipgloss.NewStyle().Foreground(t.Primary)

	return s
}

// DefaultStyles returns styles using the dark theme.
func DefaultStyles() Styles {
	return NewStyles(DarkTheme())
}

// renderKeyValue renders a "key: value" pair with styles.
func renderKeyValue(styles Styles, key, value string) string {
	return styles.KeyBind.Render(key) + " " + styles.KeyDesc.Render(value)
}

// shortHash abbreviates a full object name for display.
func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}
