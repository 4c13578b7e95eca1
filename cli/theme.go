package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Palette is the small set of styles shared by command output.
type Palette struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Command lipgloss.Style
	Flag    lipgloss.Style
	Muted   lipgloss.Style
	Italic  lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Dir     lipgloss.Style
	File    lipgloss.Style
}

// DefaultPalette is used by help rendering and the command printers.
var DefaultPalette = Palette{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
	Section: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("208")),
	Command: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
	Flag:    lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	Muted:   lipgloss.NewStyle().Faint(true),
	Italic:  lipgloss.NewStyle().Italic(true),
	Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	Success: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	Dir:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
	File:    lipgloss.NewStyle(),
}

// InitColor picks the lipgloss color profile. CLICOLOR_FORCE=1 or
// COLORTERM=truecolor force full color, NO_COLOR or a non-terminal stdout
// disable it.
func InitColor() {
	switch {
	case os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor":
		lipgloss.SetColorProfile(termenv.TrueColor)
	case os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()):
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())
	}
}
