package terminal

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	blue    = lipgloss.Color("39")
	cyan    = lipgloss.Color("86")
	magenta = lipgloss.Color("212")
	green   = lipgloss.Color("82")
	yellow  = lipgloss.Color("214")
	red     = lipgloss.Color("196")
	gray    = lipgloss.Color("245")
)

// styles are bound to one renderer so color detection follows the output writer.
type styles struct {
	banner  lipgloss.Style
	title   lipgloss.Style
	label   lipgloss.Style
	analyst lipgloss.Style
	frame   lipgloss.Style
	input   lipgloss.Style
	dim     lipgloss.Style
	ok      lipgloss.Style
	ready   lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		banner:  r.NewStyle().Foreground(blue),
		title:   r.NewStyle().Foreground(blue).Bold(true),
		label:   r.NewStyle().Foreground(cyan),
		analyst: r.NewStyle().Foreground(magenta).Bold(true),
		frame:   r.NewStyle().Foreground(magenta),
		input:   r.NewStyle().Foreground(cyan).Bold(true),
		dim:     r.NewStyle().Foreground(gray),
		ok:      r.NewStyle().Foreground(green),
		ready:   r.NewStyle().Foreground(green).Bold(true),
		warn:    r.NewStyle().Foreground(yellow),
		err:     r.NewStyle().Foreground(red),
	}
}
