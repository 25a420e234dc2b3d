package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles colors CLI output. Writers that are not terminals get plain text.
type styles struct {
	title lipgloss.Style
	good  lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true),
		good:  r.NewStyle().Foreground(lipgloss.Color("42")),
		bad:   r.NewStyle().Foreground(lipgloss.Color("196")),
		dim:   r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func (s styles) outcome(state string) string {
	switch state {
	case "landed":
		return s.good.Render(state)
	case "crashed":
		return s.bad.Render(state)
	}
	return state
}
