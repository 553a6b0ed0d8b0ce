package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/teamalert/teamalert/agent/internal/light"
)

var (
	styleHeader  = lipgloss.NewStyle().Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleColor   = map[light.Color]lipgloss.Style{
		light.White:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		light.Red:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		light.Orange: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
	}
)

func renderColor(c light.Color) string {
	if s, ok := styleColor[c]; ok {
		return s.Render(string(c))
	}
	return string(c)
}

func renderBool(v bool, yes, no string) string {
	if v {
		return styleSuccess.Render(yes)
	}
	return styleError.Render(no)
}

// pad left-aligns s in width columns before styling, since escape codes
// would count towards fmt's width.
func pad(s string, width int) string {
	return fmt.Sprintf("%-*s", width, s)
}
