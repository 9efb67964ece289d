package styles

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	nameStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	responseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	ERROR = func(s string) string {
		return errorStyle.Render(s)
	}
	HEADING = func(s string) string {
		return headingStyle.Render(s)
	}
	NAME = func(s string) string {
		return nameStyle.Render(s)
	}
	DIM = func(s string) string {
		return dimStyle.Render(s)
	}
	RESPONSE = func(s string) string {
		return responseStyle.Render(s)
	}
)
