package main

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	tagStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	okStyle = lipgloss.NewStyle().
		Foreground(colorGreen).
		Bold(true)

	badgeStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(9)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)
