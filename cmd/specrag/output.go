package main

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	nearStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	farStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// distanceStyle colors a distance by which side of the threshold it is on.
func distanceStyle(d, threshold float64) lipgloss.Style {
	if d > threshold {
		return farStyle
	}
	return nearStyle
}
