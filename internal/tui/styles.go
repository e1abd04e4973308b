package tui

import "github.com/charmbracelet/lipgloss"

const cardWidth = 30

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	readStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	unreadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	titleStyle  = lipgloss.NewStyle().Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1).
			Width(cardWidth - 2)
	selectedCardStyle = cardStyle.BorderForeground(lipgloss.Color("12"))

	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 1)
)
