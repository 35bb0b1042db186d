package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("39")
	colorSecondary = lipgloss.Color("86")
	colorSuccess   = lipgloss.Color("42")
	colorWarning   = lipgloss.Color("220")
	colorError     = lipgloss.Color("196")
	colorDim       = lipgloss.Color("241")

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	freshBoxStyle = boxStyle.
			BorderForeground(colorSecondary)

	selectedBoxStyle = boxStyle.
				BorderForeground(colorPrimary)

	structNameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	typeStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)

	methodStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	packageStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWarning)

	fileStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)

	edgeStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	matchStyle = lipgloss.NewStyle().
			Background(colorWarning).
			Foreground(lipgloss.Color("0"))

	focusStyle = lipgloss.NewStyle().
			Reverse(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Italic(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorSecondary)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorDim).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	promptBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Padding(1, 2)

	shadowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("235"))
)
