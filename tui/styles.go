// Package tui is the terminal rendition of the chat widget: a collapsible
// panel with a message list, a typing indicator and an input field, driven
// by a widget.Controller.
package tui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorAccent  = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorBorder  = lipgloss.Color("#3F3F46")
	colorText    = lipgloss.Color("#E4E4E7")
	colorTextDim = lipgloss.Color("#A1A1AA")
)

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	userBubbleStyle = lipgloss.NewStyle().
			Foreground(colorText).
			PaddingLeft(2)

	botLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	botBubbleStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			PaddingLeft(2)

	typingStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Italic(true)

	inputPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	launcherStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Foreground(colorText).
			Padding(0, 2)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)
