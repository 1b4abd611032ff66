package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/muurk/wifiportal/internal/version"
)

const AppName = "WIFIPORTAL MONITOR"

// Layout constants
const (
	MinTerminalWidth = 60 // Minimum supported terminal width
	MaxContentWidth  = 96 // Maximum content width before capping
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - connected, open networks
	ErrorColor   = lipgloss.Color("#FF5555") // Red - join failures
	WarningColor = lipgloss.Color("#FFA500") // Orange - pending join
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(1, 0)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(1, 0)

	StatusConnectedStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	StatusJoiningStyle = lipgloss.NewStyle().
				Foreground(WarningColor).
				Bold(true)

	StatusFailedStyle = lipgloss.NewStyle().
				Foreground(ErrorColor).
				Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorColor)
)

// RenderHeader builds the one-line application header shown above every
// screen: app name, version, and the portal address being monitored.
func RenderHeader(portalAddr string) string {
	left := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " " + version.Version)
	right := lipgloss.NewStyle().
		Foreground(MutedColor).
		Render(portalAddr)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

// RenderFrame wraps screen content in the bordered full-width container
// used by every monitor view.
func RenderFrame(header, content, footer string, width int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if width > MaxContentWidth {
		width = MaxContentWidth
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(PrimaryColor).
		Width(width - 4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(PrimaryColor).
		Width(width - 4).
		Padding(0, 1)

	inner := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(header),
		lipgloss.NewStyle().Width(width-4).Render(content),
		footerStyle.Render(footer),
	)

	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Render(inner)
}

// TerminalWidth probes the terminal, clamped to the supported range.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}
