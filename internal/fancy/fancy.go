// Package fancy provides pretty printing utilities and styling for CLI output
package fancy

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

var (
	ColorBlue     = lipgloss.Color("39")
	ColorGreen    = lipgloss.Color("82")
	ColorYellow   = lipgloss.Color("228")
	ColorCyan     = lipgloss.Color("45")
	ColorRed      = lipgloss.Color("196")
	ColorGray     = lipgloss.Color("250")
	ColorWhite    = lipgloss.Color("15")
	ColorDarkGray = lipgloss.Color("240") // branches
)

var (
	RootStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	BranchStyle = lipgloss.NewStyle().
			Foreground(ColorDarkGray)

	ComponentStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	ValidStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	WarnStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)

// Tree returns a new tree with common styling applied
func Tree() *tree.Tree {
	t := tree.New()
	t.EnumeratorStyle(BranchStyle)
	t.Enumerator(tree.RoundedEnumerator)
	return t
}

// BranchNode creates a styled section header node
func BranchNode(title string, info string) *tree.Tree {
	return tree.New().Root(
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			HeaderStyle.Render(title),
			" ",
			InfoStyle.Render(info),
		),
	)
}

// ValidText styles valid status text (green)
func ValidText(text string) string {
	return ValidStyle.Render(text)
}

// WarnText styles warnings (yellow)
func WarnText(text string) string {
	return WarnStyle.Render(text)
}

// ErrorText styles error text (red)
func ErrorText(text string) string {
	return ErrorStyle.Render(text)
}

// PathText styles file paths (gray)
func PathText(text string) string {
	return InfoStyle.Render(text)
}

// PresenceText marks an entry point or field as present or absent.
func PresenceText(name string, present bool) string {
	if present {
		return ValidText("✓ " + name)
	}
	return ErrorText("✗ " + name)
}

// TruncateString truncates a string if it exceeds maxLength
func TruncateString(s string, maxLength int) string {
	if maxLength < 4 || len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
