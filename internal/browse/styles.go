package browse

import (
	"github.com/charmbracelet/lipgloss"
)

// StyleManager encapsulates all TUI styles
type StyleManager struct {
	// List view styles
	Key        lipgloss.Style
	Resolution lipgloss.Style
	Summary    lipgloss.Style
	Selected   lipgloss.Style
	Cursor     lipgloss.Style
	Dim        lipgloss.Style

	// Preview styles
	PreviewHeader lipgloss.Style
	PreviewMeta   lipgloss.Style
	PreviewBody   lipgloss.Style
	PreviewError  lipgloss.Style

	// Chrome styles
	Divider lipgloss.Style

	// Colors for direct access
	SelectedBg lipgloss.Color
}

// DefaultStyles returns a StyleManager with default styles
func DefaultStyles() *StyleManager {
	return &StyleManager{
		Key:           lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Resolution:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Summary:       lipgloss.NewStyle(),
		Selected:      lipgloss.NewStyle().Background(lipgloss.Color("236")),
		Cursor:        lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		Dim:           lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		PreviewHeader: lipgloss.NewStyle().Bold(true),
		PreviewMeta:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		PreviewBody:   lipgloss.NewStyle(),
		PreviewError:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Divider:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		SelectedBg:    lipgloss.Color("236"),
	}
}

// WithSelection returns a copy of the given style with the selected background applied
func (s *StyleManager) WithSelection(style lipgloss.Style) lipgloss.Style {
	return style.Background(s.SelectedBg)
}

// Global style manager instance
var styles = DefaultStyles()
