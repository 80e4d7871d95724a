// --- START OF FINAL REVISED FILE internal/cli/ui/styles.go ---
package ui

import "github.com/charmbracelet/lipgloss"

const (
	ColorHeaderFg = lipgloss.Color("252")
	ColorHeaderBg = lipgloss.Color("24")

	ColorFooterFg = lipgloss.Color("252")
	ColorFooterBg = lipgloss.Color("237")

	ColorNormalFg     = lipgloss.Color("250")
	ColorNormalDescFg = lipgloss.Color("244")

	ColorSelectedFg     = lipgloss.Color("255")
	ColorSelectedBg     = lipgloss.Color("237")
	ColorSelectedDescFg = lipgloss.Color("248")

	ColorStatusSuccess    = lipgloss.Color("40")
	ColorStatusFailed     = lipgloss.Color("196")
	ColorStatusUnreadable = lipgloss.Color("214")
	ColorStatusCached     = lipgloss.Color("39")
	ColorStatusProcessing = lipgloss.Color("45")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeaderFg).
			Background(ColorHeaderBg).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorFooterFg).
			Background(ColorFooterBg).
			Padding(0, 1)

	CountersStyle = lipgloss.NewStyle().Padding(0, 1)
	SectionStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	StatusStyleSuccess    = lipgloss.NewStyle().Foreground(ColorStatusSuccess)
	StatusStyleFailed     = lipgloss.NewStyle().Foreground(ColorStatusFailed)
	StatusStyleUnreadable = lipgloss.NewStyle().Foreground(ColorStatusUnreadable)
	StatusStyleCached     = lipgloss.NewStyle().Foreground(ColorStatusCached)
	StatusStyleProcessing = lipgloss.NewStyle().Foreground(ColorStatusProcessing)
)

// --- END OF FINAL REVISED FILE internal/cli/ui/styles.go ---
