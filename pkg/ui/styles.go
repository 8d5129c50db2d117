// Package ui renders terminal views for the CLI: the login QR code, status
// banners and reply previews.
package ui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	banner     lipgloss.Style
	bannerOK   lipgloss.Style
	bannerWarn lipgloss.Style
	bannerErr  lipgloss.Style
	hint       lipgloss.Style
	qr         lipgloss.Style
	qrFrame    lipgloss.Style
	replyBox   lipgloss.Style
	replyTitle lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		banner: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("24")),
		bannerOK: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("114")),
		bannerWarn: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("214")),
		bannerErr: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("88")),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		// Light modules on a dark field keep the code scannable on dark terminals.
		qr: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("16")),
		qrFrame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("109")),
		replyBox: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("44")).
			Padding(0, 1),
		replyTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("44")).
			Padding(0, 1),
	}
}
