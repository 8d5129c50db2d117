package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderStatus renders a one-line login status banner with an optional hint.
func RenderStatus(status string, hint string) string {
	t := defaultTheme()

	style := t.banner
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "authenticated", "ready", "ok":
		style = t.bannerOK
	case "unauthenticated", "qr_unavailable", "indeterminate", "not_ready":
		style = t.bannerWarn
	case "error":
		style = t.bannerErr
	}

	banner := style.Render(status)
	if strings.TrimSpace(hint) == "" {
		return banner
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, banner, " ", t.hint.Render(hint))
}

// RenderReply renders a classified reply as a titled box.
func RenderReply(category string, text string) string {
	t := defaultTheme()
	return lipgloss.JoinVertical(lipgloss.Left,
		t.replyTitle.Render(category),
		t.replyBox.Render(text),
	)
}
