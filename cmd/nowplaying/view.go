package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m model) View() string {
	cfg := m.cfg

	currentPos := m.getCurrentPosition()
	currentTime := formatTime(int64(currentPos))
	var progress float64
	if m.duration > 0 {
		progress = currentPos / float64(m.duration)
	}

	color := lipgloss.Color(m.color)
	highlight := lipgloss.NewStyle().Foreground(color)
	white := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(1, 2)

	labelStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var content strings.Builder
	var progressBarContent string
	content.WriteString(highlight.Render("󰓃 Now Playing") + "\n\n")

	switch {
	case !m.connected:
		content.WriteString(mutedStyle.Render("Waiting for nowplayingd") + "\n\n")
		if m.lastError != nil {
			content.WriteString(dimStyle.Render(m.lastError.Error()))
		}

	case m.snap.IsEmpty():
		content.WriteString(mutedStyle.Render("Nothing playing") + "\n\n")
		content.WriteString(dimStyle.Render("Start playing music to begin"))

	default:
		addLine := func(label, value string) {
			if value != "" {
				content.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(label), value))
			}
		}

		maxLen := m.maxTextLength()
		addLine("󰎈 ", scrollText(m.snap.Title, maxLen, m.scrollOffset))
		addLine("󰠃 ", scrollText(m.snap.Artist, maxLen, m.scrollOffset))
		addLine("󰀥 ", scrollText(m.snap.Album, maxLen, m.scrollOffset))

		if m.playing() {
			addLine("󰐊 ", "Playing")
		} else {
			addLine("󰏤 ", "Paused")
		}
		addLine("󰓇 ", m.snap.Source)

		if progress > 0 {
			barWidth := max(cfg.TUI.MaxWidth-17, 0)
			filled := min(int(float64(barWidth)*progress), barWidth)
			progressBar := highlight.Render(strings.Repeat("█", filled)) +
				white.Render(strings.Repeat("─", barWidth-filled))

			progressBarContent = fmt.Sprintf(
				"\n%s %s/%s",
				progressBar,
				highlight.Render(currentTime),
				highlight.Render(formatTime(m.duration)),
			)
		}

		if m.lastError != nil {
			content.WriteString("\n\n" + errorStyle.Render("Error: "+m.lastError.Error()))
		}
	}

	// Artwork sits left of the text, the progress bar below both.
	var topSection string
	switch {
	case m.artworkEncoded != "" && m.showArtwork():
		paddedText := lipgloss.NewStyle().
			PaddingLeft(cfg.TUI.ArtworkPadding).
			Render(content.String())
		topSection = m.artworkEncoded + paddedText
	case m.supportsKitty:
		topSection = kittyDeleteAll + content.String()
	default:
		topSection = content.String()
	}

	contentStr := borderStyle.
		Width(cfg.TUI.MaxWidth).
		Render(topSection + progressBarContent)

	var helpText string
	if m.showHelp {
		helpText = lipgloss.NewStyle().
			Width(cfg.TUI.MaxWidth).
			Align(lipgloss.Center).
			Render(lipgloss.JoinHorizontal(
				lipgloss.Center,
				"Play/Pause: "+highlight.Render("p"),
				"  Next: "+highlight.Render("n"),
				"  Previous: "+highlight.Render("b"),
				"  Toggle Art: "+highlight.Render("a"),
				"  Quit: "+highlight.Render("q"),
				"  Hide: "+highlight.Render("?"),
			))
	} else {
		helpText = mutedStyle.Render("Press ? for help")
	}

	fullUI := lipgloss.JoinVertical(lipgloss.Center, contentStr, "\n"+helpText)

	return lipgloss.Place(
		m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		fullUI,
	)
}
