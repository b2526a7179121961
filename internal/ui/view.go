package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/soundlabml/genremic/internal/session"
)

var barChars = []rune(" ▁▂▃▄▅▆▇█")

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	barStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	timerStyle     = lipgloss.NewStyle().Bold(true)
	recordingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m Model) View() string {
	snap := m.sess.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("genremic"))
	b.WriteString("\n\n")
	b.WriteString(barStyle.Render(renderBars(snap.Bars)))
	b.WriteString("\n\n")
	b.WriteString(renderStatus(snap))
	b.WriteString("  ")
	b.WriteString(timerStyle.Render(snap.Elapsed))
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(renderHelp(snap.State)))
	if m.err != "" {
		b.WriteString("\n\n")
		b.WriteString(errStyle.Render(m.err))
	}
	b.WriteString("\n")
	return b.String()
}

// renderBars draws one glyph per slot, scaled over the [0,1] range the
// eased values live in.
func renderBars(bars []float64) string {
	var b strings.Builder
	for _, v := range bars {
		idx := int(v * float64(len(barChars)-1))
		if idx < 0 {
			idx = 0
		} else if idx > len(barChars)-1 {
			idx = len(barChars) - 1
		}
		b.WriteRune(barChars[idx])
		b.WriteRune(' ')
	}
	return b.String()
}

func renderStatus(snap session.Snapshot) string {
	switch snap.State {
	case session.StateRecording:
		return recordingStyle.Render("● REC")
	case session.StateComplete:
		return "■ done"
	default:
		return "  idle"
	}
}

func renderHelp(state session.State) string {
	switch state {
	case session.StateRecording:
		return "s stop · q quit"
	case session.StateComplete:
		return "enter submit · d discard · q quit"
	default:
		return "r record · q quit"
	}
}
