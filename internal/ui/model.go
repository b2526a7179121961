// Package ui is the interactive terminal front end for a recording
// session: twenty eased level bars, an MM:SS readout, and single-key
// lifecycle controls.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/soundlabml/genremic/internal/session"
)

// frameMsg is the animation tick driving bar redraws.
type frameMsg time.Time

// Model is the bubbletea model around a session.
type Model struct {
	sess *session.Session
	err  string
}

// New creates the TUI model for a session.
func New(sess *session.Session) Model {
	return Model{sess: sess}
}

func (m Model) Init() tea.Cmd {
	return frameTick()
}

func frameTick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		return m, frameTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.err = ""
			if err := m.sess.Start(); err != nil {
				m.err = err.Error()
			}
		case "s":
			if err := m.sess.Stop(); err != nil {
				m.err = err.Error()
			}
		case "enter":
			m.err = ""
			if err := m.sess.Submit(); err != nil {
				m.err = err.Error()
			}
		case "d":
			m.err = ""
			if err := m.sess.Discard(); err != nil {
				m.err = err.Error()
			}
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}
