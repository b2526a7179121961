package cmd

import (
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/soundlabml/genremic/internal/audio"
	"github.com/soundlabml/genremic/internal/classify"
	"github.com/soundlabml/genremic/internal/session"
	"github.com/soundlabml/genremic/internal/ui"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the microphone with a live level display",
	Long: `Start an interactive recording session in the terminal.

Press 'r' to start recording, 's' to stop, then enter to submit the
recording for classification or 'd' to discard it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := audio.NewBackend(cfg)
		classifier := classify.New(cfg.Classify.Endpoint, time.Duration(cfg.Classify.TimeoutSeconds)*time.Second)
		sess := session.New(backend, classifier)
		defer sess.Close()

		slog.Debug("Starting interactive session", "backend", backend.Name())

		p := tea.NewProgram(ui.New(sess), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("terminal session failed: %w", err)
		}
		return nil
	},
}
