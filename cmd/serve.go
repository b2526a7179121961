package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundlabml/genremic/internal/audio"
	"github.com/soundlabml/genremic/internal/classify"
	"github.com/soundlabml/genremic/internal/server"
	"github.com/soundlabml/genremic/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control server for remote recording",
	Long: `Start the genremic control server so recording can be driven from a
browser or any HTTP client on the same network.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = cfg.Server.Port
		}

		backend := audio.NewBackend(cfg)
		classifier := classify.New(cfg.Classify.Endpoint, time.Duration(cfg.Classify.TimeoutSeconds)*time.Second)
		sess := session.New(backend, classifier)
		defer sess.Close()

		srv := server.New(cfg, sess, port)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port for the control server (default from config)")
}
