package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundlabml/genremic/internal/audio"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available capture devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := audio.NewBackend(cfg)

		devices, err := backend.ListDevices()
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}

		fmt.Printf("Capture devices (%s backend):\n", backend.Name())
		if len(devices) == 0 {
			fmt.Println("  none found")
			return nil
		}
		for _, name := range devices {
			fmt.Printf("  %s\n", name)
		}
		return nil
	},
}
