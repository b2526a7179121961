package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundlabml/genremic/internal/audio"
	"github.com/soundlabml/genremic/internal/classify"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Submit an existing recording for classification",
	Long: `Submit an already-recorded audio file to the classification endpoint
and wait for the result. The response is printed as-is.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		rate, _ := cmd.Flags().GetInt("sample-rate")
		if rate == 0 {
			rate = cfg.Audio.SampleRate
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read recording: %w", err)
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = audio.MIMEWebM
		}

		classifier := classify.New(cfg.Classify.Endpoint, time.Duration(cfg.Classify.TimeoutSeconds)*time.Second)
		blob := &audio.Blob{Data: data, MIME: mimeType}

		// The one caller that does wait on the dispatch result.
		if err := <-classifier.Dispatch(blob, rate); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().Int("sample-rate", 0, "sample rate of the recording (default from config)")
}
