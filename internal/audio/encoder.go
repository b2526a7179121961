package audio

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// encoder wraps an FFmpeg process that turns raw PCM16 written to its
// stdin into a chunked Opus-in-WebM stream read from its stdout.
type encoder struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	chunks    chan []byte
	stderrBuf strings.Builder

	stopOnce sync.Once
	stopErr  error
	readDone chan struct{}
}

// startEncoder launches FFmpeg and begins reading encoded chunks.
func startEncoder(ffmpegPath string, sampleRate, channels int, bitrate string) (*encoder, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-i", "-",
		"-c:a", "libopus",
		"-b:a", bitrate,
		"-f", "webm",
		"-",
	}

	slog.Debug("Starting FFmpeg encoder", "command", ffmpegPath+" "+strings.Join(args, " "))

	cmd := exec.Command(ffmpegPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	e := &encoder{
		cmd:      cmd,
		stdin:    stdin,
		chunks:   make(chan []byte, 16),
		readDone: make(chan struct{}),
	}

	go e.readChunks(stdout)
	go e.readStderr(stderr)

	return e, nil
}

// Write feeds raw PCM16 to the encoder.
func (e *encoder) Write(p []byte) (int, error) {
	return e.stdin.Write(p)
}

// readChunks forwards encoded output until EOF, then closes the chunk
// channel. The close is the terminal "stopped" event of the capture.
func (e *encoder) readChunks(stdout io.ReadCloser) {
	defer close(e.chunks)
	defer close(e.readDone)

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			e.chunks <- chunk
		}
		if err != nil {
			if err != io.EOF {
				slog.Debug("FFmpeg stdout read ended", "error", err)
			}
			return
		}
	}
}

// readStderr buffers FFmpeg diagnostics for error reporting.
func (e *encoder) readStderr(stderr io.ReadCloser) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		e.stderrBuf.WriteString(line + "\n")
		slog.Debug("FFmpeg output", "line", line)
	}
	stderr.Close()
}

// Stop closes the PCM input, lets FFmpeg flush the stream, and waits
// for the process to exit. Idempotent.
func (e *encoder) Stop() error {
	e.stopOnce.Do(func() {
		e.stopErr = e.stop()
	})
	return e.stopErr
}

func (e *encoder) stop() error {
	// Closing stdin signals end of input; FFmpeg finalizes the WebM
	// stream and exits, which ends the chunk reader at EOF.
	if err := e.stdin.Close(); err != nil {
		slog.Debug("Failed to close FFmpeg stdin", "error", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- e.cmd.Wait()
	}()

	select {
	case err := <-done:
		<-e.readDone
		if err != nil {
			slog.Debug("FFmpeg stderr", "output", e.stderrBuf.String())
			return fmt.Errorf("FFmpeg process failed: %w", err)
		}
		slog.Debug("FFmpeg encoder exited successfully")
		return nil

	case <-time.After(5 * time.Second):
		slog.Warn("FFmpeg did not exit within timeout, force killing")
		if e.cmd.Process != nil {
			e.cmd.Process.Kill()
		}
		<-done
		<-e.readDone
		return nil
	}
}
