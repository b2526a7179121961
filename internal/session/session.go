// Package session owns the recording lifecycle: one Idle → Recording →
// Complete → Idle cycle at a time, with the per-frame level pipeline
// and the elapsed timer bound to the Recording state.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundlabml/genremic/internal/audio"
	"github.com/soundlabml/genremic/internal/classify"
	"github.com/soundlabml/genremic/internal/level"
	"github.com/soundlabml/genremic/internal/viz"
)

// State is the recording session state.
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
	StateComplete  State = "COMPLETE"
)

// ErrAlreadyRecording is returned by Start while a capture is active;
// only one capture handle may exist at a time.
var ErrAlreadyRecording = errors.New("recording already in progress")

// frameInterval approximates a display-refresh tick.
const frameInterval = time.Second / 60

// Snapshot is a consistent read of the observable session state.
type Snapshot struct {
	State          State     `json:"state"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Elapsed        string    `json:"elapsed"`
	Bars           []float64 `json:"bars"`
	HasRecording   bool      `json:"has_recording"`
	LastError      string    `json:"last_error,omitempty"`
}

// Session is the single owned unit of recording work.
type Session struct {
	backend    audio.Backend
	classifier *classify.Client

	mu         sync.RWMutex
	state      State
	elapsed    int
	blob       *audio.Blob
	bars       *viz.Buffer
	handle     audio.Handle
	sampleRate int
	lastError  string

	// Schedule channels; closed together, atomically with the state
	// transition out of Recording, so no straggler tick can mutate
	// post-reset state. Loops compare channel identity to drop ticks
	// queued across a stop/start boundary.
	frameStop chan struct{}
	timerStop chan struct{}

	// finished receives the concatenated encoded chunks once the
	// handle's chunk channel closes.
	finished chan []byte

	// Tick cadences, overridable in tests.
	frameTick time.Duration
	timerTick time.Duration
}

// New creates an idle session using the given capture backend and
// classification client.
func New(backend audio.Backend, classifier *classify.Client) *Session {
	return &Session{
		backend:    backend,
		classifier: classifier,
		state:      StateIdle,
		bars:       viz.NewBuffer(),
		frameTick:  frameInterval,
		timerTick:  time.Second,
	}
}

// Start transitions Idle → Recording. On capture acquisition failure
// the session stays Idle with no partial resources retained.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return ErrAlreadyRecording
	}
	if s.state != StateIdle {
		return fmt.Errorf("can only start from idle state, current: %s", s.state)
	}

	handle, err := s.backend.Open()
	if err != nil {
		s.lastError = fmt.Sprintf("Failed to start recording: %v", err)
		slog.Error("Capture acquisition failed", "error", err)
		return fmt.Errorf("capture acquisition failed: %w", err)
	}

	s.handle = handle
	s.sampleRate = handle.SampleRate()
	s.blob = nil
	s.elapsed = 0
	s.bars.Reset()
	s.lastError = ""
	s.state = StateRecording

	s.frameStop = make(chan struct{})
	s.timerStop = make(chan struct{})
	s.finished = make(chan []byte, 1)

	go drainChunks(handle, s.finished)
	go s.frameLoop(s.frameStop, level.New(handle.Tap()))
	go s.timerLoop(s.timerStop)

	slog.Info("Recording started", "sample_rate", s.sampleRate)
	return nil
}

// Stop transitions Recording → Complete. Calling it in any other state
// is a no-op. The capture handle is released and the finished blob
// assembled before returning.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		slog.Debug("Stop ignored outside recording state", "state", s.state)
		return nil
	}

	// Cancel both schedules before any observable state changes.
	close(s.frameStop)
	close(s.timerStop)
	s.frameStop = nil
	s.timerStop = nil

	s.bars.Reset()

	handle := s.handle
	s.handle = nil
	if err := handle.Stop(); err != nil {
		slog.Warn("Capture finalization reported an error", "error", err)
	}

	// The handle's stop closed its chunk channel; the drain goroutine
	// delivers the assembled stream.
	data := <-s.finished
	s.blob = &audio.Blob{Data: data, MIME: handle.MIME()}
	s.state = StateComplete

	slog.Info("Recording stopped", "elapsed", FormatElapsed(s.elapsed), "bytes", len(data))
	return nil
}

// Submit hands the finished blob to the classification endpoint and
// resets the session to Idle. The dispatch is one-way; the session
// never observes the submission outcome. No-op unless Complete.
func (s *Session) Submit() error {
	s.mu.Lock()
	if s.state != StateComplete {
		s.mu.Unlock()
		slog.Debug("Submit ignored outside complete state", "state", s.state)
		return nil
	}

	blob := s.blob
	rate := s.sampleRate
	s.blob = nil
	s.elapsed = 0
	s.state = StateIdle
	s.mu.Unlock()

	if s.classifier != nil {
		s.classifier.Dispatch(blob, rate)
	}
	return nil
}

// Discard drops the finished blob without submission and resets the
// session to Idle. No-op unless Complete.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateComplete {
		slog.Debug("Discard ignored outside complete state", "state", s.state)
		return nil
	}

	s.blob = nil
	s.elapsed = 0
	s.state = StateIdle
	slog.Info("Recording discarded")
	return nil
}

// Close tears the session down from any state: both schedules are
// cancelled and an active capture handle is released. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		close(s.frameStop)
		close(s.timerStop)
		s.frameStop = nil
		s.timerStop = nil

		handle := s.handle
		s.handle = nil
		if err := handle.Stop(); err != nil {
			slog.Warn("Capture release on teardown reported an error", "error", err)
		}
	}

	s.blob = nil
	s.elapsed = 0
	s.bars.Reset()
	s.state = StateIdle
	return nil
}

// Blob returns the finished recording, or nil unless Complete.
func (s *Session) Blob() *audio.Blob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blob
}

// Snapshot returns a consistent copy of the observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:          s.state,
		ElapsedSeconds: s.elapsed,
		Elapsed:        FormatElapsed(s.elapsed),
		Bars:           s.bars.Bars(),
		HasRecording:   s.blob != nil,
		LastError:      s.lastError,
	}
}

// frameLoop runs the analyzer/visualization tick while Recording. The
// channel-identity check drops any tick that raced a stop.
func (s *Session) frameLoop(stop chan struct{}, analyzer *level.Analyzer) {
	ticker := time.NewTicker(s.frameTick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			lv := analyzer.Level()
			s.mu.Lock()
			if s.state == StateRecording && s.frameStop == stop {
				s.bars.Update(lv)
			}
			s.mu.Unlock()
		}
	}
}

// timerLoop counts elapsed whole seconds while Recording.
func (s *Session) timerLoop(stop chan struct{}) {
	ticker := time.NewTicker(s.timerTick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state == StateRecording && s.timerStop == stop {
				s.elapsed++
			}
			s.mu.Unlock()
		}
	}
}

// drainChunks assembles the encoded stream and delivers it once the
// handle's chunk channel closes. It runs independently of the schedule
// cancellation, so chunk callbacks that fire after a stop began are
// still collected into the blob.
func drainChunks(handle audio.Handle, finished chan<- []byte) {
	var data []byte
	for chunk := range handle.Chunks() {
		data = append(data, chunk...)
	}
	finished <- data
}

// FormatElapsed renders whole seconds as zero-padded MM:SS. Values
// past 99:59 widen the minutes field rather than rolling over.
func FormatElapsed(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
