package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/soundlabml/genremic/internal/config"
)

// framesPerBuffer is the PortAudio read granularity (about 12 ms at
// 44.1 kHz, comfortably under one animation frame).
const framesPerBuffer = 512

// PortAudioBackend captures from the default input device via PortAudio.
type PortAudioBackend struct {
	cfg *config.Config
}

func NewPortAudioBackend(cfg *config.Config) *PortAudioBackend {
	return &PortAudioBackend{cfg: cfg}
}

func (b *PortAudioBackend) Name() string { return "portaudio" }

// ListDevices returns the names of devices with capture channels.
func (b *PortAudioBackend) ListDevices() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to init portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	var names []string
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			names = append(names, d.Name)
		}
	}
	return names, nil
}

// Open acquires the default capture stream and starts the encoder.
func (b *PortAudioBackend) Open() (Handle, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio init failed: %v", ErrDeviceUnavailable, err)
	}

	buf := make([]int16, framesPerBuffer*b.cfg.Audio.Channels)
	stream, err := portaudio.OpenDefaultStream(b.cfg.Audio.Channels, 0, float64(b.cfg.Audio.SampleRate), framesPerBuffer, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: open stream failed: %v", ErrDeviceUnavailable, err)
	}

	enc, err := startEncoder(b.cfg.Audio.FFmpegPath, b.cfg.Audio.SampleRate, b.cfg.Audio.Channels, b.cfg.Audio.OpusBitrate)
	if err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}

	if err := stream.Start(); err != nil {
		enc.Stop()
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: stream start failed: %v", ErrDeviceUnavailable, err)
	}

	h := &portAudioHandle{
		stream:     stream,
		enc:        enc,
		tap:        NewTap(tapSize),
		buf:        buf,
		sampleRate: b.cfg.Audio.SampleRate,
		readerStop: make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go h.readLoop()

	slog.Debug("portaudio capture started", "sample_rate", h.sampleRate, "channels", b.cfg.Audio.Channels)
	return h, nil
}

// portAudioHandle owns the PortAudio stream and the encoder process.
type portAudioHandle struct {
	stream     *portaudio.Stream
	enc        *encoder
	tap        *Tap
	buf        []int16
	sampleRate int

	readerStop chan struct{}
	readerDone chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// readLoop pumps the blocking stream into the tap and the encoder.
func (h *portAudioHandle) readLoop() {
	defer close(h.readerDone)

	pcm := make([]byte, len(h.buf)*2)
	for {
		select {
		case <-h.readerStop:
			return
		default:
		}

		if err := h.stream.Read(); err != nil {
			slog.Debug("portaudio read ended", "error", err)
			return
		}

		for i, s := range h.buf {
			pcm[2*i] = byte(s)
			pcm[2*i+1] = byte(s >> 8)
		}
		h.tap.PushPCM16(pcm)
		if _, err := h.enc.Write(pcm); err != nil {
			slog.Debug("Encoder write failed", "error", err)
			return
		}
	}
}

func (h *portAudioHandle) Chunks() <-chan []byte { return h.enc.chunks }
func (h *portAudioHandle) Tap() *Tap             { return h.tap }
func (h *portAudioHandle) SampleRate() int       { return h.sampleRate }
func (h *portAudioHandle) MIME() string          { return MIMEWebM }

// Stop releases the stream exactly once and finalizes the stream.
func (h *portAudioHandle) Stop() error {
	h.stopOnce.Do(func() {
		close(h.readerStop)
		h.stream.Stop()
		<-h.readerDone
		h.stream.Close()
		portaudio.Terminate()
		h.stopErr = h.enc.Stop()
		slog.Debug("portaudio capture released")
	})
	return h.stopErr
}
