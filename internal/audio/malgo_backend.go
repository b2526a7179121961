package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/soundlabml/genremic/internal/config"
)

// tapSize is the raw-signal history kept for the level analyzer.
const tapSize = 4096

// MalgoBackend captures from the default input device via miniaudio.
type MalgoBackend struct {
	cfg *config.Config
}

func NewMalgoBackend(cfg *config.Config) *MalgoBackend {
	return &MalgoBackend{cfg: cfg}
}

func (b *MalgoBackend) Name() string { return "malgo" }

// ListDevices returns the names of the available capture devices.
func (b *MalgoBackend) ListDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// Open acquires the default capture device and starts the encoder.
func (b *MalgoBackend) Open() (Handle, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: context init failed: %v", ErrDeviceUnavailable, err)
	}

	enc, err := startEncoder(b.cfg.Audio.FFmpegPath, b.cfg.Audio.SampleRate, b.cfg.Audio.Channels, b.cfg.Audio.OpusBitrate)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}

	h := &malgoHandle{
		ctx:        ctx,
		enc:        enc,
		tap:        NewTap(tapSize),
		sampleRate: b.cfg.Audio.SampleRate,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(b.cfg.Audio.Channels)
	deviceConfig.SampleRate = uint32(b.cfg.Audio.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			h.tap.PushPCM16(inputSamples)
			if _, err := h.enc.Write(inputSamples); err != nil {
				slog.Debug("Encoder write failed", "error", err)
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		enc.Stop()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: device init failed: %v", ErrDeviceUnavailable, err)
	}
	h.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		enc.Stop()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: device start failed: %v", ErrDeviceUnavailable, err)
	}

	slog.Debug("miniaudio capture started", "sample_rate", h.sampleRate, "channels", b.cfg.Audio.Channels)
	return h, nil
}

// malgoHandle owns the miniaudio device and the encoder process.
type malgoHandle struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	enc        *encoder
	tap        *Tap
	sampleRate int

	stopOnce sync.Once
	stopErr  error
}

func (h *malgoHandle) Chunks() <-chan []byte { return h.enc.chunks }
func (h *malgoHandle) Tap() *Tap             { return h.tap }
func (h *malgoHandle) SampleRate() int       { return h.sampleRate }
func (h *malgoHandle) MIME() string          { return MIMEWebM }

// Stop releases the device exactly once and finalizes the stream.
func (h *malgoHandle) Stop() error {
	h.stopOnce.Do(func() {
		h.device.Stop()
		h.device.Uninit()
		h.ctx.Uninit()
		h.ctx.Free()
		h.stopErr = h.enc.Stop()
		slog.Debug("miniaudio capture released")
	})
	return h.stopErr
}
