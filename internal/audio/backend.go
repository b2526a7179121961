package audio

import (
	"strings"

	"github.com/soundlabml/genremic/internal/config"
)

// BackendType identifies a capture backend implementation.
type BackendType string

const (
	BackendTypeMalgo     BackendType = "malgo"
	BackendTypePortAudio BackendType = "portaudio"
	BackendTypeAuto      BackendType = "auto"
)

// NewBackend creates the capture backend selected by the configuration.
func NewBackend(cfg *config.Config) Backend {
	switch determineBackend(cfg) {
	case BackendTypePortAudio:
		return NewPortAudioBackend(cfg)
	default:
		return NewMalgoBackend(cfg)
	}
}

// determineBackend resolves the configured backend name.
func determineBackend(cfg *config.Config) BackendType {
	switch strings.ToLower(cfg.Audio.Backend) {
	case "portaudio":
		return BackendTypePortAudio
	case "malgo":
		return BackendTypeMalgo
	default:
		// "auto" and anything unrecognized fall back to miniaudio,
		// which needs no external runtime.
		return BackendTypeMalgo
	}
}

// GetAvailableBackends returns the backends compiled into this build.
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeMalgo, BackendTypePortAudio}
}
