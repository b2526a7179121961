package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	Audio    AudioConfig    `mapstructure:"audio" yaml:"audio"`
	Classify ClassifyConfig `mapstructure:"classify" yaml:"classify"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

type AudioConfig struct {
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int    `mapstructure:"channels" yaml:"channels"`
	Backend    string `mapstructure:"backend" yaml:"backend"` // "malgo", "portaudio", "auto"
	FFmpegPath string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	OpusBitrate string `mapstructure:"opus_bitrate" yaml:"opus_bitrate"`
}

type ClassifyConfig struct {
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		SampleRate:  44100,
		Channels:    1,
		Backend:     "auto",
		FFmpegPath:  "ffmpeg",
		OpusBitrate: "64k",
	},
	Classify: ClassifyConfig{
		Endpoint:       "http://localhost:5000/classify_genre",
		TimeoutSeconds: 30,
	},
	Server: ServerConfig{
		Port: "8080",
	},
}

// Default returns a copy of the built-in defaults.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/genremic.yaml")
}

// Load reads the config file and merges it over the defaults.
// A missing file is not an error; the defaults are used as-is.
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = DefaultPath()
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("GENREMIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills fields an explicit config file may have zeroed out.
func applyDefaults(cfg *Config) {
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = defaultConfig.Audio.SampleRate
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = defaultConfig.Audio.Channels
	}
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = defaultConfig.Audio.Backend
	}
	if cfg.Audio.FFmpegPath == "" {
		cfg.Audio.FFmpegPath = defaultConfig.Audio.FFmpegPath
	}
	if cfg.Audio.OpusBitrate == "" {
		cfg.Audio.OpusBitrate = defaultConfig.Audio.OpusBitrate
	}
	if cfg.Classify.Endpoint == "" {
		cfg.Classify.Endpoint = defaultConfig.Classify.Endpoint
	}
	if cfg.Classify.TimeoutSeconds == 0 {
		cfg.Classify.TimeoutSeconds = defaultConfig.Classify.TimeoutSeconds
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = defaultConfig.Server.Port
	}
}

func validate(cfg *Config) error {
	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000 {
		return fmt.Errorf("audio.sample_rate must be between 8000 and 192000, got: %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got: %d", cfg.Audio.Channels)
	}
	switch strings.ToLower(cfg.Audio.Backend) {
	case "auto", "malgo", "portaudio":
	default:
		return fmt.Errorf("audio.backend must be 'auto', 'malgo' or 'portaudio', got: %s", cfg.Audio.Backend)
	}
	if !strings.HasPrefix(cfg.Classify.Endpoint, "http://") && !strings.HasPrefix(cfg.Classify.Endpoint, "https://") {
		return fmt.Errorf("classify.endpoint must be an http(s) URL, got: %s", cfg.Classify.Endpoint)
	}
	if cfg.Classify.TimeoutSeconds < 0 {
		return fmt.Errorf("classify.timeout_seconds must be >= 0, got: %d", cfg.Classify.TimeoutSeconds)
	}
	return nil
}

// ExpandPath expands a leading ~/ in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
