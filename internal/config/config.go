package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	NATS     NATSConfig     `yaml:"nats"`
	Camera   CameraConfig   `yaml:"camera"`
	Vision   VisionConfig   `yaml:"vision"`
	Match    MatchConfig    `yaml:"match"`
	Presence PresenceConfig `yaml:"presence"`
	Roster   RosterConfig   `yaml:"roster"`
	Control  ControlConfig  `yaml:"control"`
	Reporter ReporterConfig `yaml:"reporter"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type BackendConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig is optional: with an empty URL the terminal runs without a
// broker and the decision stream is only available over WebSocket.
type NATSConfig struct {
	URL string `yaml:"url"`
}

type CameraConfig struct {
	// Device is a V4L2 device path ("/dev/video0") or a stream URL (rtsp/http).
	Device string `yaml:"device"`
	FPS    int    `yaml:"fps"`
	Width  int    `yaml:"width"`
	// MaxReacquire bounds camera reacquisition attempts before the process
	// gives up.
	MaxReacquire int `yaml:"max_reacquire"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
}

type MatchConfig struct {
	// Threshold is the Euclidean-distance acceptance bound, exclusive:
	// distance < threshold is a match, distance == threshold is unknown.
	// A pointer so an explicit 0 (match nothing) survives defaulting.
	Threshold  *float64 `yaml:"threshold"`
	TieEpsilon float64  `yaml:"tie_epsilon"`
}

type PresenceConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
	// MinVisible is a pointer so an explicit 0 (dwell disabled) survives
	// defaulting.
	MinVisible *time.Duration `yaml:"min_visible"`
	Timezone   string         `yaml:"timezone"`
}

type RosterConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type ControlConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type ReporterConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseBackoff   time.Duration `yaml:"base_backoff"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DrainGrace    time.Duration `yaml:"drain_grace"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = "http://127.0.0.1:8000"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 8 * time.Second
	}
	if cfg.Camera.Device == "" {
		cfg.Camera.Device = "/dev/video0"
	}
	if cfg.Camera.FPS == 0 {
		cfg.Camera.FPS = 5
	}
	if cfg.Camera.Width == 0 {
		cfg.Camera.Width = 640
	}
	if cfg.Camera.MaxReacquire == 0 {
		cfg.Camera.MaxReacquire = 10
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Match.Threshold == nil {
		threshold := 0.5
		cfg.Match.Threshold = &threshold
	}
	if cfg.Match.TieEpsilon == 0 {
		cfg.Match.TieEpsilon = 1e-6
	}
	if cfg.Presence.DebounceWindow == 0 {
		cfg.Presence.DebounceWindow = 60 * time.Second
	}
	if cfg.Presence.MinVisible == nil {
		minVisible := 10 * time.Second
		cfg.Presence.MinVisible = &minVisible
	}
	if cfg.Presence.Timezone == "" {
		cfg.Presence.Timezone = "Asia/Kolkata"
	}
	if cfg.Roster.RefreshInterval == 0 {
		cfg.Roster.RefreshInterval = 300 * time.Second
	}
	if cfg.Control.PollInterval == 0 {
		cfg.Control.PollInterval = 3 * time.Second
	}
	if cfg.Reporter.MaxAttempts == 0 {
		cfg.Reporter.MaxAttempts = 3
	}
	if cfg.Reporter.BaseBackoff == 0 {
		cfg.Reporter.BaseBackoff = time.Second
	}
	if cfg.Reporter.QueueCapacity == 0 {
		cfg.Reporter.QueueCapacity = 256
	}
	if cfg.Reporter.DrainGrace == 0 {
		cfg.Reporter.DrainGrace = 5 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KIOSK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KIOSK_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("KIOSK_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("KIOSK_BACKEND_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("KIOSK_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("KIOSK_CAMERA_DEVICE"); v != "" {
		cfg.Camera.Device = v
	}
	if v := os.Getenv("KIOSK_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("KIOSK_TIMEZONE"); v != "" {
		cfg.Presence.Timezone = v
	}
	if v := os.Getenv("KIOSK_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Match.Threshold = &f
		}
	}
}
