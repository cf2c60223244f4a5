package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel         = "ggml-base.en-q5_1.bin"
	defaultStatusTail    = 10
	defaultStateDirLinux = ".local/state/holdtalk"
	defaultConfigDir     = ".config/holdtalk"
	envPrefix            = "HOLDTALK"
)

// Config holds user configuration loaded from TOML (or YAML).
type Config struct {
	Audio struct {
		DeviceName        string `toml:"device_name" yaml:"device_name"`
		SampleRate        int    `toml:"sample_rate" yaml:"sample_rate"`
		Channels          int    `toml:"channels" yaml:"channels"`
		FrameMS           int    `toml:"frame_ms" yaml:"frame_ms"`
		TrimSilence       bool   `toml:"trim_silence" yaml:"trim_silence"`
		VADAggressiveness int    `toml:"vad_aggressiveness" yaml:"vad_aggressiveness"`
		DumpDir           string `toml:"dump_dir" yaml:"dump_dir"`
	} `toml:"audio" yaml:"audio"`

	ASR struct {
		Model     string `toml:"model" yaml:"model"` // catalog name or path to a ggml file
		ModelsDir string `toml:"models_dir" yaml:"models_dir"`
		Language  string `toml:"language" yaml:"language"`
		Threads   int    `toml:"threads" yaml:"threads"`
	} `toml:"asr" yaml:"asr"`

	Hotkey struct {
		BindingPath string `toml:"binding_path" yaml:"binding_path"`
	} `toml:"hotkey" yaml:"hotkey"`

	Output struct {
		Mode         string            `toml:"mode" yaml:"mode"` // paste, clipboard, hook
		Command      string            `toml:"command" yaml:"command"`
		Args         []string          `toml:"args" yaml:"args"`
		ArgsLine     string            `toml:"args_line" yaml:"args_line"` // shell-style alternative to args
		Prefix       string            `toml:"prefix" yaml:"prefix"`
		TimeoutSec   float64           `toml:"timeout_sec" yaml:"timeout_sec"`
		Env          map[string]string `toml:"env" yaml:"env"`
		RedactPII    bool              `toml:"redact_pii" yaml:"redact_pii"`
		PasteDelayMS int               `toml:"paste_delay_ms" yaml:"paste_delay_ms"`
	} `toml:"output" yaml:"output"`

	Permissions struct {
		Microphone    string `toml:"microphone" yaml:"microphone"`       // auto, granted, denied
		Accessibility string `toml:"accessibility" yaml:"accessibility"` // auto, granted, denied
	} `toml:"permissions" yaml:"permissions"`

	Logging struct {
		Level  string `toml:"level" yaml:"level"`   // debug, info, warn, error
		Format string `toml:"format" yaml:"format"` // text, json
		Stdout bool   `toml:"stdout" yaml:"stdout"`
	} `toml:"logging" yaml:"logging"`

	Paths struct {
		StateDir       string `toml:"state_dir" yaml:"state_dir"`
		LogPath        string `toml:"log_path" yaml:"log_path"`
		TranscriptPath string `toml:"transcript_path" yaml:"transcript_path"`
		SocketPath     string `toml:"socket_path" yaml:"socket_path"`
		PidPath        string `toml:"pid_path" yaml:"pid_path"`
		ConfigPath     string `toml:"-" yaml:"-"`
	} `toml:"paths" yaml:"paths"`

	UI struct {
		StatusTail int  `toml:"status_tail" yaml:"status_tail"`
		Notify     bool `toml:"notify" yaml:"notify"`
	} `toml:"ui" yaml:"ui"`

	Metrics struct {
		Enabled bool   `toml:"enabled" yaml:"enabled"`
		Addr    string `toml:"addr" yaml:"addr"`
	} `toml:"metrics" yaml:"metrics"`

	Transcripts struct {
		Enabled bool `toml:"enabled" yaml:"enabled"`
	} `toml:"transcripts" yaml:"transcripts"`
}

// envOverrides lists the HOLDTALK_* variables; nil means unset.
type envOverrides struct {
	Model         *string `envconfig:"MODEL"`
	MetricsAddr   *string `envconfig:"METRICS_ADDR"`
	LogLevel      *string `envconfig:"LOG_LEVEL"`
	LogFormat     *string `envconfig:"LOG_FORMAT"`
	LogStdout     *bool   `envconfig:"LOG_STDOUT"`
	OutputMode    *string `envconfig:"OUTPUT_MODE"`
	Transcripts   *bool   `envconfig:"TRANSCRIPTS_ENABLED"`
	RedactPII     *bool   `envconfig:"REDACT_PII"`
	Notify        *bool   `envconfig:"NOTIFY"`
	Accessibility *string `envconfig:"ACCESSIBILITY"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	// macOS prefers ~/Library/Application Support/holdtalk for state/logs
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "holdtalk")
	}

	cfg := &Config{}

	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1
	cfg.Audio.FrameMS = 20
	cfg.Audio.TrimSilence = false
	cfg.Audio.VADAggressiveness = 2

	cfg.ASR.Model = DefaultModel
	cfg.ASR.ModelsDir = filepath.Join(stateDir, "models")
	cfg.ASR.Language = "auto"
	cfg.ASR.Threads = runtime.NumCPU()

	cfg.Hotkey.BindingPath = filepath.Join(home, defaultConfigDir, "hotkey.toml")

	cfg.Output.Mode = "paste"
	cfg.Output.Prefix = ""
	cfg.Output.TimeoutSec = 5
	cfg.Output.Env = map[string]string{}
	cfg.Output.PasteDelayMS = 80

	cfg.Permissions.Microphone = "auto"
	cfg.Permissions.Accessibility = "auto"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "holdtalk.log")
	cfg.Paths.TranscriptPath = filepath.Join(stateDir, "transcripts.log")
	cfg.Paths.SocketPath = filepath.Join(stateDir, "holdtalk.sock")
	cfg.Paths.PidPath = filepath.Join(stateDir, "holdtalk.pid")

	cfg.UI.StatusTail = defaultStatusTail
	cfg.UI.Notify = true

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9318"

	cfg.Transcripts.Enabled = true

	return cfg, nil
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			if err := applyEnvOverrides(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := unmarshal(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path. The encoding follows the file extension.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		out []byte
		err error
	)
	if isYAML(path) {
		out, err = yaml.Marshal(cfg)
	} else {
		out, err = toml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return toml.Unmarshal(data, cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{
		cfg.Paths.StateDir,
		filepath.Dir(cfg.Paths.LogPath),
		filepath.Dir(cfg.Paths.TranscriptPath),
		cfg.ASR.ModelsDir,
	} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// applyEnvOverrides loads an optional .env beside the config file, then
// applies HOLDTALK_* variables on top of the file values.
func applyEnvOverrides(cfg *Config) error {
	if cfg.Paths.ConfigPath != "" {
		envFile := filepath.Join(filepath.Dir(cfg.Paths.ConfigPath), ".env")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	if env.Model != nil {
		cfg.ASR.Model = *env.Model
	}
	if env.MetricsAddr != nil && *env.MetricsAddr != "" {
		cfg.Metrics.Addr = *env.MetricsAddr
		cfg.Metrics.Enabled = true
	}
	if env.LogLevel != nil {
		cfg.Logging.Level = *env.LogLevel
	}
	if env.LogFormat != nil {
		cfg.Logging.Format = *env.LogFormat
	}
	if env.LogStdout != nil {
		cfg.Logging.Stdout = *env.LogStdout
	}
	if env.OutputMode != nil {
		cfg.Output.Mode = *env.OutputMode
	}
	if env.Transcripts != nil {
		cfg.Transcripts.Enabled = *env.Transcripts
	}
	if env.RedactPII != nil {
		cfg.Output.RedactPII = *env.RedactPII
	}
	if env.Notify != nil {
		cfg.UI.Notify = *env.Notify
	}
	if env.Accessibility != nil {
		cfg.Permissions.Accessibility = *env.Accessibility
	}
	return nil
}

// OutputTimeout returns the hook timeout as a duration (0 = none).
func (c *Config) OutputTimeout() time.Duration {
	if c.Output.TimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.Output.TimeoutSec * float64(time.Second))
}
