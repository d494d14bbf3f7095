// Package config loads pipeline settings from YAML files and CALLSIFT_*
// environment variables, with documented defaults for everything.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Audio struct {
	SampleRate   int     `mapstructure:"sample_rate"`
	ChunkSeconds float64 `mapstructure:"chunk_seconds"`
	WindowSize   int     `mapstructure:"window_size"`
}

// Analysis holds the per-sub-analysis enable flags.
type Analysis struct {
	Acoustic bool `mapstructure:"acoustic"`
	Text     bool `mapstructure:"text"`
	Speaker  bool `mapstructure:"speaker"`
	Context  bool `mapstructure:"context"`
	Metadata bool `mapstructure:"metadata"`
}

type Thresholds struct {
	Alert   float64 `mapstructure:"alert"`
	Blocked float64 `mapstructure:"blocked"`
	Warning float64 `mapstructure:"warning"`
}

type Server struct {
	Addr        string `mapstructure:"addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type Services struct {
	ASRURL string `mapstructure:"asr_url"`
}

type Root struct {
	Pipeline struct {
		Name     string `mapstructure:"name"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"pipeline"`
	Audio      Audio      `mapstructure:"audio"`
	Analysis   Analysis   `mapstructure:"analysis"`
	Thresholds Thresholds `mapstructure:"thresholds"`
	Server     Server     `mapstructure:"server"`
	Services   Services   `mapstructure:"services"`
	Paths      struct {
		Outputs string `mapstructure:"outputs"`
	} `mapstructure:"paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "callsift")
	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("audio.sample_rate", 24000)
	v.SetDefault("audio.chunk_seconds", 2.5)
	v.SetDefault("audio.window_size", 2048)
	v.SetDefault("analysis.acoustic", true)
	v.SetDefault("analysis.text", true)
	v.SetDefault("analysis.speaker", true)
	v.SetDefault("analysis.context", true)
	v.SetDefault("analysis.metadata", true)
	v.SetDefault("thresholds.alert", 0.7)
	v.SetDefault("thresholds.blocked", 0.8)
	v.SetDefault("thresholds.warning", 0.5)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("paths.outputs", "outputs")
}

// Load reads configuration from path, or when path is empty from the
// conventional per-environment locations. A missing file is not an
// error; defaults and environment variables still apply.
func Load(path string) (*Root, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CALLSIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		env := os.Getenv("CALLSIFT_ENV")
		if env == "" {
			env = "dev"
		}
		for _, guess := range []string{
			filepath.Join("config", env, "config.yaml"),
			"callsift.yaml",
		} {
			if _, err := os.Stat(guess); err == nil {
				path = guess
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without touching the
// filesystem or environment.
func Default() *Root {
	v := viper.New()
	setDefaults(v)
	var cfg Root
	_ = v.Unmarshal(&cfg)
	return &cfg
}
