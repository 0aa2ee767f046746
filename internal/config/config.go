package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration. It is built once at startup,
// validated, and passed explicitly; it is never mutated afterwards.
type Config struct {
	// Detector settings
	Detector DetectorConfig `yaml:"detector"`

	// Pipeline defaults (overridable per invocation)
	Pipeline PipelineConfig `yaml:"pipeline"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`

	// Intent extraction settings
	Intent IntentConfig `yaml:"intent"`

	// Snapshot store settings (optional)
	Snapshots SnapshotConfig `yaml:"snapshots"`
}

type DetectorConfig struct {
	ModelPath  string `yaml:"model_path"`
	LabelsPath string `yaml:"labels_path"`
}

type PipelineConfig struct {
	FrameIntervalSeconds float64 `yaml:"frame_interval_seconds"`
	MinConfidence        float64 `yaml:"min_confidence"`
}

type ServerConfig struct {
	ListenAddr  string   `yaml:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type IntentConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key"`
}

type SnapshotConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// Enabled reports whether a snapshot store is configured.
func (s SnapshotConfig) Enabled() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != ""
}

// Load reads configuration from file, applies environment overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Detector.ModelPath == "" {
		return fmt.Errorf("detector.model_path must not be empty")
	}
	if c.Pipeline.FrameIntervalSeconds <= 0 {
		return fmt.Errorf("pipeline.frame_interval_seconds must be > 0, got %v",
			c.Pipeline.FrameIntervalSeconds)
	}
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence > 1 {
		return fmt.Errorf("pipeline.min_confidence must be in [0,1], got %v",
			c.Pipeline.MinConfidence)
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Detector: DetectorConfig{
			ModelPath: "./models/yolov8n.onnx",
		},
		Pipeline: PipelineConfig{
			FrameIntervalSeconds: 1.0,
			MinConfidence:        0.6,
		},
		Server: ServerConfig{
			ListenAddr:  ":8000",
			CORSOrigins: []string{"*"},
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MODEL_PATH"); v != "" {
		cfg.Detector.ModelPath = v
	}
	if v := os.Getenv("LABELS_PATH"); v != "" {
		cfg.Detector.LabelsPath = v
	}
	if v := os.Getenv("FRAME_INTERVAL_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.FrameIntervalSeconds = f
		}
	}
	if v := os.Getenv("MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.MinConfidence = f
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) > 0 {
			cfg.Server.CORSOrigins = origins
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Intent.GeminiAPIKey = v
	}
	if v := os.Getenv("SNAPSHOT_ENDPOINT"); v != "" {
		cfg.Snapshots.Endpoint = v
	}
	if v := os.Getenv("SNAPSHOT_ACCESS_KEY"); v != "" {
		cfg.Snapshots.AccessKey = v
	}
	if v := os.Getenv("SNAPSHOT_SECRET_KEY"); v != "" {
		cfg.Snapshots.SecretKey = v
	}
	if v := os.Getenv("SNAPSHOT_BUCKET"); v != "" {
		cfg.Snapshots.Bucket = v
	}
	if v := os.Getenv("SNAPSHOT_USE_SSL"); v != "" {
		cfg.Snapshots.UseSSL = v == "true" || v == "1"
	}
	if v := os.Getenv("SNAPSHOT_PUBLIC_BASE_URL"); v != "" {
		cfg.Snapshots.PublicBaseURL = v
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".framehound", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
