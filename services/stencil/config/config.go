// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the stencil service configuration.
//
// # Description
//
// Configuration is layered: compiled-in defaults, then an optional YAML
// file, then environment variables (optionally seeded from a .env file).
// The result is validated once; a Config that passed Validate is safe to
// hand to every component.
//
// # Environment
//
//   - STENCIL_PORT: HTTP port.
//   - STENCIL_LOG_LEVEL: debug, info, warn or error.
//   - LLM_BACKEND_TYPE: anthropic, openai or none.
//   - LLM_MODEL: Model name override.
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY: Key for the selected backend.
//   - OTEL_EXPORTER_OTLP_ENDPOINT: Enables the OTLP trace exporter.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/Stentelligence/services/llm"
	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
)

var configValidate = validator.New()

// Config is the root configuration document.
type Config struct {
	Server     ServerConfig        `yaml:"server"`
	LLM        llm.Config          `yaml:"llm"`
	Telemetry  TelemetryConfig     `yaml:"telemetry"`
	Logging    LoggingConfig       `yaml:"logging"`
	Thresholds classify.Thresholds `yaml:"thresholds"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"gte=1,lte=65535"`

	// MaxUploadMB caps the request body of parse and instant-edit.
	MaxUploadMB int `yaml:"max_upload_mb" validate:"gte=1,lte=512"`

	// InterpretRPS and InterpretBurst throttle remote interpretation.
	// Zero RPS disables the limiter.
	InterpretRPS   float64 `yaml:"interpret_rps" validate:"gte=0"`
	InterpretBurst int     `yaml:"interpret_burst" validate:"gte=0"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig selects the trace and metric exporters.
type TelemetryConfig struct {
	// Exporter is the trace exporter: "none", "stdout" or "otlp".
	Exporter string `yaml:"exporter" validate:"oneof=none stdout otlp"`

	// MetricExporter is "none", "prometheus" or "stdout". Prometheus
	// instruments are served on /metrics.
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none prometheus stdout"`

	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Exporter otlp"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name" validate:"required"`
}

// LoggingConfig mirrors logging.Config in file form.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8090,
			MaxUploadMB:     32,
			InterpretRPS:    1,
			InterpretBurst:  5,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: llm.Config{
			Backend: llm.BackendNone,
			Timeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:       "none",
			MetricExporter: "prometheus",
			ServiceName:    "stentelligence",
		},
		Logging:    LoggingConfig{Level: "info"},
		Thresholds: classify.Default(),
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty) and the environment, then validates it. Unknown YAML keys are
// rejected.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadEnv seeds the process environment from dotenv files. Variables
// already set win, and missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto c.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("STENCIL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STENCIL_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("STENCIL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LLM_BACKEND_TYPE"); v != "" {
		c.LLM.Backend = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	switch c.LLM.Backend {
	case llm.BackendAnthropic:
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case llm.BackendOpenAI:
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Exporter = "otlp"
		c.Telemetry.OTLPEndpoint = v
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
