// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides minimal text-generation clients for the hosted
// model backends used by the command interpreter.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("stentelligence.llm")

// ErrMissingAPIKey is returned when a backend is selected without a key.
var ErrMissingAPIKey = errors.New("llm API key is missing")

// ErrUnknownBackend is returned for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown llm backend")

// Backend names accepted by NewClient.
const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
	BackendNone      = "none"
)

type GenerationParams struct {
	System      string   `json:"system,omitempty"`
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend string        `yaml:"backend" validate:"omitempty,oneof=anthropic openai none"`
	APIKey  string        `yaml:"-"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NewClient builds the client named by cfg.Backend. BackendNone and an
// empty backend return (nil, nil): no remote interpretation.
func NewClient(cfg Config) (LLMClient, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendNone:
		return nil, nil
	case BackendAnthropic:
		return NewAnthropicClient(cfg)
	case BackendOpenAI:
		return NewOpenAIClient(cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}

func timeoutOr(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return 30 * time.Second
}
