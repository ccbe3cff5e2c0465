// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"STENCIL_PORT", "STENCIL_LOG_LEVEL", "LLM_BACKEND_TYPE", "LLM_MODEL",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, classify.Default(), cfg.Thresholds)
	assert.Equal(t, "0.0.0.0:8090", cfg.Server.Addr())
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_OverlaysFile(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, t.TempDir(), "stencil.yaml", `
server:
  port: 9000
  shutdown_timeout: 3s
thresholds:
  min_pad_mil: 6
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 6.0, cfg.Thresholds.MinPadMil)
	assert.Equal(t, 2.5, cfg.Thresholds.FinePitchAspect, "unset keys keep defaults")
}

func TestLoad_ExampleFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "stencil.yaml"))
	require.NoError(t, err)
	assert.Equal(t, classify.Default(), cfg.Thresholds)
}

func TestLoad_Rejects(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "server:\n  prot: 80\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"non-positive floor", "thresholds:\n  min_pad_mil: 0\n"},
		{"pane area below thermal area", "thresholds:\n  pane_area_sq_mil: 5000\n"},
		{"otlp without endpoint", "telemetry:\n  exporter: otlp\n"},
		{"bad backend", "llm:\n  backend: cohere\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, dir, "c.yaml", tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STENCIL_PORT", "7070")
	t.Setenv("LLM_BACKEND_TYPE", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_KEY", "wrong-backend")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.LLM.Backend)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "otlp", cfg.Telemetry.Exporter)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)

	t.Setenv("STENCIL_PORT", "eighty")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	const key = "STENCIL_DOTENV_PROBE"
	t.Cleanup(func() { os.Unsetenv(key) })
	os.Unsetenv(key)

	p := writeFile(t, t.TempDir(), ".env", key+"=from-dotenv\n")
	require.NoError(t, LoadEnv(p, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "from-dotenv", os.Getenv(key))
}

func TestThresholdStore(t *testing.T) {
	s := NewThresholdStore(classify.Default())
	snap := s.Load()
	snap.MinPadMil = 1

	assert.Equal(t, 8.0, s.Load().MinPadMil, "snapshots are copies")

	s.Store(snap)
	assert.Equal(t, 1.0, s.Load().MinPadMil)
}

func TestWatcher_ReloadsThresholds(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	p := writeFile(t, dir, "stencil.yaml", "thresholds:\n  min_pad_mil: 8\n")

	store := NewThresholdStore(classify.Default())
	w, err := NewWatcher(p, store, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeFile(t, dir, "stencil.yaml", "thresholds:\n  min_pad_mil: 5\n")
	assert.Eventually(t, func() bool {
		return store.Load().MinPadMil == 5
	}, 3*time.Second, 20*time.Millisecond)

	writeFile(t, dir, "stencil.yaml", "thresholds:\n  min_pad_mil: -1\n")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 5.0, store.Load().MinPadMil, "invalid reload keeps the previous table")
}
