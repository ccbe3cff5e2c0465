// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command stencil runs the Stentelligence stencil service and its offline
// file tools.
//
// Usage:
//
//	stencil serve --config configs/stencil.yaml
//	stencil instant board.gbr -o board_stencil.gbr
//	stencil analyze board.gbr --datasheet qfn32.json
//	stencil export board.json --format machine --job engrave -o board.5
//	stencil batch --out ./stencils --jobs 4 boards/*.gbr
//
// With a hosted model for prompt interpretation:
//
//	LLM_BACKEND_TYPE=anthropic ANTHROPIC_API_KEY=... stencil serve
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8090/v1/stencil/health
//
//	# Parse a paste layer
//	curl -X POST http://localhost:8090/v1/stencil/parse \
//	  -H "Content-Type: application/json" \
//	  -d '{"gerber": "G04 ...*\nM02*"}'
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/Stentelligence/pkg/logging"
	"github.com/AleutianAI/Stentelligence/services/stencil/config"
)

// --- Global Flags ---
var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "stencil",
		Short: "Stencil aperture modification for SMT paste layers",
		Long: `Stentelligence reads the solder-paste Gerber of a PCB, applies
aperture modifications and writes a stencil ready for cutting.`,
		SilenceUsage: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(instantCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(batchCmd)
}

// loadConfig reads .env, the config file and the flag overrides.
func loadConfig() (config.Config, error) {
	if err := config.LoadEnv(); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("--log-level: %w", err)
		}
	}
	return cfg, nil
}

// newLogger builds the process logger. Output is JSON when configured or
// when stderr is not a terminal.
func newLogger(cfg config.LoggingConfig, service string) *logging.Logger {
	level, ok := logging.ParseLevel(cfg.Level)
	if !ok {
		level = logging.LevelInfo
	}
	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Dir,
		Service: service,
		JSON:    cfg.JSON || !tty,
	})
}
