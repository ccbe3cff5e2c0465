// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/Stentelligence/services/stencil"
	"github.com/AleutianAI/Stentelligence/services/stencil/config"
	"github.com/AleutianAI/Stentelligence/services/stencil/dfm"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

// --- File Command Flags ---
var (
	outputPath    string
	outputFormat  string
	machineJob    string
	datasheetPath string
	batchOutDir   string
	batchJobs     int
)

var (
	instantCmd = &cobra.Command{
		Use:   "instant [gerber or dataset.json]",
		Short: "Apply the one-click ruleset and write the stencil",
		Args:  cobra.ExactArgs(1),
		RunE:  runInstant,
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze [gerber or dataset.json]",
		Short: "Print a DFM review of the paste layer as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}

	exportCmd = &cobra.Command{
		Use:   "export [gerber or dataset.json]",
		Short: "Encode a dataset as Gerber or the laser-cutter dialect",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}

	batchCmd = &cobra.Command{
		Use:   "batch [files...]",
		Short: "Run the one-click ruleset over many files concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBatch,
	}
)

func init() {
	for _, c := range []*cobra.Command{instantCmd, exportCmd} {
		c.Flags().StringVarP(&outputPath, "output", "o", "-", "Output file, '-' for stdout")
		c.Flags().StringVar(&outputFormat, "format", stencil.FormatGerber, "Output format: gerber or machine")
		c.Flags().StringVar(&machineJob, "job", "cut", "Machine job: cut or engrave")
	}
	analyzeCmd.Flags().StringVar(&datasheetPath, "datasheet", "", "JSON datasheet to compare against")

	batchCmd.Flags().StringVar(&batchOutDir, "out", ".", "Output directory")
	batchCmd.Flags().StringVar(&outputFormat, "format", stencil.FormatGerber, "Output format: gerber or machine")
	batchCmd.Flags().StringVar(&machineJob, "job", "cut", "Machine job: cut or engrave")
	batchCmd.Flags().IntVar(&batchJobs, "jobs", 4, "Files processed in parallel")
}

// offlineService builds a Service for the file commands. Prompts are
// never interpreted offline, so no LLM client is wired.
func offlineService() (*stencil.Service, *slog.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg.Logging, cfg.Telemetry.ServiceName)
	svc := stencil.NewService(stencil.ServiceConfig{
		Thresholds: config.NewThresholdStore(cfg.Thresholds),
		Logger:     logger.Slog(),
	})
	return svc, logger.Slog(), func() { _ = logger.Close() }, nil
}

func runInstant(cmd *cobra.Command, args []string) error {
	svc, logger, closeLog, err := offlineService()
	if err != nil {
		return err
	}
	defer closeLog()

	out, report, err := instantFile(cmd.Context(), svc, args[0], outputFormat, machineJob)
	if err != nil {
		return err
	}
	for _, line := range report {
		logger.Info(line)
	}
	return writeOutput(cmd.OutOrStdout(), outputPath, out)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	svc, _, closeLog, err := offlineService()
	if err != nil {
		return err
	}
	defer closeLog()

	ds, err := readDataset(cmd.Context(), svc, args[0])
	if err != nil {
		return err
	}
	var sheet *dfm.Datasheet
	if datasheetPath != "" {
		sheet = &dfm.Datasheet{}
		if err := readJSON(datasheetPath, sheet); err != nil {
			return err
		}
	}
	report, err := svc.Analyze(cmd.Context(), ds, sheet, nil)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", args[0], err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runExport(cmd *cobra.Command, args []string) error {
	svc, _, closeLog, err := offlineService()
	if err != nil {
		return err
	}
	defer closeLog()

	ds, err := readDataset(cmd.Context(), svc, args[0])
	if err != nil {
		return err
	}
	out, _, err := svc.Export(cmd.Context(), ds, outputFormat, machineJob, nil)
	if err != nil {
		return fmt.Errorf("export %s: %w", args[0], err)
	}
	return writeOutput(cmd.OutOrStdout(), outputPath, out)
}

func runBatch(cmd *cobra.Command, args []string) error {
	svc, logger, closeLog, err := offlineService()
	if err != nil {
		return err
	}
	defer closeLog()

	if err := os.MkdirAll(batchOutDir, 0750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	written, err := batchFiles(cmd.Context(), svc, logger, args, batchOutDir, outputFormat, machineJob, batchJobs)
	if err != nil {
		return err
	}
	for _, p := range written {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

// instantFile runs the one-click ruleset over one input and encodes it.
func instantFile(ctx context.Context, svc *stencil.Service, path, format, job string) (string, []string, error) {
	ds, err := readDataset(ctx, svc, path)
	if err != nil {
		return "", nil, err
	}
	report, err := svc.InstantEdit(ctx, ds, nil)
	if err != nil {
		return "", nil, fmt.Errorf("instant edit %s: %w", path, err)
	}
	out, _, err := svc.Export(ctx, ds, format, job, nil)
	if err != nil {
		return "", nil, fmt.Errorf("export %s: %w", path, err)
	}
	return out, report.Log, nil
}

// batchFiles processes paths concurrently, writing one stencil per input
// into outDir. It returns the written paths in input order. The first
// failure cancels the remaining files.
func batchFiles(ctx context.Context, svc *stencil.Service, logger *slog.Logger, paths []string, outDir, format, job string, jobs int) ([]string, error) {
	if jobs < 1 {
		jobs = 1
	}
	ext := ".gbr"
	if format == stencil.FormatMachine {
		ext = ".1"
		if job == "engrave" {
			ext = ".5"
		}
	}

	written := make([]string, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			out, _, err := instantFile(gCtx, svc, path, format, job)
			if err != nil {
				return err
			}
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			dest := filepath.Join(outDir, base+"_stencil"+ext)
			if err := os.WriteFile(dest, []byte(out), 0640); err != nil {
				return fmt.Errorf("write %s: %w", dest, err)
			}
			logger.Info("Stencil written", "input", path, "output", dest)
			written[i] = dest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return written, nil
}

// readDataset loads a dataset JSON file or ingests a Gerber file.
func readDataset(ctx context.Context, svc *stencil.Service, path string) (*model.Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		ds := &model.Dataset{}
		if err := readJSON(path, ds); err != nil {
			return nil, err
		}
		return ds, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ds, err := svc.Parse(ctx, string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return ds, nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeOutput writes text to path, or to stdout when path is "-" or empty.
func writeOutput(stdout io.Writer, path, text string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0640); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
