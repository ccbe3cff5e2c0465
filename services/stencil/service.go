// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stencil is the HTTP-facing stencil modification service.
//
// # Description
//
// Service composes the engine packages (ingest, modify, rules, dfm,
// encode, interpret) behind context-aware methods with tracing and
// metrics. Every request carries its own dataset; the only state shared
// between requests is the threshold snapshot, which is replaced wholesale
// on config reload.
//
// # Thread Safety
//
// Service is safe for concurrent use.
package stencil

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
	"github.com/AleutianAI/Stentelligence/services/stencil/config"
	"github.com/AleutianAI/Stentelligence/services/stencil/dfm"
	"github.com/AleutianAI/Stentelligence/services/stencil/encode"
	"github.com/AleutianAI/Stentelligence/services/stencil/ingest"
	"github.com/AleutianAI/Stentelligence/services/stencil/interpret"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
	"github.com/AleutianAI/Stentelligence/services/stencil/modify"
	"github.com/AleutianAI/Stentelligence/services/stencil/observability"
	"github.com/AleutianAI/Stentelligence/services/stencil/rules"
)

// ServiceVersion is the stencil service version.
const ServiceVersion = "2.2.0"

var (
	tracer = otel.Tracer("stentelligence.stencil")
	meter  = otel.Meter("stentelligence.stencil")
)

// Export formats.
const (
	FormatGerber  = "gerber"
	FormatMachine = "machine"
)

// ServiceConfig wires a Service.
type ServiceConfig struct {
	// Thresholds is the live ruleset. Required.
	Thresholds *config.ThresholdStore

	// Interpreter resolves prompts. Nil means local parsing only.
	Interpreter *interpret.Interpreter

	// Metrics may be nil.
	Metrics *observability.Metrics

	// LLMBackend is reported by the health endpoint.
	LLMBackend string

	Logger *slog.Logger
}

// Service runs stencil operations.
type Service struct {
	thresholds  *config.ThresholdStore
	interpreter *interpret.Interpreter
	metrics     *observability.Metrics
	llmBackend  string
	logger      *slog.Logger
	exportBytes metric.Int64Histogram
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := cfg.Thresholds
	if store == nil {
		store = config.NewThresholdStore(classify.Default())
	}
	interp := cfg.Interpreter
	if interp == nil {
		interp = interpret.New(nil, logger)
	}
	backend := cfg.LLMBackend
	if backend == "" {
		backend = "none"
	}

	exportBytes, err := meter.Int64Histogram("stencil.export.size",
		metric.WithDescription("Encoded output size"),
		metric.WithUnit("By"))
	if err != nil {
		logger.Warn("Export size instrument unavailable", "error", err)
	}

	return &Service{
		thresholds:  store,
		interpreter: interp,
		metrics:     cfg.Metrics,
		llmBackend:  backend,
		logger:      logger,
		exportBytes: exportBytes,
	}
}

// Thresholds returns the active ruleset.
func (s *Service) Thresholds() classify.Thresholds {
	return s.thresholds.Load()
}

// resolve picks the request override or the active ruleset.
func (s *Service) resolve(override *classify.Thresholds) (classify.Thresholds, error) {
	if override == nil {
		return s.thresholds.Load(), nil
	}
	if err := override.Validate(); err != nil {
		return classify.Thresholds{}, fmt.Errorf("%w: %v", ErrInvalidThresholds, err)
	}
	return *override, nil
}

// Parse ingests Gerber text.
func (s *Service) Parse(ctx context.Context, gerber string) (*model.Dataset, error) {
	_, span := tracer.Start(ctx, "Service.Parse",
		trace.WithAttributes(attribute.Int("gerber.bytes", len(gerber))))
	defer span.End()

	ds, err := ingest.ParseGerber(strings.NewReader(gerber), s.logger)
	if err != nil {
		return nil, fail(span, err, "parse failed")
	}
	span.SetAttributes(attribute.Int("shapes", len(ds.Shapes)), attribute.Int("tools", len(ds.Tools)))
	s.metrics.RecordShapes("parse", len(ds.Shapes))
	return ds, nil
}

// Modify applies cmd to ds in place.
func (s *Service) Modify(ctx context.Context, ds *model.Dataset, cmd modify.Command, override *classify.Thresholds) (modify.Result, error) {
	_, span := tracer.Start(ctx, "Service.Modify",
		trace.WithAttributes(attribute.String("command", cmd.String())))
	defer span.End()

	th, err := s.resolve(override)
	if err != nil {
		return modify.Result{}, fail(span, err, "bad thresholds")
	}
	res, err := modify.NewEngine(th, s.logger).Apply(ds, cmd)
	if err != nil {
		return modify.Result{}, fail(span, err, "modify failed")
	}
	span.SetAttributes(attribute.Int("modified", res.Changed), attribute.Int("panes", res.Panes))
	s.metrics.RecordModification(string(cmd.Action), res.Changed, res.Panes)
	return res, nil
}

// InstantEdit runs the one-click ruleset on ds in place.
func (s *Service) InstantEdit(ctx context.Context, ds *model.Dataset, override *classify.Thresholds) (rules.Report, error) {
	_, span := tracer.Start(ctx, "Service.InstantEdit")
	defer span.End()

	th, err := s.resolve(override)
	if err != nil {
		return rules.Report{}, fail(span, err, "bad thresholds")
	}
	report, err := rules.NewEngine(th, s.logger).Apply(ds)
	if err != nil {
		return rules.Report{}, fail(span, err, "instant edit failed")
	}
	changed := 0
	for _, n := range report.Counts {
		changed += n
	}
	span.SetAttributes(attribute.Int("panes", report.Panes), attribute.Int("skipped", report.Skipped))
	s.metrics.RecordModification("instant", changed, report.Panes)
	return report, nil
}

// Fiducials converts the selected shapes of ds into fiducials.
func (s *Service) Fiducials(ctx context.Context, ds *model.Dataset) ([]model.Shape, error) {
	_, span := tracer.Start(ctx, "Service.Fiducials")
	defer span.End()

	fids, err := modify.ExtractFiducials(ds)
	if err != nil {
		return nil, fail(span, err, "fiducial extraction failed")
	}
	span.SetAttributes(attribute.Int("fiducials", len(fids)))
	return fids, nil
}

// Export encodes ds. It returns the text and a suggested file name.
func (s *Service) Export(ctx context.Context, ds *model.Dataset, format, job string, override *classify.Thresholds) (string, string, error) {
	ctx, span := tracer.Start(ctx, "Service.Export",
		trace.WithAttributes(attribute.String("format", format), attribute.String("job", job)))
	defer span.End()

	th, err := s.resolve(override)
	if err != nil {
		return "", "", fail(span, err, "bad thresholds")
	}
	enc := encode.NewEncoder(th)

	var out, name string
	switch format {
	case "", FormatGerber:
		format = FormatGerber
		out, err = enc.Gerber(ds)
		name = "stencil.gbr"
	case FormatMachine:
		j := encode.Job(job)
		switch j {
		case "":
			j = encode.JobCut
		case encode.JobCut, encode.JobEngrave:
		default:
			return "", "", fail(span, fmt.Errorf("%w: %q", ErrUnknownJob, job), "bad job")
		}
		out, err = enc.Machine(ds, j)
		name = "stencil" + j.Suffix()
	default:
		return "", "", fail(span, fmt.Errorf("%w: %q", ErrUnknownFormat, format), "bad format")
	}
	if err != nil {
		return "", "", fail(span, err, "export failed")
	}

	if s.exportBytes != nil {
		s.exportBytes.Record(ctx, int64(len(out)), metric.WithAttributes(attribute.String("format", format)))
	}
	s.metrics.RecordShapes("export", ds.LiveCount())
	return out, name, nil
}

// Analyze runs the DFM review.
func (s *Service) Analyze(ctx context.Context, ds *model.Dataset, sheet *dfm.Datasheet, override *classify.Thresholds) (dfm.Report, error) {
	_, span := tracer.Start(ctx, "Service.Analyze")
	defer span.End()

	th, err := s.resolve(override)
	if err != nil {
		return dfm.Report{}, fail(span, err, "bad thresholds")
	}
	report, err := dfm.Analyze(ds, th, sheet)
	if err != nil {
		return dfm.Report{}, fail(span, err, "analysis failed")
	}
	span.SetAttributes(attribute.Int("issues", len(report.Issues)))
	return report, nil
}

// Interpret resolves a prompt. It never fails.
func (s *Service) Interpret(ctx context.Context, prompt string, stats map[string]any) interpret.Result {
	res := s.interpreter.Interpret(ctx, prompt, stats)
	s.metrics.RecordInterpret(string(res.Source))
	return res
}

// LLMBackend names the configured interpretation backend.
func (s *Service) LLMBackend() string {
	return s.llmBackend
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}
