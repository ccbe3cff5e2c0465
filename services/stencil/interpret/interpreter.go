// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package interpret turns a natural-language request into a modify.Command.
//
// # Description
//
// An Interpreter asks a remote model first and falls back to a local
// keyword parser on any failure: no client, a prompt withheld by the
// screen, rate limit exhausted, transport error, unparseable or invalid
// response. Interpret therefore always returns a usable command.
package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/Stentelligence/services/llm"
	"github.com/AleutianAI/Stentelligence/services/stencil/modify"
)

var tracer = otel.Tracer("stentelligence.interpret")

// Source records which path produced a command.
type Source string

const (
	SourceAI    Source = "ai"
	SourceLocal Source = "local"
)

var (
	// ErrNoJSON is returned when a model response holds no JSON object.
	ErrNoJSON = errors.New("no JSON object in model response")

	// ErrUnknownAction is returned when a model proposes an unsupported action.
	ErrUnknownAction = errors.New("unknown action")

	errNoClient  = errors.New("no remote model configured")
	errThrottled = errors.New("remote interpretation throttled")
)

// jsonObject grabs the outermost brace-delimited span, tolerating prose
// and code fences around it.
var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Result is the outcome of one interpretation.
type Result struct {
	Success     bool           `json:"success"`
	Command     modify.Command `json:"command"`
	Source      Source         `json:"source"`
	Explanation string         `json:"explanation,omitempty"`
}

// Screener decides whether a prompt may be sent to the remote model.
// A non-nil error withholds it.
type Screener interface {
	Screen(text string) error
}

// Interpreter converts prompts to commands.
//
// # Thread Safety
//
// Safe for concurrent use if the LLMClient is.
type Interpreter struct {
	client   llm.LLMClient
	limiter  *rate.Limiter
	screener Screener
	logger   *slog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLimiter throttles remote calls. When the limiter refuses, the
// prompt goes straight to the local parser.
func WithLimiter(l *rate.Limiter) Option {
	return func(i *Interpreter) { i.limiter = l }
}

// WithScreener checks every prompt before it leaves the host.
func WithScreener(s Screener) Option {
	return func(i *Interpreter) { i.screener = s }
}

// New returns an Interpreter. A nil client means local parsing only.
func New(client llm.LLMClient, logger *slog.Logger, opts ...Option) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Interpreter{client: client, logger: logger}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Interpret resolves prompt into a command. stats is an optional summary
// of the loaded design, forwarded to the model as context.
//
// # Outputs
//
//   - Result: Source is "ai" when the model answered with a valid command,
//     "local" otherwise. Success is always true.
func (i *Interpreter) Interpret(ctx context.Context, prompt string, stats map[string]any) Result {
	ctx, span := tracer.Start(ctx, "Interpreter.Interpret")
	defer span.End()

	cmd, err := i.remote(ctx, prompt, stats)
	if err == nil {
		span.SetAttributes(attribute.String("interpret.source", string(SourceAI)))
		return Result{Success: true, Command: cmd, Source: SourceAI, Explanation: cmd.Explanation}
	}

	if !errors.Is(err, errNoClient) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remote interpretation failed")
		i.logger.Warn("Remote interpretation failed, using local parser", "error", err)
	}
	span.SetAttributes(attribute.String("interpret.source", string(SourceLocal)))

	cmd = ParseLocal(prompt)
	return Result{Success: true, Command: cmd, Source: SourceLocal, Explanation: cmd.Explanation}
}

func (i *Interpreter) remote(ctx context.Context, prompt string, stats map[string]any) (modify.Command, error) {
	if i.client == nil {
		return modify.Command{}, errNoClient
	}
	if i.screener != nil {
		if err := i.screener.Screen(prompt); err != nil {
			return modify.Command{}, fmt.Errorf("prompt withheld: %w", err)
		}
	}
	if i.limiter != nil && !i.limiter.Allow() {
		return modify.Command{}, errThrottled
	}

	text, err := i.client.Generate(ctx, prompt, llm.GenerationParams{System: SystemPrompt(stats)})
	if err != nil {
		return modify.Command{}, err
	}
	return ParseResponse(text)
}

// ParseResponse extracts and validates a command from model output.
func ParseResponse(text string) (modify.Command, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return modify.Command{}, ErrNoJSON
	}
	var cmd modify.Command
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		return modify.Command{}, fmt.Errorf("decode command: %w", err)
	}
	if !cmd.Action.Known() {
		return modify.Command{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	if err := cmd.Validate(); err != nil {
		return modify.Command{}, err
	}
	if cmd.Target == "" {
		cmd.Target = modify.TargetAll
	}
	return cmd, nil
}

const systemPromptBase = `You are a PCB stencil design assistant. Convert the user's request into a single JSON object and nothing else.

Schema:
{
  "action": "reduce" | "enlarge" | "scale" | "cornerRadius" | "windowPane" | "delete" | "reset" | "modifyFids",
  "target": "all" | "selected" | "thermal" | "finePitch" | "circles" | "rectangles",
  "value": number,
  "unit": "%" | "mm" | "mil" | "in",
  "selectedOnly": boolean,
  "windowPane": {"rows": number, "cols": number, "webWidth": number, "edgeGap": number, "reduction": number, "unit": "mil" | "mm"},
  "fidSize": number,
  "fidUnit": "mil" | "mm",
  "explanation": "one sentence describing the change"
}

Guidelines:
- Fine-pitch apertures are typically reduced 5-10% or 0.5-1 mil per side.
- Thermal pads over 100 mil are usually window-paned to 50-70% paste coverage.
- Percent values are relative; mm, mil and in values are absolute per-side changes.`

// SystemPrompt builds the model instructions, appending stats when present.
func SystemPrompt(stats map[string]any) string {
	if len(stats) == 0 {
		return systemPromptBase
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return systemPromptBase
	}
	var sb strings.Builder
	sb.WriteString(systemPromptBase)
	sb.WriteString("\n\nCurrent design statistics:\n")
	sb.Write(b)
	return sb.String()
}
