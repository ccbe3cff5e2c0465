// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policy_engine screens free text before it leaves the host.
//
// The stencil interpreter forwards user prompts to a hosted model. Prompts
// are typed by people who also paste from terminals and config files, so
// every prompt is scanned against an embedded set of secret and personal
// data patterns first. A prompt with any finding is withheld and handled
// by the local parser instead.
package policy_engine

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/Stentelligence/services/policy_engine/enforcement"
)

// ErrSensitiveContent is returned by Screen when text matches a pattern.
var ErrSensitiveContent = errors.New("sensitive content detected")

// ClassPublic is returned by Classify for text with no findings.
const ClassPublic = "public"

// PolicyEngine holds the compiled classifications.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type PolicyEngine struct {
	Classifications []Classification
}

// NewPolicyEngine builds an engine from the embedded patterns.
func NewPolicyEngine() (*PolicyEngine, error) {
	return NewPolicyEngineFromYAML(enforcement.PromptPatterns)
}

// NewPolicyEngineFromYAML builds an engine from a pattern document.
func NewPolicyEngineFromYAML(data []byte) (*PolicyEngine, error) {
	var file PatternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the policy file: %w", err)
	}
	if err := file.compile(); err != nil {
		return nil, err
	}
	return &PolicyEngine{Classifications: file.Classifications}, nil
}

// Classify returns the name of the highest-priority classification that
// matches data, or ClassPublic.
func (e *PolicyEngine) Classify(data []byte) string {
	for _, c := range e.Classifications {
		for _, p := range c.Patterns {
			if p.compiled.Match(data) {
				return c.Name
			}
		}
	}
	return ClassPublic
}

// Scan reports every pattern hit, line by line.
func (e *PolicyEngine) Scan(content string) []Finding {
	var findings []Finding
	for lineNum, line := range strings.Split(content, "\n") {
		for _, c := range e.Classifications {
			for _, p := range c.Patterns {
				if !p.compiled.MatchString(line) {
					continue
				}
				findings = append(findings, Finding{
					LineNumber:         lineNum + 1,
					ClassificationName: c.Name,
					PatternID:          p.ID,
					PatternDescription: p.Description,
					Confidence:         p.Confidence,
				})
			}
		}
	}
	return findings
}

// Screen returns nil when text may be forwarded, or an error wrapping
// ErrSensitiveContent that names the matched pattern IDs.
func (e *PolicyEngine) Screen(text string) error {
	findings := e.Scan(text)
	if len(findings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(findings))
	seen := make(map[string]bool, len(findings))
	for _, f := range findings {
		if !seen[f.PatternID] {
			seen[f.PatternID] = true
			ids = append(ids, f.PatternID)
		}
	}
	return fmt.Errorf("%w: %s", ErrSensitiveContent, strings.Join(ids, ", "))
}
