// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy_engine

import (
	"errors"
	"strings"
	"testing"
)

func TestPolicyEngine(t *testing.T) {
	engine, err := NewPolicyEngine()
	if err != nil {
		t.Fatalf("Failed to initialize engine: %v", err)
	}

	tests := []struct {
		name            string
		input           string
		shouldFind      bool
		expectedClass   string
		expectedPattern string
	}{
		{
			name:       "Stencil prompt",
			input:      "reduce all rectangular pads by 10% and add 0.1mm corner radius",
			shouldFind: false,
		},
		{
			name:       "Window pane prompt",
			input:      "window pane the large thermal pads 3x3 with 20% reduction",
			shouldFind: false,
		},
		{
			name:            "AWS Access Key",
			input:           "reduce pads, my key is AKIA1234567890123456",
			shouldFind:      true,
			expectedClass:   "secret",
			expectedPattern: "AWS_ACCESS_KEY_ID",
		},
		{
			name:            "Model API key",
			input:           "use sk-ant-REDACTED please",
			shouldFind:      true,
			expectedClass:   "secret",
			expectedPattern: "HOSTED_MODEL_API_KEY",
		},
		{
			name:            "Email Address",
			input:           "send the stencil to jdoe@example.com",
			shouldFind:      true,
			expectedClass:   "pii",
			expectedPattern: "EMAIL_ADDRESS",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			findings := engine.Scan(tc.input)

			if !tc.shouldFind {
				if len(findings) > 0 {
					t.Errorf("Expected 0 findings, got %d. First match: %s", len(findings), findings[0].PatternID)
				}
				if got := engine.Classify([]byte(tc.input)); got != ClassPublic {
					t.Errorf("Expected %q for safe string, got %q", ClassPublic, got)
				}
				if err := engine.Screen(tc.input); err != nil {
					t.Errorf("Screen rejected a safe string: %v", err)
				}
				return
			}

			if len(findings) == 0 {
				t.Fatalf("Expected to find %q but got 0 findings.", tc.expectedPattern)
			}
			first := findings[0]
			if first.ClassificationName != tc.expectedClass {
				t.Errorf("Expected classification %q, got %q", tc.expectedClass, first.ClassificationName)
			}
			if first.PatternID != tc.expectedPattern {
				t.Errorf("Expected pattern ID %q, got %q", tc.expectedPattern, first.PatternID)
			}
			if got := engine.Classify([]byte(tc.input)); got != tc.expectedClass {
				t.Errorf("Classify mismatch. Expected %q, got %q", tc.expectedClass, got)
			}

			err := engine.Screen(tc.input)
			if !errors.Is(err, ErrSensitiveContent) {
				t.Fatalf("Expected ErrSensitiveContent, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.expectedPattern) {
				t.Errorf("Screen error %q does not name %s", err, tc.expectedPattern)
			}
		})
	}
}

func TestScan_LineNumbers(t *testing.T) {
	engine, err := NewPolicyEngine()
	if err != nil {
		t.Fatalf("Failed to init: %v", err)
	}

	findings := engine.Scan("reduce pads\npassword = hunter22\nthanks")
	if len(findings) != 1 {
		t.Fatalf("Expected 1 finding, got %d", len(findings))
	}
	if findings[0].LineNumber != 2 {
		t.Errorf("Expected line 2, got %d", findings[0].LineNumber)
	}
	if findings[0].Confidence != Medium {
		t.Errorf("Expected medium confidence, got %s", findings[0].Confidence)
	}
}

func TestEngineInitializationProperties(t *testing.T) {
	engine, err := NewPolicyEngine()
	if err != nil {
		t.Fatalf("Failed to init: %v", err)
	}
	if len(engine.Classifications) < 2 {
		t.Fatal("Not enough classifications loaded to test sorting.")
	}
	for i := 1; i < len(engine.Classifications); i++ {
		if engine.Classifications[i-1].Priority < engine.Classifications[i].Priority {
			t.Errorf("Classifications are not sorted by priority at %d", i)
		}
	}
	if engine.Classifications[0].Name != "secret" {
		t.Errorf("Expected 'secret' first, got %s", engine.Classifications[0].Name)
	}
}

func TestNewPolicyEngineFromYAML_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad confidence", "classifications:\n  - name: x\n    patterns:\n      - id: A\n        regex: a\n        confidence: certain\n"},
		{"bad regex", "classifications:\n  - name: x\n    patterns:\n      - id: A\n        regex: '(('\n        confidence: low\n"},
		{"not yaml", "classifications: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewPolicyEngineFromYAML([]byte(tc.yaml)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestPolicyEngine_Concurrency(t *testing.T) {
	engine, err := NewPolicyEngine()
	if err != nil {
		t.Fatalf("Failed to init: %v", err)
	}
	input := "My fake key is AKIA1234567890123456"

	t.Run("ParallelScanning", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			t.Run("Worker", func(t *testing.T) {
				t.Parallel()
				if len(engine.Scan(input)) == 0 {
					t.Error("Concurrent scan failed to find secret")
				}
			})
		}
	})
}

func BenchmarkScreenPrompt(b *testing.B) {
	engine, _ := NewPolicyEngine()
	input := "reduce all rectangular pads by 10% and add 0.1mm corner radius"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.Screen(input)
	}
}
