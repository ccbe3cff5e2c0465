// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stencil

import (
	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
	"github.com/AleutianAI/Stentelligence/services/stencil/dfm"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
	"github.com/AleutianAI/Stentelligence/services/stencil/modify"
	"github.com/AleutianAI/Stentelligence/services/stencil/rules"
)

// ParseRequest is the request for POST /v1/stencil/parse.
type ParseRequest struct {
	// Gerber is the raw RS-274X text of the paste layer.
	Gerber string `json:"gerber" binding:"required"`
}

// ModifyRequest is the request for POST /v1/stencil/modify.
type ModifyRequest struct {
	Data    *model.Dataset `json:"data" binding:"required"`
	Command modify.Command `json:"command"`

	// Thresholds overrides the service ruleset for this request only.
	Thresholds *classify.Thresholds `json:"thresholds,omitempty"`
}

// ModifyResponse is the response for POST /v1/stencil/modify.
type ModifyResponse struct {
	Data          *model.Dataset `json:"data"`
	ModifiedCount int            `json:"modifiedCount"`
	Panes         int            `json:"panes"`
	Total         int            `json:"total"`
}

// InstantEditRequest is the request for POST /v1/stencil/instant-edit.
type InstantEditRequest struct {
	Data       *model.Dataset       `json:"data" binding:"required"`
	Thresholds *classify.Thresholds `json:"thresholds,omitempty"`
}

// InstantEditResponse is the response for POST /v1/stencil/instant-edit.
type InstantEditResponse struct {
	Data   *model.Dataset `json:"data"`
	Log    []string       `json:"log"`
	Report rules.Report   `json:"report"`
}

// FiducialsRequest is the request for POST /v1/stencil/fiducials.
type FiducialsRequest struct {
	Data *model.Dataset `json:"data" binding:"required"`
}

// FiducialsResponse is the response for POST /v1/stencil/fiducials.
type FiducialsResponse struct {
	Data      *model.Dataset `json:"data"`
	Fiducials []model.Shape  `json:"fiducials"`
	Count     int            `json:"count"`
}

// ExportRequest is the request for POST /v1/stencil/export. The response
// body is the encoded text.
type ExportRequest struct {
	Data *model.Dataset `json:"data" binding:"required"`

	// Format is "gerber" (default) or "machine".
	Format string `json:"format,omitempty"`

	// Job is "cut" (default) or "engrave"; machine format only.
	Job        string               `json:"job,omitempty"`
	Thresholds *classify.Thresholds `json:"thresholds,omitempty"`
}

// AnalyzeRequest is the request for POST /v1/stencil/analyze. The response
// is a dfm.Report.
type AnalyzeRequest struct {
	Data       *model.Dataset       `json:"data" binding:"required"`
	Datasheet  *dfm.Datasheet       `json:"datasheet,omitempty"`
	Thresholds *classify.Thresholds `json:"thresholds,omitempty"`
}

// InterpretRequest is the request for POST /v1/stencil/interpret. The
// response is an interpret.Result.
type InterpretRequest struct {
	Prompt     string         `json:"prompt" binding:"required,max=2000"`
	ShapeStats map[string]any `json:"shapeStats,omitempty"`
}

// HealthResponse is the response for GET /v1/stencil/health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	LLMBackend string `json:"llm_backend"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
