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
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/Stentelligence/pkg/validation"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

// Handlers contains the HTTP handlers for the stencil service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleParse handles POST /v1/stencil/parse.
//
// Description:
//
//	Ingests Gerber text and returns the dataset.
//
// Request Body:
//
//	ParseRequest
//
// Response:
//
//	200 OK: model.Dataset
//	400 Bad Request: Missing or empty Gerber text
func (h *Handlers) HandleParse(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleParse")

	var req ParseRequest
	if !bind(c, logger, &req) {
		return
	}

	logger.Info("Parsing gerber", "bytes", len(req.Gerber))
	ds, err := h.svc.Parse(c.Request.Context(), req.Gerber)
	if err != nil {
		respondError(c, logger, err, "PARSE_FAILED")
		return
	}
	c.JSON(http.StatusOK, ds)
}

// HandleModify handles POST /v1/stencil/modify.
//
// Description:
//
//	Applies one command to the posted dataset and returns it with the
//	number of shapes changed. An unknown action is a no-op, not an error.
//
// Response:
//
//	200 OK: ModifyResponse
//	400 Bad Request: Invalid body, command or thresholds
//	422 Unprocessable Entity: Empty dataset
func (h *Handlers) HandleModify(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleModify")

	var req ModifyRequest
	if !bind(c, logger, &req) {
		return
	}
	if err := req.Command.Validate(); err != nil {
		logger.Warn("Invalid command", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid command",
			Code:    "INVALID_COMMAND",
			Details: err.Error(),
		})
		return
	}

	logger.Info("Modify request", "command", req.Command.String())
	res, err := h.svc.Modify(c.Request.Context(), req.Data, req.Command, req.Thresholds)
	if err != nil {
		respondError(c, logger, err, "MODIFY_FAILED")
		return
	}
	c.JSON(http.StatusOK, ModifyResponse{
		Data:          req.Data,
		ModifiedCount: res.Changed,
		Panes:         res.Panes,
		Total:         res.Total,
	})
}

// HandleInstantEdit handles POST /v1/stencil/instant-edit.
//
// Response:
//
//	200 OK: InstantEditResponse
//	400 Bad Request: Invalid body or thresholds
//	422 Unprocessable Entity: Empty dataset
func (h *Handlers) HandleInstantEdit(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleInstantEdit")

	var req InstantEditRequest
	if !bind(c, logger, &req) {
		return
	}

	report, err := h.svc.InstantEdit(c.Request.Context(), req.Data, req.Thresholds)
	if err != nil {
		respondError(c, logger, err, "INSTANT_EDIT_FAILED")
		return
	}
	logger.Info("Instant edit complete", "panes", report.Panes, "skipped", report.Skipped)
	c.JSON(http.StatusOK, InstantEditResponse{Data: req.Data, Log: report.Log, Report: report})
}

// HandleFiducials handles POST /v1/stencil/fiducials.
//
// Response:
//
//	200 OK: FiducialsResponse
//	422 Unprocessable Entity: Empty dataset
func (h *Handlers) HandleFiducials(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleFiducials")

	var req FiducialsRequest
	if !bind(c, logger, &req) {
		return
	}

	fids, err := h.svc.Fiducials(c.Request.Context(), req.Data)
	if err != nil {
		respondError(c, logger, err, "FIDUCIALS_FAILED")
		return
	}
	if fids == nil {
		fids = []model.Shape{}
	}
	c.JSON(http.StatusOK, FiducialsResponse{Data: req.Data, Fiducials: fids, Count: len(fids)})
}

// HandleExport handles POST /v1/stencil/export.
//
// Description:
//
//	Encodes the dataset as Gerber or the machine dialect and returns it as
//	a text/plain attachment.
//
// Response:
//
//	200 OK: Encoded text
//	400 Bad Request: Unknown format or job
//	422 Unprocessable Entity: Empty dataset
func (h *Handlers) HandleExport(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleExport")

	var req ExportRequest
	if !bind(c, logger, &req) {
		return
	}

	out, name, err := h.svc.Export(c.Request.Context(), req.Data, req.Format, req.Job, req.Thresholds)
	if err != nil {
		respondError(c, logger, err, "EXPORT_FAILED")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(out))
}

// HandleAnalyze handles POST /v1/stencil/analyze.
//
// Response:
//
//	200 OK: dfm.Report
//	422 Unprocessable Entity: Empty dataset
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var req AnalyzeRequest
	if !bind(c, logger, &req) {
		return
	}

	report, err := h.svc.Analyze(c.Request.Context(), req.Data, req.Datasheet, req.Thresholds)
	if err != nil {
		respondError(c, logger, err, "ANALYZE_FAILED")
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleInterpret handles POST /v1/stencil/interpret.
//
// Description:
//
//	Converts a prompt into a command. Remote failures fall back to the
//	local parser, so a valid request always yields 200.
//
// Response:
//
//	200 OK: interpret.Result
//	400 Bad Request: Missing prompt
func (h *Handlers) HandleInterpret(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleInterpret")

	var req InterpretRequest
	if !bind(c, logger, &req) {
		return
	}

	res := h.svc.Interpret(c.Request.Context(), req.Prompt, req.ShapeStats)
	logger.Info("Interpreted prompt", "source", res.Source, "command", res.Command.String())
	c.JSON(http.StatusOK, res)
}

// HandleDefaults handles GET /v1/stencil/defaults.
func (h *Handlers) HandleDefaults(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Thresholds())
}

// HandleHealth handles GET /v1/stencil/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		Version:    ServiceVersion,
		LLMBackend: h.svc.LLMBackend(),
	})
}

// bind decodes the JSON body into req, writing a 400 on failure.
func bind(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return false
	}
	return true
}

func respondError(c *gin.Context, logger *slog.Logger, err error, fallbackCode string) {
	status, code := statusFor(err, fallbackCode)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	} else {
		logger.Warn("Request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// getOrCreateRequestID gets or creates a request ID. A malformed client
// ID is replaced rather than echoed.
func getOrCreateRequestID(c *gin.Context) string {
	requestID, err := validation.SanitizeRequestID(c.GetHeader("X-Request-ID"))
	if err != nil {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
