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
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
	"github.com/AleutianAI/Stentelligence/services/stencil/dfm"
	"github.com/AleutianAI/Stentelligence/services/stencil/interpret"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
	"github.com/AleutianAI/Stentelligence/services/stencil/modify"
	"github.com/AleutianAI/Stentelligence/services/stencil/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const pasteLayer = `G04 test paste layer*
%FSLAX36Y36*%
%MOIN*%
%LPD*%
%ADD10C,0.030000*%
%ADD11R,0.040000X0.060000*%
D10*
X1000000Y1000000D03*
D11*
X2000000Y1000000D03*
X2100000Y1000000D03*
G36*
X0Y0D02*
G01X500000Y0D01*
X500000Y500000D01*
X0Y500000D01*
X0Y0D01*
G37*
M02*
`

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	svc := NewService(ServiceConfig{
		Metrics: metrics,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return NewRouter(NewHandlers(svc), RouterConfig{Metrics: metrics, Gatherer: reg})
}

func testDataset() *model.Dataset {
	ds := model.NewDataset()
	ds.Units = model.UnitInch
	ds.Tools["10"] = model.Tool{ID: "10", Kind: model.ToolCircle, Width: 0.02, Height: 0.02}
	ds.Tools["11"] = model.Tool{ID: "11", Kind: model.ToolRect, Width: 0.04, Height: 0.03}
	ds.Shapes = []model.Shape{
		{ID: "pad-0", Kind: model.KindPad, Tool: "11", X: 1, Y: 1},
		{ID: "pad-1", Kind: model.KindPad, Tool: "10", X: 2, Y: 1},
		{ID: "pad-2", Kind: model.KindPad, Tool: "11", X: 3, Y: 1},
	}
	return ds
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleHealth(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/stencil/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Equal(t, "none", resp.LLMBackend)
}

func TestHandleParse(t *testing.T) {
	router := setupTestRouter(t)

	t.Run("paste layer", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/parse", ParseRequest{Gerber: pasteLayer})

		require.Equal(t, http.StatusOK, w.Code)
		var ds model.Dataset
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ds))
		assert.Len(t, ds.Tools, 2)
		assert.Len(t, ds.Shapes, 4)
		assert.Equal(t, model.UnitInch, ds.Units)
	})

	t.Run("missing gerber", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/parse", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/parse", `{"gerber":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
	})

	t.Run("whitespace only", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/parse", ParseRequest{Gerber: "   \n"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "EMPTY_GERBER", decodeError(t, w).Code)
	})
}

func TestHandleModify(t *testing.T) {
	router := setupTestRouter(t)

	t.Run("reduce all by percent", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/modify", ModifyRequest{
			Data:    testDataset(),
			Command: modify.Command{Action: modify.ActionReduce, Target: modify.TargetAll, Value: 10, Unit: "%"},
		})

		require.Equal(t, http.StatusOK, w.Code)
		var resp ModifyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.ModifiedCount)
		assert.Equal(t, 0, resp.Panes)
		assert.Equal(t, 3, resp.Total)
		require.Len(t, resp.Data.Shapes, 3)
		for _, s := range resp.Data.Shapes {
			assert.True(t, s.Modified, s.ID)
			assert.Positive(t, s.ModifiedWidth, s.ID)
		}
	})

	t.Run("unknown action is a no-op", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/modify", ModifyRequest{
			Data:    testDataset(),
			Command: modify.Command{Action: "teleport"},
		})

		require.Equal(t, http.StatusOK, w.Code)
		var resp ModifyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.ModifiedCount)
	})

	t.Run("invalid command", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/modify", ModifyRequest{
			Data:    testDataset(),
			Command: modify.Command{Action: modify.ActionReduce, Value: 10, Unit: "furlong"},
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_COMMAND", decodeError(t, w).Code)
	})

	t.Run("empty dataset", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/modify",
			`{"data":{},"command":{"action":"reduce","value":10,"unit":"%"}}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "EMPTY_DATASET", decodeError(t, w).Code)
	})

	t.Run("invalid threshold override", func(t *testing.T) {
		bad := classify.Default()
		bad.MinPadMil = 0
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/modify", ModifyRequest{
			Data:       testDataset(),
			Command:    modify.Command{Action: modify.ActionReduce, Value: 10, Unit: "%"},
			Thresholds: &bad,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_THRESHOLDS", decodeError(t, w).Code)
	})
}

func TestHandleInstantEdit(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/stencil/instant-edit", InstantEditRequest{Data: testDataset()})

	require.Equal(t, http.StatusOK, w.Code)
	var resp InstantEditResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Log)
	assert.Equal(t, resp.Log, resp.Report.Log)
	assert.NotNil(t, resp.Data)
}

func TestHandleFiducials(t *testing.T) {
	router := setupTestRouter(t)

	t.Run("selected shapes", func(t *testing.T) {
		ds := testDataset()
		ds.Shapes[1].Selected = true

		w := doJSON(t, router, http.MethodPost, "/v1/stencil/fiducials", FiducialsRequest{Data: ds})

		require.Equal(t, http.StatusOK, w.Code)
		var resp FiducialsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.Fiducials, 1)
		assert.Equal(t, "pad-1-fid", resp.Fiducials[0].ID)
		assert.True(t, resp.Fiducials[0].IsFiducial)
		assert.Len(t, resp.Data.Shapes, 4)
		assert.True(t, resp.Data.Shapes[1].Deleted)
	})

	t.Run("nothing selected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/fiducials", FiducialsRequest{Data: testDataset()})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"fiducials":[]`)
		assert.Contains(t, w.Body.String(), `"count":0`)
	})
}

func TestHandleExport(t *testing.T) {
	router := setupTestRouter(t)

	t.Run("gerber", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/export", ExportRequest{Data: testDataset()})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="stencil.gbr"`, w.Header().Get("Content-Disposition"))
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
		want := strings.Join([]string{
			"G04 Stentelligence Modified*",
			"%FSLAX36Y36*%",
			"%MOIN*%",
			"%LPD*%",
			"%ADD10R,0.040000X0.030000*%",
			"%ADD11C,0.020000*%",
			"D10*",
			"X1000000Y1000000D03*",
			"X3000000Y1000000D03*",
			"D11*",
			"X2000000Y1000000D03*",
			"M02*",
		}, "\n") + "\n"
		assert.Equal(t, want, w.Body.String())
	})

	t.Run("machine engrave", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/export",
			ExportRequest{Data: testDataset(), Format: FormatMachine, Job: "engrave"})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="stencil.5"`, w.Header().Get("Content-Disposition"))
		assert.True(t, strings.HasPrefix(w.Body.String(), "G04 STENCIL_ENGRAVE.5*"))
	})

	t.Run("machine defaults to cut", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/export",
			ExportRequest{Data: testDataset(), Format: FormatMachine})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="stencil.1"`, w.Header().Get("Content-Disposition"))
	})

	t.Run("unknown format", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/export",
			ExportRequest{Data: testDataset(), Format: "dxf"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "UNKNOWN_FORMAT", decodeError(t, w).Code)
	})

	t.Run("unknown job", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/export",
			ExportRequest{Data: testDataset(), Format: FormatMachine, Job: "weld"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "UNKNOWN_JOB", decodeError(t, w).Code)
	})
}

func TestHandleAnalyze(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/stencil/analyze", AnalyzeRequest{Data: testDataset()})

	require.Equal(t, http.StatusOK, w.Code)
	var report dfm.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Summary.PadCount)
	assert.Nil(t, report.ComponentInfo)
}

func TestHandleInterpret(t *testing.T) {
	router := setupTestRouter(t)

	t.Run("local without a client", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/interpret",
			InterpretRequest{Prompt: "reduce all pads by 15%"})

		require.Equal(t, http.StatusOK, w.Code)
		var res interpret.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Equal(t, interpret.SourceLocal, res.Source)
		assert.Equal(t, modify.ActionReduce, res.Command.Action)
		assert.InDelta(t, 15, res.Command.Value, 1e-9)
		assert.Equal(t, "%", res.Command.Unit)
	})

	t.Run("missing prompt", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/stencil/interpret", `{"prompt":""}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
	})
}

func TestHandleDefaults(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/stencil/defaults", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var th classify.Thresholds
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &th))
	assert.Equal(t, classify.Default(), th)
}

func TestRouter_RequestID(t *testing.T) {
	router := setupTestRouter(t)

	t.Run("echoes the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/stencil/health", nil)
		req.Header.Set("X-Request-ID", "req-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	})

	t.Run("replaces a malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/stencil/health", nil)
		req.Header.Set("X-Request-ID", "bad id\" level=ERROR")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		got := w.Header().Get("X-Request-ID")
		assert.NotEmpty(t, got)
		assert.NotContains(t, got, " ")
	})

	t.Run("generates one when absent", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/stencil/health", nil)

		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})
}

func TestRouter_Preflight(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodOptions, "/v1/stencil/modify", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	router := NewRouter(NewHandlers(NewService(ServiceConfig{
		Metrics: metrics,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})), RouterConfig{Metrics: metrics, Gatherer: reg})

	doJSON(t, router, http.MethodGet, "/v1/stencil/health", nil)
	w := doJSON(t, router, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stentelligence_stencil_requests_total")
	assert.Contains(t, w.Body.String(), `endpoint="/v1/stencil/health"`)
}

func TestRouter_BodyLimit(t *testing.T) {
	svc := NewService(ServiceConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	router := NewRouter(NewHandlers(svc), RouterConfig{MaxBodyBytes: 64})

	w := doJSON(t, router, http.MethodPost, "/v1/stencil/parse",
		ParseRequest{Gerber: strings.Repeat("G04 padding*\n", 20)})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
}
