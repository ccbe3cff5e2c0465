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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/Stentelligence/services/stencil/observability"
)

// RegisterRoutes registers the stencil endpoints on rg.
//
// Endpoints:
//
//	POST /v1/stencil/parse        - Ingest Gerber text
//	POST /v1/stencil/modify       - Apply one modification command
//	POST /v1/stencil/instant-edit - Apply the one-click ruleset
//	POST /v1/stencil/fiducials    - Turn selected shapes into fiducials
//	POST /v1/stencil/export       - Encode as Gerber or machine format
//	POST /v1/stencil/analyze      - DFM review
//	POST /v1/stencil/interpret    - Prompt to command
//
//	GET  /v1/stencil/defaults     - Active thresholds
//	GET  /v1/stencil/health       - Health check
//
// Example:
//
//	handlers := stencil.NewHandlers(stencil.NewService(cfg))
//	v1 := router.Group("/v1")
//	stencil.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	st := rg.Group("/stencil")
	{
		st.POST("/parse", handlers.HandleParse)
		st.POST("/modify", handlers.HandleModify)
		st.POST("/instant-edit", handlers.HandleInstantEdit)
		st.POST("/fiducials", handlers.HandleFiducials)
		st.POST("/export", handlers.HandleExport)
		st.POST("/analyze", handlers.HandleAnalyze)
		st.POST("/interpret", handlers.HandleInterpret)

		st.GET("/defaults", handlers.HandleDefaults)
		st.GET("/health", handlers.HandleHealth)
	}
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// ServiceName names the otelgin spans.
	ServiceName string

	// MaxBodyBytes caps request bodies. Zero means unlimited.
	MaxBodyBytes int64

	// Metrics records per-endpoint counters. May be nil.
	Metrics *observability.Metrics

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(handlers *Handlers, cfg RouterConfig) *gin.Engine {
	name := cfg.ServiceName
	if name == "" {
		name = "stencil-service"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(name))
	router.Use(corsMiddleware())
	router.Use(metricsMiddleware(cfg.Metrics))
	if cfg.MaxBodyBytes > 0 {
		router.Use(bodyLimitMiddleware(cfg.MaxBodyBytes))
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	RegisterRoutes(router.Group("/v1"), handlers)
	return router
}

// corsMiddleware allows browser front-ends on any origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func metricsMiddleware(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RecordRequest(endpoint, c.Writer.Status(), time.Since(start))
	}
}

func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
