// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"fmt"
	"iter"
	"log/slog"
	"math"

	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

// dupTolerance is the distance below which consecutive fill points merge.
const dupTolerance = 0.0001

// Builder accumulates plotter events into a Dataset.
//
// # Thread Safety
//
// Not safe for concurrent use. One Builder per ingestion.
type Builder struct {
	ds      *model.Dataset
	nextID  int
	skipped int
	logger  *slog.Logger
}

// NewBuilder returns a Builder writing into a fresh dataset.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{ds: model.NewDataset(), logger: logger}
}

// Build consumes every event and returns the finished dataset.
func Build(events iter.Seq[Event], logger *slog.Logger) *model.Dataset {
	b := NewBuilder(logger)
	for ev := range events {
		b.Handle(ev)
	}
	return b.Finish()
}

// Handle processes one event. Unknown or incomplete events are skipped.
func (b *Builder) Handle(ev Event) {
	switch ev.Type {
	case EventShape:
		b.handleShape(ev)
	case EventPad:
		b.handlePad(ev)
	case EventFill:
		b.handleFill(ev)
	case EventStroke:
		b.handleStroke(ev)
	case EventSize:
		if ev.Box != nil {
			b.ds.Bounds = &model.Bounds{MinX: ev.Box[0], MinY: ev.Box[1], MaxX: ev.Box[2], MaxY: ev.Box[3]}
		}
	case EventUnits:
		b.ds.Units = ev.Units
	default:
		b.skipped++
	}
}

// Finish fills in the bounds when no size event arrived and returns the
// dataset. The Builder must not be used afterwards.
func (b *Builder) Finish() *model.Dataset {
	if b.ds.Bounds == nil {
		bounds := b.ds.ComputeBounds()
		b.ds.Bounds = &bounds
	}
	b.logger.Info("Gerber ingested",
		"shapes", len(b.ds.Shapes),
		"tools", len(b.ds.Tools),
		"units", b.ds.Units,
		"skipped_events", b.skipped)
	return b.ds
}

func (b *Builder) id(prefix string) string {
	id := fmt.Sprintf("%s-%d", prefix, b.nextID)
	b.nextID++
	return id
}

func (b *Builder) handleShape(ev Event) {
	if len(ev.Shape) == 0 {
		b.skipped++
		return
	}
	p := ev.Shape[0]
	tool := model.Tool{ID: ev.Tool, Kind: model.ToolKind(p.Type)}
	switch p.Type {
	case "circle":
		d := orFallback(p.R) * 2
		tool.Width, tool.Height = d, d
	case "poly":
		tool.Kind = model.ToolPolygon
		tool.Vertices, tool.Centroid = polygonOf(p.Points)
		tool.Width, tool.Height = extent(tool.Vertices)
	case "rect", "obround":
		tool.Width = orFallback(p.Width)
		tool.Height = orFallback(firstPositive(p.Height, p.Width))
	default:
		tool.Kind = model.ToolRect
		tool.Width = orFallback(p.Width)
		tool.Height = orFallback(firstPositive(p.Height, p.Width))
	}
	b.ds.Tools[ev.Tool] = tool
}

func (b *Builder) handlePad(ev Event) {
	tool, ok := b.ds.Tools[ev.Tool]
	if !ok {
		tool = model.Tool{Kind: model.ToolRect, Width: model.FallbackSize, Height: model.FallbackSize}
	}
	b.ds.Shapes = append(b.ds.Shapes, model.Shape{
		ID:     b.id("pad"),
		Kind:   model.KindPad,
		Tool:   ev.Tool,
		X:      deref(ev.X),
		Y:      deref(ev.Y),
		Width:  tool.Width,
		Height: tool.Height,
	})
}

func (b *Builder) handleFill(ev Event) {
	if len(ev.Path) == 0 {
		b.skipped++
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	var points []model.Point
	for _, seg := range ev.Path {
		if seg.Start == nil {
			continue
		}
		p := model.Point{X: seg.Start[0], Y: seg.Start[1]}
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		if n := len(points); n > 0 {
			prev := points[n-1]
			if math.Abs(p.X-prev.X) <= dupTolerance && math.Abs(p.Y-prev.Y) <= dupTolerance {
				continue
			}
		}
		points = append(points, p)
	}
	if len(points) < 3 || math.IsInf(minX, 1) {
		b.skipped++
		return
	}
	b.ds.Shapes = append(b.ds.Shapes, model.Shape{
		ID:     b.id("fill"),
		Kind:   model.KindFill,
		X:      (minX + maxX) / 2,
		Y:      (minY + maxY) / 2,
		Width:  maxX - minX,
		Height: maxY - minY,
		Points: points,
	})
}

func (b *Builder) handleStroke(ev Event) {
	if ev.Start == nil || ev.End == nil {
		b.skipped++
		return
	}
	start := model.Point{X: ev.Start[0], Y: ev.Start[1]}
	end := model.Point{X: ev.End[0], Y: ev.End[1]}
	b.ds.Shapes = append(b.ds.Shapes, model.Shape{
		ID:    b.id("stroke"),
		Kind:  model.KindStroke,
		Tool:  ev.Tool,
		X:     (start.X + end.X) / 2,
		Y:     (start.Y + end.Y) / 2,
		Start: &start,
		End:   &end,
	})
}

// polygonOf converts raw vertices and computes their centroid.
func polygonOf(raw [][2]float64) ([]model.Point, *model.Point) {
	if len(raw) == 0 {
		return nil, nil
	}
	pts := make([]model.Point, len(raw))
	var cx, cy float64
	for i, r := range raw {
		pts[i] = model.Point{X: r[0], Y: r[1]}
		cx += r[0]
		cy += r[1]
	}
	n := float64(len(raw))
	return pts, &model.Point{X: cx / n, Y: cy / n}
}

func extent(pts []model.Point) (w, h float64) {
	if len(pts) == 0 {
		return model.FallbackSize, model.FallbackSize
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return orFallback(maxX - minX), orFallback(maxY - minY)
}

func orFallback(v float64) float64 {
	if v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return model.FallbackSize
}

func firstPositive(a, b float64) float64 {
	if a > 0 {
		return a
	}
	return b
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
