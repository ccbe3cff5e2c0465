// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package geometry provides the pure rectangle maths used by window-paning.
package geometry

import "math"

// Rect is an axis-aligned rectangle described by its centre and size.
type Rect struct {
	CX     float64 `json:"x"`
	CY     float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MinX returns the left edge.
func (r Rect) MinX() float64 { return r.CX - r.Width/2 }

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.CX + r.Width/2 }

// MinY returns the bottom edge.
func (r Rect) MinY() float64 { return r.CY - r.Height/2 }

// MaxY returns the top edge.
func (r Rect) MaxY() float64 { return r.CY + r.Height/2 }

// Grid describes how a rectangle is subdivided.
type Grid struct {
	Rows int
	Cols int

	// Web is the wall width left between neighbouring panes.
	Web float64

	// Edge is the clearance between the outer panes and the source edge.
	Edge float64

	// MinPane is the smallest printable pane side. Zero selects 1% of the
	// source rectangle's smaller side.
	MinPane float64
}

// Tile subdivides src into Rows×Cols equal panes.
//
// # Description
//
// The inner area is src shrunk by Edge on every side; panes share it with
// Web-wide walls between them. Panes are returned in raster order: left
// to right within a row, rows in increasing Y.
//
// # Outputs
//
// An empty slice when the grid is degenerate or when either pane side
// would be at or below the minimum printable size. Callers must treat an
// empty result as "paning not applicable" and leave the source untouched.
func Tile(src Rect, g Grid) []Rect {
	if g.Rows < 1 || g.Cols < 1 || src.Width <= 0 || src.Height <= 0 {
		return nil
	}
	if g.Web < 0 || g.Edge < 0 {
		return nil
	}

	innerW := src.Width - 2*g.Edge
	innerH := src.Height - 2*g.Edge
	paneW := (innerW - float64(g.Cols-1)*g.Web) / float64(g.Cols)
	paneH := (innerH - float64(g.Rows-1)*g.Web) / float64(g.Rows)

	minPane := g.MinPane
	if minPane <= 0 {
		minPane = math.Min(src.Width, src.Height) * 0.01
	}
	if paneW <= minPane || paneH <= minPane {
		return nil
	}

	startX := src.CX - innerW/2 + paneW/2
	startY := src.CY - innerH/2 + paneH/2

	panes := make([]Rect, 0, g.Rows*g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			panes = append(panes, Rect{
				CX:     startX + float64(c)*(paneW+g.Web),
				CY:     startY + float64(r)*(paneH+g.Web),
				Width:  paneW,
				Height: paneH,
			})
		}
	}
	return panes
}

// GridForAspect picks the grid used for large thermal pads: near-square
// pads get 2×2, wide pads 2 rows × 3 columns, tall pads 3 rows × 2 columns.
func GridForAspect(w, h float64) (rows, cols int) {
	aspect := math.Max(w, h) / math.Min(w, h)
	switch {
	case aspect < 1.5:
		return 2, 2
	case w > h:
		return 2, 3
	default:
		return 3, 2
	}
}
