// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules applies the fixed one-click ruleset to a whole board.
package rules

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
	"github.com/AleutianAI/Stentelligence/services/stencil/geometry"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

// Report describes what an instant edit did. It is informational only.
type Report struct {
	Log     []string                  `json:"log"`
	Counts  map[classify.Category]int `json:"counts"`
	Panes   int                       `json:"panes"`
	Skipped int                       `json:"skipped"`
	Total   int                       `json:"total"`
}

var labels = map[classify.Category]string{
	classify.TooSmall:     "Below printable minimum, unchanged",
	classify.FinePitch:    "Fine pitch leads narrowed to oblong",
	classify.LargeThermal: "Large thermal pads window-paned",
	classify.Thermal:      "Thermal pads reduced with corner radius",
	classify.Circle:       "Circular pads reduced with corner radius",
	classify.Standard:     "Standard pads reduced with corner radius",
}

// Engine runs the instant ruleset.
//
// # Description
//
// Every live pad that is not a fiducial, a pane, or already modified is
// classified once and receives the treatment of its category. Shapes
// touched by a previous run carry Modified=true and are skipped, so a
// second run changes nothing.
//
// # Thread Safety
//
// Engine is immutable and safe for concurrent use on distinct datasets.
type Engine struct {
	th     classify.Thresholds
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil logger uses slog.Default.
func NewEngine(th classify.Thresholds, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{th: th, logger: logger}
}

// Apply runs the ruleset over ds in place.
func (e *Engine) Apply(ds *model.Dataset) (Report, error) {
	if ds == nil {
		return Report{}, model.ErrEmptyDataset
	}
	if err := ds.Validate(); err != nil {
		return Report{}, err
	}
	cls := classify.New(ds, e.th)
	n := cls.Native()
	rep := Report{Counts: make(map[classify.Category]int, len(classify.Order))}

	out := make([]model.Shape, 0, len(ds.Shapes))
	for i := range ds.Shapes {
		s := ds.Shapes[i]
		if !eligible(&s) {
			rep.Skipped++
			out = append(out, s)
			continue
		}
		tool := ds.ToolFor(&s)
		cat := cls.Classify(&s)

		switch cat {
		case classify.TooSmall:
		case classify.FinePitch:
			finePitch(&s, tool, n)
		case classify.LargeThermal:
			panes := largeThermal(&s, tool, n, ds.NextPaneIndex(s.ID))
			if len(panes) > 0 {
				rep.Counts[cat]++
				rep.Panes += len(panes)
				out = append(out, s)
				out = append(out, panes...)
				continue
			}
			cat = classify.Thermal
			reduceRounded(&s, tool, n.ThermalReduction, n.CornerRadius, cat)
		case classify.Thermal:
			reduceRounded(&s, tool, n.ThermalReduction, n.CornerRadius, cat)
		case classify.Circle, classify.Standard:
			reduceRounded(&s, tool, n.StandardReduction, n.CornerRadius, cat)
		}
		rep.Counts[cat]++
		out = append(out, s)
	}
	ds.Shapes = out
	rep.Total = len(out)

	for _, cat := range classify.Order {
		rep.Log = append(rep.Log, fmt.Sprintf("%s: %d", labels[cat], rep.Counts[cat]))
	}
	if rep.Panes > 0 {
		rep.Log = append(rep.Log, fmt.Sprintf("Window panes created: %d", rep.Panes))
	}

	e.logger.Info("Instant edit applied",
		"counts", rep.Counts,
		"panes", rep.Panes,
		"skipped", rep.Skipped,
		"total", rep.Total)
	return rep, nil
}

func eligible(s *model.Shape) bool {
	return s.Kind == model.KindPad && s.Live() && !s.IsFiducial && !s.Modified
}

// finePitch reduces both sides by the standard delta and floors the narrow
// side at FinePitchMinWidth. A lead already under the floor is raised to it.
func finePitch(s *model.Shape, tool *model.Tool, n classify.Native) {
	ed := model.Edit(s, tool)
	w, h := ed.Size()
	floor := n.FinePitchMinWidth
	nw, nh := w-2*n.StandardReduction, h-2*n.StandardReduction
	if w <= h {
		nw = math.Max(nw, floor)
	} else {
		nh = math.Max(nh, floor)
	}
	ed.Resize(nw, nh).Oblong().Tag(string(classify.FinePitch)).Commit()
}

// largeThermal shrinks the pad and tiles it on an aspect-chosen grid.
// It returns nil, leaving s untouched, when tiling is not applicable.
func largeThermal(s *model.Shape, tool *model.Tool, n classify.Native, base int) []model.Shape {
	w, h := s.EffectiveSize(tool)
	rw, rh := w-2*n.ThermalReduction, h-2*n.ThermalReduction
	rows, cols := geometry.GridForAspect(rw, rh)
	tiles := geometry.Tile(
		geometry.Rect{CX: s.X, CY: s.Y, Width: rw, Height: rh},
		// panes narrower than a printable pad are not cut
		geometry.Grid{Rows: rows, Cols: cols, Web: n.PaneWeb, Edge: n.PaneEdge, MinPane: n.MinPad},
	)
	if len(tiles) == 0 {
		return nil
	}
	tag := string(classify.LargeThermal)
	model.Edit(s, tool).ReplacedByPanes().Tag(tag).Commit()
	panes := make([]model.Shape, len(tiles))
	for i, t := range tiles {
		p := model.NewPane(s, tool, base+i, t.CX, t.CY, t.Width, t.Height, tag)
		p.CornerRadius = math.Min(n.CornerRadius, math.Min(t.Width, t.Height)/4)
		panes[i] = p
	}
	return panes
}

// reduceRounded applies a per-side delta and a corner radius capped at a
// quarter of the reduced smaller side.
func reduceRounded(s *model.Shape, tool *model.Tool, delta, radius float64, cat classify.Category) {
	ed := model.Edit(s, tool)
	w, h := ed.Size()
	nw, nh := max(w-2*delta, model.MinEditSize), max(h-2*delta, model.MinEditSize)
	ed.Resize(nw, nh).
		Corner(math.Min(radius, math.Min(nw, nh)/4)).
		Tag(string(cat)).
		Commit()
}
