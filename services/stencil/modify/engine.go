// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modify applies structured commands to a stencil dataset.
//
// # Description
//
// Engine.Apply walks the shape list once and rebuilds it: every shape is
// either transformed or passed through, so the output has the same length
// as the input except for window-paning, which appends one pane per tile
// after the retired source shape.
package modify

import (
	"log/slog"
	"math"

	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
	"github.com/AleutianAI/Stentelligence/services/stencil/geometry"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

// Edit tags written by the engine.
const (
	TagReduce       = "reduce"
	TagCornerRadius = "cornerRadius"
	TagWindowPane   = "windowPane"
	TagDelete       = "delete"
	TagModifyFids   = "modifyFids"
)

// Result summarises one Apply call.
type Result struct {
	// Changed counts the shapes the command actually touched.
	Changed int `json:"modified"`
	// Panes counts the pane shapes appended.
	Panes int `json:"panes"`
	// Total is the shape count after the command.
	Total int `json:"total"`
}

// Engine applies commands using one threshold table.
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

// Apply executes cmd against ds in place.
//
// # Description
//
// Shapes that are retired, or that fail the SelectedOnly and Target
// filters, pass through untouched. Panes are only edited when the command
// explicitly targets the selection, and are never paned again. An
// unrecognised action changes nothing and is not an error.
//
// # Outputs
//
//   - Result: Counts of changed shapes, appended panes and the new total.
//   - error: model.ErrEmptyDataset when ds has neither tools nor shapes.
//
// # Examples
//
//	res, err := engine.Apply(ds, modify.Command{
//	    Action: modify.ActionWindowPane,
//	    Target: modify.TargetThermal,
//	    WindowPane: &modify.WindowPane{Rows: 2, Cols: 2},
//	})
func (e *Engine) Apply(ds *model.Dataset, cmd Command) (Result, error) {
	if ds == nil {
		return Result{}, model.ErrEmptyDataset
	}
	if err := ds.Validate(); err != nil {
		return Result{}, err
	}
	run := &pass{
		ds:     ds,
		cmd:    cmd,
		cls:    classify.New(ds, e.th),
		logger: e.logger,
	}

	var res Result
	switch cmd.Action {
	case ActionReset:
		res = run.reset()
	case ActionModifyFids:
		res = run.modifyFids()
	case ActionReduce, ActionEnlarge, ActionScale, ActionCornerRadius, ActionWindowPane, ActionDelete:
		res = run.transform()
	default:
		e.logger.Warn("Unsupported modification action", "action", cmd.Action)
		res = Result{Total: len(ds.Shapes)}
	}

	e.logger.Info("Modification applied",
		"command", cmd.String(),
		"changed", res.Changed,
		"panes", res.Panes,
		"total", res.Total)
	return res, nil
}

// pass holds the state of one Apply call.
type pass struct {
	ds     *model.Dataset
	cmd    Command
	cls    *classify.Classifier
	logger *slog.Logger
}

func (p *pass) target() Target {
	if p.cmd.Target == "" {
		return TargetAll
	}
	return p.cmd.Target
}

// explicitSelection reports whether the command addresses the selection,
// the only way a pane can be edited.
func (p *pass) explicitSelection() bool {
	return p.cmd.SelectedOnly || p.target() == TargetSelected
}

// matches applies the SelectedOnly and Target filters, ignoring liveness.
func (p *pass) matches(s *model.Shape) bool {
	if p.cmd.SelectedOnly && !s.Selected {
		return false
	}
	if s.IsPane() && !p.explicitSelection() {
		return false
	}
	m := p.cls.Metrics(s)
	switch p.target() {
	case TargetAll:
		return true
	case TargetSelected:
		return s.Selected
	case TargetThermal:
		return p.cls.IsThermal(m)
	case TargetFinePitch:
		return p.cls.Categorize(m) == classify.FinePitch
	case TargetCircles:
		return m.Kind == model.ToolCircle
	case TargetRectangles:
		return m.Kind == model.ToolRect
	}
	return false
}

func (p *pass) transform() Result {
	out := make([]model.Shape, 0, len(p.ds.Shapes))
	var res Result
	for i := range p.ds.Shapes {
		s := p.ds.Shapes[i]
		if !s.Live() || !p.matches(&s) {
			out = append(out, s)
			continue
		}
		tool := p.ds.ToolFor(&s)
		switch p.cmd.Action {
		case ActionReduce, ActionEnlarge, ActionScale:
			p.resize(&s, tool)
			res.Changed++
		case ActionCornerRadius:
			p.cornerRadius(&s, tool)
			res.Changed++
		case ActionDelete:
			model.Edit(&s, tool).Retire().Tag(TagDelete).Commit()
			res.Changed++
		case ActionWindowPane:
			panes := p.windowPane(&s, tool)
			out = append(out, s)
			out = append(out, panes...)
			if len(panes) > 0 {
				res.Changed++
				res.Panes += len(panes)
			}
			continue
		}
		out = append(out, s)
	}
	p.ds.Shapes = out
	res.Total = len(out)
	return res
}

// resize handles reduce, enlarge and scale. Percentages are multiplicative;
// absolute values are a per-side delta.
func (p *pass) resize(s *model.Shape, tool *model.Tool) {
	ed := model.Edit(s, tool)
	w, h := ed.Size()
	sign := 1.0
	if p.cmd.Action != ActionReduce {
		sign = -1
	}
	switch p.cmd.Unit {
	case UnitMM, UnitMil, UnitInch:
		d := model.ToNative(p.ds, p.cmd.Value, p.cmd.Unit) * sign
		ed.Resize(w-2*d, h-2*d)
	default:
		f := 1 - sign*p.cmd.Value/100
		ed.Resize(w*f, h*f)
	}
	ed.Tag(TagReduce).Commit()
}

func (p *pass) cornerRadius(s *model.Shape, tool *model.Tool) {
	ed := model.Edit(s, tool)
	w, h := ed.Size()
	minDim := math.Min(w, h)
	var r float64
	if p.cmd.Unit == UnitPercent {
		r = p.cmd.Value / 100 * minDim
	} else {
		r = model.ToNative(p.ds, p.cmd.Value, p.cmd.Unit)
	}
	ed.Corner(math.Min(r, minDim/2)).Tag(TagCornerRadius).Commit()
}

// windowPane tiles s. On success s is retired and the panes are returned;
// otherwise s is left exactly as it was.
func (p *pass) windowPane(s *model.Shape, tool *model.Tool) []model.Shape {
	if s.IsPane() {
		return nil
	}
	wp := WindowPane{}
	if p.cmd.WindowPane != nil {
		wp = *p.cmd.WindowPane
	}
	native := p.cls.Native()
	grid := geometry.Grid{
		Rows:    orDefault(wp.Rows, 2),
		Cols:    orDefault(wp.Cols, 2),
		Web:     native.PaneWeb,
		Edge:    native.PaneEdge,
		// panes narrower than a printable pad are not cut
		MinPane: native.MinPad,
	}
	if wp.WebWidth > 0 {
		grid.Web = model.ToNative(p.ds, wp.WebWidth, wp.Unit)
	}
	if wp.EdgeGap > 0 {
		grid.Edge = model.ToNative(p.ds, wp.EdgeGap, wp.Unit)
	}

	w, h := s.EffectiveSize(tool)
	if wp.Reduction > 0 {
		f := 1 - wp.Reduction/100
		w, h = w*f, h*f
	}
	tiles := geometry.Tile(geometry.Rect{CX: s.X, CY: s.Y, Width: w, Height: h}, grid)
	if len(tiles) == 0 {
		p.logger.Debug("Window pane not applicable", "shape", s.ID, "width", w, "height", h)
		return nil
	}

	model.Edit(s, tool).ReplacedByPanes().Tag(TagWindowPane).Commit()
	base := p.ds.NextPaneIndex(s.ID)
	panes := make([]model.Shape, len(tiles))
	for i, t := range tiles {
		panes[i] = model.NewPane(s, tool, base+i, t.CX, t.CY, t.Width, t.Height, TagWindowPane)
	}
	return panes
}

// reset restores matching shapes, retired ones included. Panes and
// fiducial copies of a restored shape are retired so the shape is the only
// live copy again. A retired fiducial copy is never brought back.
func (p *pass) reset() Result {
	var res Result
	for i := range p.ds.Shapes {
		s := &p.ds.Shapes[i]
		if s.IsPane() || (s.Deleted && s.FiducialOf != "") || !p.matches(s) {
			continue
		}
		if !s.Modified && !s.Deleted && s.OriginalWidth == 0 {
			continue
		}
		if s.ReplacedByPanes {
			for _, j := range p.ds.PanesOf(s.ID) {
				p.ds.Shapes[j].Deleted = true
			}
		}
		if s.Deleted {
			for _, j := range p.ds.FiducialsOf(s.ID) {
				p.ds.Shapes[j].Deleted = true
				p.ds.Shapes[j].FiducialOf = s.ID
			}
		}
		model.Reset(s)
		res.Changed++
	}
	res.Total = len(p.ds.Shapes)
	return res
}

// modifyFids resizes every live fiducial to FidSize, round.
func (p *pass) modifyFids() Result {
	res := Result{Total: len(p.ds.Shapes)}
	if p.cmd.FidSize <= 0 {
		return res
	}
	unit := p.cmd.FidUnit
	if unit == "" {
		unit = UnitMil
	}
	d := model.ToNative(p.ds, p.cmd.FidSize, unit)
	for i := range p.ds.Shapes {
		s := &p.ds.Shapes[i]
		if !s.Live() || !s.IsFiducial || (p.cmd.SelectedOnly && !s.Selected) {
			continue
		}
		model.Edit(s, p.ds.ToolFor(s)).Resize(d, d).Corner(0).Tag(TagModifyFids).Commit()
		res.Changed++
	}
	return res
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
