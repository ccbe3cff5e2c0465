// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "fmt"

// MinEditSize is the smallest size an edit may produce, in native units.
const MinEditSize = 0.001

// Editor stages changes to one shape and commits them together.
//
// # Description
//
// Editor replaces ad-hoc clone-and-patch updates. The first Commit on a
// shape records its ingested size in OriginalWidth/Height; later commits
// never overwrite those fields.
//
// # Examples
//
//	model.Edit(&ds.Shapes[i], ds.ToolFor(&ds.Shapes[i])).
//	    Resize(w*0.9, h*0.9).
//	    Tag("reduce").
//	    Commit()
type Editor struct {
	shape *Shape
	tool  *Tool

	w, h      float64
	resized   bool
	radius    float64
	hasRadius bool
	oblong    bool
	retire    bool
	panes     bool
	tag       string
}

// Edit starts an edit of s. tool may be nil.
func Edit(s *Shape, tool *Tool) *Editor {
	return &Editor{shape: s, tool: tool}
}

// Size returns the shape's current effective size.
func (e *Editor) Size() (w, h float64) {
	return e.shape.EffectiveSize(e.tool)
}

// Resize sets the new effective size, clamped to MinEditSize.
func (e *Editor) Resize(w, h float64) *Editor {
	e.w, e.h = max(w, MinEditSize), max(h, MinEditSize)
	e.resized = true
	return e
}

// Corner sets the corner radius.
func (e *Editor) Corner(r float64) *Editor {
	e.radius = max(r, 0)
	e.hasRadius = true
	return e
}

// Oblong flags the shape for oblong aperture output.
func (e *Editor) Oblong() *Editor {
	e.oblong = true
	return e
}

// Retire marks the shape deleted.
func (e *Editor) Retire() *Editor {
	e.retire = true
	return e
}

// ReplacedByPanes retires the shape as the parent of a pane set.
func (e *Editor) ReplacedByPanes() *Editor {
	e.retire = true
	e.panes = true
	return e
}

// Tag records which rule or action produced the state.
func (e *Editor) Tag(tag string) *Editor {
	e.tag = tag
	return e
}

// Commit writes the staged changes to the shape.
func (e *Editor) Commit() {
	s := e.shape
	if s.OriginalWidth <= 0 {
		s.OriginalWidth, s.OriginalHeight = s.EffectiveSize(e.tool)
	}
	if e.resized {
		s.ModifiedWidth, s.ModifiedHeight = e.w, e.h
	}
	if e.hasRadius {
		s.CornerRadius = e.radius
	}
	if e.oblong {
		s.ConvertToOblong = true
	}
	if e.retire {
		s.Deleted = true
	}
	if e.panes {
		s.ReplacedByPanes = true
	}
	s.Modified = true
	if e.tag != "" {
		s.EditType = e.tag
	}
}

// Reset clears every modification field, restoring the ingested state.
// A retired shape becomes live again.
func Reset(s *Shape) {
	s.OriginalWidth, s.OriginalHeight = 0, 0
	s.ModifiedWidth, s.ModifiedHeight = 0, 0
	s.CornerRadius = 0
	s.Modified = false
	s.EditType = ""
	s.Deleted = false
	s.ReplacedByPanes = false
	s.ConvertToOblong = false
}

// NewPane builds the i-th pane of parent with centre (x, y) and size w×h.
// The parent fields are copied values, not references.
func NewPane(parent *Shape, parentTool *Tool, i int, x, y, w, h float64, tag string) Shape {
	pw, ph := parent.IngestedSize(parentTool)
	return Shape{
		ID:                   fmt.Sprintf("%s-pane-%d", parent.ID, i),
		Kind:                 KindPane,
		X:                    x,
		Y:                    y,
		Width:                w,
		Height:               h,
		Modified:             true,
		EditType:             tag,
		ParentID:             parent.ID,
		ParentX:              parent.X,
		ParentY:              parent.Y,
		ParentOriginalWidth:  pw,
		ParentOriginalHeight: ph,
	}
}
