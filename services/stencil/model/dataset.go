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

import (
	"errors"
	"math"
)

// ErrEmptyDataset indicates a dataset with neither a tool table nor shapes.
var ErrEmptyDataset = errors.New("dataset has no tools and no shapes")

// ToolKind is the geometry class of an aperture.
type ToolKind string

const (
	ToolCircle  ToolKind = "circle"
	ToolRect    ToolKind = "rect"
	ToolObround ToolKind = "obround"
	ToolPolygon ToolKind = "polygon"
)

// Tool is an aperture definition. Immutable once ingested.
type Tool struct {
	ID       string   `json:"id,omitempty"`
	Kind     ToolKind `json:"type"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Vertices []Point  `json:"vertices,omitempty"`
	Centroid *Point   `json:"centroid,omitempty"`
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Dataset is the board-level unit of transfer between components.
type Dataset struct {
	Tools  map[string]Tool `json:"tools"`
	Shapes []Shape         `json:"shapes"`
	Bounds *Bounds         `json:"bounds,omitempty"`

	// Units is the declared unit, "in" or "mm". Empty when unknown.
	Units string `json:"units,omitempty"`
}

// NewDataset returns an empty dataset with an initialised tool table.
func NewDataset() *Dataset {
	return &Dataset{Tools: make(map[string]Tool)}
}

// Validate reports structural faults. Domain-level oddities such as
// zero-size shapes are tolerated and resolved through fallbacks.
func (d *Dataset) Validate() error {
	if d == nil || (len(d.Tools) == 0 && len(d.Shapes) == 0) {
		return ErrEmptyDataset
	}
	return nil
}

// ToolFor returns the tool referenced by s, or nil.
func (d *Dataset) ToolFor(s *Shape) *Tool {
	if s.Tool == "" || d.Tools == nil {
		return nil
	}
	t, ok := d.Tools[s.Tool]
	if !ok {
		return nil
	}
	return &t
}

// ToolKindFor returns the tool kind of s, defaulting to rect.
func (d *Dataset) ToolKindFor(s *Shape) ToolKind {
	if t := d.ToolFor(s); t != nil && t.Kind != "" {
		return t.Kind
	}
	return ToolRect
}

// Size is shorthand for s.EffectiveSize(d.ToolFor(s)).
func (d *Dataset) Size(s *Shape) (w, h float64) {
	return s.EffectiveSize(d.ToolFor(s))
}

// LiveCount returns the number of shapes not retired.
func (d *Dataset) LiveCount() int {
	n := 0
	for i := range d.Shapes {
		if d.Shapes[i].Live() {
			n++
		}
	}
	return n
}

// PanesOf returns the indices of live panes whose parent is parentID.
func (d *Dataset) PanesOf(parentID string) []int {
	var idx []int
	for i := range d.Shapes {
		s := &d.Shapes[i]
		if s.IsPane() && s.Live() && s.ParentID == parentID {
			idx = append(idx, i)
		}
	}
	return idx
}

// FiducialsOf returns the indexes of the live fiducial copies extracted
// from sourceID. Copies without provenance match on the "<id>-fid" name.
func (d *Dataset) FiducialsOf(sourceID string) []int {
	var idx []int
	for i := range d.Shapes {
		s := &d.Shapes[i]
		if !s.IsFiducial || !s.Live() {
			continue
		}
		if s.FiducialOf == sourceID || (s.FiducialOf == "" && s.ID == sourceID+"-fid") {
			idx = append(idx, i)
		}
	}
	return idx
}

// NextPaneIndex counts every pane ever cut from parentID, retired ones
// included, so a re-paned parent never reuses a pane id.
func (d *Dataset) NextPaneIndex(parentID string) int {
	n := 0
	for i := range d.Shapes {
		if d.Shapes[i].IsPane() && d.Shapes[i].ParentID == parentID {
			n++
		}
	}
	return n
}

// ComputeBounds derives a bounding box from shape extents.
//
// Returns {0,0,1,1} when no shape has a position.
func (d *Dataset) ComputeBounds() Bounds {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range d.Shapes {
		s := &d.Shapes[i]
		w, h := d.Size(s)
		minX = math.Min(minX, s.X-w/2)
		maxX = math.Max(maxX, s.X+w/2)
		minY = math.Min(minY, s.Y-h/2)
		maxY = math.Max(maxY, s.Y+h/2)
	}
	if math.IsInf(minX, 1) {
		return Bounds{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	}
	return Bounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}
