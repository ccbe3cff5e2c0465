// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model holds the in-memory stencil model: aperture tools, shapes
// and the board dataset that carries both together with its unit tag.
//
// # Description
//
// A Dataset is created by the ingest package, mutated in place by the
// modify and rules packages, and read by dfm and encode. It is request
// scoped: nothing in this package is shared between goroutines.
//
// # Absent values
//
// Numeric fields use zero to mean "absent", which matches the JSON wire
// contract (`omitempty`). Effective sizes are resolved with
// EffectiveSize, never by reading Width/Height directly.
//
// # Thread Safety
//
// Not safe for concurrent use. A Dataset must be owned by one goroutine.
package model

// FallbackSize is the geometry used when a record carries no usable size.
const FallbackSize = 0.01

// Kind identifies what a Shape represents.
type Kind string

const (
	// KindPad is a flashed aperture.
	KindPad Kind = "pad"

	// KindFill is a closed region with an explicit outline.
	KindFill Kind = "fill"

	// KindStroke is a drawn segment between two endpoints.
	KindStroke Kind = "stroke"

	// KindPane is a sub-opening produced by window-paning another shape.
	KindPane Kind = "pane"
)

// Point is a 2D coordinate in the dataset's native unit.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape is one opening on the stencil layer.
//
// # Description
//
// Pads reference a Tool; fills carry an ordered outline; strokes carry an
// endpoint pair; panes carry back-references to the shape they replaced.
// The edit-state fields are accumulated by the modification engines and
// are cleared only by a reset.
//
// # Invariants
//
//   - OriginalWidth/OriginalHeight are written once, by the first edit.
//   - Width/Height keep the ingested size; edits write ModifiedWidth/Height.
//   - A pane's Parent* fields are a lookup key, never used to mutate the parent.
//   - A fiducial copy and its retired source are never live together.
type Shape struct {
	ID     string  `json:"id"`
	Kind   Kind    `json:"type"`
	Tool   string  `json:"tool,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// Points is the outline of a fill, in drawing order.
	Points []Point `json:"points,omitempty"`

	// Start and End are the endpoints of a stroke.
	Start *Point `json:"start,omitempty"`
	End   *Point `json:"end,omitempty"`

	OriginalWidth   float64 `json:"originalWidth,omitempty"`
	OriginalHeight  float64 `json:"originalHeight,omitempty"`
	ModifiedWidth   float64 `json:"modifiedWidth,omitempty"`
	ModifiedHeight  float64 `json:"modifiedHeight,omitempty"`
	CornerRadius    float64 `json:"cornerRadius,omitempty"`
	Modified        bool    `json:"modified,omitempty"`
	EditType        string  `json:"editType,omitempty"`
	Selected        bool    `json:"selected,omitempty"`
	Deleted         bool    `json:"deleted,omitempty"`
	ReplacedByPanes bool    `json:"replacedByPanes,omitempty"`
	IsFiducial      bool    `json:"isFiducial,omitempty"`
	ConvertToOblong bool    `json:"convertToOblong,omitempty"`

	// FiducialOf is the id of the shape a fiducial copy was extracted from.
	FiducialOf string `json:"fiducialOf,omitempty"`

	ParentID             string  `json:"parentId,omitempty"`
	ParentX              float64 `json:"parentX,omitempty"`
	ParentY              float64 `json:"parentY,omitempty"`
	ParentOriginalWidth  float64 `json:"parentOriginalWidth,omitempty"`
	ParentOriginalHeight float64 `json:"parentOriginalHeight,omitempty"`
}

// Live reports whether the shape still takes part in output.
func (s *Shape) Live() bool {
	return !s.Deleted
}

// IsPane reports whether the shape was produced by window-paning.
func (s *Shape) IsPane() bool {
	return s.Kind == KindPane
}

// EffectiveSize resolves the size used for every computation.
//
// Width is ModifiedWidth, else Width, else the tool width, else
// FallbackSize. Height follows the same chain but falls back to the
// resolved width instead of FallbackSize, so circular and ambiguous tools
// are treated as square.
func (s *Shape) EffectiveSize(tool *Tool) (w, h float64) {
	w = firstPositive(s.ModifiedWidth, s.Width)
	h = firstPositive(s.ModifiedHeight, s.Height)
	if tool != nil {
		if w == 0 {
			w = tool.Width
		}
		if h == 0 {
			h = tool.Height
		}
	}
	if w <= 0 {
		w = FallbackSize
	}
	if h <= 0 {
		h = w
	}
	return w, h
}

// IngestedSize is the size before any edit, used by reset and by the
// pane back-references.
func (s *Shape) IngestedSize(tool *Tool) (w, h float64) {
	if s.OriginalWidth > 0 {
		h = s.OriginalHeight
		if h <= 0 {
			h = s.OriginalWidth
		}
		return s.OriginalWidth, h
	}
	probe := *s
	probe.ModifiedWidth, probe.ModifiedHeight = 0, 0
	return probe.EffectiveSize(tool)
}

func firstPositive(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
