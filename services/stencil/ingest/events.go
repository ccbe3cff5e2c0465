// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest turns a Gerber plot into a model.Dataset.
//
// # Description
//
// Ingestion happens in two stages. A Plotter reads RS-274X text and
// emits a flat, ordered stream of Events (aperture definitions, flashes,
// region fills, strokes and the board size). A Builder consumes that
// stream in a single pass and populates a Dataset. The Builder never
// fails on a malformed record: missing geometry degrades to
// model.FallbackSize so one corrupt record cannot sink the board.
//
// # Examples
//
//	ds, err := ingest.ParseGerber(strings.NewReader(text), logger)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(len(ds.Shapes), "shapes")
package ingest

// EventType identifies a plotter record.
type EventType string

const (
	// EventShape defines the geometry of a tool.
	EventShape EventType = "shape"

	// EventPad flashes the current tool at a point.
	EventPad EventType = "pad"

	// EventFill is a closed region.
	EventFill EventType = "fill"

	// EventStroke is a segment drawn with the current tool.
	EventStroke EventType = "stroke"

	// EventSize reports the plot's bounding box.
	EventSize EventType = "size"

	// EventUnits reports the declared unit ("in" or "mm").
	EventUnits EventType = "units"
)

// Primitive is one element of a tool's geometry.
type Primitive struct {
	Type   string       `json:"type"`
	R      float64      `json:"r,omitempty"`
	Width  float64      `json:"width,omitempty"`
	Height float64      `json:"height,omitempty"`
	Points [][2]float64 `json:"points,omitempty"`
}

// Segment is one edge of a fill outline.
type Segment struct {
	Type  string      `json:"type"`
	Start *[2]float64 `json:"start,omitempty"`
	End   *[2]float64 `json:"end,omitempty"`
}

// Event is one record of the plotter stream. Only the fields relevant to
// Type are populated, and any of them may be missing.
type Event struct {
	Type  EventType   `json:"type"`
	Tool  string      `json:"tool,omitempty"`
	Shape []Primitive `json:"shape,omitempty"`
	X     *float64    `json:"x,omitempty"`
	Y     *float64    `json:"y,omitempty"`
	Path  []Segment   `json:"path,omitempty"`
	Start *[2]float64 `json:"start,omitempty"`
	End   *[2]float64 `json:"end,omitempty"`
	Box   *[4]float64 `json:"box,omitempty"`
	Units string      `json:"units,omitempty"`
}
