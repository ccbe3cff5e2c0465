// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify assigns manufacturing categories to stencil shapes.
//
// # Description
//
// Every shape gets exactly one Category, evaluated in a fixed priority
// order (first match wins). The order never depends on the data: a shape
// that is both fine-pitch and thermal is always fine-pitch.
package classify

import (
	"math"

	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

// Category is a manufacturing class.
type Category string

const (
	TooSmall     Category = "tooSmall"
	FinePitch    Category = "finePitch"
	LargeThermal Category = "largeThermal"
	Thermal      Category = "thermal"
	Circle       Category = "circle"
	Standard     Category = "standard"
)

// Order is the fixed evaluation order.
var Order = []Category{TooSmall, FinePitch, LargeThermal, Thermal, Circle, Standard}

// Metrics are the geometric attributes a category is derived from.
type Metrics struct {
	Width  float64
	Height float64
	MinDim float64
	MaxDim float64
	Aspect float64
	Area   float64
	Kind   model.ToolKind
}

// Measure computes the metrics of a w×h shape drawn with a tool of kind.
func Measure(w, h float64, kind model.ToolKind) Metrics {
	m := Metrics{
		Width:  w,
		Height: h,
		MinDim: math.Min(w, h),
		MaxDim: math.Max(w, h),
		Area:   w * h,
		Kind:   kind,
	}
	if m.MinDim > 0 {
		m.Aspect = m.MaxDim / m.MinDim
	} else {
		m.Aspect = math.Inf(1)
	}
	return m
}

// Classifier categorises shapes of one dataset.
type Classifier struct {
	ds *model.Dataset
	th Native
}

// New binds th to ds's unit.
func New(ds *model.Dataset, th Thresholds) *Classifier {
	return &Classifier{ds: ds, th: th.Scaled(ds)}
}

// Native returns the scaled thresholds in use.
func (c *Classifier) Native() Native {
	return c.th
}

// Metrics measures s at its current effective size.
func (c *Classifier) Metrics(s *model.Shape) Metrics {
	w, h := c.ds.Size(s)
	kind := c.ds.ToolKindFor(s)
	if s.IsPane() || s.Kind == model.KindFill {
		kind = model.ToolRect
	}
	return Measure(w, h, kind)
}

// Classify returns the category of s.
func (c *Classifier) Classify(s *model.Shape) Category {
	return c.Categorize(c.Metrics(s))
}

// Categorize applies the priority order to m.
func (c *Classifier) Categorize(m Metrics) Category {
	switch {
	case m.MinDim < c.th.MinPad:
		return TooSmall
	case c.IsFinePitch(m):
		return FinePitch
	case m.Area > c.th.PaneArea:
		return LargeThermal
	case m.Area > c.th.ThermalArea || m.MaxDim > c.th.ThermalDim:
		return Thermal
	case m.Kind == model.ToolCircle:
		return Circle
	default:
		return Standard
	}
}

// IsFinePitch is the geometric fine-pitch test, shared with the encoder.
func (c *Classifier) IsFinePitch(m Metrics) bool {
	return m.Kind != model.ToolCircle &&
		m.Aspect >= c.th.FinePitchAspect &&
		m.MinDim < c.th.FinePitchMaxWidth
}

// IsThermal reports whether m falls in either thermal category.
func (c *Classifier) IsThermal(m Metrics) bool {
	cat := c.Categorize(m)
	return cat == Thermal || cat == LargeThermal
}
