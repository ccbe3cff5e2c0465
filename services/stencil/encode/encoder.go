// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package encode

import (
	"fmt"
	"math"
	"strings"

	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

// Encoder serialises datasets. The thresholds decide the fine-pitch test
// and the oblong width floor.
type Encoder struct {
	th classify.Thresholds
}

// NewEncoder returns an Encoder using th.
func NewEncoder(th classify.Thresholds) *Encoder {
	return &Encoder{th: th}
}

// dialect describes one output flavour.
type dialect struct {
	precision int
	scale     float64
	convert   func(ds *model.Dataset, v float64) float64
}

var (
	standardDialect = dialect{precision: 6, scale: 1e6, convert: model.ToInches}
	machineDialect  = dialect{precision: 5, scale: 1e3, convert: model.ToMM}
)

// coord quantises a native coordinate.
func (d dialect) coord(ds *model.Dataset, v float64) int64 {
	return int64(math.Round(d.convert(ds, v) * d.scale))
}

func (d dialect) xy(ds *model.Dataset, x, y float64) string {
	return fmt.Sprintf("X%dY%d", d.coord(ds, x), d.coord(ds, y))
}

// flash is one shape bound to an aperture.
type flash struct {
	shape *model.Shape
	code  int
}

// plan groups flashes by aperture in first-seen order.
type plan struct {
	apertures *table
	order     []int
	groups    map[int][]flash
}

func newPlan(precision int) *plan {
	return &plan{apertures: newTable(precision), groups: make(map[int][]flash)}
}

func (p *plan) add(s *model.Shape, kind ApertureKind, w, h float64) int {
	code := p.apertures.code(kind, w, h)
	if _, ok := p.groups[code]; !ok {
		p.order = append(p.order, code)
	}
	p.groups[code] = append(p.groups[code], flash{shape: s, code: code})
	return code
}

// aperture resolves the final aperture of a flashed shape in native units.
//
// Fiducials are circles. Panes are rectangles. Shapes flagged for oblong
// output, or passing the fine-pitch test, are oblong with the narrow side
// floored at the fine-pitch minimum. Circular tools stay circles; the rest
// are rectangles.
func (e *Encoder) aperture(ds *model.Dataset, cls *classify.Classifier, s *model.Shape) (ApertureKind, float64, float64) {
	w, h := ds.Size(s)
	switch {
	case s.IsFiducial:
		return ApertureCircle, w, w
	case s.IsPane():
		return ApertureRect, w, h
	}
	m := cls.Metrics(s)
	if s.ConvertToOblong || cls.IsFinePitch(m) {
		floor := cls.Native().FinePitchMinWidth
		if w <= h {
			w = math.Max(w, floor)
		} else {
			h = math.Max(h, floor)
		}
		return ApertureOblong, w, h
	}
	if m.Kind == model.ToolCircle {
		return ApertureCircle, w, w
	}
	return ApertureRect, w, h
}

func checkDataset(ds *model.Dataset) error {
	if ds == nil {
		return model.ErrEmptyDataset
	}
	return ds.Validate()
}

func line(b *strings.Builder, s string) {
	b.WriteString(s)
	b.WriteByte('\n')
}
