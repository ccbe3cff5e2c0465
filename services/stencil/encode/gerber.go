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
	"strings"

	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

// GerberHeader is the comment line that opens every standard export.
const GerberHeader = "G04 Stentelligence Modified*"

// Gerber encodes the live shapes of ds as RS-274X in inches.
//
// # Description
//
// Output order is: header, aperture table, flashes grouped by aperture,
// strokes, then regions (panes grouped by parent, followed by fills).
// Coordinates are inches scaled by 10^6; aperture sizes have six decimals.
//
// # Outputs
//
//   - string: The Gerber document, newline separated.
//   - error: model.ErrEmptyDataset for a structurally empty dataset.
func (e *Encoder) Gerber(ds *model.Dataset) (string, error) {
	if err := checkDataset(ds); err != nil {
		return "", err
	}
	d := standardDialect
	cls := classify.New(ds, e.th)
	p := newPlan(d.precision)

	type stroke struct {
		shape *model.Shape
		code  int
	}
	var strokes []stroke
	var panes, fills []*model.Shape
	paneGroups := make(map[string][]*model.Shape)
	var parents []string

	for i := range ds.Shapes {
		s := &ds.Shapes[i]
		if !s.Live() {
			continue
		}
		switch {
		case s.IsPane():
			if _, ok := paneGroups[s.ParentID]; !ok {
				parents = append(parents, s.ParentID)
			}
			paneGroups[s.ParentID] = append(paneGroups[s.ParentID], s)
		case s.Kind == model.KindFill:
			if len(s.Points) >= 3 {
				fills = append(fills, s)
			}
		case s.Kind == model.KindStroke:
			if s.Start == nil || s.End == nil {
				continue
			}
			w := model.FallbackSize
			if t := ds.ToolFor(s); t != nil && t.Width > 0 {
				w = t.Width
			}
			strokes = append(strokes, stroke{shape: s, code: p.apertures.code(ApertureCircle, model.ToInches(ds, w), 0)})
		default:
			kind, w, h := e.aperture(ds, cls, s)
			p.add(s, kind, model.ToInches(ds, w), model.ToInches(ds, h))
		}
	}
	for _, id := range parents {
		panes = append(panes, paneGroups[id]...)
	}

	var b strings.Builder
	line(&b, GerberHeader)
	line(&b, "%FSLAX36Y36*%")
	line(&b, "%MOIN*%")
	line(&b, "%LPD*%")
	p.apertures.define(&b)

	active := 0
	for _, code := range p.order {
		fmt.Fprintf(&b, "D%d*\n", code)
		active = code
		for _, f := range p.groups[code] {
			line(&b, d.xy(ds, f.shape.X, f.shape.Y)+"D03*")
		}
	}

	if len(strokes) > 0 || len(panes) > 0 || len(fills) > 0 {
		line(&b, "G01*")
	}
	for _, st := range strokes {
		if st.code != active {
			fmt.Fprintf(&b, "D%d*\n", st.code)
			active = st.code
		}
		line(&b, d.xy(ds, st.shape.Start.X, st.shape.Start.Y)+"D02*")
		line(&b, d.xy(ds, st.shape.End.X, st.shape.End.Y)+"D01*")
	}
	for _, s := range panes {
		w, h := ds.Size(s)
		x0, y0 := s.X-w/2, s.Y-h/2
		x1, y1 := s.X+w/2, s.Y+h/2
		region(&b, d, ds, []model.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}})
	}
	for _, s := range fills {
		region(&b, d, ds, s.Points)
	}

	line(&b, "M02*")
	return b.String(), nil
}

// region writes a closed G36/G37 contour through pts.
func region(b *strings.Builder, d dialect, ds *model.Dataset, pts []model.Point) {
	line(b, "G36*")
	line(b, d.xy(ds, pts[0].X, pts[0].Y)+"D02*")
	for _, pt := range pts[1:] {
		line(b, d.xy(ds, pt.X, pt.Y)+"D01*")
	}
	line(b, d.xy(ds, pts[0].X, pts[0].Y)+"D01*")
	line(b, "G37*")
}
