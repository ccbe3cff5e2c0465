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

// Job selects the laser operation.
type Job string

const (
	JobCut     Job = "cut"
	JobEngrave Job = "engrave"
)

// Suffix is the job-type suffix of the machine header.
func (j Job) Suffix() string {
	if j == JobEngrave {
		return ".5"
	}
	return ".1"
}

// Header is the opening comment line for the job.
func (j Job) Header() string {
	name := "STENCIL_CUT"
	if j == JobEngrave {
		name = "STENCIL_ENGRAVE"
	}
	return "G04 " + name + j.Suffix() + "*"
}

// Machine encodes ds in the laser-cutter dialect.
//
// # Description
//
// Coordinates are millimetres scaled by 10^3 whatever the source unit and
// aperture sizes have five decimals. Every flash is preceded by its
// G54Dnn tool select. Panes are flashed as rectangles. Fills and strokes
// are not cut and are left out.
//
// A cut job squares circular apertures; an engrave job keeps them round.
func (e *Encoder) Machine(ds *model.Dataset, job Job) (string, error) {
	if err := checkDataset(ds); err != nil {
		return "", err
	}
	d := machineDialect
	cls := classify.New(ds, e.th)
	p := newPlan(d.precision)

	for i := range ds.Shapes {
		s := &ds.Shapes[i]
		if !s.Live() || (s.Kind != model.KindPad && !s.IsPane()) {
			continue
		}
		// the dialect has no region blocks, so a pane is cut as a flashed
		// rectangle of its own size instead of the G36/G37 region the
		// Gerber encoder writes
		kind, w, h := e.aperture(ds, cls, s)
		if kind == ApertureCircle && job != JobEngrave {
			kind, h = ApertureRect, w
		}
		p.add(s, kind, model.ToMM(ds, w), model.ToMM(ds, h))
	}

	var b strings.Builder
	line(&b, job.Header())
	line(&b, "%FSLAX33Y33*%")
	line(&b, "%MOMM*%")
	p.apertures.define(&b)
	for _, code := range p.order {
		for _, f := range p.groups[code] {
			fmt.Fprintf(&b, "G54D%d*\n", code)
			fmt.Fprintf(&b, "G1%sD3*\n", d.xy(ds, f.shape.X, f.shape.Y))
		}
	}
	line(&b, "M02*")
	return b.String(), nil
}
