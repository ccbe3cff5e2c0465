// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dfm performs a read-only design-for-manufacturing review of a
// stencil dataset.
//
// # Description
//
// Analyze evaluates each rule independently; several rules may fire for
// the same board. Every issue carries a modify.Command that can be sent to
// the modification engine as-is. The dataset is never mutated.
package dfm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/AleutianAI/Stentelligence/services/stencil/classify"
	"github.com/AleutianAI/Stentelligence/services/stencil/model"
	"github.com/AleutianAI/Stentelligence/services/stencil/modify"
)

// Severity grades an issue.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// lowAspect is the average aspect below which a board counts as mostly
// square pads, where rounded corners improve release.
const lowAspect = 1.5

// finePitchMM is the datasheet pitch at or below which leads need
// fine-pitch apertures.
const finePitchMM = 0.65

// Issue is one finding.
type Issue struct {
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Action      modify.Command `json:"action"`
	Count       int            `json:"count"`
}

// Datasheet is the optional component data a board is checked against.
// Sizes are millimetres.
type Datasheet struct {
	Component        string  `json:"component,omitempty"`
	Package          string  `json:"package,omitempty"`
	PitchMM          float64 `json:"pitchMm,omitempty" binding:"gte=0"`
	ApertureWidthMM  float64 `json:"apertureWidthMm,omitempty" binding:"gte=0"`
	ApertureHeightMM float64 `json:"apertureHeightMm,omitempty" binding:"gte=0"`
}

// Summary holds board-level statistics over live pads and panes.
// Linear values are native units.
type Summary struct {
	ShapeCount    int                       `json:"shapeCount"`
	PadCount      int                       `json:"padCount"`
	MinWidth      float64                   `json:"minWidth"`
	MaxWidth      float64                   `json:"maxWidth"`
	AvgAspect     float64                   `json:"avgAspect"`
	TotalArea     float64                   `json:"totalArea"`
	TypeHistogram map[classify.Category]int `json:"typeHistogram"`
	Units         string                    `json:"units"`
}

// Report is the analyzer output.
type Report struct {
	Issues        []Issue    `json:"issues"`
	Summary       Summary    `json:"summary"`
	ComponentInfo *Datasheet `json:"componentInfo,omitempty"`
}

// padStats is the per-pad view the rules run on.
type padStats struct {
	shape   *model.Shape
	metrics classify.Metrics
}

// Analyze reviews ds against th and, when sheet is non-nil, the datasheet.
//
// # Outputs
//
//   - Report: Issues in rule order, summary statistics and the datasheet echo.
//   - error: model.ErrEmptyDataset for a structurally empty dataset.
func Analyze(ds *model.Dataset, th classify.Thresholds, sheet *Datasheet) (Report, error) {
	if ds == nil {
		return Report{}, model.ErrEmptyDataset
	}
	if err := ds.Validate(); err != nil {
		return Report{}, err
	}
	cls := classify.New(ds, th)
	n := cls.Native()

	var pads []padStats
	var widths, aspects, areas []float64
	hist := make(map[classify.Category]int)
	for i := range ds.Shapes {
		s := &ds.Shapes[i]
		if !s.Live() || (s.Kind != model.KindPad && !s.IsPane()) {
			continue
		}
		m := cls.Metrics(s)
		hist[cls.Categorize(m)]++
		widths = append(widths, m.MinDim)
		aspects = append(aspects, m.Aspect)
		areas = append(areas, m.Area)
		if s.Kind == model.KindPad && !s.IsFiducial {
			pads = append(pads, padStats{shape: s, metrics: m})
		}
	}

	rep := Report{
		Summary: Summary{
			ShapeCount:    len(widths),
			PadCount:      len(pads),
			TypeHistogram: hist,
			Units:         unitName(ds),
		},
		ComponentInfo: sheet,
	}
	if len(widths) > 0 {
		rep.Summary.MinWidth = floats.Min(widths)
		rep.Summary.MaxWidth = floats.Max(widths)
		rep.Summary.AvgAspect = stat.Mean(aspects, nil)
		rep.Summary.TotalArea = floats.Sum(areas)
	}

	r := rules{ds: ds, n: n, cls: cls, pads: pads, summary: rep.Summary}
	for _, rule := range []func() *Issue{
		r.tooSmall,
		r.highAspect,
		r.oversized,
		r.squareCorners,
		r.unmodified,
	} {
		if issue := rule(); issue != nil {
			rep.Issues = append(rep.Issues, *issue)
		}
	}
	if sheet != nil {
		rep.Issues = append(rep.Issues, r.datasheet(sheet)...)
	}
	return rep, nil
}

type rules struct {
	ds      *model.Dataset
	n       classify.Native
	cls     *classify.Classifier
	pads    []padStats
	summary Summary
}

func (r rules) count(pred func(padStats) bool) int {
	c := 0
	for _, p := range r.pads {
		if pred(p) {
			c++
		}
	}
	return c
}

func (r rules) mil(v float64) float64 {
	return model.NativeToMils(r.ds, v)
}

func (r rules) tooSmall() *Issue {
	c := r.count(func(p padStats) bool { return p.metrics.MinDim < r.n.MinPad })
	if c == 0 {
		return nil
	}
	return &Issue{
		Severity:    SeverityWarning,
		Title:       "Apertures below printable minimum",
		Description: fmt.Sprintf("%d pads are narrower than %.0f mil and will not release paste reliably.", c, r.mil(r.n.MinPad)),
		Action:      modify.Command{Action: modify.ActionEnlarge, Target: modify.TargetAll, Value: 1, Unit: modify.UnitMil},
		Count:       c,
	}
}

func (r rules) highAspect() *Issue {
	c := r.count(func(p padStats) bool { return p.metrics.Aspect >= r.n.FinePitchAspect })
	if c == 0 {
		return nil
	}
	return &Issue{
		Severity:    SeverityInfo,
		Title:       "High aspect ratio apertures",
		Description: fmt.Sprintf("%d pads have an aspect ratio of %.1f or more; fine-pitch reduction is recommended.", c, r.n.FinePitchAspect),
		Action:      modify.Command{Action: modify.ActionReduce, Target: modify.TargetFinePitch, Value: 1, Unit: modify.UnitMil},
		Count:       c,
	}
}

func (r rules) oversized() *Issue {
	c := r.count(func(p padStats) bool { return p.metrics.Area > r.n.PaneArea })
	if c == 0 {
		return nil
	}
	return &Issue{
		Severity:    SeverityWarning,
		Title:       "Large thermal apertures",
		Description: fmt.Sprintf("%d pads exceed %.0f sq mil; window-paning limits paste volume and voiding.", c, math.Pow(r.mil(math.Sqrt(r.n.PaneArea)), 2)),
		Action: modify.Command{
			Action:     modify.ActionWindowPane,
			Target:     modify.TargetThermal,
			WindowPane: &modify.WindowPane{Rows: 2, Cols: 2},
		},
		Count: c,
	}
}

func (r rules) squareCorners() *Issue {
	if r.summary.AvgAspect >= lowAspect {
		return nil
	}
	c := r.count(func(p padStats) bool { return p.shape.CornerRadius <= 0 })
	if c == 0 {
		return nil
	}
	return &Issue{
		Severity:    SeverityInfo,
		Title:       "Square corners on low aspect pads",
		Description: fmt.Sprintf("%d pads have sharp corners; a %.0f mil radius improves paste release.", c, r.mil(r.n.CornerRadius)),
		Action:      modify.Command{Action: modify.ActionCornerRadius, Target: modify.TargetAll, Value: r.mil(r.n.CornerRadius), Unit: modify.UnitMil},
		Count:       c,
	}
}

func (r rules) unmodified() *Issue {
	c := r.count(func(p padStats) bool { return !p.shape.Modified })
	if c == 0 {
		return nil
	}
	return &Issue{
		Severity:    SeverityInfo,
		Title:       "Unmodified apertures",
		Description: fmt.Sprintf("%d pads are still 1:1 with copper; a 10%% reduction is a common starting point.", c),
		Action:      modify.Command{Action: modify.ActionReduce, Target: modify.TargetAll, Value: 10, Unit: modify.UnitPercent},
		Count:       c,
	}
}

// datasheet compares pads with the recommended aperture and checks pitch.
// Dimensions are compared orientation-free, short side to short side.
func (r rules) datasheet(sheet *Datasheet) []Issue {
	var issues []Issue
	if sheet.ApertureWidthMM > 0 {
		rw := model.ToNative(r.ds, sheet.ApertureWidthMM, model.UnitMM)
		rh := rw
		if sheet.ApertureHeightMM > 0 {
			rh = model.ToNative(r.ds, sheet.ApertureHeightMM, model.UnitMM)
		}
		recShort, recLong := math.Min(rw, rh), math.Max(rw, rh)
		tol := r.n.DatasheetTol

		var deltas []float64
		for _, p := range r.pads {
			dShort := p.metrics.MinDim - recShort
			dLong := p.metrics.MaxDim - recLong
			if math.Abs(dShort) > tol || math.Abs(dLong) > tol {
				deltas = append(deltas, dShort)
			}
		}
		if len(deltas) > 0 {
			mean := stat.Mean(deltas, nil)
			action := modify.ActionReduce
			if mean < 0 {
				action = modify.ActionEnlarge
			}
			perSide := math.Round(math.Abs(r.mil(mean))/2*10) / 10
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Title:    "Apertures deviate from datasheet",
				Description: fmt.Sprintf("%d pads differ from the recommended %.3f x %.3f mm by more than %.0f mil.",
					len(deltas), sheet.ApertureWidthMM, firstPositive(sheet.ApertureHeightMM, sheet.ApertureWidthMM), r.mil(tol)),
				Action: modify.Command{Action: action, Target: modify.TargetAll, Value: perSide, Unit: modify.UnitMil},
				Count:  len(deltas),
			})
		}
	}
	if sheet.PitchMM > 0 && sheet.PitchMM <= finePitchMM {
		issues = append(issues, Issue{
			Severity:    SeverityInfo,
			Title:       "Fine pitch component",
			Description: fmt.Sprintf("%s pitch of %.2f mm calls for fine-pitch apertures.", componentName(sheet), sheet.PitchMM),
			Action:      modify.Command{Action: modify.ActionReduce, Target: modify.TargetFinePitch, Value: 1, Unit: modify.UnitMil},
			Count:       r.count(func(p padStats) bool { return r.cls.IsFinePitch(p.metrics) }),
		})
	}
	return issues
}

func componentName(sheet *Datasheet) string {
	switch {
	case sheet.Component != "":
		return sheet.Component
	case sheet.Package != "":
		return sheet.Package
	}
	return "Component"
}

func unitName(ds *model.Dataset) string {
	if model.IsInches(ds) {
		return model.UnitInch
	}
	return model.UnitMM
}

func firstPositive(a, b float64) float64 {
	if a > 0 {
		return a
	}
	return b
}
