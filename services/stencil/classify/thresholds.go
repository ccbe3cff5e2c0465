// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

var thresholdsValidate = validator.New()

// Thresholds is the professional CAM ruleset, authored in mils.
//
// # Description
//
// Values are converted to the dataset's native unit by Scaled before any
// comparison. A Thresholds value is passed explicitly to the classifier
// and the rule engines so that a request or a board can carry its own
// overrides without shared state.
type Thresholds struct {
	// MinPadMil is the printability floor; narrower pads are left alone.
	MinPadMil float64 `json:"minPadMil" yaml:"min_pad_mil" validate:"gt=0"`

	// FinePitchAspect is the minimum long/short ratio of a fine-pitch lead.
	FinePitchAspect float64 `json:"finePitchAspect" yaml:"fine_pitch_aspect" validate:"gt=1"`

	// FinePitchMaxWidthMil is the widest short side still called fine-pitch.
	FinePitchMaxWidthMil float64 `json:"finePitchMaxWidthMil" yaml:"fine_pitch_max_width_mil" validate:"gtfield=MinPadMil"`

	// FinePitchMinWidthMil is the narrow-side floor after fine-pitch reduction.
	FinePitchMinWidthMil float64 `json:"finePitchMinWidthMil" yaml:"fine_pitch_min_width_mil" validate:"gt=0"`

	// PaneAreaSqMil is the area above which a pad is window-paned.
	PaneAreaSqMil float64 `json:"paneAreaSqMil" yaml:"pane_area_sq_mil" validate:"gtfield=ThermalAreaSqMil"`

	// ThermalAreaSqMil is the area above which a pad is thermal.
	ThermalAreaSqMil float64 `json:"thermalAreaSqMil" yaml:"thermal_area_sq_mil" validate:"gt=0"`

	// ThermalDimMil is the long side above which a pad is thermal.
	ThermalDimMil float64 `json:"thermalDimMil" yaml:"thermal_dim_mil" validate:"gt=0"`

	// StandardReductionMil is removed from each side of standard pads.
	StandardReductionMil float64 `json:"standardReductionMil" yaml:"standard_reduction_mil" validate:"gte=0"`

	// ThermalReductionMil is removed from each side of thermal pads.
	ThermalReductionMil float64 `json:"thermalReductionMil" yaml:"thermal_reduction_mil" validate:"gte=0"`

	// CornerRadiusMil is the default corner radius applied by the ruleset.
	CornerRadiusMil float64 `json:"cornerRadiusMil" yaml:"corner_radius_mil" validate:"gte=0"`

	// PaneWebMil is the wall left between window panes.
	PaneWebMil float64 `json:"paneWebMil" yaml:"pane_web_mil" validate:"gte=0"`

	// PaneEdgeMil is the clearance between window panes and the pad edge.
	PaneEdgeMil float64 `json:"paneEdgeMil" yaml:"pane_edge_mil" validate:"gte=0"`

	// DatasheetToleranceMil is the allowed aperture deviation from a datasheet.
	DatasheetToleranceMil float64 `json:"datasheetToleranceMil" yaml:"datasheet_tolerance_mil" validate:"gte=0"`
}

// Default returns the canonical ruleset.
func Default() Thresholds {
	return Thresholds{
		MinPadMil:             8,
		FinePitchAspect:       2.5,
		FinePitchMaxWidthMil:  15,
		FinePitchMinWidthMil:  9,
		PaneAreaSqMil:         15000,
		ThermalAreaSqMil:      10000,
		ThermalDimMil:         100,
		StandardReductionMil:  1,
		ThermalReductionMil:   2,
		CornerRadiusMil:       2,
		PaneWebMil:            16,
		PaneEdgeMil:           6,
		DatasheetToleranceMil: 2,
	}
}

// Validate checks the ranges and orderings declared on the fields.
func (t Thresholds) Validate() error {
	if err := thresholdsValidate.Struct(t); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	return nil
}

// Native is a Thresholds table converted to one dataset's unit.
type Native struct {
	MinPad            float64
	FinePitchAspect   float64
	FinePitchMaxWidth float64
	FinePitchMinWidth float64
	PaneArea          float64
	ThermalArea       float64
	ThermalDim        float64
	StandardReduction float64
	ThermalReduction  float64
	CornerRadius      float64
	PaneWeb           float64
	PaneEdge          float64
	DatasheetTol      float64
}

// Scaled converts t into ds's native unit. Linear values scale by
// model.Scale/1000 and areas by its square.
func (t Thresholds) Scaled(ds *model.Dataset) Native {
	lin := model.Scale(ds) / 1000
	area := lin * lin
	return Native{
		MinPad:            t.MinPadMil * lin,
		FinePitchAspect:   t.FinePitchAspect,
		FinePitchMaxWidth: t.FinePitchMaxWidthMil * lin,
		FinePitchMinWidth: t.FinePitchMinWidthMil * lin,
		PaneArea:          t.PaneAreaSqMil * area,
		ThermalArea:       t.ThermalAreaSqMil * area,
		ThermalDim:        t.ThermalDimMil * lin,
		StandardReduction: t.StandardReductionMil * lin,
		ThermalReduction:  t.ThermalReductionMil * lin,
		CornerRadius:      t.CornerRadiusMil * lin,
		PaneWeb:           t.PaneWebMil * lin,
		PaneEdge:          t.PaneEdgeMil * lin,
		DatasheetTol:      t.DatasheetToleranceMil * lin,
	}
}
