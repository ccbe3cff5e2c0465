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
	"testing"

	"github.com/AleutianAI/Stentelligence/services/stencil/model"
	"github.com/stretchr/testify/assert"
)

func inchDataset() *model.Dataset {
	return &model.Dataset{Units: model.UnitInch, Tools: map[string]model.Tool{}}
}

func TestClassifier_PriorityOrder(t *testing.T) {
	c := New(inchDataset(), Default())

	tests := []struct {
		name string
		w, h float64
		kind model.ToolKind
		want Category
	}{
		{"below printability floor", 0.007, 0.05, model.ToolRect, TooSmall},
		{"fine pitch lead", 0.012, 0.060, model.ToolRect, FinePitch},
		{"fine pitch beats thermal", 0.014, 0.200, model.ToolRect, FinePitch},
		{"large thermal", 0.150, 0.150, model.ToolRect, LargeThermal},
		{"thermal by area", 0.110, 0.100, model.ToolRect, Thermal},
		{"thermal by long side", 0.101, 0.030, model.ToolRect, Thermal},
		{"circle", 0.030, 0.030, model.ToolCircle, Circle},
		{"narrow circle is not fine pitch", 0.012, 0.060, model.ToolCircle, Circle},
		{"standard", 0.040, 0.030, model.ToolRect, Standard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Categorize(Measure(tt.w, tt.h, tt.kind)))
		})
	}
}

func TestClassifier_MillimetreDatasetUsesScaledThresholds(t *testing.T) {
	ds := &model.Dataset{Units: model.UnitMM}
	c := New(ds, Default())

	// 0.30 mm x 1.5 mm is 11.8 x 59 mil: fine pitch
	assert.Equal(t, FinePitch, c.Categorize(Measure(0.30, 1.5, model.ToolRect)))
	// 4 mm square is ~24800 sq-mil
	assert.Equal(t, LargeThermal, c.Categorize(Measure(4, 4, model.ToolRect)))
	// 0.15 mm is under 8 mil
	assert.Equal(t, TooSmall, c.Categorize(Measure(0.15, 0.5, model.ToolRect)))
}

func TestClassifier_ClassifyUsesEffectiveSize(t *testing.T) {
	ds := inchDataset()
	ds.Tools["10"] = model.Tool{Kind: model.ToolCircle, Width: 0.03, Height: 0.03}
	pad := model.Shape{ID: "pad-0", Kind: model.KindPad, Tool: "10"}
	c := New(ds, Default())

	assert.Equal(t, Circle, c.Classify(&pad))

	pad.ModifiedWidth, pad.ModifiedHeight = 0.005, 0.005
	assert.Equal(t, TooSmall, c.Classify(&pad))
}

func TestThresholds_Scaled(t *testing.T) {
	n := Default().Scaled(&model.Dataset{Units: model.UnitMM})

	assert.InDelta(t, 0.2032, n.MinPad, 1e-9)
	assert.InDelta(t, 15000*0.0254*0.0254, n.PaneArea, 1e-9)
	assert.Equal(t, 2.5, n.FinePitchAspect)
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	bad := Default()
	bad.PaneAreaSqMil = bad.ThermalAreaSqMil - 1
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.FinePitchAspect = 1
	assert.Error(t, bad.Validate())
}
