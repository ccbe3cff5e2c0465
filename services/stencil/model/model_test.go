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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Effective size
// =============================================================================

func TestShape_EffectiveSize(t *testing.T) {
	rect := &Tool{Kind: ToolRect, Width: 0.05, Height: 0.02}

	tests := []struct {
		name  string
		shape Shape
		tool  *Tool
		wantW float64
		wantH float64
	}{
		{"modified wins", Shape{Width: 0.05, Height: 0.02, ModifiedWidth: 0.04, ModifiedHeight: 0.01}, rect, 0.04, 0.01},
		{"explicit size", Shape{Width: 0.03, Height: 0.01}, rect, 0.03, 0.01},
		{"tool size", Shape{}, rect, 0.05, 0.02},
		{"fallback", Shape{}, nil, FallbackSize, FallbackSize},
		{"height falls back to width", Shape{Width: 0.07}, nil, 0.07, 0.07},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := tt.shape.EffectiveSize(tt.tool)
			assert.InDelta(t, tt.wantW, w, 1e-12)
			assert.InDelta(t, tt.wantH, h, 1e-12)
		})
	}
}

// =============================================================================
// Editor
// =============================================================================

func TestEdit_OriginalsAreWriteOnce(t *testing.T) {
	s := Shape{ID: "pad-0", Kind: KindPad, Width: 0.1, Height: 0.05}

	Edit(&s, nil).Resize(0.08, 0.04).Tag("reduce").Commit()
	Edit(&s, nil).Resize(0.06, 0.03).Tag("reduce").Commit()

	assert.Equal(t, 0.1, s.OriginalWidth)
	assert.Equal(t, 0.05, s.OriginalHeight)
	assert.Equal(t, 0.06, s.ModifiedWidth)
	assert.Equal(t, 0.03, s.ModifiedHeight)
	assert.Equal(t, 0.1, s.Width, "ingested width must not change")
	assert.True(t, s.Modified)
	assert.Equal(t, "reduce", s.EditType)
}

func TestEdit_ClampsToMinimum(t *testing.T) {
	s := Shape{Width: 0.01}
	Edit(&s, nil).Resize(-1, 0).Commit()

	assert.Equal(t, MinEditSize, s.ModifiedWidth)
	assert.Equal(t, MinEditSize, s.ModifiedHeight)
}

func TestReset_RestoresIngestedState(t *testing.T) {
	s := Shape{ID: "pad-1", Kind: KindPad, Width: 0.2, Height: 0.2}
	Edit(&s, nil).Resize(0.1, 0.1).Corner(0.01).Oblong().ReplacedByPanes().Tag("windowPane").Commit()
	require.True(t, s.Deleted)

	Reset(&s)

	assert.False(t, s.Deleted)
	assert.False(t, s.ReplacedByPanes)
	assert.False(t, s.Modified)
	assert.Zero(t, s.CornerRadius)
	w, h := s.EffectiveSize(nil)
	assert.Equal(t, 0.2, w)
	assert.Equal(t, 0.2, h)
}

func TestNewPane_CopiesParentReferences(t *testing.T) {
	parent := Shape{ID: "pad-3", Kind: KindPad, X: 1, Y: 2, Width: 0.2, Height: 0.1}
	Edit(&parent, nil).Resize(0.18, 0.09).Commit()

	p := NewPane(&parent, nil, 2, 1.05, 2.01, 0.05, 0.03, "windowPane")

	assert.Equal(t, "pad-3-pane-2", p.ID)
	assert.Equal(t, KindPane, p.Kind)
	assert.Equal(t, "pad-3", p.ParentID)
	assert.Equal(t, 1.0, p.ParentX)
	assert.Equal(t, 2.0, p.ParentY)
	assert.Equal(t, 0.2, p.ParentOriginalWidth)
	assert.Equal(t, 0.1, p.ParentOriginalHeight)
}

// =============================================================================
// Units
// =============================================================================

func TestIsInches(t *testing.T) {
	tests := []struct {
		name string
		ds   *Dataset
		want bool
	}{
		{"explicit inch tag", &Dataset{Units: "in", Shapes: []Shape{{Width: 5}}}, true},
		{"explicit mm tag", &Dataset{Units: "mm", Shapes: []Shape{{Width: 0.1}}}, false},
		{"small magnitude", &Dataset{Shapes: []Shape{{Width: 0.05}}}, true},
		{"large magnitude", &Dataset{Shapes: []Shape{{Width: 1.5}}}, false},
		{"empty defaults to inches", &Dataset{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInches(tt.ds))
		})
	}
}

func TestIsInchesWith_ExplicitOnly(t *testing.T) {
	ds := &Dataset{Shapes: []Shape{{Width: 2.0}}}
	assert.True(t, IsInchesWith(ds, ExplicitUnits{}), "no tag and no heuristic defaults to inches")
}

func TestToNative(t *testing.T) {
	inch := &Dataset{Units: UnitInch}
	mm := &Dataset{Units: UnitMM}

	assert.InDelta(t, 0.008, ToNative(inch, 8, UnitMil), 1e-12)
	assert.InDelta(t, 0.2032, ToNative(mm, 8, UnitMil), 1e-12)
	assert.InDelta(t, 1.0, ToNative(inch, 25.4, UnitMM), 1e-12)
	assert.InDelta(t, 0.1, ToNative(mm, 0.1, UnitMM), 1e-12)
	assert.InDelta(t, 0.3, ToNative(mm, 0.3, ""), 1e-12)
	assert.Equal(t, 25.4, Scale(mm))
	assert.InDelta(t, 8.0, NativeToMils(mm, 0.2032), 1e-9)
}

// =============================================================================
// Dataset
// =============================================================================

func TestDataset_Validate(t *testing.T) {
	var nilDS *Dataset
	assert.ErrorIs(t, nilDS.Validate(), ErrEmptyDataset)
	assert.ErrorIs(t, NewDataset().Validate(), ErrEmptyDataset)
	assert.NoError(t, (&Dataset{Shapes: []Shape{{ID: "a"}}}).Validate())
}

func TestDataset_ComputeBounds(t *testing.T) {
	ds := &Dataset{Shapes: []Shape{
		{X: 0, Y: 0, Width: 0.2, Height: 0.2},
		{X: 1, Y: 1, Width: 0.2, Height: 0.4},
	}}
	b := ds.ComputeBounds()
	assert.InDelta(t, -0.1, b.MinX, 1e-12)
	assert.InDelta(t, -0.1, b.MinY, 1e-12)
	assert.InDelta(t, 1.1, b.MaxX, 1e-12)
	assert.InDelta(t, 1.2, b.MaxY, 1e-12)

	assert.Equal(t, Bounds{MaxX: 1, MaxY: 1}, NewDataset().ComputeBounds())
}
