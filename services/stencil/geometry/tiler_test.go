// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package geometry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestTile_TwoByTwoNoGapTilesExactly(t *testing.T) {
	src := Rect{CX: 1, CY: 2, Width: 0.4, Height: 0.2}

	panes := Tile(src, Grid{Rows: 2, Cols: 2})

	require.Len(t, panes, 4)
	area := 0.0
	for _, p := range panes {
		area += p.Width * p.Height
	}
	assert.InDelta(t, src.Width*src.Height, area, eps)
	assert.InDelta(t, src.MinX(), panes[0].MinX(), eps)
	assert.InDelta(t, src.MinY(), panes[0].MinY(), eps)
	assert.InDelta(t, src.MaxX(), panes[3].MaxX(), eps)
	assert.InDelta(t, src.MaxY(), panes[3].MaxY(), eps)
	assert.InDelta(t, panes[0].MaxX(), panes[1].MinX(), eps)
}

func TestTile_ContainmentWebAndEdge(t *testing.T) {
	cases := []struct {
		w, h       float64
		rows, cols int
		web, edge  float64
	}{
		{0.2, 0.2, 2, 2, 0.016, 0.006},
		{0.5, 0.3, 2, 3, 0.02, 0.01},
		{0.3, 0.5, 3, 2, 0.01, 0.0},
		{10, 4, 4, 5, 0.3, 0.2},
	}

	for _, tc := range cases {
		name := fmt.Sprintf("%gx%g_%dx%d", tc.w, tc.h, tc.rows, tc.cols)
		t.Run(name, func(t *testing.T) {
			src := Rect{CX: 0.5, CY: -0.25, Width: tc.w, Height: tc.h}
			panes := Tile(src, Grid{Rows: tc.rows, Cols: tc.cols, Web: tc.web, Edge: tc.edge})
			require.Len(t, panes, tc.rows*tc.cols)

			for _, p := range panes {
				assert.GreaterOrEqual(t, p.MinX(), src.MinX()-eps)
				assert.LessOrEqual(t, p.MaxX(), src.MaxX()+eps)
				assert.GreaterOrEqual(t, p.MinY(), src.MinY()-eps)
				assert.LessOrEqual(t, p.MaxY(), src.MaxY()+eps)
			}

			// edge clearance on all four sides
			first, last := panes[0], panes[len(panes)-1]
			assert.InDelta(t, tc.edge, first.MinX()-src.MinX(), eps)
			assert.InDelta(t, tc.edge, first.MinY()-src.MinY(), eps)
			assert.InDelta(t, tc.edge, src.MaxX()-last.MaxX(), eps)
			assert.InDelta(t, tc.edge, src.MaxY()-last.MaxY(), eps)

			// web between neighbours in a row and in a column
			if tc.cols > 1 {
				assert.InDelta(t, tc.web, panes[1].MinX()-panes[0].MaxX(), eps)
			}
			if tc.rows > 1 {
				assert.InDelta(t, tc.web, panes[tc.cols].MinY()-panes[0].MaxY(), eps)
			}
		})
	}
}

func TestTile_RasterOrder(t *testing.T) {
	panes := Tile(Rect{Width: 3, Height: 2}, Grid{Rows: 2, Cols: 3})
	require.Len(t, panes, 6)

	for i := 1; i < 3; i++ {
		assert.Greater(t, panes[i].CX, panes[i-1].CX)
		assert.InDelta(t, panes[0].CY, panes[i].CY, eps)
	}
	assert.Greater(t, panes[3].CY, panes[0].CY)
}

func TestTile_TwoByTwoOnSquarePad(t *testing.T) {
	panes := Tile(Rect{Width: 0.2, Height: 0.2}, Grid{Rows: 2, Cols: 2, Web: 0.016, Edge: 0.006})

	require.Len(t, panes, 4)
	for _, p := range panes {
		assert.InDelta(t, 0.086, p.Width, 1e-9)
		assert.InDelta(t, 0.086, p.Height, 1e-9)
	}
}

func TestTile_NotApplicable(t *testing.T) {
	tests := []struct {
		name string
		src  Rect
		g    Grid
	}{
		{"web swallows pad", Rect{Width: 0.02, Height: 0.02}, Grid{Rows: 2, Cols: 2, Web: 0.02}},
		{"edge swallows pad", Rect{Width: 0.02, Height: 0.02}, Grid{Rows: 1, Cols: 1, Edge: 0.01}},
		{"below min pane", Rect{Width: 0.1, Height: 0.1}, Grid{Rows: 2, Cols: 2, MinPane: 0.06}},
		{"zero rows", Rect{Width: 1, Height: 1}, Grid{Cols: 2}},
		{"negative web", Rect{Width: 1, Height: 1}, Grid{Rows: 2, Cols: 2, Web: -0.1}},
		{"degenerate source", Rect{Width: 0, Height: 1}, Grid{Rows: 1, Cols: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Tile(tt.src, tt.g))
		})
	}
}

func TestTile_ZeroMinPaneUsesOnePercent(t *testing.T) {
	src := Rect{Width: 1, Height: 2}

	// 0.005 wide panes are under 1% of the 1-wide side
	assert.Empty(t, Tile(src, Grid{Rows: 2, Cols: 2, Web: 0.99}))

	// 0.02 wide panes clear it
	assert.Len(t, Tile(src, Grid{Rows: 2, Cols: 2, Web: 0.96}), 4)
}

func TestGridForAspect(t *testing.T) {
	r, c := GridForAspect(1, 1.2)
	assert.Equal(t, [2]int{2, 2}, [2]int{r, c})
	r, c = GridForAspect(3, 1)
	assert.Equal(t, [2]int{2, 3}, [2]int{r, c})
	r, c = GridForAspect(1, 3)
	assert.Equal(t, [2]int{3, 2}, [2]int{r, c})
}
