// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package encode writes a dataset back out as Gerber text.
//
// # Description
//
// Two dialects share one aperture table: the standard RS-274X export in
// inches (Gerber) and the laser-cutter dialect in millimetres (Machine).
// Apertures are deduplicated by kind and rounded size and numbered from
// D10 in first-seen order. Flashes are grouped by aperture so each
// aperture is selected once.
package encode

import (
	"fmt"
	"strings"
)

// ApertureKind is the standard aperture template letter.
type ApertureKind string

const (
	ApertureCircle ApertureKind = "C"
	ApertureRect   ApertureKind = "R"
	ApertureOblong ApertureKind = "O"
)

// firstCode is the first aperture number a Gerber file may define.
const firstCode = 10

// Aperture is one entry of the aperture table, sized in output units.
type Aperture struct {
	Code   int
	Kind   ApertureKind
	Width  float64
	Height float64
}

// table deduplicates apertures at a fixed decimal precision.
type table struct {
	precision int
	codes     map[string]int
	list      []Aperture
}

func newTable(precision int) *table {
	return &table{precision: precision, codes: make(map[string]int)}
}

// code returns the aperture code for (kind, w, h), allocating one on first use.
func (t *table) code(kind ApertureKind, w, h float64) int {
	if kind == ApertureCircle {
		h = w
	}
	key := fmt.Sprintf("%s|%.*f|%.*f", kind, t.precision, w, t.precision, h)
	if c, ok := t.codes[key]; ok {
		return c
	}
	c := firstCode + len(t.list)
	t.codes[key] = c
	t.list = append(t.list, Aperture{Code: c, Kind: kind, Width: w, Height: h})
	return c
}

// define writes one %ADD directive per aperture.
func (t *table) define(b *strings.Builder) {
	for _, a := range t.list {
		switch a.Kind {
		case ApertureCircle:
			fmt.Fprintf(b, "%%ADD%d%s,%.*f*%%\n", a.Code, a.Kind, t.precision, a.Width)
		default:
			fmt.Fprintf(b, "%%ADD%d%s,%.*fX%.*f*%%\n", a.Code, a.Kind, t.precision, a.Width, t.precision, a.Height)
		}
	}
}

// Len returns the number of distinct apertures.
func (t *table) Len() int {
	return len(t.list)
}
