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

import "strings"

// Unit tags accepted on a Dataset and in commands.
const (
	UnitInch = "in"
	UnitMM   = "mm"
	UnitMil  = "mil"
)

// MMPerInch converts inches to millimetres.
const MMPerInch = 25.4

// UnitStrategy decides whether a dataset's linear values are inches.
//
// # Description
//
// The upstream Gerber declares a unit, but the declaration is frequently
// unreliable. Strategies let callers choose how much to trust it. The
// second return value is false when the strategy has no opinion.
type UnitStrategy interface {
	DetectInches(ds *Dataset) (inches bool, ok bool)
}

// ExplicitUnits trusts the dataset's unit tag and nothing else.
type ExplicitUnits struct{}

// DetectInches implements UnitStrategy.
func (ExplicitUnits) DetectInches(ds *Dataset) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(ds.Units)) {
	case UnitInch, "inch", "inches":
		return true, true
	case UnitMM, "millimeter", "millimetre":
		return false, true
	}
	return false, false
}

// MagnitudeHeuristic guesses the unit from the first shape's width.
//
// # Limitations
//
// This is a best-effort guess: widths below 1.0 are taken as inches and
// anything else as millimetres. It is wrong for boards whose first feature
// happens to straddle the 1.0 boundary in the other unit. Callers that
// need certainty must tag the dataset explicitly.
type MagnitudeHeuristic struct{}

// DetectInches implements UnitStrategy.
func (MagnitudeHeuristic) DetectInches(ds *Dataset) (bool, bool) {
	if len(ds.Shapes) == 0 {
		return false, false
	}
	w, _ := ds.Size(&ds.Shapes[0])
	return w < 1.0, true
}

// ChainStrategy consults each strategy in order until one has an opinion.
type ChainStrategy []UnitStrategy

// DetectInches implements UnitStrategy.
func (c ChainStrategy) DetectInches(ds *Dataset) (bool, bool) {
	for _, s := range c {
		if in, ok := s.DetectInches(ds); ok {
			return in, true
		}
	}
	return false, false
}

// DefaultUnitStrategy trusts an explicit tag and falls back to magnitude.
var DefaultUnitStrategy UnitStrategy = ChainStrategy{ExplicitUnits{}, MagnitudeHeuristic{}}

// IsInches reports whether ds is in inches using DefaultUnitStrategy.
// An empty dataset with no tag is treated as inches, the Gerber default.
func IsInches(ds *Dataset) bool {
	return IsInchesWith(ds, DefaultUnitStrategy)
}

// IsInchesWith is IsInches with an explicit strategy.
func IsInchesWith(ds *Dataset, strategy UnitStrategy) bool {
	if ds == nil {
		return true
	}
	if strategy == nil {
		strategy = DefaultUnitStrategy
	}
	if in, ok := strategy.DetectInches(ds); ok {
		return in
	}
	return true
}

// Scale returns the multiplier from inches to the dataset's native unit:
// 1 for inches, 25.4 for millimetres. Mil thresholds become native
// values as mils/1000*Scale.
func Scale(ds *Dataset) float64 {
	if IsInches(ds) {
		return 1
	}
	return MMPerInch
}

// MilsToNative converts a mil value into the dataset's native unit.
func MilsToNative(ds *Dataset, mils float64) float64 {
	return mils / 1000 * Scale(ds)
}

// NativeToMils converts a native linear value into mils.
func NativeToMils(ds *Dataset, v float64) float64 {
	return v / Scale(ds) * 1000
}

// ToNative converts v expressed in unit ("mil", "mm", "in") into the
// dataset's native unit. Unknown or empty units are taken as native.
func ToNative(ds *Dataset, v float64, unit string) float64 {
	scale := Scale(ds)
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case UnitMil:
		return v / 1000 * scale
	case UnitMM:
		return v / MMPerInch * scale
	case UnitInch:
		return v * scale
	}
	return v
}

// ToInches converts a native value to inches.
func ToInches(ds *Dataset, v float64) float64 {
	return v / Scale(ds)
}

// ToMM converts a native value to millimetres.
func ToMM(ds *Dataset, v float64) float64 {
	return v / Scale(ds) * MMPerInch
}
