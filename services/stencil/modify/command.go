// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modify

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Action is the operation a Command performs.
type Action string

const (
	ActionReduce       Action = "reduce"
	ActionEnlarge      Action = "enlarge"
	ActionScale        Action = "scale"
	ActionCornerRadius Action = "cornerRadius"
	ActionWindowPane   Action = "windowPane"
	ActionDelete       Action = "delete"
	ActionReset        Action = "reset"
	ActionModifyFids   Action = "modifyFids"
)

// Known reports whether the engine implements a.
func (a Action) Known() bool {
	switch a {
	case ActionReduce, ActionEnlarge, ActionScale, ActionCornerRadius,
		ActionWindowPane, ActionDelete, ActionReset, ActionModifyFids:
		return true
	}
	return false
}

// Target selects which shapes a Command applies to.
type Target string

const (
	TargetAll        Target = "all"
	TargetSelected   Target = "selected"
	TargetThermal    Target = "thermal"
	TargetFinePitch  Target = "finePitch"
	TargetCircles    Target = "circles"
	TargetRectangles Target = "rectangles"
)

// Unit values accepted in Command.Unit.
const (
	UnitPercent = "%"
	UnitMM      = "mm"
	UnitMil     = "mil"
	UnitInch    = "in"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// commandValidate is the validator instance for commands.
var commandValidate *validator.Validate

func init() {
	commandValidate = validator.New()
	_ = commandValidate.RegisterValidation("lengthunit", validateLengthUnit)
}

// validateLengthUnit accepts an empty unit or one of mil, mm, in.
func validateLengthUnit(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "", UnitMil, UnitMM, UnitInch:
		return true
	}
	return false
}

// WindowPane parameterises the windowPane action.
//
// # Fields
//
//   - Rows, Cols: Grid size. Zero means 2.
//   - WebWidth: Solid web between panes, in Unit. Zero uses the configured default.
//   - EdgeGap: Clearance to the source outline, in Unit. Zero uses the configured default.
//   - Reduction: Percent shrink applied to the source before tiling.
//   - Unit: Unit of WebWidth and EdgeGap ("mil", "mm", "in"). Empty means native.
type WindowPane struct {
	Rows      int     `json:"rows,omitempty" validate:"gte=0,lte=20"`
	Cols      int     `json:"cols,omitempty" validate:"gte=0,lte=20"`
	WebWidth  float64 `json:"webWidth,omitempty" validate:"gte=0"`
	EdgeGap   float64 `json:"edgeGap,omitempty" validate:"gte=0"`
	Reduction float64 `json:"reduction,omitempty" validate:"gte=0,lt=100"`
	Unit      string  `json:"unit,omitempty" validate:"lengthunit"`
}

// Command is one structured modification request. It is the output
// contract of the command interpreter and the input of Engine.Apply.
//
// # Description
//
// Value is interpreted according to Unit: "%" is relative, "mm", "mil" and
// "in" are absolute. For reduce and enlarge an absolute value is a per-side
// delta. FidSize/FidUnit apply to modifyFids only.
//
// # Examples
//
//	cmd := modify.Command{Action: modify.ActionReduce, Target: modify.TargetAll, Value: 10, Unit: "%"}
//
// # Assumptions
//
//   - An empty Target means all.
//   - An unrecognised Action is not a validation error; it applies to nothing.
type Command struct {
	Action       Action      `json:"action" validate:"required"`
	Target       Target      `json:"target,omitempty"`
	Value        float64     `json:"value,omitempty" validate:"gte=0"`
	Unit         string      `json:"unit,omitempty" validate:"omitempty,oneof=% mm mil in"`
	SelectedOnly bool        `json:"selectedOnly,omitempty"`
	WindowPane   *WindowPane `json:"windowPane,omitempty"`
	FidSize      float64     `json:"fidSize,omitempty" validate:"gte=0"`
	FidUnit      string      `json:"fidUnit,omitempty" validate:"lengthunit"`
	Explanation  string      `json:"explanation,omitempty" validate:"max=1024"`
}

// Validate checks field ranges.
func (c *Command) Validate() error {
	if err := commandValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}
	return nil
}

// Known reports whether t is a recognised target. Empty counts as all.
func (t Target) Known() bool {
	switch t {
	case "", TargetAll, TargetSelected, TargetThermal, TargetFinePitch, TargetCircles, TargetRectangles:
		return true
	}
	return false
}

// String renders the command for logs.
func (c Command) String() string {
	target := c.Target
	if target == "" {
		target = TargetAll
	}
	s := fmt.Sprintf("%s %s", c.Action, target)
	if c.Value != 0 {
		s += fmt.Sprintf(" %g%s", c.Value, c.Unit)
	}
	if c.WindowPane != nil {
		s += fmt.Sprintf(" %dx%d", c.WindowPane.Rows, c.WindowPane.Cols)
	}
	if c.SelectedOnly {
		s += " (selected only)"
	}
	return s
}
