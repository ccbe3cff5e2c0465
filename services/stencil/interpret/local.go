// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package interpret

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/AleutianAI/Stentelligence/services/stencil/modify"
)

var (
	percentValue = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	mmValue      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mm`)
	milValue     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mil`)
	gridSize     = regexp.MustCompile(`(\d+)\s*x\s*(\d+)`)
)

const (
	defaultPercent   = 10.0
	defaultFidMil    = 40.0
	defaultRadiusMM  = 0.1
	defaultPaneCount = 2
	maxPaneCount     = 20
)

// ParseLocal maps a prompt onto a Command by keyword matching. It never
// fails and always returns a valid Command: a prompt with no recognisable
// keywords, or one whose numbers fall outside the command ranges, reduces
// all pads by 10%.
//
// # Description
//
// Matching runs in a fixed order. A fiducial sizing request is checked
// first, then the action, then the target, then the value. Keywords are
// matched case-insensitively anywhere in the prompt.
//
// # Examples
//
//	ParseLocal("shrink fine pitch leads by 0.05mm")
//	// reduce finePitch 0.05mm
//
// # Limitations
//
//   - Negations ("don't shrink") are not understood.
//   - Only the first number of each unit is used.
func ParseLocal(prompt string) modify.Command {
	l := strings.ToLower(strings.TrimSpace(prompt))

	if strings.Contains(l, "fid") && containsAny(l, "mil", "mm", "change", "make", "set") {
		return fiducialCommand(l)
	}

	cmd := modify.Command{Action: localAction(l)}
	cmd.Target, cmd.SelectedOnly = localTarget(l)

	explicitPercent := false
	switch {
	case percentValue.MatchString(l):
		cmd.Value, cmd.Unit = number(percentValue, l), modify.UnitPercent
		explicitPercent = true
	case mmValue.MatchString(l):
		cmd.Value, cmd.Unit = number(mmValue, l), modify.UnitMM
	case milValue.MatchString(l):
		cmd.Value, cmd.Unit = number(milValue, l), modify.UnitMil
	default:
		cmd.Value, cmd.Unit = defaultPercent, modify.UnitPercent
	}

	switch cmd.Action {
	case modify.ActionWindowPane:
		wp := &modify.WindowPane{Rows: defaultPaneCount, Cols: defaultPaneCount}
		if m := gridSize.FindStringSubmatch(l); m != nil {
			wp.Rows = paneCount(m[1])
			wp.Cols = paneCount(m[2])
		}
		if explicitPercent && cmd.Value < 100 {
			wp.Reduction = cmd.Value
		}
		cmd.WindowPane = wp
	case modify.ActionCornerRadius:
		if cmd.Unit == modify.UnitPercent {
			cmd.Value, cmd.Unit = defaultRadiusMM, modify.UnitMM
		}
	case modify.ActionDelete, modify.ActionReset:
		cmd.Value, cmd.Unit = 0, ""
	}

	cmd.Explanation = explain(cmd)
	if err := cmd.Validate(); err != nil {
		return defaultCommand()
	}
	return cmd
}

func defaultCommand() modify.Command {
	cmd := modify.Command{
		Action: modify.ActionReduce,
		Target: modify.TargetAll,
		Value:  defaultPercent,
		Unit:   modify.UnitPercent,
	}
	cmd.Explanation = explain(cmd)
	return cmd
}

// paneCount clamps a grid dimension to 1..maxPaneCount. Zero keeps the
// default.
func paneCount(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		// digits only, so the count overflowed
		return maxPaneCount
	}
	if n == 0 {
		return defaultPaneCount
	}
	return min(n, maxPaneCount)
}

func fiducialCommand(l string) modify.Command {
	cmd := modify.Command{Action: modify.ActionModifyFids, FidSize: defaultFidMil, FidUnit: modify.UnitMil}
	switch {
	case milValue.MatchString(l):
		cmd.FidSize = number(milValue, l)
	case mmValue.MatchString(l):
		cmd.FidSize, cmd.FidUnit = number(mmValue, l), modify.UnitMM
	}
	cmd.Explanation = fmt.Sprintf("Changing fiducials to %g%s rounds", cmd.FidSize, cmd.FidUnit)
	return cmd
}

func localAction(l string) modify.Action {
	switch {
	case containsAny(l, "reset", "restore", "undo", "revert"):
		return modify.ActionReset
	case containsAny(l, "delete", "remove"):
		return modify.ActionDelete
	case containsAny(l, "window", "pane") || gridSize.MatchString(l):
		return modify.ActionWindowPane
	case containsAny(l, "radius", "corner"):
		return modify.ActionCornerRadius
	case containsAny(l, "increase", "grow", "expand", "enlarge", "scale up"):
		return modify.ActionEnlarge
	default:
		return modify.ActionReduce
	}
}

func localTarget(l string) (modify.Target, bool) {
	switch {
	case hasWord(l, "selected", "selection"):
		return modify.TargetSelected, true
	case hasWord(l, "thermal", "large", "big"):
		return modify.TargetThermal, false
	case hasWord(l, "fine", "pitch", "lead", "qfp", "soic"):
		return modify.TargetFinePitch, false
	case hasWord(l, "circle", "circular") || strings.Contains(l, "round pad"):
		return modify.TargetCircles, false
	case hasWord(l, "rect", "square"):
		return modify.TargetRectangles, false
	default:
		return modify.TargetAll, false
	}
}

func explain(cmd modify.Command) string {
	s := fmt.Sprintf("%s on %s pads", cmd.Action, cmd.Target)
	if cmd.Value != 0 {
		s += fmt.Sprintf(" by %g%s", cmd.Value, cmd.Unit)
	}
	return s
}

func number(re *regexp.Regexp, l string) float64 {
	m := re.FindStringSubmatch(l)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// hasWord reports whether any word of s starts with one of prefixes, so
// "large" matches "larger" but not "enlarge".
func hasWord(s string, prefixes ...string) bool {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		for _, p := range prefixes {
			if strings.HasPrefix(w, p) {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
