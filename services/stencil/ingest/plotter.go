// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/Stentelligence/services/stencil/model"
)

// ErrEmptyInput indicates the reader produced no Gerber content.
var ErrEmptyInput = errors.New("no gerber content")

var (
	coordWord = regexp.MustCompile(`([XYIJD])([+-]?[0-9.]+)`)
	toolWord  = regexp.MustCompile(`^(?:G54)?D([0-9]+)$`)
)

// Plotter reads RS-274X text and emits the event stream consumed by Builder.
//
// # Description
//
// Supports the subset found on paste layers: %FS and %MO headers, the
// standard C/R/O/P apertures, D01/D02/D03 operations, G36/G37 regions and
// the legacy G70/G71/G90/G91 codes. Aperture macros and block apertures are
// accepted but produce no tool shape, so flashes that use them fall back to
// the default geometry. Arcs (G02/G03) are plotted as straight segments.
//
// # Limitations
//
//   - Step-and-repeat (%SR) is ignored.
//   - Polarity (%LP) is ignored; everything is treated as dark.
type Plotter struct {
	logger *slog.Logger

	decimals     int
	intDigits    int
	trailingOmit bool
	incremental  bool

	tools   map[string]model.Tool
	current string
	x, y    float64
	dmode   int

	inRegion bool
	contour  []Segment

	minX, minY, maxX, maxY float64

	events   []Event
	warnings int
}

// NewPlotter returns a plotter using the 2.6 inch format until told otherwise.
func NewPlotter(logger *slog.Logger) *Plotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Plotter{
		logger:    logger,
		decimals:  6,
		intDigits: 2,
		tools:     make(map[string]model.Tool),
		dmode:     1,
		minX:      math.Inf(1),
		minY:      math.Inf(1),
		maxX:      math.Inf(-1),
		maxY:      math.Inf(-1),
	}
}

// Plot parses the whole document and returns its events in order.
func (p *Plotter) Plot(src string) []Event {
	for i := 0; i < len(src); {
		switch src[i] {
		case '%':
			end := strings.IndexByte(src[i+1:], '%')
			if end < 0 {
				p.warn("unterminated extended command")
				i = len(src)
				continue
			}
			p.extended(src[i+1 : i+1+end])
			i += end + 2
		case '\r', '\n', ' ', '\t':
			i++
		default:
			end := strings.IndexByte(src[i:], '*')
			if end < 0 {
				p.word(strings.TrimSpace(src[i:]))
				i = len(src)
				continue
			}
			p.word(strings.TrimSpace(src[i : i+end]))
			i += end + 1
		}
	}
	p.closeContour()
	if !math.IsInf(p.minX, 1) {
		box := [4]float64{p.minX, p.minY, p.maxX, p.maxY}
		p.events = append(p.events, Event{Type: EventSize, Box: &box})
	}
	if p.warnings > 0 {
		p.logger.Warn("Gerber plot produced warnings", "count", p.warnings)
	}
	return p.events
}

// extended handles the body of a %...% block.
func (p *Plotter) extended(body string) {
	for _, head := range strings.Split(stripSpace(body), "*") {
		if strings.HasPrefix(head, "AM") {
			// macro bodies span the rest of the block
			return
		}
		p.extendedBlock(head)
	}
}

func (p *Plotter) extendedBlock(head string) {
	switch {
	case head == "":
	case strings.HasPrefix(head, "FS"):
		p.formatSpec(head[2:])
	case head == "MOIN":
		p.emitUnits(model.UnitInch)
	case head == "MOMM":
		p.emitUnits(model.UnitMM)
	case strings.HasPrefix(head, "AD"):
		p.apertureDef(head[2:])
	case strings.HasPrefix(head, "AB"),
		strings.HasPrefix(head, "LP"), strings.HasPrefix(head, "SR"),
		strings.HasPrefix(head, "TF"), strings.HasPrefix(head, "TA"),
		strings.HasPrefix(head, "TO"), strings.HasPrefix(head, "TD"),
		strings.HasPrefix(head, "IP"), strings.HasPrefix(head, "LN"),
		strings.HasPrefix(head, "OF"), strings.HasPrefix(head, "SF"):
		// accepted, no effect on the paste model
	default:
		p.warn("unsupported extended command " + truncate(head))
	}
}

// formatSpec parses e.g. "LAX36Y36".
func (p *Plotter) formatSpec(spec string) {
	for _, c := range spec {
		switch c {
		case 'T':
			p.trailingOmit = true
		case 'L':
			p.trailingOmit = false
		case 'I':
			p.incremental = true
		case 'A':
			p.incremental = false
		}
	}
	if i := strings.IndexByte(spec, 'X'); i >= 0 && i+3 <= len(spec) {
		ints, errI := strconv.Atoi(spec[i+1 : i+2])
		decs, errD := strconv.Atoi(spec[i+2 : i+3])
		if errI == nil && errD == nil {
			p.intDigits, p.decimals = ints, decs
			return
		}
	}
	p.warn("malformed format spec " + truncate(spec))
}

func (p *Plotter) emitUnits(u string) {
	p.events = append(p.events, Event{Type: EventUnits, Units: u})
}

// apertureDef parses e.g. "D10C,0.0100" or "D11R,0.02X0.03".
func (p *Plotter) apertureDef(def string) {
	if !strings.HasPrefix(def, "D") {
		p.warn("malformed aperture definition")
		return
	}
	i := 1
	for i < len(def) && def[i] >= '0' && def[i] <= '9' {
		i++
	}
	code := def[1:i]
	rest := def[i:]
	name, params, _ := strings.Cut(rest, ",")
	mods := parseMods(params)
	if !validMods(name, mods) {
		// pads flashed with this code fall back to default geometry
		p.warn("malformed aperture modifiers " + truncate(def))
		return
	}

	var prim Primitive
	switch name {
	case "C":
		prim = Primitive{Type: "circle", R: modAt(mods, 0) / 2}
	case "R":
		prim = Primitive{Type: "rect", Width: modAt(mods, 0), Height: modAt(mods, 1)}
	case "O":
		prim = Primitive{Type: "obround", Width: modAt(mods, 0), Height: modAt(mods, 1)}
	case "P":
		prim = Primitive{Type: "poly", Points: polygonPoints(modAt(mods, 0), int(modAt(mods, 1)), modAt(mods, 2))}
	default:
		// macro aperture: no primitive, pads fall back to default geometry
		p.logger.Debug("Macro aperture left undefined", "code", code, "macro", name)
		return
	}
	tool := model.Tool{Kind: model.ToolKind(prim.Type), Width: prim.Width, Height: prim.Height}
	if prim.Type == "circle" {
		tool.Width, tool.Height = prim.R*2, prim.R*2
	}
	if prim.Type == "poly" {
		d := modAt(mods, 0)
		tool.Width, tool.Height = d, d
	}
	p.tools[code] = tool
	p.events = append(p.events, Event{Type: EventShape, Tool: code, Shape: []Primitive{prim}})
}

// word handles a single-block command terminated by '*'.
func (p *Plotter) word(w string) {
	w = stripSpace(w)
	if w == "" {
		return
	}
	switch {
	case strings.HasPrefix(w, "G04"):
		return
	case w == "M02" || w == "M00" || w == "M2":
		p.closeContour()
		return
	case w == "G36":
		p.inRegion = true
		p.contour = nil
		return
	case w == "G37":
		p.closeContour()
		p.inRegion = false
		return
	case w == "G70":
		p.emitUnits(model.UnitInch)
		return
	case w == "G71":
		p.emitUnits(model.UnitMM)
		return
	case w == "G90":
		p.incremental = false
		return
	case w == "G91":
		p.incremental = true
		return
	case w == "G74" || w == "G75":
		return
	}
	if m := toolWord.FindStringSubmatch(w); m != nil {
		if n, _ := strconv.Atoi(m[1]); n >= 10 {
			p.current = m[1]
			return
		}
	}
	// strip a leading interpolation code, e.g. G01X..Y..D01
	for _, g := range []string{"G01", "G02", "G03", "G1", "G2", "G3", "G55"} {
		if strings.HasPrefix(w, g) {
			w = w[len(g):]
			break
		}
	}
	if w == "" {
		return
	}
	p.operation(w)
}

// operation executes coordinate data with an optional D code.
func (p *Plotter) operation(w string) {
	matches := coordWord.FindAllStringSubmatch(w, -1)
	if len(matches) == 0 {
		p.warn("unrecognised block " + truncate(w))
		return
	}
	nx, ny := p.x, p.y
	if p.incremental {
		nx, ny = 0, 0
	}
	for _, m := range matches {
		switch m[1] {
		case "X":
			nx = p.coord(m[2])
		case "Y":
			ny = p.coord(m[2])
		case "D":
			if d, err := strconv.Atoi(m[2]); err == nil {
				if d >= 10 {
					p.current = m[2]
				} else {
					p.dmode = d
				}
			}
		}
	}
	if p.incremental {
		nx, ny = p.x+nx, p.y+ny
	}

	switch p.dmode {
	case 1:
		p.interpolate(nx, ny)
	case 2:
		if p.inRegion {
			p.closeContour()
		}
	case 3:
		p.flash(nx, ny)
	}
	p.x, p.y = nx, ny
}

func (p *Plotter) interpolate(nx, ny float64) {
	start := [2]float64{p.x, p.y}
	end := [2]float64{nx, ny}
	if p.inRegion {
		p.contour = append(p.contour, Segment{Type: "line", Start: &start, End: &end})
		p.extend(nx, ny, 0, 0)
		p.extend(p.x, p.y, 0, 0)
		return
	}
	p.events = append(p.events, Event{Type: EventStroke, Tool: p.current, Start: &start, End: &end})
	half := p.tools[p.current].Width / 2
	p.extend(p.x, p.y, half, half)
	p.extend(nx, ny, half, half)
}

func (p *Plotter) flash(nx, ny float64) {
	x, y := nx, ny
	p.events = append(p.events, Event{Type: EventPad, Tool: p.current, X: &x, Y: &y})
	t, ok := p.tools[p.current]
	if !ok {
		t = model.Tool{Width: model.FallbackSize, Height: model.FallbackSize}
	}
	p.extend(nx, ny, t.Width/2, t.Height/2)
}

func (p *Plotter) closeContour() {
	if len(p.contour) == 0 {
		return
	}
	path := slices.Clone(p.contour)
	p.events = append(p.events, Event{Type: EventFill, Path: path})
	p.contour = nil
}

// coord converts a coordinate string using the active format.
func (p *Plotter) coord(s string) float64 {
	if strings.Contains(s, ".") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			p.warn("bad coordinate " + s)
			return 0
		}
		return v
	}
	sign := 1.0
	if s != "" && (s[0] == '-' || s[0] == '+') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	if p.trailingOmit {
		total := p.intDigits + p.decimals
		if len(s) < total {
			s += strings.Repeat("0", total-len(s))
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		p.warn("bad coordinate " + s)
		return 0
	}
	return sign * float64(n) / math.Pow10(p.decimals)
}

func (p *Plotter) extend(x, y, hw, hh float64) {
	p.minX = math.Min(p.minX, x-hw)
	p.maxX = math.Max(p.maxX, x+hw)
	p.minY = math.Min(p.minY, y-hh)
	p.maxY = math.Max(p.maxY, y+hh)
}

func (p *Plotter) warn(msg string) {
	p.warnings++
	p.logger.Debug("Gerber plot warning", "detail", msg)
}

// ParseGerber reads a complete Gerber document into a dataset.
func ParseGerber(r io.Reader, logger *slog.Logger) (*model.Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gerber: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, ErrEmptyInput
	}
	events := NewPlotter(logger).Plot(string(raw))
	return Build(slices.Values(events), logger), nil
}

func parseMods(params string) []float64 {
	if params == "" {
		return nil
	}
	parts := strings.Split(params, "X")
	mods := make([]float64, 0, len(parts))
	for _, s := range parts {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			v = 0
		}
		mods = append(mods, v)
	}
	return mods
}

// validMods rejects non-finite modifiers, negative sizes and polygon
// vertex counts outside 3..12. Only the polygon rotation may be negative.
func validMods(name string, mods []float64) bool {
	for i, v := range mods {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		if v < 0 && !(name == "P" && i == 2) {
			return false
		}
	}
	if name == "P" {
		n := modAt(mods, 1)
		if n < minPolygonVertices || n > maxPolygonVertices || n != math.Trunc(n) {
			return false
		}
	}
	return true
}

func modAt(mods []float64, i int) float64 {
	if i < len(mods) {
		return mods[i]
	}
	return 0
}

const (
	minPolygonVertices = 3
	maxPolygonVertices = 12
)

// polygonPoints returns the vertices of a regular polygon aperture.
func polygonPoints(diameter float64, n int, rotationDeg float64) [][2]float64 {
	if n < minPolygonVertices || n > maxPolygonVertices || diameter <= 0 {
		return nil
	}
	r := diameter / 2
	rot := rotationDeg * math.Pi / 180
	pts := make([][2]float64, n)
	for i := range n {
		a := rot + 2*math.Pi*float64(i)/float64(n)
		pts[i] = [2]float64{r * math.Cos(a), r * math.Sin(a)}
	}
	return pts
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', ' ', '\t':
			return -1
		}
		return r
	}, s)
}

func truncate(s string) string {
	if len(s) > 24 {
		return s[:24]
	}
	return s
}
