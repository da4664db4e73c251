package layout

import (
	"fmt"
	"strings"
)

// PaperSize is a named physical sheet size, stored in millimeters.
type PaperSize struct {
	Name   string
	Width  float64
	Height float64
}

var paperSizes = map[string]PaperSize{
	"A3":      {Name: "A3", Width: 297, Height: 420},
	"A4":      {Name: "A4", Width: 210, Height: 297},
	"A5":      {Name: "A5", Width: 148, Height: 210},
	"B5":      {Name: "B5", Width: 176, Height: 250},
	"LETTER":  {Name: "Letter", Width: 215.9, Height: 279.4},
	"LEGAL":   {Name: "Legal", Width: 215.9, Height: 355.6},
	"TABLOID": {Name: "Tabloid", Width: 279.4, Height: 431.8},
}

// Orientation of a sheet.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// LookupPaper returns the preset for name (case-insensitive).
func LookupPaper(name string) (PaperSize, bool) {
	p, ok := paperSizes[strings.ToUpper(strings.TrimSpace(name))]
	return p, ok
}

// ResolvePaper returns the sheet size in the target unit. "custom" uses the explicit
// width/height that are already expressed in target.
func ResolvePaper(name string, orientation Orientation, customW, customH float64, target Unit) (Size, error) {
	if strings.EqualFold(name, "custom") || name == "" {
		if customW <= 0 || customH <= 0 {
			return Size{}, fmt.Errorf("layout: custom paper needs positive width and height")
		}
		return Size{Width: customW, Height: customH}, nil
	}
	p, ok := LookupPaper(name)
	if !ok {
		return Size{}, fmt.Errorf("layout: unknown paper size %q", name)
	}
	w, h := Convert(p.Width, UnitMM, target), Convert(p.Height, UnitMM, target)
	if orientation == Landscape {
		w, h = h, w
	}
	return Size{Width: w, Height: h}, nil
}
