package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// This file defines unit-safe types and helpers for lengths.

// Unit represents the unit a numeric position field is expressed in.
type Unit int

const (
	UnitNone Unit = iota // unit-less numbers like factors
	UnitMM               // millimeters
	UnitCM               // centimeters
	UnitIN               // inches
	UnitPT               // points
	UnitPX               // CSS pixels (96 per inch)
)

// Conversion constants between pt and mm.
const (
	PtToMm = 25.4 / 72
	MmToPt = 1.0 / PtToMm
	PxToMm = 25.4 / 96
	MmToPx = 1.0 / PxToMm
)

// mmPerUnit is the size of one unit expressed in millimeters.
var mmPerUnit = map[Unit]float64{
	UnitMM: 1,
	UnitCM: 10,
	UnitIN: 25.4,
	UnitPT: PtToMm,
	UnitPX: PxToMm,
}

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitMM:
		return "mm"
	case UnitCM:
		return "cm"
	case UnitIN:
		return "in"
	case UnitPT:
		return "pt"
	case UnitPX:
		return "px"
	default:
		return ""
	}
}

func (u Unit) String() string { return UnitToString(u) }

// ParseUnit accepts the short unit names used in documents.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mm":
		return UnitMM, nil
	case "cm":
		return UnitCM, nil
	case "in", "inch":
		return UnitIN, nil
	case "pt":
		return UnitPT, nil
	case "px":
		return UnitPX, nil
	}
	return UnitNone, fmt.Errorf("layout: unknown unit %q", s)
}

// Convert converts v from one unit to another. Converting to the same unit returns v unchanged.
func Convert(v float64, from, to Unit) float64 {
	if from == to || from == UnitNone || to == UnitNone {
		return v
	}
	return v * mmPerUnit[from] / mmPerUnit[to]
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// To converts this length to target unit. Unit-less lengths are taken as-is.
func (l Length) To(target Unit) float64 { return Convert(l.Value, l.Unit, target) }

func (l Length) ToMM() float64 { return l.To(UnitMM) }
func (l Length) ToPT() float64 { return l.To(UnitPT) }

// ParseRawLengthStr parses a length string such as "12pt" preserving its unit.
func ParseRawLengthStr(value string) Length {
	v := strings.TrimSpace(value)
	if v == "" {
		return Length{Value: 0, Unit: UnitNone}
	}
	lower := strings.ToLower(v)
	unit := UnitNone
	num := lower
	for _, suf := range []struct {
		s string
		u Unit
	}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}, {"px", UnitPX}} {
		if strings.HasSuffix(lower, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(lower, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{Value: 0, Unit: UnitNone}
	}
	return Length{Value: f, Unit: unit}
}

// ParseLengthIn parses value and returns it in the target unit; unit-less numbers are
// assumed to already be in target.
func ParseLengthIn(value string, target Unit) float64 {
	return ParseRawLengthStr(value).To(target)
}
