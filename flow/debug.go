package flow

import (
	"encoding/json"
	"os"
)

type debugPlacement struct {
	Section string  `json:"section"`
	Kind    string  `json:"kind"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Offset  float64 `json:"offset,omitempty"`
	Items   int     `json:"items"`
	Slot    int     `json:"slot,omitempty"`
}

type debugSheet struct {
	Kind       SheetKind        `json:"kind"`
	Width      float64          `json:"width"`
	Height     float64          `json:"height"`
	Placements []debugPlacement `json:"placements"`
}

// DebugJSON 把分页结果转换为便于查看的 JSON。
func DebugJSON(sheets []Sheet) ([]byte, error) {
	out := make([]debugSheet, 0, len(sheets))
	for _, s := range sheets {
		ds := debugSheet{Kind: s.Kind, Width: s.Width, Height: s.Height, Placements: []debugPlacement{}}
		for _, p := range s.Placements {
			items := len(p.Section.Children)
			if p.Items != nil {
				items = len(p.Items)
			}
			name := p.Section.Name
			kind := ""
			if p.Section.Section != nil {
				kind = string(p.Section.Section.SectionKind)
			}
			ds.Placements = append(ds.Placements, debugPlacement{
				Section: name, Kind: kind,
				Left: p.Left, Top: p.Top, Width: p.Width, Height: p.Height,
				Offset: p.Offset, Items: items, Slot: p.Slot,
			})
		}
		out = append(out, ds)
	}
	return json.MarshalIndent(out, "", "  ")
}

// WriteDebugJSON 将分页结果输出为 JSON，便于调试或可视化。
func WriteDebugJSON(sheets []Sheet, path string) error {
	data, err := DebugJSON(sheets)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
