package element

import (
	"github.com/ByLCY/reportkit/layout"
)

// PropType 属性值类型，决定序列化时的类型转换。
type PropType string

const (
	PropNumber PropType = "number"
	PropInt    PropType = "int"
	PropBool   PropType = "bool"
	PropString PropType = "string"
	PropColor  PropType = "color"
	PropEnum   PropType = "enum"
)

// Prop 描述一个可持久化、可在属性面板编辑的字段。
// 描述表按 Kind 组织，替代编辑器子类化：宿主可以直接用它生成属性面板。
type Prop struct {
	Key     string
	Type    PropType
	Default any
	Options []string
	// Always 为 true 时即使等于默认值也会写出（如 version）。
	Always bool
	Get    func(e *Element) any
	Set    func(e *Element, v any)
}

func numberProp(key string, def float64, get func(e *Element) *float64) Prop {
	return Prop{Key: key, Type: PropNumber, Default: def,
		Get: func(e *Element) any { return *get(e) },
		Set: func(e *Element, v any) { *get(e) = toFloat(v) }}
}

func intProp(key string, def int, get func(e *Element) *int) Prop {
	return Prop{Key: key, Type: PropInt, Default: def,
		Get: func(e *Element) any { return *get(e) },
		Set: func(e *Element, v any) { *get(e) = int(toFloat(v)) }}
}

func boolProp(key string, def bool, get func(e *Element) *bool) Prop {
	return Prop{Key: key, Type: PropBool, Default: def,
		Get: func(e *Element) any { return *get(e) },
		Set: func(e *Element, v any) { *get(e) = toBool(v) }}
}

func stringProp(key string, typ PropType, def string, get func(e *Element) *string, options ...string) Prop {
	return Prop{Key: key, Type: typ, Default: def, Options: options,
		Get: func(e *Element) any { return *get(e) },
		Set: func(e *Element, v any) { *get(e) = toString(v) }}
}

func always(p Prop) Prop {
	p.Always = true
	return p
}

var baseProps = []Prop{
	numberProp("left", 0, func(e *Element) *float64 { return &e.Left }),
	numberProp("top", 0, func(e *Element) *float64 { return &e.Top }),
	numberProp("width", 0, func(e *Element) *float64 { return &e.Width }),
	numberProp("height", 0, func(e *Element) *float64 { return &e.Height }),
	boolProp("visible", true, func(e *Element) *bool { return &e.Visible }),
	boolProp("locked", false, func(e *Element) *bool { return &e.Locked }),
	stringProp("name", PropString, "", func(e *Element) *string { return &e.Name }),
	intProp("zorder", 0, func(e *Element) *int { return &e.ZOrder }),
	stringProp("link", PropString, "", func(e *Element) *string { return &e.Link }),
}

var descriptors = map[Kind][]Prop{
	KindText: append(append([]Prop{}, baseProps...),
		stringProp("text", PropString, "", func(e *Element) *string { return &e.Text.Text }),
		stringProp("fontFamily", PropString, "", func(e *Element) *string { return &e.Text.FontFamily }),
		numberProp("fontSize", 12, func(e *Element) *float64 { return &e.Text.FontSize }),
		boolProp("bold", false, func(e *Element) *bool { return &e.Text.Bold }),
		boolProp("italic", false, func(e *Element) *bool { return &e.Text.Italic }),
		stringProp("color", PropColor, "#000000", func(e *Element) *string { return &e.Text.Color }),
		stringProp("bkColor", PropColor, "", func(e *Element) *string { return &e.Text.BkColor }),
		Prop{Key: "align", Type: PropEnum, Default: string(layout.AlignLeft), Options: []string{"left", "center", "right", "justify"},
			Get: func(e *Element) any { return string(e.Text.Align) },
			Set: func(e *Element, v any) { e.Text.Align = layout.HAlign(toString(v)) }},
		Prop{Key: "vAlign", Type: PropEnum, Default: string(layout.VAlignTop), Options: []string{"top", "middle", "bottom"},
			Get: func(e *Element) any { return string(e.Text.VAlign) },
			Set: func(e *Element, v any) { e.Text.VAlign = layout.VAlign(toString(v)) }},
		numberProp("lineHeight", layout.DefaultLineHeight, func(e *Element) *float64 { return &e.Text.LineHeight }),
		intProp("columns", 1, func(e *Element) *int { return &e.Text.Columns }),
		numberProp("columnGap", 0, func(e *Element) *float64 { return &e.Text.ColumnGap }),
		boolProp("lineBreak", true, func(e *Element) *bool { return &e.Text.LineBreak }),
		boolProp("autoGrow", false, func(e *Element) *bool { return &e.Text.AutoGrow }),
		numberProp("rotation", 0, func(e *Element) *float64 { return &e.Text.Rotation }),
		stringProp("borderColor", PropColor, "", func(e *Element) *string { return &e.Text.BorderColor }),
		numberProp("borderWidth", 0, func(e *Element) *float64 { return &e.Text.BorderWidth }),
		numberProp("padding", 0, func(e *Element) *float64 { return &e.Text.Padding }),
	),
	KindImage: append(append([]Prop{}, baseProps...),
		stringProp("image", PropString, "", func(e *Element) *string { return &e.Image.Source }),
		Prop{Key: "fit", Type: PropEnum, Default: string(FitFill), Options: []string{"fill", "cover"},
			Get: func(e *Element) any { return string(e.Image.Fit) },
			Set: func(e *Element, v any) { e.Image.Fit = ImageFit(toString(v)) }},
	),
	KindLine: append(append([]Prop{}, baseProps...),
		stringProp("color", PropColor, "#000000", func(e *Element) *string { return &e.Line.Color }),
		numberProp("lineWidth", 1, func(e *Element) *float64 { return &e.Line.LineWidth }),
		stringProp("dash", PropEnum, "", func(e *Element) *string { return &e.Line.Dash }, "", "dash", "dot"),
	),
	KindRectangle: shapeProps(),
	KindEllipse:   shapeProps(),
	KindCustom: append(append([]Prop{}, baseProps...),
		stringProp("plugin", PropString, "", func(e *Element) *string { return &e.Custom.Plugin }),
	),
	KindGroup: append(append([]Prop{}, baseProps...),
		boolProp("clip", true, func(e *Element) *bool { return &e.Group.Clip }),
	),
	KindSection: {
		stringProp("name", PropString, "", func(e *Element) *string { return &e.Name }),
		numberProp("height", 0, func(e *Element) *float64 { return &e.Height }),
		boolProp("visible", true, func(e *Element) *bool { return &e.Visible }),
		Prop{Key: "kind", Type: PropEnum, Default: string(SectionGeneric), Options: []string{"doc_head", "doc_back", "header", "footer", "generic", "body"},
			Get: func(e *Element) any { return string(e.Section.SectionKind) },
			Set: func(e *Element, v any) { e.Section.SectionKind = SectionKind(toString(v)) }},
		Prop{Key: "break", Type: PropEnum, Default: string(BreakNone), Options: []string{"none", "before", "after"},
			Get: func(e *Element) any { return string(e.Section.Break) },
			Set: func(e *Element, v any) { e.Section.Break = BreakMode(toString(v)) }},
		intProp("repeat", 1, func(e *Element) *int { return &e.Section.Repeat }),
	},
	KindPage: {
		stringProp("name", PropString, "", func(e *Element) *string { return &e.Name }),
		stringProp("paper", PropString, "A4", func(e *Element) *string { return &e.Page.Paper }),
		Prop{Key: "orientation", Type: PropEnum, Default: string(layout.Portrait), Options: []string{"portrait", "landscape"},
			Get: func(e *Element) any { return string(e.Page.Orientation) },
			Set: func(e *Element, v any) { e.Page.Orientation = layout.Orientation(toString(v)) }},
		numberProp("paperWidth", 0, func(e *Element) *float64 { return &e.Page.CustomWidth }),
		numberProp("paperHeight", 0, func(e *Element) *float64 { return &e.Page.CustomHeight }),
	},
	KindReport: {
		always(intProp("version", CurrentVersion, func(e *Element) *int { return &e.Report.Version })),
		Prop{Key: "units", Type: PropEnum, Default: "mm", Options: []string{"mm", "cm", "in", "pt", "px"},
			// 未设置单位按毫米保存，与加载时的缺省一致。
			Get: func(e *Element) any {
				if e.Report.Units == layout.UnitNone {
					return layout.UnitMM.String()
				}
				return e.Report.Units.String()
			},
			Set: func(e *Element, v any) {
				if u, err := layout.ParseUnit(toString(v)); err == nil {
					e.Report.Units = u
				}
			}},
		stringProp("title", PropString, "", func(e *Element) *string { return &e.Report.Title }),
		stringProp("author", PropString, "", func(e *Element) *string { return &e.Report.Author }),
		stringProp("script", PropString, "", func(e *Element) *string { return &e.Report.Script }),
	},
}

func shapeProps() []Prop {
	return append(append([]Prop{}, baseProps...),
		stringProp("borderColor", PropColor, "#000000", func(e *Element) *string { return &e.Shape.BorderColor }),
		numberProp("borderWidth", 1, func(e *Element) *float64 { return &e.Shape.BorderWidth }),
		stringProp("bkColor", PropColor, "", func(e *Element) *string { return &e.Shape.BkColor }),
		numberProp("radius", 0, func(e *Element) *float64 { return &e.Shape.Radius }),
		numberProp("percent", 100, func(e *Element) *float64 { return &e.Shape.Percent }),
	)
}

// Descriptors 返回某类元素的属性描述表。
func Descriptors(kind Kind) []Prop { return descriptors[kind] }

// Descriptor 按键名查找属性描述。
func Descriptor(kind Kind, key string) (Prop, bool) {
	for _, p := range descriptors[kind] {
		if p.Key == key {
			return p, true
		}
	}
	return Prop{}, false
}
