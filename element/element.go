// Package element 定义报表文档树：报表、页面、分节与各类可绘制元素。
//
// 元素是一个封闭的和类型（Kind + 对应的属性载荷），渲染、序列化与属性描述
// 都通过对 Kind 的穷举 switch 完成，而不是多层继承。
package element

import (
	"fmt"
	"sync/atomic"

	"github.com/ByLCY/reportkit/layout"
)

// Kind 是元素的类型判别符，同时也是 JSON 中 type 字段的取值。
type Kind string

const (
	KindReport    Kind = "report"
	KindPage      Kind = "page"
	KindSection   Kind = "section"
	KindGroup     Kind = "group"
	KindText      Kind = "text"
	KindImage     Kind = "image"
	KindLine      Kind = "line"
	KindRectangle Kind = "rectangle"
	KindEllipse   Kind = "ellipse"
	KindCustom    Kind = "custom"
)

// Kinds lists every element kind.
var Kinds = []Kind{KindReport, KindPage, KindSection, KindGroup, KindText, KindImage, KindLine, KindRectangle, KindEllipse, KindCustom}

// IsContainer reports whether elements of this kind own children.
func (k Kind) IsContainer() bool {
	switch k {
	case KindReport, KindPage, KindSection, KindGroup:
		return true
	}
	return false
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, kk := range Kinds {
		if kk == k {
			return true
		}
	}
	return false
}

var uidCounter atomic.Int64

// NextUID 返回进程内唯一的元素标识。
func NextUID() int64 { return uidCounter.Add(1) }

// Element 是文档树中的一个节点。坐标相对于父容器，单位由报表 units 决定。
type Element struct {
	Kind    Kind
	UID     int64
	Left    float64
	Top     float64
	Width   float64
	Height  float64
	Visible bool
	Locked  bool
	Name    string
	ZOrder  int
	Link    string

	Text    *TextProps
	Image   *ImageProps
	Line    *LineProps
	Shape   *ShapeProps
	Custom  *CustomProps
	Group   *GroupProps
	Section *SectionProps
	Page    *PageProps
	Report  *ReportProps

	Children []*Element
}

// TextProps 文本块属性。
type TextProps struct {
	Text        string
	FontFamily  string
	FontSize    float64 // pt
	Bold        bool
	Italic      bool
	Color       string
	BkColor     string
	Align       layout.HAlign
	VAlign      layout.VAlign
	LineHeight  float64
	Columns     int
	ColumnGap   float64
	LineBreak   bool
	AutoGrow    bool
	Rotation    float64 // 度
	BorderColor string
	BorderWidth float64
	Padding     float64
}

// ImageFit 图片填充方式。
type ImageFit string

const (
	FitFill  ImageFit = "fill"
	FitCover ImageFit = "cover"
)

// ImageProps 图片属性。Source 为资源名或自包含的 data URI。
type ImageProps struct {
	Source string
	Fit    ImageFit
}

// LineProps 直线属性。直线从 (Left,Top) 指向 (Left+Width, Top+Height)，宽高可为负。
type LineProps struct {
	Color     string
	LineWidth float64
	Dash      string // "", "dash", "dot"
}

// ShapeProps 矩形/椭圆属性。Percent < 100 时只绘制部分（饼图/仪表效果）。
type ShapeProps struct {
	BorderColor string
	BorderWidth float64
	BkColor     string
	Radius      float64
	Percent     float64
}

// CustomProps 自定义插件元素属性，绘制完全交给注册的插件。
type CustomProps struct {
	Plugin string
	Values map[string]any
}

// GroupProps 分组属性。
type GroupProps struct {
	Clip bool
}

// SectionKind 分节类型。
type SectionKind string

const (
	SectionDocHead SectionKind = "doc_head"
	SectionDocBack SectionKind = "doc_back"
	SectionHeader  SectionKind = "header"
	SectionFooter  SectionKind = "footer"
	SectionGeneric SectionKind = "generic"
	SectionBody    SectionKind = "body"
)

// BreakMode 分节分页指令。
type BreakMode string

const (
	BreakNone   BreakMode = "none"
	BreakBefore BreakMode = "before"
	BreakAfter  BreakMode = "after"
)

// SectionProps 分节属性。
type SectionProps struct {
	SectionKind SectionKind
	Break       BreakMode
	Repeat      int
}

// PageProps 页面属性。
type PageProps struct {
	Paper        string
	Orientation  layout.Orientation
	CustomWidth  float64
	CustomHeight float64
}

// New 创建一个带默认值的元素。
func New(kind Kind) *Element {
	e := &Element{Kind: kind, UID: NextUID()}
	initWithDef(e)
	return e
}

// initWithDef 为元素填充默认值；保存时等于默认值的字段会被省略，加载时再由此恢复。
func initWithDef(e *Element) {
	e.Visible = true
	switch e.Kind {
	case KindText:
		e.Text = &TextProps{FontSize: 12, Color: "#000000", Align: layout.AlignLeft, VAlign: layout.VAlignTop, LineHeight: layout.DefaultLineHeight, Columns: 1, LineBreak: true}
	case KindImage:
		e.Image = &ImageProps{Fit: FitFill}
	case KindLine:
		e.Line = &LineProps{Color: "#000000", LineWidth: 1}
	case KindRectangle, KindEllipse:
		e.Shape = &ShapeProps{BorderColor: "#000000", BorderWidth: 1, Percent: 100}
	case KindCustom:
		e.Custom = &CustomProps{Values: map[string]any{}}
	case KindGroup:
		e.Group = &GroupProps{Clip: true}
	case KindSection:
		e.Section = &SectionProps{SectionKind: SectionGeneric, Break: BreakNone, Repeat: 1}
	case KindPage:
		e.Page = &PageProps{Paper: "A4", Orientation: layout.Portrait}
	case KindReport:
		e.Report = &ReportProps{Version: CurrentVersion, Units: layout.UnitMM}
	}
}

// Rect 返回元素在父容器坐标系中的矩形。normalized 为 true 时保证宽高非负；
// 直线永远不做规范化，因为方向决定了它的绘制。
func (e *Element) Rect(normalized bool) layout.Rect {
	r := layout.NewRect(e.Left, e.Top, e.Width, e.Height)
	if normalized && e.Kind != KindLine {
		return r.Normalized()
	}
	return r
}

// SetRect 设置位置与尺寸。
func (e *Element) SetRect(r layout.Rect) {
	e.Left, e.Top, e.Width, e.Height = r.Left, r.Top, r.Width, r.Height
}

// Add 追加子元素；分节会在页面上重新排序。
func (e *Element) Add(children ...*Element) error {
	if !e.Kind.IsContainer() {
		return fmt.Errorf("element: %s cannot own children", e.Kind)
	}
	for _, c := range children {
		if c == nil {
			continue
		}
		if err := checkChildKind(e.Kind, c.Kind); err != nil {
			return err
		}
		e.Children = append(e.Children, c)
	}
	if e.Kind == KindPage {
		SortSections(e)
	}
	return nil
}

// Remove 删除指定 UID 的直接子元素。
func (e *Element) Remove(uid int64) bool {
	for i, c := range e.Children {
		if c.UID == uid {
			e.Children = append(e.Children[:i], e.Children[i+1:]...)
			return true
		}
	}
	return false
}

func checkChildKind(parent, child Kind) error {
	switch parent {
	case KindReport:
		if child != KindPage {
			return fmt.Errorf("element: report children must be pages, got %s", child)
		}
	case KindPage:
		if child != KindSection {
			return fmt.Errorf("element: page children must be sections, got %s", child)
		}
	default:
		if child == KindReport || child == KindPage || child == KindSection {
			return fmt.Errorf("element: %s cannot contain %s", parent, child)
		}
	}
	return nil
}

// Clone 深拷贝元素及其子树，并为所有节点重新分配 UID（粘贴语义）。
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	c := *e
	c.UID = NextUID()
	if e.Text != nil {
		t := *e.Text
		c.Text = &t
	}
	if e.Image != nil {
		v := *e.Image
		c.Image = &v
	}
	if e.Line != nil {
		v := *e.Line
		c.Line = &v
	}
	if e.Shape != nil {
		v := *e.Shape
		c.Shape = &v
	}
	if e.Custom != nil {
		v := CustomProps{Plugin: e.Custom.Plugin, Values: make(map[string]any, len(e.Custom.Values))}
		for k, val := range e.Custom.Values {
			v.Values[k] = val
		}
		c.Custom = &v
	}
	if e.Group != nil {
		v := *e.Group
		c.Group = &v
	}
	if e.Section != nil {
		v := *e.Section
		c.Section = &v
	}
	if e.Page != nil {
		v := *e.Page
		c.Page = &v
	}
	if e.Report != nil {
		c.Report = e.Report.clone()
	}
	c.Children = make([]*Element, 0, len(e.Children))
	for _, ch := range e.Children {
		c.Children = append(c.Children, ch.Clone())
	}
	return &c
}

// Walk 先序遍历子树，fn 返回 false 时跳过该节点的子树。
func (e *Element) Walk(fn func(el *Element) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// FindByName 在子树中按名称查找第一个元素。
func (e *Element) FindByName(name string) *Element {
	var found *Element
	e.Walk(func(el *Element) bool {
		if found != nil {
			return false
		}
		if el.Name == name {
			found = el
			return false
		}
		return true
	})
	return found
}

func (e *Element) String() string {
	if e.Name != "" {
		return fmt.Sprintf("%s(%s#%d)", e.Kind, e.Name, e.UID)
	}
	return fmt.Sprintf("%s#%d", e.Kind, e.UID)
}
