package paint

import (
	"fmt"
	"unicode/utf8"

	"github.com/ByLCY/reportkit/layout"
)

// Op 是 Recorder 记录下的一次绘图调用，Rect 已换算为页面绝对坐标（忽略旋转）。
type Op struct {
	Page int
	Name string
	Rect layout.Rect
	Text string
}

func (o Op) String() string {
	if o.Text != "" {
		return fmt.Sprintf("%d:%s(%q)@%.3f,%.3f", o.Page, o.Name, o.Text, o.Rect.Left, o.Rect.Top)
	}
	return fmt.Sprintf("%d:%s@%.3f,%.3f", o.Page, o.Name, o.Rect.Left, o.Rect.Top)
}

// FixedMetrics 是等宽的测量实现：每个字符宽 Advance，行高 Line。
type FixedMetrics struct {
	Advance float64
	Line    float64
}

func (m FixedMetrics) Measure(s string) float64 { return float64(utf8.RuneCountInString(s)) * m.Advance }
func (m FixedMetrics) LineHeight() float64      { return m.Line }

// Recorder 是不产生任何输出的 Canvas，只记录调用序列。用于测试与干跑（统计页数、检查布局）。
type Recorder struct {
	Unit    layout.Unit
	Info    DocInfo
	Ops     []Op
	Pages   []layout.Size
	Fonts   map[string]int
	Images  map[string]int
	Metrics func(style layout.TextStyle) layout.Metrics

	stack  []recState
	cur    recState
	inPage bool
}

type recState struct {
	dx, dy float64
	rot    float64
}

var _ Canvas = (*Recorder)(nil)

// NewRecorder 创建记录器。默认测量为等宽字体：字宽为字号的一半，行高等于字号。
func NewRecorder(unit layout.Unit) *Recorder {
	return &Recorder{Unit: unit, Fonts: map[string]int{}, Images: map[string]int{}}
}

func (r *Recorder) metrics(style layout.TextStyle) layout.Metrics {
	if r.Metrics != nil {
		return r.Metrics(style)
	}
	size := style.FontSize
	if size <= 0 {
		size = 12
	}
	line := layout.Convert(size, layout.UnitPT, r.Unit)
	return FixedMetrics{Advance: line / 2, Line: line}
}

func (r *Recorder) record(name string, rect layout.Rect, text string) {
	r.Ops = append(r.Ops, Op{Page: len(r.Pages) - 1, Name: name, Rect: rect.Translate(r.cur.dx, r.cur.dy), Text: text})
}

// Named 返回指定名称的全部记录。
func (r *Recorder) Named(name string) []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Name == name {
			out = append(out, op)
		}
	}
	return out
}

// Texts 按顺序返回所有绘制过的文本。
func (r *Recorder) Texts() []string {
	var out []string
	for _, op := range r.Named("text") {
		out = append(out, op.Text)
	}
	return out
}

func (r *Recorder) Units() layout.Unit { return r.Unit }

func (r *Recorder) StartDoc(info DocInfo) error {
	r.Info = info
	r.Ops, r.Pages = nil, nil
	return nil
}

func (r *Recorder) EndDoc() error { return nil }

func (r *Recorder) StartPage(width, height float64) error {
	if r.inPage {
		return fmt.Errorf("paint: StartPage called twice without EndPage")
	}
	r.inPage = true
	r.Pages = append(r.Pages, layout.Size{Width: width, Height: height})
	r.cur, r.stack = recState{}, nil
	r.record("page", layout.NewRect(0, 0, width, height), "")
	return nil
}

func (r *Recorder) EndPage() error {
	r.inPage = false
	return nil
}

func (r *Recorder) AddFont(name string, data []byte) error {
	r.Fonts[name] = len(data)
	return nil
}

func (r *Recorder) AddImage(name string, data []byte) error {
	r.Images[name] = len(data)
	return nil
}

func (r *Recorder) Save() { r.stack = append(r.stack, r.cur) }

func (r *Recorder) Restore() {
	if n := len(r.stack); n > 0 {
		r.cur = r.stack[n-1]
		r.stack = r.stack[:n-1]
	}
}

func (r *Recorder) Translate(dx, dy float64) { r.cur.dx += dx; r.cur.dy += dy }
func (r *Recorder) Rotate(degrees float64)   { r.cur.rot += degrees }
func (r *Recorder) Clip(rect layout.Rect)    { r.record("clip", rect, "") }

func (r *Recorder) FillRect(rect layout.Rect, _ float64, _ layout.Color) { r.record("fillRect", rect, "") }
func (r *Recorder) StrokeRect(rect layout.Rect, _ float64, _ Stroke)    { r.record("strokeRect", rect, "") }

func (r *Recorder) Line(x1, y1, x2, y2 float64, _ Stroke) {
	r.record("line", layout.NewRect(x1, y1, x2-x1, y2-y1), "")
}

func (r *Recorder) FillEllipse(rect layout.Rect, start, end float64, _ layout.Color) {
	r.record("fillEllipse", rect, sweepLabel(start, end))
}

func (r *Recorder) StrokeEllipse(rect layout.Rect, start, end float64, _ Stroke) {
	r.record("strokeEllipse", rect, sweepLabel(start, end))
}

func sweepLabel(start, end float64) string {
	if FullSweep(start, end) {
		return ""
	}
	return fmt.Sprintf("%g..%g", start, end)
}

func (r *Recorder) DrawImage(name string, rect layout.Rect, _ Fit) error {
	if _, ok := r.Images[name]; !ok {
		return fmt.Errorf("paint: image %q not loaded", name)
	}
	r.record("image", rect, name)
	return nil
}

func (r *Recorder) DrawSVG(name string, rect layout.Rect) error {
	if _, ok := r.Images[name]; !ok {
		return fmt.Errorf("paint: svg %q not loaded", name)
	}
	r.record("svg", rect, name)
	return nil
}

func (r *Recorder) DrawText(text string, rect layout.Rect, style layout.TextStyle) float64 {
	res := layout.LayoutText(text, rect, style, r.metrics(style))
	r.record("text", rect, text)
	return res.Height
}

func (r *Recorder) MeasureText(text string, width float64, style layout.TextStyle) float64 {
	return layout.MeasureText(text, width, style, r.metrics(style))
}

func (r *Recorder) BeginHotSpot(name, link string, rect layout.Rect) {
	r.record("hotspot", rect, link)
}

func (r *Recorder) EndHotSpot() {}
