package renderer

import (
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sort"

	"github.com/ByLCY/reportkit/binding"
	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/flow"
	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/paint"
)

var (
	markerColor  = layout.Color{R: 160, G: 160, B: 160, A: 255, Set: true}
	errorColor   = layout.Color{R: 220, G: 0, B: 0, A: 255, Set: true}
	markerStroke = paint.Stroke{Color: markerColor, Width: 0.5, Dash: paint.DashDash}
)

// paintSheet 绘制一张纸。编辑模式下额外绘制分页标记。
func (r *run) paintSheet(sheet flow.Sheet) error {
	if err := r.cv.StartPage(sheet.Width, sheet.Height); err != nil {
		return err
	}
	seen := 0
	if r.resolver != nil {
		seen = len(r.resolver.Errors())
	}
	for _, p := range sheet.Placements {
		if err := r.paintPlacement(p); err != nil {
			return err
		}
	}
	if r.mode == ModeEdit && sheet.Page != nil {
		r.paintBreaks(sheet)
	}
	if r.resolver != nil {
		for _, err := range r.resolver.Errors()[seen:] {
			r.isolate("", err)
		}
	}
	return r.cv.EndPage()
}

// paintBreaks 在编辑视图中用虚线标出执行时的分页位置。第一个位置是主流程起点，不画。
func (r *run) paintBreaks(sheet flow.Sheet) {
	breaks := flow.ComputePageBreaks(sheet.Page, r.units)
	for _, y := range breaks[min(1, len(breaks)):] {
		r.cv.Line(0, y, sheet.Width, y, markerStroke)
	}
}

func (r *run) paintPlacement(p flow.Placement) error {
	s := p.Section
	if s == nil {
		return nil
	}
	var lay *flow.Layout
	if r.mode == ModeExecute {
		// 沿用排版时的增高结果；绘制时页码已定，重新测量可能与已排好的位置冲突。
		lay = p.Layout
		if lay == nil {
			lay = flow.GrowSection(s, r.measure(p.Overrides))
		}
	}
	items := p.Items
	if items == nil {
		items = s.Children
	}

	r.cv.Save()
	defer r.cv.Restore()
	if p.Items != nil {
		// body 分块只显示落在本块内的部分。
		r.cv.Clip(layout.NewRect(p.Left, p.Top, p.Width, p.Height))
	}
	r.cv.Translate(p.Left, p.Top-p.Offset)
	return r.paintChildren(items, lay, p.Overrides)
}

// byZOrder 返回按 z 序稳定排序后的副本，z 序相同保持文档顺序。
func byZOrder(items []*element.Element) []*element.Element {
	out := make([]*element.Element, 0, len(items))
	for _, e := range items {
		if e != nil {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZOrder < out[j].ZOrder })
	return out
}

func (r *run) paintChildren(items []*element.Element, lay *flow.Layout, ovs map[int64]flow.Override) error {
	for _, e := range byZOrder(items) {
		if err := r.paintElement(e, lay.Rect(e), ovs); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) paintElement(e *element.Element, rect layout.Rect, ovs map[int64]flow.Override) error {
	ov := ovs[e.UID]
	visible := e.Visible
	if ov.Visible != nil {
		visible = *ov.Visible
	}
	if !visible {
		return nil
	}

	if e.Link != "" {
		link, err := r.resolve(e.Link)
		if err != nil {
			return err
		}
		r.cv.BeginHotSpot(e.Name, link, rect.Normalized())
		defer r.cv.EndHotSpot()
	}

	switch e.Kind {
	case element.KindText:
		return r.paintText(e, rect, ovs)
	case element.KindImage:
		return r.paintImage(e, rect, ov)
	case element.KindLine:
		r.paintLine(e, rect)
	case element.KindRectangle, element.KindEllipse:
		r.paintShape(e, rect, ov)
	case element.KindCustom:
		return r.paintCustom(e, rect)
	case element.KindGroup:
		r.cv.Save()
		defer r.cv.Restore()
		r.cv.Translate(rect.Left, rect.Top)
		if e.Group != nil && e.Group.Clip {
			r.cv.Clip(layout.NewRect(0, 0, rect.Width, rect.Height))
		}
		// 分组内部不做自动增高，子元素使用设计矩形。
		return r.paintChildren(e.Children, nil, ovs)
	case element.KindReport, element.KindPage, element.KindSection:
		r.logger.Warn("分节内出现不可绘制的元素", slog.String("kind", string(e.Kind)), slog.String("name", e.Name))
	default:
		r.logger.Warn("未知的元素类型", slog.String("kind", string(e.Kind)), slog.String("name", e.Name))
	}
	return nil
}

// resolve 对文本做 ${} 插值，编辑模式原样返回。
func (r *run) resolve(s string) (string, error) {
	if r.resolver == nil {
		return s, nil
	}
	return r.resolver.Resolve(s)
}

func textOf(e *element.Element, ovs map[int64]flow.Override) string {
	if ov, ok := ovs[e.UID]; ok && ov.Text != nil {
		return *ov.Text
	}
	return e.Text.Text
}

func textStyle(e *element.Element, ovs map[int64]flow.Override) layout.TextStyle {
	t := e.Text
	color := t.Color
	if ov, ok := ovs[e.UID]; ok && ov.Color != nil {
		color = *ov.Color
	}
	return layout.TextStyle{
		FontFamily: t.FontFamily,
		FontSize:   t.FontSize,
		Bold:       t.Bold,
		Italic:     t.Italic,
		Color:      layout.ColorOr(color, layout.Black),
		Align:      t.Align,
		VAlign:     t.VAlign,
		LineHeight: t.LineHeight,
		Columns:    t.Columns,
		ColumnGap:  t.ColumnGap,
		NoWrap:     !t.LineBreak,
	}
}

func (r *run) paintText(e *element.Element, rect layout.Rect, ovs map[int64]flow.Override) error {
	t := e.Text
	text, err := r.resolve(textOf(e, ovs))
	if err != nil {
		return err
	}
	bk := t.BkColor
	if ov, ok := ovs[e.UID]; ok && ov.BkColor != nil {
		bk = *ov.BkColor
	}

	if t.Rotation != 0 {
		// 绕矩形中心旋转，之后在以中心为原点的坐标系里绘制。
		r.cv.Save()
		defer r.cv.Restore()
		r.cv.Translate(rect.Left+rect.Width/2, rect.Top+rect.Height/2)
		r.cv.Rotate(t.Rotation)
		rect = layout.NewRect(-rect.Width/2, -rect.Height/2, rect.Width, rect.Height)
	}
	if c := layout.ColorOr(bk, layout.Color{}); !c.IsNone() {
		r.cv.FillRect(rect, 0, c)
	}
	inner := rect
	if pad := t.Padding; pad > 0 {
		inner = layout.NewRect(rect.Left+pad, rect.Top+pad, math.Max(0, rect.Width-2*pad), math.Max(0, rect.Height-2*pad))
	}
	if text != "" {
		r.cv.DrawText(text, inner, textStyle(e, ovs))
	}
	if t.BorderWidth > 0 {
		if c := layout.ColorOr(t.BorderColor, layout.Color{}); !c.IsNone() {
			r.cv.StrokeRect(rect, 0, paint.Stroke{Color: c, Width: t.BorderWidth})
		}
	}
	return nil
}

func (r *run) paintImage(e *element.Element, rect layout.Rect, ov flow.Override) error {
	source := e.Image.Source
	if ov.Image != nil {
		source = *ov.Image
	}
	source, err := r.resolve(source)
	if err != nil {
		return err
	}
	ref, err := r.image(source)
	if err == nil {
		if ref.svg {
			err = r.cv.DrawSVG(ref.name, rect)
		} else {
			err = r.cv.DrawImage(ref.name, rect, paint.Fit(e.Image.Fit))
		}
	}
	if err != nil {
		if source != "" {
			r.isolate(elementName(e), err)
		}
		// 缺失的图片画成虚线框，编辑时能看到元素的位置。
		r.cv.StrokeRect(rect, 0, markerStroke)
	}
	return nil
}

func (r *run) paintLine(e *element.Element, rect layout.Rect) {
	l := e.Line
	c := layout.ColorOr(l.Color, layout.Black)
	r.cv.Line(rect.Left, rect.Top, rect.Right(), rect.Bottom(), paint.Stroke{Color: c, Width: l.LineWidth, Dash: paint.Dash(l.Dash)})
}

// paintShape 绘制矩形或椭圆。percent < 100 时椭圆画成从 12 点方向顺时针的扇形，
// 矩形从左向右按比例填充；percent <= 0 时什么也不画。
func (r *run) paintShape(e *element.Element, rect layout.Rect, ov flow.Override) {
	sh := e.Shape
	bkValue := sh.BkColor
	if ov.BkColor != nil {
		bkValue = *ov.BkColor
	}
	bk := layout.ColorOr(bkValue, layout.Color{})
	stroke := paint.Stroke{Color: layout.ColorOr(sh.BorderColor, layout.Color{}), Width: sh.BorderWidth}
	if sh.Percent <= 0 {
		return
	}
	start, end, partial := paint.PercentSweep(sh.Percent)

	if e.Kind == element.KindEllipse {
		if !partial {
			start, end = 0, 360
		}
		if !bk.IsNone() {
			r.cv.FillEllipse(rect, start, end, bk)
		}
		if stroke.Visible() {
			r.cv.StrokeEllipse(rect, start, end, stroke)
		}
		return
	}

	shape := rect
	if partial {
		shape.Width = rect.Width * sh.Percent / 100
	}
	radius := sh.Radius
	if limit := math.Min(shape.Width, shape.Height) / 2; radius > limit {
		radius = limit
	}
	if !bk.IsNone() {
		r.cv.FillRect(shape, radius, bk)
	}
	if stroke.Visible() {
		r.cv.StrokeRect(shape, radius, stroke)
	}
}

func (r *run) paintCustom(e *element.Element, rect layout.Rect) error {
	name := e.Custom.Plugin
	p, err := element.LookupPlugin(name)
	if err == nil {
		err = r.callPlugin(p, e, rect)
	}
	if err == nil {
		return nil
	}
	perr := &PluginError{Plugin: name, Element: elementName(e), Err: err}
	if r.policies.Plugin == binding.Halt {
		return perr
	}
	r.isolate(elementName(e), perr)
	r.cv.StrokeRect(rect, 0, paint.Stroke{Color: errorColor, Width: 0.5})
	r.cv.DrawText(fmt.Sprintf("%s: %v", name, err), rect, layout.TextStyle{FontSize: 7, Color: errorColor})
	return nil
}

// callPlugin 在平移到元素左上角并裁剪到元素范围的坐标系中调用插件，插件 panic 视为错误。
func (r *run) callPlugin(p element.Plugin, e *element.Element, rect layout.Rect) (err error) {
	values, defaults := element.PluginValues(p, e.Custom.Values)
	link := e.Link
	if r.resolver != nil {
		link = r.resolver.MustResolve(link)
	}
	ctx := &element.PluginContext{
		Canvas:   r.cv,
		Size:     layout.Size{Width: rect.Width, Height: rect.Height},
		Data:     r.data,
		Values:   values,
		Defaults: defaults,
		Link:     link,
		Resolve: func(text string) string {
			if r.resolver == nil {
				return text
			}
			return r.resolver.MustResolve(text)
		},
	}
	r.cv.Save()
	defer r.cv.Restore()
	r.cv.Translate(rect.Left, rect.Top)
	r.cv.Clip(layout.NewRect(0, 0, rect.Width, rect.Height))
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Debug("插件 panic", slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return p.Render(ctx)
}

func elementName(e *element.Element) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("%s#%d", e.Kind, e.UID)
}
