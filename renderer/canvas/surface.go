// Package canvasrenderer 是基于 github.com/tdewolff/canvas 的共享绘图表面，
// 光栅（display）与 PDF 两个后端都在它之上实现 paint.Canvas。
//
// tdewolff/canvas 的原生单位为毫米，Surface 在边界处把文档单位换算为毫米；
// 坐标系设置为 CartesianIV，使原点位于左上角，与文档坐标保持一致。
package canvasrenderer

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/tdewolff/canvas"
	xdraw "golang.org/x/image/draw"

	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/logging"
	"github.com/ByLCY/reportkit/paint"
)

// HotSpot 是页面上的一个可点击区域，Rect 为页面绝对坐标（文档单位）。
type HotSpot struct {
	Page int
	Name string
	Link string
	Rect layout.Rect
}

// Surface 实现 paint.Canvas 中与输出格式无关的部分。
type Surface struct {
	unit   layout.Unit
	logger *slog.Logger

	Fonts  *FontSet
	Images *ImageStore

	page   *canvas.Canvas
	ctx    *canvas.Context
	pageNo int
	width  float64
	height float64

	stack []state
	cur   state

	hotspots []HotSpot
}

// state 跟踪平移、旋转与裁剪区。dx/dy 为文档单位的页面偏移；clip 位于视图空间
// （页面毫米坐标，原点在左上角），clipBox 是它的外接矩形。
type state struct {
	dx, dy  float64
	rotated bool

	clip     *canvas.Path
	clipBox  canvas.Rect
	clipAxis bool // 裁剪区是轴对齐矩形，此时 clip 与 clipBox 相同
}

// NewSurface 创建表面，unit 为文档单位。
func NewSurface(unit layout.Unit, logger *slog.Logger) *Surface {
	return &Surface{
		unit:   unit,
		logger: logging.Or(logger),
		Fonts:  NewFontSet(),
		Images: NewImageStore(),
		pageNo: -1,
	}
}

func (s *Surface) mm(v float64) float64 { return layout.Convert(v, s.unit, layout.UnitMM) }

func (s *Surface) fromMM(v float64) float64 { return layout.Convert(v, layout.UnitMM, s.unit) }

// Units 返回文档单位。
func (s *Surface) Units() layout.Unit { return s.unit }

// BeginPage 开始新的一页，width/height 为文档单位。
func (s *Surface) BeginPage(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("页面尺寸无效: %.3f x %.3f", width, height)
	}
	s.width, s.height = s.mm(width), s.mm(height)
	s.page = canvas.New(s.width, s.height)
	s.ctx = canvas.NewContext(s.page)
	s.ctx.SetCoordSystem(canvas.CartesianIV)
	s.pageNo++
	s.stack = s.stack[:0]
	s.cur = state{}
	return nil
}

// FinishPage 结束当前页并返回它的画布。
func (s *Surface) FinishPage() (*canvas.Canvas, error) {
	if s.page == nil {
		return nil, fmt.Errorf("没有正在绘制的页面")
	}
	c := s.page
	s.page, s.ctx = nil, nil
	return c, nil
}

// PageSize 返回当前页的尺寸（毫米）。
func (s *Surface) PageSize() (float64, float64) { return s.width, s.height }

// HotSpots 返回全部热点。
func (s *Surface) HotSpots() []HotSpot { return s.hotspots }

// HotSpotAt 返回包含页面坐标 (x, y) 的最上层热点。
func (s *Surface) HotSpotAt(page int, x, y float64) (HotSpot, bool) {
	for i := len(s.hotspots) - 1; i >= 0; i-- {
		h := s.hotspots[i]
		if h.Page == page && x >= h.Rect.Left && x <= h.Rect.Right() && y >= h.Rect.Top && y <= h.Rect.Bottom() {
			return h, true
		}
	}
	return HotSpot{}, false
}

func (s *Surface) AddFont(name string, data []byte) error { return s.Fonts.Add(name, data) }

func (s *Surface) AddImage(name string, data []byte) error { return s.Images.Add(name, data) }

func (s *Surface) Save() {
	s.stack = append(s.stack, s.cur)
	if s.ctx != nil {
		s.ctx.Push()
	}
}

func (s *Surface) Restore() {
	if len(s.stack) == 0 {
		return
	}
	s.cur = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if s.ctx != nil {
		s.ctx.Pop()
	}
}

func (s *Surface) Translate(dx, dy float64) {
	s.cur.dx += dx
	s.cur.dy += dy
	if s.ctx != nil {
		s.ctx.ComposeView(canvas.Identity.Translate(s.mm(dx), s.mm(dy)))
	}
}

// Rotate 绕当前原点顺时针旋转。旋转之后不再做裁剪剔除。
func (s *Surface) Rotate(degrees float64) {
	if degrees == 0 {
		return
	}
	s.cur.rotated = true
	if s.ctx != nil {
		s.ctx.ComposeView(canvas.Identity.Rotate(degrees))
	}
}

// Clip 把后续绘制限制在 r 与当前裁剪区的交集内，Restore 后恢复。
func (s *Surface) Clip(r layout.Rect) {
	if s.ctx == nil {
		return
	}
	r = r.Normalized()
	p := s.toView(s.mm(r.Left), s.mm(r.Top), canvas.Rectangle(s.mm(r.Width), s.mm(r.Height)))
	axis := !s.cur.rotated
	if s.cur.clip != nil {
		if axis && s.cur.clipAxis {
			p = p.Bounds().And(s.cur.clipBox).ToPath()
		} else {
			p = p.And(s.cur.clip)
		}
		axis = axis && s.cur.clipAxis
	}
	s.cur.clip, s.cur.clipBox, s.cur.clipAxis = p, p.Bounds(), axis
}

// toView 把位于当前原点 (x, y)（毫米）处的路径变换到视图空间，不修改 p。
func (s *Surface) toView(x, y float64, p *canvas.Path) *canvas.Path {
	return p.Copy().Transform(s.ctx.View().Translate(x, y))
}

// visibility 判断视图空间中的外接矩形与裁剪区的关系。
type visibility int

const (
	hidden visibility = iota
	inside
	partial
)

func (s *Surface) visible(box canvas.Rect) visibility {
	switch {
	case s.cur.clip == nil:
		return inside
	case !s.cur.clipBox.Touches(box):
		return hidden
	case s.cur.clipAxis && s.cur.clipBox.Contains(box):
		return inside
	}
	return partial
}

var transparent = color.RGBA{0, 0, 0, 0}

func strokeWidthMM(s paint.Stroke) float64 { return s.Width * layout.PtToMm }

func dashPattern(d paint.Dash, w float64) []float64 {
	switch d {
	case paint.DashDash:
		return []float64{3 * w, 2 * w}
	case paint.DashDot:
		return []float64{w, w}
	}
	return nil
}

// fillPath 以 fill 填充位于 (x, y) 的闭合路径。与裁剪区部分重叠时先求交集再绘制。
func (s *Surface) fillPath(x, y float64, p *canvas.Path, fill color.Color) {
	if s.ctx == nil {
		return
	}
	v := s.toView(x, y, p)
	switch s.visible(v.Bounds()) {
	case hidden:
		return
	case partial:
		v = v.And(s.cur.clip)
		if v.Empty() {
			return
		}
	}
	s.ctx.Push()
	s.ctx.SetView(canvas.Identity)
	s.ctx.SetFillColor(fill)
	s.ctx.SetStrokeColor(transparent)
	s.ctx.DrawPath(0, 0, v)
	s.ctx.Pop()
}

// strokePath 描边位于 (x, y) 的路径。存在裁剪区时把描边展开为轮廓后按填充处理。
func (s *Surface) strokePath(x, y float64, p *canvas.Path, st paint.Stroke) {
	if s.ctx == nil {
		return
	}
	w := strokeWidthMM(st)
	if s.cur.clip != nil {
		if d := dashPattern(st.Dash, w); d != nil {
			p = p.Dash(0, d...)
		}
		s.fillPath(x, y, p.Stroke(w, canvas.ButtCap, canvas.MiterJoin, canvas.Tolerance), colorFromLayout(st.Color))
		return
	}
	s.ctx.Push()
	s.ctx.SetFillColor(transparent)
	s.ctx.SetStrokeColor(colorFromLayout(st.Color))
	s.ctx.SetStrokeWidth(w)
	s.ctx.SetDashes(0, dashPattern(st.Dash, w)...)
	s.ctx.DrawPath(x, y, p)
	s.ctx.Pop()
}

func (s *Surface) rectPath(r layout.Rect, radius float64) *canvas.Path {
	w, h := s.mm(r.Width), s.mm(r.Height)
	if radius > 0 {
		rad := math.Min(s.mm(radius), math.Min(w, h)/2)
		return canvas.RoundedRectangle(w, h, rad)
	}
	return canvas.Rectangle(w, h)
}

func (s *Surface) FillRect(r layout.Rect, radius float64, fill layout.Color) {
	r = r.Normalized()
	if fill.IsNone() {
		return
	}
	s.fillPath(s.mm(r.Left), s.mm(r.Top), s.rectPath(r, radius), colorFromLayout(fill))
}

func (s *Surface) StrokeRect(r layout.Rect, radius float64, st paint.Stroke) {
	r = r.Normalized()
	if !st.Visible() {
		return
	}
	s.strokePath(s.mm(r.Left), s.mm(r.Top), s.rectPath(r, radius), st)
}

func (s *Surface) Line(x1, y1, x2, y2 float64, st paint.Stroke) {
	if !st.Visible() {
		return
	}
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(s.mm(x2-x1), s.mm(y2-y1))
	s.strokePath(s.mm(x1), s.mm(y1), p, st)
}

// ellipsePath 以折线逼近椭圆（或扇形）。部分扫角时路径经过圆心并闭合。
func (s *Surface) ellipsePath(r layout.Rect, start, end float64, closeToCenter bool) *canvas.Path {
	w, h := s.mm(r.Width), s.mm(r.Height)
	cx, cy, rx, ry := w/2, h/2, w/2, h/2
	full := paint.FullSweep(start, end)
	if full {
		start, end = 0, 360
	}
	steps := int(math.Ceil(math.Abs(end-start) / 3))
	if steps < 8 {
		steps = 8
	}
	p := &canvas.Path{}
	if !full && closeToCenter {
		p.MoveTo(cx, cy)
		p.LineTo(paint.ArcPoint(cx, cy, rx, ry, start))
	} else {
		p.MoveTo(paint.ArcPoint(cx, cy, rx, ry, start))
	}
	for i := 1; i <= steps; i++ {
		p.LineTo(paint.ArcPoint(cx, cy, rx, ry, start+(end-start)*float64(i)/float64(steps)))
	}
	if full || closeToCenter {
		p.Close()
	}
	return p
}

func (s *Surface) FillEllipse(r layout.Rect, start, end float64, fill layout.Color) {
	r = r.Normalized()
	if fill.IsNone() {
		return
	}
	s.fillPath(s.mm(r.Left), s.mm(r.Top), s.ellipsePath(r, start, end, true), colorFromLayout(fill))
}

func (s *Surface) StrokeEllipse(r layout.Rect, start, end float64, st paint.Stroke) {
	r = r.Normalized()
	if !st.Visible() {
		return
	}
	s.strokePath(s.mm(r.Left), s.mm(r.Top), s.ellipsePath(r, start, end, true), st)
}

// drawRaster 以 dpmm 的分辨率把 img 画在 (x, y)（毫米）处。裁剪区为轴对齐矩形时
// 只保留可见部分的像素；旋转后的裁剪区只做整体剔除。
func (s *Surface) drawRaster(x, y float64, img image.Image, dpmm float64) {
	b := img.Bounds()
	w, h := float64(b.Dx())/dpmm, float64(b.Dy())/dpmm
	box := canvas.Rectangle(w, h).Transform(s.ctx.View().Translate(x, y)).Bounds()
	switch s.visible(box) {
	case hidden:
		return
	case partial:
		if !s.cur.clipAxis || s.cur.rotated {
			break
		}
		vis := box.And(s.cur.clipBox)
		if vis.Empty() {
			return
		}
		crop := image.Rect(
			b.Min.X+int(math.Floor((vis.X0-box.X0)*dpmm)),
			b.Min.Y+int(math.Floor((vis.Y0-box.Y0)*dpmm)),
			b.Min.X+int(math.Ceil((vis.X1-box.X0)*dpmm)),
			b.Min.Y+int(math.Ceil((vis.Y1-box.Y0)*dpmm)),
		).Intersect(b)
		if crop.Empty() {
			return
		}
		dst := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
		xdraw.Copy(dst, image.Point{}, img, crop, xdraw.Src, nil)
		x += float64(crop.Min.X-b.Min.X) / dpmm
		y += float64(crop.Min.Y-b.Min.Y) / dpmm
		img = dst
	}
	s.ctx.DrawImage(x, y, img, canvas.DPMM(dpmm))
}

func (s *Surface) DrawImage(name string, r layout.Rect, fit paint.Fit) error {
	r = r.Normalized()
	img, err := s.Images.Image(name)
	if err != nil {
		return err
	}
	if s.ctx == nil || r.Width <= 0 || r.Height <= 0 {
		return nil
	}
	w, h := s.mm(r.Width), s.mm(r.Height)
	fitted, dpmm := fitImage(img, w, h, fit)
	s.drawRaster(s.mm(r.Left), s.mm(r.Top), fitted, dpmm)
	return nil
}

func (s *Surface) DrawSVG(name string, r layout.Rect) error {
	r = r.Normalized()
	if s.ctx == nil || r.Width <= 0 || r.Height <= 0 {
		_, err := s.Images.SVG(name)
		return err
	}
	w, h := s.mm(r.Width), s.mm(r.Height)
	img, dpmm, err := s.Images.RasterizeSVG(name, w, h)
	if err != nil {
		return err
	}
	s.drawRaster(s.mm(r.Left), s.mm(r.Top), img, dpmm)
	return nil
}

// Metrics 返回给定样式的测量能力（文档单位）。
func (s *Surface) Metrics(style layout.TextStyle) (layout.Metrics, *canvas.FontFace, error) {
	face, err := s.Fonts.Face(style)
	if err != nil {
		return nil, nil, err
	}
	return faceMetrics{face: face, s: s}, face, nil
}

type faceMetrics struct {
	face *canvas.FontFace
	s    *Surface
}

func (m faceMetrics) Measure(text string) float64 { return m.s.fromMM(m.face.TextWidth(text)) }

func (m faceMetrics) LineHeight() float64 { return m.s.fromMM(m.face.Metrics().LineHeight) }

func (s *Surface) MeasureText(text string, width float64, style layout.TextStyle) float64 {
	m, _, err := s.Metrics(style)
	if err != nil {
		s.logger.Warn("字体不可用", slog.String("family", style.FontFamily), slog.String("error", err.Error()))
		return 0
	}
	return layout.MeasureText(text, width, style, m)
}

func (s *Surface) DrawText(text string, r layout.Rect, style layout.TextStyle) float64 {
	m, face, err := s.Metrics(style)
	if err != nil {
		s.logger.Warn("字体不可用", slog.String("family", style.FontFamily), slog.String("error", err.Error()))
		return 0
	}
	tl := layout.LayoutText(text, r.Normalized(), style, m)
	if s.ctx == nil {
		return tl.Height
	}
	fm := face.Metrics()
	factor := style.LineHeight
	if factor <= 0 {
		factor = layout.DefaultLineHeight
	}
	// 多出的行距平分到行的上下。
	lead := (fm.LineHeight*factor - fm.LineHeight) / 2
	for _, line := range tl.Lines {
		baseline := s.mm(line.Y) + lead + fm.Ascent
		if !line.Justified {
			s.drawRun(face, s.mm(line.X), baseline, line.Content)
			continue
		}
		for i, word := range line.Words {
			s.drawRun(face, s.mm(line.X+line.WordX[i]), baseline, word)
		}
	}
	return tl.Height
}

// drawRun 在基线 (x, baseline) 处绘制单行文字。跨越裁剪边界的文字转为字形轮廓后求交。
func (s *Surface) drawRun(face *canvas.FontFace, x, baseline float64, text string) {
	if text == "" {
		return
	}
	fm := face.Metrics()
	view := s.ctx.View().Translate(x, baseline).ReflectY()
	box := canvas.Rect{X0: 0, Y0: -math.Abs(fm.Descent), X1: face.TextWidth(text), Y1: fm.Ascent}.Transform(view)
	switch s.visible(box) {
	case hidden:
		return
	case inside:
		s.ctx.DrawText(x, baseline, canvas.NewTextLine(face, text, canvas.Left))
		return
	}
	glyphs, _, err := face.ToPath(text)
	if err != nil {
		s.logger.Warn("字形轮廓不可用", slog.String("error", err.Error()))
		return
	}
	v := glyphs.Transform(view).And(s.cur.clip)
	if v.Empty() {
		return
	}
	s.ctx.Push()
	s.ctx.SetView(canvas.Identity)
	s.ctx.SetFillColor(face.Fill.Color)
	s.ctx.SetStrokeColor(transparent)
	s.ctx.DrawPath(0, 0, v)
	s.ctx.Pop()
}

func (s *Surface) BeginHotSpot(name, link string, r layout.Rect) {
	s.hotspots = append(s.hotspots, HotSpot{
		Page: s.pageNo,
		Name: name,
		Link: link,
		Rect: r.Normalized().Translate(s.cur.dx, s.cur.dy),
	})
}

func (s *Surface) EndHotSpot() {}
