// Package html 是 HTML 后端：每页输出一个相对定位的容器，图元为绝对定位的 <div>。
//
// 线条与扇形使用内联 SVG，裁剪使用 overflow:hidden 的包装层，旋转使用 transform 包装层，
// 热点输出为覆盖在元素上方的 <a>。字体以 data URI 形式写入 @font-face。
package html

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	minhtml "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/ByLCY/reportkit/fonts"
	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/logging"
	"github.com/ByLCY/reportkit/paint"
)

// Options 配置 HTML 输出。
type Options struct {
	// Minify 为 true 时压缩输出的 HTML、CSS 与内联 SVG。
	Minify bool
	Logger *slog.Logger
}

// Canvas 把全部页面缓存在内存中，EndDoc 时一次写出。
type Canvas struct {
	unit   layout.Unit
	out    io.Writer
	opts   Options
	logger *slog.Logger

	info   paint.DocInfo
	fonts  *fontBook
	images map[string]imageRes

	pages []string
	buf   *bytes.Buffer
	cur   state
	stack []state
	hot   []hotspot
}

type imageRes struct {
	uri string
	svg bool
}

// state 中 dx/dy 是相对于当前包装层的偏移，open 是当前已打开的包装层数。
type state struct {
	dx, dy float64
	open   int
}

type hotspot struct {
	name, link string
	rect       layout.Rect
	dx, dy     float64
}

var _ paint.Canvas = (*Canvas)(nil)

// New 创建 HTML 后端。
func New(out io.Writer, unit layout.Unit, opts Options) *Canvas {
	return &Canvas{
		unit:   unit,
		out:    out,
		opts:   opts,
		logger: logging.Or(opts.Logger),
		fonts:  newFontBook(),
		images: map[string]imageRes{},
	}
}

func (c *Canvas) Units() layout.Unit { return c.unit }

// pt 把文档单位换算为 CSS pt 字符串。
func (c *Canvas) pt(v float64) string {
	return fmt.Sprintf("%.2fpt", layout.Convert(v, c.unit, layout.UnitPT))
}

func (c *Canvas) ptv(v float64) float64 { return layout.Convert(v, c.unit, layout.UnitPT) }

func (c *Canvas) StartDoc(info paint.DocInfo) error {
	if c.out == nil {
		return fmt.Errorf("html: 缺少输出")
	}
	c.info = info
	c.pages = nil
	return nil
}

func (c *Canvas) StartPage(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("页面尺寸无效: %.3f x %.3f", width, height)
	}
	c.buf = &bytes.Buffer{}
	c.cur, c.stack, c.hot = state{}, nil, nil
	fmt.Fprintf(c.buf, `<div class="page" style="width:%s;height:%s">`, c.pt(width), c.pt(height))
	return nil
}

func (c *Canvas) EndPage() error {
	if c.buf == nil {
		return fmt.Errorf("没有正在绘制的页面")
	}
	c.closeWrappers(0)
	c.buf.WriteString("</div>")
	c.pages = append(c.pages, c.buf.String())
	c.buf = nil
	return nil
}

func (c *Canvas) EndDoc() error {
	if len(c.pages) == 0 {
		return fmt.Errorf("缺少可渲染的页面")
	}
	var doc bytes.Buffer
	doc.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&doc, "<title>%s</title>", stdhtml.EscapeString(c.info.Title))
	if c.info.Author != "" {
		fmt.Fprintf(&doc, `<meta name="author" content="%s">`, stdhtml.EscapeString(c.info.Author))
	}
	doc.WriteString("<style>")
	doc.WriteString(`body{margin:0;background:#888}.page{position:relative;overflow:hidden;background:#fff;margin:8pt auto}.page div,.page svg,.page img,.page a{position:absolute}.t{white-space:pre;line-height:1}`)
	c.writeFontFaces(&doc)
	doc.WriteString("</style></head><body>")
	for _, p := range c.pages {
		doc.WriteString(p)
	}
	doc.WriteString("</body></html>")

	if !c.opts.Minify {
		_, err := c.out.Write(doc.Bytes())
		return err
	}
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.Add("text/html", &minhtml.Minifier{KeepDocumentTags: true, KeepEndTags: true})
	if err := m.Minify("text/html", c.out, &doc); err != nil {
		return fmt.Errorf("压缩 HTML 失败: %w", err)
	}
	return nil
}

func (c *Canvas) writeFontFaces(w *bytes.Buffer) {
	face := func(family string, bold, italic bool, data []byte) {
		weight, style := "normal", "normal"
		if bold {
			weight = "bold"
		}
		if italic {
			style = "italic"
		}
		fmt.Fprintf(w, `@font-face{font-family:"%s";font-weight:%s;font-style:%s;src:url(%s)}`,
			escapeCSSString(family), weight, style, paint.EncodeDataURI(paint.SniffMIME(data), data))
	}
	c.fonts.mu.Lock()
	for _, f := range c.fonts.fonts {
		face(f.family, f.bold, f.italic, f.data)
	}
	c.fonts.mu.Unlock()
	if c.fonts.usesFallback() {
		for _, v := range [][2]bool{{false, false}, {true, false}, {false, true}, {true, true}} {
			face(fallbackFamily, v[0], v[1], fonts.Face(v[0], v[1]))
		}
	}
}

func (c *Canvas) AddFont(name string, data []byte) error { return c.fonts.add(name, data) }

func (c *Canvas) AddImage(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("图片 %s: %w", name, paint.ErrEmptyResource)
	}
	mime := paint.SniffMIME(data)
	c.images[name] = imageRes{uri: paint.EncodeDataURI(mime, data), svg: paint.IsSVG(data)}
	return nil
}

func (c *Canvas) Save() { c.stack = append(c.stack, c.cur) }

func (c *Canvas) Restore() {
	if len(c.stack) == 0 {
		return
	}
	prev := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	c.closeWrappers(prev.open)
	c.cur = prev
}

func (c *Canvas) closeWrappers(keep int) {
	for c.cur.open > keep {
		if c.buf != nil {
			c.buf.WriteString("</div>")
		}
		c.cur.open--
	}
}

func (c *Canvas) Translate(dx, dy float64) {
	c.cur.dx += dx
	c.cur.dy += dy
}

func (c *Canvas) Rotate(degrees float64) {
	if degrees == 0 || c.buf == nil {
		return
	}
	fmt.Fprintf(c.buf, `<div style="left:%s;top:%s;width:0;height:0;transform:rotate(%.3fdeg);transform-origin:0 0">`,
		c.pt(c.cur.dx), c.pt(c.cur.dy), degrees)
	c.cur.dx, c.cur.dy = 0, 0
	c.cur.open++
}

func (c *Canvas) Clip(r layout.Rect) {
	if c.buf == nil {
		return
	}
	r = r.Normalized()
	fmt.Fprintf(c.buf, `<div style="left:%s;top:%s;width:%s;height:%s;overflow:hidden">`,
		c.pt(c.cur.dx+r.Left), c.pt(c.cur.dy+r.Top), c.pt(r.Width), c.pt(r.Height))
	c.cur.dx, c.cur.dy = -r.Left, -r.Top
	c.cur.open++
}

// box 返回绝对定位的 left/top/width/height 声明。
func (c *Canvas) box(r layout.Rect) string {
	return fmt.Sprintf("left:%s;top:%s;width:%s;height:%s", c.pt(c.cur.dx+r.Left), c.pt(c.cur.dy+r.Top), c.pt(r.Width), c.pt(r.Height))
}

func (c *Canvas) FillRect(r layout.Rect, radius float64, fill layout.Color) {
	if c.buf == nil || fill.IsNone() {
		return
	}
	r = r.Normalized()
	fmt.Fprintf(c.buf, `<div style="%s;background:%s%s"></div>`, c.box(r), fill.CSS(), c.radius(radius))
}

func (c *Canvas) radius(r float64) string {
	if r <= 0 {
		return ""
	}
	return ";border-radius:" + c.pt(r)
}

func borderStyle(d paint.Dash) string {
	switch d {
	case paint.DashDash:
		return "dashed"
	case paint.DashDot:
		return "dotted"
	}
	return "solid"
}

func (c *Canvas) StrokeRect(r layout.Rect, radius float64, s paint.Stroke) {
	if c.buf == nil || !s.Visible() {
		return
	}
	r = r.Normalized()
	fmt.Fprintf(c.buf, `<div style="%s;box-sizing:border-box;border:%.2fpt %s %s%s"></div>`,
		c.box(r), s.Width, borderStyle(s.Dash), s.Color.CSS(), c.radius(radius))
}

func dashArray(s paint.Stroke) string {
	switch s.Dash {
	case paint.DashDash:
		return fmt.Sprintf(` stroke-dasharray="%.2f %.2f"`, 3*s.Width, 2*s.Width)
	case paint.DashDot:
		return fmt.Sprintf(` stroke-dasharray="%.2f %.2f"`, s.Width, s.Width)
	}
	return ""
}

// svgBox 打开一个覆盖 r（外扩半个线宽）的内联 SVG，返回 SVG 内部坐标的原点偏移（pt）。
func (c *Canvas) svgBox(r layout.Rect, strokePt float64) (float64, float64) {
	pad := strokePt / 2
	left, top := c.ptv(c.cur.dx+r.Left)-pad, c.ptv(c.cur.dy+r.Top)-pad
	w, h := c.ptv(r.Width)+2*pad, c.ptv(r.Height)+2*pad
	fmt.Fprintf(c.buf, `<svg style="left:%.2fpt;top:%.2fpt;overflow:visible" width="%.2fpt" height="%.2fpt" viewBox="0 0 %.2f %.2f">`,
		left, top, w, h, w, h)
	return pad, pad
}

func (c *Canvas) Line(x1, y1, x2, y2 float64, s paint.Stroke) {
	if c.buf == nil || !s.Visible() {
		return
	}
	r := layout.NewRect(x1, y1, x2-x1, y2-y1).Normalized()
	ox, oy := c.svgBox(r, s.Width)
	fmt.Fprintf(c.buf, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%.2f"%s/></svg>`,
		ox+c.ptv(x1-r.Left), oy+c.ptv(y1-r.Top), ox+c.ptv(x2-r.Left), oy+c.ptv(y2-r.Top),
		s.Color.CSS(), s.Width, dashArray(s))
}

// arcPath 返回扇形路径（pt，相对于 SVG 原点）。
func (c *Canvas) arcPath(r layout.Rect, start, end, ox, oy float64) string {
	rx, ry := c.ptv(r.Width)/2, c.ptv(r.Height)/2
	cx, cy := ox+rx, oy+ry
	sx, sy := paint.ArcPoint(cx, cy, rx, ry, start)
	ex, ey := paint.ArcPoint(cx, cy, rx, ry, end)
	large := 0
	if math.Abs(end-start) > 180 {
		large = 1
	}
	sweep := 1
	if end < start {
		sweep = 0
	}
	return fmt.Sprintf("M%.2f %.2fL%.2f %.2fA%.2f %.2f 0 %d %d %.2f %.2fZ", cx, cy, sx, sy, rx, ry, large, sweep, ex, ey)
}

func (c *Canvas) ellipse(r layout.Rect, start, end float64, fill string, s paint.Stroke) {
	r = r.Normalized()
	if paint.FullSweep(start, end) {
		border := ""
		if s.Visible() {
			border = fmt.Sprintf(";box-sizing:border-box;border:%.2fpt %s %s", s.Width, borderStyle(s.Dash), s.Color.CSS())
		}
		bg := ""
		if fill != "" {
			bg = ";background:" + fill
		}
		fmt.Fprintf(c.buf, `<div style="%s;border-radius:50%%%s%s"></div>`, c.box(r), bg, border)
		return
	}
	ox, oy := c.svgBox(r, s.Width)
	if fill == "" {
		fill = "none"
	}
	stroke := `stroke="none"`
	if s.Visible() {
		stroke = fmt.Sprintf(`stroke="%s" stroke-width="%.2f"%s`, s.Color.CSS(), s.Width, dashArray(s))
	}
	fmt.Fprintf(c.buf, `<path d="%s" fill="%s" %s/></svg>`, c.arcPath(r, start, end, ox, oy), fill, stroke)
}

func (c *Canvas) FillEllipse(r layout.Rect, start, end float64, fill layout.Color) {
	if c.buf == nil || fill.IsNone() {
		return
	}
	c.ellipse(r, start, end, fill.CSS(), paint.Stroke{})
}

func (c *Canvas) StrokeEllipse(r layout.Rect, start, end float64, s paint.Stroke) {
	if c.buf == nil || !s.Visible() {
		return
	}
	c.ellipse(r, start, end, "", s)
}

func (c *Canvas) DrawImage(name string, r layout.Rect, fit paint.Fit) error {
	img, ok := c.images[name]
	if !ok || img.svg {
		return fmt.Errorf("图片资源未加载: %s", name)
	}
	if c.buf == nil {
		return nil
	}
	objectFit := "fill"
	if fit == paint.FitCover {
		objectFit = "cover"
	}
	fmt.Fprintf(c.buf, `<img src="%s" alt="%s" style="%s;object-fit:%s">`, img.uri, stdhtml.EscapeString(name), c.box(r.Normalized()), objectFit)
	return nil
}

func (c *Canvas) DrawSVG(name string, r layout.Rect) error {
	img, ok := c.images[name]
	if !ok || !img.svg {
		return fmt.Errorf("图片资源未加载: %s", name)
	}
	if c.buf == nil {
		return nil
	}
	fmt.Fprintf(c.buf, `<img src="%s" alt="%s" style="%s">`, img.uri, stdhtml.EscapeString(name), c.box(r.Normalized()))
	return nil
}

func (c *Canvas) metrics(style layout.TextStyle) (layout.Metrics, *htmlFont, error) {
	f, err := c.fonts.lookup(style)
	if err != nil {
		return nil, nil, err
	}
	size := style.FontSize
	if size <= 0 {
		size = 12
	}
	face, err := c.fonts.face(f, size)
	if err != nil {
		return nil, nil, err
	}
	return ptMetrics{face: face, unit: c.unit}, f, nil
}

func (c *Canvas) MeasureText(text string, width float64, style layout.TextStyle) float64 {
	m, _, err := c.metrics(style)
	if err != nil {
		c.logger.Warn("字体不可用", slog.String("family", style.FontFamily), slog.String("error", err.Error()))
		return 0
	}
	return layout.MeasureText(text, width, style, m)
}

func (c *Canvas) DrawText(text string, r layout.Rect, style layout.TextStyle) float64 {
	m, f, err := c.metrics(style)
	if err != nil {
		c.logger.Warn("字体不可用", slog.String("family", style.FontFamily), slog.String("error", err.Error()))
		return 0
	}
	tl := layout.LayoutText(text, r.Normalized(), style, m)
	if c.buf == nil {
		return tl.Height
	}
	size := style.FontSize
	if size <= 0 {
		size = 12
	}
	color := style.Color
	if !color.Set {
		color = layout.Black
	}
	weight, fstyle := "normal", "normal"
	if style.Bold {
		weight = "bold"
	}
	if style.Italic {
		fstyle = "italic"
	}
	font := fmt.Sprintf(`font-family:&quot;%s&quot;;font-size:%.2fpt;font-weight:%s;font-style:%s;color:%s`, stdhtml.EscapeString(f.family), size, weight, fstyle, color.CSS())
	for _, line := range tl.Lines {
		// 行框高度等于行高，文字在行框内垂直居中。
		lineBox := func(x float64, s string) {
			fmt.Fprintf(c.buf, `<div class="t" style="left:%s;top:%s;height:%s;line-height:%s;%s">%s</div>`,
				c.pt(c.cur.dx+x), c.pt(c.cur.dy+line.Y), c.pt(line.Height), c.pt(line.Height), font, stdhtml.EscapeString(s))
		}
		if !line.Justified {
			if line.Content != "" {
				lineBox(line.X, line.Content)
			}
			continue
		}
		for i, word := range line.Words {
			lineBox(line.X+line.WordX[i], word)
		}
	}
	return tl.Height
}

func (c *Canvas) BeginHotSpot(name, link string, r layout.Rect) {
	c.hot = append(c.hot, hotspot{name: name, link: link, rect: r.Normalized(), dx: c.cur.dx, dy: c.cur.dy})
}

// EndHotSpot 在元素之后输出覆盖层，使链接位于元素内容之上。
func (c *Canvas) EndHotSpot() {
	if len(c.hot) == 0 {
		return
	}
	h := c.hot[len(c.hot)-1]
	c.hot = c.hot[:len(c.hot)-1]
	if c.buf == nil {
		return
	}
	fmt.Fprintf(c.buf, `<a href="%s" title="%s" style="left:%s;top:%s;width:%s;height:%s;display:block"></a>`,
		stdhtml.EscapeString(h.link), stdhtml.EscapeString(h.name),
		c.pt(h.dx+h.rect.Left), c.pt(h.dy+h.rect.Top), c.pt(h.rect.Width), c.pt(h.rect.Height))
}

// PageCount 返回已完成的页数。
func (c *Canvas) PageCount() int { return len(c.pages) }

// Page 返回第 i 页的 HTML 片段。
func (c *Canvas) Page(i int) string {
	if i < 0 || i >= len(c.pages) {
		return ""
	}
	return c.pages[i]
}

// escapeCSSString 转义字族名中的引号。
func escapeCSSString(s string) string { return strings.ReplaceAll(s, `"`, `\"`) }
