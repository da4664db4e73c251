// Package paint 定义与设备无关的绘图接口 Canvas。
//
// 所有坐标与尺寸都使用文档单位（Canvas.Units），由各后端自行换算到原生单位；
// 线宽与字号使用 pt。三个实现分别位于 renderer/display、renderer/pdf 与 renderer/html。
package paint

import (
	"github.com/ByLCY/reportkit/layout"
)

// Fit 图片填充方式。
type Fit string

const (
	FitFill  Fit = "fill"  // 拉伸到目标矩形
	FitCover Fit = "cover" // 保持比例覆盖目标矩形，超出部分裁掉
)

// Dash 线型。
type Dash string

const (
	DashSolid Dash = ""
	DashDash  Dash = "dash"
	DashDot   Dash = "dot"
)

// Stroke 描边样式，Width 单位为 pt。
type Stroke struct {
	Color layout.Color
	Width float64
	Dash  Dash
}

// Visible 判断描边是否需要绘制。
func (s Stroke) Visible() bool { return !s.Color.IsNone() && s.Width > 0 }

// DocInfo 文档元信息。
type DocInfo struct {
	Title   string
	Author  string
	Subject string
	Creator string
}

// Canvas 是所有输出后端实现的二维绘图接口。
type Canvas interface {
	Units() layout.Unit

	StartDoc(info DocInfo) error
	EndDoc() error
	StartPage(width, height float64) error
	EndPage() error

	// AddFont/AddImage 注册资源，name 为文档内资源名。
	AddFont(name string, data []byte) error
	AddImage(name string, data []byte) error

	Save()
	Restore()
	Translate(dx, dy float64)
	Rotate(degrees float64)
	Clip(r layout.Rect)

	FillRect(r layout.Rect, radius float64, fill layout.Color)
	StrokeRect(r layout.Rect, radius float64, s Stroke)
	Line(x1, y1, x2, y2 float64, s Stroke)
	// FillEllipse/StrokeEllipse 的角度单位为度，0 指向右侧，顺时针为正。
	// start == end 或跨度 >= 360 时绘制完整椭圆。
	FillEllipse(r layout.Rect, start, end float64, fill layout.Color)
	StrokeEllipse(r layout.Rect, start, end float64, s Stroke)
	DrawImage(name string, r layout.Rect, fit Fit) error
	DrawSVG(name string, r layout.Rect) error

	// DrawText 在 r 内排版并绘制文本，返回排版高度。
	DrawText(text string, r layout.Rect, style layout.TextStyle) float64
	// MeasureText 返回给定宽度下的排版高度，不绘制。
	MeasureText(text string, width float64, style layout.TextStyle) float64

	BeginHotSpot(name, link string, r layout.Rect)
	EndHotSpot()
}
