package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// 该文件定义几何与颜色等基础值类型，供元素模型、分页与各渲染后端共用。
// 所有坐标的单位由报表的 units 设置决定。

// Point 是二维坐标点。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size 描述宽高。
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect 以左上角与宽高描述矩形，宽高允许为负（交互拖拽时可能出现）。
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect 构造矩形。
func NewRect(left, top, width, height float64) Rect {
	return Rect{Left: left, Top: top, Width: width, Height: height}
}

func (r Rect) Right() float64  { return r.Left + r.Width }
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Normalized 返回宽高均为非负的等价矩形。
func (r Rect) Normalized() Rect {
	if r.Width < 0 {
		r.Left += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Top += r.Height
		r.Height = -r.Height
	}
	return r
}

// Translate 平移矩形。
func (r Rect) Translate(dx, dy float64) Rect {
	r.Left += dx
	r.Top += dy
	return r
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool { return r.Width == 0 || r.Height == 0 }

// Intersects 判断两个（规范化后的）矩形是否相交。
func (r Rect) Intersects(o Rect) bool {
	a, b := r.Normalized(), o.Normalized()
	return a.Left < b.Right() && b.Left < a.Right() && a.Top < b.Bottom() && b.Top < a.Bottom()
}

// Intersect 返回两个矩形的交集，不相交时返回零值矩形。
func (r Rect) Intersect(o Rect) Rect {
	a, b := r.Normalized(), o.Normalized()
	left := math.Max(a.Left, b.Left)
	top := math.Max(a.Top, b.Top)
	right := math.Min(a.Right(), b.Right())
	bottom := math.Min(a.Bottom(), b.Bottom())
	if right <= left || bottom <= top {
		return Rect{}
	}
	return Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// Convert 将矩形从一个单位换算到另一个单位。
func (r Rect) Convert(from, to Unit) Rect {
	return Rect{
		Left:   Convert(r.Left, from, to),
		Top:    Convert(r.Top, from, to),
		Width:  Convert(r.Width, from, to),
		Height: Convert(r.Height, from, to),
	}
}

// Color 采用 0-255 的 RGBA 数值，A=0 且 Set=false 表示“无颜色”。
type Color struct {
	R   int  `json:"r"`
	G   int  `json:"g"`
	B   int  `json:"b"`
	A   int  `json:"a"`
	Set bool `json:"set"`
}

// Black 是默认前景色。
var Black = Color{R: 0, G: 0, B: 0, A: 255, Set: true}

// IsNone 表示不绘制。
func (c Color) IsNone() bool { return !c.Set || c.A == 0 }

// Hex 返回 #rrggbb 或 #rrggbbaa 形式。
func (c Color) Hex() string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// CSS 返回 CSS 颜色表达式。
func (c Color) CSS() string {
	if c.IsNone() {
		return "transparent"
	}
	if c.A == 255 {
		return c.Hex()
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%.3f)", c.R, c.G, c.B, float64(c.A)/255)
}

// ParseColor 解析 #rgb、#rrggbb、#rrggbbaa 以及 transparent/none，空字符串得到“无颜色”。
func ParseColor(value string) (Color, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", "none", "transparent":
		return Color{}, nil
	case "black":
		return Black, nil
	case "white":
		return Color{R: 255, G: 255, B: 255, A: 255, Set: true}, nil
	}
	hex := strings.TrimPrefix(value, "#")
	switch len(hex) {
	case 3:
		r := strings.Repeat(string(hex[0]), 2)
		g := strings.Repeat(string(hex[1]), 2)
		b := strings.Repeat(string(hex[2]), 2)
		return Color{R: mustHex(r), G: mustHex(g), B: mustHex(b), A: 255, Set: true}, nil
	case 6:
		return Color{R: mustHex(hex[0:2]), G: mustHex(hex[2:4]), B: mustHex(hex[4:6]), A: 255, Set: true}, nil
	case 8:
		return Color{R: mustHex(hex[0:2]), G: mustHex(hex[2:4]), B: mustHex(hex[4:6]), A: mustHex(hex[6:8]), Set: true}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

// ColorOr 解析颜色，失败或为空时返回 fallback。
func ColorOr(value string, fallback Color) Color {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	c, err := ParseColor(value)
	if err != nil {
		return fallback
	}
	return c
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}
