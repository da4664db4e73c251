package layout

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// HAlign 文本水平对齐方式。
type HAlign string

const (
	AlignLeft    HAlign = "left"
	AlignCenter  HAlign = "center"
	AlignRight   HAlign = "right"
	AlignJustify HAlign = "justify"
)

// VAlign 文本垂直对齐方式。
type VAlign string

const (
	VAlignTop    VAlign = "top"
	VAlignMiddle VAlign = "middle"
	VAlignBottom VAlign = "bottom"
)

// DefaultLineHeight is the line-height factor used when a style leaves it unset.
const DefaultLineHeight = 1.2

// TextStyle 描述一段文本的字体与排版参数。FontSize 单位为 pt，ColumnGap 为文档单位。
type TextStyle struct {
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Color      Color   `json:"color"`
	Align      HAlign  `json:"align,omitempty"`
	VAlign     VAlign  `json:"vAlign,omitempty"`
	LineHeight float64 `json:"lineHeight,omitempty"` // 行高倍数，0 表示 DefaultLineHeight
	Columns    int     `json:"columns,omitempty"`
	ColumnGap  float64 `json:"columnGap,omitempty"`
	NoWrap     bool    `json:"noWrap,omitempty"` // 关闭自动折行，仅按显式换行拆分
}

// Metrics 是排版所需的唯一测量能力，由各渲染后端提供。
// Measure 返回字符串宽度，LineHeight 返回字体的自然行高，二者均为文档单位。
type Metrics interface {
	Measure(s string) float64
	LineHeight() float64
}

// TextLine 表示排版后的一行文本。X/Y 为相对于文本矩形左上角的坐标。
type TextLine struct {
	Content string    `json:"content"`
	Words   []string  `json:"words,omitempty"`
	WordX   []float64 `json:"wordX,omitempty"` // 每个单词相对于 X 的偏移（两端对齐时使用）
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Width   float64   `json:"width"`
	Height  float64   `json:"height"`
	Column  int       `json:"column"`
	// Justified 为 true 时应逐词绘制（使用 WordX），否则整行绘制 Content。
	Justified bool `json:"justified,omitempty"`
	// Last 标记段落的最后一行（两端对齐时不拉伸）。
	Last bool `json:"last,omitempty"`
}

// TextLayout 是 LayoutText 的结果。
type TextLayout struct {
	Lines   []TextLine `json:"lines"`
	Height  float64    `json:"height"`
	Dropped int        `json:"dropped,omitempty"` // 因栏位耗尽而丢弃的行数
}

type wrappedLine struct {
	content string
	words   []string
	last    bool
}

// WrapLines 先按显式换行拆分，再对每段做贪心折行。超过宽度的单个单词保持完整。
func WrapLines(text string, width float64, noWrap bool, m Metrics) [][]string {
	lines := wrap(text, width, noWrap, m)
	out := make([][]string, len(lines))
	for i, l := range lines {
		out[i] = l.words
	}
	return out
}

func wrap(text string, width float64, noWrap bool, m Metrics) []wrappedLine {
	text = norm.NFC.String(strings.ReplaceAll(text, "\r", ""))
	limit := width
	if limit <= 0 {
		limit = math.MaxFloat64
	}
	var out []wrappedLine
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if noWrap || m.Measure(para) <= limit {
			out = append(out, wrappedLine{content: para, words: words, last: true})
			continue
		}
		var current []string
		for _, word := range words {
			if len(current) > 0 {
				candidate := strings.Join(append(append([]string{}, current...), word), " ")
				if m.Measure(candidate) > limit {
					out = append(out, wrappedLine{content: strings.Join(current, " "), words: current})
					current = nil
				}
			}
			current = append(current, word)
		}
		out = append(out, wrappedLine{content: strings.Join(current, " "), words: current, last: true})
	}
	return out
}

// LayoutText 是所有后端共用的文本排版算法：折行、两端对齐、垂直对齐与分栏。
// rect.Height <= 0 表示高度不受限（仅测量）。
func LayoutText(text string, rect Rect, style TextStyle, m Metrics) TextLayout {
	factor := style.LineHeight
	if factor <= 0 {
		factor = DefaultLineHeight
	}
	lineHeight := m.LineHeight() * factor
	columns := style.Columns
	if columns < 1 {
		columns = 1
	}
	gap := style.ColumnGap
	if columns == 1 {
		gap = 0
	}
	colWidth := (rect.Width - gap*float64(columns-1)) / float64(columns)

	lines := wrap(text, colWidth, style.NoWrap, m)

	bounded := rect.Height > 0
	perColumn := len(lines)
	if !bounded && columns > 1 {
		perColumn = int(math.Ceil(float64(len(lines)) / float64(columns)))
	}

	var res TextLayout
	col, y, inColumn, maxY := 0, 0.0, 0, 0.0
	for i, wl := range lines {
		fits := inColumn == 0 || (bounded && y+lineHeight <= rect.Height+1e-9) || (!bounded && inColumn < perColumn)
		if !fits {
			col++
			y, inColumn = 0, 0
			if col >= columns {
				res.Dropped = len(lines) - i
				break
			}
		}
		tl := placeLine(wl, colWidth, style.Align, m)
		tl.X += float64(col) * (colWidth + gap)
		tl.Y = y
		tl.Height = lineHeight
		tl.Column = col
		res.Lines = append(res.Lines, tl)
		y += lineHeight
		inColumn++
		if y > maxY {
			maxY = y
		}
	}
	res.Height = maxY

	// 垂直对齐只对单栏生效，多栏始终顶端对齐。
	if columns == 1 && bounded && style.VAlign != "" && style.VAlign != VAlignTop {
		offset := rect.Height - res.Height
		if style.VAlign == VAlignMiddle {
			offset /= 2
		}
		if offset > 0 {
			for i := range res.Lines {
				res.Lines[i].Y += offset
			}
		}
	}
	for i := range res.Lines {
		res.Lines[i].X += rect.Left
		res.Lines[i].Y += rect.Top
	}
	return res
}

// MeasureText 返回在给定宽度下排版后的总高度。
func MeasureText(text string, width float64, style TextStyle, m Metrics) float64 {
	return LayoutText(text, Rect{Width: width}, style, m).Height
}

func placeLine(wl wrappedLine, colWidth float64, align HAlign, m Metrics) TextLine {
	tl := TextLine{Content: wl.content, Words: wl.words, Last: wl.last}
	tl.Width = m.Measure(wl.content)
	space := m.Measure(" ")
	widths := make([]float64, len(wl.words))
	sum := 0.0
	for i, w := range wl.words {
		widths[i] = m.Measure(w)
		sum += widths[i]
	}
	spacing := space
	if align == AlignJustify && !wl.last && len(wl.words) > 1 && colWidth > sum {
		spacing = (colWidth - sum) / float64(len(wl.words)-1)
		tl.Justified = true
		tl.Width = colWidth
	}
	x := 0.0
	tl.WordX = make([]float64, len(wl.words))
	for i := range wl.words {
		tl.WordX[i] = x
		x += widths[i] + spacing
	}
	switch align {
	case AlignCenter:
		tl.X = (colWidth - tl.Width) / 2
	case AlignRight:
		tl.X = colWidth - tl.Width
	}
	return tl
}
