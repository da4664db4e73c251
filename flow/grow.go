package flow

import (
	"sort"

	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/layout"
)

// Layout 是一次执行渲染的派生布局：自动增高后各元素的矩形与分节的有效高度。
// 文档树本身在渲染期间保持只读。nil 的 *Layout 表示全部使用设计值。
type Layout struct {
	rects   map[int64]layout.Rect
	heights map[int64]float64
}

// NewLayout 创建空布局。
func NewLayout() *Layout {
	return &Layout{rects: map[int64]layout.Rect{}, heights: map[int64]float64{}}
}

// Rect 返回元素（规范化后）的有效矩形。
func (l *Layout) Rect(e *element.Element) layout.Rect {
	if l != nil {
		if r, ok := l.rects[e.UID]; ok {
			return r
		}
	}
	return e.Rect(true)
}

// Height 返回分节的有效高度。
func (l *Layout) Height(section *element.Element) float64 {
	if section == nil {
		return 0
	}
	if l != nil {
		if h, ok := l.heights[section.UID]; ok {
			return h
		}
	}
	return section.Height
}

// MeasureFunc 返回自动增高文本在给定宽度下所需的高度（已完成插值）。
type MeasureFunc func(text *element.Element, width float64) float64

// Grow 对页面中每个分节的直接子元素做自动增高：文本需要的高度超过设计高度时，
// 把它拉高，并把原底边以下的兄弟元素整体下移同样的距离；分节累计增高。
func Grow(page *element.Element, measure MeasureFunc) *Layout {
	l := NewLayout()
	for _, section := range element.Sections(page).Ordered {
		l.growSection(section, measure)
	}
	return l
}

// GrowSection 只对一个分节做自动增高（脚本模式下每次打印都可能带有不同的覆盖文本）。
func GrowSection(section *element.Element, measure MeasureFunc) *Layout {
	l := NewLayout()
	l.growSection(section, measure)
	return l
}

// Merge 把 o 中的结果合并进 l。
func (l *Layout) Merge(o *Layout) {
	if o == nil {
		return
	}
	for k, v := range o.rects {
		l.rects[k] = v
	}
	for k, v := range o.heights {
		l.heights[k] = v
	}
}

func (l *Layout) growSection(section *element.Element, measure MeasureFunc) {
	children := make([]*element.Element, 0, len(section.Children))
	for _, c := range section.Children {
		if c != nil {
			children = append(children, c)
			l.rects[c.UID] = c.Rect(true)
		}
	}
	growable := make([]*element.Element, 0)
	for _, c := range children {
		if c.Kind == element.KindText && c.Text.AutoGrow && c.Visible {
			growable = append(growable, c)
		}
	}
	sort.SliceStable(growable, func(i, j int) bool {
		return l.rects[growable[i].UID].Top < l.rects[growable[j].UID].Top
	})

	total := 0.0
	for _, g := range growable {
		r := l.rects[g.UID]
		need := measure(g, r.Width)
		if need <= r.Height+epsilon {
			continue
		}
		delta := need - r.Height
		oldBottom := r.Bottom()
		r.Height = need
		l.rects[g.UID] = r
		for _, s := range children {
			if s.UID == g.UID {
				continue
			}
			sr := l.rects[s.UID]
			if sr.Top >= oldBottom-epsilon {
				l.rects[s.UID] = sr.Translate(0, delta)
			}
		}
		total += delta
	}
	l.heights[section.UID] = section.Height + total
}
