package element

import "github.com/ByLCY/reportkit/layout"

// Tree 是文档树的索引（arena）：按 UID 记录每个元素及其父元素。
// 元素自身不保存父指针，树在结构变更后需要重新构建。
type Tree struct {
	root    *Element
	nodes   map[int64]treeNode
	stacked map[int64]float64
}

type treeNode struct {
	el     *Element
	parent int64 // 0 表示根
}

// NewTree 为 root 子树建立索引。
func NewTree(root *Element) *Tree {
	t := &Tree{root: root, nodes: map[int64]treeNode{}, stacked: map[int64]float64{}}
	var index func(e *Element, parent int64)
	index = func(e *Element, parent int64) {
		if e == nil {
			return
		}
		t.nodes[e.UID] = treeNode{el: e, parent: parent}
		if e.Kind == KindPage {
			for uid, top := range Sections(e).Stacked {
				t.stacked[uid] = top
			}
		}
		for _, c := range e.Children {
			index(c, e.UID)
		}
	}
	index(root, 0)
	return t
}

// Root 返回根元素。
func (t *Tree) Root() *Element { return t.root }

// Len 返回索引中的元素个数。
func (t *Tree) Len() int { return len(t.nodes) }

// Get 按 UID 查找元素。
func (t *Tree) Get(uid int64) *Element { return t.nodes[uid].el }

// Parent 返回父元素，根元素返回 nil。
func (t *Tree) Parent(uid int64) *Element {
	n, ok := t.nodes[uid]
	if !ok || n.parent == 0 {
		return nil
	}
	return t.nodes[n.parent].el
}

func (t *Tree) ancestor(uid int64, kind Kind) *Element {
	for id := uid; id != 0; {
		cur, ok := t.nodes[id]
		if !ok {
			return nil
		}
		if cur.el.Kind == kind {
			return cur.el
		}
		id = cur.parent
	}
	return nil
}

// PageOf 返回元素所在页面。
func (t *Tree) PageOf(uid int64) *Element { return t.ancestor(uid, KindPage) }

// SectionOf 返回元素所在分节。
func (t *Tree) SectionOf(uid int64) *Element { return t.ancestor(uid, KindSection) }

// Report 返回根报表，根不是报表时返回 nil。
func (t *Tree) Report() *Element {
	if t.root != nil && t.root.Kind == KindReport {
		return t.root
	}
	return nil
}

// Units 返回报表单位，缺省为毫米。
func (t *Tree) Units() layout.Unit {
	if r := t.Report(); r != nil && r.Report.Units != layout.UnitNone {
		return r.Report.Units
	}
	return layout.UnitMM
}

// AbsRect 返回元素在页面堆叠坐标系中的矩形：逐级累加父容器偏移，
// 分节使用其在页面中的堆叠位置。
func (t *Tree) AbsRect(uid int64) layout.Rect {
	n, ok := t.nodes[uid]
	if !ok {
		return layout.Rect{}
	}
	r := n.el.Rect(true)
	if n.el.Kind == KindSection {
		r.Left, r.Top = 0, t.stacked[uid]
	}
	for parent := n.parent; parent != 0; {
		p, ok := t.nodes[parent]
		if !ok {
			break
		}
		switch p.el.Kind {
		case KindSection:
			r = r.Translate(0, t.stacked[p.el.UID])
		case KindGroup:
			r = r.Translate(p.el.Left, p.el.Top)
		}
		parent = p.parent
	}
	return r
}

// FindByName 按名称查找元素。
func (t *Tree) FindByName(name string) *Element {
	if t.root == nil {
		return nil
	}
	return t.root.FindByName(name)
}
