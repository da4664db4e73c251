package flow

import (
	"github.com/ByLCY/reportkit/element"
)

// SheetKind 物理纸的类型。
type SheetKind string

const (
	SheetDocHead SheetKind = "doc_head"
	SheetMain    SheetKind = "main"
	SheetDocBack SheetKind = "doc_back"
	SheetEdit    SheetKind = "edit"
)

// Role 分节在纸上的角色。
type Role int

const (
	RoleContent Role = iota
	RoleHeader
	RoleFooter
)

// Placement 是分节在某张纸上的一次放置。坐标为纸面坐标（文档单位）。
type Placement struct {
	Section *element.Element
	Left    float64
	Top     float64
	Width   float64
	Height  float64
	// Offset 是分节内容的纵向偏移：分节内 y=Offset 的位置画在 Top 处（body 分块）。
	Offset float64
	// Items 不为 nil 时只绘制这些子元素。
	Items     []*element.Element
	Slot      int
	Role      Role
	Overrides map[int64]Override
	// Layout 是排版时使用的增高结果，绘制时沿用它，保证放置与内容一致。
	Layout *Layout
}

// Sheet 是一张物理纸及其上的全部放置。
type Sheet struct {
	Kind       SheetKind
	Page       *element.Element
	Width      float64
	Height     float64
	Placements []Placement
}

// Collector 依次应用指令，得到纸张列表。
type Collector struct {
	Page   *element.Element
	sheets []Sheet
	open   bool
}

// Apply 应用一组指令。
func (c *Collector) Apply(cmds []Command) {
	for _, cmd := range cmds {
		switch cmd.Kind {
		case CmdStartSheet:
			c.sheets = append(c.sheets, Sheet{Kind: cmd.SheetKind, Page: c.Page, Width: cmd.Width, Height: cmd.Height})
			c.open = true
		case CmdPlace:
			if !c.open || len(c.sheets) == 0 {
				continue
			}
			s := &c.sheets[len(c.sheets)-1]
			s.Placements = append(s.Placements, cmd.Placement)
		case CmdEndSheet:
			if cmd.Discard && c.open && len(c.sheets) > 0 {
				c.sheets = c.sheets[:len(c.sheets)-1]
			}
			c.open = false
		}
	}
}

// Single 追加一张只放一个分节、不分页的纸（doc_head / doc_back）。
func (c *Collector) Single(kind SheetKind, width, height float64, section *element.Element, lay *Layout) {
	c.Apply([]Command{
		{Kind: CmdStartSheet, SheetKind: kind, Width: width, Height: height},
		{Kind: CmdPlace, Placement: Placement{Section: section, Width: width, Height: lay.Height(section), Role: RoleContent, Layout: lay}},
		{Kind: CmdEndSheet},
	})
}

// Sheets 返回已收集的纸张。
func (c *Collector) Sheets() []Sheet { return c.sheets }

// ContentTop 返回纸上第一个内容放置（非页眉页脚）。
func (s Sheet) ContentTop() (Placement, bool) {
	for _, p := range s.Placements {
		if p.Role == RoleContent {
			return p, true
		}
	}
	return Placement{}, false
}
