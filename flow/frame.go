// Package flow 是分页引擎：把页面的分节排布到一张张物理纸上。
//
// 游标 Cursor 是一个值，每次迁移（NewPage、Print、NextPage、CloseRow）都返回新的游标
// 和一组绘制指令 Command；Collector 把指令汇总为 Sheet。自动模式与脚本模式共用这些迁移。
package flow

import (
	"fmt"

	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/layout"
)

const epsilon = 1e-6

// Frame 描述一个页面在分页时不变的部分：纸张、页眉页脚及其高度。
type Frame struct {
	Width        float64
	Height       float64
	Header       *element.Element
	Footer       *element.Element
	HeaderHeight float64
	FooterHeight float64
	DocHead      *element.Element
	DocBack      *element.Element
	Layout       *Layout
	// Stacked 是各分节在页面堆叠坐标系中的 top，用于计算分页位置。
	Stacked map[int64]float64
}

// NewFrame 根据页面与单位构建 Frame。lay 为 nil 时使用设计高度。
func NewFrame(page *element.Element, units layout.Unit, lay *Layout) (Frame, error) {
	if page == nil || page.Kind != element.KindPage {
		return Frame{}, fmt.Errorf("flow: 需要 page 元素")
	}
	size, err := element.PaperSize(page, units)
	if err != nil {
		return Frame{}, fmt.Errorf("flow: 解析纸张失败: %w", err)
	}
	ps := element.Sections(page)
	f := Frame{Width: size.Width, Height: size.Height, Layout: lay, Stacked: ps.Stacked}
	if visible(ps.Header) {
		f.Header = ps.Header
		f.HeaderHeight = lay.Height(ps.Header)
	}
	if visible(ps.Footer) {
		f.Footer = ps.Footer
		f.FooterHeight = lay.Height(ps.Footer)
	}
	if visible(ps.DocHead) {
		f.DocHead = ps.DocHead
	}
	if visible(ps.DocBack) {
		f.DocBack = ps.DocBack
	}
	return f, nil
}

func visible(e *element.Element) bool { return e != nil && e.Visible }

// Available 返回一张纸上页眉与页脚之间的可用高度。
func (f Frame) Available() float64 { return f.Height - f.HeaderHeight - f.FooterHeight }

// Cursor 是主流程中的排版位置。Sheet 为 -1 表示尚未开始任何一张纸。
type Cursor struct {
	Sheet int
	Top   float64
	Limit float64
	// Slot 是当前重复行中已占用的格数，SlotUID 为占用该行的分节。
	Slot       int
	SlotUID    int64
	SlotHeight float64
	// Fresh 表示当前纸上除页眉页脚外还没有内容。
	Fresh bool
}

// Start 返回初始游标。
func Start() Cursor { return Cursor{Sheet: -1} }

// Remaining 返回当前纸上剩余的高度。
func (c Cursor) Remaining() float64 { return c.Limit - c.Top }

// CommandKind 指令类型。
type CommandKind int

const (
	CmdStartSheet CommandKind = iota
	CmdPlace
	CmdEndSheet
)

// Command 是一次迁移产生的绘制指令。
type Command struct {
	Kind      CommandKind
	SheetKind SheetKind
	// Discard 与 CmdEndSheet 一起使用，表示丢弃这张只有页眉页脚的空白纸。
	Discard   bool
	Width     float64
	Height    float64
	Placement Placement
}

// Placeable 是一次打印请求。
type Placeable struct {
	Section *element.Element
	Height  float64
	// Offset/Items 仅用于 body 分块：分块在分节内的起点及归属该分块的子元素。
	Offset float64
	Items  []*element.Element
	// CheckOverflow 为 true 时空间不足会先换页（脚本模式）；自动模式只响应 break 标记。
	CheckOverflow bool
	// Chunk 表示这是 body 的一个分块：分节上的 break 由 PrintBody 处理，这里忽略。
	Chunk     bool
	Overrides map[int64]Override
	Layout    *Layout
}

// Override 是脚本对元素做的临时修改，打印时快照到 Placement 中，不影响文档本身。
type Override struct {
	Text    *string
	Color   *string
	BkColor *string
	Image   *string
	Visible *bool
	Data    any
}

// NewPage 结束当前纸并开始新的一张，放置页眉与页脚。当前纸还没有内容时不换页。
func (f Frame) NewPage(c Cursor) (Cursor, []Command) {
	if c.Sheet >= 0 && c.Fresh {
		return c, nil
	}
	return f.newPage(c)
}

func (f Frame) newPage(c Cursor) (Cursor, []Command) {
	var cmds []Command
	if c.Sheet >= 0 {
		cmds = append(cmds, Command{Kind: CmdEndSheet})
	}
	cmds = append(cmds, Command{Kind: CmdStartSheet, SheetKind: SheetMain, Width: f.Width, Height: f.Height})
	if f.Header != nil {
		cmds = append(cmds, Command{Kind: CmdPlace, Placement: Placement{Section: f.Header, Width: f.Width, Height: f.HeaderHeight, Role: RoleHeader, Layout: f.Layout}})
	}
	if f.Footer != nil {
		cmds = append(cmds, Command{Kind: CmdPlace, Placement: Placement{Section: f.Footer, Top: f.Height - f.FooterHeight, Width: f.Width, Height: f.FooterHeight, Role: RoleFooter, Layout: f.Layout}})
	}
	return Cursor{
		Sheet: c.Sheet + 1,
		Top:   f.HeaderHeight,
		Limit: f.Height - f.FooterHeight,
		Fresh: true,
	}, cmds
}

// CloseRow 结束当前的重复行，游标下移一行的高度。
func (f Frame) CloseRow(c Cursor) Cursor {
	if c.Slot > 0 {
		c.Top += c.SlotHeight
	}
	c.Slot, c.SlotUID, c.SlotHeight = 0, 0, 0
	return c
}

// NextPage 在剩余空间小于 minSpace 时换页；unconditional 为 true 时总是换页。
// 两种情况下空白纸都不会被结束。
func (f Frame) NextPage(c Cursor, minSpace float64, unconditional bool) (Cursor, []Command) {
	if c.Sheet < 0 {
		return f.newPage(c)
	}
	c = f.CloseRow(c)
	if unconditional || c.Remaining() < minSpace-epsilon {
		return f.NewPage(c)
	}
	return c, nil
}

// Print 放置一个分节：处理 break before/after、重复行以及（可选的）溢出换页。
func (f Frame) Print(c Cursor, p Placeable) (Cursor, []Command) {
	var cmds []Command
	emit := func(next Cursor, more []Command) {
		c = next
		cmds = append(cmds, more...)
	}
	if c.Sheet < 0 {
		emit(f.newPage(c))
	}
	sec := p.Section
	repeat := 1
	brk := element.BreakNone
	if sec.Section != nil {
		if sec.Section.Repeat > 1 {
			repeat = sec.Section.Repeat
		}
		if !p.Chunk {
			brk = sec.Section.Break
		}
	}
	if c.Slot > 0 && (c.SlotUID != sec.UID || repeat == 1) {
		c = f.CloseRow(c)
	}
	if brk == element.BreakBefore && c.Slot == 0 {
		emit(f.NewPage(c))
	}
	if p.CheckOverflow && c.Slot == 0 && !c.Fresh && c.Top+p.Height > c.Limit+epsilon {
		emit(f.NewPage(c))
	}

	width := f.Width
	left := 0.0
	if repeat > 1 {
		width = f.Width / float64(repeat)
		left = float64(c.Slot) * width
	}
	cmds = append(cmds, Command{Kind: CmdPlace, Placement: Placement{
		Section:   sec,
		Left:      left,
		Top:       c.Top,
		Width:     width,
		Height:    p.Height,
		Offset:    p.Offset,
		Items:     p.Items,
		Slot:      c.Slot,
		Role:      RoleContent,
		Overrides: p.Overrides,
		Layout:    p.Layout,
	}})
	c.Fresh = false
	if repeat > 1 {
		c.Slot++
		c.SlotUID = sec.UID
		if p.Height > c.SlotHeight {
			c.SlotHeight = p.Height
		}
		if c.Slot >= repeat {
			c = f.CloseRow(c)
		}
	} else {
		c.Top += p.Height
	}
	// 重复行只在整行填满后才响应 break after。
	if brk == element.BreakAfter && c.Slot == 0 {
		emit(f.NewPage(c))
	}
	return c, cmds
}

// Finish 结束主流程。末尾的空白纸（例如 break after 之后）会被丢弃，除非它是唯一的一张。
func (f Frame) Finish(c Cursor) (Cursor, []Command) {
	if c.Sheet < 0 {
		return c, nil
	}
	c = f.CloseRow(c)
	return c, []Command{{Kind: CmdEndSheet, Discard: c.Fresh && c.Sheet > 0}}
}
