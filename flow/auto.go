package flow

import (
	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/layout"
)

// Chunk 是 body 分节落在一张纸上的部分。
type Chunk struct {
	Start   float64
	Height  float64
	Items   []*element.Element
	NewPage bool // 放置前需要先换页（当前纸已没有空间）
}

// ChunkBody 把 body 切成若干块：第一块使用当前纸的剩余空间 first，其余每块为 avail。
// 子元素归属于包含其上边缘的那一块。avail <= 0 时不分块。
func ChunkBody(body *element.Element, lay *Layout, first, avail float64) []Chunk {
	height := lay.Height(body)
	var chunks []Chunk
	if avail <= epsilon {
		chunks = []Chunk{{Start: 0, Height: height}}
	} else {
		room := first
		newPage := false
		if room <= epsilon && height > epsilon {
			room, newPage = avail, true
		}
		for start := 0.0; ; {
			h := height - start
			if h > room {
				h = room
			}
			if h < 0 {
				h = 0
			}
			chunks = append(chunks, Chunk{Start: start, Height: h, NewPage: newPage})
			start += room
			if start >= height-epsilon {
				break
			}
			room, newPage = avail, true
		}
	}
	for i := range chunks {
		chunks[i].Items = []*element.Element{}
	}
	for _, child := range body.Children {
		if child == nil {
			continue
		}
		top := lay.Rect(child).Top
		idx := 0
		for i := len(chunks) - 1; i > 0; i-- {
			if top >= chunks[i].Start-epsilon {
				idx = i
				break
			}
		}
		chunks[idx].Items = append(chunks[idx].Items, child)
	}
	return chunks
}

// PrintBody 放置 body：处理它自身的 break 标记，然后逐块放置，块与块之间换页。
// repeat > 1 时每个分块并排放置 repeat 份。
func (f Frame) PrintBody(c Cursor, body *element.Element, overrides map[int64]Override) (Cursor, []Command) {
	copies := 1
	if body.Section != nil && body.Section.Repeat > 1 {
		copies = body.Section.Repeat
	}
	return f.printBody(c, body, overrides, copies)
}

// PrintBodySlot 是脚本模式的 body 打印：每次调用只占重复行中的一格，
// 连续打印同一个 body 时依次填满该行。
func (f Frame) PrintBodySlot(c Cursor, body *element.Element, overrides map[int64]Override) (Cursor, []Command) {
	return f.printBody(c, body, overrides, 1)
}

func (f Frame) printBody(c Cursor, body *element.Element, overrides map[int64]Override, copies int) (Cursor, []Command) {
	var cmds []Command
	emit := func(next Cursor, more []Command) {
		c = next
		cmds = append(cmds, more...)
	}
	if c.Sheet < 0 {
		emit(f.newPage(c))
	}
	if c.Slot > 0 && c.SlotUID != body.UID {
		c = f.CloseRow(c)
	}
	if body.Section != nil && body.Section.Break == element.BreakBefore && c.Slot == 0 {
		emit(f.NewPage(c))
	}
	for _, ch := range ChunkBody(body, f.Layout, c.Remaining(), f.Available()) {
		if ch.NewPage {
			emit(f.NewPage(f.CloseRow(c)))
		}
		for i := 0; i < copies; i++ {
			emit(f.Print(c, Placeable{Section: body, Height: ch.Height, Offset: ch.Start, Items: ch.Items, Chunk: true, Overrides: overrides, Layout: f.Layout}))
		}
	}
	if body.Section != nil && body.Section.Break == element.BreakAfter && c.Slot == 0 {
		emit(f.NewPage(c))
	}
	return c, cmds
}

// PrintSection 按自动模式的规则打印一个非 body 分节：repeat 份并排放置。
func (f Frame) PrintSection(c Cursor, s *element.Element) (Cursor, []Command) {
	repeat := 1
	if s.Section != nil && s.Section.Repeat > 1 {
		repeat = s.Section.Repeat
	}
	var cmds []Command
	for i := 0; i < repeat; i++ {
		var more []Command
		c, more = f.Print(c, Placeable{Section: s, Height: f.Layout.Height(s), Layout: f.Layout})
		cmds = append(cmds, more...)
	}
	return c, cmds
}

// AutoPlan 计算自动模式下页面的全部纸张：doc_head 单独一张，主流程（页眉、普通分节、
// 分块的 body、页脚），doc_back 单独一张。
func AutoPlan(page *element.Element, units layout.Unit, lay *Layout) ([]Sheet, error) {
	f, err := NewFrame(page, units, lay)
	if err != nil {
		return nil, err
	}
	col := &Collector{Page: page}
	if f.DocHead != nil {
		col.Single(SheetDocHead, f.Width, f.Height, f.DocHead, lay)
	}
	ps := element.Sections(page)
	c, cmds := f.newPage(Start())
	col.Apply(cmds)
	for _, s := range ps.Generic {
		if !s.Visible {
			continue
		}
		c, cmds = f.PrintSection(c, s)
		col.Apply(cmds)
	}
	if visible(ps.Body) {
		c, cmds = f.PrintBody(c, ps.Body, nil)
		col.Apply(cmds)
	}
	_, cmds = f.Finish(c)
	col.Apply(cmds)
	if f.DocBack != nil {
		col.Single(SheetDocBack, f.Width, f.Height, f.DocBack, lay)
	}
	return col.Sheets(), nil
}

// EditPlan 返回编辑模式下的单张纸：全部分节按堆叠顺序排列，不分页。
func EditPlan(page *element.Element, units layout.Unit) (Sheet, error) {
	size, err := element.PaperSize(page, units)
	if err != nil {
		return Sheet{}, err
	}
	ps := element.Sections(page)
	height := ps.Combined
	if height < size.Height {
		height = size.Height
	}
	sheet := Sheet{Kind: SheetEdit, Page: page, Width: size.Width, Height: height}
	for _, s := range ps.Ordered {
		role := RoleContent
		switch s.Section.SectionKind {
		case element.SectionHeader:
			role = RoleHeader
		case element.SectionFooter:
			role = RoleFooter
		}
		sheet.Placements = append(sheet.Placements, Placement{
			Section: s,
			Top:     ps.Stacked[s.UID],
			Width:   size.Width,
			Height:  s.Height,
			Role:    role,
		})
	}
	return sheet, nil
}

// ComputePageBreaks 返回主流程每张纸的起始位置（页面堆叠坐标，包含 doc_head 与 doc_back
// 的高度偏移）。个数等于主流程的纸张数。纸张无法解析或可用高度 <= 0 时不分页。
func ComputePageBreaks(page *element.Element, units layout.Unit) []float64 {
	ps := element.Sections(page)
	start := 0.0
	if len(ps.Ordered) > 0 {
		first := ps.Body
		if len(ps.Generic) > 0 {
			first = ps.Generic[0]
		}
		if first != nil {
			start = ps.Stacked[first.UID]
		}
	}
	f, err := NewFrame(page, units, nil)
	if err != nil || element.MinHeight(page, units) <= 0 || f.Available() <= epsilon {
		return []float64{start}
	}
	sheets, err := AutoPlan(page, units, nil)
	if err != nil {
		return []float64{start}
	}
	var breaks []float64
	for _, s := range sheets {
		if s.Kind != SheetMain {
			continue
		}
		p, ok := s.ContentTop()
		if !ok {
			continue
		}
		breaks = append(breaks, f.Stacked[p.Section.UID]+p.Offset)
	}
	if len(breaks) == 0 {
		breaks = []float64{start}
	}
	return breaks
}
