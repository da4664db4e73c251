package flow

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/layout"
)

const a4HeightPt = 297 * layout.MmToPt

func section(kind element.SectionKind, name string, height float64) *element.Element {
	s := element.New(element.KindSection)
	s.Section.SectionKind = kind
	s.Name = name
	s.Height = height
	return s
}

func newPage(sections ...*element.Element) *element.Element {
	page := element.New(element.KindPage)
	_ = page.Add(sections...)
	return page
}

func mainSheets(sheets []Sheet) []Sheet {
	var out []Sheet
	for _, s := range sheets {
		if s.Kind == SheetMain {
			out = append(out, s)
		}
	}
	return out
}

func TestComputePageBreaksTallBody(t *testing.T) {
	page := newPage(section(element.SectionBody, "body", 1000))

	breaks := ComputePageBreaks(page, layout.UnitPT)
	require.Len(t, breaks, int(math.Ceil(1000/a4HeightPt)))
	assert.Equal(t, 0.0, breaks[0])
	assert.InDelta(t, a4HeightPt, breaks[1], 1e-9)
}

func TestPageCountIsBodyBreaksPlusForcedPage(t *testing.T) {
	const h1, h2, hs = 50.0, 30.0, 100.0
	avail := a4HeightPt - h1 - h2
	for n := 1; n <= 4; n++ {
		generic := section(element.SectionGeneric, "intro", hs)
		generic.Section.Break = element.BreakAfter
		page := newPage(
			section(element.SectionHeader, "header", h1),
			section(element.SectionFooter, "footer", h2),
			generic,
			section(element.SectionBody, "body", avail*float64(n)-1),
		)
		sheets, err := AutoPlan(page, layout.UnitPT, nil)
		require.NoError(t, err)
		assert.Len(t, mainSheets(sheets), n+1, "n=%d", n)
		assert.Len(t, ComputePageBreaks(page, layout.UnitPT), n+1, "n=%d", n)
	}
}

func TestHeaderAndFooterRepeatOnEverySheet(t *testing.T) {
	page := newPage(
		section(element.SectionHeader, "header", 40),
		section(element.SectionFooter, "footer", 20),
		section(element.SectionBody, "body", 2000),
	)
	sheets, err := AutoPlan(page, layout.UnitPT, nil)
	require.NoError(t, err)
	require.Len(t, sheets, 3)
	for _, s := range sheets {
		require.GreaterOrEqual(t, len(s.Placements), 3)
		assert.Equal(t, RoleHeader, s.Placements[0].Role)
		assert.Equal(t, 0.0, s.Placements[0].Top)
		assert.Equal(t, RoleFooter, s.Placements[1].Role)
		assert.InDelta(t, a4HeightPt-20, s.Placements[1].Top, 1e-9)
		body, ok := s.ContentTop()
		require.True(t, ok)
		assert.Equal(t, 40.0, body.Top)
		assert.LessOrEqual(t, body.Top+body.Height, a4HeightPt-20+1e-9)
	}
	second, _ := sheets[1].ContentTop()
	assert.InDelta(t, a4HeightPt-60, second.Offset, 1e-9)
}

func TestBreakBeforeStartsNewSheet(t *testing.T) {
	g2 := section(element.SectionGeneric, "g2", 100)
	g2.Section.Break = element.BreakBefore
	page := newPage(section(element.SectionGeneric, "g1", 100), g2, section(element.SectionBody, "body", 50))

	sheets, err := AutoPlan(page, layout.UnitMM, nil)
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Equal(t, "g1", sheets[0].Placements[0].Section.Name)
	assert.Equal(t, "g2", sheets[1].Placements[0].Section.Name)
	assert.Equal(t, 0.0, sheets[1].Placements[0].Top)
	assert.Equal(t, 100.0, sheets[1].Placements[1].Top)
}

func TestBreakBeforeOnFirstSectionDoesNotLeaveBlankSheet(t *testing.T) {
	g := section(element.SectionGeneric, "g", 10)
	g.Section.Break = element.BreakBefore
	page := newPage(g, section(element.SectionBody, "body", 10))

	sheets, err := AutoPlan(page, layout.UnitMM, nil)
	require.NoError(t, err)
	assert.Len(t, sheets, 1)
}

func TestNewPageSuppressedOnFreshSheet(t *testing.T) {
	page := newPage(section(element.SectionBody, "body", 10))
	f, err := NewFrame(page, layout.UnitMM, nil)
	require.NoError(t, err)

	c, cmds := f.NewPage(Start())
	require.NotEmpty(t, cmds)
	assert.True(t, c.Fresh)

	same, none := f.NewPage(c)
	assert.Empty(t, none)
	assert.Equal(t, c, same)

	_, none = f.NextPage(c, 0, true)
	assert.Empty(t, none)
}

func TestTrailingBlankSheetIsDiscarded(t *testing.T) {
	page := newPage(section(element.SectionBody, "body", 10))
	f, err := NewFrame(page, layout.UnitMM, nil)
	require.NoError(t, err)
	col := &Collector{Page: page}

	c, cmds := f.Print(Start(), Placeable{Section: page.Children[0], Height: 10})
	col.Apply(cmds)
	c, cmds = f.NextPage(c, 0, true)
	col.Apply(cmds)
	_, cmds = f.Finish(c)
	col.Apply(cmds)
	assert.Len(t, col.Sheets(), 1)
}

func TestRepeatPlacesCopiesSideBySide(t *testing.T) {
	labels := section(element.SectionGeneric, "labels", 20)
	labels.Section.Repeat = 3
	page := newPage(labels, section(element.SectionBody, "body", 10))

	sheets, err := AutoPlan(page, layout.UnitMM, nil)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	ps := sheets[0].Placements
	require.Len(t, ps, 4)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, float64(i)*70, ps[i].Left, 1e-9)
		assert.Equal(t, 0.0, ps[i].Top)
		assert.InDelta(t, 70, ps[i].Width, 1e-9)
		assert.Equal(t, i, ps[i].Slot)
	}
	assert.Equal(t, 20.0, ps[3].Top)
}

func TestPartialRepeatRowClosesOnOtherSection(t *testing.T) {
	labels := section(element.SectionGeneric, "labels", 20)
	labels.Section.Repeat = 3
	other := section(element.SectionGeneric, "other", 5)
	page := newPage(labels, other, section(element.SectionBody, "body", 10))
	f, err := NewFrame(page, layout.UnitMM, nil)
	require.NoError(t, err)

	c := Start()
	c, _ = f.Print(c, Placeable{Section: labels, Height: 20})
	c, _ = f.Print(c, Placeable{Section: labels, Height: 20})
	assert.Equal(t, 2, c.Slot)
	assert.Equal(t, 0.0, c.Top)

	c, cmds := f.Print(c, Placeable{Section: other, Height: 5})
	assert.Equal(t, 0, c.Slot)
	assert.Equal(t, 25.0, c.Top)
	assert.Equal(t, 20.0, cmds[len(cmds)-1].Placement.Top)
}

func TestBodyRepeatPlacesChunksSideBySide(t *testing.T) {
	body := section(element.SectionBody, "body", 40)
	body.Section.Repeat = 3

	sheets, err := AutoPlan(newPage(body), layout.UnitMM, nil)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	ps := sheets[0].Placements
	require.Len(t, ps, 3)
	for i, p := range ps {
		assert.InDelta(t, float64(i)*70, p.Left, 1e-9)
		assert.Equal(t, 0.0, p.Top)
		assert.InDelta(t, 70, p.Width, 1e-9)
		assert.Equal(t, 40.0, p.Height)
		assert.Equal(t, i, p.Slot)
	}
}

func TestTallBodyRepeatsEveryChunk(t *testing.T) {
	body := section(element.SectionBody, "body", 400)
	body.Section.Repeat = 2

	sheets, err := AutoPlan(newPage(body), layout.UnitMM, nil)
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	for n, sheet := range sheets {
		require.Len(t, sheet.Placements, 2)
		for i, p := range sheet.Placements {
			assert.InDelta(t, float64(i)*105, p.Left, 1e-9)
			assert.InDelta(t, 105, p.Width, 1e-9)
			assert.InDelta(t, float64(n)*297, p.Offset, 1e-9)
		}
	}
	assert.InDelta(t, 103, sheets[1].Placements[0].Height, 1e-9)
}

func TestOverflowCheckMovesSectionToNextSheet(t *testing.T) {
	s := section(element.SectionGeneric, "row", 100)
	page := newPage(s, section(element.SectionBody, "body", 10))
	f, err := NewFrame(page, layout.UnitMM, nil)
	require.NoError(t, err)

	c := Start()
	col := &Collector{Page: page}
	for i := 0; i < 3; i++ {
		var cmds []Command
		c, cmds = f.Print(c, Placeable{Section: s, Height: 100, CheckOverflow: true})
		col.Apply(cmds)
	}
	_, cmds := f.Finish(c)
	col.Apply(cmds)
	sheets := col.Sheets()
	require.Len(t, sheets, 2)
	assert.Len(t, sheets[0].Placements, 2)
	assert.Equal(t, 0.0, sheets[1].Placements[0].Top)
}

func TestBodyChildrenAssignedByTopEdge(t *testing.T) {
	body := section(element.SectionBody, "body", 1000)
	a := element.New(element.KindText)
	a.SetRect(layout.NewRect(0, 10, 10, 900))
	b := element.New(element.KindText)
	b.SetRect(layout.NewRect(0, 900, 10, 10))
	_ = body.Add(a, b)

	chunks := ChunkBody(body, nil, a4HeightPt, a4HeightPt)
	require.Len(t, chunks, 2)
	assert.Equal(t, []*element.Element{a}, chunks[0].Items)
	assert.Equal(t, []*element.Element{b}, chunks[1].Items)
}

func TestDegenerateHeightNeverBreaks(t *testing.T) {
	page := newPage(
		section(element.SectionHeader, "header", 500),
		section(element.SectionFooter, "footer", 500),
		section(element.SectionBody, "body", 5000),
	)
	assert.Len(t, ComputePageBreaks(page, layout.UnitPT), 1)

	custom := newPage(section(element.SectionBody, "body", 5000))
	custom.Page.Paper = "custom"
	assert.Len(t, ComputePageBreaks(custom, layout.UnitPT), 1)
}

func TestDocHeadAndBackAreSeparateSheets(t *testing.T) {
	page := newPage(
		section(element.SectionDocHead, "cover", 30),
		section(element.SectionDocBack, "back", 20),
		section(element.SectionBody, "body", 1000),
	)
	sheets, err := AutoPlan(page, layout.UnitPT, nil)
	require.NoError(t, err)
	var kinds []SheetKind
	for _, s := range sheets {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []SheetKind{SheetDocHead, SheetMain, SheetMain, SheetDocBack}, kinds)

	breaks := ComputePageBreaks(page, layout.UnitPT)
	require.Len(t, breaks, 2)
	assert.Equal(t, 50.0, breaks[0])
	assert.InDelta(t, 50+a4HeightPt, breaks[1], 1e-9)
}

func TestGrowIsMonotonic(t *testing.T) {
	body := section(element.SectionBody, "body", 100)
	grow := element.New(element.KindText)
	grow.Text.AutoGrow = true
	grow.SetRect(layout.NewRect(0, 10, 50, 10))
	below := element.New(element.KindRectangle)
	below.SetRect(layout.NewRect(0, 25, 10, 5))
	beside := element.New(element.KindRectangle)
	beside.SetRect(layout.NewRect(60, 12, 10, 5))
	fixed := element.New(element.KindText)
	fixed.SetRect(layout.NewRect(0, 0, 10, 5))
	_ = body.Add(grow, below, beside, fixed)
	page := newPage(body)

	l := Grow(page, func(e *element.Element, width float64) float64 {
		assert.Equal(t, 50.0, width)
		return 30
	})
	assert.Equal(t, 30.0, l.Rect(grow).Height)
	assert.Equal(t, 45.0, l.Rect(below).Top)
	assert.Equal(t, 12.0, l.Rect(beside).Top)
	assert.Equal(t, fixed.Rect(true), l.Rect(fixed))
	assert.Equal(t, 120.0, l.Height(body))
	// 文档树保持不变。
	assert.Equal(t, 10.0, grow.Height)
	assert.Equal(t, 25.0, below.Top)
	assert.Equal(t, 100.0, body.Height)
}

func TestGrowNeverShrinks(t *testing.T) {
	body := section(element.SectionBody, "body", 100)
	text := element.New(element.KindText)
	text.Text.AutoGrow = true
	text.SetRect(layout.NewRect(0, 0, 50, 40))
	_ = body.Add(text)

	l := Grow(newPage(body), func(*element.Element, float64) float64 { return 5 })
	assert.Equal(t, 40.0, l.Rect(text).Height)
	assert.Equal(t, 100.0, l.Height(body))
}

func TestPlacementsCarryPlannedLayout(t *testing.T) {
	grow := element.New(element.KindText)
	grow.Width, grow.Height = 50, 10
	grow.Text.AutoGrow = true
	header := section(element.SectionHeader, "header", 20)
	body := section(element.SectionBody, "body", 30)
	_ = body.Add(grow)
	page := newPage(header, body)
	lay := Grow(page, func(*element.Element, float64) float64 { return 25 })

	sheets, err := AutoPlan(page, layout.UnitMM, lay)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	for _, p := range sheets[0].Placements {
		assert.Same(t, lay, p.Layout)
	}
	ps := sheets[0].Placements
	assert.Equal(t, 45.0, ps[len(ps)-1].Height)
	assert.Equal(t, 25.0, ps[len(ps)-1].Layout.Rect(grow).Height)
}

func TestEditPlanStacksSections(t *testing.T) {
	page := newPage(section(element.SectionHeader, "h", 20), section(element.SectionBody, "body", 100))
	sheet, err := EditPlan(page, layout.UnitMM)
	require.NoError(t, err)
	assert.Equal(t, SheetEdit, sheet.Kind)
	require.Len(t, sheet.Placements, 2)
	assert.Equal(t, 20.0, sheet.Placements[1].Top)
	assert.Equal(t, 297.0, sheet.Height)
}

func TestDebugJSON(t *testing.T) {
	page := newPage(section(element.SectionBody, "body", 10))
	sheets, err := AutoPlan(page, layout.UnitMM, nil)
	require.NoError(t, err)
	data, err := DebugJSON(sheets)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"kind": "main"`))
}
