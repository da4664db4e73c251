package script

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/reportkit/binding"
	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/flow"
	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/logging"
)

func section(kind element.SectionKind, name string, height float64) *element.Element {
	s := element.New(element.KindSection)
	s.Section.SectionKind = kind
	s.Name = name
	s.Height = height
	return s
}

func text(name, value string) *element.Element {
	t := element.New(element.KindText)
	t.Name = name
	t.Text.Text = value
	t.Width, t.Height = 100, 20
	return t
}

func newReport(script string, sections ...*element.Element) *element.Element {
	page := element.New(element.KindPage)
	_ = page.Add(sections...)
	r := element.New(element.KindReport)
	r.Report.Units = layout.UnitPT
	r.Report.Script = script
	_ = r.Add(page)
	return r
}

func run(t *testing.T, r *element.Element, data any, policy binding.Policy) *Result {
	t.Helper()
	res, err := Run(context.Background(), r, data, Options{Units: layout.UnitPT, Policy: policy})
	require.NoError(t, err)
	return res
}

func TestEmptyScriptKeepsAutoMode(t *testing.T) {
	res := run(t, newReport("", section(element.SectionBody, "body", 100)), nil, binding.Halt)
	assert.True(t, res.AutoMode)
	assert.Empty(t, res.Sheets)
}

func TestPrintSequencesSections(t *testing.T) {
	r := newReport(`
		report.disableAutoMode();
		for (var i = 0; i < data.rows.length; i++) {
			report.print("row");
		}
		report.print(report.sections.total);
	`,
		section(element.SectionHeader, "header", 40),
		section(element.SectionGeneric, "row", 100),
		section(element.SectionGeneric, "total", 50),
		section(element.SectionBody, "body", 10),
	)
	data := map[string]any{"rows": []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	res := run(t, r, data, binding.Halt)
	require.False(t, res.AutoMode)

	// A4 高 841.89pt，页眉 40pt 之后每张纸放得下 8 行。
	require.Len(t, res.Sheets, 2)
	count := func(s flow.Sheet, name string) int {
		n := 0
		for _, p := range s.Placements {
			if p.Section.Name == name {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 8, count(res.Sheets[0], "row"))
	assert.Equal(t, 2, count(res.Sheets[1], "row"))
	assert.Equal(t, 1, count(res.Sheets[1], "total"))
	assert.Equal(t, 1, count(res.Sheets[1], "header"))
}

func TestNextPage(t *testing.T) {
	r := newReport(`
		report.disableAutoMode();
		report.print("a");
		report.nextPage(100);
		report.print("a");
		report.nextPage(1000);
		report.print("a");
		report.nextPage();
		report.nextPage();
		report.print("a");
	`,
		section(element.SectionGeneric, "a", 50),
		section(element.SectionBody, "body", 10),
	)
	res := run(t, r, nil, binding.Halt)
	require.Len(t, res.Sheets, 3)
	assert.Len(t, res.Sheets[0].Placements, 2)
	assert.Len(t, res.Sheets[1].Placements, 1)
	assert.Len(t, res.Sheets[2].Placements, 1)
}

func TestItemOverridesAreSnapshotted(t *testing.T) {
	row := section(element.SectionGeneric, "row", 30)
	_ = row.Add(text("label", "design"))
	r := newReport(`
		report.disableAutoMode();
		var label = report.sections.row.item("label");
		log("before", label.text);
		label.text = "first";
		report.print("row");
		label.text = "second";
		label.visible = false;
		report.print("row");
		if (report.sections.row.item("missing") !== null) throw new Error("unexpected");
	`, row, section(element.SectionBody, "body", 10))

	h := logging.NewBufferedLogHandler(nil)
	res, err := Run(context.Background(), r, nil, Options{Units: layout.UnitPT, Logger: slog.New(h)})
	require.NoError(t, err)
	require.Len(t, res.Sheets, 1)
	require.Len(t, res.Sheets[0].Placements, 2)

	uid := row.Children[0].UID
	first := res.Sheets[0].Placements[0].Overrides[uid]
	second := res.Sheets[0].Placements[1].Overrides[uid]
	require.NotNil(t, first.Text)
	require.NotNil(t, second.Text)
	assert.Equal(t, "first", *first.Text)
	assert.Nil(t, first.Visible)
	assert.Equal(t, "second", *second.Text)
	require.NotNil(t, second.Visible)
	assert.False(t, *second.Visible)

	assert.Equal(t, "design", row.Children[0].Text.Text, "document must stay untouched")
	assert.True(t, h.Contains("before design"))
}

func TestRepeatFillsRowInScriptMode(t *testing.T) {
	label := section(element.SectionGeneric, "label", 60)
	label.Section.Repeat = 3
	r := newReport(`
		report.disableAutoMode();
		for (var i = 0; i < 4; i++) report.print("label");
	`, label, section(element.SectionBody, "body", 10))
	res := run(t, r, nil, binding.Halt)
	require.Len(t, res.Sheets, 1)
	ps := res.Sheets[0].Placements
	require.Len(t, ps, 4)
	assert.Equal(t, ps[0].Top, ps[2].Top)
	assert.InDelta(t, ps[0].Width, ps[1].Left, 1e-9)
	assert.InDelta(t, ps[0].Top+60, ps[3].Top, 1e-9)
	assert.Equal(t, 0.0, ps[3].Left)
}

func TestBodyPrintsFillRepeatSlots(t *testing.T) {
	body := section(element.SectionBody, "body", 40)
	body.Section.Repeat = 3
	r := newReport(`
		report.disableAutoMode();
		report.print("body");
		report.print("body");
	`, body)
	res := run(t, r, nil, binding.Halt)
	require.Len(t, res.Sheets, 1)
	ps := res.Sheets[0].Placements
	require.Len(t, ps, 2)
	assert.Equal(t, ps[0].Top, ps[1].Top)
	assert.InDelta(t, ps[0].Width, ps[1].Left, 1e-9)
	assert.Equal(t, 1, ps[1].Slot)
}

func TestPrintUsesGrownHeight(t *testing.T) {
	row := section(element.SectionGeneric, "row", 30)
	r := newReport(`report.disableAutoMode(); report.print("row"); report.print("row");`,
		row, section(element.SectionBody, "body", 10))
	grow := func(s *element.Element, _ map[int64]flow.Override) *flow.Layout {
		return flow.GrowSection(s, func(*element.Element, float64) float64 { return 0 })
	}
	res, err := Run(context.Background(), r, nil, Options{Units: layout.UnitPT, Grow: grow})
	require.NoError(t, err)
	ps := res.Sheets[0].Placements
	require.Len(t, ps, 2)
	assert.Equal(t, 30.0, ps[1].Top)
}

func TestScriptErrorPolicies(t *testing.T) {
	src := `report.disableAutoMode(); report.print("row"); throw new Error("boom");`
	build := func() *element.Element {
		return newReport(src, section(element.SectionGeneric, "row", 30), section(element.SectionBody, "body", 10))
	}

	_, err := Run(context.Background(), build(), nil, Options{Units: layout.UnitPT, Policy: binding.Halt})
	var serr *ScriptError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, err.Error(), "boom")

	res := run(t, build(), nil, binding.Isolate)
	assert.True(t, res.AutoMode)
	assert.Empty(t, res.Sheets)
	require.ErrorAs(t, res.Err, &serr)
}

func TestUnknownSectionFails(t *testing.T) {
	r := newReport(`report.print("nope")`, section(element.SectionBody, "body", 10))
	_, err := Run(context.Background(), r, nil, Options{Units: layout.UnitPT, Policy: binding.Halt})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestDocHeadPrintsOnOwnSheet(t *testing.T) {
	r := newReport(`
		report.disableAutoMode();
		report.print("cover");
		report.print("row");
		report.print("back");
		if (report.pageNumber() !== 3) throw new Error("page " + report.pageNumber());
	`,
		section(element.SectionDocHead, "cover", 200),
		section(element.SectionGeneric, "row", 30),
		section(element.SectionDocBack, "back", 100),
		section(element.SectionBody, "body", 10),
	)
	res := run(t, r, nil, binding.Halt)
	require.Len(t, res.Sheets, 3)
	assert.Equal(t, flow.SheetDocHead, res.Sheets[0].Kind)
	assert.Equal(t, flow.SheetMain, res.Sheets[1].Kind)
	assert.Equal(t, flow.SheetDocBack, res.Sheets[2].Kind)
}

func TestContextCancelInterruptsScript(t *testing.T) {
	r := newReport(`for (;;) {}`, section(element.SectionBody, "body", 10))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Run(ctx, r, nil, Options{Units: layout.UnitPT, Policy: binding.Halt})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
