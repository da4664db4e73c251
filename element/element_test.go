package element

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/logging"
)

func sampleElements() []*Element {
	text := New(KindText)
	text.Name = "total"
	text.SetRect(layout.NewRect(1.23456, 2, 30, 8))
	text.Text.Text = "Total: ${document.pagecount}"
	text.Text.Bold = true
	text.Text.Align = layout.AlignJustify
	text.Text.Columns = 2
	text.Text.ColumnGap = 4
	text.Text.AutoGrow = true
	text.Text.Rotation = 90

	img := New(KindImage)
	img.SetRect(layout.NewRect(0, 0, 20, 20))
	img.Image.Source = "logo"
	img.Image.Fit = FitCover
	img.Link = "https://example.com"

	line := New(KindLine)
	line.SetRect(layout.NewRect(10, 10, -5, 3))
	line.Line.Dash = "dash"

	rect := New(KindRectangle)
	rect.Shape.BkColor = "#ff0000"
	rect.Shape.Radius = 2
	rect.Visible = false

	ell := New(KindEllipse)
	ell.Shape.Percent = 37.5
	ell.ZOrder = 3

	custom := New(KindCustom)
	custom.Custom.Plugin = "barcode"
	custom.Custom.Values = map[string]any{"code": "123", "scale": 1.23456, "empty": "", "nested": map[string]any{"a": 0.0, "b": []any{1.0, "x"}}}

	group := New(KindGroup)
	group.Group.Clip = false
	_ = group.Add(New(KindText))

	section := New(KindSection)
	section.Name = "labels"
	section.Height = 40
	section.Section.Break = BreakAfter
	section.Section.Repeat = 3
	_ = section.Add(rect)

	page := New(KindPage)
	page.Page.Orientation = layout.Landscape
	body := New(KindSection)
	body.Section.SectionKind = SectionBody
	body.Height = 100
	_ = page.Add(body, section)

	report := NewReport(layout.UnitPT)
	report.Report.Title = "Invoice"
	report.Report.Script = "report.print('labels')"
	report.Report.Resources = []Resource{{Type: ResourceImage, Name: "logo", Data: "data:image/png;base64,AAAA"}}
	report.Report.DataSource = []SchemaNode{{Name: "items", Type: "array", Elements: []SchemaNode{{Name: "price", Type: "number"}}}}

	return []*Element{text, img, line, rect, ell, custom, group, section, page, report}
}

func TestSaveLoadRoundTripEveryKind(t *testing.T) {
	seen := map[Kind]bool{}
	for _, el := range sampleElements() {
		seen[el.Kind] = true
		first := Save(el)
		loaded, err := Load(first)
		if err != nil {
			t.Fatalf("%s: load: %v", el.Kind, err)
		}
		second := Save(loaded)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("%s: round trip mismatch (-first +second):\n%s", el.Kind, diff)
		}
	}
	for _, k := range Kinds {
		if !seen[k] {
			t.Fatalf("kind %s not covered", k)
		}
	}
}

func TestRoundTripThroughJSON(t *testing.T) {
	report := sampleElements()[9]
	data, err := MarshalReport(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	loaded, err := UnmarshalReport(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	again, err := MarshalReport(loaded)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if diff := cmp.Diff(string(data), string(again)); diff != "" {
		t.Fatalf("json round trip mismatch:\n%s", diff)
	}
	if loaded.Report.Units != layout.UnitPT {
		t.Fatalf("units lost: %v", loaded.Report.Units)
	}
}

func TestUnsetUnitsSaveAsMillimetres(t *testing.T) {
	report := New(KindReport)
	report.Report.Units = layout.UnitNone
	first, err := MarshalReport(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	loaded, err := UnmarshalReport(first)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if loaded.Report.Units != layout.UnitMM {
		t.Fatalf("want mm after reload, got %v", loaded.Report.Units)
	}
	second, err := MarshalReport(loaded)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Fatalf("save is not idempotent:\n%s", diff)
	}
	if units, ok := Save(report)["units"]; ok && units != "mm" {
		t.Fatalf("unset units saved as %q", units)
	}
}

func TestSaveRoundsAndOmitsDefaults(t *testing.T) {
	text := sampleElements()[0]
	m := Save(text)
	if got := m["left"]; got != 1.235 {
		t.Fatalf("left should be rounded to 3 decimals, got %v", got)
	}
	for _, key := range []string{"fontSize", "visible", "color", "lineBreak"} {
		if _, ok := m[key]; ok {
			t.Fatalf("default field %q should be omitted: %v", key, m)
		}
	}
	custom := Save(sampleElements()[5])
	vals := custom["values"].(map[string]any)
	if _, ok := vals["empty"]; ok {
		t.Fatalf("empty plugin value should be cleaned: %v", vals)
	}
	if vals["scale"] != 1.235 {
		t.Fatalf("plugin value not rounded: %v", vals["scale"])
	}
	if nested := vals["nested"].(map[string]any); len(nested) != 1 {
		t.Fatalf("nested zero should be dropped: %v", nested)
	}
}

func TestRectangleZeroSizeRoundTrip(t *testing.T) {
	rect := New(KindRectangle)
	rect.SetRect(layout.NewRect(10, 20, 0, 0))
	rect.Shape.BkColor = "#ff0000"

	m := Save(rect)
	if _, ok := m["width"]; ok {
		t.Fatalf("width should be omitted: %v", m)
	}
	if _, ok := m["height"]; ok {
		t.Fatalf("height should be omitted: %v", m)
	}
	data, _ := json.Marshal(m)
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	loaded, err := Load(decoded)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r := loaded.Rect(false); r.Width != 0 || r.Left != 10 || r.Top != 20 {
		t.Fatalf("unexpected rect %+v", r)
	}
	if loaded.Shape.BkColor != "#ff0000" || loaded.Shape.BorderWidth != 1 {
		t.Fatalf("shape defaults not restored: %+v", loaded.Shape)
	}
}

func TestVersionErrors(t *testing.T) {
	cases := map[string]int{
		`{"type":"report"}`:              0,
		`{"type":"report","version":1}`: 1,
	}
	for input, version := range cases {
		_, err := UnmarshalReport([]byte(input))
		var verr *VersionError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected VersionError, got %v", input, err)
		}
		if verr.Version != version || verr.Min != MinVersion {
			t.Fatalf("%s: unexpected error %+v", input, verr)
		}
	}
	if _, err := UnmarshalReport([]byte(`{"type":"page","version":2}`)); !errors.Is(err, ErrNotReport) {
		t.Fatalf("expected ErrNotReport, got %v", err)
	}
}

func TestUnknownChildTypeIsLoggedAndSkipped(t *testing.T) {
	h := logging.NewBufferedLogHandler(nil)
	old := logging.Logger()
	logging.SetLogger(slog.New(h))
	defer logging.SetLogger(old)

	section, err := Load(map[string]any{
		"type": "section",
		"children": []any{
			map[string]any{"type": "chart"},
			map[string]any{"type": "text", "text": "ok"},
		},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(section.Children) != 1 || section.Children[0].Text.Text != "ok" {
		t.Fatalf("unexpected children %v", section.Children)
	}
	if !h.Contains("chart") || !h.Contains(`"level":"ERROR"`) {
		t.Fatalf("unknown type not logged: %s", h.String())
	}
	if Factory(map[string]any{"type": "nope"}) != nil {
		t.Fatalf("factory should return nil for unknown types")
	}
}

func TestSectionOrderingAndValidation(t *testing.T) {
	page := New(KindPage)
	mk := func(kind SectionKind, name string) *Element {
		s := New(KindSection)
		s.Section.SectionKind = kind
		s.Name = name
		return s
	}
	_ = page.Add(mk(SectionBody, "body"), mk(SectionGeneric, "g1"), mk(SectionFooter, "f"), mk(SectionGeneric, "g2"), mk(SectionDocHead, "dh"), mk(SectionHeader, "h"), mk(SectionDocBack, "db"))

	var names []string
	for _, s := range page.Children {
		names = append(names, s.Name)
	}
	want := []string{"dh", "db", "h", "f", "g1", "g2", "body"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("section order (-want +got):\n%s", diff)
	}
	if err := ValidatePage(page); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := AddSection(page, mk(SectionHeader, "h2")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ValidatePage(page); !errors.Is(err, ErrDuplicateSection) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	body := Sections(page).Body
	RemoveSection(page, body.UID)
	if err := ValidatePage(page); !errors.Is(err, ErrNoBody) {
		t.Fatalf("expected ErrNoBody, got %v", err)
	}
}

func TestTreeAbsRect(t *testing.T) {
	report := New(KindReport)
	page := New(KindPage)
	header := New(KindSection)
	header.Section.SectionKind = SectionHeader
	header.Height = 20
	body := New(KindSection)
	body.Section.SectionKind = SectionBody
	body.Height = 100
	group := New(KindGroup)
	group.SetRect(layout.NewRect(10, 5, 50, 50))
	text := New(KindText)
	text.SetRect(layout.NewRect(2, 3, 40, 10))
	_ = group.Add(text)
	_ = body.Add(group)
	_ = page.Add(body, header)
	_ = report.Add(page)

	tree := NewTree(report)
	if got := tree.AbsRect(text.UID); got != layout.NewRect(12, 28, 40, 10) {
		t.Fatalf("abs rect = %+v", got)
	}
	if got := tree.AbsRect(body.UID); got.Top != 20 {
		t.Fatalf("body stacked top = %v", got.Top)
	}
	if tree.PageOf(text.UID) != page || tree.SectionOf(text.UID) != body || tree.Parent(text.UID) != group {
		t.Fatalf("ancestor lookup failed")
	}
	if tree.Report() != report || tree.Units() != layout.UnitMM {
		t.Fatalf("report lookup failed")
	}
	if PageHeight(page) != 120 {
		t.Fatalf("page height = %v", PageHeight(page))
	}
}

func TestCloneRegeneratesUIDs(t *testing.T) {
	section := sampleElements()[7]
	c := section.Clone()
	if c.UID == section.UID || c.Children[0].UID == section.Children[0].UID {
		t.Fatalf("clone must regenerate uids")
	}
	c.Children[0].Shape.BkColor = "#00ff00"
	if section.Children[0].Shape.BkColor != "#ff0000" {
		t.Fatalf("clone shares payload with original")
	}
	if diff := cmp.Diff(Save(section), Save(c)); diff == "" {
		t.Fatalf("expected the edited clone to differ")
	}
}

func TestAddRejectsStructuralChildren(t *testing.T) {
	group := New(KindGroup)
	if err := group.Add(New(KindSection)); err == nil {
		t.Fatalf("group must not own sections")
	}
	if err := New(KindText).Add(New(KindText)); err == nil {
		t.Fatalf("text is not a container")
	}
}

func TestPluginRegistry(t *testing.T) {
	RegisterPlugin("test-plugin", PluginFunc(func(ctx *PluginContext) error { return nil }))
	defer UnregisterPlugin("test-plugin")

	if _, err := LookupPlugin("test-plugin"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := LookupPlugin("missing"); !errors.Is(err, ErrUnknownPlugin) {
		t.Fatalf("expected ErrUnknownPlugin, got %v", err)
	}
	found := false
	for _, n := range Plugins() {
		found = found || n == "test-plugin"
	}
	if !found {
		t.Fatalf("plugin not listed")
	}
}

func TestDescriptorLookup(t *testing.T) {
	p, ok := Descriptor(KindText, "fontSize")
	if !ok || p.Default != 12.0 {
		t.Fatalf("fontSize descriptor = %+v", p)
	}
	if _, ok := Descriptor(KindSection, "left"); ok {
		t.Fatalf("sections have no left property")
	}
}

func TestSampleData(t *testing.T) {
	schema := []SchemaNode{
		{Name: "customer", Type: "object", Elements: []SchemaNode{{Name: "name", Type: "string"}}},
		{Name: "items", Type: "array", Elements: []SchemaNode{{Name: "amount", Type: "number"}, {Name: "paid", Type: "boolean"}}},
		{Name: "tags", Type: "array", Elements: []SchemaNode{{Type: "string"}}},
		{Name: "due", Type: "date"},
	}
	got := SampleData(schema)
	want := map[string]any{
		"customer": map[string]any{"name": "name 1"},
		"items": []any{
			map[string]any{"amount": 100.5, "paid": true},
			map[string]any{"amount": 200.5, "paid": false},
			map[string]any{"amount": 300.5, "paid": true},
		},
		"tags": []any{"item 1", "item 2", "item 3"},
		"due":  "2024-01-15",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sample data mismatch (-want +got):\n%s", diff)
	}
}
