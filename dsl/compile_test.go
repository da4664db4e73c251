package dsl_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/reportkit/dsl"
	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/layout"
)

func TestCompileBuildsElementTree(t *testing.T) {
	report, err := dsl.CompileString(sampleDSL, "")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if report.Report.Version != 2 || report.Report.Title != "Invoice" || report.Report.Units != layout.UnitMM {
		t.Fatalf("unexpected report props: %+v", report.Report)
	}
	if !strings.Contains(report.Report.Script, "report.disableAutoMode();") {
		t.Fatalf("script not compiled: %q", report.Report.Script)
	}

	wantSchema := []element.SchemaNode{
		{Name: "customer", Type: "object", Elements: []element.SchemaNode{{Name: "name", Type: "string"}, {Name: "vip", Type: "boolean"}}},
		{Name: "items", Type: "array", Elements: []element.SchemaNode{{Name: "amount", Type: "number"}}},
	}
	if diff := cmp.Diff(wantSchema, report.Report.DataSource); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}

	pages := element.Pages(report)
	if len(pages) != 1 || pages[0].Page.Orientation != layout.Landscape {
		t.Fatalf("unexpected pages: %+v", pages)
	}
	ps := element.Sections(pages[0])
	if ps.Header == nil || ps.Header.Name != "top" || ps.Header.Height != 20 {
		t.Fatalf("unexpected header: %+v", ps.Header)
	}
	title := ps.Header.FindByName("title")
	if title == nil || !title.Text.Bold || title.Text.Text != "Invoice ${customer.name}" {
		t.Fatalf("unexpected title: %+v", title)
	}
	if diff := cmp.Diff(layout.NewRect(10, 5, 120, 8), title.Rect(true)); diff != "" {
		t.Fatalf("title rect mismatch (-want +got):\n%s", diff)
	}

	line := ps.Body.Children[0]
	if line.Kind != element.KindLine || line.Height != -5 || line.Line.Dash != "dot" {
		t.Fatalf("unexpected line: %+v %+v", line, line.Line)
	}
	if got := ps.Body.Children[1].Text.Text; got != "Total ${items.length}" {
		t.Fatalf("unexpected body text %q", got)
	}
}

func TestCompileEmbedsResourceFiles(t *testing.T) {
	dir := t.TempDir()
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="1" height="1"></svg>`
	if err := os.WriteFile(filepath.Join(dir, "logo.svg"), []byte(svg), 0o644); err != nil {
		t.Fatal(err)
	}
	src := `report R 2 {
  meta { units: pt }
  resources {
    image logo "logo.svg"
  }
  page custom 200 100 {
    section body { height: 50
      image "logo" { at: [0, 0, 10mm, 10]; fit: cover }
      custom gauge "test-gauge" { values: { max: 10 }; percent: 1 }
    }
  }
}`
	_, err := dsl.CompileString(src, dir)
	if !errors.Is(err, dsl.ErrUnknownProperty) {
		t.Fatalf("custom elements have no percent, got %v", err)
	}

	src = strings.Replace(src, "; percent: 1", "", 1)
	report, err := dsl.CompileString(src, dir)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	res, ok := report.Report.FindResource(element.ResourceImage, "logo")
	if !ok || !strings.HasPrefix(res.Data, "data:image/svg+xml;base64,") {
		t.Fatalf("resource not embedded: %+v", res)
	}
	page := element.Pages(report)[0]
	if page.Page.Paper != "custom" || page.Page.CustomWidth != 200 || page.Page.CustomHeight != 100 {
		t.Fatalf("unexpected custom paper: %+v", page.Page)
	}
	body := element.Sections(page).Body
	img := body.Children[0]
	if img.Image.Source != "logo" || img.Image.Fit != element.FitCover {
		t.Fatalf("unexpected image: %+v", img.Image)
	}
	if w := img.Width; w < 28.34 || w > 28.35 {
		t.Fatalf("10mm should convert to points, got %v", w)
	}
	gauge := body.Children[1]
	if gauge.Custom.Plugin != "test-gauge" || gauge.Custom.Values["max"] != "10" {
		t.Fatalf("unexpected custom element: %+v", gauge.Custom)
	}
}

func TestCompileReportsPositions(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{`report R 1 { page A4 { section body { } } }`, "version"},
		{`report R 2 { meta { title: "x" } }`, "page"},
		{"report R 2 {\n page A4 {\n section body { text { align: middle } }\n }\n}", "3:"},
		{`report R 2 { page A4 { section body { table { } } } }`, "table"},
		{`report R 2 { resources { image a "missing.png" } page A4 { section body { } } }`, "missing.png"},
		{`report R 2 { page A4 { section body { } section header { } section header { } } }`, "header"},
	}
	for _, tc := range cases {
		_, err := dsl.CompileString(tc.src, t.TempDir())
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%q: expected error containing %q, got %v", tc.src, tc.want, err)
		}
	}
}
