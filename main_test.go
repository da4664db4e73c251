package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/reportkit/renderer"
)

const demo = `report Demo 2 {
  meta { title: "Demo"; units: mm }
  schema { name: string }
  page A5 {
    section header { height: 10mm
      text { at: [5mm, 2mm, 100mm, 6mm]; "Page ${document.page}/${document.pagecount}" }
    }
    section body { height: 400mm
      text { at: [5mm, 0, 100mm, 6mm]; "Hello ${name}" }
    }
  }
}
`

func writeDemo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.rk")
	require.NoError(t, os.WriteFile(path, []byte(demo), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRenderCommandWritesPDF(t *testing.T) {
	input := writeDemo(t)
	debug := filepath.Join(filepath.Dir(input), "sheets.json")
	_, err := execute(t, "render", input, "--sample", "--debug", debug)
	require.NoError(t, err)

	pdf, err := os.ReadFile(strings.TrimSuffix(input, ".rk") + ".pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	var sheets []map[string]any
	b, err := os.ReadFile(debug)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &sheets))
	assert.Len(t, sheets, 2, "a 400mm body needs two A5 sheets")
}

func TestRenderCommandRejectsBadFlags(t *testing.T) {
	input := writeDemo(t)
	_, err := execute(t, "render", input, "--mode", "draft")
	assert.Error(t, err)
	_, err = execute(t, "render", input, "--binding-errors", "ignore")
	assert.Error(t, err)
	_, err = execute(t, "render", input, "-o", filepath.Join(t.TempDir(), "out.docx"))
	assert.Error(t, err)
}

func TestCompileSampleAndBreaks(t *testing.T) {
	input := writeDemo(t)

	out, err := execute(t, "compile", input)
	require.NoError(t, err)
	assert.Contains(t, out, `"Demo"`)

	out, err = execute(t, "sample", input)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "name 1"}`, out)

	out, err = execute(t, "breaks", input)
	require.NoError(t, err)
	var breaks []pageBreaks
	require.NoError(t, json.Unmarshal([]byte(out), &breaks))
	require.Len(t, breaks, 1)
	assert.Len(t, breaks[0].Breaks, 2)
}

func TestResolveOutput(t *testing.T) {
	f, out, err := resolveOutput("r/demo.rk", "", "")
	require.NoError(t, err)
	assert.Equal(t, renderer.FormatPDF, f)
	assert.Equal(t, "r/demo.pdf", out)

	f, out, err = resolveOutput("demo.rk", "site/index.html", "")
	require.NoError(t, err)
	assert.Equal(t, renderer.FormatHTML, f)
	assert.Equal(t, "site/index.html", out)

	f, _, err = resolveOutput("demo.rk", "x.bin", "png")
	require.NoError(t, err)
	assert.Equal(t, renderer.FormatPNG, f)
}
