package renderer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/paint"
	"github.com/ByLCY/reportkit/renderer/display"
	"github.com/ByLCY/reportkit/renderer/html"
	"github.com/ByLCY/reportkit/renderer/pdf"
)

// Format 输出格式。
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
)

// stripGap 是 png 输出中页与页之间的间隔（像素）。
const stripGap = 8

// ParseFormat 解析输出格式，也接受文件扩展名（如 ".htm"）。
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "pdf":
		return FormatPDF, nil
	case "html", "htm":
		return FormatHTML, nil
	case "png", "img", "image":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("不支持的输出格式 %q", s)
}

// RenderFile 按格式选择后端，把报表写入 out。png 格式把所有页纵向拼成一张图。
func RenderFile(ctx context.Context, format Format, report *element.Element, out io.Writer, opts Options) (*Result, error) {
	if report == nil || report.Kind != element.KindReport {
		return nil, element.ErrNotReport
	}
	units := report.Report.Units
	var cv paint.Canvas
	var img *display.Canvas
	switch format {
	case FormatPDF:
		cv = pdf.New(out, units, opts.Logger)
	case FormatHTML:
		cv = html.New(out, units, html.Options{Minify: opts.Minify, Logger: opts.Logger})
	case FormatPNG:
		img = display.New(units, opts.DPI, opts.Logger)
		cv = img
	default:
		return nil, fmt.Errorf("不支持的输出格式 %q", format)
	}
	res, err := Render(ctx, report, cv, opts)
	if err != nil {
		return nil, err
	}
	if img != nil {
		if err := img.WriteStrip(out, stripGap); err != nil {
			return nil, err
		}
	}
	return res, nil
}
