// Package renderer 是渲染入口：把报表文档经过分页后绘制到任意 paint.Canvas。
//
// 执行模式下依次运行脚本（如果有）、自动排版、页码注入与绘制；编辑模式下每个页面只输出
// 一张纸，全部分节依次堆叠，文本不做插值，并用虚线标出分页位置。
package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/ByLCY/reportkit/binding"
	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/flow"
	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/logging"
	"github.com/ByLCY/reportkit/paint"
	"github.com/ByLCY/reportkit/script"
)

// Mode 渲染模式。
type Mode string

const (
	ModeEdit    Mode = "edit"
	ModeExecute Mode = "execute"
)

// ParseMode 解析渲染模式，空字符串为执行模式。
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeExecute:
		return ModeExecute, nil
	case ModeEdit:
		return ModeEdit, nil
	}
	return "", fmt.Errorf("未知的渲染模式 %q", s)
}

// Policies 分别决定脚本、插件与文本插值出错时的处理方式。
type Policies struct {
	Script  binding.Policy
	Plugin  binding.Policy
	Binding binding.Policy
}

// DefaultPolicies 脚本出错终止渲染，插件与插值出错只影响出错的位置。
func DefaultPolicies() Policies {
	return Policies{Script: binding.Halt, Plugin: binding.Isolate, Binding: binding.Isolate}
}

// Options 配置一次渲染。
type Options struct {
	Mode Mode
	// RootData 是 ${} 插值与脚本中的 data。缺少 document.page / document.pagecount 时自动注入。
	RootData any
	// Policies 为 nil 时使用 DefaultPolicies。
	Policies *Policies
	Logger   *slog.Logger

	// 以下仅用于 RenderFile。
	DPI    float64 // png 分辨率，0 为 display.DefaultDPI
	Minify bool    // html 输出是否压缩
}

// RenderError 是渲染过程中被隔离的错误。
type RenderError struct {
	Sheet   int // 从 0 开始；-1 表示与具体纸张无关
	Element string
	Err     error
}

func (e RenderError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("第 %d 页 %s: %v", e.Sheet+1, e.Element, e.Err)
	}
	if e.Sheet < 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("第 %d 页: %v", e.Sheet+1, e.Err)
}

func (e RenderError) Unwrap() error { return e.Err }

// PluginError 是自定义元素插件返回的错误或 panic。
type PluginError struct {
	Plugin  string
	Element string
	Err     error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("插件 %s 绘制 %s 失败: %v", e.Plugin, e.Element, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

// ErrNoPages 报表没有任何可绘制的纸张。
var ErrNoPages = errors.New("renderer: report has no printable sheets")

// Result 是渲染结果。
type Result struct {
	Sheets []flow.Sheet
	Errors []RenderError
}

// Render 把报表绘制到 cv。cv 的生命周期（StartDoc…EndDoc）由 Render 负责。
func Render(ctx context.Context, report *element.Element, cv paint.Canvas, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if report == nil || report.Kind != element.KindReport {
		return nil, element.ErrNotReport
	}
	if cv == nil {
		return nil, errors.New("renderer: canvas is nil")
	}
	pages := element.Pages(report)
	for _, page := range pages {
		if err := element.ValidatePage(page); err != nil {
			return nil, err
		}
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	pol := DefaultPolicies()
	if opts.Policies != nil {
		pol = *opts.Policies
	}

	r := &run{
		report:   report,
		cv:       cv,
		mode:     mode,
		policies: pol,
		logger:   logging.Or(opts.Logger),
		units:    report.Report.Units,
		result:   &Result{},
		sheet:    -1,
	}
	if mode == ModeExecute {
		r.data, r.doc, r.docOwn = injectDocument(opts.RootData)
		r.resolver = binding.NewResolver(r.data, pol.Binding)
		r.quiet = binding.NewResolver(r.data, binding.Isolate)
	}

	if err := r.loadResources(ctx); err != nil {
		return nil, err
	}

	var sheets []flow.Sheet
	if mode == ModeEdit {
		sheets, err = r.editSheets(pages)
	} else {
		sheets, err = r.executeSheets(ctx, pages)
	}
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, ErrNoPages
	}
	r.result.Sheets = sheets
	r.logger.Debug("分页完成", slog.String("mode", string(mode)), slog.Int("sheets", len(sheets)))

	info := paint.DocInfo{Title: report.Report.Title, Author: report.Report.Author, Creator: "reportkit"}
	if err := cv.StartDoc(info); err != nil {
		return nil, err
	}
	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.setPage(i+1, len(sheets))
		if err := r.paintSheet(sheet); err != nil {
			return nil, err
		}
	}
	if err := cv.EndDoc(); err != nil {
		return nil, err
	}
	return r.result, nil
}

// run 保存一次渲染的全部状态。
type run struct {
	report   *element.Element
	cv       paint.Canvas
	mode     Mode
	policies Policies
	logger   *slog.Logger
	units    layout.Unit
	result   *Result

	data     any
	doc      map[string]any
	docOwn   [2]bool // 调用方是否已提供 page / pagecount
	resolver *binding.Resolver
	// quiet 用于测量阶段的插值，错误不计入结果。
	quiet *binding.Resolver

	images map[string]imageRef
	sheet  int
}

func (r *run) isolate(element string, err error) {
	r.logger.Warn("渲染错误", slog.Int("sheet", r.sheet), slog.String("element", element), slog.String("error", err.Error()))
	r.result.Errors = append(r.result.Errors, RenderError{Sheet: r.sheet, Element: element, Err: err})
}

// injectDocument 复制根数据并保证存在 document 对象。非 map 的根数据原样使用。
func injectDocument(root any) (any, map[string]any, [2]bool) {
	var own [2]bool
	if root == nil {
		root = map[string]any{}
	}
	m, ok := root.(map[string]any)
	if !ok {
		return root, nil, own
	}
	out := maps.Clone(m)
	doc := map[string]any{}
	if existing, ok := m["document"].(map[string]any); ok {
		doc = maps.Clone(existing)
		_, own[0] = existing["page"]
		_, own[1] = existing["pagecount"]
	} else if _, exists := m["document"]; exists {
		return out, nil, own
	}
	out["document"] = doc
	return out, doc, own
}

func (r *run) setPage(page, count int) {
	r.sheet = page - 1
	if r.doc == nil {
		return
	}
	if !r.docOwn[0] {
		r.doc["page"] = page
	}
	if !r.docOwn[1] {
		r.doc["pagecount"] = count
	}
}

func (r *run) executeSheets(ctx context.Context, pages []*element.Element) ([]flow.Sheet, error) {
	// 排版阶段还不知道总页数，页码暂按 1 计算。
	r.setPage(1, 1)
	r.sheet = -1
	var sheets []flow.Sheet
	auto := true
	if r.report.Report.Script != "" {
		res, err := script.Run(ctx, r.report, r.data, script.Options{
			Units:  r.units,
			Policy: r.policies.Script,
			Logger: r.logger,
			Grow: func(s *element.Element, ov map[int64]flow.Override) *flow.Layout {
				return flow.GrowSection(s, r.measure(ov))
			},
		})
		if err != nil {
			return nil, err
		}
		if res.Err != nil {
			r.isolate("script", res.Err)
		}
		sheets = append(sheets, res.Sheets...)
		auto = res.AutoMode
	}
	if !auto {
		return sheets, nil
	}
	for _, page := range pages {
		planned, err := flow.AutoPlan(page, r.units, flow.Grow(page, r.measure(nil)))
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, planned...)
	}
	return sheets, nil
}

func (r *run) editSheets(pages []*element.Element) ([]flow.Sheet, error) {
	sheets := make([]flow.Sheet, 0, len(pages))
	for _, page := range pages {
		sheet, err := flow.EditPlan(page, r.units)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

// measure 返回自动增高使用的测量函数：插值后的文本在给定宽度下的高度（含内边距）。
func (r *run) measure(ov map[int64]flow.Override) flow.MeasureFunc {
	return func(e *element.Element, width float64) float64 {
		text := r.quiet.MustResolve(textOf(e, ov))
		pad := e.Text.Padding
		return r.cv.MeasureText(text, width-2*pad, textStyle(e, ov)) + 2*pad
	}
}
