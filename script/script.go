// Package script 执行报表脚本：作者用 report.print / report.nextPage 手动安排分节的打印顺序，
// 取代自动的自上而下排版。
//
// 脚本只能访问三个绑定：report、data、log。对元素的修改（item(name).text = ...）是本次
// 渲染的临时覆盖，在打印时快照进对应的放置，不会写回文档。
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"

	"github.com/ByLCY/reportkit/binding"
	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/flow"
	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/logging"
)

// ScriptError 包装脚本抛出的异常。
type ScriptError struct {
	Err error
}

func (e *ScriptError) Error() string { return "脚本执行失败: " + e.Err.Error() }

func (e *ScriptError) Unwrap() error { return e.Err }

// GrowFunc 返回分节在给定覆盖下自动增高后的布局。
type GrowFunc func(section *element.Element, overrides map[int64]flow.Override) *flow.Layout

// Options 配置脚本运行。
type Options struct {
	Units  layout.Unit
	Policy binding.Policy
	Logger *slog.Logger
	// Grow 为 nil 时使用设计尺寸。
	Grow GrowFunc
}

// Result 是脚本运行的结果。
type Result struct {
	Sheets []flow.Sheet
	// AutoMode 为 true 时调用方还需要执行自动排版（脚本没有调用 disableAutoMode，
	// 或在 Isolate 策略下脚本出错）。
	AutoMode bool
	// Err 是 Isolate 策略下被隔离的脚本错误。
	Err error
}

// Run 同步执行脚本直到结束。ctx 取消时中断脚本。
func Run(ctx context.Context, report *element.Element, data any, opts Options) (*Result, error) {
	if report == nil || report.Kind != element.KindReport {
		return nil, element.ErrNotReport
	}
	src := strings.TrimSpace(report.Report.Script)
	if src == "" {
		return &Result{AutoMode: true}, nil
	}
	rt := newRuntime(report, data, opts)
	err := rt.run(ctx, src)
	if err == nil {
		err = rt.finish()
	}
	if err != nil {
		serr := &ScriptError{Err: err}
		if opts.Policy == binding.Halt {
			return nil, serr
		}
		rt.log.Error("脚本出错，改用自动排版", slog.String("error", err.Error()))
		return &Result{AutoMode: true, Err: serr}, nil
	}
	return &Result{Sheets: rt.sheets, AutoMode: rt.auto}, nil
}

type runtime struct {
	vm     *goja.Runtime
	report *element.Element
	data   any
	opts   Options
	log    *slog.Logger

	sections  map[string]*element.Element
	pageOf    map[int64]*element.Element
	overrides map[int64]*flow.Override
	auto      bool

	page   *element.Element
	frame  flow.Frame
	cursor flow.Cursor
	col    *flow.Collector
	sheets []flow.Sheet
}

func newRuntime(report *element.Element, data any, opts Options) *runtime {
	rt := &runtime{
		vm:        goja.New(),
		report:    report,
		data:      data,
		opts:      opts,
		log:       logging.Or(opts.Logger),
		sections:  map[string]*element.Element{},
		pageOf:    map[int64]*element.Element{},
		overrides: map[int64]*flow.Override{},
		auto:      true,
	}
	for _, page := range element.Pages(report) {
		for name, s := range element.Sections(page).ByName {
			if _, dup := rt.sections[name]; !dup {
				rt.sections[name] = s
			}
			rt.pageOf[s.UID] = page
		}
	}
	return rt
}

func (rt *runtime) run(ctx context.Context, src string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			rt.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	rt.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if err := rt.bind(); err != nil {
		return err
	}
	_, err = rt.vm.RunScript("report.js", src)
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
	}
	return err
}

func (rt *runtime) bind() error {
	report := rt.vm.NewObject()
	sections := rt.vm.NewObject()
	for name, s := range rt.sections {
		if err := sections.Set(name, rt.sectionProxy(name, s)); err != nil {
			return err
		}
	}
	for _, b := range []struct {
		name string
		v    any
	}{
		{"sections", sections},
		{"print", rt.jsPrint},
		{"nextPage", rt.jsNextPage},
		{"disableAutoMode", func() { rt.auto = false }},
		{"pageNumber", rt.pageNumber},
		{"remaining", func() float64 { return rt.cursor.Remaining() }},
	} {
		if err := report.Set(b.name, b.v); err != nil {
			return err
		}
	}
	if err := rt.vm.Set("report", report); err != nil {
		return err
	}
	if err := rt.vm.Set("data", rt.data); err != nil {
		return err
	}
	return rt.vm.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			parts = append(parts, a.String())
		}
		rt.log.Info(strings.Join(parts, " "), slog.String("source", "script"))
		return goja.Undefined()
	})
}

// pageNumber 返回当前纸的序号（从 1 开始，包含 doc_head）。
func (rt *runtime) pageNumber() int {
	n := len(rt.sheets)
	if rt.col != nil {
		n += len(rt.col.Sheets())
	}
	return n
}

func (rt *runtime) lookup(v goja.Value) (*element.Element, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, errors.New("print 需要分节名称或分节对象")
	}
	name := v.String()
	if obj, ok := v.(*goja.Object); ok {
		if n := obj.Get("name"); n != nil {
			name = n.String()
		}
	}
	s, ok := rt.sections[name]
	if !ok {
		return nil, fmt.Errorf("找不到分节 %q", name)
	}
	return s, nil
}

func (rt *runtime) jsPrint(call goja.FunctionCall) goja.Value {
	s, err := rt.lookup(call.Argument(0))
	if err != nil {
		panic(rt.vm.NewGoError(err))
	}
	if err := rt.print(s); err != nil {
		panic(rt.vm.NewGoError(err))
	}
	return goja.Undefined()
}

func (rt *runtime) jsNextPage(call goja.FunctionCall) goja.Value {
	if rt.col == nil {
		return goja.Undefined()
	}
	arg := call.Argument(0)
	unconditional := goja.IsUndefined(arg) || goja.IsNull(arg)
	min := 0.0
	if !unconditional {
		min = arg.ToFloat()
	}
	var cmds []flow.Command
	rt.cursor, cmds = rt.frame.NextPage(rt.cursor, min, unconditional)
	rt.col.Apply(cmds)
	return goja.Undefined()
}

func (rt *runtime) grow(s *element.Element, snap map[int64]flow.Override) *flow.Layout {
	if rt.opts.Grow == nil {
		return nil
	}
	return rt.opts.Grow(s, snap)
}

// snapshot 复制当前覆盖，之后的修改不影响已经打印的放置。
func (rt *runtime) snapshot(s *element.Element) map[int64]flow.Override {
	var snap map[int64]flow.Override
	s.Walk(func(el *element.Element) bool {
		if o, ok := rt.overrides[el.UID]; ok {
			if snap == nil {
				snap = map[int64]flow.Override{}
			}
			snap[el.UID] = *o
		}
		return true
	})
	return snap
}

func (rt *runtime) print(s *element.Element) error {
	kind := s.Section.SectionKind
	if kind == element.SectionHeader || kind == element.SectionFooter {
		rt.log.Warn("页眉页脚随每页自动打印，忽略", slog.String("section", s.Name))
		return nil
	}
	if err := rt.switchPage(rt.pageOf[s.UID]); err != nil {
		return err
	}
	snap := rt.snapshot(s)
	lay := rt.grow(s, snap)
	var cmds []flow.Command
	switch kind {
	case element.SectionDocHead, element.SectionDocBack:
		rt.cursor, cmds = rt.frame.Finish(rt.cursor)
		rt.col.Apply(cmds)
		sheetKind := flow.SheetDocHead
		if kind == element.SectionDocBack {
			sheetKind = flow.SheetDocBack
		}
		rt.col.Single(sheetKind, rt.frame.Width, rt.frame.Height, s, lay)
		rt.cursor = flow.Start()
		return nil
	case element.SectionBody:
		// 页眉页脚随 body 分块换页时仍需要它们自己的增高结果。
		merged := flow.NewLayout()
		merged.Merge(rt.frame.Layout)
		merged.Merge(lay)
		frame := rt.frame
		frame.Layout = merged
		rt.cursor, cmds = frame.PrintBodySlot(rt.cursor, s, snap)
	default:
		rt.cursor, cmds = rt.frame.Print(rt.cursor, flow.Placeable{
			Section:       s,
			Height:        lay.Height(s),
			CheckOverflow: true,
			Overrides:     snap,
			Layout:        lay,
		})
	}
	rt.col.Apply(cmds)
	return nil
}

func (rt *runtime) switchPage(page *element.Element) error {
	if page == rt.page && rt.col != nil {
		return nil
	}
	if err := rt.flush(); err != nil {
		return err
	}
	// 页眉页脚不受脚本覆盖影响，按页面整体增高一次。
	lay := flow.NewLayout()
	ps := element.Sections(page)
	for _, s := range []*element.Element{ps.Header, ps.Footer} {
		if s != nil {
			lay.Merge(rt.grow(s, nil))
		}
	}
	f, err := flow.NewFrame(page, rt.opts.Units, lay)
	if err != nil {
		return err
	}
	rt.page, rt.frame, rt.cursor = page, f, flow.Start()
	rt.col = &flow.Collector{Page: page}
	return nil
}

func (rt *runtime) flush() error {
	if rt.col == nil {
		return nil
	}
	_, cmds := rt.frame.Finish(rt.cursor)
	rt.col.Apply(cmds)
	rt.sheets = append(rt.sheets, rt.col.Sheets()...)
	rt.col = nil
	return nil
}

func (rt *runtime) finish() error { return rt.flush() }
