package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ByLCY/reportkit/binding"
	"github.com/ByLCY/reportkit/datasource"
	"github.com/ByLCY/reportkit/dsl"
	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/flow"
	"github.com/ByLCY/reportkit/logging"
	"github.com/ByLCY/reportkit/renderer"
)

// renderFlags 是 render 子命令的参数。
type renderFlags struct {
	output        string
	format        string
	data          string
	sample        bool
	mode          string
	dpi           float64
	minify        bool
	debug         string
	scriptPolicy  string
	pluginPolicy  string
	bindingPolicy string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "reportkit",
		Short:         "设计与渲染分页报表",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.SetLogger(newLogger(cmd.ErrOrStderr(), verbose))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")
	root.AddCommand(newRenderCmd(), newCompileCmd(), newSampleCmd(), newBreaksCmd())
	return root
}

// newLogger 在终端上使用文本 handler，否则输出 JSON 行。
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func newRenderCmd() *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render <report.json|report.rk>",
		Short: "把报表渲染为 PDF、HTML 或 PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), args[0], f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "输出路径（默认与输入同名，扩展名取自格式）")
	fl.StringVarP(&f.format, "format", "f", "", "输出格式 pdf|html|png（默认取输出文件扩展名，否则 pdf）")
	fl.StringVarP(&f.data, "data", "d", "", "根数据文件（.json 或 .xlsx）")
	fl.BoolVar(&f.sample, "sample", false, "使用按数据源结构生成的样例数据")
	fl.StringVar(&f.mode, "mode", string(renderer.ModeExecute), "渲染模式 execute|edit")
	fl.Float64Var(&f.dpi, "dpi", 0, "png 分辨率")
	fl.BoolVar(&f.minify, "minify", false, "压缩 html 输出")
	fl.StringVar(&f.debug, "debug", "", "把分页结果写为 JSON")
	fl.StringVar(&f.scriptPolicy, "script-errors", "halt", "脚本出错时 halt|isolate")
	fl.StringVar(&f.pluginPolicy, "plugin-errors", "isolate", "插件出错时 halt|isolate")
	fl.StringVar(&f.bindingPolicy, "binding-errors", "isolate", "插值出错时 halt|isolate")
	return cmd
}

func runRender(ctx context.Context, input string, f renderFlags) error {
	report, err := loadReport(input)
	if err != nil {
		return err
	}
	mode, err := renderer.ParseMode(f.mode)
	if err != nil {
		return err
	}
	pol, err := parsePolicies(f)
	if err != nil {
		return err
	}
	format, output, err := resolveOutput(input, f.output, f.format)
	if err != nil {
		return err
	}

	var data any
	switch {
	case f.data != "":
		if data, err = datasource.Load(f.data); err != nil {
			return fmt.Errorf("读取数据失败: %w", err)
		}
	case f.sample:
		if data, err = datasource.Sample(report); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
	}
	out, err := os.Create(output)
	if err != nil {
		return err
	}
	res, err := renderer.RenderFile(ctx, format, report, out, renderer.Options{
		Mode:     mode,
		RootData: data,
		Policies: &pol,
		Logger:   logging.Logger(),
		DPI:      f.dpi,
		Minify:   f.minify,
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(output)
		return fmt.Errorf("渲染失败: %w", err)
	}
	for _, e := range res.Errors {
		logging.Logger().Warn(e.Error())
	}
	if f.debug != "" {
		if err := flow.WriteDebugJSON(res.Sheets, f.debug); err != nil {
			return fmt.Errorf("输出调试 JSON 失败: %w", err)
		}
	}
	logging.Logger().Info("渲染完成", slog.String("output", output), slog.Int("sheets", len(res.Sheets)), slog.Int("errors", len(res.Errors)))
	return nil
}

func parsePolicies(f renderFlags) (renderer.Policies, error) {
	var pol renderer.Policies
	var err error
	if pol.Script, err = binding.ParsePolicy(f.scriptPolicy); err != nil {
		return pol, err
	}
	if pol.Plugin, err = binding.ParsePolicy(f.pluginPolicy); err != nil {
		return pol, err
	}
	if pol.Binding, err = binding.ParsePolicy(f.bindingPolicy); err != nil {
		return pol, err
	}
	return pol, nil
}

// resolveOutput 推断输出格式与路径：显式格式优先，其次是输出文件扩展名，默认 pdf。
func resolveOutput(input, output, format string) (renderer.Format, string, error) {
	var fmtOut renderer.Format
	var err error
	switch {
	case format != "":
		fmtOut, err = renderer.ParseFormat(format)
	case output != "" && filepath.Ext(output) != "":
		fmtOut, err = renderer.ParseFormat(filepath.Ext(output))
	default:
		fmtOut = renderer.FormatPDF
	}
	if err != nil {
		return "", "", err
	}
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "." + string(fmtOut)
	}
	return fmtOut, output, nil
}

// loadReport 读取 JSON 文档或 DSL 源文件（其它扩展名），DSL 中的资源相对源文件目录解析。
func loadReport(path string) (*element.Element, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开报表 %s: %w", path, err)
	}
	defer file.Close()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return element.LoadReport(file)
	}
	doc, err := dsl.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("解析 DSL 失败: %w", err)
	}
	return dsl.Compile(doc, filepath.Dir(path))
}

func newCompileCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "compile <report.rk>",
		Short: "把 DSL 编译为自包含的 JSON 文档",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := loadReport(args[0])
			if err != nil {
				return err
			}
			b, err := element.MarshalReport(report)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, b)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出路径（默认标准输出）")
	return cmd
}

func newSampleCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "sample <report>",
		Short: "按数据源结构生成样例数据",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := loadReport(args[0])
			if err != nil {
				return err
			}
			data, err := datasource.Sample(report)
			if err != nil {
				return err
			}
			b, err := datasource.MarshalIndent(data)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, b)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出路径（默认标准输出）")
	return cmd
}

// pageBreaks 是 breaks 子命令的输出项。
type pageBreaks struct {
	Page   int       `json:"page"`
	Name   string    `json:"name,omitempty"`
	Breaks []float64 `json:"breaks"`
}

func newBreaksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "breaks <report>",
		Short: "输出每个页面在编辑视图中的分页位置",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := loadReport(args[0])
			if err != nil {
				return err
			}
			var out []pageBreaks
			for i, page := range element.Pages(report) {
				out = append(out, pageBreaks{Page: i + 1, Name: page.Name, Breaks: flow.ComputePageBreaks(page, report.Report.Units)})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func writeOutput(stdout io.Writer, path string, b []byte) error {
	if path == "" {
		_, err := stdout.Write(b)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
