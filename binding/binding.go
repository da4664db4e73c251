// Package binding 负责文本中 ${expr} 表达式的求值。
//
// 纯路径表达式（a.b[0].c）直接在数据树上查找；其余表达式交给 goja 按 JavaScript 求值，
// 根数据的顶层键作为全局变量，另外提供 format(value, pattern)。
package binding

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// ErrPlaceholder 是表达式求值失败时写入文本的占位符。
const ErrPlaceholder = "@ERR"

var (
	exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
	pathPattern = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\[\d+\])*(\.[A-Za-z_$][\w$]*(\[\d+\])*)*$`)
)

// Policy 决定可恢复错误的处理方式。
type Policy int

const (
	// Isolate 记录错误并继续，出错位置以占位内容代替。
	Isolate Policy = iota
	// Halt 立即把错误返回给调用方，终止渲染。
	Halt
)

func (p Policy) String() string {
	if p == Halt {
		return "halt"
	}
	return "isolate"
}

// ParsePolicy 解析 "halt" / "isolate"。
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "isolate":
		return Isolate, nil
	case "halt":
		return Halt, nil
	}
	return Isolate, fmt.Errorf("未知的错误策略 %q", s)
}

// BindingError 记录一个求值失败的表达式。
type BindingError struct {
	Expr string
	Err  error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("表达式 ${%s} 求值失败: %v", e.Expr, e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

// Resolver 在一次渲染中复用 JavaScript 运行时与已编译的表达式。非并发安全。
type Resolver struct {
	data     any
	policy   Policy
	vm       *goja.Runtime
	programs map[string]*goja.Program
	errs     []error
}

// NewResolver 创建绑定到 data 的解析器。
func NewResolver(data any, policy Policy) *Resolver {
	return &Resolver{data: data, policy: policy, programs: map[string]*goja.Program{}}
}

// Data 返回绑定的根数据。
func (r *Resolver) Data() any { return r.data }

// Errors 返回 Isolate 策略下累计的错误。
func (r *Resolver) Errors() []error { return r.errs }

// Resolve 替换 text 中所有 ${expr}。Isolate 策略下失败的表达式替换为 @ERR 并记录错误；
// Halt 策略下返回第一个错误。
func (r *Resolver) Resolve(text string) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}
	var firstErr error
	out := exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		if firstErr != nil {
			return match
		}
		expr := strings.TrimSpace(match[2 : len(match)-1])
		val, err := r.Eval(expr)
		if err != nil {
			berr := &BindingError{Expr: expr, Err: err}
			if r.policy == Halt {
				firstErr = berr
				return match
			}
			r.errs = append(r.errs, berr)
			return ErrPlaceholder
		}
		return FormatValue(val)
	})
	if firstErr != nil {
		return text, firstErr
	}
	return out, nil
}

// MustResolve 按 Isolate 语义解析，忽略返回的错误（错误仍会记录在 Errors 中）。
func (r *Resolver) MustResolve(text string) string {
	out, err := r.Resolve(text)
	if err != nil {
		return text
	}
	return out
}

// Eval 计算单个表达式的值。
func (r *Resolver) Eval(expr string) (any, error) {
	if expr == "" {
		return nil, errors.New("空表达式")
	}
	if pathPattern.MatchString(expr) {
		if val, ok := resolvePath(r.data, expr); ok {
			return val, nil
		}
	}
	return r.evalScript(expr)
}

func (r *Resolver) evalScript(expr string) (res any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	if r.vm == nil {
		r.vm = goja.New()
		r.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
		if m, ok := r.data.(map[string]any); ok {
			for k, v := range m {
				if err := r.vm.Set(k, v); err != nil {
					return nil, err
				}
			}
		}
		if err := r.vm.Set("format", func(v goja.Value, pattern string) string {
			return Format(v.Export(), pattern)
		}); err != nil {
			return nil, err
		}
	}
	prog, ok := r.programs[expr]
	if !ok {
		prog, err = goja.Compile("expr", expr, true)
		if err != nil {
			return nil, err
		}
		r.programs[expr] = prog
	}
	v, err := r.vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

// Interpolate 只做路径查找的快速替换；路径不存在时保留原占位符。
func Interpolate(text string, data any) string {
	if data == nil {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])
		if path == "" {
			return match
		}
		if val, ok := resolvePath(data, path); ok {
			return FormatValue(val)
		}
		return match
	})
}

// Lookup 按点号/下标路径在数据树中查找。
func Lookup(data any, path string) (any, bool) { return resolvePath(data, path) }

// FormatValue 把求值结果转换为显示文本。
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprint(v)
}

func resolvePath(data any, path string) (any, bool) {
	current := data
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		name, indexes := parseSegment(segment)
		if name != "" {
			var ok bool
			current, ok = descendMap(current, name)
			if !ok {
				return nil, false
			}
		}
		for _, idxStr := range indexes {
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, false
			}
			var ok bool
			current, ok = descendArray(current, idx)
			if !ok {
				return nil, false
			}
		}
	}
	return current, true
}

func parseSegment(segment string) (string, []string) {
	name := segment
	var indexes []string
	if i := strings.Index(segment, "["); i != -1 {
		name = segment[:i]
		rest := segment[i:]
		for len(rest) > 0 && rest[0] == '[' {
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				break
			}
			indexes = append(indexes, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return name, indexes
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[key]
		return val, ok
	case map[string]string:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}

func descendArray(current any, idx int) (any, bool) {
	switch c := current.(type) {
	case []any:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	case []map[string]any:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}
