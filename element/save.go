package element

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/ByLCY/reportkit/logging"
)

// ErrUnknownType 表示持久化数据中的 type 无法识别。
var ErrUnknownType = errors.New("element: unknown element type")

// Save 把元素序列化为清理过的普通对象：数值保留 3 位小数，等于默认值的字段省略，
// 容器的子元素写入 children。
func Save(e *Element) map[string]any {
	if e == nil {
		return nil
	}
	m := map[string]any{"type": string(e.Kind)}
	for _, p := range descriptors[e.Kind] {
		v := normalizeValue(p.Type, p.Get(e))
		if !p.Always && sameValue(v, p.Default) {
			continue
		}
		m[p.Key] = v
	}
	switch e.Kind {
	case KindCustom:
		if vals, ok := cleanValue(e.Custom.Values).(map[string]any); ok && len(vals) > 0 {
			m["values"] = vals
		}
	case KindReport:
		if len(e.Report.Resources) > 0 {
			res := make([]any, 0, len(e.Report.Resources))
			for _, r := range e.Report.Resources {
				res = append(res, map[string]any{"type": string(r.Type), "name": r.Name, "data": r.Data})
			}
			m["resources"] = res
		}
		if len(e.Report.DataSource) > 0 {
			m["dataSource"] = saveSchema(e.Report.DataSource)
		}
	}
	if len(e.Children) > 0 {
		children := make([]any, 0, len(e.Children))
		for _, c := range e.Children {
			if c != nil {
				children = append(children, Save(c))
			}
		}
		m["children"] = children
	}
	return m
}

func saveSchema(nodes []SchemaNode) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		item := map[string]any{"name": n.Name}
		if n.Type != "" {
			item["type"] = n.Type
		}
		if len(n.Elements) > 0 {
			item["elements"] = saveSchema(n.Elements)
		}
		out = append(out, item)
	}
	return out
}

// Load 根据 type 字段构造元素并恢复默认值。根节点类型未知时返回 ErrUnknownType；
// 子元素类型未知时记录错误日志并跳过。
func Load(m map[string]any) (*Element, error) {
	typ, _ := m["type"].(string)
	kind := Kind(typ)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	e := New(kind)
	for _, p := range descriptors[kind] {
		if v, ok := m[p.Key]; ok && v != nil {
			p.Set(e, v)
		}
	}
	switch kind {
	case KindCustom:
		if vals, ok := m["values"].(map[string]any); ok {
			for k, v := range vals {
				e.Custom.Values[k] = v
			}
		}
	case KindReport:
		e.Report.Resources = loadResources(m["resources"])
		e.Report.DataSource = loadSchema(m["dataSource"])
	}
	if list, ok := m["children"].([]any); ok {
		for _, item := range list {
			cm, ok := item.(map[string]any)
			if !ok {
				continue
			}
			child := Factory(cm)
			if child == nil {
				continue
			}
			if err := checkChildKind(kind, child.Kind); err != nil {
				logging.Logger().Warn("忽略不合法的子元素", slog.String("parent", string(kind)), slog.String("child", string(child.Kind)))
				continue
			}
			e.Children = append(e.Children, child)
		}
	}
	if kind == KindPage {
		SortSections(e)
	}
	return e, nil
}

// Factory 是容错版本的 Load：类型未知时记录错误日志并返回 nil，调用方跳过即可。
func Factory(m map[string]any) *Element {
	e, err := Load(m)
	if err != nil {
		logging.Logger().Error("无法创建元素", slog.Any("type", m["type"]), slog.String("error", err.Error()))
		return nil
	}
	return e
}

func loadResources(v any) []Resource {
	list, _ := v.([]any)
	var out []Resource
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Resource{
			Type: ResourceType(toString(m["type"])),
			Name: toString(m["name"]),
			Data: toString(m["data"]),
		})
	}
	return out
}

func loadSchema(v any) []SchemaNode {
	list, _ := v.([]any)
	var out []SchemaNode
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, SchemaNode{
			Name:     toString(m["name"]),
			Type:     toString(m["type"]),
			Elements: loadSchema(m["elements"]),
		})
	}
	return out
}

// LoadReport 从 JSON 读取报表文档。version 缺失或低于 MinVersion 时返回 *VersionError。
func LoadReport(r io.Reader) (*Element, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取报表失败: %w", err)
	}
	return UnmarshalReport(data)
}

// UnmarshalReport 解析 JSON 报表文档。
func UnmarshalReport(data []byte) (*Element, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("解析报表 JSON 失败: %w", err)
	}
	if typ, _ := m["type"].(string); typ != string(KindReport) {
		return nil, ErrNotReport
	}
	v, ok := m["version"]
	if !ok || v == nil {
		return nil, &VersionError{Min: MinVersion}
	}
	if ver := int(toFloat(v)); ver < MinVersion {
		return nil, &VersionError{Version: ver, Min: MinVersion}
	}
	return Load(m)
}

// MarshalReport 把报表序列化为缩进的 JSON。
func MarshalReport(report *Element) ([]byte, error) {
	if report == nil || report.Kind != KindReport {
		return nil, ErrNotReport
	}
	return json.MarshalIndent(Save(report), "", "  ")
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func normalizeValue(t PropType, v any) any {
	switch t {
	case PropNumber:
		return round3(toFloat(v))
	case PropInt:
		return int(toFloat(v))
	case PropBool:
		return toBool(v)
	default:
		return toString(v)
	}
}

func sameValue(v, def any) bool {
	switch d := def.(type) {
	case float64:
		return toFloat(v) == round3(d)
	case int:
		return int(toFloat(v)) == d
	case bool:
		return toBool(v) == d
	case string:
		return toString(v) == d
	}
	return v == def
}

// cleanValue 递归清理插件值：数值保留 3 位小数，空字符串、零值与 nil 省略。
func cleanValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := map[string]any{}
		for k, val := range x {
			c := cleanValue(val)
			if isEmptyValue(c) {
				continue
			}
			out[k] = c
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = cleanValue(val)
		}
		return out
	case float64:
		return round3(x)
	case float32:
		return round3(float64(x))
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	return v
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case float64:
		return x == 0
	case bool:
		return !x
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	case nil:
		return false
	}
	return toFloat(v) != 0
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	return fmt.Sprint(v)
}
