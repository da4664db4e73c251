// Package dsl 是报表的文本写法：participle 语法解析出 AST，Compile 把它编译成元素树。
//
//	report Invoice 2 {
//	  meta { title: "Invoice"; units: mm }
//	  resources { image logo "assets/logo.png" }
//	  schema { customer: { name: string }; items: [{ amount: number }] }
//	  page A4 portrait {
//	    section header { height: 20mm
//	      text title "Invoice ${customer.name}" { at: [10mm, 5mm, 120mm, 8mm]; bold: true }
//	    }
//	  }
//	  script { `report.print("header")` }
//	}
package dsl

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/paint"
)

// Error 是带源码位置的编译错误。
type Error struct {
	Pos lexer.Position
	Err error
}

func (e *Error) Error() string {
	if e.Pos.Line == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%d:%d: %v", e.Pos.Line, e.Pos.Column, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrUnknownProperty 元素不支持该属性。
var ErrUnknownProperty = errors.New("dsl: unknown property")

// 元素命令名到元素类型。
var elementKinds = map[string]element.Kind{
	"text":      element.KindText,
	"image":     element.KindImage,
	"line":      element.KindLine,
	"rect":      element.KindRectangle,
	"rectangle": element.KindRectangle,
	"ellipse":   element.KindEllipse,
	"custom":    element.KindCustom,
	"group":     element.KindGroup,
}

// lengthKeys 中的属性按长度解析（可带单位，换算为报表单位）。
var lengthKeys = map[string]bool{
	"left": true, "top": true, "width": true, "height": true,
	"columnGap": true, "padding": true, "radius": true,
	"paperWidth": true, "paperHeight": true,
}

type compiler struct {
	baseDir string
	units   layout.Unit
}

// CompileString 解析并编译 DSL 文本。
func CompileString(src, baseDir string) (*element.Element, error) {
	doc, err := ParseString(src)
	if err != nil {
		return nil, err
	}
	return Compile(doc, baseDir)
}

// Compile 把 AST 编译成报表元素树。资源文件相对 baseDir 读取并内嵌为 data URI，
// 得到的文档是自包含的。
func Compile(doc *Document, baseDir string) (*element.Element, error) {
	if doc == nil {
		return nil, errors.New("dsl: nil document")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(doc.Version), "v"))
	if err != nil {
		return nil, &Error{Pos: doc.Pos, Err: fmt.Errorf("无效的版本号 %q", doc.Version)}
	}
	if version < element.MinVersion {
		return nil, &Error{Pos: doc.Pos, Err: &element.VersionError{Version: version, Min: element.MinVersion}}
	}

	report := element.New(element.KindReport)
	report.Report.Version = version
	report.Report.Title = doc.Name
	c := &compiler{baseDir: baseDir, units: report.Report.Units}

	// 单位决定所有长度的换算，先于其它内容处理 meta。
	for _, s := range doc.Sections {
		if s.Meta != nil {
			if err := c.assignAll(report, s.Meta.Block); err != nil {
				return nil, err
			}
			c.units = report.Report.Units
		}
	}
	for _, s := range doc.Sections {
		switch {
		case s.Resources != nil:
			res, err := c.resources(s.Resources.Block)
			if err != nil {
				return nil, err
			}
			report.Report.Resources = append(report.Report.Resources, res...)
		case s.Schema != nil:
			nodes, err := schema(s.Schema.Block.Statements)
			if err != nil {
				return nil, err
			}
			report.Report.DataSource = append(report.Report.DataSource, nodes...)
		case s.Page != nil:
			page, err := c.page(s.Page)
			if err != nil {
				return nil, err
			}
			if err := report.Add(page); err != nil {
				return nil, &Error{Pos: s.Page.Pos, Err: err}
			}
		case s.Script != nil:
			report.Report.Script = string(s.Script.Source)
		}
	}
	if len(element.Pages(report)) == 0 {
		return nil, &Error{Pos: doc.Pos, Err: errors.New("报表至少需要一个 page")}
	}
	return report, nil
}

func (c *compiler) assignAll(e *element.Element, b *Block) error {
	for _, st := range b.Statements {
		if st.Assignment == nil {
			return &Error{Pos: st.Pos(), Err: fmt.Errorf("%s 中只允许 key: value", e.Kind)}
		}
		if err := c.assign(e, st.Assignment); err != nil {
			return err
		}
	}
	return nil
}

// assign 通过属性描述表设置属性；枚举值会校验取值范围。
func (c *compiler) assign(e *element.Element, a *Assignment) error {
	v := valueOf(a.Value)
	if a.Key == "at" {
		return c.at(e, a, v)
	}
	if a.Key == "values" && e.Kind == element.KindCustom {
		m, ok := v.(map[string]any)
		if !ok {
			return &Error{Pos: a.Pos, Err: errors.New("values 需要 { key: value } 形式")}
		}
		for k, val := range m {
			e.Custom.Values[k] = val
		}
		return nil
	}
	p, ok := element.Descriptor(e.Kind, a.Key)
	if !ok {
		return &Error{Pos: a.Pos, Err: fmt.Errorf("%w: %s.%s", ErrUnknownProperty, e.Kind, a.Key)}
	}
	switch {
	case lengthKeys[a.Key]:
		v = layout.ParseLengthIn(fmt.Sprint(v), c.units)
	case p.Type == element.PropNumber || p.Type == element.PropInt:
		f, err := number(v)
		if err != nil {
			return &Error{Pos: a.Pos, Err: fmt.Errorf("%s: %w", a.Key, err)}
		}
		v = f
	case p.Type == element.PropEnum && len(p.Options) > 0:
		s := fmt.Sprint(v)
		valid := false
		for _, o := range p.Options {
			valid = valid || o == s
		}
		if !valid {
			return &Error{Pos: a.Pos, Err: fmt.Errorf("%s 的取值必须是 %s 之一，得到 %q", a.Key, strings.Join(p.Options, "|"), s)}
		}
	}
	p.Set(e, v)
	return nil
}

// at: [left, top, width, height]
func (c *compiler) at(e *element.Element, a *Assignment, v any) error {
	list, ok := v.([]any)
	if !ok || len(list) != 4 {
		return &Error{Pos: a.Pos, Err: errors.New("at 需要 [left, top, width, height]")}
	}
	vals := make([]float64, 4)
	for i, item := range list {
		vals[i] = layout.ParseLengthIn(fmt.Sprint(item), c.units)
	}
	e.Left, e.Top, e.Width, e.Height = vals[0], vals[1], vals[2], vals[3]
	return nil
}

func number(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	s := strings.TrimSuffix(strings.TrimSuffix(fmt.Sprint(v), "%"), "pt")
	return strconv.ParseFloat(s, 64)
}

// valueOf 把 AST 值转换为 Go 值：字符串、数字保留原文（单位在赋值时解析）、数组、对象；
// 表达式按原文拼接，true/false 转为布尔值。
func valueOf(v *Value) any {
	switch {
	case v == nil:
		return nil
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Array != nil:
		out := make([]any, 0, len(v.Array.Values))
		for _, item := range v.Array.Values {
			out = append(out, valueOf(item))
		}
		return out
	case v.Object != nil:
		out := make(map[string]any, len(v.Object.Entries))
		for _, a := range v.Object.Entries {
			out[a.Key] = valueOf(a.Value)
		}
		return out
	case v.Expr != nil:
		var b strings.Builder
		for _, p := range v.Expr.Parts {
			b.WriteString(p.Value)
		}
		switch s := b.String(); s {
		case "true":
			return true
		case "false":
			return false
		default:
			return s
		}
	}
	return nil
}

func (c *compiler) page(ps *PageSection) (*element.Element, error) {
	page := element.New(element.KindPage)
	page.Page.Paper = ps.Spec.Size
	var sizes []float64
	for _, p := range ps.Spec.Params {
		switch {
		case p.Value == string(layout.Portrait) || p.Value == string(layout.Landscape):
			page.Page.Orientation = layout.Orientation(p.Value)
		case p.Type == "Number":
			sizes = append(sizes, layout.ParseLengthIn(p.Value, c.units))
		default:
			return nil, &Error{Pos: p.Pos, Err: fmt.Errorf("无法识别的页面参数 %q", p.Raw)}
		}
	}
	if len(sizes) == 2 {
		page.Page.CustomWidth, page.Page.CustomHeight = sizes[0], sizes[1]
	}
	for _, st := range ps.Block.Statements {
		switch {
		case st.Assignment != nil:
			if err := c.assign(page, st.Assignment); err != nil {
				return nil, err
			}
		case st.Command != nil && st.Command.Name == "section":
			s, err := c.section(st.Command)
			if err != nil {
				return nil, err
			}
			if err := element.AddSection(page, s); err != nil {
				return nil, &Error{Pos: st.Command.Pos, Err: err}
			}
		default:
			return nil, &Error{Pos: st.Pos(), Err: errors.New("page 中只允许属性与 section")}
		}
	}
	if err := element.ValidatePage(page); err != nil {
		return nil, &Error{Pos: ps.Pos, Err: err}
	}
	if _, err := element.PaperSize(page, c.units); err != nil {
		return nil, &Error{Pos: ps.Pos, Err: err}
	}
	return page, nil
}

// section <kind> [name] { props; elements }
func (c *compiler) section(cmd *Command) (*element.Element, error) {
	s := element.New(element.KindSection)
	if len(cmd.Args) == 0 {
		return nil, &Error{Pos: cmd.Pos, Err: errors.New("section 需要类型")}
	}
	if err := c.assign(s, &Assignment{Pos: cmd.Pos, Key: "kind", Value: &Value{Expr: &Expression{Parts: cmd.Args[:1]}}}); err != nil {
		return nil, err
	}
	if len(cmd.Args) > 1 {
		s.Name = cmd.Args[1].Value
	}
	if cmd.Block != nil {
		if err := c.children(s, cmd.Block); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (c *compiler) children(parent *element.Element, b *Block) error {
	for _, st := range b.Statements {
		switch {
		case st.Assignment != nil:
			if err := c.assign(parent, st.Assignment); err != nil {
				return err
			}
		case st.Command != nil:
			e, err := c.element(st.Command)
			if err != nil {
				return err
			}
			if err := parent.Add(e); err != nil {
				return &Error{Pos: st.Command.Pos, Err: err}
			}
		default:
			return &Error{Pos: st.Pos(), Err: fmt.Errorf("%s 中不能直接写文本", parent.Kind)}
		}
	}
	return nil
}

// element: <kind> [name] ["content"] { props }。content 对 text 是文本，对 image 是来源，
// 对 custom 是插件名。
func (c *compiler) element(cmd *Command) (*element.Element, error) {
	kind, ok := elementKinds[cmd.Name]
	if !ok {
		return nil, &Error{Pos: cmd.Pos, Err: fmt.Errorf("未知的元素 %q", cmd.Name)}
	}
	e := element.New(kind)
	for _, arg := range cmd.Args {
		switch arg.Type {
		case "Ident":
			e.Name = arg.Value
		case "String", "RawString":
			if err := c.content(e, arg.Value); err != nil {
				return nil, &Error{Pos: arg.Pos, Err: err}
			}
		default:
			return nil, &Error{Pos: arg.Pos, Err: fmt.Errorf("无法识别的参数 %q", arg.Raw)}
		}
	}
	if cmd.Block == nil {
		return e, nil
	}
	if kind == element.KindGroup {
		return e, c.children(e, cmd.Block)
	}
	for _, st := range cmd.Block.Statements {
		switch {
		case st.Assignment != nil:
			if err := c.assign(e, st.Assignment); err != nil {
				return nil, err
			}
		case st.Text != nil:
			if err := c.content(e, string(st.Text.Value)); err != nil {
				return nil, &Error{Pos: st.Pos(), Err: err}
			}
		default:
			return nil, &Error{Pos: st.Pos(), Err: fmt.Errorf("%s 不能包含子元素", kind)}
		}
	}
	return e, nil
}

func (c *compiler) content(e *element.Element, s string) error {
	switch e.Kind {
	case element.KindText:
		e.Text.Text = s
	case element.KindImage:
		e.Image.Source = s
	case element.KindCustom:
		e.Custom.Plugin = s
	default:
		return fmt.Errorf("%s 不接受内容参数", e.Kind)
	}
	return nil
}

// resources: image <name> "path" / font <name> "path"
func (c *compiler) resources(b *Block) ([]element.Resource, error) {
	var out []element.Resource
	for _, st := range b.Statements {
		cmd := st.Command
		if cmd == nil || len(cmd.Args) != 2 {
			return nil, &Error{Pos: st.Pos(), Err: errors.New(`资源写法为 image|font <name> "path"`)}
		}
		var typ element.ResourceType
		switch cmd.Name {
		case "image":
			typ = element.ResourceImage
		case "font":
			typ = element.ResourceFont
		default:
			return nil, &Error{Pos: cmd.Pos, Err: fmt.Errorf("未知的资源类型 %q", cmd.Name)}
		}
		data, err := c.embed(cmd.Args[1].Value)
		if err != nil {
			return nil, &Error{Pos: cmd.Args[1].Pos, Err: err}
		}
		out = append(out, element.Resource{Type: typ, Name: cmd.Args[0].Value, Data: data})
	}
	return out, nil
}

// embed 读取资源文件并编码为 data URI；已经是 data URI 的原样返回。
func (c *compiler) embed(path string) (string, error) {
	if strings.HasPrefix(path, "data:") {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.baseDir, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取资源失败: %w", err)
	}
	typ := paint.SniffMIME(b)
	if typ == "" {
		typ = mime.TypeByExtension(filepath.Ext(path))
	}
	if typ == "" {
		typ = "application/octet-stream"
	}
	return paint.EncodeDataURI(typ, b), nil
}

// schema 把 `name: type`、`name: { … }`、`name: [{ … }]` 转成数据源结构。
func schema(statements []*Statement) ([]element.SchemaNode, error) {
	var out []element.SchemaNode
	for _, st := range statements {
		a := st.Assignment
		if a == nil {
			return nil, &Error{Pos: st.Pos(), Err: errors.New("schema 中只允许 name: type")}
		}
		node, err := schemaNode(a.Key, a.Value)
		if err != nil {
			return nil, &Error{Pos: a.Pos, Err: err}
		}
		out = append(out, node)
	}
	return out, nil
}

func schemaNode(name string, v *Value) (element.SchemaNode, error) {
	switch {
	case v.Object != nil:
		node := element.SchemaNode{Name: name, Type: "object"}
		for _, a := range v.Object.Entries {
			child, err := schemaNode(a.Key, a.Value)
			if err != nil {
				return node, err
			}
			node.Elements = append(node.Elements, child)
		}
		return node, nil
	case v.Array != nil:
		node := element.SchemaNode{Name: name, Type: "array"}
		if len(v.Array.Values) != 1 {
			return node, fmt.Errorf("%s: 数组需要恰好一个元素类型", name)
		}
		item, err := schemaNode("", v.Array.Values[0])
		if err != nil {
			return node, err
		}
		if item.Type == "object" {
			node.Elements = item.Elements
		} else {
			node.Elements = []element.SchemaNode{item}
		}
		return node, nil
	}
	typ, _ := valueOf(v).(string)
	switch typ {
	case "string", "number", "boolean", "date":
		return element.SchemaNode{Name: name, Type: typ}, nil
	}
	return element.SchemaNode{}, fmt.Errorf("%s: 未知的类型 %v", name, valueOf(v))
}
