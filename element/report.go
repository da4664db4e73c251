package element

import (
	"errors"
	"fmt"

	"github.com/ByLCY/reportkit/layout"
)

// Document versions understood by this package.
const (
	CurrentVersion = 2
	MinVersion     = 2
)

// ResourceType 资源类型。
type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceFont  ResourceType = "font"
)

// Resource 是内嵌在文档中的自包含资源，Data 为 data URI 或 base64 字符串。
type Resource struct {
	Type ResourceType `json:"type"`
	Name string       `json:"name"`
	Data string       `json:"data"`
}

// SchemaNode 描述数据源结构，仅用于编写时的自动补全与样例数据生成。
type SchemaNode struct {
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	Elements []SchemaNode `json:"elements,omitempty"`
}

// ReportProps 报表根节点属性。
type ReportProps struct {
	Version    int
	Units      layout.Unit
	Title      string
	Author     string
	Resources  []Resource
	DataSource []SchemaNode
	Script     string
}

func (r *ReportProps) clone() *ReportProps {
	c := *r
	c.Resources = append([]Resource(nil), r.Resources...)
	c.DataSource = cloneSchema(r.DataSource)
	return &c
}

func cloneSchema(nodes []SchemaNode) []SchemaNode {
	if nodes == nil {
		return nil
	}
	out := make([]SchemaNode, len(nodes))
	for i, n := range nodes {
		out[i] = SchemaNode{Name: n.Name, Type: n.Type, Elements: cloneSchema(n.Elements)}
	}
	return out
}

// FindResource 按名称查找资源。
func (r *ReportProps) FindResource(typ ResourceType, name string) (Resource, bool) {
	for _, res := range r.Resources {
		if res.Type == typ && res.Name == name {
			return res, true
		}
	}
	return Resource{}, false
}

// VersionError is returned when a persisted document is missing its version or is too old.
type VersionError struct {
	Version int
	Min     int
}

func (e *VersionError) Error() string {
	if e.Version == 0 {
		return "element: document has no version"
	}
	return fmt.Sprintf("element: document version %d is below the minimum supported version %d", e.Version, e.Min)
}

var (
	// ErrNoBody 页面缺少 body 分节。
	ErrNoBody = errors.New("element: page must contain exactly one body section")
	// ErrDuplicateSection 页面包含重复的特殊分节。
	ErrDuplicateSection = errors.New("element: duplicate special section")
	// ErrNotReport 根节点不是报表。
	ErrNotReport = errors.New("element: root is not a report")
)

// NewReport 创建一个包含单页（仅含 body 分节）的报表。
func NewReport(units layout.Unit) *Element {
	r := New(KindReport)
	r.Report.Units = units
	page := New(KindPage)
	body := New(KindSection)
	body.Section.SectionKind = SectionBody
	body.Height = layout.Convert(100, layout.UnitMM, units)
	_ = page.Add(body)
	_ = r.Add(page)
	return r
}

// Pages 返回报表的页面列表。
func Pages(report *Element) []*Element {
	if report == nil {
		return nil
	}
	var out []*Element
	for _, c := range report.Children {
		if c != nil && c.Kind == KindPage {
			out = append(out, c)
		}
	}
	return out
}
