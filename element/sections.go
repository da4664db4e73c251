package element

import (
	"fmt"
	"sort"

	"github.com/ByLCY/reportkit/layout"
)

var sectionRank = map[SectionKind]int{
	SectionDocHead: 0,
	SectionDocBack: 1,
	SectionHeader:  2,
	SectionFooter:  3,
	SectionGeneric: 4,
	SectionBody:    5,
}

// SortSections 按固定顺序排列页面的分节：doc_head、doc_back、header、footer、
// generic（保持编写顺序）、body。每次修改页面分节后都会调用。
func SortSections(page *Element) {
	if page == nil || page.Kind != KindPage {
		return
	}
	sort.SliceStable(page.Children, func(i, j int) bool {
		return sectionRank[sectionKindOf(page.Children[i])] < sectionRank[sectionKindOf(page.Children[j])]
	})
}

func sectionKindOf(e *Element) SectionKind {
	if e == nil || e.Section == nil {
		return SectionGeneric
	}
	return e.Section.SectionKind
}

// AddSection 追加分节并重新排序。
func AddSection(page *Element, s *Element) error {
	if s == nil || s.Kind != KindSection {
		return fmt.Errorf("element: AddSection needs a section")
	}
	return page.Add(s)
}

// RemoveSection 删除分节并重新排序。
func RemoveSection(page *Element, uid int64) bool {
	ok := page.Remove(uid)
	SortSections(page)
	return ok
}

// ValidatePage 检查分节约束：恰好一个 body，其余特殊分节最多一个。
func ValidatePage(page *Element) error {
	counts := map[SectionKind]int{}
	for _, s := range page.Children {
		if s == nil || s.Kind != KindSection {
			continue
		}
		counts[sectionKindOf(s)]++
	}
	if counts[SectionBody] != 1 {
		return ErrNoBody
	}
	for _, k := range []SectionKind{SectionHeader, SectionFooter, SectionDocHead, SectionDocBack} {
		if counts[k] > 1 {
			return fmt.Errorf("%w: %s", ErrDuplicateSection, k)
		}
	}
	return nil
}

// PageSections 是按类型归类后的页面分节。
type PageSections struct {
	DocHead  *Element
	DocBack  *Element
	Header   *Element
	Footer   *Element
	Generic  []*Element
	Body     *Element
	Ordered  []*Element // 排序后的全部分节
	ByName   map[string]*Element
	Stacked  map[int64]float64 // 分节在页面堆叠坐标系中的 top
	Combined float64           // 全部分节高度之和（页面的派生高度）
}

// Sections 按类型归类页面分节，并计算堆叠坐标。未命名的分节以类型名登记。
func Sections(page *Element) PageSections {
	ps := PageSections{ByName: map[string]*Element{}, Stacked: map[int64]float64{}}
	if page == nil {
		return ps
	}
	top := 0.0
	for _, s := range page.Children {
		if s == nil || s.Kind != KindSection {
			continue
		}
		ps.Ordered = append(ps.Ordered, s)
		ps.Stacked[s.UID] = top
		top += s.Height
		switch sectionKindOf(s) {
		case SectionDocHead:
			ps.DocHead = s
		case SectionDocBack:
			ps.DocBack = s
		case SectionHeader:
			ps.Header = s
		case SectionFooter:
			ps.Footer = s
		case SectionBody:
			ps.Body = s
		default:
			ps.Generic = append(ps.Generic, s)
		}
		name := s.Name
		if name == "" {
			name = string(sectionKindOf(s))
		}
		if _, dup := ps.ByName[name]; !dup {
			ps.ByName[name] = s
		}
	}
	ps.Combined = top
	return ps
}

// PageHeight 返回页面的派生高度（全部分节高度之和）。
func PageHeight(page *Element) float64 { return Sections(page).Combined }

// PaperSize 返回页面物理纸张尺寸（文档单位）。
func PaperSize(page *Element, units layout.Unit) (layout.Size, error) {
	if page == nil || page.Page == nil {
		return layout.Size{}, fmt.Errorf("element: not a page")
	}
	return layout.ResolvePaper(page.Page.Paper, page.Page.Orientation, page.Page.CustomWidth, page.Page.CustomHeight, units)
}

// MinHeight 返回单张物理纸的高度（文档单位），无法解析时返回 0。
func MinHeight(page *Element, units layout.Unit) float64 {
	size, err := PaperSize(page, units)
	if err != nil {
		return 0
	}
	return size.Height
}
