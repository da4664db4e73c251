package canvasrenderer

import (
	"fmt"
	"image/color"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/reportkit/fonts"
	"github.com/ByLCY/reportkit/layout"
)

// FontSet 管理文档嵌入的字体。资源名形如 "Roboto-Bold" 时按后缀识别字重与斜体，
// 同一字族的不同样式合并到一个 canvas.FontFamily 中。
type FontSet struct {
	mu       sync.Mutex
	families map[string]*fontFamilyEntry
	fallback *fontFamilyEntry
}

type fontFamilyEntry struct {
	family *canvas.FontFamily
	styles map[canvas.FontStyle]bool
}

// NewFontSet 创建空的字体集合。
func NewFontSet() *FontSet {
	return &FontSet{families: map[string]*fontFamilyEntry{}}
}

// Add 注册一个字体资源。
func (fs *FontSet) Add(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("字体 %s 缺少数据", name)
	}
	familyName, style := splitFontName(name)
	key := strings.ToLower(familyName)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	entry, ok := fs.families[key]
	if !ok {
		entry = &fontFamilyEntry{family: canvas.NewFontFamily(familyName), styles: map[canvas.FontStyle]bool{}}
	}
	if err := entry.family.LoadFont(data, 0, style); err != nil {
		return fmt.Errorf("加载字体 %s 失败: %w", name, err)
	}
	entry.styles[style] = true
	fs.families[key] = entry
	// 资源名本身也可以直接作为字族引用。
	if alias := strings.ToLower(name); alias != key {
		if _, exists := fs.families[alias]; !exists {
			fs.families[alias] = entry
		}
	}
	return nil
}

// Face 返回样式对应的字体面，字族不存在时使用内置后备字体。
func (fs *FontSet) Face(style layout.TextStyle) (*canvas.FontFace, error) {
	want := canvas.FontRegular
	if style.Bold {
		want = canvas.FontBold
	}
	if style.Italic {
		want |= canvas.FontItalic
	}
	size := style.FontSize
	if size <= 0 {
		size = 12
	}
	col := colorFromLayout(layout.Black)
	if style.Color.Set {
		col = colorFromLayout(style.Color)
	}

	fs.mu.Lock()
	entry, ok := fs.families[strings.ToLower(style.FontFamily)]
	fs.mu.Unlock()
	if !ok || style.FontFamily == "" {
		fb, err := fs.fallbackFamily()
		if err != nil {
			return nil, err
		}
		entry = fb
	}
	return entry.family.Face(size, col, entry.pick(want), canvas.FontNormal), nil
}

// pick 选择最接近的已加载样式：优先完全匹配，其次保留斜体，最后常规体。
func (e *fontFamilyEntry) pick(want canvas.FontStyle) canvas.FontStyle {
	if e.styles[want] {
		return want
	}
	if want&canvas.FontItalic != 0 && e.styles[canvas.FontRegular|canvas.FontItalic] {
		return canvas.FontRegular | canvas.FontItalic
	}
	if e.styles[canvas.FontRegular] {
		return canvas.FontRegular
	}
	for s := range e.styles {
		return s
	}
	return canvas.FontRegular
}

func (fs *FontSet) fallbackFamily() (*fontFamilyEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.fallback != nil {
		return fs.fallback, nil
	}
	family := canvas.NewFontFamily("reportkit-fallback")
	entry := &fontFamilyEntry{family: family, styles: map[canvas.FontStyle]bool{}}
	for _, v := range []struct {
		bold, italic bool
		style        canvas.FontStyle
	}{
		{false, false, canvas.FontRegular},
		{true, false, canvas.FontBold},
		{false, true, canvas.FontRegular | canvas.FontItalic},
		{true, true, canvas.FontBold | canvas.FontItalic},
	} {
		if err := family.LoadFont(fonts.Face(v.bold, v.italic), 0, v.style); err != nil {
			return nil, fmt.Errorf("加载后备字体失败: %w", err)
		}
		entry.styles[v.style] = true
	}
	fs.fallback = entry
	return entry, nil
}

// splitFontName 把 "Roboto-BoldItalic" 拆成字族 "Roboto" 与对应样式；无法识别的后缀视为字族名的一部分。
func splitFontName(name string) (string, canvas.FontStyle) {
	idx := strings.LastIndexAny(name, "- ")
	if idx <= 0 || idx == len(name)-1 {
		return name, canvas.FontRegular
	}
	suffix := strings.ToLower(name[idx+1:])
	if suffix == "regular" || suffix == "normal" {
		return name[:idx], canvas.FontRegular
	}
	style := parseFontStyle(suffix)
	if style == canvas.FontRegular {
		return name, canvas.FontRegular
	}
	return name[:idx], style
}

func parseFontStyle(style string) canvas.FontStyle {
	s := strings.ToLower(style)
	result := canvas.FontRegular
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func colorFromLayout(c layout.Color) color.Color {
	a := float64(c.A) / 255.0
	if !c.Set {
		a = 1
	}
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, a)
}
