package html

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/ByLCY/reportkit/fonts"
	"github.com/ByLCY/reportkit/layout"
)

// fallbackFamily 是未注册字族时使用的 CSS 字族名，对应内置 Go 字体。
const fallbackFamily = "reportkit-go"

type htmlFont struct {
	family string
	bold   bool
	italic bool
	data   []byte
	sfnt   *sfnt.Font
}

// fontBook 负责离线测量：用 x/image 的 opentype 字体面计算字符串宽度与行高，
// 浏览器加载同一份 @font-face 数据，因此两者一致。
type fontBook struct {
	mu       sync.Mutex
	fonts    []*htmlFont
	faces    map[string]font.Face
	fallback bool // 是否用到了后备字体
}

func newFontBook() *fontBook {
	return &fontBook{faces: map[string]font.Face{}}
}

func (b *fontBook) add(name string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("解析字体 %s 失败: %w", name, err)
	}
	family, bold, italic := splitName(name)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fonts = append(b.fonts, &htmlFont{family: family, bold: bold, italic: italic, data: data, sfnt: f})
	return nil
}

// splitName 识别 "Family-Bold"、"Family-BoldItalic" 等资源名。
func splitName(name string) (string, bool, bool) {
	idx := strings.LastIndexAny(name, "- ")
	if idx <= 0 || idx == len(name)-1 {
		return name, false, false
	}
	suffix := strings.ToLower(name[idx+1:])
	bold := strings.Contains(suffix, "bold")
	italic := strings.Contains(suffix, "italic") || strings.Contains(suffix, "oblique")
	if !bold && !italic && suffix != "regular" && suffix != "normal" {
		return name, false, false
	}
	return name[:idx], bold, italic
}

// lookup 返回样式对应的字体与 CSS 字族名。找不到时使用 Go 字体。
func (b *fontBook) lookup(style layout.TextStyle) (*htmlFont, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var best *htmlFont
	score := -1
	for _, f := range b.fonts {
		if !strings.EqualFold(f.family, style.FontFamily) {
			continue
		}
		s := 0
		if f.bold == style.Bold {
			s += 2
		}
		if f.italic == style.Italic {
			s++
		}
		if s > score {
			best, score = f, s
		}
	}
	if best != nil {
		return best, nil
	}
	data := fonts.Face(style.Bold, style.Italic)
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("解析后备字体失败: %w", err)
	}
	b.fallback = true
	return &htmlFont{family: fallbackFamily, bold: style.Bold, italic: style.Italic, data: data, sfnt: parsed}, nil
}

func (b *fontBook) face(f *htmlFont, sizePt float64) (font.Face, error) {
	key := fmt.Sprintf("%s|%t|%t|%.3f", f.family, f.bold, f.italic, sizePt)
	b.mu.Lock()
	defer b.mu.Unlock()
	if face, ok := b.faces[key]; ok {
		return face, nil
	}
	// DPI 72 时一个像素等于一个点。
	face, err := opentype.NewFace(f.sfnt, &opentype.FaceOptions{Size: sizePt, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, err
	}
	b.faces[key] = face
	return face, nil
}

// usesFallback 报告是否需要输出后备字体的 @font-face。
func (b *fontBook) usesFallback() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fallback
}

// ptMetrics 以 pt 计量，再换算为文档单位。
type ptMetrics struct {
	face font.Face
	unit layout.Unit
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func (m ptMetrics) Measure(s string) float64 {
	return layout.Convert(fixedToFloat(font.MeasureString(m.face, s)), layout.UnitPT, m.unit)
}

func (m ptMetrics) LineHeight() float64 {
	return layout.Convert(fixedToFloat(m.face.Metrics().Height), layout.UnitPT, m.unit)
}
