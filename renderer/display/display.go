// Package display 是屏幕/位图后端：把每页光栅化为 image.RGBA，可输出 PNG。
//
// 图片可以延迟加载：LoadImageAsync 在后台取回数据，完成后通知已注册的监听器，
// 宿主据此重绘。
package display

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/logging"
	"github.com/ByLCY/reportkit/paint"
	canvasrenderer "github.com/ByLCY/reportkit/renderer/canvas"
)

// DefaultDPI 光栅化分辨率。
const DefaultDPI = 96.0

// Canvas 在 tdewolff 表面上绘制，EndPage 时光栅化。
type Canvas struct {
	*canvasrenderer.Surface

	dpmm   float64
	logger *slog.Logger

	mu        sync.Mutex
	pages     []*image.RGBA
	listeners []func(name string)
	pending   sync.WaitGroup
	loadErrs  []error
}

var _ paint.Canvas = (*Canvas)(nil)

// New 创建位图后端。dpi <= 0 时使用 DefaultDPI。
func New(unit layout.Unit, dpi float64, logger *slog.Logger) *Canvas {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Canvas{
		Surface: canvasrenderer.NewSurface(unit, logger),
		dpmm:    dpi / 25.4,
		logger:  logging.Or(logger),
	}
}

func (c *Canvas) StartDoc(paint.DocInfo) error {
	c.mu.Lock()
	c.pages = nil
	c.mu.Unlock()
	return nil
}

func (c *Canvas) EndDoc() error { return nil }

func (c *Canvas) StartPage(width, height float64) error { return c.BeginPage(width, height) }

func (c *Canvas) EndPage() error {
	page, err := c.FinishPage()
	if err != nil {
		return err
	}
	img := rasterizer.Draw(page, canvas.DPMM(c.dpmm), canvas.DefaultColorSpace)
	c.mu.Lock()
	c.pages = append(c.pages, img)
	c.mu.Unlock()
	return nil
}

// Pages 返回已光栅化的页面。
func (c *Canvas) Pages() []*image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*image.RGBA(nil), c.pages...)
}

// WritePNG 把第 i 页编码为 PNG。
func (c *Canvas) WritePNG(w io.Writer, i int) error {
	pages := c.Pages()
	if i < 0 || i >= len(pages) {
		return fmt.Errorf("页码 %d 超出范围（共 %d 页）", i, len(pages))
	}
	return png.Encode(w, pages[i])
}

// WriteStrip 把全部页面自上而下拼接为一张 PNG，页与页之间留 gap 像素的灰色间隔。
func (c *Canvas) WriteStrip(w io.Writer, gap int) error {
	pages := c.Pages()
	if len(pages) == 0 {
		return fmt.Errorf("没有可输出的页面")
	}
	width, height := 0, gap*(len(pages)-1)
	for _, p := range pages {
		width = max(width, p.Bounds().Dx())
		height += p.Bounds().Dy()
	}
	strip := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(strip, strip.Bounds(), image.NewUniform(color.Gray{Y: 0xd0}), image.Point{}, draw.Src)
	y := 0
	for _, p := range pages {
		b := p.Bounds()
		draw.Draw(strip, image.Rect(0, y, b.Dx(), y+b.Dy()), p, b.Min, draw.Src)
		y += b.Dy() + gap
	}
	return png.Encode(w, strip)
}

// OnChange 注册延迟资源加载完成后的回调，参数为资源名。
func (c *Canvas) OnChange(fn func(name string)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// LoadImageAsync 在后台获取并注册图片。已注册过的名称直接返回。
func (c *Canvas) LoadImageAsync(ctx context.Context, name string, fetch func(ctx context.Context) ([]byte, error)) {
	if c.Images.Has(name) {
		return
	}
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		data, err := fetch(ctx)
		if err == nil {
			err = c.AddImage(name, data)
		}
		if err != nil {
			c.mu.Lock()
			c.loadErrs = append(c.loadErrs, fmt.Errorf("加载图片 %s 失败: %w", name, err))
			c.mu.Unlock()
			c.logger.Warn("延迟加载图片失败", slog.String("name", name), slog.String("error", err.Error()))
			return
		}
		c.mu.Lock()
		listeners := append([]func(string){}, c.listeners...)
		c.mu.Unlock()
		for _, fn := range listeners {
			fn(name)
		}
	}()
}

// Wait 等待全部延迟加载结束，返回其中的错误。
func (c *Canvas) Wait() []error {
	c.pending.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.loadErrs...)
}
