// Package pdf 是 PDF 后端，页面由共享的 tdewolff 表面绘制后写入 PDF。
package pdf

import (
	"fmt"
	"io"
	"log/slog"

	pdfw "github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/paint"
	canvasrenderer "github.com/ByLCY/reportkit/renderer/canvas"
)

// Canvas 把每页写入同一个 PDF 文档。
type Canvas struct {
	*canvasrenderer.Surface

	out    io.Writer
	writer *pdfw.PDF
	info   paint.DocInfo
	pages  int
}

var _ paint.Canvas = (*Canvas)(nil)

// New 创建 PDF 后端，文档在 EndDoc 时写完。
func New(out io.Writer, unit layout.Unit, logger *slog.Logger) *Canvas {
	return &Canvas{Surface: canvasrenderer.NewSurface(unit, logger), out: out}
}

func (c *Canvas) StartDoc(info paint.DocInfo) error {
	if c.out == nil {
		return fmt.Errorf("pdf: 缺少输出")
	}
	c.info = info
	return nil
}

func (c *Canvas) StartPage(width, height float64) error { return c.BeginPage(width, height) }

func (c *Canvas) EndPage() error {
	page, err := c.FinishPage()
	if err != nil {
		return err
	}
	w, h := c.PageSize()
	if c.writer == nil {
		c.writer = pdfw.New(c.out, w, h, nil)
		creator := c.info.Creator
		if creator == "" {
			creator = "reportkit"
		}
		c.writer.SetInfo(c.info.Title, c.info.Subject, "", c.info.Author, creator)
	} else {
		c.writer.NewPage(w, h)
	}
	page.RenderTo(c.writer)
	c.pages++
	return nil
}

func (c *Canvas) EndDoc() error {
	if c.writer == nil {
		return fmt.Errorf("缺少可渲染的页面")
	}
	if err := c.writer.Close(); err != nil {
		return fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return nil
}

// PageCount 返回已写入的页数。
func (c *Canvas) PageCount() int { return c.pages }
