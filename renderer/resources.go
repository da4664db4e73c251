package renderer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/reportkit/element"
	"github.com/ByLCY/reportkit/paint"
)

// inlinePrefix 是内联 data URI 图片注册到画布时使用的资源名前缀。
const inlinePrefix = "inline:"

type imageRef struct {
	name string
	svg  bool
}

type pending struct {
	typ    element.ResourceType
	name   string
	data   string
	inline bool

	bytes []byte
	mime  string
	err   error
}

// inlineName 以内容摘要作为内联图片的资源名，相同的 data URI 只注册一次。
func inlineName(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return inlinePrefix + hex.EncodeToString(sum[:8])
}

func isDataURI(s string) bool { return strings.HasPrefix(strings.TrimSpace(s), "data:") }

// loadResources 并发解码报表资源与元素上的内联图片，再按顺序注册到画布。
// 单个资源失败只记录错误，图片元素在绘制时会显示占位框。
func (r *run) loadResources(ctx context.Context) error {
	var all []*pending
	for _, res := range r.report.Report.Resources {
		all = append(all, &pending{typ: res.Type, name: res.Name, data: res.Data})
	}
	seen := map[string]bool{}
	r.report.Walk(func(e *element.Element) bool {
		if e.Kind == element.KindImage && e.Image != nil && isDataURI(e.Image.Source) {
			name := inlineName(e.Image.Source)
			if !seen[name] {
				seen[name] = true
				all = append(all, &pending{typ: element.ResourceImage, name: name, data: e.Image.Source, inline: true})
			}
		}
		return true
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, p := range all {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.bytes, p.mime, p.err = paint.DecodeResource(p.data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.images = make(map[string]imageRef, len(all))
	for _, p := range all {
		err := p.err
		if err == nil {
			err = r.register(p)
		}
		if err != nil {
			r.logger.Warn("加载资源失败", slog.String("type", string(p.typ)), slog.String("name", p.name), slog.String("error", err.Error()))
			r.result.Errors = append(r.result.Errors, RenderError{Sheet: -1, Element: p.name, Err: err})
		}
	}
	return nil
}

func (r *run) register(p *pending) error {
	switch p.typ {
	case element.ResourceFont:
		return r.cv.AddFont(p.name, p.bytes)
	case element.ResourceImage:
		if err := r.cv.AddImage(p.name, p.bytes); err != nil {
			return err
		}
		r.images[p.name] = imageRef{name: p.name, svg: p.mime == "image/svg+xml" || paint.IsSVG(p.bytes)}
		return nil
	}
	return fmt.Errorf("未知的资源类型 %q", p.typ)
}

// image 返回图片来源对应的已注册资源。脚本覆盖的 data URI 在首次使用时注册。
func (r *run) image(source string) (imageRef, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return imageRef{}, paint.ErrEmptyResource
	}
	name := source
	if isDataURI(source) {
		name = inlineName(source)
	}
	if ref, ok := r.images[name]; ok {
		return ref, nil
	}
	if !isDataURI(source) {
		return imageRef{}, fmt.Errorf("图片资源 %q 不存在", source)
	}
	p := &pending{typ: element.ResourceImage, name: name, data: source}
	p.bytes, p.mime, p.err = paint.DecodeResource(source)
	if p.err != nil {
		return imageRef{}, p.err
	}
	if err := r.register(p); err != nil {
		return imageRef{}, err
	}
	return r.images[name], nil
}
