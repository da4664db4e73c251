package canvasrenderer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/reportkit/paint"
)

// ErrImageNotLoaded 表示引用的图片资源尚未注册。
var ErrImageNotLoaded = errors.New("图片资源未加载")

// svgDPMM 是 SVG 光栅化的分辨率（约 300 DPI）。
const svgDPMM = 300 / 25.4

// ImageStore 按名称保存图片，同样内容的图片只解码一次（按内容哈希缓存）。
type ImageStore struct {
	mu      sync.RWMutex
	names   map[string]string // 名称 -> 内容哈希
	decoded map[string]image.Image
	svgs    map[string][]byte
	raw     map[string][]byte
}

// NewImageStore 创建空的图片仓库。
func NewImageStore() *ImageStore {
	return &ImageStore{
		names:   map[string]string{},
		decoded: map[string]image.Image{},
		svgs:    map[string][]byte{},
		raw:     map[string][]byte{},
	}
}

// ContentHash 返回数据的内容哈希。
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Add 注册图片。SVG 只保存源数据，位图立即解码。
func (st *ImageStore) Add(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("图片 %s: %w", name, paint.ErrEmptyResource)
	}
	hash := ContentHash(data)
	st.mu.RLock()
	_, known := st.raw[hash]
	st.mu.RUnlock()
	if !known {
		if paint.IsSVG(data) {
			if _, err := oksvg.ReadIconStream(bytes.NewReader(data)); err != nil {
				return fmt.Errorf("解析 SVG %s 失败: %w", name, err)
			}
			st.mu.Lock()
			st.svgs[hash] = data
			st.mu.Unlock()
		} else {
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("解码图片 %s 失败: %w", name, err)
			}
			st.mu.Lock()
			st.decoded[hash] = img
			st.mu.Unlock()
		}
	}
	st.mu.Lock()
	st.raw[hash] = data
	st.names[name] = hash
	st.mu.Unlock()
	return nil
}

// Has 判断名称是否已注册。
func (st *ImageStore) Has(name string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.names[name]
	return ok
}

// Len 返回已解码（去重后）的资源个数。
func (st *ImageStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.raw)
}

// Image 返回位图。
func (st *ImageStore) Image(name string) (image.Image, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	img, ok := st.decoded[st.names[name]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImageNotLoaded, name)
	}
	return img, nil
}

// SVG 返回 SVG 源数据。
func (st *ImageStore) SVG(name string) ([]byte, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	data, ok := st.svgs[st.names[name]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImageNotLoaded, name)
	}
	return data, nil
}

// RasterizeSVG 把 SVG 光栅化为 w×h 毫米的位图，返回位图及其分辨率（像素/毫米）。
func (st *ImageStore) RasterizeSVG(name string, w, h float64) (image.Image, float64, error) {
	data, err := st.SVG(name)
	if err != nil {
		return nil, 0, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("解析 SVG %s 失败: %w", name, err)
	}
	pw := int(math.Max(1, math.Round(w*svgDPMM)))
	ph := int(math.Max(1, math.Round(h*svgDPMM)))
	icon.SetTarget(0, 0, float64(pw), float64(ph))
	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	scanner := rasterx.NewScannerGV(pw, ph, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(pw, ph, scanner), 1)
	return img, float64(pw) / w, nil
}

// fitImage 把图片调整为目标矩形（毫米）的宽高比，返回新图与分辨率（像素/毫米）。
// fill 拉伸，cover 居中裁剪后铺满。
func fitImage(img image.Image, w, h float64, fit paint.Fit) (image.Image, float64) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || w <= 0 || h <= 0 {
		return img, 1
	}
	if fit == paint.FitCover {
		target := w / h
		src := float64(b.Dx()) / float64(b.Dy())
		crop := b
		if src > target {
			cw := int(math.Round(float64(b.Dy()) * target))
			off := (b.Dx() - cw) / 2
			crop = image.Rect(b.Min.X+off, b.Min.Y, b.Min.X+off+cw, b.Max.Y)
		} else if src < target {
			ch := int(math.Round(float64(b.Dx()) / target))
			off := (b.Dy() - ch) / 2
			crop = image.Rect(b.Min.X, b.Min.Y+off, b.Max.X, b.Min.Y+off+ch)
		}
		if crop != b {
			dst := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
			xdraw.Copy(dst, image.Point{}, img, crop, xdraw.Src, nil)
			img = dst
			b = dst.Bounds()
		}
		return img, float64(b.Dx()) / w
	}
	dpmm := float64(b.Dx()) / w
	ph := int(math.Max(1, math.Round(h*dpmm)))
	if ph == b.Dy() {
		return img, dpmm
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), ph))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst, dpmm
}
