package paint

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
)

// ErrEmptyResource 资源数据为空。
var ErrEmptyResource = errors.New("paint: empty resource data")

// DecodeResource 解析自包含的资源字符串：data URI（base64 或 URL 编码）或裸 base64。
// 返回解码后的字节与 MIME 类型（未知时为空）。
func DecodeResource(data string) ([]byte, string, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, "", ErrEmptyResource
	}
	if strings.HasPrefix(data, "data:") {
		comma := strings.IndexByte(data, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("paint: malformed data URI")
		}
		header, payload := data[5:comma], data[comma+1:]
		mime := header
		isBase64 := false
		if i := strings.IndexByte(header, ';'); i >= 0 {
			mime = header[:i]
			isBase64 = strings.Contains(header[i:], "base64")
		}
		if !isBase64 {
			return []byte(percentDecode(payload)), mime, nil
		}
		b, err := decodeBase64(payload)
		if err != nil {
			return nil, mime, fmt.Errorf("paint: decode data URI: %w", err)
		}
		return b, mime, nil
	}
	// 字体可能带有格式前缀，如 "truetype:AAEAAA..."。
	if i := strings.IndexByte(data, ':'); i > 0 && i < 16 && !strings.ContainsAny(data[:i], "/+=") {
		data = data[i+1:]
	}
	b, err := decodeBase64(data)
	if err != nil {
		return nil, "", fmt.Errorf("paint: decode base64: %w", err)
	}
	return b, SniffMIME(b), nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func percentDecode(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

// EncodeDataURI 生成 base64 data URI。
func EncodeDataURI(mime string, data []byte) string {
	if mime == "" {
		mime = SniffMIME(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// SniffMIME 根据文件头猜测资源类型，覆盖报表常用的图片与字体格式。
func SniffMIME(b []byte) string {
	switch {
	case bytes.HasPrefix(b, []byte("\x89PNG")):
		return "image/png"
	case bytes.HasPrefix(b, []byte("\xff\xd8\xff")):
		return "image/jpeg"
	case bytes.HasPrefix(b, []byte("GIF8")):
		return "image/gif"
	case bytes.HasPrefix(b, []byte("BM")):
		return "image/bmp"
	case len(b) > 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return "image/webp"
	case bytes.HasPrefix(b, []byte("II*\x00")), bytes.HasPrefix(b, []byte("MM\x00*")):
		return "image/tiff"
	case IsSVG(b):
		return "image/svg+xml"
	case bytes.HasPrefix(b, []byte("\x00\x01\x00\x00")), bytes.HasPrefix(b, []byte("true")):
		return "font/ttf"
	case bytes.HasPrefix(b, []byte("OTTO")):
		return "font/otf"
	case bytes.HasPrefix(b, []byte("wOFF")):
		return "font/woff"
	case bytes.HasPrefix(b, []byte("wOF2")):
		return "font/woff2"
	}
	return ""
}

// IsSVG 判断数据是否为 SVG 文本。
func IsSVG(b []byte) bool {
	head := b
	if len(head) > 512 {
		head = head[:512]
	}
	s := strings.ToLower(strings.TrimSpace(string(head)))
	return strings.HasPrefix(s, "<svg") || (strings.HasPrefix(s, "<?xml") && strings.Contains(s, "<svg"))
}

// PercentSweep 把 0..100 的百分比换算为从 12 点方向开始、顺时针的扇形角度（度）。
// 百分比 >= 100 时返回 ok=false，表示绘制完整图形。
func PercentSweep(percent float64) (start, end float64, ok bool) {
	if percent >= 100 || math.IsNaN(percent) {
		return 0, 360, false
	}
	if percent < 0 {
		percent = 0
	}
	start = -90
	end = start + 360*percent/100
	return start, end, true
}

// ArcPoint 返回椭圆 r 上角度 deg（度，顺时针，0 指向右侧）处的点。
func ArcPoint(cx, cy, rx, ry, deg float64) (float64, float64) {
	rad := deg * math.Pi / 180
	return cx + rx*math.Cos(rad), cy + ry*math.Sin(rad)
}

// FullSweep 判断角度区间是否覆盖整圆。
func FullSweep(start, end float64) bool {
	return start == end || math.Abs(end-start) >= 360
}
