package canvasrenderer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/canvas"

	"github.com/ByLCY/reportkit/fonts"
	"github.com/ByLCY/reportkit/layout"
	"github.com/ByLCY/reportkit/paint"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{255, 0, 0, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

const svgSource = `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10" viewBox="0 0 10 10"><rect width="10" height="10" fill="#00ff00"/></svg>`

func TestSplitFontName(t *testing.T) {
	cases := []struct {
		in     string
		family string
		style  canvas.FontStyle
	}{
		{"Roboto", "Roboto", canvas.FontRegular},
		{"Roboto-Bold", "Roboto", canvas.FontBold},
		{"Roboto-BoldItalic", "Roboto", canvas.FontBold | canvas.FontItalic},
		{"Roboto Italic", "Roboto", canvas.FontRegular | canvas.FontItalic},
		{"Roboto-Regular", "Roboto", canvas.FontRegular},
		{"Noto-Sans", "Noto-Sans", canvas.FontRegular},
	}
	for _, tc := range cases {
		family, style := splitFontName(tc.in)
		assert.Equal(t, tc.family, family, tc.in)
		assert.Equal(t, tc.style, style, tc.in)
	}
}

func TestFontSetFallbackAndRegisteredFamily(t *testing.T) {
	fs := NewFontSet()
	face, err := fs.Face(layout.TextStyle{FontFamily: "missing", FontSize: 12})
	require.NoError(t, err)
	assert.Greater(t, face.TextWidth("hello"), 0.0)

	data, err := fonts.Load("Go-Mono")
	require.NoError(t, err)
	require.NoError(t, fs.Add("Mono-Regular", data))
	mono, err := fs.Face(layout.TextStyle{FontFamily: "mono", FontSize: 12, Bold: true})
	require.NoError(t, err)
	// 等宽字体中 "iii" 与 "MMM" 同宽。
	assert.InDelta(t, mono.TextWidth("iii"), mono.TextWidth("MMM"), 1e-6)
	_, err = fs.Face(layout.TextStyle{FontFamily: "Mono-Regular", FontSize: 12})
	require.NoError(t, err)
}

func TestImageStoreDeduplicatesByContent(t *testing.T) {
	st := NewImageStore()
	data := pngBytes(t, 4, 2)
	require.NoError(t, st.Add("a", data))
	require.NoError(t, st.Add("b", data))
	require.NoError(t, st.Add("logo", []byte(svgSource)))
	assert.Equal(t, 2, st.Len())
	assert.True(t, st.Has("b"))

	_, err := st.Image("missing")
	require.ErrorIs(t, err, ErrImageNotLoaded)
	_, err = st.Image("logo")
	require.ErrorIs(t, err, ErrImageNotLoaded)

	img, dpmm, err := st.RasterizeSVG("logo", 10, 10)
	require.NoError(t, err)
	assert.InDelta(t, svgDPMM, dpmm, 0.1)
	r, g, _, _ := img.At(img.Bounds().Dx()/2, img.Bounds().Dy()/2).RGBA()
	assert.Zero(t, r)
	assert.NotZero(t, g)

	require.ErrorIs(t, st.Add("empty", nil), paint.ErrEmptyResource)
}

func TestFitImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))

	filled, dpmm := fitImage(src, 20, 20, paint.FitFill)
	assert.Equal(t, 100, filled.Bounds().Dx())
	assert.Equal(t, 100, filled.Bounds().Dy())
	assert.InDelta(t, 5, dpmm, 1e-9)

	covered, dpmm := fitImage(src, 20, 20, paint.FitCover)
	assert.Equal(t, 50, covered.Bounds().Dx())
	assert.Equal(t, 50, covered.Bounds().Dy())
	assert.InDelta(t, 2.5, dpmm, 1e-9)
}

func TestSurfaceClipAndHotSpots(t *testing.T) {
	s := NewSurface(layout.UnitMM, nil)
	require.NoError(t, s.BeginPage(210, 297))
	assert.Equal(t, inside, s.visible(canvas.Rect{X0: 500, Y0: 500, X1: 600, Y1: 600}), "no clip")

	s.Save()
	s.Translate(10, 10)
	s.Clip(layout.NewRect(0, 0, 50, 50))
	assert.Equal(t, canvas.Rect{X0: 10, Y0: 10, X1: 60, Y1: 60}, s.cur.clipBox)
	assert.Equal(t, inside, s.visible(canvas.Rect{X0: 20, Y0: 20, X1: 30, Y1: 30}))
	assert.Equal(t, partial, s.visible(canvas.Rect{X0: 50, Y0: 50, X1: 70, Y1: 70}))
	assert.Equal(t, hidden, s.visible(canvas.Rect{X0: 70, Y0: 10, X1: 75, Y1: 15}))

	s.Save()
	s.Clip(layout.NewRect(40, 40, 50, 50))
	assert.Equal(t, canvas.Rect{X0: 50, Y0: 50, X1: 60, Y1: 60}, s.cur.clipBox, "nested clips intersect")
	s.Restore()
	assert.Equal(t, canvas.Rect{X0: 10, Y0: 10, X1: 60, Y1: 60}, s.cur.clipBox)

	s.BeginHotSpot("more", "https://example.com", layout.NewRect(5, 5, 10, 10))
	s.Restore()
	assert.Nil(t, s.cur.clip)

	h, ok := s.HotSpotAt(0, 20, 20)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", h.Link)
	_, ok = s.HotSpotAt(0, 100, 100)
	assert.False(t, ok)

	assert.Greater(t, s.DrawText("hello world", layout.NewRect(0, 0, 50, 0), layout.TextStyle{FontSize: 12}), 0.0)
	_, err := s.FinishPage()
	require.NoError(t, err)
	_, err = s.FinishPage()
	require.Error(t, err)
}
