package paint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/reportkit/layout"
)

func TestDecodeResourceDataURI(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nrest")
	uri := EncodeDataURI("", png)
	assert.Contains(t, uri, "data:image/png;base64,")

	got, mime, err := DecodeResource(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, png, got)
}

func TestDecodeResourcePlainBase64AndPrefix(t *testing.T) {
	got, _, err := DecodeResource("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	got, _, err = DecodeResource("truetype:aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestDecodeResourceURLEncodedSVG(t *testing.T) {
	got, mime, err := DecodeResource("data:image/svg+xml,%3Csvg%3E%3C/svg%3E")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", mime)
	assert.Equal(t, "<svg></svg>", string(got))
	assert.True(t, IsSVG(got))
}

func TestDecodeResourceEmpty(t *testing.T) {
	_, _, err := DecodeResource("  ")
	assert.ErrorIs(t, err, ErrEmptyResource)
}

func TestPercentSweep(t *testing.T) {
	_, _, ok := PercentSweep(100)
	assert.False(t, ok)

	start, end, ok := PercentSweep(25)
	require.True(t, ok)
	assert.Equal(t, -90.0, start)
	assert.Equal(t, 0.0, end)
}

func TestRecorderTranslateStack(t *testing.T) {
	r := NewRecorder(layout.UnitMM)
	require.NoError(t, r.StartPage(210, 297))
	r.Save()
	r.Translate(10, 20)
	r.FillRect(layout.NewRect(1, 2, 3, 4), 0, layout.Black)
	r.Restore()
	r.FillRect(layout.NewRect(1, 2, 3, 4), 0, layout.Black)
	require.NoError(t, r.EndPage())

	ops := r.Named("fillRect")
	require.Len(t, ops, 2)
	assert.Equal(t, layout.NewRect(11, 22, 3, 4), ops[0].Rect)
	assert.Equal(t, layout.NewRect(1, 2, 3, 4), ops[1].Rect)
}
