package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"schedwidget/internal/convert"
)

func TestOptionsNormalize(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/", OutputPath: "out.png"}
	require.NoError(t, o.normalize())
	require.Equal(t, DefaultWidth, o.Width)
	require.Equal(t, DefaultHeight, o.Height)
	require.Equal(t, DefaultTimeout, o.Timeout)
}

func TestWidgetPNGRequiresTargets(t *testing.T) {
	err := WidgetPNG(context.Background(), Options{OutputPath: "out.png"})
	require.ErrorContains(t, err, "URL is required")

	err = WidgetPNG(context.Background(), Options{URL: "http://127.0.0.1/"})
	require.ErrorContains(t, err, "OutputPath is required")
}

func TestInkify(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	img.SetNRGBA(3, 2, color.NRGBA{A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	dir := t.TempDir()
	out, err := inkify(buf.Bytes(), Options{Ink: true, PlanesDir: dir})
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	pal, ok := decoded.(*image.Paletted)
	require.True(t, ok)
	require.Equal(t, convert.Black, pal.ColorIndexAt(3, 2))

	black, err := os.ReadFile(filepath.Join(dir, "black.bin"))
	require.NoError(t, err)
	require.Len(t, black, 2*4)
	require.Equal(t, byte(0xEF), black[2*2])
	red, err := os.ReadFile(filepath.Join(dir, "red.bin"))
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xFF}, 8), red)
}
