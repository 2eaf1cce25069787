// Package convert reduces widget snapshots to the black/red/white palette
// of tri-color e-ink panels and packs them into 1bpp planes.
package convert

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
)

// Palette indexes used by Quantize.
const (
	White uint8 = iota
	Black
	Red
)

// InkPalette is the output palette of Quantize.
var InkPalette = color.Palette{
	color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
	color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xFF},
	color.NRGBA{R: 0xFF, G: 0x00, B: 0x00, A: 0xFF},
}

// DefaultBlackLuma is the luma below which a pixel becomes black. Widget
// text is anti-aliased, so this sits higher than a pure-black cutoff.
const DefaultBlackLuma = 128

// Quantize maps every pixel of img to InkPalette. blackLuma <= 0 uses
// DefaultBlackLuma.
func Quantize(img image.Image, blackLuma float64) *image.Paletted {
	if blackLuma <= 0 {
		blackLuma = DefaultBlackLuma
	}
	b := img.Bounds()
	src, ok := img.(*image.NRGBA)
	if !ok {
		src = image.NewNRGBA(b)
		draw.Draw(src, b, img, b.Min, draw.Src)
	}

	out := image.NewPaletted(b, InkPalette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetColorIndex(x, y, classify(src.NRGBAAt(x, y), blackLuma))
		}
	}
	return out
}

// classify picks the ink for one pixel.
//
//	luma    = 0.299R + 0.587G + 0.114B
//	redness = R - max(G, B)
//
// Transparent pixels are white; dark pixels black; strongly red pixels red.
func classify(c color.NRGBA, blackLuma float64) uint8 {
	if c.A < 128 {
		return White
	}
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	maxGB := max(g, b)

	if r > 128 && r-maxGB > 32 {
		return Red
	}
	if 0.299*r+0.587*g+0.114*b < blackLuma {
		return Black
	}
	return White
}

// Pack splits a quantized image into black and red planes, y-major and
// MSB-first, one bit per pixel, rows padded to whole bytes. A set bit is
// white; ink clears it.
func Pack(img *image.Paletted) (black, red []byte, stride int, err error) {
	if img == nil {
		return nil, nil, 0, errors.New("convert: nil image")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, nil, 0, errors.New("convert: empty image")
	}
	stride = (w + 7) / 8

	black = make([]byte, stride*h)
	red = make([]byte, stride*h)
	for i := range black {
		black[i] = 0xFF
		red[i] = 0xFF
	}

	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			idx := py*stride + (px >> 3)
			mask := byte(0x80 >> (px & 7))
			switch img.ColorIndexAt(b.Min.X+px, b.Min.Y+py) {
			case Black:
				black[idx] &^= mask
			case Red:
				red[idx] &^= mask
			}
		}
	}
	return black, red, stride, nil
}
