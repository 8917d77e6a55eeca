package summary

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi        = 72.0
	fontsize   = 12.0
	lineheight = 1.2
	barWidth   = 48
	barGap     = 16
	chartH     = 200
	pad        = 10
)

var (
	positive = color.RGBA{R: 0x2b, G: 0x6c, B: 0xb0, A: 0xff}
	negative = color.RGBA{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff}
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

// RenderPNG draws a bar chart of the means of hs, one labelled bar per
// histogram, and encodes it as a PNG.
func RenderPNG(w io.Writer, hs []Histogram) error {
	im, err := chart(hs, "")
	if err != nil {
		return err
	}
	return png.Encode(w, im)
}

// chart draws one bar per histogram, its height being the histogram's mean,
// and an optional caption below the labels.
func chart(hs []Histogram, caption string) (*image.RGBA, error) {
	if len(hs) == 0 {
		return nil, errors.New("render: no histograms")
	}
	face := truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	lo, hi := 0.0, 0.0
	for _, h := range hs {
		m := h.Mean()
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	lines := 1
	if caption != "" {
		lines++
	}
	width := 2*pad + len(hs)*(barWidth+barGap)
	height := 2*pad + chartH + lines*dy
	im := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(im, im.Bounds(), image.White, image.Point{}, draw.Src)

	// y of the zero line
	zero := pad + int(float64(chartH)*hi/span)
	drawer := font.Drawer{Dst: im, Src: image.Black, Face: face}
	for i, h := range hs {
		x0 := pad + i*(barWidth+barGap)
		top := pad + int(float64(chartH)*(hi-h.Mean())/span)
		c := positive
		y0, y1 := top, zero
		if top > zero {
			c = negative
			y0, y1 = zero, top
		}
		if y1 == y0 {
			y1++
		}
		draw.Draw(im, image.Rect(x0, y0, x0+barWidth, y1), image.NewUniform(c), image.Point{}, draw.Src)

		drawer.Dot = fixed.P(x0, pad+chartH+dy)
		drawer.DrawString(h.Name)
	}
	for x := pad; x < width-pad; x++ {
		im.Set(x, zero, color.Black)
	}
	if caption != "" {
		drawer.Dot = fixed.P(pad, pad+chartH+2*dy)
		drawer.DrawString(caption)
	}
	return im, nil
}
