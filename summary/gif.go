package summary

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"

	"github.com/pkg/errors"
)

var globPalette = color.Palette{
	color.White,
	color.Black,
	positive,
	negative,
}

// GIFEncoder animates summaries: every Encode adds a bar chart frame, and
// Flush writes out the animation.
type GIFEncoder struct {
	io.Writer
	Delay int // per frame, in 100ths of a second

	out  *gif.GIF
	w, h int
}

// NewGIFEncoder creates a GIFEncoder writing to w.
func NewGIFEncoder(w io.Writer) *GIFEncoder {
	return &GIFEncoder{
		Writer: w,
		Delay:  50,
		out:    &gif.GIF{LoopCount: 0},
	}
}

// Encode adds a frame for the histograms of one step. Every frame must hold
// the same number of histograms.
func (enc *GIFEncoder) Encode(step int, hs []Histogram) error {
	im, err := chart(hs, fmt.Sprintf("step %d", step))
	if err != nil {
		return err
	}
	b := im.Bounds()
	if len(enc.out.Image) == 0 {
		enc.w, enc.h = b.Dx(), b.Dy()
	} else if b.Dx() != enc.w || b.Dy() != enc.h {
		return errors.Errorf("frame %d is %dx%d, expected %dx%d", len(enc.out.Image), b.Dx(), b.Dy(), enc.w, enc.h)
	}

	frame := image.NewPaletted(b, globPalette)
	draw.Draw(frame, b, im, image.Point{}, draw.Src)
	enc.out.Image = append(enc.out.Image, frame)
	enc.out.Delay = append(enc.out.Delay, enc.Delay)
	return nil
}

// Len is the number of frames encoded so far.
func (enc *GIFEncoder) Len() int { return len(enc.out.Image) }

// Flush writes the animation.
func (enc *GIFEncoder) Flush() error {
	if len(enc.out.Image) == 0 {
		return errors.New("gif: no frames")
	}
	return errors.WithStack(gif.EncodeAll(enc.Writer, enc.out))
}
