// internal/bitmap/bitmap.go
package bitmap

import (
	"errors"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Source is a monochrome pixel source.
// GetBit returns 1 for black and 0 for white.
type Source interface {
	Width() int
	Height() int
	GetBit(x, y int) byte
}

// Mono is an in-memory Source with one byte per pixel.
type Mono struct {
	w, h int
	pix  []byte
}

// NewMono returns an all-white w x h bitmap.
func NewMono(w, h int) *Mono {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Mono{w: w, h: h, pix: make([]byte, w*h)}
}

func (m *Mono) Width() int  { return m.w }
func (m *Mono) Height() int { return m.h }

func (m *Mono) GetBit(x, y int) byte {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return 0
	}
	return m.pix[y*m.w+x]
}

// Set marks pixel (x, y) black when black is true.
func (m *Mono) Set(x, y int, black bool) {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return
	}
	var v byte
	if black {
		v = 1
	}
	m.pix[y*m.w+x] = v
}

// Options controls image conversion.
type Options struct {
	// Width scales the image to this many dots, keeping the aspect ratio.
	// 0 keeps the source size.
	Width int

	// Threshold is the gray level (0-255) below which a pixel is black.
	// 0 means the average gray level of the image.
	Threshold uint8
}

// FromImage converts any image to a monochrome Source.
func FromImage(img image.Image, opt Options) (*Mono, error) {
	if img == nil {
		return nil, errors.New("bitmap: nil image")
	}
	src := img.Bounds()
	if src.Dx() == 0 || src.Dy() == 0 {
		return nil, errors.New("bitmap: empty image")
	}

	dstW, dstH := src.Dx(), src.Dy()
	if opt.Width > 0 && opt.Width != dstW {
		dstH = int(float64(dstH) * float64(opt.Width) / float64(dstW))
		dstW = opt.Width
		if dstH < 1 {
			dstH = 1
		}
	}

	// Transparent pixels become white.
	rgba := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
	xdraw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), img, src, draw.Over, nil)

	gray := image.NewGray(rgba.Bounds())
	draw.Draw(gray, gray.Bounds(), rgba, image.Point{}, draw.Src)

	threshold := int(opt.Threshold)
	if threshold == 0 {
		threshold = averageGray(gray)
	}

	m := NewMono(dstW, dstH)
	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			if int(gray.GrayAt(x, y).Y) < threshold {
				m.pix[y*dstW+x] = 1
			}
		}
	}
	return m, nil
}

func averageGray(g *image.Gray) int {
	b := g.Bounds()
	var sum, n int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += int(g.GrayAt(x, y).Y)
			n++
		}
	}
	if n == 0 {
		return 128
	}
	avg := sum / n
	// An all-black image still thresholds to black.
	if avg == 0 {
		return 1
	}
	return avg
}
