// internal/command/graphic.go
package command

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/karronoli/tiny-sato/internal/bitmap"
	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// MaxBitmapBytes is the largest BMP blob the GM command accepts.
const MaxBitmapBytes = 99999

// Box draws a rectangle outline.
func Box(hLineWidth, vLineWidth, width, height int) ([]byte, error) {
	if err := sbpl.CheckRange("horizontal line width", hLineWidth, 1, 99); err != nil {
		return nil, err
	}
	if err := sbpl.CheckRange("vertical line width", vLineWidth, 1, 99); err != nil {
		return nil, err
	}
	if err := sbpl.CheckRange("box width", width, 1, 9999); err != nil {
		return nil, err
	}
	if err := sbpl.CheckRange("box height", height, 1, 9999); err != nil {
		return nil, err
	}
	return sbpl.Op("FW",
		sbpl.Digits(hLineWidth, 2), sbpl.Digits(vLineWidth, 2),
		"V", sbpl.Digits(height, 4),
		"H", sbpl.Digits(width, 4),
	), nil
}

// Graphic encodes src as a hex graphic: rows packed 8 pixels per byte, MSB first.
// Non-strict mode crops the image down to multiples of 8; strict mode rejects it.
func Graphic(src bitmap.Source, strict bool) ([]byte, error) {
	w, h := src.Width(), src.Height()
	if strict && (w%8 != 0 || h%8 != 0) {
		return nil, &sbpl.ArgumentError{
			Field: "graphic size",
			Value: fmt.Sprintf("%dx%d", w, h),
			Msg:   "width and height must be multiples of 8",
		}
	}
	w -= w % 8
	h -= h % 8
	if w == 0 || h == 0 {
		return nil, &sbpl.ArgumentError{Field: "graphic size", Value: fmt.Sprintf("%dx%d", src.Width(), src.Height()), Msg: "at least 8x8 dots"}
	}
	if err := sbpl.CheckRange("graphic width bytes", w/8, 1, 999); err != nil {
		return nil, err
	}
	if err := sbpl.CheckRange("graphic height blocks", h/8, 1, 999); err != nil {
		return nil, err
	}

	packed := PackRows(src, w, h)
	return sbpl.Op("GH", sbpl.Digits(w/8, 3), sbpl.Digits(h/8, 3), strings.ToUpper(hex.EncodeToString(packed))), nil
}

// PackRows packs the w x h top-left region of src, MSB first, 1 = black.
// w must be a multiple of 8.
func PackRows(src bitmap.Source, w, h int) []byte {
	out := make([]byte, 0, w/8*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x += 8 {
			var b byte
			for i := 0; i < 8; i++ {
				b = b<<1 | src.GetBit(x+i, y)&1
			}
			out = append(out, b)
		}
	}
	return out
}

// Bitmap embeds src as a native 1bpp BMP blob.
func Bitmap(src bitmap.Source) ([]byte, error) {
	blob := EncodeBMP(src)
	if err := sbpl.CheckRange("bitmap bytes", len(blob), 1, MaxBitmapBytes); err != nil {
		return nil, err
	}
	op := sbpl.Op("GM", sbpl.Digits(len(blob), 5), ",")
	return append(op, blob...), nil
}

// ---- BMP ----

const (
	bmpFileHeaderLen = 14
	bmpInfoHeaderLen = 40
	bmpPaletteLen    = 2 * 4

	// 203 dpi in pixels per meter.
	bmpPixelsPerMeter = 7992
)

// EncodeBMP writes src as a bottom-up 1bpp BMP. Palette index 0 is black
// and index 1 is white.
func EncodeBMP(src bitmap.Source) []byte {
	w, h := src.Width(), src.Height()
	stride := ((w + 31) / 32) * 4
	offset := bmpFileHeaderLen + bmpInfoHeaderLen + bmpPaletteLen
	size := offset + stride*h

	buf := make([]byte, size)
	le := binary.LittleEndian

	// File header
	buf[0], buf[1] = 'B', 'M'
	le.PutUint32(buf[2:6], uint32(size))
	le.PutUint32(buf[10:14], uint32(offset))

	// BITMAPINFOHEADER
	ih := buf[bmpFileHeaderLen:]
	le.PutUint32(ih[0:4], bmpInfoHeaderLen)
	le.PutUint32(ih[4:8], uint32(int32(w)))
	le.PutUint32(ih[8:12], uint32(int32(h)))
	le.PutUint16(ih[12:14], 1) // planes
	le.PutUint16(ih[14:16], 1) // bits per pixel
	le.PutUint32(ih[20:24], uint32(stride*h))
	le.PutUint32(ih[24:28], bmpPixelsPerMeter)
	le.PutUint32(ih[28:32], bmpPixelsPerMeter)
	le.PutUint32(ih[32:36], 2)
	le.PutUint32(ih[36:40], 2)

	// Palette: black, white (B, G, R, reserved)
	pal := buf[bmpFileHeaderLen+bmpInfoHeaderLen:]
	copy(pal[4:8], []byte{0xFF, 0xFF, 0xFF, 0x00})

	pix := buf[offset:]
	for y := 0; y < h; y++ {
		row := pix[(h-1-y)*stride:]
		for x := 0; x < w; x++ {
			if src.GetBit(x, y) == 0 {
				row[x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return buf
}
