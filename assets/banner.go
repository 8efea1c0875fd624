package assets

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"

	"framepipe/gfx/gbi"

	xdraw "golang.org/x/image/draw"
	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// BannerHeight is the height of the overlay strip.
const BannerHeight = 32

// Font is the overlay font.
var Font tinyfont.Fonter = &proggy.TinySZ8pt7b

// Banner is an RGBA5551 strip stored in scan-out byte order, ready to be
// copied over the top rows of a framebuffer.
type Banner struct {
	w, h int
	pix  []byte
}

var _ drivers.Displayer = (*Banner)(nil)

// NewBanner returns a w x h strip filled with bg.
func NewBanner(w, h int, bg color.RGBA) *Banner {
	b := &Banner{w: w, h: h, pix: make([]byte, w*h*2)}
	b.Fill(bg)
	return b
}

// LoadBanner reads a raw big-endian RGBA5551 strip of w x h pixels, the
// format written by mkbanner.
func LoadBanner(r io.Reader, w, h int) (*Banner, error) {
	b := &Banner{w: w, h: h, pix: make([]byte, w*h*2)}
	if _, err := io.ReadFull(r, b.pix); err != nil {
		return nil, fmt.Errorf("banner: read %dx%d strip: %w", w, h, err)
	}
	return b, nil
}

// Bytes returns the strip pixels. The slice aliases the banner.
func (b *Banner) Bytes() []byte { return b.pix }

func (b *Banner) Size() (x, y int16) { return int16(b.w), int16(b.h) }

func (b *Banner) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || int(x) >= b.w || int(y) >= b.h {
		return
	}
	off := (int(y)*b.w + int(x)) * 2
	binary.BigEndian.PutUint16(b.pix[off:], Pack(c))
}

func (b *Banner) Display() error { return nil }

// Fill paints the whole strip.
func (b *Banner) Fill(c color.RGBA) {
	p := Pack(c)
	for i := 0; i+1 < len(b.pix); i += 2 {
		binary.BigEndian.PutUint16(b.pix[i:], p)
	}
}

// Text draws s with its top-left corner at x, y.
func (b *Banner) Text(x, y int16, s string, c color.RGBA) {
	tinyfont.WriteLine(b, Font, x, y+fontAscent(), s, c)
}

// TextCentered draws s centered in the strip.
func (b *Banner) TextCentered(s string, c color.RGBA) {
	_, w := tinyfont.LineWidth(Font, s)
	h := fontAscent()
	x := (int16(b.w) - int16(w)) / 2
	y := (int16(b.h) - h) / 2
	b.Text(x, y, s, c)
}

// Pack converts c to RGBA5551. Alpha below half is transparent.
func Pack(c color.RGBA) uint16 {
	return gbi.PackRGBA5551(c.R, c.G, c.B, c.A >= 0x80)
}

// fontAscent approximates the baseline offset from the line advance.
func fontAscent() int16 { return int16(Font.GetYAdvance()) * 3 / 4 }

// BannerFromImage scales img to w x h and converts it.
func BannerFromImage(img image.Image, w, h int) *Banner {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	b := &Banner{w: w, h: h, pix: make([]byte, w*h*2)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.SetPixel(int16(x), int16(y), dst.RGBAAt(x, y))
		}
	}
	return b
}

// Image expands the strip to 8-bit RGBA.
func (b *Banner) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.w, b.h))
	for i := 0; i+1 < len(b.pix); i += 2 {
		p := binary.BigEndian.Uint16(b.pix[i:])
		img.Pix[i*2+0] = uint8(((p >> 11) & 0x1F) * 255 / 31)
		img.Pix[i*2+1] = uint8(((p >> 6) & 0x1F) * 255 / 31)
		img.Pix[i*2+2] = uint8(((p >> 1) & 0x1F) * 255 / 31)
		img.Pix[i*2+3] = 0xFF
	}
	return img
}
