package quarkgl

import "encoding/binary"

// RGBA5551Target renders into a big-endian RGBA5551 color image.
//
// This type is intentionally simple; callers provide the backing buffer and
// layout (stride).
type RGBA5551Target struct {
	Buf    []byte
	Stride int // bytes per row
	W      int
	H      int
}

func (t *RGBA5551Target) Size() (w, h int) { return t.W, t.H }

func (t *RGBA5551Target) SetPixel(x, y int, c Color) {
	t.SetRaw(x, y, c.Pack5551())
}

func (t *RGBA5551Target) SetRaw(x, y int, p uint16) {
	if t == nil || t.Buf == nil || t.Stride <= 0 {
		return
	}
	if x < 0 || y < 0 || x >= t.W || y >= t.H {
		return
	}
	off := y*t.Stride + x*2
	if off < 0 || off+1 >= len(t.Buf) {
		return
	}
	binary.BigEndian.PutUint16(t.Buf[off:], p)
}

// Pixel returns the packed pixel at (x, y), or 0 when out of bounds.
func (t *RGBA5551Target) Pixel(x, y int) uint16 {
	if x < 0 || y < 0 || x >= t.W || y >= t.H {
		return 0
	}
	off := y*t.Stride + x*2
	if off+1 >= len(t.Buf) {
		return 0
	}
	return binary.BigEndian.Uint16(t.Buf[off:])
}
