package quarkgl

// Color is an RGBA color in 8-bit channels.
type Color struct {
	R, G, B, A uint8
}

func RGB(r, g, b uint8) Color     { return Color{R: r, G: g, B: b, A: 0xFF} }
func RGBA(r, g, b, a uint8) Color { return Color{R: r, G: g, B: b, A: a} }

// Pack5551 encodes c as rrrrrgggggbbbbba; alpha is kept when A >= 128.
func (c Color) Pack5551() uint16 {
	p := uint16(c.R>>3)<<11 | uint16(c.G>>3)<<6 | uint16(c.B>>3)<<1
	if c.A >= 0x80 {
		p |= 1
	}
	return p
}

// Unpack5551 expands a 16-bit pixel to 8-bit channels.
func Unpack5551(p uint16) Color {
	r := uint8((p >> 11) & 0x1F)
	g := uint8((p >> 6) & 0x1F)
	b := uint8((p >> 1) & 0x1F)
	c := Color{R: r<<3 | r>>2, G: g<<3 | g>>2, B: b<<3 | b>>2}
	if p&1 != 0 {
		c.A = 0xFF
	}
	return c
}
