package hal

// RGBA8888From5551 expands a big-endian RGBA5551 pixel.
func RGBA8888From5551(p uint16) (r, g, b, a uint8) {
	rr := (p >> 11) & 0x1F
	gg := (p >> 6) & 0x1F
	bb := (p >> 1) & 0x1F

	r = uint8((rr * 255) / 31)
	g = uint8((gg * 255) / 31)
	b = uint8((bb * 255) / 31)
	a = 0xFF
	return r, g, b, a
}

// ScanoutToRGBA converts a scanned-out frame into dst as 8-bit RGBA.
// The alpha bit is coverage, not transparency, so output is always opaque.
func ScanoutToRGBA(dst []byte, s Scanout) {
	src := s.Pix
	for i := 0; i+1 < len(src) && i/2*4+3 < len(dst); i += 2 {
		r, g, b, a := RGBA8888From5551(uint16(src[i])<<8 | uint16(src[i+1]))
		j := (i / 2) * 4
		dst[j+0] = r
		dst[j+1] = g
		dst[j+2] = b
		dst[j+3] = a
	}
}
