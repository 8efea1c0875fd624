package quarkgl

// Target is a minimal pixel target for the rasterizer.
//
// Implementations should clip out-of-bounds coordinates.
type Target interface {
	Size() (w, h int)
	SetPixel(x, y int, c Color)
	// SetRaw stores an already packed pixel (fill cycle writes).
	SetRaw(x, y int, p uint16)
}
