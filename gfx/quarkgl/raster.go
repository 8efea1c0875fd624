package quarkgl

// Rect is an inclusive pixel rectangle.
type Rect struct {
	X0, Y0, X1, Y1 int
}

func (r Rect) Empty() bool { return r.X0 > r.X1 || r.Y0 > r.Y1 }

// Intersect clips r to o.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{X0: maxInt(r.X0, o.X0), Y0: maxInt(r.Y0, o.Y0), X1: minInt(r.X1, o.X1), Y1: minInt(r.Y1, o.Y1)}
}

// Vertex is a screen-space vertex ready for rasterization.
type Vertex struct {
	X, Y, Z Scalar
	S, T    Scalar // texel coordinates
	Color   Color
}

// Shading selects how triangle pixels are colored.
type Shading uint8

const (
	ShadeFlat Shading = iota
	ShadeVertex
	ShadeTexture
)

// Cull selects which faces are discarded. Front faces are counter-clockwise
// when viewed with y pointing up, which is clockwise in screen space.
type Cull uint8

const (
	CullNone  Cull = 0
	CullFront Cull = 1 << 0
	CullBack  Cull = 1 << 1
)

// Wrap modes for texture coordinates.
const (
	WrapRepeat = 0
	WrapMirror = 1
	WrapClamp  = 2
)

// Texture is a loaded RGBA5551 texture tile.
type Texture struct {
	W, H   int
	WrapS  int
	WrapT  int
	Texels []uint16
}

// Sample returns the texel at (s, t) in texel units.
func (tx *Texture) Sample(s, t Scalar) Color {
	if tx == nil || tx.W <= 0 || tx.H <= 0 || len(tx.Texels) < tx.W*tx.H {
		return Color{}
	}
	x := wrapCoord(int(floorF32(s)), tx.W, tx.WrapS)
	y := wrapCoord(int(floorF32(t)), tx.H, tx.WrapT)
	return Unpack5551(tx.Texels[y*tx.W+x])
}

func wrapCoord(v, n, mode int) int {
	switch mode {
	case WrapClamp:
		if v < 0 {
			return 0
		}
		if v >= n {
			return n - 1
		}
		return v
	case WrapMirror:
		period := 2 * n
		v %= period
		if v < 0 {
			v += period
		}
		if v >= n {
			v = period - 1 - v
		}
		return v
	default:
		v %= n
		if v < 0 {
			v += n
		}
		return v
	}
}

// Rasterizer holds fixed-function state that persists across primitives.
//
// Create it once and reuse it to avoid allocations.
type Rasterizer struct {
	Scissor Rect
	Cull    Cull
}

// FillRect writes the packed pixel p over rc, clipped to the scissor.
func (r *Rasterizer) FillRect(t Target, rc Rect, p uint16) {
	w, h := t.Size()
	rc = rc.Intersect(r.clip(w, h))
	for y := rc.Y0; y <= rc.Y1; y++ {
		for x := rc.X0; x <= rc.X1; x++ {
			t.SetRaw(x, y, p)
		}
	}
}

func (r *Rasterizer) clip(w, h int) Rect {
	screen := Rect{X0: 0, Y0: 0, X1: w - 1, Y1: h - 1}
	if r.Scissor.Empty() || r.Scissor == (Rect{}) {
		return screen
	}
	return screen.Intersect(r.Scissor)
}

// Triangle rasterizes one triangle using edge functions over its clipped
// bounding box. Either winding is accepted unless culled.
func (r *Rasterizer) Triangle(t Target, v0, v1, v2 Vertex, mode Shading, tex *Texture, flat Color) {
	x0, y0 := roundF32(v0.X), roundF32(v0.Y)
	x1, y1 := roundF32(v1.X), roundF32(v1.Y)
	x2, y2 := roundF32(v2.X), roundF32(v2.Y)

	area := edgeFn(x0, y0, x1, y1, x2, y2)
	if area == 0 {
		return
	}
	if (area > 0 && r.Cull&CullFront != 0) || (area < 0 && r.Cull&CullBack != 0) {
		return
	}
	if area < 0 {
		v1, v2 = v2, v1
		x1, y1, x2, y2 = x2, y2, x1, y1
		area = -area
	}

	w, h := t.Size()
	box := Rect{X0: min3(x0, x1, x2), Y0: min3(y0, y1, y2), X1: max3(x0, x1, x2), Y1: max3(y0, y1, y2)}
	box = box.Intersect(r.clip(w, h))
	if box.Empty() {
		return
	}
	invArea := 1.0 / float32(area)

	for y := box.Y0; y <= box.Y1; y++ {
		for x := box.X0; x <= box.X1; x++ {
			w0 := edgeFn(x1, y1, x2, y2, x, y)
			w1 := edgeFn(x2, y2, x0, y0, x, y)
			w2 := edgeFn(x0, y0, x1, y1, x, y)
			if (w0 | w1 | w2) < 0 {
				continue
			}
			a0 := float32(w0) * invArea
			a1 := float32(w1) * invArea
			a2 := float32(w2) * invArea

			switch mode {
			case ShadeTexture:
				s := a0*v0.S + a1*v1.S + a2*v2.S
				tt := a0*v0.T + a1*v1.T + a2*v2.T
				t.SetPixel(x, y, tex.Sample(s, tt))
			case ShadeVertex:
				t.SetPixel(x, y, lerpColor(a0, a1, a2, v0.Color, v1.Color, v2.Color))
			default:
				t.SetPixel(x, y, flat)
			}
		}
	}
}

func lerpColor(a0, a1, a2 float32, c0, c1, c2 Color) Color {
	ch := func(x, y, z uint8) uint8 {
		return uint8(clampF32(a0*float32(x)+a1*float32(y)+a2*float32(z), 0, 255))
	}
	return Color{R: ch(c0.R, c1.R, c2.R), G: ch(c0.G, c1.G, c2.G), B: ch(c0.B, c1.B, c2.B), A: ch(c0.A, c1.A, c2.A)}
}

func edgeFn(x0, y0, x1, y1, x, y int) int {
	return (x-x0)*(y1-y0) - (y-y0)*(x1-x0)
}

func roundF32(v float32) int { return int(floorF32(v + 0.5)) }

func floorF32(v float32) float32 {
	i := float32(int(v))
	if i > v {
		i--
	}
	return i
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min3(a, b, c int) int {
	if a > b {
		a = b
	}
	if a > c {
		a = c
	}
	return a
}

func max3(a, b, c int) int {
	if a < b {
		a = b
	}
	if a < c {
		a = c
	}
	return a
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
