package frame

import "math"

// Angle is an animation angle in millidegrees, always in [0, FullTurn).
// Integer storage keeps wrap-around exact over any number of turns.
type Angle uint32

// FullTurn is one revolution.
const FullTurn Angle = 360_000

// Degrees converts whole or fractional degrees, rounding to a millidegree.
func Degrees(d float64) Angle {
	m := math.Mod(math.Round(d*1000), float64(FullTurn))
	if m < 0 {
		m += float64(FullTurn)
	}
	return Angle(m)
}

// Advance returns a+step wrapped into [0, FullTurn).
func (a Angle) Advance(step Angle) Angle {
	return Angle((uint64(a) + uint64(step)) % uint64(FullTurn))
}

func (a Angle) Degrees() float64 { return float64(a) / 1000 }

func (a Angle) Radians() float32 { return float32(a.Degrees() * math.Pi / 180) }

// TextureLoad describes an RGBA16 texture to load before a draw block.
type TextureLoad struct {
	Addr           uint32
	Width, Height  int
	WrapS, WrapT   int
	SScale, TScale uint16
}

// DrawBlock is one object: optional matrix and texture loads followed by a
// call to its static mesh list. Zero addresses mean "keep current state".
type DrawBlock struct {
	Projection uint32
	ModelView  uint32
	Texture    *TextureLoad
	Mesh       uint32
}

// Scene is the per-frame input to the builder. The matrices it points at
// live in coprocessor-visible memory and must not change until the task
// built from this scene has retired.
type Scene struct {
	Angle  Angle
	Blocks []DrawBlock
}

// SceneSource produces the scene for the next frame. It is called once per
// frame in the build state, after the previous task has retired.
type SceneSource interface {
	NextScene() (*Scene, error)
}

// SceneFunc adapts a function to SceneSource.
type SceneFunc func() (*Scene, error)

func (f SceneFunc) NextScene() (*Scene, error) { return f() }
