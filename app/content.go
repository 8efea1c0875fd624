package app

import (
	"fmt"

	"framepipe/assets"
	"framepipe/frame"
	"framepipe/gfx/gbi"
	"framepipe/gfx/quarkgl"
	"framepipe/hal"
)

const (
	textureSize = 32
	quadHalf    = 64
	quadZ       = -5
	quadScale   = 0.67
	// texCoordMax spans the quad with a mirrored texture: s10.5 coordinates
	// scaled by one quarter.
	texCoordMax   = 127 << 6
	texCoordScale = 0x4000
)

// allocator hands out RAM regions and keeps the first error.
type allocator struct {
	mem *hal.RDRAM
	err error
}

func (a *allocator) alloc(what string, size, align uint32) hal.Region {
	if a.err != nil {
		return hal.Region{}
	}
	r, err := a.mem.Alloc(size, align)
	if err != nil {
		a.err = fmt.Errorf("alloc %s: %w", what, err)
	}
	return r
}

// list allocates a region holding cmds.
func (a *allocator) list(what string, cmds ...gbi.Gfx) hal.Region {
	r := a.alloc(what, uint32(len(cmds)*gbi.CommandBytes), hal.CacheLineBytes)
	if a.err == nil {
		r.Store(0, gbi.Encode(cmds))
	}
	return r
}

func (a *allocator) vertices(what string, vs ...gbi.Vtx) hal.Region {
	r := a.alloc(what, uint32(len(vs)*gbi.VtxBytes), hal.CacheLineBytes)
	if a.err == nil {
		var b [gbi.VtxBytes]byte
		for i, v := range vs {
			v.PutBytes(b[:])
			r.Store(uint32(i*gbi.VtxBytes), b[:])
		}
	}
	return r
}

// content is the demo scene: a vertex-shaded quad and a textured quad
// orbiting the screen center. It owns every static list the frames call.
type content struct {
	rdpInit hal.Region
	rspInit hal.Region

	proj  hal.Region
	model [2]hal.Region
	mesh  [2]hal.Region
	tex   hal.Region

	step  frame.Angle
	angle frame.Angle
	load  frame.TextureLoad
	scene frame.Scene
}

func newContent(a *allocator, mode hal.VideoMode, step frame.Angle) *content {
	c := &content{step: step}

	vp := a.alloc("viewport", gbi.VpBytes, hal.CacheLineBytes)
	if a.err == nil {
		var b [gbi.VpBytes]byte
		gbi.ViewportFor(mode.Width, mode.Height, gbi.MaxZ).PutBytes(b[:])
		vp.Store(0, b[:])
	}

	c.rdpInit = a.list("rdp init",
		gbi.DPSetCycleType(gbi.Cycle1Cycle),
		gbi.DPSetScissor(gbi.ScNonInterlace, 0, 0, mode.Width, mode.Height),
		gbi.DPSetTextureFilter(gbi.FilterBilerp),
		gbi.DPSetCombineMode(gbi.CCShade),
		gbi.DPSetRenderMode(gbi.RMOpaSurf),
		gbi.DPPipeSync(),
		gbi.SPEndDisplayList(),
	)
	c.rspInit = a.list("rsp init",
		gbi.SPViewport(vp.Addr),
		gbi.SPClearGeometryMode(gbi.GShade|gbi.GShadingSmooth|gbi.GCullBoth|gbi.GFog|gbi.GTextureGenLin|gbi.GLOD),
		gbi.SPTexture(0, 0, false),
		gbi.SPSetGeometryMode(gbi.GShade|gbi.GShadingSmooth),
		gbi.SPEndDisplayList(),
	)

	shaded := a.vertices("shaded quad",
		gbi.Vtx{X: -quadHalf, Y: quadHalf, Z: quadZ, R: 0xFF, G: 0xFF, A: 0xFF},
		gbi.Vtx{X: quadHalf, Y: quadHalf, Z: quadZ, G: 0xFF, A: 0xFF},
		gbi.Vtx{X: quadHalf, Y: -quadHalf, Z: quadZ, B: 0xFF, A: 0xFF},
		gbi.Vtx{X: -quadHalf, Y: -quadHalf, Z: quadZ, R: 0xFF, A: 0xFF},
	)
	textured := a.vertices("textured quad",
		gbi.Vtx{X: -quadHalf, Y: quadHalf, Z: quadZ, R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		gbi.Vtx{X: quadHalf, Y: quadHalf, Z: quadZ, S: texCoordMax, R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		gbi.Vtx{X: quadHalf, Y: -quadHalf, Z: quadZ, S: texCoordMax, T: texCoordMax, R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		gbi.Vtx{X: -quadHalf, Y: -quadHalf, Z: quadZ, T: texCoordMax, R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
	)

	c.mesh[0] = a.list("shaded mesh",
		gbi.DPPipeSync(),
		gbi.DPSetCycleType(gbi.Cycle1Cycle),
		gbi.DPSetRenderMode(gbi.RMOpaSurf),
		gbi.SPSetGeometryMode(gbi.GShade),
		gbi.DPSetCombineMode(gbi.CCShade),
		gbi.SPVertex(shaded.Addr, 4, 0),
		gbi.SP1Triangle(0, 1, 2),
		gbi.SP1Triangle(0, 2, 3),
		gbi.SPEndDisplayList(),
	)
	c.mesh[1] = a.list("textured mesh",
		gbi.DPPipeSync(),
		gbi.DPSetCycleType(gbi.Cycle1Cycle),
		gbi.SPSetGeometryMode(gbi.GShade),
		gbi.DPSetCombineMode(gbi.CCDecalRGB),
		gbi.DPSetTextureFilter(gbi.FilterPoint),
		gbi.SPVertex(textured.Addr, 4, 0),
		gbi.SP1Triangle(0, 1, 2),
		gbi.SP1Triangle(0, 2, 3),
		gbi.SPTexture(0, 0, false),
		gbi.SPEndDisplayList(),
	)

	texels := assets.TexelBytes(assets.Brick(textureSize, textureSize))
	c.tex = a.alloc("texture", uint32(len(texels)), hal.CacheLineBytes)
	if a.err == nil {
		c.tex.Store(0, texels)
	}
	c.load = frame.TextureLoad{
		Addr:   c.tex.Addr,
		Width:  textureSize,
		Height: textureSize,
		WrapS:  gbi.TxMirror,
		WrapT:  gbi.TxMirror,
		SScale: texCoordScale,
		TScale: texCoordScale,
	}

	c.proj = a.alloc("projection", gbi.MtxBytes, hal.CacheLineBytes)
	c.model[0] = a.alloc("model 0", gbi.MtxBytes, hal.CacheLineBytes)
	c.model[1] = a.alloc("model 1", gbi.MtxBytes, hal.CacheLineBytes)
	if a.err == nil {
		hw, hh := quarkgl.Scalar(mode.Width)/2, quarkgl.Scalar(mode.Height)/2
		storeMtx(c.proj, quarkgl.Mat4Ortho(-hw, hw, -hh, hh, 1, 10, 1))
	}

	c.scene.Blocks = []frame.DrawBlock{
		{Projection: c.proj.Addr, ModelView: c.model[0].Addr, Mesh: c.mesh[0].Addr},
		{ModelView: c.model[1].Addr, Texture: &c.load, Mesh: c.mesh[1].Addr},
	}
	return c
}

// NextScene advances the rotation and rewrites both model matrices. It
// runs after the previous task retired, so the coprocessor is not reading
// them.
func (c *content) NextScene() (*frame.Scene, error) {
	c.angle = c.angle.Advance(c.step)
	rot := quarkgl.Mat4RotateZ(c.angle.Radians())
	spin := quarkgl.Mat4Mul(quarkgl.Mat4Scale(quarkgl.V3(quadScale, quadScale, 1)), rot)
	// Each quad spins about its own centre, then moves to its side.
	for i, dx := range [2]quarkgl.Scalar{-quadHalf, quadHalf} {
		m := quarkgl.Mat4Mul(quarkgl.Mat4Translate(quarkgl.V3(dx, 0, 0)), spin)
		storeMtx(c.model[i], m)
	}
	c.scene.Angle = c.angle
	return &c.scene, nil
}

func storeMtx(r hal.Region, m quarkgl.Mat4) {
	var b [gbi.MtxBytes]byte
	gbi.MtxFromFloat([16]float32(m)).PutBytes(b[:])
	r.Store(0, b[:])
}
