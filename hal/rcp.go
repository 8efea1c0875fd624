package hal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"framepipe/gfx/gbi"
	"framepipe/gfx/quarkgl"
)

const (
	// dlStackDepth is the number of nested display list calls the
	// microcode supports.
	dlStackDepth = 10
	// mtxStackDepth is the modelview push depth.
	mtxStackDepth = 10
	// maxTaskCommands bounds a single task so a looping branch faults
	// instead of hanging the coprocessor forever.
	maxTaskCommands = 1 << 16
)

var errListUnterminated = errors.New("task list not terminated")

// rcp simulates the signal processor and rasterizer pair: one task slot,
// a display list interpreter and a fixed-function rasterizer drawing
// straight into RAM.
type rcp struct {
	mem  *RDRAM
	mode VideoMode

	raise func(Event)
	fault func(error)

	busy  atomic.Bool
	tasks atomic.Uint64
}

func newRCP(mem *RDRAM, mode VideoMode, raise func(Event), fault func(error)) *rcp {
	return &rcp{mem: mem, mode: mode, raise: raise, fault: fault}
}

// StartTask validates the descriptor and runs it asynchronously.
func (c *rcp) StartTask(t *Task) error {
	if err := t.validate(); err != nil {
		return fmt.Errorf("start task: %w", err)
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrTaskBusy
	}
	task := *t
	go c.run(&task)
	return nil
}

// Busy reports whether a task is outstanding.
func (c *rcp) Busy() bool { return c.busy.Load() }

func (c *rcp) run(t *Task) {
	st := newGfxState(c.mode)
	err := c.exec(st, t)
	c.tasks.Add(1)
	c.busy.Store(false)
	if err != nil {
		c.fault(fmt.Errorf("rcp task %d: %w", c.tasks.Load(), err))
		return
	}
	if st.fullSync {
		c.raise(EventDP)
	}
}

type colorImage struct {
	addr  uint32
	width int
}

// gfxState is the microcode and rasterizer state for one task.
type gfxState struct {
	seg     [gbi.Segments]uint32
	dlStack []uint32

	proj     quarkgl.Mat4
	model    quarkgl.Mat4
	mtxStack []quarkgl.Mat4
	vp       gbi.Vp
	verts    [gbi.MaxVertices]quarkgl.Vertex

	geom           uint32
	texOn          bool
	sScale, tScale uint16
	tex            quarkgl.Texture

	cycle   uint32
	combine gbi.CombineMode
	fill    uint32
	cimg    colorImage
	raster  quarkgl.Rasterizer

	fullSync bool
}

func newGfxState(mode VideoMode) *gfxState {
	return &gfxState{
		proj:  quarkgl.Mat4Identity(),
		model: quarkgl.Mat4Identity(),
		vp:    gbi.ViewportFor(mode.Width, mode.Height, gbi.MaxZ),
	}
}

// addr resolves a segmented address.
func (s *gfxState) addr(a uint32) uint32 {
	seg, off := gbi.SplitAddress(a)
	return s.seg[seg] + off
}

func (c *rcp) exec(st *gfxState, t *Task) error {
	var boot [ucodeBootSize]byte
	if err := c.mem.DeviceRead(t.UcodeBoot.Addr, boot[:]); err != nil {
		return err
	}
	if string(boot[:4]) != ucodeBootMagic {
		return fmt.Errorf("microcode boot: %w", ErrBadMicrocode)
	}
	var hdr [ucodeHeaderSize]byte
	if err := c.mem.DeviceRead(t.Ucode.Addr, hdr[:]); err != nil {
		return err
	}
	uc, err := decodeMicrocode(hdr[:])
	if err != nil {
		return err
	}
	if uc != F3DXBus {
		return fmt.Errorf("microcode %q v%d: %w", uc.Name, uc.Version, ErrNotImplemented)
	}
	var data [ucodeDataSize]byte
	if err := c.mem.DeviceRead(t.UcodeData.Addr, data[:]); err != nil {
		return err
	}
	if err := checkMicrocodeData(uc, data[:]); err != nil {
		return err
	}

	pc := t.Data.Addr
	end := t.Data.Addr + t.Data.Size
	var rec [gbi.CommandBytes]byte
	for n := 0; n < maxTaskCommands; n++ {
		if len(st.dlStack) == 0 && pc >= end {
			return errListUnterminated
		}
		if err := c.mem.DeviceRead(pc, rec[:]); err != nil {
			return err
		}
		g := gbi.Decode(rec[:])
		pc += gbi.CommandBytes

		switch g.Op() {
		case gbi.OpEndDL:
			if len(st.dlStack) == 0 {
				return nil
			}
			pc = st.dlStack[len(st.dlStack)-1]
			st.dlStack = st.dlStack[:len(st.dlStack)-1]
		case gbi.OpDL:
			if g.W0&gbi.DLBranch == 0 {
				if len(st.dlStack) >= dlStackDepth {
					return ErrStackOverflow
				}
				st.dlStack = append(st.dlStack, pc)
			}
			pc = st.addr(g.W1)
		default:
			if err := c.command(st, g); err != nil {
				return fmt.Errorf("%s at %#x: %w", g.Op(), pc-gbi.CommandBytes, err)
			}
		}
	}
	return fmt.Errorf("more than %d commands: %w", maxTaskCommands, errListUnterminated)
}

func (c *rcp) command(st *gfxState, g gbi.Gfx) error {
	switch g.Op() {
	case gbi.OpNoop, gbi.OpPipeSync:
	case gbi.OpFullSync:
		st.fullSync = true
	case gbi.OpMoveWord:
		if (g.W0>>16)&0xFF == gbi.MWSegment {
			st.seg[(g.W0&0xFFFF)/4%gbi.Segments] = g.W1 & 0x00FFFFFF
		}
	case gbi.OpMtx:
		return c.loadMatrix(st, gbi.MtxFlags(g.W0&0xFF), st.addr(g.W1))
	case gbi.OpViewport:
		var b [gbi.VpBytes]byte
		if err := c.mem.DeviceRead(st.addr(g.W1), b[:]); err != nil {
			return err
		}
		st.vp = gbi.DecodeVp(b[:])
	case gbi.OpVertex:
		return c.loadVertices(st, int(g.W0>>12)&0xFFF, int(g.W0&0xFFF), st.addr(g.W1))
	case gbi.OpTri1:
		return c.triangle(st, int(g.W0>>16)&0xFF, int(g.W0>>8)&0xFF, int(g.W0)&0xFF)
	case gbi.OpGeometryMode:
		st.geom = st.geom&^(g.W0&0x00FFFFFF) | g.W1
		st.raster.Cull = quarkgl.CullNone
		if st.geom&gbi.GCullFront != 0 {
			st.raster.Cull |= quarkgl.CullFront
		}
		if st.geom&gbi.GCullBack != 0 {
			st.raster.Cull |= quarkgl.CullBack
		}
	case gbi.OpTexture:
		st.texOn = g.W0&1 != 0
		st.sScale, st.tScale = uint16(g.W1>>16), uint16(g.W1)
	case gbi.OpLoadBlock:
		return c.loadTexture(st, g)
	case gbi.OpSetOtherMode:
		if gbi.OtherMode(g.W0>>8&0xFF) == gbi.OMCycleType {
			st.cycle = g.W1
		}
	case gbi.OpSetCombine:
		st.combine = gbi.CombineMode(g.W1)
	case gbi.OpSetScissor:
		st.raster.Scissor = quarkgl.Rect{
			X0: int(g.W0>>12) & 0xFFF, Y0: int(g.W0) & 0xFFF,
			X1: int(g.W1>>12)&0xFFF - 1, Y1: int(g.W1)&0xFFF - 1,
		}
	case gbi.OpSetColorImg:
		if f, siz := (g.W0>>21)&7, (g.W0>>19)&3; f != gbi.ImFmtRGBA || siz != gbi.ImSiz16b {
			return fmt.Errorf("color image format %d/%d: %w", f, siz, ErrNotImplemented)
		}
		st.cimg = colorImage{addr: st.addr(g.W1), width: int(g.W0&0xFFF) + 1}
	case gbi.OpSetFillColor:
		st.fill = g.W1
	case gbi.OpFillRect:
		tg, err := c.target(st)
		if err != nil {
			return err
		}
		rc := quarkgl.Rect{
			X0: int(g.W1>>12) & 0xFFF, Y0: int(g.W1) & 0xFFF,
			X1: int(g.W0>>12) & 0xFFF, Y1: int(g.W0) & 0xFFF,
		}
		p := uint16(st.fill >> 16)
		if st.cycle != gbi.CycleFill {
			p = uint16(st.fill)
		}
		st.raster.FillRect(tg, rc, p)
	default:
		return ErrBadCommand
	}
	return nil
}

func (c *rcp) target(st *gfxState) (*quarkgl.RGBA5551Target, error) {
	if st.cimg.addr == 0 {
		return nil, fmt.Errorf("no color image: %w", ErrBadCommand)
	}
	stride := st.cimg.width * 2
	buf, err := c.mem.DeviceSpan(st.cimg.addr, uint32(stride*c.mode.Height))
	if err != nil {
		return nil, err
	}
	return &quarkgl.RGBA5551Target{Buf: buf, Stride: stride, W: st.cimg.width, H: c.mode.Height}, nil
}

func (c *rcp) loadMatrix(st *gfxState, flags gbi.MtxFlags, addr uint32) error {
	var b [gbi.MtxBytes]byte
	if err := c.mem.DeviceRead(addr, b[:]); err != nil {
		return err
	}
	m := quarkgl.Mat4(gbi.DecodeMtx(b[:]).Float())

	if flags&gbi.MtxProjection != 0 {
		if flags&gbi.MtxLoad != 0 {
			st.proj = m
		} else {
			st.proj = quarkgl.Mat4Mul(st.proj, m)
		}
		return nil
	}
	if flags&gbi.MtxPush != 0 {
		if len(st.mtxStack) >= mtxStackDepth {
			return ErrStackOverflow
		}
		st.mtxStack = append(st.mtxStack, st.model)
	}
	if flags&gbi.MtxLoad != 0 {
		st.model = m
	} else {
		st.model = quarkgl.Mat4Mul(st.model, m)
	}
	return nil
}

func (c *rcp) loadVertices(st *gfxState, n, v0 int, addr uint32) error {
	if n <= 0 || v0+n > gbi.MaxVertices {
		return fmt.Errorf("vertex load %d at %d: %w", n, v0, ErrBadCommand)
	}
	buf := make([]byte, n*gbi.VtxBytes)
	if err := c.mem.DeviceRead(addr, buf); err != nil {
		return err
	}

	mvp := quarkgl.Mat4Mul(st.proj, st.model)
	sx := quarkgl.Scalar(st.vp.Scale[0]) / 4
	sy := quarkgl.Scalar(st.vp.Scale[1]) / 4
	tx := quarkgl.Scalar(st.vp.Trans[0]) / 4
	ty := quarkgl.Scalar(st.vp.Trans[1]) / 4
	sScale := quarkgl.Scalar(st.sScale) / 65536 / 32
	tScale := quarkgl.Scalar(st.tScale) / 65536 / 32

	for i := 0; i < n; i++ {
		v := gbi.DecodeVtx(buf[i*gbi.VtxBytes:])
		p := quarkgl.Mat4MulV4(mvp, quarkgl.Vec4{X: quarkgl.Scalar(v.X), Y: quarkgl.Scalar(v.Y), Z: quarkgl.Scalar(v.Z), W: 1})
		if p.W != 0 {
			p.X /= p.W
			p.Y /= p.W
			p.Z /= p.W
		}
		out := quarkgl.Vertex{
			X:     p.X*sx + tx,
			Y:     -p.Y*sy + ty,
			Z:     p.Z,
			S:     quarkgl.Scalar(v.S) * sScale,
			T:     quarkgl.Scalar(v.T) * tScale,
			Color: quarkgl.RGB(0xFF, 0xFF, 0xFF),
		}
		if st.geom&gbi.GShade != 0 {
			out.Color = quarkgl.RGBA(v.R, v.G, v.B, v.A)
		}
		st.verts[v0+i] = out
	}
	return nil
}

func (c *rcp) triangle(st *gfxState, i0, i1, i2 int) error {
	if i0 >= gbi.MaxVertices || i1 >= gbi.MaxVertices || i2 >= gbi.MaxVertices {
		return fmt.Errorf("triangle %d,%d,%d: %w", i0, i1, i2, ErrBadCommand)
	}
	tg, err := c.target(st)
	if err != nil {
		return err
	}
	mode := quarkgl.ShadeFlat
	switch {
	case st.combine == gbi.CCDecalRGB && st.texOn:
		mode = quarkgl.ShadeTexture
	case st.combine == gbi.CCShade:
		mode = quarkgl.ShadeVertex
	}
	flat := quarkgl.Unpack5551(uint16(st.fill))
	st.raster.Triangle(tg, st.verts[i0], st.verts[i1], st.verts[i2], mode, &st.tex, flat)
	return nil
}

func (c *rcp) loadTexture(st *gfxState, g gbi.Gfx) error {
	w, h := int(g.W0>>8)&0xFF, int(g.W0)&0xFF
	if w == 0 || h == 0 {
		return fmt.Errorf("texture %dx%d: %w", w, h, ErrBadCommand)
	}
	buf := make([]byte, w*h*2)
	if err := c.mem.DeviceRead(st.addr(g.W1), buf); err != nil {
		return err
	}
	texels := st.tex.Texels[:0]
	for i := 0; i+1 < len(buf); i += 2 {
		texels = append(texels, binary.BigEndian.Uint16(buf[i:]))
	}
	st.tex = quarkgl.Texture{
		W: w, H: h,
		WrapS:  wrapMode(int(g.W0>>20) & 0xF),
		WrapT:  wrapMode(int(g.W0>>16) & 0xF),
		Texels: texels,
	}
	return nil
}

func wrapMode(cm int) int {
	switch cm {
	case gbi.TxMirror:
		return quarkgl.WrapMirror
	case gbi.TxClamp:
		return quarkgl.WrapClamp
	default:
		return quarkgl.WrapRepeat
	}
}
