package frame

import (
	"testing"

	"framepipe/gfx/gbi"
	"framepipe/hal"
	"framepipe/kernel"
)

var testMode = hal.VideoMode{Width: 32, Height: 16, Format: hal.PixelFormatRGBA5551, Hz: 60}

const paint = 0x11

// fakeCoprocessor decodes the submitted list from RAM, paints the color
// image and raises raster-done.
type fakeCoprocessor struct {
	mem    *hal.RDRAM
	raster *kernel.Signal
	silent bool
	fail   error

	tasks        []hal.Task
	lists        [][]gbi.Gfx
	dirtyAtStart []int
	sealedAt     []bool
	list         *gbi.CommandList
}

func (c *fakeCoprocessor) StartTask(t *hal.Task) error {
	if c.fail != nil {
		return c.fail
	}
	c.tasks = append(c.tasks, *t)
	c.dirtyAtStart = append(c.dirtyAtStart, c.mem.DirtyLines())
	if c.list != nil {
		c.sealedAt = append(c.sealedAt, c.list.Sealed())
	}

	buf := make([]byte, t.Data.Size)
	if err := c.mem.DeviceRead(t.Data.Addr, buf); err != nil {
		return err
	}
	var cmds []gbi.Gfx
	for i := 0; i+gbi.CommandBytes <= len(buf); i += gbi.CommandBytes {
		g := gbi.Decode(buf[i:])
		cmds = append(cmds, g)
		if g.Op() == gbi.OpSetColorImg {
			span, err := c.mem.DeviceSpan(g.W1, uint32(testMode.FrameBytes()))
			if err != nil {
				return err
			}
			for j := range span {
				span[j] = paint
			}
		}
	}
	c.lists = append(c.lists, cmds)
	if !c.silent {
		c.raster.Notify()
	}
	return nil
}

type scan struct {
	addr uint32
	pix  []byte
}

// fakeVideo latches registered buffers and scans them out on retrace.
type fakeVideo struct {
	mem     *hal.RDRAM
	retrace *kernel.Signal

	swaps   []uint32
	next    uint32
	current uint32
	pending bool
	scans   []scan
}

func (v *fakeVideo) Mode() hal.VideoMode { return testMode }

func (v *fakeVideo) SwapBuffer(addr uint32, _ hal.PresentTiming) error {
	v.swaps = append(v.swaps, addr)
	v.next = addr
	v.pending = true
	return nil
}

func (v *fakeVideo) vblank() {
	if v.pending {
		v.current = v.next
		v.pending = false
	}
	if v.current != 0 {
		pix := make([]byte, testMode.FrameBytes())
		_ = v.mem.DeviceRead(v.current, pix)
		v.scans = append(v.scans, scan{addr: v.current, pix: pix})
	}
	v.retrace.Notify()
}

type rig struct {
	mem     *hal.RDRAM
	cop     *fakeCoprocessor
	vid     *fakeVideo
	raster  *kernel.Signal
	retrace *kernel.Signal
	overlay []byte
	mesh    [2]uint32
	mtx     uint32

	builder *Builder
	disp    *Dispatcher
	swap    *Swapper
	ctl     *Controller
}

func mustAlloc(t *testing.T, mem *hal.RDRAM, size, align uint32) hal.Region {
	t.Helper()
	r, err := mem.Alloc(size, align)
	if err != nil {
		t.Fatalf("Alloc(%d): %v", size, err)
	}
	return r
}

func newRig(t *testing.T, src SceneSource) *rig {
	t.Helper()
	mem := hal.NewRDRAM(64 << 10)
	r := &rig{
		mem:     mem,
		raster:  kernel.NewSignal("dp"),
		retrace: kernel.NewSignal("vi"),
	}
	r.cop = &fakeCoprocessor{mem: mem, raster: r.raster}
	r.vid = &fakeVideo{mem: mem, retrace: r.retrace}

	listMem := mustAlloc(t, mem, gbi.MaxCommands*gbi.CommandBytes, 16)
	list, err := gbi.NewCommandList(listMem, listMem.Addr, listMem.Size)
	if err != nil {
		t.Fatalf("NewCommandList: %v", err)
	}
	r.cop.list = list

	rdp := mustAlloc(t, mem, 16, 16)
	rsp := mustAlloc(t, mem, 16, 16)
	r.mesh[0] = mustAlloc(t, mem, 16, 16).Addr
	r.mesh[1] = mustAlloc(t, mem, 16, 16).Addr
	r.mtx = mustAlloc(t, mem, gbi.MtxBytes, 16).Addr
	boot := mustAlloc(t, mem, 16, 16)
	ucode := mustAlloc(t, mem, 32, 16)
	data := mustAlloc(t, mem, 16, 16)
	stack := mustAlloc(t, mem, hal.MinDramStackBytes, 16)
	fb := [2]hal.Region{
		mustAlloc(t, mem, uint32(testMode.FrameBytes()), FramebufferAlign),
		mustAlloc(t, mem, uint32(testMode.FrameBytes()), FramebufferAlign),
	}

	r.overlay = make([]byte, testMode.StrideBytes()*2)
	for i := range r.overlay {
		r.overlay[i] = byte(0xA0 + i%16)
	}

	if r.builder, err = NewBuilder(list, BuilderConfig{RDPInit: rdp.Addr, RSPInit: rsp.Addr, Mode: testMode, ClearColor: 0x0001}); err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if r.disp, err = NewDispatcher(r.cop, mem, hal.Task{
		UcodeBoot: boot.Span(),
		Ucode:     ucode.Span(),
		UcodeData: data.Span(),
		DramStack: stack.Span(),
	}); err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if r.swap, err = NewSwapper(fb, r.vid, mem, r.overlay); err != nil {
		t.Fatalf("NewSwapper: %v", err)
	}
	if src == nil {
		src = r.demoScene()
	}
	if r.ctl, err = NewController(Config{
		Source:     src,
		Builder:    r.builder,
		Dispatcher: r.disp,
		Swapper:    r.swap,
		RasterDone: r.raster,
		Retrace:    r.retrace,
	}); err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return r
}

// demoScene returns a two-object scene source advancing by two degrees.
func (r *rig) demoScene() SceneSource {
	var angle Angle
	return SceneFunc(func() (*Scene, error) {
		angle = angle.Advance(Degrees(2))
		return &Scene{
			Angle: angle,
			Blocks: []DrawBlock{
				{Projection: r.mtx, ModelView: r.mtx, Mesh: r.mesh[0]},
				{ModelView: r.mtx, Texture: &TextureLoad{Addr: r.mtx, Width: 4, Height: 4}, Mesh: r.mesh[1]},
			},
		}, nil
	})
}

// frames steps the controller through n full frames, pulsing the video
// retrace whenever the controller is about to wait for it.
func (r *rig) frames(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		for s := 0; s < 7; s++ {
			if r.ctl.State() == StateAwaitRetrace {
				r.vid.vblank()
			}
			if err := r.ctl.Step(t.Context()); err != nil {
				t.Fatalf("frame %d step %d: %v", i+1, s, err)
			}
		}
	}
}
