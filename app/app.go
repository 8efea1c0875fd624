package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"

	"framepipe/assets"
	"framepipe/frame"
	"framepipe/gfx/gbi"
	"framepipe/hal"
	"framepipe/kernel"

	"golang.org/x/sync/errgroup"
)

// errHardwareFault wraps faults reported by the simulated machine.
var errHardwareFault = errors.New("hardware fault")

var (
	bannerBackground = color.RGBA{R: 0x10, G: 0x20, B: 0x60, A: 0xFF}
	bannerForeground = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// clearColor is the RGBA5551 background of every frame.
const clearColor = 0x0001

// App is the demo program: it lays out the machine's RAM, wires the
// interrupt signals and runs the frame controller.
type App struct {
	h   *hal.Host
	cfg Config
	log *slog.Logger

	raster  *kernel.Signal
	retrace *kernel.Signal

	ucode   hal.Region
	content *content
	swap    *frame.Swapper
	ctl     *frame.Controller
	dump    *Dumper
	halter  *kernel.Halter
}

// New prepares the demo on h. Nothing runs until Run.
func New(h *hal.Host, cfg Config) (*App, error) {
	cfg = cfg.withDefaults()
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	log := slog.New(slog.NewTextHandler(&hal.LineWriter{L: h.Logger()}, &slog.HandlerOptions{Level: level}))
	frame.SetLogger(log.With("pkg", "frame"))

	a := &App{
		h:       h,
		cfg:     cfg,
		log:     log,
		raster:  kernel.NewSignal(hal.EventDP.String()),
		retrace: kernel.NewSignal(hal.EventVI.String()),
	}
	mode := h.Video().Mode()
	mem := h.Memory()
	al := &allocator{mem: mem}

	var fb [2]hal.Region
	for i := range fb {
		fb[i] = al.alloc(fmt.Sprintf("framebuffer %d", i), uint32(mode.FrameBytes()), frame.FramebufferAlign)
	}
	ucode, err := hal.EncodeMicrocode(hal.F3DXBus)
	if err != nil {
		return nil, err
	}
	listMem := al.alloc("command list", gbi.MaxCommands*gbi.CommandBytes, hal.CacheLineBytes)
	boot := al.alloc("microcode boot", uint32(len(ucode.Boot)), hal.CacheLineBytes)
	a.ucode = al.alloc("microcode", uint32(len(ucode.Text)), hal.CacheLineBytes)
	data := al.alloc("microcode data", uint32(len(ucode.Data)), hal.CacheLineBytes)
	stack := al.alloc("dram stack", hal.MinDramStackBytes, hal.CacheLineBytes)
	a.content = newContent(al, mode, frame.Degrees(cfg.AngleStep))
	if al.err != nil {
		return nil, al.err
	}
	boot.Store(0, ucode.Boot)
	a.ucode.Store(0, ucode.Text)
	data.Store(0, ucode.Data)

	overlay, err := a.loadOverlay(mode)
	if err != nil {
		return nil, err
	}

	list, err := gbi.NewCommandList(listMem, listMem.Addr, listMem.Size)
	if err != nil {
		return nil, err
	}
	builder, err := frame.NewBuilder(list, frame.BuilderConfig{
		RDPInit:    a.content.rdpInit.Addr,
		RSPInit:    a.content.rspInit.Addr,
		Mode:       mode,
		ClearColor: clearColor,
	})
	if err != nil {
		return nil, err
	}
	disp, err := frame.NewDispatcher(h.Coprocessor(), mem, hal.Task{
		Flags:     hal.TaskDPWait,
		UcodeBoot: boot.Span(),
		Ucode:     a.ucode.Span(),
		UcodeData: data.Span(),
		DramStack: stack.Span(),
	})
	if err != nil {
		return nil, err
	}
	if a.swap, err = frame.NewSwapper(fb, h.Video(), mem, overlay); err != nil {
		return nil, err
	}
	if a.ctl, err = frame.NewController(frame.Config{
		Source:     a.content,
		Builder:    builder,
		Dispatcher: disp,
		Swapper:    a.swap,
		RasterDone: a.raster,
		Retrace:    a.retrace,
		StatsEvery: cfg.StatsEvery,
	}); err != nil {
		return nil, err
	}

	if cfg.DumpDir != "" {
		if a.dump, err = NewDumper(cfg.DumpDir, cfg.DumpEvery, log); err != nil {
			return nil, err
		}
		h.AddScanoutSink(a.dump.Sink)
	}

	h.SetEventHandler(hal.EventDP, a.raster.Notify)
	h.SetEventHandler(hal.EventVI, a.retrace.Notify)
	a.installHaltHandler()

	log.Info("machine ready",
		"mode", fmt.Sprintf("%dx%d@%d", mode.Width, mode.Height, mode.Hz),
		"fb0", fmt.Sprintf("%#x", fb[0].Addr),
		"fb1", fmt.Sprintf("%#x", fb[1].Addr),
		"list", fmt.Sprintf("%#x", list.Addr()),
	)
	return a, nil
}

func (a *App) loadOverlay(mode hal.VideoMode) ([]byte, error) {
	if a.cfg.OverlayFile != "" {
		f, err := os.Open(a.cfg.OverlayFile)
		if err != nil {
			return nil, fmt.Errorf("overlay: %w", err)
		}
		defer f.Close()
		b, err := assets.LoadBanner(f, mode.Width, assets.BannerHeight)
		if err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	}
	if a.cfg.OverlayText == "" {
		return nil, nil
	}
	b := assets.NewBanner(mode.Width, assets.BannerHeight, bannerBackground)
	b.TextCentered(a.cfg.OverlayText, bannerForeground)
	return b.Bytes(), nil
}

// Controller returns the frame controller.
func (a *App) Controller() *frame.Controller { return a.ctl }

// Swapper returns the double-buffer swapper.
func (a *App) Swapper() *frame.Swapper { return a.swap }

// Overlay returns the strip composited onto every frame.
func (a *App) Overlay() []byte { return a.swap.Overlay() }

// Run drives the frame loop until cfg.Frames frames have been displayed,
// ctx is cancelled or the pipeline halts. Hardware faults cancel the loop
// with the fault as cause. Any error other than cancellation halts the
// machine and puts the halt screen up.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	a.h.SetFaultHandler(func(err error) {
		cancel(fmt.Errorf("%w: %w", errHardwareFault, err))
	})
	defer a.h.SetFaultHandler(nil)

	g, gctx := errgroup.WithContext(ctx)
	dctx, stopDump := context.WithCancel(gctx)
	defer stopDump()
	if a.dump != nil {
		g.Go(func() error { return a.dump.Run(dctx) })
	}
	g.Go(func() error {
		defer stopDump()
		return a.ctl.RunFrames(gctx, a.cfg.Frames)
	})

	err := g.Wait()
	if err == nil {
		a.log.Info("frame loop done", "frames", a.ctl.Stats().Frames)
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	a.halter.Halt(err)
	return err
}
