package frame

import (
	"errors"
	"fmt"

	"framepipe/gfx/gbi"
	"framepipe/hal"
)

var errNilScene = errors.New("nil scene")

// fixedCommands is the number of records every frame carries: segment
// setup, the two reset calls, the five-record clear block, the full sync
// and the terminator.
const fixedCommands = 3 + clearCommands + 2

const clearCommands = 5

// BuilderConfig holds the static inputs of every frame.
type BuilderConfig struct {
	// RDPInit and RSPInit are the addresses of the static reset lists.
	RDPInit uint32
	RSPInit uint32
	// Mode gives the width of the color image.
	Mode hal.VideoMode
	// ClearColor is the RGBA5551 fill for the clear block.
	ClearColor uint16
}

// Builder writes one frame's command list in protocol order.
type Builder struct {
	list *gbi.CommandList
	cfg  BuilderConfig

	scratch [gbi.MaxCommands]gbi.Gfx
}

// NewBuilder returns a builder writing into list. The reset lists and the
// mode must be set.
func NewBuilder(list *gbi.CommandList, cfg BuilderConfig) (*Builder, error) {
	if list == nil {
		return nil, errors.New("builder: nil command list")
	}
	if cfg.RDPInit == 0 || cfg.RSPInit == 0 {
		return nil, errors.New("builder: missing reset display lists")
	}
	if cfg.Mode.Width <= 0 {
		return nil, fmt.Errorf("builder: invalid width %d", cfg.Mode.Width)
	}
	return &Builder{list: list, cfg: cfg}, nil
}

// List returns the command list the builder writes into.
func (b *Builder) List() *gbi.CommandList { return b.list }

// Required returns the number of records s needs.
func Required(s *Scene) int {
	n := fixedCommands
	if s == nil {
		return n
	}
	for i := range s.Blocks {
		n += blockCommands(&s.Blocks[i])
	}
	return n
}

func blockCommands(blk *DrawBlock) int {
	n := 1
	if blk.Projection != 0 {
		n++
	}
	if blk.ModelView != 0 {
		n++
	}
	if blk.Texture != nil {
		n += 2
	}
	return n
}

// Build resets the list and appends the frame for s rendering into t.
//
// The record count is checked before anything is written: a scene that
// does not fit returns an error wrapping gbi.ErrListFull and leaves the
// list as it was.
func (b *Builder) Build(s *Scene, t Target) error {
	if s == nil {
		return errNilScene
	}
	if t.addr == 0 {
		return fmt.Errorf("build: %w", ErrOutOfOrder)
	}
	if n := Required(s); n > gbi.MaxCommands {
		return fmt.Errorf("scene with %d blocks needs %d commands, capacity %d: %w",
			len(s.Blocks), n, gbi.MaxCommands, gbi.ErrListFull)
	}
	for i := range s.Blocks {
		if s.Blocks[i].Mesh == 0 {
			return fmt.Errorf("draw block %d: no mesh list", i)
		}
	}

	cmds := b.scratch[:0]
	cmds = append(cmds,
		gbi.SPSegment(0, 0),
		gbi.SPDisplayList(b.cfg.RDPInit),
		gbi.SPDisplayList(b.cfg.RSPInit),

		gbi.DPSetCycleType(gbi.CycleFill),
		gbi.DPSetColorImage(gbi.ImFmtRGBA, gbi.ImSiz16b, b.cfg.Mode.Width, t.addr),
		gbi.DPPipeSync(),
		gbi.DPSetFillColor(gbi.FillColor16(b.cfg.ClearColor)),
		gbi.DPFillRectangle(0, 0, b.cfg.Mode.Width-1, b.cfg.Mode.Height-1),
	)
	for i := range s.Blocks {
		blk := &s.Blocks[i]
		if blk.Projection != 0 {
			cmds = append(cmds, gbi.SPMatrix(blk.Projection, gbi.MtxProjection|gbi.MtxLoad|gbi.MtxNoPush))
		}
		if blk.ModelView != 0 {
			cmds = append(cmds, gbi.SPMatrix(blk.ModelView, gbi.MtxModelView|gbi.MtxLoad|gbi.MtxNoPush))
		}
		if tx := blk.Texture; tx != nil {
			cmds = append(cmds,
				gbi.SPTexture(tx.SScale, tx.TScale, true),
				gbi.DPLoadTextureBlock(tx.Addr, tx.Width, tx.Height, tx.WrapS, tx.WrapT),
			)
		}
		cmds = append(cmds, gbi.SPDisplayList(blk.Mesh))
	}
	cmds = append(cmds, gbi.DPFullSync(), gbi.SPEndDisplayList())

	if err := b.list.Reset(); err != nil {
		return err
	}
	return b.list.Append(cmds...)
}
