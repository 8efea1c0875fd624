package frame

import (
	"errors"
	"fmt"

	"framepipe/hal"
)

// ErrOutOfOrder is returned when a swapper handle is used out of sequence:
// stale (from an earlier frame), forged, or presented at the wrong stage.
var ErrOutOfOrder = errors.New("frame: swap step out of order")

// FramebufferAlign is the required framebuffer alignment.
const FramebufferAlign = 64

type stage uint8

const (
	stageIdle stage = iota
	stageTarget
	stageRendered
	stageComposited
	stageRegistered
	stageDisplayed
)

// handle is the common part of every swap-step token.
type handle struct {
	seq   uint64
	index int
	addr  uint32
}

func (h handle) Index() int    { return h.index }
func (h handle) Addr() uint32  { return h.addr }
func (h handle) Frame() uint64 { return h.seq }

// Target is this frame's build target. It is never the buffer being
// displayed.
type Target struct{ handle }

// Rendered is a target the rasterizer has finished drawing.
type Rendered struct{ handle }

// Composited is a rendered buffer carrying the overlay.
type Composited struct{ handle }

// Registered is a buffer handed to the video engine for the next retrace.
type Registered struct{ handle }

// Displayed is a registered buffer that the retrace has made current.
type Displayed struct{ handle }

// Swapper owns the two framebuffers and walks each frame through
// target, rendered, composited, registered, displayed and flip. Every step
// consumes the previous step's handle, so the registered buffer can never
// be handed out as a build target before Flip.
type Swapper struct {
	fb      [2]hal.Region
	video   hal.Video
	cache   hal.Cache
	overlay []byte

	active int
	seq    uint64
	stage  stage
}

// NewSwapper returns a swapper displaying fb[0].
func NewSwapper(fb [2]hal.Region, video hal.Video, cache hal.Cache, overlay []byte) (*Swapper, error) {
	if video == nil || cache == nil {
		return nil, errors.New("swapper: nil video or cache")
	}
	need := uint32(video.Mode().FrameBytes())
	for i, r := range fb {
		if !r.Valid() {
			return nil, fmt.Errorf("swapper: framebuffer %d not allocated", i)
		}
		if r.Addr%FramebufferAlign != 0 {
			return nil, fmt.Errorf("swapper: framebuffer %d at %#x not %d-byte aligned", i, r.Addr, FramebufferAlign)
		}
		if r.Size < need {
			return nil, fmt.Errorf("swapper: framebuffer %d is %d bytes, need %d", i, r.Size, need)
		}
	}
	if uint32(len(overlay)) > need {
		return nil, fmt.Errorf("swapper: overlay of %d bytes exceeds frame of %d", len(overlay), need)
	}
	return &Swapper{fb: fb, video: video, cache: cache, overlay: overlay}, nil
}

// Active returns the index of the displayed buffer.
func (s *Swapper) Active() int { return s.active }

// Buffer returns framebuffer i.
func (s *Swapper) Buffer(i int) hal.Region { return s.fb[i&1] }

// Overlay returns the bytes composited onto every frame.
func (s *Swapper) Overlay() []byte { return s.overlay }

// BuildTarget starts a new frame and returns the non-active buffer.
func (s *Swapper) BuildTarget() (Target, error) {
	if s.stage != stageIdle {
		return Target{}, fmt.Errorf("build target during stage %d: %w", s.stage, ErrOutOfOrder)
	}
	s.seq++
	s.stage = stageTarget
	i := s.active ^ 1
	return Target{handle{seq: s.seq, index: i, addr: s.fb[i].Addr}}, nil
}

// Rendered records that the rasterizer finished t. Call it only after the
// raster-done signal.
func (s *Swapper) Rendered(t Target) (Rendered, error) {
	if err := s.advance(t.handle, stageTarget, stageRendered); err != nil {
		return Rendered{}, err
	}
	return Rendered{t.handle}, nil
}

// Composite copies the overlay over the top rows of the rendered buffer and
// writes its lines back, so the overlay is in RAM before the buffer can be
// registered.
func (s *Swapper) Composite(r Rendered) (Composited, error) {
	if err := s.advance(r.handle, stageRendered, stageComposited); err != nil {
		return Composited{}, err
	}
	if len(s.overlay) > 0 {
		fb := s.fb[r.index]
		fb.Store(0, s.overlay)
		s.cache.Writeback(fb.Addr, uint32(len(s.overlay)))
	}
	return Composited{r.handle}, nil
}

// Register hands the composited buffer to the video engine for the next
// retrace, then writes the whole data cache back.
func (s *Swapper) Register(c Composited) (Registered, error) {
	if err := s.check(c.handle, stageComposited); err != nil {
		return Registered{}, err
	}
	if err := s.video.SwapBuffer(c.addr, hal.PresentNextRetrace); err != nil {
		return Registered{}, fmt.Errorf("register: %w", err)
	}
	s.cache.WritebackAll()
	s.stage = stageRegistered
	return Registered{c.handle}, nil
}

// Displayed records that the retrace made r current. Call it only after
// the retrace signal.
func (s *Swapper) Displayed(r Registered) (Displayed, error) {
	if err := s.advance(r.handle, stageRegistered, stageDisplayed); err != nil {
		return Displayed{}, err
	}
	return Displayed{r.handle}, nil
}

// Flip makes the displayed buffer active, ending the frame.
func (s *Swapper) Flip(d Displayed) error {
	if err := s.advance(d.handle, stageDisplayed, stageIdle); err != nil {
		return err
	}
	s.active = d.index
	return nil
}

func (s *Swapper) check(h handle, want stage) error {
	if s.stage != want || h.seq != s.seq || h.index != s.active^1 || h.addr != s.fb[h.index&1].Addr {
		return fmt.Errorf("frame %d index %d at stage %d (current frame %d stage %d): %w",
			h.seq, h.index, want, s.seq, s.stage, ErrOutOfOrder)
	}
	return nil
}

func (s *Swapper) advance(h handle, from, to stage) error {
	if err := s.check(h, from); err != nil {
		return err
	}
	s.stage = to
	return nil
}
