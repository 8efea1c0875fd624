// Package gbi defines the graphics binary interface: the 8-byte command
// records consumed by the coprocessor, their encoders, and the memory layouts
// of matrices, vertices and viewports it reads.
//
// A record is two big-endian words. The top byte of W0 is the opcode.
package gbi

import (
	"encoding/binary"
	"fmt"
)

// CommandBytes is the size of one encoded record.
const CommandBytes = 8

// Gfx is one command record.
type Gfx struct {
	W0, W1 uint32
}

// Op returns the record opcode.
func (g Gfx) Op() Opcode { return Opcode(g.W0 >> 24) }

// PutBytes encodes g big-endian into b.
func (g Gfx) PutBytes(b []byte) {
	binary.BigEndian.PutUint32(b[0:], g.W0)
	binary.BigEndian.PutUint32(b[4:], g.W1)
}

// Decode reads one record from b.
func Decode(b []byte) Gfx {
	return Gfx{W0: binary.BigEndian.Uint32(b[0:]), W1: binary.BigEndian.Uint32(b[4:])}
}

// Opcode identifies a command.
type Opcode uint8

const (
	OpNoop         Opcode = 0x00
	OpVertex       Opcode = 0x01 // w0: n<<12 | v0, w1: vertex address
	OpTri1         Opcode = 0x05 // w0: v0<<16 | v1<<8 | v2
	OpTexture      Opcode = 0xD7 // w0: on, w1: sScale<<16 | tScale
	OpGeometryMode Opcode = 0xD9 // w0: clear mask (24 bits), w1: set mask
	OpMtx          Opcode = 0xDA // w0: MtxFlags, w1: matrix address
	OpMoveWord     Opcode = 0xDB // w0: index<<16 | arg, w1: value
	OpViewport     Opcode = 0xDC // w1: viewport address
	OpDL           Opcode = 0xDE // w0: DLBranch flag, w1: list address
	OpEndDL        Opcode = 0xDF
	OpSetOtherMode Opcode = 0xE2 // w0: OtherMode field, w1: value
	OpPipeSync     Opcode = 0xE7
	OpFullSync     Opcode = 0xE9
	OpSetScissor   Opcode = 0xED // w0: ulx<<12 | uly, w1: mode<<24 | lrx<<12 | lry
	OpLoadBlock    Opcode = 0xF3 // w0: cms<<20 | cmt<<16 | w<<8 | h, w1: texel address
	OpFillRect     Opcode = 0xF6 // w0: lrx<<12 | lry, w1: ulx<<12 | uly
	OpSetFillColor Opcode = 0xF7 // w1: packed color
	OpSetCombine   Opcode = 0xFC // w1: CombineMode
	OpSetColorImg  Opcode = 0xFF // w0: fmt<<21 | siz<<19 | width-1, w1: framebuffer address
)

var opNames = map[Opcode]string{
	OpNoop:         "NOOP",
	OpVertex:       "VTX",
	OpTri1:         "TRI1",
	OpTexture:      "TEXTURE",
	OpGeometryMode: "GEOMETRYMODE",
	OpMtx:          "MTX",
	OpMoveWord:     "MOVEWORD",
	OpViewport:     "VIEWPORT",
	OpDL:           "DL",
	OpEndDL:        "ENDDL",
	OpSetOtherMode: "SETOTHERMODE",
	OpPipeSync:     "PIPESYNC",
	OpFullSync:     "FULLSYNC",
	OpSetScissor:   "SETSCISSOR",
	OpLoadBlock:    "LOADBLOCK",
	OpFillRect:     "FILLRECT",
	OpSetFillColor: "SETFILLCOLOR",
	OpSetCombine:   "SETCOMBINE",
	OpSetColorImg:  "SETCIMG",
}

func (o Opcode) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("OP(%#02x)", uint8(o))
}

func op(o Opcode, rest uint32) uint32 { return uint32(o)<<24 | rest&0x00FFFFFF }

// Segment addressing: bits 24..27 of an address pick a segment register,
// the low 24 bits are an offset. Bits above 27 are ignored by the hardware,
// so cached (KSEG0) CPU addresses can be passed unchanged.
const (
	segmentShift = 24
	segmentMask  = 0x0F
	offsetMask   = 0x00FFFFFF
	Segments     = 16
)

// SplitAddress returns the segment number and offset of a segmented address.
func SplitAddress(addr uint32) (seg int, off uint32) {
	return int(addr>>segmentShift) & segmentMask, addr & offsetMask
}

// MoveWord indices.
const (
	MWSegment = 0x06
)

// MtxFlags select the matrix stack and operation for OpMtx.
type MtxFlags uint8

const (
	MtxModelView  MtxFlags = 0
	MtxProjection MtxFlags = 1 << 0
	MtxLoad       MtxFlags = 1 << 1
	MtxPush       MtxFlags = 1 << 2
	MtxMul        MtxFlags = 0
	MtxNoPush     MtxFlags = 0
)

// DLBranch makes OpDL jump instead of call.
const DLBranch = 1 << 16

// Geometry mode bits.
const (
	GShade         = 1 << 2
	GShadingSmooth = 1 << 21
	GCullFront     = 1 << 9
	GCullBack      = 1 << 10
	GCullBoth      = GCullFront | GCullBack
	GFog           = 1 << 16
	GTextureGenLin = 1 << 19
	GLOD           = 1 << 20
)

// OtherMode fields set by OpSetOtherMode.
type OtherMode uint8

const (
	OMCycleType OtherMode = iota + 1
	OMPipelineMode
	OMTextureLOD
	OMTextureLUT
	OMTextureDetail
	OMTexturePersp
	OMTextureFilter
	OMTextureConvert
	OMCombineKey
	OMAlphaCompare
	OMRenderMode
	OMColorDither
)

// Cycle types.
const (
	Cycle1Cycle = 0
	Cycle2Cycle = 1
	CycleCopy   = 2
	CycleFill   = 3
)

// Texture filters.
const (
	FilterPoint  = 0
	FilterBilerp = 2
)

// Render modes (only opaque surfaces are produced by this pipeline).
const (
	RMOpaSurf   = 1
	RMAAOpaSurf = 2
)

// CombineMode selects the color combiner equation.
type CombineMode uint32

const (
	// CCShade outputs the interpolated vertex color.
	CCShade CombineMode = 1
	// CCDecalRGB outputs the texel color.
	CCDecalRGB CombineMode = 2
	// CCPrimitive outputs the fill color.
	CCPrimitive CombineMode = 3
)

// Image formats for OpSetColorImg and OpLoadBlock.
const (
	ImFmtRGBA = 0
	ImSiz16b  = 2
)

// Texture clamp/wrap modes per axis.
const (
	TxWrap   = 0
	TxMirror = 1
	TxClamp  = 2
)

// Scissor interlace modes.
const (
	ScNonInterlace = 0
)

// Max vertices resident in the vertex buffer.
const MaxVertices = 32
