package gbi

// Encoders mirror the static ("gs") macros: each returns one record.

func SPSegment(seg int, base uint32) Gfx {
	return Gfx{W0: op(OpMoveWord, MWSegment<<16|uint32(seg&segmentMask)*4), W1: base}
}

func SPDisplayList(addr uint32) Gfx { return Gfx{W0: op(OpDL, 0), W1: addr} }

func SPBranchList(addr uint32) Gfx { return Gfx{W0: op(OpDL, DLBranch), W1: addr} }

func SPEndDisplayList() Gfx { return Gfx{W0: op(OpEndDL, 0)} }

func SPViewport(addr uint32) Gfx { return Gfx{W0: op(OpViewport, 0), W1: addr} }

func SPMatrix(addr uint32, flags MtxFlags) Gfx {
	return Gfx{W0: op(OpMtx, uint32(flags)), W1: addr}
}

func SPVertex(addr uint32, n, v0 int) Gfx {
	return Gfx{W0: op(OpVertex, uint32(n&0xFFF)<<12|uint32(v0&0xFFF)), W1: addr}
}

func SP1Triangle(v0, v1, v2 int) Gfx {
	return Gfx{W0: op(OpTri1, uint32(v0&0xFF)<<16|uint32(v1&0xFF)<<8|uint32(v2&0xFF))}
}

// SPTexture turns texturing on or off; scales are 0.16 fixed point.
func SPTexture(sScale, tScale uint16, on bool) Gfx {
	var w0 uint32
	if on {
		w0 = 1
	}
	return Gfx{W0: op(OpTexture, w0), W1: uint32(sScale)<<16 | uint32(tScale)}
}

func SPClearGeometryMode(mask uint32) Gfx {
	return Gfx{W0: op(OpGeometryMode, mask), W1: 0}
}

func SPSetGeometryMode(mask uint32) Gfx {
	return Gfx{W0: op(OpGeometryMode, 0), W1: mask}
}

func DPSetOtherMode(field OtherMode, v uint32) Gfx {
	return Gfx{W0: op(OpSetOtherMode, uint32(field)<<8), W1: v}
}

func DPSetCycleType(v uint32) Gfx     { return DPSetOtherMode(OMCycleType, v) }
func DPSetTextureFilter(v uint32) Gfx { return DPSetOtherMode(OMTextureFilter, v) }
func DPSetRenderMode(v uint32) Gfx    { return DPSetOtherMode(OMRenderMode, v) }

func DPSetCombineMode(mode CombineMode) Gfx {
	return Gfx{W0: op(OpSetCombine, 0), W1: uint32(mode)}
}

func DPSetScissor(mode, ulx, uly, lrx, lry int) Gfx {
	return Gfx{
		W0: op(OpSetScissor, uint32(ulx&0xFFF)<<12|uint32(uly&0xFFF)),
		W1: uint32(mode&0xFF)<<24 | uint32(lrx&0xFFF)<<12 | uint32(lry&0xFFF),
	}
}

func DPSetColorImage(fmt, siz, width int, addr uint32) Gfx {
	return Gfx{W0: op(OpSetColorImg, uint32(fmt&7)<<21|uint32(siz&3)<<19|uint32(width-1)&0xFFF), W1: addr}
}

func DPSetFillColor(c uint32) Gfx { return Gfx{W0: op(OpSetFillColor, 0), W1: c} }

// DPFillRectangle fills the inclusive rectangle in fill cycle mode.
func DPFillRectangle(ulx, uly, lrx, lry int) Gfx {
	return Gfx{
		W0: op(OpFillRect, uint32(lrx&0xFFF)<<12|uint32(lry&0xFFF)),
		W1: uint32(ulx&0xFFF)<<12 | uint32(uly&0xFFF),
	}
}

// DPLoadTextureBlock loads a w x h RGBA16 texture into texture memory.
func DPLoadTextureBlock(addr uint32, w, h, cms, cmt int) Gfx {
	return Gfx{
		W0: op(OpLoadBlock, uint32(cms&0xF)<<20|uint32(cmt&0xF)<<16|uint32(w&0xFF)<<8|uint32(h&0xFF)),
		W1: addr,
	}
}

func DPPipeSync() Gfx { return Gfx{W0: op(OpPipeSync, 0)} }

// DPFullSync raises the rasterizer-done interrupt once all prior commands retire.
func DPFullSync() Gfx { return Gfx{W0: op(OpFullSync, 0)} }

// PackRGBA5551 packs an 8-bit-per-channel color into 16 bits.
func PackRGBA5551(r, g, b uint8, a bool) uint16 {
	p := uint16(r>>3)<<11 | uint16(g>>3)<<6 | uint16(b>>3)<<1
	if a {
		p |= 1
	}
	return p
}

// FillColor16 replicates a 16-bit pixel into the 32-bit fill register.
func FillColor16(p uint16) uint32 { return uint32(p)<<16 | uint32(p) }

// Encode serializes a static display list.
func Encode(cmds []Gfx) []byte {
	b := make([]byte, len(cmds)*CommandBytes)
	for i, c := range cmds {
		c.PutBytes(b[i*CommandBytes:])
	}
	return b
}
