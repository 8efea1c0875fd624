// Package assets provides the demo's texture and overlay content.
package assets

import (
	"encoding/binary"

	"framepipe/gfx/gbi"
)

const (
	brickRows   = 4
	brickMortar = 1
)

// Brick returns a w x h RGBA5551 brick texture: four courses, every other
// one offset by half a brick, with one-texel mortar joints.
func Brick(w, h int) []uint16 {
	if w <= 0 || h <= 0 {
		return nil
	}
	courseH := h / brickRows
	if courseH < 2 {
		courseH = 2
	}
	brickW := w / 2
	if brickW < 2 {
		brickW = 2
	}

	mortar := gbi.PackRGBA5551(0xB0, 0xA8, 0x98, true)
	tex := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		course := y / courseH
		offset := 0
		if course%2 == 1 {
			offset = brickW / 2
		}
		for x := 0; x < w; x++ {
			bx := (x + offset) % brickW
			if y%courseH < brickMortar || bx < brickMortar {
				tex[y*w+x] = mortar
				continue
			}
			// A little per-brick and per-texel variation.
			id := course*7 + (x+offset)/brickW*13
			n := uint8((id*37 + x*5 + y*11) & 0x1F)
			tex[y*w+x] = gbi.PackRGBA5551(0x90+n, 0x30+n/2, 0x20+n/4, true)
		}
	}
	return tex
}

// TexelBytes returns texels as big-endian bytes for RAM.
func TexelBytes(texels []uint16) []byte {
	b := make([]byte, len(texels)*2)
	for i, t := range texels {
		binary.BigEndian.PutUint16(b[i*2:], t)
	}
	return b
}
