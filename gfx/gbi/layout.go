package gbi

import "encoding/binary"

// Mtx is a 4x4 matrix in s15.16 fixed point, column-major (m[col*4+row]),
// stored as 16 big-endian words.
type Mtx [16]int32

const MtxBytes = 64

const fixedOne = 1 << 16

// MtxFromFloat converts a column-major float matrix.
func MtxFromFloat(m [16]float32) Mtx {
	var out Mtx
	for i, v := range m {
		out[i] = int32(v * fixedOne)
	}
	return out
}

// Float returns the matrix as float32 values.
func (m Mtx) Float() [16]float32 {
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v) / fixedOne
	}
	return out
}

func (m Mtx) PutBytes(b []byte) {
	for i, v := range m {
		binary.BigEndian.PutUint32(b[i*4:], uint32(v))
	}
}

func DecodeMtx(b []byte) Mtx {
	var m Mtx
	for i := range m {
		m[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
	}
	return m
}

// Vtx is a vertex as read by OpVertex.
type Vtx struct {
	X, Y, Z    int16
	Flag       uint16
	S, T       int16 // s10.5 texture coordinates
	R, G, B, A uint8
}

const VtxBytes = 16

func (v Vtx) PutBytes(b []byte) {
	binary.BigEndian.PutUint16(b[0:], uint16(v.X))
	binary.BigEndian.PutUint16(b[2:], uint16(v.Y))
	binary.BigEndian.PutUint16(b[4:], uint16(v.Z))
	binary.BigEndian.PutUint16(b[6:], v.Flag)
	binary.BigEndian.PutUint16(b[8:], uint16(v.S))
	binary.BigEndian.PutUint16(b[10:], uint16(v.T))
	b[12], b[13], b[14], b[15] = v.R, v.G, v.B, v.A
}

func DecodeVtx(b []byte) Vtx {
	return Vtx{
		X:    int16(binary.BigEndian.Uint16(b[0:])),
		Y:    int16(binary.BigEndian.Uint16(b[2:])),
		Z:    int16(binary.BigEndian.Uint16(b[4:])),
		Flag: binary.BigEndian.Uint16(b[6:]),
		S:    int16(binary.BigEndian.Uint16(b[8:])),
		T:    int16(binary.BigEndian.Uint16(b[10:])),
		R:    b[12], G: b[13], B: b[14], A: b[15],
	}
}

// Vp is a viewport in quarter pixels: screen = ndc*Scale/4 + Trans/4.
type Vp struct {
	Scale [4]int16
	Trans [4]int16
}

const VpBytes = 16

// ViewportFor returns the viewport covering a w x h screen.
func ViewportFor(w, h int, maxZ int16) Vp {
	return Vp{
		Scale: [4]int16{int16(w * 2), int16(h * 2), maxZ / 2, 0},
		Trans: [4]int16{int16(w * 2), int16(h * 2), maxZ / 2, 0},
	}
}

// MaxZ is the largest depth value.
const MaxZ = 0x3FF

func (v Vp) PutBytes(b []byte) {
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint16(b[i*2:], uint16(v.Scale[i]))
		binary.BigEndian.PutUint16(b[8+i*2:], uint16(v.Trans[i]))
	}
}

func DecodeVp(b []byte) Vp {
	var v Vp
	for i := 0; i < 4; i++ {
		v.Scale[i] = int16(binary.BigEndian.Uint16(b[i*2:]))
		v.Trans[i] = int16(binary.BigEndian.Uint16(b[8+i*2:]))
	}
	return v
}
