// Package quarkgl is the fixed-function rasterizer behind the simulated
// coprocessor.
//
// Pipeline (fixed):
//
//	Vertex load → Transform → Viewport → Scissor → Rasterization → Color image.
//
// Geometry arrives already transformed by the caller's matrices; the
// rasterizer draws into a caller-provided Target and does not allocate in the
// hot path. All math is float32; fixed-point matrices are converted at the
// memory boundary by the gbi package.
package quarkgl
