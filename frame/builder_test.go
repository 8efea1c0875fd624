package frame

import (
	"errors"
	"testing"

	"framepipe/gfx/gbi"
)

func listOps(t *testing.T, r *rig) []gbi.Opcode {
	t.Helper()
	l := r.builder.List()
	buf := make([]byte, l.SizeBytes())
	r.mem.Load(l.Addr(), buf)
	ops := make([]gbi.Opcode, 0, l.Len())
	for i := 0; i < len(buf); i += gbi.CommandBytes {
		ops = append(ops, gbi.Decode(buf[i:]).Op())
	}
	return ops
}

func meshOnly(r *rig, n int) *Scene {
	s := &Scene{Blocks: make([]DrawBlock, n)}
	for i := range s.Blocks {
		s.Blocks[i].Mesh = r.mesh[i%2]
	}
	return s
}

func TestBuildProtocolOrder(t *testing.T) {
	r := newRig(t, nil)
	s, _ := r.demoScene().NextScene()
	target, err := r.swap.BuildTarget()
	if err != nil {
		t.Fatalf("BuildTarget: %v", err)
	}
	if err := r.builder.Build(s, target); err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []gbi.Opcode{
		gbi.OpMoveWord, gbi.OpDL, gbi.OpDL,
		gbi.OpSetOtherMode, gbi.OpSetColorImg, gbi.OpPipeSync, gbi.OpSetFillColor, gbi.OpFillRect,
		gbi.OpMtx, gbi.OpMtx, gbi.OpDL,
		gbi.OpMtx, gbi.OpTexture, gbi.OpLoadBlock, gbi.OpDL,
		gbi.OpFullSync, gbi.OpEndDL,
	}
	got := listOps(t, r)
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op[%d] = %v, want %v (list %v)", i, got[i], want[i], got)
		}
	}
	if n := Required(s); n != len(want) {
		t.Fatalf("Required = %d, want %d", n, len(want))
	}
}

func TestBuildTerminatesEveryFittingScene(t *testing.T) {
	r := newRig(t, nil)
	target, _ := r.swap.BuildTarget()
	most := gbi.MaxCommands - fixedCommands
	for n := 0; n <= most; n++ {
		s := meshOnly(r, n)
		if err := r.builder.Build(s, target); err != nil {
			t.Fatalf("Build(%d blocks): %v", n, err)
		}
		l := r.builder.List()
		if l.Len() != Required(s) {
			t.Fatalf("Len(%d blocks) = %d, want %d", n, l.Len(), Required(s))
		}
		if !l.Terminated() {
			t.Fatalf("%d blocks: last record %v, want end", n, l.Last().Op())
		}
		if l.Len() > gbi.MaxCommands {
			t.Fatalf("%d blocks: %d records exceed capacity", n, l.Len())
		}
	}
}

func TestBuildRejectsOversizedSceneUntouched(t *testing.T) {
	r := newRig(t, nil)
	target, _ := r.swap.BuildTarget()
	if err := r.builder.Build(meshOnly(r, 1), target); err != nil {
		t.Fatalf("Build: %v", err)
	}
	before := listOps(t, r)

	big := meshOnly(r, gbi.MaxCommands-fixedCommands+1)
	err := r.builder.Build(big, target)
	if !errors.Is(err, gbi.ErrListFull) {
		t.Fatalf("Build(oversized) = %v, want ErrListFull", err)
	}
	after := listOps(t, r)
	if len(after) != len(before) {
		t.Fatalf("list changed from %d to %d records", len(before), len(after))
	}
}

func TestBuildRejectsMissingMeshAndTarget(t *testing.T) {
	r := newRig(t, nil)
	target, _ := r.swap.BuildTarget()
	if err := r.builder.Build(&Scene{Blocks: []DrawBlock{{}}}, target); err == nil {
		t.Fatalf("Build(no mesh) = nil, want error")
	}
	if err := r.builder.Build(meshOnly(r, 1), Target{}); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("Build(zero target) = %v, want ErrOutOfOrder", err)
	}
	if err := r.builder.Build(nil, target); err == nil {
		t.Fatalf("Build(nil) = nil, want error")
	}
}

func TestBuildClearsTarget(t *testing.T) {
	r := newRig(t, nil)
	target, _ := r.swap.BuildTarget()
	if err := r.builder.Build(meshOnly(r, 0), target); err != nil {
		t.Fatalf("Build: %v", err)
	}
	l := r.builder.List()
	buf := make([]byte, l.SizeBytes())
	r.mem.Load(l.Addr(), buf)
	img := gbi.Decode(buf[4*gbi.CommandBytes:])
	if img.Op() != gbi.OpSetColorImg || img.W1 != target.Addr() {
		t.Fatalf("color image = %v %#x, want %#x", img.Op(), img.W1, target.Addr())
	}
}
