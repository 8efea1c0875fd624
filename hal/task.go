package hal

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Span is a device-visible address range.
type Span struct {
	Addr uint32
	Size uint32
}

func (s Span) Empty() bool { return s.Size == 0 }

// TaskType selects the microcode class run by the coprocessor.
type TaskType uint8

const (
	TaskGfx TaskType = iota + 1
	TaskAudio
)

// TaskFlags modify task start behaviour.
type TaskFlags uint8

const (
	// TaskDPWait stalls the task until the rasterizer has drained prior work.
	TaskDPWait TaskFlags = 1 << iota
	TaskYielded
)

// Task is the descriptor handed to Coprocessor.StartTask.
//
// Data points at the command list; everything else is fixed per program.
type Task struct {
	Type  TaskType
	Flags TaskFlags

	UcodeBoot  Span
	Ucode      Span
	UcodeData  Span
	DramStack  Span
	OutputBuff Span
	Data       Span
	YieldData  Span
}

// MinDramStackBytes is the smallest scratch stack a graphics task accepts.
const MinDramStackBytes = 1024

// A microcode is loaded as three images: a boot stub, the text segment
// and the data segment. Each starts with a magic so the coprocessor can
// reject garbage before executing it.
const (
	ucodeBootMagic = "RSPB"
	ucodeMagic     = "RSPU"
	ucodeDataMagic = "RSPD"

	ucodeHeaderSize = 32
	ucodeNameOffset = 6
	ucodeBootSize   = 16
	ucodeDataSize   = 16
)

// MaxMicrocodeName is the longest name a microcode header holds.
const MaxMicrocodeName = ucodeHeaderSize - ucodeNameOffset

// Microcode identifies a loaded microcode image.
type Microcode struct {
	Name    string
	Version uint16
}

// MicrocodeImage is the RAM content of a microcode.
type MicrocodeImage struct {
	Boot []byte
	Text []byte
	Data []byte
}

// EncodeMicrocode returns the images for ucode.
func EncodeMicrocode(uc Microcode) (MicrocodeImage, error) {
	if len(uc.Name) > MaxMicrocodeName {
		return MicrocodeImage{}, fmt.Errorf("microcode name %q longer than %d bytes: %w", uc.Name, MaxMicrocodeName, ErrBadMicrocode)
	}
	img := MicrocodeImage{
		Boot: make([]byte, ucodeBootSize),
		Text: make([]byte, ucodeHeaderSize),
		Data: make([]byte, ucodeDataSize),
	}
	copy(img.Boot, ucodeBootMagic)
	copy(img.Text, ucodeMagic)
	binary.BigEndian.PutUint16(img.Text[4:], uc.Version)
	copy(img.Text[ucodeNameOffset:], uc.Name)
	copy(img.Data, ucodeDataMagic)
	binary.BigEndian.PutUint16(img.Data[4:], uc.Version)
	return img, nil
}

func decodeMicrocode(b []byte) (Microcode, error) {
	if len(b) < ucodeHeaderSize || string(b[:4]) != ucodeMagic {
		return Microcode{}, ErrBadMicrocode
	}
	name := b[ucodeNameOffset:ucodeHeaderSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Microcode{Name: string(name), Version: binary.BigEndian.Uint16(b[4:])}, nil
}

// checkMicrocodeData verifies that data is the data segment of uc.
func checkMicrocodeData(uc Microcode, data []byte) error {
	if len(data) < ucodeDataSize || string(data[:4]) != ucodeDataMagic {
		return fmt.Errorf("microcode data: %w", ErrBadMicrocode)
	}
	if v := binary.BigEndian.Uint16(data[4:]); v != uc.Version {
		return fmt.Errorf("microcode data v%d for %s v%d: %w", v, uc.Name, uc.Version, ErrBadMicrocode)
	}
	return nil
}

// F3DXBus is the graphics microcode: RSP output goes straight to the RDP.
var F3DXBus = Microcode{Name: "F3DEX2.xbus", Version: 2}

func (t *Task) validate() error {
	if t == nil {
		return fmt.Errorf("nil task")
	}
	if t.Type != TaskGfx {
		return fmt.Errorf("task type %d: %w", t.Type, ErrNotImplemented)
	}
	if t.UcodeBoot.Size < ucodeBootSize || t.Ucode.Size < ucodeHeaderSize || t.UcodeData.Size < ucodeDataSize {
		return fmt.Errorf("microcode spans boot %d text %d data %d bytes: %w",
			t.UcodeBoot.Size, t.Ucode.Size, t.UcodeData.Size, ErrBadMicrocode)
	}
	if t.DramStack.Size < MinDramStackBytes {
		return fmt.Errorf("dram stack %d bytes, need %d", t.DramStack.Size, MinDramStackBytes)
	}
	if t.Data.Empty() || t.Data.Size%8 != 0 {
		return fmt.Errorf("task data size %d is not a whole number of commands", t.Data.Size)
	}
	return nil
}
