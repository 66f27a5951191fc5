// Package suunto implements the Suunto D9/D9tx/DX/Vyper2 family's framed
// command protocol: a length-framed command/echo/answer exchange with RTS
// toggled between the write and read halves of each transaction, and a
// running-XOR trailer checksum.
//
// Grounded precisely on src/suunto_d9.c for: the open sequence (9600 8N1,
// 3000ms timeout, DTR high, 100ms settle, flush both queues), the
// multi-baudrate autodetect loop (try 9600 then 115200, starting from a
// model-keyed hint), the per-model memory layouts (size, fingerprint
// offset, serial offset, profile ring bounds), and the packet-level
// transact contract itself (suunto_d9_device_packet). The pack's reference
// tree has no suunto_common2.c — the layer that actually implements
// version/read/write/dump/foreach on top of that packet contract — so the
// session's memory-read framing and dive-splitting scheme below are this
// implementation's own design; see DESIGN.md.
package suunto

// Model numbers, as returned in the version response's first byte.
// Grounded on src/suunto_d9.c's D4i/D6i/D9tx/DX constants.
const (
	ModelD4i  = 0x19
	ModelD6i  = 0x1A
	ModelD9tx = 0x1B
	ModelDX   = 0x1C
)

// Layout describes one model family's flat memory map: total size, the
// offset of the fingerprint region, the offset of the serial number, and
// the profile ring's address bounds. Grounded verbatim on src/suunto_d9.c's
// suunto_d9_layout / suunto_d9tx_layout / suunto_dx_layout tables.
type Layout struct {
	MemorySize    uint32
	Fingerprint   uint32
	Serial        uint32
	ProfileBegin  uint32
	ProfileEnd    uint32
}

var (
	layoutD9   = Layout{MemorySize: 0x8000, Fingerprint: 0x0011, Serial: 0x0023, ProfileBegin: 0x019A, ProfileEnd: 0x7FFE}
	layoutD9tx = Layout{MemorySize: 0x10000, Fingerprint: 0x0013, Serial: 0x0024, ProfileBegin: 0x019A, ProfileEnd: 0xEBF0}
	layoutDX   = Layout{MemorySize: 0x10000, Fingerprint: 0x0017, Serial: 0x0024, ProfileBegin: 0x019A, ProfileEnd: 0xEBF0}
)

// layoutForModel selects a memory layout the way src/suunto_d9.c's
// suunto_d9_device_open does after the version handshake resolves the
// model byte.
func layoutForModel(model byte) Layout {
	switch model {
	case ModelD4i, ModelD6i, ModelD9tx:
		return layoutD9tx
	case ModelDX:
		return layoutDX
	default:
		return layoutD9
	}
}

// autodetectBaudrates and autodetectHint implement
// src/suunto_d9.c: suunto_d9_device_autodetect's circular baudrate probe:
// try 9600 then 115200, but start from index 1 (115200) when the caller's
// model hint names one of the newer transmitter-equipped models.
var autodetectBaudrates = [2]int{9600, 115200}

func autodetectHint(model byte) int {
	switch model {
	case ModelD4i, ModelD6i, ModelD9tx, ModelDX:
		return 1
	default:
		return 0
	}
}

// Command bytes. src/suunto_d9.c only shows the generic packet transport
// (suunto_d9_device_packet); the specific opcodes below belong to the
// missing suunto_common2 layer and are this implementation's own design,
// chosen to be distinguishable and documented rather than transcribed from
// a specific source file.
const (
	cmdVersion        byte = 0x0F
	cmdReadMemory     byte = 0x05
	cmdWriteMemory    byte = 0x06
	cmdResetMaxDepth  byte = 0x20
)

// versionSize is the length of the version command's answer payload: one
// model byte plus a small hardware/firmware block. Exact internal layout
// beyond the model byte is undocumented in the pack; only data[0] (model)
// is interpreted here.
const versionSize = 4

// maxReadChunk is the largest single READ_MEMORY payload this
// implementation requests per transaction, chosen conservatively for a
// 9600-baud link.
const maxReadChunk = 0x78
