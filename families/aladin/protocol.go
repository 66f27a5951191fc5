// Package aladin implements the Uwatec Aladin / Smart family's passive-dump
// protocol, grounded on src/uwatec_aladin.c: uwatec_aladin_device_dump.
// Unlike a command/response protocol, the host never issues a command —
// the device streams its memory unprompted (typically triggered by a
// magnet swipe) and the host only needs to recognize the start of the
// stream and read it out.
package aladin

// sizeMemory is the fixed length of one Aladin memory dump (SZ_MEMORY in
// uwatec_aladin.c).
const sizeMemory = 2048

// header is the length of the abstract "already consumed" prefix the
// checksum and clock offsets are computed relative to — the four preamble
// bytes, per uwatec_aladin.c's HEADER macro.
const header = 4

// preamble is the fixed four-byte sequence that starts every dump: three
// 0x55 bytes followed by one 0x00 byte (pre bit-reversal, as read off the
// wire). A mismatch at any position resets the scan to byte 0.
var preamble = [4]byte{0x55, 0x55, 0x55, 0x00}

// answerSize is the total buffer length: the memory dump plus a trailing
// 16-bit additive checksum.
const answerSize = sizeMemory + 2

// devtimeOffset is the offset into the post-reversal answer buffer of the
// device's 4-byte big-endian free-running clock snapshot embedded in the
// dump itself (HEADER + 0x7f8 in uwatec_aladin.c).
const devtimeOffset = header + 0x7f8

// Profile ring bounds within the 2048-byte memory dump (RB_PROFILE_BEGIN /
// RB_PROFILE_END in uwatec_aladin.c).
const (
	profileBegin = 0x000
	profileEnd   = 0x600
)
