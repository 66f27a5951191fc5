package aladin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divecomputer/families/aladin"
	"divecomputer/pkg/bytesutil"
	"divecomputer/pkg/checksum"
	"divecomputer/pkg/core"
)

const (
	testHeader     = 4
	testProfileEnd = 0x600
)

// buildDump assembles a 2048-byte in-memory image (the decoded, post
// bit-reversal logical view Session.Foreach operates on) describing exactly
// one dive, then bit-reverses it to produce the raw wire bytes a device
// would actually transmit — bit reversal is its own inverse, so reversing
// the desired logical image once yields the bytes that decode back to it.
func buildDump(t *testing.T) []byte {
	t.Helper()

	final := make([]byte, 2050)

	// Preamble: the logical image always begins with the bit-reversed
	// preamble bytes, since the raw wire preamble is never itself
	// reversed again after being read.
	pre := []byte{0x55, 0x55, 0x55, 0x00}
	bytesutil.ReverseBits(pre)
	copy(final[0:4], pre)

	// Single profile byte-run: marker at absolute profile address 0,
	// four profile bytes at addresses 1-4, eop pointing at address 5.
	final[testHeader+0] = 0xFF
	final[testHeader+1] = 0x0A  // +10dm
	final[testHeader+2] = 0x0A  // +10dm
	final[testHeader+3] = 0xF6  // -10dm (int8)
	final[testHeader+4] = 0x00  // +0dm
	final[testHeader+0x7f6] = 4 // eop base
	final[testHeader+0x7f7] = 0

	// Logbook: one dive, eol encoding -> eol=0 -> entry at profileEnd.
	final[testHeader+0x7bc] = 7 // model
	copy(final[testHeader+0x7ed:testHeader+0x7ed+3], []byte{0x01, 0x02, 0x03})
	final[testHeader+0x7f2] = 0x00
	final[testHeader+0x7f2+1] = 0x01 // ndives = 1 (big-endian)
	final[testHeader+0x7f4] = 1      // eol encoding

	entry := final[testHeader+testProfileEnd : testHeader+testProfileEnd+12]
	entry[0] = 0x15 // day BCD 15
	entry[1] = 0x06 // month BCD 6
	entry[2] = 0x24 // year BCD 24 -> 2024
	entry[3] = 0x10 // hour BCD 10
	entry[4] = 0x30 // minute BCD 30
	entry[5] = 0x00
	entry[6] = 0x1E
	entry[7] = 0x01 // timestamp bytes (pre reverseBytes)
	entry[8] = 0x00
	entry[9] = 0x00
	entry[10] = 0x00
	entry[11] = 0x00

	// Device clock snapshot (big-endian).
	final[2044] = 0x11
	final[2045] = 0x22
	final[2046] = 0x33
	final[2047] = 0x44

	crc := checksum.AddU16LE(final[:2048])
	bytesutil.PutU16LE(final[2048:2050], crc)

	wire := append([]byte(nil), final...)
	bytesutil.ReverseBits(wire)
	return wire
}

func TestForeachDecodesOneDive(t *testing.T) {
	wire := buildDump(t)
	ch := newFakeChannel(wire)

	s, status := aladin.Open(ch, aladin.Params{})
	require.True(t, status.Succeeded())

	var blobs []core.DiveBlob
	var fps []core.Fingerprint
	status = s.Foreach(core.NewContext(context.Background()), func(blob core.DiveBlob, fp core.Fingerprint) bool {
		blobs = append(blobs, blob)
		fps = append(fps, fp)
		return true
	})

	require.True(t, status.Succeeded())
	require.Len(t, blobs, 1)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x01}, []byte(fps[0]))

	blob := blobs[0]
	require.Len(t, blob, 18+4)
	assert.Equal(t, byte(7), blob[3])
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, blob[0:3])
}

func TestForeachCancellationBeforeDump(t *testing.T) {
	ch := newFakeChannel(nil)
	s, status := aladin.Open(ch, aladin.Params{})
	require.True(t, status.Succeeded())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status = s.Foreach(core.NewContext(ctx), func(core.DiveBlob, core.Fingerprint) bool { return true })
	assert.Equal(t, core.StatusCancelled, status)
}

func TestForeachBadChecksumIsProtocolError(t *testing.T) {
	wire := buildDump(t)
	wire[len(wire)-1] ^= 0x01 // corrupt one checksum bit on the wire
	ch := newFakeChannel(wire)

	s, status := aladin.Open(ch, aladin.Params{})
	require.True(t, status.Succeeded())

	status = s.Foreach(core.NewContext(context.Background()), func(core.DiveBlob, core.Fingerprint) bool { return true })
	assert.Equal(t, core.StatusProtocol, status)
}

// buildMultiDiveDump assembles a 2048-byte logical image (then bit-reverses
// it to wire form) describing two dives: a newer one (timestamp 2) with a
// 4-byte profile run at ring address 0, and an older one (timestamp 1) with
// a 5-byte profile run at ring address 1530 — chosen so neither profile
// copy needs to wrap across the ring boundary, keeping the scenario
// readable while still exercising a real multi-slot logbook walk.
func buildMultiDiveDump(t *testing.T) []byte {
	t.Helper()

	final := make([]byte, 2050)

	pre := []byte{0x55, 0x55, 0x55, 0x00}
	bytesutil.ReverseBits(pre)
	copy(final[0:4], pre)

	// Newer dive's profile run: marker at 0, four bytes at 1-4.
	final[testHeader+0] = 0xFF
	final[testHeader+1] = 0x0A
	final[testHeader+2] = 0x0A
	final[testHeader+3] = 0xF6
	final[testHeader+4] = 0x00

	// Older dive's profile run: marker at 1530, five bytes at 1531-1535.
	final[testHeader+1530] = 0xFF
	final[testHeader+1531] = 0x01
	final[testHeader+1532] = 0x02
	final[testHeader+1533] = 0x03
	final[testHeader+1534] = 0x04
	final[testHeader+1535] = 0x05

	final[testHeader+0x7f6] = 4 // eop base
	final[testHeader+0x7f7] = 0

	final[testHeader+0x7bc] = 7 // model
	copy(final[testHeader+0x7ed:testHeader+0x7ed+3], []byte{0x01, 0x02, 0x03})
	final[testHeader+0x7f2] = 0x00
	final[testHeader+0x7f2+1] = 0x02 // ndives = 2 (big-endian)
	final[testHeader+0x7f4] = 1      // eol encoding -> eol = 0

	// Newer dive's logbook slot (eol = 0) at profileEnd.
	newer := final[testHeader+testProfileEnd : testHeader+testProfileEnd+12]
	newer[0], newer[1], newer[2] = 0x15, 0x06, 0x24
	newer[3], newer[4] = 0x10, 0x30
	newer[7], newer[8], newer[9], newer[10] = 0x00, 0x00, 0x00, 0x02 // timestamp 2

	// Older dive's logbook slot (eol-1 mod 37 = 36), at profileEnd + 36*12.
	older := final[testHeader+testProfileEnd+36*12 : testHeader+testProfileEnd+36*12+12]
	older[0], older[1], older[2] = 0x14, 0x06, 0x24
	older[3], older[4] = 0x09, 0x15
	older[7], older[8], older[9], older[10] = 0x00, 0x00, 0x00, 0x01 // timestamp 1

	final[2044] = 0x11
	final[2045] = 0x22
	final[2046] = 0x33
	final[2047] = 0x44

	crc := checksum.AddU16LE(final[:2048])
	bytesutil.PutU16LE(final[2048:2050], crc)

	wire := append([]byte(nil), final...)
	bytesutil.ReverseBits(wire)
	return wire
}

func TestForeachMultiDiveNewestFirst(t *testing.T) {
	wire := buildMultiDiveDump(t)
	ch := newFakeChannel(wire)

	s, status := aladin.Open(ch, aladin.Params{})
	require.True(t, status.Succeeded())

	var fps []core.Fingerprint
	status = s.Foreach(core.NewContext(context.Background()), func(blob core.DiveBlob, fp core.Fingerprint) bool {
		fps = append(fps, fp)
		return true
	})

	require.True(t, status.Succeeded())
	require.Len(t, fps, 2)
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00}, []byte(fps[0]))
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, []byte(fps[1]))
}

// A fingerprint matching the older (second) dive's timestamp must stop the
// walk before that dive is handed to the callback, leaving only the newer
// dive delivered.
func TestForeachFingerprintStopsMidWalk(t *testing.T) {
	wire := buildMultiDiveDump(t)
	ch := newFakeChannel(wire)

	s, status := aladin.Open(ch, aladin.Params{})
	require.True(t, status.Succeeded())

	status = s.SetFingerprint(core.Fingerprint{0x01, 0x00, 0x00, 0x00})
	require.True(t, status.Succeeded())

	calls := 0
	status = s.Foreach(core.NewContext(context.Background()), func(core.DiveBlob, core.Fingerprint) bool {
		calls++
		return true
	})

	require.True(t, status.Succeeded())
	assert.Equal(t, 1, calls)
}

func TestSetFingerprintSizeMismatch(t *testing.T) {
	ch := newFakeChannel(nil)
	s, status := aladin.Open(ch, aladin.Params{})
	require.True(t, status.Succeeded())

	status = s.SetFingerprint(core.Fingerprint{1, 2, 3})
	assert.Equal(t, core.StatusInvalidArgs, status)
}
