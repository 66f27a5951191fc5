package ostc_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divecomputer/families/ostc"
	"divecomputer/pkg/core"
)

func TestForeachEmptyLogbookYieldsNoCallbacks(t *testing.T) {
	ch := newFakeChannel(0xBB, 0x4D) // INIT echo + ready

	ch.feed(0x69)
	ch.feed(0x12, 0x34, 0x00, 0x5A)
	ch.feed(0x4D) // IDENTITY echo + data + ready

	ch.feed(0x6A, 0x0A, 0x4D) // HARDWARE echo + data + ready

	ch.feed(0x6D) // COMPACT echo
	ch.feed(bytes.Repeat([]byte{0xFF}, 16*256)...)
	ch.feed(0x4D) // ready

	s, status := ostc.Open(ch, ostc.Params{})
	require.True(t, status.Succeeded())

	calls := 0
	status = s.Foreach(core.NewContext(context.Background()), func(blob core.DiveBlob, fp core.Fingerprint) bool {
		calls++
		return true
	})

	assert.True(t, status.Succeeded())
	assert.Equal(t, 0, calls)
}

var (
	fpNewer = core.Fingerprint{0xAA, 0xAA, 0xAA, 0xAA, 0x02}
	fpOlder = core.Fingerprint{0xBB, 0xBB, 0xBB, 0xBB, 0x01}
)

// buildCompactLogbook assembles a 4096-byte (16 bytes * 256 slots) compact
// logbook header with exactly two valid entries — ring slot 5 (the newest,
// internal counter 2) and ring slot 4 (the next-oldest, internal counter
// 1) — and every other slot left all-0xFF so findLatest/Foreach treat them
// as empty, the same "0xFF means unused slot" convention hw_ostc3.c itself
// relies on for the compact ring.
func buildCompactLogbook() []byte {
	header := bytes.Repeat([]byte{0xFF}, 16*256)

	newer := header[5*16 : 5*16+16]
	newer[0], newer[1], newer[2] = 0, 0, 0 // profile-length delta = 0
	copy(newer[3:8], fpNewer)
	newer[13], newer[14] = 2, 0 // internal counter, LE16

	older := header[4*16 : 4*16+16]
	older[0], older[1], older[2] = 0, 0, 0
	copy(older[3:8], fpOlder)
	older[13], older[14] = 1, 0

	return header
}

func feedIdentityAndHardware(ch *fakeChannel) {
	ch.feed(0x69)
	ch.feed(0x12, 0x34, 0x00, 0x5A)
	ch.feed(0x4D)
	ch.feed(0x6A, 0x0A, 0x4D)
}

// profileLength is the byte count Foreach computes for an entry whose
// profile-length delta field is zero: logbookSizeFull (256) + 0 - 3.
const profileLength = 253

func TestForeachMultiDiveNewestFirst(t *testing.T) {
	ch := newFakeChannel(0xBB, 0x4D)
	feedIdentityAndHardware(ch)

	ch.feed(0x6D)
	ch.feed(buildCompactLogbook()...)
	ch.feed(0x4D)

	newerProfile := make([]byte, profileLength)
	copy(newerProfile[3:8], fpNewer)
	ch.feed(0x66)
	ch.feed(newerProfile...)
	ch.feed(0x4D)

	olderProfile := make([]byte, profileLength)
	copy(olderProfile[3:8], fpOlder)
	ch.feed(0x66)
	ch.feed(olderProfile...)
	ch.feed(0x4D)

	s, status := ostc.Open(ch, ostc.Params{})
	require.True(t, status.Succeeded())

	var fps []core.Fingerprint
	status = s.Foreach(core.NewContext(context.Background()), func(blob core.DiveBlob, fp core.Fingerprint) bool {
		fps = append(fps, fp)
		return true
	})

	require.True(t, status.Succeeded())
	require.Len(t, fps, 2)
	assert.Equal(t, []byte(fpNewer), []byte(fps[0]))
	assert.Equal(t, []byte(fpOlder), []byte(fps[1]))
}

// A stored fingerprint matching the older entry's header-side fingerprint
// field must stop the walk before that entry is ever downloaded, leaving
// only the newer dive delivered to the callback.
func TestForeachFingerprintStopsMidWalk(t *testing.T) {
	ch := newFakeChannel(0xBB, 0x4D)
	feedIdentityAndHardware(ch)

	ch.feed(0x6D)
	ch.feed(buildCompactLogbook()...)
	ch.feed(0x4D)

	newerProfile := make([]byte, profileLength)
	copy(newerProfile[3:8], fpNewer)
	ch.feed(0x66)
	ch.feed(newerProfile...)
	ch.feed(0x4D)

	s, status := ostc.Open(ch, ostc.Params{})
	require.True(t, status.Succeeded())

	status = s.SetFingerprint(fpOlder)
	require.True(t, status.Succeeded())

	calls := 0
	status = s.Foreach(core.NewContext(context.Background()), func(core.DiveBlob, core.Fingerprint) bool {
		calls++
		return true
	})

	require.True(t, status.Succeeded())
	assert.Equal(t, 1, calls)
}

func TestForeachCancellation(t *testing.T) {
	ch := newFakeChannel(0xBB, 0x4D)
	s, status := ostc.Open(ch, ostc.Params{})
	require.True(t, status.Succeeded())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status = s.Foreach(core.NewContext(ctx), func(core.DiveBlob, core.Fingerprint) bool { return true })
	assert.Equal(t, core.StatusCancelled, status)
}
