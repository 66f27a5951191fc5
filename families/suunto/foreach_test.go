package suunto_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divecomputer/families/suunto"
	"divecomputer/pkg/checksum"
	"divecomputer/pkg/core"
)

// scriptReadMemory appends a complete READ_MEMORY transact round trip (cmd
// 0x05, a 2-byte big-endian address as the fixed parameter) to ch: the
// command echo followed by the framed answer carrying payload.
func scriptReadMemory(ch *fakeChannel, addr uint32, payload []byte) {
	fixed := []byte{byte(addr >> 8), byte(addr)}
	length := len(fixed) + len(payload)

	command := make([]byte, 3+len(fixed))
	command[0] = 0x05
	command[1] = byte(length >> 8)
	command[2] = byte(length)
	copy(command[3:], fixed)
	ch.feed(command...)

	answer := make([]byte, 4+length)
	answer[0] = 0x05
	answer[1] = byte(length >> 8)
	answer[2] = byte(length)
	copy(answer[3:3+len(fixed)], fixed)
	copy(answer[3+len(fixed):], payload)
	answer[len(answer)-1] = checksum.XOR(answer[:len(answer)-1])
	ch.feed(answer...)
}

// buildProfileRingWithTwoDives assembles the ring-sized buffer Foreach reads
// chunk by chunk: a 2-byte-length-prefixed record for the older dive, one
// for the newer dive right after it, then zero padding out to the ring's
// full size — a zero length prefix is this splitting scheme's own
// end-of-records marker, so the scan never walks into the padding as if it
// were more records.
func buildProfileRingWithTwoDives(size uint32, fpOld, fpNew []byte) []byte {
	buf := make([]byte, size)
	pos := 0

	buf[pos], buf[pos+1] = byte(len(fpOld)>>8), byte(len(fpOld))
	copy(buf[pos+2:pos+2+len(fpOld)], fpOld)
	pos += 2 + len(fpOld)

	buf[pos], buf[pos+1] = byte(len(fpNew)>>8), byte(len(fpNew))
	copy(buf[pos+2:pos+2+len(fpNew)], fpNew)

	return buf
}

// feedProfileRingReads scripts the full sequence of maxReadChunk-sized
// READ_MEMORY transactions Foreach issues to read out a profile ring,
// generated the same way Foreach itself walks the ring rather than
// hand-enumerated — the D9/D9tx/DX rings run into the tens of thousands of
// bytes, far too many chunks to write out individually.
func feedProfileRingReads(ch *fakeChannel, begin uint32, buf []byte) {
	const maxReadChunk = 0x78
	size := uint32(len(buf))
	for off := uint32(0); off < size; {
		chunk := uint32(maxReadChunk)
		if remaining := size - off; chunk > remaining {
			chunk = remaining
		}
		scriptReadMemory(ch, begin+off, buf[off:off+chunk])
		off += chunk
	}
}

// D9's profile ring (0x019A-0x7FFE, the default layout for a version
// response whose model byte isn't one of the named D4i/D6i/D9tx/DX
// constants) is the smallest of the three, so it's used here to keep the
// scripted transaction count manageable.
const (
	d9ProfileBegin = 0x019A
	d9ProfileEnd   = 0x7FFE
)

var (
	fpOldDive = []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	fpNewDive = []byte{0x06, 0x07, 0x08, 0x09, 0x0A}
)

func openWithD9Layout(t *testing.T, ch *fakeChannel) *suunto.Session {
	t.Helper()
	scriptVersion(ch, 0x00) // unrecognized model -> layoutD9 default

	s, status := suunto.Open(ch, suunto.Params{})
	require.True(t, status.Succeeded())
	return s
}

func TestForeachNewestFirst(t *testing.T) {
	ch := newFakeChannel()
	s := openWithD9Layout(t, ch)

	buf := buildProfileRingWithTwoDives(d9ProfileEnd-d9ProfileBegin, fpOldDive, fpNewDive)
	feedProfileRingReads(ch, d9ProfileBegin, buf)

	var fps []core.Fingerprint
	status := s.Foreach(core.NewContext(context.Background()), func(blob core.DiveBlob, fp core.Fingerprint) bool {
		fps = append(fps, fp)
		return true
	})

	require.True(t, status.Succeeded())
	require.Len(t, fps, 2)
	assert.Equal(t, fpNewDive, []byte(fps[0]))
	assert.Equal(t, fpOldDive, []byte(fps[1]))
}

// A fingerprint matching the older dive must stop the walk before that
// dive is handed to the callback, leaving only the newer one delivered.
func TestForeachFingerprintStopsMidWalk(t *testing.T) {
	ch := newFakeChannel()
	s := openWithD9Layout(t, ch)

	status := s.SetFingerprint(core.Fingerprint(fpOldDive))
	require.True(t, status.Succeeded())

	buf := buildProfileRingWithTwoDives(d9ProfileEnd-d9ProfileBegin, fpOldDive, fpNewDive)
	feedProfileRingReads(ch, d9ProfileBegin, buf)

	calls := 0
	status = s.Foreach(core.NewContext(context.Background()), func(core.DiveBlob, core.Fingerprint) bool {
		calls++
		return true
	})

	require.True(t, status.Succeeded())
	assert.Equal(t, 1, calls)
}

func TestForeachCancellation(t *testing.T) {
	ch := newFakeChannel()
	s := openWithD9Layout(t, ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := s.Foreach(core.NewContext(ctx), func(core.DiveBlob, core.Fingerprint) bool { return true })
	assert.Equal(t, core.StatusCancelled, status)
}
