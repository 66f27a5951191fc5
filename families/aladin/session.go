package aladin

import (
	"fmt"
	"time"

	"divecomputer/pkg/bytesutil"
	"divecomputer/pkg/checksum"
	"divecomputer/pkg/core"
	"divecomputer/pkg/ringbuf"
	"divecomputer/pkg/transport"
)

// profileRing is the address-space region the logbook/profile walk in
// extractDives runs its ring arithmetic over.
var profileRing = ringbuf.Region{Begin: profileBegin, End: profileEnd}

// Session implements core.Session for the Uwatec Aladin family's passive
// dump protocol (Pattern C). Unlike Patterns A/B there is no request/response
// exchange: Foreach blocks until the device streams a dump (typically
// triggered by holding a magnet to the device's IR window) and then decodes
// it entirely in memory.
type Session struct {
	channel     transport.ByteChannel
	sink        core.EventSink
	stats       core.SessionStats
	fingerprint uint32
	info        core.DeviceInfo
	closed      bool
}

var _ core.Session = (*Session)(nil)

// Params configures an Aladin Open call. EventSink may be nil.
type Params struct {
	EventSink core.EventSink
}

// Open configures the channel for the Aladin IR interface box's fixed line
// settings (19200 8N1, no flow control, DTR asserted/RTS cleared to power
// the box), per src/uwatec_aladin.c: uwatec_aladin_device_open. There is no
// handshake to perform at open time — the device is purely passive.
func Open(channel transport.ByteChannel, params Params) (*Session, core.Status) {
	if channel == nil {
		return nil, core.StatusInvalidArgs
	}

	if err := channel.SetBaud(19200); err != nil {
		return nil, core.StatusIO
	}
	if err := channel.SetDataBits(8); err != nil {
		return nil, core.StatusIO
	}
	if err := channel.SetParity(transport.ParityNone); err != nil {
		return nil, core.StatusIO
	}
	if err := channel.SetStopBits(1); err != nil {
		return nil, core.StatusIO
	}
	if err := channel.SetFlowControl(transport.FlowNone); err != nil {
		return nil, core.StatusIO
	}
	if err := channel.SetDTR(true); err != nil {
		return nil, core.StatusIO
	}
	if err := channel.SetRTS(false); err != nil {
		return nil, core.StatusIO
	}

	return &Session{channel: channel, sink: params.EventSink}, core.StatusSuccess
}

// SetFingerprint implements core.Session. The Aladin family's fingerprint is
// the logbook entry's 4-byte timestamp, taken from inside the dive header
// (blob bytes 11-14, little-endian after bit reversal); a zero-length slice
// clears the cutoff.
func (s *Session) SetFingerprint(fp core.Fingerprint) core.Status {
	if len(fp) != 0 && len(fp) != 4 {
		return core.StatusInvalidArgs
	}
	if len(fp) == 0 {
		s.fingerprint = 0
		return core.StatusSuccess
	}
	s.fingerprint = bytesutil.U32LE(fp)
	return core.StatusSuccess
}

// dump waits for and decodes one passive memory dump, per
// src/uwatec_aladin.c: uwatec_aladin_device_dump. It returns the 2048-byte
// memory image (the bit-reversed answer buffer with its trailing checksum
// stripped).
func (s *Session) dump(ctx *core.Context) ([]byte, core.Status) {
	core.Emit(s.sink, core.Event{Kind: core.EventProgress, Progress: core.ProgressEvent{Maximum: answerSize}})

	answer := make([]byte, answerSize)

	for i := 0; i < header; {
		if status := ctx.CheckCancelled(); !status.Succeeded() {
			return nil, status
		}

		n, err := s.channel.Read(answer[i : i+1])
		if err != nil || n != 1 {
			return nil, core.StatusTimeout
		}

		if answer[i] == preamble[i] {
			i++
		} else {
			i = 0
			core.Emit(s.sink, core.Event{Kind: core.EventWaiting})
		}
	}

	now := time.Now().Unix()
	s.stats.AddRead(header)

	core.Emit(s.sink, core.Event{Kind: core.EventProgress, Progress: core.ProgressEvent{Current: header, Maximum: answerSize}})

	remaining := answer[header:]
	nbytes := 0
	for nbytes < len(remaining) {
		n, err := s.channel.Read(remaining[nbytes:])
		if err != nil {
			return nil, core.StatusIO
		}
		if n == 0 {
			return nil, core.StatusTimeout
		}
		nbytes += n
	}
	s.stats.AddRead(len(remaining))

	core.Emit(s.sink, core.Event{Kind: core.EventProgress, Progress: core.ProgressEvent{Current: answerSize, Maximum: answerSize}})

	bytesutil.ReverseBits(answer)

	crc := bytesutil.U16LE(answer[sizeMemory : sizeMemory+2])
	ccrc := checksum.AddU16LE(answer[:sizeMemory])
	if ccrc != crc {
		return nil, core.StatusProtocol
	}

	devtime := bytesutil.U32BE(answer[devtimeOffset : devtimeOffset+4])
	core.Emit(s.sink, core.Event{Kind: core.EventClockSync, ClockSync: core.ClockSync{HostTicks: now, DeviceTicks: devtime}})

	return answer[:sizeMemory], core.StatusSuccess
}

// Foreach implements core.Session: wait for a passive memory dump, emit a
// device-info event from its fixed header fields, and walk the logbook and
// profile ring buffers backward, newest first, per
// src/uwatec_aladin.c: uwatec_aladin_device_foreach /
// uwatec_aladin_extract_dives.
func (s *Session) Foreach(ctx *core.Context, cb core.DiveCallback) core.Status {
	if status := ctx.CheckCancelled(); !status.Succeeded() {
		return status
	}

	data, status := s.dump(ctx)
	if !status.Succeeded() {
		return status
	}

	s.info = core.DeviceInfo{
		Model:  uint16(data[header+0x7bc]),
		Serial: bytesutil.U24BE(data[header+0x7ed : header+0x7ed+3]),
	}
	core.Emit(s.sink, core.Event{Kind: core.EventDeviceInfo, DeviceInfo: s.info})

	return s.extractDives(ctx, data, cb)
}

// extractDives walks the logbook (37 slots) and profile (0x600-byte) ring
// buffers backward in lockstep, newest dive first, assembling each dive as
// an 18-byte fixed header (serial, model, 12-byte logbook entry, profile
// length) followed by that dive's raw profile bytes.
func (s *Session) extractDives(ctx *core.Context, data []byte, cb core.DiveCallback) core.Status {
	const logbookSlots = 37
	const logbookEntrySize = 12

	ndives := int(bytesutil.U16BE(data[header+0x7f2 : header+0x7f2+2]))
	if ndives > logbookSlots {
		ndives = logbookSlots
	}

	eol := (int(data[header+0x7f4]) + logbookSlots - 1) % logbookSlots

	eop := ringbuf.Increment(profileRing,
		uint32(data[header+0x7f6])+uint32(((data[header+0x7f7]&0x0F)>>1))<<8, 1)

	profiles := true
	previous := eop
	current := eop

	for i := 0; i < ndives; i++ {
		if status := ctx.CheckCancelled(); !status.Succeeded() {
			return status
		}

		dive := make([]byte, 18+int(profileRing.Size()))
		copy(dive[0:3], data[header+0x7ed:header+0x7ed+3])
		dive[3] = data[header+0x7bc]

		offset := uint32(((eol+logbookSlots-i)%logbookSlots)*logbookEntrySize) + profileEnd
		copy(dive[4:16], data[header+int(offset):header+int(offset)+logbookEntrySize])

		reverseBytes(dive[11:15])

		length := 0
		if profiles {
			for {
				if current == profileBegin {
					current = profileEnd
				}
				current--

				if data[header+current] == 0xFF {
					length = int(ringbuf.Distance(profileRing, current, previous, false))
					previous = current
					break
				}
				if current == eop {
					break
				}
			}

			if length >= 1 {
				length--
				begin := ringbuf.Increment(profileRing, current, 1)
				dive[16] = byte(length)
				dive[17] = byte(length >> 8)

				if begin+uint32(length) > profileEnd {
					a := profileEnd - begin
					b := (begin + uint32(length)) - profileEnd
					copy(dive[18:18+a], data[header+begin:header+begin+a])
					copy(dive[18+a:18+a+b], data[header:header+b])
				} else {
					copy(dive[18:18+uint32(length)], data[header+begin:header+begin+uint32(length)])
				}
			}

			if current == eop {
				profiles = false
			}
		}

		blob := dive[:18+length]
		timestamp := bytesutil.U32LE(blob[11:15])
		if s.fingerprint != 0 && timestamp <= s.fingerprint {
			return core.StatusSuccess
		}

		fp := core.Fingerprint(append([]byte(nil), blob[11:15]...))
		s.stats.IncEnumerated()
		s.stats.IncDownloaded()
		if !cb(core.DiveBlob(blob), fp) {
			return core.StatusSuccess
		}
	}

	return core.StatusSuccess
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// Stats implements core.Session.
func (s *Session) Stats() core.StatsSnapshot {
	return s.stats.Snapshot()
}

// Close implements core.Session. The Aladin protocol has no exit handshake;
// Close only releases the channel.
func (s *Session) Close() core.Status {
	if s.closed {
		return core.StatusSuccess
	}
	s.closed = true

	if err := s.channel.Close(); err != nil {
		return core.StatusIO
	}
	return core.StatusSuccess
}

func (s *Session) String() string {
	return fmt.Sprintf("aladin.Session{info=%+v}", s.info)
}
