package suunto

import (
	"fmt"
	"time"

	"divecomputer/pkg/bytesutil"
	"divecomputer/pkg/checksum"
	"divecomputer/pkg/core"
	"divecomputer/pkg/ringbuf"
	"divecomputer/pkg/transport"
)

const fingerprintSize = 5
const serialSize = 3

// Session implements core.Session for the Suunto D9/D9tx/DX family's
// Pattern B protocol.
type Session struct {
	channel     transport.ByteChannel
	sink        core.EventSink
	stats       core.SessionStats
	layout      Layout
	fingerprint core.Fingerprint
	info        core.DeviceInfo
	closed      bool
}

var _ core.Session = (*Session)(nil)
var _ core.MaxDepthResetter = (*Session)(nil)

// Params configures a Suunto Open call. ModelHint speeds up baudrate
// autodetection the way src/suunto_d9.c's caller-supplied `model` argument
// does; 0 means no hint.
type Params struct {
	EventSink core.EventSink
	ModelHint int
}

// Open configures the channel's fixed line settings, then autodetects the
// active baudrate by retrying the version handshake at each candidate,
// per src/suunto_d9.c: suunto_d9_device_open / suunto_d9_device_autodetect.
func Open(channel transport.ByteChannel, params Params) (*Session, core.Status) {
	if channel == nil {
		return nil, core.StatusInvalidArgs
	}

	if err := channel.SetBaud(9600); err != nil {
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
	if err := channel.SetTimeout(3000); err != nil {
		return nil, core.StatusIO
	}
	if err := channel.SetDTR(true); err != nil {
		return nil, core.StatusIO
	}
	channel.Sleep(100 * time.Millisecond)
	if err := channel.Flush(transport.QueueBoth); err != nil {
		return nil, core.StatusIO
	}

	s := &Session{channel: channel, sink: params.EventSink}

	hint := autodetectHint(byte(params.ModelHint))
	lastStatus := core.StatusTimeout
	for i := 0; i < len(autodetectBaudrates); i++ {
		idx := (hint + i) % len(autodetectBaudrates)
		if err := channel.SetBaud(autodetectBaudrates[idx]); err != nil {
			return nil, core.StatusIO
		}

		data, status := s.version()
		if status.Succeeded() {
			s.info.Model = uint16(data[0])
			s.layout = layoutForModel(data[0])
			core.Emit(s.sink, core.Event{Kind: core.EventDeviceInfo, DeviceInfo: s.info})
			return s, core.StatusSuccess
		}
		lastStatus = status
	}

	return nil, lastStatus
}

// transact drives one Pattern B exchange: write [cmd, lenBE16, fixedParams],
// verify the echo, toggle RTS to receive, read the framed answer, and
// verify its header/echoed-parameter/checksum fields — the exact contract
// of src/suunto_d9.c: suunto_d9_device_packet, generalized from one
// hard-coded call site into a reusable helper. Returns the answer's
// variable-length payload (after the echoed fixedParams, before the
// trailing checksum byte).
func (s *Session) transact(cmd byte, fixedParams []byte, variableSize int) ([]byte, core.Status) {
	f := len(fixedParams)
	length := f + variableSize

	command := make([]byte, 3+f)
	command[0] = cmd
	command[1] = byte(length >> 8)
	command[2] = byte(length)
	copy(command[3:], fixedParams)

	if err := s.channel.SetRTS(false); err != nil {
		return nil, core.StatusIO
	}
	if _, err := s.channel.Write(command); err != nil {
		return nil, core.StatusIO
	}
	s.stats.IncCommands()
	s.stats.AddWritten(len(command))

	echo := make([]byte, len(command))
	n, err := s.channel.Read(echo)
	if err != nil || n != len(echo) {
		return nil, core.StatusTimeout
	}
	if !bytesutil.Equal(echo, command) {
		return nil, core.StatusProtocol
	}

	if err := s.channel.SetRTS(true); err != nil {
		return nil, core.StatusIO
	}

	asize := 4 + length
	answer := make([]byte, asize)
	n, err = s.channel.Read(answer)
	if err != nil || n != asize {
		return nil, core.StatusTimeout
	}
	s.stats.AddRead(asize)

	if answer[0] != cmd {
		return nil, core.StatusProtocol
	}
	if int(bytesutil.U16BE(answer[1:3]))+4 != asize {
		return nil, core.StatusProtocol
	}
	if !bytesutil.Equal(answer[3:3+f], fixedParams) {
		return nil, core.StatusProtocol
	}

	crc := answer[asize-1]
	ccrc := checksum.XOR(answer[:asize-1])
	if crc != ccrc {
		return nil, core.StatusProtocol
	}

	return answer[3+f : asize-1], core.StatusSuccess
}

func (s *Session) version() ([]byte, core.Status) {
	return s.transact(cmdVersion, nil, versionSize)
}

// readMemory reads length bytes starting at addr, per this implementation's
// read-memory framing: a 2-byte big-endian address is the transaction's
// echoed fixed parameter.
func (s *Session) readMemory(addr uint32, length int) ([]byte, core.Status) {
	fixed := []byte{byte(addr >> 8), byte(addr)}
	return s.transact(cmdReadMemory, fixed, length)
}

// SetFingerprint implements core.Session.
func (s *Session) SetFingerprint(fp core.Fingerprint) core.Status {
	if len(fp) != 0 && len(fp) != fingerprintSize {
		return core.StatusInvalidArgs
	}
	s.fingerprint = append(core.Fingerprint(nil), fp...)
	return core.StatusSuccess
}

// ResetMaxDepth implements core.MaxDepthResetter, per
// src/suunto_d9.c: suunto_d9_device_reset_maxdepth.
func (s *Session) ResetMaxDepth() core.Status {
	_, status := s.transact(cmdResetMaxDepth, nil, 0)
	return status
}

// Foreach implements core.Session. The profile ring is read out in
// maxReadChunk-sized chunks, linearly from ProfileBegin to ProfileEnd, into
// one contiguous buffer, then split into individual dive records using a
// 2-byte big-endian length prefix per record — see the package doc comment
// for why this splitting scheme is an original design rather than a
// transcription of suunto_common2's (absent from the pack) real layout.
// Records are collected oldest-to-newest as they're read and handed to cb
// newest-first.
func (s *Session) Foreach(ctx *core.Context, cb core.DiveCallback) core.Status {
	if status := ctx.CheckCancelled(); !status.Succeeded() {
		return status
	}

	ring := ringbuf.Region{Begin: s.layout.ProfileBegin, End: s.layout.ProfileEnd}
	size := ring.Size()

	core.Emit(s.sink, core.Event{Kind: core.EventProgress, Progress: core.ProgressEvent{Maximum: uint64(size)}})

	buf := make([]byte, 0, size)
	for uint32(len(buf)) < size {
		if status := ctx.CheckCancelled(); !status.Succeeded() {
			return status
		}

		chunk := int(size) - len(buf)
		if chunk > maxReadChunk {
			chunk = maxReadChunk
		}
		addr := ring.Begin + uint32(len(buf))
		data, status := s.readMemory(addr, chunk)
		if !status.Succeeded() {
			return status
		}
		buf = append(buf, data...)

		core.Emit(s.sink, core.Event{Kind: core.EventProgress, Progress: core.ProgressEvent{Current: uint64(len(buf)), Maximum: uint64(size)}})
	}

	type record struct {
		blob core.DiveBlob
		fp   core.Fingerprint
	}
	var records []record

	pos := 0
	for pos+2 <= len(buf) {
		length := int(bytesutil.U16BE(buf[pos : pos+2]))
		if length == 0 || length == 0xFFFF || pos+2+length > len(buf) {
			break
		}

		blob := core.DiveBlob(buf[pos : pos+2+length])
		fp := core.Fingerprint(nil)
		if length >= fingerprintSize {
			fp = append(core.Fingerprint(nil), blob[2:2+fingerprintSize]...)
		}

		records = append(records, record{blob: blob, fp: fp})
		pos += 2 + length
	}

	for i := len(records) - 1; i >= 0; i-- {
		if status := ctx.CheckCancelled(); !status.Succeeded() {
			return status
		}

		r := records[i]
		if len(s.fingerprint) > 0 && bytesutil.Equal([]byte(r.fp), []byte(s.fingerprint)) {
			break
		}

		s.stats.IncEnumerated()
		s.stats.IncDownloaded()
		if !cb(r.blob, r.fp) {
			return core.StatusSuccess
		}
	}

	return core.StatusSuccess
}

// Stats implements core.Session.
func (s *Session) Stats() core.StatsSnapshot {
	return s.stats.Snapshot()
}

// Close implements core.Session.
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
	return fmt.Sprintf("suunto.Session{info=%+v}", s.info)
}
