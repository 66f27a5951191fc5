package ostc

import (
	"fmt"
	"os"
	"time"

	"divecomputer/pkg/bytesutil"
	"divecomputer/pkg/checksum"
	"divecomputer/pkg/core"
	"divecomputer/pkg/firmware"
	"divecomputer/pkg/ringbuf"
	"divecomputer/pkg/transport"
)

// Session implements core.Session for the OSTC family's Pattern A protocol.
type Session struct {
	channel     transport.ByteChannel
	sink        core.EventSink
	stats       core.SessionStats
	state       sessionState
	fingerprint core.Fingerprint
	info        core.DeviceInfo
	closed      bool
}

var _ core.Session = (*Session)(nil)
var _ core.ClockSetter = (*Session)(nil)
var _ core.TextDisplayer = (*Session)(nil)
var _ core.ConfigStore = (*Session)(nil)
var _ core.FirmwareUpdater = (*Session)(nil)

// Params configures an OSTC Open call. EventSink may be nil.
type Params struct {
	EventSink core.EventSink
}

// Open negotiates an OSTC download session: configures the channel for
// 115200 8N1 and sends the init command (0xBB).
func Open(channel transport.ByteChannel, params Params) (*Session, core.Status) {
	if channel == nil {
		return nil, core.StatusInvalidArgs
	}

	if err := channel.SetBaud(115200); err != nil {
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
	if err := channel.SetTimeout(3000); err != nil {
		return nil, core.StatusIO
	}

	s := &Session{
		channel: channel,
		sink:    params.EventSink,
		state:   stateDownload,
	}

	if _, status := s.transfer(cmdInit, nil, 0); !status.Succeeded() {
		return nil, status
	}

	return s, core.StatusSuccess
}

// EnterServiceMode sends the four-byte service-mode unlock magic and
// verifies the five-byte acknowledgement. Download commands remain usable
// afterward; the transition is one-way.
func (s *Session) EnterServiceMode() core.Status {
	if _, err := s.channel.Write(serviceUnlock[:]); err != nil {
		return core.StatusIO
	}
	ack := make([]byte, len(serviceAck))
	if n, err := s.channel.Read(ack); err != nil || n != len(ack) {
		return core.StatusTimeout
	}
	for i := range ack {
		if ack[i] != serviceAck[i] {
			return core.StatusProtocol
		}
	}
	s.state = stateService
	s.channel.Sleep(200 * time.Millisecond)
	return core.StatusSuccess
}

// transfer implements the Pattern A command/echo/data/ready exchange:
// write cmd, read & verify the echo (a READY-as-echo means the command is
// unsupported), optionally write input, optionally read outputSize bytes
// in >=1024-byte chunks opportunistically enlarged by BytesAvailable, and
// (except on EXIT) read & verify the one-byte trailer.
func (s *Session) transfer(cmd byte, input []byte, outputSize int) ([]byte, core.Status) {
	readyByte := byte(ready)
	if s.state == stateService {
		readyByte = sReady
	}

	if _, err := s.channel.Write([]byte{cmd}); err != nil {
		return nil, core.StatusIO
	}
	s.stats.IncCommands()

	echo := make([]byte, 1)
	if n, err := s.channel.Read(echo); err != nil || n != 1 {
		return nil, core.StatusTimeout
	}
	if echo[0] != cmd {
		if echo[0] == readyByte {
			return nil, core.StatusUnsupported
		}
		return nil, core.StatusProtocol
	}

	if len(input) > 0 {
		if _, err := s.channel.Write(input); err != nil {
			return nil, core.StatusIO
		}
		s.stats.AddWritten(len(input))
	}

	var output []byte
	if outputSize > 0 {
		output = make([]byte, outputSize)
		nbytes := 0
		for nbytes < outputSize {
			chunk := 1024
			if avail, err := s.channel.BytesAvailable(); err == nil && int(avail) > chunk {
				chunk = int(avail)
			}
			if nbytes+chunk > outputSize {
				chunk = outputSize - nbytes
			}
			n, err := s.channel.Read(output[nbytes : nbytes+chunk])
			if err != nil || n != chunk {
				return nil, core.StatusTimeout
			}
			nbytes += n
			s.stats.AddRead(n)
		}
	}

	if cmd != cmdExit {
		trailer := make([]byte, 1)
		if n, err := s.channel.Read(trailer); err != nil || n != 1 {
			return nil, core.StatusTimeout
		}
		if trailer[0] != readyByte {
			return nil, core.StatusProtocol
		}
	}

	return output, core.StatusSuccess
}

// SetFingerprint implements core.Session.
func (s *Session) SetFingerprint(fp core.Fingerprint) core.Status {
	if len(fp) != 0 && len(fp) != fingerprintSize {
		return core.StatusInvalidArgs
	}
	s.fingerprint = append(core.Fingerprint(nil), fp...)
	return core.StatusSuccess
}

// Identity reads the device's version/identity packet, emits
// core.EventDeviceInfo, and returns the decoded DeviceInfo. This is the
// session's optional version() operation.
func (s *Session) Identity() (core.DeviceInfo, core.Status) {
	status := s.identity()
	return s.info, status
}

// identity reads the device's version/identity packet and the hardware
// descriptor, and emits core.EventDeviceInfo. The on-wire layout here is a
// simplified 4-byte identity packet (serial as LE16, firmware as BE16)
// rather than the full 64-byte OSTC3 version record; see DESIGN.md for why
// the simplified shape was kept instead of the longer real-device packet.
// Older firmware doesn't answer cmdHardware at all (StatusUnsupported),
// in which case the model falls back to a serial-number threshold, exactly
// as hw_ostc3_device_foreach does.
func (s *Session) identity() core.Status {
	data, status := s.transfer(cmdIdentity, nil, identitySize)
	if !status.Succeeded() {
		return status
	}

	info := core.DeviceInfo{
		Serial:   uint32(bytesutil.U16LE(data[0:2])),
		Firmware: uint32(bytesutil.U16BE(data[2:4])),
	}

	hw, status := s.transfer(cmdHardware, nil, sizeHardware)
	switch status {
	case core.StatusSuccess:
		info.Model = uint16(hw[0])
	case core.StatusUnsupported:
		// older firmware; fall back to the serial-number heuristic below.
	default:
		return status
	}
	if info.Model == 0 {
		if info.Serial > 10000 {
			info.Model = modelSport
		} else {
			info.Model = modelOSTC3
		}
	}

	s.info = info
	core.Emit(s.sink, core.Event{Kind: core.EventDeviceInfo, DeviceInfo: s.info})
	return core.StatusSuccess
}

// Foreach implements core.Session: read version/identity, read the
// compact logbook (falling back to the full layout if compact is
// unsupported), locate the newest dive by internal counter, walk
// backwards accumulating profile size until the stored fingerprint
// matches or the ring is exhausted, then download and hand out each
// due dive newest-first.
func (s *Session) Foreach(ctx *core.Context, cb core.DiveCallback) core.Status {
	if status := ctx.CheckCancelled(); !status.Succeeded() {
		return status
	}

	core.Emit(s.sink, core.Event{Kind: core.EventProgress, Progress: core.ProgressEvent{Current: 0, Maximum: uint64(logbookCount * logbookSizeCompact)}})

	if status := s.identity(); !status.Succeeded() {
		return status
	}

	layout := logbookCompact
	header, status := s.transfer(cmdCompact, nil, logbookSizeCompact*logbookCount)
	if status == core.StatusUnsupported {
		layout = logbookFull
		header, status = s.transfer(cmdHeader, nil, logbookSizeFull*logbookCount)
	}
	if !status.Succeeded() {
		return status
	}

	latest, count := findLatest(header, layout)

	logbookRing := ringbuf.Region{Begin: 0, End: logbookCount}

	type due struct {
		idx    int
		length int
	}
	var queue []due
	var totalSize int
	for i := 0; i < count; i++ {
		idx := int(ringbuf.Increment(logbookRing, uint32(latest), uint32(logbookCount-i)))
		offset := idx * layout.size
		entry := header[offset : offset+layout.size]
		if allFF(entry) {
			break
		}

		length := logbookSizeFull + int(bytesutil.U24LE(entry[layout.profile:layout.profile+3])) - 3
		if layout.size == logbookSizeFull {
			fw := bytesutil.U16BE(entry[logbookFieldFirmwareFull : logbookFieldFirmwareFull+2])
			if fw < 93 {
				length -= 3
			}
		}

		fp := entry[layout.fingerprint : layout.fingerprint+fingerprintSize]
		if len(s.fingerprint) > 0 && bytesutil.Equal(fp, s.fingerprint) {
			break
		}

		queue = append(queue, due{idx: idx, length: length})
		totalSize += length
	}

	core.Emit(s.sink, core.Event{Kind: core.EventProgress, Progress: core.ProgressEvent{
		Current: uint64(len(header)),
		Maximum: uint64(len(header) + totalSize),
	}})

	for _, d := range queue {
		if status := ctx.CheckCancelled(); !status.Succeeded() {
			return status
		}

		profile, status := s.transfer(cmdDive, []byte{byte(d.idx)}, d.length)
		if !status.Succeeded() {
			return status
		}
		s.stats.IncEnumerated()

		offset := d.idx * layout.size
		if layout.size == logbookSizeFull {
			if !bytesutil.Equal(profile[:layout.size], header[offset:offset+layout.size]) {
				return core.StatusProtocol
			}
		}

		fp := core.Fingerprint(profile[layout.fingerprint : layout.fingerprint+fingerprintSize])
		s.stats.IncDownloaded()
		if !cb(core.DiveBlob(profile), fp) {
			return core.StatusSuccess
		}
	}

	return core.StatusSuccess
}

func findLatest(header []byte, layout logbookLayout) (latest, count int) {
	maximum := -1
	for i := 0; i < logbookCount; i++ {
		offset := i * layout.size
		entry := header[offset : offset+layout.size]
		if allFF(entry) {
			continue
		}
		current := int(bytesutil.U16LE(entry[layout.number : layout.number+2]))
		if current > maximum {
			maximum = current
			latest = i
		}
		count++
	}
	return latest, count
}

func allFF(b []byte) bool {
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return true
}

// SetClock implements core.ClockSetter.
func (s *Session) SetClock(dt core.ParsedDateTime) core.Status {
	packet := []byte{
		byte(dt.Year % 100), byte(dt.Month), byte(dt.Day),
		byte(dt.Hour), byte(dt.Minute), byte(dt.Second),
	}
	_, status := s.transfer(cmdClock, packet, 0)
	return status
}

// DisplayText implements core.TextDisplayer.
func (s *Session) DisplayText(text string) core.Status {
	return s.sendText(cmdDisplay, text, 16)
}

// CustomText implements core.TextDisplayer.
func (s *Session) CustomText(text string) core.Status {
	return s.sendText(cmdCustomText, text, 60)
}

func (s *Session) sendText(cmd byte, text string, size int) core.Status {
	if len(text) > size {
		return core.StatusInvalidArgs
	}
	packet := make([]byte, size)
	copy(packet, text)
	_, status := s.transfer(cmd, packet, 0)
	return status
}

// ConfigRead implements core.ConfigStore, per hw_ostc3_device_config_read:
// command 0x72 with the slot number as its single input byte, answer is
// the fixed sizeConfig-byte record.
func (s *Session) ConfigRead(slot int) ([]byte, core.Status) {
	return s.transfer(cmdRead, []byte{byte(slot)}, sizeConfig)
}

// ConfigWrite implements core.ConfigStore, per hw_ostc3_device_config_write:
// command 0x77 with the slot number followed by up to sizeConfig bytes of
// data, no answer.
func (s *Session) ConfigWrite(slot int, data []byte) core.Status {
	if len(data) > sizeConfig {
		return core.StatusInvalidArgs
	}
	input := append([]byte{byte(slot)}, data...)
	_, status := s.transfer(cmdWrite, input, 0)
	return status
}

// ConfigReset implements core.ConfigStore, per hw_ostc3_device_config_reset:
// command 0x78, no input or answer.
func (s *Session) ConfigReset() core.Status {
	_, status := s.transfer(cmdReset, nil, 0)
	return status
}

// FirmwareUpdate implements core.FirmwareUpdater: decodes the hex-record
// image at path, forces service mode, erases the firmware area, uploads it
// in BlockSizeOSTC3-sized blocks, reads each block back to verify it
// against the plaintext, and finally sends the upgrade command so the
// device reboots and reprograms itself. Grounded on
// hw_ostc3_device_fwupdate's erase/upload/verify/upgrade sequence.
func (s *Session) FirmwareUpdate(path string) core.Status {
	f, err := os.Open(path)
	if err != nil {
		return core.StatusIO
	}
	defer f.Close()

	data, err := firmware.DecodeOSTC3(f)
	if err != nil {
		return core.StatusDataFormat
	}

	if s.state != stateService {
		if status := s.EnterServiceMode(); !status.Succeeded() {
			return status
		}
	}

	s.DisplayText(" Erasing FW...")
	if status := s.firmwareErase(firmwareArea, len(data)); !status.Succeeded() {
		return status
	}

	s.DisplayText(" Uploading...")
	for off := 0; off < len(data); off += firmware.BlockSizeOSTC3 {
		end := off + firmware.BlockSizeOSTC3
		if end > len(data) {
			end = len(data)
		}
		if status := s.firmwareBlockWrite(firmwareArea+off, data[off:end]); !status.Succeeded() {
			return status
		}
	}

	s.DisplayText(" Verifying...")
	for off := 0; off < len(data); off += firmware.BlockSizeOSTC3 {
		end := off + firmware.BlockSizeOSTC3
		if end > len(data) {
			end = len(data)
		}
		block, status := s.firmwareBlockRead(firmwareArea+off, end-off)
		if !status.Succeeded() {
			return status
		}
		if !bytesutil.Equal(block, data[off:end]) {
			s.DisplayText(" Verify FAILED")
			return core.StatusProtocol
		}
	}

	s.DisplayText(" Programming...")
	return s.firmwareUpgrade(checksum.Fletcher32(data))
}

// firmwareErase implements the S_ERASE command (0x42): BE24 address
// followed by the block count, rounded up, to erase.
func (s *Session) firmwareErase(addr, size int) core.Status {
	blocks := (size + firmware.BlockSizeOSTC3 - 1) / firmware.BlockSizeOSTC3
	buffer := make([]byte, 4)
	bytesutil.PutU24BE(buffer[0:3], uint32(addr))
	buffer[3] = byte(blocks)
	_, status := s.transfer(cmdErase, buffer, 0)
	return status
}

// firmwareBlockWrite implements the S_BLOCK_WRITE command (0x30): BE24
// address followed by the block itself, at most BlockSizeOSTC3 bytes.
func (s *Session) firmwareBlockWrite(addr int, block []byte) core.Status {
	buffer := make([]byte, 3+len(block))
	bytesutil.PutU24BE(buffer[0:3], uint32(addr))
	copy(buffer[3:], block)
	_, status := s.transfer(cmdBlockWrite, buffer, 0)
	return status
}

// firmwareBlockRead implements the S_BLOCK_READ command (0x20): BE24
// address followed by a BE24 block size, answer is the block itself.
func (s *Session) firmwareBlockRead(addr, size int) ([]byte, core.Status) {
	buffer := make([]byte, 6)
	bytesutil.PutU24BE(buffer[0:3], uint32(addr))
	bytesutil.PutU24BE(buffer[3:6], uint32(size))
	return s.transfer(cmdBlockRead, buffer, size)
}

// firmwareUpgrade implements the S_UPGRADE command (0x50): LE32 checksum
// followed by a one-byte rolling XOR-then-rotate-left-by-1 checksum over
// those four bytes, seeded at 0x55 — the device's own sanity check before
// it reboots and reprograms itself.
func (s *Session) firmwareUpgrade(sum uint32) core.Status {
	buffer := make([]byte, 5)
	bytesutil.PutU32LE(buffer[0:4], sum)
	buffer[4] = 0x55
	for i := 0; i < 4; i++ {
		buffer[4] ^= buffer[i]
		buffer[4] = buffer[4]<<1 | buffer[4]>>7
	}
	_, status := s.transfer(cmdUpgrade, buffer, 0)
	return status
}

// Stats implements core.Session.
func (s *Session) Stats() core.StatsSnapshot {
	return s.stats.Snapshot()
}

// Close implements core.Session: sends EXIT best-effort (no trailer is
// read for EXIT) and releases the channel.
func (s *Session) Close() core.Status {
	if s.closed {
		return core.StatusSuccess
	}
	s.closed = true

	_, status := s.transfer(cmdExit, nil, 0)
	if err := s.channel.Close(); err != nil {
		return core.Merge(status, core.StatusIO)
	}
	return status
}

func (s *Session) String() string {
	return fmt.Sprintf("ostc.Session{state=%d, info=%+v}", s.state, s.info)
}
