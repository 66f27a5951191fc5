package suunto_test

import (
	"bytes"
	"time"

	"divecomputer/pkg/transport"
)

// fakeChannel is an in-memory transport.ByteChannel that replays a scripted
// response to every write, for exercising the Pattern B transact state
// machine without real hardware. Writes and RTS transitions are recorded
// for assertions.
type fakeChannel struct {
	writes    [][]byte
	rts       []bool
	baud      int
	responses *bytes.Buffer
}

var _ transport.ByteChannel = (*fakeChannel)(nil)

func newFakeChannel(script ...byte) *fakeChannel {
	return &fakeChannel{responses: bytes.NewBuffer(script)}
}

func (f *fakeChannel) feed(b ...byte) {
	f.responses.Write(b)
}

func (f *fakeChannel) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	f.writes = append(f.writes, cp)
	return len(p), nil
}

func (f *fakeChannel) Read(buf []byte) (int, error) {
	return f.responses.Read(buf)
}

func (f *fakeChannel) SetTimeout(ms int) error { return nil }
func (f *fakeChannel) SetBaud(baud int) error {
	f.baud = baud
	return nil
}
func (f *fakeChannel) SetDataBits(bits int) error                    { return nil }
func (f *fakeChannel) SetParity(p transport.Parity) error            { return nil }
func (f *fakeChannel) SetStopBits(bits int) error                    { return nil }
func (f *fakeChannel) SetFlowControl(fc transport.FlowControl) error { return nil }
func (f *fakeChannel) SetDTR(on bool) error                          { return nil }
func (f *fakeChannel) SetRTS(on bool) error {
	f.rts = append(f.rts, on)
	return nil
}
func (f *fakeChannel) Flush(q transport.Queue) error    { return nil }
func (f *fakeChannel) BytesAvailable() (uint32, error)  { return 0, nil }
func (f *fakeChannel) Sleep(d time.Duration)            {}
func (f *fakeChannel) Close() error                     { return nil }
