package aladin_test

import (
	"bytes"
	"time"

	"divecomputer/pkg/transport"
)

// fakeChannel is an in-memory transport.ByteChannel that replays a scripted
// byte stream, for exercising the passive-dump state machine without real
// hardware.
type fakeChannel struct {
	stream *bytes.Buffer
}

var _ transport.ByteChannel = (*fakeChannel)(nil)

func newFakeChannel(stream []byte) *fakeChannel {
	return &fakeChannel{stream: bytes.NewBuffer(stream)}
}

func (f *fakeChannel) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeChannel) Read(buf []byte) (int, error) {
	return f.stream.Read(buf)
}

func (f *fakeChannel) SetTimeout(ms int) error                       { return nil }
func (f *fakeChannel) SetBaud(baud int) error                        { return nil }
func (f *fakeChannel) SetDataBits(bits int) error                    { return nil }
func (f *fakeChannel) SetParity(p transport.Parity) error            { return nil }
func (f *fakeChannel) SetStopBits(bits int) error                    { return nil }
func (f *fakeChannel) SetFlowControl(fc transport.FlowControl) error { return nil }
func (f *fakeChannel) SetDTR(on bool) error                          { return nil }
func (f *fakeChannel) SetRTS(on bool) error                          { return nil }
func (f *fakeChannel) Flush(q transport.Queue) error                 { return nil }
func (f *fakeChannel) BytesAvailable() (uint32, error)               { return 0, nil }
func (f *fakeChannel) Sleep(d time.Duration)                         {}
func (f *fakeChannel) Close() error                                  { return nil }
