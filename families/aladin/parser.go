package aladin

import (
	"divecomputer/pkg/bytesutil"
	"divecomputer/pkg/core"
)

// Parser decodes one Aladin dive blob, as assembled by Session.extractDives:
// an 18-byte fixed header (3-byte serial, 1-byte model, 12-byte logbook
// entry, 2-byte little-endian profile length) followed by that many bytes of
// raw profile data.
//
// No Aladin-specific parser source exists anywhere in the reference corpus
// (only the device driver, src/uwatec_aladin.c, which stops at handing the
// caller a raw blob plus its 4-byte timestamp/fingerprint). The logbook
// date/time field layout and the profile sample encoding below are this
// implementation's own design, built on the generic parser contract and
// styled after the BCD date conventions bytesutil.BCD documents from the
// Oceanic family headers — not a transcription of a specific vendor file.
const (
	diveHeaderSize = 18

	logbookOffDay    = 4
	logbookOffMonth  = 5
	logbookOffYear   = 6
	logbookOffHour   = 7
	logbookOffMinute = 8
	logbookOffTime   = 9 // BE16, dive duration in minutes
)

// sampleIntervalSeconds is the fixed sampling period early Aladin models use
// for their profile ring (a constant of the format, not configurable).
const sampleIntervalSeconds = 4

// Parser implements core.Parser for Aladin dive blobs.
type Parser struct {
	info core.DeviceInfo
	data []byte

	cached   bool
	divetime int
	maxdepth float64
}

var _ core.Parser = (*Parser)(nil)

// NewParser constructs an Aladin parser bound to no blob; call SetData
// before any other method.
func NewParser(model int, info core.DeviceInfo) (*Parser, core.Status) {
	return &Parser{info: info}, core.StatusSuccess
}

// SetData implements core.Parser.
func (p *Parser) SetData(blob []byte) core.Status {
	if len(blob) < diveHeaderSize {
		return core.StatusDataFormat
	}
	p.data = blob
	p.cached = false
	return core.StatusSuccess
}

// GetDateTime implements core.Parser, decoding the BCD day/month/year/
// hour/minute fields from the dive's logbook header.
func (p *Parser) GetDateTime() (core.ParsedDateTime, core.Status) {
	if len(p.data) < diveHeaderSize {
		return core.ParsedDateTime{}, core.StatusDataFormat
	}
	return core.ParsedDateTime{
		Year:   2000 + bytesutil.BCD(p.data[logbookOffYear]),
		Month:  bytesutil.BCD(p.data[logbookOffMonth]),
		Day:    bytesutil.BCD(p.data[logbookOffDay]),
		Hour:   bytesutil.BCD(p.data[logbookOffHour]),
		Minute: bytesutil.BCD(p.data[logbookOffMinute]),
	}, core.StatusSuccess
}

func (p *Parser) cache() core.Status {
	if p.cached {
		return core.StatusSuccess
	}

	p.divetime = 0
	p.maxdepth = 0
	status := p.sampleLoop(func(s core.Sample) {
		switch s.Kind {
		case core.SampleTime:
			p.divetime = s.TimeOffset
		case core.SampleDepth:
			if s.Depth > p.maxdepth {
				p.maxdepth = s.Depth
			}
		}
	})
	if !status.Succeeded() {
		return status
	}

	p.cached = true
	return core.StatusSuccess
}

// GetField implements core.Parser. Aladin dives carry no gas-mix table; the
// single implied mix is compressed air.
func (p *Parser) GetField(kind core.FieldKind, index int) (any, core.Status) {
	switch kind {
	case core.FieldDiveTime:
		if status := p.cache(); !status.Succeeded() {
			return nil, status
		}
		return p.divetime, core.StatusSuccess
	case core.FieldMaxDepth:
		if status := p.cache(); !status.Succeeded() {
			return nil, status
		}
		return p.maxdepth, core.StatusSuccess
	case core.FieldGasMixCount:
		return 1, core.StatusSuccess
	case core.FieldGasMix:
		if index != 0 {
			return nil, core.StatusInvalidArgs
		}
		return core.GasMix{Oxygen: 0.21, Nitrogen: 0.79, Helium: 0}, core.StatusSuccess
	case core.FieldDiveMode:
		return core.ModeOpenCircuit, core.StatusSuccess
	default:
		return nil, core.StatusUnsupported
	}
}

// SamplesForeach implements core.Parser.
func (p *Parser) SamplesForeach(cb core.SampleCallback) core.Status {
	return p.sampleLoop(cb)
}

// sampleLoop decodes the dive's profile bytes as a differential depth
// stream: each byte 0x00-0xFD is a signed delta (in decimetres) applied to
// the running depth, 0xFE escapes to the following 2-byte little-endian
// absolute depth (in decimetres), and the loop runs to the end of the
// profile slice (the terminating 0xFF marker is consumed by
// Session.extractDives and never appears in a bound blob).
func (p *Parser) sampleLoop(cb core.SampleCallback) core.Status {
	if len(p.data) < diveHeaderSize {
		return core.StatusDataFormat
	}
	profile := p.data[diveHeaderSize:]

	t := 0
	depthDm := 0
	i := 0
	for i < len(profile) {
		cb(core.Sample{Kind: core.SampleTime, TimeOffset: t})

		b := profile[i]
		switch {
		case b == 0xFE:
			if i+2 >= len(profile) {
				return core.StatusDataFormat
			}
			depthDm = int(bytesutil.U16LE(profile[i+1 : i+3]))
			i += 3
		default:
			depthDm += int(int8(b))
			if depthDm < 0 {
				depthDm = 0
			}
			i++
		}

		cb(core.Sample{Kind: core.SampleDepth, TimeOffset: t, Depth: float64(depthDm) / 10.0})
		t += sampleIntervalSeconds
	}

	return core.StatusSuccess
}
