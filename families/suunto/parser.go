package suunto

import (
	"divecomputer/pkg/bytesutil"
	"divecomputer/pkg/core"
)

// Parser decodes one Suunto dive blob, as assembled by Session.Foreach: a
// 2-byte big-endian length prefix, a fixed header (BCD date/time, sample
// interval, gas table), and a stream of fixed-size sample records.
//
// No suunto_common2 parser source exists in the reference corpus (only
// src/suunto_d9.c, which stops at the packet transport). This layout
// mirrors the OSTC family's parser deliberately — both are original
// designs built on the same generic parser contract in the absence of a
// family-specific reference, so keeping their shape consistent is itself
// the grounding choice; see DESIGN.md.
const (
	blobPrefixSize = 2
	headerSize     = 16

	offDateTime  = 0
	offInterval  = 6
	offGasCount  = 7
	offGasTable  = 8
	maxGasMixes  = 4
	sampleSize   = 6
	noGasChange  = 0xFF
)

type gasMix struct {
	oxygenPct, heliumPct int
}

// Parser implements core.Parser for Suunto dive blobs.
type Parser struct {
	info     core.DeviceInfo
	data     []byte
	gasMixes []gasMix

	cached   bool
	divetime int
	maxdepth float64
}

var _ core.Parser = (*Parser)(nil)

// NewParser constructs a Suunto parser bound to no blob; call SetData
// before any other method.
func NewParser(model int, info core.DeviceInfo) (*Parser, core.Status) {
	return &Parser{info: info}, core.StatusSuccess
}

// SetData implements core.Parser.
func (p *Parser) SetData(blob []byte) core.Status {
	if len(blob) < blobPrefixSize+headerSize {
		return core.StatusDataFormat
	}
	p.data = blob[blobPrefixSize:]
	p.cached = false
	p.gasMixes = nil
	return core.StatusSuccess
}

// GetDateTime implements core.Parser.
func (p *Parser) GetDateTime() (core.ParsedDateTime, core.Status) {
	if len(p.data) < offDateTime+6 {
		return core.ParsedDateTime{}, core.StatusDataFormat
	}
	b := p.data[offDateTime : offDateTime+6]
	return core.ParsedDateTime{
		Year:   2000 + bytesutil.BCD(b[0]),
		Month:  bytesutil.BCD(b[1]),
		Day:    bytesutil.BCD(b[2]),
		Hour:   bytesutil.BCD(b[3]),
		Minute: bytesutil.BCD(b[4]),
		Second: bytesutil.BCD(b[5]),
	}, core.StatusSuccess
}

func (p *Parser) cache() core.Status {
	if p.cached {
		return core.StatusSuccess
	}

	count := int(p.data[offGasCount])
	if count > maxGasMixes {
		return core.StatusNoMemory
	}
	p.gasMixes = p.gasMixes[:0]
	for i := 0; i < count; i++ {
		off := offGasTable + i*2
		p.gasMixes = append(p.gasMixes, gasMix{
			oxygenPct: int(p.data[off]),
			heliumPct: int(p.data[off+1]),
		})
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

// GetField implements core.Parser.
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
		if status := p.cache(); !status.Succeeded() {
			return nil, status
		}
		return len(p.gasMixes), core.StatusSuccess
	case core.FieldGasMix:
		if status := p.cache(); !status.Succeeded() {
			return nil, status
		}
		if index < 0 || index >= len(p.gasMixes) {
			return nil, core.StatusInvalidArgs
		}
		return toCoreGasMix(p.gasMixes[index]), core.StatusSuccess
	case core.FieldDiveMode:
		return core.ModeOpenCircuit, core.StatusSuccess
	default:
		return nil, core.StatusUnsupported
	}
}

func toCoreGasMix(g gasMix) core.GasMix {
	o2 := float64(g.oxygenPct) / 100.0
	he := float64(g.heliumPct) / 100.0
	return core.GasMix{Oxygen: o2, Helium: he, Nitrogen: 1 - o2 - he}
}

// SamplesForeach implements core.Parser.
func (p *Parser) SamplesForeach(cb core.SampleCallback) core.Status {
	if status := p.cache(); !status.Succeeded() {
		return status
	}
	return p.sampleLoop(cb)
}

// sampleLoop decodes the fixed-size sample records following the header:
// one byte gas-mix index (noGasChange if unchanged), one reserved byte, a
// little-endian depth in millibar, and a little-endian signed temperature
// in tenths of a degree Celsius. A GasMix sample is emitted only on a
// change from the previously emitted index, or unconditionally at t=0.
func (p *Parser) sampleLoop(cb core.SampleCallback) core.Status {
	interval := int(p.data[offInterval])
	if interval <= 0 {
		interval = 1
	}

	samples := p.data[headerSize:]
	lastGasIndex := -1

	t := 0
	for i := 0; i+sampleSize <= len(samples); i += sampleSize {
		rec := samples[i : i+sampleSize]
		cb(core.Sample{Kind: core.SampleTime, TimeOffset: t})

		gasIdx := int(rec[0])
		if gasIdx != noGasChange {
			if gasIdx < 0 || gasIdx >= len(p.gasMixes) {
				return core.StatusDataFormat
			}
			if t == 0 || gasIdx != lastGasIndex {
				cb(core.Sample{Kind: core.SampleGasMix, TimeOffset: t, GasMixIndex: gasIdx})
				lastGasIndex = gasIdx
			}
		}

		depthMbar := float64(bytesutil.U16LE(rec[2:4]))
		cb(core.Sample{Kind: core.SampleDepth, TimeOffset: t, Depth: mbarToMetres(depthMbar)})

		tempRaw := int16(bytesutil.U16LE(rec[4:6]))
		cb(core.Sample{Kind: core.SampleTemperature, TimeOffset: t, Temperature: float64(tempRaw) / 10.0})

		t += interval
	}

	return core.StatusSuccess
}

// mbarToMetres converts an absolute millibar reading to metres of seawater,
// subtracting 1 bar of surface pressure and using the default salinity.
func mbarToMetres(raw float64) float64 {
	return (raw*1e-3 - 1.0) * 1e5 / (core.DefaultSalinity.DensityKgM3 * core.StandardGravity)
}
