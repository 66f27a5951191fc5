package ostc

import (
	"divecomputer/pkg/bytesutil"
	"divecomputer/pkg/core"
)

// Byte layout of a profile blob this package's Session produces. No OSTC3
// parser source file was available to ground this against directly (only
// the device/session driver, hw_ostc3.c); the layout below is an original
// design built to satisfy the generic parser contract and follows the
// header+fixed-samplesize+loop shape every family parser in the pack
// shares (shearwater_predator_parser.c's headersize/samplesize split;
// oceanic_atom2_parser.c's gas-table dedup pattern).
const (
	headerSize = logbookSizeFull

	offDateTime  = 16 // 6 BCD bytes: year, month, day, hour, minute, second
	offInterval  = 22 // 1 byte, seconds
	offSurfPress = 23 // LE16, mbar
	offSalinity  = 25 // 0 = salt, 1 = fresh
	offGasCount  = 26 // 1 byte, number of valid entries in the gas table
	offGasTable  = 27 // gasCount * 2 bytes: (O2 percent, He percent)

	maxGasMixes = 10
	sampleSize  = 6 // gasIndexOrFF, eventByte, depthLE16(mbar), tempLE16(0.1C)
	noGasChange = 0xFF
)

type gasMix struct {
	oxygenPct, heliumPct int
}

// Parser implements core.Parser for OSTC-family dive profile blobs.
type Parser struct {
	model  int
	serial uint32

	data     []byte
	gasMixes []gasMix

	divetime int
	maxdepth float64
	cached   bool
}

var _ core.Parser = (*Parser)(nil)

// NewParser builds an OSTC Parser for the given model/serial context.
func NewParser(model int, info core.DeviceInfo) (*Parser, core.Status) {
	return &Parser{model: model, serial: info.Serial}, core.StatusSuccess
}

// SetData implements core.Parser.
func (p *Parser) SetData(blob []byte) core.Status {
	if len(blob) < headerSize {
		return core.StatusDataFormat
	}
	p.data = blob
	p.cached = false
	p.gasMixes = nil
	p.divetime = 0
	p.maxdepth = 0
	return core.StatusSuccess
}

// GetDateTime implements core.Parser.
func (p *Parser) GetDateTime() (core.ParsedDateTime, core.Status) {
	if p.data == nil {
		return core.ParsedDateTime{}, core.StatusInvalidArgs
	}
	d := p.data[offDateTime : offDateTime+6]
	return core.ParsedDateTime{
		Year:   2000 + bytesutil.BCD(d[0]),
		Month:  bytesutil.BCD(d[1]),
		Day:    bytesutil.BCD(d[2]),
		Hour:   bytesutil.BCD(d[3]),
		Minute: bytesutil.BCD(d[4]),
		Second: bytesutil.BCD(d[5]),
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
	p.gasMixes = make([]gasMix, count)
	for i := 0; i < count; i++ {
		off := offGasTable + i*2
		p.gasMixes[i] = gasMix{
			oxygenPct: int(p.data[off]),
			heliumPct: int(p.data[off+1]),
		}
	}

	var lastTime int
	var lastDepth float64
	status := p.sampleLoop(func(s core.Sample) {
		lastTime = s.TimeOffset
		if s.Kind == core.SampleDepth && s.Depth > lastDepth {
			lastDepth = s.Depth
		}
	})
	if !status.Succeeded() {
		return status
	}
	p.divetime = lastTime
	p.maxdepth = lastDepth
	p.cached = true
	return core.StatusSuccess
}

// GetField implements core.Parser.
func (p *Parser) GetField(kind core.FieldKind, index int) (any, core.Status) {
	if p.data == nil {
		return nil, core.StatusInvalidArgs
	}
	if status := p.cache(); !status.Succeeded() {
		return nil, status
	}

	switch kind {
	case core.FieldDiveTime:
		return p.divetime, core.StatusSuccess
	case core.FieldMaxDepth:
		return p.maxdepth, core.StatusSuccess
	case core.FieldGasMixCount:
		return len(p.gasMixes), core.StatusSuccess
	case core.FieldGasMix:
		if index < 0 || index >= len(p.gasMixes) {
			return nil, core.StatusInvalidArgs
		}
		return toCoreGasMix(p.gasMixes[index]), core.StatusSuccess
	case core.FieldSalinity:
		water := core.WaterSalt
		if p.data[offSalinity] == 1 {
			water = core.WaterFresh
		}
		return core.Salinity{Water: water, DensityKgM3: 1025}, core.StatusSuccess
	case core.FieldAtmospheric:
		mbar := bytesutil.U16LE(p.data[offSurfPress : offSurfPress+2])
		return float64(mbar) / 1000.0, core.StatusSuccess
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
	if p.data == nil {
		return core.StatusInvalidArgs
	}
	return p.sampleLoop(cb)
}

func (p *Parser) sampleLoop(cb core.SampleCallback) core.Status {
	interval := int(p.data[offInterval])
	if interval <= 0 {
		interval = 1
	}

	lastGasIndex := -1
	time := 0
	offset := headerSize
	for offset+sampleSize <= len(p.data) {
		rec := p.data[offset : offset+sampleSize]
		offset += sampleSize

		cb(core.Sample{Kind: core.SampleTime, TimeOffset: time})

		gasIdx := int(rec[0])
		if gasIdx != noGasChange && (time == 0 || gasIdx != lastGasIndex) {
			if gasIdx >= len(p.gasMixes) {
				return core.StatusDataFormat
			}
			cb(core.Sample{Kind: core.SampleGasMix, TimeOffset: time, GasMixIndex: gasIdx})
			lastGasIndex = gasIdx
		}

		depthMbar := bytesutil.U16LE(rec[2:4])
		depth := mbarToMetres(float64(depthMbar))
		cb(core.Sample{Kind: core.SampleDepth, TimeOffset: time, Depth: depth})

		tempRaw := int16(bytesutil.U16LE(rec[4:6]))
		cb(core.Sample{Kind: core.SampleTemperature, TimeOffset: time, Temperature: float64(tempRaw) / 10.0})

		time += interval
	}

	return core.StatusSuccess
}

// mbarToMetres converts a millibar depth reading to metres of sea water:
// (raw*1e-3 - p_atm) / (rho*g), rho*g defaulting to 1025 * 9.80665.
func mbarToMetres(raw float64) float64 {
	const pAtmBar = 1.0
	const rhoG = 1025 * core.StandardGravity
	bar := raw * 1e-3
	return (bar - pAtmBar) * 1e5 / rhoG
}
