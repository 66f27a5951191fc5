package core

import "math"

// FamilyTag identifies a device family. Dispatch (pkg/dispatch) uses it to
// select a concrete Session and Parser implementation.
type FamilyTag int

const (
	FamilyUnknown FamilyTag = iota
	FamilyHWOSTC
	FamilySuuntoVyper
	FamilyUwatecAladin
)

func (f FamilyTag) String() string {
	switch f {
	case FamilyHWOSTC:
		return "hw-ostc"
	case FamilySuuntoVyper:
		return "suunto-vyper"
	case FamilyUwatecAladin:
		return "uwatec-aladin"
	default:
		return "unknown"
	}
}

// DeviceInfo is emitted once per session, after the version/identity
// handshake.
type DeviceInfo struct {
	Model    uint16
	Firmware uint32
	Serial   uint32
}

// ClockSync anchors a device's free-running tick counter to host wall time,
// captured at the moment the session reads (or infers) the device clock.
// Parsers that emit dive timestamps as offsets from the device clock use
// this anchor to compute absolute start times.
type ClockSync struct {
	HostTicks   int64
	DeviceTicks uint32
}

// ParsedDateTime is a decoded dive start time, in local or device-local
// time depending on the family.
type ParsedDateTime struct {
	Year, Month, Day     int
	Hour, Minute, Second int
}

// Fingerprint is an opaque byte run, family-specific in length, taken from
// inside a dive's header. Session.Foreach stops walking the logbook the
// first time a freshly-read dive's fingerprint region matches it.
type Fingerprint []byte

// WaterType distinguishes fresh from salt water for the Salinity field.
type WaterType int

const (
	WaterFresh WaterType = iota
	WaterSalt
)

// Salinity carries the water density used to convert device pressure units
// into metres of depth.
type Salinity struct {
	Water      WaterType
	DensityKgM3 float64
}

// DefaultSalinity is the default density used when a family's GetField
// doesn't report a logged salinity: 1025 kg/m^3 (salt water) at standard
// gravity, i.e. rho*g = 1025 * 9.80665.
var DefaultSalinity = Salinity{Water: WaterSalt, DensityKgM3: 1025}

const StandardGravity = 9.80665

// GasMix is a breathing gas fraction triple; the three fractions must sum to
// 1.0 within a small epsilon.
type GasMix struct {
	Helium, Oxygen, Nitrogen float64
}

const gasMixEpsilon = 1e-9

// Valid reports whether the three fractions lie in [0,1] and sum to ~1.0.
func (g GasMix) Valid() bool {
	if g.Helium < 0 || g.Helium > 1 || g.Oxygen < 0 || g.Oxygen > 1 || g.Nitrogen < 0 || g.Nitrogen > 1 {
		return false
	}
	sum := g.Helium + g.Oxygen + g.Nitrogen
	return math.Abs(sum-1.0) <= gasMixEpsilon
}

// TankType distinguishes the unit system a tank's fields were recorded in.
type TankType int

const (
	TankNone TankType = iota
	TankMetric
	TankImperial
)

// UnknownGasMixIndex marks a Tank not associated with any gas-mix table
// entry.
const UnknownGasMixIndex = -1

// Tank is one cylinder's static configuration and recorded pressures, all
// converted to SI (litres, bar) regardless of the device's native units.
type Tank struct {
	GasMixIndex      int
	Type             TankType
	VolumeL          float64
	WorkPressureBar  float64
	BeginPressureBar float64
	EndPressureBar   float64
}

// FieldKind enumerates the typed scalar/struct queries Parser.GetField
// accepts.
type FieldKind int

const (
	FieldDiveTime FieldKind = iota
	FieldMaxDepth
	FieldAvgDepth
	FieldGasMixCount
	FieldGasMix
	FieldSalinity
	FieldAtmospheric
	FieldTempSurface
	FieldTempMin
	FieldTempMax
	FieldTankCount
	FieldTank
	FieldDiveMode
	FieldString
)

// DiveMode is the family-independent classification of what kind of dive
// was recorded.
type DiveMode int

const (
	ModeOpenCircuit DiveMode = iota
	ModeClosedCircuit
	ModeGauge
	ModeFreedive
)

// StringField is the (description, value) pair a family returns for
// FieldString queries; the set of valid indices is family-specific.
type StringField struct {
	Description string
	Value       string
}
