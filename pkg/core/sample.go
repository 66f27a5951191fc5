package core

// SampleKind is the closed set of sample variants a parser's sample loop
// emits.
type SampleKind int

const (
	SampleTime SampleKind = iota
	SampleDepth
	SamplePressure
	SampleTemperature
	SampleEvent
	SampleRBT
	SampleHeartbeat
	SampleBearing
	SampleVendor
	SampleSetpoint
	SamplePPO2
	SampleCNS
	SampleDeco
	SampleGasMix
)

// DecoKind is the closed set of decompression-state variants a Deco sample
// carries.
type DecoKind int

const (
	DecoNDL DecoKind = iota
	DecoSafetyStop
	DecoStop
	DecoDeepStop
)

// EventKind enumerates the event types an Event sample can carry; families
// assign their own vendor-specific flags meaning within this envelope.
type EventKind int

const (
	EventNone EventKind = iota
	EventGasChange
	EventSurface
	EventDeepStop
	EventCeiling
	EventWorkload
	EventTransmitterLowBattery
	EventVendorSpecific
)

// Sample is one emission from a Parser's sample loop. TimeOffset is the
// seconds-since-dive-start this sample belongs to; the loop always emits a
// SampleTime sample before any other sample sharing that offset.
type Sample struct {
	Kind       SampleKind
	TimeOffset int

	// Depth, in metres.
	Depth float64

	// Pressure: TankIndex selects which tank (into the parser's tank
	// table), Value is in bar.
	TankIndex int
	Value     float64

	// Temperature, in Celsius.
	Temperature float64

	// Event.
	EventKind  EventKind
	EventFlags uint32
	EventValue int

	// GasMix: index into the parser's gas-mix table.
	GasMixIndex int

	// Deco.
	DecoKind       DecoKind
	DecoTime       int
	DecoDepth      float64

	// Vendor: Raw must reference the bound input blob without copying;
	// its lifetime is that blob's.
	VendorKind int
	Raw        []byte
}

// SampleCallback receives samples in emission order. Returning false is not
// part of the sample-loop contract (unlike the dive callback) — the loop
// always runs to completion once started.
type SampleCallback func(Sample)
