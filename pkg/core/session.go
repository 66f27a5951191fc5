package core

// DiveBlob is the opaque, family-specific byte sequence for one dive,
// handed to the caller's DiveCallback. Its first bytes contain a
// fingerprint region at a family-dependent offset and length.
type DiveBlob []byte

// DiveCallback is invoked once per dive, newest-first, during
// Session.Foreach. Fingerprint holds the bytes of the blob's fingerprint
// region; depending on the family it is a slice into Blob (OSTC) or a copy
// (Aladin, Suunto). Returning false stops the walk early with
// StatusSuccess.
type DiveCallback func(blob DiveBlob, fingerprint Fingerprint) bool

// Session is the generic contract every family-specific device session
// implements: set a starting fingerprint, walk the device's dive log
// newest-first, and close. One interface, one concrete struct per family,
// selected by FamilyTag through pkg/dispatch.
type Session interface {
	// SetFingerprint sets the newest-known fingerprint; an empty slice
	// clears it. Returns StatusInvalidArgs if len(fp) doesn't match the
	// family's fixed fingerprint size.
	SetFingerprint(fp Fingerprint) Status

	// Foreach negotiates the session, enumerates the device's dive log,
	// and invokes cb once per dive not yet seen (per the fingerprint),
	// newest first, until exhaustion, a fingerprint match, or cb
	// returning false.
	Foreach(ctx *Context, cb DiveCallback) Status

	// Stats returns a snapshot of this session's transfer counters.
	Stats() StatsSnapshot

	// Close releases any resources the session owns, including the
	// underlying ByteChannel, which every family closes unconditionally;
	// there is no option for the caller to retain the channel. Runs its
	// protocol's best-effort EXIT even after a cancellation.
	Close() Status
}

// ClockSetter is implemented by families whose protocol supports writing
// the device's clock.
type ClockSetter interface {
	SetClock(dt ParsedDateTime) Status
}

// TextDisplayer is implemented by families that can push text to an
// on-device display.
type TextDisplayer interface {
	DisplayText(s string) Status
	CustomText(s string) Status
}

// ConfigStore is implemented by families exposing a configuration page
// read/write/reset surface.
type ConfigStore interface {
	ConfigRead(slot int) ([]byte, Status)
	ConfigWrite(slot int, data []byte) Status
	ConfigReset() Status
}

// FirmwareUpdater is implemented by families with a service-mode firmware
// upgrade path.
type FirmwareUpdater interface {
	FirmwareUpdate(path string) Status
}

// MaxDepthResetter is implemented by families that can clear a
// remembered maximum-depth record on the device.
type MaxDepthResetter interface {
	ResetMaxDepth() Status
}

// Parser is the generic contract every family-specific blob decoder
// implements: bind a blob, answer typed field queries, and stream samples
// in time order.
type Parser interface {
	// SetData binds a new input blob, invalidating any cached header or
	// profile summaries from a previous blob.
	SetData(blob []byte) Status

	// GetDateTime decodes the dive's start time.
	GetDateTime() (ParsedDateTime, Status)

	// GetField answers a typed scalar/struct query. index is used for
	// indexed kinds (FieldGasMix, FieldTank, FieldString) and ignored
	// otherwise.
	GetField(kind FieldKind, index int) (any, Status)

	// SamplesForeach drives the family-specific decode loop, invoking cb
	// once per emitted sample in time order.
	SamplesForeach(cb SampleCallback) Status
}
