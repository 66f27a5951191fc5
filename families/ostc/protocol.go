// Package ostc implements the Pattern A command/echo/data/ready session and
// matching parser for the Heinrichs Weikamp OSTC family (OSTC3, OSTC Sport,
// HW Frog), grounded on libdivecomputer's hw_ostc3.c.
package ostc

// Command bytes, unchanged from the source's single-byte command set.
const (
	cmdBlockRead  = 0x20
	cmdBlockWrite = 0x30
	cmdErase      = 0x42
	sReady        = 0x4C
	ready         = 0x4D
	cmdUpgrade    = 0x50
	cmdHeader     = 0x61
	cmdClock      = 0x62
	cmdCustomText = 0x63
	cmdDive       = 0x66
	cmdIdentity   = 0x69
	cmdHardware   = 0x6A
	cmdDisplay    = 0x6E
	cmdCompact    = 0x6D
	cmdRead       = 0x72
	cmdWrite      = 0x77
	cmdReset      = 0x78
	cmdInit       = 0xBB
	cmdExit       = 0xFF
)

// Service-mode unlock sequence and acknowledgement.
var serviceUnlock = [4]byte{0xAA, 0xAB, 0xCD, 0xEF}
var serviceAck = [5]byte{0x4B, 0xAB, 0xCD, 0xEF, sReady}

// sessionState is the session's position in its state machine:
// Open -> Download or Open -> Service, Service <-> Service, any ->
// Rebooting (firmware upgrade only; not modeled as a state value since no
// further commands are legal afterward).
type sessionState int

const (
	stateDownload sessionState = iota
	stateService
)

// Logbook layout constants, direct from hw_ostc3.c's RB_LOGBOOK_SIZE_COMPACT/
// FULL and the hw_ostc3_logbook_compact/full field tables.
const (
	logbookSizeCompact = 16
	logbookSizeFull    = 256
	logbookCount       = 256

	logbookFieldProfileCompact     = 0
	logbookFieldFingerprintCompact = 3
	logbookFieldNumberCompact      = 13

	logbookFieldProfileFull     = 0
	logbookFieldFingerprintFull = 3
	logbookFieldNumberFull      = 13
	logbookFieldFirmwareFull    = 0x30

	fingerprintSize = 5

	identitySize = 4 // simplified test-fixture size; see DESIGN.md.

	sizeHardware = 1
	sizeConfig   = 4

	// firmwareArea is the flash offset the upgrade image is erased, written,
	// and verified at (FIRMWARE_AREA in hw_ostc3.c).
	firmwareArea = 0x3E0000
)

// Hardware model codes returned by cmdHardware, also used by the
// serial-number fallback in Session.identity when an older firmware doesn't
// support that command (hw_ostc3_device_foreach's model-fallback heuristic).
const (
	modelOSTC3 = 0x0A
	modelSport = 0x12
)

type logbookLayout struct {
	size        int
	profile     int
	fingerprint int
	number      int
}

var logbookCompact = logbookLayout{
	size:        logbookSizeCompact,
	profile:     logbookFieldProfileCompact,
	fingerprint: logbookFieldFingerprintCompact,
	number:      logbookFieldNumberCompact,
}

var logbookFull = logbookLayout{
	size:        logbookSizeFull,
	profile:     logbookFieldProfileFull,
	fingerprint: logbookFieldFingerprintFull,
	number:      logbookFieldNumberFull,
}
