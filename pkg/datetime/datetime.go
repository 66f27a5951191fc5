// Package datetime converts device-encoded date/time fields into
// core.ParsedDateTime, including the epoch-completion heuristic three-bit-
// year Oceanic-family parsers need (libdivecomputer's oceanic_atom2_parser.c:
// dc_datetime_localfix). Ordinary full-year (BCD or binary) device
// timestamps need no heuristic and just build the struct directly via New.
package datetime

import "divecomputer/pkg/core"

// New builds a ParsedDateTime from fully-resolved fields, performing no
// interpretation. Use this for families that encode a complete year.
func New(year, month, day, hour, minute, second int) core.ParsedDateTime {
	return core.ParsedDateTime{
		Year: year, Month: month, Day: day,
		Hour: hour, Minute: minute, Second: second,
	}
}

// CompleteThreeBitYear resolves a low-digit year field (device encodes only
// year-mod-10, as with a single BCD digit) against hostYear, the
// caller-provided current year:
//
//	if device-year < 2010 and host-year >= 2010:
//	    device-year += (host-year - host-year-mod-10)
//	    if device-year-mod-10 > host-year-mod-10:
//	        device-year -= 10
//
// hostYear must be supplied by the caller (never read from the system
// clock internally) so the heuristic is deterministic and testable.
func CompleteThreeBitYear(deviceYear, hostYear int) int {
	if deviceYear >= 2010 || hostYear < 2010 {
		return deviceYear
	}

	hostDecade := hostYear - (hostYear % 10)
	completed := deviceYear + hostDecade
	// deviceYear here is the raw low digit (0-9), not a full year, so
	// deviceYear%10 == deviceYear; kept explicit for readability.
	if completed%10 > hostYear%10 {
		completed -= 10
	}
	return completed
}

// CompleteThreeBitYearDateTime applies CompleteThreeBitYear to dt.Year in
// place and returns the corrected value.
func CompleteThreeBitYearDateTime(dt core.ParsedDateTime, hostYear int) core.ParsedDateTime {
	dt.Year = CompleteThreeBitYear(dt.Year, hostYear)
	return dt
}
