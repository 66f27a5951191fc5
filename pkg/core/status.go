// Package core holds the vendor-neutral data model shared by every device
// family: the Status taxonomy, the dive/event types, and the Session/Parser
// contracts that family packages implement.
package core

import "fmt"

// Status is the tagged result every core operation returns. Multi-stage
// operations collapse errors monotonically: once a status stops being
// StatusSuccess it sticks for the remainder of the operation.
type Status int

const (
	StatusSuccess Status = iota
	StatusDone
	StatusUnsupported
	StatusInvalidArgs
	StatusNoMemory
	StatusIO
	StatusTimeout
	StatusProtocol
	StatusDataFormat
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusDone:
		return "done"
	case StatusUnsupported:
		return "unsupported"
	case StatusInvalidArgs:
		return "invalid arguments"
	case StatusNoMemory:
		return "out of memory"
	case StatusIO:
		return "io error"
	case StatusTimeout:
		return "timeout"
	case StatusProtocol:
		return "protocol error"
	case StatusDataFormat:
		return "data format error"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Error lets a Status be returned and compared directly as a Go error, the
// way family code needs to `return StatusProtocol` without an intermediate
// wrapper type.
func (s Status) Error() string {
	return s.String()
}

// Succeeded reports whether s is StatusSuccess or StatusDone — the two
// non-error terminal states.
func (s Status) Succeeded() bool {
	return s == StatusSuccess || s == StatusDone
}

// Merge implements the "first non-success sticks" collapse rule: if cur is
// already a non-success status it is returned unchanged, otherwise next
// becomes the new accumulated status.
func Merge(cur, next Status) Status {
	if cur != StatusSuccess {
		return cur
	}
	return next
}
