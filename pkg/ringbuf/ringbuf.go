// Package ringbuf is the single source of truth for circular address-space
// arithmetic over a device's flash: the logbook and profile regions are
// each a half-open interval [begin, end) in device address space, and every
// "how many bytes does this dive occupy" computation goes through Distance
// and Increment rather than ad-hoc modulus arithmetic in family code.
//
// Grounded on libdivecomputer's src/ringbuffer.c (ringbuffer_distance,
// ringbuffer_increment), referenced by every ring-buffer family protocol
// (hw_ostc3.c, uwatec_aladin.c, suunto_d9.c).
package ringbuf

import "divecomputer/pkg/core"

// Region is a half-open address interval [Begin, End) in device address
// space.
type Region struct {
	Begin, End uint32
}

// Size returns End - Begin, the total number of addressable bytes in the
// region.
func (r Region) Size() uint32 {
	return r.End - r.Begin
}

// Contains reports whether a lies in [Begin, End).
func (r Region) Contains(a uint32) bool {
	return a >= r.Begin && a < r.End
}

// Validate checks that both endpoints of a proposed [a, b) window lie
// within r, returning StatusDataFormat if not.
func (r Region) Validate(a, b uint32) core.Status {
	if !r.Contains(a) || !r.Contains(b) {
		return core.StatusDataFormat
	}
	return core.StatusSuccess
}

// Distance computes the forward ring distance from a to b within r:
// ((b - a) mod N) + inclusive, where N = r.Size(). inclusive adds one more
// byte to count the endpoint itself (used when a count of "how many bytes
// including b" is wanted, e.g. reverse logbook walks).
//
// a and b are first rebased to region-local offsets before being subtracted,
// rather than subtracted as absolute uint32 addresses and reduced mod N
// afterwards: when b < a that raw subtraction wraps through 2^32, and
// 2^32 mod N is only 0 when N is a power of two, so for non-power-of-two
// region sizes (37-slot logbooks, 1536-byte profile rings) reducing the
// wrapped value mod N gives the wrong distance. Rebasing first keeps every
// intermediate value under 2*N, well clear of uint32 overflow.
func Distance(r Region, a, b uint32, inclusive bool) uint32 {
	n := r.Size()
	la := mod(a-r.Begin, n)
	lb := mod(b-r.Begin, n)
	d := mod(lb+n-la, n)
	if inclusive {
		d++
	}
	return d
}

// Increment advances a by n positions within r, wrapping modulo r.Size().
func Increment(r Region, a uint32, n uint32) uint32 {
	nSize := r.Size()
	return r.Begin + mod(mod(a-r.Begin, nSize)+n, nSize)
}

func mod(v, n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return v % n
}
