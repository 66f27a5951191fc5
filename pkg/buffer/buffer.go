// Package buffer provides a dynamic growable byte buffer
// (clear/reserve/resize/append); the family sessions in this module do not
// import it and assemble their answers in plain slices. It is a thin,
// purpose-named wrapper over a []byte and append rather than a
// reimplementation: a plain growable byte slice is an ambient utility, not a
// concern any third-party library in the example corpus covers differently
// than the standard library already does idiomatically.
package buffer

// Buffer is a growable byte buffer. The zero value is ready to use.
type Buffer struct {
	data []byte
}

// Clear empties the buffer without releasing its backing array.
func (b *Buffer) Clear() {
	b.data = b.data[:0]
}

// Reserve ensures the buffer's backing array can hold at least n bytes
// without reallocating, without changing Len().
func (b *Buffer) Reserve(n int) {
	if cap(b.data) >= n {
		return
	}
	grown := make([]byte, len(b.data), n)
	copy(grown, b.data)
	b.data = grown
}

// Resize sets the buffer's length to n, zero-filling any newly exposed
// bytes and growing the backing array if needed.
func (b *Buffer) Resize(n int) {
	if n <= len(b.data) {
		b.data = b.data[:n]
		return
	}
	b.Reserve(n)
	old := len(b.data)
	b.data = b.data[:n]
	for i := old; i < n; i++ {
		b.data[i] = 0
	}
}

// Append appends p to the buffer, growing as needed.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Bytes returns the buffer's current contents. The returned slice aliases
// the buffer's backing array and is only valid until the next mutating
// call.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the buffer's current length.
func (b *Buffer) Len() int {
	return len(b.data)
}
