package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"divecomputer/pkg/buffer"
)

func TestBufferLifecycle(t *testing.T) {
	var b buffer.Buffer
	b.Append([]byte{1, 2, 3})
	assert.Equal(t, 3, b.Len())

	b.Resize(5)
	assert.Equal(t, []byte{1, 2, 3, 0, 0}, b.Bytes())

	b.Resize(2)
	assert.Equal(t, []byte{1, 2}, b.Bytes())

	b.Clear()
	assert.Equal(t, 0, b.Len())

	b.Reserve(64)
	b.Append([]byte{9})
	assert.Equal(t, []byte{9}, b.Bytes())
}
