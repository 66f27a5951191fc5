package firmware_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divecomputer/pkg/firmware"
)

func syntheticImage() []byte {
	data := make([]byte, firmware.SizeOSTC3)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func TestOSTC3RoundTrip(t *testing.T) {
	iv := bytes.Repeat([]byte{0xAB}, 16)
	original := syntheticImage()

	var buf bytes.Buffer
	require.NoError(t, firmware.EncodeOSTC3(&buf, iv, original))

	decoded, err := firmware.DecodeOSTC3(&buf)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestOSTC3BadChecksum(t *testing.T) {
	iv := bytes.Repeat([]byte{0x01}, 16)
	original := syntheticImage()

	var buf bytes.Buffer
	require.NoError(t, firmware.EncodeOSTC3(&buf, iv, original))

	corrupted := buf.Bytes()
	// Flip one hex digit of the first data record's payload (well past
	// the ":AAAAAA" start-code/address prefix) to a different, still
	// valid, hex digit. This perturbs the decrypted plaintext without
	// producing an invalid hex record.
	pos := bytes.IndexByte(corrupted, '\n') + 1 + 7 // skip IV line + ":AAAAAA"
	if corrupted[pos] == '0' {
		corrupted[pos] = '1'
	} else {
		corrupted[pos] = '0'
	}

	_, err := firmware.DecodeOSTC3(bytes.NewReader(corrupted))
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestOSTC3BadAddress(t *testing.T) {
	malformed := ":000001" + string(bytes.Repeat([]byte("00"), 16))
	_, err := firmware.DecodeOSTC3(bytes.NewReader([]byte(malformed)))
	assert.Error(t, err)
}
