// Package firmware implements the OSTC3-family encrypted firmware image
// codec: a hex-record text format wrapping AES-128-ECB-feedback ciphertext,
// grounded on libdivecomputer's hw_ostc3.c (hw_ostc3_firmware_readfile,
// hw_ostc3_firmware_checksum). The raw block cipher is delegated to the
// standard library's crypto/aes + crypto/cipher: AES-ECB itself is an
// already-available building block, not something worth reimplementing or
// wrapping in a domain-specific library.
package firmware

import (
	"bufio"
	"crypto/aes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"divecomputer/pkg/checksum"
)

// SizeOSTC3 is the size, in bytes, of an OSTC3 firmware image (120KB).
const SizeOSTC3 = 0x01E000

// BlockSizeOSTC3 is the device's flash page size used for erase/write
// chunking during an upload (not used by decode, kept for documentation
// parity with the source format).
const BlockSizeOSTC3 = 0x1000

// ostc3Key is the fixed AES key libdivecomputer's OSTC3/Frog driver uses to
// decrypt firmware images; it is a constant published by the vendor's own
// upgrade tool, not a secret derived from any device.
var ostc3Key = [16]byte{
	0xF1, 0xE9, 0xB0, 0x30,
	0x45, 0x6F, 0xBE, 0x55,
	0xFF, 0xE7, 0xF8, 0x31,
	0x13, 0x6C, 0xF2, 0xFE,
}

// DecodeOSTC3 reads an OSTC3 hex-record firmware image from r and returns
// the decrypted SizeOSTC3-byte image. It returns an error if a record's
// address doesn't match the expected running offset, if a hex digit is
// invalid, or if the trailing checksum doesn't match the decrypted
// plaintext's Fletcher32 checksum.
func DecodeOSTC3(r io.Reader) ([]byte, error) {
	block, err := aes.NewCipher(ostc3Key[:])
	if err != nil {
		return nil, fmt.Errorf("firmware: build AES cipher: %w", err)
	}

	reader := &hexRecordReader{br: bufio.NewReader(r)}

	iv, err := reader.readRecord(0, 16)
	if err != nil {
		return nil, fmt.Errorf("firmware: read IV record: %w", err)
	}

	key := make([]byte, 16)
	block.Encrypt(key, iv)

	data := make([]byte, SizeOSTC3)
	bytesRead := 16
	for addr := 0; addr < SizeOSTC3; addr += 16 {
		ciphertext, err := reader.readRecord(bytesRead, 16)
		if err != nil {
			return nil, fmt.Errorf("firmware: read data record at 0x%06x: %w", addr, err)
		}
		bytesRead += 16

		for i := 0; i < 16; i++ {
			data[addr+i] = ciphertext[i] ^ key[i]
		}

		block.Encrypt(key, ciphertext)
	}

	checksumBytes, err := reader.readRecord(bytesRead, 4)
	if err != nil {
		return nil, fmt.Errorf("firmware: read checksum record: %w", err)
	}

	expected := binary.LittleEndian.Uint32(checksumBytes)
	actual := checksum.Fletcher32(data)
	if expected != actual {
		return nil, fmt.Errorf("firmware: checksum mismatch: file says 0x%08x, computed 0x%08x", expected, actual)
	}

	return data, nil
}

// EncodeOSTC3 is the inverse of DecodeOSTC3: it encrypts data (which must
// be exactly SizeOSTC3 bytes) under a random-looking but caller-supplied iv
// and writes the hex-record file to w, for producing firmware images to
// feed back through the decoder in tests. Production firmware is built by
// the vendor's own tool; this exists to make DecodeOSTC3 round-trip
// testable without a real device-issued image on disk.
func EncodeOSTC3(w io.Writer, iv, data []byte) error {
	if len(iv) != 16 {
		return fmt.Errorf("firmware: iv must be 16 bytes, got %d", len(iv))
	}
	if len(data) != SizeOSTC3 {
		return fmt.Errorf("firmware: data must be %d bytes, got %d", SizeOSTC3, len(data))
	}

	block, err := aes.NewCipher(ostc3Key[:])
	if err != nil {
		return fmt.Errorf("firmware: build AES cipher: %w", err)
	}

	bw := bufio.NewWriter(w)
	if err := writeRecord(bw, 0, iv); err != nil {
		return err
	}

	key := make([]byte, 16)
	block.Encrypt(key, iv)

	addr := 16
	for off := 0; off < SizeOSTC3; off += 16 {
		plaintext := data[off : off+16]
		ciphertext := make([]byte, 16)
		for i := 0; i < 16; i++ {
			ciphertext[i] = plaintext[i] ^ key[i]
		}
		if err := writeRecord(bw, addr, ciphertext); err != nil {
			return err
		}
		addr += 16
		block.Encrypt(key, ciphertext)
	}

	sum := checksum.Fletcher32(data)
	sumBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(sumBytes, sum)
	if err := writeRecord(bw, addr, sumBytes); err != nil {
		return err
	}

	return bw.Flush()
}

func writeRecord(w *bufio.Writer, addr int, payload []byte) error {
	if _, err := fmt.Fprintf(w, ":%06X%s\n", addr, hex.EncodeToString(payload)); err != nil {
		return fmt.Errorf("firmware: write record: %w", err)
	}
	return nil
}

// hexRecordReader reads ':'-prefixed hex records from the firmware text
// format, skipping CR/LF between records.
type hexRecordReader struct {
	br *bufio.Reader
}

func (r *hexRecordReader) readRecord(expectedAddr, size int) ([]byte, error) {
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read start code: %w", err)
		}
		if b == ':' {
			break
		}
		if b != '\n' && b != '\r' {
			return nil, fmt.Errorf("unexpected character 0x%02x before start code", b)
		}
	}

	line := make([]byte, 6+size*2)
	if _, err := io.ReadFull(r.br, line); err != nil {
		return nil, fmt.Errorf("read record body: %w", err)
	}

	addrBytes, err := hex.DecodeString(string(line[:6]))
	if err != nil {
		return nil, fmt.Errorf("invalid address hex: %w", err)
	}
	addr := int(addrBytes[0])<<16 | int(addrBytes[1])<<8 | int(addrBytes[2])
	if addr != expectedAddr {
		return nil, fmt.Errorf("unexpected record address 0x%06x, want 0x%06x", addr, expectedAddr)
	}

	payload, err := hex.DecodeString(string(line[6:]))
	if err != nil {
		return nil, fmt.Errorf("invalid payload hex: %w", err)
	}

	return payload, nil
}
