package eventlog

import (
	"encoding/binary"
	"hash/crc32"
)

// Record encoding: payload | crc32c(payload). The checksum guards against
// torn or corrupted values surfacing as silently mangled events.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord frames a payload with a trailing checksum.
func EncodeRecord(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, payload...)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc32.Checksum(payload, castagnoli))
	return append(out, crcb[:]...)
}

// DecodeRecord verifies the checksum and returns the payload.
func DecodeRecord(b []byte) ([]byte, bool) {
	if len(b) < 4 {
		return nil, false
	}
	payload := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(payload, castagnoli) != expect {
		return nil, false
	}
	return append([]byte(nil), payload...), true
}
