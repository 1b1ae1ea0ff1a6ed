package eventlog

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - plog/m           (log metadata: last assigned ordinal)
// - plog/e/{seq_be8} (event records)

var (
	metaKey     = []byte("plog/m")
	entryPrefix = []byte("plog/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyMeta returns the log metadata key.
func KeyMeta() []byte { return metaKey }

// KeyEntry builds an event record key with a big-endian ordinal for proper ordering.
func KeyEntry(seq uint64) []byte {
	k := make([]byte, 0, len(entryPrefix)+8)
	k = append(k, entryPrefix...)
	k = appendBE8(k, seq)
	return k
}

// entrySeq extracts the ordinal from an entry key.
func entrySeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
