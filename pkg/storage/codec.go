package storage

import (
	"encoding/binary"
	"encoding/json"
)

func encodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decodeJSON(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

func seqKey(prefix []byte, seq uint64) []byte {
	k := make([]byte, 0, len(prefix)+8)
	k = append(k, prefix...)
	var s [8]byte
	binary.BigEndian.PutUint64(s[:], seq)
	return append(k, s[:]...)
}
