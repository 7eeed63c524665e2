package shred

import (
	"sort"

	"github.com/slonana-labs/validator-core/internal/types"
)

// MaxPayloadSize is the largest payload a single data shred can carry.
const MaxPayloadSize = MaxShredSize - HeaderSize

// Split breaks data into successive MaxPayloadSize-byte data shreds with
// contiguous indices starting at startIndex.
func Split(data []byte, slot types.Slot, startIndex uint32, version uint16, fecSetIndex uint16) []Shred {
	if len(data) == 0 {
		return nil
	}
	var shreds []Shred
	index := startIndex
	for offset := 0; offset < len(data); offset += MaxPayloadSize {
		end := offset + MaxPayloadSize
		if end > len(data) {
			end = len(data)
		}
		shreds = append(shreds, NewData(slot, index, version, fecSetIndex, data[offset:end]))
		index++
	}
	return shreds
}

// Reconstruct sorts shreds by index ascending and concatenates their
// payloads.
func Reconstruct(shreds []Shred) []byte {
	sorted := append([]Shred(nil), shreds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	var out []byte
	for _, s := range sorted {
		out = append(out, s.Payload...)
	}
	return out
}
