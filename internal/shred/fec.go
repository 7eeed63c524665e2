package shred

import "github.com/slonana-labs/validator-core/internal/types"

// FECSet groups the data and coding shreds that protect each other under one
// forward-error-correction set index.
type FECSet struct {
	SetIndex types.Slot
	Data     []Shred
	Coding   []Shred
}

// MissingIndices returns the data-shred indices in [0, expectedDataCount)
// absent from the set.
func (f *FECSet) MissingIndices(expectedDataCount uint32) []uint32 {
	have := make(map[uint32]struct{}, len(f.Data))
	for _, s := range f.Data {
		have[s.Index] = struct{}{}
	}
	var missing []uint32
	for i := uint32(0); i < expectedDataCount; i++ {
		if _, ok := have[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// Reconstructor recovers missing data shreds from coding shreds in a FEC
// set. The coding algorithm itself is out of scope; this interface only
// fixes the contract: idempotent, and producing shreds whose indices match
// the requested missing_indices.
type Reconstructor interface {
	Reconstruct(set FECSet, missingIndices []uint32) ([]Shred, error)
}

// AddCoding appends a coding shred to the set, validating type == CODING and
// a non-zero fec_set_index per spec.md §4.6.
func (f *FECSet) AddCoding(s Shred) error {
	if s.Type() != VariantCoding {
		return types.NewError(types.KindInvalidInput, "fec: shred is not a coding shred", nil)
	}
	if s.FECSetIndex == 0 {
		return types.NewError(types.KindInvalidInput, "fec: coding shred must carry a non-zero fec_set_index", nil)
	}
	f.Coding = append(f.Coding, s)
	return nil
}
