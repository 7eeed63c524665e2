// Package shred implements the fixed-size block-fragment framing, signing
// and validation used to distribute block data over Turbine.
package shred

import (
	"encoding/binary"

	"github.com/slonana-labs/validator-core/internal/types"
)

// MaxShredSize is the hard ceiling on a shred's total wire size.
const MaxShredSize = 1280

// HeaderSize is the packed, little-endian, unpadded header layout:
// signature(64) + variant(1) + slot(8) + index(4) + version(2) + fec_set_index(2).
const HeaderSize = 64 + 1 + 8 + 4 + 2 + 2

// Variant distinguishes data shreds from coding (FEC) shreds via its low bit.
type Variant uint8

const (
	VariantData   Variant = 0
	VariantCoding Variant = 1
)

// SignatureVerifier is the external collaborator C6 consumes for signing and
// verification; production use delegates to Ed25519 or equivalent.
type SignatureVerifier interface {
	Sign(message []byte, privateKey []byte) types.Signature
	Verify(message []byte, sig types.Signature, publicKey types.PublicKey) bool
}

// Shred is one fixed-size block fragment.
type Shred struct {
	Signature   types.Signature
	Variant     Variant
	Slot        types.Slot
	Index       uint32
	Version     uint16
	FECSetIndex uint16
	Payload     []byte
}

// Type returns VariantData or VariantCoding per variant&1.
func (s Shred) Type() Variant { return Variant(uint8(s.Variant) & 1) }

// Size is the total wire size of the shred.
func (s Shred) Size() int { return HeaderSize + len(s.Payload) }

// Validate checks the structural invariants from spec.md §4.6: total size
// within bound and version non-zero.
func (s Shred) Validate() error {
	if s.Size() > MaxShredSize {
		return types.NewError(types.KindInvalidInput, "shred: total size exceeds 1280 bytes", nil)
	}
	if s.Version == 0 {
		return types.NewError(types.KindInvalidInput, "shred: version must be non-zero", nil)
	}
	return nil
}

// signedRange returns the header bytes (excluding the signature field)
// followed by the payload — the exact byte range the signature covers.
func (s Shred) signedRange() []byte {
	buf := make([]byte, HeaderSize-64+len(s.Payload))
	buf[0] = uint8(s.Variant)
	binary.LittleEndian.PutUint64(buf[1:9], uint64(s.Slot))
	binary.LittleEndian.PutUint32(buf[9:13], s.Index)
	binary.LittleEndian.PutUint16(buf[13:15], s.Version)
	binary.LittleEndian.PutUint16(buf[15:17], s.FECSetIndex)
	copy(buf[17:], s.Payload)
	return buf
}

// Sign computes and stores the shred's signature over signedRange().
func (s *Shred) Sign(sv SignatureVerifier, privateKey []byte) {
	s.Signature = sv.Sign(s.signedRange(), privateKey)
}

// VerifySignature verifies the shred's signature against publicKey.
func (s Shred) VerifySignature(sv SignatureVerifier, publicKey types.PublicKey) bool {
	return sv.Verify(s.signedRange(), s.Signature, publicKey)
}

// NewData constructs a data shred with the given identity fields and
// payload, truncated to fit MaxShredSize if necessary.
func NewData(slot types.Slot, index uint32, version uint16, fecSetIndex uint16, payload []byte) Shred {
	maxPayload := MaxShredSize - HeaderSize
	if len(payload) > maxPayload {
		payload = payload[:maxPayload]
	}
	return Shred{
		Variant:     VariantData,
		Slot:        slot,
		Index:       index,
		Version:     version,
		FECSetIndex: fecSetIndex,
		Payload:     append([]byte(nil), payload...),
	}
}

// Serialize packs the shred into its wire representation.
func (s Shred) Serialize() []byte {
	buf := make([]byte, HeaderSize+len(s.Payload))
	copy(buf[0:64], s.Signature[:])
	buf[64] = uint8(s.Variant)
	binary.LittleEndian.PutUint64(buf[65:73], uint64(s.Slot))
	binary.LittleEndian.PutUint32(buf[73:77], s.Index)
	binary.LittleEndian.PutUint16(buf[77:79], s.Version)
	binary.LittleEndian.PutUint16(buf[79:81], s.FECSetIndex)
	copy(buf[81:], s.Payload)
	return buf
}

// Deserialize unpacks a wire-format shred.
func Deserialize(data []byte) (Shred, error) {
	if len(data) < HeaderSize {
		return Shred{}, types.NewError(types.KindInvalidInput, "shred: truncated header", nil)
	}
	if len(data) > MaxShredSize {
		return Shred{}, types.NewError(types.KindInvalidInput, "shred: total size exceeds 1280 bytes", nil)
	}
	var s Shred
	copy(s.Signature[:], data[0:64])
	s.Variant = Variant(data[64])
	s.Slot = types.Slot(binary.LittleEndian.Uint64(data[65:73]))
	s.Index = binary.LittleEndian.Uint32(data[73:77])
	s.Version = binary.LittleEndian.Uint16(data[77:79])
	s.FECSetIndex = binary.LittleEndian.Uint16(data[79:81])
	s.Payload = append([]byte(nil), data[81:]...)
	return s, nil
}
