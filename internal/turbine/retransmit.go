package turbine

import (
	"github.com/cespare/xxhash/v2"
)

// DefaultMaxRetransmitPeers is the default fan-out cap R for the
// retransmit-peer hash mix.
const DefaultMaxRetransmitPeers = 4

func nodeHash(n Node) uint64 {
	buf := make([]byte, 0, 32+len(n.Address)+2)
	buf = append(buf, n.Pubkey[:]...)
	buf = append(buf, n.Address...)
	buf = append(buf, byte(n.Port), byte(n.Port>>8))
	return xxhash.Sum64(buf)
}

// RetransmitPeers returns i's retransmit peers per the hash-mix rule:
// scanning every other index j in ascending order, include j iff
// (hash(node_i) xor hash(node_j)) mod N < R, stopping once R peers are
// collected. Kept non-uniform for determinism parity with the reference
// selection rule rather than substituted with a uniform sample.
func (t *Tree) RetransmitPeers(i int, maxPeers int) []Node {
	n := t.Len()
	self, ok := t.NodeAt(i)
	if !ok || n <= 1 {
		return nil
	}
	hi := nodeHash(self)
	var out []Node
	for j := 0; j < n && len(out) < maxPeers; j++ {
		if j == i {
			continue
		}
		other, _ := t.NodeAt(j)
		if (hi^nodeHash(other))%uint64(n) < uint64(maxPeers) {
			out = append(out, other)
		}
	}
	return out
}
