// Package turbine implements the stake-weighted distribution tree and
// broadcast/retransmit logic for shred propagation.
package turbine

import (
	"bytes"
	"sort"

	"github.com/slonana-labs/validator-core/internal/types"
)

// Node describes one turbine participant.
type Node struct {
	Pubkey      types.PublicKey
	Address     string
	Port        uint16
	StakeWeight uint64
}

func (n Node) key() nodeKey { return nodeKey{n.Pubkey, n.Address, n.Port} }

type nodeKey struct {
	pubkey  types.PublicKey
	address string
	port    uint16
}

// Tree is a stake-sorted node vector with a fanout-indexed parent/children
// relationship: parent of i>0 is floor((i-1)/F); children of i are indices
// F*i+1 .. F*i+F.
type Tree struct {
	nodes  []Node
	index  map[nodeKey]int
	fanout int
}

// Build sorts validators by stake descending (prepending self if absent)
// and constructs the index map.
func Build(validators []Node, self Node, fanout int) *Tree {
	nodes := append([]Node(nil), validators...)
	found := false
	for _, n := range nodes {
		if n.key() == self.key() {
			found = true
			break
		}
	}
	if !found {
		nodes = append(nodes, self)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].StakeWeight != nodes[j].StakeWeight {
			return nodes[i].StakeWeight > nodes[j].StakeWeight
		}
		return bytes.Compare(nodes[i].Pubkey[:], nodes[j].Pubkey[:]) < 0
	})
	idx := make(map[nodeKey]int, len(nodes))
	for i, n := range nodes {
		idx[n.key()] = i
	}
	return &Tree{nodes: nodes, index: idx, fanout: fanout}
}

// Len returns the number of tracked nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// IndexOf returns n's position in the tree, or -1 if unknown.
func (t *Tree) IndexOf(n Node) int {
	i, ok := t.index[n.key()]
	if !ok {
		return -1
	}
	return i
}

// NodeAt returns the node at index i.
func (t *Tree) NodeAt(i int) (Node, bool) {
	if i < 0 || i >= len(t.nodes) {
		return Node{}, false
	}
	return t.nodes[i], true
}

// Parent returns the parent index of i, or -1 if i is the root.
func (t *Tree) Parent(i int) int {
	if i <= 0 {
		return -1
	}
	return (i - 1) / t.fanout
}

// Children returns the child indices of i within bounds.
func (t *Tree) Children(i int) []int {
	var out []int
	start := t.fanout*i + 1
	for c := start; c < start+t.fanout; c++ {
		if c < len(t.nodes) {
			out = append(out, c)
		}
	}
	return out
}

// ChildrenOf returns the Node children of n.
func (t *Tree) ChildrenOf(n Node) []Node {
	i := t.IndexOf(n)
	if i < 0 {
		return nil
	}
	var out []Node
	for _, c := range t.Children(i) {
		out = append(out, t.nodes[c])
	}
	return out
}
