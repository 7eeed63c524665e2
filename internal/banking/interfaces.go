package banking

import "github.com/slonana-labs/validator-core/internal/types"

// Block is the unit committed to a LedgerSink.
type Block struct {
	Slot           types.Slot
	ParentHash     types.Hash
	BlockHash      types.Hash
	Timestamp      int64
	Transactions   []Transaction
	Validator      types.PublicKey
	BlockSignature types.Signature
}

// LedgerSink is the external collaborator C5 commits blocks to.
// store_block must be idempotent on identical (slot, block_hash) and atomic.
type LedgerSink interface {
	GetLatestSlot() types.Slot
	GetLatestBlockHash() types.Hash
	StoreBlock(b Block) error
}

// ExecutionEngine applies a transaction; effects outside ledger state are
// undefined and treated as a black box.
type ExecutionEngine interface {
	Execute(tx Transaction) error
}
