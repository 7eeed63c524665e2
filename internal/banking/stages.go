package banking

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/slonana-labs/validator-core/internal/telemetry"
	"github.com/slonana-labs/validator-core/internal/types"
)

// stageStats are the cumulative counters a stage reports to Statistics.
type stageStats struct {
	processed uint64
	failed    uint64
}

// runValidation applies tx.Verify() to every transaction in order, records
// a per-tx result vector, and returns whether every transaction passed.
//
// Per the Open Question #1 decision in SPEC_FULL.md: a batch with any
// failing transaction MUST NOT reach execution. The caller enforces this by
// checking the returned bool before forwarding the batch.
func runValidation(b *TransactionBatch) bool {
	results := make([]bool, len(b.Transactions))
	allOK := true
	for i, tx := range b.Transactions {
		ok := tx.Verify()
		results[i] = ok
		if !ok {
			allOK = false
		}
	}
	b.SetResults(results)
	return allOK
}

// runExecution applies every transaction via engine, in order, recording a
// fresh per-tx result vector. Returns whether every transaction succeeded.
func runExecution(b *TransactionBatch, engine ExecutionEngine) bool {
	results := make([]bool, len(b.Transactions))
	allOK := true
	for i, tx := range b.Transactions {
		err := engine.Execute(tx)
		ok := err == nil
		results[i] = ok
		if !ok {
			allOK = false
		}
	}
	b.SetResults(results)
	return allOK
}

// runCommitment builds and stores a ledger block for the batch's
// transactions, logging each committed transaction's base58 signature. If
// sink is nil the batch is treated as committed without persistence.
func runCommitment(b *TransactionBatch, sink LedgerSink, validatorID types.PublicKey, log telemetry.Logger) error {
	for _, tx := range b.Transactions {
		log.Debug("committing transaction", "signature", Base58Signature(tx), "trace_id", b.TraceID)
	}
	if sink == nil {
		return nil
	}
	slot := sink.GetLatestSlot() + 1
	parentHash := sink.GetLatestBlockHash()
	block := Block{
		Slot:         slot,
		ParentHash:   parentHash,
		Timestamp:    time.Now().Unix(),
		Transactions: append([]Transaction(nil), b.Transactions...),
		Validator:    validatorID,
	}
	block.BlockHash = hashBlockHeader(block)
	return sink.StoreBlock(block)
}

// hashBlockHeader computes SHA-256 over the block's header fields
// (excluding the hash itself), little-endian for fixed-size fields.
func hashBlockHeader(b Block) types.Hash {
	buf := make([]byte, 0, 8+32+8+8)
	var slotBuf [8]byte
	binary.LittleEndian.PutUint64(slotBuf[:], uint64(b.Slot))
	buf = append(buf, slotBuf[:]...)
	buf = append(buf, b.ParentHash[:]...)
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(b.Timestamp))
	buf = append(buf, tsBuf[:]...)
	for _, tx := range b.Transactions {
		buf = append(buf, tx.Hash[:]...)
	}
	return types.Hash(sha256.Sum256(buf))
}
