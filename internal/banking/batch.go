// Package banking implements the validate/execute/commit transaction
// pipeline with adaptive batching and a priority intake queue.
package banking

import (
	"crypto/sha256"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/slonana-labs/validator-core/internal/types"
)

// BatchState is the lifecycle of a TransactionBatch.
type BatchState int

const (
	Pending BatchState = iota
	Processing
	Completed
	Failed
)

func (s BatchState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var batchCounter uint64

func nextBatchID() uint64 { return atomic.AddUint64(&batchCounter, 1) }

// Transaction is a single submitted transaction.
type Transaction struct {
	Signatures []types.Signature
	Message    []byte
	Hash       types.Hash
}

// NewTransaction builds a Transaction with Hash = sha256(message).
func NewTransaction(message []byte, sigs []types.Signature) Transaction {
	return Transaction{
		Signatures: sigs,
		Message:    append([]byte(nil), message...),
		Hash:       types.Hash(sha256.Sum256(message)),
	}
}

// Verify reports hash match and signature-size sanity.
func (t Transaction) Verify() bool {
	if t.Hash != types.Hash(sha256.Sum256(t.Message)) {
		return false
	}
	if len(t.Signatures) == 0 {
		return false
	}
	for _, sig := range t.Signatures {
		if len(sig) != 64 {
			return false
		}
	}
	return true
}

// Base58Signature returns the base58 encoding of a transaction's first
// signature, isolated as a pure function per the teacher's logging
// conventions.
func Base58Signature(tx Transaction) string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return base58.Encode(tx.Signatures[0][:])
}

// TransactionBatch is a fixed ordered set of transactions moving through the
// pipeline as a single unit; it is immutable once Completed or Failed.
type TransactionBatch struct {
	mu sync.Mutex
	// BatchID is the process-local idempotency key used internally to guard
	// against double-commit; it resets on every restart.
	BatchID uint64
	// TraceID is a globally unique identifier safe to hand to external
	// systems (logs, RPC responses) across restarts, unlike BatchID.
	TraceID      string
	Transactions []Transaction
	CreationTime time.Time
	State        BatchState
	Results      []bool
}

// NewBatch returns an empty, Pending batch with a process-unique id and a
// globally unique trace id.
func NewBatch() *TransactionBatch {
	return &TransactionBatch{
		BatchID:      nextBatchID(),
		TraceID:      uuid.New().String(),
		CreationTime: time.Now(),
		State:        Pending,
	}
}

// Age reports how long the batch has existed.
func (b *TransactionBatch) Age() time.Duration {
	return time.Since(b.CreationTime)
}

// SetState transitions the batch's state under its lock.
func (b *TransactionBatch) SetState(s BatchState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.State = s
}

// GetState reads the batch's state under its lock.
func (b *TransactionBatch) GetState() BatchState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.State
}

// SetResults records the per-transaction pass/fail vector, index-aligned
// with Transactions.
func (b *TransactionBatch) SetResults(results []bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Results = results
}
