package banking

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/slonana-labs/validator-core/internal/telemetry"
	"github.com/slonana-labs/validator-core/internal/types"
)

// Parameters configures batch sizing, worker counts and adaptive thresholds.
type Parameters struct {
	BatchSize         int
	BatchTimeout      time.Duration
	ParallelStages    int
	MinBatchSize      int
	MaxBatchSize      int
	PriorityEnabled   bool
	ValidatorIdentity types.PublicKey
}

// DefaultParameters matches spec.md §6's configuration surface defaults.
func DefaultParameters() Parameters {
	return Parameters{
		BatchSize:      64,
		BatchTimeout:   100 * time.Millisecond,
		ParallelStages: 4,
		MinBatchSize:   16,
		MaxBatchSize:   256,
	}
}

// priorityItem is one entry in the intake priority heap.
type priorityItem struct {
	tx       Transaction
	priority uint8
	seq      uint64 // FIFO tie-break among equal priorities
}

type priorityQueue []*priorityItem

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x any)   { *q = append(*q, x.(*priorityItem)) }
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Stats is a plain-value snapshot of the pipeline's cumulative counters,
// taken explicitly rather than via a copy constructor on the live atomics
// per the redesign in spec.md §9.
type Stats struct {
	TransactionsProcessed uint64
	BatchesProcessed      uint64
	FailedTransactions    uint64
	FailedBatches         uint64
	AvgBatchTime          time.Duration
	TPS                   float64
	Pending               int
}

// CompletionCallback is invoked after commitment, success or failure.
type CompletionCallback func(b *TransactionBatch)

// Pipeline is the validate -> execute -> commit banking pipeline. Each
// stage owns an independent worker pool draining a bounded channel; the
// batch builder moves transactions from the intake queue into sealed
// batches submitted to validation.
type Pipeline struct {
	params Parameters
	engine ExecutionEngine
	sink   LedgerSink
	log    telemetry.Logger
	rm     *ResourceMonitor

	intakeMu    sync.Mutex
	intakeCond  *sync.Cond
	intakeFIFO  []Transaction
	intakeHeap  priorityQueue
	seqCounter  uint64
	currentSize int

	validationQueue chan *TransactionBatch
	executionQueue  chan *TransactionBatch
	commitQueue     chan *TransactionBatch

	onCompletion CompletionCallback

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	statsMu        sync.Mutex
	processed      uint64
	batchesDone    uint64
	failedTx       uint64
	failedBatches  uint64
	totalBatchTime time.Duration
	startedAt      time.Time

	committedIdemp map[uint64]struct{}
}

// New constructs a Pipeline. Call Start to launch its worker pools and
// batch builder.
func New(params Parameters, engine ExecutionEngine, sink LedgerSink, rm *ResourceMonitor, log telemetry.Logger) *Pipeline {
	if log == nil {
		log = telemetry.NoOp()
	}
	if params.ParallelStages <= 0 {
		params.ParallelStages = 1
	}
	p := &Pipeline{
		params:          params,
		engine:          engine,
		sink:            sink,
		log:             log,
		rm:              rm,
		currentSize:     params.BatchSize,
		validationQueue: make(chan *TransactionBatch, params.ParallelStages*4),
		executionQueue:  make(chan *TransactionBatch, params.ParallelStages*4),
		commitQueue:     make(chan *TransactionBatch, params.ParallelStages*4),
		stopCh:          make(chan struct{}),
		startedAt:       time.Now(),
		committedIdemp:  make(map[uint64]struct{}),
	}
	p.intakeCond = sync.NewCond(&p.intakeMu)
	return p
}

// OnCompletion registers a callback invoked after every batch's commitment
// (success or failure).
func (p *Pipeline) OnCompletion(cb CompletionCallback) { p.onCompletion = cb }

// Start launches the batch builder and each stage's worker pool.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.params.ParallelStages; i++ {
		p.wg.Add(3)
		go p.validationWorker(ctx)
		go p.executionWorker(ctx)
		go p.commitWorker(ctx)
	}
	p.wg.Add(1)
	go p.batchBuilder(ctx)
}

// Stop signals every worker to exit and waits for them to drain.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.intakeMu.Lock()
		p.intakeCond.Broadcast()
		p.intakeMu.Unlock()
	})
	p.wg.Wait()
}

// SubmitTransaction enqueues tx into the intake queue for batching.
func (p *Pipeline) SubmitTransaction(tx Transaction) {
	p.SubmitTransactionWithPriority(tx, 0)
}

// SubmitTransactionWithPriority enqueues tx with an explicit priority band.
func (p *Pipeline) SubmitTransactionWithPriority(tx Transaction, priority uint8) {
	p.intakeMu.Lock()
	defer p.intakeMu.Unlock()
	if p.params.PriorityEnabled {
		p.seqCounter++
		heap.Push(&p.intakeHeap, &priorityItem{tx: tx, priority: priority, seq: p.seqCounter})
	} else {
		p.intakeFIFO = append(p.intakeFIFO, tx)
	}
	p.intakeCond.Broadcast()
}

// SubmitBatch bypasses intake batching and pushes directly into validation.
func (p *Pipeline) SubmitBatch(b *TransactionBatch) {
	select {
	case p.validationQueue <- b:
	case <-p.stopCh:
	}
}

func (p *Pipeline) drainIntake(n int) []Transaction {
	p.intakeMu.Lock()
	defer p.intakeMu.Unlock()
	out := make([]Transaction, 0, n)
	if p.params.PriorityEnabled {
		for len(out) < n && p.intakeHeap.Len() > 0 {
			item := heap.Pop(&p.intakeHeap).(*priorityItem)
			out = append(out, item.tx)
		}
		return out
	}
	take := n
	if take > len(p.intakeFIFO) {
		take = len(p.intakeFIFO)
	}
	out = append(out, p.intakeFIFO[:take]...)
	p.intakeFIFO = p.intakeFIFO[take:]
	return out
}

// batchBuilder moves transactions from intake into sealed batches, one at a
// time, submitting a batch when it reaches the adaptive target size or its
// age reaches BatchTimeout.
func (p *Pipeline) batchBuilder(ctx context.Context) {
	defer p.wg.Done()
	current := NewBatch()
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if p.rm != nil && p.rm.Overloaded() {
				time.Sleep(50 * time.Millisecond)
			}
			target := p.adaptiveBatchSize()
			need := target - len(current.Transactions)
			if need > 0 {
				drained := p.drainIntake(need)
				current.Transactions = append(current.Transactions, drained...)
			}
			sealTimedOut := current.Age() >= p.params.BatchTimeout && len(current.Transactions) > 0
			sealFull := len(current.Transactions) >= target
			if sealFull || sealTimedOut {
				if len(current.Transactions) > 0 {
					p.seal(current)
				}
				current = NewBatch()
			}
		}
	}
}

// adaptiveBatchSize recomputes the suggested batch size per spec.md §4.5:
// halve on CPU > 80% (floor), double on CPU < 50% with low observed TPS
// (ceiling). No added hysteresis, per Open Question #4's decision.
func (p *Pipeline) adaptiveBatchSize() int {
	if p.rm == nil {
		return p.currentSize
	}
	cpu := p.rm.LastCPUPercent()
	size := p.currentSize
	if cpu > 80 {
		size /= 2
		if size < p.params.MinBatchSize {
			size = p.params.MinBatchSize
		}
	} else if cpu < 50 && p.TPS() < 1000 {
		size *= 2
		if size > p.params.MaxBatchSize {
			size = p.params.MaxBatchSize
		}
	}
	p.currentSize = size
	return size
}

func (p *Pipeline) seal(b *TransactionBatch) {
	select {
	case p.validationQueue <- b:
	case <-p.stopCh:
	}
}

func (p *Pipeline) validationWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case b := <-p.validationQueue:
			b.SetState(Processing)
			ok := runValidation(b)
			if !ok {
				p.failBatch(b)
				continue
			}
			select {
			case p.executionQueue <- b:
			case <-p.stopCh:
				return
			}
		}
	}
}

func (p *Pipeline) executionWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case b := <-p.executionQueue:
			ok := runExecution(b, p.engine)
			if !ok {
				p.failBatch(b)
				continue
			}
			select {
			case p.commitQueue <- b:
			case <-p.stopCh:
				return
			}
		}
	}
}

func (p *Pipeline) commitWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case b := <-p.commitQueue:
			p.commit(b)
		}
	}
}

func (p *Pipeline) commit(b *TransactionBatch) {
	err := runCommitment(b, p.sink, p.params.ValidatorIdentity, p.log)

	p.statsMu.Lock()
	if _, already := p.committedIdemp[b.BatchID]; !already {
		p.committedIdemp[b.BatchID] = struct{}{}
		p.totalBatchTime += b.Age()
		p.batchesDone++
		p.processed += uint64(len(b.Transactions))
	}
	p.statsMu.Unlock()
	if err != nil {
		b.SetState(Failed)
		p.log.Error("commit failed", "batch_id", b.BatchID, "error", err.Error())
	} else {
		b.SetState(Completed)
	}
	if p.onCompletion != nil {
		p.onCompletion(b)
	}
}

func (p *Pipeline) failBatch(b *TransactionBatch) {
	b.SetState(Failed)
	p.statsMu.Lock()
	p.failedBatches++
	for _, ok := range b.Results {
		if !ok {
			p.failedTx++
		}
	}
	p.statsMu.Unlock()
	if p.onCompletion != nil {
		p.onCompletion(b)
	}
}

// TPS returns transactions processed per second since Start.
func (p *Pipeline) TPS() float64 {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	uptime := time.Since(p.startedAt).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(p.processed) / uptime
}

// Snapshot returns a plain-value stats snapshot.
func (p *Pipeline) Snapshot() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	var avg time.Duration
	if p.batchesDone > 0 {
		avg = p.totalBatchTime / time.Duration(p.batchesDone)
	}
	uptime := time.Since(p.startedAt).Seconds()
	tps := 0.0
	if uptime > 0 {
		tps = float64(p.processed) / uptime
	}
	p.intakeMu.Lock()
	pending := len(p.intakeFIFO) + p.intakeHeap.Len()
	p.intakeMu.Unlock()
	return Stats{
		TransactionsProcessed: p.processed,
		BatchesProcessed:      p.batchesDone,
		FailedTransactions:    p.failedTx,
		FailedBatches:         p.failedBatches,
		AvgBatchTime:          avg,
		TPS:                   tps,
		Pending:               pending,
	}
}
