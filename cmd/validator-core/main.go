// Command validator-core wires fork choice, the banking pipeline, turbine
// broadcast, and the UDP transport into a single runnable demonstration of
// the validator core's data flow.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/slonana-labs/validator-core/internal/banking"
	"github.com/slonana-labs/validator-core/internal/connpool"
	"github.com/slonana-labs/validator-core/internal/fault"
	"github.com/slonana-labs/validator-core/internal/forkchoice"
	"github.com/slonana-labs/validator-core/internal/shred"
	"github.com/slonana-labs/validator-core/internal/telemetry"
	"github.com/slonana-labs/validator-core/internal/turbine"
	"github.com/slonana-labs/validator-core/internal/types"
	"github.com/slonana-labs/validator-core/internal/udp"
	"github.com/slonana-labs/validator-core/internal/validator"
)

func main() {
	var (
		listenAddr = flag.String("listen", "127.0.0.1:0", "UDP listen address for shred/packet traffic")
		runFor     = flag.Duration("run-for", 5*time.Second, "how long to run the demonstration pipeline before exiting")
		txCount    = flag.Int("tx-count", 1000, "number of synthetic transactions to submit")
		verbose    = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := telemetry.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log, *listenAddr, *runFor, *txCount); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log telemetry.Logger, listenAddr string, runFor time.Duration, txCount int) error {
	ctx, cancel := context.WithTimeout(ctx, runFor)
	defer cancel()

	self := mustIdentity()
	validators := validator.NewSet()
	validators.Upsert(self, 1000)

	genesisHash := types.Hash{}
	fc := forkchoice.New(genesisHash, 0, validators, forkchoice.DefaultParameters(), log.With("component", "forkchoice"))

	degradation := fault.NewDegradationManager()
	breaker := fault.NewCircuitBreaker(fault.DefaultCircuitBreakerConfig())

	rm := banking.NewResourceMonitor(banking.DefaultResourceMonitorConfig(), banking.NewProcSampler(runtime.NumCPU()), banking.NewProcSampler(runtime.NumCPU()))
	go rm.Run(ctx)

	ledger := banking.NewMemLedger(0, genesisHash)
	params := banking.DefaultParameters()
	params.ValidatorIdentity = self
	pipeline := banking.New(params, banking.NoopExecutionEngine{}, ledger, rm, log.With("component", "banking"))

	committed := make(chan *banking.TransactionBatch, 256)
	pipeline.OnCompletion(func(b *banking.TransactionBatch) {
		select {
		case committed <- b:
		default:
		}
	})
	pipeline.Start(ctx)
	defer pipeline.Stop()

	var conn *net.UDPConn
	listenErr := fault.RetryWithBackoff(ctx, func() error {
		c, dialErr := net.ListenUDP("udp4", mustResolveUDP(listenAddr))
		if dialErr != nil {
			return dialErr
		}
		conn = c
		return nil
	}, fault.NewNetworkRetryPolicy())
	if listenErr != nil {
		return fmt.Errorf("listen udp: %w", listenErr)
	}
	defer conn.Close()

	sender := udp.NewSender(conn, udp.DefaultSenderConfig(), log.With("component", "udp-sender"))
	queue := udp.NewQueue(1024)
	go sender.Run(ctx, queue)

	connCache := connpool.New(connpool.DefaultConfig())
	daemons := connpool.NewDaemons(connCache, connpool.DefaultDaemonConfig(), log.With("component", "connpool"))
	go daemons.Run(ctx)

	localUDPAddr := conn.LocalAddr().(*net.UDPAddr)
	selfNode := turbine.Node{Pubkey: self, Address: localUDPAddr.IP.String(), Port: uint16(localUDPAddr.Port), StakeWeight: 1000}
	tree := turbine.Build(nil, selfNode, 8)
	broadcast := turbine.NewBroadcaster(tree, selfNode, turbine.DefaultParameters(), func(s shred.Shred, targets []turbine.Node) {
		data := s.Serialize()
		for _, t := range targets {
			queue.TryPush(udp.Packet{Data: data, DestAddr: net.ParseIP(t.Address), DestPort: t.Port, Timestamp: time.Now(), Priority: 200})
		}
	}, log.With("component", "turbine"))

	log.Info("validator core demonstration starting",
		"listen", conn.LocalAddr().String(),
		"tx_count", txCount,
		"run_for", runFor.String(),
	)

	for i := 0; i < txCount; i++ {
		var sig types.Signature
		_, _ = rand.Read(sig[:])
		tx := banking.NewTransaction([]byte(fmt.Sprintf("synthetic-tx-%d", i)), []types.Signature{sig})
		pipeline.SubmitTransaction(tx)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	batches := 0
	for {
		select {
		case <-ctx.Done():
			snap := pipeline.Snapshot()
			log.Info("shutting down",
				"batches_committed", batches,
				"transactions_processed", snap.TransactionsProcessed,
				"ledger_blocks", ledger.BlockCount(),
				"fork_choice_head", fc.GetHead().String(),
				"banking_mode", degradation.GetMode("banking").String(),
				"degradation_modes", fmt.Sprintf("%v", degradation.Snapshot()),
				"breaker_state", breaker.State().String(),
			)
			return nil
		case b := <-committed:
			batches++
			log.Debug("batch committed", "batch_id", b.BatchID, "trace_id", b.TraceID, "tx_count", len(b.Transactions))
		case <-ticker.C:
			broadcast.CleanupOlderThan(time.Now(), 30*time.Second)
			log.Info("progress", "batches", batches, "connections_cached", connCache.Len(), "tree_children", len(tree.ChildrenOf(selfNode)))
		}
	}
}

func mustIdentity() types.PublicKey {
	var pk types.PublicKey
	if _, err := rand.Read(pk[:]); err != nil {
		panic(err)
	}
	return pk
}

func mustResolveUDP(addr string) *net.UDPAddr {
	a, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		panic(err)
	}
	return a
}
