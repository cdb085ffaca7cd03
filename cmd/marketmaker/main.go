// Command marketmaker runs the flip-order quoting engine for pegged
// stablecoin pairs on the tick-grid exchange.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/nuxxor/tempo-market-maker/internal/budget"
	"github.com/nuxxor/tempo-market-maker/internal/config"
	"github.com/nuxxor/tempo-market-maker/internal/dotenv"
	"github.com/nuxxor/tempo-market-maker/internal/engine"
	"github.com/nuxxor/tempo-market-maker/internal/eventlog"
	"github.com/nuxxor/tempo-market-maker/internal/exchange"
	"github.com/nuxxor/tempo-market-maker/internal/headwatch"
	"github.com/nuxxor/tempo-market-maker/internal/state"
	"github.com/nuxxor/tempo-market-maker/internal/tick"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("[fatal] %v", err)
	}
}

func run(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Printf("Shutting down...")
		cancel()
	}()

	pk, maker, err := loadKey(cfg)
	if err != nil {
		return err
	}

	events := eventlog.New(cfg.EventLogFile)
	defer func() {
		events.Emit(eventlog.Event{Event: "shutdown"})
		if err := events.Close(); err != nil {
			log.Printf("[warn] %v", err)
		}
	}()

	client, err := exchange.Dial(ctx, cfg.RPCURL, cfg.ExchangeAddr, pk)
	if err != nil {
		return err
	}
	defer client.Close()
	log.Printf("[cfg] chain=%s exchange=%s maker=%s pairs=%d spread=%dbps size=%s dry_run=%v",
		client.ChainID(), cfg.ExchangeAddr.Hex(), maker.Hex(), len(cfg.Pairs), cfg.SpreadBps, cfg.OrderSize, cfg.DryRun)

	store := state.NewStore(cfg.StateFile)
	st, fresh, err := store.Load(maker.Hex())
	if err != nil {
		return err
	}
	if fresh {
		log.Printf("[info] starting with fresh state at %s", cfg.StateFile)
	} else {
		log.Printf("[info] resumed state from %s (last block %d)", cfg.StateFile, st.LastBlock)
	}

	enforcer := &budget.Enforcer{
		MaxTxPerDay:       cfg.MaxTxPerDay,
		MaxCancelsPerHour: cfg.MaxCancelsPerHour,
	}

	var heads <-chan uint64
	if strings.TrimSpace(cfg.WSURL) != "" {
		h, errs := headwatch.Start(ctx, cfg.WSURL, headwatch.Options{})
		heads = h
		go func() {
			for err := range errs {
				log.Printf("[warn] headwatch: %v", err)
			}
		}()
	}

	eng := engine.New(engine.Config{
		Grid:            tick.Default,
		SpreadBps:       cfg.SpreadBps,
		OrderSize:       cfg.OrderSize,
		FlipBuffer:      cfg.FlipBuffer,
		PairCooldown:    cfg.PairCooldown,
		JitterMax:       cfg.JitterMax,
		PollInterval:    cfg.PollInterval,
		BudgetCooldown:  cfg.BudgetCooldown,
		FlipFailTimeout: cfg.FlipFailTimeout,
		Pairs:           enginePairs(cfg.Pairs),
		DryRun:          cfg.DryRun,
	}, client, maker, store, st, enforcer, events, heads)

	mode := "live"
	if cfg.DryRun {
		mode = "dry"
	}
	events.Emit(eventlog.Event{Event: "start", Mode: mode, Block: st.LastBlock})

	if cfg.CancelAll {
		log.Printf("[info] cancel-all requested; cancelling tracked orders and exiting")
		return eng.CancelAll(ctx)
	}
	return eng.Run(ctx)
}

// loadKey parses the configured private key. Dry-run without a key gets a
// fixed derived identity: the maker address must be stable across restarts
// or the state store treats every dry run as a different bot and resets.
func loadKey(cfg config.Config) (*ecdsa.PrivateKey, common.Address, error) {
	hexKey := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKeyHex), "0x"))
	if hexKey == "" {
		if !cfg.DryRun {
			return nil, common.Address{}, fmt.Errorf("private key missing")
		}
		pk, err := crypto.ToECDSA(crypto.Keccak256([]byte("marketmaker dry-run identity")))
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("derive dry-run key: %w", err)
		}
		addr := crypto.PubkeyToAddress(pk.PublicKey)
		log.Printf("[info] dry-run: using fixed maker identity %s", addr.Hex())
		return nil, addr, nil
	}
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("invalid private key: %w", err)
	}
	return pk, crypto.PubkeyToAddress(pk.PublicKey), nil
}

func enginePairs(pairs []config.Pair) []engine.Pair {
	out := make([]engine.Pair, len(pairs))
	for i, p := range pairs {
		out[i] = engine.Pair{Base: p.Base, Quote: p.Quote}
	}
	return out
}
