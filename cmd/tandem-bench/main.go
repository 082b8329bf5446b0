package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-tandem/v1/ledger"
	"github.com/mirkobrombin/go-tandem/v1/taskpool"
	"github.com/mirkobrombin/go-tandem/v1/transfer"
)

var (
	accounts  = flag.Int("a", 8, "Number of accounts")
	workers   = flag.Int("c", 50, "Number of concurrent workers")
	transfers = flag.Int("n", 100000, "Total number of transfers")
	balance   = flag.Int64("b", 1_000_000, "Initial balance per account")
	strategy  = flag.String("s", "ordered", "Acquisition strategy: ordered, backoff, interruptible")
)

func parseStrategy(name string) (transfer.Strategy, error) {
	switch name {
	case "ordered":
		return transfer.StrategyOrdered, nil
	case "backoff":
		return transfer.StrategyBackoff, nil
	case "interruptible":
		return transfer.StrategyInterruptible, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", name)
	}
}

func main() {
	flag.Parse()

	strat, err := parseStrategy(*strategy)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Starting benchmark: %d transfers, %d workers, %d accounts, strategy=%s",
		*transfers, *workers, *accounts, strat)

	l := ledger.New()
	names := make([]string, *accounts)
	for i := range names {
		names[i] = fmt.Sprintf("acct-%03d", i)
		l.Add(ledger.NewAccount(names[i], *balance))
	}
	expected := int64(*accounts) * *balance

	e := transfer.New()
	pool := taskpool.New(int64(*workers))
	ctx := context.Background()

	var applied, failed atomic.Int64
	perWorker := *transfers / *workers

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *workers; i++ {
		seed := int64(i)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			h, err := pool.Submit(gctx, func(tctx context.Context) error {
				for j := 0; j < perWorker; j++ {
					from, _ := l.Get(names[rng.Intn(len(names))])
					to, _ := l.Get(names[rng.Intn(len(names))])
					if from == to {
						continue
					}
					if out := e.Execute(tctx, from, to, 1, strat); out.OK {
						applied.Add(1)
					} else {
						failed.Add(1)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return h.Await(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("benchmark failed: %v", err)
	}
	elapsed := time.Since(start)

	total := l.TotalBalance()
	throughput := float64(applied.Load()) / elapsed.Seconds()

	log.Printf("Finished in %v", elapsed)
	log.Printf("Applied: %d, Failed: %d", applied.Load(), failed.Load())
	log.Printf("Throughput: %.2f transfers/s", throughput)
	log.Printf("Total balance: %d (expected %d)", total, expected)
	if total != expected {
		log.Fatal("conservation violated")
	}
}
