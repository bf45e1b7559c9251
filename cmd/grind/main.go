// Package main provides a standalone vanity address grinder. It searches
// locally with no server and no backing store: useful on an air-gapped
// machine where the private key should never leave the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/vanity-grinder/internal/keygen"
	"github.com/vanity-grinder/internal/probability"
	"github.com/vanity-grinder/internal/worker"
)

func main() {
	var (
		pattern    = flag.String("pattern", "", "Base58 pattern to search for (required)")
		suffix     = flag.Bool("suffix", false, "Match the pattern at the end of the address")
		ignoreCase = flag.Bool("ignore-case", false, "Match without regard to letter case")
		threads    = flag.Int("threads", runtime.NumCPU(), "Number of search threads")
		cpuLimit   = flag.Int("cpu", 100, "CPU busy share per thread, in percent")
		timeout    = flag.Duration("timeout", 0, "Give up after this long (0 = search until found)")
	)
	flag.Parse()

	spec := keygen.PatternSpec{
		Pattern:       *pattern,
		IsSuffix:      *suffix,
		CaseSensitive: !*ignoreCase,
	}
	if err := spec.Validate(); err != nil {
		fmt.Printf("Invalid pattern: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}
	if *threads < 1 {
		fmt.Printf("Thread count must be at least 1, got %d\n", *threads)
		os.Exit(1)
	}
	if *cpuLimit < 1 || *cpuLimit > 100 {
		fmt.Printf("CPU limit must be between 1 and 100, got %d\n", *cpuLimit)
		os.Exit(1)
	}

	position := "prefix"
	if spec.IsSuffix {
		position = "suffix"
	}
	sensitivity := "case-sensitive"
	if !spec.CaseSensitive {
		sensitivity = "case-insensitive"
	}
	theoretical := probability.TheoreticalAttempts(len(spec.Pattern), spec.CaseSensitive)

	fmt.Printf("Searching for %s %q (%s) with %d thread(s) at %d%% CPU\n",
		position, spec.Pattern, sensitivity, *threads, *cpuLimit)
	fmt.Printf("Character space: %d, expected attempts: ~%.0f\n\n",
		probability.CharacterSpace(spec.CaseSensitive), theoretical)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	// Ctrl-C stops the search and still prints the tally
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-interrupt
		cancel()
	}()

	events := make(chan worker.Event, 256)
	for i := 0; i < *threads; i++ {
		w, err := worker.NewSearchWorker(&worker.SearchWorkerConfig{
			JobID:           "grind",
			WorkerID:        i,
			Spec:            spec,
			Events:          events,
			CPULimitPercent: *cpuLimit,
		})
		if err != nil {
			fmt.Printf("Failed to build search worker %d: %v\n", i, err)
			os.Exit(1)
		}
		go w.Run(ctx)
	}

	start := time.Now()
	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()

	var (
		attempts   int64
		live       = *threads
		address    string
		privateKey string
		faults     int
	)

	for live > 0 {
		select {
		case e := <-events:
			attempts += e.Attempts
			switch e.Kind {
			case worker.EventResult:
				if address == "" {
					address = e.Address
					privateKey = e.PrivateKey
					cancel()
				}
			case worker.EventFault:
				faults++
				fmt.Printf("Worker %d faulted: %v\n", e.WorkerID, e.Err)
				if faults >= *threads {
					cancel()
				}
			case worker.EventExit:
				live--
			}
		case <-progress.C:
			elapsed := time.Since(start)
			fmt.Printf("  %d attempts in %s (%.0f/sec)\n",
				attempts, elapsed.Round(time.Second), float64(attempts)/elapsed.Seconds())
		}
	}

	elapsed := time.Since(start)
	rate := float64(attempts) / elapsed.Seconds()

	if address == "" {
		fmt.Printf("\nNo match after %d attempts in %s (%.0f attempts/sec)\n",
			attempts, elapsed.Round(time.Millisecond), rate)
		os.Exit(1)
	}

	fmt.Printf("\n=== Match found ===\n")
	fmt.Printf("Address:     %s\n", address)
	fmt.Printf("Private key: %s\n", privateKey)
	fmt.Printf("Attempts:    %d in %s (%.0f/sec)\n", attempts, elapsed.Round(time.Millisecond), rate)
	fmt.Printf("Luck factor: %.1f (100 = exactly as expected)\n",
		probability.LuckFactor(attempts, theoretical))
}
