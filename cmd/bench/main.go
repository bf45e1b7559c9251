// Package main provides a key-generation benchmark CLI. It grinds a
// (normally unreachable) pattern for a fixed duration and reports per-thread
// and aggregate throughput, batch latency statistics, and what the measured
// rate means for realistic patterns.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/vanity-grinder/internal/keygen"
	"github.com/vanity-grinder/internal/probability"
	"github.com/vanity-grinder/internal/worker"
)

// DefaultPattern is eight case-sensitive characters, a search space of 58^8.
// No benchmark run is long enough to match it, so throughput is measured
// over the full duration.
const DefaultPattern = "ZZZZZZZZ"

type threadReport struct {
	WorkerID       int     `json:"workerId"`
	Attempts       int64   `json:"attempts"`
	AttemptsPerSec float64 `json:"attemptsPerSec"`
}

type latencyReport struct {
	Batches  int     `json:"batches"`
	MinMs    float64 `json:"minMs"`
	AvgMs    float64 `json:"avgMs"`
	MedianMs float64 `json:"medianMs"`
	MaxMs    float64 `json:"maxMs"`
	StdevMs  float64 `json:"stdevMs"`
}

type benchReport struct {
	Pattern                   string         `json:"pattern"`
	CaseSensitive             bool           `json:"caseSensitive"`
	Threads                   int            `json:"threads"`
	CPULimitPercent           int            `json:"cpuLimitPercent"`
	BatchSize                 int            `json:"batchSize"`
	DurationSeconds           float64        `json:"durationSeconds"`
	TotalAttempts             int64          `json:"totalAttempts"`
	AttemptsPerSec            float64        `json:"attemptsPerSec"`
	PerThread                 []threadReport `json:"perThread"`
	BatchLatency              latencyReport  `json:"batchLatency"`
	TheoreticalAttempts       float64        `json:"theoreticalAttempts"`
	LuckFactor                float64        `json:"luckFactor"`
	EstimatedSecondsToMatch   float64        `json:"estimatedSecondsToMatch"`
	RecommendedTimeoutSeconds float64        `json:"recommendedTimeoutSeconds"`
	GeneratedAt               time.Time      `json:"generatedAt"`
}

func main() {
	var (
		duration   = flag.Duration("duration", 10*time.Second, "How long to run the benchmark")
		threads    = flag.Int("threads", runtime.NumCPU(), "Number of search threads")
		pattern    = flag.String("pattern", DefaultPattern, "Pattern to grind against")
		ignoreCase = flag.Bool("ignore-case", false, "Match without regard to letter case")
		cpuLimit   = flag.Int("cpu", 100, "CPU busy share per thread, in percent")
		batchSize  = flag.Int("batch", worker.DefaultBatchSize, "Attempts per batch between events")
		export     = flag.String("export", "", "Export results to a JSON file")
		quiet      = flag.Bool("quiet", false, "Suppress per-thread output")
	)
	flag.Parse()

	spec := keygen.PatternSpec{
		Pattern:       *pattern,
		IsSuffix:      false,
		CaseSensitive: !*ignoreCase,
	}
	if err := spec.Validate(); err != nil {
		fmt.Printf("Invalid pattern: %v\n", err)
		os.Exit(1)
	}
	if *threads < 1 || *cpuLimit < 1 || *cpuLimit > 100 || *duration <= 0 {
		fmt.Println("threads must be >= 1, cpu in [1,100], duration positive")
		os.Exit(1)
	}

	fmt.Printf("Benchmarking keypair generation: %d thread(s) at %d%% CPU for %s\n",
		*threads, *cpuLimit, *duration)
	fmt.Printf("Pattern %q, batch size %d\n\n", spec.Pattern, *batchSize)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	events := make(chan worker.Event, 256)
	launchedAt := time.Now()
	for i := 0; i < *threads; i++ {
		w, err := worker.NewSearchWorker(&worker.SearchWorkerConfig{
			JobID:           "bench",
			WorkerID:        i,
			Spec:            spec,
			Events:          events,
			BatchSize:       *batchSize,
			CPULimitPercent: *cpuLimit,
		})
		if err != nil {
			fmt.Printf("Failed to build search worker %d: %v\n", i, err)
			os.Exit(1)
		}
		go w.Run(ctx)
	}

	var (
		live         = *threads
		perThread    = make(map[int]int64)
		lastBatchAt  = make(map[int]time.Time)
		batchGaps    []time.Duration
		totalMatches int
	)
	for i := 0; i < *threads; i++ {
		lastBatchAt[i] = launchedAt
	}

	for live > 0 {
		e := <-events
		perThread[e.WorkerID] += e.Attempts

		switch e.Kind {
		case worker.EventProgress:
			now := time.Now()
			batchGaps = append(batchGaps, now.Sub(lastBatchAt[e.WorkerID]))
			lastBatchAt[e.WorkerID] = now
		case worker.EventResult:
			// A short pattern can actually match; the worker retires early
			totalMatches++
			if !*quiet {
				fmt.Printf("Worker %d found %s and retired\n", e.WorkerID, e.Address)
			}
		case worker.EventFault:
			fmt.Printf("Worker %d faulted: %v\n", e.WorkerID, e.Err)
		case worker.EventExit:
			live--
		}
	}

	elapsed := time.Since(launchedAt)

	var totalAttempts int64
	for _, n := range perThread {
		totalAttempts += n
	}
	rate := float64(totalAttempts) / elapsed.Seconds()
	theoretical := probability.TheoreticalAttempts(len(spec.Pattern), spec.CaseSensitive)

	// Anchor the timeout recommendation on the measured rate: the expected
	// time for a single-character pattern at this throughput.
	baseline := probability.EstimatedDuration(
		probability.TheoreticalAttempts(1, spec.CaseSensitive), rate)
	recommended := probability.RecommendedTimeout(len(spec.Pattern), spec.CaseSensitive, baseline, 1)

	report := benchReport{
		Pattern:                   spec.Pattern,
		CaseSensitive:             spec.CaseSensitive,
		Threads:                   *threads,
		CPULimitPercent:           *cpuLimit,
		BatchSize:                 *batchSize,
		DurationSeconds:           elapsed.Seconds(),
		TotalAttempts:             totalAttempts,
		AttemptsPerSec:            rate,
		BatchLatency:              latencyStats(batchGaps),
		TheoreticalAttempts:       theoretical,
		LuckFactor:                probability.LuckFactor(totalAttempts, theoretical),
		EstimatedSecondsToMatch:   probability.EstimatedDuration(theoretical, rate).Seconds(),
		RecommendedTimeoutSeconds: recommended.Seconds(),
		GeneratedAt:               time.Now().UTC(),
	}
	for id := 0; id < *threads; id++ {
		report.PerThread = append(report.PerThread, threadReport{
			WorkerID:       id,
			Attempts:       perThread[id],
			AttemptsPerSec: float64(perThread[id]) / elapsed.Seconds(),
		})
	}

	printReport(&report, totalMatches, *quiet)

	if *export != "" {
		data, err := json.MarshalIndent(&report, "", "  ")
		if err != nil {
			fmt.Printf("Failed to serialize results: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*export, data, 0644); err != nil {
			fmt.Printf("Failed to write %s: %v\n", *export, err)
			os.Exit(1)
		}
		fmt.Printf("\nResults exported to %s\n", *export)
	}
}

func printReport(r *benchReport, matches int, quiet bool) {
	fmt.Printf("=== Throughput ===\n")
	fmt.Printf("Total:     %d attempts in %.2fs\n", r.TotalAttempts, r.DurationSeconds)
	fmt.Printf("Rate:      %.0f attempts/sec (%.0f per thread)\n",
		r.AttemptsPerSec, r.AttemptsPerSec/float64(r.Threads))
	if matches > 0 {
		fmt.Printf("Matches:   %d (threads retired early, rate understates capacity)\n", matches)
	}

	if !quiet {
		fmt.Printf("\n=== Per thread ===\n")
		for _, t := range r.PerThread {
			fmt.Printf("  worker %2d: %10d attempts  %10.0f/sec\n",
				t.WorkerID, t.Attempts, t.AttemptsPerSec)
		}
	}

	fmt.Printf("\n=== Batch latency (%d batches of %d) ===\n", r.BatchLatency.Batches, r.BatchSize)
	fmt.Printf("  min %.2fms  avg %.2fms  median %.2fms  max %.2fms  stdev %.2fms\n",
		r.BatchLatency.MinMs, r.BatchLatency.AvgMs, r.BatchLatency.MedianMs,
		r.BatchLatency.MaxMs, r.BatchLatency.StdevMs)

	fmt.Printf("\n=== Search outlook for %q ===\n", r.Pattern)
	fmt.Printf("  theoretical attempts:  %.0f\n", r.TheoreticalAttempts)
	fmt.Printf("  luck factor so far:    %.2f (100 = expected effort spent)\n", r.LuckFactor)
	fmt.Printf("  estimated time to hit: %s\n", time.Duration(r.EstimatedSecondsToMatch*float64(time.Second)).Round(time.Second))
	fmt.Printf("  recommended timeout:   %s\n", time.Duration(r.RecommendedTimeoutSeconds*float64(time.Second)).Round(time.Second))
}

func latencyStats(samples []time.Duration) latencyReport {
	if len(samples) == 0 {
		return latencyReport{}
	}

	ms := make([]float64, len(samples))
	for i, d := range samples {
		ms[i] = float64(d) / float64(time.Millisecond)
	}
	sort.Float64s(ms)

	var sum float64
	for _, v := range ms {
		sum += v
	}
	avg := sum / float64(len(ms))

	var stdev float64
	if len(ms) > 1 {
		var variance float64
		for _, v := range ms {
			variance += (v - avg) * (v - avg)
		}
		stdev = math.Sqrt(variance / float64(len(ms)-1))
	}

	median := ms[len(ms)/2]
	if len(ms)%2 == 0 {
		median = (ms[len(ms)/2-1] + ms[len(ms)/2]) / 2
	}

	return latencyReport{
		Batches:  len(ms),
		MinMs:    ms[0],
		AvgMs:    avg,
		MedianMs: median,
		MaxMs:    ms[len(ms)-1],
		StdevMs:  stdev,
	}
}
