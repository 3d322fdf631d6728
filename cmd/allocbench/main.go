// Command allocbench drives the four workloads × three patterns of
// spec.md §6's benchmark harness against the allocator, emitting JSON
// tuples of (size_bucket, pattern, total_bytes, elapsed_ms, overhead_bytes)
// for the external reporting pipeline to render.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
	"unsafe"

	"github.com/aantropov/memalloc/internal/allocator"
	"github.com/aantropov/memalloc/internal/cli"
)

// uintptrPtr wraps an unsafe.Pointer so it can live in a slice that gets
// shuffled and spliced like any other value type.
type uintptrPtr struct {
	ptr unsafe.Pointer
}

type result struct {
	SizeBucket    string `json:"size_bucket"`
	Pattern       string `json:"pattern"`
	TotalBytes    uint64 `json:"total_bytes"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	OverheadBytes uint64 `json:"overhead_bytes"`
}

type bucket struct {
	name    string
	minSize int
	maxSize int
	count   int
}

var buckets = []bucket{
	{name: "small", minSize: 8, maxSize: 128, count: 200000},
	{name: "medium", minSize: 128, maxSize: 4096, count: 100000},
	{name: "large", minSize: 4096, maxSize: 1 << 20, count: 20000},
	{name: "random", minSize: 8, maxSize: 1 << 20, count: 50000},
}

var patterns = []string{"simple", "shuffle", "random"}

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		jsonOutput  = flag.Bool("json", true, "emit results as JSON tuples (one per line)")
		seed        = flag.Int64("seed", 128648432, "PRNG seed for shuffle/random patterns")
		verbose     = flag.Bool("verbose", false, "log progress to stderr")
		scheme      = flag.String("scheme", "index-stack", "free-set scheme: index-stack, bitmap, coalescing")
	)

	flag.Parse()

	if *showVersion {
		cli.PrintVersion("allocbench", *jsonOutput)
		os.Exit(0)
	}

	logger := cli.NewLogger(*verbose)

	s, err := parseScheme(*scheme)
	if err != nil {
		cli.ExitWithError("%v", err)
	}

	results := make([]result, 0, len(buckets)*len(patterns))

	for _, b := range buckets {
		for _, pattern := range patterns {
			logger.Info("running %s/%s", b.name, pattern)

			r, err := run(b, pattern, *seed, s)
			if err != nil {
				cli.ExitWithError("%s/%s: %v", b.name, pattern, err)
			}

			results = append(results, r)
		}
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				cli.ExitWithError("encoding result: %v", err)
			}
		}

		return
	}

	for _, r := range results {
		fmt.Printf("%-8s %-8s total=%d elapsed_ms=%d overhead=%d\n",
			r.SizeBucket, r.Pattern, r.TotalBytes, r.ElapsedMs, r.OverheadBytes)
	}
}

func parseScheme(s string) (allocator.Scheme, error) {
	switch s {
	case "index-stack":
		return allocator.SchemeIndexStack, nil
	case "bitmap":
		return allocator.SchemeBitmap, nil
	case "coalescing":
		return allocator.SchemeCoalescing, nil
	default:
		return 0, fmt.Errorf("unknown scheme %q", s)
	}
}

// run executes one (bucket, pattern) cell and reports its timing and
// space overhead (spec.md §6's tuple shape).
func run(b bucket, pattern string, seed int64, scheme allocator.Scheme) (result, error) {
	a := allocator.New(allocator.WithScheme(scheme))
	defer a.Close()

	rng := rand.New(rand.NewSource(seed))

	sizes := make([]uintptr, b.count)

	var totalBytes uint64
	for i := range sizes {
		size := b.minSize + rng.Intn(b.maxSize-b.minSize+1)
		sizes[i] = uintptr(size)
		totalBytes += uint64(size)
	}

	start := time.Now()

	switch pattern {
	case "simple":
		runSimple(a, sizes)
	case "shuffle":
		runShuffle(a, sizes, rng)
	case "random":
		runRandom(a, sizes, rng)
	default:
		return result{}, fmt.Errorf("unknown pattern %q", pattern)
	}

	elapsed := time.Since(start)

	overhead := a.FootprintBytes() - a.OccupiedBytes()

	return result{
		SizeBucket:    b.name,
		Pattern:       pattern,
		TotalBytes:    totalBytes,
		ElapsedMs:     elapsed.Milliseconds(),
		OverheadBytes: uint64(overhead),
	}, nil
}

// runSimple allocates then immediately frees each block in turn.
func runSimple(a *allocator.Allocator, sizes []uintptr) {
	for _, size := range sizes {
		ptr := a.Allocate(size, 0)
		if ptr != nil {
			a.Deallocate(ptr)
		}
	}
}

// runShuffle allocates every block, permutes the pointer sequence with a
// fixed PRNG seed, then frees in the permuted order (spec.md §8 seed #2).
func runShuffle(a *allocator.Allocator, sizes []uintptr, rng *rand.Rand) {
	live := make([]uintptrPtr, 0, len(sizes))

	for _, size := range sizes {
		if ptr := a.Allocate(size, 0); ptr != nil {
			live = append(live, uintptrPtr{ptr})
		}
	}

	rng.Shuffle(len(live), func(i, j int) { live[i], live[j] = live[j], live[i] })

	for _, p := range live {
		a.Deallocate(p.ptr)
	}
}

// runRandom interleaves allocation and deallocation: each step either
// allocates a fresh block or frees a uniformly chosen live one.
func runRandom(a *allocator.Allocator, sizes []uintptr, rng *rand.Rand) {
	live := make([]uintptrPtr, 0, len(sizes))

	for _, size := range sizes {
		if rng.Intn(2) == 0 || len(live) == 0 {
			if ptr := a.Allocate(size, 0); ptr != nil {
				live = append(live, uintptrPtr{ptr})
			}

			continue
		}

		idx := rng.Intn(len(live))
		a.Deallocate(live[idx].ptr)
		live[idx] = live[len(live)-1]
		live = live[:len(live)-1]
	}

	for _, p := range live {
		a.Deallocate(p.ptr)
	}
}
