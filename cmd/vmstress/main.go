// Command vmstress drives a layered.Allocator with the mixed
// allocate/free/reallocate workload of spec.md §8 scenario 6 across a
// configurable number of goroutines, and prints a Stats() snapshot at the
// end. It exists to observe that scenario outside of `go test -bench`
// (SPEC_FULL.md supplement 2); grounded on the teacher's own
// Benchmark*/test1/test2/test3 functions in all_test.go, lifted out of the
// test binary into a standalone, flag-driven program.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cznic/mathutil"

	"github.com/memlayer/memlayer/layered"
)

func main() {
	goroutines := flag.Int("goroutines", 8, "number of concurrent workers")
	ops := flag.Int("ops", 10000, "operations per worker")
	maxSize := flag.Int("max-size", 1<<16, "maximum block size requested, in bytes")
	seed := flag.Int64("seed", 1, "base PRNG seed (each worker adds its index)")
	layerCount := flag.Int("layers", layered.DefaultLayerCount, "number of size-class layers")
	minBlock := flag.Int("min-block", layered.DefaultMinBlockSize, "size in bytes of the smallest layer")
	flag.Parse()

	span := uintptr(*minBlock) << uint(*layerCount-1)
	a, err := layered.New(layered.Options{
		MinBlockSize:    uintptr(*minBlock),
		LayerSpan:       span,
		LayerCount:      *layerCount,
		Reservation:     uintptr(*layerCount) * span,
		MemcpyThreshold: layered.DefaultMemcpyThreshold,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "vmstress: new allocator:", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	var allocates, frees, reallocates, failures int64

	start := time.Now()
	for g := 0; g < *goroutines; g++ {
		wg.Add(1)
		go func(workerSeed int64) {
			defer wg.Done()
			run(a, workerSeed, *ops, *maxSize, &allocates, &frees, &reallocates, &failures)
		}(*seed + int64(g))
	}
	wg.Wait()
	elapsed := time.Since(start)

	st := a.Stats()
	fmt.Printf("workers=%d ops/worker=%d elapsed=%s total_physical_memory=%d\n",
		*goroutines, *ops, elapsed, st.TotalPhysicalMemory)
	fmt.Printf("allocates=%d frees=%d reallocates=%d failures=%d\n", allocates, frees, reallocates, failures)
	for _, l := range st.Layers {
		if l.InUse == 0 && l.BumpIndex == 0 {
			continue
		}
		fmt.Printf("  layer block_size=%-10d in_use=%-8d bump_index=%-8d capacity=%d\n",
			l.BlockSize, l.InUse, l.BumpIndex, l.Capacity)
	}
}

// run executes the mixed workload for one worker: a uniform choice of
// allocate/free/reallocate against a privately-owned set of live blocks,
// draining that set back to the allocator before returning.
func run(a *layered.Allocator, seed int64, ops, maxSize int, allocates, frees, reallocates, failures *int64) {
	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	if err != nil {
		atomic.AddInt64(failures, 1)
		return
	}
	rng.Seed(seed)

	var owned []unsafe.Pointer
	for i := 0; i < ops; i++ {
		switch rng.Next() % 3 {
		case 0:
			size := uintptr(rng.Next()%maxSize + 1)
			p, err := a.Allocate(size)
			if err != nil {
				atomic.AddInt64(failures, 1)
				continue
			}
			owned = append(owned, p)
			atomic.AddInt64(allocates, 1)
		case 1:
			if len(owned) == 0 {
				continue
			}
			p := owned[len(owned)-1]
			owned = owned[:len(owned)-1]
			if err := a.Free(p); err != nil {
				atomic.AddInt64(failures, 1)
				continue
			}
			atomic.AddInt64(frees, 1)
		default:
			if len(owned) == 0 {
				continue
			}
			idx := len(owned) - 1
			size := uintptr(rng.Next()%maxSize + 1)
			q, err := a.Reallocate(owned[idx], size)
			if err != nil {
				atomic.AddInt64(failures, 1)
				continue
			}
			owned[idx] = q
			atomic.AddInt64(reallocates, 1)
		}
	}

	for _, p := range owned {
		if err := a.Free(p); err != nil {
			atomic.AddInt64(failures, 1)
			continue
		}
		atomic.AddInt64(frees, 1)
	}
}
