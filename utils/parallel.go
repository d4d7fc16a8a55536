// Package utils contains small shared helpers for the octree builder.
package utils

import (
	"math"
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// serialCutoff is the work size below which goroutine fan-out costs more than
// it saves.
const serialCutoff = 1 << 10

// ForEachChunk divides n work items into contiguous chunks and runs fn over
// each chunk, one goroutine per chunk. Below serialCutoff items, or with a
// ParallelFactor of 1, fn runs once over [0, n) on the calling goroutine. fn
// must only write to indices within its [from, to) range.
func ForEachChunk(n int, fn func(from, to int)) {
	if n <= 0 {
		return
	}
	if n < serialCutoff || ParallelFactor == 1 {
		fn(0, n)
		return
	}

	chunkSize := int(math.Ceil(float64(n) / float64(ParallelFactor)))
	var wait sync.WaitGroup
	for from := 0; from < n; from += chunkSize {
		to := from + chunkSize
		if to > n {
			to = n
		}
		fromCopy, toCopy := from, to
		wait.Add(1)
		utils.PanicCapturingGo(func() {
			defer wait.Done()
			fn(fromCopy, toCopy)
		})
	}
	wait.Wait()
}

// ForEach runs fn for every index in [0, n), fanning out over chunks.
func ForEach(n int, fn func(i int)) {
	ForEachChunk(n, func(from, to int) {
		for i := from; i < to; i++ {
			fn(i)
		}
	})
}
