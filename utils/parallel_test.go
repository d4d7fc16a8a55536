package utils

import (
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestForEach(t *testing.T) {
	for _, n := range []int{0, 1, 100, 1 << 10, 1<<12 + 3} {
		out := make([]int32, n)
		ForEach(n, func(i int) {
			atomic.AddInt32(&out[i], int32(i))
		})
		for i, v := range out {
			test.That(t, v, test.ShouldEqual, int32(i))
		}
	}
}

func TestForEachChunk(t *testing.T) {
	n := 1<<12 + 7
	var total int64
	var calls int32
	ForEachChunk(n, func(from, to int) {
		atomic.AddInt32(&calls, 1)
		atomic.AddInt64(&total, int64(to-from))
	})
	test.That(t, total, test.ShouldEqual, int64(n))
	test.That(t, calls, test.ShouldBeGreaterThanOrEqualTo, 1)

	ForEachChunk(0, func(from, to int) {
		t.Fatal("no work expected")
	})
}

func TestForEachCoversDisjointChunks(t *testing.T) {
	n := 1 << 11
	out := make([]int32, n)
	ForEachChunk(n, func(from, to int) {
		for i := from; i < to; i++ {
			out[i]++
		}
	})
	for _, v := range out {
		test.That(t, v, test.ShouldEqual, int32(1))
	}
}
