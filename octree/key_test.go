package octree

import (
	"math/rand"
	"sort"
	"testing"

	"go.viam.com/test"
)

func TestKeyRoundTrip(t *testing.T) {
	for depth := 1; depth <= 8; depth++ {
		max := uint32(1) << depth
		corners := [][3]uint32{
			{0, 0, 0}, {max - 1, 0, 0}, {0, max - 1, 0}, {0, 0, max - 1},
			{max - 1, max - 1, max - 1},
		}
		for _, pt := range corners {
			test.That(t, ComputePt(ComputeKey(pt, depth), depth), test.ShouldResemble, pt)
		}

		r := rand.New(rand.NewSource(int64(depth)))
		for i := 0; i < 100; i++ {
			pt := [3]uint32{r.Uint32() % max, r.Uint32() % max, r.Uint32() % max}
			test.That(t, ComputePt(ComputeKey(pt, depth), depth), test.ShouldResemble, pt)
		}
	}
}

func TestKeyBitLayout(t *testing.T) {
	// x lands in the highest bit of each triple
	test.That(t, ComputeKey([3]uint32{1, 0, 0}, 1), test.ShouldEqual, uint32(4))
	test.That(t, ComputeKey([3]uint32{0, 1, 0}, 1), test.ShouldEqual, uint32(2))
	test.That(t, ComputeKey([3]uint32{0, 0, 1}, 1), test.ShouldEqual, uint32(1))
	test.That(t, ComputeKey([3]uint32{3, 0, 0}, 2), test.ShouldEqual, uint32(36))
	test.That(t, ComputeKey([3]uint32{0, 3, 0}, 2), test.ShouldEqual, uint32(18))
	test.That(t, ComputeKey([3]uint32{3, 3, 3}, 2), test.ShouldEqual, uint32(63))
}

func TestParentChild(t *testing.T) {
	key := ComputeKey([3]uint32{5, 2, 7}, 3)
	test.That(t, ParentKey(key), test.ShouldEqual, ComputeKey([3]uint32{2, 1, 3}, 2))
	test.That(t, ChildIndex(key), test.ShouldEqual, int(key&7))

	// the low 3 bits are the child octant
	child := ComputeKey([3]uint32{1, 0, 1}, 1)
	test.That(t, ChildIndex(ParentKey(key)<<3|child), test.ShouldEqual, int(child))
}

func TestKeySortIsZOrder(t *testing.T) {
	// sorting keys ascending must equal sorting cells lexicographically by
	// their interleaved bits
	r := rand.New(rand.NewSource(42))
	keys := make([]uint32, 50)
	for i := range keys {
		keys[i] = ComputeKey([3]uint32{r.Uint32() % 8, r.Uint32() % 8, r.Uint32() % 8}, 3)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for i := 1; i < len(keys); i++ {
		test.That(t, ParentKey(keys[i]) >= ParentKey(keys[i-1]), test.ShouldBeTrue)
	}
}
