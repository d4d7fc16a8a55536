package octree

// Keys are bit-interleaved cell coordinates. For a node at depth d with cell
// coordinate (x, y, z) in [0, 2^d)^3, bit i of each axis lands at key bit
// 3*i + 2 - axis, so x occupies the highest bit of each triple and the low 3
// bits are the child index within the parent. Shifting right by 3 yields the
// parent key, and sorting keys ascending yields Z-order traversal.

// ComputeKey interleaves the low depth bits of the cell coordinate into a key.
func ComputeKey(pt [3]uint32, depth int) uint32 {
	var key uint32
	for i := 0; i < depth; i++ {
		mask := uint32(1) << i
		for j := 0; j < 3; j++ {
			key |= (pt[j] & mask) << (2*i + 2 - j)
		}
	}
	return key
}

// ComputePt de-interleaves a key back into its cell coordinate.
func ComputePt(key uint32, depth int) [3]uint32 {
	var pt [3]uint32
	for i := 0; i < depth; i++ {
		for j := 0; j < 3; j++ {
			mask := uint32(1) << (3*i + 2 - j)
			pt[j] |= (key & mask) >> (2*i + 2 - j)
		}
	}
	return pt
}

// ParentKey returns the key of the node's parent.
func ParentKey(key uint32) uint32 {
	return key >> 3
}

// ChildIndex returns the node's octant index within its parent.
func ChildIndex(key uint32) int {
	return int(key & 7)
}
