package octree

// calcSplitLabels marks every node as split (1), empty leaf (0) or, for
// adaptive octrees, well-approximated leaf (2). A leaf counts as
// well-approximated when its averaged normal is non-zero.
func (t *Octree) calcSplitLabels() {
	depth := t.info.Depth()
	adaptive := t.info.IsAdaptive()

	for d := 0; d <= depth; d++ {
		nnum := t.info.Nnum(d)
		labels := constSlice(nnum, 1)
		normals := t.avgNormals[d]
		for i := 0; i < nnum; i++ {
			if t.children[d][i] >= 0 {
				continue
			}
			labels[i] = 0
			if adaptive && len(normals) != 0 {
				s := abs32(normals[i]) + abs32(normals[nnum+i]) + abs32(normals[2*nnum+i])
				if s != 0 {
					labels[i] = 2
				}
			}
		}
		t.splitLabels[d] = labels
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
