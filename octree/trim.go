package octree

// Trim verdicts. A node marked dropChildren stays in the octree but turns
// into a leaf; a node marked drop vanishes together with its 8-block.
const (
	trimDrop = iota
	trimDropChildren
	trimKeep
)

// trim collapses well-approximated subtrees of an adaptive octree and
// re-serializes. Layers above the adaptive layer are never touched, so the
// surviving tree keeps valid 8-block pointers throughout.
func (t *Octree) trim() {
	if !t.info.IsAdaptive() {
		return
	}
	depth := t.info.Depth()
	depthAdp := t.info.AdaptiveLayer()
	thDist := t.info.ThresholdDistance()
	thNorm := t.info.ThresholdNormal()
	hasDis := t.info.HasDisplace()

	drop := make([][]int8, depth+1)
	for d := 0; d <= depth; d++ {
		drop[d] = make([]int8, t.info.Nnum(d))
		for i := range drop[d] {
			drop[d][i] = trimKeep
		}
	}

	for d := depthAdp; d <= depth; d++ {
		nnumParent := t.info.Nnum(d - 1)
		childrenD := t.children[d]
		childrenParent := t.children[d-1]
		dropD := drop[d]
		dropParent := drop[d-1]

		allDrop := true
		for i := 0; i < nnumParent; i++ {
			b := childrenParent[i]
			if b < 0 {
				continue
			}
			for j := 0; j < 8; j++ {
				idx := int(b)*8 + j
				if dropParent[i] == trimKeep {
					// leaves and finest-layer nodes carry the 1e20
					// sentinel, so only internal nodes can pass
					if (!hasDis || t.distanceErr[d][idx] < thDist) &&
						t.normalErr[d][idx] < thNorm {
						dropD[idx] = trimDropChildren
					}
				} else {
					dropD[idx] = trimDrop
				}
				if allDrop {
					allDrop = !(dropD[idx] == trimKeep && childrenD[idx] >= 0)
				}
			}
		}

		// keep at least one internal node per layer so deeper layers
		// never empty out
		if allDrop {
			maxIdx := 0
			maxErr := float32(-1)
			for i := 0; i < nnumParent; i++ {
				b := childrenParent[i]
				if b < 0 || dropParent[i] != trimKeep {
					continue
				}
				for j := 0; j < 8; j++ {
					idx := int(b)*8 + j
					if childrenD[idx] >= 0 && t.normalErr[d][idx] > maxErr {
						maxErr = t.normalErr[d][idx]
						maxIdx = idx
					}
				}
			}
			dropD[maxIdx] = trimKeep
		}
	}

	for d := depthAdp; d <= depth; d++ {
		nnum := t.info.Nnum(d)
		dropD := drop[d]

		keys := make([]uint32, 0, nnum)
		for i := 0; i < nnum; i++ {
			if dropD[i] == trimDrop {
				continue
			}
			keys = append(keys, t.keys[d][i])
		}

		children := make([]int32, 0, len(keys))
		id := int32(0)
		for i := 0; i < nnum; i++ {
			if dropD[i] == trimDrop {
				continue
			}
			ch := int32(-1)
			if dropD[i] == trimKeep && t.children[d][i] >= 0 {
				ch = id
				id++
			}
			children = append(children, ch)
		}
		t.keys[d] = keys
		t.children[d] = children

		trimPlane := func(signal *[]float32) {
			channel := len(*signal) / nnum
			if channel == 0 {
				return
			}
			kept := make([]float32, 0, channel*len(keys))
			for i := 0; i < nnum; i++ {
				if dropD[i] == trimDrop {
					continue
				}
				for c := 0; c < channel; c++ {
					kept = append(kept, (*signal)[c*nnum+i])
				}
			}
			// back to channel-major with the new node count
			num := len(kept) / channel
			out := make([]float32, len(kept))
			for i := 0; i < num; i++ {
				for c := 0; c < channel; c++ {
					out[c*num+i] = kept[i*channel+c]
				}
			}
			*signal = out
		}
		trimPlane(&t.displacement[d])
		trimPlane(&t.avgNormals[d])
		trimPlane(&t.avgFeatures[d])
		trimPlane(&t.avgFPFH[d])
		trimPlane(&t.avgRoughness[d])
		trimPlane(&t.avgLabels[d])
	}

	t.calcNodeNum()
	if t.info.HasProperty(PropSplit) {
		t.calcSplitLabels()
	}
	t.serialize()
}
