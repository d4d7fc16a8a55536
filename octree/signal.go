package octree

import (
	"math"

	"github.com/Jian-Lu-gis/O-CNN-AS/pointcloud"
	"github.com/Jian-Lu-gis/O-CNN-AS/utils"
)

// esp guards divisions and normalizations against empty sums.
const esp = 1.0e-30

// dispMul rescales a displacement along a unit normal into [-1, 1]; the
// farthest a cell-centered plane can sit from the center is half the cell
// diagonal, sqrt(3)/2.
const dispMul = 2.0 / 1.73205080756887729

// averageSignals fills the finest layer's averaged signals from the points
// covered by each node. codes are the sorted packed key/index codes and
// firstIdx the span boundaries of each occupied node's points within them.
func (t *Octree) averageSignals(cloud *pointcloud.Cloud, ptsScaled []float32, codes []uint64, firstIdx []int32) {
	depth := t.info.Depth()
	nnum := t.info.Nnum(depth)
	children := t.children[depth]

	forSpan := func(i int, fn func(h int)) {
		r := children[i]
		for j := firstIdx[r]; j < firstIdx[r+1]; j++ {
			fn(int(codes[j] & 0xffffffff))
		}
	}
	spanCount := func(i int) float32 {
		r := children[i]
		return float32(firstIdx[r+1] - firstIdx[r])
	}

	normals := cloud.Attr(pointcloud.AttrNormal)
	if normals != nil {
		channel := cloud.Info().Channel(pointcloud.AttrNormal)
		t.avgNormals[depth] = make([]float32, channel*nnum)
		utils.ForEach(nnum, func(i int) {
			if children[i] < 0 {
				return
			}
			avg := make([]float32, channel)
			forSpan(i, func(h int) {
				for c := 0; c < channel; c++ {
					avg[c] += normals[channel*h+c]
				}
			})
			factor := float32(esp)
			for c := 0; c < channel; c++ {
				factor += utils.Square32(avg[c])
			}
			factor = utils.Sqrt32(factor)
			for c := 0; c < channel; c++ {
				t.avgNormals[depth][c*nnum+i] = avg[c] / factor
			}
		})
	}

	averageAttr := func(atype pointcloud.AttrType, out *[]float32) {
		data := cloud.Attr(atype)
		if data == nil {
			return
		}
		channel := cloud.Info().Channel(atype)
		*out = make([]float32, channel*nnum)
		plane := *out
		utils.ForEach(nnum, func(i int) {
			if children[i] < 0 {
				return
			}
			avg := make([]float32, channel)
			forSpan(i, func(h int) {
				for c := 0; c < channel; c++ {
					avg[c] += data[channel*h+c]
				}
			})
			factor := spanCount(i) + esp
			for c := 0; c < channel; c++ {
				plane[c*nnum+i] = avg[c] / factor
			}
		})
	}
	averageAttr(pointcloud.AttrFeature, &t.avgFeatures[depth])
	averageAttr(pointcloud.AttrFPFH, &t.avgFPFH[depth])
	averageAttr(pointcloud.AttrRoughness, &t.avgRoughness[depth])

	labels := cloud.Attr(pointcloud.AttrLabel)
	if labels != nil {
		t.maxLabel = 0
		for _, l := range labels {
			if v := int(l); v >= t.maxLabel {
				t.maxLabel = v + 1
			}
		}
		t.avgLabels[depth] = make([]float32, nnum)
		for i := range t.avgLabels[depth] {
			t.avgLabels[depth][i] = -1
		}
		utils.ForEach(nnum, func(i int) {
			if children[i] < 0 {
				return
			}
			count := make([]int, t.maxLabel)
			forSpan(i, func(h int) {
				count[int(labels[h])]++
			})
			t.avgLabels[depth][i] = float32(argmax(count))
		})
	}

	if t.info.HasDisplace() && normals != nil {
		t.avgPts[depth] = make([]float32, 3*nnum)
		t.displacement[depth] = make([]float32, nnum)
		utils.ForEach(nnum, func(i int) {
			if children[i] < 0 {
				return
			}
			var avgPt [3]float32
			forSpan(i, func(h int) {
				for c := 0; c < 3; c++ {
					avgPt[c] += ptsScaled[3*h+c]
				}
			})
			factor := spanCount(i) + esp
			dis := float32(0)
			for c := 0; c < 3; c++ {
				avgPt[c] /= factor
				fract := avgPt[c] - float32(math.Floor(float64(avgPt[c])))
				dis += (fract - 0.5) * t.avgNormals[depth][c*nnum+i]
				t.avgPts[depth][c*nnum+i] = avgPt[c]
			}
			t.displacement[depth][i] = dis * dispMul
		})
	}
}

// upperSignals aggregates the finest layer's signals up the tree. A coarse
// node averages over the non-empty finest nodes it covers; when requested it
// also records the normal and distance approximation errors used by the trim
// pass. Averaged coordinates are stored in the units of their own layer.
func (t *Octree) upperSignals(calcNormalErr, calcDistErr bool) {
	depth := t.info.Depth()
	depthAdp := t.info.AdaptiveLayer()
	nnumDepth := t.info.Nnum(depth)
	childrenDepth := t.children[depth]

	normalDepth := t.avgNormals[depth]
	ptDepth := t.avgPts[depth]
	featureDepth := t.avgFeatures[depth]
	fpfhDepth := t.avgFPFH[depth]
	roughnessDepth := t.avgRoughness[depth]
	labelDepth := t.avgLabels[depth]

	channelNormal := len(normalDepth) / nnumDepth
	channelPt := len(ptDepth) / nnumDepth
	channelFeature := len(featureDepth) / nnumDepth
	channelFPFH := len(fpfhDepth) / nnumDepth
	channelRoughness := len(roughnessDepth) / nnumDepth

	hasDis := len(t.displacement[depth]) != 0

	if calcNormalErr {
		t.normalErr[depth] = constSlice(nnumDepth, 1.0e20)
	}
	if calcDistErr {
		t.distanceErr[depth] = constSlice(nnumDepth, 1.0e20)
	}

	for d := depth - 1; d >= 0; d-- {
		nnum := t.info.Nnum(d)
		scale := float32(uint64(1) << (depth - d))
		children := t.children[d]
		dnum, didx := t.dnum[d], t.didx[d]
		keys := t.keys[d]

		if channelNormal > 0 {
			t.avgNormals[d] = make([]float32, nnum*channelNormal)
		}
		if channelPt > 0 {
			t.avgPts[d] = make([]float32, nnum*channelPt)
		}
		if channelFeature > 0 {
			t.avgFeatures[d] = make([]float32, nnum*channelFeature)
		}
		if channelFPFH > 0 {
			t.avgFPFH[d] = make([]float32, nnum*channelFPFH)
		}
		if channelRoughness > 0 {
			t.avgRoughness[d] = make([]float32, nnum*channelRoughness)
		}
		if labelDepth != nil {
			t.avgLabels[d] = constSlice(nnum, -1)
		}
		if hasDis {
			t.displacement[d] = make([]float32, nnum)
		}
		if calcNormalErr {
			t.normalErr[d] = constSlice(nnum, 1.0e20)
		}
		if calcDistErr {
			t.distanceErr[d] = constSlice(nnum, 1.0e20)
		}

		utils.ForEach(nnum, func(i int) {
			if children[i] < 0 {
				return
			}

			forCovered := func(fn func(j int)) {
				for j := didx[i]; j < didx[i]+dnum[i]; j++ {
					if childrenDepth[j] < 0 {
						continue
					}
					fn(int(j))
				}
			}

			nAvg := make([]float32, channelNormal)
			if channelNormal > 0 {
				forCovered(func(j int) {
					for c := 0; c < channelNormal; c++ {
						nAvg[c] += normalDepth[c*nnumDepth+j]
					}
				})
				length := float32(esp)
				for c := 0; c < channelNormal; c++ {
					length += utils.Square32(nAvg[c])
				}
				length = utils.Sqrt32(length)
				for c := 0; c < channelNormal; c++ {
					nAvg[c] /= length
					t.avgNormals[d][c*nnum+i] = nAvg[c]
				}
			}

			count := float32(esp)
			forCovered(func(int) { count++ })

			ptAvg := make([]float32, channelPt)
			if channelPt > 0 {
				forCovered(func(j int) {
					for c := 0; c < channelPt; c++ {
						ptAvg[c] += ptDepth[c*nnumDepth+j]
					}
				})
				for c := 0; c < channelPt; c++ {
					ptAvg[c] /= count * scale
					t.avgPts[d][c*nnum+i] = ptAvg[c]
				}
			}

			averagePlane := func(channel int, src, dst []float32) {
				if channel == 0 {
					return
				}
				avg := make([]float32, channel)
				forCovered(func(j int) {
					for c := 0; c < channel; c++ {
						avg[c] += src[c*nnumDepth+j]
					}
				})
				for c := 0; c < channel; c++ {
					dst[c*nnum+i] = avg[c] / count
				}
			}
			averagePlane(channelFeature, featureDepth, t.avgFeatures[d])
			averagePlane(channelFPFH, fpfhDepth, t.avgFPFH[d])
			averagePlane(channelRoughness, roughnessDepth, t.avgRoughness[d])

			if labelDepth != nil {
				lcount := make([]int, t.maxLabel)
				forCovered(func(j int) {
					lcount[int(labelDepth[j])]++
				})
				t.avgLabels[d][i] = float32(argmax(lcount))
			}

			ptu := ComputePt(keys[i], d)
			ptBase := [3]float32{float32(ptu[0]), float32(ptu[1]), float32(ptu[2])}
			if hasDis {
				dis := float32(0)
				for c := 0; c < 3; c++ {
					fract := ptAvg[c] - ptBase[c]
					dis += (fract - 0.5) * nAvg[c]
				}
				t.displacement[d][i] = dis * dispMul
			}

			if calcNormalErr && channelNormal > 0 && d >= depthAdp {
				errSum := float32(0)
				forCovered(func(j int) {
					for c := 0; c < 3; c++ {
						errSum += utils.Square32(normalDepth[c*nnumDepth+j] - nAvg[c])
					}
				})
				t.normalErr[d][i] = errSum / count
			}

			if calcDistErr && channelPt > 0 && d >= depthAdp {
				// forward: every covered point against the averaged plane
				distMax1 := float32(-1)
				ptAvgScaled := [3]float32{ptAvg[0] * scale, ptAvg[1] * scale, ptAvg[2] * scale}
				forCovered(func(j int) {
					dis := float32(0)
					for c := 0; c < 3; c++ {
						dis += (ptDepth[c*nnumDepth+j] - ptAvgScaled[c]) * nAvg[c]
					}
					if dis < 0 {
						dis = -dis
					}
					if dis > distMax1 {
						distMax1 = dis
					}
				})

				// reverse: the plane's cube intersection against the points
				distMax2 := float32(-1)
				vtx := intersectPlaneCube([3]float32{ptAvg[0], ptAvg[1], ptAvg[2]}, ptBase, [3]float32{nAvg[0], nAvg[1], nAvg[2]})
				if len(vtx) == 0 {
					distMax2 = 5.0e10
				}
				for k := range vtx {
					vtx[k] *= scale
				}
				for k := 0; k < len(vtx)/3; k++ {
					distMin := float32(1.0e30)
					forCovered(func(j int) {
						dis := float32(0)
						for c := 0; c < 3; c++ {
							dis += utils.Square32(ptDepth[c*nnumDepth+j] - vtx[3*k+c])
						}
						dis = utils.Sqrt32(dis)
						if dis < distMin {
							distMin = dis
						}
					})
					if distMin > distMax2 {
						distMax2 = distMin
					}
				}

				if distMax1 > distMax2 {
					t.distanceErr[d][i] = distMax1
				} else {
					t.distanceErr[d][i] = distMax2
				}
			}
		})
	}
}

func constSlice(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func argmax(count []int) int {
	best := 0
	for i, c := range count {
		if c > count[best] {
			best = i
		}
	}
	return best
}
