// Package octree builds serialized octrees from point clouds. An octree
// recursively partitions the cloud's bounding cube; each layer's nodes carry
// shuffled keys, child pointers and averaged point signals, laid out so the
// whole tree round-trips through a single binary buffer.
package octree

import (
	"sort"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/Jian-Lu-gis/O-CNN-AS/pointcloud"
	"github.com/Jian-Lu-gis/O-CNN-AS/utils"
)

// Octree holds per-layer node tables. Index 0 of every outer slice is the
// root layer; layer d holds info.Nnum(d) nodes in ascending key order.
type Octree struct {
	logger golog.Logger
	info   Info

	keys     [][]uint32
	children [][]int32

	displacement [][]float32
	splitLabels  [][]float32

	avgNormals   [][]float32
	avgFeatures  [][]float32
	avgFPFH      [][]float32
	avgRoughness [][]float32
	avgPts       [][]float32
	avgLabels    [][]float32
	maxLabel     int

	// dnum and didx describe, for each node of layer d, the span of finest
	// layer nodes it covers.
	dnum [][]int32
	didx [][]int32

	normalErr   [][]float32
	distanceErr [][]float32

	// features holds the combined per-layer feature blobs of a deserialized
	// octree; a built octree keeps its signals in the avg* slices instead.
	features [][]float32

	buffer []byte
}

// NewOctree returns an empty octree.
func NewOctree(logger golog.Logger) *Octree {
	return &Octree{logger: logger}
}

// Info returns the octree's header.
func (t *Octree) Info() *Info { return &t.info }

// Keys returns the shuffled keys of the given layer.
func (t *Octree) Keys(d int) []uint32 { return t.keys[d] }

// Children returns the child pointers of the given layer. Entry i is the
// 8-block index of node i's children within layer d+1, or -1 for a leaf.
func (t *Octree) Children(d int) []int32 { return t.children[d] }

// SplitLabels returns the split labels of the given layer, nil if absent.
func (t *Octree) SplitLabels(d int) []float32 {
	if d >= len(t.splitLabels) {
		return nil
	}
	return t.splitLabels[d]
}

// AvgNormals returns the averaged normals of the given layer in
// channel-major layout, nil if absent.
func (t *Octree) AvgNormals(d int) []float32 {
	if d >= len(t.avgNormals) {
		return nil
	}
	return t.avgNormals[d]
}

// AvgPoints returns the averaged local coordinates of the given layer in
// channel-major layout, nil if absent.
func (t *Octree) AvgPoints(d int) []float32 {
	if d >= len(t.avgPts) {
		return nil
	}
	return t.avgPts[d]
}

// AvgLabels returns the averaged labels of the given layer, nil if absent.
func (t *Octree) AvgLabels(d int) []float32 {
	if d >= len(t.avgLabels) {
		return nil
	}
	return t.avgLabels[d]
}

// Displacement returns the per-node displacements of the given layer, nil
// if absent.
func (t *Octree) Displacement(d int) []float32 {
	if d >= len(t.displacement) {
		return nil
	}
	return t.displacement[d]
}

// Features returns the combined feature blob of the given layer of a
// deserialized octree, nil for a built one.
func (t *Octree) Features(d int) []float32 {
	if d >= len(t.features) {
		return nil
	}
	return t.features[d]
}

func (t *Octree) clear(depth int) {
	n := depth + 1
	t.keys = make([][]uint32, n)
	t.children = make([][]int32, n)
	t.displacement = make([][]float32, n)
	t.splitLabels = make([][]float32, n)
	t.avgNormals = make([][]float32, n)
	t.avgFeatures = make([][]float32, n)
	t.avgFPFH = make([][]float32, n)
	t.avgRoughness = make([][]float32, n)
	t.avgPts = make([][]float32, n)
	t.avgLabels = make([][]float32, n)
	t.dnum = make([][]int32, n)
	t.didx = make([][]int32, n)
	t.normalErr = make([][]float32, n)
	t.distanceErr = make([][]float32, n)
	t.features = make([][]float32, n)
	t.maxLabel = 0
	t.buffer = nil
}

// Build constructs the octree from the cloud according to the config. The
// cloud is read only; its coordinates are mapped into the octree's bounding
// cube without being modified.
func (t *Octree) Build(cfg BuildConfig, cloud *pointcloud.Cloud) error {
	info, err := NewInfo(cfg, cloud)
	if err != nil {
		return err
	}
	return t.BuildWithInfo(info, cloud)
}

// BuildWithInfo constructs the octree using a prepared header, which lets
// callers override the bounding box before building.
func (t *Octree) BuildWithInfo(info Info, cloud *pointcloud.Cloud) error {
	t.info = info
	depth := t.info.Depth()
	t.clear(depth)

	if cloud.PtNum() == 0 {
		return errors.New("cannot build an octree from an empty cloud")
	}
	ptsScaled := t.normalizePoints(cloud)
	codes := t.sortKeys(ptsScaled)
	keys, firstIdx := uniqueKeys(codes)

	t.buildStructure(keys)
	t.calcNodeNum()

	t.averageSignals(cloud, ptsScaled, codes, firstIdx)
	if t.info.Location(PropFeature) == -1 {
		t.coveredNodes()
		calcNormalErr := t.info.IsAdaptive()
		calcDistErr := t.info.IsAdaptive() && t.info.HasDisplace()
		t.upperSignals(calcNormalErr, calcDistErr)
	}

	if t.info.HasProperty(PropSplit) {
		t.calcSplitLabels()
	}

	t.serialize()
	t.trim()

	t.logger.Debugw("built octree",
		"depth", depth,
		"nodes", t.info.TotalNnum(),
		"bytes", t.info.SizeOfOctree())
	return nil
}

// normalizePoints maps every point into finest-layer cell units: the
// bounding box's min corner goes to 0 and its largest extent to 2^depth, so a
// point on the max face lands on 2^depth itself.
func (t *Octree) normalizePoints(cloud *pointcloud.Cloud) []float32 {
	npt := cloud.PtNum()
	bbmin, _ := t.info.BBox()
	mul := float32(uint64(1)<<t.info.Depth()) / t.info.BBoxMaxWidth()

	pts := cloud.Attr(pointcloud.AttrPoint)
	scaled := make([]float32, 3*npt)
	utils.ForEach(npt, func(i int) {
		for j := 0; j < 3; j++ {
			scaled[3*i+j] = (pts[3*i+j] - bbmin[j]) * mul
		}
	})
	return scaled
}

// sortKeys computes the finest-layer cell key of every scaled point and
// returns the codes key<<32|index in ascending key order. The index in the
// low half keeps the sort stable and maps back to the original point.
func (t *Octree) sortKeys(ptsScaled []float32) []uint64 {
	depth := t.info.Depth()
	maxCell := uint32(1)<<depth - 1
	npt := len(ptsScaled) / 3

	codes := make([]uint64, npt)
	utils.ForEach(npt, func(i int) {
		var pt [3]uint32
		for j := 0; j < 3; j++ {
			c := uint32(0)
			if v := ptsScaled[3*i+j]; v > 0 {
				c = uint32(v)
			}
			if c > maxCell {
				c = maxCell
			}
			pt[j] = c
		}
		codes[i] = uint64(ComputeKey(pt, depth))<<32 | uint64(i)
	})
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// uniqueKeys extracts the distinct finest-layer keys from the sorted codes
// and, for each, the index of its first code.
func uniqueKeys(codes []uint64) (keys []uint32, firstIdx []int32) {
	for i := 0; i < len(codes); i++ {
		key := uint32(codes[i] >> 32)
		if len(keys) == 0 || keys[len(keys)-1] != key {
			keys = append(keys, key)
			firstIdx = append(firstIdx, int32(i))
		}
	}
	firstIdx = append(firstIdx, int32(len(codes)))
	return keys, firstIdx
}

// buildStructure fills the per-layer key and child tables. Layers up to
// the full layer enumerate every cell; below it only the 8-blocks under
// occupied parents are materialized, bottom-up from the occupied
// finest-layer keys. A child entry holds the node's non-empty rank within
// its layer, which is also the 8-block index of its children in the next
// layer; empty nodes hold -1.
func (t *Octree) buildStructure(finestKeys []uint32) {
	depth := t.info.Depth()
	fullLayer := t.info.FullLayer()

	// full layers: key equals index, and block i of the next full layer
	// belongs to node i
	for d := 0; d <= fullLayer; d++ {
		n := 1 << (3 * d)
		layer := make([]uint32, n)
		children := make([]int32, n)
		for i := 0; i < n; i++ {
			layer[i] = uint32(i)
			if d != fullLayer {
				children[i] = int32(i)
			} else {
				children[i] = -1
			}
		}
		t.keys[d] = layer
		t.children[d] = children
	}

	occupied := finestKeys
	for d := depth; d > fullLayer; d-- {
		// unique parents of the occupied nodes, in order
		var parents []uint32
		for _, key := range occupied {
			p := ParentKey(key)
			if len(parents) == 0 || parents[len(parents)-1] != p {
				parents = append(parents, p)
			}
		}

		// materialize all 8 children of every parent
		layer := make([]uint32, 8*len(parents))
		children := make([]int32, 8*len(parents))
		for i := range layer {
			layer[i] = parents[i>>3]<<3 | uint32(i&7)
			children[i] = -1
		}
		oi := 0
		for i, key := range layer {
			if oi < len(occupied) && occupied[oi] == key {
				children[i] = int32(oi)
				oi++
			}
		}
		t.keys[d] = layer
		t.children[d] = children
		occupied = parents
	}

	// the full layer's children point at the 8-blocks of the first sparse
	// layer; cells with no occupied descendants stay leaves
	if fullLayer < depth {
		children := t.children[fullLayer]
		next := t.keys[fullLayer+1]
		for i := 0; i < len(next); i += 8 {
			children[ParentKey(next[i])] = int32(i >> 3)
		}
	} else {
		// every cell exists; mark the occupied ones by rank
		children := t.children[depth]
		for i, key := range finestKeys {
			children[key] = int32(i)
		}
	}
}

// calcNodeNum records per-layer node counts in the header.
func (t *Octree) calcNodeNum() {
	depth := t.info.Depth()
	nnum := make([]int32, depth+1)
	nnumNempty := make([]int32, depth+1)
	for d := 0; d <= depth; d++ {
		nnum[d] = int32(len(t.keys[d]))
		n := int32(0)
		for _, c := range t.children[d] {
			if c >= 0 {
				n++
			}
		}
		nnumNempty[d] = n
	}
	t.info.setNodeNum(nnum, nnumNempty)
}

// coveredNodes computes, for every node of every layer, the span of finest
// layer nodes beneath it.
func (t *Octree) coveredNodes() {
	depth := t.info.Depth()

	nfinest := len(t.keys[depth])
	t.dnum[depth] = make([]int32, nfinest)
	t.didx[depth] = make([]int32, nfinest)
	for i := 0; i < nfinest; i++ {
		t.dnum[depth][i] = 1
		t.didx[depth][i] = int32(i)
	}

	for d := depth - 1; d >= 0; d-- {
		n := len(t.keys[d])
		t.dnum[d] = make([]int32, n)
		t.didx[d] = make([]int32, n)
		for i := 0; i < n; i++ {
			t.didx[d][i] = -1
			c := t.children[d][i]
			if c < 0 {
				continue
			}
			for j := 0; j < 8; j++ {
				ci := int(c)*8 + j
				t.dnum[d][i] += t.dnum[d+1][ci]
				if t.didx[d][i] == -1 && t.didx[d+1][ci] != -1 {
					t.didx[d][i] = t.didx[d+1][ci]
				}
			}
		}
	}
}
