package octree

import (
	"github.com/pkg/errors"

	"github.com/Jian-Lu-gis/O-CNN-AS/pointcloud"
	"github.com/Jian-Lu-gis/O-CNN-AS/utils"
)

// invDispMul undoes the displacement rescaling, half the cell diagonal.
const invDispMul = 1.73205080756887729 / 2.0

// ToPoints reconstructs a point cloud from the octree's averaged signals.
// Every surface node between depthStart and depthEnd contributes one point:
// leaves of the intermediate layers, and every non-empty node of the finest
// layer. When features are stored for the finest layer only, that layer is
// reconstructed whatever the requested range. Nodes with a zero averaged
// normal carry no surface and are skipped.
// Cell centers are moved along the normal by the stored displacement and
// mapped back into the octree's bounding box.
func (t *Octree) ToPoints(depthStart, depthEnd int) (*pointcloud.Cloud, error) {
	if !t.info.HasProperty(PropFeature) {
		return nil, errors.New("the octree carries no feature to reconstruct points from")
	}
	depth := t.info.Depth()
	first := utils.ClampInt(depthStart, 0, depth)
	last := utils.ClampInt(depthEnd, first, depth)
	if lc := t.info.Location(PropFeature); lc != -1 {
		first, last = lc, lc
	}

	hasDis := t.info.HasDisplace()
	hasLabel := t.info.HasProperty(PropLabel)
	bbmin, _ := t.info.BBox()
	width := t.info.BBoxMaxWidth()

	var pts, normals, labels []float32
	for d := first; d <= last; d++ {
		nnum := t.info.Nnum(d)
		if nnum == 0 {
			continue
		}
		blob := t.featureBlob(d)
		if len(blob) < 3*nnum {
			continue
		}
		scale := width / float32(uint64(1)<<d)

		for i := 0; i < nnum; i++ {
			if d < depth && t.children[d][i] >= 0 {
				continue
			}
			if d == depth && t.children[d][i] < 0 {
				continue
			}
			n := [3]float32{blob[i], blob[nnum+i], blob[2*nnum+i]}
			if n[0] == 0 && n[1] == 0 && n[2] == 0 {
				continue
			}
			dis := float32(0)
			if hasDis {
				dis = blob[3*nnum+i] * invDispMul
			}
			cell := ComputePt(t.keys[d][i], d)
			for c := 0; c < 3; c++ {
				x := float32(cell[c]) + 0.5 + dis*n[c]
				pts = append(pts, bbmin[c]+x*scale)
			}
			normals = append(normals, n[0], n[1], n[2])
			if hasLabel && t.avgLabels[d] != nil {
				labels = append(labels, t.avgLabels[d][i])
			}
		}
	}
	if len(pts) == 0 {
		return nil, errors.New("no surface nodes in the requested depth range")
	}
	if hasLabel && len(labels) != len(pts)/3 {
		labels = nil
	}
	return pointcloud.NewCloud(pts, normals, nil, nil, nil, labels)
}
