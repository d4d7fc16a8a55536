package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// VoxelCoords addresses a cell of a regular grid over the cloud's bounding
// box.
type VoxelCoords struct {
	I, J, K int64
}

// IsEqual tests if two VoxelCoords are the same.
func (c VoxelCoords) IsEqual(c2 VoxelCoords) bool {
	return c.I == c2.I && c.J == c2.J && c.K == c2.K
}

// GetVoxelCoords returns the voxel containing the given point.
func GetVoxelCoords(pt, ptMin r3.Vector, voxelSize float64) VoxelCoords {
	return VoxelCoords{
		I: int64(math.Floor((pt.X - ptMin.X) / voxelSize)),
		J: int64(math.Floor((pt.Y - ptMin.Y) / voxelSize)),
		K: int64(math.Floor((pt.Z - ptMin.Z) / voxelSize)),
	}
}

// Downsample merges all points falling into the same voxel into one. Points
// and continuous attributes are averaged, normals are renormalized after
// averaging and labels take the most frequent value. The voxel order of the
// result follows the first point seen in each voxel.
func (c *Cloud) Downsample(voxelSize float64) (*Cloud, error) {
	if voxelSize <= 0 {
		return nil, errors.Errorf("voxel size must be positive, got %g", voxelSize)
	}
	npt := c.PtNum()
	bbmin, _ := c.Bounds()

	pts := c.Attr(AttrPoint)
	buckets := make(map[VoxelCoords]int, npt)
	var order [][]int
	for i := 0; i < npt; i++ {
		p := r3.Vector{X: float64(pts[3*i]), Y: float64(pts[3*i+1]), Z: float64(pts[3*i+2])}
		vc := GetVoxelCoords(p, bbmin, voxelSize)
		b, ok := buckets[vc]
		if !ok {
			b = len(order)
			buckets[vc] = b
			order = append(order, nil)
		}
		order[b] = append(order[b], i)
	}

	nv := len(order)
	average := func(atype AttrType) []float32 {
		src := c.Attr(atype)
		if src == nil {
			return nil
		}
		channel := c.info.Channel(atype)
		out := make([]float32, channel*nv)
		for b, idx := range order {
			for _, i := range idx {
				for ch := 0; ch < channel; ch++ {
					out[channel*b+ch] += src[channel*i+ch]
				}
			}
			for ch := 0; ch < channel; ch++ {
				out[channel*b+ch] /= float32(len(idx))
			}
		}
		return out
	}

	newPts := average(AttrPoint)
	newNormals := average(AttrNormal)
	for b := 0; b < nv && newNormals != nil; b++ {
		n := newNormals[3*b : 3*b+3]
		length := math.Sqrt(float64(n[0]*n[0] + n[1]*n[1] + n[2]*n[2]))
		if length > 0 {
			for ch := 0; ch < 3; ch++ {
				n[ch] = float32(float64(n[ch]) / length)
			}
		}
	}

	var newLabels []float32
	if labels := c.Attr(AttrLabel); labels != nil {
		newLabels = make([]float32, nv)
		for b, idx := range order {
			count := map[float32]int{}
			best := labels[idx[0]]
			for _, i := range idx {
				count[labels[i]]++
				if count[labels[i]] > count[best] {
					best = labels[i]
				}
			}
			newLabels[b] = best
		}
	}

	return NewCloud(newPts, newNormals,
		average(AttrFeature), average(AttrFPFH), average(AttrRoughness), newLabels)
}
