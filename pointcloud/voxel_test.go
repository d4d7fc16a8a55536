package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestGetVoxelCoords(t *testing.T) {
	ptMin := r3.Vector{X: -1, Y: -1, Z: -1}
	vc := GetVoxelCoords(r3.Vector{X: 0.5, Y: -0.5, Z: 1.9}, ptMin, 1.0)
	test.That(t, vc, test.ShouldResemble, VoxelCoords{I: 1, J: 0, K: 2})
	test.That(t, vc.IsEqual(VoxelCoords{I: 1, J: 0, K: 2}), test.ShouldBeTrue)
	test.That(t, vc.IsEqual(VoxelCoords{I: 1, J: 0, K: 3}), test.ShouldBeFalse)
}

func TestDownsample(t *testing.T) {
	// the first two points share a voxel, the third sits on its own
	cloud, err := NewCloud(
		[]float32{
			0.1, 0.1, 0.1,
			0.3, 0.3, 0.3,
			1.5, 0.1, 0.1,
		},
		[]float32{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		},
		nil, nil, nil,
		[]float32{2, 2, 5})
	test.That(t, err, test.ShouldBeNil)

	down, err := cloud.Downsample(1.0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, down.PtNum(), test.ShouldEqual, 2)

	pts := down.Attr(AttrPoint)
	test.That(t, pts[0], test.ShouldAlmostEqual, 0.2, 1e-6)
	test.That(t, pts[1], test.ShouldAlmostEqual, 0.2, 1e-6)
	test.That(t, pts[3], test.ShouldAlmostEqual, 1.5, 1e-6)

	// averaged normals come out unit length
	normals := down.Attr(AttrNormal)
	test.That(t, normals[0], test.ShouldAlmostEqual, 0.70710677, 1e-5)
	test.That(t, normals[1], test.ShouldAlmostEqual, 0.70710677, 1e-5)
	test.That(t, normals[2], test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, normals[5], test.ShouldAlmostEqual, 1, 1e-6)

	test.That(t, down.Attr(AttrLabel), test.ShouldResemble, []float32{2, 5})
}

func TestDownsampleBadVoxelSize(t *testing.T) {
	_, err := planeCloud(t).Downsample(0)
	test.That(t, err, test.ShouldNotBeNil)
}
