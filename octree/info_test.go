package octree

import (
	"testing"

	"go.viam.com/test"

	"github.com/Jian-Lu-gis/O-CNN-AS/pointcloud"
)

func quadCloud(t *testing.T, labels []float32) *pointcloud.Cloud {
	t.Helper()
	pts := []float32{
		0.1, 0.1, 0.1,
		0.9, 0.1, 0.1,
		0.1, 0.9, 0.1,
		0.9, 0.9, 0.9,
	}
	normals := []float32{
		0, 0, 1,
		0, 0, 1,
		0, 0, 1,
		0, 0, 1,
	}
	cloud, err := pointcloud.NewCloud(pts, normals, nil, nil, nil, labels)
	test.That(t, err, test.ShouldBeNil)
	return cloud
}

func TestNewInfo(t *testing.T) {
	cloud := quadCloud(t, nil)
	cfg := BuildConfig{Depth: 2, FullLayer: 1}
	info, err := NewInfo(cfg, cloud)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, info.Depth(), test.ShouldEqual, 2)
	test.That(t, info.FullLayer(), test.ShouldEqual, 1)
	test.That(t, info.IsAdaptive(), test.ShouldBeFalse)
	test.That(t, info.HasDisplace(), test.ShouldBeFalse)

	test.That(t, info.HasProperty(PropKey), test.ShouldBeTrue)
	test.That(t, info.HasProperty(PropChild), test.ShouldBeTrue)
	test.That(t, info.HasProperty(PropFeature), test.ShouldBeTrue)
	test.That(t, info.HasProperty(PropLabel), test.ShouldBeFalse)
	test.That(t, info.HasProperty(PropSplit), test.ShouldBeFalse)

	test.That(t, info.Channel(PropKey), test.ShouldEqual, 1)
	test.That(t, info.Channel(PropChild), test.ShouldEqual, 1)
	test.That(t, info.Channel(PropFeature), test.ShouldEqual, 3)
	test.That(t, info.Location(PropFeature), test.ShouldEqual, 2)

	bbmin, bbmax := info.BBox()
	test.That(t, bbmin, test.ShouldResemble, [3]float32{0.1, 0.1, 0.1})
	test.That(t, bbmax, test.ShouldResemble, [3]float32{0.9, 0.9, 0.9})
	test.That(t, info.BBoxMaxWidth(), test.ShouldAlmostEqual, 0.8, 1e-6)
}

func TestNewInfoOptions(t *testing.T) {
	t.Run("displace adds a feature channel", func(t *testing.T) {
		info, err := NewInfo(BuildConfig{Depth: 3, FullLayer: 1, Displace: true}, quadCloud(t, nil))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, info.HasDisplace(), test.ShouldBeTrue)
		test.That(t, info.Channel(PropFeature), test.ShouldEqual, 4)
	})

	t.Run("node feature stores signals on every layer", func(t *testing.T) {
		info, err := NewInfo(BuildConfig{Depth: 3, FullLayer: 1, NodeFeature: true}, quadCloud(t, nil))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, info.Location(PropFeature), test.ShouldEqual, -1)
	})

	t.Run("labels follow the feature location", func(t *testing.T) {
		info, err := NewInfo(BuildConfig{Depth: 3, FullLayer: 1}, quadCloud(t, []float32{0, 1, 1, 0}))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, info.HasProperty(PropLabel), test.ShouldBeTrue)
		test.That(t, info.Channel(PropLabel), test.ShouldEqual, 1)
		test.That(t, info.Location(PropLabel), test.ShouldEqual, 3)
	})

	t.Run("adaptive stores signals on every layer", func(t *testing.T) {
		info, err := NewInfo(BuildConfig{
			Depth: 3, FullLayer: 1, Adaptive: true, AdaptiveLayer: 2, ThresholdNormal: 0.1,
		}, quadCloud(t, nil))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, info.IsAdaptive(), test.ShouldBeTrue)
		test.That(t, info.Location(PropFeature), test.ShouldEqual, -1)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		_, err := NewInfo(BuildConfig{Depth: 9}, quadCloud(t, nil))
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestInfoNodeNum(t *testing.T) {
	info, err := NewInfo(BuildConfig{Depth: 2, FullLayer: 1}, quadCloud(t, nil))
	test.That(t, err, test.ShouldBeNil)
	info.setNodeNum([]int32{1, 8, 32}, []int32{1, 4, 4})

	test.That(t, info.Nnum(0), test.ShouldEqual, 1)
	test.That(t, info.Nnum(1), test.ShouldEqual, 8)
	test.That(t, info.Nnum(2), test.ShouldEqual, 32)
	test.That(t, info.NnumNempty(1), test.ShouldEqual, 4)
	test.That(t, info.NnumCum(2), test.ShouldEqual, 9)
	test.That(t, info.TotalNnum(), test.ShouldEqual, 41)

	// header, keys for 41 nodes, children for 41 nodes, normals for the
	// finest 32 nodes only
	test.That(t, info.PtrDis(PropKey, 0), test.ShouldEqual, 352)
	test.That(t, info.PtrDis(PropChild, 0), test.ShouldEqual, 352+4*41)
	test.That(t, info.PtrDis(PropFeature, 2), test.ShouldEqual, 352+8*41)
	test.That(t, info.SizeOfOctree(), test.ShouldEqual, 352+8*41+4*3*32)

	test.That(t, info.PtrDis(PropLabel, 0), test.ShouldEqual, -1)
}

func TestInfoMarshalRoundTrip(t *testing.T) {
	info, err := NewInfo(BuildConfig{
		Depth: 4, FullLayer: 2, Adaptive: true, AdaptiveLayer: 3,
		ThresholdDistance: 1.5, ThresholdNormal: 0.2, Displace: true, SplitLabel: true,
	}, quadCloud(t, []float32{0, 0, 1, 1}))
	test.That(t, err, test.ShouldBeNil)
	info.setNodeNum([]int32{1, 8, 64, 24, 16}, []int32{1, 8, 3, 2, 5})

	data, err := info.MarshalBinary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(data), test.ShouldEqual, infoByteSize)

	var got Info
	test.That(t, got.UnmarshalBinary(data), test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, info)
	test.That(t, got.CheckFormat(), test.ShouldBeNil)

	test.That(t, got.ThresholdDistance(), test.ShouldEqual, float32(1.5))
	test.That(t, got.ThresholdNormal(), test.ShouldEqual, float32(0.2))
	test.That(t, got.Key2XYZ(), test.ShouldBeFalse)
	test.That(t, got.AdaptiveLayer(), test.ShouldEqual, 3)
}

func TestInfoUnmarshalShort(t *testing.T) {
	var info Info
	err := info.UnmarshalBinary(make([]byte, infoByteSize-1))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCheckFormat(t *testing.T) {
	valid, err := NewInfo(BuildConfig{Depth: 2, FullLayer: 1}, quadCloud(t, nil))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, valid.CheckFormat(), test.ShouldBeNil)

	t.Run("bad magic", func(t *testing.T) {
		info := valid
		copy(info.magic[:], "_NOTREE_1.0_")
		test.That(t, info.CheckFormat(), test.ShouldNotBeNil)
	})

	t.Run("bad depth", func(t *testing.T) {
		info := valid
		info.depth = 9
		test.That(t, info.CheckFormat(), test.ShouldNotBeNil)
	})

	t.Run("flags and channels out of sync", func(t *testing.T) {
		info := valid
		info.channels[propIndex(PropChild)] = 0
		test.That(t, info.CheckFormat(), test.ShouldNotBeNil)
	})

	t.Run("bad location", func(t *testing.T) {
		info := valid
		info.locations[propIndex(PropFeature)] = 1
		test.That(t, info.CheckFormat(), test.ShouldNotBeNil)
	})
}
