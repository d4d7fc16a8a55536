package octree

import (
	"testing"

	"go.viam.com/test"
)

func TestIntersectPlaneCube(t *testing.T) {
	t.Run("axis-aligned plane crosses four edges", func(t *testing.T) {
		vtx := intersectPlaneCube(
			[3]float32{0.5, 0.5, 0.5}, [3]float32{0, 0, 0}, [3]float32{0, 0, 1})
		test.That(t, len(vtx), test.ShouldEqual, 12)
		for i := 0; i < len(vtx); i += 3 {
			test.That(t, vtx[i+2], test.ShouldAlmostEqual, 0.5, 1e-6)
		}
	})

	t.Run("offset cube", func(t *testing.T) {
		vtx := intersectPlaneCube(
			[3]float32{2.25, 0, 0}, [3]float32{2, 3, 4}, [3]float32{1, 0, 0})
		test.That(t, len(vtx), test.ShouldEqual, 12)
		for i := 0; i < len(vtx); i += 3 {
			test.That(t, vtx[i], test.ShouldAlmostEqual, 2.25, 1e-6)
			test.That(t, vtx[i+1], test.ShouldBeIn, float32(3), float32(4))
			test.That(t, vtx[i+2], test.ShouldBeIn, float32(4), float32(5))
		}
	})

	t.Run("plane misses the cube", func(t *testing.T) {
		vtx := intersectPlaneCube(
			[3]float32{0.5, 0.5, 2}, [3]float32{0, 0, 0}, [3]float32{0, 0, 1})
		test.That(t, vtx, test.ShouldBeEmpty)
	})

	t.Run("zero normal spans no plane", func(t *testing.T) {
		vtx := intersectPlaneCube(
			[3]float32{0.5, 0.5, 0.5}, [3]float32{0, 0, 0}, [3]float32{0, 0, 0})
		test.That(t, vtx, test.ShouldBeEmpty)
	})
}
