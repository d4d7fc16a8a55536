package octree

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

func TestOctreeFileRoundTrip(t *testing.T) {
	cloud := quadCloud(t, nil)
	tree := NewOctree(golog.NewTestLogger(t))
	test.That(t, tree.Build(BuildConfig{Depth: 2, FullLayer: 1, Displace: true}, cloud),
		test.ShouldBeNil)

	fn := filepath.Join(t.TempDir(), "quad.octree")
	test.That(t, WriteOctreeToFile(tree, fn), test.ShouldBeNil)

	var got Octree
	test.That(t, ReadOctreeFromFile(&got, fn), test.ShouldBeNil)
	test.That(t, got.Info(), test.ShouldResemble, tree.Info())
	test.That(t, got.Buffer(), test.ShouldResemble, tree.Buffer())
}

func TestReadOctreeErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		var got Octree
		err := ReadOctreeFromFile(&got, filepath.Join(t.TempDir(), "nope.octree"))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("truncated header", func(t *testing.T) {
		var got Octree
		err := ReadOctree(&got, bytes.NewReader(make([]byte, 16)))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("bad magic", func(t *testing.T) {
		var got Octree
		buf := make([]byte, infoByteSize)
		copy(buf, "_BADTREE_9.9")
		err := ReadOctree(&got, bytes.NewReader(buf))
		test.That(t, err, test.ShouldNotBeNil)
	})
}
