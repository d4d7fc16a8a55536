package octree

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// ReadOctree reads a serialized octree.
func ReadOctree(t *Octree, in io.Reader) error {
	header := make([]byte, infoByteSize)
	if _, err := io.ReadFull(in, header); err != nil {
		return errors.Wrap(err, "error reading octree header")
	}
	var info Info
	if err := info.UnmarshalBinary(header); err != nil {
		return err
	}
	if err := info.CheckFormat(); err != nil {
		return err
	}

	buf := make([]byte, info.SizeOfOctree())
	copy(buf, header)
	if _, err := io.ReadFull(in, buf[infoByteSize:]); err != nil {
		return errors.Wrap(err, "error reading octree data")
	}
	return t.UnmarshalBinary(buf)
}

// ReadOctreeFromFile reads a serialized octree from a file.
func ReadOctreeFromFile(t *Octree, fn string) error {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return ReadOctree(t, f)
}

// WriteOctree writes the serialized octree.
func WriteOctree(t *Octree, out io.Writer) error {
	buf, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = out.Write(buf)
	return err
}

// WriteOctreeToFile writes the serialized octree to a file.
func WriteOctreeToFile(t *Octree, fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteOctree(t, f)
}
