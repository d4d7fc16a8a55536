package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/edaniels/lidario"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// NewCloudFromFile returns a cloud read in from the given file.
func NewCloudFromFile(fn string, logger golog.Logger) (*Cloud, error) {
	switch filepath.Ext(fn) {
	case ".points":
		return ReadCloudFromFile(fn)
	case ".las":
		return NewCloudFromLASFile(fn, logger)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// ReadCloud reads a cloud in the binary .points format.
func ReadCloud(in io.Reader) (*Cloud, error) {
	header := make([]byte, infoByteSize)
	if _, err := io.ReadFull(in, header); err != nil {
		return nil, errors.Wrap(err, "error reading points header")
	}
	var info CloudInfo
	if err := info.UnmarshalBinary(header); err != nil {
		return nil, err
	}
	if err := info.CheckFormat(); err != nil {
		return nil, err
	}

	data := make([]float32, (info.SizeOfCloud()-infoByteSize)/4)
	if err := binary.Read(bufio.NewReader(in), binary.LittleEndian, data); err != nil {
		return nil, errors.Wrap(err, "error reading points data")
	}
	return &Cloud{info: info, data: data}, nil
}

// ReadCloudFromFile reads a .points file.
func ReadCloudFromFile(fn string) (cloud *Cloud, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return ReadCloud(f)
}

// WriteCloud writes the cloud in the binary .points format.
func WriteCloud(cloud *Cloud, out io.Writer) error {
	header, err := cloud.info.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := out.Write(header); err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	if err := binary.Write(w, binary.LittleEndian, cloud.data); err != nil {
		return err
	}
	return w.Flush()
}

// WriteCloudToFile writes the cloud to a .points file.
func WriteCloudToFile(cloud *Cloud, fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteCloud(cloud, f)
}

// NewCloudFromLASFile returns a cloud from reading a LAS file. LAS carries no
// normals, so the point intensity is kept as a single-channel feature.
func NewCloudFromLASFile(fn string, logger golog.Logger) (*Cloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	npt := lf.Header.NumberPoints
	if npt == 0 {
		return nil, errors.Errorf("no points in LAS file %q", fn)
	}
	pts := make([]float32, 0, 3*npt)
	features := make([]float32, 0, npt)
	for i := 0; i < npt; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()
		pts = append(pts, float32(data.X), float32(data.Y), float32(data.Z))
		features = append(features, float32(data.Intensity))
	}
	logger.Debugw("loaded LAS cloud", "file", fn, "points", npt)
	return NewCloud(pts, nil, features, nil, nil, nil)
}

// WriteCloudToPLY writes the cloud as an ascii PLY file with positions and,
// when present, normals and labels.
func WriteCloudToPLY(cloud *Cloud, out io.Writer) error {
	npt := cloud.PtNum()
	normals := cloud.Attr(AttrNormal)
	labels := cloud.Attr(AttrLabel)

	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "ply\nformat ascii 1.0\nelement vertex %d\n", npt)
	fmt.Fprintf(w, "property float x\nproperty float y\nproperty float z\n")
	if normals != nil {
		fmt.Fprintf(w, "property float nx\nproperty float ny\nproperty float nz\n")
	}
	if labels != nil {
		fmt.Fprintf(w, "property float label\n")
	}
	if _, err := fmt.Fprintf(w, "end_header\n"); err != nil {
		return err
	}

	pts := cloud.Attr(AttrPoint)
	for i := 0; i < npt; i++ {
		fmt.Fprintf(w, "%g %g %g", pts[3*i], pts[3*i+1], pts[3*i+2])
		if normals != nil {
			fmt.Fprintf(w, " %g %g %g", normals[3*i], normals[3*i+1], normals[3*i+2])
		}
		if labels != nil {
			fmt.Fprintf(w, " %g", labels[i])
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return w.Flush()
}
