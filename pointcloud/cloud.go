package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Cloud is a point cloud with per-point attributes backed by a single
// contiguous float32 buffer. The attribute accessors return views into that
// buffer; callers must treat them as read-only.
type Cloud struct {
	info CloudInfo
	data []float32
}

// NewCloud creates a cloud from per-point attribute slices. The points must
// not be empty, the normals and features must not both be empty, and every
// attribute length must be a multiple of the point count. Labels carry one
// channel per point.
func NewCloud(pts, normals, features, fpfh, roughness, labels []float32) (*Cloud, error) {
	if len(pts) == 0 || len(pts)%3 != 0 {
		return nil, errors.Errorf("invalid point buffer length (%d)", len(pts))
	}
	npt := len(pts) / 3
	if len(normals) == 0 && len(features) == 0 {
		return nil, errors.New("normals and features must not both be empty")
	}
	if len(normals) != 0 && len(normals) != len(pts) {
		return nil, errors.Errorf("expected %d normal values, got %d", len(pts), len(normals))
	}
	if len(labels) != 0 && len(labels) != npt {
		return nil, errors.Errorf("expected %d labels, got %d", npt, len(labels))
	}
	for _, attr := range [][]float32{features, fpfh, roughness} {
		if len(attr)%npt != 0 {
			return nil, errors.Errorf("attribute length %d is not a multiple of the point count %d", len(attr), npt)
		}
	}

	info := NewCloudInfo()
	info.SetPtNum(npt)
	info.SetChannel(AttrPoint, 3)
	info.SetChannel(AttrNormal, len(normals)/npt)
	info.SetChannel(AttrFeature, len(features)/npt)
	info.SetChannel(AttrFPFH, len(fpfh)/npt)
	info.SetChannel(AttrRoughness, len(roughness)/npt)
	info.SetChannel(AttrLabel, len(labels)/npt)
	info.SetPtrDis()

	data := make([]float32, 0, (info.SizeOfCloud()-infoByteSize)/4)
	for _, attr := range [][]float32{pts, normals, features, fpfh, roughness, labels} {
		data = append(data, attr...)
	}
	return &Cloud{info: info, data: data}, nil
}

// Info returns the cloud's header.
func (c *Cloud) Info() *CloudInfo {
	return &c.info
}

// PtNum returns the number of points.
func (c *Cloud) PtNum() int {
	return c.info.PtNum()
}

// Attr returns the float32 plane of the given attribute, nil if absent. The
// plane holds Channel(atype) values per point, point-major.
func (c *Cloud) Attr(atype AttrType) []float32 {
	if !c.info.HasAttr(atype) {
		return nil
	}
	begin := (c.info.PtrDis(atype) - infoByteSize) / 4
	end := begin + c.info.Channel(atype)*c.info.PtNum()
	return c.data[begin:end]
}

// Bounds returns the axis-aligned bounding box of the points.
func (c *Cloud) Bounds() (r3.Vector, r3.Vector) {
	bbmin := r3.Vector{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	bbmax := bbmin.Mul(-1)
	pts := c.Attr(AttrPoint)
	for i := 0; i < len(pts); i += 3 {
		p := r3.Vector{X: float64(pts[i]), Y: float64(pts[i+1]), Z: float64(pts[i+2])}
		bbmin = r3.Vector{X: math.Min(bbmin.X, p.X), Y: math.Min(bbmin.Y, p.Y), Z: math.Min(bbmin.Z, p.Z)}
		bbmax = r3.Vector{X: math.Max(bbmax.X, p.X), Y: math.Max(bbmax.Y, p.Y), Z: math.Max(bbmax.Z, p.Z)}
	}
	return bbmin, bbmax
}

// BoundingSphere returns the center of the bounding box and the half-width of
// the tightest axis-aligned cube about that center containing every point.
func (c *Cloud) BoundingSphere() (r3.Vector, float64) {
	bbmin, bbmax := c.Bounds()
	center := bbmin.Add(bbmax).Mul(0.5)
	radius := 0.0
	pts := c.Attr(AttrPoint)
	for i := 0; i < len(pts); i += 3 {
		for j := 0; j < 3; j++ {
			d := math.Abs(float64(pts[i+j]) - axis(center, j))
			if d > radius {
				radius = d
			}
		}
	}
	return center, radius
}

// CenterAbout translates the cloud so that its bounding-box center coincides
// with the given point.
func (c *Cloud) CenterAbout(center r3.Vector) {
	bbmin, bbmax := c.Bounds()
	offset := center.Sub(bbmin.Add(bbmax).Mul(0.5))
	pts := c.Attr(AttrPoint)
	for i := 0; i < len(pts); i += 3 {
		for j := 0; j < 3; j++ {
			pts[i+j] += float32(axis(offset, j))
		}
	}
}

// Displace moves every point along its normal by the given distance.
func (c *Cloud) Displace(dis float64) error {
	normals := c.Attr(AttrNormal)
	if normals == nil {
		return errors.New("cannot displace a cloud without normals")
	}
	pts := c.Attr(AttrPoint)
	for i := 0; i < len(pts); i++ {
		pts[i] += float32(dis) * normals[i]
	}
	return nil
}

// Rotate rotates the points and normals by the given angle (radians) about
// the given axis through the origin.
func (c *Cloud) Rotate(angle float64, axisDir r3.Vector) {
	rot := rotationMatrix(angle, axisDir.Normalize())
	applyMatrix(c.Attr(AttrPoint), rot)
	applyMatrix(c.Attr(AttrNormal), rot)
}

// Transform applies a 4x4 row-major affine transformation to the points; the
// rotation part alone is applied to the normals.
func (c *Cloud) Transform(transformation []float64) error {
	if len(transformation) != 16 {
		return errors.Errorf("expected a 4x4 matrix, got %d values", len(transformation))
	}
	m := mat.NewDense(4, 4, transformation)
	rot := m.Slice(0, 3, 0, 3)
	applyMatrix(c.Attr(AttrPoint), rot)
	pts := c.Attr(AttrPoint)
	for i := 0; i < len(pts); i += 3 {
		for j := 0; j < 3; j++ {
			pts[i+j] += float32(m.At(j, 3))
		}
	}
	applyMatrix(c.Attr(AttrNormal), rot)
	return nil
}

// rotationMatrix builds the Rodrigues rotation matrix for a unit axis.
func rotationMatrix(angle float64, u r3.Vector) mat.Matrix {
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + u.X*u.X*t, u.X*u.Y*t - u.Z*s, u.X*u.Z*t + u.Y*s,
		u.Y*u.X*t + u.Z*s, c + u.Y*u.Y*t, u.Y*u.Z*t - u.X*s,
		u.Z*u.X*t - u.Y*s, u.Z*u.Y*t + u.X*s, c + u.Z*u.Z*t,
	})
}

func applyMatrix(vecs []float32, m mat.Matrix) {
	for i := 0; i < len(vecs); i += 3 {
		x, y, z := float64(vecs[i]), float64(vecs[i+1]), float64(vecs[i+2])
		for j := 0; j < 3; j++ {
			vecs[i+j] = float32(m.At(j, 0)*x + m.At(j, 1)*y + m.At(j, 2)*z)
		}
	}
}

func axis(v r3.Vector, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
