package octree

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/Jian-Lu-gis/O-CNN-AS/pointcloud"
)

// PropType enumerates the node properties an octree buffer may carry. The
// values are bit flags recorded in the header's content flags.
type PropType int

// Node properties. PropNeigh is reserved for downstream consumers that attach
// precomputed neighborhood tables; the builder never emits it.
const (
	PropKey PropType = 1 << iota
	PropChild
	PropNeigh
	PropFeature
	PropLabel
	PropSplit
)

const (
	propTypeNum  = 6
	octreeMagic  = "_OCTREE_1.0_"
	infoByteSize = 16 + 4*7 + 4*propTypeNum*2 + 4*16*3 + 4*8 + 4 + 4*2 + 4*6
)

// Info is the fixed-size octree header: build parameters, bounding box and
// the per-property channel, location and byte-offset tables. It prefixes
// every serialized octree buffer.
type Info struct {
	magic         [16]byte
	batchSize     int32
	depth         int32
	fullLayer     int32
	isAdaptive    int32
	adaptiveLayer int32
	hasDisplace   int32
	key2xyz       int32
	channels      [propTypeNum]int32
	locations     [propTypeNum]int32
	nnum          [16]int32
	nnumCum       [16]int32
	nnumNempty    [16]int32
	ptrDis        [8]int32
	contentFlags  int32
	thDist        float32
	thNormal      float32
	bbmin         [3]float32
	bbmax         [3]float32
}

// NewInfo derives a build header from the config and the cloud's attributes.
// The bounding box is the tightest cube containing the cloud; override it
// with SetBBox before building if a canonical box is required.
func NewInfo(cfg BuildConfig, cloud *pointcloud.Cloud) (Info, error) {
	if err := cfg.Validate(); err != nil {
		return Info{}, err
	}

	var info Info
	copy(info.magic[:], octreeMagic)
	info.batchSize = 1
	info.fullLayer = int32(cfg.FullLayer)
	if info.fullLayer < 1 {
		info.fullLayer = 1
	}
	info.depth = int32(cfg.Depth)
	if info.depth < info.fullLayer {
		info.depth = info.fullLayer
	}
	info.adaptiveLayer = int32(cfg.AdaptiveLayer)
	if info.adaptiveLayer < info.fullLayer {
		info.adaptiveLayer = info.fullLayer
	}
	if info.adaptiveLayer > info.depth {
		info.adaptiveLayer = info.depth
	}
	info.isAdaptive = b2i(cfg.Adaptive)
	info.hasDisplace = b2i(cfg.Displace)
	info.key2xyz = b2i(cfg.Key2XYZ)
	info.thDist = cfg.ThresholdDistance
	info.thNormal = cfg.ThresholdNormal

	// every octree carries keys and children
	keyChannel := 1
	if cfg.Key2XYZ && info.depth > 8 {
		keyChannel = 2
	}
	info.setProperty(PropKey, keyChannel, -1)
	info.setProperty(PropChild, 1, -1)

	if cfg.SplitLabel {
		info.setProperty(PropSplit, 1, -1)
	}

	ci := cloud.Info()
	featureChannel := ci.Channel(pointcloud.AttrNormal) +
		ci.Channel(pointcloud.AttrFeature) +
		ci.Channel(pointcloud.AttrFPFH) +
		ci.Channel(pointcloud.AttrRoughness)
	if cfg.Displace {
		featureChannel++
	}
	location := int(info.depth)
	if cfg.NodeFeature || cfg.Adaptive {
		location = -1
	}
	info.setProperty(PropFeature, featureChannel, location)

	if ci.Channel(pointcloud.AttrLabel) == 1 {
		info.setProperty(PropLabel, 1, location)
	}

	center, radius := cloud.BoundingSphere()
	for i := 0; i < 3; i++ {
		c := axisValue(center, i)
		info.bbmin[i] = float32(c - radius)
		info.bbmax[i] = float32(c + radius)
	}

	// nnum, nnumCum, nnumNempty and ptrDis are only known once the octree
	// is built
	return info, nil
}

// Depth returns the finest octree depth.
func (info *Info) Depth() int { return int(info.depth) }

// FullLayer returns the deepest fully-enumerated layer.
func (info *Info) FullLayer() int { return int(info.fullLayer) }

// AdaptiveLayer returns the shallowest layer the trim pass may collapse.
func (info *Info) AdaptiveLayer() int { return int(info.adaptiveLayer) }

// IsAdaptive reports whether adaptive trimming is enabled.
func (info *Info) IsAdaptive() bool { return info.isAdaptive != 0 }

// HasDisplace reports whether displacement signals are built.
func (info *Info) HasDisplace() bool { return info.hasDisplace != 0 }

// Key2XYZ reports whether keys serialize as packed coordinates.
func (info *Info) Key2XYZ() bool { return info.key2xyz != 0 }

// ThresholdDistance returns the adaptive trim distance-error threshold.
func (info *Info) ThresholdDistance() float32 { return info.thDist }

// ThresholdNormal returns the adaptive trim normal-error threshold.
func (info *Info) ThresholdNormal() float32 { return info.thNormal }

// HasProperty reports whether the given property is present.
func (info *Info) HasProperty(ptype PropType) bool {
	return info.contentFlags&int32(ptype) != 0
}

// Channel returns the channel count of the given property, 0 if absent.
func (info *Info) Channel(ptype PropType) int {
	if !info.HasProperty(ptype) {
		return 0
	}
	return int(info.channels[propIndex(ptype)])
}

// Location returns -1 when the property is stored for every layer, or the
// single layer it is stored for.
func (info *Info) Location(ptype PropType) int {
	if !info.HasProperty(ptype) {
		return 0
	}
	return int(info.locations[propIndex(ptype)])
}

// Nnum returns the node count of the given layer.
func (info *Info) Nnum(d int) int { return int(info.nnum[d]) }

// NnumCum returns the number of nodes in all layers before the given one.
func (info *Info) NnumCum(d int) int { return int(info.nnumCum[d]) }

// NnumNempty returns the non-empty node count of the given layer.
func (info *Info) NnumNempty(d int) int { return int(info.nnumNempty[d]) }

// TotalNnum returns the node count over all layers.
func (info *Info) TotalNnum() int { return int(info.nnumCum[info.depth+1]) }

// SizeOfOctree returns the total byte size of the serialized octree.
func (info *Info) SizeOfOctree() int { return int(info.ptrDis[propTypeNum]) }

// PtrDis returns the byte offset of the given property's data for the given
// layer, or -1 if the property is absent.
func (info *Info) PtrDis(ptype PropType, d int) int {
	if !info.HasProperty(ptype) {
		return -1
	}
	dis := int(info.ptrDis[propIndex(ptype)])
	if info.Location(ptype) == -1 {
		dis += info.NnumCum(d) * info.Channel(ptype) * 4
	}
	return dis
}

// BBox returns the bounding box corners.
func (info *Info) BBox() ([3]float32, [3]float32) { return info.bbmin, info.bbmax }

// SetBBox overrides the bounding box.
func (info *Info) SetBBox(bbmin, bbmax [3]float32) {
	info.bbmin, info.bbmax = bbmin, bbmax
}

// BBoxMaxWidth returns the largest bounding-box extent, clamped away from
// zero for degenerate boxes.
func (info *Info) BBoxMaxWidth() float32 {
	maxWidth := info.bbmax[0] - info.bbmin[0]
	for i := 1; i < 3; i++ {
		if dis := info.bbmax[i] - info.bbmin[i]; dis > maxWidth {
			maxWidth = dis
		}
	}
	if maxWidth == 0 {
		maxWidth = 1.0e-10
	}
	return maxWidth
}

// CheckFormat validates the header and returns every problem found.
func (info *Info) CheckFormat() error {
	var err error
	if string(bytes.TrimRight(info.magic[:], "\x00")) != octreeMagic {
		err = multierr.Append(err, errors.Errorf("the version of the octree format is not %s", octreeMagic))
	}
	if info.batchSize < 1 {
		err = multierr.Append(err, errors.New("the batch size should be larger than 0"))
	}
	if info.depth < 1 || info.depth > 8 {
		err = multierr.Append(err, errors.New("the depth should be in range [1, 8]"))
	}
	if info.fullLayer < 0 || info.fullLayer > info.depth {
		err = multierr.Append(err, errors.New("the full layer should be in range [0, depth]"))
	}
	if info.adaptiveLayer < info.fullLayer || info.adaptiveLayer > info.depth {
		err = multierr.Append(err, errors.New("the adaptive layer should be in range [full layer, depth]"))
	}
	channelMax := [propTypeNum]int32{2, 1, 8, 1 << 30, 1, 1}
	for i := 0; i < propTypeNum; i++ {
		if info.channels[i] < 0 || info.channels[i] > channelMax[i] {
			err = multierr.Append(err, errors.Errorf("the channel %d should be in range [0, %d]", i, channelMax[i]))
		}
		if (info.channels[i] == 0) != (info.contentFlags&(1<<i) == 0) {
			err = multierr.Append(err, errors.Errorf("the content flags should be consistent with channel %d", i))
		}
		if info.channels[i] != 0 && info.locations[i] != -1 && info.locations[i] != info.depth {
			err = multierr.Append(err, errors.Errorf("the location %d should be -1 or %d", i, info.depth))
		}
	}
	return err
}

// MarshalBinary encodes the header into its fixed little-endian layout.
func (info *Info) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, infoByteSize))
	for _, v := range info.fieldOrder() {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the header from its fixed little-endian layout.
func (info *Info) UnmarshalBinary(data []byte) error {
	if len(data) < infoByteSize {
		return errors.Errorf("header needs %d bytes, got %d", infoByteSize, len(data))
	}
	buf := bytes.NewReader(data[:infoByteSize])
	for _, v := range info.fieldOrder() {
		if err := binary.Read(buf, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func (info *Info) fieldOrder() []interface{} {
	return []interface{}{
		&info.magic, &info.batchSize, &info.depth, &info.fullLayer,
		&info.isAdaptive, &info.adaptiveLayer, &info.hasDisplace, &info.key2xyz,
		&info.channels, &info.locations,
		&info.nnum, &info.nnumCum, &info.nnumNempty, &info.ptrDis,
		&info.contentFlags, &info.thDist, &info.thNormal,
		&info.bbmin, &info.bbmax,
	}
}

func (info *Info) setProperty(ptype PropType, ch, location int) {
	i := propIndex(ptype)
	if ch > 0 {
		info.channels[i] = int32(ch)
		info.contentFlags |= int32(ptype)
	} else {
		info.channels[i] = 0
		info.contentFlags &^= int32(ptype)
	}
	info.locations[i] = int32(location)
}

// setNodeNum records the per-layer node counts and recomputes the cumulative
// counts and the property byte offsets.
func (info *Info) setNodeNum(nnum, nnumNempty []int32) {
	for d := 0; d <= int(info.depth); d++ {
		info.nnum[d] = nnum[d]
		info.nnumNempty[d] = nnumNempty[d]
	}

	info.nnumCum[0] = 0
	for d := 1; d < int(info.depth)+2; d++ {
		info.nnumCum[d] = info.nnumCum[d-1] + info.nnum[d-1]
	}

	info.ptrDis[0] = infoByteSize
	for i := 1; i <= propTypeNum; i++ {
		ptype := PropType(1 << (i - 1))
		num := int32(info.TotalNnum())
		if lc := info.Location(ptype); lc != -1 {
			num = info.nnum[lc]
		}
		// a channel of 0 wipes out the meaningless num of an absent property
		info.ptrDis[i] = info.ptrDis[i-1] + 4*num*info.channels[i-1]
	}
}

func propIndex(ptype PropType) int {
	k := 0
	for i := 0; i < propTypeNum; i++ {
		if ptype&(1<<i) != 0 {
			k = i
			break
		}
	}
	return k
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
