// Package pointcloud stores point clouds with per-point attributes and
// implements the binary .points format consumed by the octree builder.
//
// A cloud is one contiguous block of float32 attribute planes described by a
// fixed-size header. Attribute accessors return views into that block; the
// cloud owns the storage.
package pointcloud

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// AttrType enumerates the per-point attribute kinds a cloud may carry.
type AttrType int

// Attribute kinds. The values are bit flags recorded in the header's content
// flags.
const (
	AttrPoint AttrType = 1 << iota
	AttrNormal
	AttrFeature
	AttrFPFH
	AttrRoughness
	AttrLabel
)

const (
	attrTypeNum  = 6
	infoMagic    = "_POINTS_1.0_"
	infoByteSize = 16 + 4 + 4 + 4*8 + 4*8
)

// CloudInfo is the fixed-size header of a .points file: point count, content
// flags and the per-attribute channel and byte-offset tables.
type CloudInfo struct {
	magic        [16]byte
	ptNum        int32
	contentFlags int32
	channels     [8]int32
	ptrDis       [8]int32
}

// NewCloudInfo returns a header with the magic string set and no attributes.
func NewCloudInfo() CloudInfo {
	var info CloudInfo
	copy(info.magic[:], infoMagic)
	return info
}

// PtNum returns the number of points.
func (info *CloudInfo) PtNum() int {
	return int(info.ptNum)
}

// HasAttr reports whether the given attribute is present.
func (info *CloudInfo) HasAttr(atype AttrType) bool {
	return info.contentFlags&int32(atype) != 0
}

// Channel returns the channel count of the given attribute, 0 if absent.
func (info *CloudInfo) Channel(atype AttrType) int {
	if !info.HasAttr(atype) {
		return 0
	}
	return int(info.channels[attrIndex(atype)])
}

// PtrDis returns the byte offset of the given attribute's data from the start
// of the serialized cloud, or -1 if the attribute is absent.
func (info *CloudInfo) PtrDis(atype AttrType) int {
	if !info.HasAttr(atype) {
		return -1
	}
	return int(info.ptrDis[attrIndex(atype)])
}

// SizeOfCloud returns the total byte size of the serialized cloud, header
// included.
func (info *CloudInfo) SizeOfCloud() int {
	return int(info.ptrDis[attrTypeNum])
}

// SetPtNum sets the number of points.
func (info *CloudInfo) SetPtNum(num int) {
	info.ptNum = int32(num)
}

// SetChannel sets the channel count of the given attribute and keeps the
// content flags consistent with it.
func (info *CloudInfo) SetChannel(atype AttrType, ch int) {
	i := attrIndex(atype)
	if ch > 0 {
		info.channels[i] = int32(ch)
		info.contentFlags |= int32(atype)
	} else {
		info.channels[i] = 0
		info.contentFlags &^= int32(atype)
	}
}

// SetPtrDis recomputes the byte-offset table from the channel table. Must be
// called after the channels are final.
func (info *CloudInfo) SetPtrDis() {
	info.ptrDis[0] = infoByteSize
	for i := 1; i <= attrTypeNum; i++ {
		info.ptrDis[i] = info.ptrDis[i-1] + 4*info.ptNum*info.channels[i-1]
	}
}

// CheckFormat validates the header and returns every problem found.
func (info *CloudInfo) CheckFormat() error {
	var err error
	if string(bytes.TrimRight(info.magic[:], "\x00")) != infoMagic {
		err = multierr.Append(err, errors.Errorf("the magic string should be %s", infoMagic))
	}
	if info.ptNum <= 0 {
		err = multierr.Append(err, errors.New("the point number should be larger than 0"))
	}
	channelMax := [attrTypeNum]int32{3, 3, 1 << 30, 1 << 30, 1, 1}
	for i := 0; i < attrTypeNum; i++ {
		if info.channels[i] < 0 || info.channels[i] > channelMax[i] {
			err = multierr.Append(err, errors.Errorf("the channel %d should be in range [0, %d]", i, channelMax[i]))
		}
		if (info.channels[i] == 0) != (info.contentFlags&(1<<i) == 0) {
			err = multierr.Append(err, errors.Errorf("the content flags should be consistent with channel %d", i))
		}
	}
	if !info.HasAttr(AttrPoint) {
		err = multierr.Append(err, errors.New("the points themselves are mandatory"))
	}
	if !info.HasAttr(AttrNormal) && !info.HasAttr(AttrFeature) {
		err = multierr.Append(err, errors.New("normals and features should not both be absent"))
	}
	return err
}

// MarshalBinary encodes the header into its fixed little-endian layout.
func (info *CloudInfo) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, infoByteSize))
	for _, v := range []interface{}{
		info.magic, info.ptNum, info.contentFlags, info.channels, info.ptrDis,
	} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes the header from its fixed little-endian layout.
func (info *CloudInfo) UnmarshalBinary(data []byte) error {
	if len(data) < infoByteSize {
		return errors.Errorf("header needs %d bytes, got %d", infoByteSize, len(data))
	}
	buf := bytes.NewReader(data[:infoByteSize])
	for _, v := range []interface{}{
		&info.magic, &info.ptNum, &info.contentFlags, &info.channels, &info.ptrDis,
	} {
		if err := binary.Read(buf, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func attrIndex(atype AttrType) int {
	k := 0
	for i := 0; i < attrTypeNum; i++ {
		if atype&(1<<i) != 0 {
			k = i
			break
		}
	}
	return k
}
