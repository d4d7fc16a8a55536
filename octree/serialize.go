package octree

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// serialize lays the header and every property table out into the octree's
// contiguous buffer. Property offsets come from the header, so the buffer
// always reflects the current node counts.
func (t *Octree) serialize() {
	buf := make([]byte, t.info.SizeOfOctree())
	header, err := t.info.MarshalBinary()
	if err != nil {
		// the header encoder only writes fixed-size fields into memory
		panic(err)
	}
	copy(buf, header)

	depth := t.info.Depth()
	putU32 := func(off int, vals []uint32) int {
		for _, v := range vals {
			binary.LittleEndian.PutUint32(buf[off:], v)
			off += 4
		}
		return off
	}
	putF32 := func(off int, vals []float32) int {
		for _, v := range vals {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
		return off
	}

	if t.info.HasProperty(PropKey) {
		off := t.info.PtrDis(PropKey, 0)
		if t.info.Key2XYZ() {
			for d := 0; d <= depth; d++ {
				off = putU32(off, t.keyToXYZ(d))
			}
		} else {
			for d := 0; d <= depth; d++ {
				off = putU32(off, t.keys[d])
			}
		}
	}

	if t.info.HasProperty(PropChild) {
		off := t.info.PtrDis(PropChild, 0)
		for d := 0; d <= depth; d++ {
			for _, c := range t.children[d] {
				binary.LittleEndian.PutUint32(buf[off:], uint32(c))
				off += 4
			}
		}
	}

	if t.info.HasProperty(PropFeature) {
		off := t.info.PtrDis(PropFeature, 0)
		first, last := 0, depth
		if lc := t.info.Location(PropFeature); lc != -1 {
			first, last = lc, lc
		}
		for d := first; d <= last; d++ {
			off = putF32(off, t.featureBlob(d))
		}
	}

	if t.info.HasProperty(PropLabel) {
		off := t.info.PtrDis(PropLabel, 0)
		first, last := 0, depth
		if lc := t.info.Location(PropLabel); lc != -1 {
			first, last = lc, lc
		}
		for d := first; d <= last; d++ {
			off = putF32(off, t.avgLabels[d])
		}
	}

	if t.info.HasProperty(PropSplit) {
		off := t.info.PtrDis(PropSplit, 0)
		for d := 0; d <= depth; d++ {
			off = putF32(off, t.splitLabels[d])
		}
	}

	t.buffer = buf
}

// featureBlob concatenates a layer's feature planes in serialization order.
// A deserialized octree keeps the combined blob instead of the parts.
func (t *Octree) featureBlob(d int) []float32 {
	if len(t.features[d]) != 0 {
		return t.features[d]
	}
	n := len(t.avgNormals[d]) + len(t.displacement[d]) + len(t.avgFeatures[d]) +
		len(t.avgFPFH[d]) + len(t.avgRoughness[d])
	blob := make([]float32, 0, n)
	blob = append(blob, t.avgNormals[d]...)
	blob = append(blob, t.displacement[d]...)
	blob = append(blob, t.avgFeatures[d]...)
	blob = append(blob, t.avgFPFH[d]...)
	blob = append(blob, t.avgRoughness[d]...)
	return blob
}

// keyToXYZ unpacks a layer's keys into packed cell coordinates. With one
// channel each axis takes a byte of the word; with two channels each axis
// takes an unsigned short across a pair of words.
func (t *Octree) keyToXYZ(d int) []uint32 {
	channel := t.info.Channel(PropKey)
	keys := t.keys[d]
	xyz := make([]uint32, channel*len(keys))
	for i, key := range keys {
		pt := ComputePt(key, d)
		if channel == 1 {
			xyz[i] = pt[0] | pt[1]<<8 | pt[2]<<16
		} else {
			xyz[2*i] = pt[0] | pt[1]<<16
			xyz[2*i+1] = pt[2]
		}
	}
	return xyz
}

// xyzToKey re-interleaves packed cell coordinates into a layer's keys.
func xyzToKey(xyz []uint32, channel, d int) []uint32 {
	n := len(xyz) / channel
	keys := make([]uint32, n)
	for i := 0; i < n; i++ {
		var pt [3]uint32
		if channel == 1 {
			v := xyz[i]
			pt = [3]uint32{v & 0xff, v >> 8 & 0xff, v >> 16 & 0xff}
		} else {
			pt = [3]uint32{xyz[2*i] & 0xffff, xyz[2*i] >> 16, xyz[2*i+1] & 0xffff}
		}
		keys[i] = ComputeKey(pt, d)
	}
	return keys
}

// Buffer returns the serialized octree. It is only valid after a build or
// an unmarshal.
func (t *Octree) Buffer() []byte { return t.buffer }

// MarshalBinary returns the serialized octree buffer.
func (t *Octree) MarshalBinary() ([]byte, error) {
	if len(t.buffer) == 0 {
		return nil, errors.New("the octree has not been built")
	}
	return t.buffer, nil
}

// UnmarshalBinary parses a serialized octree buffer back into per-layer
// tables. The feature planes of a layer stay concatenated.
func (t *Octree) UnmarshalBinary(data []byte) error {
	var info Info
	if err := info.UnmarshalBinary(data); err != nil {
		return err
	}
	if err := info.CheckFormat(); err != nil {
		return err
	}
	if len(data) < info.SizeOfOctree() {
		return errors.Errorf("octree buffer needs %d bytes, got %d", info.SizeOfOctree(), len(data))
	}

	t.info = info
	depth := info.Depth()
	t.clear(depth)

	getU32 := func(off, n int) []uint32 {
		vals := make([]uint32, n)
		for i := range vals {
			vals[i] = binary.LittleEndian.Uint32(data[off+4*i:])
		}
		return vals
	}
	getF32 := func(off, n int) []float32 {
		vals := make([]float32, n)
		for i := range vals {
			vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+4*i:]))
		}
		return vals
	}

	for d := 0; d <= depth; d++ {
		nnum := info.Nnum(d)

		if info.HasProperty(PropKey) {
			channel := info.Channel(PropKey)
			raw := getU32(info.PtrDis(PropKey, d), channel*nnum)
			if info.Key2XYZ() {
				t.keys[d] = xyzToKey(raw, channel, d)
			} else {
				t.keys[d] = raw
			}
		}

		if info.HasProperty(PropChild) {
			raw := getU32(info.PtrDis(PropChild, d), nnum)
			children := make([]int32, nnum)
			for i, v := range raw {
				children[i] = int32(v)
			}
			t.children[d] = children
		}

		if info.HasProperty(PropFeature) {
			if lc := info.Location(PropFeature); lc == -1 || lc == d {
				t.features[d] = getF32(info.PtrDis(PropFeature, d), info.Channel(PropFeature)*nnum)
			}
		}

		if info.HasProperty(PropLabel) {
			if lc := info.Location(PropLabel); lc == -1 || lc == d {
				t.avgLabels[d] = getF32(info.PtrDis(PropLabel, d), nnum)
			}
		}

		if info.HasProperty(PropSplit) {
			t.splitLabels[d] = getF32(info.PtrDis(PropSplit, d), nnum)
		}
	}

	t.buffer = append([]byte(nil), data[:info.SizeOfOctree()]...)
	return nil
}
