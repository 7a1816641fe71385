package ubi

// UBIVolume is a logically contiguous sequence of LEBs, some mapped
// (backed by a PEB) and some unmapped (read as all-0xFF).
type UBIVolume struct {
	ID       uint32
	Name     string
	SizeLEBs uint32
	Type     uint8 // VolTypeDynamic or VolTypeStatic
	Flags    uint8
	Orphan   bool // true when no layout-volume record described this id

	inst *UBIInstance
}

// LEBSize is the usable byte length of every LEB in this volume.
func (v *UBIVolume) LEBSize() int64 { return v.inst.LEBSize }

// ReadLEB returns the LEB_size bytes of logical erase block n, or an
// all-0xFF buffer if n is unmapped.
func (v *UBIVolume) ReadLEB(n uint32) ([]byte, error) {
	pebIdx, ok := v.inst.live[lebKey{VolID: v.ID, LNum: n}]
	if !ok {
		buf := make([]byte, v.inst.LEBSize)
		for i := range buf {
			buf[i] = 0xFF
		}
		return buf, nil
	}
	peb := v.inst.PEBs[pebIdx]
	return v.inst.img.Slice(peb.DataOffset(), v.inst.LEBSize)
}

// Backing reports which PEB (by index into the owning UBIInstance's PEBs
// slice) backs LEB n, and whether n is mapped at all.
func (v *UBIVolume) Backing(n uint32) (pebIndex int, mapped bool) {
	return v.inst.LiveBacking(v.ID, n)
}

// ReadAll concatenates every LEB of the volume in order (ubicat, spec.md §6).
func (v *UBIVolume) ReadAll() ([]byte, error) {
	out := make([]byte, 0, int64(v.SizeLEBs)*v.inst.LEBSize)
	for i := uint32(0); i < v.SizeLEBs; i++ {
		b, err := v.ReadLEB(i)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}
