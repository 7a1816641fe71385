package ubi

import (
	"fmt"
	"sort"

	"github.com/wiwaszko/ubift/internal/mtd"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
	"github.com/wiwaszko/ubift/internal/ubiftlog"
)

// lebKey addresses one entry of the LEB→PEB map.
type lebKey struct {
	VolID uint32
	LNum  uint32
}

// UBIInstance is the union of PEBs within one MTDPartition sharing the UBI
// superblock conventions, plus the LEB→PEB mapping resolved from them.
type UBIInstance struct {
	Partition mtd.MTDPartition
	PEBs      []PEB
	LEBSize   int64

	live  map[lebKey]int // lebKey -> index into PEBs (the winner)
	stale map[lebKey][]int

	Volumes       map[uint32]*UBIVolume
	OrphanVolumes []uint32 // volume ids mapped but absent from the layout volume

	img *mtd.Image
}

// Build reconstructs a UBIInstance from part within img.
func Build(img *mtd.Image, part mtd.MTDPartition) (*UBIInstance, error) {
	log := ubiftlog.Logger()

	pebs, err := EnumeratePEBs(img, part)
	if err != nil {
		return nil, err
	}

	inst := &UBIInstance{
		Partition: part,
		PEBs:      pebs,
		LEBSize:   part.PEBSize - ECHeaderSize - VIDHeaderSize,
		live:      make(map[lebKey]int),
		stale:     make(map[lebKey][]int),
		Volumes:   make(map[uint32]*UBIVolume),
		img:       img,
	}

	for i, p := range pebs {
		if p.State != PEBData {
			continue
		}
		key := lebKey{VolID: p.VID.VolID, LNum: p.VID.LNum}
		cur, exists := inst.live[key]
		if !exists {
			inst.live[key] = i
			continue
		}
		win, err := winnerIndex(pebs[cur], p, cur, i, key)
		if err != nil {
			return nil, err
		}
		if win == i {
			inst.stale[key] = append(inst.stale[key], cur)
			inst.live[key] = i
		} else {
			inst.stale[key] = append(inst.stale[key], i)
		}
	}

	if err := inst.parseLayoutVolume(); err != nil {
		log.Warnf("layout volume unavailable: %v", err)
	}

	// Any volume id present in the live map but not described by the
	// layout volume is an orphan volume: still accessible, per spec.md
	// §4.2 failure semantics.
	seen := map[uint32]bool{}
	for key := range inst.live {
		if key.VolID == LayoutVolumeID {
			continue
		}
		if _, ok := inst.Volumes[key.VolID]; ok {
			continue
		}
		if seen[key.VolID] {
			continue
		}
		seen[key.VolID] = true
		inst.OrphanVolumes = append(inst.OrphanVolumes, key.VolID)

		maxLNum := uint32(0)
		for k := range inst.live {
			if k.VolID == key.VolID && k.LNum > maxLNum {
				maxLNum = k.LNum
			}
		}
		inst.Volumes[key.VolID] = &UBIVolume{
			ID:       key.VolID,
			Name:     "",
			SizeLEBs: maxLNum + 1,
			Type:     VolTypeDynamic,
			Orphan:   true,
			inst:     inst,
		}
	}

	return inst, nil
}

// winnerIndex picks between two PEBs claiming the same (vol_id, leb_num):
// greater sequence number wins; ties broken by CRC validity (both VID
// headers are already CRC-valid to have reached this point, so in practice
// this tier only matters if one of the two EC headers failed), falling
// back to the greater erase counter. Two PEBs with equal sequence number,
// equal CRC validity, and equal erase counter violate the live-mapping
// invariant of spec.md §7 and cannot be resolved by the toolkit.
func winnerIndex(a, b PEB, aIdx, bIdx int, key lebKey) (int, error) {
	if a.VID.SQNum != b.VID.SQNum {
		if a.VID.SQNum > b.VID.SQNum {
			return aIdx, nil
		}
		return bIdx, nil
	}
	if a.ECValid != b.ECValid {
		if a.ECValid {
			return aIdx, nil
		}
		return bIdx, nil
	}
	if a.EC.EC != b.EC.EC {
		if a.EC.EC > b.EC.EC {
			return aIdx, nil
		}
		return bIdx, nil
	}
	return 0, ubiferrors.UnrecoverableError(
		fmt.Sprintf("PEBs %d and %d both claim (vol %d, leb %d) with equal sequence number %d and erase counter %d",
			aIdx, bIdx, key.VolID, key.LNum, a.VID.SQNum, a.EC.EC),
		ubiferrors.Location{PEB: aIdx, LEB: int(key.LNum), Offset: a.Offset}, nil)
}

// parseLayoutVolume reads both copies of the volume table (LEBs 0 and 1 of
// LayoutVolumeID) and, per spec.md §4.2, uses whichever copy has a valid
// CRC, preferring the higher-sequence-number PEB when both are valid and
// disagree.
func (inst *UBIInstance) parseLayoutVolume() error {
	leb0, ok0 := inst.live[lebKey{VolID: LayoutVolumeID, LNum: 0}]
	leb1, ok1 := inst.live[lebKey{VolID: LayoutVolumeID, LNum: 1}]
	if !ok0 && !ok1 {
		return ubiferrors.IntegrityError("no layout volume copies found", ubiferrors.NoLocation, nil)
	}

	type vtblCopy struct {
		idx     int
		records []VTableRecord
		ids     []int // volume id per record slot, -1 for empty
		valid   bool
		sqnum   uint64
	}

	readCopy := func(pebIdx int) vtblCopy {
		c := vtblCopy{idx: pebIdx, sqnum: inst.PEBs[pebIdx].VID.SQNum, valid: true}
		peb := inst.PEBs[pebIdx]
		data, err := inst.img.Slice(peb.DataOffset(), inst.LEBSize)
		if err != nil {
			return vtblCopy{idx: pebIdx, valid: false}
		}
		slots := int(inst.LEBSize) / VTableRecordSize
		for i := 0; i < slots; i++ {
			start := i * VTableRecordSize
			rec, ok, err := ParseVTableRecord(data[start : start+VTableRecordSize])
			if err != nil {
				c.valid = false
				return c
			}
			if !ok {
				c.ids = append(c.ids, -1)
				c.records = append(c.records, VTableRecord{})
				continue
			}
			c.ids = append(c.ids, i)
			c.records = append(c.records, rec)
		}
		return c
	}

	var candidates []vtblCopy
	if ok0 {
		candidates = append(candidates, readCopy(leb0))
	}
	if ok1 {
		candidates = append(candidates, readCopy(leb1))
	}

	var best *vtblCopy
	for i := range candidates {
		c := &candidates[i]
		if !c.valid {
			continue
		}
		if best == nil || c.sqnum > best.sqnum {
			best = c
		}
	}
	if best == nil {
		return ubiferrors.IntegrityError("both layout volume copies failed CRC", ubiferrors.NoLocation, nil)
	}

	for i, volID := range best.ids {
		if volID < 0 {
			continue
		}
		rec := best.records[i]
		inst.Volumes[uint32(volID)] = &UBIVolume{
			ID:       uint32(volID),
			Name:     rec.Name,
			SizeLEBs: rec.ReservedPEBs,
			Type:     rec.VolType,
			Flags:    rec.Flags,
			inst:     inst,
		}
	}
	return nil
}

// StalePEBIndices returns the PEBs (by index into inst.PEBs) that lost the
// (vol_id, leb_num) conflict for key, oldest conflicts first.
func (inst *UBIInstance) StalePEBIndices(volID, lnum uint32) []int {
	return inst.stale[lebKey{VolID: volID, LNum: lnum}]
}

// AllStalePEBIndices returns every PEB index that lost a LEB-mapping
// conflict, across all volumes, in ascending order so scans over the
// result stay deterministic. Used by the recovery engine's stale-PEB
// scan (spec.md §4.4).
func (inst *UBIInstance) AllStalePEBIndices() []int {
	var out []int
	for _, idxs := range inst.stale {
		out = append(out, idxs...)
	}
	sort.Ints(out)
	return out
}

// LiveBacking returns the PEB index backing (volID, lnum), and whether it
// is mapped at all.
func (inst *UBIInstance) LiveBacking(volID, lnum uint32) (int, bool) {
	idx, ok := inst.live[lebKey{VolID: volID, LNum: lnum}]
	return idx, ok
}

// ReadPEBPayload returns the LEB-sized payload of PEBs[idx], independent of
// whether that PEB currently holds a live LEB mapping. The recovery engine
// uses this to scan stale PEBs directly (spec.md §4.4).
func (inst *UBIInstance) ReadPEBPayload(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(inst.PEBs) {
		return nil, ubiferrors.InputError("PEB index out of range", nil)
	}
	peb := inst.PEBs[idx]
	return inst.img.Slice(peb.DataOffset(), inst.LEBSize)
}
