package mtd

import (
	"encoding/binary"

	"github.com/wiwaszko/ubift/internal/ubiftlog"
)

// ecMagic is the 4-byte magic at the start of every UBI EC header
// ("UBI#", big-endian 0x55424923). Only the magic is inspected here; full
// EC/VID header decoding is layer L2's job (internal/ubi).
const ecMagic = 0x55424923

// pebSizeCandidates are the power-of-two PEB sizes probed during
// auto-detection, per spec.md §4.1 (2^15..2^20 bytes).
var pebSizeCandidates = []int64{
	1 << 15, 1 << 16, 1 << 17, 1 << 18, 1 << 19, 1 << 20,
}

// Description values for a scanned MTDPartition.
const (
	DescUBI     = "UBI"
	DescUnknown = "unknown"
)

// MTDPartition is a contiguous slice of an Image.
type MTDPartition struct {
	Offset      int64
	Length      int64
	Description string
	// PEBSize is the geometry this partition was detected (or configured)
	// with; zero when Description is DescUnknown and no geometry applies.
	PEBSize int64
}

// Geometry overrides auto-detection: when non-zero, ScanPartitions trusts
// the supplied offset and PEB size instead of probing for UBI magic.
type Geometry struct {
	Offset  int64
	PEBSize int64
}

// ScanPartitions produces the ordered list of MTDPartitions within img.
//
// With an explicit Geometry, detection is bypassed entirely: a single UBI
// partition is returned spanning from Geometry.Offset to the end of the
// image, using Geometry.PEBSize.
//
// Otherwise the image is scanned for EC-header magic at every candidate
// PEB-size boundary; contiguous runs of valid EC headers sharing a PEB size
// are clustered into one "UBI" partition each, and the gaps between (or
// around) them become "unknown" partitions.
func ScanPartitions(img *Image, geom *Geometry) ([]MTDPartition, error) {
	log := ubiftlog.Logger()

	if img.Size() == 0 {
		return []MTDPartition{{Offset: 0, Length: 0, Description: DescUnknown}}, nil
	}

	if geom != nil && geom.PEBSize > 0 {
		return []MTDPartition{{
			Offset:      geom.Offset,
			Length:      img.Size() - geom.Offset,
			Description: DescUBI,
			PEBSize:     geom.PEBSize,
		}}, nil
	}

	var runs []pebRun

	for _, pebSize := range pebSizeCandidates {
		nPEBs := img.Size() / pebSize
		var curStart int64 = -1
		for i := int64(0); i < nPEBs; i++ {
			off := i * pebSize
			ok, err := hasECMagic(img, off)
			if err != nil {
				log.Debugf("mtd scan: read failure at offset %d: %v", off, err)
				ok = false
			}
			if ok {
				if curStart < 0 {
					curStart = i
				}
			} else if curStart >= 0 {
				runs = append(runs, pebRun{start: curStart, end: i, pebSize: pebSize})
				curStart = -1
			}
		}
		if curStart >= 0 {
			runs = append(runs, pebRun{start: curStart, end: nPEBs, pebSize: pebSize})
		}
	}

	if len(runs) == 0 {
		log.Infof("no UBI signatures found in %d-byte image; returning single unknown partition", img.Size())
		return []MTDPartition{{Offset: 0, Length: img.Size(), Description: DescUnknown}}, nil
	}

	// Prefer the run set covering the most bytes overall when multiple PEB
	// sizes both produced matches (ambiguous geometry); keep only the
	// longest run per starting offset region.
	best := longestNonOverlapping(runs)

	var parts []MTDPartition
	var cursor int64
	for _, r := range best {
		start := r.start * r.pebSize
		end := r.end * r.pebSize
		if start > cursor {
			parts = append(parts, MTDPartition{Offset: cursor, Length: start - cursor, Description: DescUnknown})
		}
		parts = append(parts, MTDPartition{Offset: start, Length: end - start, Description: DescUBI, PEBSize: r.pebSize})
		cursor = end
	}
	if cursor < img.Size() {
		parts = append(parts, MTDPartition{Offset: cursor, Length: img.Size() - cursor, Description: DescUnknown})
	}

	return parts, nil
}

type pebRun struct {
	start, end int64
	pebSize    int64
}

// longestNonOverlapping picks, among overlapping candidate runs (produced by
// different PEB-size hypotheses), the longest byte span for each region, and
// returns the result ordered by starting offset.
func longestNonOverlapping(runs []pebRun) []pebRun {
	converted := append([]pebRun(nil), runs...)

	// Sort by byte length of the run, descending, greedily keep
	// non-overlapping (in byte space) runs.
	for i := 0; i < len(converted); i++ {
		for j := i + 1; j < len(converted); j++ {
			li := (converted[i].end - converted[i].start) * converted[i].pebSize
			lj := (converted[j].end - converted[j].start) * converted[j].pebSize
			if lj > li {
				converted[i], converted[j] = converted[j], converted[i]
			}
		}
	}

	var kept []pebRun
	overlaps := func(a, b pebRun) bool {
		aStart, aEnd := a.start*a.pebSize, a.end*a.pebSize
		bStart, bEnd := b.start*b.pebSize, b.end*b.pebSize
		return aStart < bEnd && bStart < aEnd
	}
	for _, c := range converted {
		clash := false
		for _, k := range kept {
			if overlaps(c, k) {
				clash = true
				break
			}
		}
		if !clash {
			kept = append(kept, c)
		}
	}

	for i := 0; i < len(kept); i++ {
		for j := i + 1; j < len(kept); j++ {
			if kept[j].start*kept[j].pebSize < kept[i].start*kept[i].pebSize {
				kept[i], kept[j] = kept[j], kept[i]
			}
		}
	}
	return kept
}

func hasECMagic(img *Image, offset int64) (bool, error) {
	if offset+4 > img.Size() {
		return false, nil
	}
	buf, err := img.Slice(offset, 4)
	if err != nil {
		return false, err
	}
	return binary.BigEndian.Uint32(buf) == ecMagic, nil
}
