package ubi

import (
	"github.com/wiwaszko/ubift/internal/mtd"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

// PEBState classifies a physical erase block.
type PEBState int

const (
	PEBFree PEBState = iota
	PEBData
	PEBCorrupt
)

// PEB is a fixed-size slice within an MTD partition. It is free (no VID
// header), data (VID header present and valid), or corrupt (bad CRC or
// magic on either header).
type PEB struct {
	Index  int   // index within the owning partition
	Offset int64 // absolute byte offset in the image

	EC      ECHeader
	ECValid bool

	VID      VIDHeader
	VIDValid bool

	State PEBState
}

// EnumeratePEBs slices part into PEB-sized chunks and parses their EC and
// VID headers. A PEB whose EC header fails to parse is reported as
// PEBCorrupt and excluded from further consideration by the caller; it is
// still returned so the recovery layer can inspect it.
func EnumeratePEBs(img *mtd.Image, part mtd.MTDPartition) ([]PEB, error) {
	if part.PEBSize <= 0 {
		return nil, ubiferrors.GeometryError("partition has no PEB size", nil)
	}

	n := part.Length / part.PEBSize
	pebs := make([]PEB, 0, n)

	for i := int64(0); i < n; i++ {
		offset := part.Offset + i*part.PEBSize
		p := PEB{Index: int(i), Offset: offset, State: PEBFree}

		ecBuf, err := img.Slice(offset, ECHeaderSize)
		if err != nil {
			return nil, err
		}
		ec, err := ParseECHeader(ecBuf)
		if err != nil {
			p.State = PEBCorrupt
			pebs = append(pebs, p)
			continue
		}
		p.EC = ec
		p.ECValid = true

		vidOffset := offset + int64(ec.VIDHdrOffset)
		if ec.VIDHdrOffset == 0 {
			vidOffset = offset + ECHeaderSize
		}
		if vidOffset+VIDHeaderSize > offset+part.PEBSize {
			p.State = PEBCorrupt
			pebs = append(pebs, p)
			continue
		}

		vidBuf, err := img.Slice(vidOffset, VIDHeaderSize)
		if err != nil {
			return nil, err
		}
		vid, err := ParseVIDHeader(vidBuf)
		if err != nil {
			// No VID header (or a bad one): free if every byte is 0xFF
			// (erased); otherwise corrupt.
			if allFF(vidBuf) {
				p.State = PEBFree
			} else {
				p.State = PEBCorrupt
			}
			pebs = append(pebs, p)
			continue
		}
		p.VID = vid
		p.VIDValid = true
		p.State = PEBData
		pebs = append(pebs, p)
	}

	return pebs, nil
}

// DataOffset returns the absolute byte offset where this PEB's LEB payload
// begins (past both headers, or the EC header's declared data_offset).
func (p PEB) DataOffset() int64 {
	if p.ECValid && p.EC.DataOffset != 0 {
		return p.Offset + int64(p.EC.DataOffset)
	}
	return p.Offset + ECHeaderSize + VIDHeaderSize
}

func allFF(b []byte) bool {
	for _, c := range b {
		if c != 0xFF {
			return false
		}
	}
	return true
}
