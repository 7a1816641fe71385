package ubifs

import (
	"bytes"

	"github.com/wiwaszko/ubift/internal/mtd"
	"github.com/wiwaszko/ubift/internal/ubi"
)

const fixturePEBSize = 1 << 15 // 32 KiB

func fixtureLEBSize() int64 {
	return int64(fixturePEBSize) - ubi.ECHeaderSize - ubi.VIDHeaderSize
}

// buildFixturePEB renders one full PEB: EC header, VID header, then the
// LEB payload padded with 0xFF to fixturePEBSize.
func buildFixturePEB(ec ubi.ECHeader, vid ubi.VIDHeader, payload []byte) []byte {
	buf := make([]byte, fixturePEBSize)
	copy(buf[0:ubi.ECHeaderSize], ubi.EncodeECHeader(ec))
	copy(buf[ubi.ECHeaderSize:ubi.ECHeaderSize+ubi.VIDHeaderSize], ubi.EncodeVIDHeader(vid))
	dataStart := ubi.ECHeaderSize + ubi.VIDHeaderSize
	for i := range buf[dataStart:] {
		buf[dataStart+i] = 0xFF
	}
	copy(buf[dataStart:], payload)
	return buf
}

// buildFixtureVolume assembles a single-volume UBI image: a layout PEB
// describing volume id 1 ("root", reservedLEBs LEBs), then one PEB for
// every lnum below reservedLEBs carrying lebs[lnum] (erased when absent),
// and returns the resolved UBIVolume.
func buildFixtureVolume(lebs map[uint32][]byte, reservedLEBs uint32) (*ubi.UBIVolume, error) {
	lebSize := fixtureLEBSize()

	var img bytes.Buffer
	layoutVID := ubi.VIDHeader{VolType: ubi.VolTypeDynamic, VolID: ubi.LayoutVolumeID, LNum: 0, SQNum: 1}
	layoutRec := ubi.VTableRecord{ReservedPEBs: reservedLEBs, VolType: ubi.VolTypeDynamic, Name: "root"}
	slots := int(lebSize) / ubi.VTableRecordSize
	layoutBuf := make([]byte, lebSize)
	empty := ubi.EncodeVTableRecord(ubi.VTableRecord{})
	for i := 0; i < slots; i++ {
		copy(layoutBuf[i*ubi.VTableRecordSize:(i+1)*ubi.VTableRecordSize], empty)
	}
	copy(layoutBuf[1*ubi.VTableRecordSize:2*ubi.VTableRecordSize], ubi.EncodeVTableRecord(layoutRec))
	img.Write(buildFixturePEB(ubi.ECHeader{EC: 1}, layoutVID, layoutBuf))

	seq := uint64(2)
	for lnum := uint32(0); lnum < reservedLEBs; lnum++ {
		payload, ok := lebs[lnum]
		if !ok {
			payload = nil
		}
		vid := ubi.VIDHeader{VolType: ubi.VolTypeDynamic, VolID: 1, LNum: lnum, SQNum: seq}
		seq++
		img.Write(buildFixturePEB(ubi.ECHeader{EC: 1}, vid, payload))
	}

	im := mtd.NewImage(bytes.NewReader(img.Bytes()), int64(img.Len()))
	part := mtd.MTDPartition{Offset: 0, Length: int64(img.Len()), Description: mtd.DescUBI, PEBSize: fixturePEBSize}

	inst, err := ubi.Build(im, part)
	if err != nil {
		return nil, err
	}
	return inst.Volumes[1], nil
}
