package recovery

import (
	"bytes"

	"github.com/wiwaszko/ubift/internal/mtd"
	"github.com/wiwaszko/ubift/internal/ubi"
	"github.com/wiwaszko/ubift/internal/ubifs"
)

const fixturePEBSize = 1 << 15

func fixtureLEBSize() int64 {
	return int64(fixturePEBSize) - ubi.ECHeaderSize - ubi.VIDHeaderSize
}

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

// buildFixtureVolume assembles a single-volume ("root") UBI image with
// reservedLEBs LEBs, each populated from lebs[lnum] (or left erased).
func buildFixtureVolume(lebs map[uint32][]byte, reservedLEBs uint32) (*ubi.UBIVolume, *ubi.UBIInstance, error) {
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
		payload := lebs[lnum]
		vid := ubi.VIDHeader{VolType: ubi.VolTypeDynamic, VolID: 1, LNum: lnum, SQNum: seq}
		seq++
		img.Write(buildFixturePEB(ubi.ECHeader{EC: 1}, vid, payload))
	}

	im := mtd.NewImage(bytes.NewReader(img.Bytes()), int64(img.Len()))
	part := mtd.MTDPartition{Offset: 0, Length: int64(img.Len()), Description: mtd.DescUBI, PEBSize: fixturePEBSize}

	inst, err := ubi.Build(im, part)
	if err != nil {
		return nil, nil, err
	}
	return inst.Volumes[1], inst, nil
}

// appendNode appends one UBIFS node to buf plus an 8-byte alignment pad
// (matching ubifs.ScanNodes's expectations) and returns the extended buffer.
func appendNode(buf []byte, node []byte) []byte {
	buf = append(buf, node...)
	if rem := len(buf) % 8; rem != 0 {
		buf = append(buf, make([]byte, 8-rem)...)
	}
	return buf
}

// baseFixtureLEBs returns the superblock/master/log LEBs shared by both the
// "fresh" and "after unlink" variants of the browsing fixture, plus the
// caller's finished bud LEB payload as lebs[4].
func baseFixtureLEBs(lebSize int64, budPayload []byte) map[uint32][]byte {
	sbBytes := ubifs.EncodeNode(ubifs.Header{NodeType: ubifs.NodeTypeSuperblock, SeqNum: 1}, ubifs.EncodeSuperblockPayload(&ubifs.SuperblockNode{
		MinIOSize: 2048,
		LEBSize:   uint32(lebSize),
		LEBCount:  6,
		Fanout:    8,
	}))

	idxBytes := ubifs.EncodeNode(ubifs.Header{NodeType: ubifs.NodeTypeIndex, SeqNum: 2}, ubifs.EncodeIndexPayload(&ubifs.IndexNode{Level: 0}))

	masterBytes := ubifs.EncodeNode(ubifs.Header{NodeType: ubifs.NodeTypeMaster, SeqNum: 3}, ubifs.EncodeMasterPayload(&ubifs.MasterNode{
		HighestInum: 4,
		CommitNo:    1,
		LogLNum:     3,
		RootLNum:    5,
		RootOffset:  0,
		RootLen:     uint32(len(idxBytes)),
		LEBCount:    6,
	}))

	refBytes := ubifs.EncodeNode(ubifs.Header{NodeType: ubifs.NodeTypeRef, SeqNum: 4}, ubifs.EncodeRefPayload(&ubifs.RefNode{LEBNum: 4, Offset: 0}))

	return map[uint32][]byte{
		0: sbBytes,
		1: masterBytes,
		2: masterBytes,
		3: refBytes,
		4: budPayload,
		5: idxBytes,
	}
}
