package ubi

import (
	"bytes"
	"testing"

	"github.com/wiwaszko/ubift/internal/mtd"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

const testPEBSize = 1 << 15 // 32 KiB

// buildPEB renders one full PEB: EC header, VID header (if vid != nil),
// then the LEB payload padded with 0xFF (all-0xFF if payload is empty).
func buildPEB(ec ECHeader, vid *VIDHeader, lebSize int64, payload []byte) []byte {
	buf := make([]byte, testPEBSize)
	copy(buf[0:ECHeaderSize], EncodeECHeader(ec))
	if vid != nil {
		copy(buf[ECHeaderSize:ECHeaderSize+VIDHeaderSize], EncodeVIDHeader(*vid))
	}
	dataStart := ECHeaderSize + VIDHeaderSize
	for i := range buf[dataStart:] {
		buf[dataStart+i] = 0xFF
	}
	copy(buf[dataStart:], payload)
	_ = lebSize
	return buf
}

func buildLayoutLEB(lebSize int64, records []struct {
	slot int
	rec  VTableRecord
}) []byte {
	buf := make([]byte, lebSize)
	slots := int(lebSize) / VTableRecordSize
	empty := EncodeVTableRecord(VTableRecord{})
	for i := 0; i < slots; i++ {
		copy(buf[i*VTableRecordSize:(i+1)*VTableRecordSize], empty)
	}
	for _, r := range records {
		start := r.slot * VTableRecordSize
		copy(buf[start:start+VTableRecordSize], EncodeVTableRecord(r.rec))
	}
	return buf
}

// TestBuild_ConflictingPEBs implements spec.md Fixture C: two PEBs both
// claim (vol 1, leb 0) with seq 10 and seq 20. The live map must pick seq
// 20, and the seq-10 PEB must show up as stale.
func TestBuild_ConflictingPEBs(t *testing.T) {
	lebSize := int64(testPEBSize) - ECHeaderSize - VIDHeaderSize

	var img bytes.Buffer
	// PEB 0: layout volume, single volume "data" with 4 reserved LEBs.
	layoutVID := VIDHeader{VolType: VolTypeDynamic, VolID: LayoutVolumeID, LNum: 0, SQNum: 1}
	layoutRec := VTableRecord{ReservedPEBs: 4, VolType: VolTypeDynamic, Name: "data"}
	layoutPayload := buildLayoutLEB(lebSize, []struct {
		slot int
		rec  VTableRecord
	}{{slot: 1, rec: layoutRec}})
	img.Write(buildPEB(ECHeader{EC: 1}, &layoutVID, lebSize, layoutPayload))

	// PEB 1: vol 1 leb 0, seq 20 (the eventual winner).
	vid20 := VIDHeader{VolType: VolTypeDynamic, VolID: 1, LNum: 0, SQNum: 20}
	img.Write(buildPEB(ECHeader{EC: 5}, &vid20, lebSize, bytes.Repeat([]byte{0xAB}, int(lebSize))))

	// PEB 2: vol 1 leb 0, seq 10 (stale).
	vid10 := VIDHeader{VolType: VolTypeDynamic, VolID: 1, LNum: 0, SQNum: 10}
	img.Write(buildPEB(ECHeader{EC: 5}, &vid10, lebSize, bytes.Repeat([]byte{0xCD}, int(lebSize))))

	ir := mtd.NewImage(bytes.NewReader(img.Bytes()), int64(img.Len()))
	part := mtd.MTDPartition{Offset: 0, Length: int64(img.Len()), Description: mtd.DescUBI, PEBSize: testPEBSize}

	inst, err := Build(ir, part)
	if err != nil {
		t.Fatal(err)
	}

	winner, ok := inst.LiveBacking(1, 0)
	if !ok || winner != 1 {
		t.Fatalf("expected PEB 1 (seq 20) to win, got idx=%d ok=%v", winner, ok)
	}

	stale := inst.StalePEBIndices(1, 0)
	if len(stale) != 1 || stale[0] != 2 {
		t.Fatalf("expected PEB 2 (seq 10) to be stale, got %v", stale)
	}

	vol, ok := inst.Volumes[1]
	if !ok {
		t.Fatal("expected volume 1 (\"data\") to be present")
	}
	if vol.Name != "data" || vol.SizeLEBs != 4 {
		t.Fatalf("unexpected volume record: %+v", vol)
	}

	b, err := vol.ReadLEB(0)
	if err != nil {
		t.Fatal(err)
	}
	if b[0] != 0xAB {
		t.Fatalf("expected live LEB to carry seq-20 payload, got %x", b[0])
	}

	// LEB 1 was never mapped: must read back as all-0xFF.
	b1, err := vol.ReadLEB(1)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range b1 {
		if c != 0xFF {
			t.Fatalf("unmapped LEB must read as 0xFF, got %x", c)
		}
	}
}

// TestBuild_EqualSeqAndECConflictIsUnrecoverable covers spec.md §7's named
// invariant violation: two live PEBs claiming the same (vol_id, leb_num)
// with equal sequence number and equal erase counter cannot be resolved,
// and Build must refuse rather than silently pick one.
func TestBuild_EqualSeqAndECConflictIsUnrecoverable(t *testing.T) {
	lebSize := int64(testPEBSize) - ECHeaderSize - VIDHeaderSize

	var img bytes.Buffer
	layoutVID := VIDHeader{VolType: VolTypeDynamic, VolID: LayoutVolumeID, LNum: 0, SQNum: 1}
	layoutRec := VTableRecord{ReservedPEBs: 4, VolType: VolTypeDynamic, Name: "data"}
	layoutPayload := buildLayoutLEB(lebSize, []struct {
		slot int
		rec  VTableRecord
	}{{slot: 1, rec: layoutRec}})
	img.Write(buildPEB(ECHeader{EC: 1}, &layoutVID, lebSize, layoutPayload))

	// Two PEBs claim (vol 1, leb 0) with identical sequence numbers and
	// identical erase counters.
	vid := VIDHeader{VolType: VolTypeDynamic, VolID: 1, LNum: 0, SQNum: 7}
	img.Write(buildPEB(ECHeader{EC: 3}, &vid, lebSize, bytes.Repeat([]byte{0xAB}, int(lebSize))))
	img.Write(buildPEB(ECHeader{EC: 3}, &vid, lebSize, bytes.Repeat([]byte{0xCD}, int(lebSize))))

	ir := mtd.NewImage(bytes.NewReader(img.Bytes()), int64(img.Len()))
	part := mtd.MTDPartition{Offset: 0, Length: int64(img.Len()), Description: mtd.DescUBI, PEBSize: testPEBSize}

	_, err := Build(ir, part)
	if err == nil {
		t.Fatal("expected Build to fail on an equal-(seq, ec) PEB conflict")
	}
	if !ubiferrors.Is(err, "UnrecoverableError") {
		t.Fatalf("expected an UnrecoverableError, got %v", err)
	}
}

func TestBuild_OrphanVolume(t *testing.T) {
	lebSize := int64(testPEBSize) - ECHeaderSize - VIDHeaderSize

	var img bytes.Buffer
	// Layout volume describes no volumes at all.
	layoutVID := VIDHeader{VolType: VolTypeDynamic, VolID: LayoutVolumeID, LNum: 0, SQNum: 1}
	img.Write(buildPEB(ECHeader{EC: 1}, &layoutVID, lebSize, buildLayoutLEB(lebSize, nil)))

	// A PEB claims volume id 9 but the layout volume never mentions it.
	vid := VIDHeader{VolType: VolTypeDynamic, VolID: 9, LNum: 0, SQNum: 1}
	img.Write(buildPEB(ECHeader{EC: 1}, &vid, lebSize, bytes.Repeat([]byte{0x11}, int(lebSize))))

	ir := mtd.NewImage(bytes.NewReader(img.Bytes()), int64(img.Len()))
	part := mtd.MTDPartition{Offset: 0, Length: int64(img.Len()), Description: mtd.DescUBI, PEBSize: testPEBSize}

	inst, err := Build(ir, part)
	if err != nil {
		t.Fatal(err)
	}

	vol, ok := inst.Volumes[9]
	if !ok || !vol.Orphan {
		t.Fatalf("expected volume 9 to be reported as orphan, got %+v ok=%v", vol, ok)
	}
}
