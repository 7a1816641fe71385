package ubi

import (
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

// VTableRecordSize is the on-disk size of one volume-table record (matches
// the real UBI on-flash layout: reserved_pebs, alignment, data_pad,
// vol_type, upd_marker, name_len, name[128], flags, padding[23], crc).
const VTableRecordSize = 172

// VolNameMax is the longest volume name a record can hold.
const VolNameMax = 127

// VTableRecord is one entry of the layout volume's volume table,
// describing a single UBIVolume.
type VTableRecord struct {
	ReservedPEBs uint32
	Alignment    uint32
	DataPad      uint32
	VolType      uint8
	UpdMarker    uint8
	Name         string
	Flags        uint8
}

// ParseVTableRecord decodes and CRC-validates one VTableRecordSize-byte
// record. A CRC-valid record whose name_len is 0 denotes an unused slot and
// is returned with ok=false, err=nil.
func ParseVTableRecord(buf []byte) (rec VTableRecord, ok bool, err error) {
	if len(buf) < VTableRecordSize {
		return VTableRecord{}, false, ubiferrors.DecodingError("vtbl record truncated", ubiferrors.NoLocation, nil)
	}
	crc := binary.BigEndian.Uint32(buf[168:172])
	if crc != crc32.ChecksumIEEE(buf[0:168]) {
		return VTableRecord{}, false, ubiferrors.IntegrityError("vtbl record CRC mismatch", ubiferrors.NoLocation, nil)
	}

	// Layout: reserved_pebs(4) alignment(4) data_pad(4) vol_type(1)
	// upd_marker(1) name_len(2) name(128) flags(1) padding(23) crc(4).
	nameLen := binary.BigEndian.Uint16(buf[14:16])
	if nameLen == 0 {
		return VTableRecord{}, false, nil
	}
	if int(nameLen) > VolNameMax {
		nameLen = VolNameMax
	}

	rec.ReservedPEBs = binary.BigEndian.Uint32(buf[0:4])
	rec.Alignment = binary.BigEndian.Uint32(buf[4:8])
	rec.DataPad = binary.BigEndian.Uint32(buf[8:12])
	rec.VolType = buf[12]
	rec.UpdMarker = buf[13]
	name := buf[16 : 16+128]
	rec.Name = strings.TrimRight(string(name[:nameLen]), "\x00")
	rec.Flags = buf[144]

	return rec, true, nil
}

// EncodeVTableRecord is the test/fixture-building counterpart to
// ParseVTableRecord.
func EncodeVTableRecord(rec VTableRecord) []byte {
	buf := make([]byte, VTableRecordSize)
	binary.BigEndian.PutUint32(buf[0:4], rec.ReservedPEBs)
	binary.BigEndian.PutUint32(buf[4:8], rec.Alignment)
	binary.BigEndian.PutUint32(buf[8:12], rec.DataPad)
	buf[12] = rec.VolType
	buf[13] = rec.UpdMarker
	binary.BigEndian.PutUint16(buf[14:16], uint16(len(rec.Name)))
	copy(buf[16:16+128], rec.Name)
	buf[144] = rec.Flags
	binary.BigEndian.PutUint32(buf[168:172], crc32.ChecksumIEEE(buf[0:168]))
	return buf
}
