// Package ubi implements layer L2: parsing per-PEB headers, resolving the
// LEB→PEB mapping across an unordered collection of physical erase blocks,
// and producing coherent logical-volume byte streams.
package ubi

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

const (
	// ECHeaderMagic is "UBI#" big-endian.
	ECHeaderMagic = 0x55424923
	// VIDHeaderMagic is "UBI!" big-endian.
	VIDHeaderMagic = 0x55424921

	// ECHeaderSize and VIDHeaderSize are the fixed on-disk sizes of the two
	// headers every PEB carries at its start.
	ECHeaderSize  = 64
	VIDHeaderSize = 64

	// LayoutVolumeID is the well-known volume id (0x7FFFEFFF) carrying the
	// redundant volume table copies.
	LayoutVolumeID = 0x7FFFEFFF

	// VolTypeDynamic and VolTypeStatic are the two UBIVolume.Type values.
	VolTypeDynamic = 1
	VolTypeStatic  = 2
)

// ECHeader is the erase-counter header at the start of every PEB.
type ECHeader struct {
	Magic        uint32
	Version      uint8
	EC           uint64
	VIDHdrOffset uint32
	DataOffset   uint32
	ImageSeq     uint32
	HdrCRC       uint32
}

// VIDHeader is the volume-id header following the EC header on a data PEB.
type VIDHeader struct {
	Magic    uint32
	Version  uint8
	VolType  uint8
	CopyFlag bool
	Compat   uint8
	VolID    uint32
	LNum     uint32
	DataSize uint32
	UsedEBs  uint32
	DataPad  uint32
	DataCRC  uint32
	SQNum    uint64
	HdrCRC   uint32
}

// ParseECHeader decodes and CRC-validates the EC header found at the start
// of buf. buf must be at least ECHeaderSize bytes.
func ParseECHeader(buf []byte) (ECHeader, error) {
	if len(buf) < ECHeaderSize {
		return ECHeader{}, ubiferrors.DecodingError("EC header truncated", ubiferrors.NoLocation, nil)
	}
	var h ECHeader
	h.Magic = binary.BigEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.EC = binary.BigEndian.Uint64(buf[8:16])
	h.VIDHdrOffset = binary.BigEndian.Uint32(buf[16:20])
	h.DataOffset = binary.BigEndian.Uint32(buf[20:24])
	h.ImageSeq = binary.BigEndian.Uint32(buf[24:28])
	h.HdrCRC = binary.BigEndian.Uint32(buf[60:64])

	if h.Magic != ECHeaderMagic {
		return h, ubiferrors.IntegrityError("bad EC header magic", ubiferrors.NoLocation, nil)
	}
	if crc32.ChecksumIEEE(buf[0:60]) != h.HdrCRC {
		return h, ubiferrors.IntegrityError("EC header CRC mismatch", ubiferrors.NoLocation, nil)
	}
	return h, nil
}

// ParseVIDHeader decodes and CRC-validates the VID header found at the
// start of buf. buf must be at least VIDHeaderSize bytes.
func ParseVIDHeader(buf []byte) (VIDHeader, error) {
	if len(buf) < VIDHeaderSize {
		return VIDHeader{}, ubiferrors.DecodingError("VID header truncated", ubiferrors.NoLocation, nil)
	}
	var h VIDHeader
	h.Magic = binary.BigEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.VolType = buf[5]
	h.CopyFlag = buf[6] != 0
	h.Compat = buf[7]
	h.VolID = binary.BigEndian.Uint32(buf[8:12])
	h.LNum = binary.BigEndian.Uint32(buf[12:16])
	h.DataSize = binary.BigEndian.Uint32(buf[20:24])
	h.UsedEBs = binary.BigEndian.Uint32(buf[24:28])
	h.DataPad = binary.BigEndian.Uint32(buf[28:32])
	h.DataCRC = binary.BigEndian.Uint32(buf[32:36])
	h.SQNum = binary.BigEndian.Uint64(buf[40:48])
	h.HdrCRC = binary.BigEndian.Uint32(buf[60:64])

	if h.Magic != VIDHeaderMagic {
		return h, ubiferrors.IntegrityError("bad VID header magic", ubiferrors.NoLocation, nil)
	}
	if crc32.ChecksumIEEE(buf[0:60]) != h.HdrCRC {
		return h, ubiferrors.IntegrityError("VID header CRC mismatch", ubiferrors.NoLocation, nil)
	}
	return h, nil
}
