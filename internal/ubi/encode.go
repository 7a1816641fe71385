package ubi

import (
	"encoding/binary"
	"hash/crc32"
)

// EncodeECHeader renders h into an ECHeaderSize-byte buffer with a valid
// HdrCRC, for use by fixture-building tests across this module (the core
// never writes an image, so this exists purely to let tests construct
// realistic inputs).
func EncodeECHeader(h ECHeader) []byte {
	buf := make([]byte, ECHeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], ECHeaderMagic)
	buf[4] = h.Version
	binary.BigEndian.PutUint64(buf[8:16], h.EC)
	binary.BigEndian.PutUint32(buf[16:20], h.VIDHdrOffset)
	binary.BigEndian.PutUint32(buf[20:24], h.DataOffset)
	binary.BigEndian.PutUint32(buf[24:28], h.ImageSeq)
	binary.BigEndian.PutUint32(buf[60:64], crc32.ChecksumIEEE(buf[0:60]))
	return buf
}

// EncodeVIDHeader renders h into a VIDHeaderSize-byte buffer with a valid
// HdrCRC.
func EncodeVIDHeader(h VIDHeader) []byte {
	buf := make([]byte, VIDHeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], VIDHeaderMagic)
	buf[4] = h.Version
	buf[5] = h.VolType
	if h.CopyFlag {
		buf[6] = 1
	}
	buf[7] = h.Compat
	binary.BigEndian.PutUint32(buf[8:12], h.VolID)
	binary.BigEndian.PutUint32(buf[12:16], h.LNum)
	binary.BigEndian.PutUint32(buf[20:24], h.DataSize)
	binary.BigEndian.PutUint32(buf[24:28], h.UsedEBs)
	binary.BigEndian.PutUint32(buf[28:32], h.DataPad)
	binary.BigEndian.PutUint32(buf[32:36], h.DataCRC)
	binary.BigEndian.PutUint64(buf[40:48], h.SQNum)
	binary.BigEndian.PutUint32(buf[60:64], crc32.ChecksumIEEE(buf[0:60]))
	return buf
}
