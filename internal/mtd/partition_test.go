package mtd

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildECHeaderPEB returns a pebSize-byte buffer with a valid EC magic at
// its start, the remainder zero-filled.
func buildECHeaderPEB(pebSize int) []byte {
	buf := make([]byte, pebSize)
	binary.BigEndian.PutUint32(buf[0:4], ecMagic)
	return buf
}

func TestScanPartitions_EmptyImage(t *testing.T) {
	img := NewImage(bytes.NewReader(nil), 0)
	parts, err := ScanPartitions(img, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || parts[0].Length != 0 || parts[0].Description != DescUnknown {
		t.Fatalf("unexpected partitions for empty image: %+v", parts)
	}
}

func TestScanPartitions_NoSignatures(t *testing.T) {
	data := make([]byte, 4096)
	img := NewImage(bytes.NewReader(data), int64(len(data)))
	parts, err := ScanPartitions(img, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || parts[0].Description != DescUnknown || parts[0].Length != int64(len(data)) {
		t.Fatalf("expected single unknown partition, got %+v", parts)
	}
}

func TestScanPartitions_OneUBIPartition(t *testing.T) {
	const pebSize = 1 << 15
	var buf bytes.Buffer
	// leading gap of one PEB of junk, then 3 valid PEBs, then no trailer.
	buf.Write(make([]byte, pebSize))
	for i := 0; i < 3; i++ {
		buf.Write(buildECHeaderPEB(pebSize))
	}

	img := NewImage(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	parts, err := ScanPartitions(img, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(parts) != 2 {
		t.Fatalf("expected gap + UBI partition, got %+v", parts)
	}
	if parts[0].Description != DescUnknown || parts[0].Length != pebSize {
		t.Fatalf("unexpected leading gap: %+v", parts[0])
	}
	if parts[1].Description != DescUBI || parts[1].Offset != pebSize || parts[1].Length != 3*pebSize {
		t.Fatalf("unexpected UBI partition: %+v", parts[1])
	}
}

func TestScanPartitions_ExplicitGeometryBypassesDetection(t *testing.T) {
	data := make([]byte, 4096)
	img := NewImage(bytes.NewReader(data), int64(len(data)))
	parts, err := ScanPartitions(img, &Geometry{Offset: 0, PEBSize: 2048})
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || parts[0].Description != DescUBI || parts[0].PEBSize != 2048 {
		t.Fatalf("explicit geometry not honored: %+v", parts)
	}
}
