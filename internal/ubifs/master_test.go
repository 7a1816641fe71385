package ubifs

import "testing"

// TestReadMaster_UsesValidCopyWhenOtherIsCorrupt implements spec.md Fixture
// E: master node copy 1 is corrupt, copy 2 is valid. Bootstrap must
// succeed off copy 2 rather than failing outright.
func TestReadMaster_UsesValidCopyWhenOtherIsCorrupt(t *testing.T) {
	good := EncodeNode(Header{NodeType: NodeTypeMaster, SeqNum: 10}, EncodeMasterPayload(&MasterNode{
		HighestInum: 42,
		CommitNo:    5,
		LogLNum:     3,
		RootLNum:    4,
		RootOffset:  0,
		RootLen:     64,
		LEBCount:    3,
	}))

	corrupt := append([]byte(nil), good...)
	corrupt[HeaderSize] ^= 0xFF // flip a payload byte: breaks the CRC, keeps the magic intact

	vol, err := buildFixtureVolume(map[uint32][]byte{1: corrupt, 2: good}, 3)
	if err != nil {
		t.Fatal(err)
	}

	master, err := ReadMaster(vol)
	if err != nil {
		t.Fatalf("ReadMaster: %v", err)
	}
	if master.CommitNo != 5 || master.HighestInum != 42 {
		t.Fatalf("expected the valid copy's contents, got %+v", master)
	}
}

// TestReadMaster_BothCopiesCorruptFails confirms that when neither copy
// validates, ReadMaster surfaces an error rather than returning a silently
// wrong master node.
func TestReadMaster_BothCopiesCorruptFails(t *testing.T) {
	good := EncodeNode(Header{NodeType: NodeTypeMaster, SeqNum: 10}, EncodeMasterPayload(&MasterNode{CommitNo: 1}))
	corrupt := append([]byte(nil), good...)
	corrupt[HeaderSize] ^= 0xFF

	corrupt2 := append([]byte(nil), good...)
	corrupt2[HeaderSize+1] ^= 0xFF

	vol, err := buildFixtureVolume(map[uint32][]byte{1: corrupt, 2: corrupt2}, 3)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ReadMaster(vol); err == nil {
		t.Fatal("expected an error when both master copies fail CRC")
	}
}
