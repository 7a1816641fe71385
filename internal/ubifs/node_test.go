package ubifs

import "testing"

func TestDecodeNode_InodeRoundTrip(t *testing.T) {
	want := &InodeNode{
		Key:   InodeKey(2),
		Size:  5,
		Nlink: 1,
		Mode:  0100644,
		UID:   1000,
		GID:   1000,
	}
	buf := EncodeNode(Header{NodeType: NodeTypeInode, SeqNum: 7}, EncodeInodePayload(want))

	n, err := DecodeNode(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !n.Valid {
		t.Fatal("expected a valid CRC")
	}
	if n.Inode == nil {
		t.Fatal("expected an inode payload")
	}
	if n.Inode.Size != want.Size || n.Inode.Mode != want.Mode || n.Inode.UID != want.UID {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", n.Inode, want)
	}
	if n.Header.SeqNum != 7 {
		t.Fatalf("sequence number not preserved: got %d", n.Header.SeqNum)
	}
}

func TestDecodeNode_CorruptPayloadMarksInvalidNotError(t *testing.T) {
	buf := EncodeNode(Header{NodeType: NodeTypeInode, SeqNum: 1}, EncodeInodePayload(&InodeNode{Key: InodeKey(3)}))
	buf[HeaderSize] ^= 0xFF

	n, err := DecodeNode(buf, 0)
	if err != nil {
		t.Fatalf("a CRC failure must not be a hard error: %v", err)
	}
	if n.Valid {
		t.Fatal("expected Valid=false after corrupting the payload")
	}
}

func TestDecodeNode_BadMagicIsHardError(t *testing.T) {
	buf := EncodeNode(Header{NodeType: NodeTypeInode}, EncodeInodePayload(&InodeNode{Key: InodeKey(1)}))
	buf[0] ^= 0xFF
	if _, err := DecodeNode(buf, 0); err == nil {
		t.Fatal("expected an error for a corrupted magic")
	}
}

func TestDentryNode_TombstoneHasZeroInode(t *testing.T) {
	d := &DentryNode{Key: DentryKey(2, "a.txt"), Inode: 0, Type: 1, Name: "a.txt"}
	buf := EncodeNode(Header{NodeType: NodeTypeDentry}, EncodeDentryPayload(d))

	n, err := DecodeNode(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n.Dentry == nil || n.Dentry.Inode != 0 || n.Dentry.Name != "a.txt" {
		t.Fatalf("unexpected dentry decode: %+v", n.Dentry)
	}
}
