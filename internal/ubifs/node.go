package ubifs

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

// NodeMagic is the 4-byte magic every UBIFS node begins with.
const NodeMagic = 0x06101831

// HeaderSize is the size of the common node header shared by every node
// type (magic, crc, sequence number, length, node type, group type, pad).
const HeaderSize = 24

// NodeType identifies the payload that follows a node's common header.
type NodeType uint8

const (
	NodeTypeInode NodeType = iota
	NodeTypeData
	NodeTypeDentry
	NodeTypeTrunc
	NodeTypeSuperblock
	NodeTypeMaster
	NodeTypeIndex
	NodeTypeRef
	NodeTypeCommitStart
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeInode:
		return "inode"
	case NodeTypeData:
		return "data"
	case NodeTypeDentry:
		return "dentry"
	case NodeTypeTrunc:
		return "trunc"
	case NodeTypeSuperblock:
		return "superblock"
	case NodeTypeMaster:
		return "master"
	case NodeTypeIndex:
		return "index"
	case NodeTypeRef:
		return "ref"
	case NodeTypeCommitStart:
		return "commit-start"
	default:
		return "unknown"
	}
}

// Header is the 24-byte common node header, little-endian (matches the
// on-flash UBIFS layout: magic, crc, sqnum, len, node_type, group_type, pad).
type Header struct {
	Magic    uint32
	CRC      uint32
	SeqNum   uint64
	Len      uint32
	NodeType NodeType
	Group    uint8
}

// InodeNode is the payload of a NodeTypeInode node.
type InodeNode struct {
	Key                 Key
	Size                uint64
	Nlink               uint32
	Mode                uint32
	UID, GID            uint32
	ATime, MTime, CTime int64 // unix seconds
	Compression         uint8
	LinkTargetLen       uint32
	LinkTarget          []byte // fast-symlink target, when Mode indicates a symlink
}

// DataNode is the payload of a NodeTypeData node: one (possibly compressed)
// extent of file content.
type DataNode struct {
	Key             Key
	Size            uint32 // uncompressed length
	Compression     uint8
	CompressedBytes []byte
}

// DentryNode is the payload of a NodeTypeDentry node. Inode == 0 marks a
// tombstone (spec.md §4.3, deleted-view).
type DentryNode struct {
	Key   Key
	Inode uint32
	Type  uint8
	Name  string
}

// Branch is one entry of an index node: a key plus the (LEB, offset, len)
// of the child node or sub-tree it routes to.
type Branch struct {
	Key    Key
	LEB    uint32
	Offset uint32
	Len    uint32
}

// IndexNode is the payload of a NodeTypeIndex node: a B+-tree branch.
type IndexNode struct {
	Level    uint8
	Branches []Branch
}

// TruncNode is the payload of a NodeTypeTrunc node, recording a file-size
// change that data nodes alone wouldn't reveal.
type TruncNode struct {
	Key     Key
	OldSize uint64
	NewSize uint64
}

// SuperblockNode is the payload of the superblock node (LEB 0), describing
// filesystem-wide geometry and defaults.
type SuperblockNode struct {
	MinIOSize    uint32
	LEBSize      uint32
	LEBCount     uint32
	MaxLEBCount  uint32
	Fanout       uint32
	DefaultCompr uint8
	KeyHash      uint8
}

// MasterNode is the payload of a master node (LEBs 1-2): pointers into the
// log, index, and LPT areas as of the last commit.
type MasterNode struct {
	HighestInum uint64
	CommitNo    uint64
	LogLNum     uint32
	RootLNum    uint32
	RootOffset  uint32
	RootLen     uint32
	LEBCount    uint32
}

// RefNode is a log entry pointing at a bud LEB holding journaled nodes not
// yet folded into the index (spec.md §4.3, journal replay).
type RefNode struct {
	LEBNum uint32
	Offset uint32
	JHead  uint8
}

// Node is a decoded UBIFS node: the common header plus exactly one
// non-nil payload field, selected by Header.NodeType.
type Node struct {
	Header Header
	Offset int64 // byte offset within the LEB this node was read from
	Valid  bool  // false when the CRC check failed

	Inode      *InodeNode
	Data       *DataNode
	Dentry     *DentryNode
	Index      *IndexNode
	Trunc      *TruncNode
	Superblock *SuperblockNode
	Master     *MasterNode
	Ref        *RefNode
}

// Key returns the node's key and true, for node types that carry one.
func (n *Node) Key() (Key, bool) {
	switch {
	case n.Inode != nil:
		return n.Inode.Key, true
	case n.Data != nil:
		return n.Data.Key, true
	case n.Dentry != nil:
		return n.Dentry.Key, true
	case n.Trunc != nil:
		return n.Trunc.Key, true
	default:
		return Key{}, false
	}
}

// DecodeNode parses one node starting at buf[0]. buf may extend beyond the
// node; Header.Len determines how much is consumed. A magic mismatch or
// truncated buffer is a hard error; a CRC mismatch is reported via
// Valid=false so recovery code can still inspect (and potentially salvage)
// the node instead of discarding it outright.
func DecodeNode(buf []byte, lebOffset int64) (*Node, error) {
	if len(buf) < HeaderSize {
		return nil, ubiferrors.DecodingError("node header truncated", ubiferrors.Location{Offset: lebOffset}, nil)
	}
	hdr := Header{
		Magic:    binary.LittleEndian.Uint32(buf[0:4]),
		CRC:      binary.LittleEndian.Uint32(buf[4:8]),
		SeqNum:   binary.LittleEndian.Uint64(buf[8:16]),
		Len:      binary.LittleEndian.Uint32(buf[16:20]),
		NodeType: NodeType(buf[20]),
		Group:    buf[21],
	}
	if hdr.Magic != NodeMagic {
		return nil, ubiferrors.DecodingError(
			fmt.Sprintf("bad node magic %#x", hdr.Magic),
			ubiferrors.Location{Offset: lebOffset}, nil)
	}
	if hdr.Len < HeaderSize || int(hdr.Len) > len(buf) {
		return nil, ubiferrors.DecodingError("node length out of range", ubiferrors.Location{Offset: lebOffset}, nil)
	}

	full := make([]byte, hdr.Len)
	copy(full, buf[:hdr.Len])
	binary.LittleEndian.PutUint32(full[4:8], 0)
	valid := crc32.ChecksumIEEE(full) == hdr.CRC

	n := &Node{Header: hdr, Offset: lebOffset, Valid: valid}
	body := buf[HeaderSize:hdr.Len]

	switch hdr.NodeType {
	case NodeTypeInode:
		n.Inode = decodeInode(body)
	case NodeTypeData:
		n.Data = decodeData(body)
	case NodeTypeDentry:
		n.Dentry = decodeDentry(body)
	case NodeTypeIndex:
		n.Index = decodeIndex(body)
	case NodeTypeTrunc:
		n.Trunc = decodeTrunc(body)
	case NodeTypeSuperblock:
		n.Superblock = decodeSuperblock(body)
	case NodeTypeMaster:
		n.Master = decodeMaster(body)
	case NodeTypeRef:
		n.Ref = decodeRef(body)
	case NodeTypeCommitStart:
		// no payload beyond the header
	default:
		return nil, ubiferrors.DecodingError(
			fmt.Sprintf("unknown node type %d", hdr.NodeType),
			ubiferrors.Location{Offset: lebOffset}, nil)
	}
	return n, nil
}

func keyFromBytes(b []byte) Key {
	return Key{
		Inum:   binary.LittleEndian.Uint32(b[0:4]),
		Type:   KeyType(b[4]),
		Offset: binary.LittleEndian.Uint32(b[5:9]),
	}
}

func putKey(b []byte, k Key) {
	binary.LittleEndian.PutUint32(b[0:4], k.Inum)
	b[4] = byte(k.Type)
	binary.LittleEndian.PutUint32(b[5:9], k.Offset)
}

// keySize is the wire size of an encoded Key (inum + type + offset).
const keySize = 9

func decodeInode(b []byte) *InodeNode {
	n := &InodeNode{}
	n.Key = keyFromBytes(b[0:keySize])
	o := keySize
	n.Size = binary.LittleEndian.Uint64(b[o : o+8])
	o += 8
	n.Nlink = binary.LittleEndian.Uint32(b[o : o+4])
	o += 4
	n.Mode = binary.LittleEndian.Uint32(b[o : o+4])
	o += 4
	n.UID = binary.LittleEndian.Uint32(b[o : o+4])
	o += 4
	n.GID = binary.LittleEndian.Uint32(b[o : o+4])
	o += 4
	n.ATime = int64(binary.LittleEndian.Uint64(b[o : o+8]))
	o += 8
	n.MTime = int64(binary.LittleEndian.Uint64(b[o : o+8]))
	o += 8
	n.CTime = int64(binary.LittleEndian.Uint64(b[o : o+8]))
	o += 8
	n.Compression = b[o]
	o++
	n.LinkTargetLen = binary.LittleEndian.Uint32(b[o : o+4])
	o += 4
	if n.LinkTargetLen > 0 && o+int(n.LinkTargetLen) <= len(b) {
		n.LinkTarget = append([]byte(nil), b[o:o+int(n.LinkTargetLen)]...)
	}
	return n
}

func EncodeInodePayload(n *InodeNode) []byte {
	buf := make([]byte, keySize+8+4+4+4+4+8+8+8+1+4+len(n.LinkTarget))
	putKey(buf, n.Key)
	o := keySize
	binary.LittleEndian.PutUint64(buf[o:o+8], n.Size)
	o += 8
	binary.LittleEndian.PutUint32(buf[o:o+4], n.Nlink)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:o+4], n.Mode)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:o+4], n.UID)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:o+4], n.GID)
	o += 4
	binary.LittleEndian.PutUint64(buf[o:o+8], uint64(n.ATime))
	o += 8
	binary.LittleEndian.PutUint64(buf[o:o+8], uint64(n.MTime))
	o += 8
	binary.LittleEndian.PutUint64(buf[o:o+8], uint64(n.CTime))
	o += 8
	buf[o] = n.Compression
	o++
	binary.LittleEndian.PutUint32(buf[o:o+4], uint32(len(n.LinkTarget)))
	o += 4
	copy(buf[o:], n.LinkTarget)
	return buf
}

func decodeData(b []byte) *DataNode {
	n := &DataNode{}
	n.Key = keyFromBytes(b[0:keySize])
	o := keySize
	n.Size = binary.LittleEndian.Uint32(b[o : o+4])
	o += 4
	n.Compression = b[o]
	o++
	n.CompressedBytes = append([]byte(nil), b[o:]...)
	return n
}

func EncodeDataPayload(n *DataNode) []byte {
	buf := make([]byte, keySize+4+1+len(n.CompressedBytes))
	putKey(buf, n.Key)
	o := keySize
	binary.LittleEndian.PutUint32(buf[o:o+4], n.Size)
	o += 4
	buf[o] = n.Compression
	o++
	copy(buf[o:], n.CompressedBytes)
	return buf
}

func decodeDentry(b []byte) *DentryNode {
	n := &DentryNode{}
	n.Key = keyFromBytes(b[0:keySize])
	o := keySize
	n.Inode = binary.LittleEndian.Uint32(b[o : o+4])
	o += 4
	n.Type = b[o]
	o++
	nameLen := binary.LittleEndian.Uint16(b[o : o+2])
	o += 2
	n.Name = string(b[o : o+int(nameLen)])
	return n
}

func EncodeDentryPayload(n *DentryNode) []byte {
	buf := make([]byte, keySize+4+1+2+len(n.Name))
	putKey(buf, n.Key)
	o := keySize
	binary.LittleEndian.PutUint32(buf[o:o+4], n.Inode)
	o += 4
	buf[o] = n.Type
	o++
	binary.LittleEndian.PutUint16(buf[o:o+2], uint16(len(n.Name)))
	o += 2
	copy(buf[o:], n.Name)
	return buf
}

const branchSize = keySize + 4 + 4 + 4

func decodeIndex(b []byte) *IndexNode {
	n := &IndexNode{}
	n.Level = b[0]
	count := b[1]
	o := 2
	for i := 0; i < int(count); i++ {
		br := Branch{
			Key:    keyFromBytes(b[o : o+keySize]),
			LEB:    binary.LittleEndian.Uint32(b[o+keySize : o+keySize+4]),
			Offset: binary.LittleEndian.Uint32(b[o+keySize+4 : o+keySize+8]),
			Len:    binary.LittleEndian.Uint32(b[o+keySize+8 : o+keySize+12]),
		}
		n.Branches = append(n.Branches, br)
		o += branchSize
	}
	return n
}

func EncodeIndexPayload(n *IndexNode) []byte {
	buf := make([]byte, 2+len(n.Branches)*branchSize)
	buf[0] = n.Level
	buf[1] = uint8(len(n.Branches))
	o := 2
	for _, br := range n.Branches {
		putKey(buf[o:o+keySize], br.Key)
		binary.LittleEndian.PutUint32(buf[o+keySize:o+keySize+4], br.LEB)
		binary.LittleEndian.PutUint32(buf[o+keySize+4:o+keySize+8], br.Offset)
		binary.LittleEndian.PutUint32(buf[o+keySize+8:o+keySize+12], br.Len)
		o += branchSize
	}
	return buf
}

func decodeTrunc(b []byte) *TruncNode {
	n := &TruncNode{}
	n.Key = keyFromBytes(b[0:keySize])
	o := keySize
	n.OldSize = binary.LittleEndian.Uint64(b[o : o+8])
	o += 8
	n.NewSize = binary.LittleEndian.Uint64(b[o : o+8])
	return n
}

func EncodeTruncPayload(n *TruncNode) []byte {
	buf := make([]byte, keySize+8+8)
	putKey(buf, n.Key)
	o := keySize
	binary.LittleEndian.PutUint64(buf[o:o+8], n.OldSize)
	o += 8
	binary.LittleEndian.PutUint64(buf[o:o+8], n.NewSize)
	return buf
}

func decodeSuperblock(b []byte) *SuperblockNode {
	n := &SuperblockNode{}
	n.MinIOSize = binary.LittleEndian.Uint32(b[0:4])
	n.LEBSize = binary.LittleEndian.Uint32(b[4:8])
	n.LEBCount = binary.LittleEndian.Uint32(b[8:12])
	n.MaxLEBCount = binary.LittleEndian.Uint32(b[12:16])
	n.Fanout = binary.LittleEndian.Uint32(b[16:20])
	n.DefaultCompr = b[20]
	n.KeyHash = b[21]
	return n
}

func EncodeSuperblockPayload(n *SuperblockNode) []byte {
	buf := make([]byte, 22)
	binary.LittleEndian.PutUint32(buf[0:4], n.MinIOSize)
	binary.LittleEndian.PutUint32(buf[4:8], n.LEBSize)
	binary.LittleEndian.PutUint32(buf[8:12], n.LEBCount)
	binary.LittleEndian.PutUint32(buf[12:16], n.MaxLEBCount)
	binary.LittleEndian.PutUint32(buf[16:20], n.Fanout)
	buf[20] = n.DefaultCompr
	buf[21] = n.KeyHash
	return buf
}

func decodeMaster(b []byte) *MasterNode {
	n := &MasterNode{}
	n.HighestInum = binary.LittleEndian.Uint64(b[0:8])
	n.CommitNo = binary.LittleEndian.Uint64(b[8:16])
	n.LogLNum = binary.LittleEndian.Uint32(b[16:20])
	n.RootLNum = binary.LittleEndian.Uint32(b[20:24])
	n.RootOffset = binary.LittleEndian.Uint32(b[24:28])
	n.RootLen = binary.LittleEndian.Uint32(b[28:32])
	n.LEBCount = binary.LittleEndian.Uint32(b[32:36])
	return n
}

func EncodeMasterPayload(n *MasterNode) []byte {
	buf := make([]byte, 36)
	binary.LittleEndian.PutUint64(buf[0:8], n.HighestInum)
	binary.LittleEndian.PutUint64(buf[8:16], n.CommitNo)
	binary.LittleEndian.PutUint32(buf[16:20], n.LogLNum)
	binary.LittleEndian.PutUint32(buf[20:24], n.RootLNum)
	binary.LittleEndian.PutUint32(buf[24:28], n.RootOffset)
	binary.LittleEndian.PutUint32(buf[28:32], n.RootLen)
	binary.LittleEndian.PutUint32(buf[32:36], n.LEBCount)
	return buf
}

func decodeRef(b []byte) *RefNode {
	return &RefNode{
		LEBNum: binary.LittleEndian.Uint32(b[0:4]),
		Offset: binary.LittleEndian.Uint32(b[4:8]),
		JHead:  b[8],
	}
}

func EncodeRefPayload(n *RefNode) []byte {
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint32(buf[0:4], n.LEBNum)
	binary.LittleEndian.PutUint32(buf[4:8], n.Offset)
	buf[8] = n.JHead
	return buf
}

// EncodeNode is the fixture-building counterpart to DecodeNode: it renders
// a complete node (header + payload) with a correct CRC, given a Header
// whose Len/CRC/Magic fields are ignored and recomputed.
func EncodeNode(h Header, payload []byte) []byte {
	h.Magic = NodeMagic
	total := HeaderSize + len(payload)
	h.Len = uint32(total)
	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint64(buf[8:16], h.SeqNum)
	binary.LittleEndian.PutUint32(buf[16:20], h.Len)
	buf[20] = byte(h.NodeType)
	buf[21] = h.Group
	copy(buf[HeaderSize:], payload)
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(buf))
	return buf
}
