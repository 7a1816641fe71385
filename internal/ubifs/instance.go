package ubifs

import (
	"sort"

	"github.com/wiwaszko/ubift/internal/ubi"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

// lowKey and highKey bound the entire key space, for full-tree scans.
var lowKey = Key{Inum: 0, Type: KeyTypeInode, Offset: 0}
var highKey = Key{Inum: 0xFFFFFFFF, Type: KeyTypeTrunc + 1, Offset: 0}

// RootIno is the inode number of a UBIFS volume's root directory.
const RootIno = 1

// FS is an opened UBIFS filesystem: the committed index (TNC) plus the
// journal overlay layered on top of it, matching the live state a mount
// would present.
type FS struct {
	Vol     *ubi.UBIVolume
	SB      *SuperblockNode
	Master  *MasterNode
	tnc     *TNC
	journal *Overlay
}

// Open reads the superblock and master node, replays the journal, and
// returns an FS ready to answer queries.
func Open(vol *ubi.UBIVolume) (*FS, error) {
	sb, err := ReadSuperblock(vol)
	if err != nil {
		return nil, err
	}
	master, err := ReadMaster(vol)
	if err != nil {
		return nil, err
	}
	journal, err := ReplayJournal(vol, master)
	if err != nil {
		return nil, err
	}
	return &FS{
		Vol:     vol,
		SB:      sb,
		Master:  master,
		tnc:     BuildTNC(vol, master),
		journal: journal,
	}, nil
}

// lookup resolves key through the journal overlay first, then the
// committed index — the overlay always wins, since it holds writes more
// recent than the last commit.
func (fs *FS) lookup(key Key) (*Node, error) {
	if n, ok := fs.journal.Get(key); ok {
		return n, nil
	}
	return fs.tnc.Lookup(key)
}

// rangeScan merges committed-index and journal results over [lo, hi),
// with the overlay's version of any key present in both taking precedence.
func (fs *FS) rangeScan(lo, hi Key) ([]*Node, error) {
	idxNodes, err := fs.tnc.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	merged := make(map[Key]*Node, len(idxNodes))
	for _, n := range idxNodes {
		if k, ok := n.Key(); ok {
			merged[k] = n
		}
	}
	for _, n := range fs.journal.Range(lo, hi) {
		if k, ok := n.Key(); ok {
			merged[k] = n
		}
	}
	out := make([]*Node, 0, len(merged))
	for _, n := range merged {
		out = append(out, n)
	}
	return out, nil
}

// StatInode returns the inode node for ino.
func (fs *FS) StatInode(ino uint32) (*InodeNode, error) {
	n, err := fs.lookup(InodeKey(ino))
	if err != nil {
		return nil, err
	}
	if n == nil || n.Inode == nil {
		return nil, ubiferrors.IntegrityError("inode not found", ubiferrors.NoLocation, nil)
	}
	return n.Inode, nil
}

// ListInodes enumerates every inode node reachable from the index or the
// journal overlay.
func (fs *FS) ListInodes() ([]*InodeNode, error) {
	nodes, err := fs.rangeScan(lowKey, highKey)
	if err != nil {
		return nil, err
	}
	var out []*InodeNode
	for _, n := range nodes {
		if n.Inode != nil {
			out = append(out, n.Inode)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Inum < out[j].Key.Inum })
	return out, nil
}

// ListDir returns the live directory entries of parent: tombstones
// (Inode == 0) are excluded. Pass deleted=true to include them instead.
func (fs *FS) ListDir(parent uint32, deleted bool) ([]*DentryNode, error) {
	lo, hi := DentryRangeKey(parent)
	nodes, err := fs.rangeScan(lo, hi)
	if err != nil {
		return nil, err
	}
	var out []*DentryNode
	for _, n := range nodes {
		if n.Dentry == nil {
			continue
		}
		if n.Dentry.Inode == 0 && !deleted {
			continue
		}
		out = append(out, n.Dentry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindDentriesFor returns every dentry node in the current view (committed
// index plus journal overlay) whose child-inode field is childIno, across
// the whole tree. A tombstone carries child-inode 0, so it is only returned
// when childIno is 0. Used by the recovery engine to tell inodes a live
// dentry still names apart from orphans (spec.md §4.4).
func (fs *FS) FindDentriesFor(childIno uint32) ([]*DentryNode, error) {
	nodes, err := fs.rangeScan(lowKey, highKey)
	if err != nil {
		return nil, err
	}
	var out []*DentryNode
	for _, n := range nodes {
		if n.Dentry != nil && n.Dentry.Inode == childIno {
			out = append(out, n.Dentry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Inum != out[j].Key.Inum {
			return out[i].Key.Inum < out[j].Key.Inum
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ReadInodeData reassembles ino's file content from its data-node extents,
// decompressing each and placing it at the correct byte offset. size
// should be the inode's recorded Size; the returned slice is truncated or
// zero-padded to exactly that length.
func (fs *FS) ReadInodeData(ino uint32, size uint64) ([]byte, error) {
	lo := DataKey(ino, 0)
	hi := DataKey(ino, 0xFFFFFFFF)
	nodes, err := fs.rangeScan(lo, hi)
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool {
		ki, _ := nodes[i].Key()
		kj, _ := nodes[j].Key()
		return ki.Offset < kj.Offset
	})

	out := make([]byte, size)
	for _, n := range nodes {
		if n.Data == nil {
			continue
		}
		chunk, err := Decompress(n.Data.Compression, n.Data.CompressedBytes, n.Data.Size)
		if err != nil {
			return nil, err
		}
		start := n.Data.Key.Offset
		end := uint64(start) + uint64(len(chunk))
		if end > size {
			end = size
		}
		if uint64(start) >= size {
			continue
		}
		copy(out[start:end], chunk)
	}
	return out, nil
}
