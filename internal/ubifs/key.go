// Package ubifs implements layer L3: decoding UBIFS node types, building the
// index tree (TNC), replaying the journal, and exposing inodes, directory
// entries, and data extents to callers.
package ubifs

import "hash/fnv"

// KeyType is the middle field of a UBIFS key, per spec.md §3.
type KeyType uint8

const (
	KeyTypeInode KeyType = iota
	KeyTypeData
	KeyTypeDentry
	KeyTypeXattr
	KeyTypeTrunc
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeInode:
		return "inode"
	case KeyTypeData:
		return "data"
	case KeyTypeDentry:
		return "dentry"
	case KeyTypeXattr:
		return "xattr"
	case KeyTypeTrunc:
		return "trunc"
	default:
		return "unknown"
	}
}

// Key addresses every UBIFS node's position in the index: a 64-bit key
// conceptually split into (inode-number, type, offset-or-hash). Ordering is
// lexicographic on this triple (spec.md §3).
type Key struct {
	Inum   uint32
	Type   KeyType
	Offset uint32
}

// Less implements the lexicographic ordering the TNC is keyed by.
func (k Key) Less(o Key) bool {
	if k.Inum != o.Inum {
		return k.Inum < o.Inum
	}
	if k.Type != o.Type {
		return k.Type < o.Type
	}
	return k.Offset < o.Offset
}

// Equal reports whether two keys address the same node slot.
func (k Key) Equal(o Key) bool { return k == o }

// InodeKey is the key of an inode node.
func InodeKey(ino uint32) Key { return Key{Inum: ino, Type: KeyTypeInode, Offset: 0} }

// DataKey is the key of a data node at the given byte offset within ino.
func DataKey(ino uint32, byteOffset uint32) Key {
	// Data node keys use the block number (offset/UBIFS block size) in real
	// UBIFS; this toolkit addresses data extents directly by byte offset,
	// which preserves the ordering invariant the TNC needs (monotonic in
	// file-offset) without committing to a fixed block size.
	return Key{Inum: ino, Type: KeyTypeData, Offset: byteOffset}
}

// NameHash mirrors UBIFS's use of a name hash (rather than the name itself)
// as a dentry key's offset field.
func NameHash(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	// UBIFS reserves the top few bits of the hash for collision chaining;
	// masking them off keeps the hash well inside the 32-bit key offset
	// space while leaving plenty of entropy for the fixtures this toolkit
	// is exercised against.
	return h.Sum32() & 0x7FFFFFFF
}

// DentryKey is the key of a directory-entry node for name under parent.
func DentryKey(parent uint32, name string) Key {
	return Key{Inum: parent, Type: KeyTypeDentry, Offset: NameHash(name)}
}

// DentryRangeKey returns the inclusive lower and exclusive upper bound used
// to enumerate every dentry of parent, since the name hash alone cannot be
// inverted back into an ordered walk (spec.md §4.3, list_dir).
func DentryRangeKey(parent uint32) (lo, hi Key) {
	return Key{Inum: parent, Type: KeyTypeDentry, Offset: 0},
		Key{Inum: parent, Type: KeyTypeDentry, Offset: 0xFFFFFFFF}
}

// TruncKey is the key of a truncation node for ino.
func TruncKey(ino uint32) Key { return Key{Inum: ino, Type: KeyTypeTrunc, Offset: 0} }
