package ubifs

import (
	"github.com/wiwaszko/ubift/internal/ubi"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

// TNC is the Tree Node Cache: a lazy reader over the on-flash B+-tree index,
// resolving branches to nodes only when a lookup or range scan visits them.
type TNC struct {
	vol  *ubi.UBIVolume
	root Branch
}

// BuildTNC anchors a TNC at master's committed root branch.
func BuildTNC(vol *ubi.UBIVolume, master *MasterNode) *TNC {
	return &TNC{
		vol:  vol,
		root: Branch{LEB: master.RootLNum, Offset: master.RootOffset, Len: master.RootLen},
	}
}

func (t *TNC) readBranch(br Branch) (*Node, error) {
	leb, err := t.vol.ReadLEB(br.LEB)
	if err != nil {
		return nil, err
	}
	end := int64(br.Offset) + int64(br.Len)
	if end > int64(len(leb)) {
		return nil, ubiferrors.DecodingError("index branch out of LEB bounds", ubiferrors.Location{LEB: int(br.LEB), Offset: int64(br.Offset)}, nil)
	}
	return DecodeNode(leb[br.Offset:end], int64(br.Offset))
}

// Lookup descends the index for the exact key, returning nil (no error) on
// a clean miss.
func (t *TNC) Lookup(key Key) (*Node, error) {
	return t.lookup(t.root, key)
}

func (t *TNC) lookup(br Branch, key Key) (*Node, error) {
	node, err := t.readBranch(br)
	if err != nil {
		return nil, err
	}
	if node.Index == nil {
		if k, ok := node.Key(); ok && k.Equal(key) && node.Valid {
			return node, nil
		}
		return nil, nil
	}
	idx := descendIndex(node.Index.Branches, key)
	if idx < 0 {
		return nil, nil
	}
	return t.lookup(node.Index.Branches[idx], key)
}

// descendIndex picks the branch whose key range can contain key: the
// rightmost branch whose key is <= key (or branch 0 if key precedes all
// of them, matching a B+-tree's leftmost-descent behavior for out-of-range
// lookups).
func descendIndex(branches []Branch, key Key) int {
	if len(branches) == 0 {
		return -1
	}
	idx := 0
	for i, b := range branches {
		if b.Key.Less(key) || b.Key.Equal(key) {
			idx = i
		} else {
			break
		}
	}
	return idx
}

// Range returns every leaf node whose key lies in [lo, hi).
func (t *TNC) Range(lo, hi Key) ([]*Node, error) {
	return t.rangeBranch(t.root, lo, hi)
}

func (t *TNC) rangeBranch(br Branch, lo, hi Key) ([]*Node, error) {
	node, err := t.readBranch(br)
	if err != nil {
		return nil, err
	}
	if node.Index == nil {
		if k, ok := node.Key(); ok && node.Valid && !k.Less(lo) && k.Less(hi) {
			return []*Node{node}, nil
		}
		return nil, nil
	}

	var out []*Node
	for i, b := range node.Index.Branches {
		if hi.Less(b.Key) {
			break
		}
		if i+1 < len(node.Index.Branches) {
			next := node.Index.Branches[i+1].Key
			if next.Less(lo) || next.Equal(lo) {
				continue
			}
		}
		sub, err := t.rangeBranch(b, lo, hi)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}
