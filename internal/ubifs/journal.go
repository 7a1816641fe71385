package ubifs

import (
	"sort"

	"github.com/wiwaszko/ubift/internal/ubi"
	"github.com/wiwaszko/ubift/internal/ubiftlog"
)

// Overlay holds the journal's effect on the index: every key the log's bud
// LEBs mention more recently than the committed index, keyed so that a
// later sequence number always wins (spec.md §4.3).
type Overlay struct {
	entries map[Key]*Node
}

// Get returns the overlay's node for key, if the journal touched it.
func (o *Overlay) Get(key Key) (*Node, bool) {
	n, ok := o.entries[key]
	return n, ok
}

// All returns every node the overlay holds, in no particular order.
func (o *Overlay) All() []*Node {
	out := make([]*Node, 0, len(o.entries))
	for _, n := range o.entries {
		out = append(out, n)
	}
	return out
}

// Range returns overlay nodes whose key lies in [lo, hi).
func (o *Overlay) Range(lo, hi Key) []*Node {
	var out []*Node
	for k, n := range o.entries {
		if !k.Less(lo) && k.Less(hi) {
			out = append(out, n)
		}
	}
	return out
}

type seqNode struct {
	seq  uint64
	leb  uint32
	node *Node
}

// JournalEntry pairs a replayed node with the bud LEB it was read from, for
// `jls` (spec.md §6), which reports the journal's raw, undeduplicated
// replay order rather than the collapsed Overlay ReplayJournal produces.
type JournalEntry struct {
	LEB  uint32
	Node *Node
}

// ReplayJournal walks the log area starting at master.LogLNum, follows each
// ref node to its bud LEB, linearly scans every node the bud holds, and
// folds them into an Overlay ordered by sequence number so the most recent
// write to any key wins — exactly the replay spec.md's journal fixture
// (Fixture D) exercises.
func ReplayJournal(vol *ubi.UBIVolume, master *MasterNode) (*Overlay, error) {
	entries, err := JournalEntries(vol, master)
	if err != nil {
		return nil, err
	}

	ov := &Overlay{entries: make(map[Key]*Node)}
	for _, je := range entries {
		key, _ := je.Node.Key()
		ov.entries[key] = je.Node
	}
	return ov, nil
}

// JournalEntries follows the log from master.LogLNum to every bud LEB it
// references and returns every keyed, CRC-valid node found there, sorted by
// sequence number ascending — the raw replay order `jls` reports (spec.md
// §6), before ReplayJournal collapses it down to one winner per key.
func JournalEntries(vol *ubi.UBIVolume, master *MasterNode) ([]JournalEntry, error) {
	log := ubiftlog.Logger()

	refs, err := scanNodes(vol, master.LogLNum)
	if err != nil {
		return nil, err
	}

	var touched []seqNode
	seenBud := map[uint32]bool{}
	for _, rn := range refs {
		if rn.Ref == nil {
			continue
		}
		if seenBud[rn.Ref.LEBNum] {
			continue
		}
		seenBud[rn.Ref.LEBNum] = true

		budNodes, err := scanNodes(vol, rn.Ref.LEBNum)
		if err != nil {
			log.Warnf("bud LEB %d unreadable: %v", rn.Ref.LEBNum, err)
			continue
		}
		for _, n := range budNodes {
			if !n.Valid {
				log.Warnf("bud LEB %d: dropping node at offset %d with bad CRC", rn.Ref.LEBNum, n.Offset)
				continue
			}
			if _, ok := n.Key(); !ok {
				continue
			}
			touched = append(touched, seqNode{seq: n.Header.SeqNum, leb: rn.Ref.LEBNum, node: n})
		}
	}

	sort.Slice(touched, func(i, j int) bool { return touched[i].seq < touched[j].seq })

	out := make([]JournalEntry, len(touched))
	for i, sn := range touched {
		out[i] = JournalEntry{LEB: sn.leb, Node: sn.node}
	}
	return out, nil
}

// scanNodes linearly decodes every node packed into LEB lnum of vol,
// starting at offset 0 and stopping at the first byte range that doesn't
// decode as a node (flash-erased padding, typically 0xFF).
func scanNodes(vol *ubi.UBIVolume, lnum uint32) ([]*Node, error) {
	leb, err := vol.ReadLEB(lnum)
	if err != nil {
		return nil, err
	}
	return ScanNodes(leb), nil
}

// ScanNodes linearly decodes every node packed into buf, starting at
// offset 0 and stopping at the first byte range that doesn't decode as a
// node (flash-erased padding, typically 0xFF). Exported so the recovery
// layer can run the same scan directly over a raw PEB payload, independent
// of any LEB mapping (spec.md §4.4, stale-PEB and loose-node salvage).
func ScanNodes(buf []byte) []*Node {
	var out []*Node
	off := int64(0)
	for off+HeaderSize <= int64(len(buf)) {
		node, err := DecodeNode(buf[off:], off)
		if err != nil {
			break
		}
		out = append(out, node)
		off += int64(node.Header.Len)
		// UBIFS node starts are 8-byte aligned.
		if rem := off % 8; rem != 0 {
			off += 8 - rem
		}
	}
	return out
}
