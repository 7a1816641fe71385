package ubifs

import (
	"github.com/wiwaszko/ubift/internal/ubi"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
	"github.com/wiwaszko/ubift/internal/ubiftlog"
)

// masterLEBs are the two redundant LEBs the master node is written to.
var masterLEBs = [2]uint32{1, 2}

// ReadMaster decodes both master-node copies and returns whichever has a
// valid CRC and the higher commit number. Per spec.md's corruption fixture
// (Fixture E), a single corrupt copy must not fail the read so long as the
// other copy validates.
func ReadMaster(vol *ubi.UBIVolume) (*MasterNode, error) {
	log := ubiftlog.Logger()

	var best *MasterNode
	var bestCommit uint64
	var anyDecoded bool

	for _, lnum := range masterLEBs {
		leb, err := vol.ReadLEB(lnum)
		if err != nil {
			log.Warnf("master copy at LEB %d unreadable: %v", lnum, err)
			continue
		}
		node, err := DecodeNode(leb, 0)
		if err != nil {
			log.Warnf("master copy at LEB %d undecodable: %v", lnum, err)
			continue
		}
		if node.Master == nil {
			continue
		}
		anyDecoded = true
		if !node.Valid {
			log.Warnf("master copy at LEB %d failed CRC, skipping", lnum)
			continue
		}
		if best == nil || node.Master.CommitNo > bestCommit {
			best = node.Master
			bestCommit = node.Master.CommitNo
		}
	}

	if best == nil {
		if anyDecoded {
			return nil, ubiferrors.IntegrityError("both master node copies failed CRC", ubiferrors.NoLocation, nil)
		}
		return nil, ubiferrors.IntegrityError("no master node copy found", ubiferrors.NoLocation, nil)
	}
	return best, nil
}
