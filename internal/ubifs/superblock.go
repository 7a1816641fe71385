package ubifs

import (
	"github.com/wiwaszko/ubift/internal/ubi"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

// ReadSuperblock decodes the superblock node from LEB 0 of vol.
func ReadSuperblock(vol *ubi.UBIVolume) (*SuperblockNode, error) {
	leb, err := vol.ReadLEB(0)
	if err != nil {
		return nil, err
	}
	node, err := DecodeNode(leb, 0)
	if err != nil {
		return nil, ubiferrors.IntegrityError("superblock node undecodable", ubiferrors.Location{LEB: 0}, err)
	}
	if node.Superblock == nil {
		return nil, ubiferrors.IntegrityError("LEB 0 is not a superblock node", ubiferrors.Location{LEB: 0}, nil)
	}
	if !node.Valid {
		return nil, ubiferrors.IntegrityError("superblock node failed CRC", ubiferrors.Location{LEB: 0}, nil)
	}
	return node.Superblock, nil
}
