package ubiftcli

import (
	"fmt"
	"sort"

	"github.com/wiwaszko/ubift/internal/mtd"
	"github.com/wiwaszko/ubift/internal/ubi"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
	"github.com/wiwaszko/ubift/internal/ubifs"
)

// Geometry mirrors the --offset/--peb-size flag pair the MTD-layer commands
// (mtdls, mtdcat, pebcat) accept.
type Geometry struct {
	Offset  string
	PEBSize string
}

// Resolve parses the flag pair into an *mtd.Geometry, or nil if neither
// flag was set (auto-detection applies).
func (g Geometry) Resolve() (*mtd.Geometry, error) {
	if g.Offset == "" && g.PEBSize == "" {
		return nil, nil
	}
	var off, pebSize int64
	var err error
	if g.Offset != "" {
		off, err = ParseOffset(g.Offset)
		if err != nil {
			return nil, err
		}
	}
	if g.PEBSize != "" {
		pebSize, err = ParseOffset(g.PEBSize)
		if err != nil {
			return nil, err
		}
	}
	if pebSize <= 0 {
		return nil, ubiferrors.InputError("--peb-size must be set (and positive) when --offset is given", nil)
	}
	return &mtd.Geometry{Offset: off, PEBSize: pebSize}, nil
}

// OpenImage opens path and scans it for MTD partitions under the given
// geometry override (nil for auto-detection).
func OpenImage(path string, geom *mtd.Geometry) (*mtd.Image, []mtd.MTDPartition, error) {
	img, err := mtd.Open(path)
	if err != nil {
		return nil, nil, err
	}
	parts, err := mtd.ScanPartitions(img, geom)
	if err != nil {
		return nil, nil, err
	}
	return img, parts, nil
}

// FirstUBIPartition returns the first UBI-described partition, or an
// error naming the image if none was found.
func FirstUBIPartition(parts []mtd.MTDPartition) (mtd.MTDPartition, error) {
	for _, p := range parts {
		if p.Description == mtd.DescUBI {
			return p, nil
		}
	}
	return mtd.MTDPartition{}, ubiferrors.InputError("no UBI partition found in image", nil)
}

// OpenUBI builds the UBI instance over part.
func OpenUBI(img *mtd.Image, part mtd.MTDPartition) (*ubi.UBIInstance, error) {
	return ubi.Build(img, part)
}

// ResolveVolume finds a volume by name or, failing that, by decimal id.
// An empty name with exactly one volume present resolves to that volume.
func ResolveVolume(inst *ubi.UBIInstance, nameOrID string) (*ubi.UBIVolume, error) {
	if nameOrID == "" {
		if len(inst.Volumes) == 1 {
			for _, v := range inst.Volumes {
				return v, nil
			}
		}
		return nil, ubiferrors.InputError("multiple volumes present; specify a volume name", nil)
	}
	for _, v := range inst.Volumes {
		if v.Name == nameOrID {
			return v, nil
		}
	}
	if id, err := ParseOffset(nameOrID); err == nil {
		if v, ok := inst.Volumes[uint32(id)]; ok {
			return v, nil
		}
	}
	return nil, ubiferrors.InputError("volume \""+nameOrID+"\" not found", nil)
}

// SortedVolumeIDs returns inst.Volumes' keys in ascending order, for
// deterministic listing output.
func SortedVolumeIDs(inst *ubi.UBIInstance) []uint32 {
	ids := make([]uint32, 0, len(inst.Volumes))
	for id := range inst.Volumes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OpenUBIFS opens vol as a UBIFS filesystem.
func OpenUBIFS(vol *ubi.UBIVolume) (*ubifs.FS, error) {
	return ubifs.Open(vol)
}

// ResolvePartitionAtOffset finds the MTDPartition beginning at byteOffset.
// When pebSize is non-empty, detection is bypassed the same way an explicit
// --peb-size flag bypasses mtdls auto-detection: a single UBI partition is
// synthesized at byteOffset with that PEB size (spec.md §4.1). Otherwise the
// image is auto-scanned and the partition whose Offset matches byteOffset is
// returned.
func ResolvePartitionAtOffset(img *mtd.Image, byteOffset int64, pebSize string) (mtd.MTDPartition, error) {
	if pebSize != "" {
		pebSizeVal, err := ParseOffset(pebSize)
		if err != nil {
			return mtd.MTDPartition{}, err
		}
		parts, err := mtd.ScanPartitions(img, &mtd.Geometry{Offset: byteOffset, PEBSize: pebSizeVal})
		if err != nil {
			return mtd.MTDPartition{}, err
		}
		return parts[0], nil
	}

	parts, err := mtd.ScanPartitions(img, nil)
	if err != nil {
		return mtd.MTDPartition{}, err
	}
	for _, p := range parts {
		if p.Offset == byteOffset {
			return p, nil
		}
	}
	return mtd.MTDPartition{}, ubiferrors.InputError(fmt.Sprintf("no partition at offset %d", byteOffset), nil)
}

// OpenVolumeAt opens path, resolves the UBI partition at byteOffset, builds
// the UBI instance over it, and resolves volumeName within it — the common
// path every query command past mtdls/mtdcat/pebcat needs (spec.md §6).
// The caller owns the returned Image and must Close it.
func OpenVolumeAt(path string, byteOffset int64, pebSize, volumeName string) (*mtd.Image, *ubi.UBIInstance, *ubi.UBIVolume, error) {
	img, err := mtd.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	part, err := ResolvePartitionAtOffset(img, byteOffset, pebSize)
	if err != nil {
		_ = img.Close()
		return nil, nil, nil, err
	}
	inst, err := OpenUBI(img, part)
	if err != nil {
		_ = img.Close()
		return nil, nil, nil, err
	}
	vol, err := ResolveVolume(inst, volumeName)
	if err != nil {
		_ = img.Close()
		return nil, nil, nil, err
	}
	return img, inst, vol, nil
}
