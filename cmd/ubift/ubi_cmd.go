package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiwaszko/ubift/internal/mtd"
	"github.com/wiwaszko/ubift/internal/render"
	"github.com/wiwaszko/ubift/internal/ubi"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
	"github.com/wiwaszko/ubift/internal/ubiftcli"
)

func volTypeName(t uint8) string {
	switch t {
	case ubi.VolTypeDynamic:
		return "dynamic"
	case ubi.VolTypeStatic:
		return "static"
	default:
		return "unknown"
	}
}

// buildUBIAt opens path and builds a UBI instance over the partition at
// byteOffset, without resolving any particular volume — used by commands
// (ubils) that want to enumerate every volume rather than open one.
func buildUBIAt(path string, byteOffset int64, pebSize string) (*mtd.Image, *ubi.UBIInstance, error) {
	img, err := mtd.Open(path)
	if err != nil {
		return nil, nil, err
	}
	part, err := ubiftcli.ResolvePartitionAtOffset(img, byteOffset, pebSize)
	if err != nil {
		_ = img.Close()
		return nil, nil, err
	}
	inst, err := ubiftcli.OpenUBI(img, part)
	if err != nil {
		_ = img.Close()
		return nil, nil, err
	}
	return img, inst, nil
}

func newUbilsCmd() *cobra.Command {
	var ff formatFlags
	var gf geometryFlags
	cmd := &cobra.Command{
		Use:   "ubils IMAGE PARTITION_OFFSET",
		Short: "list the UBI volumes reconstructed within a partition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, inst, err := buildUBIAt(args[0], off, gf.pebSize)
			if err != nil {
				return err
			}
			defer img.Close()

			orphan := make(map[uint32]bool, len(inst.OrphanVolumes))
			for _, id := range inst.OrphanVolumes {
				orphan[id] = true
			}

			ids := ubiftcli.SortedVolumeIDs(inst)
			rows := make([]render.VolumeRow, 0, len(ids))
			for _, id := range ids {
				v := inst.Volumes[id]
				rows = append(rows, render.VolumeRow{
					ID:       id,
					Name:     v.Name,
					SizeLEBs: v.SizeLEBs,
					Type:     volTypeName(v.Type),
					Orphan:   orphan[id],
				})
			}
			return render.Emit(cmd.OutOrStdout(), ff.format, ff.pretty, rows, render.PrintVolumes)
		},
	}
	ff.register(cmd)
	gf.register(cmd)
	return cmd
}

func newUbicatCmd() *cobra.Command {
	var gf geometryFlags
	cmd := &cobra.Command{
		Use:   "ubicat IMAGE PARTITION_OFFSET VOLUME_NAME",
		Short: "dump the concatenated logical bytes of a UBI volume",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, _, vol, err := ubiftcli.OpenVolumeAt(args[0], off, gf.pebSize, args[2])
			if err != nil {
				return err
			}
			defer img.Close()

			buf, err := vol.ReadAll()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(buf)
			return err
		},
	}
	gf.register(cmd)
	return cmd
}

func newLeblsCmd() *cobra.Command {
	var ff formatFlags
	var gf geometryFlags
	cmd := &cobra.Command{
		Use:   "lebls IMAGE PARTITION_OFFSET VOLUME_NAME",
		Short: "list the LEB-to-PEB mapping of a UBI volume",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, _, vol, err := ubiftcli.OpenVolumeAt(args[0], off, gf.pebSize, args[2])
			if err != nil {
				return err
			}
			defer img.Close()

			rows := make([]render.LEBRow, vol.SizeLEBs)
			for i := uint32(0); i < vol.SizeLEBs; i++ {
				pebIdx, mapped := vol.Backing(i)
				rows[i] = render.LEBRow{LNum: i, PEB: pebIdx, Mapped: mapped}
			}
			return render.Emit(cmd.OutOrStdout(), ff.format, ff.pretty, rows, render.PrintLEBs)
		},
	}
	ff.register(cmd)
	gf.register(cmd)
	return cmd
}

func newLebcatCmd() *cobra.Command {
	var gf geometryFlags
	cmd := &cobra.Command{
		Use:   "lebcat IMAGE PARTITION_OFFSET VOLUME_NAME LEB_NUM",
		Short: "dump the bytes of one logical erase block",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, _, vol, err := ubiftcli.OpenVolumeAt(args[0], off, gf.pebSize, args[2])
			if err != nil {
				return err
			}
			defer img.Close()

			lnum, err := ubiftcli.ParseOffset(args[3])
			if err != nil {
				return err
			}
			if lnum < 0 || uint32(lnum) >= vol.SizeLEBs {
				return ubiferrors.InputError(fmt.Sprintf("leb %d out of range (volume has %d LEBs)", lnum, vol.SizeLEBs), nil)
			}

			buf, err := vol.ReadLEB(uint32(lnum))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(buf)
			return err
		},
	}
	gf.register(cmd)
	return cmd
}
