package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiwaszko/ubift/internal/ubiferrors"
	"github.com/wiwaszko/ubift/internal/ubiftcli"
)

func newPebcatCmd() *cobra.Command {
	var sf scanFlags
	cmd := &cobra.Command{
		Use:   "pebcat IMAGE PARTITION_INDEX PEB_INDEX",
		Short: "dump the raw bytes of one physical erase block",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			geom, err := sf.resolve()
			if err != nil {
				return err
			}
			img, parts, err := ubiftcli.OpenImage(args[0], geom)
			if err != nil {
				return err
			}
			defer img.Close()

			pIdx, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			if pIdx < 0 || int(pIdx) >= len(parts) {
				return ubiferrors.InputError(fmt.Sprintf("partition index %d out of range", pIdx), nil)
			}
			part := parts[pIdx]
			if part.PEBSize <= 0 {
				return ubiferrors.GeometryError("partition has no known PEB size; re-run with explicit --offset/--peb-size geometry", nil)
			}

			pebIdx, err := ubiftcli.ParseOffset(args[2])
			if err != nil {
				return err
			}
			off := part.Offset + pebIdx*part.PEBSize
			if pebIdx < 0 || off+part.PEBSize > part.Offset+part.Length {
				return ubiferrors.InputError(fmt.Sprintf("peb index %d out of range", pebIdx), nil)
			}

			buf, err := img.Slice(off, part.PEBSize)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(buf)
			return err
		},
	}
	sf.register(cmd)
	return cmd
}
