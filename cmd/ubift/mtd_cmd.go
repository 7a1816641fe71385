package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiwaszko/ubift/internal/render"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
	"github.com/wiwaszko/ubift/internal/ubiftcli"
)

func newMtdlsCmd() *cobra.Command {
	var ff formatFlags
	var sf scanFlags
	cmd := &cobra.Command{
		Use:   "mtdls IMAGE",
		Short: "list the MTD partitions found within a raw flash image",
		Args:  cobra.ExactArgs(1),
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

			rows := make([]render.PartitionRow, len(parts))
			for i, p := range parts {
				rows[i] = render.PartitionRow{
					Index:       i,
					Offset:      p.Offset,
					Length:      p.Length,
					Description: p.Description,
					PEBSize:     p.PEBSize,
				}
			}
			return render.Emit(cmd.OutOrStdout(), ff.format, ff.pretty, rows, render.PrintPartitions)
		},
	}
	ff.register(cmd)
	sf.register(cmd)
	return cmd
}

func newMtdcatCmd() *cobra.Command {
	var sf scanFlags
	cmd := &cobra.Command{
		Use:   "mtdcat IMAGE PARTITION_INDEX",
		Short: "dump the raw bytes of one MTD partition",
		Args:  cobra.ExactArgs(2),
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

			idx, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			if idx < 0 || int(idx) >= len(parts) {
				return ubiferrors.InputError(fmt.Sprintf("partition index %d out of range", idx), nil)
			}
			p := parts[idx]
			buf, err := img.Slice(p.Offset, p.Length)
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
