package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/wiwaszko/ubift/internal/mtd"
	"github.com/wiwaszko/ubift/internal/recovery"
	"github.com/wiwaszko/ubift/internal/render"
	"github.com/wiwaszko/ubift/internal/ubi"
	"github.com/wiwaszko/ubift/internal/ubiftcli"
	"github.com/wiwaszko/ubift/internal/utils/display"
)

func newRecoverCmd() *cobra.Command {
	var deleted bool
	var quiet bool
	cmd := &cobra.Command{
		Use:     "recover IMAGE OUTPUT_DIR",
		Aliases: []string{"ubift_recover"},
		Short:   "write every volume's live (and, with --deleted, recovered) file tree to disk",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := mtd.Open(args[0])
			if err != nil {
				return err
			}
			defer img.Close()

			parts, err := mtd.ScanPartitions(img, nil)
			if err != nil {
				return err
			}

			outputDir := args[1]
			liveTotal, recTotal := 0, 0
			reports := map[string]display.VolumeRecoveryReport{}
			for _, part := range parts {
				if part.Description != mtd.DescUBI {
					continue
				}
				inst, err := ubi.Build(img, part)
				if err != nil {
					cmd.PrintErrf("skipping UBI partition at 0x%x: %v\n", part.Offset, err)
					continue
				}
				for _, volID := range ubiftcli.SortedVolumeIDs(inst) {
					vol := inst.Volumes[volID]
					eng, err := recovery.New(vol, inst)
					if err != nil {
						cmd.PrintErrf("skipping volume %q: %v\n", vol.Name, err)
						continue
					}

					var bar *progressbar.ProgressBar
					if !quiet {
						bar = progressbar.NewOptions(-1,
							progressbar.OptionSetDescription(fmt.Sprintf("recovering %s", vol.Name)),
							progressbar.OptionSetWidth(30),
							progressbar.OptionShowCount(),
							progressbar.OptionThrottle(200*time.Millisecond),
							progressbar.OptionSpinnerType(10),
							progressbar.OptionClearOnFinish(),
						)
					}

					live, rec, _, err := recovery.WriteTree(cmd.Context(), eng, outputDir, vol.Name, deleted, bar)
					if err != nil {
						cmd.PrintErrf("volume %q: %v\n", vol.Name, err)
						continue
					}
					liveTotal += live
					recTotal += rec
					reports[vol.Name] = display.VolumeRecoveryReport{
						LiveFiles:      live,
						RecoveredFiles: rec,
						StalePEBs:      len(inst.AllStalePEBIndices()),
						DeletedMode:    deleted,
					}
				}
			}

			if !quiet {
				display.PrintRecoverySummary(outputDir, reports)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recovered %d live file(s)", liveTotal)
			if deleted {
				fmt.Fprintf(cmd.OutOrStdout(), " and %d deleted file(s)", recTotal)
			}
			fmt.Fprintf(cmd.OutOrStdout(), " to %s\n", outputDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&deleted, "deleted", false, "also recover deleted objects into a deleted/ subtree")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the progress bar and the summary box")
	return cmd
}

func newInfoCmd() *cobra.Command {
	var ff formatFlags
	cmd := &cobra.Command{
		Use:     "info IMAGE",
		Aliases: []string{"ubift_info"},
		Short:   "print aggregate recoverability statistics for an image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, parts, err := ubiftcli.OpenImage(args[0], nil)
			if err != nil {
				return err
			}
			defer img.Close()

			report := render.InfoReport{Partitions: len(parts)}
			for _, part := range parts {
				if part.Description != mtd.DescUBI {
					continue
				}
				inst, err := ubi.Build(img, part)
				if err != nil {
					continue
				}
				report.Volumes += len(inst.Volumes)
				report.OrphanVolumes += len(inst.OrphanVolumes)
				report.StalePEBs += len(inst.AllStalePEBIndices())

				for _, volID := range ubiftcli.SortedVolumeIDs(inst) {
					vol := inst.Volumes[volID]
					eng, err := recovery.New(vol, inst)
					if err != nil {
						report.IntegrityIssues++
						continue
					}
					_, diag, err := eng.DeletedView(cmd.Context())
					if err != nil {
						report.IntegrityIssues++
						continue
					}
					report.RecoverableInodes += diag.RecoveredInodes
					report.IntegrityIssues += diag.IntegrityIssues
				}
			}

			return render.Emit(cmd.OutOrStdout(), ff.format, ff.pretty, report, render.PrintInfo)
		},
	}
	ff.register(cmd)
	return cmd
}
