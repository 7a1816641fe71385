package main

import (
	"github.com/spf13/cobra"

	"github.com/wiwaszko/ubift/internal/mtd"
	"github.com/wiwaszko/ubift/internal/ubiftcli"
)

// formatFlags is embedded by every structured-output query command: the
// --format/--pretty pair render.Emit understands (spec.md §6 leaves the
// on-screen rendering to this collaborator, not the core).
type formatFlags struct {
	format string
	pretty bool
}

func (f *formatFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "text", "output format: text, json, or yaml")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "pretty-print JSON output (only for --format json)")
}

// geometryFlags is embedded by every command that opens a UBI instance
// directly from a partition byte offset instead of an mtdls index.
type geometryFlags struct {
	pebSize string
}

func (g *geometryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&g.pebSize, "peb-size", "",
		"PEB size override (decimal or 0x-hex); required when geometry can't be auto-detected at this offset")
}

// scanFlags is embedded by the MTD-layer commands (mtdls, mtdcat, pebcat):
// an optional --offset/--peb-size pair that bypasses partition auto-detection
// entirely and trusts the supplied geometry.
type scanFlags struct {
	geom ubiftcli.Geometry
}

func (s *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.geom.Offset, "offset", "",
		"partition start offset (decimal or 0x-hex); bypasses detection when given with --peb-size")
	cmd.Flags().StringVar(&s.geom.PEBSize, "peb-size", "",
		"PEB size (decimal or 0x-hex); bypasses detection when given")
}

func (s *scanFlags) resolve() (*mtd.Geometry, error) {
	return s.geom.Resolve()
}
