// Command ubift is a read-only forensic browser for raw NAND flash dumps
// containing a UBI-managed UBIFS file system. It reconstructs partitions,
// UBI volumes, and the UBIFS tree from the image bytes alone and exposes
// the query and recovery subcommands of spec.md §6; argument parsing and
// dispatch live entirely in this package, which consumes the core through
// internal/ubiftcli's narrow opening helpers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wiwaszko/ubift/internal/ubiftlog"
)

var verbose bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ubift",
		Short:         "forensic browser and recovery tool for UBI/UBIFS flash images",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ubiftlog.SetVerbose(verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable development-mode (debug level) logging")

	root.AddCommand(
		newMtdlsCmd(),
		newMtdcatCmd(),
		newPebcatCmd(),
		newUbilsCmd(),
		newUbicatCmd(),
		newLeblsCmd(),
		newLebcatCmd(),
		newFsstatCmd(),
		newFlsCmd(),
		newIlsCmd(),
		newIstatCmd(),
		newIcatCmd(),
		newFfindCmd(),
		newJlsCmd(),
		newRecoverCmd(),
		newInfoCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
