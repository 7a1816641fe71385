// Package display prints the human-facing summary box ubift_recover shows
// once a recovery run finishes.
package display

import (
	"os"
	"path/filepath"

	"github.com/wiwaszko/ubift/internal/ubiftlog"
)

// VolumeRecoveryReport is the per-volume tally PrintRecoverySummary shows.
type VolumeRecoveryReport struct {
	LiveFiles      int
	RecoveredFiles int
	StalePEBs      int
	DeletedMode    bool
}

// PrintRecoverySummary displays what a ubift_recover run wrote to disk: one
// highlighted box naming the output directory, then per-volume live and
// (if requested) recovered file counts.
func PrintRecoverySummary(outputDir string, volumeReports map[string]VolumeRecoveryReport) {
	log := ubiftlog.Logger()

	log.Info("")
	log.Info("╔════════════════════════════════════════════════════════════════════════════╗")
	log.Info("║                       RECOVERY RUN COMPLETE                                ║")
	log.Info("╚════════════════════════════════════════════════════════════════════════════╝")
	log.Info("")
	log.Infof("  Output directory: %s", outputDir)
	log.Info("")

	for _, name := range sortedVolumeNames(volumeReports) {
		r := volumeReports[name]
		volDir := filepath.Join(outputDir, name)

		log.Infof("  Volume %q", name)
		log.Infof("    • live files:  %d", r.LiveFiles)
		if r.DeletedMode {
			log.Infof("    • recovered:   %d", r.RecoveredFiles)
			log.Infof("    • stale PEBs:  %d", r.StalePEBs)
		}
		if info, err := os.Stat(volDir); err == nil && info.IsDir() {
			log.Infof("    %s", volDir)
		}
		log.Info("")
	}

	log.Info("════════════════════════════════════════════════════════════════════════════")
	log.Info("")
}

func sortedVolumeNames(m map[string]VolumeRecoveryReport) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return names
}
