package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show saved metrics snapshots",
	Long:  "Stats lists the most recent persisted metrics snapshots and the tail of the pressure log.",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 5, "Maximum number of snapshots")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	snaps, err := db.RecentSnapshots(statsLimit)
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}
	if len(snaps) == 0 {
		fmt.Println("No metrics snapshots recorded yet. Run the server or a simulation first.")
		return nil
	}

	fmt.Println("## Snapshots")
	fmt.Println()
	for _, s := range snaps {
		taken := time.UnixMilli(s.TakenAt).Format("2006-01-02 15:04:05")
		total := s.CacheHits + s.CacheMisses
		rate := 0.0
		if total > 0 {
			rate = float64(s.CacheHits) / float64(total)
		}
		fmt.Printf("%s  (snapshot %d)\n", taken, s.ID)
		fmt.Printf("  traffic: %d hits / %d misses (%.0f%% hit rate), %d transitions\n",
			s.CacheHits, s.CacheMisses, rate*100, s.TierTransitions)
		fmt.Printf("  ops: %d activations, %d deactivations, avg activate %s\n",
			s.ActivationCount, s.DeactivationCount, time.Duration(s.AvgActivateNS))
		fmt.Printf("  pressure: avg %.2f, peak %.2f\n", s.AvgPressure, s.PeakPressure)
		fmt.Printf("  usage: immediate %.0f%%, active %.0f%%, background %.0f%%\n",
			s.ImmediateUsage*100, s.ActiveUsage*100, s.BackgroundUsage*100)
		for _, sug := range s.Suggestions {
			fmt.Printf("  suggestion: %s\n", sug)
		}
		fmt.Println()
	}

	samples, err := db.RecentPressure(10)
	if err != nil {
		return fmt.Errorf("load pressure log: %w", err)
	}
	if len(samples) > 0 {
		fmt.Println("## Pressure")
		fmt.Println()
		for _, p := range samples {
			at := time.UnixMilli(p.SampledAt).Format("15:04:05")
			fmt.Printf("  %s  %.2f (%s)\n", at, p.Pressure, p.Source)
		}
		if peak, err := db.PeakPressure(); err == nil {
			fmt.Printf("\n  peak recorded: %.2f\n", peak)
		}
	}
	return nil
}
