package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/crowdcount-bench/internal/energy"
)

var (
	watchSource   string
	watchInterval time.Duration
	watchDuration time.Duration
)

// energyCmd prints the meter reading until interrupted, to check the
// telemetry wiring before a run.
var energyCmd = &cobra.Command{
	Use:   "energy",
	Short: "Watch the cumulative energy reading of the configured source",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchInterval <= 0 {
			return fmt.Errorf("interval must be positive, got %s", watchInterval)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if watchSource != "" {
			cfg.Energy.Source = watchSource
		}

		ctx := cmd.Context()
		if watchDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchDuration)
			defer cancel()
		}

		meter, err := energy.Open(ctx, energyOptions(cfg))
		if err != nil {
			return fmt.Errorf("failed to open energy source %s: %w", cfg.Energy.Source, err)
		}
		defer meter.Close()

		out := cmd.OutOrStdout()
		start := meter.Sample()
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				total := meter.Sample()
				fmt.Fprintf(out, "%s  total %.4f mWh  since start %.4f mWh\n",
					now.Format("15:04:05"), total, total-start)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(energyCmd)
	energyCmd.Flags().StringVar(&watchSource, "energy-source", "", "Energy source: serial, rapl or none")
	energyCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Print interval")
	energyCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop after this long (0 = until interrupted)")
}
