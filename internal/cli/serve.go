package cli

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/daryltucker/crowdcount-bench/internal/server"
)

var (
	serveAddr  string
	serveCount int
	serveDelay time.Duration
	serveNoise string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a stand-in detection function for rig calibration",
	Long: `Serves the detection function contract with a fixed count and latency,
so the driver, the energy meter and the result files can be checked without
deploying the model.`,
	Example: `  crowdcount-bench serve --addr :8080 --count 3 --delay 150ms
  crowdcount-bench run --endpoint http://127.0.0.1:8080 --energy-source none`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		h := server.NewHandler(server.StaticDetector{Count: serveCount, Delay: serveDelay}, serveNoise)
		return server.Serve(cmd.Context(), serveAddr, h)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().IntVar(&serveCount, "count", 3, "Count to report for every image")
	serveCmd.Flags().DurationVar(&serveDelay, "delay", 150*time.Millisecond, "Simulated inference time")
	serveCmd.Flags().StringVar(&serveNoise, "noise", "", "Log line to print before the JSON body")
}
