/*
PURPOSE:
  Defines the 'probe' subcommand.
  Helps debug connectivity before a full run.

REQUIREMENTS:
  User-specified:
  - Send one image, print the detected count and response time.

  Implementation-discovered:
  - Useful validation step before full run (gateway login, function name).

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Client

ERROR HANDLING:
  - Returns the classified request error (timeout, connection, status...).

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  crowdcount-bench probe images/3p2f_0.jpg --endpoint http://gateway:8080

RELATED FILES:
  - internal/engine/client.go
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/crowdcount-bench/internal/engine"
)

var probeEndpoint string

var probeCmd = &cobra.Command{
	Use:   "probe [image]",
	Short: "Send a single image and print the count and response time",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if probeEndpoint != "" {
			cfg.Endpoint = probeEndpoint
		}

		var path string
		switch {
		case len(args) == 1:
			path = args[0]
		case len(cfg.Images) > 0:
			path = cfg.ImagePaths()[0]
		default:
			return fmt.Errorf("no image given and none configured")
		}

		payload, err := engine.PrepareImage(path)
		if err != nil {
			return err
		}

		url := engine.FunctionURL(cfg.Endpoint, cfg.Function)
		fmt.Fprintf(cmd.OutOrStdout(), "Querying %s...\n", url)

		resp, err := engine.NewClient(url, cfg.RequestTimeout).Execute(cmd.Context(), payload)
		if err != nil {
			return fmt.Errorf("probe failed (%s): %w", engine.ErrorKind(err), err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Count: %d\nResponse time: %.4f s\n", resp.Count, resp.Elapsed.Seconds())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVar(&probeEndpoint, "endpoint", "", "OpenFaaS gateway URL (or full function URL)")
}
