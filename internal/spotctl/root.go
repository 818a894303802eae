// Package spotctl implements the operator CLI: one-shot status, report and
// predict calls against a running spotd, plus a stream tail and a hardware
// simulator for demos and smoke tests.
package spotctl

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Execute runs the spotctl command tree.
func Execute() error {
	return buildRootCmd().Execute()
}

func buildRootCmd() *cobra.Command {
	server := os.Getenv("SPOTCTL_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}

	root := &cobra.Command{
		Use:           "spotctl",
		Short:         "Operator CLI for the spotd parking daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("server", server, "Base URL of the spotd server (defaults SPOTCTL_SERVER or http://localhost:8080)")

	statusCmd := &cobra.Command{
		Use:     "status",
		Short:   "Print the current parking status",
		Example: "  spotctl status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			return c.getJSON("/api/status")
		},
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Print server health and uptime",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			return c.getJSON("/api/health")
		},
	}

	reportCmd := &cobra.Command{
		Use:     "report <id:distance:occupied>...",
		Short:   "Post one hardware report, one reading per slot",
		Example: "  spotctl report 1:10:true 2:300:false",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseReadings(args)
			if err != nil {
				return err
			}
			c := clientFor(cmd)
			return c.postJSON("/api/report", req)
		},
	}

	var day string
	var hour int
	predictCmd := &cobra.Command{
		Use:     "predict",
		Short:   "Request an occupancy forecast",
		Example: "  spotctl predict --day Tuesday --hour 14",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			return c.postJSON("/api/predict", map[string]any{
				"day_of_week": day,
				"hour":        hour,
			})
		},
	}
	predictCmd.Flags().StringVar(&day, "day", time.Now().Weekday().String(), "Day of week, e.g. Tuesday")
	predictCmd.Flags().IntVar(&hour, "hour", time.Now().Hour(), "Hour of day, 0-23")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail live status updates from the stream endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			return c.watch(cmd.Context())
		},
	}

	var interval time.Duration
	var count, slots int
	simulateCmd := &cobra.Command{
		Use:     "simulate",
		Short:   "Post randomized hardware reports on an interval",
		Example: "  spotctl simulate --slots 2 --interval 3s --count 20",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := clientFor(cmd)
			return c.simulate(cmd.Context(), slots, interval, count)
		},
	}
	simulateCmd.Flags().IntVar(&slots, "slots", 2, "Number of slots to simulate")
	simulateCmd.Flags().DurationVar(&interval, "interval", 3*time.Second, "Delay between reports")
	simulateCmd.Flags().IntVar(&count, "count", 0, "Number of reports to send (0 = until interrupted)")

	root.AddCommand(statusCmd, healthCmd, reportCmd, predictCmd, watchCmd, simulateCmd)
	return root
}

// parseReadings turns id:distance:occupied triplets into a report payload.
func parseReadings(args []string) (map[string]any, error) {
	slots := make([]map[string]any, 0, len(args))
	for _, arg := range args {
		var id int
		var distance float64
		var occupied bool
		n, err := fmt.Sscanf(arg, "%d:%g:%t", &id, &distance, &occupied)
		if err != nil || n != 3 {
			return nil, fmt.Errorf("invalid reading %q, want id:distance:occupied (e.g. 1:10:true)", arg)
		}
		slots = append(slots, map[string]any{"id": id, "distance": distance, "occupied": occupied})
	}
	return map[string]any{"slots": slots}, nil
}

func clientFor(cmd *cobra.Command) *client {
	base, _ := cmd.Flags().GetString("server")
	return newClient(base)
}
