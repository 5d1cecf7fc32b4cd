package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
)

var (
	initCheckRetries    int
	initCheckRetryDelay int
)

var initCheckCmd = &cobra.Command{
	Use:   "init-check",
	Short: "Wait until at least one device answers",
	Long: `Check that configuration loads and at least one configured device
answers a connection probe. Intended as a container entrypoint gate;
retries until a device responds or attempts run out.

Examples:
  # One attempt
  fpctl init-check

  # Keep trying for up to 5 minutes
  fpctl init-check --retry 30 --retry-delay 10`,
	RunE: runInitCheck,
}

func init() {
	initCheckCmd.Flags().IntVar(&initCheckRetries, "retry", 1,
		"Number of probe rounds before giving up")
	initCheckCmd.Flags().IntVar(&initCheckRetryDelay, "retry-delay", 5,
		"Seconds to wait between rounds")
}

func runInitCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	keys := a.Pool.Keys()
	if len(keys) == 0 {
		return fmt.Errorf("no devices configured in %s", a.Settings.ZKMachinesConfig)
	}

	for attempt := 1; attempt <= initCheckRetries; attempt++ {
		for _, key := range keys {
			if ok, perr := a.Service.Ping(ctx, key); ok && perr == nil {
				logger.Info("Device answered", "device", key, "attempt", attempt)
				fmt.Printf("ready: device %s answered on attempt %d\n", key, attempt)
				return nil
			}
		}
		if attempt < initCheckRetries {
			logger.Warn("No device answered, retrying",
				"attempt", attempt,
				"of", initCheckRetries,
				"delay_seconds", initCheckRetryDelay,
			)
			time.Sleep(time.Duration(initCheckRetryDelay) * time.Second)
		}
	}
	return fmt.Errorf("no device answered after %d attempts", initCheckRetries)
}
