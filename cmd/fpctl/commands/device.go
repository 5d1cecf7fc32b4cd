package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/abcfood/fingerprint-bridge/internal/cli/output"
	"github.com/abcfood/fingerprint-bridge/internal/cli/prompt"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage fingerprint terminals",
}

var deviceRestartConfirm bool

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List devices with online status",
	Long: `Probe every configured device and list its status.

Examples:
  fpctl device list
  fpctl device list -o json`,
	RunE: runDeviceList,
}

var deviceInfoCmd = &cobra.Command{
	Use:   "info <device>",
	Short: "Show detailed device information",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeviceInfo,
}

var deviceRestartCmd = &cobra.Command{
	Use:   "restart <device>",
	Short: "Restart a terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeviceRestart,
}

var deviceTimeCmd = &cobra.Command{
	Use:   "time <device>",
	Short: "Show the device clock and its drift",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeviceTime,
}

var deviceSyncTimeCmd = &cobra.Command{
	Use:   "sync-time <device>",
	Short: "Set the device clock to server time",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeviceSyncTime,
}

func init() {
	deviceRestartCmd.Flags().BoolVar(&deviceRestartConfirm, "confirm", false,
		"Skip the interactive confirmation")

	deviceCmd.AddCommand(deviceListCmd)
	deviceCmd.AddCommand(deviceInfoCmd)
	deviceCmd.AddCommand(deviceRestartCmd)
	deviceCmd.AddCommand(deviceTimeCmd)
	deviceCmd.AddCommand(deviceSyncTimeCmd)
}

type deviceStatusList []*device.Status

func (l deviceStatusList) Headers() []string {
	return []string{"KEY", "NAME", "ADDRESS", "ONLINE", "USERS", "RECORDS"}
}

func (l deviceStatusList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, st := range l {
		online, users, records := "no", "-", "-"
		if st.Online {
			online = "yes"
			if st.Info != nil {
				users = strconv.Itoa(st.Info.UserCount)
				records = strconv.Itoa(st.Info.AttendanceCount)
			}
		}
		rows = append(rows, []string{
			st.Key, st.Config.Name, st.Config.Addr(), online, users, records,
		})
	}
	return rows
}

func runDeviceList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	statuses := a.Service.AllDeviceStatuses(ctx)

	p, err := newPrinter()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		return output.PrintTable(os.Stdout, deviceStatusList(statuses))
	}
	return p.Print(statuses)
}

func runDeviceInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	status, err := a.Service.DeviceStatus(ctx, args[0])
	if err != nil {
		return err
	}
	if !status.Online {
		return fmt.Errorf("device %s is offline: %s", args[0], status.Error)
	}
	return printResult(status)
}

func runDeviceRestart(cmd *cobra.Command, args []string) error {
	key := args[0]
	ok, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Restart device %s", key), deviceRestartConfirm)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.Service.RestartDevice(ctx, key); err != nil {
		return err
	}
	fmt.Printf("Device %s restarting.\n", key)
	return nil
}

func runDeviceTime(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	deviceTime, err := a.Service.DeviceTime(ctx, args[0])
	if err != nil {
		return err
	}
	now := time.Now()
	return printResult(map[string]any{
		"device":        args[0],
		"device_time":   deviceTime.Format(time.RFC3339),
		"server_time":   now.Format(time.RFC3339),
		"drift_seconds": int(now.Sub(deviceTime).Seconds()),
	})
}

func runDeviceSyncTime(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.Service.SyncDeviceTime(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Device %s clock synced to server time.\n", args[0])
	return nil
}
