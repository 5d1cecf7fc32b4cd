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
	"github.com/abcfood/fingerprint-bridge/pkg/service"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Read and manage attendance records",
}

var (
	attendanceFrom    string
	attendanceTo      string
	attendanceNoCache bool
	attendanceHRIS    bool
	attendanceLimit   int
	attendanceConfirm bool
)

var attendanceListCmd = &cobra.Command{
	Use:   "list <device>",
	Short: "List attendance records",
	Long: `List attendance records for one device, optionally bounded by --from
and --to (RFC3339 or YYYY-MM-DD). Reads come from the cache unless
--no-cache forces a device session.

Examples:
  fpctl attendance list tmi
  fpctl attendance list tmi --from 2024-01-01 --to 2024-01-31
  fpctl attendance list tmi --hris -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runAttendanceList,
}

var attendanceCountCmd = &cobra.Command{
	Use:   "count <device>",
	Short: "Count attendance records",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendanceCount,
}

var attendanceCacheCmd = &cobra.Command{
	Use:   "cache <device>",
	Short: "Show the cache entry status",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendanceCache,
}

var attendanceRefreshCmd = &cobra.Command{
	Use:   "refresh <device>",
	Short: "Force a cache refresh",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendanceRefresh,
}

var attendanceClearCmd = &cobra.Command{
	Use:   "clear <device>",
	Short: "Wipe the attendance log on the device",
	Long: `Wipe the attendance log on the device. This cannot be undone; run a
backup first.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttendanceClear,
}

func init() {
	attendanceListCmd.Flags().StringVar(&attendanceFrom, "from", "", "Lower bound (inclusive)")
	attendanceListCmd.Flags().StringVar(&attendanceTo, "to", "", "Upper bound (inclusive)")
	attendanceListCmd.Flags().BoolVar(&attendanceNoCache, "no-cache", false, "Bypass the cache and read from the device")
	attendanceListCmd.Flags().BoolVar(&attendanceHRIS, "hris", false, "Format rows for the HRIS import")
	attendanceListCmd.Flags().IntVar(&attendanceLimit, "limit", 0, "Maximum rows to print (0 = all)")
	attendanceClearCmd.Flags().BoolVar(&attendanceConfirm, "confirm", false, "Skip the interactive confirmation")

	attendanceCmd.AddCommand(attendanceListCmd)
	attendanceCmd.AddCommand(attendanceCountCmd)
	attendanceCmd.AddCommand(attendanceCacheCmd)
	attendanceCmd.AddCommand(attendanceRefreshCmd)
	attendanceCmd.AddCommand(attendanceClearCmd)
}

// parseTimeFlag accepts RFC3339 or a bare date.
func parseTimeFlag(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("invalid --%s %q: use RFC3339 or YYYY-MM-DD", name, raw)
}

type attendanceList []device.Attendance

func (l attendanceList) Headers() []string {
	return []string{"UID", "USER ID", "TIMESTAMP", "STATUS", "PUNCH"}
}

func (l attendanceList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{
			strconv.Itoa(r.UID),
			r.UserID,
			r.Timestamp.Format(time.RFC3339),
			strconv.Itoa(r.Status),
			strconv.Itoa(r.Punch),
		})
	}
	return rows
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	key := args[0]
	from, err := parseTimeFlag("from", attendanceFrom)
	if err != nil {
		return err
	}
	to, err := parseTimeFlag("to", attendanceTo)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	records, err := a.Service.GetAttendance(ctx, key, from, to, !attendanceNoCache)
	if err != nil {
		return err
	}
	if attendanceLimit > 0 && len(records) > attendanceLimit {
		records = records[:attendanceLimit]
	}

	if attendanceHRIS {
		cfg, _ := a.Pool.Config(key)
		return printResult(service.FormatForHRIS(records, key, cfg.Name))
	}

	p, err := newPrinter()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		if err := output.PrintTable(os.Stdout, attendanceList(records)); err != nil {
			return err
		}
		fmt.Printf("%d record(s)\n", len(records))
		return nil
	}
	return p.Print(records)
}

func runAttendanceCount(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	count, err := a.Service.CountAttendance(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d record(s)\n", args[0], count)
	return nil
}

func runAttendanceCache(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if _, err := a.Pool.Config(args[0]); err != nil {
		return err
	}
	return printResult(a.Cache.Status(args[0]))
}

func runAttendanceRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	count, err := a.Cache.Refresh(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: cache refreshed, %d record(s)\n", args[0], count)
	return nil
}

func runAttendanceClear(cmd *cobra.Command, args []string) error {
	key := args[0]
	ok, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Permanently delete all attendance records on %s", key),
		attendanceConfirm)
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

	if err := a.Service.ClearAttendance(ctx, key); err != nil {
		return err
	}
	fmt.Printf("%s: attendance log cleared.\n", key)
	return nil
}
