package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abcfood/fingerprint-bridge/internal/cli/output"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
)

var fingerCmd = &cobra.Command{
	Use:   "finger",
	Short: "Inspect fingerprint templates",
}

var fingerListCmd = &cobra.Command{
	Use:   "list <device> [user-id]",
	Short: "List stored templates, optionally for one user",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runFingerList,
}

var fingerCountCmd = &cobra.Command{
	Use:   "count <device>",
	Short: "Count templates and users with fingerprints",
	Args:  cobra.ExactArgs(1),
	RunE:  runFingerCount,
}

func init() {
	fingerCmd.AddCommand(fingerListCmd)
	fingerCmd.AddCommand(fingerCountCmd)
}

type fingerprintList []device.Fingerprint

func (l fingerprintList) Headers() []string {
	return []string{"UID", "USER ID", "FINGER", "VALID", "SIZE"}
}

func (l fingerprintList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, fp := range l {
		rows = append(rows, []string{
			strconv.Itoa(fp.UID),
			fp.UserID,
			strconv.Itoa(fp.FingerIndex),
			strconv.Itoa(fp.Valid),
			strconv.Itoa(len(fp.Template)),
		})
	}
	return rows
}

func runFingerList(cmd *cobra.Command, args []string) error {
	userID := ""
	if len(args) == 2 {
		userID = args[1]
	}

	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	prints, err := a.Service.ListFingerprints(ctx, args[0], userID)
	if err != nil {
		return err
	}

	p, err := newPrinter()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		if err := output.PrintTable(os.Stdout, fingerprintList(prints)); err != nil {
			return err
		}
		fmt.Printf("%d template(s)\n", len(prints))
		return nil
	}
	return p.Print(prints)
}

func runFingerCount(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	total, err := a.Service.CountFingerprints(ctx, args[0])
	if err != nil {
		return err
	}
	summary, err := a.Service.FingerprintSummary(ctx, args[0])
	if err != nil {
		return err
	}
	return printResult(map[string]any{
		"device":          args[0],
		"total":           total,
		"users_with_fp":   len(summary),
		"per_user_counts": summary,
	})
}
