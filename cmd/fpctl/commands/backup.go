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
	"github.com/abcfood/fingerprint-bridge/internal/cli/timeutil"
	"github.com/abcfood/fingerprint-bridge/pkg/storage"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up and restore device data",
}

var (
	backupSkipAttendance bool
	backupListDevice     string
	restoreTarget        string
	restoreDryRun        bool
	restoreConfirm       bool
	cleanupConfirm       bool
)

var backupRunCmd = &cobra.Command{
	Use:   "run <device>",
	Short: "Back up one device to object storage",
	Long: `Read users, fingerprint templates, and attendance from a device and
upload one backup object to S3.

Examples:
  fpctl backup run tmi
  fpctl backup run tmi --skip-attendance`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupRun,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored backups, newest first",
	RunE:  runBackupList,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <s3-key>",
	Short: "Restore a stored backup onto a device",
	Long: `Restore users and fingerprint templates from a stored backup. Runs as
a dry run by default; pass --dry-run=false to write to the device.
--target restores onto a different device than the backup came from.

Examples:
  fpctl backup restore backups/tmi/2024-01-01_00-00-00.json
  fpctl backup restore backups/tmi/2024-01-01_00-00-00.json --dry-run=false
  fpctl backup restore backups/tmi/2024-01-01_00-00-00.json --target mmk --dry-run=false`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupRestore,
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete backups older than the retention window",
	RunE:  runBackupCleanup,
}

func init() {
	backupRunCmd.Flags().BoolVar(&backupSkipAttendance, "skip-attendance", false,
		"Leave attendance records out of the backup")
	backupListCmd.Flags().StringVar(&backupListDevice, "device", "",
		"Only list backups of this device")
	backupRestoreCmd.Flags().StringVar(&restoreTarget, "target", "",
		"Restore onto this device instead of the backup's own")
	backupRestoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", true,
		"Plan only; pass --dry-run=false to write")
	backupRestoreCmd.Flags().BoolVar(&restoreConfirm, "confirm", false,
		"Skip the interactive confirmation")
	backupCleanupCmd.Flags().BoolVar(&cleanupConfirm, "confirm", false,
		"Skip the interactive confirmation")

	backupCmd.AddCommand(backupRunCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupCleanupCmd)
}

type backupInfoList []storage.BackupInfo

func (l backupInfoList) Headers() []string {
	return []string{"KEY", "DEVICE", "SIZE", "LAST MODIFIED"}
}

func (l backupInfoList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, b := range l {
		rows = append(rows, []string{
			b.Key,
			b.DeviceKey,
			strconv.FormatInt(b.Size, 10),
			timeutil.FormatTime(b.LastModified.Format(time.RFC3339)),
		})
	}
	return rows
}

func runBackupRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	result, err := a.Service.RunBackup(ctx, args[0], !backupSkipAttendance)
	if err != nil {
		return err
	}
	return printResult(result)
}

func runBackupList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	backups, err := a.Service.ListBackups(ctx, backupListDevice)
	if err != nil {
		return err
	}

	p, err := newPrinter()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		if err := output.PrintTable(os.Stdout, backupInfoList(backups)); err != nil {
			return err
		}
		fmt.Printf("%d backup(s)\n", len(backups))
		return nil
	}
	return p.Print(backups)
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	s3Key := args[0]
	if !restoreDryRun {
		ok, err := prompt.ConfirmWithForce(
			fmt.Sprintf("Overwrite device data from %s", s3Key), restoreConfirm)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	result, err := a.Service.RestoreBackup(ctx, s3Key, restoreTarget, restoreDryRun)
	if err != nil {
		return err
	}
	if err := printResult(result); err != nil {
		return err
	}
	if result.DryRun {
		fmt.Println("Dry run; pass --dry-run=false to write to the device.")
	}
	return nil
}

func runBackupCleanup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if a.Store == nil {
		return fmt.Errorf("object storage is not configured")
	}

	retention := a.Settings.BackupRetentionDays
	ok, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Delete backups older than %d days", retention), cleanupConfirm)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	deleted, err := a.Store.CleanupOldBackups(ctx, retention)
	if err != nil {
		return err
	}
	fmt.Printf("%d backup(s) deleted.\n", deleted)
	return nil
}
