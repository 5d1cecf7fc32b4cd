package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abcfood/fingerprint-bridge/internal/cli/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after merging the environment and .env
files. Secrets are masked.

Examples:
  fpctl status
  fpctl status -o json`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	pairs := [][2]string{
		{"Environment", settings.Environment},
		{"Machines config", settings.ZKMachinesConfig},
		{"API listen", fmt.Sprintf("%s:%d", settings.APIHost, settings.APIPort)},
		{"API key", mask(settings.APIKey)},
		{"CORS origins", settings.APICORSOrigins},
		{"S3 configured", strconv.FormatBool(settings.S3Configured())},
		{"S3 bucket", settings.S3Bucket},
		{"S3 endpoint", settings.S3Endpoint},
		{"Odoo configured", strconv.FormatBool(settings.OdooConfigured())},
		{"Odoo host", settings.OdooHost},
		{"Odoo database", settings.OdooDB},
		{"Scheduler enabled", strconv.FormatBool(settings.SchedulerEnabled)},
		{"Cache refresh (min)", strconv.Itoa(settings.CacheRefreshMinutes)},
		{"Backup time (UTC)", fmt.Sprintf("%02d:%02d", settings.BackupHourUTC, settings.BackupMinuteUTC)},
		{"Backup retention (days)", strconv.Itoa(settings.BackupRetentionDays)},
		{"Metrics enabled", strconv.FormatBool(settings.MetricsEnabled)},
		{"Log level", settings.LogLevel},
		{"Log format", settings.LogFormat},
	}

	p, err := newPrinter()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		return output.SimpleTable(os.Stdout, pairs)
	}

	view := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		view[kv[0]] = kv[1]
	}
	return p.Print(view)
}

// mask hides a secret, keeping enough to recognize which one is set.
func mask(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
