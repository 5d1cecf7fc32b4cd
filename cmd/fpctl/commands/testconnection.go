package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abcfood/fingerprint-bridge/internal/cli/output"
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Probe every configured peripheral",
	Long: `Probe every configured device plus the S3 bucket and the Odoo
connection, and report each result. Exits non-zero when any probe fails.

Examples:
  fpctl test-connection
  fpctl test-connection -o json`,
	RunE: runTestConnection,
}

type probeResult struct {
	Target string `json:"target"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

type probeResults []probeResult

func (r probeResults) Headers() []string {
	return []string{"TARGET", "STATUS", "DETAIL"}
}

func (r probeResults) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, p := range r {
		status := "OK"
		if !p.OK {
			status = "FAIL"
		}
		rows = append(rows, []string{p.Target, status, p.Detail})
	}
	return rows
}

func runTestConnection(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	var results probeResults
	for _, key := range a.Pool.Keys() {
		ok, perr := a.Service.Ping(ctx, key)
		r := probeResult{Target: "device " + key, OK: ok && perr == nil}
		if perr != nil {
			r.Detail = perr.Error()
		}
		results = append(results, r)
	}

	if a.Store != nil {
		r := probeResult{Target: "s3 " + a.Settings.S3Bucket, OK: true}
		if _, serr := a.Store.List(ctx, ""); serr != nil {
			r.OK = false
			r.Detail = serr.Error()
		}
		results = append(results, r)
	} else {
		results = append(results, probeResult{
			Target: "s3", OK: true, Detail: "skipped (not configured)",
		})
	}

	if a.Directory != nil {
		r := probeResult{Target: "odoo " + a.Settings.OdooHost, OK: true}
		if employees, oerr := a.Directory.Employees(ctx); oerr != nil {
			r.OK = false
			r.Detail = oerr.Error()
		} else {
			r.Detail = fmt.Sprintf("%d active employees", len(employees))
		}
		results = append(results, r)
	} else {
		results = append(results, probeResult{
			Target: "odoo", OK: true, Detail: "skipped (not configured)",
		})
	}

	p, err := newPrinter()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		if err := output.PrintTable(os.Stdout, results); err != nil {
			return err
		}
	} else if err := p.Print(results); err != nil {
		return err
	}

	for _, r := range results {
		if !r.OK {
			return fmt.Errorf("%s: %s", r.Target, r.Detail)
		}
	}
	return nil
}
