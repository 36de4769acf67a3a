package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"blackbox/internal/events"
	"blackbox/internal/ipc"
	"blackbox/internal/logging"
	"blackbox/internal/storage"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var offline bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run a storage audit and apply the retention policy now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp *ipc.AuditResponse
			if !offline {
				client, err := ctx.dialDaemon()
				if err != nil {
					return err
				}
				if client != nil {
					defer client.Close()
					if resp, err = client.Audit(); err != nil {
						return err
					}
				}
			}
			if resp == nil {
				local, err := auditOffline(cmd, ctx)
				if err != nil {
					return err
				}
				resp = local
			}

			if asJSON {
				return writeJSON(cmd, resp)
			}
			renderAudit(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the audit result as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Audit the events directory directly instead of asking the daemon")
	return cmd
}

func auditOffline(cmd *cobra.Command, ctx *commandContext) (*ipc.AuditResponse, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	resp := &ipc.AuditResponse{}
	err = withLedger(ctx, func(ledger *events.Store) error {
		manager := storage.NewManager(
			storage.PolicyFromConfig(cfg),
			cfg.Paths.EventsDir,
			cfg.Storage.Extensions,
			logging.NewNop(),
			storage.WithImportant(ledger),
		)
		result, auditErr := manager.AuditAndClean(cmd.Context())
		if auditErr != nil {
			return auditErr
		}
		resp.Result = result
		for _, e := range result.Errors {
			resp.Errors = append(resp.Errors, e.Error())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func renderAudit(out io.Writer, resp *ipc.AuditResponse) {
	result := resp.Result
	fmt.Fprintf(out, "Audit (%s) finished in %s\n", titleCase(result.Mode), result.Duration.Round(time.Millisecond))
	fmt.Fprint(out, renderTable(
		[]string{"", "Clips", "Used", "Usage"},
		[][]string{
			{"Before", fmt.Sprintf("%d", result.Before.Files), humanBytes(result.Before.UsedBytes), fmt.Sprintf("%.1f%%", result.Before.UsagePercent)},
			{"After", fmt.Sprintf("%d", result.After.Files), humanBytes(result.After.UsedBytes), fmt.Sprintf("%.1f%%", result.After.UsagePercent)},
		},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
	if len(result.Deleted) == 0 {
		fmt.Fprintln(out, "No clips deleted")
	} else {
		rows := make([][]string, 0, len(result.Deleted))
		for _, d := range result.Deleted {
			rows = append(rows, []string{clipName(d.Path), humanBytes(d.Size), formatTimestamp(d.Created), yesNo(d.Important)})
		}
		fmt.Fprint(out, renderTableWithFooter(
			[]string{"Deleted", "Size", "Created", "Important"},
			rows,
			[]string{fmt.Sprintf("%d clips", len(result.Deleted)), humanBytes(result.FreedBytes), "", ""},
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
		))
	}
	for _, e := range resp.Errors {
		fmt.Fprintf(out, "warning: %s\n", e)
	}
}
