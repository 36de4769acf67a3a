package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"blackbox/internal/events"
	"blackbox/internal/ipc"
)

const defaultListLimit = 20

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var cameraID int
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent motion events",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := listEvents(cmd.Context(), ctx, cameraID, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No motion events recorded")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, ev := range list {
				rows = append(rows, []string{
					shortID(ev.ID),
					strconv.Itoa(ev.CameraID),
					formatTimestamp(ev.TriggeredAt),
					titleCase(string(ev.Status)),
					strconv.Itoa(ev.ComponentCount),
					fmt.Sprintf("%d/%d", ev.LargestArea, ev.ThresholdArea),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"ID", "Camera", "Triggered", "Status", "Blobs", "Area"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVar(&cameraID, "camera", -1, "Only show events for this camera")
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "Maximum number of events")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit events as JSON")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent recording jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := listJobs(cmd.Context(), ctx, limit, states)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No recording jobs")
				return nil
			}
			rows := make([][]string, 0, len(list))
			var total int64
			for _, job := range list {
				clip := clipName(job.Path)
				if job.Important {
					clip += " *"
				}
				detail := ""
				if job.State == events.JobFailed {
					detail = strings.TrimSpace(job.ErrorMessage)
				}
				rows = append(rows, []string{
					shortID(job.ID),
					strconv.Itoa(job.CameraID),
					formatTimestamp(job.StartedAt),
					titleCase(string(job.State)),
					clip,
					humanBytes(job.SizeBytes),
					detail,
				})
				total += job.SizeBytes
			}
			fmt.Fprint(out, renderTableWithFooter(
				[]string{"ID", "Camera", "Started", "State", "Clip", "Size", "Error"},
				rows,
				[]string{"", "", "", "", fmt.Sprintf("%d jobs", len(list)), humanBytes(total), ""},
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&states, "state", nil, "Filter by state (pending, succeeded, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "Maximum number of jobs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit jobs as JSON")
	return cmd
}

func newMarkImportantCommand(ctx *commandContext) *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "mark-important <clip>",
		Short: "Keep a clip for the important retention period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve clip path: %w", err)
			}
			important := !unset

			client, err := ctx.dialDaemon()
			switch {
			case err != nil:
				return err
			case client != nil:
				defer client.Close()
				if _, err := client.MarkImportant(path, important); err != nil {
					return err
				}
			default:
				if err := withLedger(ctx, func(ledger *events.Store) error {
					return ledger.MarkImportant(cmd.Context(), path, important)
				}); err != nil {
					return err
				}
			}

			if important {
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s important\n", filepath.Base(path))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared important flag on %s\n", filepath.Base(path))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "Clear the important flag instead")
	return cmd
}

func newKickCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "kick <camera>",
		Short: "Retry an inactive camera immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || id < 0 {
				return fmt.Errorf("invalid camera id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Kick(id)
				if err != nil {
					return err
				}
				if !resp.Kicked {
					return fmt.Errorf("camera %d is not configured", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Camera %d retry requested\n", id)
				return nil
			})
		},
	}
}

func listEvents(cmdCtx context.Context, ctx *commandContext, cameraID, limit int) ([]events.MotionEvent, error) {
	client, err := ctx.dialDaemon()
	if err != nil {
		return nil, err
	}
	if client != nil {
		defer client.Close()
		resp, err := client.Events(ipc.EventsRequest{CameraID: cameraID, Limit: limit})
		if err != nil {
			return nil, err
		}
		return resp.Events, nil
	}
	var list []events.MotionEvent
	err = withLedger(ctx, func(ledger *events.Store) error {
		var listErr error
		list, listErr = ledger.ListMotionEvents(cmdCtx, cameraID, limit)
		return listErr
	})
	return list, err
}

func listJobs(cmdCtx context.Context, ctx *commandContext, limit int, states []string) ([]events.Job, error) {
	client, err := ctx.dialDaemon()
	if err != nil {
		return nil, err
	}
	if client != nil {
		defer client.Close()
		resp, err := client.Jobs(ipc.JobsRequest{Limit: limit, States: states})
		if err != nil {
			return nil, err
		}
		return resp.Jobs, nil
	}
	filter := make([]events.JobState, 0, len(states))
	for _, state := range states {
		if trimmed := strings.ToLower(strings.TrimSpace(state)); trimmed != "" {
			filter = append(filter, events.JobState(trimmed))
		}
	}
	var list []events.Job
	err = withLedger(ctx, func(ledger *events.Store) error {
		var listErr error
		list, listErr = ledger.ListJobs(cmdCtx, limit, filter...)
		return listErr
	})
	return list, err
}

// withLedger opens the events ledger directly for commands that work while
// the daemon is down.
func withLedger(ctx *commandContext, fn func(*events.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	ledger, err := events.Open(cfg)
	if err != nil {
		return fmt.Errorf("open events ledger: %w", err)
	}
	defer ledger.Close()
	return fn(ledger)
}
