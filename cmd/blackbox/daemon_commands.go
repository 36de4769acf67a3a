package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blackbox/internal/config"
	"blackbox/internal/daemonctl"
	"blackbox/internal/events"
	"blackbox/internal/storage"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the blackbox daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startDiagnostic),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the blackbox daemon (finishes in-flight clips within the shutdown grace)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg := ctx.configValue()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), cfg, stopGrace(cfg))
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping cameras and recordings...")
			}
			reportTermination(stdout, result)
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, camera and storage status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}
			renderStatus(cmd.OutOrStdout(), snap, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit status as JSON")

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the blackbox daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartDiagnostic),
				stopGrace(ctx.configValue()),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				reportTermination(stdout, result.Stop)
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func reportTermination(stdout io.Writer, result daemonctl.StopResult) {
	switch {
	case result.ForcedKill:
		fmt.Fprintf(stdout, "Daemon ignored SIGTERM, killed pid %d\n", result.PID)
	case result.Terminated:
		fmt.Fprintf(stdout, "Sent SIGTERM to daemon process (pid %d)\n", result.PID)
	}
}

func renderStatus(stdout io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	renderSection(stdout, "System Status", colorize)
	renderStatusLines(stdout, snap.SystemChecks, colorize)
	if snap.Daemon.Running {
		uptime := formatDuration(snap.Daemon.Blackbox.Uptime)
		fmt.Fprintln(stdout, renderStatusLine("Uptime", statusInfo, fmt.Sprintf("%s (pid %d)", uptime, snap.Daemon.PID), colorize))
	}
	fmt.Fprintln(stdout)

	renderSection(stdout, "Cameras", colorize)
	renderStatusLines(stdout, snap.Cameras, colorize)
	fmt.Fprintln(stdout)

	renderSection(stdout, "Dependencies", colorize)
	for _, line := range dependencyLines(snap.Dependencies, snap.DependencySummary, colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)

	renderSection(stdout, "Paths", colorize)
	renderStatusLines(stdout, snap.Paths, colorize)
	fmt.Fprintln(stdout)

	renderSection(stdout, "Storage", colorize)
	if snap.Storage == nil {
		fmt.Fprintln(stdout, "Storage usage unavailable")
	} else {
		fmt.Fprint(stdout, renderTable(
			[]string{"Clips", "Used", "Limit", "Usage", "Free"},
			[][]string{storageRow(*snap.Storage)},
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
		))
	}
	if audit := snap.Daemon.Blackbox.LastAudit; audit != nil {
		detail := fmt.Sprintf("%s at %s, %d deleted, %s freed", audit.Mode, formatTimestamp(audit.At), audit.Deleted, humanBytes(audit.FreedBytes))
		kind := statusOK
		if audit.Err != "" || audit.Errors > 0 {
			kind = statusWarn
		}
		fmt.Fprintln(stdout, renderStatusLine("Last audit", kind, detail, colorize))
	}
	fmt.Fprintln(stdout)

	renderSection(stdout, "Recordings", colorize)
	rows := buildLedgerRows(snap.Ledger)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "No recordings yet")
		return
	}
	fmt.Fprint(stdout, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func storageRow(st storage.Stats) []string {
	limit := "-"
	usage := "-"
	if st.MaxBytes > 0 {
		limit = humanBytes(st.MaxBytes)
		usage = fmt.Sprintf("%.1f%%", st.UsagePercent)
	}
	return []string{
		strconv.Itoa(st.Files),
		humanBytes(st.UsedBytes),
		limit,
		usage,
		humanBytes(int64(st.FreeBytes)),
	}
}

func buildLedgerRows(stats *events.Stats) [][]string {
	if stats == nil {
		return nil
	}
	rows := make([][]string, 0, len(stats.Jobs)+len(stats.Events))
	states := make([]string, 0, len(stats.Jobs))
	for state := range stats.Jobs {
		states = append(states, string(state))
	}
	sort.Strings(states)
	for _, state := range states {
		rows = append(rows, []string{titleCase(state), strconv.Itoa(stats.Jobs[events.JobState(state)])})
	}
	if n := stats.Events[events.EventSuppressed]; n > 0 {
		rows = append(rows, []string{"Suppressed Triggers", strconv.Itoa(n)})
	}
	return rows
}

func dependencyLines(deps []daemonctl.DependencyStatus, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusKindFromSeverity(dep.Severity), detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, fmt.Sprintf("%s (install rpicam-apps, or ffmpeg for the ffmpeg backend)", strings.Join(missing, ", ")), colorize))
	}
	return lines
}

// stopGrace covers the shutdown grace in-flight clips get before the daemon
// cancels them, plus time to stop the camera processes.
func stopGrace(cfg *config.Config) time.Duration {
	grace := 5 * time.Second
	if cfg != nil {
		grace += time.Duration(cfg.Workflow.ShutdownGraceSeconds) * time.Second
	}
	return grace
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, diagnostic bool) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		Diagnostic: diagnostic,
	}
}
