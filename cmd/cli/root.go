package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/amirasaad/splitsync/pkg/app"
	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/refresh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// appFactory builds the application from an env file.
type appFactory func(envFile string) (*app.App, error)

// plain disables styling when stdout is not a terminal.
var plain bool

func paint(style lipgloss.Style, s string) string {
	if plain {
		return s
	}
	return style.Render(s)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"})
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"})
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"})
)

func newRootCmd(out io.Writer, build appFactory) *cobra.Command {
	var (
		envFile string
		a       *app.App
	)
	root := &cobra.Command{
		Use:           "splitsync",
		Short:         "Offline-first sync engine for shared expenses",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = build(envFile)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a == nil {
				return nil
			}
			return a.Close()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load")

	getApp := func() *app.App { return a }
	root.AddCommand(
		newSyncCmd(getApp),
		newStatusCmd(getApp),
		newFailedCmd(getApp),
		newFeedCmd(getApp),
	)
	return root
}

func newSyncCmd(getApp func() *app.App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass over every entity type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			err := a.Orchestrator.StartSync(cmd.Context(), force)
			state := a.Orchestrator.State().String()
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), paint(failStyle, "✗ "+state))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), paint(okStyle, "✓ "+state))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "sync every entity type, ignoring freshness and throttling")
	return cmd
}

func newStatusCmd(getApp func() *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync bookkeeping per entity type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := getApp().Deps.Metadata.List(cmd.Context())
			if err != nil {
				return err
			}
			printMetadata(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func newFailedCmd(getApp func() *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List entity types whose last pass failed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := getApp().Deps.Metadata.ListFailed(cmd.Context())
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), paint(okStyle, "no failed entity types"))
				return nil
			}
			printMetadata(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func newFeedCmd(getApp func() *app.App) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "feed <consumer>",
		Short: "Refresh the transactions feed for a consumer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := refresh.ParseMode(mode)
			if err != nil {
				return err
			}
			out, err := getApp().Feed.Refresh(cmd.Context(), args[0], m)
			if err != nil {
				return err
			}
			if out.Refreshed {
				fmt.Fprintln(cmd.OutOrStdout(), paint(okStyle, "✓ refreshed ("+out.Reason+")"))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), paint(dimStyle, "– not refreshed: "+out.Reason))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "auto", "auto, manual or scoped")
	return cmd
}

func printMetadata(w io.Writer, rows []domain.SyncMetadata) {
	fmt.Fprintln(w, paint(headerStyle, fmt.Sprintf("%-22s %-16s %-20s %s", "ENTITY", "STATUS", "LAST SYNC", "RESULT")))
	for _, r := range rows {
		status := string(r.SyncStatus)
		switch r.SyncStatus {
		case domain.StatusSyncFailed:
			status = paint(failStyle, fmt.Sprintf("%-16s", status))
		case domain.StatusSynced:
			status = paint(okStyle, fmt.Sprintf("%-16s", status))
		default:
			status = fmt.Sprintf("%-16s", status)
		}
		last := "never"
		if r.LastSyncTimestamp > 0 {
			last = time.UnixMilli(r.LastSyncTimestamp).UTC().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%-22s %s %-20s %s\n", r.EntityType, status, last, strings.TrimSpace(r.LastSyncResult))
	}
}
