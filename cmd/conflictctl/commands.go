package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hotelpms/server/internal/app"
	"github.com/hotelpms/server/internal/config"
	"github.com/hotelpms/server/internal/models"
	"github.com/hotelpms/server/internal/repository"
)

type rootOptions struct {
	configPath string
	propertyID string
	format     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "conflictctl",
		Short:         "Detect and resolve booking conflicts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case "text", "json", "yaml", "yml":
				return nil
			default:
				return fmt.Errorf("unknown format %q (want text, json or yaml)", opts.format)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default $CONFIG_PATH or config.json)")
	cmd.PersistentFlags().StringVarP(&opts.propertyID, "property", "p", "", "Property ID")
	cmd.PersistentFlags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json, yaml")

	cmd.AddCommand(
		newDetectCmd(opts),
		newAutoResolveCmd(opts),
		newListCmd(opts),
		newStatsCmd(opts),
		newResolveCmd(opts),
		newIgnoreCmd(opts),
	)
	return cmd
}

// withEngine opens the configured database, wires the engine and runs fn
func withEngine(opts *rootOptions, fn func(ctx context.Context, engine *app.App) error) error {
	if opts.configPath != "" {
		os.Setenv("CONFIG_PATH", opts.configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := repository.Open(cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	engine, err := app.New(cfg, db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, engine)
}

func requireProperty(opts *rootOptions) error {
	if opts.propertyID == "" {
		return fmt.Errorf("--property is required")
	}
	return nil
}

func newDetectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Run conflict detection for a property",
		Long: `Run every detector for a property and store the conflicts found.

Examples:
  conflictctl detect -p hotel-1
  conflictctl detect -p hotel-1 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireProperty(opts); err != nil {
				return err
			}
			return withEngine(opts, func(ctx context.Context, engine *app.App) error {
				report, err := engine.Conflicts.DetectConflicts(ctx, opts.propertyID)
				if err != nil {
					return err
				}
				return renderReport(cmd.OutOrStdout(), opts.format, report)
			})
		},
	}
}

func newAutoResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auto-resolve",
		Short: "Apply automatic fixes to sync and pricing conflicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireProperty(opts); err != nil {
				return err
			}
			return withEngine(opts, func(ctx context.Context, engine *app.App) error {
				resolved, err := engine.Conflicts.AutoResolveConflicts(ctx, opts.propertyID)
				if err != nil {
					return err
				}
				return renderAutoResolve(cmd.OutOrStdout(), opts.format, models.AutoResolveResponse{
					PropertyID:    opts.propertyID,
					ResolvedCount: resolved,
				})
			})
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var filter models.ConflictFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the conflicts of a property",
		Long: `List stored conflicts, most severe first.

Examples:
  conflictctl list -p hotel-1 --status detected
  conflictctl list -p hotel-1 --type double_booking --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireProperty(opts); err != nil {
				return err
			}
			filter.PropertyID = opts.propertyID
			return withEngine(opts, func(ctx context.Context, engine *app.App) error {
				conflicts, total, err := engine.Conflicts.ListConflicts(ctx, filter)
				if err != nil {
					return err
				}
				return renderList(cmd.OutOrStdout(), opts.format, models.ConflictListResponse{
					Conflicts:  conflicts,
					TotalCount: total,
					Skip:       filter.Skip,
					Take:       filter.Take,
				})
			})
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status: detected, resolved, ignored")
	cmd.Flags().StringVar(&filter.Type, "type", "", "Filter by conflict type")
	cmd.Flags().IntVar(&filter.Skip, "skip", 0, "Number of conflicts to skip")
	cmd.Flags().IntVar(&filter.Take, "take", 50, "Maximum number of conflicts to show (0 for all)")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show conflict counts for a property",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireProperty(opts); err != nil {
				return err
			}
			return withEngine(opts, func(ctx context.Context, engine *app.App) error {
				stats, err := engine.Conflicts.GetConflictStats(ctx, opts.propertyID)
				if err != nil {
					return err
				}
				return renderStats(cmd.OutOrStdout(), opts.format, stats)
			})
		},
	}
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var resolution models.ConflictResolution
	var by string

	cmd := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Mark a conflict as resolved",
		Long: `Record how a conflict was handled. Resolved conflicts stay resolved when
detection finds them again.

Examples:
  conflictctl resolve double_booking:bk-1:bk-2 --action relocate_direct --notes "moved to 204"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(opts, func(ctx context.Context, engine *app.App) error {
				conflict, err := engine.Conflicts.ResolveConflict(ctx, args[0], resolution, by)
				if err != nil {
					return err
				}
				return renderConflict(cmd.OutOrStdout(), opts.format, conflict)
			})
		},
	}

	cmd.Flags().StringVar(&resolution.Action, "action", "", "Action taken (e.g. relocate_direct, honor_first)")
	cmd.Flags().StringVar(&resolution.Notes, "notes", "", "Resolution notes")
	cmd.Flags().StringVar(&by, "by", os.Getenv("USER"), "Operator recorded as resolver")
	cmd.MarkFlagRequired("action")
	return cmd
}

func newIgnoreCmd(opts *rootOptions) *cobra.Command {
	var notes, by string

	cmd := &cobra.Command{
		Use:   "ignore <conflict-id>",
		Short: "Mark a conflict as ignored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(opts, func(ctx context.Context, engine *app.App) error {
				conflict, err := engine.Conflicts.IgnoreConflict(ctx, args[0], notes, by)
				if err != nil {
					return err
				}
				return renderConflict(cmd.OutOrStdout(), opts.format, conflict)
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Why the conflict is ignored")
	cmd.Flags().StringVar(&by, "by", os.Getenv("USER"), "Operator recorded as resolver")
	return cmd
}
