package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/catmaid/backend/internal/app"
	"github.com/zhouzirui/catmaid/backend/internal/config"
	"github.com/zhouzirui/catmaid/backend/internal/model/message"
	"github.com/zhouzirui/catmaid/backend/internal/service/ai"
	"github.com/zhouzirui/catmaid/backend/internal/service/turn"
)

type options struct {
	dbPath  string
	verbose bool

	// generator replaces the configured model backend in tests.
	generator ai.Generator
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{})
}

func newRootCmdWith(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "statusctl",
		Short: "Inspect and maintain catmaid user state",
		Long: `Inspect and maintain catmaid user state.

Reads the same environment variables as the API server. --db overrides DB_PATH.

Examples:
  statusctl status alice
  statusctl history alice -n 4
  statusctl recover
  statusctl chat alice "你好"`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default $DB_PATH)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newStatusCmd(opts),
		newHistoryCmd(opts),
		newResetCmd(opts),
		newRecoverCmd(opts),
		newChatCmd(opts),
	)
	return root
}

func (o *options) open(cmd *cobra.Command) (*app.App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.Store.Path = o.dbPath
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	} else {
		cfg.Log.Level = "warn"
	}
	slog.SetDefault(app.NewLogger(cmd.ErrOrStderr(), cfg.Log))

	return app.Open(cfg)
}

func requireUser(userID string) error {
	if !turn.ValidUserID(userID) {
		return fmt.Errorf("invalid user id %q", userID)
	}
	return nil
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user>",
		Short: "Show a user's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(args[0]); err != nil {
				return err
			}
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Statuses.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, turn.Footer(st, a.Statuses.Limits().Max))
			fmt.Fprintf(out, "stamina baseline: %s\nmood baseline:    %s\n",
				st.LastStaminaUpdate.Format(time.RFC3339), st.LastMoodUpdate.Format(time.RFC3339))
			return nil
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <user>",
		Short: "Print a user's recent transcript, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(args[0]); err != nil {
				return err
			}
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.History.Recent(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "(no history)")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s [%s] %s\n", e.Timestamp.Format(time.DateTime), e.Role, strings.ReplaceAll(e.Content, "\n", " "))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 8, "number of entries")
	return cmd
}

func newResetCmd(opts *options) *cobra.Command {
	var historyOnly bool
	cmd := &cobra.Command{
		Use:   "reset <user>",
		Short: "Clear a user's history and restore the initial status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(args[0]); err != nil {
				return err
			}
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if historyOnly {
				n, err := a.History.Clear(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", n)
				return nil
			}

			st, err := a.Statuses.Reset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), turn.ReplyReset)
			fmt.Fprintln(cmd.OutOrStdout(), turn.Footer(st, a.Statuses.Limits().Max))
			return nil
		},
	}
	cmd.Flags().BoolVar(&historyOnly, "history-only", false, "delete the transcript and keep the status")
	return cmd
}

func newRecoverCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Run one recovery pass over every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Scheduler.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, updated %d, restamped %d\n", res.Processed, res.Updated, res.Restamped)
			return nil
		},
	}
}

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <user> <text>",
		Short: "Run one turn through the configured model",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var processor *turn.Processor
			if opts.generator != nil {
				processor = a.ProcessorWith(opts.generator)
			} else if processor, err = a.Processor(cmd.Context()); err != nil {
				return err
			}

			text := strings.Join(args[1:], " ")
			fmt.Fprintln(cmd.OutOrStdout(), processor.ProcessTurn(cmd.Context(), args[0], message.Text(text)))
			return nil
		},
	}
}
