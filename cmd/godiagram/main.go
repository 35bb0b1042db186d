package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lexcodex/godiagram/app/diagram/tui"
	"github.com/lexcodex/godiagram/editor"
	runtimesvc "github.com/lexcodex/godiagram/internal/diagram/runtime"
	"github.com/lexcodex/godiagram/persistence"
)

var (
	cfg         = runtimesvc.DefaultConfig()
	watcherCmd  string
	startServer bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "godiagram",
		Short:         "Live struct diagram editor for a Go source watcher",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Workspace, "workspace", cfg.Workspace, "Workspace directory")
	flags.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Config file path")
	flags.StringVar(&cfg.Watcher.Host, "host", cfg.Watcher.Host, "Watcher host")
	flags.IntVar(&cfg.Watcher.Port, "port", cfg.Watcher.Port, "Watcher port")
	flags.StringVar(&cfg.Watcher.Path, "path", cfg.Watcher.Path, "Watcher websocket path")
	flags.StringVar(&cfg.Watcher.VersionToken, "version-token", cfg.Watcher.VersionToken, "Version token sent as lastMod")
	flags.StringVar(&watcherCmd, "watcher-cmd", "", "Spawn the watcher and talk to it over stdio")
	flags.DurationVar(&cfg.Watcher.DialTimeout, "dial-timeout", cfg.Watcher.DialTimeout, "Watcher connect timeout")
	flags.DurationVar(&cfg.TransitionWindow, "transition", cfg.TransitionWindow, "Layout transition window")
	flags.StringVar(&cfg.LogPath, "log", cfg.LogPath, "Log file path")
	flags.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "Session journal database (empty keeps it in memory)")
	flags.StringVar(&cfg.ServerAddr, "addr", cfg.ServerAddr, "HTTP API listen address")

	root.AddCommand(newEditCmd(), newTailCmd(), newTreeCmd(), newServeCmd(), newJournalCmd())
	return root
}

// loadConfig overlays the config file onto the defaults, then reapplies the
// flags the user set so they win over the file.
func loadConfig(cmd *cobra.Command) error {
	set := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		set[f.Name] = f.Value.String()
	})
	loaded, err := runtimesvc.LoadConfig(cfg.ResolveConfigPath(), cfg)
	switch {
	case err == nil:
		cfg = loaded
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	for name, value := range set {
		if err := cmd.Flags().Set(name, value); err != nil {
			return err
		}
	}
	if watcherCmd != "" {
		cfg.Watcher.Command = strings.Fields(watcherCmd)
	}
	return cfg.Normalize()
}

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Open the interactive diagram editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithRuntime(cmd, runtimesvc.Options{}, func(ctx context.Context, rt *runtimesvc.Runtime) error {
				if startServer {
					stop, err := rt.StartServer(ctx, cfg.ServerAddr)
					if err != nil {
						return err
					}
					defer stop(context.Background())
				}
				// A failed dial is shown in the UI, which can retry.
				_ = rt.Connect(ctx)
				return tui.Run(ctx, rt)
			})
		},
	}
	cmd.Flags().BoolVar(&startServer, "serve", false, "Launch the HTTP API server alongside the editor")
	return cmd
}

func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the watcher and print model changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithRuntime(cmd, runtimesvc.Options{LogWriter: os.Stderr}, func(ctx context.Context, rt *runtimesvc.Runtime) error {
				if err := rt.Connect(ctx); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				err := rt.Editor.Run(ctx, func(up editor.Update) {
					if up.Notice != nil {
						fmt.Fprintf(out, "%s %s: %s\n", up.Notice.Time.Format(time.TimeOnly), up.Notice.Level, up.Notice.Message)
					}
					if up.Transition {
						packages, files, structs, edges := rt.Editor.Model().Counts()
						fmt.Fprintf(out, "%s model: %d packages, %d files, %d structs, %d edges\n",
							time.Now().Format(time.TimeOnly), packages, files, structs, edges)
					}
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	return cmd
}

func newTreeCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the first model the watcher sends as a tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithRuntime(cmd, runtimesvc.Options{LogWriter: os.Stderr}, func(ctx context.Context, rt *runtimesvc.Runtime) error {
				if err := rt.Connect(ctx); err != nil {
					return err
				}
				waitCtx, cancel := context.WithTimeout(ctx, wait)
				defer cancel()
				err := rt.Editor.Run(waitCtx, func(up editor.Update) {
					if !rt.Editor.Model().IsPlaceholder() {
						cancel()
					}
				})
				if rt.Editor.Model().IsPlaceholder() {
					return fmt.Errorf("no model from %s: %w", rt.Config.Watcher.Endpoint(), err)
				}
				return writeTree(cmd.OutOrStdout(), rt.Config.Watcher.Endpoint().String(), rt.Editor.Model())
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for the first snapshot")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run only the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithRuntime(cmd, runtimesvc.Options{LogWriter: os.Stderr}, func(ctx context.Context, rt *runtimesvc.Runtime) error {
				if err := rt.Connect(ctx); err != nil {
					return err
				}
				stop, err := rt.StartServer(ctx, cfg.ServerAddr)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "godiagram API listening on %s\n", cfg.ServerAddr)
				_ = rt.Editor.Run(ctx, nil)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return stop(shutdownCtx)
			})
		},
	}
	return cmd
}

func newJournalCmd() *cobra.Command {
	var (
		query persistence.JournalQuery
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the session journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JournalPath == "" {
				return errors.New("journal is in memory only; pass --journal")
			}
			journal, err := persistence.NewSQLiteJournal(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer journal.Close()
			if since > 0 {
				query.TimeStart = time.Now().Add(-since)
			}
			entries, err := journal.Query(cmd.Context(), query)
			if err != nil {
				return err
			}
			return writeJournal(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&query.Session, "session", "", "Only this session")
	cmd.Flags().StringVar((*string)(&query.Direction), "direction", "", "inbound or outbound")
	cmd.Flags().StringVar(&query.Kind, "kind", "", "Message kind, e.g. snapshot or renameField")
	cmd.Flags().IntVar(&query.Limit, "limit", 50, "Maximum entries")
	cmd.Flags().DurationVar(&since, "since", 0, "Only entries newer than this")
	return cmd
}

func runWithRuntime(cmd *cobra.Command, opts runtimesvc.Options, fn func(context.Context, *runtimesvc.Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := runtimesvc.New(cfg, opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}
