// Package cli implements the estisync command-line client: reading and
// editing estimate documents through a sync session, resolving save
// conflicts and watching collaborators live.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/estisync/internal/client/iocli"
	"github.com/iudanet/estisync/internal/config"
	"github.com/iudanet/estisync/internal/logging"
	"github.com/iudanet/estisync/internal/tracing"
)

// BuildInfo версия клиента, задается через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// globalFlags флаги, общие для всех команд
type globalFlags struct {
	configFile  string
	serverURL   string
	actorID     string
	cachePath   string
	strategy    string
	noCache     bool
	verbose     bool
	pessimistic bool
}

// app состояние одного запуска клиента
type app struct {
	cfg    *config.Config
	io     iocli.IO
	logger *slog.Logger
	tracer *tracing.Provider
	info   BuildInfo
	flags  globalFlags
}

// NewRootCmd создает корневую команду клиента
func NewRootCmd(info BuildInfo) *cobra.Command {
	a := &app{info: info}

	rootCmd := &cobra.Command{
		Use:   "estisync",
		Short: "Estisync - collaborative estimate editing client",
		Long: `Estisync edits estimate documents shared with other collaborators.

Every edit is applied optimistically, saved against the revision it was
based on and, if someone else saved first, reconciled field by field.
Unsaved edits survive restarts in a local cache.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.io = iocli.NewStdio(cmd.InOrStdin(), cmd.OutOrStdout())
			// version и help работают без конфигурации
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.flags.configFile, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().StringVarP(&a.flags.serverURL, "server", "s", "", "server URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&a.flags.actorID, "actor", "a", "", "actor id used for edits and presence (default: OS user name)")
	rootCmd.PersistentFlags().StringVar(&a.flags.cachePath, "cache", "", "local cache file for drafts and audit notes (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&a.flags.noCache, "no-cache", false, "do not use the local cache")
	rootCmd.PersistentFlags().StringVar(&a.flags.strategy, "strategy", "",
		"resolve save conflicts automatically: overwrite-server, overwrite-local or merge")
	rootCmd.PersistentFlags().BoolVar(&a.flags.pessimistic, "pessimistic", false,
		"send edits to the server before applying them locally; a conflict leaves the document unchanged")
	rootCmd.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newGetCmd(a))
	rootCmd.AddCommand(newSetCmd(a))
	rootCmd.AddCommand(newUnsetCmd(a))
	rootCmd.AddCommand(newDeleteCmd(a))
	rootCmd.AddCommand(newSyncCmd(a))
	rootCmd.AddCommand(newStatusCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newAuditCmd(a))

	return rootCmd
}

// init загружает конфигурацию и применяет флаги поверх нее
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if a.flags.serverURL != "" {
		cfg.Client.ServerURL = a.flags.serverURL
	}
	if a.flags.actorID != "" {
		cfg.Client.ActorID = a.flags.actorID
	}
	if a.flags.cachePath != "" {
		cfg.Client.CachePath = a.flags.cachePath
	}
	if a.flags.noCache {
		cfg.Client.CachePath = ""
	}
	if a.flags.strategy != "" {
		cfg.Client.DefaultStrategy = a.flags.strategy
	}
	if a.flags.verbose {
		cfg.Logging.Level = "debug"
	}
	if cfg.Client.ActorID == "" {
		u, err := user.Current()
		if err != nil || u.Username == "" {
			return errors.New("actor id is required: use --actor or ESTISYNC_ACTOR")
		}
		cfg.Client.ActorID = u.Username
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	tp, err := tracing.New(cmd.Context(), cfg.Tracing, a.info.Version)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.tracer = tp
	return nil
}

func (a *app) shutdown() error {
	if a.tracer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("Failed to flush traces", "error", err)
	}
	return nil
}
