// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

// gymsyncd runs the gym-management sync core as a daemon and offers
// maintenance commands around the same local database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gymdesk/gymsync/gymstore"
	"github.com/gymdesk/gymsync/localstore"
	"github.com/gymdesk/gymsync/remotepg"
	"github.com/gymdesk/gymsync/syncer"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gymsyncd",
	Short: "Offline-first gym data store with background sync",
	Long: `gymsyncd keeps the gym-management data (members, courses, diet plans,
inventory, sales) in a local SQLite database and synchronizes it in the
background with a hosted Postgres backend, tolerating intermittent
connectivity.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env.tracker.Start(ctx)
		env.manager.Start(ctx)
		env.logger.Info("gymsyncd running",
			"db", env.cfg.DBPath, "sync_interval", env.cfg.SyncInterval.String())

		<-ctx.Done()
		env.logger.Info("shutting down")
		env.manager.Stop()
		env.service.Close()
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current sync status as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()

		st, err := env.service.SyncStatus(cmd.Context())
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the default course and diet-plan catalogs",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()
		return env.local.SeedCatalogs(cmd.Context())
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export all local data to a backup file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()

		backup, err := env.service.ExportAllData(cmd.Context())
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(backup, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(args[0], data, 0o644)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all local data with a backup file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := env.service.ImportAllData(cmd.Context(), data); err != nil {
			return err
		}
		env.service.Close()
		return nil
	},
}

// env bundles the wired components for one command invocation.
type env struct {
	cfg     *Config
	logger  *slog.Logger
	local   *localstore.Store
	remote  *remotepg.Client
	tracker *syncer.Tracker
	queue   *syncer.Queue
	manager *syncer.Manager
	service *gymstore.Service
}

func (e *env) close() {
	e.remote.Close()
	if err := e.local.Close(); err != nil {
		e.logger.Warn("close local store failed", "error", err)
	}
}

func bootstrap(ctx context.Context) (*env, error) {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger := newLogger(cfg)

	local, err := localstore.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	remote, err := remotepg.Connect(ctx, cfg.RemoteDSN, logger)
	if err != nil {
		local.Close()
		return nil, err
	}

	tracker := syncer.NewTracker(remote.Probe, cfg.ProbeInterval, logger)
	queue := syncer.NewQueue(local, syncer.DefaultRetryPolicy(), tracker.Online, logger)
	manager := syncer.NewManager(local, remote, queue, tracker, syncer.Config{
		SyncInterval:  cfg.SyncInterval,
		SweepInterval: cfg.SweepInterval,
	}, logger)
	service := gymstore.New(local, manager, queue, tracker, cfg.AccessCode, logger)

	return &env{
		cfg:     cfg,
		logger:  logger,
		local:   local,
		remote:  remote,
		tracker: tracker,
		queue:   queue,
		manager: manager,
		service: service,
	}, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./gymsync.yaml)")
	rootCmd.AddCommand(runCmd, statusCmd, seedCmd, exportCmd, importCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
