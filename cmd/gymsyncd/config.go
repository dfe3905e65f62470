// Copyright 2026 the gymsync authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds everything the daemon needs to run.
type Config struct {
	DBPath     string
	RemoteDSN  string
	AccessCode string

	SyncInterval  time.Duration
	ProbeInterval time.Duration
	SweepInterval time.Duration

	LogFile  string // empty means stderr only
	LogLevel string
}

// loadConfig layers defaults, an optional config file, .env and
// environment variables (GYMSYNC_ prefix).
func loadConfig(cfgFile string) (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("db_path", "gymsync.db")
	v.SetDefault("remote_dsn", "")
	v.SetDefault("access_code", "")
	v.SetDefault("sync_interval", "30s")
	v.SetDefault("probe_interval", "15s")
	v.SetDefault("sweep_interval", "10m")
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("GYMSYNC")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("gymsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		// A missing default config file is fine.
		_ = v.ReadInConfig()
	}

	return &Config{
		DBPath:        v.GetString("db_path"),
		RemoteDSN:     v.GetString("remote_dsn"),
		AccessCode:    v.GetString("access_code"),
		SyncInterval:  v.GetDuration("sync_interval"),
		ProbeInterval: v.GetDuration("probe_interval"),
		SweepInterval: v.GetDuration("sweep_interval"),
		LogFile:       v.GetString("log_file"),
		LogLevel:      v.GetString("log_level"),
	}, nil
}

// newLogger builds the process logger, tee-ing to a rotated file when
// configured.
func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		})
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
