// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/boxarr/boxarr/internal/api"
	"github.com/boxarr/boxarr/internal/automation"
	"github.com/boxarr/boxarr/internal/buildinfo"
	"github.com/boxarr/boxarr/internal/config"
	"github.com/boxarr/boxarr/internal/database"
	"github.com/boxarr/boxarr/internal/metrics"
	"github.com/boxarr/boxarr/internal/models"
	"github.com/boxarr/boxarr/internal/torbox"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "boxarr",
		Short: "Automation engine for TorBox downloads",
		Long: `boxarr - A self-hosted automation layer for TorBox that records
torrent state history and applies per-user rules to seeding and queued items.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())
	rootCmd.AddCommand(RunCreateUserCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		logPath   string
		pprofFlag bool
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/boxarr/ or %APPDATA%\\boxarr\\). For backward compatibility, can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for database and other files (default is next to config file)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")
	command.Flags().BoolVar(&pprofFlag, "pprof", false, "enable pprof server on :6060")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, dataDir, logPath, pprofFlag)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of boxarr",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/boxarr/config.toml
- Windows: %APPDATA%\boxarr\config.toml

You can specify either a directory path or a direct file path:
- Directory: boxarr generate-config --config-dir /path/to/config/
- File: boxarr generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				defaultDir := config.GetDefaultConfigDir()
				configPath = filepath.Join(defaultDir, "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

func RunCreateUserCommand() *cobra.Command {
	var configDir, dataDir, name, apiKey string

	command := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user with a TorBox API key",
		Long: `Create a user without starting the server.

Each user is processed independently by the automation engine using the
TorBox API key stored for them. The key is encrypted with the session
secret before it is written to the database.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/boxarr/config.toml
- Windows: %APPDATA%\boxarr\config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configDir, buildinfo.Version)
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			if dataDir != "" {
				cfg.SetDataDir(dataDir)
			}

			db, err := database.New(cfg.GetDatabasePath())
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			if name == "" {
				fmt.Print("Enter user name: ")
				if _, err := fmt.Scanln(&name); err != nil {
					return fmt.Errorf("failed to read user name: %w", err)
				}
			}
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("user name cannot be empty")
			}

			if apiKey == "" {
				fmt.Print("Enter TorBox API key: ")
				if _, err := fmt.Scanln(&apiKey); err != nil {
					return fmt.Errorf("failed to read API key: %w", err)
				}
			}
			if strings.TrimSpace(apiKey) == "" {
				return fmt.Errorf("API key cannot be empty")
			}

			userStore, err := models.NewUserStore(db, cfg.GetEncryptionKey())
			if err != nil {
				return fmt.Errorf("failed to initialize user store: %w", err)
			}

			user, err := userStore.Create(context.Background(), name, strings.TrimSpace(apiKey))
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			cmd.Printf("User '%s' created successfully with ID: %d\n", user.Name, user.ID)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVar(&dataDir, "data-dir", "",
		"data directory path (defaults to next to config file)")
	command.Flags().StringVar(&name, "name", "",
		"name for the new user")
	command.Flags().StringVar(&apiKey, "api-key", "",
		"TorBox API key for the new user (will prompt if not provided)")

	return command
}

type Application struct {
	configDir string
	dataDir   string
	logPath   string
	pprofFlag bool
}

func NewApplication(configDir, dataDir, logPath string, pprofFlag bool) *Application {
	return &Application{
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
		pprofFlag: pprofFlag,
	}
}

func (app *Application) runServer() {
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided
	if app.dataDir != "" {
		os.Setenv("BOXARR__DATA_DIR", app.dataDir)
		cfg.SetDataDir(app.dataDir)
	}
	if app.logPath != "" {
		os.Setenv("BOXARR__LOG_PATH", app.logPath)
		cfg.Config.LogPath = app.logPath
	}

	if app.pprofFlag {
		cfg.Config.PprofEnabled = true
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting boxarr")

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	userStore, err := models.NewUserStore(db, cfg.GetEncryptionKey())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize user store")
	}
	ruleStore := models.NewRuleStore(db)
	snapshotStore := models.NewSnapshotStore(db)
	executionStore := models.NewExecutionStore(db)

	clientFactory := torbox.NewFactory(torbox.FactoryConfig{
		BaseURL:    cfg.Config.TorboxBaseURL,
		APIVersion: cfg.Config.TorboxAPIVersion,
		Timeout:    time.Duration(cfg.Config.TorboxTimeout) * time.Second,
	}, userStore)

	var collector *metrics.Collector
	if cfg.Config.MetricsEnabled {
		collector = metrics.NewCollector()
	}

	automationService := automation.NewService(
		automation.Config{
			Interval:      time.Duration(cfg.Config.AutomationInterval) * time.Minute,
			UserBatchSize: cfg.Config.AutomationBatchSize,
			RetentionDays: cfg.Config.SnapshotRetentionDays,
		},
		userStore,
		ruleStore,
		snapshotStore,
		executionStore,
		automation.ClientFactoryFunc(func(ctx context.Context, userID int64) (automation.RemoteClient, error) {
			return clientFactory.ClientFor(ctx, userID)
		}),
		collector,
	)

	automationCtx, automationCancel := context.WithCancel(context.Background())
	defer automationCancel()

	httpServer := api.NewServer(&api.Dependencies{
		Config:         cfg,
		UserStore:      userStore,
		RuleStore:      ruleStore,
		ExecutionStore: executionStore,
		Automation:     automationService,
	})

	errorChannel := make(chan error)
	serverReady := make(chan struct{}, 1)
	go func() {
		if err := httpServer.ListenAndServeReady(serverReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	select {
	case <-serverReady:
		automationService.Start(automationCtx)
	case err := <-errorChannel:
		log.Fatal().Err(err).Msg("failed to start HTTP server")
	}

	if cfg.Config.MetricsEnabled {
		go func() {
			metricsServer := metrics.NewServer(collector, cfg.Config.MetricsHost, cfg.Config.MetricsPort)
			errorChannel <- metricsServer.ListenAndServe()
		}()
	}

	if cfg.Config.PprofEnabled {
		go func() {
			log.Info().Msg("Starting pprof server on :6060")
			log.Info().Msg("Access profiling at: http://localhost:6060/debug/pprof/")
			if err := http.ListenAndServe(":6060", nil); err != nil {
				log.Error().Err(err).Msg("Profiling server failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case err := <-errorChannel:
		log.Error().Err(err).Msg("got unexpected error from server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")

		os.Exit(1)
	}

	os.Exit(0)
}
