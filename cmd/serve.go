package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fluxgraph.dev/flux/internal/config"
	"fluxgraph.dev/flux/internal/log"
	"fluxgraph.dev/flux/internal/manager"
	"fluxgraph.dev/flux/internal/pipeline"
)

var pipelineConfigFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the flux daemon in the foreground",
	Long: `Loads the daemon's GlobalConfig, initializes logging, and constructs a
pipeline manager.Manager. If --pipeline is given, its config is created,
warmed up, and started immediately. Blocks until SIGTERM/SIGINT, then stops
and deletes every pipeline it started.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&pipelineConfigFile, "pipeline", "",
		"optional pipeline config JSON to create, warmup, and start at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	globalConfig, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}

	if err := log.Init(globalConfig.Log); err != nil {
		return fmt.Errorf("serve: init log: %w", err)
	}

	slog.Info("flux daemon starting", "config", configFile, "base_folder", globalConfig.BaseFolder)

	m := manager.New(globalConfig.BaseFolder)

	var startedID string
	if pipelineConfigFile != "" {
		raw, err := os.ReadFile(pipelineConfigFile)
		if err != nil {
			return fmt.Errorf("serve: read pipeline config: %w", err)
		}
		var cfg pipeline.Config
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("serve: parse pipeline config: %w", err)
		}

		created := m.Create(cfg)
		startedID = created.ID
		slog.Info("pipeline created", "id", startedID)

		if res := m.Warmup(startedID); res.Status != "OK" {
			return fmt.Errorf("serve: warmup pipeline: %s", res.Reason)
		}
		if res := m.Start(startedID); res.Status != "OK" {
			return fmt.Errorf("serve: start pipeline: %s", res.Reason)
		}
		slog.Info("pipeline started", "id", startedID)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	slog.Info("daemon ready, waiting for shutdown signal")
	sig := <-sigCh
	slog.Info("received shutdown signal", "signal", sig)

	if startedID != "" {
		if res := m.Stop(startedID); res.Status != "OK" {
			slog.Error("stop pipeline failed", "id", startedID, "reason", res.Reason)
		}
		if res := m.Delete(startedID, false); res.Status != "OK" {
			slog.Error("delete pipeline failed", "id", startedID, "reason", res.Reason)
		}
	}

	slog.Info("flux daemon stopped")
	return nil
}
