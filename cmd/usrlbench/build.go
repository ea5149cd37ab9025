package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vedarsh/usrl-core/internal/config"
	"github.com/vedarsh/usrl-core/internal/region"
)

var buildConfigPath string

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Create a region on disk from a YAML bus config",
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildConfigPath, "config", "c", "", "path to the bus YAML config (required)")
	buildCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(buildConfigPath)
	if err != nil {
		return fmt.Errorf("usrlbench build: %w", err)
	}

	topics, err := cfg.RegionTopics()
	if err != nil {
		return fmt.Errorf("usrlbench build: %w", err)
	}

	r, err := region.Build(cfg.Path, cfg.SizeBytes, topics)
	if err != nil {
		if region.IsKind(err, region.KindAlreadyExists) {
			log.Infow("region already exists, leaving it untouched", "path", cfg.Path)
			return nil
		}
		return fmt.Errorf("usrlbench build: %w", err)
	}
	defer r.Close()

	log.Infow("region built", "path", cfg.Path, "topics", len(topics))
	for _, t := range r.Topics() {
		log.Infow("topic configured", "name", t.Name, "slot_count", t.SlotCount, "type", t.Type)
	}
	return nil
}
