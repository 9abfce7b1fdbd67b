package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/cache"
	"github.com/aman-jaglan/CI-Code-Companion-sub001/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all persisted analysis results",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.CachePath == "" {
			fmt.Println("No persistent cache configured; nothing to clear.")
			return nil
		}

		store, err := cache.NewSQLiteStore(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("opening cache store: %w", err)
		}
		defer store.Close()

		entries, err := store.Load(context.Background())
		if err != nil {
			return fmt.Errorf("loading cache entries: %w", err)
		}
		for key := range entries {
			if err := store.Delete(context.Background(), key); err != nil {
				return fmt.Errorf("deleting cache entry: %w", err)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Cleared %d cached results\n", green("✓"), len(entries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
