package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chartrisk/internal/cache"
	"github.com/ppiankov/chartrisk/internal/model"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the collaborator response cache",
	Long: `Manage cached narratives and embeddings stored under cache.dir.

Without cache.dir the cache lives in memory only and there is nothing to manage.`,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		disk, ok := diskCache(cmd, cfg)
		if !ok {
			return nil
		}
		removed, err := disk.Prune()
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d expired entries from %s\n", removed, cfg.Cache.Dir)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		disk, ok := diskCache(cmd, cfg)
		if !ok {
			return nil
		}
		if err := disk.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %s\n", cfg.Cache.Dir)
		return nil
	},
}

func diskCache(cmd *cobra.Command, cfg *model.Config) (*cache.DiskCache, bool) {
	if cfg.Cache.Dir == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No cache.dir configured; the cache is memory only")
		return nil, false
	}
	return cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.TTL), true
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
