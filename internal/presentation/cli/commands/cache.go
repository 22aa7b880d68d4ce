package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/presentation/cli/output"
)

// NewCacheCmd creates the cache command.
func NewCacheCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or empty the persistent page cache",
		Long: `Fetched pages are cached when fetch.cache.enabled is set. With
fetch.cache.path they persist between runs in a SQLite database; these
commands operate on that database, or on the file given with --db.`,
	}
	cmd.PersistentFlags().StringVar(&path, "db", "", "cache database path")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show entry count and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPageCache(path, func(c ports.PageCachePort) error {
				s, err := c.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return GetFormatter().Render(s, cacheStatsTable(s))
			})
		},
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Remove expired pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPageCache(path, func(c ports.PageCachePort) error {
				n, err := c.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				return GetFormatter().Success("removed %d expired pages", n)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPageCache(path, func(c ports.PageCachePort) error {
				if err := c.Clear(cmd.Context()); err != nil {
					return err
				}
				return GetFormatter().Success("page cache cleared")
			})
		},
	}

	cmd.AddCommand(stats, prune, clearCmd)
	return cmd
}

func withPageCache(path string, fn func(ports.PageCachePort) error) error {
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}
	c, err := container.OpenPageCache(path)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func cacheStatsTable(s *ports.CacheStats) output.TableData {
	return output.TableData{
		Columns: []output.TableColumn{
			{Header: "ENTRIES", Align: output.AlignRight},
			{Header: "SIZE", Align: output.AlignRight},
		},
		Rows: [][]string{{strconv.FormatInt(s.Entries, 10), formatBytes(s.SizeBytes)}},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
