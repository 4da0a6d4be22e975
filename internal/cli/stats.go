package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show engine statistics",
		Long:  "Show per-operation latency aggregates, cache hit rates, and database statistics.",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	dbStats, err := e.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	out := map[string]any{
		"performance": e.PerformanceStats(),
		"cache":       e.CacheStats(),
		"database":    dbStats,
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
