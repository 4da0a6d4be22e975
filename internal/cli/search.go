package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recallkit/recall/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories",
		Long:  "Fuzzy-search the hot working set, or full-text search the whole store with --exact.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().Bool("exact", false, "Full-text search against the durable store instead of fuzzy matching")
	cmd.Flags().StringP("owner", "o", "", "Filter by owner")
	cmd.Flags().StringP("project", "p", "", "Filter by project")
	cmd.Flags().String("dir", "", "Filter by directory")
	cmd.Flags().StringP("tags", "t", "", "Filter by tags, any-of (comma-separated)")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default 50)")
	cmd.Flags().Bool("include-archived", false, "Include archived memories")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	exact, _ := cmd.Flags().GetBool("exact")
	owner, _ := cmd.Flags().GetString("owner")
	project, _ := cmd.Flags().GetString("project")
	dir, _ := cmd.Flags().GetString("dir")
	tagsStr, _ := cmd.Flags().GetString("tags")
	limit, _ := cmd.Flags().GetInt("limit")
	includeArchived, _ := cmd.Flags().GetBool("include-archived")
	query := strings.Join(args, " ")

	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	results, err := e.Search(cmd.Context(), query, engine.SearchOptions{
		Exact:           exact,
		Owner:           owner,
		Project:         project,
		Directory:       dir,
		Tags:            splitTags(tagsStr),
		Limit:           limit,
		IncludeArchived: includeArchived,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
