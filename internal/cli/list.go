package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallkit/recall/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories",
		Long:  "List memories ordered by recency (default), creation time, or popularity.",
		Run:   runList,
	}

	cmd.Flags().StringP("sort", "s", "recent", "Ordering: recent, all, or popular")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	sortBy, _ := cmd.Flags().GetString("sort")
	limit, _ := cmd.Flags().GetInt("limit")

	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	var memories []model.Memory
	switch sortBy {
	case "recent":
		memories, err = e.ListRecent(cmd.Context(), limit)
	case "all":
		memories, err = e.ListAll(cmd.Context(), limit)
	case "popular":
		memories, err = e.ListPopular(cmd.Context(), limit)
	default:
		exitErr("list", fmt.Errorf("unknown sort %q (use recent, all, or popular)", sortBy))
	}
	if err != nil {
		exitErr("list", err)
	}

	if len(memories) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
