package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recallkit/recall/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin.",
		Run:   runAdd,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner (required)")
	cmd.Flags().StringP("project", "p", "", "Project")
	cmd.Flags().String("dir", "", "Directory")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().String("category", "", "Search-weighting category")
	cmd.Flags().String("meta", "", "JSON metadata")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	project, _ := cmd.Flags().GetString("project")
	dir, _ := cmd.Flags().GetString("dir")
	tagsStr, _ := cmd.Flags().GetString("tags")
	category, _ := cmd.Flags().GetString("category")
	meta, _ := cmd.Flags().GetString("meta")

	// Content: positional arg first, then check stdin
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}

	if strings.TrimSpace(content) == "" {
		exitErr("add", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	metadata := map[string]any{}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			exitErr("parse meta", err)
		}
	}
	if category != "" {
		metadata["category"] = category
	}

	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	mem, err := e.Create(cmd.Context(), store.CreateParams{
		Content:   strings.TrimSpace(content),
		Owner:     owner,
		Project:   project,
		Directory: dir,
		Tags:      splitTags(tagsStr),
		Metadata:  metadata,
	})
	if err != nil {
		exitErr("add", err)
	}

	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
