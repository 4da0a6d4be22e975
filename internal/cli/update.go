package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallkit/recall/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update fields of a memory",
		Long:  "Partially update a memory. Only the flags you pass are changed.",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().StringP("content", "c", "", "Replacement content")
	cmd.Flags().StringP("project", "p", "", "Replacement project")
	cmd.Flags().String("dir", "", "Replacement directory")
	cmd.Flags().StringP("tags", "t", "", "Replacement tags (comma-separated)")
	cmd.Flags().String("meta", "", "Replacement JSON metadata")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	var p engine.UpdateParams

	if cmd.Flags().Changed("content") {
		v, _ := cmd.Flags().GetString("content")
		p.Content = &v
	}
	if cmd.Flags().Changed("project") {
		v, _ := cmd.Flags().GetString("project")
		p.Project = &v
	}
	if cmd.Flags().Changed("dir") {
		v, _ := cmd.Flags().GetString("dir")
		p.Directory = &v
	}
	if cmd.Flags().Changed("tags") {
		v, _ := cmd.Flags().GetString("tags")
		tags := splitTags(v)
		if tags == nil {
			tags = []string{}
		}
		p.Tags = tags
	}
	if cmd.Flags().Changed("meta") {
		v, _ := cmd.Flags().GetString("meta")
		meta := map[string]any{}
		if err := json.Unmarshal([]byte(v), &meta); err != nil {
			exitErr("parse meta", err)
		}
		p.Metadata = meta
	}

	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	mem, err := e.Update(cmd.Context(), args[0], p)
	if err != nil {
		exitErr("update", err)
	}

	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}
