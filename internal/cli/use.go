package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "use [id]",
		Short: "Record a use of a memory",
		Long:  "Increment a memory's use count and refresh its last-used timestamp.",
		Args:  cobra.ExactArgs(1),
		Run:   runUse,
	}

	RootCmd.AddCommand(cmd)
}

func runUse(cmd *cobra.Command, args []string) {
	e, err := openEngine(cmd)
	if err != nil {
		exitErr("open engine", err)
	}
	defer e.Close()

	mem, err := e.IncrementUse(cmd.Context(), args[0])
	if err != nil {
		exitErr("use", err)
	}

	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}
