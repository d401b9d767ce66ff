package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "forget [id]",
		Short: "Soft-delete a memory",
		Long:  "Marks a memory as deleted. It stays on disk but becomes unreachable from every retrieval channel.",
		Args:  cobra.ExactArgs(1),
		Run:   runForget,
	}

	RootCmd.AddCommand(cmd)
}

func runForget(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.Forget(cmd.Context(), args[0]); err != nil {
		exitErr("forget", err)
	}
	fmt.Printf("forgotten: %s\n", args[0])
}
