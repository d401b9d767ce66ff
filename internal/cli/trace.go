package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "trace [trace-id]",
		Short: "Show the audit record of a past recall call",
		Args:  cobra.ExactArgs(1),
		Run:   runTrace,
	}

	RootCmd.AddCommand(cmd)
}

func runTrace(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	trace, err := s.GetTraceByID(cmd.Context(), args[0])
	if err != nil {
		exitErr("trace", err)
	}

	b, _ := json.MarshalIndent(trace, "", "  ")
	fmt.Println(string(b))
}
