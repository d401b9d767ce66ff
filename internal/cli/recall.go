package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/personacore/persona-memory/internal/recall"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Recall budgeted memories for a query",
		Long:  "Run the full recall pipeline: retrieve, score, de-duplicate, select under budget, record a trace, and reinforce the selected memories.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecall,
	}

	cmd.Flags().Int("max-items", 0, "Override injected item budget")
	cmd.Flags().Int("max-chars", 0, "Override injected character budget")
	cmd.Flags().Bool("trace", false, "Print the full trace instead of the rendered memories")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	maxItems, _ := cmd.Flags().GetInt("max-items")
	maxChars, _ := cmd.Flags().GetInt("max-chars")
	showTrace, _ := cmd.Flags().GetBool("trace")
	query := strings.Join(args, " ")

	s, engine, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	var overrides *recall.Budgets
	if maxItems > 0 || maxChars > 0 {
		overrides = &recall.Budgets{InjectMax: maxItems, InjectCharMax: maxChars}
	}

	result, err := engine.RecallWithTrace(cmd.Context(), query, overrides)
	if err != nil {
		exitErr("recall", err)
	}

	if showTrace {
		b, _ := json.MarshalIndent(result.Trace, "", "  ")
		fmt.Println(string(b))
		return
	}
	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))
}
