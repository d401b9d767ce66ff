package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/personacore/persona-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember [content]",
		Short: "Store a new memory",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRemember,
	}

	cmd.Flags().StringP("type", "t", "semantic", "Memory type: episodic, semantic, relational, procedural")
	cmd.Flags().Float64P("salience", "s", 0.5, "Initial salience (0-1)")
	cmd.Flags().String("state", "warm", "Lifecycle state: hot, warm, cold, archive, scar")
	cmd.Flags().String("origin", "user", "Origin role: user, assistant, system")
	cmd.Flags().Float64("credibility", 0.5, "Credibility score (0-1)")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")
	salience, _ := cmd.Flags().GetFloat64("salience")
	state, _ := cmd.Flags().GetString("state")
	origin, _ := cmd.Flags().GetString("origin")
	credibility, _ := cmd.Flags().GetFloat64("credibility")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := s.Remember(cmd.Context(), store.RememberParams{
		Type:        typ,
		Content:     strings.Join(args, " "),
		Salience:    salience,
		State:       state,
		OriginRole:  origin,
		Credibility: credibility,
	})
	if err != nil {
		exitErr("remember", err)
	}

	b, _ := json.MarshalIndent(m, "", "  ")
	fmt.Println(string(b))
}
