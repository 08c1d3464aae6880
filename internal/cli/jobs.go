package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewChallengeCmd groups daily challenge maintenance.
func NewChallengeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Manage daily challenges",
	}

	var notify bool
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create today's challenge if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer deps.Close()
			c, created, err := deps.service.GenerateToday(cmd.Context(), notify)
			if err != nil {
				return err
			}
			state := "exists"
			if created {
				state = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (topic %s)\n", c.ID, state, c.GlobalChallenge.Topic)
			return nil
		},
	}
	generate.Flags().BoolVar(&notify, "notify", false, "send new_challenge notifications when created")
	cmd.AddCommand(generate)
	return cmd
}

// NewLeaderboardCmd groups ranking maintenance.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Manage leaderboards",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rerank",
		Short: "Recompute ranks of every current period",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer deps.Close()
			counts, err := deps.service.Rerank(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d ranked\n", k, counts[k])
			}
			return nil
		},
	})
	return cmd
}
