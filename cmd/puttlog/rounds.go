package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kwatson/puttlog/internal/store"
	"github.com/kwatson/puttlog/internal/ui"
)

var roundsCmd = &cobra.Command{
	Use:     "rounds",
	GroupID: "data",
	Short:   "List and manage recorded rounds",
}

var roundsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rounds, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		rounds, err := s.GetRounds(ctx)
		if err != nil {
			return err
		}
		if len(rounds) == 0 {
			fmt.Println(ui.RenderDim("No rounds recorded yet."))
			return nil
		}

		fmt.Printf("\n%s\n", ui.RenderHeader(fmt.Sprintf("%d rounds", len(rounds))))
		for _, r := range rounds {
			marker := ui.RenderPass("synced")
			if r.Dirty {
				marker = ui.RenderWarn("pending")
			}
			fmt.Printf("  %s  %-20s %2d holes %3d putts  [%s]  %s\n",
				r.Date.Local().Format("2006-01-02"),
				r.Course,
				r.HolesPlayed,
				r.TotalPutts,
				marker,
				ui.RenderDim(r.ID),
			)
		}
		fmt.Println()
		return nil
	},
}

var roundsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show make-rate by distance bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.Stats(ctx)
		if err != nil {
			return err
		}
		if stats.TotalPutts == 0 {
			fmt.Println(ui.RenderDim("No putts recorded yet."))
			return nil
		}

		fmt.Printf("\n%s\n", ui.RenderHeader("Putting by distance"))
		for _, b := range stats.Buckets {
			if b.Attempts == 0 {
				continue
			}
			fmt.Printf("  %-6s %4d/%-4d  %s\n",
				b.Label, b.Made, b.Attempts,
				ui.RenderAccent(fmt.Sprintf("%.0f%%", b.MakeRate()*100)))
		}
		fmt.Printf("\n  Total: %d putts, %d made\n\n", stats.TotalPutts, stats.TotalMade)
		return nil
	},
}

var roundsDeleteCmd = &cobra.Command{
	Use:   "delete <round-id>",
	Short: "Delete a round and everything under it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.DeleteRound(ctx, args[0]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no round with id %s", args[0])
			}
			return err
		}
		fmt.Printf("%s Round deleted\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	roundsCmd.AddCommand(roundsListCmd, roundsStatsCmd, roundsDeleteCmd)
	rootCmd.AddCommand(roundsCmd)
}
