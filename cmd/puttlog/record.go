package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kwatson/puttlog/internal/schema"
	"github.com/kwatson/puttlog/internal/store"
	"github.com/kwatson/puttlog/internal/ui"
)

var roundsRecordCmd = &cobra.Command{
	Use:   "record <putts-file>",
	Short: "Record a finished round from a putts JSON file",
	Long: `Record a round. The putts file is a JSON array of attempts:

  [{"hole_number": 1, "distance": 3.0, "made": false},
   {"hole_number": 1, "distance": 0.5, "made": true}]

Attempts without a hole number are dropped. The round is written locally
and marked for upload on the next sync.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		attempts, err := readAttempts(args[0])
		if err != nil {
			return err
		}

		course, _ := cmd.Flags().GetString("course")
		date := time.Now().UTC()
		if d, _ := cmd.Flags().GetString("date"); d != "" {
			date, err = time.Parse("2006-01-02", d)
			if err != nil {
				return fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", d, err)
			}
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := s.SaveRound(ctx, course, date, attempts, nil)
		if err != nil {
			return err
		}

		r, err := s.GetRound(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s Round recorded: %d holes, %d putts (%s)\n",
			ui.RenderPass("✓"), r.HolesPlayed, r.TotalPutts, ui.RenderDim(id))
		return nil
	},
}

var roundsEditCmd = &cobra.Command{
	Use:   "edit <round-id> <putts-file>",
	Short: "Replace a round's putts from a JSON file",
	Long: `Replace every hole and putt under a round with the contents of the
putts file. An empty array clears the round. The previous putts are
discarded, not merged.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		attempts, err := readAttempts(args[1])
		if err != nil {
			return err
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.UpdateRound(ctx, args[0], attempts, nil); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no round with id %s", args[0])
			}
			return err
		}

		r, err := s.GetRound(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s Round updated: %d holes, %d putts\n",
			ui.RenderPass("✓"), r.HolesPlayed, r.TotalPutts)
		return nil
	},
}

func readAttempts(path string) ([]schema.Attempt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read putts file: %w", err)
	}
	var attempts []schema.Attempt
	if err := json.Unmarshal(data, &attempts); err != nil {
		return nil, fmt.Errorf("failed to parse putts file: %w", err)
	}
	return attempts, nil
}

func init() {
	roundsRecordCmd.Flags().String("course", "", "course name")
	roundsRecordCmd.Flags().String("date", "", "session date (YYYY-MM-DD, default today)")
	roundsCmd.AddCommand(roundsRecordCmd, roundsEditCmd)
}
