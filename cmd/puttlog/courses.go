package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kwatson/puttlog/internal/schema"
	"github.com/kwatson/puttlog/internal/store"
	"github.com/kwatson/puttlog/internal/ui"
)

var coursesCmd = &cobra.Command{
	Use:     "courses",
	GroupID: "data",
	Short:   "Manage course definitions",
}

var coursesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List courses alphabetically",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		courses, err := s.GetCourses(ctx)
		if err != nil {
			return err
		}
		if len(courses) == 0 {
			fmt.Println(ui.RenderDim("No courses defined yet."))
			return nil
		}

		fmt.Printf("\n%s\n", ui.RenderHeader(fmt.Sprintf("%d courses", len(courses))))
		for _, c := range courses {
			marker := ui.RenderPass("synced")
			if c.Dirty {
				marker = ui.RenderWarn("pending")
			}
			fmt.Printf("  %-24s %2d holes  [%s]  %s\n",
				c.Name, len(c.Holes), marker, ui.RenderDim(c.ID))
		}
		fmt.Println()
		return nil
	},
}

var coursesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a course, optionally from a holes JSON file",
	Long: `Add a course definition. With --holes, read the hole list from a
JSON file: an array of {"number": 1, "par": 4, "distance": 310}.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		var holes []schema.CourseHole
		if path, _ := cmd.Flags().GetString("holes"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read holes file: %w", err)
			}
			if err := json.Unmarshal(data, &holes); err != nil {
				return fmt.Errorf("failed to parse holes file: %w", err)
			}
		}

		id, err := s.SaveCourse(ctx, args[0], holes, nil)
		if err != nil {
			return err
		}
		fmt.Printf("%s Course %s added (%s)\n", ui.RenderPass("✓"), ui.RenderAccent(args[0]), ui.RenderDim(id))
		return nil
	},
}

var coursesRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename a course",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		c, err := s.GetCourseByName(ctx, args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no course named %q", args[0])
			}
			return err
		}

		newName := args[1]
		if err := s.UpdateCourse(ctx, c.ID, store.CourseUpdate{Name: &newName}); err != nil {
			return err
		}
		fmt.Printf("%s Renamed %s to %s\n", ui.RenderPass("✓"), args[0], ui.RenderAccent(newName))
		return nil
	},
}

var coursesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a course definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		c, err := s.GetCourseByName(ctx, args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no course named %q", args[0])
			}
			return err
		}
		if err := s.DeleteCourse(ctx, c.ID); err != nil {
			return err
		}
		fmt.Printf("%s Course deleted\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	coursesAddCmd.Flags().String("holes", "", "JSON file describing the holes")
	coursesCmd.AddCommand(coursesListCmd, coursesAddCmd, coursesRenameCmd, coursesDeleteCmd)
	rootCmd.AddCommand(coursesCmd)
}
