package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/kwatson/puttlog/internal/identity"
	"github.com/kwatson/puttlog/internal/ui"
)

var identityCmd = &cobra.Command{
	Use:     "identity",
	GroupID: "data",
	Short:   "Manage the local user identity",
}

var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current user identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := identity.New(identityPath())
		id, isNew, err := provider.GetOrCreate()
		if err != nil {
			return err
		}
		if isNew {
			fmt.Printf("%s Created new identity\n", ui.RenderPass("✓"))
		}
		fmt.Printf("User: %s\n", ui.RenderAccent(id))
		return nil
	},
}

var identityExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the recovery code for this identity",
	Long: `Print the recovery code that moves your data to another device.
Run "puttlog identity import" there with this code, then sync.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := identity.New(identityPath())
		if _, _, err := provider.GetOrCreate(); err != nil {
			return err
		}
		code, err := provider.ExportRecoveryCode()
		if err != nil {
			return err
		}
		fmt.Printf("Recovery code: %s\n", ui.RenderAccent(code))
		fmt.Println(ui.RenderDim("Keep this private. Anyone holding it can sync down your data."))
		return nil
	},
}

var identityImportCmd = &cobra.Command{
	Use:   "import <recovery-code>",
	Short: "Replace the local identity with a recovery code",
	Long: `Replace the local identity with one exported from another device.

Local data recorded under the old identity becomes invisible afterwards,
since every query is scoped to the current user. The next sync pulls the
imported identity's data down from the cloud. Pass --wipe to clear the
local tables first instead of leaving the old rows orphaned.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		code := args[0]
		wipe, _ := cmd.Flags().GetBool("wipe")
		yes, _ := cmd.Flags().GetBool("yes")

		if !yes {
			var confirmed bool
			prompt := huh.NewConfirm().
				Title("Replace local identity?").
				Description("Data recorded under the current identity will no longer be visible.").
				Value(&confirmed)
			if err := prompt.Run(); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if wipe {
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			if err := s.Wipe(ctx); err != nil {
				s.Close()
				return fmt.Errorf("failed to wipe local data: %w", err)
			}
			s.Close()
			fmt.Printf("%s Local data wiped\n", ui.RenderWarn("⚠"))
		}

		provider := identity.New(identityPath())
		if err := provider.ImportRecoveryCode(code); err != nil {
			return err
		}

		fmt.Printf("%s Identity imported: %s\n", ui.RenderPass("✓"), ui.RenderAccent(code))
		fmt.Println(ui.RenderDim("Run \"puttlog sync\" to pull this identity's data."))
		return nil
	},
}

func init() {
	identityImportCmd.Flags().Bool("wipe", false, "clear local tables before importing")
	identityImportCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	identityCmd.AddCommand(identityShowCmd, identityExportCmd, identityImportCmd)
	rootCmd.AddCommand(identityCmd)
}
