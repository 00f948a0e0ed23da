package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/settled-dev/settled/internal/config"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new reconciliation workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runInit(cmd, absDir)
		},
	}
	return cmd
}

func runInit(cmd *cobra.Command, dir string) error {
	cfgPath := filepath.Join(dir, "settled.yaml")
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("workspace already initialized: %s exists", cfgPath)
	}

	cfg := config.Default()
	for _, d := range []string{cfg.Data.InputDir, cfg.Data.OutputDir, "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	gitignore := "*.db\noutput/\nlogs/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized reconciliation workspace at %s\n", dir)
	fmt.Fprintf(cmd.OutOrStdout(), "Place orders.csv, refunds.csv, psp_settlements.csv and gl_entries.csv in %s/\n", cfg.Data.InputDir)
	return nil
}
