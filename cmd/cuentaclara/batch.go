package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mfuentes/cuentaclara/internal/cli"
	"github.com/mfuentes/cuentaclara/internal/engine"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Audit a directory of extraction bundles",
		Long: `Audits every bundle under the directory. A bundle is a subdirectory
holding account.json and optionally findings.json, contract.json and
taxonomy.json. Results are persisted when --save is set.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}

	cmd.Flags().Bool("save", false, "persist each audit result to the database")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	save, _ := cmd.Flags().GetBool("save")

	entries, err := os.ReadDir(args[0])
	if err != nil {
		return fmt.Errorf("failed to read batch directory: %w", err)
	}

	var bundles []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		accountPath := filepath.Join(args[0], entry.Name(), "account.json")
		if _, statErr := os.Stat(accountPath); statErr == nil {
			bundles = append(bundles, filepath.Join(args[0], entry.Name()))
		}
	}

	if len(bundles) == 0 {
		fmt.Println(cli.SubtleStyle.Render("no bundles found"))
		return nil
	}

	bar := progressbar.NewOptions(len(bundles),
		progressbar.OptionSetDescription("auditing bills"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	auditEngine := engine.New(nil)
	failed := 0

	for _, bundle := range bundles {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		in, loadErr := loadInput(
			filepath.Join(bundle, "account.json"),
			optionalFile(bundle, "findings.json"),
			optionalFile(bundle, "contract.json"),
			optionalFile(bundle, "taxonomy.json"),
			-1, "")
		if loadErr != nil {
			failed++
			fmt.Println(cli.ErrorStyle.Render(fmt.Sprintf("%s: %v", bundle, loadErr)))
			_ = bar.Add(1)
			continue
		}

		result := auditEngine.Audit(ctx, *in)

		if save {
			if saveErr := saveResult(ctx, bundle, result); saveErr != nil {
				failed++
				fmt.Println(cli.ErrorStyle.Render(fmt.Sprintf("%s: %v", bundle, saveErr)))
			}
		}

		fmt.Printf("%s: %s, opacity %.1f%%\n",
			filepath.Base(bundle), result.Balance.StateLabel(), result.Balance.OpacityPercent())
		_ = bar.Add(1)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d bundles failed", failed, len(bundles))
	}
	return nil
}

func optionalFile(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
