package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"class-importer/internal/descriptor"
	"class-importer/internal/plan"
)

var planText bool

var planCmd = &cobra.Command{
	Use:   "plan <description>",
	Short: "Print the import plan without changing the database",
	Long: `Resolves namespaces, types and method names against the program
database and prints every create, reuse and rename decision as YAML.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planText, "text", false, "print a human-readable summary instead of YAML")
	planCmd.Flags().BoolVar(&importDedicated, "dedicated-namespace", true, "nest classes under one top-level namespace")
}

func runPlan(cmd *cobra.Command, args []string) error {
	doc, err := descriptor.LoadFile(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := plan.Build(cmd.Context(), doc, store, planOptions(cmd))
	if err != nil {
		printDiagnostics(cmd.ErrOrStderr(), &p.Diagnostics)
		return err
	}

	out := cmd.OutOrStdout()

	if planText {
		fmt.Fprint(out, plan.FormatReport(plan.GenerateReport(p)))
		return nil
	}

	data, err := plan.ExportYAML(p)
	if err != nil {
		return fmt.Errorf("failed to render plan: %w", err)
	}

	_, err = out.Write(data)

	return err
}
