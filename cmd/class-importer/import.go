package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"class-importer/internal/descriptor"
	"class-importer/internal/diagnostic"
	"class-importer/internal/plan"
	"class-importer/internal/session"
)

var (
	importYes       bool
	importNo        bool
	importDedicated bool
	importProgress  bool
)

var importCmd = &cobra.Command{
	Use:   "import <description>",
	Short: "Import a class description into the program database",
	Long: `Plans the import of a class description (JSON or YAML), then applies
every class in dependency order inside one transaction. Ctrl-C rolls the
whole import back.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "import even when the MD5 does not match")
	importCmd.Flags().BoolVar(&importNo, "no", false, "abort when the MD5 does not match")
	importCmd.Flags().BoolVar(&importDedicated, "dedicated-namespace", true, "nest classes under one top-level namespace")
	importCmd.Flags().BoolVar(&importProgress, "progress", false, "print one line per applied class")
	importCmd.MarkFlagsMutuallyExclusive("yes", "no")
}

// planOptions applies command flags over the configured import options.
func planOptions(cmd *cobra.Command) plan.Options {
	opts := cfg.PlanOptions()

	if f := cmd.Flags().Lookup("dedicated-namespace"); f != nil && f.Changed {
		opts.UseDedicatedNamespace = importDedicated
	}

	return opts
}

func runImport(cmd *cobra.Command, args []string) error {
	doc, err := descriptor.LoadFile(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	var progress session.ProgressFunc
	if importProgress {
		progress = func(p session.Progress) {
			fmt.Fprintf(out, "[%d/%d] %s\n", p.Index+1, p.Total, p.Class)
		}
	}

	s := session.New(store, session.Config{
		Plan:     planOptions(cmd),
		Decider:  deciderFor(cfg.Import.OnMismatch, importYes, importNo),
		Progress: progress,
		Logger:   logger,
	})

	res := s.Run(cmd.Context(), doc)

	printDiagnostics(out, &res.Diagnostics)

	switch res.Outcome {
	case session.OutcomeApplied:
		fmt.Fprintf(out, "Applied %d of %d classes (session %s)\n", res.Applied, res.Planned, res.ID)
		if res.Plan != nil && len(res.Plan.Conflicts) > 0 {
			fmt.Fprintf(out, "%d name conflicts resolved by renaming; run `plan` to review them\n", len(res.Plan.Conflicts))
		}
		return nil
	case session.OutcomeNoClasses:
		fmt.Fprintln(out, "No classes found in the description")
		return nil
	case session.OutcomeAborted:
		fmt.Fprintln(out, "Import aborted; no changes were made")
		return res.Err
	default:
		return fmt.Errorf("import %s: %w", res.Outcome, res.Err)
	}
}

func printDiagnostics(w io.Writer, d *diagnostic.Diagnostics) {
	for _, e := range d.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}

	for _, wn := range d.Warnings {
		fmt.Fprintf(w, "warning: %s\n", wn)
	}

	if verbose {
		for _, i := range d.Infos {
			fmt.Fprintf(w, "info: %s\n", i)
		}
	}
}
