package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"class-importer/internal/descriptor"
	"class-importer/internal/identity"
	"class-importer/internal/names"
	"class-importer/internal/progdb"
	"class-importer/internal/storage"
)

var (
	programBinary    string
	programFunctions string
	programAnalyzed  bool
	programPtrSize   uint64
	programRanges    []string
)

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Manage the program registered in the database",
}

var programInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Register the analyzed binary and its functions",
	Long: `Records the binary's name, MD5, pointer size and address ranges, and
optionally loads a YAML list of analyzed functions:

  functions:
    - address: 0x401000
      name: FUN_00401000
    - address: 0x401020
      name: draw
      scope: Shapes::Circle`,
	Args: cobra.NoArgs,
	RunE: runProgramInit,
}

var programShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the registered program",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Program(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read program: %w", err)
		}

		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(p)
	},
}

func init() {
	programInitCmd.Flags().StringVar(&programBinary, "binary", "", "path of the analyzed binary")
	programInitCmd.Flags().StringVar(&programFunctions, "functions", "", "YAML file listing analyzed functions")
	programInitCmd.Flags().BoolVar(&programAnalyzed, "analyzed", false, "mark the program as analyzed")
	programInitCmd.Flags().Uint64Var(&programPtrSize, "pointer-size", 4, "pointer size in bytes")
	programInitCmd.Flags().StringSliceVar(&programRanges, "range", nil, "loaded address range START-END (repeatable)")
	_ = programInitCmd.MarkFlagRequired("binary")

	programCmd.AddCommand(programInitCmd)
	programCmd.AddCommand(programShowCmd)
}

// functionList is the --functions file format.
type functionList struct {
	Functions []functionEntry `yaml:"functions"`
}

type functionEntry struct {
	Address descriptor.Address `yaml:"address"`
	Name    string             `yaml:"name"`
	Scope   string             `yaml:"scope,omitempty"`
}

func loadFunctions(path string) ([]progdb.Function, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var list functionList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	out := make([]progdb.Function, 0, len(list.Functions))

	for i, e := range list.Functions {
		if e.Address.IsSymbolic() {
			return nil, fmt.Errorf("function #%d: address %q is not numeric", i, e.Address.Symbol)
		}

		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = fmt.Sprintf("FUN_%08x", e.Address.Value)
		}

		var scope progdb.Path
		if segs := names.Split(e.Scope); len(segs) > 0 {
			scope = segs
		}

		out = append(out, progdb.Function{Address: e.Address.Value, Name: name, Scope: scope})
	}

	return out, nil
}

func parseRanges(specs []string) ([]progdb.AddressRange, error) {
	out := make([]progdb.AddressRange, 0, len(specs))

	for _, s := range specs {
		lo, hi, ok := strings.Cut(s, "-")
		if !ok {
			return nil, fmt.Errorf("range %q: want START-END", s)
		}

		start, err := descriptor.ParseAddress(strings.TrimSpace(lo))
		if err != nil || start.IsSymbolic() {
			return nil, fmt.Errorf("range %q: bad start", s)
		}

		end, err := descriptor.ParseAddress(strings.TrimSpace(hi))
		if err != nil || end.IsSymbolic() {
			return nil, fmt.Errorf("range %q: bad end", s)
		}

		if end.Value <= start.Value {
			return nil, fmt.Errorf("range %q: end must be above start", s)
		}

		out = append(out, progdb.AddressRange{Start: start.Value, End: end.Value})
	}

	return out, nil
}

func runProgramInit(cmd *cobra.Command, args []string) error {
	sum, err := identity.HashFile(programBinary)
	if err != nil {
		return err
	}

	ranges, err := parseRanges(programRanges)
	if err != nil {
		return err
	}

	var fns []progdb.Function
	if programFunctions != "" {
		if fns, err = loadFunctions(programFunctions); err != nil {
			return err
		}
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	program := progdb.Program{
		Name:        filepath.Base(programBinary),
		MD5:         sum,
		Analyzed:    programAnalyzed,
		PointerSize: programPtrSize,
		Ranges:      ranges,
	}

	if err := register(cmd.Context(), store, program, fns); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"program":   program.Name,
		"md5":       program.MD5,
		"functions": len(fns),
	}).Info("program registered")

	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (MD5 %s) with %d functions\n", program.Name, program.MD5, len(fns))

	return nil
}

// register records the program and loads its functions in one transaction.
func register(ctx context.Context, store storage.Store, program progdb.Program, fns []progdb.Function) error {
	if err := store.SetProgram(ctx, program); err != nil {
		return fmt.Errorf("failed to register program: %w", err)
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, f := range fns {
		for i := range f.Scope {
			ns := progdb.Namespace{Path: f.Scope[:i+1].Clone()}
			if _, err := tx.Namespace(ctx, ns.Path); progdb.IsNotFound(err) {
				if err := tx.PutNamespace(ctx, ns); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("failed to add namespace %s: %w", ns.Path, err)
				}
			}
		}

		if err := tx.PutFunction(ctx, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to add function 0x%x: %w", f.Address, err)
		}
	}

	return tx.Commit()
}
