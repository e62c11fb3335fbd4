// Package main provides the class-importer CLI.
//
// class-importer reads class descriptions recovered by an object-oriented
// binary analysis tool and imports them into a program database:
//   - import: plan and apply a description in one transaction
//   - plan: print the reviewable import plan without writing
//   - verify: compare the description's MD5 with the open program
//   - program init: register the analyzed binary and its functions
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"class-importer/internal/config"
	"class-importer/internal/logging"
	"class-importer/internal/storage"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	dbPath  string
	dbType  string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "class-importer",
	Short: "Import recovered C++ class descriptions into a program database",
	Long: `class-importer applies class layouts, virtual tables and method
bindings recovered by an object-oriented analysis tool to the program
database of the analyzed binary. Every import runs in one transaction:
either all classes are applied or nothing changes.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logging.New(logging.Config{}).WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}

		logCfg := cfg.Logging()
		if verbose {
			logCfg.Level = logrus.DebugLevel.String()
		}

		logger = logging.New(logCfg)

		if dbPath != "" {
			cfg.Storage.Path = dbPath
		}

		if dbType != "" {
			cfg.Storage.Type = dbType
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .class-importer/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "program database path (overrides storage.path)")
	rootCmd.PersistentFlags().StringVar(&dbType, "storage", "", "program database backend: sqlite, bolt or memory")

	rootCmd.SetVersionTemplate(`class-importer {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(programCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "class-importer %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
	},
}

// openStore opens the configured program database.
func openStore() (storage.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return storage.Open(cfg.Storage, logger)
}
