package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"class-importer/internal/descriptor"
	"class-importer/internal/identity"
)

var verifyBinary string

var verifyCmd = &cobra.Command{
	Use:   "verify <description>",
	Short: "Check that a description was produced for the open program",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyBinary, "binary", "", "hash this file instead of reading the program database")
}

func runVerify(cmd *cobra.Command, args []string) error {
	doc, err := descriptor.LoadFile(args[0])
	if err != nil {
		return err
	}

	actual, err := actualHash(cmd)
	if err != nil {
		return err
	}

	verdict := identity.Verify(doc.MD5, actual)
	out := cmd.OutOrStdout()

	switch verdict {
	case identity.VerdictMismatch:
		m := identity.Mismatch{Declared: *doc.MD5, Actual: actual, Filename: doc.Filename}
		return fmt.Errorf("%s", m)
	case identity.VerdictUnavailable:
		fmt.Fprintln(out, "Description records no MD5; it will be trusted")
	default:
		fmt.Fprintf(out, "MD5 matches (%s)\n", actual)
	}

	return nil
}

func actualHash(cmd *cobra.Command) (string, error) {
	if verifyBinary != "" {
		return identity.HashFile(verifyBinary)
	}

	store, err := openStore()
	if err != nil {
		return "", err
	}
	defer store.Close()

	program, err := store.Program(cmd.Context())
	if err != nil {
		return "", fmt.Errorf("failed to read program: %w", err)
	}

	return program.MD5, nil
}
