package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"class-importer/internal/config"
	"class-importer/internal/identity"
)

// promptDecider asks on the terminal whether to import despite a hash
// mismatch. Without a terminal it declines.
type promptDecider struct {
	in       io.Reader
	out      io.Writer
	terminal bool
}

func newPromptDecider() *promptDecider {
	return &promptDecider{
		in:       os.Stdin,
		out:      os.Stderr,
		terminal: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

func (d *promptDecider) ProceedOnMismatch(ctx context.Context, m identity.Mismatch) (bool, error) {
	fmt.Fprintf(d.out, "Warning: %s.\n", m)

	if !d.terminal {
		fmt.Fprintln(d.out, "Not a terminal; aborting. Pass --yes to import anyway.")
		return false, nil
	}

	fmt.Fprint(d.out, "Import anyway? [y/N]: ")

	answer := make(chan string, 1)
	errc := make(chan error, 1)

	go func() {
		line, err := bufio.NewReader(d.in).ReadString('\n')
		if err != nil && line == "" {
			errc <- err
			return
		}
		answer <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errc:
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("failed to read answer: %w", err)
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

// deciderFor returns the mismatch policy selected by flags, falling back to
// the configured one.
func deciderFor(policy string, yes, no bool) identity.Decider {
	switch {
	case yes:
		return identity.AlwaysProceed
	case no:
		return identity.NeverProceed
	}

	switch policy {
	case config.MismatchProceed:
		return identity.AlwaysProceed
	case config.MismatchAbort:
		return identity.NeverProceed
	default:
		return newPromptDecider()
	}
}
