package identity

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"class-importer/internal/common"
)

// Verdict is the outcome of comparing a declared hash with the actual one.
type Verdict int

const (
	// VerdictMatch - the hashes are equal ignoring case.
	VerdictMatch Verdict = iota
	// VerdictMismatch - the hashes differ, or the program has no hash.
	VerdictMismatch
	// VerdictUnavailable - the description declares no hash.
	VerdictUnavailable
)

// String returns a lower-case verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictMatch:
		return "match"
	case VerdictMismatch:
		return "mismatch"
	case VerdictUnavailable:
		return "unavailable"
	default:
		return common.UnknownStr
	}
}

// Trusted reports whether the import may proceed without asking.
func (v Verdict) Trusted() bool {
	return v != VerdictMismatch
}

// Verify compares the declared hash against the program's hash.
func Verify(declared *string, actual string) Verdict {
	if declared == nil {
		return VerdictUnavailable
	}

	d := strings.TrimSpace(*declared)
	a := strings.TrimSpace(actual)

	if a == "" || !strings.EqualFold(d, a) {
		return VerdictMismatch
	}

	return VerdictMatch
}

// Mismatch describes a failed identity check for the Decider.
type Mismatch struct {
	Declared string
	Actual   string
	Filename *string
}

// String returns the message shown when asking whether to continue.
func (m Mismatch) String() string {
	file := "the class description"
	if m.Filename != nil && *m.Filename != "" {
		file = fmt.Sprintf("the class description for %q", *m.Filename)
	}

	actual := m.Actual
	if actual == "" {
		actual = "<none>"
	}

	return fmt.Sprintf("%s was produced for a binary with MD5 %s, but the open program has MD5 %s",
		file, strings.ToLower(m.Declared), strings.ToLower(actual))
}

// Decider resolves a hash mismatch. Returning false aborts the import.
type Decider interface {
	ProceedOnMismatch(ctx context.Context, m Mismatch) (bool, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, m Mismatch) (bool, error)

// ProceedOnMismatch calls f.
func (f DeciderFunc) ProceedOnMismatch(ctx context.Context, m Mismatch) (bool, error) {
	return f(ctx, m)
}

var (
	// AlwaysProceed imports despite a mismatch.
	AlwaysProceed Decider = DeciderFunc(func(context.Context, Mismatch) (bool, error) { return true, nil })
	// NeverProceed aborts on any mismatch.
	NeverProceed Decider = DeciderFunc(func(context.Context, Mismatch) (bool, error) { return false, nil })
)

// HashReader returns the lower-case hex MD5 of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the lower-case hex MD5 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return HashReader(f)
}
