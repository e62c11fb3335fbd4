package identity

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		declared *string
		actual   string
		want     Verdict
	}{
		{name: "absent", declared: nil, actual: "abc", want: VerdictUnavailable},
		{name: "absent with empty actual", declared: nil, actual: "", want: VerdictUnavailable},
		{name: "equal", declared: strPtr("abc"), actual: "abc", want: VerdictMatch},
		{name: "case insensitive", declared: strPtr("ABCDEF"), actual: "abcdef", want: VerdictMatch},
		{name: "whitespace", declared: strPtr(" abc\n"), actual: "abc", want: VerdictMatch},
		{name: "differs", declared: strPtr("abc"), actual: "abd", want: VerdictMismatch},
		{name: "program has no hash", declared: strPtr("abc"), actual: "", want: VerdictMismatch},
		{name: "empty declared", declared: strPtr(""), actual: "abc", want: VerdictMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Verify(tt.declared, tt.actual)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != VerdictMismatch, got.Trusted())
		})
	}
}

func TestMismatch_String(t *testing.T) {
	m := Mismatch{Declared: "AA", Actual: "bb", Filename: strPtr("sample.exe")}
	assert.Equal(t,
		`the class description for "sample.exe" was produced for a binary with MD5 aa, but the open program has MD5 bb`,
		m.String())

	m = Mismatch{Declared: "aa"}
	assert.Contains(t, m.String(), "<none>")
	assert.True(t, strings.HasPrefix(m.String(), "the class description was"))
}

func TestDeciders(t *testing.T) {
	ctx := context.Background()

	ok, err := AlwaysProceed.ProceedOnMismatch(ctx, Mismatch{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NeverProceed.ProceedOnMismatch(ctx, Mismatch{})
	require.NoError(t, err)
	assert.False(t, ok)

	var seen Mismatch
	d := DeciderFunc(func(_ context.Context, m Mismatch) (bool, error) {
		seen = m
		return true, nil
	})

	_, err = d.ProceedOnMismatch(ctx, Mismatch{Declared: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", seen.Declared)
}

func TestHash(t *testing.T) {
	got, err := HashReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", got)

	path := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	got, err = HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", got)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
