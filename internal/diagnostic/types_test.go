package diagnostic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostics_AddAndQuery(t *testing.T) {
	var d Diagnostics

	assert.True(t, d.IsValid())
	require.NoError(t, d.Error())

	d.AddWarning("unknown_base", "base \"Missing\" is not described", "Derived", "Missing")
	d.AddInfo("member_in_base", "member covered by base", "Derived", "field_0x0")
	assert.True(t, d.IsValid())

	d.AddError("member_out_of_range", "member exceeds class size", "Derived", "field_0x10")
	assert.True(t, d.HasErrors())

	err := d.Error()
	require.Error(t, err)
	assert.Equal(t, "[Derived] field_0x10: [member_out_of_range] member exceeds class size", err.Error())

	got := d.ByCode("unknown_base")
	require.Len(t, got, 1)
	assert.Equal(t, DiagnosticWarning, got[0].Severity)
	assert.Equal(t, "Missing", got[0].Entity)
}

func TestDiagnostics_Merge(t *testing.T) {
	var a, b Diagnostics

	a.AddInfo("x", "first", "", "")
	b.AddWarning("y", "second", "", "")
	b.AddError("z", "third", "", "")

	a.Merge(b)

	assert.Len(t, a.Infos, 1)
	assert.Len(t, a.Warnings, 1)
	assert.Len(t, a.Errors, 1)
}

func TestDiagnosticSeverity_String(t *testing.T) {
	assert.Equal(t, "info", DiagnosticInfo.String())
	assert.Equal(t, "warning", DiagnosticWarning.String())
	assert.Equal(t, "error", DiagnosticError.String())
	assert.Equal(t, "unknown", DiagnosticSeverity(42).String())
}

func TestDiagnostic_StringWithoutContext(t *testing.T) {
	d := Diagnostic{Message: "plain"}
	assert.Equal(t, "plain", d.String())
}
