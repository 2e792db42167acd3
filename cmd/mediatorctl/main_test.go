package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"github.com/neverl0se/forgeModsConflictMediator/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MEDIATOR_ENV", filepath.Join(t.TempDir(), "absent.env"))
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewReader(nil))
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAnalyze_JSONDescriptor(t *testing.T) {
	input := writeFile(t, "failure.json",
		`{"message":"Mixin apply failed: alpha.mixin.FooMixin conflicts with beta.mixin.FooMixin"}`)

	out, err := runCLI(t, "analyze", "--json", input)
	require.NoError(t, err)

	var body struct {
		Records []domain.ConflictRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.Len(t, body.Records, 1)
	assert.Equal(t, domain.ConflictKindPatchOverlap, body.Records[0].Kind)
}

func TestAnalyze_TraceTextReport(t *testing.T) {
	input := writeFile(t, "crash.txt", "java.lang.IllegalStateException: field already exists\n"+
		"\tat com.alpha.Thing.init(Thing.java:1)\n"+
		"\tat com.beta.Other.init(Other.java:2)\n")

	out, err := runCLI(t, "analyze", "--component", "alpha", "--component", "beta", input)
	require.NoError(t, err)
	assert.Contains(t, out, "duplicate_member")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "beta")
}

func TestAnalyze_NoConflict(t *testing.T) {
	input := writeFile(t, "plain.txt", "java.lang.NullPointerException\n")

	out, err := runCLI(t, "analyze", input)
	require.NoError(t, err)
	assert.Contains(t, out, "No conflicts identified")
}

func TestAnalyze_EmptyFile(t *testing.T) {
	input := writeFile(t, "empty.txt", "  \n")
	_, err := runCLI(t, "analyze", input)
	assert.Error(t, err)
}

func TestMediate_HeadlessLeavesRegistryAlone(t *testing.T) {
	regPath := filepath.Join(t.TempDir(), registry.DefaultFileName)
	input := writeFile(t, "failure.json",
		`{"message":"Mixin apply failed: alpha.mixin.FooMixin conflicts with beta.mixin.FooMixin"}`)

	out, err := runCLI(t, "--registry", regPath, "mediate", "--headless", input)
	require.NoError(t, err)
	assert.Contains(t, out, "No action taken")
	assert.Contains(t, out, "Disable patch alpha.mixin.FooMixin from alpha")

	_, statErr := os.Stat(regPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMediate_MalformedRegistryReportsWithoutSaving(t *testing.T) {
	regPath := writeFile(t, registry.DefaultFileName, "{not json")
	input := writeFile(t, "failure.json",
		`{"message":"Mixin apply failed: alpha.mixin.FooMixin conflicts with beta.mixin.FooMixin"}`)

	out, err := runCLI(t, "--registry", regPath, "mediate", input)
	require.NoError(t, err)
	assert.Contains(t, out, "Detected 1 potential conflict(s)")
	assert.Contains(t, out, "Disable patch alpha.mixin.FooMixin from alpha")
	assert.Contains(t, out, "No action taken")

	data, err := os.ReadFile(regPath)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestRegistryCommands(t *testing.T) {
	regPath := filepath.Join(t.TempDir(), "cfg", registry.DefaultFileName)

	out, err := runCLI(t, "--registry", regPath, "registry", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing disabled")

	out, err = runCLI(t, "--registry", regPath, "registry", "disable", "alpha", "advanced_ai")
	require.NoError(t, err)
	assert.Contains(t, out, "Restart required")

	out, err = runCLI(t, "--registry", regPath, "registry", "disable", "alpha", "advanced_ai")
	require.NoError(t, err)
	assert.Contains(t, out, "No change")

	_, err = runCLI(t, "--registry", regPath, "registry", "disable-patch", "beta.mixin.BarMixin")
	require.NoError(t, err)

	out, err = runCLI(t, "--registry", regPath, "registry", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "beta.mixin.BarMixin")
	assert.Contains(t, out, "alpha:")
	assert.Contains(t, out, "advanced_ai")

	_, err = runCLI(t, "--registry", regPath, "registry", "enable", "alpha", "advanced_ai")
	require.NoError(t, err)
	_, err = runCLI(t, "--registry", regPath, "registry", "enable-patch", "beta.mixin.BarMixin")
	require.NoError(t, err)

	reg := registry.New(regPath, nil)
	require.NoError(t, reg.Load())
	assert.Equal(t, 0, reg.Snapshot().Count())
}

func TestRegistryList_MalformedFile(t *testing.T) {
	regPath := writeFile(t, registry.DefaultFileName, "{nope")
	_, err := runCLI(t, "--registry", regPath, "registry", "list")
	assert.ErrorIs(t, err, registry.ErrMalformedRegistry)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mediatorctl dev")
}
