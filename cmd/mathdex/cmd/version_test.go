package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlens/mathdex/pkg/version"
)

func runVersion(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runMathdex(t, t.TempDir(), append([]string{"version"}, args...)...)
	require.NoError(t, err)
	return out
}

func TestVersionCmd_FullOutput(t *testing.T) {
	// When: running the bare version command
	output := runVersion(t)

	// Then: the human-readable form names the binary and its build details
	assert.Contains(t, output, "mathdex")
	assert.Contains(t, output, version.Version)
	assert.Contains(t, output, "commit:")
	assert.Contains(t, output, "go:")
}

func TestVersionCmd_ShortFlag(t *testing.T) {
	output := runVersion(t, "--short")

	assert.Equal(t, version.Version, strings.TrimSpace(output),
		"short output should be the bare version number")
}

func TestVersionCmd_ShortWinsOverJSON(t *testing.T) {
	output := runVersion(t, "--short", "--json")

	assert.Equal(t, version.Version, strings.TrimSpace(output))
}

func TestVersionCmd_JSONFields(t *testing.T) {
	output := runVersion(t, "--json")

	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(output), &fields), "output should be valid JSON")

	assert.Equal(t, version.Version, fields["version"])
	for _, name := range []string{"commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, fields, name)
	}
}

func TestVersionCmd_RegisteredOnRoot(t *testing.T) {
	root := NewRootCmd()

	found, _, err := root.Find([]string{"version"})

	require.NoError(t, err)
	assert.Equal(t, "version", found.Name())
}
