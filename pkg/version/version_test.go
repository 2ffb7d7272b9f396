package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionLooksLikeSemverOrDev(t *testing.T) {
	require.NotEmpty(t, Version)

	semver := regexp.MustCompile(`^(dev|v?\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?)$`)
	assert.True(t, semver.MatchString(Version),
		"Version %q should be 'dev' or valid semver", Version)
}

func TestCurrentMirrorsBuildIdentity(t *testing.T) {
	info := Current()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.Go)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.Date)
}

func TestCurrentJSONShape(t *testing.T) {
	data, err := json.Marshal(Current())
	require.NoError(t, err)

	var decoded Info
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Current(), decoded)

	assert.Contains(t, string(data), `"version"`)
	assert.Contains(t, string(data), `"platform"`)
}

func TestStringCarriesAllComponents(t *testing.T) {
	s := Current().String()

	assert.Contains(t, s, "mathdex")
	assert.Contains(t, s, Version)
	assert.Contains(t, s, runtime.Version())
}

func TestUnstampedBuildReportsUnknown(t *testing.T) {
	if Date != "" {
		t.Skip("build was stamped via ldflags")
	}
	assert.Equal(t, "unknown", Current().Date)
}
