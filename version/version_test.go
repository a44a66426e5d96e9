package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// withVersionVars temporarily sets version variables and restores them after the test.
func withVersionVars(t *testing.T, v, c, date string) {
	t.Helper()
	origVersion, origCommit, origDate := version, gitCommit, buildDate
	t.Cleanup(func() {
		version, gitCommit, buildDate = origVersion, origCommit, origDate
	})
	version, gitCommit, buildDate = v, c, date
}

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, GetVersion())
}

func TestGetVersionOverride(t *testing.T) {
	withVersionVars(t, "1.2.0", "", "")
	assert.Equal(t, "1.2.0", GetVersion())
}

func TestGetVersionInfo(t *testing.T) {
	withVersionVars(t, "1.2.0", "abc1234", "2026-01-02")

	info := GetVersionInfo()
	assert.Contains(t, info, "itark version 1.2.0")
	assert.Contains(t, info, "commit: abc1234")
	assert.Contains(t, info, "built: 2026-01-02")
}

func TestGetBuildInfo(t *testing.T) {
	withVersionVars(t, "1.2.0", "abc1234", "2026-01-02")

	attrs := GetBuildInfo()
	assert.Equal(t, []any{"version", "1.2.0", "commit", "abc1234", "built", "2026-01-02"}, attrs)
}

func TestLogStartup(t *testing.T) {
	withVersionVars(t, "1.2.0", "", "")
	assert.NotPanics(t, LogStartup)
}
