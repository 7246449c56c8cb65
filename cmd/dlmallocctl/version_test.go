package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBuildInfo_LinkerFieldsWin(t *testing.T) {
	setFlag(t, &version, "v1.2.3")
	setFlag(t, &commit, "abc123")
	setFlag(t, &date, "2026-01-02")

	bi := readBuildInfo()
	assert.Equal(t, "v1.2.3", bi.Version)
	assert.Equal(t, "abc123", bi.Commit)
	assert.Equal(t, "2026-01-02", bi.Date)
}

func TestReadBuildInfo_Defaults(t *testing.T) {
	bi := readBuildInfo()
	assert.NotEmpty(t, bi.Version)
	assert.NotEqual(t, "(devel)", bi.Version)
	assert.NotEmpty(t, bi.Engine)
}

func TestVersionCommand_JSON(t *testing.T) {
	setFlag(t, &jsonOut, true)
	setFlag(t, &version, "v9.9.9")

	out, err := captureOutput(t, func() error {
		return versionCmd.RunE(versionCmd, nil)
	})
	require.NoError(t, err)
	assertJSON(t, out)

	var bi buildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &bi))
	assert.Equal(t, "v9.9.9", bi.Version)
}
