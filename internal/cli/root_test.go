package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigRejectsNetworkAndURLTogether(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	networkFlag = "mainnet"
	urlFlag = "http://localhost:9999"
	t.Cleanup(func() { networkFlag, urlFlag = "", "" })

	_, err := loadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestLoadConfigFlagOverridesClearTheOther(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	networkFlag = ""
	urlFlag = "http://localhost:9999"
	t.Cleanup(func() { networkFlag, urlFlag = "", "" })

	cfg, err := loadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.URL)
	assert.Empty(t, cfg.Network)

	networkFlag, urlFlag = "mainnet", ""
	cfg, err = loadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Empty(t, cfg.URL)
}
