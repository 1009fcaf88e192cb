package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHome(t *testing.T, content string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if content != "" {
		dir := filepath.Join(home, ".starkverify")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))
	}
}

func writeProjectConfig(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFile), []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	writeHome(t, "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sepolia", cfg.Network)
	assert.Empty(t, cfg.URL)
	assert.False(t, cfg.IncludeLock)
	assert.Empty(t, cfg.Contracts)
}

func TestLoadLayering(t *testing.T) {
	writeHome(t, `
network: mainnet
license: GPL-3.0
history:
  backend: sqlite
`)
	root := t.TempDir()
	writeProjectConfig(t, root, `
[starkverify]
network = "sepolia"
default-package = "token"
include-lock = true
delay-seconds = 3

[[contracts]]
class-hash = "0x1"
contract-name = "Token"

[[contracts]]
class-hash = "0x2"
contract-name = "Vault"
package = "vault"
`)

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "sepolia", cfg.Network, "project file overrides global")
	assert.Equal(t, "GPL-3.0", cfg.License, "global survives where project is silent")
	assert.Equal(t, "token", cfg.DefaultPackage)
	assert.True(t, cfg.IncludeLock)
	assert.Equal(t, 3*time.Second, cfg.InterItemDelay)

	require.Len(t, cfg.Contracts, 2)
	assert.Equal(t, "0x1", cfg.Contracts[0].ClassHash)
	assert.Equal(t, "Token", cfg.Contracts[0].ContractName)
	assert.Equal(t, "vault", cfg.Contracts[1].Package)
}

func TestLoadEnvOverrides(t *testing.T) {
	writeHome(t, "network: mainnet\n")
	t.Setenv("STARKVERIFY_NETWORK", "dev")
	t.Setenv("STARKVERIFY_LICENSE", "MIT")
	t.Setenv("STARKVERIFY_INCLUDE_TESTS", "true")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Network)
	assert.Equal(t, "MIT", cfg.License)
	assert.True(t, cfg.IncludeTests)
}

func TestLoadCustomURLClearsNetwork(t *testing.T) {
	writeHome(t, "network: mainnet\n")
	root := t.TempDir()
	writeProjectConfig(t, root, `
[starkverify]
url = "http://verify.internal:9000"
`)

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "http://verify.internal:9000", cfg.URL)
	assert.Empty(t, cfg.Network)

	endpoint, err := cfg.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "http://verify.internal:9000", endpoint)
	assert.Equal(t, "http://verify.internal:9000", cfg.NetworkLabel())
}

func TestLoadMalformedProjectFile(t *testing.T) {
	writeHome(t, "")
	root := t.TempDir()
	writeProjectConfig(t, root, "[starkverify\nbroken")

	_, err := Load(root)
	assert.Error(t, err)
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{
			name: "mainnet",
			cfg:  Config{Network: "mainnet"},
			want: "https://verify.quasarlabs.xyz/mainnet",
		},
		{
			name: "case-insensitive network",
			cfg:  Config{Network: "Sepolia"},
			want: "https://verify.quasarlabs.xyz/sepolia",
		},
		{
			name: "dev",
			cfg:  Config{Network: "dev"},
			want: "http://localhost:8080",
		},
		{
			name: "default when empty",
			cfg:  Config{},
			want: "https://verify.quasarlabs.xyz/sepolia",
		},
		{
			name: "custom url",
			cfg:  Config{URL: "http://localhost:1234"},
			want: "http://localhost:1234",
		},
		{
			name:    "network and url together",
			cfg:     Config{Network: "mainnet", URL: "http://x"},
			wantErr: true,
		},
		{
			name:    "unknown network",
			cfg:     Config{Network: "goerli"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Endpoint()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
