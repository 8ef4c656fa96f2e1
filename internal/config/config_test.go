package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/config"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sequencer.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndDecodeAppliesValues(t *testing.T) {
	path := writeTOML(t, `
[node]
datadir = "/var/lib/mojave"

[rpc]
address = ":9000"

[block]
interval = "2s"

[leader]
cluster_mode = true
namespace = "mojave"
`)

	logger := zerolog.Nop()
	ko, err := config.Load(&logger, path)
	require.NoError(t, err)

	n := config.FromKoanf(ko)
	require.Equal(t, "/var/lib/mojave", n.DataDir)
	require.Equal(t, ":9000", n.RPCAddress)
	require.Equal(t, 2*time.Second, n.BlockInterval)
	require.True(t, n.ClusterMode)
	require.Equal(t, "mojave", n.Namespace)
}

func TestFromKoanfDefaultsWhenFieldsMissing(t *testing.T) {
	path := writeTOML(t, `
[node]
datadir = "./data"
`)

	logger := zerolog.Nop()
	ko, err := config.Load(&logger, path)
	require.NoError(t, err)

	n := config.FromKoanf(ko)
	require.Equal(t, ":8551", n.RPCAddress)
	require.Equal(t, ":9090", n.MetricsAddress)
	require.Equal(t, 1000*time.Millisecond, n.BlockInterval)
	require.Equal(t, 100*time.Second, n.BatchInterval)
	require.Equal(t, "default", n.Namespace)
	require.Equal(t, "sequencer-leader", n.LeaseName)
}
