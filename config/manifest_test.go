package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	cfg "github.com/Gunvolt24/resto_sync/config"
	"github.com/stretchr/testify/require"
)

func TestLoadManifest_Embedded(t *testing.T) {
	m, err := cfg.LoadManifest("")
	require.NoError(t, err)

	require.Equal(t, "v1.1.0", m.Version)
	require.Equal(t, 3*time.Second, m.NetworkTimeout)
	require.Equal(t, 24*time.Hour, m.StaticMaxAge)
	require.Equal(t, 5*time.Minute, m.APIMaxAge)
	require.Equal(t, 100, m.MaxEntries)
	require.Contains(t, m.StaticFiles, "/index.html")
	require.Contains(t, m.CacheableHosts, "fonts.gstatic.com")
	require.Contains(t, m.StreamingHosts, "firebaseio.com")
}

func TestLoadManifest_FileWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.toml")
	content := "version = \"v2\"\nstatic_files = [\"/\"]\ncacheable_hosts = [\" CDN.Example.com \"]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := cfg.LoadManifest(path)
	require.NoError(t, err)
	require.Equal(t, "v2", m.Version)
	require.Equal(t, []string{"cdn.example.com"}, m.CacheableHosts)
	require.Equal(t, 100, m.MaxEntries)
	require.Equal(t, 3*time.Second, m.NetworkTimeout)
	require.True(t, m.SkipWaiting)

	m, err = cfg.ParseManifest([]byte("version = \"v3\"\nskip_waiting = false\n"))
	require.NoError(t, err)
	require.False(t, m.SkipWaiting)
}

func TestParseManifest_Errors(t *testing.T) {
	_, err := cfg.ParseManifest([]byte("static_files = [\"/\"]\n"))
	require.Error(t, err)

	_, err = cfg.ParseManifest([]byte("version = \"v1\"\nnetwork_timeout = \"soon\"\n"))
	require.Error(t, err)

	_, err = cfg.LoadManifest(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
