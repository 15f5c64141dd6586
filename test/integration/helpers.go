package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
	"github.com/LuisBuenanyo/eos-phone-home/internal/facts"
)

// serverConfig returns a census server configuration bound to ephemeral
// ports, with a throwaway database.
func serverConfig() *config.ServerConfig {
	return &config.ServerConfig{
		ListenAddr: "127.0.0.1:0",
		AdminAddr:  "127.0.0.1:0",
		Database:   ":memory:",
	}
}

// hostFixture fabricates the host surfaces the fact resolver reads,
// describing one imaginary Endless machine. The sysroot carries no image
// attribute, so the machine reports under the fallback channel.
func hostFixture(t *testing.T) facts.Sources {
	t.Helper()

	dir := t.TempDir()
	sources := facts.Sources{
		DeviceTreeCompatible: filepath.Join(dir, "compatible"),
		DeviceTreeSerial:     filepath.Join(dir, "serial-number"),
		DMIVendor:            filepath.Join(dir, "sys_vendor"),
		DMIProduct:           filepath.Join(dir, "product_name"),
		DMISerial:            filepath.Join(dir, "product_serial"),
		ImageXattrPaths:      []string{filepath.Join(dir, "sysroot")},
		ImageXattrName:       "user.eos-image-version",
		MetricsConfig:        filepath.Join(dir, "eos-metrics-permissions.conf"),
		OSRelease:            filepath.Join(dir, "os-release"),
		Cmdline:              filepath.Join(dir, "cmdline"),
	}

	writeFixture(t, sources.DMIVendor, "Endless\n")
	writeFixture(t, sources.DMIProduct, "EC-200\n")
	writeFixture(t, sources.DMISerial, "SN-EC200-0042\n")
	writeFixture(t, sources.OSRelease, "NAME=\"Endless\"\nVERSION=\"3.9.1\"\n")
	writeFixture(t, sources.Cmdline, "ro quiet splash\n")
	writeFixture(t, sources.MetricsConfig,
		"[global]\nenabled=true\nuploading_enabled=true\nenvironment=production\n")
	require.NoError(t, os.Mkdir(sources.ImageXattrPaths[0], 0o755))

	return sources
}

// writeFixture writes a single fixture file.
func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// compareGolden checks got against the golden file, rewriting the file first
// when the -update-golden flag is set.
func compareGolden(t *testing.T, goldenPath, got string, update bool) {
	t.Helper()

	if update {
		require.NoError(t, os.MkdirAll(filepath.Dir(goldenPath), 0o750))
		require.NoError(t, os.WriteFile(goldenPath, []byte(got), 0o600))
		t.Logf("Updated golden file: %s", goldenPath)
		return
	}

	want, err := os.ReadFile(goldenPath)
	require.NoError(t, err, "failed to read golden file: %s", goldenPath)
	require.Equal(t, string(want), got)
}
