package facts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func fixtureSources(t *testing.T) (Sources, string) {
	t.Helper()
	dir := t.TempDir()
	return Sources{
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
	}, dir
}

func writeSource(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolve_UnknownVariable_ReturnsError(t *testing.T) {
	sources, _ := fixtureSources(t)
	r := NewResolver(sources)

	_, err := r.Resolve("no_such_variable")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no_such_variable")
}

func TestResolve_MemoizesFirstResult(t *testing.T) {
	sources, _ := fixtureSources(t)
	writeSource(t, sources.Cmdline, "ro quiet splash\n")
	r := NewResolver(sources)

	first, err := r.Resolve("cmdline")
	require.NoError(t, err)
	require.Equal(t, "ro quiet splash", first)

	// A later source change must not affect the cached value.
	require.NoError(t, os.Remove(sources.Cmdline))
	second, err := r.Resolve("cmdline")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestResolve_MissingSource_FallsBackToUnknown(t *testing.T) {
	sources, _ := fixtureSources(t)
	r := NewResolver(sources)

	v, err := r.Resolve("release")
	require.NoError(t, err)
	require.Equal(t, Unknown, v)
}

func TestResolve_EmptySource_NormalizesToUnknown(t *testing.T) {
	sources, _ := fixtureSources(t)
	writeSource(t, sources.DMIVendor, "\n")
	r := NewResolver(sources)

	v, err := r.Resolve("vendor")
	require.NoError(t, err)
	require.Equal(t, Unknown, v)
}

func TestPrime_OverridesCachedValue(t *testing.T) {
	sources, _ := fixtureSources(t)
	r := NewResolver(sources)

	v, err := r.Resolve("count")
	require.NoError(t, err)
	require.Equal(t, int64(0), v)

	r.Prime("count", int64(42))
	v, err = r.Resolve("count")
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
}

func TestResolve_DTInfo_TakesFirstNULField(t *testing.T) {
	sources, _ := fixtureSources(t)
	writeSource(t, sources.DeviceTreeCompatible, "endless,ec100\x00rockchip,rk3288\x00")
	r := NewResolver(sources)

	v, err := r.Resolve("dt_info")
	require.NoError(t, err)
	require.Equal(t, "endless,ec100", v)
}

func TestResolve_VendorAndProduct_PreferDMI(t *testing.T) {
	sources, _ := fixtureSources(t)
	writeSource(t, sources.DMIVendor, "ASUSTeK COMPUTER INC.\n")
	writeSource(t, sources.DMIProduct, "X550ZE\n")
	writeSource(t, sources.DeviceTreeCompatible, "endless,ec100\x00")
	r := NewResolver(sources)

	vendor, err := r.Resolve("vendor")
	require.NoError(t, err)
	require.Equal(t, "ASUSTeK COMPUTER INC.", vendor)

	product, err := r.Resolve("product")
	require.NoError(t, err)
	require.Equal(t, "X550ZE", product)
}

func TestResolve_VendorAndProduct_FallBackToDeviceTree(t *testing.T) {
	sources, _ := fixtureSources(t)
	writeSource(t, sources.DeviceTreeCompatible, "endless,ec100\x00rockchip,rk3288\x00")
	r := NewResolver(sources)

	vendor, err := r.Resolve("vendor")
	require.NoError(t, err)
	require.Equal(t, "endless", vendor)

	product, err := r.Resolve("product")
	require.NoError(t, err)
	require.Equal(t, "ec100", product)
}

func TestResolve_Image_FallsBackWhenUnreadable(t *testing.T) {
	sources, _ := fixtureSources(t)
	r := NewResolver(sources)

	v, err := r.Resolve("image")
	require.NoError(t, err)
	require.Equal(t, Unknown, v)
}

func TestResolve_Image_ReadsExtendedAttribute(t *testing.T) {
	sources, _ := fixtureSources(t)
	target := sources.ImageXattrPaths[0]
	require.NoError(t, os.Mkdir(target, 0o755))

	const image = "eos-eos3.9-amd64-amd64.190419-225606.base"
	if err := unix.Setxattr(target, sources.ImageXattrName, []byte(image), 0); err != nil {
		t.Skipf("extended attributes not supported here: %v", err)
	}

	r := NewResolver(sources)
	v, err := r.Resolve("image")
	require.NoError(t, err)
	require.Equal(t, image, v)
}

func TestResolve_Metrics_RequiresBothFlags(t *testing.T) {
	tests := []struct {
		name    string
		content string
		enabled bool
	}{
		{
			name:    "both flags set",
			content: "[global]\nenabled=true\nuploading_enabled=true\nenvironment=production\n",
			enabled: true,
		},
		{
			name:    "uploading disabled",
			content: "[global]\nenabled=true\nuploading_enabled=false\nenvironment=production\n",
			enabled: false,
		},
		{
			name:    "collection disabled",
			content: "[global]\nenabled=false\nuploading_enabled=true\n",
			enabled: false,
		},
		{
			name:    "uploading flag missing",
			content: "[global]\nenabled=true\n",
			enabled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources, _ := fixtureSources(t)
			writeSource(t, sources.MetricsConfig, tt.content)
			r := NewResolver(sources)

			v, err := r.Resolve("metrics_enabled")
			require.NoError(t, err)
			require.Equal(t, tt.enabled, v)
		})
	}
}

func TestResolve_MetricsEnvironment_TruncatesLongValues(t *testing.T) {
	sources, _ := fixtureSources(t)
	writeSource(t, sources.MetricsConfig,
		"[global]\nenabled=true\nuploading_enabled=true\nenvironment=development-playground\n")
	r := NewResolver(sources)

	v, err := r.Resolve("metrics_environment")
	require.NoError(t, err)
	require.Equal(t, "development-play", v)
	require.Len(t, v, 16)
}

func TestResolve_Metrics_MissingFileFallsBack(t *testing.T) {
	sources, _ := fixtureSources(t)
	r := NewResolver(sources)

	enabled, err := r.Resolve("metrics_enabled")
	require.NoError(t, err)
	require.Equal(t, false, enabled)

	env, err := r.Resolve("metrics_environment")
	require.NoError(t, err)
	require.Equal(t, Unknown, env)
}

func TestResolve_Release_StripsQuotes(t *testing.T) {
	sources, _ := fixtureSources(t)
	writeSource(t, sources.OSRelease,
		"NAME=\"Endless\"\nVERSION=\"3.9.3\"\nID=endless\nVERSION_ID=3.9.3\n")
	r := NewResolver(sources)

	v, err := r.Resolve("release")
	require.NoError(t, err)
	require.Equal(t, "3.9.3", v)
}

func TestResolve_Serial_PrefersDMI(t *testing.T) {
	sources, _ := fixtureSources(t)
	writeSource(t, sources.DMISerial, "F7NOCX018isf\n")
	r := NewResolver(sources)

	v, err := r.Resolve("serial")
	require.NoError(t, err)
	require.Equal(t, "F7NOCX018isf", v)
}

func TestResolve_Serial_FallsBackToDeviceTree(t *testing.T) {
	sources, _ := fixtureSources(t)
	writeSource(t, sources.DeviceTreeSerial, "100000000b8a65a7\x00")
	r := NewResolver(sources)

	v, err := r.Resolve("serial")
	require.NoError(t, err)
	require.Equal(t, "100000000b8a65a7", v)
}

func TestResolve_Live_MatchesWholeWordOnly(t *testing.T) {
	tests := []struct {
		name    string
		cmdline string
		live    bool
	}{
		{"bare token", "ro quiet endless.live_boot splash", true},
		{"token with value", "ro endless.live_boot=1 quiet", true},
		{"token only", "endless.live_boot", true},
		{"absent", "ro quiet splash", false},
		{"prefix of longer token", "ro endless.live_bootstrap quiet", false},
		{"embedded in another token", "ro xendless.live_boot quiet", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources, _ := fixtureSources(t)
			writeSource(t, sources.Cmdline, tt.cmdline+"\n")
			r := NewResolver(sources)

			v, err := r.Resolve("live")
			require.NoError(t, err)
			require.Equal(t, tt.live, v)
		})
	}
}

func TestResolve_Dualboot_FalseOnLiveBoot(t *testing.T) {
	sources, _ := fixtureSources(t)
	writeSource(t, sources.Cmdline, "endless.live_boot endless.image.device=/dev/sda3\n")
	r := NewResolver(sources)

	v, err := r.Resolve("dualboot")
	require.NoError(t, err)
	require.Equal(t, false, v)
}

func TestResolve_Dualboot_MatchesImageDevice(t *testing.T) {
	tests := []struct {
		name     string
		cmdline  string
		dualboot bool
	}{
		{"image device present", "ro endless.image.device=/dev/sda3 quiet", true},
		{"plain install", "ro quiet splash", false},
		{"similar prefix", "ro endless.image.devices quiet", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources, _ := fixtureSources(t)
			writeSource(t, sources.Cmdline, tt.cmdline+"\n")
			r := NewResolver(sources)

			v, err := r.Resolve("dualboot")
			require.NoError(t, err)
			require.Equal(t, tt.dualboot, v)
		})
	}
}

func TestResolve_Count_UsesCountSource(t *testing.T) {
	sources, _ := fixtureSources(t)
	r := NewResolver(sources)
	r.CountSource = func() (int64, error) { return 7, nil }

	v, err := r.Resolve("count")
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
}

func TestResolve_Count_FallsBackToZeroOnError(t *testing.T) {
	sources, _ := fixtureSources(t)
	r := NewResolver(sources)
	r.CountSource = func() (int64, error) { return 0, errors.New("counter unreadable") }

	v, err := r.Resolve("count")
	require.NoError(t, err)
	require.Equal(t, int64(0), v)
}
