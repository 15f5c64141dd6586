package facts

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
)

// Sources holds the host surfaces facts are read from. Tests point these at
// fixture files; production uses DefaultSources.
type Sources struct {
	DeviceTreeCompatible string
	DeviceTreeSerial     string
	DMIVendor            string
	DMIProduct           string
	DMISerial            string
	ImageXattrPaths      []string
	ImageXattrName       string
	MetricsConfig        string
	OSRelease            string
	Cmdline              string
}

// DefaultSources returns the production source locations.
func DefaultSources() Sources {
	return Sources{
		DeviceTreeCompatible: "/proc/device-tree/compatible",
		DeviceTreeSerial:     "/proc/device-tree/serial-number",
		DMIVendor:            "/sys/class/dmi/id/sys_vendor",
		DMIProduct:           "/sys/class/dmi/id/product_name",
		DMISerial:            "/sys/class/dmi/id/product_serial",
		ImageXattrPaths:      []string{"/sysroot", "/"},
		ImageXattrName:       "user.eos-image-version",
		MetricsConfig:        "/etc/metrics/eos-metrics-permissions.conf",
		OSRelease:            "/etc/os-release",
		Cmdline:              "/proc/cmdline",
	}
}

// Kernel command line marker tokens, matched as whole words.
var (
	liveBootPattern    = regexp.MustCompile(`\bendless\.live_boot\b`)
	imageDevicePattern = regexp.MustCompile(`\bendless\.image\.device\b`)
)

const metricsEnvironmentMaxLen = 16

// resolveDTInfo reads the device tree compatibility string. The raw data is
// NUL-delimited; only the first field matters.
func resolveDTInfo(r *Resolver) (any, error) {
	raw, err := os.ReadFile(r.sources.DeviceTreeCompatible)
	if err != nil {
		return "", err
	}
	return firstNULField(raw), nil
}

// resolveVendor prefers the DMI table and falls back to the device tree
// compatibility string (comma field 0).
func resolveVendor(r *Resolver) (any, error) {
	raw, err := os.ReadFile(r.sources.DMIVendor)
	if err == nil {
		return strings.TrimSpace(string(raw)), nil
	}
	slog.Debug("DMI vendor table unavailable, trying device tree", logfields.Error(err))
	return r.deviceTreeField(0)
}

// resolveProduct prefers the DMI table and falls back to the device tree
// compatibility string (comma field 1).
func resolveProduct(r *Resolver) (any, error) {
	raw, err := os.ReadFile(r.sources.DMIProduct)
	if err == nil {
		return strings.TrimSpace(string(raw)), nil
	}
	slog.Debug("DMI product table unavailable, trying device tree", logfields.Error(err))
	return r.deviceTreeField(1)
}

func (r *Resolver) deviceTreeField(index int) (any, error) {
	dt, err := r.stringVar("dt_info")
	if err != nil {
		return "", err
	}
	if dt == Unknown {
		return "", fmt.Errorf("device tree compatibility data unavailable")
	}
	parts := strings.Split(dt, ",")
	if index >= len(parts) {
		return "", fmt.Errorf("device tree field %d missing in %q", index, dt)
	}
	return strings.TrimSpace(parts[index]), nil
}

// resolveImage reads the installed image identifier from an extended
// attribute, trying each candidate mount point in order.
func resolveImage(r *Resolver) (any, error) {
	var lastErr error
	for _, path := range r.sources.ImageXattrPaths {
		value, err := readXattr(path, r.sources.ImageXattrName)
		if err == nil {
			return strings.TrimSpace(value), nil
		}
		lastErr = err
		slog.Debug("Image attribute not readable", logfields.Path(path), logfields.Error(err))
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate mount points configured")
	}
	return "", fmt.Errorf("image version attribute %s: %w", r.sources.ImageXattrName, lastErr)
}

func readXattr(path, name string) (string, error) {
	size, err := unix.Getxattr(path, name, nil)
	if err != nil {
		return "", err
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(path, name, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// resolveMetrics reads the metrics permissions keyfile. Reporting is enabled
// only when both the enabled and uploading_enabled flags are true.
func resolveMetrics(r *Resolver) (any, error) {
	entries, err := parseKeyFile(r.sources.MetricsConfig)
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{Environment: Unknown}
	m.Enabled = parseKeyFileBool(entries["enabled"]) && parseKeyFileBool(entries["uploading_enabled"])
	if env := entries["environment"]; env != "" {
		m.Environment = truncateRunes(env, metricsEnvironmentMaxLen)
	}
	return m, nil
}

func resolveMetricsEnabled(r *Resolver) (any, error) {
	m, err := r.metricsVar()
	if err != nil {
		return false, err
	}
	return m.Enabled, nil
}

func resolveMetricsEnvironment(r *Resolver) (any, error) {
	m, err := r.metricsVar()
	if err != nil {
		return Unknown, err
	}
	return m.Environment, nil
}

// resolveRelease extracts VERSION from the OS release file, stripped of
// surrounding quotes.
func resolveRelease(r *Resolver) (any, error) {
	entries, err := parseKeyFile(r.sources.OSRelease)
	if err != nil {
		return "", err
	}
	version, ok := entries["VERSION"]
	if !ok {
		return "", fmt.Errorf("no VERSION entry in %s", r.sources.OSRelease)
	}
	return version, nil
}

// resolveSerial reads the hardware serial number from the DMI table, falling
// back to the firmware-provided device tree entry.
func resolveSerial(r *Resolver) (any, error) {
	raw, err := os.ReadFile(r.sources.DMISerial)
	if err == nil {
		return strings.TrimSpace(string(raw)), nil
	}
	slog.Debug("DMI serial unavailable, trying device tree", logfields.Error(err))

	raw, dtErr := os.ReadFile(r.sources.DeviceTreeSerial)
	if dtErr == nil {
		return firstNULField(raw), nil
	}
	return "", fmt.Errorf("reading the serial number may require elevated privileges: %w", err)
}

func resolveCmdline(r *Resolver) (any, error) {
	raw, err := os.ReadFile(r.sources.Cmdline)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// resolveLive reports whether the kernel command line carries the live-boot
// marker token.
func resolveLive(r *Resolver) (any, error) {
	cmdline, err := r.stringVar("cmdline")
	if err != nil {
		return false, err
	}
	return liveBootPattern.MatchString(cmdline), nil
}

// resolveDualboot reports a companion-OS installation: never on a live boot,
// and only when the command line references the image device.
func resolveDualboot(r *Resolver) (any, error) {
	live, err := r.boolVar("live")
	if err != nil {
		return false, err
	}
	if live {
		return false, nil
	}
	cmdline, err := r.stringVar("cmdline")
	if err != nil {
		return false, err
	}
	return imageDevicePattern.MatchString(cmdline), nil
}

func resolveCount(r *Resolver) (any, error) {
	if r.CountSource == nil {
		return int64(0), nil
	}
	v, err := r.CountSource()
	if err != nil {
		return int64(0), err
	}
	return v, nil
}

// firstNULField returns the first NUL-delimited field of raw firmware data.
func firstNULField(raw []byte) string {
	field, _, _ := strings.Cut(string(raw), "\x00")
	return strings.TrimSpace(field)
}

// parseKeyFile reads a KEY=VALUE file (os-release, GKeyFile-style permission
// files). Section headers and comments are skipped; quotes are stripped.
func parseKeyFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		entries[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseKeyFileBool(value string) bool {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return b
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
