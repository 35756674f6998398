// Package device drives a single Android device session over ADB.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qaloop-dev/qaloop/api/schemas"
	"github.com/qaloop-dev/qaloop/internal/config"
)

// ErrDeviceUnavailable reports that no usable device session could be
// established. Callers match it with errors.Is to distinguish setup faults
// from mid-run command failures.
var ErrDeviceUnavailable = errors.New("device unavailable")

// Android key event codes used by the runner.
const (
	keycodeHome  = 3
	keycodeBack  = 4
	keycodeEnter = 66
)

const (
	longPressMillis = 600
	swipeMillis     = 300
	hierarchyPath   = "/sdcard/ui_dump.xml"
)

// AndroidDevice implements schemas.Device by shelling out to adb. One instance
// owns one device session; callers must not interleave commands from multiple
// goroutines, matching the single-session model of the runner.
type AndroidDevice struct {
	serial     string
	adbPath    string
	cmdTimeout time.Duration
	logger     *zap.Logger
}

var _ schemas.Device = (*AndroidDevice)(nil)

// NewAndroid locates adb, resolves the device serial (auto-detecting the first
// connected device when cfg.Serial is empty), and verifies the session is
// reachable before returning.
func NewAndroid(ctx context.Context, cfg config.DeviceConfig, logger *zap.Logger) (*AndroidDevice, error) {
	adbPath, err := findADB(cfg.ADBPath)
	if err != nil {
		return nil, err
	}

	serial := cfg.Serial
	if serial == "" {
		serial, err = detectSerial(ctx, adbPath)
		if err != nil {
			return nil, fmt.Errorf("%w: no serial configured and auto-detect failed: %v", ErrDeviceUnavailable, err)
		}
	}

	d := &AndroidDevice{
		serial:     serial,
		adbPath:    adbPath,
		cmdTimeout: cfg.CommandTimeout,
		logger:     logger.Named("device"),
	}

	if err := d.waitForDevice(ctx, 5*time.Second); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	d.logger.Info("Device session established", zap.String("serial", serial), zap.String("adb", adbPath))
	return d, nil
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

func (d *AndroidDevice) Tap(ctx context.Context, x, y int) error {
	_, err := d.shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

func (d *AndroidDevice) LongPress(ctx context.Context, x, y int) error {
	// adb has no dedicated long-press; a same-point swipe with a hold duration is the standard trick.
	xs, ys := strconv.Itoa(x), strconv.Itoa(y)
	_, err := d.shell(ctx, "input", "swipe", xs, ys, xs, ys, strconv.Itoa(longPressMillis))
	return err
}

func (d *AndroidDevice) Swipe(ctx context.Context, x1, y1, x2, y2 int) error {
	_, err := d.shell(ctx, "input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1),
		strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.Itoa(swipeMillis))
	return err
}

func (d *AndroidDevice) TypeText(ctx context.Context, text string) error {
	_, err := d.shell(ctx, "input", "text", escapeInputText(text))
	return err
}

func (d *AndroidDevice) PressBack(ctx context.Context) error {
	return d.keyEvent(ctx, keycodeBack)
}

func (d *AndroidDevice) PressHome(ctx context.Context) error {
	return d.keyEvent(ctx, keycodeHome)
}

func (d *AndroidDevice) PressEnter(ctx context.Context) error {
	return d.keyEvent(ctx, keycodeEnter)
}

func (d *AndroidDevice) keyEvent(ctx context.Context, code int) error {
	_, err := d.shell(ctx, "input", "keyevent", strconv.Itoa(code))
	return err
}

// CaptureScreen grabs the current frame as PNG bytes. exec-out avoids the
// stdout CRLF mangling that plain `adb shell screencap` suffers from.
func (d *AndroidDevice) CaptureScreen(ctx context.Context) ([]byte, error) {
	out, err := d.adbRaw(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("screencap returned no data")
	}
	return out, nil
}

// ScreenSize parses `wm size` output such as "Physical size: 1344x2992".
func (d *AndroidDevice) ScreenSize(ctx context.Context) (int, int, error) {
	out, err := d.shell(ctx, "wm", "size")
	if err != nil {
		return 0, 0, err
	}
	// An override line, when present, reflects the active resolution.
	for _, prefix := range []string{"Override size:", "Physical size:"} {
		if idx := strings.Index(out, prefix); idx >= 0 {
			dims := strings.TrimSpace(strings.SplitN(out[idx+len(prefix):], "\n", 2)[0])
			parts := strings.SplitN(dims, "x", 2)
			if len(parts) != 2 {
				continue
			}
			w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
			h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
			if errW == nil && errH == nil {
				return w, h, nil
			}
		}
	}
	return 0, 0, fmt.Errorf("could not parse screen size from %q", strings.TrimSpace(out))
}

// UIHierarchy dumps the current UI tree and returns its XML.
func (d *AndroidDevice) UIHierarchy(ctx context.Context) ([]byte, error) {
	if _, err := d.shell(ctx, "uiautomator", "dump", hierarchyPath); err != nil {
		return nil, fmt.Errorf("uiautomator dump failed: %w", err)
	}
	out, err := d.shell(ctx, "cat", hierarchyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ui dump: %w", err)
	}
	return []byte(out), nil
}

// TapByText locates a visible element whose text or content description
// matches the label and taps its center.
func (d *AndroidDevice) TapByText(ctx context.Context, label string) error {
	xml, err := d.UIHierarchy(ctx)
	if err != nil {
		return err
	}
	x, y, err := locateByText(xml, label)
	if err != nil {
		return err
	}
	d.logger.Debug("Resolved label to coordinates", zap.String("label", label), zap.Int("x", x), zap.Int("y", y))
	return d.Tap(ctx, x, y)
}

func (d *AndroidDevice) LaunchApp(ctx context.Context, pkg string) error {
	// monkey launches the default LAUNCHER activity without needing its name.
	_, err := d.shell(ctx, "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
	return err
}

func (d *AndroidDevice) StopApp(ctx context.Context, pkg string) error {
	_, err := d.shell(ctx, "am", "force-stop", pkg)
	return err
}

func (d *AndroidDevice) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	out, err := d.shell(ctx, "pm", "list", "packages", pkg)
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "package:"+pkg {
			return true, nil
		}
	}
	return false, nil
}

func (d *AndroidDevice) Info(ctx context.Context) (schemas.DeviceInfo, error) {
	info := schemas.DeviceInfo{Serial: d.serial}

	if model, err := d.shell(ctx, "getprop", "ro.product.model"); err == nil {
		info.Model = strings.TrimSpace(model)
	}
	if mfr, err := d.shell(ctx, "getprop", "ro.product.manufacturer"); err == nil {
		info.Manufacturer = strings.TrimSpace(mfr)
	}
	if ver, err := d.shell(ctx, "getprop", "ro.build.version.release"); err == nil {
		info.AndroidVersion = strings.TrimSpace(ver)
	}
	if sdk, err := d.shell(ctx, "getprop", "ro.build.version.sdk"); err == nil {
		info.SDK = strings.TrimSpace(sdk)
	}
	qemu, _ := d.shell(ctx, "getprop", "ro.kernel.qemu")
	info.Emulator = strings.TrimSpace(qemu) == "1"

	return info, nil
}

// StreamLogcat pipes `adb logcat` into w until the context is cancelled.
// Cancellation is the expected way to stop the stream and is not an error.
func (d *AndroidDevice) StreamLogcat(ctx context.Context, w io.Writer) error {
	args := []string{"-s", d.serial, "logcat", "-v", "time"}
	cmd := exec.CommandContext(ctx, d.adbPath, args...)
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("logcat stream ended: %w", err)
	}
	return nil
}

// shell runs `adb -s <serial> shell <args...>` with the command timeout applied.
func (d *AndroidDevice) shell(ctx context.Context, args ...string) (string, error) {
	out, err := d.adbRaw(ctx, append([]string{"shell"}, args...)...)
	return string(out), err
}

// adbRaw runs an adb command and returns raw stdout bytes.
func (d *AndroidDevice) adbRaw(ctx context.Context, args ...string) ([]byte, error) {
	if d.cmdTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cmdTimeout)
		defer cancel()
	}

	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, d.adbPath, cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return nil, fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, detail)
	}
	return stdout.Bytes(), nil
}

// waitForDevice polls `adb get-state` until the device reports ready.
func (d *AndroidDevice) waitForDevice(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.isConnected(ctx) {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for device %s", d.serial)
}

func (d *AndroidDevice) isConnected(ctx context.Context) bool {
	out, err := d.adbRaw(ctx, "get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "device"
}

// detectSerial picks the first device in `adb devices` output.
func detectSerial(ctx context.Context, adbPath string) (string, error) {
	cmd := exec.CommandContext(ctx, adbPath, "devices")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			return fields[0], nil
		}
	}
	return "", fmt.Errorf("no connected devices found")
}

// findADB locates the adb binary: explicit config, then PATH, then ANDROID_HOME.
func findADB(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured adb path %q: %w", configured, err)
		}
		return configured, nil
	}
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	if home := os.Getenv("ANDROID_HOME"); home != "" {
		candidate := filepath.Join(home, "platform-tools", "adb")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("adb not found in PATH; ensure the Android SDK platform-tools are installed")
}

// escapeInputText prepares text for `input text`: spaces become %s and shell
// metacharacters are backslash-escaped.
func escapeInputText(text string) string {
	replacer := strings.NewReplacer(
		" ", "%s",
		"'", `\'`,
		`"`, `\"`,
		"&", `\&`,
		"<", `\<`,
		">", `\>`,
		";", `\;`,
		"(", `\(`,
		")", `\)`,
		"|", `\|`,
	)
	return replacer.Replace(text)
}
