// Tests here run against a stand-in adb executable, so no connected hardware
// is needed.
package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qaloop-dev/qaloop/internal/config"
)

// fakeADB writes an executable shell script standing in for adb and returns
// its path.
func fakeADB(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adb")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

// recordingADB is a fake adb that logs every invocation's arguments to a file
// and prints the given stdout.
func recordingADB(t *testing.T, stdout string) (adbPath, recordPath string) {
	t.Helper()
	recordPath = filepath.Join(t.TempDir(), "calls.log")
	script := fmt.Sprintf("echo \"$@\" >> %q\nprintf '%%s' %q\n", recordPath, stdout)
	return fakeADB(t, script), recordPath
}

func testDevice(t *testing.T, adbPath string) *AndroidDevice {
	t.Helper()
	return &AndroidDevice{
		serial:  "emulator-5554",
		adbPath: adbPath,
		logger:  zaptest.NewLogger(t),
	}
}

func recordedCalls(t *testing.T, recordPath string) []string {
	t.Helper()
	data, err := os.ReadFile(recordPath)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// -- Test Cases: text escaping --

func TestEscapeInputText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "hello", expected: "hello"},
		{name: "spaces", input: "My Vault", expected: "My%sVault"},
		{name: "quotes", input: `it's "fine"`, expected: `it\'s%s\"fine\"`},
		{name: "shell metacharacters", input: "a&b<c>d;e(f)g|h", expected: `a\&b\<c\>d\;e\(f\)g\|h`},
		{name: "empty", input: "", expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, escapeInputText(tt.input))
		})
	}
}

// -- Test Cases: adb discovery --

func TestFindADB_ConfiguredPath(t *testing.T) {
	path := fakeADB(t, "exit 0")
	got, err := findADB(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestFindADB_ConfiguredPathMissing(t *testing.T) {
	_, err := findADB(filepath.Join(t.TempDir(), "nope", "adb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configured adb path")
}

func TestFindADB_AndroidHomeFallback(t *testing.T) {
	home := t.TempDir()
	tools := filepath.Join(home, "platform-tools")
	require.NoError(t, os.MkdirAll(tools, 0o755))
	candidate := filepath.Join(tools, "adb")
	require.NoError(t, os.WriteFile(candidate, []byte("#!/bin/sh\n"), 0o755))

	t.Setenv("PATH", "")
	t.Setenv("ANDROID_HOME", home)

	got, err := findADB("")
	require.NoError(t, err)
	assert.Equal(t, candidate, got)
}

func TestFindADB_NotFound(t *testing.T) {
	t.Setenv("PATH", "")
	t.Setenv("ANDROID_HOME", "")

	_, err := findADB("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adb not found")
}

// -- Test Cases: serial detection --

func TestDetectSerial(t *testing.T) {
	adb := fakeADB(t, `echo "List of devices attached"
echo "emulator-5554	device"
echo "emulator-5556	device"`)

	serial, err := detectSerial(context.Background(), adb)
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", serial, "the first ready device wins")
}

func TestDetectSerial_SkipsUnauthorized(t *testing.T) {
	adb := fakeADB(t, `echo "List of devices attached"
echo "emulator-5554	unauthorized"
echo "emulator-5556	device"`)

	serial, err := detectSerial(context.Background(), adb)
	require.NoError(t, err)
	assert.Equal(t, "emulator-5556", serial)
}

func TestDetectSerial_NoDevices(t *testing.T) {
	adb := fakeADB(t, `echo "List of devices attached"`)

	_, err := detectSerial(context.Background(), adb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no connected devices")
}

// -- Test Cases: session setup --

func TestNewAndroid_SessionEstablished(t *testing.T) {
	adb := fakeADB(t, "echo device")
	cfg := config.DeviceConfig{Serial: "emulator-5554", ADBPath: adb}

	d, err := NewAndroid(context.Background(), cfg, zaptest.NewLogger(t))

	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", d.Serial())
}

func TestNewAndroid_AutoDetectFails(t *testing.T) {
	adb := fakeADB(t, `echo "List of devices attached"`)
	cfg := config.DeviceConfig{ADBPath: adb}

	_, err := NewAndroid(context.Background(), cfg, zaptest.NewLogger(t))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestNewAndroid_BadADBPath(t *testing.T) {
	cfg := config.DeviceConfig{ADBPath: filepath.Join(t.TempDir(), "missing")}

	_, err := NewAndroid(context.Background(), cfg, zaptest.NewLogger(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "configured adb path")
}

// -- Test Cases: command construction --

func TestCommandConstruction(t *testing.T) {
	adb, record := recordingADB(t, "")
	d := testDevice(t, adb)
	ctx := context.Background()

	require.NoError(t, d.Tap(ctx, 540, 1480))
	require.NoError(t, d.LongPress(ctx, 100, 200))
	require.NoError(t, d.Swipe(ctx, 540, 1410, 540, 510))
	require.NoError(t, d.TypeText(ctx, "My Vault"))
	require.NoError(t, d.PressBack(ctx))
	require.NoError(t, d.PressHome(ctx))
	require.NoError(t, d.PressEnter(ctx))
	require.NoError(t, d.LaunchApp(ctx, "md.obsidian"))
	require.NoError(t, d.StopApp(ctx, "md.obsidian"))

	calls := recordedCalls(t, record)
	expected := []string{
		"-s emulator-5554 shell input tap 540 1480",
		"-s emulator-5554 shell input swipe 100 200 100 200 600",
		"-s emulator-5554 shell input swipe 540 1410 540 510 300",
		"-s emulator-5554 shell input text My%sVault",
		"-s emulator-5554 shell input keyevent 4",
		"-s emulator-5554 shell input keyevent 3",
		"-s emulator-5554 shell input keyevent 66",
		"-s emulator-5554 shell monkey -p md.obsidian -c android.intent.category.LAUNCHER 1",
		"-s emulator-5554 shell am force-stop md.obsidian",
	}
	assert.Equal(t, expected, calls)
}

func TestADBError_IncludesCommandAndStderr(t *testing.T) {
	adb := fakeADB(t, `echo "error: device offline" >&2
exit 1`)
	d := testDevice(t, adb)

	err := d.Tap(context.Background(), 1, 2)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "adb shell input tap 1 2")
	assert.Contains(t, err.Error(), "error: device offline")
}

// -- Test Cases: queries --

func TestScreenSize(t *testing.T) {
	adb := fakeADB(t, `echo "Physical size: 1080x2400"`)
	d := testDevice(t, adb)

	w, h, err := d.ScreenSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1080, w)
	assert.Equal(t, 2400, h)
}

func TestScreenSize_OverrideWins(t *testing.T) {
	adb := fakeADB(t, `echo "Physical size: 1080x2400"
echo "Override size: 720x1600"`)
	d := testDevice(t, adb)

	w, h, err := d.ScreenSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 720, w)
	assert.Equal(t, 1600, h)
}

func TestScreenSize_Unparseable(t *testing.T) {
	adb := fakeADB(t, `echo "something unexpected"`)
	d := testDevice(t, adb)

	_, _, err := d.ScreenSize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not parse screen size")
}

func TestCaptureScreen(t *testing.T) {
	adb := fakeADB(t, `printf '%s' PNGDATA`)
	d := testDevice(t, adb)

	out, err := d.CaptureScreen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), out)
}

func TestCaptureScreen_Empty(t *testing.T) {
	adb := fakeADB(t, "exit 0")
	d := testDevice(t, adb)

	_, err := d.CaptureScreen(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screencap returned no data")
}

func TestIsInstalled(t *testing.T) {
	adb := fakeADB(t, `echo "package:md.obsidian"`)
	d := testDevice(t, adb)

	installed, err := d.IsInstalled(context.Background(), "md.obsidian")
	require.NoError(t, err)
	assert.True(t, installed)
}

// pm list matches by prefix, so a sibling package must not count.
func TestIsInstalled_PrefixDoesNotMatch(t *testing.T) {
	adb := fakeADB(t, `echo "package:md.obsidian.debug"`)
	d := testDevice(t, adb)

	installed, err := d.IsInstalled(context.Background(), "md.obsidian")
	require.NoError(t, err)
	assert.False(t, installed)
}
