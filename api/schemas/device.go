// -- api/schemas/device.go --
package schemas

import (
	"context"
	"io"
)

// DeviceInfo describes the connected device or emulator.
type DeviceInfo struct {
	Serial         string `json:"serial"`
	Model          string `json:"model"`
	Manufacturer   string `json:"manufacturer"`
	AndroidVersion string `json:"android_version"`
	SDK            string `json:"sdk"`
	Emulator       bool   `json:"emulator"`
}

// Device defines the interface for driving a single Android device session. It
// wraps the raw automation primitives (taps, swipes, key events, screen capture)
// plus the app lifecycle operations the runner needs between scenarios. Every
// call blocks until the underlying device command completes or the context is
// cancelled; success means only that the command itself completed, not that it
// had the intended on-screen effect.
type Device interface {
	Tap(ctx context.Context, x, y int) error                       // Taps at absolute screen coordinates.
	TapByText(ctx context.Context, label string) error             // Locates a visible element by its text and taps its center.
	LongPress(ctx context.Context, x, y int) error                 // Press-and-hold at absolute coordinates.
	TypeText(ctx context.Context, text string) error               // Types text into the focused element.
	Swipe(ctx context.Context, x1, y1, x2, y2 int) error           // Swipes between two absolute points.
	PressBack(ctx context.Context) error                           // Sends the hardware back key.
	PressHome(ctx context.Context) error                           // Sends the home key.
	PressEnter(ctx context.Context) error                          // Sends the enter key.
	CaptureScreen(ctx context.Context) ([]byte, error)             // Returns the current screen as PNG bytes.
	ScreenSize(ctx context.Context) (width, height int, err error) // Reports the device resolution.
	UIHierarchy(ctx context.Context) ([]byte, error)               // Dumps the current UI tree as XML.
	LaunchApp(ctx context.Context, pkg string) error               // Launches an app by package name.
	StopApp(ctx context.Context, pkg string) error                 // Force-stops an app.
	IsInstalled(ctx context.Context, pkg string) (bool, error)     // Reports whether a package is installed.
	Info(ctx context.Context) (DeviceInfo, error)                  // Gathers device identity properties.
	StreamLogcat(ctx context.Context, w io.Writer) error           // Streams device logs until the context ends.
}
