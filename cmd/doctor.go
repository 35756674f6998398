package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/qaloop-dev/qaloop/internal/device"
	"github.com/qaloop-dev/qaloop/internal/observability"
)

// newDoctorCmd verifies the environment without running any scenario.
func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the device, app, and reasoning backend are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			logger := observability.GetLogger()
			failures := 0

			check := func(name string, err error) {
				if err != nil {
					failures++
					fmt.Fprintf(out, "✗ %s: %v\n", name, err)
					return
				}
				fmt.Fprintf(out, "✓ %s\n", name)
			}

			// The device session covers adb discovery, serial resolution, and
			// device readiness in one shot.
			dev, err := device.NewAndroid(ctx, cfg.Device, logger)
			check("device session", err)

			if dev != nil {
				info, err := dev.Info(ctx)
				check("device info", err)
				if err == nil {
					kind := "device"
					if info.Emulator {
						kind = "emulator"
					}
					fmt.Fprintf(out, "    %s %s (%s, Android %s, SDK %s)\n",
						kind, info.Serial, info.Model, info.AndroidVersion, info.SDK)
				}

				installed, err := dev.IsInstalled(ctx, cfg.Device.AppPackage)
				if err == nil && !installed {
					err = fmt.Errorf("package %q not found on device", cfg.Device.AppPackage)
				}
				check(fmt.Sprintf("app %s installed", cfg.Device.AppPackage), err)
			}

			check("reasoning api key", checkAPIKey(cfg.LLM.APIKey))
			check("report directory writable", checkWritableDir(cfg.Report.Dir))

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Fprintln(out, "\nAll checks passed.")
			return nil
		},
	}
}

func checkAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("no API key configured (set GEMINI_API_KEY)")
	}
	return nil
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_, werr := io.WriteString(f, "ok")
	cerr := f.Close()
	_ = os.Remove(name)
	if werr != nil {
		return werr
	}
	return cerr
}
