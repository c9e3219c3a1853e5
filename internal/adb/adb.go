// Package adb shells out to the Android Debug Bridge to drive a connected
// device. Every command runs under a per-command timeout.
package adb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"iggrowth/pkg/errors"
	"iggrowth/pkg/logger"
)

// Controller runs adb commands against one device.
type Controller struct {
	adbPath string
	serial  string
	timeout time.Duration
	logger  logger.Logger
}

// ScreenSize is the device display resolution in pixels.
type ScreenSize struct {
	Width  int
	Height int
}

// New creates a controller. adbPath defaults to "adb" on PATH; serial may be
// empty, in which case Connect picks the first attached device.
func New(adbPath, serial string, timeout time.Duration) *Controller {
	if adbPath == "" {
		adbPath = "adb"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Controller{
		adbPath: adbPath,
		serial:  serial,
		timeout: timeout,
		logger:  logger.GetLogger(),
	}
}

// Serial returns the serial of the device in use, empty before Connect.
func (c *Controller) Serial() string {
	return c.serial
}

func (c *Controller) run(ctx context.Context, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	full := make([]string, 0, len(args)+2)
	if c.serial != "" {
		full = append(full, "-s", c.serial)
	}
	full = append(full, args...)

	cmd := exec.CommandContext(cmdCtx, c.adbPath, full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return "", errors.Wrap(errors.ErrorTypeDeviceUnavailable,
				fmt.Sprintf("adb %s timed out after %s", strings.Join(args, " "), c.timeout), err)
		}
		return "", errors.Wrap(errors.ErrorTypeDeviceUnavailable,
			fmt.Sprintf("adb %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out))), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Connect verifies a device is attached and, when no serial was configured,
// locks onto the first one listed.
func (c *Controller) Connect(ctx context.Context) error {
	out, err := c.run(ctx, "devices")
	if err != nil {
		return err
	}

	var serials []string
	for _, line := range strings.Split(out, "\n")[1:] {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	if len(serials) == 0 {
		return errors.New(errors.ErrorTypeDeviceUnavailable, "no android devices attached")
	}

	if c.serial == "" {
		c.serial = serials[0]
	} else {
		found := false
		for _, s := range serials {
			if s == c.serial {
				found = true
				break
			}
		}
		if !found {
			return errors.New(errors.ErrorTypeDeviceUnavailable,
				fmt.Sprintf("device %q not attached", c.serial))
		}
	}

	c.logger.InfoWithFields("device connected", map[string]interface{}{
		"serial": c.serial,
	})
	return nil
}

var sizeRe = regexp.MustCompile(`(\d+)x(\d+)`)

// GetScreenSize reads the display resolution via wm size.
func (c *Controller) GetScreenSize(ctx context.Context) (ScreenSize, error) {
	out, err := c.run(ctx, "shell", "wm", "size")
	if err != nil {
		return ScreenSize{}, err
	}
	m := sizeRe.FindStringSubmatch(out)
	if m == nil {
		return ScreenSize{}, errors.New(errors.ErrorTypeDeviceUnavailable,
			fmt.Sprintf("unparseable wm size output %q", out))
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return ScreenSize{Width: w, Height: h}, nil
}

// Tap sends a tap at absolute pixel coordinates.
func (c *Controller) Tap(ctx context.Context, x, y int) error {
	_, err := c.run(ctx, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// Swipe drags from one point to another over durationMillis.
func (c *Controller) Swipe(ctx context.Context, x1, y1, x2, y2, durationMillis int) error {
	_, err := c.run(ctx, "shell", "input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1), strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.Itoa(durationMillis))
	return err
}

// TypeText types text into the focused field. Spaces and shell
// metacharacters are escaped for input text.
func (c *Controller) TypeText(ctx context.Context, text string) error {
	escaped := strings.ReplaceAll(text, " ", "%s")
	escaped = strings.ReplaceAll(escaped, "&", `\&`)
	_, err := c.run(ctx, "shell", "input", "text", escaped)
	return err
}

// KeyEvent presses a key by name, e.g. KEYCODE_BACK.
func (c *Controller) KeyEvent(ctx context.Context, keycode string) error {
	_, err := c.run(ctx, "shell", "input", "keyevent", keycode)
	return err
}

// OpenURI dispatches a VIEW intent for uri to the given package.
func (c *Controller) OpenURI(ctx context.Context, uri, pkg string) error {
	args := []string{"shell", "am", "start", "-a", "android.intent.action.VIEW", "-d", uri}
	if pkg != "" {
		args = append(args, "-p", pkg)
	}
	_, err := c.run(ctx, args...)
	return err
}

// AppRunning reports whether the package has a live process.
func (c *Controller) AppRunning(ctx context.Context, pkg string) (bool, error) {
	out, err := c.run(ctx, "shell", "pidof", pkg)
	if err != nil {
		// pidof exits non-zero when no process matches.
		return false, nil
	}
	return out != "", nil
}

// StartApp launches the package via monkey so no activity name is needed.
func (c *Controller) StartApp(ctx context.Context, pkg string) error {
	_, err := c.run(ctx, "shell", "monkey", "-p", pkg,
		"-c", "android.intent.category.LAUNCHER", "1")
	return err
}

// StopApp force-stops the package.
func (c *Controller) StopApp(ctx context.Context, pkg string) error {
	_, err := c.run(ctx, "shell", "am", "force-stop", pkg)
	return err
}

// Screenshot captures the screen as PNG and writes it to path.
func (c *Controller) Screenshot(ctx context.Context, path string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	full := []string{}
	if c.serial != "" {
		full = append(full, "-s", c.serial)
	}
	full = append(full, "exec-out", "screencap", "-p")

	cmd := exec.CommandContext(cmdCtx, c.adbPath, full...)
	out, err := cmd.Output()
	if err != nil {
		return errors.Wrap(errors.ErrorTypeDeviceUnavailable, "screencap", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrap(errors.ErrorTypeDeviceUnavailable, "write screenshot", err)
	}
	return nil
}
