package device

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"iggrowth/internal/adb"
	"iggrowth/pkg/account"
	"iggrowth/pkg/config"
	"iggrowth/pkg/errors"
	"iggrowth/pkg/logger"
)

const instagramPackage = "com.instagram.android"

// point is a screen position as a fraction of width and height, so taps
// survive different resolutions.
type point struct {
	x, y float64
}

// Button positions for the current Instagram layout. Fractions of the
// screen, resolved against the device resolution at startup.
var layout = map[string]point{
	"follow_button":   {0.85, 0.3},
	"unfollow_button": {0.85, 0.3},
	"back_button":     {0.05, 0.05},
	"home_tab":        {0.1, 0.9},
	"profile_tab":     {0.9, 0.9},
	"following_list":  {0.5, 0.4},
	"search_box":      {0.5, 0.1},
}

// tapVariancePx keeps repeated taps from landing on the exact same pixel.
const tapVariancePx = 5

// InstagramExecutor drives the Instagram app over ADB.
type InstagramExecutor struct {
	adb         *adb.Controller
	screen      adb.ScreenSize
	evidenceDir string
	logger      logger.Logger
}

// NewInstagramExecutor connects to the device, makes sure Instagram is
// running and resolves the screen geometry.
func NewInstagramExecutor(ctx context.Context, cfg *config.DeviceConfig) (*InstagramExecutor, error) {
	ctrl := adb.New(cfg.ADBPath, cfg.Serial, cfg.CommandTimeout)
	if err := ctrl.Connect(ctx); err != nil {
		return nil, err
	}

	size, err := ctrl.GetScreenSize(ctx)
	if err != nil {
		return nil, err
	}

	running, err := ctrl.AppRunning(ctx, instagramPackage)
	if err != nil {
		return nil, err
	}
	if !running {
		if err := ctrl.StartApp(ctx, instagramPackage); err != nil {
			return nil, err
		}
		if err := pause(ctx, 5*time.Second, 5*time.Second); err != nil {
			return nil, err
		}
	}

	if cfg.EvidenceDir != "" {
		if err := os.MkdirAll(cfg.EvidenceDir, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeDeviceUnavailable, "create evidence dir", err)
		}
	}

	log := logger.GetLogger()
	log.InfoWithFields("instagram executor ready", map[string]interface{}{
		"serial": ctrl.Serial(),
		"screen": fmt.Sprintf("%dx%d", size.Width, size.Height),
	})

	return &InstagramExecutor{
		adb:         ctrl,
		screen:      size,
		evidenceDir: cfg.EvidenceDir,
		logger:      log,
	}, nil
}

// OpenProfile deep-links straight to the profile instead of walking the
// search UI, which is far less fragile than tapping search results.
func (e *InstagramExecutor) OpenProfile(ctx context.Context, username string) error {
	if err := e.adb.OpenURI(ctx, account.ProfileLinkFor(username), instagramPackage); err != nil {
		return errors.Wrap(errors.ErrorTypeActionFailed,
			fmt.Sprintf("open profile %s", username), err)
	}
	return pause(ctx, 2*time.Second, 4*time.Second)
}

// TapFollow presses the follow button on the open profile.
func (e *InstagramExecutor) TapFollow(ctx context.Context) error {
	if err := e.tap(ctx, layout["follow_button"]); err != nil {
		return errors.Wrap(errors.ErrorTypeActionFailed, "tap follow", err)
	}
	return pause(ctx, time.Second, 2*time.Second)
}

// TapUnfollow presses the following button and taps again to confirm the
// popup. The second tap is harmless when no popup appears.
func (e *InstagramExecutor) TapUnfollow(ctx context.Context) error {
	if err := e.tap(ctx, layout["unfollow_button"]); err != nil {
		return errors.Wrap(errors.ErrorTypeActionFailed, "tap unfollow", err)
	}
	if err := pause(ctx, time.Second, 2*time.Second); err != nil {
		return err
	}
	if err := e.tap(ctx, layout["unfollow_button"]); err != nil {
		e.logger.Warn("unfollow confirmation tap failed, popup may not have appeared")
	}
	return pause(ctx, time.Second, 2*time.Second)
}

// ObserveRelationship opens the operator's following list, searches for the
// username and captures a screenshot. Reading the relationship off the
// screen would need OCR, so the observation is always inconclusive; the
// evidence lets an operator resolve it by hand.
func (e *InstagramExecutor) ObserveRelationship(ctx context.Context, username string) (Observation, error) {
	if err := e.tap(ctx, layout["profile_tab"]); err != nil {
		return Observation{}, errors.Wrap(errors.ErrorTypeActionFailed, "open own profile", err)
	}
	if err := pause(ctx, 2*time.Second, 3*time.Second); err != nil {
		return Observation{}, err
	}
	if err := e.tap(ctx, layout["following_list"]); err != nil {
		return Observation{}, errors.Wrap(errors.ErrorTypeActionFailed, "open following list", err)
	}
	if err := pause(ctx, 2*time.Second, 3*time.Second); err != nil {
		return Observation{}, err
	}
	if err := e.adb.TypeText(ctx, username); err != nil {
		return Observation{}, errors.Wrap(errors.ErrorTypeActionFailed,
			fmt.Sprintf("search following list for %s", username), err)
	}
	if err := pause(ctx, 2*time.Second, 3*time.Second); err != nil {
		return Observation{}, err
	}

	evidence, err := e.CaptureEvidence(ctx, "check_"+username)
	if err != nil {
		e.logger.WithError(err).Warn("evidence capture failed during check")
		evidence = ""
	}

	if err := e.GoHome(ctx); err != nil {
		e.logger.WithError(err).Warn("failed to return to home tab after check")
	}

	return Observation{FollowsBack: nil, Evidence: evidence}, nil
}

// CaptureEvidence saves a timestamped screenshot under the evidence dir.
func (e *InstagramExecutor) CaptureEvidence(ctx context.Context, label string) (string, error) {
	dir := e.evidenceDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", label, time.Now().Format("20060102_150405")))
	if err := e.adb.Screenshot(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

// GoHome returns the app to the home tab between accounts.
func (e *InstagramExecutor) GoHome(ctx context.Context) error {
	if err := e.tap(ctx, layout["home_tab"]); err != nil {
		return errors.Wrap(errors.ErrorTypeActionFailed, "tap home", err)
	}
	return pause(ctx, time.Second, 2*time.Second)
}

func (e *InstagramExecutor) tap(ctx context.Context, p point) error {
	x := int(p.x * float64(e.screen.Width))
	y := int(p.y * float64(e.screen.Height))
	x += rand.Intn(2*tapVariancePx+1) - tapVariancePx
	y += rand.Intn(2*tapVariancePx+1) - tapVariancePx
	return e.adb.Tap(ctx, x, y)
}

// pause sleeps a random duration in [min, max], returning early when the
// context is cancelled.
func pause(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d = min + time.Duration(rand.Int63n(int64(max-min)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
