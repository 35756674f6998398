// File: internal/agent/executor.go
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qaloop-dev/qaloop/api/schemas"
)

// waitCap bounds a model-requested wait so a single step can never stall the
// loop for long.
const waitCap = 10 * time.Second

// Executor performs non-terminal intents on the device: it dispatches to the
// matching primitive, waits for the UI to settle, then captures the resulting
// screen. It never judges whether the action had the intended effect; the
// planner does that on the next cycle.
type Executor struct {
	device      schemas.Device
	settleDelay time.Duration
	logger      *zap.Logger

	screenW int
	screenH int
}

var _ ActionPerformer = (*Executor)(nil)

// NewExecutor wires an executor to a device session.
func NewExecutor(device schemas.Device, settleDelay time.Duration, logger *zap.Logger) *Executor {
	return &Executor{
		device:      device,
		settleDelay: settleDelay,
		logger:      logger.Named("executor"),
	}
}

// InitialObservation waits for the screen to settle and captures it. Used by
// the supervisor to seed the loop before the first decision.
func (e *Executor) InitialObservation(ctx context.Context) (Observation, error) {
	if err := sleepCtx(ctx, e.settleDelay); err != nil {
		return Observation{}, err
	}
	return e.capture(ctx)
}

// Perform executes one non-terminal intent. Device-level failures are folded
// into the outcome, not returned as errors; the error return is reserved for
// misuse (terminal intents) and context cancellation.
func (e *Executor) Perform(ctx context.Context, intent ActionIntent) (ActionOutcome, error) {
	if intent.Terminal() {
		return ActionOutcome{}, fmt.Errorf("terminal intent %s is not executable", intent.Kind)
	}

	e.logger.Info("Performing action", zap.String("intent", intent.Describe()))

	err := e.dispatch(ctx, intent)
	if ctx.Err() != nil {
		return ActionOutcome{}, ctx.Err()
	}
	if err != nil {
		e.logger.Warn("Action failed on device",
			zap.String("intent", intent.Describe()),
			zap.Error(err))
		// Grab the screen anyway when possible; seeing where the device
		// ended up helps the next decision.
		obs, _ := e.capture(ctx)
		return ActionOutcome{Succeeded: false, Observation: obs, ErrorDetail: err.Error()}, nil
	}

	if err := sleepCtx(ctx, e.settleDelay); err != nil {
		return ActionOutcome{}, err
	}
	obs, err := e.capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ActionOutcome{}, ctx.Err()
		}
		return ActionOutcome{Succeeded: false, ErrorDetail: fmt.Sprintf("capture after action failed: %s", err)}, nil
	}
	return ActionOutcome{Succeeded: true, Observation: obs}, nil
}

func (e *Executor) dispatch(ctx context.Context, intent ActionIntent) error {
	switch intent.Kind {
	case ActionTap:
		return e.device.Tap(ctx, intent.X, intent.Y)
	case ActionTapText:
		return e.device.TapByText(ctx, intent.Label)
	case ActionTypeText:
		return e.device.TypeText(ctx, intent.Text)
	case ActionSwipe:
		x1, y1, x2, y2, err := e.swipeCoords(ctx, intent.DX, intent.DY)
		if err != nil {
			return err
		}
		return e.device.Swipe(ctx, x1, y1, x2, y2)
	case ActionLongPress:
		return e.device.LongPress(ctx, intent.X, intent.Y)
	case ActionPressBack:
		return e.device.PressBack(ctx)
	case ActionPressHome:
		return e.device.PressHome(ctx)
	case ActionPressEnter:
		return e.device.PressEnter(ctx)
	case ActionWait:
		d := time.Duration(intent.Seconds * float64(time.Second))
		if d > waitCap {
			d = waitCap
		}
		return sleepCtx(ctx, d)
	default:
		return fmt.Errorf("unhandled action kind %s", intent.Kind)
	}
}

// swipeCoords turns a delta swipe into absolute coordinates centered on the
// screen, clamped to its bounds.
func (e *Executor) swipeCoords(ctx context.Context, dx, dy int) (int, int, int, int, error) {
	w, h, err := e.screenSize(ctx)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("cannot resolve swipe coordinates: %w", err)
	}
	cx, cy := w/2, h/2
	x1 := clamp(cx-dx/2, 0, w-1)
	y1 := clamp(cy-dy/2, 0, h-1)
	x2 := clamp(cx+dx/2, 0, w-1)
	y2 := clamp(cy+dy/2, 0, h-1)
	return x1, y1, x2, y2, nil
}

func (e *Executor) screenSize(ctx context.Context) (int, int, error) {
	if e.screenW > 0 && e.screenH > 0 {
		return e.screenW, e.screenH, nil
	}
	w, h, err := e.device.ScreenSize(ctx)
	if err != nil {
		return 0, 0, err
	}
	e.screenW, e.screenH = w, h
	return w, h, nil
}

func (e *Executor) capture(ctx context.Context) (Observation, error) {
	png, err := e.device.CaptureScreen(ctx)
	if err != nil {
		return Observation{}, err
	}
	return Observation{PNG: png, TakenAt: time.Now()}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
