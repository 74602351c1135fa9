// internal/surface/session.go

// Package surface owns the screen the agent lives on. It drives a Chrome tab
// over CDP: captures are downsampled screenshots, committing actions become
// raw input events.
package surface

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/xkilldash9x/franz-cli/internal/config"
	"github.com/xkilldash9x/franz-cli/internal/engine"
)

// Session is one live browser surface. It serves as both the frame source and
// the action executor for a run.
type Session struct {
	cfg    config.SurfaceConfig
	logger *zap.Logger

	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

// NewSession launches the browser, sizes the viewport, and opens the start
// URL. The returned session must be closed.
func NewSession(ctx context.Context, cfg config.SurfaceConfig, logger *zap.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)

	// The browser lifetime is tied to Close, not to the run context, so a
	// cancelled run can still shut the browser down cleanly.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:         cfg,
		logger:      logger.Named("surface"),
		tab:         tab,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	err := s.run(ctx, cfg.NavigationTimeout,
		chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight)),
		chromedp.Navigate(cfg.StartURL),
	)
	if err != nil {
		s.tabCancel()
		s.allocCancel()
		return nil, fmt.Errorf("failed to open start url %q: %w", cfg.StartURL, err)
	}

	s.logger.Info("Surface session opened",
		zap.String("start_url", cfg.StartURL),
		zap.Bool("headless", cfg.Headless),
	)
	return s, nil
}

// Capture screenshots the viewport and downsamples it to the configured
// perception raster.
func (s *Session) Capture(ctx context.Context) (engine.Frame, error) {
	var shot []byte
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.CaptureScreenshot(&shot)); err != nil {
		return engine.Frame{}, fmt.Errorf("screenshot failed: %w", err)
	}

	scaled, err := scalePNG(shot, s.cfg.FrameWidth, s.cfg.FrameHeight)
	if err != nil {
		return engine.Frame{}, fmt.Errorf("failed to scale frame: %w", err)
	}
	return engine.Frame{PNG: scaled, Width: s.cfg.FrameWidth, Height: s.cfg.FrameHeight}, nil
}

// Execute applies a committing action to the tab.
func (s *Session) Execute(ctx context.Context, action engine.Action) error {
	switch action.Kind {
	case engine.KindClick:
		x, y := GridToViewport(*action.Position, s.cfg.ViewportWidth, s.cfg.ViewportHeight)
		return s.run(ctx, s.cfg.InputTimeout,
			input.DispatchMouseEvent(input.MouseMoved, x, y),
			input.DispatchMouseEvent(input.MousePressed, x, y).
				WithButton(input.Left).
				WithClickCount(1),
			input.DispatchMouseEvent(input.MouseReleased, x, y).
				WithButton(input.Left).
				WithClickCount(1),
		)

	case engine.KindType:
		return s.run(ctx, s.cfg.InputTimeout, chromedp.KeyEvent(*action.Text))

	case engine.KindScroll:
		// Wheel events land at the viewport center; positive delta scrolls
		// the page down.
		cx := float64(s.cfg.ViewportWidth) / 2
		cy := float64(s.cfg.ViewportHeight) / 2
		return s.run(ctx, s.cfg.InputTimeout,
			input.DispatchMouseEvent(input.MouseWheel, cx, cy).
				WithDeltaX(0).
				WithDeltaY(float64(*action.Delta)),
		)

	default:
		return fmt.Errorf("action kind %s is not executable", action.Kind)
	}
}

// Close shuts the tab and the browser down.
func (s *Session) Close(ctx context.Context) error {
	if err := chromedp.Cancel(s.tab); err != nil && ctx.Err() == nil {
		s.logger.Warn("Browser did not shut down cleanly", zap.Error(err))
	}
	s.tabCancel()
	s.allocCancel()
	return nil
}

// run executes chromedp actions against the tab under a timeout, aborting
// early if the caller's context is cancelled.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(opCtx, actions...)
}

// GridToViewport maps a point in the device-independent grid onto viewport
// pixel coordinates by linear scaling.
func GridToViewport(p engine.GridPoint, viewportWidth, viewportHeight int) (float64, float64) {
	x := float64(p.X) / float64(engine.GridMax) * float64(viewportWidth)
	y := float64(p.Y) / float64(engine.GridMax) * float64(viewportHeight)
	if max := float64(viewportWidth - 1); x > max {
		x = max
	}
	if max := float64(viewportHeight - 1); y > max {
		y = max
	}
	return x, y
}

// scalePNG downsamples a PNG to the given size with bilinear filtering.
func scalePNG(data []byte, width, height int) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
