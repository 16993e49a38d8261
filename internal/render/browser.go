package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	"focusdisplay/internal/capture"
	"focusdisplay/internal/epd"
	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/model"
)

// Publisher exposes the frame to the page being captured.
type Publisher interface {
	Publish(ds model.DisplayState)
	PublishError(msg string)
}

// CaptureFunc screenshots a page.
type CaptureFunc func(ctx context.Context, opts capture.Options) ([]byte, error)

// Browser renders by screenshotting the preview server's /display page.
// When the browser cannot produce a frame, the native painter draws it.
type Browser struct {
	panel    epd.Panel
	pub      Publisher
	baseURL  string
	execPath string
	capture  CaptureFunc
	fallback *Painter
	sink     Sink
	policy   policy
}

// NewBrowser captures baseURL+"/display". fallback must share the panel.
func NewBrowser(panel epd.Panel, pub Publisher, baseURL, execPath string, fullEvery int, counter Counter, sink Sink, fallback *Painter) *Browser {
	return &Browser{
		panel:    panel,
		pub:      pub,
		baseURL:  strings.TrimRight(baseURL, "/"),
		execPath: execPath,
		capture:  capture.CaptureDisplayPNG,
		fallback: fallback,
		sink:     sink,
		policy:   newPolicy(fullEvery, counter),
	}
}

func (b *Browser) Render(ctx context.Context, ds model.DisplayState) error {
	b.pub.Publish(ds)
	full := b.policy.next(ds.ForceFull)
	if err := b.shoot(ctx, full); err != nil {
		appLog.Warn("browser render failed, painting natively", "err", err)
		return b.fallback.push(ctx, b.fallback.Paint(ds), full)
	}
	return nil
}

func (b *Browser) RenderError(ctx context.Context, msg string) error {
	b.pub.PublishError(msg)
	full := b.policy.next(true)
	if err := b.shoot(ctx, full); err != nil {
		appLog.Warn("browser render failed, painting natively", "err", err)
		return b.fallback.push(ctx, b.fallback.PaintError(msg), full)
	}
	return nil
}

func (b *Browser) shoot(ctx context.Context, full bool) error {
	bounds := b.panel.Bounds()
	raw, err := b.capture(ctx, capture.Options{
		URL:      b.baseURL + "/display",
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		ExecPath: b.execPath,
	})
	if err != nil {
		return err
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("render: decode capture: %w", err)
	}
	if err := b.panel.Display(ctx, img, full); err != nil {
		return fmt.Errorf("render: display: %w", err)
	}
	if b.sink != nil {
		b.sink.SetPreview(raw)
	}
	if err := b.panel.Sleep(); err != nil {
		appLog.Warn("panel sleep failed", "err", err)
	}
	return nil
}
