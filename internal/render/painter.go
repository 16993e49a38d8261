package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"focusdisplay/internal/derive"
	"focusdisplay/internal/epd"
	appLog "focusdisplay/internal/log"
	"focusdisplay/internal/model"
)

// Painter draws the three-column layout in Go and pushes it to a panel.
type Painter struct {
	panel  epd.Panel
	sink   Sink
	policy policy
	faces  faces
	// scale maps the 800x480 reference layout onto the panel.
	scale float64
}

// NewPainter prepares fonts for panel. sink and counter may be nil.
func NewPainter(panel epd.Panel, fullEvery int, counter Counter, sink Sink) (*Painter, error) {
	b := panel.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("render: panel has empty bounds")
	}
	scale := float64(b.Dy()) / 480
	fs, err := loadFaces(scale)
	if err != nil {
		return nil, err
	}
	return &Painter{
		panel:  panel,
		sink:   sink,
		policy: newPolicy(fullEvery, counter),
		faces:  fs,
		scale:  scale,
	}, nil
}

func (p *Painter) Render(ctx context.Context, ds model.DisplayState) error {
	return p.push(ctx, p.Paint(ds), p.policy.next(ds.ForceFull))
}

func (p *Painter) RenderError(ctx context.Context, msg string) error {
	return p.push(ctx, p.PaintError(msg), p.policy.next(true))
}

func (p *Painter) push(ctx context.Context, img *image.Gray, full bool) error {
	if err := p.panel.Display(ctx, img, full); err != nil {
		return fmt.Errorf("render: display: %w", err)
	}
	if p.sink != nil {
		p.sink.SetPreview(encodePNG(img))
	}
	if err := p.panel.Sleep(); err != nil {
		appLog.Warn("panel sleep failed", "err", err)
	}
	appLog.Debug("frame pushed", "full", full)
	return nil
}

// px scales a reference-layout length.
func (p *Painter) px(v int) int {
	return int(float64(v)*p.scale + 0.5)
}

// Paint draws ds without touching the panel.
func (p *Painter) Paint(ds model.DisplayState) *image.Gray {
	c := newCanvas(p.panel.Bounds())
	w, h := c.img.Bounds().Dx(), c.img.Bounds().Dy()

	if txt := derive.BatteryText(ds.BatteryPct); txt != "" {
		c.text(p.faces.tiny, w-p.px(10)-c.measure(p.faces.tiny, txt), p.px(18), txt)
	}

	col1 := w * 24 / 100
	col2 := w * 62 / 100
	c.vline(col1, p.px(16), h-p.px(16), max(1, p.px(2)))
	c.vline(col2, p.px(16), h-p.px(16), max(1, p.px(2)))

	p.paintClocks(c, ds.Clocks, p.px(16))
	p.paintFocus(c, derive.FocusTextOf(ds), col1+p.px(18), col2-p.px(18))
	p.paintAgenda(c, ds, col2+p.px(10), w-p.px(10))
	return c.img
}

func (p *Painter) paintClocks(c *canvas, clocks []model.CityTime, x int) {
	for i, ct := range clocks {
		y := p.px(70 + i*120)
		c.text(p.faces.small, x, y, ct.Label)
		c.text(p.faces.large, x, y+p.px(40), derive.Clock12(ct.Hour, ct.Minute))
	}
}

func (p *Painter) paintFocus(c *canvas, ft derive.FocusText, x0, x1 int) {
	y := p.px(90)
	for _, line := range ft.Message {
		if line != "" {
			c.text(p.faces.medium, x0, y, line)
		}
		y += p.px(34)
	}

	y += p.px(40)
	face, step := p.faces.headline, p.px(52)
	if ft.Mode == derive.ModeBusy {
		face, step = p.faces.busy, p.px(36)
	}
	for _, line := range ft.Headline {
		c.text(face, x0, y, line)
		y += step
	}

	y += p.px(4)
	c.hline(x0, x1, y, max(1, p.px(2)))
	y += p.px(36)
	for _, line := range ft.Footer {
		c.text(p.faces.small, x0, y, line)
		y += p.px(28)
	}
}

func (p *Painter) paintAgenda(c *canvas, ds model.DisplayState, x0, x1 int) {
	title := "TODAY"
	if ds.DateString != "" {
		title += " - " + ds.DateString
	}
	c.text(p.faces.label, x0, p.px(40), title)

	top := p.px(64)
	rows := derive.AgendaRows(ds.Agenda, ds.LocalHour)
	rowH := (c.img.Bounds().Dy() - top - p.px(12)) / len(rows)
	markX := x0
	labelX := x0 + p.px(12)
	barX := labelX + p.px(48)
	barMax := (x1 - barX) / 2

	for i, row := range rows {
		base := top + i*rowH + rowH*3/4
		if row.Now {
			c.text(p.faces.tiny, markX, base, ">")
		}
		c.text(p.faces.tiny, labelX, base, row.Label)

		if row.Item == nil {
			c.dotted(barX, x1, base-rowH/4, p.px(20))
			continue
		}
		barW := max(p.px(4), barMax*row.BarMinutes/60)
		bar := image.Rect(barX, top+i*rowH+rowH/6, barX+barW, top+(i+1)*rowH-rowH/6)
		if row.Item.IsPast {
			c.rect(bar, false, max(1, p.px(2)))
		} else {
			c.rect(bar, true, 0)
		}
		c.text(p.faces.tiny, barX+barW+p.px(6), base, row.Title)
	}
}

// PaintError draws the error screen.
func (p *Painter) PaintError(msg string) *image.Gray {
	c := newCanvas(p.panel.Bounds())
	w, h := c.img.Bounds().Dx(), c.img.Bounds().Dy()
	x := w / 8
	c.text(p.faces.headline, x, h*5/12, "Error:")
	c.text(p.faces.large, x, h*5/12+p.px(60), msg)
	return c.img
}

// canvas is a white 8-bit frame with a few primitives.
type canvas struct {
	img *image.Gray
}

func newCanvas(b image.Rectangle) *canvas {
	img := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return &canvas{img: img}
}

func (c *canvas) text(face font.Face, x, y int, s string) {
	d := font.Drawer{Dst: c.img, Src: image.Black, Face: face, Dot: fixed.P(x, y)}
	d.DrawString(s)
}

func (c *canvas) measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

func (c *canvas) hline(x0, x1, y, thick int) {
	draw.Draw(c.img, image.Rect(x0, y, x1, y+thick), image.Black, image.Point{}, draw.Src)
}

func (c *canvas) vline(x, y0, y1, thick int) {
	draw.Draw(c.img, image.Rect(x, y0, x+thick, y1), image.Black, image.Point{}, draw.Src)
}

// rect fills r or outlines it with the given stroke.
func (c *canvas) rect(r image.Rectangle, fill bool, stroke int) {
	if fill {
		draw.Draw(c.img, r, image.Black, image.Point{}, draw.Src)
		return
	}
	c.hline(r.Min.X, r.Max.X, r.Min.Y, stroke)
	c.hline(r.Min.X, r.Max.X, r.Max.Y-stroke, stroke)
	c.vline(r.Min.X, r.Min.Y, r.Max.Y, stroke)
	c.vline(r.Max.X-stroke, r.Min.Y, r.Max.Y, stroke)
}

// dotted draws 2 px dashes every step pixels.
func (c *canvas) dotted(x0, x1, y, step int) {
	step = max(step, 4)
	for x := x0; x < x1; x += step {
		c.img.SetGray(x, y, color.Gray{})
		c.img.SetGray(x+1, y, color.Gray{})
	}
}
