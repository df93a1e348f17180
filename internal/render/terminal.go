package render

import (
	"errors"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/mathx"
)

// Screen is the subset of tcell.Screen the renderer draws through.
type Screen interface {
	Clear()
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Size() (width, height int)
	Show()
}

// DefaultCellAspect is the height:width ratio of a terminal character cell.
const DefaultCellAspect = 2.0

var errNoScreen = errors.New("render: no screen")

// TerminalRenderer draws the render pass onto a character grid. It is used
// from the frame loop goroutine only.
type TerminalRenderer struct {
	screen     Screen
	cellAspect float64

	ctx           ecs.RenderContext
	width, height int
	frames        uint64
	plotted       int
}

func NewTerminalRenderer(screen Screen, cellAspect float64) *TerminalRenderer {
	if cellAspect <= 0 {
		cellAspect = DefaultCellAspect
	}
	return &TerminalRenderer{screen: screen, cellAspect: cellAspect}
}

// Aspect is the projection aspect ratio that makes world units square on
// the current screen.
func (r *TerminalRenderer) Aspect() float64 {
	if r.screen == nil {
		return 1
	}
	w, h := r.screen.Size()
	if w <= 0 || h <= 0 {
		return 1
	}
	return float64(w) / (float64(h) * r.cellAspect)
}

// BeginFrame clears the screen and records the frame's camera.
func (r *TerminalRenderer) BeginFrame(ctx ecs.RenderContext) {
	r.ctx = ctx
	r.plotted = 0
	if r.screen == nil {
		return
	}
	r.width, r.height = r.screen.Size()
	r.screen.Clear()
}

// EndFrame presents the frame.
func (r *TerminalRenderer) EndFrame() error {
	if r.screen == nil {
		return errNoScreen
	}
	r.screen.Show()
	r.frames++
	return nil
}

// Project maps a world point to a cell using the current frame's camera.
// ok is false for points behind the camera or outside the view volume.
func (r *TerminalRenderer) Project(p mathx.Vec3) (x, y int, ok bool) {
	return r.ProjectWith(r.ctx.ViewProjection(), p)
}

func (r *TerminalRenderer) ProjectWith(viewProj mathx.Mat4, p mathx.Vec3) (x, y int, ok bool) {
	ndc, ok := viewProj.TransformPoint(p)
	if !ok || math.Abs(ndc.X) > 1 || math.Abs(ndc.Y) > 1 || math.Abs(ndc.Z) > 1 {
		return 0, 0, false
	}
	if r.width <= 0 || r.height <= 0 {
		return 0, 0, false
	}
	x = int(math.Round((ndc.X + 1) / 2 * float64(r.width-1)))
	y = int(math.Round((1 - ndc.Y) / 2 * float64(r.height-1)))
	return x, y, true
}

// Plot sets one cell; off-screen cells are ignored.
func (r *TerminalRenderer) Plot(x, y int, ch rune, style tcell.Style) {
	if r.screen == nil || x < 0 || y < 0 || x >= r.width || y >= r.height {
		return
	}
	r.screen.SetContent(x, y, ch, nil, style)
	r.plotted++
}

// Text writes s starting at (x, y), clipped to the screen.
func (r *TerminalRenderer) Text(x, y int, s string, style tcell.Style) {
	for _, ch := range s {
		r.Plot(x, y, ch, style)
		x++
	}
}

// Size is the grid size captured at the start of the current frame.
func (r *TerminalRenderer) Size() (width, height int) { return r.width, r.height }

// Frames counts presented frames.
func (r *TerminalRenderer) Frames() uint64 { return r.frames }

// Plotted counts cells drawn in the current frame.
func (r *TerminalRenderer) Plotted() int { return r.plotted }
