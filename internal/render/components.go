package render

import (
	"github.com/gdamore/tcell/v2"
	"github.com/l1jgo/enginecore/internal/core/ecs"
)

// Glyph draws its entity as a single character at the projected Spatial
// position.
type Glyph struct {
	ecs.Base
	Renderer *TerminalRenderer
	Rune     rune
	Style    tcell.Style
}

func NewGlyph(r *TerminalRenderer, ch rune, color tcell.Color) *Glyph {
	return &Glyph{Renderer: r, Rune: ch, Style: tcell.StyleDefault.Foreground(color)}
}

func (g *Glyph) Render(ctx ecs.RenderContext) {
	if g.Renderer == nil {
		return
	}
	if x, y, ok := g.Renderer.ProjectWith(ctx.ViewProjection(), g.Spatial().Position); ok {
		g.Renderer.Plot(x, y, g.Rune, g.Style)
	}
}

// Label draws screen-space text in the GUI pass. Source, when set, is called
// every frame and overrides Text.
type Label struct {
	ecs.Base
	Renderer *TerminalRenderer
	X, Y     int
	Text     string
	Source   func() string
	Style    tcell.Style
}

func (l *Label) DrawGUI(ecs.Time) {
	if l.Renderer == nil {
		return
	}
	s := l.Text
	if l.Source != nil {
		s = l.Source()
	}
	l.Renderer.Text(l.X, l.Y, s, l.Style)
}
