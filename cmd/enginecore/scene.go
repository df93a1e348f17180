package main

import (
	"fmt"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/l1jgo/enginecore/internal/component"
	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/core/loop"
	"github.com/l1jgo/enginecore/internal/mathx"
	"github.com/l1jgo/enginecore/internal/physics"
	"github.com/l1jgo/enginecore/internal/render"
	"github.com/l1jgo/enginecore/internal/scripting"
)

// demoScene is a ground plane, bouncing balls, a hopping player the camera
// follows and a couple of Lua-driven entities.
type demoScene struct {
	camera   *component.Camera
	player   ecs.EntityID
	renderer *render.TerminalRenderer
	landings atomic.Int64
}

type filters struct {
	ground, ball, probe struct{ group, mask uint32 }
}

func layerFilters(layers *physics.LayerTable) (filters, error) {
	var f filters
	var err error
	f.ground.group = layers.Bit("static")
	if f.ground.mask, err = layers.Mask("dynamic", "probe"); err != nil {
		return f, err
	}
	f.ball.group = layers.Bit("dynamic")
	if f.ball.mask, err = layers.Mask("static", "dynamic"); err != nil {
		return f, err
	}
	f.probe.group = layers.Bit("probe")
	if f.probe.mask, err = layers.Mask("static"); err != nil {
		return f, err
	}
	return f, nil
}

func buildScene(w *ecs.World, pw *physics.World, layers *physics.LayerTable, scripts *scripting.Engine, r *render.TerminalRenderer) (*demoScene, error) {
	f, err := layerFilters(layers)
	if err != nil {
		return nil, err
	}
	sc := &demoScene{renderer: r}

	glyph := func(id ecs.EntityID, ch rune, color tcell.Color) *render.Glyph {
		if r == nil {
			return nil
		}
		g := render.NewGlyph(r, ch, color)
		ecs.AddComponent(w, id, g)
		return g
	}

	ground := w.CreateEntity()
	plane := component.NewRigidBody(pw, physics.Plane(mathx.Up3, 0))
	plane.Group, plane.Mask = f.ground.group, f.ground.mask
	ecs.AddComponent(w, ground, plane)
	for x := -12.0; x <= 12; x += 1.5 {
		marker := w.CreateEntity()
		w.Spatial(marker).Position = mathx.V3(x, 0, 0)
		glyph(marker, '_', tcell.ColorGreen)
	}

	for i := 0; i < 6; i++ {
		id := w.CreateEntity()
		w.Spatial(id).Position = mathx.V3(float64(i)*2-5, 4+float64(i), 0)
		rb := component.NewRigidBody(pw, physics.Sphere(0.5))
		rb.Group, rb.Mask = f.ball.group, f.ball.mask
		rb.Restitution = 0.8
		ecs.AddComponent(w, id, rb)
		g := glyph(id, 'o', tcell.ColorWhite)
		rb.OnCollisionEnter.Add(func(c component.Collision) {
			sc.landings.Add(1)
			if g != nil && c.Other == plane {
				g.Style = tcell.StyleDefault.Foreground(tcell.ColorOrange)
			}
		})
	}

	comet := w.CreateEntity()
	w.Spatial(comet).Position = mathx.V3(-8, 10, 0)
	crb := component.NewRigidBody(pw, physics.Sphere(0.3))
	crb.Group, crb.Mask = f.ball.group, f.ball.mask
	crb.Velocity = mathx.V3(3, 0, 0)
	ecs.AddComponent(w, comet, crb)
	ecs.AddComponent(w, comet, &component.Lifetime{Seconds: 8})
	glyph(comet, '+', tcell.ColorRed)

	sc.player = w.CreateEntity()
	w.Spatial(sc.player).Position = mathx.V3(0, 1, 0)
	body := component.NewRigidBody(pw, physics.Sphere(0.5))
	body.Group, body.Mask = f.ball.group, f.ball.mask
	body.Restitution = 0
	probe := component.NewGroundProbe(pw, 0.6)
	probe.Group, probe.Mask = f.probe.group, f.probe.mask
	ecs.AddComponent(w, sc.player, body)
	ecs.AddComponent(w, sc.player, probe)
	ecs.AddComponent(w, sc.player, &hopper{body: body, probe: probe, impulse: 500})
	glyph(sc.player, '@', tcell.ColorYellow)

	for _, b := range []struct {
		class string
		pos   mathx.Vec3
		ch    rune
	}{
		{"orbiter", mathx.V3(0, 3, 0), '*'},
		{"spawner", mathx.V3(0, 8, 0), 0},
	} {
		if !scripts.HasClass(b.class) {
			continue
		}
		id := w.CreateEntity()
		w.Spatial(id).Position = b.pos
		ecs.AddComponent(w, id, scripts.NewBehaviour(b.class))
		if b.ch != 0 {
			glyph(id, b.ch, tcell.ColorAqua)
		}
	}

	aspect := 16.0 / 9
	if r != nil {
		aspect = r.Aspect()
	}
	sc.camera = component.NewCamera(aspect)
	sc.camera.Follow(sc.player, mathx.V3(0, 4, 18))
	cam := w.CreateEntity()
	w.Spatial(cam).Position = mathx.V3(0, 5, 19)
	ecs.AddComponent(w, cam, sc.camera)
	return sc, nil
}

// attachHUD adds the status line. No-op without a renderer.
func (sc *demoScene) attachHUD(w *ecs.World, lp *loop.Loop, scripts *scripting.Engine) {
	if sc.renderer == nil {
		return
	}
	hud := w.CreateEntity()
	ecs.AddComponent(w, hud, &render.Label{
		Renderer: sc.renderer,
		Style:    tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true),
		Source: func() string {
			st := lp.Stats()
			return fmt.Sprintf("fps %d  frame %d  fixed %d  entities %d  contacts %d  lua errors %d",
				st.FPS, st.Frames, st.FixedSteps, w.EntityCount(), sc.landings.Load(), scripts.Errors())
		},
	})
	ecs.AddComponent(w, hud, &render.Label{
		Renderer: sc.renderer,
		Y:        1,
		Text:     "q / esc quits",
		Style:    tcell.StyleDefault.Foreground(tcell.ColorGray),
	})
}

// hopper kicks its body upward whenever the ground probe reports contact.
type hopper struct {
	ecs.Base
	body    *component.RigidBody
	probe   *component.GroundProbe
	impulse float64
}

func (h *hopper) FixedUpdate(ecs.Time) {
	if h.probe.Grounded && h.body.CurrentVelocity().Y <= 0.1 {
		h.body.ApplyImpulse(mathx.V3(0, h.impulse, 0))
	}
}
