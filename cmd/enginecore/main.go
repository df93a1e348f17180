package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/l1jgo/enginecore/internal/config"
	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/core/event"
	"github.com/l1jgo/enginecore/internal/core/loop"
	"github.com/l1jgo/enginecore/internal/core/system"
	"github.com/l1jgo/enginecore/internal/mathx"
	"github.com/l1jgo/enginecore/internal/physics"
	"github.com/l1jgo/enginecore/internal/render"
	"github.com/l1jgo/enginecore/internal/scripting"
	"github.com/l1jgo/enginecore/internal/telemetry"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value any) {
	v := fmt.Sprint(value)
	dotsLen := 42 - len(label) - len(v)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), v)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

// ── Engine ─────────────────────────────────────────────────────────

func run() error {
	profileMode := flag.String("profile", "", "write a cpu or mem profile to the working directory")
	maxFrames := flag.Uint64("frames", 0, "stop after this many frames (0 runs until interrupted)")
	flag.Parse()

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q", *profileMode)
	}

	// 1. Load config
	cfgPath := "config/engine.toml"
	if p := os.Getenv("ENGINECORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	fmt.Println()
	printSection("engine")
	printStat("fixed step", fmt.Sprintf("%.4fs", cfg.Engine.FixedStep))
	printStat("workers", cfg.Engine.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Core world and collaborators
	bus := event.NewBus()
	world := ecs.NewWorld(log, ecs.WithWorkers(cfg.Engine.Workers), ecs.WithEventBus(bus))

	g := cfg.Physics.Gravity
	pw := physics.NewWorld(mathx.V3(g[0], g[1], g[2]), log.Named("physics"))

	layers, err := physics.LoadLayerTable(cfg.Physics.LayersFile)
	if err != nil {
		return fmt.Errorf("load collision layers: %w", err)
	}
	printStat("collision layers", layers.Count())

	scripts, err := scripting.NewEngine(cfg.Scripting.Dir, world, log.Named("lua"), scripting.WithPhysics(pw))
	if err != nil {
		return fmt.Errorf("init scripting: %w", err)
	}
	defer scripts.Close()
	printStat("lua behaviours", len(scripts.Classes()))

	// 4. Terminal output
	var (
		renderer *render.TerminalRenderer
		screen   tcell.Screen
	)
	if cfg.Render.Enabled {
		screen, err = tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("create screen: %w", err)
		}
		if err := screen.Init(); err != nil {
			return fmt.Errorf("init screen: %w", err)
		}
		defer screen.Fini()
		renderer = render.NewTerminalRenderer(screen, cfg.Render.Scale)
		go pollInput(screen, cancel)
	}

	// 5. Scene
	sc, err := buildScene(world, pw, layers, scripts, renderer)
	if err != nil {
		return fmt.Errorf("build scene: %w", err)
	}

	// 6. Loop and systems
	runner := system.NewRunner()
	opts := []loop.Option{
		loop.WithRunner(runner),
		loop.WithEventBus(bus),
		loop.WithSimulator(pw),
		loop.WithViewpoint(sc.camera),
	}
	if renderer != nil {
		opts = append(opts, loop.WithRenderer(renderer))
	}
	lp := loop.New(world, log, loop.Config{
		FixedStep:       cfg.Engine.FixedStep,
		MaxCatchUpSteps: cfg.Engine.MaxCatchUpSteps,
		FrameInterval:   cfg.Engine.FrameInterval,
	}, opts...)
	sc.attachHUD(world, lp, scripts)

	if renderer != nil {
		runner.Register(system.Func{P: system.PhaseVariable, Fn: func(ecs.Time) {
			sc.camera.Aspect = renderer.Aspect()
		}})
	}
	if *maxFrames > 0 {
		runner.Register(system.Func{P: system.PhaseCleanup, Fn: func(t ecs.Time) {
			if t.Frame >= *maxFrames {
				cancel()
			}
		}})
	}

	// 7. Telemetry
	var recorder *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		dbCtx, dbCancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := telemetry.Open(dbCtx, cfg.Telemetry, log.Named("telemetry"))
		if err != nil {
			dbCancel()
			return fmt.Errorf("telemetry: %w", err)
		}
		defer db.Close()
		_, err = telemetry.RunMigrations(dbCtx, db.Pool, log.Named("telemetry"))
		dbCancel()
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
		recorder = telemetry.NewRecorder(world, lp, telemetry.NewPostgresSink(db, runID), log.Named("telemetry"), cfg.Telemetry.FlushEvery)
		recorder.Subscribe(bus)
		runner.Register(recorder)
		printOK("telemetry " + runID)
	}

	// 8. Run until signal, quit key, frame limit or physics failure
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)
	go func() {
		select {
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	printOK("loop started")
	log.Info("engine running",
		zap.Int("entities", world.EntityCount()),
		zap.Duration("frame_interval", cfg.Engine.FrameInterval))
	runErr := lp.Run(ctx)

	if recorder != nil {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = recorder.Flush(flushCtx)
		flushCancel()
	}

	st := lp.Stats()
	log.Info("engine stopped",
		zap.Uint64("frames", st.Frames),
		zap.Uint64("fixed_steps", st.FixedSteps),
		zap.Uint64("skipped_steps", st.SkippedSteps),
		zap.Uint64("script_errors", scripts.Errors()),
		zap.Uint64("hook_panics", world.Stats().HookPanics))
	if runErr != nil {
		return fmt.Errorf("frame loop: %w", runErr)
	}
	return nil
}

// pollInput stops the engine on Escape, Ctrl-C or q.
func pollInput(screen tcell.Screen, cancel context.CancelFunc) {
	for {
		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				cancel()
				return
			}
		case *tcell.EventResize:
			screen.Sync()
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	if cfg.File != "" {
		// The terminal belongs to the renderer while it runs.
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
