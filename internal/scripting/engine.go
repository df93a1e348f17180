package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/physics"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// APIVersion is exposed to scripts as the API_VERSION global.
const APIVersion = 1

// Engine wraps a single gopher-lua VM that runs behaviour scripts. The VM is
// not goroutine-safe, so every entry into Lua holds mu; component hooks may
// therefore be dispatched in parallel.
type Engine struct {
	mu      sync.Mutex
	vm      *lua.LState
	log     *zap.Logger
	world   *ecs.World
	physics *physics.World

	classes map[string]*lua.LTable
	errors  atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithPhysics exposes raycasts against pw to scripts.
func WithPhysics(pw *physics.World) Option {
	return func(e *Engine) { e.physics = pw }
}

// NewEngine creates a Lua engine bound to world and loads all scripts from
// scriptsDir: lib/ first, then behaviours/, then the directory itself. An
// empty scriptsDir loads nothing.
func NewEngine(scriptsDir string, world *ecs.World, log *zap.Logger, opts ...Option) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))

	e := &Engine{
		vm:      vm,
		log:     log,
		world:   world,
		classes: make(map[string]*lua.LTable),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.openEngineModule()

	if scriptsDir == "" {
		return e, nil
	}
	for _, dir := range []string{
		filepath.Join(scriptsDir, "lib"),
		filepath.Join(scriptsDir, "behaviours"),
		scriptsDir,
	} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts from %s: %w", dir, err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		e.mu.Lock()
		err := e.vm.DoFile(path)
		e.mu.Unlock()
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.DoString(src)
}

// HasClass reports whether a behaviour class has been defined.
func (e *Engine) HasClass(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.classes[name]
	return ok
}

// Classes lists the defined behaviour classes in name order.
func (e *Engine) Classes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.classes))
	for n := range e.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Errors is the number of script errors caught so far.
func (e *Engine) Errors() uint64 { return e.errors.Load() }

// CallNumber calls a global Lua function with number args and returns its
// first result as a number. ok is false if the function is missing or fails.
func (e *Engine) CallNumber(name string, args ...float64) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.log.Error("lua function not found", zap.String("name", name))
		return 0, false
	}

	lArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lArgs[i] = lua.LNumber(a)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lArgs...); err != nil {
		e.errors.Add(1)
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return 0, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return float64(lua.LVAsNumber(result)), true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
