package scripting

import (
	"github.com/l1jgo/enginecore/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Behaviour is a component whose hooks are implemented by a Lua class
// registered with engine.behaviour. Each instance gets its own self table
// (with self.entity set) that inherits from the class.
type Behaviour struct {
	ecs.Base
	Class string

	engine *Engine
	self   *lua.LTable
}

func (e *Engine) NewBehaviour(class string) *Behaviour {
	return &Behaviour{Class: class, engine: e}
}

// Start instantiates the Lua object and calls its start method.
func (b *Behaviour) Start() {
	e := b.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	class, ok := e.classes[b.Class]
	if !ok {
		e.errors.Add(1)
		e.log.Error("unknown lua behaviour",
			zap.String("class", b.Class), zap.Uint64("entity", uint64(b.Entity())))
		return
	}
	self := e.vm.NewTable()
	self.RawSetString("entity", lua.LNumber(b.Entity()))
	mt := e.vm.NewTable()
	mt.RawSetString("__index", class)
	e.vm.SetMetatable(self, mt)
	b.self = self
	e.callMethod(b, "start")
}

func (b *Behaviour) Update(t ecs.Time) {
	b.call("update", lua.LNumber(t.Delta))
}

func (b *Behaviour) FixedUpdate(t ecs.Time) {
	b.call("fixed_update", lua.LNumber(t.Delta))
}

func (b *Behaviour) OnDestroy() {
	b.call("on_destroy")
	b.engine.mu.Lock()
	b.self = nil
	b.engine.mu.Unlock()
}

// Field reads a field of the Lua object, or nil before Start.
func (b *Behaviour) Field(name string) lua.LValue {
	e := b.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if b.self == nil {
		return lua.LNil
	}
	return e.vm.GetField(b.self, name)
}

func (b *Behaviour) call(method string, args ...lua.LValue) {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()
	b.engine.callMethod(b, method, args...)
}

// callMethod calls self:method(args...) if the class defines it. Errors are
// logged and counted; the behaviour stays attached. Caller holds e.mu.
func (e *Engine) callMethod(b *Behaviour, method string, args ...lua.LValue) {
	if b.self == nil {
		return
	}
	fn, ok := e.vm.GetField(b.self, method).(*lua.LFunction)
	if !ok {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, append([]lua.LValue{b.self}, args...)...); err != nil {
		e.errors.Add(1)
		e.log.Error("lua behaviour error",
			zap.String("class", b.Class),
			zap.String("method", method),
			zap.Uint64("entity", uint64(b.Entity())),
			zap.Error(err))
	}
}
