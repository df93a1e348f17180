package scripting

import (
	"math"

	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/mathx"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// The functions below run inside Lua calls, so e.mu is already held. They
// must not re-enter the VM: entity removal requested from Lua is deferred to
// the next fixed step, where OnDestroy hooks can safely call back into Lua.

func (e *Engine) openEngineModule() {
	mod := e.vm.SetFuncs(e.vm.NewTable(), map[string]lua.LGFunction{
		"behaviour":    e.luaBehaviour,
		"log":          e.luaLog,
		"spawn":        e.luaSpawn,
		"attach":       e.luaAttach,
		"destroy":      e.luaDestroy,
		"alive":        e.luaAlive,
		"position":     e.luaPosition,
		"set_position": e.luaSetPosition,
		"translate":    e.luaTranslate,
		"find":         e.luaFind,
		"raycast":      e.luaRaycast,
	})
	e.vm.SetGlobal("engine", mod)
	e.vm.PreloadModule("engine", func(L *lua.LState) int {
		L.Push(mod)
		return 1
	})
}

// checkEntity accepts whole numbers from 1 up; ids are never zero.
func checkEntity(L *lua.LState, n int) ecs.EntityID {
	v := float64(L.CheckNumber(n))
	if v < 1 || v != math.Trunc(v) || v >= math.MaxUint64 {
		L.ArgError(n, "entity id expected")
		return 0
	}
	return ecs.EntityID(uint64(v))
}

func checkVec3(L *lua.LState, n int) mathx.Vec3 {
	return mathx.V3(float64(L.CheckNumber(n)), float64(L.CheckNumber(n+1)), float64(L.CheckNumber(n+2)))
}

func optVec3(L *lua.LState, n int) mathx.Vec3 {
	return mathx.V3(float64(L.OptNumber(n, 0)), float64(L.OptNumber(n+1, 0)), float64(L.OptNumber(n+2, 0)))
}

// engine.behaviour(name, class)
func (e *Engine) luaBehaviour(L *lua.LState) int {
	name := L.CheckString(1)
	class := L.CheckTable(2)
	if _, dup := e.classes[name]; dup {
		e.log.Warn("lua behaviour redefined", zap.String("class", name))
	}
	e.classes[name] = class
	return 0
}

// engine.log(msg)
func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// engine.spawn([x, y, z]) -> id
func (e *Engine) luaSpawn(L *lua.LState) int {
	id := e.world.CreateEntity()
	e.world.Spatial(id).Position = optVec3(L, 1)
	L.Push(lua.LNumber(id))
	return 1
}

// engine.attach(id, class) -> ok
func (e *Engine) luaAttach(L *lua.LState) int {
	id := checkEntity(L, 1)
	class := L.CheckString(2)
	if _, ok := e.classes[class]; !ok {
		e.log.Warn("attach of unknown lua behaviour", zap.String("class", class))
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LBool(e.world.Attach(id, e.NewBehaviour(class))))
	return 1
}

// engine.destroy(id[, seconds])
func (e *Engine) luaDestroy(L *lua.LState) int {
	e.world.RemoveEntityTimed(checkEntity(L, 1), float64(L.OptNumber(2, 0)))
	return 0
}

// engine.alive(id) -> bool
func (e *Engine) luaAlive(L *lua.LState) int {
	L.Push(lua.LBool(e.world.Alive(checkEntity(L, 1))))
	return 1
}

// engine.position(id) -> x, y, z | nil
func (e *Engine) luaPosition(L *lua.LState) int {
	sp := e.world.Spatial(checkEntity(L, 1))
	if sp == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(sp.Position.X))
	L.Push(lua.LNumber(sp.Position.Y))
	L.Push(lua.LNumber(sp.Position.Z))
	return 3
}

// engine.set_position(id, x, y, z) -> ok
func (e *Engine) luaSetPosition(L *lua.LState) int {
	sp := e.world.Spatial(checkEntity(L, 1))
	if sp == nil {
		L.Push(lua.LFalse)
		return 1
	}
	sp.Position = checkVec3(L, 2)
	L.Push(lua.LTrue)
	return 1
}

// engine.translate(id, dx, dy, dz) -> ok
func (e *Engine) luaTranslate(L *lua.LState) int {
	sp := e.world.Spatial(checkEntity(L, 1))
	if sp == nil {
		L.Push(lua.LFalse)
		return 1
	}
	sp.Translate(checkVec3(L, 2))
	L.Push(lua.LTrue)
	return 1
}

// engine.find(class) -> {id, ...} in ascending order
func (e *Engine) luaFind(L *lua.LState) int {
	class := L.CheckString(1)
	t := L.NewTable()
	var last ecs.EntityID
	ecs.EachComponent(e.world, func(id ecs.EntityID, b *Behaviour) {
		if b.Class == class && id != last {
			t.Append(lua.LNumber(id))
			last = id
		}
	})
	L.Push(t)
	return 1
}

// engine.raycast(x1, y1, z1, x2, y2, z2[, group, mask]) -> hit, x, y, z, id
func (e *Engine) luaRaycast(L *lua.LState) int {
	if e.physics == nil {
		L.RaiseError("raycast: no physics world")
		return 0
	}
	from, to := checkVec3(L, 1), checkVec3(L, 4)
	group := uint32(L.OptInt(7, 1))
	mask := uint32(L.OptInt64(8, 0xFFFFFFFF))
	h := e.physics.RayTest(from, to, group, mask)
	if !h.HasHit {
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LTrue)
	L.Push(lua.LNumber(h.Point.X))
	L.Push(lua.LNumber(h.Point.Y))
	L.Push(lua.LNumber(h.Point.Z))
	if owner, ok := h.Body.UserData.(interface{ Entity() ecs.EntityID }); ok {
		L.Push(lua.LNumber(owner.Entity()))
	} else {
		L.Push(lua.LNil)
	}
	return 5
}
