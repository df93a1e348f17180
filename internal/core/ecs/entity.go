package ecs

// EntityID is a monotonically increasing identifier. IDs start at 1 and are
// never reused, so a stale ID can never alias a newer entity. Zero is invalid.
type EntityID uint64

func (id EntityID) IsZero() bool { return id == 0 }

// EntityPool allocates IDs and tracks liveness. Not safe for concurrent use;
// the World serializes access under its structural lock.
type EntityPool struct {
	alive  map[EntityID]struct{}
	nextID EntityID
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		alive:  make(map[EntityID]struct{}, 1024),
		nextID: 1,
	}
}

func (p *EntityPool) Create() EntityID {
	id := p.nextID
	p.nextID++
	p.alive[id] = struct{}{}
	return id
}

func (p *EntityPool) Alive(id EntityID) bool {
	_, ok := p.alive[id]
	return ok
}

// Destroy marks id dead. Returns false if it was not alive.
func (p *EntityPool) Destroy(id EntityID) bool {
	if _, ok := p.alive[id]; !ok {
		return false
	}
	delete(p.alive, id)
	return true
}

func (p *EntityPool) Len() int {
	return len(p.alive)
}
