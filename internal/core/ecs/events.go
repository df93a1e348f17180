package ecs

// Events emitted on the world's bus, when one is configured.

type EntityCreated struct {
	Entity EntityID
}

type EntityRemoved struct {
	Entity EntityID
}
