package physics

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// MaxLayers is the number of distinct collision groups a uint32 mask holds.
const MaxLayers = 32

// LayerEntry names one collision group.
type LayerEntry struct {
	Name  string `yaml:"name"`
	Group int    `yaml:"group"`
	Note  string `yaml:"note"`
}

// LayerTable maps collision layer names to group indices.
type LayerTable struct {
	byName map[string]int
	names  []string // sorted
}

// LoadLayerTable loads a layers YAML file.
func LoadLayerTable(path string) (*LayerTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layer table: %w", err)
	}
	return ParseLayerTable(raw)
}

// ParseLayerTable parses a YAML list of LayerEntry. Names and groups must be
// unique and groups must fit in a mask.
func ParseLayerTable(raw []byte) (*LayerTable, error) {
	var entries []LayerEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse layer table: %w", err)
	}
	t := &LayerTable{byName: make(map[string]int, len(entries))}
	used := make(map[int]string, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("layer table: entry with group %d has no name", e.Group)
		}
		if e.Group < 0 || e.Group >= MaxLayers {
			return nil, fmt.Errorf("layer table: %q: group %d out of range [0,%d)", e.Name, e.Group, MaxLayers)
		}
		if _, dup := t.byName[e.Name]; dup {
			return nil, fmt.Errorf("layer table: duplicate name %q", e.Name)
		}
		if other, dup := used[e.Group]; dup {
			return nil, fmt.Errorf("layer table: %q and %q share group %d", other, e.Name, e.Group)
		}
		t.byName[e.Name] = e.Group
		used[e.Group] = e.Name
		t.names = append(t.names, e.Name)
	}
	sort.Strings(t.names)
	return t, nil
}

// Group returns the group index of name.
func (t *LayerTable) Group(name string) (int, bool) {
	g, ok := t.byName[name]
	return g, ok
}

// Bit returns the single-bit filter of name, or 0 if unknown.
func (t *LayerTable) Bit(name string) uint32 {
	g, ok := t.byName[name]
	if !ok {
		return 0
	}
	return 1 << uint(g)
}

// Mask builds a mask that includes every named layer.
func (t *LayerTable) Mask(names ...string) (uint32, error) {
	groups := make([]int, 0, len(names))
	for _, n := range names {
		g, ok := t.byName[n]
		if !ok {
			return 0, fmt.Errorf("unknown collision layer %q", n)
		}
		groups = append(groups, g)
	}
	return CollisionMask(groups, true), nil
}

func (t *LayerTable) Names() []string { return t.names }

func (t *LayerTable) Count() int { return len(t.names) }

// CollisionMask turns group indices into a filter mask. With include set the
// mask contains exactly those groups; otherwise it contains every group except
// them. Indices outside [0,MaxLayers) are ignored.
func CollisionMask(groups []int, include bool) uint32 {
	var mask uint32
	if !include {
		mask = ^uint32(0)
	}
	for _, g := range groups {
		if g < 0 || g >= MaxLayers {
			continue
		}
		if include {
			mask |= 1 << uint(g)
		} else {
			mask &^= 1 << uint(g)
		}
	}
	return mask
}
