package schema

import "strings"

// Cycle is a chain of entity names where each entity references the next
// and the last references the first.
type Cycle []string

func (c Cycle) String() string {
	if len(c) == 0 {
		return ""
	}
	return strings.Join(append(append([]string(nil), c...), c[0]), " -> ")
}

// Order sorts entities so that every entity comes after the entities its
// many-to-one references point at. The relative order of independent
// entities is kept. References to entities outside the given set and
// references to the entity itself are ignored.
//
// Cycles do not stop the sort: the edge closing a cycle is skipped and the
// cycle is returned, so callers can warn or fail.
func Order(entities []*Entity) ([]*Entity, []Cycle) {
	const (
		white = iota
		gray
		black
	)
	var (
		ordered = make([]*Entity, 0, len(entities))
		cycles  []Cycle
		color   = make(map[string]int, len(entities))
		byName  = make(map[string]*Entity, len(entities))
		path    []string
	)
	for _, e := range entities {
		byName[e.Name] = e
	}
	var visit func(e *Entity)
	visit = func(e *Entity) {
		color[e.Name] = gray
		path = append(path, e.Name)
		for _, ref := range e.References() {
			t, ok := byName[ref.Target]
			if !ok || t == e {
				continue
			}
			switch color[t.Name] {
			case white:
				visit(t)
			case gray:
				for i := len(path) - 1; i >= 0; i-- {
					if path[i] == t.Name {
						cycles = append(cycles, append(Cycle(nil), path[i:]...))
						break
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[e.Name] = black
		ordered = append(ordered, e)
	}
	for _, e := range entities {
		if color[e.Name] == white {
			visit(e)
		}
	}
	return ordered, cycles
}
