package schema

import (
	"github.com/go-openapi/inflect"

	"github.com/syssam/schemasync/schema/field"
)

// Entity describes one declared entity: its table and its fields, in
// declaration order. Entities handed to a Registry are copied and must be
// treated as read-only afterwards.
type Entity struct {
	Name   string
	Table  string
	Fields []field.Descriptor
}

// NewEntity returns an entity with the given fields. An empty table name
// defaults to the pluralized snake_case entity name ("BlogPost" → "blog_posts").
//
//	schema.NewEntity("User", "users",
//		field.ID("id"),
//		field.String("username").Size(50).Unique(),
//		field.Int("age").Optional(),
//		field.Refs("posts", "Post").MappedBy("author"),
//		field.CreatedAt(),
//	)
func NewEntity(name, table string, fields ...field.Builder) *Entity {
	e := &Entity{Name: name, Table: table}
	for _, f := range fields {
		if f == nil {
			e.Fields = append(e.Fields, nil)
			continue
		}
		e.Fields = append(e.Fields, f.Descriptor())
	}
	return e
}

// DefaultTable returns the default table name of an entity.
func DefaultTable(name string) string {
	return inflect.Pluralize(inflect.Underscore(name))
}

// Identity returns the primary-key field of the entity, or nil.
func (e *Entity) Identity() *field.Identity {
	for _, f := range e.Fields {
		if id, ok := f.(*field.Identity); ok {
			return id
		}
	}
	return nil
}

// References returns the many-to-one fields of the entity.
func (e *Entity) References() []*field.ManyToOne {
	var refs []*field.ManyToOne
	for _, f := range e.Fields {
		if r, ok := f.(*field.ManyToOne); ok {
			refs = append(refs, r)
		}
	}
	return refs
}

// ManyToMany returns the many-to-many fields of the entity.
func (e *Entity) ManyToMany() []*field.ManyToMany {
	var rels []*field.ManyToMany
	for _, f := range e.Fields {
		if r, ok := f.(*field.ManyToMany); ok {
			rels = append(rels, r)
		}
	}
	return rels
}

// clone returns a deep copy of e.
func (e *Entity) clone() *Entity {
	c := &Entity{Name: e.Name, Table: e.Table, Fields: make([]field.Descriptor, len(e.Fields))}
	for i, f := range e.Fields {
		if f != nil {
			c.Fields[i] = f.Clone()
		}
	}
	return c
}
