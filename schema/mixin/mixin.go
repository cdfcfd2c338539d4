// Package mixin provides reusable sets of fields shared by several entities.
//
// A mixin contributes fields that are appended after the fields declared by
// the entity itself:
//
//	schema.NewEntity("User", "", mixin.Fields(
//		[]field.Builder{
//			field.ID("id"),
//			field.String("username").Size(50).Unique(),
//		},
//		mixin.Time{},
//		mixin.SoftDelete{},
//	)...)
//
// Custom mixins embed Schema and override Fields:
//
//	type Audit struct {
//		mixin.Schema
//	}
//
//	func (Audit) Fields() []field.Builder {
//		return []field.Builder{
//			field.String("created_by").Optional(),
//			field.String("updated_by").Optional(),
//		}
//	}
package mixin

import "github.com/syssam/schemasync/schema/field"

// Mixin is a reusable set of fields.
type Mixin interface {
	Fields() []field.Builder
}

// Schema is the default implementation of Mixin. It contributes no fields
// and should be embedded in custom mixins.
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []field.Builder { return nil }

var _ Mixin = (*Schema)(nil)

// Fields returns fields followed by the fields of every mixin, in order.
// Nil mixins are skipped.
func Fields(fields []field.Builder, mixins ...Mixin) []field.Builder {
	out := make([]field.Builder, 0, len(fields))
	out = append(out, fields...)
	for _, m := range mixins {
		if m == nil {
			continue
		}
		out = append(out, m.Fields()...)
	}
	return out
}

// Time adds the created_at and updated_at timestamps.
type Time struct {
	Schema
}

// Fields returns the timestamp fields.
func (Time) Fields() []field.Builder {
	return []field.Builder{field.CreatedAt(), field.UpdatedAt()}
}

// CreateTime adds only the created_at timestamp.
type CreateTime struct {
	Schema
}

// Fields returns the created_at field.
func (CreateTime) Fields() []field.Builder {
	return []field.Builder{field.CreatedAt()}
}

// UpdateTime adds only the updated_at timestamp.
type UpdateTime struct {
	Schema
}

// Fields returns the updated_at field.
func (UpdateTime) Fields() []field.Builder {
	return []field.Builder{field.UpdatedAt()}
}

// SoftDelete adds a nullable deleted_at timestamp. A row is considered
// deleted once the column is set.
type SoftDelete struct {
	Schema
}

// Fields returns the deleted_at field.
func (SoftDelete) Fields() []field.Builder {
	return []field.Builder{field.Timestamp("deleted_at").Optional()}
}
