package config

import (
	"fmt"
	"os"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"

	"github.com/syssam/schemasync/schema"
	"github.com/syssam/schemasync/schema/field"
	"github.com/syssam/schemasync/schema/mixin"
)

// Relation kinds of a field declaration. Any other type names a column
// type, see field.ParseType.
const (
	TypeRef        = "ref"
	TypeRefs       = "refs"
	TypeManyToMany = "many_to_many"
)

type (
	// Entities is the entity declarations file.
	//
	//	entities:
	//	  - name: User
	//	    timestamps: true
	//	    fields:
	//	      - {name: username, type: string, size: 50, unique: true}
	//	      - {name: posts, type: refs, target: Post, mapped_by: author}
	//	  - name: Post
	//	    fields:
	//	      - {name: title, type: string}
	//	      - {name: author, type: ref, target: User}
	Entities struct {
		Entities []EntityDecl `yaml:"entities"`
	}

	// EntityDecl declares one entity.
	EntityDecl struct {
		Name string `yaml:"name"`
		// Table defaults to the pluralized snake_case name.
		Table string  `yaml:"table,omitempty"`
		ID    *IDDecl `yaml:"id,omitempty"`
		// Timestamps adds created_at and updated_at columns.
		Timestamps bool `yaml:"timestamps,omitempty"`
		// SoftDelete adds a nullable deleted_at column.
		SoftDelete bool        `yaml:"soft_delete,omitempty"`
		Fields     []FieldDecl `yaml:"fields"`
	}

	// IDDecl declares the primary key. It defaults to an auto-incremented
	// int64 "id".
	IDDecl struct {
		Name   string `yaml:"name,omitempty"`
		Type   string `yaml:"type,omitempty"`
		Manual bool   `yaml:"manual,omitempty"`
	}

	// FieldDecl declares a column or a relation.
	FieldDecl struct {
		Name       string   `yaml:"name"`
		Type       string   `yaml:"type"`
		Size       int64    `yaml:"size,omitempty"`
		Precision  int      `yaml:"precision,omitempty"`
		Scale      int      `yaml:"scale,omitempty"`
		Optional   bool     `yaml:"optional,omitempty"`
		Unique     bool     `yaml:"unique,omitempty"`
		ColumnType string   `yaml:"column_type,omitempty"`
		Values     []string `yaml:"values,omitempty"`

		Target            string `yaml:"target,omitempty"`
		JoinColumn        string `yaml:"join_column,omitempty"`
		References        string `yaml:"references,omitempty"`
		MappedBy          string `yaml:"mapped_by,omitempty"`
		JoinTable         string `yaml:"join_table,omitempty"`
		InverseJoinColumn string `yaml:"inverse_join_column,omitempty"`
	}
)

// LoadEntities reads the entity declarations file at path.
func LoadEntities(path string) ([]*schema.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return ParseEntities(data)
}

// ParseEntities decodes entity declarations. The returned entities are not
// validated; validation happens when they are registered.
func ParseEntities(data []byte) ([]*schema.Entity, error) {
	var decl Entities
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("config: parse entities: %w", err)
	}
	entities := make([]*schema.Entity, 0, len(decl.Entities))
	for _, d := range decl.Entities {
		e, err := d.Entity()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// Entity converts the declaration to an entity descriptor.
func (d EntityDecl) Entity() (*schema.Entity, error) {
	id := field.ID("id")
	if d.ID != nil {
		if d.ID.Name != "" {
			id = field.ID(d.ID.Name)
		}
		if d.ID.Type != "" {
			t, ok := field.ParseType(d.ID.Type)
			if !ok {
				return nil, fmt.Errorf("config: entity %s: unknown id type %q", d.Name, d.ID.Type)
			}
			id.OfType(t)
		}
		if d.ID.Manual {
			id.Manual()
		}
	}
	fields := []field.Builder{id}
	for _, f := range d.Fields {
		b, err := f.builder()
		if err != nil {
			return nil, fmt.Errorf("config: entity %s: %w", d.Name, err)
		}
		fields = append(fields, b)
	}
	var mixins []mixin.Mixin
	if d.Timestamps {
		mixins = append(mixins, mixin.Time{})
	}
	if d.SoftDelete {
		mixins = append(mixins, mixin.SoftDelete{})
	}
	return schema.NewEntity(d.Name, d.Table, mixin.Fields(fields, mixins...)...), nil
}

func (f FieldDecl) builder() (field.Builder, error) {
	switch f.Type {
	case TypeRef:
		b := field.Ref(f.Name, f.Target).JoinColumn(f.JoinColumn)
		if f.JoinColumn == "" {
			b.JoinColumn(inflect.Underscore(f.Name) + "_id")
		}
		if f.References != "" {
			b.References(f.References)
		}
		if f.Optional {
			b.Optional()
		}
		return b, nil
	case TypeRefs:
		return field.Refs(f.Name, f.Target).MappedBy(f.MappedBy), nil
	case TypeManyToMany:
		return field.ManyToManyRef(f.Name, f.Target).
			JoinTable(f.JoinTable).
			JoinColumn(f.JoinColumn).
			InverseJoinColumn(f.InverseJoinColumn), nil
	}
	t, ok := field.ParseType(f.Type)
	if !ok {
		return nil, fmt.Errorf("field %s: unknown type %q", f.Name, f.Type)
	}
	var b *field.ColumnBuilder
	switch t {
	case field.TypeString:
		b = field.String(f.Name)
	case field.TypeEnum:
		b = field.Enum(f.Name, f.Values...)
	case field.TypeDecimal:
		b = field.Decimal(f.Name)
	default:
		b = column(f.Name, t)
	}
	if f.Size > 0 {
		b.Size(f.Size)
	}
	if f.Precision > 0 {
		b.Precision(f.Precision, f.Scale)
	}
	if f.Optional {
		b.Optional()
	}
	if f.Unique {
		b.Unique()
	}
	if f.ColumnType != "" {
		b.ColumnType(f.ColumnType)
	}
	return b, nil
}

var columns = map[field.Type]func(string) *field.ColumnBuilder{
	field.TypeBool:      field.Bool,
	field.TypeInt8:      field.Int8,
	field.TypeInt16:     field.Int16,
	field.TypeInt32:     field.Int,
	field.TypeInt64:     field.Int64,
	field.TypeFloat32:   field.Float,
	field.TypeFloat64:   field.Double,
	field.TypeText:      field.Text,
	field.TypeBytes:     field.Bytes,
	field.TypeDate:      field.Date,
	field.TypeDateTime:  field.DateTime,
	field.TypeTimestamp: field.Timestamp,
	field.TypeTime:      field.Time,
	field.TypeYear:      field.Year,
	field.TypeJSON:      field.JSON,
	field.TypeUUID:      field.UUID,
}

func column(name string, t field.Type) *field.ColumnBuilder {
	return columns[t](name)
}
