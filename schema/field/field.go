package field

import "slices"

// Kind identifies the variant of a Descriptor.
type Kind uint8

// Descriptor kinds.
const (
	KindIdentity Kind = iota + 1
	KindColumn
	KindManyToOne
	KindOneToMany
	KindManyToMany
	KindCreatedTimestamp
	KindUpdatedTimestamp
)

var kindNames = map[Kind]string{
	KindIdentity:         "identity",
	KindColumn:           "column",
	KindManyToOne:        "many-to-one",
	KindOneToMany:        "one-to-many",
	KindManyToMany:       "many-to-many",
	KindCreatedTimestamp: "created-timestamp",
	KindUpdatedTimestamp: "updated-timestamp",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// Descriptor is a dialect-neutral description of one entity field. The set
// of implementations is closed: Identity, Column, ManyToOne, OneToMany,
// ManyToMany, CreatedTimestamp and UpdatedTimestamp.
type Descriptor interface {
	Builder
	// Kind returns the descriptor variant.
	Kind() Kind
	// FieldName returns the declared name of the field.
	FieldName() string
	// Clone returns a deep copy of the descriptor.
	Clone() Descriptor
	sealed()
}

// Builder is implemented by field builders and by the descriptors
// themselves, so entities can be declared fluently or as literals.
type Builder interface {
	Descriptor() Descriptor
}

// Identity is the primary-key field of an entity.
type Identity struct {
	Name          string
	Type          Type
	AutoIncrement bool
}

// Column is a plain mapped column.
type Column struct {
	Name      string
	Type      Type
	Size      int64
	Precision int
	Scale     int
	Nullable  bool
	Unique    bool
	// RawType, if set, is used verbatim as the column type.
	RawType string
	// Values holds the allowed values of an enum column.
	Values []string
}

// ManyToOne is a reference to another entity materialized as a join column.
type ManyToOne struct {
	Name             string
	Target           string
	JoinColumn       string
	ReferencedColumn string
	Nullable         bool
}

// OneToMany is the inverse side of a ManyToOne. It is informational and
// never materialized as a column.
type OneToMany struct {
	Name     string
	Target   string
	MappedBy string
}

// ManyToMany is a relation materialized as a join table. Empty names are
// defaulted from the two entities.
type ManyToMany struct {
	Name              string
	Target            string
	JoinTable         string
	JoinColumn        string
	InverseJoinColumn string
}

// CreatedTimestamp is a column holding the row creation time.
type CreatedTimestamp struct{ Name string }

// UpdatedTimestamp is a column holding the row last update time.
type UpdatedTimestamp struct{ Name string }

func (d *Identity) Kind() Kind         { return KindIdentity }
func (d *Column) Kind() Kind           { return KindColumn }
func (d *ManyToOne) Kind() Kind        { return KindManyToOne }
func (d *OneToMany) Kind() Kind        { return KindOneToMany }
func (d *ManyToMany) Kind() Kind       { return KindManyToMany }
func (d *CreatedTimestamp) Kind() Kind { return KindCreatedTimestamp }
func (d *UpdatedTimestamp) Kind() Kind { return KindUpdatedTimestamp }

func (d *Identity) FieldName() string         { return d.Name }
func (d *Column) FieldName() string           { return d.Name }
func (d *ManyToOne) FieldName() string        { return d.Name }
func (d *OneToMany) FieldName() string        { return d.Name }
func (d *ManyToMany) FieldName() string       { return d.Name }
func (d *CreatedTimestamp) FieldName() string { return d.Name }
func (d *UpdatedTimestamp) FieldName() string { return d.Name }

func (d *Identity) Descriptor() Descriptor         { return d }
func (d *Column) Descriptor() Descriptor           { return d }
func (d *ManyToOne) Descriptor() Descriptor        { return d }
func (d *OneToMany) Descriptor() Descriptor        { return d }
func (d *ManyToMany) Descriptor() Descriptor       { return d }
func (d *CreatedTimestamp) Descriptor() Descriptor { return d }
func (d *UpdatedTimestamp) Descriptor() Descriptor { return d }

func (d *Identity) Clone() Descriptor { c := *d; return &c }
func (d *Column) Clone() Descriptor {
	c := *d
	c.Values = slices.Clone(d.Values)
	return &c
}
func (d *ManyToOne) Clone() Descriptor        { c := *d; return &c }
func (d *OneToMany) Clone() Descriptor        { c := *d; return &c }
func (d *ManyToMany) Clone() Descriptor       { c := *d; return &c }
func (d *CreatedTimestamp) Clone() Descriptor { c := *d; return &c }
func (d *UpdatedTimestamp) Clone() Descriptor { c := *d; return &c }

func (*Identity) sealed()         {}
func (*Column) sealed()           {}
func (*ManyToOne) sealed()        {}
func (*OneToMany) sealed()        {}
func (*ManyToMany) sealed()       {}
func (*CreatedTimestamp) sealed() {}
func (*UpdatedTimestamp) sealed() {}

// ColumnName returns the name of the column a descriptor materializes, or
// "" for descriptors without a column.
func ColumnName(d Descriptor) string {
	switch d := d.(type) {
	case *Identity:
		return d.Name
	case *Column:
		return d.Name
	case *ManyToOne:
		return d.JoinColumn
	case *CreatedTimestamp:
		return d.Name
	case *UpdatedTimestamp:
		return d.Name
	default:
		return ""
	}
}
