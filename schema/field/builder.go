package field

// IdentityBuilder is the builder for the primary-key field.
type IdentityBuilder struct {
	desc *Identity
}

// ID returns a builder for an auto-incremented int64 primary key.
//
//	field.ID("id")
//	field.ID("code").OfType(field.TypeString).Manual()
func ID(name string) *IdentityBuilder {
	return &IdentityBuilder{desc: &Identity{Name: name, Type: TypeInt64, AutoIncrement: true}}
}

// OfType sets the semantic type of the key.
func (b *IdentityBuilder) OfType(t Type) *IdentityBuilder {
	b.desc.Type = t
	return b
}

// Manual disables auto-increment; keys are assigned by the application.
func (b *IdentityBuilder) Manual() *IdentityBuilder {
	b.desc.AutoIncrement = false
	return b
}

// Descriptor implements the Builder interface.
func (b *IdentityBuilder) Descriptor() Descriptor { return b.desc }

// ColumnBuilder is the builder for plain columns.
type ColumnBuilder struct {
	desc *Column
}

func newColumn(name string, t Type) *ColumnBuilder {
	return &ColumnBuilder{desc: &Column{Name: name, Type: t}}
}

// String returns a builder for a varying-length string column, 255 by default.
func String(name string) *ColumnBuilder {
	b := newColumn(name, TypeString)
	b.desc.Size = DefaultStringSize
	return b
}

// Text returns a builder for an unbounded text column.
func Text(name string) *ColumnBuilder { return newColumn(name, TypeText) }

// TinyText returns a builder for a text column of at most 255 bytes.
func TinyText(name string) *ColumnBuilder { return Text(name).Size(TinySize) }

// MediumText returns a builder for a text column of at most 16MB.
func MediumText(name string) *ColumnBuilder { return Text(name).Size(MediumSize) }

// LongText returns a builder for a text column of at most 4GB.
func LongText(name string) *ColumnBuilder { return Text(name).Size(LongSize) }

// Bool returns a builder for a boolean column.
func Bool(name string) *ColumnBuilder { return newColumn(name, TypeBool) }

// Int8 returns a builder for an 8-bit integer column.
func Int8(name string) *ColumnBuilder { return newColumn(name, TypeInt8) }

// Int16 returns a builder for a 16-bit integer column.
func Int16(name string) *ColumnBuilder { return newColumn(name, TypeInt16) }

// Int returns a builder for a 32-bit integer column.
func Int(name string) *ColumnBuilder { return newColumn(name, TypeInt32) }

// Int64 returns a builder for a 64-bit integer column.
func Int64(name string) *ColumnBuilder { return newColumn(name, TypeInt64) }

// Float returns a builder for a single precision column.
func Float(name string) *ColumnBuilder { return newColumn(name, TypeFloat32) }

// Double returns a builder for a double precision column.
func Double(name string) *ColumnBuilder { return newColumn(name, TypeFloat64) }

// Decimal returns a builder for a fixed-point column, DECIMAL(10,2) by default.
func Decimal(name string) *ColumnBuilder {
	return newColumn(name, TypeDecimal).Precision(DefaultPrecision, DefaultScale)
}

// Date returns a builder for a calendar date column.
func Date(name string) *ColumnBuilder { return newColumn(name, TypeDate) }

// DateTime returns a builder for a date and time column.
func DateTime(name string) *ColumnBuilder { return newColumn(name, TypeDateTime) }

// Timestamp returns a builder for a timestamp column.
func Timestamp(name string) *ColumnBuilder { return newColumn(name, TypeTimestamp) }

// Time returns a builder for a time-of-day column.
func Time(name string) *ColumnBuilder { return newColumn(name, TypeTime) }

// Year returns a builder for a year column.
func Year(name string) *ColumnBuilder { return newColumn(name, TypeYear) }

// Bytes returns a builder for a binary column.
func Bytes(name string) *ColumnBuilder { return newColumn(name, TypeBytes) }

// TinyBlob returns a builder for a binary column of at most 255 bytes.
func TinyBlob(name string) *ColumnBuilder { return Bytes(name).Size(TinySize) }

// MediumBlob returns a builder for a binary column of at most 16MB.
func MediumBlob(name string) *ColumnBuilder { return Bytes(name).Size(MediumSize) }

// LongBlob returns a builder for a binary column of at most 4GB.
func LongBlob(name string) *ColumnBuilder { return Bytes(name).Size(LongSize) }

// JSON returns a builder for a JSON document column.
func JSON(name string) *ColumnBuilder { return newColumn(name, TypeJSON) }

// UUID returns a builder for a UUID column.
func UUID(name string) *ColumnBuilder { return newColumn(name, TypeUUID) }

// Enum returns a builder for an enum column with the given values.
func Enum(name string, values ...string) *ColumnBuilder {
	b := newColumn(name, TypeEnum)
	b.desc.Values = values
	b.desc.Size = DefaultStringSize
	return b
}

// Size sets the maximum length of string, text and binary columns.
func (b *ColumnBuilder) Size(n int64) *ColumnBuilder {
	b.desc.Size = n
	return b
}

// Precision sets the precision and scale of decimal columns.
func (b *ColumnBuilder) Precision(precision, scale int) *ColumnBuilder {
	b.desc.Precision, b.desc.Scale = precision, scale
	return b
}

// Optional makes the column nullable.
func (b *ColumnBuilder) Optional() *ColumnBuilder {
	b.desc.Nullable = true
	return b
}

// Unique adds a unique constraint to the column.
func (b *ColumnBuilder) Unique() *ColumnBuilder {
	b.desc.Unique = true
	return b
}

// ColumnType overrides the mapped type with a raw, dialect-specific type.
func (b *ColumnBuilder) ColumnType(raw string) *ColumnBuilder {
	b.desc.RawType = raw
	return b
}

// Descriptor implements the Builder interface.
func (b *ColumnBuilder) Descriptor() Descriptor { return b.desc }

// ManyToOneBuilder is the builder for many-to-one references.
type ManyToOneBuilder struct {
	desc *ManyToOne
}

// Ref returns a builder for a many-to-one reference to the target entity.
// The join column must be set with JoinColumn.
//
//	field.Ref("author", "User").JoinColumn("author_id")
func Ref(name, target string) *ManyToOneBuilder {
	return &ManyToOneBuilder{desc: &ManyToOne{Name: name, Target: target}}
}

// JoinColumn sets the column holding the reference.
func (b *ManyToOneBuilder) JoinColumn(name string) *ManyToOneBuilder {
	b.desc.JoinColumn = name
	return b
}

// References sets the referenced column of the target table. Defaults to
// the target's identity column.
func (b *ManyToOneBuilder) References(column string) *ManyToOneBuilder {
	b.desc.ReferencedColumn = column
	return b
}

// Optional makes the join column nullable.
func (b *ManyToOneBuilder) Optional() *ManyToOneBuilder {
	b.desc.Nullable = true
	return b
}

// Descriptor implements the Builder interface.
func (b *ManyToOneBuilder) Descriptor() Descriptor { return b.desc }

// OneToManyBuilder is the builder for one-to-many back references.
type OneToManyBuilder struct {
	desc *OneToMany
}

// Refs returns a builder for the inverse side of a many-to-one reference
// declared on the target entity.
//
//	field.Refs("posts", "Post").MappedBy("author")
func Refs(name, target string) *OneToManyBuilder {
	return &OneToManyBuilder{desc: &OneToMany{Name: name, Target: target}}
}

// MappedBy sets the name of the owning many-to-one field on the target.
func (b *OneToManyBuilder) MappedBy(name string) *OneToManyBuilder {
	b.desc.MappedBy = name
	return b
}

// Descriptor implements the Builder interface.
func (b *OneToManyBuilder) Descriptor() Descriptor { return b.desc }

// ManyToManyBuilder is the builder for many-to-many relations.
type ManyToManyBuilder struct {
	desc *ManyToMany
}

// ManyToManyRef returns a builder for a many-to-many relation.
//
//	field.ManyToManyRef("tags", "Tag").JoinTable("post_tags")
func ManyToManyRef(name, target string) *ManyToManyBuilder {
	return &ManyToManyBuilder{desc: &ManyToMany{Name: name, Target: target}}
}

// JoinTable sets the join table name.
func (b *ManyToManyBuilder) JoinTable(name string) *ManyToManyBuilder {
	b.desc.JoinTable = name
	return b
}

// JoinColumn sets the join table column referencing the declaring entity.
func (b *ManyToManyBuilder) JoinColumn(name string) *ManyToManyBuilder {
	b.desc.JoinColumn = name
	return b
}

// InverseJoinColumn sets the join table column referencing the target.
func (b *ManyToManyBuilder) InverseJoinColumn(name string) *ManyToManyBuilder {
	b.desc.InverseJoinColumn = name
	return b
}

// Descriptor implements the Builder interface.
func (b *ManyToManyBuilder) Descriptor() Descriptor { return b.desc }

// CreatedAt returns the row creation timestamp, stored in "created_at"
// unless a name is given.
func CreatedAt(name ...string) *CreatedTimestamp {
	d := &CreatedTimestamp{Name: "created_at"}
	if len(name) > 0 {
		d.Name = name[0]
	}
	return d
}

// UpdatedAt returns the row update timestamp, stored in "updated_at"
// unless a name is given.
func UpdatedAt(name ...string) *UpdatedTimestamp {
	d := &UpdatedTimestamp{Name: "updated_at"}
	if len(name) > 0 {
		d.Name = name[0]
	}
	return d
}
