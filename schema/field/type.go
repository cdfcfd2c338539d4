package field

// Type is a dialect-neutral semantic column type.
type Type uint8

// Semantic types. Width tiers of text and binary types are expressed with
// the column size rather than separate types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeDecimal
	TypeString
	TypeText
	TypeBytes
	TypeDate
	TypeDateTime
	TypeTimestamp
	TypeTime
	TypeYear
	TypeJSON
	TypeEnum
	TypeUUID
	endTypes
)

var typeNames = [...]string{
	TypeInvalid:   "invalid",
	TypeBool:      "bool",
	TypeInt8:      "int8",
	TypeInt16:     "int16",
	TypeInt32:     "int32",
	TypeInt64:     "int64",
	TypeFloat32:   "float32",
	TypeFloat64:   "float64",
	TypeDecimal:   "decimal",
	TypeString:    "string",
	TypeText:      "text",
	TypeBytes:     "bytes",
	TypeDate:      "date",
	TypeDateTime:  "datetime",
	TypeTimestamp: "timestamp",
	TypeTime:      "time",
	TypeYear:      "year",
	TypeJSON:      "json",
	TypeEnum:      "enum",
	TypeUUID:      "uuid",
}

// String returns the string representation of a type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Integer reports if the given type is an integer type.
func (t Type) Integer() bool {
	return t >= TypeInt8 && t <= TypeInt64
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t >= TypeInt8 && t <= TypeDecimal
}

// Temporal reports if the given type holds a date, a time or both.
func (t Type) Temporal() bool {
	return t >= TypeDate && t <= TypeYear
}

// ParseType returns the semantic type with the given name.
func ParseType(name string) (Type, bool) {
	for t := TypeBool; t < endTypes; t++ {
		if typeNames[t] == name {
			return t, true
		}
	}
	return TypeInvalid, false
}

// Size tiers of text and binary columns.
const (
	DefaultStringSize = 255
	TinySize          = 1<<8 - 1
	RegularSize       = 1<<16 - 1
	MediumSize        = 1<<24 - 1
	LongSize          = 1<<32 - 1
)

// Default decimal precision and scale.
const (
	DefaultPrecision = 10
	DefaultScale     = 2
)
