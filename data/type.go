package data

import (
	"fmt"
	"strings"
)

// Attribute is a free-form key/value annotation on a type. The "key"
// attribute on a record field marks the field as the map key when a list of
// records is converted into a map.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// Field is one named field of a record type.
type Field struct {
	Name string
	Type Type
}

// Type describes the shape of a Data. Scalar kinds need no payload; lists
// carry an element type, maps a key and value type, records an ordered field
// sequence, enumerations their ordinal names, and aliases a name plus the
// aliased type.
type Type struct {
	kind   Kind
	name   string // alias name, or optional layout name for records
	attrs  []Attribute
	elem   *Type   // KindList
	key    *Type   // KindMap
	value  *Type   // KindMap
	fields []Field // KindRecord
	enums  []string
}

// Scalar type singletons.
var (
	NilType      = Type{kind: KindNil}
	BoolType     = Type{kind: KindBool}
	IntType      = Type{kind: KindInt}
	CountType    = Type{kind: KindCount}
	RealType     = Type{kind: KindReal}
	StringType   = Type{kind: KindString}
	PatternType  = Type{kind: KindPattern}
	AddrType     = Type{kind: KindAddr}
	SubnetType   = Type{kind: KindSubnet}
	TimeType     = Type{kind: KindTime}
	DurationType = Type{kind: KindDuration}
)

// ListType returns a list type with the given element type.
func ListType(elem Type) Type {
	return Type{kind: KindList, elem: &elem}
}

// MapType returns a map type with the given key and value types.
func MapType(key, value Type) Type {
	return Type{kind: KindMap, key: &key, value: &value}
}

// RecordType returns a record type with the given ordered fields. Field
// names must be unique within the record; NewSchema enforces this when the
// record enters a schema.
func RecordType(name string, fields ...Field) Type {
	return Type{kind: KindRecord, name: name, fields: fields}
}

// EnumType returns an enumeration type whose ordinals map to the given
// names in order.
func EnumType(name string, values ...string) Type {
	return Type{kind: KindEnum, name: name, enums: values}
}

// AliasType returns a named alias of another type. Conversion through an
// alias is a type error; aliases only carry the name.
func AliasType(name string, ref Type) Type {
	t := ref
	t.name = name
	if t.attrs != nil {
		t.attrs = append([]Attribute(nil), t.attrs...)
	}
	return t
}

// WithAttributes returns a copy of the type carrying the given attributes.
func (t Type) WithAttributes(attrs ...Attribute) Type {
	t.attrs = append(append([]Attribute(nil), t.attrs...), attrs...)
	return t
}

// Kind returns the tag of the type.
func (t Type) Kind() Kind { return t.kind }

// Name returns the alias, enumeration, or record name, if any.
func (t Type) Name() string { return t.name }

// Attributes returns the attribute list.
func (t Type) Attributes() []Attribute { return t.attrs }

// Attribute returns the value of the named attribute.
func (t Type) Attribute(key string) (string, bool) {
	for _, a := range t.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Elem returns the element type of a list.
func (t Type) Elem() (Type, bool) {
	if t.kind != KindList || t.elem == nil {
		return Type{}, false
	}
	return *t.elem, true
}

// KeyValue returns the key and value types of a map.
func (t Type) KeyValue() (Type, Type, bool) {
	if t.kind != KindMap || t.key == nil || t.value == nil {
		return Type{}, Type{}, false
	}
	return *t.key, *t.value, true
}

// Fields returns the ordered fields of a record.
func (t Type) Fields() []Field { return t.fields }

// EnumValues returns the ordinal names of an enumeration.
func (t Type) EnumValues() []string { return t.enums }

// Ordinal resolves an enumeration name to its ordinal.
func (t Type) Ordinal(name string) (uint64, bool) {
	for i, v := range t.enums {
		if v == name {
			return uint64(i), true
		}
	}
	return 0, false
}

// Equal reports structural type equality. Names take part for records,
// aliases, and enumerations; attributes do not.
func (t Type) Equal(other Type) bool {
	if t.kind != other.kind || t.name != other.name {
		return false
	}
	switch t.kind {
	case KindList:
		return t.elem.Equal(*other.elem)
	case KindMap:
		return t.key.Equal(*other.key) && t.value.Equal(*other.value)
	case KindRecord:
		if len(t.fields) != len(other.fields) {
			return false
		}
		for i := range t.fields {
			if t.fields[i].Name != other.fields[i].Name || !t.fields[i].Type.Equal(other.fields[i].Type) {
				return false
			}
		}
		return true
	case KindEnum:
		if len(t.enums) != len(other.enums) {
			return false
		}
		for i := range t.enums {
			if t.enums[i] != other.enums[i] {
				return false
			}
		}
		return true
	}
	return true
}

// String renders the type in schema notation.
func (t Type) String() string {
	switch t.kind {
	case KindList:
		return "list<" + t.elem.String() + ">"
	case KindMap:
		return "map<" + t.key.String() + ", " + t.value.String() + ">"
	case KindRecord:
		var sb strings.Builder
		sb.WriteString("record{")
		for i, f := range t.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(": ")
			sb.WriteString(f.Type.String())
		}
		sb.WriteString("}")
		return sb.String()
	case KindEnum:
		return "enum{" + strings.Join(t.enums, ", ") + "}"
	}
	if t.name != "" {
		return t.name
	}
	return t.kind.String()
}

// LeafField is one flattened leaf column of a record layout: the dotted
// path from the record root and the leaf type.
type LeafField struct {
	Path string
	Type Type
}

// Flatten returns the leaf columns of a record type in field order. Nested
// records contribute their leaves with dotted paths; lists and maps are
// leaves themselves.
func (t Type) Flatten() []LeafField {
	if t.kind != KindRecord {
		return nil
	}
	var out []LeafField
	var walk func(prefix string, fields []Field)
	walk = func(prefix string, fields []Field) {
		for _, f := range fields {
			path := f.Name
			if prefix != "" {
				path = prefix + "." + f.Name
			}
			if f.Type.kind == KindRecord {
				walk(path, f.Type.fields)
				continue
			}
			out = append(out, LeafField{Path: path, Type: f.Type})
		}
	}
	walk("", t.fields)
	return out
}

// CheckValue reports whether a Data is acceptable for this type, after the
// permitted widenings: nil is accepted everywhere, and enumeration columns
// accept string values that resolve to an ordinal.
func (t Type) CheckValue(d Data) error {
	if d.kind == KindNil {
		return nil
	}
	switch t.kind {
	case KindEnum:
		if d.kind == KindEnum {
			return nil
		}
		if s, ok := d.AsString(); ok {
			if _, ok := t.Ordinal(s); ok {
				return nil
			}
			return fmt.Errorf("no ordinal for %q in %s", s, t)
		}
	case KindList:
		if xs, ok := d.AsList(); ok && d.kind == KindList {
			for i, x := range xs {
				if err := t.elem.CheckValue(x); err != nil {
					return fmt.Errorf("[%d]: %w", i, err)
				}
			}
			return nil
		}
	case KindMap:
		if kvs, ok := d.AsMap(); ok {
			for i, kv := range kvs {
				if err := t.key.CheckValue(kv.Key); err != nil {
					return fmt.Errorf("[%d].key: %w", i, err)
				}
				if err := t.value.CheckValue(kv.Value); err != nil {
					return fmt.Errorf("[%d].value: %w", i, err)
				}
			}
			return nil
		}
	case KindRecord:
		if fs, ok := d.AsList(); ok && d.kind == KindRecord {
			if len(fs) != len(t.fields) {
				return fmt.Errorf("record arity mismatch: got %d, want %d", len(fs), len(t.fields))
			}
			for i, x := range fs {
				if err := t.fields[i].Type.CheckValue(x); err != nil {
					return fmt.Errorf(".%s: %w", t.fields[i].Name, err)
				}
			}
			return nil
		}
	default:
		if d.kind == t.kind {
			return nil
		}
	}
	return fmt.Errorf("value of kind %s does not fit type %s", d.kind, t)
}
