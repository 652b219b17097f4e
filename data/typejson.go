package data

import (
	"encoding/json"
	"fmt"
)

// typeJSON is the persisted JSON shape of a Type. It lives in every
// partition's meta.json; keep it stable.
type typeJSON struct {
	Kind   string      `json:"kind"`
	Name   string      `json:"name,omitempty"`
	Attrs  []Attribute `json:"attributes,omitempty"`
	Elem   *typeJSON   `json:"elem,omitempty"`
	Key    *typeJSON   `json:"key,omitempty"`
	Value  *typeJSON   `json:"value,omitempty"`
	Fields []fieldJSON `json:"fields,omitempty"`
	Enums  []string    `json:"enums,omitempty"`
}

type fieldJSON struct {
	Name string   `json:"name"`
	Type typeJSON `json:"type"`
}

func (t Type) toJSON() typeJSON {
	out := typeJSON{Kind: t.kind.String(), Name: t.name, Attrs: t.attrs, Enums: t.enums}
	if t.elem != nil {
		e := t.elem.toJSON()
		out.Elem = &e
	}
	if t.key != nil {
		k := t.key.toJSON()
		out.Key = &k
	}
	if t.value != nil {
		v := t.value.toJSON()
		out.Value = &v
	}
	for _, f := range t.fields {
		out.Fields = append(out.Fields, fieldJSON{Name: f.Name, Type: f.Type.toJSON()})
	}
	return out
}

func kindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

func (j typeJSON) toType() (Type, error) {
	kind, ok := kindFromName(j.Kind)
	if !ok {
		return Type{}, fmt.Errorf("unknown type kind %q", j.Kind)
	}
	t := Type{kind: kind, name: j.Name, attrs: j.Attrs, enums: j.Enums}
	if j.Elem != nil {
		e, err := j.Elem.toType()
		if err != nil {
			return Type{}, err
		}
		t.elem = &e
	}
	if j.Key != nil {
		k, err := j.Key.toType()
		if err != nil {
			return Type{}, err
		}
		t.key = &k
	}
	if j.Value != nil {
		v, err := j.Value.toType()
		if err != nil {
			return Type{}, err
		}
		t.value = &v
	}
	for _, f := range j.Fields {
		ft, err := f.Type.toType()
		if err != nil {
			return Type{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		t.fields = append(t.fields, Field{Name: f.Name, Type: ft})
	}
	return t, nil
}

// MarshalJSON implements json.Marshaler.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toJSON())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Type) UnmarshalJSON(b []byte) error {
	var j typeJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	parsed, err := j.toType()
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Types())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(b []byte) error {
	var types []Type
	if err := json.Unmarshal(b, &types); err != nil {
		return err
	}
	fresh, err := NewSchema(types...)
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}
