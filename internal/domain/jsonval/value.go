// Package jsonval provides an order-preserving JSON value model.
//
// encoding/json's map[string]any loses object key order, which matters for
// projection and exploration output: clients diff processed responses against
// originals, so object fields must round-trip in insertion order. Value is a
// tagged sum over the six JSON kinds with an ordered field list for objects.
package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies the JSON type of a Value.
type Kind int

const (
	// KindNull is the JSON null value.
	KindNull Kind = iota
	// KindBool is a JSON boolean.
	KindBool
	// KindNumber is a JSON number (stored as json.Number, never float-rounded).
	KindNumber
	// KindString is a JSON string.
	KindString
	// KindArray is a JSON array.
	KindArray
	// KindObject is a JSON object with insertion-ordered fields.
	KindObject
)

// TypeName returns the JSON type name for the kind ("null", "boolean",
// "number", "string", "array", "object").
func (k Kind) TypeName() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Field is a single object member. Order of fields is insertion order.
type Field struct {
	Key   string
	Value *Value
}

// Value is one JSON value. Exactly the fields relevant to Kind are set.
type Value struct {
	Kind   Kind
	Bool   bool
	Number json.Number
	Str    string
	Items  []*Value // KindArray
	Fields []Field  // KindObject
}

// Null returns the JSON null value.
func Null() *Value { return &Value{Kind: KindNull} }

// Boolean returns a JSON boolean value.
func Boolean(b bool) *Value { return &Value{Kind: KindBool, Bool: b} }

// Number64 returns a JSON number value from an int64.
func Number64(n int64) *Value {
	return &Value{Kind: KindNumber, Number: json.Number(fmt.Sprintf("%d", n))}
}

// String returns a JSON string value.
func String(s string) *Value { return &Value{Kind: KindString, Str: s} }

// Array returns a JSON array value holding the given items.
func Array(items ...*Value) *Value { return &Value{Kind: KindArray, Items: items} }

// Object returns an empty JSON object value.
func Object() *Value { return &Value{Kind: KindObject} }

// Get returns the value for key in an object, or (nil, false) when the
// receiver is not an object or the key is absent.
func (v *Value) Get(key string) (*Value, bool) {
	if v == nil || v.Kind != KindObject {
		return nil, false
	}
	for i := range v.Fields {
		if v.Fields[i].Key == key {
			return v.Fields[i].Value, true
		}
	}
	return nil, false
}

// Set appends or replaces the field for key, preserving first-insertion order.
func (v *Value) Set(key string, val *Value) {
	for i := range v.Fields {
		if v.Fields[i].Key == key {
			v.Fields[i].Value = val
			return
		}
	}
	v.Fields = append(v.Fields, Field{Key: key, Value: val})
}

// Keys returns the object keys in insertion order. Nil for non-objects.
func (v *Value) Keys() []string {
	if v == nil || v.Kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.Fields))
	for i := range v.Fields {
		keys[i] = v.Fields[i].Key
	}
	return keys
}

// Len returns the number of items (array) or fields (object), 0 otherwise.
func (v *Value) Len() int {
	switch v.Kind {
	case KindArray:
		return len(v.Items)
	case KindObject:
		return len(v.Fields)
	default:
		return 0
	}
}

// IsContainer reports whether the value is an array or object.
func (v *Value) IsContainer() bool {
	return v.Kind == KindArray || v.Kind == KindObject
}

// Parse decodes raw JSON into a Value, preserving object key order and
// numeric precision.
func Parse(raw []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	// Reject trailing garbage so "12abc" does not parse as a number.
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Boolean(t), nil
	case json.Number:
		return &Value{Kind: KindNumber, Number: t}, nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '{':
			obj := Object()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Fields = append(obj.Fields, Field{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return obj, nil
		case '[':
			arr := &Value{Kind: KindArray}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Items = append(arr.Items, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return arr, nil
		}
	}
	return nil, fmt.Errorf("unexpected JSON token: %v", tok)
}

// MarshalJSON encodes the value preserving object field order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode renders the value as indented JSON (two-space indent), the format
// proxy tools return to clients.
func (v *Value) Encode() (string, error) {
	compact, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

func encodeValue(buf *bytes.Buffer, v *Value) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if v.Number == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(v.Number.String())
		}
	case KindString:
		b, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, f := range v.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeValue(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("invalid value kind %d", v.Kind)
	}
	return nil
}
