package jsonc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Object is a read-only JSON object that remembers the order of its keys.
// Nested objects decode to Object, arrays to []any and numbers to json.Number.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject creates an Object with the given keys and values.
func NewObject(keys []string, values map[string]any) Object {
	return Object{keys: keys, values: values}
}

// Len returns the number of keys.
func (obj *Object) Len() int {
	return len(obj.keys)
}

// Keys returns the keys in document order.
func (obj *Object) Keys() []string {
	return obj.keys
}

// Get returns the value of the key.
func (obj *Object) Get(key string) (any, bool) {
	v, ok := obj.values[key]
	return v, ok
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (obj *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	t, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expect JSON object open with '{'")
	}
	if err = obj.parse(dec); err != nil {
		return err
	}
	if t, err = dec.Token(); err != io.EOF {
		return fmt.Errorf("expect end of JSON object but got more token: %T: %v or err: %v", t, t, err)
	}
	return nil
}

func (obj *Object) parse(dec *json.Decoder) error {
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := t.(string)
		if !ok {
			return fmt.Errorf("expecting JSON key should be always a string: %T: %v", t, t)
		}
		t, err = dec.Token()
		if err != nil {
			return err
		}
		value, err := decodeValue(t, dec)
		if err != nil {
			return err
		}
		if obj.values == nil {
			obj.values = make(map[string]any)
		}
		if _, dup := obj.values[key]; !dup {
			obj.keys = append(obj.keys, key)
		}
		obj.values[key] = value
	}
	t, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '}' {
		return fmt.Errorf("expect JSON object close with '}'")
	}
	return nil
}

func decodeValue(t json.Token, dec *json.Decoder) (any, error) {
	delim, ok := t.(json.Delim)
	if !ok {
		return t, nil
	}
	switch delim {
	case '{':
		obj := Object{values: make(map[string]any)}
		if err := obj.parse(dec); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := make([]any, 0)
		for dec.More() {
			t, err := dec.Token()
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(t, dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		t, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := t.(json.Delim); !ok || d != ']' {
			return nil, fmt.Errorf("expect JSON array close with ']'")
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter: %q", delim)
	}
}
