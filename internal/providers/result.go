package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Kind tags what a Result carries.
type Kind int

const (
	// KindString is a plain text result.
	KindString Kind = iota
	// KindStructured is a JSON object or array result.
	KindStructured
)

func (k Kind) String() string {
	if k == KindString {
		return "string"
	}
	return "structured"
}

// Field is one top-level member of a structured value, in emitted order.
type Field struct {
	Name  string
	Value json.RawMessage
}

// Result is the final value of a job.
//
// The value is chosen from the terminal event's values: the "output" member
// if present, else "text", else the whole mapping.
type Result struct {
	values json.RawMessage
	value  json.RawMessage
	kind   Kind
}

func newResult(values json.RawMessage) (*Result, error) {
	fields, err := orderedFields(values)
	if err != nil {
		return nil, fmt.Errorf("%w: outputs values: %v", ErrMalformedResponse, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: outputs event has no values", ErrMalformedResponse)
	}

	value := values
	if v, ok := lookup(fields, "output"); ok {
		value = v
	} else if v, ok := lookup(fields, "text"); ok {
		value = v
	}
	if isNull(value) {
		return nil, fmt.Errorf("%w: outputs value is null", ErrMalformedResponse)
	}

	kind := KindStructured
	if bytes.HasPrefix(bytes.TrimSpace(value), []byte(`"`)) {
		kind = KindString
	}
	return &Result{values: values, value: value, kind: kind}, nil
}

// NewStringResult builds a Result holding text, as if the service had
// returned {"output": text}.
func NewStringResult(text string) *Result {
	raw, _ := json.Marshal(text)
	values, _ := json.Marshal(map[string]json.RawMessage{"output": raw})
	return &Result{values: values, value: raw, kind: KindString}
}

// NewStructuredResult builds a Result from a JSON mapping of values,
// applying the same extraction rule as a live stream.
func NewStructuredResult(values json.RawMessage) (*Result, error) {
	return newResult(values)
}

// Kind reports whether the extracted value is text or structured.
func (r *Result) Kind() Kind { return r.kind }

// Value returns the extracted value as raw JSON.
func (r *Result) Value() json.RawMessage { return r.value }

// Values returns the full values mapping of the terminal event.
func (r *Result) Values() json.RawMessage { return r.values }

// Fields returns the top-level members of the extracted value in emitted
// order. Text results have no fields.
func (r *Result) Fields() []Field {
	if r.kind == KindString {
		return nil
	}
	fields, _ := orderedFields(r.value)
	return fields
}

// Field returns a named top-level member of the extracted value.
func (r *Result) Field(name string) (json.RawMessage, bool) {
	return lookup(r.Fields(), name)
}

// Decode unmarshals the extracted value into v. A text value holding JSON
// (optionally fenced in markdown) is parsed as that JSON.
func (r *Result) Decode(v any) error {
	raw := r.value
	if r.kind == KindString {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		parsed, err := parseStructuredJSON(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		raw = parsed
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// JSON returns the extracted value as a JSON document, parsing text
// values the way Decode does.
func (r *Result) JSON() (json.RawMessage, error) {
	var doc json.RawMessage
	if err := r.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Text returns the text payload of the result. See TextField.
func (r *Result) Text() (string, error) {
	return r.TextField("")
}

// TextField returns the text payload of the result. A text value is
// returned as-is. For a structured value the named field is used when it
// holds a string, otherwise the first string-valued field in emitted order.
func (r *Result) TextField(name string) (string, error) {
	var s string
	if r.kind == KindString {
		if err := json.Unmarshal(r.value, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return s, nil
	}

	fields := r.Fields()
	if name != "" {
		if raw, ok := lookup(fields, name); ok {
			if err := json.Unmarshal(raw, &s); err == nil {
				return s, nil
			}
		}
	}
	for _, f := range fields {
		if err := json.Unmarshal(f.Value, &s); err == nil && !isNull(f.Value) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: no text field in result", ErrMalformedResponse)
}

// orderedFields walks a JSON object and returns its members in order.
// Anything other than an object yields no fields.
func orderedFields(raw json.RawMessage) ([]Field, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil
	}

	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return fields, nil
}

func lookup(fields []Field, name string) (json.RawMessage, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
