package tracing

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TagKind identifies the declared type of a tag value.
type TagKind int

const (
	// TagString is a plain string tag.
	TagString TagKind = iota
	// TagInt is a 64-bit integer tag.
	TagInt
)

// TagValue is a typed metric tag value. Tags carry their declared type so
// observers can retrieve a value as the type it was recorded with instead
// of parsing strings.
type TagValue struct {
	kind TagKind
	str  string
	num  int64
}

// StringValue creates a string tag value.
func StringValue(s string) TagValue {
	return TagValue{kind: TagString, str: s}
}

// IntValue creates an integer tag value.
func IntValue(n int64) TagValue {
	return TagValue{kind: TagInt, num: n}
}

// Kind returns the declared type of the value.
func (v TagValue) Kind() TagKind { return v.kind }

// AsString returns the value rendered as a string regardless of kind.
func (v TagValue) AsString() string {
	if v.kind == TagInt {
		return strconv.FormatInt(v.num, 10)
	}
	return v.str
}

// AsInt returns the integer value, or zero for string tags.
func (v TagValue) AsInt() int64 {
	return v.num
}

// MarshalJSON renders the value as its natural JSON type.
func (v TagValue) MarshalJSON() ([]byte, error) {
	if v.kind == TagInt {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.str)
}

// UnmarshalJSON accepts either a JSON string or a JSON integer.
func (v *TagValue) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = IntValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tag value must be a string or integer: %w", err)
	}
	*v = StringValue(s)
	return nil
}

// SetTag sets a string tag on the span. Ignored after End.
func (s *Span) SetTag(key, value string) {
	s.setTag(key, StringValue(value))
}

// SetIntTag sets an integer tag on the span. Ignored after End.
func (s *Span) SetIntTag(key string, value int64) {
	s.setTag(key, IntValue(value))
}

func (s *Span) setTag(key string, value TagValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	if s.Tags == nil {
		s.Tags = make(map[string]TagValue)
	}
	s.Tags[key] = value
}

// StringTag retrieves a tag recorded as a string. The second return value
// is false if the key is absent or the tag was recorded as another type.
func (s *Span) StringTag(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Tags[key]
	if !ok || v.kind != TagString {
		return "", false
	}
	return v.str, true
}

// IntTag retrieves a tag recorded as an integer. The second return value
// is false if the key is absent or the tag was recorded as another type.
func (s *Span) IntTag(key string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Tags[key]
	if !ok || v.kind != TagInt {
		return 0, false
	}
	return v.num, true
}
