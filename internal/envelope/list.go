package envelope

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// OneOrMany decodes a JSON value that a vendor sends as a bare object when
// there is exactly one item and as an array otherwise. Null, "" and an absent
// field all decode to an empty list.
type OneOrMany[T any] []T

func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*o = OneOrMany[T]{}
		return nil
	}

	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		if items == nil {
			items = []T{}
		}
		*o = items
		return nil
	}

	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*o = OneOrMany[T]{item}
	return nil
}

func (o OneOrMany[T]) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]T(o))
}

// Items returns the decoded list, never nil.
func (o OneOrMany[T]) Items() []T {
	if o == nil {
		return []T{}
	}
	return []T(o)
}

// Total is a vendor item count. CUPI sends it as the string attribute
// "@total", CMS as the XML attribute total="n"; both decode here.
type Total int

func (t *Total) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parsing total %q: %w", s, err)
	}
	*t = Total(n)
	return nil
}

func (t *Total) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		*t = 0
		return nil
	}
	n, err := strconv.Atoi(attr.Value)
	if err != nil {
		return fmt.Errorf("parsing total %q: %w", attr.Value, err)
	}
	*t = Total(n)
	return nil
}

// ListOf returns obj[key] as a list. A single child is wrapped, a missing
// child or an "@total" of zero gives an empty list.
func ListOf(obj map[string]any, key string) []any {
	if obj == nil {
		return []any{}
	}
	if total, ok := obj["@total"]; ok && fmt.Sprint(total) == "0" {
		return []any{}
	}
	switch v := obj[key].(type) {
	case nil:
		return []any{}
	case []any:
		return v
	default:
		return []any{v}
	}
}
