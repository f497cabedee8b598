package envelope

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeXML reads one XML document into nested maps keyed by local element
// name. Attributes become "@name" keys, mixed text becomes "#text", an
// element with only text becomes a string, and repeated siblings collapse
// into a []any. Namespace declarations are dropped.
func DecodeXML(r io.Reader) (map[string]any, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, errors.New("decoding xml: empty document")
		}
		if err != nil {
			return nil, fmt.Errorf("decoding xml: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			v, err := decodeElement(dec, se)
			if err != nil {
				return nil, fmt.Errorf("decoding xml element %s: %w", se.Name.Local, err)
			}
			return map[string]any{se.Name.Local: v}, nil
		}
	}
}

func decodeElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	node := map[string]any{}
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		node["@"+a.Name.Local] = a.Value
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			addChild(node, t.Name.Local, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			s := strings.TrimSpace(text.String())
			if len(node) == 0 {
				return s, nil
			}
			if s != "" {
				node["#text"] = s
			}
			return node, nil
		}
	}
}

func addChild(node map[string]any, name string, child any) {
	existing, ok := node[name]
	if !ok {
		node[name] = child
		return
	}
	if list, ok := existing.([]any); ok {
		node[name] = append(list, child)
		return
	}
	node[name] = []any{existing, child}
}

// Path walks nested maps by key and returns what it finds, or nil.
func Path(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

// Text returns the text of a decoded element, whether it was decoded as a
// bare string or as a map carrying "#text".
func Text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["#text"].(string); ok {
			return s
		}
	}
	return ""
}
