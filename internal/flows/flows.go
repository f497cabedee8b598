// Package flows loads call-flow definitions from YAML and imports them into
// the call_flows table, keyed by name.
package flows

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/ucportal/internal/storage"
)

// Definition is one call flow as written in YAML.
//
//	name: internal-to-pstn
//	calling: "1001"
//	called: "915551234567"
//	expect: ringback then answer
//	steps:
//	  - dial from 1001
//	  - verify CLID on the far end
type Definition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Calling     string   `yaml:"calling,omitempty"`
	Called      string   `yaml:"called,omitempty"`
	Expect      string   `yaml:"expect,omitempty"`
	Steps       []string `yaml:"steps,omitempty"`
}

// CallFlow converts d to its stored form.
func (d Definition) CallFlow() storage.CallFlow {
	return storage.CallFlow{
		Name:           d.Name,
		Description:    d.Description,
		CallingNumber:  d.Calling,
		CalledNumber:   d.Called,
		ExpectedResult: d.Expect,
		Steps:          d.Steps,
	}
}

// Store is the part of storage.Store an import writes to. UpsertCallFlows
// writes all flows or none.
type Store interface {
	UpsertCallFlows(fs []storage.CallFlow) ([]bool, error)
}

// Summary reports what an import did.
type Summary struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
}

// Total is the number of flows written.
func (s Summary) Total() int { return len(s.Created) + len(s.Updated) }

func (s *Summary) merge(o Summary) {
	s.Created = append(s.Created, o.Created...)
	s.Updated = append(s.Updated, o.Updated...)
}

// Parse reads a YAML stream. Each document is either a single flow or a
// sequence of flows. Names must be present and unique across the stream.
func Parse(r io.Reader) ([]Definition, error) {
	var defs []Definition
	dec := yaml.NewDecoder(r)
	for doc := 1; ; doc++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", doc, err)
		}
		if len(node.Content) == 0 {
			continue
		}
		body := node.Content[0]
		switch body.Kind {
		case yaml.SequenceNode:
			var list []Definition
			if err := body.Decode(&list); err != nil {
				return nil, fmt.Errorf("document %d: %w", doc, err)
			}
			defs = append(defs, list...)
		case yaml.MappingNode:
			var d Definition
			if err := body.Decode(&d); err != nil {
				return nil, fmt.Errorf("document %d: %w", doc, err)
			}
			defs = append(defs, d)
		default:
			return nil, fmt.Errorf("document %d: expected a flow or a list of flows (line %d)", doc, body.Line)
		}
	}

	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return nil, fmt.Errorf("flow %d: name is required", i+1)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("flow %q is defined twice", d.Name)
		}
		seen[d.Name] = true
		defs[i] = d
	}
	return defs, nil
}

// Import parses r and upserts every flow by name. Nothing is written when
// the stream does not parse.
func Import(store Store, r io.Reader) (Summary, error) {
	defs, err := Parse(r)
	if err != nil {
		return Summary{}, err
	}
	return Save(store, defs)
}

// Save upserts already parsed definitions by name in one transaction.
// Nothing is written when any flow fails.
func Save(store Store, defs []Definition) (Summary, error) {
	fs := make([]storage.CallFlow, len(defs))
	for i, d := range defs {
		fs[i] = d.CallFlow()
	}
	created, err := store.UpsertCallFlows(fs)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for i, d := range defs {
		if created[i] {
			sum.Created = append(sum.Created, d.Name)
		} else {
			sum.Updated = append(sum.Updated, d.Name)
		}
	}
	return sum, nil
}

// ImportFile imports a single YAML file.
func ImportFile(store Store, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()

	sum, err := Import(store, f)
	if err != nil {
		return sum, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return sum, nil
}

// ImportDir imports every *.yaml and *.yml file in dir, in name order. It
// stops at the first file that fails.
func ImportDir(store Store, dir string) (Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsDefinitionFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	var sum Summary
	for _, name := range names {
		s, err := ImportFile(store, filepath.Join(dir, name))
		sum.merge(s)
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// IsDefinitionFile reports whether name looks like a flow file. Editor swap
// and hidden files are skipped.
func IsDefinitionFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
