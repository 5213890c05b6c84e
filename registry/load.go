package registry

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type document struct {
	Registries []Registry `yaml:"registries"`
}

// Load parses registries from a YAML document of the form
//
//	registries:
//	  - name: lab
//	    suite: kex
//	    algorithms:
//	      - {name: x25519, port: 5000}
//
// Algorithm order in the document is preserved.
func Load(r io.Reader) ([]*Registry, error) {
	var doc document

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("decode registries: %w", err)
	}

	out := make([]*Registry, 0, len(doc.Registries))

	for i := range doc.Registries {
		reg := &doc.Registries[i]
		if err := reg.Validate(); err != nil {
			return nil, err
		}

		out = append(out, reg)
	}

	return out, nil
}

// LoadFile parses registries from a YAML file.
func LoadFile(path string) ([]*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Resolve returns the named registry, preferring the given custom
// registries over the built-ins.
func Resolve(name string, custom []*Registry) (*Registry, error) {
	for _, r := range custom {
		if r.Name == name {
			return clone(r), nil
		}
	}

	return Builtin(name)
}
