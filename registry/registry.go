// Package registry maps algorithm names to the starting port of the port
// range reserved for them. Server and client sides must use the same
// registry so a name resolves to the same ports on both ends.
package registry

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknown is returned when a registry or algorithm name is not known.
var ErrUnknown = errors.New("unknown registry")

// Suite selects which handshake component a registry varies.
type Suite string

const (
	// SuiteKEX varies the key-exchange group; the certificate is fixed.
	SuiteKEX Suite = "kex"
	// SuiteSig varies the certificate signature algorithm; the group is fixed.
	SuiteSig Suite = "sig"
)

// ParseSuite converts a suite name to a Suite.
func ParseSuite(s string) (Suite, error) {
	switch Suite(s) {
	case SuiteKEX, SuiteSig:
		return Suite(s), nil
	default:
		return "", fmt.Errorf("unknown suite %q (expected kex or sig)", s)
	}
}

// Entry is one algorithm and the first port of its range.
type Entry struct {
	Name      string `yaml:"name"`
	StartPort int    `yaml:"port"`
}

// Ports returns the n ports [StartPort, StartPort+n) used by the entry
// at concurrency n.
func (e Entry) Ports(n int) []int {
	if n <= 0 {
		return nil
	}

	ports := make([]int, n)
	for i := range ports {
		ports[i] = e.StartPort + i
	}

	return ports
}

// Port returns the port of the given slot.
func (e Entry) Port(slot int) int {
	return e.StartPort + slot
}

// Registry is an ordered set of entries. Iteration order is declaration
// order and is the order in which algorithms are benchmarked and reported.
type Registry struct {
	Name    string  `yaml:"name"`
	Suite   Suite   `yaml:"suite"`
	Entries []Entry `yaml:"algorithms"`
}

// Lookup returns the entry for an algorithm name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e, true
		}
	}

	return Entry{}, false
}

// Names returns the algorithm names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		names[i] = e.Name
	}

	return names
}

// Overlap describes two entries whose port ranges intersect.
type Overlap struct {
	First  Entry
	Second Entry
}

func (o Overlap) String() string {
	return fmt.Sprintf("%s (%d) overlaps %s (%d)",
		o.First.Name, o.First.StartPort, o.Second.Name, o.Second.StartPort)
}

// Overlaps reports every pair of entries whose port ranges intersect at
// concurrency n. Nothing enforces this at run time.
func (r *Registry) Overlaps(n int) []Overlap {
	if n <= 0 {
		return nil
	}

	sorted := make([]Entry, len(r.Entries))
	copy(sorted, r.Entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartPort < sorted[j].StartPort
	})

	var overlaps []Overlap

	for i := range sorted {
		end := sorted[i].StartPort + n
		for j := i + 1; j < len(sorted) && sorted[j].StartPort < end; j++ {
			overlaps = append(overlaps, Overlap{First: sorted[i], Second: sorted[j]})
		}
	}

	return overlaps
}

// Validate checks that the registry is well formed: named, with a known
// suite, valid ports and unique algorithm names. Port ranges are not checked;
// see Overlaps.
func (r *Registry) Validate() error {
	if r.Name == "" {
		return errors.New("registry without a name")
	}

	if _, err := ParseSuite(string(r.Suite)); err != nil {
		return fmt.Errorf("registry %s: %w", r.Name, err)
	}

	seen := make(map[string]struct{}, len(r.Entries))

	for _, e := range r.Entries {
		if e.Name == "" {
			return fmt.Errorf("registry %s: algorithm without a name", r.Name)
		}

		if e.StartPort <= 0 || e.StartPort > 65535 {
			return fmt.Errorf("registry %s: algorithm %s: invalid port %d",
				r.Name, e.Name, e.StartPort)
		}

		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("registry %s: duplicate algorithm %s", r.Name, e.Name)
		}

		seen[e.Name] = struct{}{}
	}

	return nil
}
