package macro

import (
	"fmt"
	"sort"
	"sync"
)

// Table is the read side of a definition table as consumed by the expander.
// Lookup returns every definition for name in the order they were added;
// Active returns the one selected for expansion.
type Table interface {
	Lookup(name string) []Definition
	Active(name string) (Definition, bool)
	IsKnownType(name string) bool
}

// ParseFailureSource is implemented by tables that remember extraction
// problems of definitions they could not store.
type ParseFailureSource interface {
	ParseFailures(name string) []Diagnostic
}

// NameLister is implemented by tables that can enumerate their macro names.
type NameLister interface {
	Names() []string
}

// Set is an in-memory Table. Redefinitions are appended, never replaced;
// the most recent definition is active unless SetActive picked another.
type Set struct {
	mu       sync.RWMutex
	defs     map[string][]Definition
	active   map[string]int
	types    map[string]map[string]bool
	failures map[string][]Diagnostic
}

func NewSet() *Set {
	return &Set{
		defs:     make(map[string][]Definition),
		active:   make(map[string]int),
		types:    make(map[string]map[string]bool),
		failures: make(map[string][]Diagnostic),
	}
}

// Add appends definitions without touching earlier ones.
func (s *Set) Add(defs ...Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range defs {
		s.defs[d.Name] = append(s.defs[d.Name], d.Clone())
	}
}

// AddKnownTypes registers type names declared in file.
func (s *Set) AddKnownTypes(file string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		if s.types[n] == nil {
			s.types[n] = make(map[string]bool)
		}
		s.types[n][file] = true
	}
}

// AddParseFailures records extraction diagnostics keyed by macro name.
func (s *Set) AddParseFailures(diags ...Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range diags {
		if d.Macro == "" {
			continue
		}
		s.failures[d.Macro] = append(s.failures[d.Macro], d.Clone())
	}
}

// ReplaceFile drops everything previously contributed by file and adds the
// new extraction results, which become the most recent definitions.
func (s *Set) ReplaceFile(file string, defs []Definition, types []string, failures []Diagnostic) error {
	s.RemoveFile(file)
	s.Add(defs...)
	s.AddKnownTypes(file, types...)
	s.AddParseFailures(failures...)
	return nil
}

// RemoveFile forgets all definitions, type names and failures of file.
func (s *Set) RemoveFile(file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, defs := range s.defs {
		kept := defs[:0]
		for _, d := range defs {
			if d.Location.File != file {
				kept = append(kept, d)
			}
		}
		if len(kept) == len(defs) {
			continue
		}
		delete(s.active, name)
		if len(kept) == 0 {
			delete(s.defs, name)
		} else {
			s.defs[name] = kept
		}
	}
	for name, files := range s.types {
		delete(files, file)
		if len(files) == 0 {
			delete(s.types, name)
		}
	}
	for name, diags := range s.failures {
		kept := diags[:0]
		for _, d := range diags {
			if d.Location.File != file {
				kept = append(kept, d)
			}
		}
		if len(kept) == 0 {
			delete(s.failures, name)
		} else {
			s.failures[name] = kept
		}
	}
}

// SetActive selects the index-th definition of name (in Lookup order).
func (s *Set) SetActive(name string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs := s.defs[name]
	if index < 0 || index >= len(defs) {
		return fmt.Errorf("macro %s has %d definition(s), cannot select #%d", name, len(defs), index)
	}
	s.active[name] = index
	return nil
}

func (s *Set) Lookup(name string) []Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := s.defs[name]
	if len(defs) == 0 {
		return nil
	}
	out := make([]Definition, len(defs))
	for i, d := range defs {
		out[i] = d.Clone()
	}
	return out
}

func (s *Set) Active(name string) (Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := s.defs[name]
	if len(defs) == 0 {
		return Definition{}, false
	}
	i, ok := s.active[name]
	if !ok {
		i = len(defs) - 1
	}
	return defs[i].Clone(), true
}

func (s *Set) IsKnownType(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.types[name]) > 0
}

func (s *Set) ParseFailures(name string) []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	diags := s.failures[name]
	if len(diags) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(diags))
	for i, d := range diags {
		out[i] = d.Clone()
	}
	return out
}

// Names returns all macro names in sorted order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.defs))
	for n := range s.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored definitions, redefinitions included.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, defs := range s.defs {
		n += len(defs)
	}
	return n
}
