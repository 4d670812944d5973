package manifest

import (
	"bytes"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-json"
)

// Kind discriminates the variants of Entry
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
	KindSymlink   Kind = "symlink"
)

// Entry is a single node of the manifest tree. Which fields are meaningful
// depends on Kind.
type Entry struct {
	Kind Kind

	// file
	GitSha1 string
	Size    uint64

	// directory
	Entries *Entries

	// symlink
	Target string
}

func NewFile(hash string, size uint64) *Entry {
	return &Entry{Kind: KindFile, GitSha1: hash, Size: size}
}

func NewDirectory() *Entry {
	return &Entry{Kind: KindDirectory, Entries: newEntries()}
}

func NewSymlink(target string) *Entry {
	return &Entry{Kind: KindSymlink, Target: target}
}

func (e *Entry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindFile:
		return json.Marshal(struct {
			Kind    Kind   `json:"kind"`
			GitSha1 string `json:"gitSha1"`
			Size    uint64 `json:"size"`
		}{e.Kind, e.GitSha1, e.Size})
	case KindDirectory:
		entries := e.Entries
		if entries == nil {
			entries = newEntries()
		}
		return json.Marshal(struct {
			Kind    Kind     `json:"kind"`
			Entries *Entries `json:"entries"`
		}{e.Kind, entries})
	case KindSymlink:
		return json.Marshal(struct {
			Kind   Kind   `json:"kind"`
			Target string `json:"target"`
		}{e.Kind, e.Target})
	default:
		return nil, fmt.Errorf("manifest: unknown entry kind %q", e.Kind)
	}
}

// Entries is a name-keyed set of entries that remembers insertion order.
// Names are unique; setting an existing name replaces the entry in place.
type Entries struct {
	names  []string
	byName map[string]*Entry
}

func newEntries() *Entries {
	return &Entries{byName: make(map[string]*Entry)}
}

func (e *Entries) set(name string, entry *Entry) {
	if _, ok := e.byName[name]; !ok {
		e.names = append(e.names, name)
	}
	e.byName[name] = entry
}

// Len returns the number of direct children
func (e *Entries) Len() int {
	return len(e.names)
}

// Names returns the child names in insertion order
func (e *Entries) Names() []string {
	return append([]string(nil), e.names...)
}

func (e *Entries) Get(name string) (*Entry, bool) {
	entry, ok := e.byName[name]
	return entry, ok
}

func (e *Entries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range e.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.byName[name])
		if err != nil {
			return nil, fmt.Errorf("manifest: encode %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Manifest is the root directory of a deployment
type Manifest struct {
	Entries *Entries `json:"entries"`
}

func newManifest() *Manifest {
	return &Manifest{Entries: newEntries()}
}

// Lookup resolves a slash separated path relative to the manifest root
func (m *Manifest) Lookup(path string) (*Entry, bool) {
	path = strings.Trim(path, "/")
	if path == "" {
		return &Entry{Kind: KindDirectory, Entries: m.Entries}, true
	}

	current := m.Entries
	parts := strings.Split(path, "/")
	for i, part := range parts {
		entry, ok := current.Get(part)
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return entry, true
		}
		if entry.Kind != KindDirectory {
			return nil, false
		}
		current = entry.Entries
	}
	return nil, false
}

// Walk visits every entry depth first in insertion order. Paths are slash
// separated and relative to the manifest root.
func (m *Manifest) Walk(fn func(path string, entry *Entry)) {
	walkEntries("", m.Entries, fn)
}

func walkEntries(prefix string, entries *Entries, fn func(string, *Entry)) {
	if entries == nil {
		return
	}
	for _, name := range entries.names {
		entry := entries.byName[name]
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}
		fn(path, entry)
		if entry.Kind == KindDirectory {
			walkEntries(path, entry.Entries, fn)
		}
	}
}

// Summary aggregates the files of a manifest
type Summary struct {
	Files       int
	Directories int
	Symlinks    int
	Bytes       uint64
	UniqueBlobs int
}

func (m *Manifest) Summary() Summary {
	var s Summary
	blobs := mapset.NewThreadUnsafeSet[string]()
	m.Walk(func(_ string, entry *Entry) {
		switch entry.Kind {
		case KindFile:
			s.Files++
			s.Bytes += entry.Size
			blobs.Add(entry.GitSha1)
		case KindDirectory:
			s.Directories++
		case KindSymlink:
			s.Symlinks++
		}
	})
	s.UniqueBlobs = blobs.Cardinality()
	return s
}
