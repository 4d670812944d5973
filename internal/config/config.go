// Package config reads and writes the deploy section of a deno.json(c) file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/tidwall/jsonc"
)

const (
	deployKey    = "deploy"
	importMapKey = "importMap"
)

// FileNames are searched in order
var FileNames = []string{"deno.json", "deno.jsonc"}

var ErrNotFound = errors.New("config: no deno.json or deno.jsonc found")

// Deploy is the "deploy" section of a config file. Paths are relative to the
// directory holding the file.
type Deploy struct {
	Project    string   `json:"project,omitempty"`
	Entrypoint string   `json:"entrypoint,omitempty"`
	ImportMap  string   `json:"importMap,omitempty"`
	Include    []string `json:"include,omitempty"`
	Exclude    []string `json:"exclude,omitempty"`
}

// File is a parsed config file
type File struct {
	Path   string
	Deploy Deploy

	// top level importMap, used when the deploy section has none
	importMap string
}

// Find returns the first config file present in dir
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config: stat %q: %w", path, err)
		}
	}
	return "", ErrNotFound
}

// Load parses path. Comments and trailing commas are accepted.
func Load(path string) (*File, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	f := &File{Path: path}
	if raw, ok := doc[deployKey]; ok {
		if err := json.Unmarshal(raw, &f.Deploy); err != nil {
			return nil, fmt.Errorf("config: %s: invalid %q section: %w", path, deployKey, err)
		}
	}
	if raw, ok := doc[importMapKey]; ok {
		if err := json.Unmarshal(raw, &f.importMap); err != nil {
			return nil, fmt.Errorf("config: %s: invalid %q: %w", path, importMapKey, err)
		}
	}

	return f, nil
}

// Dir is the directory relative paths in the file resolve against
func (f *File) Dir() string {
	return filepath.Dir(f.Path)
}

// ImportMap returns the deploy import map, falling back to the top level one
func (f *File) ImportMap() string {
	if f.Deploy.ImportMap != "" {
		return f.Deploy.ImportMap
	}
	return f.importMap
}

// Save writes deploy into the file at path, keeping every other top level
// key. The file is created when missing. Comments are not preserved.
func Save(path string, deploy Deploy) error {
	lock := flock.New(lockPath(path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("config: lock %q: %w", path, err)
	}
	defer lock.Unlock()

	doc, err := readDocument(path)
	if errors.Is(err, os.ErrNotExist) {
		doc = map[string]json.RawMessage{}
	} else if err != nil {
		return err
	}

	section, err := json.Marshal(deploy)
	if err != nil {
		return fmt.Errorf("config: encode deploy section: %w", err)
	}
	doc[deployKey] = section

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode %q: %w", path, err)
	}

	return writeFileAtomic(path, append(data, '\n'))
}

// lockPath is a hidden sibling of path. It is never removed.
func lockPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock")
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}

func readDocument(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return doc, nil
}
