package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

const gitDir = ".git"

// HashIndex maps a blob hash to one local file holding that content
type HashIndex map[string]string

// Progress is reported once per hashed file
type Progress struct {
	Files int
	Bytes int64
	Path  string
}

type buildOptions struct {
	ctx        context.Context
	matcher    *Matcher
	onProgress func(Progress)
}

type Option func(*buildOptions)

// WithMatcher filters files through m
func WithMatcher(m *Matcher) Option {
	return func(o *buildOptions) {
		o.matcher = m
	}
}

// WithContext aborts the build once ctx is done
func WithContext(ctx context.Context) Option {
	return func(o *buildOptions) {
		o.ctx = ctx
	}
}

// WithProgress registers a callback invoked after every hashed file
func WithProgress(fn func(Progress)) Option {
	return func(o *buildOptions) {
		o.onProgress = fn
	}
}

// frame is one directory being listed
type frame struct {
	absPath string
	relPath string
	entries *Entries
	items   []fs.DirEntry
	next    int
}

// Build walks root and returns its manifest along with an index from blob
// hash to the absolute path of a file with that content. Symlinks are
// recorded, never followed. Any I/O error aborts the build.
func Build(root string, opts ...Option) (*Manifest, HashIndex, error) {
	o := buildOptions{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest: resolve root %q: %w", root, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("manifest: root %q is not a directory", absRoot)
	}

	m := newManifest()
	index := make(HashIndex)
	var progress Progress

	items, err := os.ReadDir(absRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest: read dir %q: %w", absRoot, err)
	}
	stack := []*frame{{absPath: absRoot, entries: m.Entries, items: items}}

	for len(stack) > 0 {
		if err := o.ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("manifest: build aborted: %w", err)
		}

		top := stack[len(stack)-1]
		if top.next >= len(top.items) {
			stack = stack[:len(stack)-1]
			continue
		}

		item := top.items[top.next]
		top.next++

		name := item.Name()
		absPath := filepath.Join(top.absPath, name)
		relPath := name
		if top.relPath != "" {
			relPath = top.relPath + "/" + name
		}

		mode := item.Type()
		switch {
		case mode.IsDir():
			if name == gitDir {
				continue
			}
			children, err := os.ReadDir(absPath)
			if err != nil {
				return nil, nil, fmt.Errorf("manifest: read dir %q: %w", absPath, err)
			}
			dir := NewDirectory()
			top.entries.set(name, dir)
			stack = append(stack, &frame{
				absPath: absPath,
				relPath: relPath,
				entries: dir.Entries,
				items:   children,
			})

		case mode&fs.ModeSymlink != 0:
			if !o.matcher.ShouldInclude(relPath) {
				continue
			}
			target, err := os.Readlink(absPath)
			if err != nil {
				return nil, nil, fmt.Errorf("manifest: read link %q: %w", absPath, err)
			}
			top.entries.set(name, NewSymlink(target))

		case mode.IsRegular():
			if !o.matcher.ShouldInclude(relPath) {
				continue
			}
			content, err := os.ReadFile(absPath)
			if err != nil {
				return nil, nil, fmt.Errorf("manifest: read file %q: %w", absPath, err)
			}
			hash := BlobHash(content)
			top.entries.set(name, NewFile(hash, uint64(len(content))))
			index[hash] = absPath

			progress.Files++
			progress.Bytes += int64(len(content))
			progress.Path = relPath
			if o.onProgress != nil {
				o.onProgress(progress)
			}

		default:
			return nil, nil, fmt.Errorf("manifest: unsupported file type %s at %q", mode.String(), absPath)
		}
	}

	slog.Debug("manifest built", "root", absRoot, "files", progress.Files, "size", humanize.Bytes(uint64(progress.Bytes)), "blobs", len(index))
	return m, index, nil
}
