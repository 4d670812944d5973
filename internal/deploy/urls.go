package deploy

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// sourceRoot is where the deploy API mounts the uploaded tree
const sourceRoot = "file:///src/"

// isRemote reports whether specifier is an absolute http(s) URL
func isRemote(specifier string) bool {
	u, err := url.Parse(specifier)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SourceURL turns a local path under root into the URL the deployment
// loads it from. Remote http(s) URLs are returned as is.
func SourceURL(root, specifier string) (string, error) {
	if isRemote(specifier) {
		return specifier, nil
	}

	specifier = strings.TrimPrefix(specifier, "file://")

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("deploy: resolve root %q: %w", root, err)
	}

	path := specifier
	if !filepath.IsAbs(path) {
		path = filepath.Join(absRoot, path)
	}

	rel, err := filepath.Rel(absRoot, path)
	if err != nil {
		return "", fmt.Errorf("deploy: %q is not under %q: %w", specifier, absRoot, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("deploy: %q is not under %q", specifier, absRoot)
	}

	return sourceRoot + rel, nil
}
