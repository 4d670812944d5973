package deploy

import (
	"fmt"
	"os"

	"github.com/deployctl/deployctl/internal/manifest"
)

// ResolveAssets reads the content of every needed blob, in the order given.
// The result has one entry per needed hash, repeats included, so the server
// can pair parts with hashes by position.
func ResolveAssets(needed []string, index manifest.HashIndex) ([][]byte, error) {
	files := make([][]byte, 0, len(needed))

	for _, hash := range needed {
		path, ok := index[hash]
		if !ok {
			return nil, &MissingAssetError{Hash: hash}
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("deploy: read asset %q: %w", path, err)
		}
		files = append(files, content)
	}

	return files, nil
}
