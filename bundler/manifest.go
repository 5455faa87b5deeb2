package bundler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ContentHash computes a deterministic digest over every manifest file
// under root: a hash of (relative path, contents) pairs, sorted by path so
// re-bundling identical inputs always yields the same hash (spec.md §8
// round-trip property) regardless of filesystem iteration order.
func ContentHash(root string, sources []Source) (string, error) {
	paths := make([]string, 0, len(sources))
	for _, s := range sources {
		paths = append(paths, s.Path)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = p
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("bundler: hashing %s: %w", p, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00", rel, len(data))
		h.Write(data)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashGenerated extends a base content hash with the generated overlay
// files (the stub sources synthesized from the manifests), sorted by path,
// so the bundle's ContentHash covers the generated artifacts too — not just
// the manifests they were derived from (spec.md §8 round-trip property).
func hashGenerated(base string, generated map[string][]byte) string {
	paths := make([]string, 0, len(generated))
	for p := range generated {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	h.Write([]byte(base))
	for _, p := range paths {
		data := generated[p]
		fmt.Fprintf(h, "\x00%s\x00%d\x00", p, len(data))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
