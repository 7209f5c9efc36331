// Package gallery finds illustrative images for gesture keys on disk and
// fetches missing ones from a remote image service.
package gallery

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// PreferredIndex is the position of the image picked from a sorted
// directory listing. The first captures of a recording are often blurred.
const PreferredIndex = 5

var (
	// ErrNoImage is returned when no image exists for a key.
	ErrNoImage = errors.New("no image for key")
	// ErrInvalidKey is returned for keys that cannot name a directory.
	ErrInvalidKey = errors.New("invalid gesture key")
)

// Gallery looks up images under a data directory laid out as
// <dir>/<key>/*.jpg, optionally nested in category directories such as
// <dir>/Transport/<key>/*.jpg.
//
// The directory tree is scanned once, on first use, into a key -> image
// index. Images added behind its back are seen after Reindex; the Fetcher
// refreshes the keys it downloads. It is safe for concurrent use.
type Gallery struct {
	dir string

	mu    sync.Mutex
	index map[string]string // key -> chosen image path
}

// New creates a Gallery rooted at dir.
func New(dir string) *Gallery {
	return &Gallery{dir: dir}
}

// Dir returns the root directory.
func (g *Gallery) Dir() string {
	return g.dir
}

// Lookup returns the image path for key.
func (g *Gallery) Lookup(key string) (string, bool) {
	if ValidKey(key) != nil {
		return "", false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.index == nil {
		g.index = scan(g.dir)
	}
	path, ok := g.index[key]
	return path, ok
}

// Reindex drops the index; the next Lookup rescans the tree.
func (g *Gallery) Reindex() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.index = nil
}

// Refresh rescans the directory of a single key.
func (g *Gallery) Refresh(key string) {
	if ValidKey(key) != nil {
		return
	}
	path := pick(filepath.Join(g.dir, key))

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.index == nil {
		return
	}
	if path != "" {
		g.index[key] = path
	}
}

// scan walks root and indexes every directory holding images by its name.
// A key directly under root wins over one nested in a category.
func scan(root string) map[string]string {
	index := make(map[string]string)
	depth := make(map[string]int)
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == root {
			return nil
		}
		key := d.Name()
		rel, _ := filepath.Rel(root, path)
		level := strings.Count(rel, string(filepath.Separator))
		if prev, seen := depth[key]; seen && prev <= level {
			return nil
		}
		if img := pick(path); img != "" {
			index[key] = img
			depth[key] = level
		}
		return nil
	})
	return index
}

// pick returns the preferred image of dir, or "" when it has none.
func pick(dir string) string {
	images := listImages(dir)
	if len(images) == 0 {
		return ""
	}
	return filepath.Join(dir, images[min(PreferredIndex, len(images)-1)])
}

func listImages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isImage(e.Name()) {
			images = append(images, e.Name())
		}
	}
	sort.Strings(images)
	return images
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// ValidKey rejects keys that would escape the gallery directory.
func ValidKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return ErrInvalidKey
	}
	return nil
}
