package bundler

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// overlayFS is the io/fs virtual filesystem spec.md §4.4 step 1 requires:
// generated activity-stub files shadow the real source tree, so any code
// that resolves an activity module specifier through this fs.FS gets the
// forwarding stub instead of whatever real file shares its path.
type overlayFS struct {
	base      fs.FS
	generated map[string][]byte
}

// newOverlayFS layers generated over root, read through os.DirFS.
func newOverlayFS(root string, generated map[string][]byte) *overlayFS {
	return &overlayFS{base: os.DirFS(root), generated: generated}
}

// Open implements fs.FS, preferring a generated stub over the base tree.
func (o *overlayFS) Open(name string) (fs.File, error) {
	if data, ok := o.generated[name]; ok {
		return newGenFile(name, data), nil
	}
	return o.base.Open(name)
}

// genFile is the fs.File view of one generated stub's in-memory content.
type genFile struct {
	info genFileInfo
	r    *bytes.Reader
}

func newGenFile(name string, data []byte) *genFile {
	return &genFile{
		info: genFileInfo{name: filepath.Base(name), size: int64(len(data))},
		r:    bytes.NewReader(data),
	}
}

func (f *genFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *genFile) Read(b []byte) (int, error) { return f.r.Read(b) }
func (f *genFile) Close() error               { return nil }

type genFileInfo struct {
	name string
	size int64
}

func (i genFileInfo) Name() string       { return i.name }
func (i genFileInfo) Size() int64        { return i.size }
func (i genFileInfo) Mode() fs.FileMode  { return 0o444 }
func (i genFileInfo) ModTime() time.Time { return time.Time{} }
func (i genFileInfo) IsDir() bool        { return false }
func (i genFileInfo) Sys() any           { return nil }
