package gallery

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"imghost/pkg/keys"
	"imghost/pkg/object"
)

// FolderNode is a folder derived from the keys of a listing.
type FolderNode struct {
	// Name is the last segment of Path.
	Name string
	// Path is relative to the root, without leading or trailing slash.
	Path string
	// ObjectCount and AggregatedSize cover every non-marker object in the
	// folder and its subfolders.
	ObjectCount    int
	AggregatedSize int64
	// HasMarker is set when the folder's own marker object was listed.
	HasMarker bool
}

// File is a listed object together with its place in the folder tree.
type File struct {
	object.Object
	FolderPath string
	FileName   string
}

// Projection is the folder/file view of a listing.
type Projection struct {
	Folders []FolderNode
	Files   []File
}

// Project builds the folder tree and the file list for entries under root.
// Marker objects make their folder visible but are left out of Files and
// of the counts. Folders are ordered by name.
func Project(entries []object.Object, root string) Projection {
	p := newProjector(root, true)
	p.add(entries)
	return p.result()
}

// projector accumulates pages of a listing so a full sweep does not need
// the whole listing in memory at once.
type projector struct {
	root      string
	keepFiles bool
	folders   map[string]*FolderNode
	files     []File
}

func newProjector(root string, keepFiles bool) *projector {
	return &projector{
		root:      root,
		keepFiles: keepFiles,
		folders:   make(map[string]*FolderNode),
	}
}

func (p *projector) add(entries []object.Object) {
	for _, obj := range entries {
		folderPath, fileName := keys.SplitKey(obj.Key, p.root)
		marker := keys.IsMarker(fileName)

		if folderPath != "" {
			p.count(folderPath, obj.Size, marker)
		}
		if !marker && p.keepFiles {
			p.files = append(p.files, File{Object: obj, FolderPath: folderPath, FileName: fileName})
		}
	}
}

// count credits obj to folderPath and every ancestor of it.
func (p *projector) count(folderPath string, size int64, marker bool) {
	for path := folderPath; path != ""; {
		node, ok := p.folders[path]
		if !ok {
			node = &FolderNode{Name: path[strings.LastIndexByte(path, '/')+1:], Path: path}
			p.folders[path] = node
		}
		if marker {
			if path == folderPath {
				node.HasMarker = true
			}
		} else {
			node.ObjectCount++
			node.AggregatedSize += size
		}

		i := strings.LastIndexByte(path, '/')
		if i < 0 {
			break
		}
		path = path[:i]
	}
}

func (p *projector) result() Projection {
	folders := make([]FolderNode, 0, len(p.folders))
	for _, node := range p.folders {
		folders = append(folders, *node)
	}
	sortFolders(folders)
	return Projection{Folders: folders, Files: p.files}
}

// sortFolders orders by name using the root collation, then by path so
// equally named folders at different depths keep a stable order.
func sortFolders(folders []FolderNode) {
	c := collate.New(language.Und)
	slices.SortFunc(folders, func(a, b FolderNode) int {
		if r := c.CompareString(a.Name, b.Name); r != 0 {
			return r
		}
		return cmp.Compare(a.Path, b.Path)
	})
}
