package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xeipuuv/gojsonschema"
)

// validationDefinitions is the folder element that marks nested validation
// schemas; refs in files below it resolve relative to their own subtree.
const validationDefinitions = "validation_definitions"

// apiRoot is the fixed prefix under which all relative refs are rooted
const apiRoot = "api/"

// compiledCacheSize bounds the number of compiled schemas held in memory
const compiledCacheSize = 128

// TreeReader yields the ordered set of schema file paths under a root folder.
// The default implementation walks the local filesystem.
type TreeReader interface {
	ListFiles(root, ext string) ([]string, error)
}

// OSTreeReader reads schema trees from the local filesystem
type OSTreeReader struct{}

// ListFiles walks root and returns all files with the given extension, sorted
func (OSTreeReader) ListFiles(root, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk schema tree %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Document is a loaded schema. It is immutable after resolution and may be
// shared freely across concurrent requests.
type Document struct {
	// ID is the synthetic identifier, "file:" + absolute path
	ID string
	// Path is the file path relative to the working directory
	Path string
	// Raw is the parsed document with refs rewritten to absolute URIs
	Raw map[string]interface{}
}

// Store loads and indexes schema documents from configured root folders
type Store struct {
	reader  TreeReader
	workdir string
	folders map[string]string // root folder -> file extension

	mu       sync.RWMutex
	docs     map[string]map[string]*Document // folder -> relative path -> document
	index    map[string]*Document            // lookup key -> document
	compiled *lru.Cache[string, *gojsonschema.Schema]
}

// DefaultFolders is the standard schema tree layout: request schemas under
// api/, with cross-referenced validation schemas in its
// validation_definitions subtree picked up by the same walk.
func DefaultFolders() map[string]string {
	return map[string]string{"api": ".json"}
}

// NewStore creates a store rooted at workdir that will load the given
// folders, mapping each root folder to its file extension filter.
func NewStore(workdir string, folders map[string]string, reader TreeReader) (*Store, error) {
	if reader == nil {
		reader = OSTreeReader{}
	}
	compiled, err := lru.New[string, *gojsonschema.Schema](compiledCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache: %w", err)
	}
	return &Store{
		reader:   reader,
		workdir:  workdir,
		folders:  folders,
		docs:     make(map[string]map[string]*Document),
		index:    make(map[string]*Document),
		compiled: compiled,
	}, nil
}

// Load parses every matching file under every configured folder. A malformed
// file fails the whole load with a LoadError naming it.
func (s *Store) Load() error {
	docs := make(map[string]map[string]*Document)
	index := make(map[string]*Document)

	for folder, ext := range s.folders {
		loaded, err := s.loadFolder(folder, ext)
		if err != nil {
			return err
		}
		docs[folder] = loaded

		paths := make([]string, 0, len(loaded))
		for p := range loaded {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			indexDocument(index, loaded[p])
		}
	}

	s.mu.Lock()
	s.docs = docs
	s.index = index
	s.compiled.Purge()
	s.mu.Unlock()
	return nil
}

// loadFolder loads one root folder into a path-keyed document map
func (s *Store) loadFolder(folder, ext string) (map[string]*Document, error) {
	root := filepath.Join(s.workdir, folder)
	files, err := s.reader.ListFiles(root, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema folder %s: %w", folder, err)
	}

	loaded := make(map[string]*Document, len(files))
	for _, file := range files {
		doc, err := s.loadFile(file)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(s.workdir, file)
		if err != nil {
			rel = file
		}
		loaded[rel] = doc
	}
	return loaded, nil
}

// loadFile parses a single schema file, assigns its $id and rewrites refs
func (s *Store) loadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	rel, err := filepath.Rel(s.workdir, path)
	if err != nil {
		rel = path
	}

	raw["$id"] = "file:" + abs
	rewriteRefs(raw, s.workdir, refRoot(rel))

	return &Document{
		ID:   "file:" + abs,
		Path: rel,
		Raw:  raw,
	}, nil
}

// refRoot computes the folder against which a file's relative refs resolve.
// Files below a validation_definitions element resolve against their own
// subtree, collapsed to everything between validation_definitions and the
// file name; everything else resolves against the fixed api/ root.
func refRoot(relPath string) string {
	slashed := filepath.ToSlash(relPath)
	if i := strings.Index(slashed, validationDefinitions); i >= 0 {
		dir := slashed[:strings.LastIndex(slashed, "/")+1]
		return apiRoot + dir[i:]
	}
	return apiRoot
}

// rewriteRefs walks every object node and rewrites non-anchor $ref values to
// absolute file: URIs. Same-document anchors ("#/...") are left for the
// schema engine to resolve natively.
func rewriteRefs(node interface{}, workdir, root string) {
	switch v := node.(type) {
	case map[string]interface{}:
		if ref, ok := v["$ref"].(string); ok && !strings.HasPrefix(ref, "#") {
			v["$ref"] = "file:" + workdir + "/" + root + ref
		}
		for _, child := range v {
			rewriteRefs(child, workdir, root)
		}
	case []interface{}:
		for _, child := range v {
			rewriteRefs(child, workdir, root)
		}
	}
}

// indexDocument registers lookup keys for a document: its relative path
// without extension, its base name without extension, and its parent
// directory name. Earlier files win on key collisions (load order is sorted,
// so the index is deterministic).
func indexDocument(index map[string]*Document, doc *Document) {
	slashed := filepath.ToSlash(doc.Path)
	base := slashed[strings.LastIndex(slashed, "/")+1:]
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	keys := []string{
		strings.TrimSuffix(slashed, filepath.Ext(slashed)),
		stem,
	}
	if i := strings.LastIndex(slashed, "/"); i > 0 {
		parent := slashed[:i]
		keys = append(keys, parent[strings.LastIndex(parent, "/")+1:])
	}

	for _, key := range keys {
		if _, taken := index[key]; !taken {
			index[key] = doc
		}
	}
}

// Folder returns the loaded documents for one configured root folder
func (s *Store) Folder(folder string) map[string]*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[folder]
}

// Lookup resolves a schema key (path, file stem or folder name) to a document
func (s *Store) Lookup(key string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return doc, nil
}

// Count returns the number of loaded documents
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, folder := range s.docs {
		n += len(folder)
	}
	return n
}

// Tree returns the nested folder-tree mapping used by the discovery endpoint.
// Directories map to nested objects; files map to their synthetic IDs.
func (s *Store) Tree() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree := make(map[string]interface{})
	for _, folder := range s.docs {
		for path, doc := range folder {
			node := tree
			parts := strings.Split(filepath.ToSlash(path), "/")
			for _, part := range parts[:len(parts)-1] {
				child, ok := node[part].(map[string]interface{})
				if !ok {
					child = make(map[string]interface{})
					node[part] = child
				}
				node = child
			}
			node[parts[len(parts)-1]] = doc.ID
		}
	}
	return tree
}

// compile returns the compiled form of a document, caching by ID
func (s *Store) compile(doc *Document) (*gojsonschema.Schema, error) {
	if compiled, ok := s.compiled.Get(doc.ID); ok {
		return compiled, nil
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc.Raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", doc.Path, err)
	}

	s.compiled.Add(doc.ID, compiled)
	return compiled, nil
}
