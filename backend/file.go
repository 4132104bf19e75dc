package backend

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// defaultChunkSize is used by CreateColumn callers that don't override it
// (spec.md leaves the exact default unspecified; 1024 matches the teacher's
// friggdb WAL buffer sizing order of magnitude).
const defaultChunkSize = 1024

// column is the live, in-process state of one 1-D dataset: a write buffer
// that accumulates values until chunkSize is reached, or a read buffer that
// is refilled one chunk at a time. Only one of the two buffers is active,
// depending on the File's Mode.
type column struct {
	node manifestNode
	mode Mode

	f *os.File // underlying flat data file for this column

	writeBuf []interface{}

	readBuf    []interface{}
	readBufPos int
	readTotal  int // elements yielded to Read so far
}

// File is an open fire backend file: a root directory holding one flat
// data file per column plus a manifest sidecar describing the tree shape,
// chunk configuration, and attributes. See backend/manifest.go.
type File struct {
	root string
	mode Mode

	nodes   map[string]manifestNode
	order   []string // declaration order, for List()
	attrs   map[string]map[string]interface{}
	columns map[string]*column
}

// Open implements spec.md section 4.A open(path, mode).
func Open(path string, mode Mode) (*File, error) {
	f := &File{
		root:    path,
		mode:    mode,
		nodes:   map[string]manifestNode{},
		attrs:   map[string]map[string]interface{}{},
		columns: map[string]*column{},
	}

	switch mode {
	case ModeTruncateWrite:
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("backend: clearing %s: %w", path, err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("backend: creating %s: %w", path, err)
		}
	case ModeReadOnly:
		m, err := loadManifest(filepath.Join(path, manifestFileName))
		if err != nil {
			return nil, fmt.Errorf("backend: opening %s: %w", path, err)
		}
		f.attrs = m.Attrs
		for _, n := range m.Nodes {
			f.nodes[n.Path] = n
			f.order = append(f.order, n.Path)
		}
	default:
		return nil, fmt.Errorf("backend: invalid mode %d", mode)
	}
	return f, nil
}

func (f *File) dataFilePath(path string) string {
	return filepath.Join(f.root, flattenPath(path)+".col")
}

func flattenPath(path string) string {
	return strings.ReplaceAll(strings.Trim(path, "/"), "/", "__")
}

func (f *File) registerGroups(path string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	cur := ""
	for i := 0; i < len(parts)-1; i++ {
		if cur == "" {
			cur = parts[i]
		} else {
			cur = cur + "/" + parts[i]
		}
		if _, ok := f.nodes[cur]; !ok {
			f.nodes[cur] = manifestNode{Path: cur, Kind: kindGroup}
			f.order = append(f.order, cur)
		}
	}
}

// DeclareGroup registers an inner node with no data of its own, used by the
// Reader/Writer facade's declare_group to attach type/version attributes to
// a product's root path even when that product happens to be a bare
// container with no scalar members at the top level.
func (f *File) DeclareGroup(path string) error {
	if f.mode != ModeTruncateWrite {
		return fmt.Errorf("backend: DeclareGroup requires write mode")
	}
	f.registerGroups(path + "/_")
	if _, ok := f.nodes[path]; !ok {
		f.nodes[path] = manifestNode{Path: path, Kind: kindGroup}
		f.order = append(f.order, path)
	}
	return nil
}

// CreateColumn implements spec.md section 4.A create_column. It is a no-op
// if the column already exists in write mode with a matching type — callers
// (data.Tree.declare) call it once per product per run, but the bus may
// redeclare across events.
func (f *File) CreateColumn(path string, typ PrimType, chunkSize, compressionLevel int, shuffle bool) error {
	if f.mode != ModeTruncateWrite {
		return fmt.Errorf("backend: CreateColumn requires write mode")
	}
	if !typ.valid() {
		return invalidType(typ)
	}
	if existing, ok := f.columns[path]; ok {
		if existing.node.Type != typ {
			return fmt.Errorf("backend: column %s already created with type %s, not %s", path, existing.node.Type, typ)
		}
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	f.registerGroups(path)
	node := manifestNode{
		Path:             path,
		Kind:             kindColumn,
		Type:             typ,
		ChunkSize:        chunkSize,
		CompressionLevel: compressionLevel,
		Shuffle:          shuffle,
	}
	fh, err := os.Create(f.dataFilePath(path))
	if err != nil {
		return fmt.Errorf("backend: creating column file for %s: %w", path, err)
	}
	f.nodes[path] = node
	f.order = append(f.order, path)
	f.columns[path] = &column{node: node, mode: f.mode, f: fh}
	return nil
}

// Append implements spec.md section 4.A append(path, value): O(1) amortized,
// buffered until the column's chunk size is reached.
func (f *File) Append(path string, value interface{}) error {
	col, ok := f.columns[path]
	if !ok {
		return fmt.Errorf("backend: column %s not created", path)
	}
	col.writeBuf = append(col.writeBuf, value)
	if len(col.writeBuf) >= col.node.ChunkSize {
		return f.flushColumn(col)
	}
	return nil
}

func (f *File) flushColumn(col *column) error {
	if len(col.writeBuf) == 0 {
		return nil
	}
	if err := writeChunk(col.f, col.node.Type, col.writeBuf, col.node.CompressionLevel, col.node.Shuffle); err != nil {
		return fmt.Errorf("backend: flushing column %s: %w", col.node.Path, err)
	}
	col.node.Length += len(col.writeBuf)
	f.nodes[col.node.Path] = col.node
	col.writeBuf = col.writeBuf[:0]
	return nil
}

// Flush implements spec.md section 4.A flush(): writes any partial buffers.
func (f *File) Flush() error {
	if f.mode != ModeTruncateWrite {
		return nil
	}
	for _, col := range f.columns {
		if err := f.flushColumn(col); err != nil {
			return err
		}
	}
	return saveManifest(filepath.Join(f.root, manifestFileName), f.toManifest())
}

func (f *File) toManifest() *manifest {
	m := &manifest{Attrs: f.attrs}
	for _, p := range f.order {
		m.Nodes = append(m.Nodes, f.nodes[p])
	}
	return m
}

// openColumnForRead lazily opens the backing data file for a column the
// first time Read is called against it.
func (f *File) openColumnForRead(path string) (*column, error) {
	if col, ok := f.columns[path]; ok {
		return col, nil
	}
	node, ok := f.nodes[path]
	if !ok || node.Kind != kindColumn {
		return nil, fmt.Errorf("backend: no such column %s", path)
	}
	fh, err := os.Open(f.dataFilePath(path))
	if err != nil {
		return nil, fmt.Errorf("backend: opening column %s: %w", path, err)
	}
	col := &column{node: node, mode: f.mode, f: fh}
	f.columns[path] = col
	return col, nil
}

// EndOfColumn is returned by Read when a column's data is exhausted.
var EndOfColumn = fmt.Errorf("backend: end of column")

// Read implements spec.md section 4.A read(path, value&): successive calls
// return successive elements; reading past end returns EndOfColumn.
func (f *File) Read(path string) (interface{}, error) {
	if f.mode != ModeReadOnly {
		return nil, fmt.Errorf("backend: Read requires read-only mode")
	}
	col, err := f.openColumnForRead(path)
	if err != nil {
		return nil, err
	}
	if col.readBufPos >= len(col.readBuf) {
		chunk, err := readChunk(col.f, col.node.Type, col.node.Shuffle)
		if err == io.EOF {
			return nil, EndOfColumn
		}
		if err != nil {
			return nil, fmt.Errorf("backend: reading column %s: %w", path, err)
		}
		col.readBuf = chunk
		col.readBufPos = 0
	}
	v := col.readBuf[col.readBufPos]
	col.readBufPos++
	col.readTotal++
	return v, nil
}

// SetAttr implements spec.md section 4.A set_attr.
func (f *File) SetAttr(path, name string, value interface{}) error {
	if f.mode != ModeTruncateWrite {
		return fmt.Errorf("backend: SetAttr requires write mode")
	}
	if _, ok := f.attrs[path]; !ok {
		f.attrs[path] = map[string]interface{}{}
	}
	f.attrs[path][name] = value
	return nil
}

// GetAttr implements spec.md section 4.A get_attr.
func (f *File) GetAttr(path, name string) (interface{}, bool) {
	m, ok := f.attrs[path]
	if !ok {
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

// List implements spec.md section 4.A list(group-path): immediate children
// of a group, sorted lexicographically.
func (f *File) List(groupPath string) []string {
	prefix := strings.Trim(groupPath, "/")
	var out []string
	seen := map[string]bool{}
	for _, p := range f.order {
		rest := p
		if prefix != "" {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rest = strings.TrimPrefix(p, prefix+"/")
		}
		child := strings.SplitN(rest, "/", 2)[0]
		if child == "" || seen[child] {
			continue
		}
		seen[child] = true
		out = append(out, child)
	}
	sort.Strings(out)
	return out
}

// Exists implements spec.md section 4.A exists(path).
func (f *File) Exists(path string) bool {
	_, ok := f.nodes[path]
	return ok
}

// TypeOf implements spec.md section 4.A type_of(path).
func (f *File) TypeOf(path string) (PrimType, bool) {
	n, ok := f.nodes[path]
	if !ok || n.Kind != kindColumn {
		return "", false
	}
	return n.Type, true
}

// Dims implements spec.md section 4.A dims(path): the column's total
// element count.
func (f *File) Dims(path string) (int, error) {
	n, ok := f.nodes[path]
	if !ok || n.Kind != kindColumn {
		return 0, fmt.Errorf("backend: no such column %s", path)
	}
	return n.Length, nil
}

// Close flushes (in write mode) and releases underlying file handles.
func (f *File) Close() error {
	var firstErr error
	if f.mode == ModeTruncateWrite {
		if err := f.Flush(); err != nil {
			firstErr = err
		}
	}
	for _, col := range f.columns {
		if err := col.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Copy implements spec.md section 4.A copy(src, path, range, dst): bulk
// transfer of [start, start+n) along one column from src to dst, creating
// the destination column with the same type/chunking if absent. It decodes
// and re-encodes values rather than copying compressed bytes directly,
// since ranges need not be chunk-aligned — acceptable here because mirror
// copy (spec.md section 4.C) is the only caller and event-sized ranges are
// small relative to chunk size.
func Copy(src *File, path string, start, n int, dst *File) error {
	srcNode, ok := src.nodes[path]
	if !ok || srcNode.Kind != kindColumn {
		return fmt.Errorf("backend: no such column %s", path)
	}
	if !dst.Exists(path) {
		if err := dst.CreateColumn(path, srcNode.Type, srcNode.ChunkSize, srcNode.CompressionLevel, srcNode.Shuffle); err != nil {
			return err
		}
	}
	values, err := readRange(src, path, start, n)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := dst.Append(path, v); err != nil {
			return err
		}
	}
	return nil
}

// ReadAt reads a single value at element index, without disturbing the
// column's sequential Read cursor. Used by the reader facade's mirror-copy
// path, which needs random access to a "size" column to compute the
// element range for a given event.
func ReadAt(f *File, path string, index int) (interface{}, error) {
	values, err := readRange(f, path, index, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// readRange reads exactly n values starting at element index start from a
// column opened in read-only mode, without disturbing any other reader's
// sequential cursor on the same column (it uses its own file handle).
func readRange(f *File, path string, start, n int) ([]interface{}, error) {
	node, ok := f.nodes[path]
	if !ok || node.Kind != kindColumn {
		return nil, fmt.Errorf("backend: no such column %s", path)
	}
	fh, err := os.Open(f.dataFilePath(path))
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	processed := 0
	out := make([]interface{}, 0, n)
	for len(out) < n {
		chunk, err := readChunk(fh, node.Type, node.Shuffle)
		if err == io.EOF {
			return nil, fmt.Errorf("backend: range [%d,%d) exceeds column %s length", start, start+n, path)
		}
		if err != nil {
			return nil, err
		}
		for _, v := range chunk {
			idx := processed
			processed++
			if idx >= start && len(out) < n {
				out = append(out, v)
			}
		}
	}
	return out, nil
}
