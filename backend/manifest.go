package backend

import (
	"encoding/json"
	"os"
)

type nodeKind string

const (
	kindGroup  nodeKind = "group"
	kindColumn nodeKind = "column"
)

// manifestNode is the persisted description of one node (group or column)
// in the tree rooted at a fire file. It is the sidecar that makes a
// directory of flat column files into a navigable hierarchy, since the
// backend itself keeps no real subdirectories (grounded on friggdb's
// local backend, which likewise keeps one flat per-block directory and a
// separate meta file describing it).
type manifestNode struct {
	Path             string   `json:"path"`
	Kind             nodeKind `json:"kind"`
	Type             PrimType `json:"type,omitempty"`
	ChunkSize        int      `json:"chunk_size,omitempty"`
	CompressionLevel int      `json:"compression_level,omitempty"`
	Shuffle          bool     `json:"shuffle,omitempty"`
	Length           int      `json:"length,omitempty"`
}

type manifest struct {
	Nodes []manifestNode                    `json:"nodes"`
	Attrs map[string]map[string]interface{} `json:"attrs"`
}

const manifestFileName = "manifest.json"

func loadManifest(path string) (*manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m := &manifest{Attrs: map[string]map[string]interface{}{}}
	if err := json.NewDecoder(f).Decode(m); err != nil {
		return nil, err
	}
	if m.Attrs == nil {
		m.Attrs = map[string]map[string]interface{}{}
	}
	return m, nil
}

func saveManifest(path string, m *manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
