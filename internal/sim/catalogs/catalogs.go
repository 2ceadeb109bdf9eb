package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

//go:embed defaults/blocks.json
var defaultBlocksJSON []byte

type Catalogs struct {
	Blocks BlockCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID    string `json:"id"`
	Solid bool   `json:"solid"`
	// Gravity blocks fall when the block below them is removed.
	Gravity bool `json:"gravity,omitempty"`
	// Decays marks leaf-like blocks that vanish once nothing holds them.
	Decays     bool   `json:"decays,omitempty"`
	BlastProof bool   `json:"blast_proof,omitempty"`
	DropsItem  string `json:"drops_item,omitempty"`
}

// Load reads <configDir>/blocks.json. A missing file falls back to Defaults.
func Load(configDir string) (*Catalogs, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, "blocks.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults()
		}
		return nil, err
	}
	return parse(raw)
}

// Defaults returns the built-in block catalog.
func Defaults() (*Catalogs, error) {
	return parse(defaultBlocksJSON)
}

func parse(raw []byte) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(raw, &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(raw []byte, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("blocks.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

// ID returns the palette id of name, or false if the block is unknown.
func (b *BlockCatalog) ID(name string) (uint16, bool) {
	id, ok := b.Index[name]
	return id, ok
}

// Name returns the block name for a palette id; unknown ids read as AIR.
func (b *BlockCatalog) Name(id uint16) string {
	if int(id) >= len(b.Palette) {
		return "AIR"
	}
	return b.Palette[id]
}

func (b *BlockCatalog) Def(id uint16) BlockDef {
	return b.Defs[b.Name(id)]
}

// Unknown returns the names in tags that are not in the catalog.
func (b *BlockCatalog) Unknown(tags []string) []string {
	var out []string
	for _, t := range tags {
		if _, ok := b.Index[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
